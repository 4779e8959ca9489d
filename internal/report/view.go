// Package report renders a finalized session model: CSV exports matching the
// original forensic tooling, a JSON view for machine consumers, and styled
// terminal summaries. Everything here reads the model; nothing mutates it.
package report

import (
	"time"

	"github.com/tabstone-dev/tabstone/internal/pagestate"
	"github.com/tabstone-dev/tabstone/internal/session"
)

// timeFormat matches the original casework output (day first).
const timeFormat = "02/01/2006 15:04:05"

// View is the machine-readable projection of a model.
type View struct {
	Windows     []WindowView     `json:"windows"`
	Tabs        []TabView        `json:"tabs"`
	Diagnostics []DiagnosticView `json:"diagnostics"`
}

type WindowView struct {
	ID            int32    `json:"id"`
	Bounds        [4]int32 `json:"bounds"` // x, y, width, height
	ShowState     int32    `json:"show_state"`
	Type          int32    `json:"type"`
	AppName       string   `json:"app_name,omitempty"`
	SelectedTabID int32    `json:"selected_tab_id,omitempty"`
	TabIDs        []int32  `json:"tab_ids"`
	Active        bool     `json:"active,omitempty"`
	Closed        bool     `json:"closed"`
	ClosedAt      string   `json:"closed_at,omitempty"`
}

type TabView struct {
	ID               int32            `json:"id"`
	WindowID         int32            `json:"window_id"`
	Index            int32            `json:"index_in_window"`
	Pinned           bool             `json:"pinned,omitempty"`
	ExtensionAppID   string           `json:"extension_app_id,omitempty"`
	StorageNamespace string           `json:"storage_namespace,omitempty"`
	ActiveNavigation int32            `json:"active_navigation_index"`
	Closed           bool             `json:"closed"`
	ClosedAt         string           `json:"closed_at,omitempty"`
	Navigations      []NavigationView `json:"navigations"`
}

type NavigationView struct {
	Index          int32  `json:"index"`
	URL            string `json:"url"`
	Title          string `json:"title,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	Transition     string `json:"transition"`
	ReferrerURL    string `json:"referrer_url,omitempty"`
	SearchTerms    string `json:"search_terms,omitempty"`
	HTTPStatusCode int32  `json:"http_status_code,omitempty"`
	HasPageState   bool   `json:"has_page_state"`
	HasFormState   bool   `json:"has_form_state"`
}

type DiagnosticView struct {
	Kind      string `json:"kind"`
	Offset    int64  `json:"offset"`
	CommandID uint8  `json:"command_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// NewView projects a model into its serializable form.
func NewView(m *session.Model) View {
	v := View{
		Windows:     make([]WindowView, 0, len(m.Windows())),
		Tabs:        make([]TabView, 0, len(m.Tabs())),
		Diagnostics: make([]DiagnosticView, 0, len(m.Diagnostics())),
	}

	for _, w := range m.Windows() {
		wv := WindowView{
			ID:            int32(w.ID),
			Bounds:        [4]int32{w.Bounds.X, w.Bounds.Y, w.Bounds.Width, w.Bounds.Height},
			ShowState:     w.Bounds.ShowState,
			Type:          w.Type,
			AppName:       w.AppName,
			SelectedTabID: int32(w.SelectedTabID),
			TabIDs:        make([]int32, 0, len(w.TabIDs)),
			Active:        w.Active,
			Closed:        w.Closed,
			ClosedAt:      formatTime(w.ClosedAt),
		}
		for _, id := range w.TabIDs {
			wv.TabIDs = append(wv.TabIDs, int32(id))
		}
		v.Windows = append(v.Windows, wv)
	}

	for _, t := range m.Tabs() {
		tv := TabView{
			ID:               int32(t.ID),
			WindowID:         int32(t.WindowID),
			Index:            t.IndexInWindow,
			Pinned:           t.Pinned,
			ExtensionAppID:   t.ExtensionAppID,
			StorageNamespace: t.StorageNamespace,
			ActiveNavigation: t.ActiveNavigation,
			Closed:           t.Closed,
			ClosedAt:         formatTime(t.ClosedAt),
		}
		for _, e := range t.Navigations() {
			nv := NavigationView{
				Index:          e.Index,
				URL:            e.URL,
				Title:          e.Title,
				Timestamp:      formatTime(e.Timestamp),
				Transition:     e.Transition.String(),
				ReferrerURL:    e.ReferrerURL,
				SearchTerms:    e.SearchTerms,
				HTTPStatusCode: e.HTTPStatusCode,
			}
			if len(e.PageStateBlob) > 0 {
				nv.HasPageState = true
				nv.HasFormState = hasFormState(e.PageStateBlob)
			}
			tv.Navigations = append(tv.Navigations, nv)
		}
		v.Tabs = append(v.Tabs, tv)
	}

	for _, d := range m.Diagnostics() {
		v.Diagnostics = append(v.Diagnostics, DiagnosticView{
			Kind:      d.Kind.String(),
			Offset:    d.Offset,
			CommandID: uint8(d.CommandID),
			Detail:    d.Detail,
		})
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

// hasFormState reports whether any frame of the page state carries the
// serialized form values vector.
func hasFormState(blob []byte) bool {
	state, err := pagestate.Decode(blob)
	if err != nil {
		return false
	}
	for _, frame := range state.Frames() {
		if _, err := pagestate.ParseFormState(frame.DocumentState); err == nil {
			return true
		}
	}
	return false
}
