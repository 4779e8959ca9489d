// Package session folds decoded SNSS commands into a mutable object graph of
// windows, tabs and navigation entries.
//
// The graph is forensic rather than live: entities are created on first
// reference, closed entities are tombstoned instead of removed, and every
// skipped or unreadable record is retained as a diagnostic so a report can
// account for the whole byte stream.
package session

import (
	"sort"
	"time"

	"github.com/tabstone-dev/tabstone/internal/command"
)

// WindowID identifies a window. Assigned by the browser, carried verbatim in
// commands; neither dense nor monotonic.
type WindowID int32

// TabID identifies a tab, with the same caveats as WindowID.
type TabID int32

// Bounds is a window's last known screen rectangle.
type Bounds struct {
	X, Y      int32
	Width     int32
	Height    int32
	ShowState int32 // ui::WindowShowState; -1 when never recorded
}

// Window is one browser window reconstructed from the stream. TabIDs holds
// references in attach order; the window never owns the tabs themselves.
type Window struct {
	ID            WindowID
	Bounds        Bounds
	Type          int32
	AppName       string
	SelectedTabID TabID // tab at the selected index, when resolvable
	SelectedIndex int32
	TabIDs        []TabID
	Active        bool
	Closed        bool
	ClosedAt      time.Time
}

// Tab is one browser tab. WindowID stays zero until a SetTabWindow command is
// observed; such orphans are expected in truncated files and are not errors.
type Tab struct {
	ID                TabID
	WindowID          WindowID
	IndexInWindow     int32
	Pinned            bool
	ExtensionAppID    string
	UserAgentOverride string
	StorageNamespace  string
	ActiveNavigation  int32
	LastActiveAt      time.Time
	Closed            bool
	ClosedAt          time.Time

	navigations map[int32]*command.NavigationEntry
}

// Navigations returns the tab's entries ordered by navigation index.
// Indices may be sparse: entries never recorded in the stream stay absent.
func (t *Tab) Navigations() []*command.NavigationEntry {
	out := make([]*command.NavigationEntry, 0, len(t.navigations))
	for _, e := range t.navigations {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// NavigationAt returns the entry at one index, or nil.
func (t *Tab) NavigationAt(index int32) *command.NavigationEntry {
	return t.navigations[index]
}

// DiagnosticKind classifies a skipped or unreadable record.
type DiagnosticKind int

const (
	DiagUnknownCommand DiagnosticKind = iota
	DiagMalformedCommand
	DiagTruncatedRecord
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagUnknownCommand:
		return "unknown-command"
	case DiagMalformedCommand:
		return "malformed-command"
	case DiagTruncatedRecord:
		return "truncated-record"
	default:
		return "diagnostic"
	}
}

// Diagnostic describes one record the fold could not apply, tagged with the
// record's byte offset in the artifact.
type Diagnostic struct {
	Kind      DiagnosticKind
	Offset    int64
	CommandID command.ID
	Detail    string
}

// State tracks the builder lifecycle.
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateFinalized
)

// Model is the reconstructed session graph. It is the sole owner of all
// Window and Tab values; windows reference tabs by id only, so there are no
// ownership cycles. A Model is not safe for concurrent mutation; decode one
// artifact per Model and share only after finalization.
type Model struct {
	windows     map[WindowID]*Window
	windowOrder []WindowID
	tabs        map[TabID]*Tab
	tabOrder    []TabID
	diags       []Diagnostic
	state       State
}

// NewModel returns an empty model in StateEmpty.
func NewModel() *Model {
	return &Model{
		windows: make(map[WindowID]*Window),
		tabs:    make(map[TabID]*Tab),
	}
}

// State reports the builder lifecycle stage the model is in.
func (m *Model) State() State { return m.state }

// Windows enumerates windows in first-reference order: the order the stream
// first named them, not numeric id order.
func (m *Model) Windows() []*Window {
	out := make([]*Window, len(m.windowOrder))
	for i, id := range m.windowOrder {
		out[i] = m.windows[id]
	}
	return out
}

// Tabs enumerates tabs in first-reference order.
func (m *Model) Tabs() []*Tab {
	out := make([]*Tab, len(m.tabOrder))
	for i, id := range m.tabOrder {
		out[i] = m.tabs[id]
	}
	return out
}

// Window returns the window with the given id, or nil.
func (m *Model) Window(id WindowID) *Window { return m.windows[id] }

// Tab returns the tab with the given id, or nil.
func (m *Model) Tab(id TabID) *Tab { return m.tabs[id] }

// NavigationEntries returns the ordered navigation list of one tab, or nil
// for an id the stream never referenced.
func (m *Model) NavigationEntries(id TabID) []*command.NavigationEntry {
	t := m.tabs[id]
	if t == nil {
		return nil
	}
	return t.Navigations()
}

// Diagnostics returns every skipped/unknown/malformed record in stream order.
func (m *Model) Diagnostics() []Diagnostic { return m.diags }

// window resolves or creates the window for an id. Creation on first
// reference: the on-disk stream never guarantees an explicit create command
// precedes the first mutation.
func (m *Model) window(id WindowID) *Window {
	if w, ok := m.windows[id]; ok {
		return w
	}
	w := &Window{ID: id, Bounds: Bounds{ShowState: -1}, SelectedIndex: -1}
	m.windows[id] = w
	m.windowOrder = append(m.windowOrder, id)
	return w
}

// tab resolves or creates the tab for an id.
func (m *Model) tab(id TabID) *Tab {
	if t, ok := m.tabs[id]; ok {
		return t
	}
	t := &Tab{ID: id, ActiveNavigation: -1, navigations: make(map[int32]*command.NavigationEntry)}
	m.tabs[id] = t
	m.tabOrder = append(m.tabOrder, id)
	return t
}

func (m *Model) addDiagnostic(d Diagnostic) {
	m.diags = append(m.diags, d)
}
