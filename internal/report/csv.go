package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/tabstone-dev/tabstone/internal/pagestate"
	"github.com/tabstone-dev/tabstone/internal/session"
)

var tabCSVHeader = []string{
	"Index", "Title", "URL", "Timestamp", "Transition Type",
	"Referrer", "Search Terms", "HTTP Status Code", "Page State",
}

var formCSVHeader = []string{"Form ID", "Key", "Type", "Value"}

// ExportCSV writes one CSV per tab into dir, plus a form-state CSV for every
// navigation whose page state carries recovered form values. Returns the
// paths written. dir is created if missing.
func ExportCSV(m *session.Model, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("report: create %s: %w", dir, err)
	}

	var written []string
	for _, t := range m.Tabs() {
		path := filepath.Join(dir, fmt.Sprintf("tab%d.csv", t.ID))
		rows := [][]string{tabCSVHeader}

		for _, e := range t.Navigations() {
			hasState := "no"
			if len(e.PageStateBlob) > 0 {
				hasState = "yes"
				formPaths, err := exportFormState(dir, t.ID, e.Index, e.PageStateBlob)
				if err == nil {
					written = append(written, formPaths...)
				}
			}
			rows = append(rows, []string{
				strconv.Itoa(int(e.Index)),
				e.Title,
				e.URL,
				formatTime(e.Timestamp),
				e.Transition.String(),
				e.ReferrerURL,
				e.SearchTerms,
				strconv.Itoa(int(e.HTTPStatusCode)),
				hasState,
			})
		}

		if err := writeCSV(path, rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// exportFormState decodes the page state and writes one CSV per navigation
// holding form values. Undecodable page state is not an error here: the tab
// row simply reports no recovered state.
func exportFormState(dir string, tabID session.TabID, navIndex int32, blob []byte) ([]string, error) {
	state, err := pagestate.Decode(blob)
	if err != nil {
		return nil, err
	}

	rows := [][]string{formCSVHeader}
	for _, frame := range state.Frames() {
		form, err := pagestate.ParseFormState(frame.DocumentState)
		if err != nil {
			continue
		}
		formIDs := make([]string, 0, len(form))
		for id := range form {
			formIDs = append(formIDs, id)
		}
		sort.Strings(formIDs)
		for _, formID := range formIDs {
			for _, f := range form[formID] {
				for _, value := range f.Values {
					rows = append(rows, []string{formID, f.Name, f.Type, value})
				}
			}
		}
	}
	if len(rows) == 1 {
		return nil, nil
	}

	path := filepath.Join(dir, fmt.Sprintf("tab%d-navigation%d page_state.csv", tabID, navIndex))
	if err := writeCSV(path, rows); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	return nil
}
