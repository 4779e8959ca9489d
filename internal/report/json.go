package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/tabstone-dev/tabstone/internal/session"
)

// WriteJSON encodes the session view to w with indentation.
func WriteJSON(w io.Writer, m *session.Model) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewView(m))
}

// ExportJSON writes the session view to session.json under dir.
func ExportJSON(m *session.Model, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "session.json"))
	if err != nil {
		return err
	}
	if err := WriteJSON(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
