package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabstone-dev/tabstone/internal/report"
)

// writeSessionFile assembles a small Current Session artifact: one window,
// one tab, two navigations.
func writeSessionFile(t *testing.T, dir string) string {
	t.Helper()

	file := append([]byte("SNSS"), 1, 0, 0, 0)
	record := func(payload []byte) {
		file = binary.LittleEndian.AppendUint32(file, uint32(len(payload)))
		file = append(file, payload...)
	}
	i32s := func(vs ...int32) []byte {
		var out []byte
		for _, v := range vs {
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
		return out
	}
	navigation := func(tabID, index int32, url string) []byte {
		var fields []byte
		fields = append(fields, i32s(tabID, index, int32(len(url)))...)
		fields = append(fields, url...)
		for len(fields)%4 != 0 {
			fields = append(fields, 0)
		}
		fields = append(fields, i32s(0)...) // empty title
		payload := []byte{6}                // UpdateTabNavigation
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(fields)))
		return append(payload, fields...)
	}

	record(append([]byte{14}, i32s(1, 0, 0, 1280, 800, 1)...)) // SetWindowBounds3
	record(append([]byte{0}, i32s(1, 10)...))                  // SetTabWindow
	record(navigation(10, 0, "http://example.com/a"))
	record(navigation(10, 1, "http://example.com/b"))
	record(append([]byte{7}, i32s(10, 1)...)) // SetSelectedNavigationIndex

	path := filepath.Join(dir, "Current Session")
	require.NoError(t, os.WriteFile(path, file, 0644))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInspectSummary(t *testing.T) {
	dir := t.TempDir()
	path := writeSessionFile(t, dir)

	out, err := runCommand(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Window 1")
	assert.Contains(t, out, "Tab 10")
	assert.Contains(t, out, "http://example.com/b")
}

func TestInspectJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeSessionFile(t, dir)

	out, err := runCommand(t, "inspect", "--json", path)
	require.NoError(t, err)

	var v report.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Len(t, v.Tabs, 1)
	assert.Equal(t, int32(1), v.Tabs[0].ActiveNavigation)
	require.Len(t, v.Tabs[0].Navigations, 2)
	assert.Equal(t, "http://example.com/a", v.Tabs[0].Navigations[0].URL)
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeSessionFile(t, dir)
	outDir := filepath.Join(dir, "out")

	out, err := runCommand(t, "export", "--out", outDir, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 file(s)")

	data, err := os.ReadFile(filepath.Join(outDir, "tab10.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "http://example.com/a")
}

func TestRecordsListing(t *testing.T) {
	dir := t.TempDir()
	path := writeSessionFile(t, dir)

	out, err := runCommand(t, "records", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Format version 1, 5 record(s)")
	assert.Contains(t, out, "UpdateTabNavigation")
	assert.Contains(t, out, "SetTabWindow")
}

func TestRecordsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSessionFile(t, dir)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-6], 0644))

	out, err := runCommand(t, "records", path)
	require.NoError(t, err)
	assert.Contains(t, out, "stream ends early")
}

func TestInspectMissingFile(t *testing.T) {
	_, err := runCommand(t, "inspect", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestConfigFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeSessionFile(t, dir)
	cfgPath := filepath.Join(dir, ".tabstone.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("decode:\n  malformed_tolerance: 0\n"), 0644))

	out, err := runCommand(t, "inspect", "--config", cfgPath, "--json", path)
	require.NoError(t, err)

	var v report.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Len(t, v.Tabs, 1)
}
