package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rows = `tt0070735|movie|The Sting|The Sting|0|1973|-|129|Comedy,Crime,Drama
tt0071562|movie|The Godfather Part II|The Godfather Part II|0|1974|-|202|Crime,Drama
broken
`

func writeRows(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.tsv")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

func run(t *testing.T, args ...string) *bytes.Buffer {
	t.Helper()
	app := makeApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	require.NoError(t, app.Run(append([]string{appName}, args...)))
	return &out
}

func TestIndexCommand(t *testing.T) {
	out := run(t, "index", "--file", writeRows(t))

	var got struct {
		Indexed int `json:"indexed"`
		Skipped int `json:"skipped"`
		Stats   struct {
			Records     int            `json:"records"`
			FieldValues map[string]int `json:"field_values"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got.Indexed)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 2, got.Stats.Records)
	assert.Equal(t, 3, got.Stats.FieldValues["genre"])
}

func TestLookupCommandByField(t *testing.T) {
	out := run(t, "lookup", "--file", writeRows(t), "--field", "genre", "--term", "crime")

	var lines []string
	require.NoError(t, json.Unmarshal(out.Bytes(), &lines))
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "tt0070735")
	assert.Contains(t, lines[1], "tt0071562")
}

func TestLookupCommandByWord(t *testing.T) {
	out := run(t, "lookup", "--file", writeRows(t), "--doc", "3", "--word", "godfather")

	var docs map[string][]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &docs))
	assert.Equal(t, map[string][]int{"3": {1}}, docs)
}

func TestLookupCommandNeedsQuery(t *testing.T) {
	app := makeApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{appName, "lookup", "--file", writeRows(t)})
	assert.Error(t, err)
}
