package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokistudios/keyline/internal/article"
	"github.com/kokistudios/keyline/internal/store"
	"github.com/kokistudios/keyline/internal/ui"
)

// execute runs the CLI against home and returns what it printed.
func execute(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevErr := ui.Out, ui.Err
	ui.SetOutput(&buf, &buf)
	t.Cleanup(func() { ui.SetOutput(prevOut, prevErr) })

	root := rootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--no-color", "--home", home}, args...))
	err := root.Execute()
	return buf.String(), err
}

func listRecords(t *testing.T, home string, args ...string) []article.Record {
	t.Helper()
	out, err := execute(t, home, args...)
	require.NoError(t, err)
	var recs []article.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs), out)
	return recs
}

func TestCLIAddListShow(t *testing.T) {
	home := t.TempDir()

	_, err := execute(t, home, "add", "Intro to Rust", "-t", "borrow checker", "-t", "lifetimes", "-t", "borrow checker")
	require.NoError(t, err)
	_, err = execute(t, home, "add", "Untagged")
	require.NoError(t, err)

	recs := listRecords(t, home, "list", "--json")
	require.Len(t, recs, 2)
	assert.Equal(t, "Intro to Rust", recs[0].Title)
	assert.Equal(t, []string{"borrow checker", "lifetimes"}, recs[0].Tags)
	assert.Equal(t, []string{}, recs[1].Tags)

	out, err := execute(t, home, "show", recs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "borrow checker")

	_, err = execute(t, home, "show", "nope")
	assert.Error(t, err)

	_, err = os.Stat(filepath.Join(home, "article_data.json"))
	assert.NoError(t, err, "data file lives in the home by default")
}

func TestCLIAddDuplicateTitleNeedsForce(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, home, "add", "Same")
	require.NoError(t, err)

	_, err = execute(t, home, "add", "Same")
	assert.Error(t, err)
	assert.Len(t, listRecords(t, home, "list", "--json"), 1)

	_, err = execute(t, home, "add", "Same", "--force")
	require.NoError(t, err)
	assert.Len(t, listRecords(t, home, "list", "--json"), 2)
}

func TestCLIEditAndDelete(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, home, "add", "Old", "-t", "a", "-t", "b")
	require.NoError(t, err)
	id := listRecords(t, home, "list", "--json")[0].ID

	_, err = execute(t, home, "edit", id, "--title", "New", "--add-tag", "c", "--remove-tag", "a")
	require.NoError(t, err)
	rec := listRecords(t, home, "list", "--json")[0]
	assert.Equal(t, "New", rec.Title)
	assert.Equal(t, []string{"b", "c"}, rec.Tags)

	_, err = execute(t, home, "edit", id, "--tags", "x, y, x")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, listRecords(t, home, "list", "--json")[0].Tags)

	_, err = execute(t, home, "delete", id, "--yes")
	require.NoError(t, err)
	assert.Empty(t, listRecords(t, home, "list", "--json"))
}

func TestCLISearch(t *testing.T) {
	home := t.TempDir()
	for _, args := range [][]string{
		{"add", "ML", "-t", "machine learning basics"},
		{"add", "Cooking", "-t", "learning to cook"},
		{"add", "Rust", "-t", "borrow checker"},
	} {
		_, err := execute(t, home, args...)
		require.NoError(t, err)
	}

	recs := listRecords(t, home, "search", "tags", "learn", "--json")
	assert.Len(t, recs, 2)

	recs = listRecords(t, home, "search", "tags", "learn", "basic", "--json")
	require.Len(t, recs, 1)
	assert.Equal(t, "ML", recs[0].Title)

	recs = listRecords(t, home, "search", "tags", "--exact", "borrow checker", "--json")
	require.Len(t, recs, 1)
	assert.Equal(t, "Rust", recs[0].Title)

	recs = listRecords(t, home, "search", "title", "oo", "--json")
	require.Len(t, recs, 1)
	assert.Equal(t, "Cooking", recs[0].Title)

	_, err := execute(t, home, "search", "tags")
	assert.Error(t, err, "substring tag search needs a keyword")
}

func TestCLISearchSave(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, home, "add", "Rust", "-t", "borrow checker")
	require.NoError(t, err)

	_, err = execute(t, home, "search", "title", "Rust", "--save", "--format", "yaml")
	require.NoError(t, err)
	matches, _ := filepath.Glob(filepath.Join(home, "exports", "search_result_*.yaml"))
	assert.Len(t, matches, 1)

	_, err = execute(t, home, "search", "title", "Rust", "--save", "--format", "csv")
	assert.Error(t, err)
}

func TestCLIZeroAndTags(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, home, "add", "Bare")
	require.NoError(t, err)
	_, err = execute(t, home, "add", "Tagged", "-t", "x")
	require.NoError(t, err)

	recs := listRecords(t, home, "zero", "--json")
	require.Len(t, recs, 1)
	assert.Equal(t, "Bare", recs[0].Title)

	out, err := execute(t, home, "tags")
	require.NoError(t, err)
	assert.Contains(t, out, "x")
}

func TestCLIConfigAndDataOverride(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, home, "init")
	require.NoError(t, err)

	_, err = execute(t, home, "config", "set", "search.ignore_case", "true")
	require.NoError(t, err)
	s, err := store.Load(home)
	require.NoError(t, err)
	assert.True(t, s.Config.Search.IgnoreCase)

	_, err = execute(t, home, "add", "Gradient Descent", "-t", "Optimization")
	require.NoError(t, err)
	assert.Len(t, listRecords(t, home, "search", "title", "gradient", "--json"), 1)

	other := filepath.Join(t.TempDir(), "other.json")
	_, err = execute(t, home, "--data", other, "add", "Elsewhere")
	require.NoError(t, err)
	_, err = os.Stat(other)
	assert.NoError(t, err)
	assert.Len(t, listRecords(t, home, "--data", other, "list", "--json"), 1)
}

func TestCLIBackupRestore(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, home, "add", "Kept", "-t", "x")
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "snap.keyline")
	_, err = execute(t, home, "backup", "-o", archive)
	require.NoError(t, err)

	out, err := execute(t, home, "restore", archive, "--preview")
	require.NoError(t, err)
	assert.Contains(t, out, "articles.json")

	_, err = execute(t, home, "restore", archive)
	assert.Error(t, err, "existing articles need --force")

	fresh := t.TempDir()
	_, err = execute(t, fresh, "restore", archive)
	require.NoError(t, err)
	recs := listRecords(t, fresh, "list", "--json")
	require.Len(t, recs, 1)
	assert.Equal(t, "Kept", recs[0].Title)
}
