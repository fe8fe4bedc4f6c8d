package catalog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokistudios/keyline/internal/article"
)

func dataPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "article_data.json")
}

func seed(t *testing.T, c *Catalog, id, title string, tags ...string) article.Article {
	t.Helper()
	a, err := c.Add(article.Article{ID: id, Title: title, Tags: tags})
	require.NoError(t, err)
	return a
}

func ids(articles []article.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	p := dataPath(t)
	c := Load(p)

	assert.Equal(t, 0, c.Len())
	assert.NoError(t, c.LoadError())
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err), "load must not create the file")

	require.NoError(t, c.Save())
	data, err := os.ReadFile(p)
	require.NoError(t, err)

	var doc map[string][]any
	require.NoError(t, json.Unmarshal(data, &doc))
	articles, ok := doc["articles"]
	require.True(t, ok, "saved file must carry an articles key")
	assert.Empty(t, articles)
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	p := dataPath(t)
	corrupt := []byte(`{"articles": [ {"id": "x", `)
	require.NoError(t, os.WriteFile(p, corrupt, 0644))

	var logs bytes.Buffer
	c := Load(p, WithLogger(log.New(&logs)))

	assert.Equal(t, 0, c.Len())
	assert.Error(t, c.LoadError())
	assert.Contains(t, logs.String(), "corrupt")

	onDisk, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, corrupt, onDisk, "corrupt file must be left untouched")
}

func TestLoadUnreadablePathStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	c := Load(dir)

	assert.Equal(t, 0, c.Len())
	assert.Error(t, c.LoadError())
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := dataPath(t)
	raw := `{"articles": [
		{"title": "no id"},
		{"id": "k1", "tags": ["a", "", "a", "b"]}
	]}`
	require.NoError(t, os.WriteFile(p, []byte(raw), 0644))

	c := Load(p)
	all := c.Articles()
	require.Len(t, all, 2)

	assert.NotEmpty(t, all[0].ID)
	assert.Equal(t, "no id", all[0].Title)
	assert.Equal(t, []string{}, all[0].Tags)

	assert.Equal(t, "k1", all[1].ID)
	assert.Equal(t, "", all[1].Title)
	assert.Equal(t, []string{"a", "b"}, all[1].Tags)
}

func TestLoadReassignsDuplicateIDs(t *testing.T) {
	p := dataPath(t)
	raw := `{"articles": [{"id": "dup", "title": "one"}, {"id": "dup", "title": "two"}]}`
	require.NoError(t, os.WriteFile(p, []byte(raw), 0644))

	all := Load(p).Articles()
	require.Len(t, all, 2)
	assert.Equal(t, "dup", all[0].ID)
	assert.NotEqual(t, "dup", all[1].ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := dataPath(t)
	c := New(p)
	seed(t, c, "", "Intro to Rust Ownership", "borrow checker", "lifetimes")
	seed(t, c, "", "空标签文章")
	seed(t, c, "", "Go <generics> & you", "type parameters", "constraints")

	reloaded := Load(p)
	assert.Equal(t, c.Articles(), reloaded.Articles())
	assert.NoError(t, reloaded.LoadError())
}

func TestSaveMatchesGolden(t *testing.T) {
	c := New(dataPath(t))
	seed(t, c, "a1b2c3d4", "Intro to Rust Ownership", "borrow checker", "lifetimes")
	seed(t, c, "e5f6a7b8", "机器学习 & 笔记")

	data, err := c.Marshal()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "articles", data)
}

func TestAddPersistsImmediately(t *testing.T) {
	p := dataPath(t)
	c := New(p)
	a := seed(t, c, "", "first", "x")

	reloaded := Load(p)
	got, ok := reloaded.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "first", got.Title)
}

func TestAddAssignsFreshIDOnCollision(t *testing.T) {
	c := New(dataPath(t))
	first := seed(t, c, "same", "one")
	second := seed(t, c, "same", "two")

	assert.Equal(t, "same", first.ID)
	assert.NotEqual(t, "same", second.ID)
	assert.Equal(t, 2, c.Len())
}

func TestAddKeepsChangesWhenSaveFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	var logs bytes.Buffer
	c := New(filepath.Join(blocker, "data.json"), WithLogger(log.New(&logs)))

	_, err := c.Add(article.New("kept", nil))
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Contains(t, logs.String(), "Save failed")
}

func TestRemove(t *testing.T) {
	p := dataPath(t)
	c := New(p)
	a := seed(t, c, "", "A")
	b := seed(t, c, "", "B")
	d := seed(t, c, "", "D")

	removed, err := c.Remove(b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{a.ID, d.ID}, ids(c.Articles()))
	assert.Equal(t, []string{a.ID, d.ID}, ids(Load(p).Articles()))
}

func TestRemoveUnknownIDMutatesNothing(t *testing.T) {
	p := dataPath(t)
	c := New(p)
	seed(t, c, "", "A")
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	removed, err := c.Remove("nope")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, c.Len())

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(dataPath(t))
	a := seed(t, c, "", "orig", "x")

	got, ok := c.Get(a.ID)
	require.True(t, ok)
	got.Title = "changed"
	got.AddTag("y")

	stored, _ := c.Get(a.ID)
	assert.Equal(t, "orig", stored.Title)
	assert.Equal(t, []string{"x"}, stored.Tags)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestUpdateCommitsEdits(t *testing.T) {
	p := dataPath(t)
	c := New(p)
	a := seed(t, c, "", "orig", "x")

	edited, _ := c.Get(a.ID)
	edited.Title = "renamed"
	edited.AddTag("y")
	edited.RemoveTag("x")

	ok, err := c.Update(edited)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, _ := Load(p).Get(a.ID)
	assert.Equal(t, "renamed", stored.Title)
	assert.Equal(t, []string{"y"}, stored.Tags)
}

func TestUpdateUnknownIDWritesNothing(t *testing.T) {
	p := dataPath(t)
	c := New(p)

	ok, err := c.Update(article.Article{ID: "ghost", Title: "boo"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, statErr := os.Stat(p)
	assert.True(t, os.IsNotExist(statErr))
}
