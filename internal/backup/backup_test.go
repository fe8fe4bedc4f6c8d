package backup

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokistudios/keyline/internal/article"
	"github.com/kokistudios/keyline/internal/catalog"
	"github.com/kokistudios/keyline/internal/store"
)

var stamp = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func seededHome(t *testing.T) *store.Store {
	t.Helper()
	home := filepath.Join(t.TempDir(), ".keyline")
	require.NoError(t, store.Init(home, false))
	st, err := store.Load(home)
	require.NoError(t, err)

	cat := catalog.New(st.DataPath())
	_, err = cat.Add(article.New("Intro to Rust", []string{"borrow checker"}))
	require.NoError(t, err)
	_, err = cat.Add(article.New("Bare", nil))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(st.ExportDir(), "search_result_20260101_000000.json"), []byte("{}"), 0644))
	return st
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "keyline_20260304_050607.keyline", DefaultName(stamp))
}

func TestCreateAndReadManifest(t *testing.T) {
	st := seededHome(t)
	out := filepath.Join(t.TempDir(), "snap")

	path, m, err := Create(st, st.DataPath(), out, stamp)
	require.NoError(t, err)
	assert.Equal(t, out+Extension, path)
	assert.Equal(t, 2, m.Articles)
	assert.Equal(t, "article_data.json", m.DataFile)
	assert.ElementsMatch(t, []string{
		"config.yaml",
		"articles.json",
		"exports/search_result_20260101_000000.json",
	}, m.Files)

	read, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.Files, read.Files)
	assert.True(t, stamp.Equal(read.CreatedAt))
}

func TestCreateIntoDirectory(t *testing.T) {
	st := seededHome(t)
	dir := t.TempDir()

	path, _, err := Create(st, st.DataPath(), dir, stamp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultName(stamp)), path)
}

func TestRestoreIntoEmptyHome(t *testing.T) {
	src := seededHome(t)
	path, _, err := Create(src, src.DataPath(), filepath.Join(t.TempDir(), "b"), stamp)
	require.NoError(t, err)

	dst := &store.Store{Home: t.TempDir(), Config: store.DefaultConfig()}
	res, err := Restore(dst, dst.DataPath(), path, false)
	require.NoError(t, err)
	assert.True(t, res.ConfigRestored)
	assert.Equal(t, 1, res.ExportsWritten)

	restored := catalog.Load(dst.DataPath())
	assert.Equal(t, catalog.Load(src.DataPath()).Articles(), restored.Articles())
	_, err = os.Stat(filepath.Join(dst.ExportDir(), "search_result_20260101_000000.json"))
	assert.NoError(t, err)
}

func TestRestoreRefusesExistingData(t *testing.T) {
	st := seededHome(t)
	path, _, err := Create(st, st.DataPath(), filepath.Join(t.TempDir(), "b"), stamp)
	require.NoError(t, err)

	_, err = Restore(st, st.DataPath(), path, false)
	assert.ErrorIs(t, err, ErrDataExists)

	res, err := Restore(st, st.DataPath(), path, true)
	require.NoError(t, err)
	assert.False(t, res.ConfigRestored, "existing config.yaml is kept")
	assert.Equal(t, 1, res.ExportsSkipped)
}

func TestReadManifestRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.keyline")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0644))

	_, err := ReadManifest(path)
	assert.Error(t, err)
}

func TestRestoreRejectsCorruptArticleFile(t *testing.T) {
	st := seededHome(t)
	before, err := os.ReadFile(st.DataPath())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "damaged.keyline")
	f, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	require.NoError(t, writeEntry(tw, dataName, []byte(`{"articles": [`), stamp))
	require.NoError(t, writeEntry(tw, manifestName, []byte("version: \"1\"\n"), stamp))
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	_, err = Restore(st, st.DataPath(), path, true)
	assert.ErrorIs(t, err, ErrCorruptData)

	after, err := os.ReadFile(st.DataPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "a good file is never replaced by a damaged one")
}
