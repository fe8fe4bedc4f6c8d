package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/kokistudios/keyline/internal/article"
)

// Document is the top-level shape of the data file.
type Document struct {
	Articles []article.Record `json:"articles"`
}

// Catalog is the in-memory article collection backed by a single JSON file.
// Every mutation rewrites the whole file before returning.
type Catalog struct {
	path       string
	articles   []article.Article
	ignoreCase bool
	logger     *log.Logger
	loadErr    error
}

type Option func(*Catalog)

// WithLogger routes load/save warnings to l.
func WithLogger(l *log.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIgnoreCase makes the fuzzy searches compare case-insensitively.
// Exact tag search is unaffected.
func WithIgnoreCase(ignore bool) Option {
	return func(c *Catalog) { c.ignoreCase = ignore }
}

// New returns an empty catalog bound to path without reading it.
func New(path string, opts ...Option) *Catalog {
	c := &Catalog{
		path:     path,
		articles: []article.Article{},
		logger:   log.New(io.Discard),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load reads the data file at path. It never fails: a missing file yields an
// empty catalog, and an unreadable or corrupt file is logged and also yields
// an empty catalog. The corrupt file is left on disk until the next save.
func Load(path string, opts ...Option) *Catalog {
	c := New(path, opts...)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("Data file not found, starting empty", "path", path)
			return c
		}
		c.loadErr = fmt.Errorf("cannot read data file %s: %w", path, err)
		c.logger.Warn("Could not read data file, starting empty", "path", path, "err", err)
		return c
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		c.loadErr = fmt.Errorf("data file %s is not valid JSON: %w", path, err)
		c.logger.Warn("Data file is corrupt, starting empty", "path", path, "err", err)
		return c
	}

	seen := make(map[string]bool, len(doc.Articles))
	for _, r := range doc.Articles {
		a := article.FromRecord(r)
		for seen[a.ID] {
			c.logger.Warn("Duplicate article id, assigning a new one", "id", a.ID, "title", a.Title)
			a.ID = article.NewID()
		}
		seen[a.ID] = true
		c.articles = append(c.articles, a)
	}
	c.logger.Debug("Loaded data file", "path", path, "articles", len(c.articles))
	return c
}

// LoadError returns the error recovered during Load, if any.
func (c *Catalog) LoadError() error {
	return c.loadErr
}

func (c *Catalog) Path() string {
	return c.path
}

func (c *Catalog) Len() int {
	return len(c.articles)
}

// IgnoreCase reports the fuzzy-search case policy.
func (c *Catalog) IgnoreCase() bool {
	return c.ignoreCase
}

// Articles returns copies of every article in collection order.
func (c *Catalog) Articles() []article.Article {
	return cloneAll(c.articles)
}

// Marshal renders the collection in the data file format.
func (c *Catalog) Marshal() ([]byte, error) {
	doc := Document{Articles: make([]article.Record, len(c.articles))}
	for i, a := range c.articles {
		doc.Articles[i] = a.ToRecord()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal articles: %w", err)
	}
	return buf.Bytes(), nil
}

// Save rewrites the data file with the full collection.
func (c *Catalog) Save() error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := writeFile(c.path, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", c.path, err)
	}
	return nil
}

// persist saves and logs failures. The in-memory state stays authoritative
// either way.
func (c *Catalog) persist() error {
	if err := c.Save(); err != nil {
		c.logger.Error("Save failed, changes kept in memory only", "path", c.path, "err", err)
		return err
	}
	return nil
}

// Add appends a to the collection and persists. An article whose id is
// already taken gets a fresh one.
func (c *Catalog) Add(a article.Article) (article.Article, error) {
	a = a.Clone()
	a.Tags = article.NormalizeTags(a.Tags)
	for a.ID == "" || c.index(a.ID) >= 0 {
		a.ID = article.NewID()
	}
	c.articles = append(c.articles, a)
	return a.Clone(), c.persist()
}

// Remove deletes the first article with id. The file is only rewritten when
// something was removed.
func (c *Catalog) Remove(id string) (bool, error) {
	i := c.index(id)
	if i < 0 {
		return false, nil
	}
	c.articles = append(c.articles[:i], c.articles[i+1:]...)
	return true, c.persist()
}

// Get returns a copy of the article with id. Edits to the copy are committed
// with Update.
func (c *Catalog) Get(id string) (article.Article, bool) {
	i := c.index(id)
	if i < 0 {
		return article.Article{}, false
	}
	return c.articles[i].Clone(), true
}

// Update replaces the stored article that has a.ID and persists.
func (c *Catalog) Update(a article.Article) (bool, error) {
	i := c.index(a.ID)
	if i < 0 {
		return false, nil
	}
	a = a.Clone()
	a.Tags = article.NormalizeTags(a.Tags)
	c.articles[i] = a
	return true, c.persist()
}

func (c *Catalog) index(id string) int {
	for i, a := range c.articles {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(in []article.Article) []article.Article {
	out := make([]article.Article, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// writeFile replaces path through a temp file and rename, falling back to a
// plain overwrite when the rename is refused.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return os.WriteFile(path, data, 0644)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return os.WriteFile(path, data, 0644)
	}
	return nil
}
