package article

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const idLength = 8

// Article is a titled entry carrying an ordered set of key-sentence tags.
type Article struct {
	ID    string
	Title string
	Tags  []string
}

// Record is the on-disk shape of an Article.
type Record struct {
	ID    string   `json:"id" yaml:"id"`
	Title string   `json:"title" yaml:"title"`
	Tags  []string `json:"tags" yaml:"tags"`
}

// NewID returns a short random identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// New builds an article with a fresh id. Tags are normalized.
func New(title string, tags []string) Article {
	return Article{
		ID:    NewID(),
		Title: title,
		Tags:  NormalizeTags(tags),
	}
}

func (a *Article) AddTag(tag string) bool {
	if tag == "" || a.HasTag(tag) {
		return false
	}
	a.Tags = append(a.Tags, tag)
	return true
}

func (a *Article) RemoveTag(tag string) bool {
	for i, t := range a.Tags {
		if t == tag {
			a.Tags = append(a.Tags[:i:i], a.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// SetTags replaces every tag on the article.
func (a *Article) SetTags(tags []string) {
	a.Tags = NormalizeTags(tags)
}

func (a Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAllTags reports whether every tag is present. An empty list matches.
func (a Article) HasAllTags(tags []string) bool {
	for _, tag := range tags {
		if !a.HasTag(tag) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no memory with a.
func (a Article) Clone() Article {
	c := a
	c.Tags = append([]string{}, a.Tags...)
	return c
}

func (a Article) ToRecord() Record {
	return Record{
		ID:    a.ID,
		Title: a.Title,
		Tags:  append([]string{}, a.Tags...),
	}
}

// FromRecord rebuilds an article, normalizing tags and assigning an id when
// the record has none.
func FromRecord(r Record) Article {
	id := r.ID
	if id == "" {
		id = NewID()
	}
	return Article{
		ID:    id,
		Title: r.Title,
		Tags:  NormalizeTags(r.Tags),
	}
}

func (a Article) String() string {
	if len(a.Tags) == 0 {
		return fmt.Sprintf("%s  %s  (no tags)", a.ID, a.Title)
	}
	return fmt.Sprintf("%s  %s  [%s]", a.ID, a.Title, strings.Join(a.Tags, " | "))
}
