package catalog

import (
	"errors"
	"fmt"

	"github.com/kokistudios/keyline/internal/article"
)

// ErrNoKeywords is returned by the fuzzy searches when called without terms.
var ErrNoKeywords = errors.New("at least one search keyword is required")

type Kind int

const (
	KindTagExact Kind = iota
	KindTagFuzzy
	KindTitleFuzzy
)

// Label is the search_type written to export files.
func (k Kind) Label() string {
	switch k {
	case KindTagExact:
		return "exact_tag_search"
	case KindTagFuzzy:
		return "tag_search"
	case KindTitleFuzzy:
		return "title_search"
	default:
		return "unknown"
	}
}

// Query selects one of the search algorithms.
type Query struct {
	Kind     Kind
	Keywords []string
}

// Search runs q against the collection.
func (c *Catalog) Search(q Query) ([]article.Article, error) {
	switch q.Kind {
	case KindTagExact:
		return c.SearchTagsExact(q.Keywords), nil
	case KindTagFuzzy:
		return c.SearchTagsFuzzy(q.Keywords)
	case KindTitleFuzzy:
		return c.SearchTitleFuzzy(q.Keywords)
	default:
		return nil, fmt.Errorf("unknown search kind %d", q.Kind)
	}
}

// SearchTagsExact returns articles carrying every tag, compared by exact
// string equality. An empty tag list matches every article.
func (c *Catalog) SearchTagsExact(tags []string) []article.Article {
	return c.filter(func(a article.Article) bool {
		return a.HasAllTags(tags)
	})
}

// SearchTagsFuzzy returns articles where each keyword is a substring of at
// least one of the article's tags.
func (c *Catalog) SearchTagsFuzzy(keywords []string) ([]article.Article, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	return c.filter(func(a article.Article) bool {
		for _, kw := range keywords {
			if !article.AnyTagContains(a.Tags, kw, c.ignoreCase) {
				return false
			}
		}
		return true
	}), nil
}

// SearchTitleFuzzy returns articles whose title contains every keyword.
func (c *Catalog) SearchTitleFuzzy(keywords []string) ([]article.Article, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	return c.filter(func(a article.Article) bool {
		for _, kw := range keywords {
			if !article.ContainsFold(a.Title, kw, c.ignoreCase) {
				return false
			}
		}
		return true
	}), nil
}

// ZeroTag returns articles with no tags.
func (c *Catalog) ZeroTag() []article.Article {
	return c.filter(func(a article.Article) bool {
		return len(a.Tags) == 0
	})
}

// FindByTitle returns articles whose title equals title exactly.
func (c *Catalog) FindByTitle(title string) []article.Article {
	return c.filter(func(a article.Article) bool {
		return a.Title == title
	})
}

// AllTags is the distinct set of tags in use, in first-seen order. It is
// computed on every call.
func (c *Catalog) AllTags() []string {
	lists := make([][]string, len(c.articles))
	for i, a := range c.articles {
		lists[i] = a.Tags
	}
	return article.UnionTags(lists...)
}

// TagCounts maps each tag in use to the number of articles carrying it.
func (c *Catalog) TagCounts() map[string]int {
	counts := make(map[string]int)
	for _, a := range c.articles {
		for _, t := range a.Tags {
			counts[t]++
		}
	}
	return counts
}

func (c *Catalog) filter(keep func(article.Article) bool) []article.Article {
	var out []article.Article
	for _, a := range c.articles {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}
