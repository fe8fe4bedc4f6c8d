package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/kokistudios/keyline/internal/article"
	"github.com/kokistudios/keyline/internal/catalog"
	"github.com/kokistudios/keyline/internal/store"
	"github.com/kokistudios/keyline/internal/ui"
)

// menu is the interactive front end. It only talks to the catalog through
// its exported operations.
type menu struct {
	cat   *catalog.Catalog
	store *store.Store
	p     prompter
	now   func() time.Time
}

func newMenu(cat *catalog.Catalog, st *store.Store, p prompter) *menu {
	return &menu{cat: cat, store: st, p: p, now: time.Now}
}

type menuItem struct {
	key    string
	label  string
	action func()
}

// choose shows items until the user picks 0 or input ends. It reports false
// on end of input.
func (m *menu) choose(title string, items []menuItem, back string) bool {
	for {
		ui.SectionHeader(title)
		for _, it := range items {
			fmt.Fprintf(ui.Err, "  %s. %s\n", it.key, it.label)
		}
		fmt.Fprintf(ui.Err, "  0. %s\n\n", back)

		choice, ok := m.p.Line("Choose an option: ")
		if !ok {
			return false
		}
		if choice == "0" {
			return true
		}
		found := false
		for _, it := range items {
			if it.key == choice {
				it.action()
				found = true
				break
			}
		}
		if !found {
			ui.Error("Invalid option, try again.")
		}
	}
}

func (m *menu) run() {
	ui.Banner("keyline", m.cat.Path())
	m.choose("Main menu", []menuItem{
		{"1", "Manage articles", m.articleMenu},
		{"2", "Search by tags", m.searchTags},
		{"3", "Search by title", m.searchTitle},
		{"4", "Untagged articles", m.zeroTag},
	}, "Quit")

	ui.Info("Saving data...")
	if err := m.cat.Save(); err != nil {
		ui.Error(fmt.Sprintf("Save failed: %v", err))
	}
	ui.Success("Bye.")
}

func (m *menu) articleMenu() {
	m.choose("Articles", []menuItem{
		{"1", "List all articles", func() { m.listAll() }},
		{"2", "Add articles", m.addArticles},
		{"3", "Modify an article", m.modifyArticle},
		{"4", "Delete an article", m.deleteArticle},
	}, "Back")
}

func (m *menu) listAll() bool {
	ui.SectionHeader("All articles")
	return ui.ArticleList(m.cat.Articles(), "No articles yet.")
}

// addArticles keeps adding until an empty title is entered.
func (m *menu) addArticles() {
	ui.Info("Add articles. Enter an empty title to stop.")
	for {
		title, ok := m.p.Line("\nTitle: ")
		if !ok || title == "" {
			ui.Info("Done adding.")
			return
		}
		tags, ok := m.p.Tags("Key sentences:", m.cat.AllTags())
		if !ok {
			ui.EmptyState("Cancelled, not added.")
			continue
		}

		if dups := m.cat.FindByTitle(title); len(dups) > 0 {
			ui.Warning(fmt.Sprintf("%d article(s) already use this title:", len(dups)))
			ui.ArticleList(dups, "")
			if !m.p.Confirm("Add it anyway?") {
				ui.EmptyState("Not added.")
				continue
			}
		}

		a, err := m.cat.Add(article.New(title, tags))
		ui.Success(fmt.Sprintf("Added %q (ID: %s)", a.Title, a.ID))
		ui.TagLines(a.Tags, "(no tags)")
		reportSave(err)
	}
}

// pick asks for an article id until a known one is entered or the user quits.
func (m *menu) pick(prompt string, allowed func(article.Article) bool) (article.Article, bool) {
	for {
		id, ok := m.p.Line(prompt + " ('q' to go back): ")
		if !ok || strings.EqualFold(id, "q") {
			return article.Article{}, false
		}
		a, found := m.cat.Get(id)
		if found && (allowed == nil || allowed(a)) {
			return a, true
		}
		ui.Error(fmt.Sprintf("No article with ID %q.", id))
	}
}

func (m *menu) modifyArticle() {
	if !m.listAll() {
		return
	}
	for {
		a, ok := m.pick("ID of the article to modify", nil)
		if !ok {
			return
		}
		fmt.Fprint(ui.Out, ui.ArticleBlock(1, a))

		fmt.Fprintln(ui.Err, "\n  1. Change title\n  2. Change tags\n  q. Back")
		choice, _ := m.p.Line("Choose: ")
		switch strings.ToLower(choice) {
		case "1":
			title, _ := m.p.Line("New title: ")
			if title == "" {
				ui.Error("Title cannot be empty.")
				continue
			}
			old := a.Title
			a.Title = title
			_, err := m.cat.Update(a)
			ui.Success(fmt.Sprintf("Title changed from %q to %q.", old, title))
			reportSave(err)
			return
		case "2":
			fmt.Fprintln(ui.Err, "Current tags:")
			ui.TagLines(a.Tags, "(none)")
			tags, ok := m.p.Tags("New key sentences:", m.cat.AllTags())
			if !ok {
				ui.EmptyState("Cancelled, tags unchanged.")
				return
			}
			a.SetTags(tags)
			_, err := m.cat.Update(a)
			ui.Success("Tags updated:")
			ui.TagLines(a.Tags, "(cleared)")
			reportSave(err)
			return
		case "q":
			return
		default:
			ui.Error("Invalid choice.")
		}
	}
}

func (m *menu) deleteArticle() {
	if !m.listAll() {
		return
	}
	a, ok := m.pick("ID of the article to delete", nil)
	if !ok {
		return
	}
	if !m.p.Confirm(fmt.Sprintf("Delete %q (ID: %s)?", a.Title, a.ID)) {
		ui.EmptyState("Cancelled.")
		return
	}
	if removed, err := m.cat.Remove(a.ID); removed {
		ui.Success(fmt.Sprintf("Deleted %q.", a.Title))
		reportSave(err)
	}
}

// keywords reads search terms one per line until a blank line.
func (m *menu) keywords(prompt string) []string {
	fmt.Fprintf(ui.Err, "%s %s\n", prompt, ui.Dim("(one per line, blank line to finish)"))
	var kws []string
	for {
		kw, ok := m.p.Line("  > ")
		if !ok || kw == "" {
			return kws
		}
		kws = append(kws, kw)
	}
}

func (m *menu) searchTags() {
	m.search(catalog.KindTagFuzzy, "Tag keywords:")
}

func (m *menu) searchTitle() {
	m.search(catalog.KindTitleFuzzy, "Title keywords:")
}

func (m *menu) search(kind catalog.Kind, prompt string) {
	if m.cat.Len() == 0 {
		ui.EmptyState("No articles to search.")
		return
	}
	kws := m.keywords(prompt)
	if len(kws) == 0 {
		ui.Error("No keywords entered.")
		return
	}

	q := catalog.Query{Kind: kind, Keywords: kws}
	found, err := m.cat.Search(q)
	if err != nil {
		ui.Error(err.Error())
		return
	}
	ui.SectionHeader(fmt.Sprintf("Results (must contain: %s)", strings.Join(kws, ", ")))
	ui.ArticleList(found, "No matching articles.")

	if m.p.Confirm("Save these results?") {
		saveResults(m.store, q, found, m.store.ExportFormat(), m.now())
	}
}

func (m *menu) zeroTag() {
	ui.SectionHeader("Untagged articles")
	zero := m.cat.ZeroTag()
	if !ui.ArticleList(zero, "Every article has at least one tag.") {
		return
	}

	untagged := func(a article.Article) bool { return len(a.Tags) == 0 }
	a, ok := m.pick("ID of the article to tag", untagged)
	if !ok {
		return
	}
	tags, ok := m.p.Tags(fmt.Sprintf("Key sentences for %q:", a.Title), m.cat.AllTags())
	if !ok {
		ui.EmptyState("Cancelled, tags unchanged.")
		return
	}
	a.SetTags(tags)
	_, err := m.cat.Update(a)
	ui.Success("Tags set:")
	ui.TagLines(a.Tags, "(none)")
	reportSave(err)
}
