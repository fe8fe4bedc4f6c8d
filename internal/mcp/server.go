package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/keyline/internal/article"
	"github.com/kokistudios/keyline/internal/catalog"
	"github.com/kokistudios/keyline/internal/export"
	"github.com/kokistudios/keyline/internal/store"
)

// Server wraps the MCP server with a loaded catalog.
type Server struct {
	catalog *catalog.Catalog
	store   *store.Store
	pending *PendingStore
	server  *mcp.Server

	// catalog is not safe for concurrent use; tool calls may arrive in parallel.
	mu  sync.Mutex
	now func() time.Time
}

// NewServer creates a keyline MCP server over cat. st supplies the export
// directory and format.
func NewServer(cat *catalog.Catalog, st *store.Store, version string) *Server {
	s := &Server{
		catalog: cat,
		store:   st,
		pending: NewPendingStore(),
		now:     time.Now,
	}

	impl := &mcp.Implementation{
		Name:    "keyline",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	stop := s.pending.StartCleanupRoutine(5 * time.Minute)
	defer close(stop)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "keyline_search_tags",
		Description: "Search articles by their key-sentence tags. Every keyword must match: by default a keyword " +
			"matches when it is a substring of at least one tag; with exact=true each keyword must equal a tag. " +
			"Set save=true to also write the results to an export file.",
	}, s.handleSearchTags)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "keyline_search_title",
		Description: "Search articles whose title contains every keyword as a substring. " +
			"Set save=true to also write the results to an export file.",
	}, s.handleSearchTitle)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "keyline_zero_tag",
		Description: "List articles that have no key-sentence tags yet. Use keyline_article_update to tag them.",
	}, s.handleZeroTag)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "keyline_article_show",
		Description: "Get one article by id, with its title and key-sentence tags in order.",
	}, s.handleArticleShow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "keyline_article_add",
		Description: "Add an article with a title and key-sentence tags. Duplicate and empty tags are dropped. " +
			"If another article already has the same title nothing is saved: the result lists the duplicates " +
			"and a pending_id. Ask the user, then call keyline_article_confirm with that pending_id.",
	}, s.handleArticleAdd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "keyline_article_confirm",
		Description: "Commit a pending article addition returned by keyline_article_add after the user approved the duplicate title.",
	}, s.handleArticleConfirm)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "keyline_article_update",
		Description: "Change an article's title or tags. tags replaces the whole list; add_tags and remove_tags " +
			"edit it in place. Omitted fields are left alone.",
	}, s.handleArticleUpdate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "keyline_article_delete",
		Description: "Delete an article by id. BEFORE CALLING: show the article to the user and ask for explicit " +
			"permission, then call with user_confirmed=true.",
	}, s.handleArticleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "keyline_tags_list",
		Description: "List every tag in use with the number of articles carrying it. Use this to discover tags before searching.",
	}, s.handleTagsList)
}

// ArticleSummary is the wire form of an article.
type ArticleSummary struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func summarize(articles []article.Article) []ArticleSummary {
	out := make([]ArticleSummary, len(articles))
	for i, a := range articles {
		r := a.ToRecord()
		out[i] = ArticleSummary{ID: r.ID, Title: r.Title, Tags: r.Tags}
	}
	return out
}

// SearchResult is the output of both search tools.
type SearchResult struct {
	SearchType string           `json:"search_type"`
	Keywords   []string         `json:"keywords"`
	Articles   []ArticleSummary `json:"articles"`
	Count      int              `json:"count"`
	SavedTo    string           `json:"saved_to,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// SearchTagsArgs defines the input for keyline_search_tags.
type SearchTagsArgs struct {
	Keywords []string `json:"keywords" jsonschema:"Keywords that must all match the article's tags"`
	Exact    bool     `json:"exact,omitempty" jsonschema:"If true, each keyword must equal a tag exactly (default: substring match)"`
	Save     bool     `json:"save,omitempty" jsonschema:"If true, write the results to an export file"`
}

func (s *Server) handleSearchTags(ctx context.Context, req *mcp.CallToolRequest, args SearchTagsArgs) (*mcp.CallToolResult, any, error) {
	kind := catalog.KindTagFuzzy
	if args.Exact {
		kind = catalog.KindTagExact
	}
	out, err := s.search(catalog.Query{Kind: kind, Keywords: args.Keywords}, args.Save)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// SearchTitleArgs defines the input for keyline_search_title.
type SearchTitleArgs struct {
	Keywords []string `json:"keywords" jsonschema:"Keywords that must all appear in the title"`
	Save     bool     `json:"save,omitempty" jsonschema:"If true, write the results to an export file"`
}

func (s *Server) handleSearchTitle(ctx context.Context, req *mcp.CallToolRequest, args SearchTitleArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.search(catalog.Query{Kind: catalog.KindTitleFuzzy, Keywords: args.Keywords}, args.Save)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) search(q catalog.Query, save bool) (SearchResult, error) {
	s.mu.Lock()
	found, err := s.catalog.Search(q)
	s.mu.Unlock()
	if err != nil {
		return SearchResult{}, err
	}

	out := SearchResult{
		SearchType: q.Kind.Label(),
		Keywords:   append([]string{}, q.Keywords...),
		Articles:   summarize(found),
		Count:      len(found),
	}
	if len(found) == 0 {
		out.Message = "No matching articles. Try fewer keywords, or keyline_tags_list to see which tags exist."
	}
	if !save {
		return out, nil
	}

	result := export.NewResult(q.Kind.Label(), q.Keywords, found, s.now())
	path, err := export.Write(s.store.ExportDir(), result, s.store.ExportFormat())
	switch {
	case errors.Is(err, export.ErrNoResults):
		out.Message = "No results to save."
	case err != nil:
		return out, fmt.Errorf("failed to save results: %w", err)
	default:
		out.SavedTo = path
	}
	return out, nil
}

// ZeroTagArgs defines the input for keyline_zero_tag.
type ZeroTagArgs struct{}

// ArticlesResult is a plain list of articles.
type ArticlesResult struct {
	Articles []ArticleSummary `json:"articles"`
	Count    int              `json:"count"`
	Message  string           `json:"message,omitempty"`
}

func (s *Server) handleZeroTag(ctx context.Context, req *mcp.CallToolRequest, args ZeroTagArgs) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	found := s.catalog.ZeroTag()
	s.mu.Unlock()

	out := ArticlesResult{Articles: summarize(found), Count: len(found)}
	if len(found) == 0 {
		out.Message = "Every article has at least one tag."
	}
	return nil, out, nil
}

// ArticleShowArgs defines input for keyline_article_show.
type ArticleShowArgs struct {
	ID string `json:"id" jsonschema:"The article id (e.g. a1b2c3d4)"`
}

func (s *Server) handleArticleShow(ctx context.Context, req *mcp.CallToolRequest, args ArticleShowArgs) (*mcp.CallToolResult, any, error) {
	if args.ID == "" {
		return nil, nil, fmt.Errorf("article id is required")
	}
	s.mu.Lock()
	a, ok := s.catalog.Get(args.ID)
	s.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("article not found: %s", args.ID)
	}
	return nil, summarize([]article.Article{a})[0], nil
}

// ArticleAddArgs defines input for keyline_article_add.
type ArticleAddArgs struct {
	Title string   `json:"title" jsonschema:"Article title"`
	Tags  []string `json:"tags,omitempty" jsonschema:"Key sentences describing the article, in order"`
}

// ArticleAddResult is the output of keyline_article_add and keyline_article_confirm.
type ArticleAddResult struct {
	Status     string           `json:"status"` // added or pending
	Article    *ArticleSummary  `json:"article,omitempty"`
	PendingID  string           `json:"pending_id,omitempty"`
	Duplicates []ArticleSummary `json:"duplicates,omitempty"`
	Message    string           `json:"message,omitempty"`
}

func (s *Server) handleArticleAdd(ctx context.Context, req *mcp.CallToolRequest, args ArticleAddArgs) (*mcp.CallToolResult, any, error) {
	if args.Title == "" {
		return nil, nil, fmt.Errorf("title is required")
	}
	a := article.New(args.Title, args.Tags)

	s.mu.Lock()
	defer s.mu.Unlock()

	if dups := s.catalog.FindByTitle(args.Title); len(dups) > 0 {
		p := &PendingAdd{Article: a, Duplicates: summarize(dups)}
		id := s.pending.Create(p)
		return nil, ArticleAddResult{
			Status:     "pending",
			PendingID:  id,
			Duplicates: p.Duplicates,
			Message: fmt.Sprintf("%d article(s) already use this title. Ask the user whether to add it anyway, "+
				"then call keyline_article_confirm with pending_id.", len(dups)),
		}, nil
	}

	return nil, s.addLocked(a), nil
}

// ArticleConfirmArgs defines input for keyline_article_confirm.
type ArticleConfirmArgs struct {
	PendingID string `json:"pending_id" jsonschema:"The pending_id returned by keyline_article_add"`
}

func (s *Server) handleArticleConfirm(ctx context.Context, req *mcp.CallToolRequest, args ArticleConfirmArgs) (*mcp.CallToolResult, any, error) {
	p, err := s.pending.Take(args.PendingID)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.addLocked(p.Article), nil
}

// addLocked stores a. The caller holds s.mu.
func (s *Server) addLocked(a article.Article) ArticleAddResult {
	added, err := s.catalog.Add(a)
	sum := summarize([]article.Article{added})[0]
	out := ArticleAddResult{Status: "added", Article: &sum}
	if err != nil {
		out.Message = fmt.Sprintf("Added in memory but saving failed: %v", err)
	}
	return out
}

// ArticleUpdateArgs defines input for keyline_article_update.
type ArticleUpdateArgs struct {
	ID         string   `json:"id" jsonschema:"The article id"`
	Title      string   `json:"title,omitempty" jsonschema:"New title (optional)"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Replace all tags with this list (optional)"`
	AddTags    []string `json:"add_tags,omitempty" jsonschema:"Tags to append (optional)"`
	RemoveTags []string `json:"remove_tags,omitempty" jsonschema:"Tags to remove (optional)"`
}

// ArticleUpdateResult is the output of keyline_article_update.
type ArticleUpdateResult struct {
	Article ArticleSummary `json:"article"`
	Message string         `json:"message,omitempty"`
}

func (s *Server) handleArticleUpdate(ctx context.Context, req *mcp.CallToolRequest, args ArticleUpdateArgs) (*mcp.CallToolResult, any, error) {
	if args.ID == "" {
		return nil, nil, fmt.Errorf("article id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.catalog.Get(args.ID)
	if !ok {
		return nil, nil, fmt.Errorf("article not found: %s", args.ID)
	}
	if args.Title != "" {
		a.Title = args.Title
	}
	if args.Tags != nil {
		a.SetTags(args.Tags)
	}
	for _, t := range args.AddTags {
		a.AddTag(t)
	}
	for _, t := range args.RemoveTags {
		a.RemoveTag(t)
	}

	out := ArticleUpdateResult{Article: summarize([]article.Article{a})[0]}
	if _, err := s.catalog.Update(a); err != nil {
		out.Message = fmt.Sprintf("Updated in memory but saving failed: %v", err)
	}
	return nil, out, nil
}

// ArticleDeleteArgs defines input for keyline_article_delete.
type ArticleDeleteArgs struct {
	ID            string `json:"id" jsonschema:"The article id"`
	UserConfirmed bool   `json:"user_confirmed" jsonschema:"REQUIRED. Set true ONLY after the user explicitly approved the deletion."`
}

// ArticleDeleteResult is the output of keyline_article_delete.
type ArticleDeleteResult struct {
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleArticleDelete(ctx context.Context, req *mcp.CallToolRequest, args ArticleDeleteArgs) (*mcp.CallToolResult, any, error) {
	if !args.UserConfirmed {
		return nil, nil, fmt.Errorf("user_confirmed must be true - ask the user before deleting an article")
	}

	s.mu.Lock()
	removed, err := s.catalog.Remove(args.ID)
	s.mu.Unlock()

	if !removed {
		return nil, nil, fmt.Errorf("article not found: %s", args.ID)
	}
	out := ArticleDeleteResult{Deleted: true}
	if err != nil {
		out.Message = fmt.Sprintf("Deleted in memory but saving failed: %v", err)
	}
	return nil, out, nil
}

// TagsListArgs defines input for keyline_tags_list.
type TagsListArgs struct {
	Sort string `json:"sort,omitempty" jsonschema:"'first_seen' (default) or 'count' (most used first)"`
}

// TagCount pairs a tag with how many articles carry it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagsListResult is the output of keyline_tags_list.
type TagsListResult struct {
	Tags    []TagCount `json:"tags"`
	Count   int        `json:"count"`
	Message string     `json:"message,omitempty"`
}

func (s *Server) handleTagsList(ctx context.Context, req *mcp.CallToolRequest, args TagsListArgs) (*mcp.CallToolResult, any, error) {
	s.mu.Lock()
	tags := s.catalog.AllTags()
	counts := s.catalog.TagCounts()
	s.mu.Unlock()

	out := TagsListResult{Tags: make([]TagCount, len(tags)), Count: len(tags)}
	for i, t := range tags {
		out.Tags[i] = TagCount{Tag: t, Count: counts[t]}
	}
	if args.Sort == "count" {
		sort.SliceStable(out.Tags, func(i, j int) bool {
			return out.Tags[i].Count > out.Tags[j].Count
		})
	}
	if len(tags) == 0 {
		out.Message = "No tags yet. Add articles with keyline_article_add."
	}
	return nil, out, nil
}
