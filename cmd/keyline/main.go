package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kokistudios/keyline/internal/article"
	"github.com/kokistudios/keyline/internal/backup"
	"github.com/kokistudios/keyline/internal/catalog"
	"github.com/kokistudios/keyline/internal/export"
	keylinemcp "github.com/kokistudios/keyline/internal/mcp"
	"github.com/kokistudios/keyline/internal/store"
	"github.com/kokistudios/keyline/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:   "keyline",
		Short: "keyline: tag articles with key sentences and find them again",
		Long: "A personal knowledge base for articles. Each article carries an ordered list of key sentences " +
			"used as tags; search them by exact tag, by substring, or by title. Run without a command for the interactive menu.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu()
		},
	}

	root.Version = buildVersion()
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().String("home", "", "keyline home directory (default: $KEYLINE_HOME or ~/.keyline)")
	root.PersistentFlags().String("data", "", "Article data file (default: data.file from config.yaml)")
	_ = viper.BindPFlag("home", root.PersistentFlags().Lookup("home"))
	_ = viper.BindPFlag("data", root.PersistentFlags().Lookup("data"))
	cobra.OnInitialize(initConfig)

	root.AddGroup(
		&cobra.Group{ID: "articles", Title: "Article Commands:"},
		&cobra.Group{ID: "search", Title: "Search Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	for _, c := range []*cobra.Command{menuCmd(), addCmd(), listCmd(), showCmd(), editCmd(), deleteCmd()} {
		c.GroupID = "articles"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{searchCmd(), zeroCmd(), tagsCmd()} {
		c.GroupID = "search"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{initCmd(), configCmd(), doctorCmd(), backupCmd(), restoreCmd()} {
		c.GroupID = "config"
		root.AddCommand(c)
	}
	root.AddCommand(mcpCmd())
	root.AddCommand(completionCmd())

	return root
}

func initConfig() {
	viper.SetEnvPrefix("KEYLINE")
	viper.AutomaticEnv()
}

func homeDir() string {
	if h := viper.GetString("home"); h != "" {
		return h
	}
	return store.Home()
}

// loadStore returns the configured home. A home that was never initialized
// runs on defaults.
func loadStore() (*store.Store, error) {
	s, err := store.LoadOrDefault(homeDir())
	if err != nil {
		return nil, fmt.Errorf("cannot load keyline config (fix it or run 'keyline doctor'): %w", err)
	}
	return s, nil
}

func dataPath(s *store.Store) string {
	if p := viper.GetString("data"); p != "" {
		return p
	}
	return s.DataPath()
}

func openCatalog() (*store.Store, *catalog.Catalog, error) {
	s, err := loadStore()
	if err != nil {
		return nil, nil, err
	}
	cat := catalog.Load(dataPath(s),
		catalog.WithLogger(ui.Logger),
		catalog.WithIgnoreCase(s.Config.Search.IgnoreCase),
	)
	return s, cat, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func records(articles []article.Article) []article.Record {
	out := make([]article.Record, len(articles))
	for i, a := range articles {
		out[i] = a.ToRecord()
	}
	return out
}

// reportSave turns a persistence failure into a warning. The catalog already
// logged it; the change stays in memory for this process only.
func reportSave(err error) {
	if err != nil {
		ui.Warning("The change could not be written to disk and will be lost when keyline exits.")
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize the keyline home directory",
		Long:    "Create the keyline home (~/.keyline by default) with exports/ and config.yaml. Optional: keyline runs on defaults without it.",
		Example: "  keyline init\n  keyline init --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := homeDir()
			if err := store.Init(home, force); err != nil {
				return err
			}
			ui.Success("keyline initialized")
			ui.Detail("Home:", home)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rewrite config.yaml even if it already exists")
	return cmd
}

func menuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu()
		},
	}
}

func runMenu() error {
	s, cat, err := openCatalog()
	if err != nil {
		return err
	}
	m := newMenu(cat, s, newPrompter(os.Stdin, s.Config.Search.SuggestLimit))
	m.run()
	return nil
}

func addCmd() *cobra.Command {
	var tags []string
	var force bool
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an article",
		Long:  "Add an article with its key sentences. Repeated and empty tags are dropped. An existing article with the same title blocks the add unless --force is given.",
		Example: `  keyline add "Intro to Rust Ownership" -t "borrow checker" -t "lifetimes"
  keyline add "Weekly notes" --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := openCatalog()
			if err != nil {
				return err
			}
			title := args[0]
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("title must not be empty")
			}

			if dups := cat.FindByTitle(title); len(dups) > 0 && !force {
				ui.Warning(fmt.Sprintf("%d article(s) already use this title:", len(dups)))
				ui.ArticleList(dups, "")
				return fmt.Errorf("duplicate title (use --force to add anyway)")
			}

			a, err := cat.Add(article.New(title, tags))
			ui.Success(fmt.Sprintf("Added %q", a.Title))
			ui.Detail("ID:", a.ID)
			if len(a.Tags) > 0 {
				ui.Detail("Tags:", strings.Join(a.Tags, " | "))
			}
			reportSave(err)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "Key sentence (repeatable, order is kept)")
	cmd.Flags().BoolVar(&force, "force", false, "Add even if the title already exists")
	return cmd
}

func listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := openCatalog()
			if err != nil {
				return err
			}
			all := cat.Articles()
			if asJSON {
				return printJSON(records(all))
			}
			ui.ArticleList(all, "No articles yet. Add one with 'keyline add'.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print articles as JSON")
	return cmd
}

func showCmd() *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := openCatalog()
			if err != nil {
				return err
			}
			a, ok := cat.Get(args[0])
			if !ok {
				return fmt.Errorf("article not found: %s", args[0])
			}
			if markdown {
				ui.RenderMarkdown(ui.ArticleMarkdown(a))
				return nil
			}
			fmt.Fprint(ui.Out, ui.ArticleBlock(1, a))
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render the article as markdown")
	return cmd
}

func editCmd() *cobra.Command {
	var title, tagList string
	var addTags, removeTags []string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change an article's title or tags",
		Long:  "Change an article's title or tags. --tags replaces the whole list (comma separated); --add-tag and --remove-tag edit it in place.",
		Example: `  keyline edit a1b2c3d4 --title "Rust ownership, revisited"
  keyline edit a1b2c3d4 --tags "borrow checker, lifetimes"
  keyline edit a1b2c3d4 --add-tag "move semantics" --remove-tag lifetimes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := openCatalog()
			if err != nil {
				return err
			}
			a, ok := cat.Get(args[0])
			if !ok {
				return fmt.Errorf("article not found: %s", args[0])
			}

			changed := false
			if cmd.Flags().Changed("title") {
				if strings.TrimSpace(title) == "" {
					return fmt.Errorf("title must not be empty")
				}
				a.Title = title
				changed = true
			}
			if cmd.Flags().Changed("tags") {
				a.SetTags(article.ParseTagList(tagList))
				changed = true
			}
			for _, t := range addTags {
				if a.AddTag(t) {
					changed = true
				}
			}
			for _, t := range removeTags {
				if a.RemoveTag(t) {
					changed = true
				}
			}
			if !changed {
				ui.EmptyState("Nothing to change.")
				return nil
			}

			_, err = cat.Update(a)
			ui.Success(fmt.Sprintf("Updated %s", a.ID))
			fmt.Fprint(ui.Out, ui.ArticleBlock(1, a))
			reportSave(err)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&tagList, "tags", "", "Replace all tags (comma separated)")
	cmd.Flags().StringArrayVar(&addTags, "add-tag", nil, "Append a tag (repeatable)")
	cmd.Flags().StringArrayVar(&removeTags, "remove-tag", nil, "Remove a tag (repeatable)")
	return cmd
}

func deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := openCatalog()
			if err != nil {
				return err
			}
			a, ok := cat.Get(args[0])
			if !ok {
				return fmt.Errorf("article not found: %s", args[0])
			}
			if !yes {
				confirmed, err := ui.Confirm(fmt.Sprintf("Delete %q (%s)?", a.Title, a.ID))
				if err != nil {
					return err
				}
				if !confirmed {
					ui.EmptyState("Cancelled.")
					return nil
				}
			}
			_, err = cat.Remove(a.ID)
			ui.Success(fmt.Sprintf("Deleted %q", a.Title))
			reportSave(err)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

type searchFlags struct {
	save   bool
	format string
	asJSON bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.save, "save", false, "Write the results to the export directory")
	cmd.Flags().StringVar(&f.format, "format", "", "Export format: json or yaml (default: export.format from config.yaml)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print results as JSON")
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search articles by tags or title",
		Long:  "Search articles. Every keyword must match (AND). Tag search matches a keyword against any substring of any tag, or whole tags with --exact.",
	}
	cmd.AddCommand(searchTagsCmd())
	cmd.AddCommand(searchTitleCmd())
	return cmd
}

func searchTagsCmd() *cobra.Command {
	var exact bool
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "tags <keyword>...",
		Short: "Find articles whose tags match every keyword",
		Example: `  keyline search tags learn basic
  keyline search tags --exact "borrow checker" --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := catalog.KindTagFuzzy
			if exact {
				kind = catalog.KindTagExact
			}
			return runSearch(catalog.Query{Kind: kind, Keywords: args}, f)
		},
	}
	cmd.Flags().BoolVar(&exact, "exact", false, "Match whole tags exactly")
	f.register(cmd)
	return cmd
}

func searchTitleCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:     "title <keyword>...",
		Short:   "Find articles whose title contains every keyword",
		Example: `  keyline search title Rust Owner`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(catalog.Query{Kind: catalog.KindTitleFuzzy, Keywords: args}, f)
		},
	}
	f.register(cmd)
	return cmd
}

func runSearch(q catalog.Query, f searchFlags) error {
	s, cat, err := openCatalog()
	if err != nil {
		return err
	}
	found, err := cat.Search(q)
	if err != nil {
		return err
	}

	if f.asJSON {
		if err := printJSON(records(found)); err != nil {
			return err
		}
	} else {
		ui.SectionHeader(fmt.Sprintf("%d result(s) for %s", len(found), strings.Join(q.Keywords, ", ")))
		ui.ArticleList(found, "No matching articles.")
	}

	if !f.save {
		return nil
	}
	format := s.ExportFormat()
	if f.format != "" {
		if format, err = export.ParseFormat(f.format); err != nil {
			return err
		}
	}
	return saveResults(s, q, found, format, time.Now())
}

func saveResults(s *store.Store, q catalog.Query, found []article.Article, format export.Format, at time.Time) error {
	path, err := export.Write(s.ExportDir(), export.NewResult(q.Kind.Label(), q.Keywords, found, at), format)
	if errors.Is(err, export.ErrNoResults) {
		ui.EmptyState("No results to save.")
		return nil
	}
	if err != nil {
		ui.Error(fmt.Sprintf("Saving failed: %v", err))
		return nil
	}
	ui.Success(fmt.Sprintf("Results saved to %s", path))
	return nil
}

func zeroCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "zero",
		Short: "List articles without tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := openCatalog()
			if err != nil {
				return err
			}
			found := cat.ZeroTag()
			if asJSON {
				return printJSON(records(found))
			}
			ui.ArticleList(found, "Every article has at least one tag.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print articles as JSON")
	return cmd
}

func tagsCmd() *cobra.Command {
	var byCount bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := openCatalog()
			if err != nil {
				return err
			}
			tags := cat.AllTags()
			if len(tags) == 0 {
				ui.EmptyState("No tags yet.")
				return nil
			}
			counts := cat.TagCounts()
			if byCount {
				sort.SliceStable(tags, func(i, j int) bool { return counts[tags[i]] > counts[tags[j]] })
			}
			var rows [][]string
			for _, t := range tags {
				rows = append(rows, []string{fmt.Sprint(counts[t]), t})
			}
			ui.Table([]string{"ARTICLES", "TAG"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byCount, "by-count", false, "Sort by number of articles, most used first")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit keyline configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(ui.Out, string(data))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a keyline configuration value. Valid keys: " + strings.Join(store.ConfigKeys, ", ") + ".",
		Example: `  keyline config set search.ignore_case true
  keyline config set export.format yaml
  keyline config set data.file /srv/notes/articles.json`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: store.ConfigKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the keyline home and the article file",
		Long:  "Check the keyline home, config.yaml, and the article file. Exits 1 when warnings are found and 2 on errors. --fix recreates missing directories and config; the article file is never modified.",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := homeDir()

			if fix {
				ui.Banner("DOCTOR", "repair mode")
				fixed := store.FixIssues(home)
				for _, f := range fixed {
					ui.Success(fmt.Sprintf("[FIXED] %s", f))
				}
				if len(fixed) == 0 {
					ui.EmptyState("Nothing to fix.")
				}
			} else {
				ui.Banner("DOCTOR", "health check")
			}

			issues := store.CheckHealth(home)
			if p := viper.GetString("data"); p != "" {
				issues = append(issues, store.CheckDataIntegrity(p)...)
			}

			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}

			if hasError {
				os.Exit(2)
			}
			os.Exit(1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Recreate missing directories and config.yaml")
	return cmd
}

func backupCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the article file, config and saved searches",
		Long: `Write a gzipped tar archive of the keyline home: config.yaml, the article
file, and every saved search result. Restore it with 'keyline restore'.`,
		Example: `  keyline backup
  keyline backup -o ~/Desktop/articles.keyline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			path, m, err := backup.Create(s, dataPath(s), outputPath, time.Now())
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			sizeStr := ""
			if info, _ := os.Stat(path); info != nil {
				sizeStr = fmt.Sprintf(" (%d bytes)", info.Size())
			}
			ui.Success(fmt.Sprintf("Backed up %d article(s) to %s%s", m.Articles, path, sizeStr))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file or directory (default: keyline_<timestamp>.keyline)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var preview, force bool
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore a backup made with 'keyline backup'",
		Long: `Restore the article file and saved searches from a backup archive.

An article file that already holds articles is only replaced with --force.
config.yaml is restored only when the home has none, and existing saved
searches are never overwritten. Use --preview to inspect the archive first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if preview {
				m, err := backup.ReadManifest(args[0])
				if err != nil {
					return fmt.Errorf("failed to read backup: %w", err)
				}
				ui.Banner("RESTORE PREVIEW", args[0])
				ui.KeyValue("Created:  ", m.CreatedAt.Format("2006-01-02 15:04:05"))
				ui.KeyValue("Data file:", m.DataFile)
				ui.KeyValue("Articles: ", fmt.Sprintf("%d", m.Articles))
				ui.SectionHeader("Files")
				for _, f := range m.Files {
					ui.Detail("", f)
				}
				return nil
			}

			s, err := loadStore()
			if err != nil {
				return err
			}
			res, err := backup.Restore(s, dataPath(s), args[0], force)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			ui.Success(fmt.Sprintf("Restored %d article(s) to %s", res.Manifest.Articles, res.DataPath))
			if res.ConfigRestored {
				ui.KeyValue("Config:        ", "restored")
			}
			ui.KeyValue("Saved searches:", fmt.Sprintf("%d written, %d already present", res.ExportsWritten, res.ExportsSkipped))
			return nil
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "Show the archive contents without restoring")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an article file that already holds articles")
	return cmd
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol integration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run keyline as an MCP server",
		Long:  "Start keyline as a Model Context Protocol (MCP) server over stdio, so MCP clients can search and tag articles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cat, err := openCatalog()
			if err != nil {
				return err
			}
			server := keylinemcp.NewServer(cat, s, version)
			return server.Run(context.Background())
		},
	})
	return cmd
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Long:      "Generate shell completion scripts for bash, zsh, or fish. Output the script to stdout for sourcing in your shell profile.",
		Example:   "  keyline completion bash > ~/.bashrc.d/keyline\n  keyline completion zsh > ~/.zfunc/_keyline\n  keyline completion fish > ~/.config/fish/completions/keyline.fish",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}
