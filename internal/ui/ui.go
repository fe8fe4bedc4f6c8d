package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/kokistudios/keyline/internal/article"
	"github.com/kokistudios/keyline/internal/suggest"
)

// ErrCancelled is returned by interactive prompts dismissed with esc or ctrl+c.
var ErrCancelled = errors.New("cancelled")

// Logger is the package-level structured logger.
var Logger *log.Logger

// Out receives data (lists, tables, rendered articles); Err receives
// messages and prompts.
var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

// Styles, set up by Init().
var (
	headerStyle  lipgloss.Style
	bannerStyle  lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	promptStyle  lipgloss.Style
	idStyle      lipgloss.Style
	tagStyle     lipgloss.Style
)

// Init sets up color detection, lipgloss styles, and the structured logger.
// Call this once at CLI startup.
func Init(noColorFlag bool) {
	noColor := noColorFlag || os.Getenv("NO_COLOR") != ""

	// Pre-set dark background to prevent termenv OSC query that leaks ^[[I focus events
	lipgloss.SetHasDarkBackground(true)

	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	bannerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		PaddingLeft(1).
		PaddingRight(1)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	idStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	tagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	Logger = log.NewWithOptions(Err, log.Options{
		ReportTimestamp: false,
	})
	if noColor {
		Logger.SetStyles(log.DefaultStyles())
	}
}

// SetOutput redirects data and message output. Init must be called again
// for the logger to follow.
func SetOutput(out, err io.Writer) {
	Out = out
	Err = err
}

func Bold(s string) string   { return boldStyle.Render(s) }
func Dim(s string) string    { return dimStyle.Render(s) }
func Green(s string) string  { return successStyle.Render(s) }
func Yellow(s string) string { return warningStyle.Render(s) }

// Warning prints a styled warning message.
func Warning(msg string) {
	fmt.Fprintf(Err, "%s %s\n", warningStyle.Render("⚠"), msg)
}

// Error prints a styled error message.
func Error(msg string) {
	fmt.Fprintf(Err, "%s %s\n", errorStyle.Render("✗"), msg)
}

// Info prints a styled informational message.
func Info(msg string) {
	fmt.Fprintf(Err, "%s %s\n", idStyle.Render("▸"), msg)
}

// Table prints a formatted table with headers and rows.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, boldStyle.Render(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

// Success prints a green check with a message.
func Success(msg string) {
	fmt.Fprintf(Err, "%s %s\n", successStyle.Render("✓"), msg)
}

// Detail prints an indented key-value detail line.
func Detail(key, value string) {
	label := dimStyle.Render(fmt.Sprintf("  %s", key))
	fmt.Fprintf(Err, "%s %s\n", label, value)
}

// KeyValue prints a bold key with a value, for structured output blocks.
func KeyValue(key, value string) {
	fmt.Fprintf(Err, "  %s  %s\n", boldStyle.Render(key), value)
}

// SectionHeader prints a styled section divider with a label.
func SectionHeader(label string) {
	line := headerStyle.Render(fmt.Sprintf("── %s ──", label))
	fmt.Fprintf(Err, "\n%s\n\n", line)
}

// EmptyState prints a styled message for empty results.
func EmptyState(msg string) {
	fmt.Fprintf(Err, "  %s\n", dimStyle.Render(msg))
}

// Banner renders a small keyline banner for a command or menu.
func Banner(title string, subtitle string) {
	brand := headerStyle.Render("K · E · Y · L · I · N · E")
	content := fmt.Sprintf("%s\n%s", brand, idStyle.Render(fmt.Sprintf("─── %s ───", strings.ToUpper(title))))
	if subtitle != "" {
		content += "\n" + dimStyle.Render(subtitle)
	}

	fmt.Fprintln(Err)
	fmt.Fprintln(Err, bannerStyle.Render(content))
	fmt.Fprintln(Err)
}

// =============================================================================
// Article rendering
// =============================================================================

// ArticleBlock renders one article with a 1-based position. Tags are listed
// one per line, or "none".
func ArticleBlock(index int, a article.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", boldStyle.Render(fmt.Sprintf("%d.", index)), boldStyle.Render(a.Title))
	fmt.Fprintf(&b, "   %s %s\n", dimStyle.Render("id:"), idStyle.Render(a.ID))
	if len(a.Tags) == 0 {
		fmt.Fprintf(&b, "   %s %s\n", dimStyle.Render("key sentences:"), dimStyle.Render("none"))
		return b.String()
	}
	fmt.Fprintf(&b, "   %s\n", dimStyle.Render("key sentences:"))
	for _, t := range a.Tags {
		fmt.Fprintf(&b, "     %s %s\n", dimStyle.Render("-"), tagStyle.Render(t))
	}
	return b.String()
}

// ArticleList prints articles in order, or an empty state. It reports whether
// anything was printed.
func ArticleList(articles []article.Article, empty string) bool {
	if len(articles) == 0 {
		EmptyState(empty)
		return false
	}
	for i, a := range articles {
		fmt.Fprintln(Out, ArticleBlock(i+1, a))
	}
	return true
}

// TagLines prints tags one per line, indented, or a placeholder.
func TagLines(tags []string, none string) {
	if len(tags) == 0 {
		fmt.Fprintf(Err, "      %s\n", dimStyle.Render(none))
		return
	}
	for _, t := range tags {
		fmt.Fprintf(Err, "      %s\n", tagStyle.Render(t))
	}
}

// =============================================================================
// Bubbletea-based interactive prompts
// =============================================================================

// confirmModel is a bubbletea model for y/n confirmation.
type confirmModel struct {
	prompt   string
	cursor   int // 0 = yes, 1 = no
	decided  bool
	accepted bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.accepted = true
			m.decided = true
			return m, tea.Quit
		case "n", "N":
			m.accepted = false
			m.decided = true
			return m, tea.Quit
		case "left", "h":
			m.cursor = 0
		case "right", "l":
			m.cursor = 1
		case "enter", " ":
			m.accepted = m.cursor == 0
			m.decided = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.accepted = false
			m.decided = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	var yes, no string
	if m.cursor == 0 {
		yes = successStyle.Render("▸ Yes ")
		no = dimStyle.Render("  No  ")
	} else {
		yes = dimStyle.Render("  Yes ")
		no = errorStyle.Render("▸ No  ")
	}

	return fmt.Sprintf("%s\n\n  %s  %s\n\n%s",
		promptStyle.Render(m.prompt),
		yes, no,
		dimStyle.Render("  ←/→ to select • enter to confirm • y/n for quick select"))
}

// Confirm prompts the user with a yes/no question and returns the response.
// The cursor starts on No.
func Confirm(prompt string) (bool, error) {
	m := confirmModel{prompt: prompt, cursor: 1}
	p := tea.NewProgram(m, tea.WithOutput(Err))
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	fmt.Fprintln(Err)
	return result.(confirmModel).accepted, nil
}

// tagInputModel reads key sentences one per line with prefix suggestions
// drawn from the known tags. An empty line finishes.
type tagInputModel struct {
	prompt    string
	session   *suggest.Session
	note      string
	done      bool
	cancelled bool
}

func newTagInputModel(prompt string, known []string, limit int) tagInputModel {
	return tagInputModel{prompt: prompt, session: suggest.NewSession(known, limit)}
}

func (m tagInputModel) Init() tea.Cmd { return nil }

func (m tagInputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.note = ""
	switch key.Type {
	case tea.KeyEnter:
		line := strings.TrimSpace(m.session.Input)
		done, dup := m.session.Enter()
		if done {
			m.done = true
			return m, tea.Quit
		}
		if dup {
			m.note = fmt.Sprintf("Duplicate tag %q ignored.", line)
		}
	case tea.KeyCtrlC, tea.KeyEsc:
		m.cancelled = true
		return m, tea.Quit
	case tea.KeyTab:
		m.session.Tab()
	case tea.KeyUp:
		m.session.Up()
	case tea.KeyDown:
		m.session.Down()
	case tea.KeyBackspace:
		m.session.Backspace()
	case tea.KeySpace:
		m.session.Type(" ")
	case tea.KeyRunes:
		m.session.Type(string(key.Runes))
	}
	return m, nil
}

func (m tagInputModel) View() string {
	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt) + "\n")
	for _, tag := range m.session.Tags() {
		b.WriteString("  " + Green("+") + " " + tag + "\n")
	}
	if m.done || m.cancelled {
		return b.String()
	}
	b.WriteString("  > " + m.session.Input + dimStyle.Render("▏") + "\n")
	if m.note != "" {
		b.WriteString("  " + Yellow(m.note) + "\n")
	}

	sugg := m.session.Suggestions()
	if len(sugg) == 0 {
		b.WriteString("\n" + dimStyle.Render("  enter adds a key sentence • empty line to finish"))
		return b.String()
	}
	cur := m.session.Current()
	shown := make([]string, len(sugg))
	for i, s := range sugg {
		if s == cur {
			shown[i] = successStyle.Render("[" + s + "]")
		} else {
			shown[i] = dimStyle.Render(s)
		}
	}
	b.WriteString("\n  " + strings.Join(shown, "  ") + "\n" +
		dimStyle.Render("  tab to complete • ↑/↓ to choose • empty line to finish"))
	return b.String()
}

// TagInput reads key sentences one per line with autocomplete over known.
// limit caps the suggestions shown; 0 shows all. Esc or Ctrl-C returns
// ErrCancelled.
func TagInput(prompt string, known []string, limit int) ([]string, error) {
	p := tea.NewProgram(newTagInputModel(prompt, known, limit), tea.WithOutput(Err))
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := result.(tagInputModel)
	if m.cancelled {
		return nil, ErrCancelled
	}
	return m.session.Tags(), nil
}
