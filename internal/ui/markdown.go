package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/kokistudios/keyline/internal/article"
)

// ArticleMarkdown renders an article as a markdown document.
func ArticleMarkdown(a article.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	fmt.Fprintf(&b, "`%s`\n\n", a.ID)
	b.WriteString("## Key sentences\n\n")
	if len(a.Tags) == 0 {
		b.WriteString("_none_\n")
		return b.String()
	}
	for _, t := range a.Tags {
		fmt.Fprintf(&b, "> %s\n\n", t)
	}
	return b.String()
}

func RenderMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fallback: print raw
		fmt.Fprintln(Out, md)
		return
	}

	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprintln(Out, md)
		return
	}

	fmt.Fprint(Out, out)
}
