package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kokistudios/keyline/internal/ui"
)

// prompter reads user input for the interactive menu.
type prompter interface {
	// Line reads one trimmed line. ok is false once input is exhausted.
	Line(prompt string) (line string, ok bool)
	// Confirm asks a yes/no question; the default is no.
	Confirm(prompt string) bool
	// Tags reads a list of tags, offering known ones for completion. ok is
	// false when the user cancelled; callers must then leave things as they were.
	Tags(prompt string, known []string) (tags []string, ok bool)
}

// linePrompter reads plain lines. Tags are entered one per line and end at
// a blank line.
type linePrompter struct {
	r *bufio.Reader
}

func newLinePrompter(r io.Reader) *linePrompter {
	return &linePrompter{r: bufio.NewReader(r)}
}

func (p *linePrompter) Line(prompt string) (string, bool) {
	fmt.Fprint(ui.Err, prompt)
	line, err := p.r.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(ui.Err)
		return "", false
	}
	return strings.TrimSpace(line), true
}

func (p *linePrompter) Confirm(prompt string) bool {
	answer, _ := p.Line(prompt + " (y/N): ")
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

func (p *linePrompter) Tags(prompt string, known []string) ([]string, bool) {
	fmt.Fprintf(ui.Err, "%s %s\n", prompt, ui.Dim("(one per line, blank line to finish)"))
	var tags []string
	seen := make(map[string]bool)
	for {
		tag, ok := p.Line("  > ")
		if !ok || tag == "" {
			return tags, true
		}
		if seen[tag] {
			ui.Warning(fmt.Sprintf("Duplicate tag %q ignored.", tag))
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
}

// ttyPrompter uses the bubbletea prompts for confirmation and tag entry.
type ttyPrompter struct {
	*linePrompter
	suggestLimit int
}

func (p *ttyPrompter) Confirm(prompt string) bool {
	ok, err := ui.Confirm(prompt)
	return err == nil && ok
}

func (p *ttyPrompter) Tags(prompt string, known []string) ([]string, bool) {
	tags, err := ui.TagInput(prompt, known, p.suggestLimit)
	if errors.Is(err, ui.ErrCancelled) {
		return nil, false
	}
	if err != nil {
		ui.Logger.Debug("Tag input unavailable, reading lines instead", "err", err)
		return p.linePrompter.Tags(prompt, known)
	}
	return tags, true
}

// newPrompter picks the interactive prompts when stdin is a terminal.
func newPrompter(in *os.File, suggestLimit int) prompter {
	lp := newLinePrompter(in)
	if term.IsTerminal(int(in.Fd())) {
		return &ttyPrompter{linePrompter: lp, suggestLimit: suggestLimit}
	}
	return lp
}
