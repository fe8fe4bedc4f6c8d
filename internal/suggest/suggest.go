// Package suggest holds the tag autocomplete logic behind the interactive
// tag prompt. It has no terminal dependencies.
//
// Tags are entered one per line: Enter commits the current line as one tag,
// and Enter on an empty line finishes. Commas are ordinary characters, so a
// key sentence may contain them.
package suggest

import "strings"

// DefaultLimit is how many suggestions the prompt shows at once.
const DefaultLimit = 4

// Suggest returns the known tags that start with the trimmed input, in known
// order, capped at limit (0 means no cap). Tags in skip are left out. Empty
// input yields nothing.
func Suggest(known []string, input string, limit int, skip ...string) []string {
	frag := strings.TrimSpace(input)
	if frag == "" {
		return nil
	}
	var out []string
	for _, tag := range known {
		if !strings.HasPrefix(tag, frag) || contains(skip, tag) {
			continue
		}
		out = append(out, tag)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Session tracks the line being typed, the highlighted suggestion and the
// tags committed so far.
type Session struct {
	Known    []string
	Limit    int
	Input    string
	Selected int
	tags     []string
}

// NewSession starts an empty input over the known tags.
func NewSession(known []string, limit int) *Session {
	return &Session{Known: known, Limit: limit}
}

// Suggestions for the current line. Tags already committed are not offered.
func (s *Session) Suggestions() []string {
	return Suggest(s.Known, s.Input, s.Limit, s.tags...)
}

// Current is the highlighted suggestion, or "" when there is none.
func (s *Session) Current() string {
	sugg := s.Suggestions()
	if len(sugg) == 0 {
		return ""
	}
	if s.Selected >= len(sugg) {
		s.Selected = 0
	}
	return sugg[s.Selected]
}

// Type appends text to the current line.
func (s *Session) Type(text string) {
	s.Input += text
	s.Selected = 0
}

// Backspace removes the last rune.
func (s *Session) Backspace() {
	if s.Input == "" {
		return
	}
	r := []rune(s.Input)
	s.Input = string(r[:len(r)-1])
}

// Up moves the highlight towards the first suggestion.
func (s *Session) Up() {
	if s.Selected > 0 {
		s.Selected--
	}
}

// Down moves the highlight towards the last suggestion.
func (s *Session) Down() {
	if s.Selected < len(s.Suggestions())-1 {
		s.Selected++
	}
}

// Tab replaces the line with the highlighted suggestion. When the line
// already equals it, the suggestion is committed as with Enter. It reports
// false when there was nothing to complete.
func (s *Session) Tab() bool {
	cur := s.Current()
	if cur == "" {
		return false
	}
	if strings.TrimSpace(s.Input) == cur {
		s.Enter()
		return true
	}
	s.Input = cur
	s.Selected = 0
	return true
}

// Enter commits the current line as one tag. On an empty line it reports
// done. A tag that was already committed is dropped and reported as dup.
func (s *Session) Enter() (done, dup bool) {
	tag := strings.TrimSpace(s.Input)
	s.Input = ""
	s.Selected = 0
	if tag == "" {
		return true, false
	}
	if contains(s.tags, tag) {
		return false, true
	}
	s.tags = append(s.tags, tag)
	return false, false
}

// Tags committed so far, in entry order.
func (s *Session) Tags() []string {
	return append([]string(nil), s.tags...)
}
