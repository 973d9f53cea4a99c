package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
)

// answerRenderer turns an assistant reply into styled terminal output:
// glamour for the markdown body, a citation footer for the sources.
// The glamour renderer is cached and rebuilt only when the width
// changes; when it cannot be built at all, answers degrade to plain
// text while citations still render.
type answerRenderer struct {
	md       *glamour.TermRenderer
	citation lipgloss.Style
	width    int
}

func newAnswerRenderer(width int, citation lipgloss.Style) *answerRenderer {
	if width <= 0 {
		width = 80
	}
	return &answerRenderer{
		md:       newGlamour(width),
		citation: citation,
		width:    width,
	}
}

// newGlamour returns nil when the terminal renderer cannot be built.
func newGlamour(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Detect light/dark terminal
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// SetWidth rebuilds the glamour renderer for a new wrap width.
// Reports whether anything changed so callers can skip a redraw.
func (r *answerRenderer) SetWidth(width int) bool {
	if r == nil || width <= 0 || width == r.width {
		return false
	}
	md := newGlamour(width)
	if md == nil {
		// Keep the existing renderer rather than losing styling.
		return false
	}
	r.md = md
	r.width = width
	return true
}

// Answer renders the markdown body followed by the citation footer.
// An empty source list renders the body alone.
func (r *answerRenderer) Answer(content string, sources []string) string {
	body := r.Markdown(content)
	if len(sources) == 0 {
		return body
	}
	var b strings.Builder
	_, _ = b.WriteString(body)
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(r.citation.Render("Sources:"))
	for _, src := range sources {
		_, _ = b.WriteString("\n")
		_, _ = b.WriteString(r.citation.Render("  • " + src))
	}
	return b.String()
}

// Markdown renders content through glamour, returning the raw text
// when the renderer is unavailable or fails.
func (r *answerRenderer) Markdown(content string) string {
	if r == nil || r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	// Glamour appends a trailing newline of its own.
	return strings.TrimSuffix(out, "\n")
}
