package prompt

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
)

// prettyJSON re-indents a compact JSON arguments string for the details
// box. Invalid JSON (shouldn't happen for a real ToolCall) is shown as-is.
func prettyJSON(raw string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	out, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		return raw
	}
	return "  " + string(out)
}

// contentPreview returns at most maxLines lines of content, truncating from
// the middle and adding one marker line that notes how many lines were
// omitted.
//
// Maps to: teacher's internal/cli/approval.go contentPreview/truncateMiddle
// (the source file referencing them was pruned from the retrieved example
// tree, so the omission-count convention here is reconstructed from that
// call site rather than copied).
func contentPreview(content string, maxLines int) []string {
	lines := strings.Split(content, "\n")
	return truncateMiddle(lines, maxLines)
}

func truncateMiddle(lines []string, maxLines int) []string {
	if len(lines) <= maxLines || maxLines <= 0 {
		return lines
	}
	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail

	out := make([]string, 0, maxLines+1)
	out = append(out, lines[:head]...)
	out = append(out, strings.Repeat("-", 3)+" "+strconv.Itoa(omitted)+" lines omitted "+strings.Repeat("-", 3))
	out = append(out, lines[len(lines)-tail:]...)
	return out
}

// renderMarkdownPreview renders markdown-shaped content (e.g. a subagent's
// final-answer text) for display in a details box, word-wrapped to width.
func renderMarkdownPreview(content string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	style := glamourstyles.DarkStyleConfig
	style.H2.Prefix = ""
	style.H3.Prefix = ""

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}
