// Package prompt drives the single-keypress and batch TTY dialogs an
// approval gate falls back to when no parent approval channel is present.
//
// Maps to: the teacher's internal/cli/approval.go (HandleApprovalInput,
// formatApprovalInfo, contentPreview) and internal/cli/app.go's
// signal.Notify/signal.Stop-per-scope idiom for Ctrl-C handling, rewritten
// around a raw single-keypress read instead of a readline prompt line.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/mfateev/approvalgate/internal/allowlist"
	"github.com/mfateev/approvalgate/internal/models"
	"github.com/mfateev/approvalgate/internal/pathid"
	"github.com/mfateev/approvalgate/internal/pattern"
	"github.com/mfateev/approvalgate/internal/shellparse"
)

// ErrAborted is returned by the raw key reader on Ctrl-C/Ctrl-D/signal.
var ErrAborted = errors.New("prompt: aborted")

// Request is everything one approval dialog needs to render a summary line,
// a details box, and (on "allow always") synthesize a broader pattern.
type Request struct {
	Call         models.ToolCall
	Category     models.GateCategory
	Target       string // the extracted match target: path, URL, or shell command
	ParsedShell  shellparse.ParsedShellCommand
	ResolvedPath *pathid.PathIdentity // nil unless a file path has been captured
}

// ApprovalPrompt drives the TTY dialog described in spec §4.8.
type ApprovalPrompt struct {
	In        *os.File
	Out       io.Writer
	Allowlist *allowlist.Allowlist
}

// New builds an ApprovalPrompt over the given terminal file descriptor and
// allowlist (for "allow always" pattern installation).
func New(in *os.File, out io.Writer, al *allowlist.Allowlist) *ApprovalPrompt {
	return &ApprovalPrompt{In: in, Out: out, Allowlist: al}
}

// HasTTY reports whether In is backed by a real terminal. The gate controller
// uses this to decide between running a local prompt and NonInteractiveDenied.
func (p *ApprovalPrompt) HasTTY() bool {
	return term.IsTerminal(int(p.In.Fd()))
}

// Run drives one approval dialog to completion: Draw, ReadKey, dispatch.
// '?' loops back to Draw rather than recursing; every other branch is
// terminal. Matches spec §4.8's state machine exactly.
func (p *ApprovalPrompt) Run(req Request) models.ApprovalOutcome {
	for {
		p.draw(req)
		key, err := p.readKeyRaw()
		if err != nil {
			fmt.Fprintln(p.Out)
			return models.Aborted
		}

		switch key {
		case 'y', 'Y':
			fmt.Fprintln(p.Out)
			return models.Allowed
		case 'n', 'N':
			fmt.Fprintln(p.Out)
			return models.Denied
		case 'a', 'A':
			fmt.Fprintln(p.Out)
			p.confirmAndInstallPattern(req)
			return models.AllowedAlways
		case '?':
			fmt.Fprintln(p.Out)
			p.showDetails(req)
			continue
		case 0x03, 0x04: // Ctrl-C, Ctrl-D in raw mode arrive as literal bytes
			fmt.Fprintln(p.Out)
			return models.Aborted
		default:
			fmt.Fprintf(p.Out, "\ninvalid key %q\n", key)
			continue
		}
	}
}

func (p *ApprovalPrompt) confirmAndInstallPattern(req Request) {
	gp := p.generatePattern(req)
	confirmed, choice := pattern.Confirm(p.Out, p.In, gp)
	if choice == pattern.ConfirmCancel {
		return
	}
	pattern.Apply(p.Allowlist, req.Call.Name, confirmed)
}

func (p *ApprovalPrompt) generatePattern(req Request) pattern.GeneratedPattern {
	switch req.Category {
	case models.CategoryShell:
		return pattern.ForShellCommand(req.ParsedShell)
	case models.CategoryNetwork:
		return pattern.ForURL(req.Target)
	default:
		return pattern.ForFilePath(req.Target)
	}
}

func (p *ApprovalPrompt) draw(req Request) {
	fmt.Fprintf(p.Out, "%s\n", summaryLine(req))
	fmt.Fprint(p.Out, "[y]es / [n]o / [a]lways / [?]details > ")
}

func (p *ApprovalPrompt) showDetails(req Request) {
	fmt.Fprintln(p.Out, detailsBox(req))
}

// readKeyRaw reads one unechoed byte in raw mode, restoring terminal state
// on every exit path. A SIGINT handler is installed for the duration of the
// read only (no auto-restart across calls); since raw mode also disables
// ISIG, Ctrl-C ordinarily arrives as the literal byte 0x03 — the signal
// path exists for terminals/platforms where the driver still raises it.
func (p *ApprovalPrompt) readKeyRaw() (rune, error) {
	fd := int(p.In.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return 0, err
	}
	defer term.Restore(fd, oldState)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	type result struct {
		r   rune
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		buf := make([]byte, 1)
		n, err := p.In.Read(buf)
		if err != nil {
			resultCh <- result{0, err}
			return
		}
		if n == 0 {
			resultCh <- result{0, io.EOF}
			return
		}
		resultCh <- result{rune(buf[0]), nil}
	}()

	select {
	case <-sigCh:
		return 0, ErrAborted
	case res := <-resultCh:
		if res.err != nil {
			return 0, res.err
		}
		return res.r, nil
	}
}

// summaryColumnBudget bounds the non-category-specific summary line.
const summaryColumnBudget = 80

func summaryLine(req Request) string {
	switch req.Category {
	case models.CategoryShell:
		return "Shell: " + truncateEllipsis(req.ParsedShell.Raw, summaryColumnBudget)
	case models.CategoryFileRead, models.CategoryFileWrite:
		return "Path: " + truncateEllipsis(req.Target, summaryColumnBudget)
	case models.CategoryNetwork:
		return "URL: " + truncateEllipsis(req.Target, summaryColumnBudget)
	default:
		return req.Call.Name + ": " + truncateEllipsis(req.Call.Arguments, summaryColumnBudget)
	}
}

func truncateEllipsis(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	if budget <= 3 {
		return s[:budget]
	}
	return s[:budget-3] + "..."
}

func detailsBox(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- details ---\n")
	fmt.Fprintf(&b, "tool: %s\n", req.Call.Name)
	fmt.Fprintf(&b, "id: %s\n", req.Call.ID)
	fmt.Fprintf(&b, "arguments:\n%s\n", prettyJSON(req.Call.Arguments))
	if req.ResolvedPath != nil {
		fmt.Fprintf(&b, "resolved path: %s\n", req.ResolvedPath.ResolvedPath)
	}
	if req.Category == models.CategoryShell {
		if reason := req.ParsedShell.DenialReason(); reason != "" {
			fmt.Fprintf(&b, "why not allowlisted: %s\n", reason)
		}
	}
	if req.Category == models.CategoryFileWrite {
		if lines := writeContentPreview(req.Call.Arguments); lines != nil {
			fmt.Fprintf(&b, "content:\n%s\n", strings.Join(lines, "\n"))
		}
	}
	if req.Category == models.CategorySubagent {
		if rendered, ok := subagentPromptPreview(req.Call.Arguments); ok {
			fmt.Fprintf(&b, "prompt:\n%s\n", rendered)
		}
	}
	fmt.Fprintf(&b, "---------------")
	return b.String()
}

const detailsPreviewLines = 5

// writeContentPreview extracts a write/patch tool call's "content" or
// "input" argument and truncates it for the details box.
func writeContentPreview(arguments string) []string {
	var args map[string]interface{}
	if json.Unmarshal([]byte(arguments), &args) != nil {
		return nil
	}
	for _, key := range []string{"content", "input"} {
		if v, ok := args[key].(string); ok && v != "" {
			return contentPreview(v, detailsPreviewLines)
		}
	}
	return nil
}

// subagentPromptPreview renders a spawn_subagent call's "prompt" argument as
// markdown for the details box, since subagent prompts are free-form text
// that often carries headings and lists.
func subagentPromptPreview(arguments string) (string, bool) {
	var args map[string]interface{}
	if json.Unmarshal([]byte(arguments), &args) != nil {
		return "", false
	}
	v, ok := args["prompt"].(string)
	if !ok || v == "" {
		return "", false
	}
	rendered, err := renderMarkdownPreview(v, summaryColumnBudget)
	if err != nil {
		return v, true
	}
	return rendered, true
}
