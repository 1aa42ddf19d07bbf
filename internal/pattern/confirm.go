package pattern

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"

	"github.com/mfateev/approvalgate/internal/allowlist"
)

// ConfirmChoice is the user's response to a pattern-confirmation dialog.
type ConfirmChoice string

const (
	ConfirmAccept    ConfirmChoice = "confirm"
	ConfirmEdit      ConfirmChoice = "edit"
	ConfirmExactOnly ConfirmChoice = "exact_only"
	ConfirmCancel    ConfirmChoice = "cancel"
)

// Confirm shows the synthesized pattern and up to three example matches and
// asks the user to confirm, edit, narrow to exact-only, or cancel. Without
// a TTY the result is forced to exact-only per spec §4.6.
func Confirm(out io.Writer, in *os.File, gp GeneratedPattern) (GeneratedPattern, ConfirmChoice) {
	if !gp.NeedsConfirmation {
		return gp, ConfirmAccept
	}
	if !term.IsTerminal(int(in.Fd())) {
		return ForceExactOnly(gp), ConfirmExactOnly
	}

	fmt.Fprintf(out, "Allow always for pattern:\n")
	if gp.Regex != "" {
		fmt.Fprintf(out, "  regex: %s\n", gp.Regex)
	} else {
		fmt.Fprintf(out, "  shell prefix: %s\n", strings.Join(gp.ShellPrefix, " "))
	}
	for _, ex := range gp.Examples {
		fmt.Fprintf(out, "  example: %s\n", ex)
	}
	fmt.Fprint(out, "[c]onfirm / [e]dit / e[x]act-only / c[a]ncel: ")

	reader := bufio.NewReader(in)
	line, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "confirm", "":
		return gp, ConfirmAccept
	case "x", "exact-only", "exact":
		return ForceExactOnly(gp), ConfirmExactOnly
	case "a", "cancel":
		return gp, ConfirmCancel
	case "e", "edit":
		fmt.Fprint(out, "new regex: ")
		edited, _ := reader.ReadString('\n')
		gp.Regex = strings.TrimSpace(edited)
		gp.ShellPrefix = nil
		gp.IsExactMatch = false
		return gp, ConfirmEdit
	default:
		return gp, ConfirmCancel
	}
}

// ForceExactOnly narrows a generated pattern to an exact, non-confirming
// match — used both without a TTY and by callers (like a batch drill
// dialog) that don't offer the edit sub-dialog. A shell pattern is narrowed
// to the full tokens of its first example; a regex pattern is replaced by an
// anchored literal match of its first example.
func ForceExactOnly(gp GeneratedPattern) GeneratedPattern {
	if gp.ShellPrefix == nil && gp.Regex != "" && !gp.IsExactMatch && len(gp.Examples) > 0 {
		gp.Regex = "^" + regexp.QuoteMeta(gp.Examples[0]) + "$"
	}
	gp.IsExactMatch = true
	gp.NeedsConfirmation = false
	if gp.ShellPrefix != nil && len(gp.Examples) > 0 {
		gp.ShellPrefix = strings.Fields(gp.Examples[0])
	}
	return gp
}

// Apply installs a confirmed pattern into the allowlist as a session entry:
// a regex entry for non-shell patterns, a shell-prefix entry for shell
// patterns.
func Apply(a *allowlist.Allowlist, tool string, gp GeneratedPattern) {
	if gp.ShellPrefix != nil {
		a.AddShell(gp.ShellPrefix, gp.ShellDialect, allowlist.ScopeSession)
		return
	}
	a.AddRegex(tool, gp.Regex, allowlist.ScopeSession)
}
