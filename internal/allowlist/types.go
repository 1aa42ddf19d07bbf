// Package allowlist holds the per-process and per-subagent sets of
// previously-approved patterns the gate consults before prompting again:
// compiled regexes for most tool categories, and token-prefix entries for
// shell commands (matched through shellparse).
//
// Maps to: 190926b6_zkoranges-go-claw's Policy/Checker split (data vs.
// compiled-matcher) and 7c657050_sam-saffron-jarvis-term-llm's
// ShellApprovalCache pattern-as-slice idiom.
package allowlist

import (
	"regexp"

	"github.com/mfateev/approvalgate/internal/shellparse"
)

// Scope distinguishes entries that persist only for this session from ones
// cloned from a parent into every subagent it spawns.
type Scope string

const (
	ScopeStatic  Scope = "static"
	ScopeSession Scope = "session"
)

// RegexEntry is one tool-name + compiled-pattern allowlist row.
type RegexEntry struct {
	Tool    string
	Pattern string
	re      *regexp.Regexp
	Scope   Scope
	Valid   bool
}

// ShellEntry is one shell-prefix allowlist row.
type ShellEntry struct {
	Prefix  []string
	Dialect shellparse.ShellDialect
	Scope   Scope
}

const initialCapacity = 16
