package allowlist

import (
	"regexp"
	"sync"

	"github.com/mfateev/approvalgate/internal/gatelog"
	"github.com/mfateev/approvalgate/internal/shellparse"
)

// Allowlist owns the two vectors spec §4.4 describes: regex entries and
// shell-prefix entries, each growing by amortized doubling from 16.
type Allowlist struct {
	mu      sync.RWMutex
	regexes []RegexEntry
	shells  []ShellEntry
}

// New returns an empty Allowlist with its vectors pre-sized to spec §4.4's
// starting capacity.
func New() *Allowlist {
	return &Allowlist{
		regexes: make([]RegexEntry, 0, initialCapacity),
		shells:  make([]ShellEntry, 0, initialCapacity),
	}
}

// AddRegex compiles pattern and appends it as a tool-scoped regex entry. A
// pattern that fails to compile is still stored, marked invalid, so a
// malformed config entry is visible for diagnostics without participating
// in matches.
func (a *Allowlist) AddRegex(tool, pattern string, scope Scope) {
	re, err := regexp.Compile(pattern)
	valid := err == nil
	if err != nil {
		gatelog.Debug("allowlist: invalid regex", map[string]any{"tool": tool, "pattern": pattern, "err": err.Error()})
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.regexes = append(a.regexes, RegexEntry{Tool: tool, Pattern: pattern, re: re, Scope: scope, Valid: valid})
}

// AddShell appends a shell-prefix entry.
func (a *Allowlist) AddShell(prefix []string, dialect shellparse.ShellDialect, scope Scope) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shells = append(a.shells, ShellEntry{Prefix: prefix, Dialect: dialect, Scope: scope})
}

// CheckRegex reports whether any valid regex entry for tool matches target.
func (a *Allowlist) CheckRegex(tool, target string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.regexes {
		if !e.Valid || e.Tool != tool {
			continue
		}
		if e.re.MatchString(target) {
			return true
		}
	}
	return false
}

// CheckShell reports whether any shell-prefix entry matches the parsed
// command, per shellparse.MatchesPrefix's dialect and synonym rules.
func (a *Allowlist) CheckShell(parsed shellparse.ParsedShellCommand) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.shells {
		if parsed.MatchesPrefix(e.Prefix, e.Dialect) {
			return true
		}
	}
	return false
}

// CloneStaticInto builds a fresh Allowlist for a subagent containing only
// this allowlist's static entries, with every regex recompiled (compiled
// regexp state is not safely shared between instances per spec §4.4).
func (a *Allowlist) CloneStaticInto() *Allowlist {
	a.mu.RLock()
	defer a.mu.RUnlock()

	child := New()
	for _, e := range a.regexes {
		if e.Scope != ScopeStatic {
			continue
		}
		child.AddRegex(e.Tool, e.Pattern, ScopeStatic)
	}
	for _, e := range a.shells {
		if e.Scope != ScopeStatic {
			continue
		}
		prefix := append([]string(nil), e.Prefix...)
		child.AddShell(prefix, e.Dialect, ScopeStatic)
	}
	return child
}

// Snapshot returns a defensive copy of the current entries, useful for
// diagnostics and tests.
func (a *Allowlist) Snapshot() (regexes []RegexEntry, shells []ShellEntry) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	regexes = append([]RegexEntry(nil), a.regexes...)
	shells = append([]ShellEntry(nil), a.shells...)
	return
}
