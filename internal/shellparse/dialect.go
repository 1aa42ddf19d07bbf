// Package shellparse tokenizes shell commands per dialect (POSIX, cmd.exe,
// PowerShell), flagging the constructs that make a command unsafe to match
// against a shell-prefix allowlist entry.
//
// Maps to: the teacher's internal/shell package (user-shell detection),
// generalized from POSIX-only to the three dialects the gate must reason
// about across platforms.
package shellparse

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ShellDialect is a closed set of shell grammars. Dialect "unknown" matches
// any allowlist entry regardless of its own declared dialect.
type ShellDialect string

const (
	DialectPOSIX      ShellDialect = "posix"
	DialectCmd        ShellDialect = "cmd"
	DialectPowerShell ShellDialect = "powershell"
	DialectUnknown    ShellDialect = "unknown"
)

var (
	detectOnce   sync.Once
	detected     ShellDialect
)

// DetectDialect inspects SHELL, COMSPEC, and PSModulePath once per process
// and memoizes the result — it is a pure function of the environment for
// the process lifetime (spec §5's "Shared resources").
func DetectDialect() ShellDialect {
	detectOnce.Do(func() {
		detected = detectDialectUncached()
	})
	return detected
}

// resetDetectionForTests clears the memoized dialect so tests can exercise
// DetectDialect under different environments. Not exported — production
// code relies on DetectDialect() being stable for the process lifetime.
func resetDetectionForTests() {
	detectOnce = sync.Once{}
}

func detectDialectUncached() ShellDialect {
	if ps := os.Getenv("PSModulePath"); ps != "" {
		return DialectPowerShell
	}
	if shellEnv := os.Getenv("SHELL"); shellEnv != "" {
		return DialectPOSIX
	}
	if comspec := os.Getenv("COMSPEC"); comspec != "" {
		base := strings.ToLower(filepath.Base(comspec))
		if base == "cmd.exe" {
			return DialectCmd
		}
	}
	return DialectUnknown
}

// Parse tokenizes command under the given dialect and sets its safety
// flags. dialect DialectUnknown is treated as POSIX for tokenization
// purposes (most agentic shells default to a POSIX-like grammar), but the
// resulting ParsedShellCommand.Dialect still records "unknown" so prefix
// matching can apply the cross-dialect synonym table.
func Parse(dialect ShellDialect, command string) ParsedShellCommand {
	tokenizeDialect := dialect
	if tokenizeDialect == DialectUnknown {
		tokenizeDialect = DialectPOSIX
	}

	var p ParsedShellCommand
	switch tokenizeDialect {
	case DialectCmd:
		p = parseCmd(command)
	case DialectPowerShell:
		p = parsePowerShell(command)
	default:
		p = parsePOSIX(command)
	}
	p.Dialect = dialect
	p.Raw = command
	p.IsDangerous = isDangerousCommand(tokenizeDialect, p.Tokens, command)
	return p
}
