package shellparse

import "strings"

// Per-dialect blocklists of commands that can execute arbitrary, unparsed
// content — these never qualify for allowlist prefix matching regardless of
// the chain/pipe/redirect/subshell flags (spec §4.2).
var posixDangerousTokens = map[string]bool{
	"eval":   true,
	"exec":   true,
	"source": true,
	".":      true,
}

var posixDangerousShellDashC = map[string]bool{
	"bash": true,
	"sh":   true,
	"zsh":  true,
	"ksh":  true,
	"dash": true,
}

var cmdDangerousTokens = map[string]bool{
	"start":   true,
	"call":    true,
	"cmd":     true,
	"cmd.exe": true,
}

var powershellDangerousTokens = map[string]bool{
	"invoke-expression": true,
	"iex":               true,
	"invoke-command":    true,
	"icm":               true,
	"invoke-webrequest": true,
	"iwr":               true,
	"invoke-restmethod": true,
	"irm":               true,
	"start-process":     true,
}

var powershellDangerousFlags = map[string]bool{
	"-encodedcommand": true,
	"-enc":            true,
}

var powershellDangerousSubstrings = []string{
	"downloadstring",
	"downloadfile",
}

// isDangerousCommand applies the dialect-specific blocklist to the parsed
// tokens and, for PowerShell, to the raw command text (to catch dangerous
// substrings embedded in member-invocation syntax that tokenization doesn't
// split out as standalone tokens).
func isDangerousCommand(dialect ShellDialect, tokens []string, raw string) bool {
	if len(tokens) == 0 {
		return false
	}

	switch dialect {
	case DialectCmd:
		first := strings.ToLower(tokens[0])
		if cmdDangerousTokens[first] {
			return true
		}
		for _, t := range tokens {
			if strings.Contains(strings.ToLower(t), "/c") && first == "cmd" {
				return true
			}
		}
		return false

	case DialectPowerShell:
		for _, t := range tokens {
			lt := strings.ToLower(t)
			if powershellDangerousTokens[lt] || powershellDangerousFlags[lt] {
				return true
			}
		}
		lowerRaw := strings.ToLower(raw)
		for _, sub := range powershellDangerousSubstrings {
			if strings.Contains(lowerRaw, sub) {
				return true
			}
		}
		return false

	default: // POSIX (and unknown, tokenized as POSIX)
		first := tokens[0]
		if posixDangerousTokens[first] {
			return true
		}
		if posixDangerousShellDashC[first] {
			for _, t := range tokens[1:] {
				if t == "-c" {
					return true
				}
			}
		}
		return false
	}
}
