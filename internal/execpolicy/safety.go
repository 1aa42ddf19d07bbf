package execpolicy

import "strings"

// knownSafeCommands backs the "unless-trusted" fallback heuristic: a
// command whose effective leading token is in this set runs without
// approval when no explicit rule covers it.
var knownSafeCommands = map[string]bool{
	"ls":       true,
	"cat":      true,
	"pwd":      true,
	"echo":     true,
	"head":     true,
	"tail":     true,
	"wc":       true,
	"grep":     true,
	"find":     true,
	"stat":     true,
	"file":     true,
	"date":     true,
	"whoami":   true,
	"printenv": true,
	"env":      true,
	"true":     true,
	"false":    true,
}

var shellWrappers = map[string]bool{
	"bash": true,
	"sh":   true,
	"zsh":  true,
	"ksh":  true,
	"dash": true,
}

// effectiveTokens unwraps a "<shell> -c '<inner command>'" invocation into
// the inner command's own tokens, so rule/safety matching sees what the
// shell will actually run rather than just "bash".
func effectiveTokens(cmdVec []string) []string {
	if len(cmdVec) >= 3 && shellWrappers[cmdVec[0]] && cmdVec[1] == "-c" {
		return strings.Fields(cmdVec[2])
	}
	return cmdVec
}

func effectiveCommand(cmdVec []string) string {
	tokens := effectiveTokens(cmdVec)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}
