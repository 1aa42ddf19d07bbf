// Package pattern synthesizes a broader allowlist entry from a single
// approved tool call, so an "allow always" decision extends sensibly
// instead of only ever matching that one exact invocation again.
//
// Maps to: 7c657050_sam-saffron-jarvis-term-llm's GenerateShellPattern /
// ApprovalChoicePattern confirm-then-cache flow, and
// 190926b6_zkoranges-go-claw's AllowHTTPURL scheme/host extraction idiom.
package pattern

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mfateev/approvalgate/internal/shellparse"
)

// GeneratedPattern is the synthesized allowlist candidate spec §4.6
// describes: either a regex or a shell prefix, never both.
type GeneratedPattern struct {
	Regex             string
	ShellPrefix       []string
	ShellDialect      shellparse.ShellDialect
	IsExactMatch      bool
	NeedsConfirmation bool
	Examples          []string
}

// ForFilePath implements spec §4.6's file-path rules.
func ForFilePath(path string) GeneratedPattern {
	cleaned := strings.TrimPrefix(path, "./")

	if !strings.Contains(cleaned, "/") {
		// Root-of-cwd file: exact match, no confirmation.
		return GeneratedPattern{
			Regex:        "^" + regexp.QuoteMeta(cleaned) + "$",
			IsExactMatch: true,
			Examples:     []string{cleaned},
		}
	}

	if strings.HasPrefix(cleaned, "/tmp/") {
		// tmp is volatile: broadening would be unsafe, exact match only.
		return GeneratedPattern{
			Regex:        "^" + regexp.QuoteMeta(cleaned) + "$",
			IsExactMatch: true,
			Examples:     []string{cleaned},
		}
	}

	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	ext := filepath.Ext(base)
	if ext == "" {
		return GeneratedPattern{
			Regex:        "^" + regexp.QuoteMeta(cleaned) + "$",
			IsExactMatch: true,
			Examples:     []string{cleaned},
		}
	}

	stem := strings.TrimSuffix(base, ext)
	var tokenPrefix string
	if idx := strings.Index(stem, "_"); idx >= 0 {
		tokenPrefix = stem[:idx+1]
	}

	regex := "^" + regexp.QuoteMeta(dir+"/"+tokenPrefix) + ".*" + regexp.QuoteMeta(ext) + "$"
	return GeneratedPattern{
		Regex:             regex,
		IsExactMatch:      false,
		NeedsConfirmation: true,
		Examples:          buildFileExamples(dir, tokenPrefix, ext, base),
	}
}

func buildFileExamples(dir, tokenPrefix, ext, originalBase string) []string {
	examples := []string{filepath.Join(dir, originalBase)}
	alt1 := filepath.Join(dir, tokenPrefix+"example"+ext)
	alt2 := filepath.Join(dir, tokenPrefix+"other"+ext)
	for _, e := range []string{alt1, alt2} {
		if e != examples[0] && len(examples) < 3 {
			examples = append(examples, e)
		}
	}
	return examples
}

// ForShellCommand implements spec §4.6's shell-command rule: unsafe
// commands get an exact-match-only pattern with no prefix; safe commands
// get a prefix of the first min(2, token_count) tokens.
func ForShellCommand(parsed shellparse.ParsedShellCommand) GeneratedPattern {
	if !parsed.SafeForMatching() {
		return GeneratedPattern{
			Regex:        "^" + regexp.QuoteMeta(parsed.Raw) + "$",
			IsExactMatch: true,
			Examples:     []string{parsed.Raw},
		}
	}

	prefixLen := len(parsed.Tokens)
	if prefixLen > 2 {
		prefixLen = 2
	}
	prefix := append([]string(nil), parsed.Tokens[:prefixLen]...)

	return GeneratedPattern{
		ShellPrefix:       prefix,
		ShellDialect:      parsed.Dialect,
		IsExactMatch:      len(parsed.Tokens) <= prefixLen,
		NeedsConfirmation: true,
		Examples:          []string{strings.Join(parsed.Tokens, " ")},
	}
}

// ForURL implements spec §4.6's URL rule: anchor on scheme+host so a
// spoofing subdomain like example.com.evil.com can never match.
func ForURL(raw string) GeneratedPattern {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return GeneratedPattern{
			Regex:        "^" + regexp.QuoteMeta(raw) + "$",
			IsExactMatch: true,
			Examples:     []string{raw},
		}
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	regex := fmt.Sprintf("^%s://%s(/|$)", regexp.QuoteMeta(scheme), regexp.QuoteMeta(host))

	return GeneratedPattern{
		Regex:             regex,
		NeedsConfirmation: true,
		Examples: []string{
			fmt.Sprintf("%s://%s/", scheme, host),
			fmt.Sprintf("%s://%s", scheme, host),
		},
	}
}
