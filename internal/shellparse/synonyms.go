package shellparse

import "strings"

// crossDialectSynonyms pairs up POSIX and PowerShell commands that serve the
// same purpose, for spec §4.2's single-token "unknown" dialect extension.
// Extended per SPEC_FULL.md §10 beyond the spec's one named example.
var crossDialectSynonyms = map[string]string{
	"ls":  "get-childitem",
	"cat": "get-content",
	"rm":  "remove-item",
	"cp":  "copy-item",
	"mv":  "move-item",
	"pwd": "get-location",
}

func isCrossDialectSynonym(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return true
	}
	if crossDialectSynonyms[la] == lb || crossDialectSynonyms[lb] == la {
		return true
	}
	return false
}
