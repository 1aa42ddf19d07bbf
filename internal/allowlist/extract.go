package allowlist

import (
	"encoding/json"

	"github.com/mfateev/approvalgate/internal/models"
)

// pythonMetadataKey is the directive a Python-hosted tool's arguments may
// carry to override which JSON field is used as the match target.
const pythonMetadataKey = "__allowlist_match_key"

// stringArg returns the first non-empty string value found under any of
// keys in args.
func stringArg(args map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ExtractTarget implements spec §4.4's per-tool match-target extraction:
// path-shaped keys for file tools, "url" for network, "command" for shell
// (handed back raw for the caller to parse via shellparse), and the full
// arguments JSON otherwise. A "__allowlist_match_key" directive in the
// arguments overrides the key used, regardless of category.
func ExtractTarget(category models.GateCategory, toolName, arguments string) string {
	var args map[string]interface{}
	if json.Unmarshal([]byte(arguments), &args) != nil {
		return arguments
	}

	if override := stringArg(args, pythonMetadataKey); override != "" {
		if v, ok := args[override].(string); ok {
			return v
		}
	}

	switch category {
	case models.CategoryFileRead, models.CategoryFileWrite:
		if v := stringArg(args, "path", "file_path", "filepath", "filename"); v != "" {
			return v
		}
	case models.CategoryNetwork:
		if v := stringArg(args, "url"); v != "" {
			return v
		}
	case models.CategoryShell:
		if v := stringArg(args, "command"); v != "" {
			return v
		}
	}
	return arguments
}
