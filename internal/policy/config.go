// Package policy resolves a ToolCall to Allowed/Denied/PromptRequired by
// combining the enabled flag, the category-action map, and the allowlist —
// spec §4.7's PolicyEngine.
//
// Maps to: the teacher's internal/workflow/approval.go
// classifyToolsForApproval/evaluateToolApproval/evaluateCommandVecApproval
// chain, rewritten as a single synchronous call instead of a Temporal
// workflow step.
package policy

import (
	"encoding/json"

	"github.com/mfateev/approvalgate/internal/allowlist"
	"github.com/mfateev/approvalgate/internal/gatelog"
	"github.com/mfateev/approvalgate/internal/models"
	"github.com/mfateev/approvalgate/internal/shellparse"
)

// configAllowlistEntry mirrors one element of the "allowlist" array in the
// approval_gates config block (spec §6).
type configAllowlistEntry struct {
	Tool    string   `json:"tool"`
	Pattern string   `json:"pattern"`
	Command []string `json:"command"`
	Shell   string   `json:"shell"`
}

type configBlock struct {
	Enabled    *bool                  `json:"enabled"`
	Categories map[string]string      `json:"categories"`
	Allowlist  []configAllowlistEntry `json:"allowlist"`
}

// Config is the parsed, validated result of the host's approval_gates
// block: whether gates are active, the category->action map, and the
// static allowlist entries built from the config file.
type Config struct {
	Enabled    bool
	Categories models.CategoryPolicy
	Static     *allowlist.Allowlist
}

// LoadConfig parses the approval_gates block from raw JSON (the full host
// config file's bytes). Unknown category names, unknown action names, and
// malformed entries are skipped with a debug-log warning; defaults apply
// for everything else (spec §6).
func LoadConfig(hostConfigJSON []byte) Config {
	cfg := Config{
		Enabled:    true,
		Categories: models.DefaultCategoryPolicy(),
		Static:     allowlist.New(),
	}

	var root struct {
		ApprovalGates configBlock `json:"approval_gates"`
	}
	if err := json.Unmarshal(hostConfigJSON, &root); err != nil {
		gatelog.Debug("policy: malformed host config JSON, using defaults", map[string]any{"err": err.Error()})
		return cfg
	}

	block := root.ApprovalGates
	if block.Enabled != nil {
		cfg.Enabled = *block.Enabled
	}

	for catName, actionName := range block.Categories {
		cat := models.GateCategory(catName)
		if !isKnownCategory(cat) {
			gatelog.Debug("policy: unknown category in config, skipped", map[string]any{"category": catName})
			continue
		}
		action := models.GateAction(actionName)
		if !isKnownAction(action) {
			gatelog.Debug("policy: unknown action in config, skipped", map[string]any{"action": actionName})
			continue
		}
		cfg.Categories[cat] = action
	}

	for _, e := range block.Allowlist {
		if e.Tool == "" {
			gatelog.Debug("policy: malformed allowlist entry missing tool, skipped", nil)
			continue
		}
		if e.Tool == "shell" && len(e.Command) > 0 {
			dialect := shellparse.ShellDialect(e.Shell)
			if dialect == "" {
				dialect = shellparse.DialectUnknown
			}
			cfg.Static.AddShell(e.Command, dialect, allowlist.ScopeStatic)
			continue
		}
		if e.Pattern == "" {
			gatelog.Debug("policy: malformed allowlist entry missing pattern", map[string]any{"tool": e.Tool})
			continue
		}
		cfg.Static.AddRegex(e.Tool, e.Pattern, allowlist.ScopeStatic)
	}

	return cfg
}

// IsKnownCategory reports whether c is one of the fixed category names,
// for callers (like internal/gate's CLI-surface functions) that need the
// same validation LoadConfig applies to the JSON config block.
func IsKnownCategory(c models.GateCategory) bool { return isKnownCategory(c) }

// IsKnownAction reports whether a is one of the fixed action names.
func IsKnownAction(a models.GateAction) bool { return isKnownAction(a) }

func isKnownCategory(c models.GateCategory) bool {
	switch c {
	case models.CategoryFileRead, models.CategoryFileWrite, models.CategoryShell,
		models.CategoryNetwork, models.CategoryMemory, models.CategorySubagent,
		models.CategoryMCP, models.CategoryPython:
		return true
	}
	return false
}

func isKnownAction(a models.GateAction) bool {
	switch a {
	case models.ActionAllow, models.ActionGate, models.ActionDeny:
		return true
	}
	return false
}
