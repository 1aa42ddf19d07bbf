package policy

import (
	"github.com/mfateev/approvalgate/internal/allowlist"
	"github.com/mfateev/approvalgate/internal/models"
	"github.com/mfateev/approvalgate/internal/shellparse"
)

// Decision is the outcome of PolicyEngine.RequiresCheck.
type Decision string

const (
	Allowed        Decision = "allowed"
	Denied         Decision = "denied"
	PromptRequired Decision = "prompt_required"
)

// PolicyEngine holds one process's (or subagent's) live category map and
// allowlist, and resolves a call to Allowed/Denied/PromptRequired.
type PolicyEngine struct {
	Config    Config
	Allowlist *allowlist.Allowlist
}

// New builds a PolicyEngine from a loaded Config, seeding its working
// allowlist with the config's static entries.
func New(cfg Config) *PolicyEngine {
	return &PolicyEngine{Config: cfg, Allowlist: cfg.Static}
}

// RequiresCheck implements spec §4.7's algorithm.
func (e *PolicyEngine) RequiresCheck(call models.ToolCall) Decision {
	if !e.Config.Enabled {
		return Allowed
	}

	category := models.CategoryOf(call.Name)
	action, ok := e.Config.Categories[category]
	if !ok {
		action = models.ActionGate
	}

	switch action {
	case models.ActionAllow:
		return Allowed
	case models.ActionDeny:
		return Denied
	default: // models.ActionGate
		target := allowlist.ExtractTarget(category, call.Name, call.Arguments)
		if category == models.CategoryShell {
			dialect := shellparse.DetectDialect()
			parsed := shellparse.Parse(dialect, target)
			if e.Allowlist.CheckShell(parsed) {
				return Allowed
			}
			return PromptRequired
		}
		if e.Allowlist.CheckRegex(call.Name, target) {
			return Allowed
		}
		return PromptRequired
	}
}

// InitFromParent builds a subagent's PolicyEngine from its parent: enabled
// flag and the full category map are copied, and only the parent's static
// allowlist entries are cloned in (each regex recompiled). Denial trackers
// and the approval channel are never copied — those belong to the caller
// composing this engine into a gate, not to the engine itself.
func InitFromParent(parent *PolicyEngine) *PolicyEngine {
	cloned := parent.Allowlist.CloneStaticInto()
	return &PolicyEngine{
		Config: Config{
			Enabled:    parent.Config.Enabled,
			Categories: parent.Config.Categories.Clone(),
			Static:     cloned,
		},
		Allowlist: cloned,
	}
}
