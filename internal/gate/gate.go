// Package gate implements GateController, the single entry point spec §4.10
// describes: one synchronous Check call that threads a tool call through
// protected-file hard-blocking, rate limiting, policy dispatch (local prompt
// or a subagent's approval channel), and TOCTOU capture/verify for file
// tools.
//
// Maps to: the teacher's internal/workflow/approval.go ApprovalGate
// (Classify/ApplyDecision delegation shape) — Check is the Temporal-free,
// single-call equivalent composing the same pieces without a workflow Await
// loop.
package gate

import (
	"fmt"
	"strings"

	"github.com/mfateev/approvalgate/internal/allowlist"
	"github.com/mfateev/approvalgate/internal/approvalchan"
	"github.com/mfateev/approvalgate/internal/execpolicy"
	"github.com/mfateev/approvalgate/internal/gatelog"
	"github.com/mfateev/approvalgate/internal/models"
	"github.com/mfateev/approvalgate/internal/pathid"
	"github.com/mfateev/approvalgate/internal/policy"
	"github.com/mfateev/approvalgate/internal/prompt"
	"github.com/mfateev/approvalgate/internal/protectedfiles"
	"github.com/mfateev/approvalgate/internal/ratelimit"
	"github.com/mfateev/approvalgate/internal/shellparse"
)

// Config is the host-supplied configuration for one Controller: the parsed
// approval_gates JSON block (spec §6), plus an optional execpolicy rules
// directory and the strict-network-filesystem knob that concretely resolve
// spec §9's two open questions.
type Config struct {
	Policy policy.Config

	// RulesDir, if non-empty, is passed to execpolicy.LoadExecPolicy at
	// construction time to seed an additional Starlark-rule evaluation layer
	// for shell commands (SPEC_FULL.md §10's supplemented feature).
	RulesDir string

	// StrictNetworkFsWrites forces PromptRequired for any file_write whose
	// captured identity reports OnNetworkFs, instead of the default
	// advisory-only network_fs_warning (spec §9's "network-filesystem inode
	// stability" open question, resolved in the strict direction when set).
	StrictNetworkFsWrites bool
}

// Controller is the single mutable GateState spec §9 calls for ("re-architect
// as a single GateState value held by the controller and passed by mutable
// reference"): every Check call flows through one Controller instead of
// touching package-level globals.
type Controller struct {
	policy     *policy.PolicyEngine
	protected  *protectedfiles.Cache
	limiter    *ratelimit.Limiter
	execPolicy *execpolicy.ExecPolicyManager
	rulesDir   string

	// Prompt drives a local TTY dialog when PromptRequired and no approval
	// channel is present. Nil means this process has no local fallback.
	Prompt *prompt.ApprovalPrompt
	// Channel routes PromptRequired decisions to a parent process instead of
	// prompting locally (a subagent's half of the IPC link). Nil means this
	// Controller owns its own prompt.
	Channel *approvalchan.ChildChannel

	strictNetworkFsWrites bool
}

// New builds a top-level Controller (not a subagent's) from a parsed
// Config. The protected-files cache and rate limiter are fresh, per-process
// stores. Prompt/Channel are left nil; the caller wires in whichever one
// applies once it knows whether it owns a terminal or an IPC channel back to
// a parent.
func New(cfg Config) *Controller {
	c := &Controller{
		policy:                policy.New(cfg.Policy),
		protected:             protectedfiles.New(),
		limiter:               ratelimit.New(),
		rulesDir:              cfg.RulesDir,
		strictNetworkFsWrites: cfg.StrictNetworkFsWrites,
	}
	if cfg.RulesDir != "" {
		mgr, err := execpolicy.LoadExecPolicy(cfg.RulesDir)
		if err != nil {
			gatelog.Debug("gate: failed to load execpolicy rules dir, continuing without it", map[string]any{"dir": cfg.RulesDir, "err": err.Error()})
		} else {
			c.execPolicy = mgr
		}
	}
	return c
}

// NewChild builds a subagent's Controller from its parent: static allowlist
// entries and category overrides are inherited (policy.InitFromParent);
// session entries are not. The protected-files cache and rate limiter are
// fresh per-process stores, per spec §5's "shared resources" being
// process-scoped, not global. The child has no prompt of its own — only
// channel, the IPC link back to whatever process owns the terminal.
func NewChild(parent *Controller, channel *approvalchan.ChildChannel) *Controller {
	return &Controller{
		policy:                policy.InitFromParent(parent.policy),
		protected:             protectedfiles.New(),
		limiter:               ratelimit.New(),
		execPolicy:            parent.execPolicy,
		rulesDir:              parent.rulesDir,
		Channel:               channel,
		strictNetworkFsWrites: parent.strictNetworkFsWrites,
	}
}

// CheckResult is everything one Check call hands back: the outcome, a
// captured-and-verified PathIdentity for approved file tools (nil
// otherwise), and a structured error body for any non-approved outcome
// (spec §6's "Error bodies").
type CheckResult struct {
	Outcome  models.ApprovalOutcome
	Identity *pathid.PathIdentity
	Error    *models.ErrorBody
}

func errPtr(e models.ErrorBody) *models.ErrorBody { return &e }

func approved(o models.ApprovalOutcome) bool { return o.IsApproved() }

// Check implements spec §4.10's seven-step algorithm.
func (c *Controller) Check(call models.ToolCall) CheckResult {
	category := models.CategoryOf(call.Name)

	// Step 1: hard block protected-file writes, unconditionally.
	if category == models.CategoryFileWrite {
		target := allowlist.ExtractTarget(category, call.Name, call.Arguments)
		if target != "" && c.protected.IsProtected(target) {
			gatelog.Debug("gate: protected file write blocked", map[string]any{"tool": call.Name, "path": target})
			c.limiter.TrackDenial(call.Name)
			return CheckResult{Outcome: models.Denied, Error: errPtr(models.NewProtectedFileError(call.Name, target))}
		}
	}

	// Step 2: rate limiting.
	if c.limiter.IsRateLimited(call.Name) {
		retry := c.limiter.Remaining(call.Name).Seconds()
		return CheckResult{Outcome: models.RateLimited, Error: errPtr(models.NewRateLimitedError(call.Name, retry))}
	}

	// Strict-network-fs pre-capture: learn whether a file_write's path lives
	// on a network filesystem before the policy dispatch, so that knowledge
	// can force a direct "allow" decision into PromptRequired. Kept separate
	// from the post-decision capture in step 4, which re-verifies the same
	// identity (or a fresh one) after the user has had a chance to approve.
	var preCaptured *pathid.PathIdentity
	forcePrompt := false
	if c.strictNetworkFsWrites && category == models.CategoryFileWrite {
		target := allowlist.ExtractTarget(category, call.Name, call.Arguments)
		if ident, err := pathid.Capture(target); err == nil {
			preCaptured = ident
			forcePrompt = ident.OnNetworkFs
		}
	}

	// Step 3: policy dispatch.
	outcome, errBody := c.dispatch(call, category, forcePrompt)

	// Step 4: TOCTOU capture+verify for file tools whose outcome approves
	// execution. Pattern generation/confirmation for AllowedAlways (spec
	// step 5) already happened inside c.dispatch's prompt path — see
	// resolvePrompt's doc comment.
	var identity *pathid.PathIdentity
	if (category == models.CategoryFileRead || category == models.CategoryFileWrite) && approved(outcome) {
		target := allowlist.ExtractTarget(category, call.Name, call.Arguments)
		ident, verifyErr := c.captureAndVerify(target, preCaptured)
		if verifyErr != nil {
			outcome = models.Denied
			errBody = verifyErr
		} else {
			identity = ident
		}
	}

	// Steps 6/7: rate limiter bookkeeping.
	if outcome == models.Denied {
		c.limiter.TrackDenial(call.Name)
	} else if approved(outcome) {
		c.limiter.Reset(call.Name)
	}

	return CheckResult{Outcome: outcome, Identity: identity, Error: errBody}
}

// dispatch implements step 3: an optional execpolicy pre-filter for shell
// commands, then the category/allowlist policy engine, routing a
// PromptRequired decision to whichever approval surface this Controller has.
func (c *Controller) dispatch(call models.ToolCall, category models.GateCategory, forcePromptRequired bool) (models.ApprovalOutcome, *models.ErrorBody) {
	if category == models.CategoryShell && c.execPolicy != nil {
		target := allowlist.ExtractTarget(category, call.Name, call.Arguments)
		switch c.execPolicy.EvaluateShellCommand(target, "unless-trusted") {
		case execpolicy.ApprovalForbidden:
			return models.Denied, errPtr(models.NewOperationDeniedError(call.Name, "forbidden by exec policy rules"))
		case execpolicy.ApprovalSkip:
			return models.Allowed, nil
		}
		// ApprovalNeeded falls through to the category/allowlist engine.
	}

	decision := c.policy.RequiresCheck(call)
	if decision == policy.Allowed && forcePromptRequired {
		decision = policy.PromptRequired
	}

	switch decision {
	case policy.Allowed:
		return models.Allowed, nil
	case policy.Denied:
		return models.Denied, errPtr(models.NewOperationDeniedError(call.Name, "denied by category policy"))
	default: // policy.PromptRequired
		return c.resolvePrompt(call, category)
	}
}

// resolvePrompt implements spec §4.10 step 3's routing rule: a present
// Channel always wins (subagent forwards to its parent); otherwise a local
// Prompt runs if one exists and is backed by a real terminal; otherwise
// NonInteractiveDenied. Pattern generation/confirmation on AllowedAlways
// happens inside ApprovalPrompt.Run/RunBatch, not here — a channel's
// AllowedAlways was already resolved (and its pattern installed) by whatever
// process owns the terminal on the other end.
func (c *Controller) resolvePrompt(call models.ToolCall, category models.GateCategory) (models.ApprovalOutcome, *models.ErrorBody) {
	target := allowlist.ExtractTarget(category, call.Name, call.Arguments)

	if c.Channel != nil {
		if c.Channel.IsDead() {
			return models.NonInteractiveDenied, errPtr(models.NewNonInteractiveGateError(call.Name, category, false, false))
		}
		outcome, _, err := c.Channel.RequestApproval(call)
		if err != nil {
			gatelog.Debug("gate: approval channel failed, collapsing to non-interactive", map[string]any{"tool": call.Name, "err": err.Error()})
			return models.NonInteractiveDenied, errPtr(models.NewNonInteractiveGateError(call.Name, category, false, false))
		}
		return outcome, nil
	}

	if c.Prompt == nil || !c.Prompt.HasTTY() {
		return models.NonInteractiveDenied, errPtr(models.NewNonInteractiveGateError(call.Name, category, true, true))
	}

	req := prompt.Request{Call: call, Category: category, Target: target}
	if category == models.CategoryShell {
		req.ParsedShell = shellparse.Parse(shellparse.DetectDialect(), target)
	}
	return c.Prompt.Run(req), nil
}

// captureAndVerify re-checks (or, if existing is nil, first captures then
// immediately re-checks) the filesystem identity for target, mapping a
// pathid verify failure onto the matching spec §6 error body.
func (c *Controller) captureAndVerify(target string, existing *pathid.PathIdentity) (*pathid.PathIdentity, *models.ErrorBody) {
	ident := existing
	if ident == nil {
		var err error
		ident, err = pathid.Capture(target)
		if err != nil {
			return nil, errPtr(models.NewOperationDeniedError(target, err.Error()))
		}
	}

	result, err := ident.Verify()
	if err != nil {
		return nil, errPtr(models.NewOperationDeniedError(target, err.Error()))
	}

	switch result {
	case pathid.VerifyOk:
		if ident.OnNetworkFs {
			gatelog.Debug("gate: approved write on network filesystem", map[string]any{"path": target})
		}
		return ident, nil
	case pathid.VerifyDeleted:
		return nil, errPtr(models.NewPathChangedError(target, models.ReasonDeleted))
	case pathid.VerifyIdentityChange:
		return nil, errPtr(models.NewPathChangedError(target, models.ReasonIdentityChanged))
	case pathid.VerifyParentChange:
		return nil, errPtr(models.NewPathChangedError(target, models.ReasonParentChanged))
	case pathid.VerifyAlreadyExists:
		return nil, errPtr(models.NewFileExistsError(target))
	default:
		return nil, errPtr(models.NewOperationDeniedError(target, "unknown verify result"))
	}
}

// BeginBatch must be called once at the start of processing a batch of tool
// calls together. Force-refreshing the protected-files cache at every batch
// boundary is mandatory, not advisory (spec §9's hard-link-protection open
// question).
func (c *Controller) BeginBatch() {
	c.protected.ForceRefresh()
}

// EnableYolo disables gating entirely: every call that would otherwise be
// gated is instead Allowed (spec §6's enable_yolo).
func (c *Controller) EnableYolo() {
	c.policy.Config.Enabled = false
}

// SetCategoryAction overrides one category's default action (spec §6's
// set_category_action). Unknown category or action names are ignored with a
// debug warning, matching LoadConfig's skip-malformed-with-warning policy.
func (c *Controller) SetCategoryAction(name, action string) {
	cat := models.GateCategory(name)
	act := models.GateAction(action)
	if !policy.IsKnownCategory(cat) {
		gatelog.Debug("gate: SetCategoryAction unknown category, ignored", map[string]any{"category": name})
		return
	}
	if !policy.IsKnownAction(act) {
		gatelog.Debug("gate: SetCategoryAction unknown action, ignored", map[string]any{"action": action})
		return
	}
	c.policy.Config.Categories[cat] = act
}

// AddCLIAllow installs one allowlist entry from a "tool:pattern" CLI spec
// (spec §6's add_cli_allow). For tool == "shell", pattern is a
// comma-separated token list; otherwise pattern is a regex. Entries are
// added with static scope, so subagents spawned after this call inherit
// them.
func (c *Controller) AddCLIAllow(spec string) error {
	tool, pattern, ok := strings.Cut(spec, ":")
	if !ok || tool == "" || pattern == "" {
		return fmt.Errorf("gate: malformed CLI allow spec %q, want \"tool:pattern\"", spec)
	}
	if tool == "shell" {
		tokens := strings.Split(pattern, ",")
		for i := range tokens {
			tokens[i] = strings.TrimSpace(tokens[i])
		}
		c.policy.Allowlist.AddShell(tokens, shellparse.DetectDialect(), allowlist.ScopeStatic)
		return nil
	}
	c.policy.Allowlist.AddRegex(tool, pattern, allowlist.ScopeStatic)
	return nil
}

// PersistShellAllow appends a confirmed shell-prefix allow-always pattern to
// the execpolicy rules directory, so it survives a process restart
// (SPEC_FULL.md §10's "project-scoped persisted allowlist"). A no-op when no
// rules directory was configured.
func (c *Controller) PersistShellAllow(tokens []string) error {
	if c.execPolicy == nil {
		return nil
	}
	return c.execPolicy.AppendAndReload(c.rulesDir, tokens)
}
