package execpolicy

import "strings"

// ExecPolicyManager evaluates commands against a Policy, applying an
// approval-mode fallback when no rule matches.
type ExecPolicyManager struct {
	policy *Policy
}

// NewExecPolicyManager wraps an existing Policy.
func NewExecPolicyManager(p *Policy) *ExecPolicyManager {
	return &ExecPolicyManager{policy: p}
}

// GetEvaluation returns the full Evaluation (decision plus justification,
// when a rule supplied one) for cmdVec under the given approval mode.
func (m *ExecPolicyManager) GetEvaluation(cmdVec []string, mode string) Evaluation {
	tokens := effectiveTokens(cmdVec)
	if r := m.policy.match(tokens); r != nil {
		return Evaluation{Decision: r.Decision, Justification: r.Justification}
	}
	return Evaluation{Decision: fallbackDecision(cmdVec, mode)}
}

// EvaluateCommand is GetEvaluation narrowed to the caller-facing
// ExecApprovalRequirement.
func (m *ExecPolicyManager) EvaluateCommand(cmdVec []string, mode string) ExecApprovalRequirement {
	return decisionToRequirement(m.GetEvaluation(cmdVec, mode).Decision)
}

// EvaluateShellCommand tokenizes a raw shell command string and evaluates
// it the same way as EvaluateCommand.
func (m *ExecPolicyManager) EvaluateShellCommand(cmd string, mode string) ExecApprovalRequirement {
	return m.EvaluateCommand(strings.Fields(cmd), mode)
}

func fallbackDecision(cmdVec []string, mode string) Decision {
	switch mode {
	case "never", "on-failure":
		return DecisionAllow
	default: // "unless-trusted" and any unrecognized mode
		if knownSafeCommands[effectiveCommand(cmdVec)] {
			return DecisionAllow
		}
		return DecisionPrompt
	}
}

func decisionToRequirement(d Decision) ExecApprovalRequirement {
	switch d {
	case DecisionAllow:
		return ApprovalSkip
	case DecisionForbidden:
		return ApprovalForbidden
	default:
		return ApprovalNeeded
	}
}
