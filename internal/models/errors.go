package models

import "encoding/json"

// ErrorBody is the stable shape returned to the host alongside a Denied (or
// RateLimited/NonInteractiveDenied) outcome. Tool name and paths are
// JSON-escaped by encoding/json's own marshaling — never hand-built.
type ErrorBody struct {
	Error       string `json:"error"`
	Tool        string `json:"tool,omitempty"`
	Path        string `json:"path,omitempty"`
	Category    string `json:"category,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RetryAfter  float64 `json:"retry_after,omitempty"`
	HintEnable  bool   `json:"hint_enable_channel,omitempty"`
	HintTTY     bool   `json:"hint_needs_tty,omitempty"`
}

// JSON renders the error body as a JSON string, matching spec §6's "Error
// bodies (JSON strings returned from the gate to the caller)".
func (e ErrorBody) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		// ErrorBody has no types that can fail to marshal; this is
		// unreachable in practice.
		return `{"error":"internal","reason":"error body marshal failed"}`
	}
	return string(b)
}

// NewProtectedFileError builds the protected_file error body for a denied
// write tool.
func NewProtectedFileError(tool, path string) ErrorBody {
	return ErrorBody{Error: "protected_file", Tool: tool, Path: path}
}

// NewOperationDeniedError builds a generic operation_denied error body.
func NewOperationDeniedError(tool, reason string) ErrorBody {
	return ErrorBody{Error: "operation_denied", Tool: tool, Reason: reason}
}

// NewRateLimitedError builds the rate_limited error body.
func NewRateLimitedError(tool string, retryAfterSeconds float64) ErrorBody {
	return ErrorBody{Error: "rate_limited", Tool: tool, RetryAfter: retryAfterSeconds}
}

// NewNonInteractiveGateError builds the non_interactive_gate error body.
func NewNonInteractiveGateError(tool string, category GateCategory, hintTTY, hintChannel bool) ErrorBody {
	return ErrorBody{
		Error:      "non_interactive_gate",
		Tool:       tool,
		Category:   string(category),
		HintTTY:    hintTTY,
		HintEnable: hintChannel,
	}
}

// PathChangeReason is the verify-error set a path_changed body can carry.
type PathChangeReason string

const (
	ReasonDeleted        PathChangeReason = "deleted"
	ReasonIdentityChanged PathChangeReason = "identity_changed"
	ReasonParentChanged  PathChangeReason = "parent_changed"
	ReasonAlreadyExists  PathChangeReason = "already_exists"
)

// NewPathChangedError builds the path_changed error body.
func NewPathChangedError(path string, reason PathChangeReason) ErrorBody {
	return ErrorBody{Error: "path_changed", Path: path, Reason: string(reason)}
}

// NewSymlinkRejectedError builds the symlink_rejected error body.
func NewSymlinkRejectedError(path string) ErrorBody {
	return ErrorBody{Error: "symlink_rejected", Path: path}
}

// NewFileExistsError builds the file_exists error body.
func NewFileExistsError(path string) ErrorBody {
	return ErrorBody{Error: "file_exists", Path: path}
}

// NewNetworkFsWarning builds the network_fs_warning error body. This is
// informational and does not by itself imply Denied.
func NewNetworkFsWarning(path string) ErrorBody {
	return ErrorBody{Error: "network_fs_warning", Path: path}
}
