// Package approvalchan implements the IPC protocol a subagent uses to
// forward an approval-prompt request to the parent process that owns the
// TTY, and the parent-side multiplexer that services many such children.
//
// Maps to: the teacher's internal/cli/poller.go RunPolling select-loop
// idiom (generalized here from one workflow poll to N child channels) and
// internal/execsession/store.go's mutex-guarded registry shape.
package approvalchan

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mfateev/approvalgate/internal/models"
)

// maxMessageBytes bounds a single length-prefixed frame, guarding against a
// corrupt or hostile length prefix causing an unbounded allocation.
const maxMessageBytes = 16 << 20 // 16 MiB

// RequestKind is always "approval_request" per spec §4.9; kept as a typed
// constant rather than a bare string so a future second request kind has
// somewhere to go.
type RequestKind string

const RequestKindApproval RequestKind = "approval_request"

// RequestMessage is one child -> parent frame.
type RequestMessage struct {
	Kind          RequestKind     `json:"kind"`
	Sequence      uint64          `json:"sequence"`
	CorrelationID string          `json:"correlation_id"`
	Call          models.ToolCall `json:"call"`
}

// ResponseMessage is one parent -> child frame. Sequence must match the
// most recent request; Identity is set only when the outcome carries a
// captured PathIdentity.
type ResponseMessage struct {
	Sequence      uint64                 `json:"sequence"`
	CorrelationID string                 `json:"correlation_id"`
	Outcome       models.ApprovalOutcome `json:"outcome"`
	Identity      *PathIdentitySnapshot  `json:"identity,omitempty"`
}

func writeFrame(w io.Writer, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("approvalchan: marshal frame: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("approvalchan: write frame length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("approvalchan: write frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader, out interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("approvalchan: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxMessageBytes {
		return fmt.Errorf("approvalchan: frame length %d exceeds max %d", n, maxMessageBytes)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("approvalchan: read frame body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("approvalchan: unmarshal frame: %w", err)
	}
	return nil
}

// WriteRequest writes one length-prefixed request frame.
func WriteRequest(w io.Writer, msg RequestMessage) error {
	msg.Kind = RequestKindApproval
	return writeFrame(w, msg)
}

// ReadRequest reads one length-prefixed request frame.
func ReadRequest(r io.Reader) (RequestMessage, error) {
	var msg RequestMessage
	err := readFrame(r, &msg)
	return msg, err
}

// WriteResponse writes one length-prefixed response frame.
func WriteResponse(w io.Writer, msg ResponseMessage) error {
	return writeFrame(w, msg)
}

// ReadResponse reads one length-prefixed response frame.
func ReadResponse(r io.Reader) (ResponseMessage, error) {
	var msg ResponseMessage
	err := readFrame(r, &msg)
	return msg, err
}
