package approvalchan

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/mfateev/approvalgate/internal/models"
)

// ChildChannel is the subagent-side half of one approval channel: it
// writes requests on Out and reads the matching response on In. Spec
// §5 ("Ordering") requires requests within one child to be strictly
// sequential, so ChildChannel serializes RequestApproval calls with a
// mutex rather than allowing concurrent in-flight requests.
type ChildChannel struct {
	mu            sync.Mutex
	out           io.Writer
	in            io.Reader
	seq           uint64
	correlationID string
	dead          bool
}

// NewChildChannel wraps the child's write end of the request pipe and
// read end of the response pipe.
func NewChildChannel(out io.Writer, in io.Reader) *ChildChannel {
	return &ChildChannel{out: out, in: in, correlationID: uuid.NewString()}
}

// IsDead reports whether a prior read/write error has collapsed this
// channel. Per spec §4.9, a child with a dead channel must treat every
// gated operation as NonInteractiveDenied rather than retry the channel.
func (c *ChildChannel) IsDead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead
}

// RequestApproval sends one approval request and blocks for the matching
// response. Any I/O error, or a response whose sequence number does not
// match the request just sent, collapses the channel permanently.
func (c *ChildChannel) RequestApproval(call models.ToolCall) (models.ApprovalOutcome, *PathIdentitySnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dead {
		return "", nil, fmt.Errorf("approvalchan: channel is dead")
	}

	c.seq++
	seq := c.seq
	req := RequestMessage{Sequence: seq, CorrelationID: c.correlationID, Call: call}
	if err := WriteRequest(c.out, req); err != nil {
		c.dead = true
		return "", nil, fmt.Errorf("approvalchan: write request: %w", err)
	}

	resp, err := ReadResponse(c.in)
	if err != nil {
		c.dead = true
		return "", nil, fmt.Errorf("approvalchan: read response: %w", err)
	}
	if resp.Sequence != seq {
		c.dead = true
		return "", nil, fmt.Errorf("approvalchan: response sequence %d does not match request %d", resp.Sequence, seq)
	}

	return resp.Outcome, resp.Identity, nil
}
