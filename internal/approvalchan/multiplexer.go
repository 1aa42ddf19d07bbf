package approvalchan

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mfateev/approvalgate/internal/models"
)

// parentChannel is one registered child's pair of streams from the
// parent's point of view: requests arrive on In, responses go out on Out.
type parentChannel struct {
	id  string
	in  io.Reader
	out io.Writer
}

type incoming struct {
	childID string
	req     RequestMessage
	err     error
}

// Multiplexer polls a set of active children's request streams
// concurrently, non-blocking with a caller-supplied timeout, per spec
// §4.9's "parent-side multiplexing". One pump goroutine per registered
// channel feeds a single aggregation channel, mirroring the teacher's
// RunPolling ticker+select idiom generalized from one poll source to N.
type Multiplexer struct {
	mu       sync.Mutex
	channels map[string]*parentChannel
	incoming chan incoming
}

// NewMultiplexer builds an empty multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		channels: make(map[string]*parentChannel),
		incoming: make(chan incoming, 16),
	}
}

// Register starts polling a new child's request stream. in is the read
// end of that child's request pipe; out is the write end of its response
// pipe.
func (m *Multiplexer) Register(childID string, in io.Reader, out io.Writer) {
	pc := &parentChannel{id: childID, in: in, out: out}
	m.mu.Lock()
	m.channels[childID] = pc
	m.mu.Unlock()
	go m.pump(pc)
}

// Unregister stops routing responses to childID. It does not stop the pump
// goroutine reading a now-closed pipe; that goroutine exits on its own once
// the read returns an error.
func (m *Multiplexer) Unregister(childID string) {
	m.mu.Lock()
	delete(m.channels, childID)
	m.mu.Unlock()
}

func (m *Multiplexer) pump(pc *parentChannel) {
	for {
		req, err := ReadRequest(pc.in)
		m.incoming <- incoming{childID: pc.id, req: req, err: err}
		if err != nil {
			return
		}
	}
}

// Poll waits up to timeout for the next request from any registered
// child. ok is false on timeout. A non-nil err means that child's channel
// has died (the pump goroutine has exited); the caller should stop
// expecting further requests from childID.
func (m *Multiplexer) Poll(timeout time.Duration) (childID string, req RequestMessage, err error, ok bool) {
	select {
	case item := <-m.incoming:
		return item.childID, item.req, item.err, true
	case <-time.After(timeout):
		return "", RequestMessage{}, nil, false
	}
}

// Respond writes one response frame to childID's response stream, echoing
// the request's sequence number and correlation ID. Spec §4.9: the
// sequence number must match the most recent request from that child,
// which the caller preserves from the Poll'd RequestMessage.
func (m *Multiplexer) Respond(childID string, req RequestMessage, outcome models.ApprovalOutcome, identity *PathIdentitySnapshot) error {
	m.mu.Lock()
	pc, found := m.channels[childID]
	m.mu.Unlock()
	if !found {
		return fmt.Errorf("approvalchan: unknown child %q", childID)
	}

	resp := ResponseMessage{Sequence: req.Sequence, CorrelationID: req.CorrelationID, Outcome: outcome, Identity: identity}
	if err := WriteResponse(pc.out, resp); err != nil {
		return fmt.Errorf("approvalchan: write response to %q: %w", childID, err)
	}
	return nil
}
