package approvalchan

import (
	"fmt"
	"os"
)

// PipePair is the two half-duplex pipes backing one child's approval
// channel: a request pipe (child writes, parent reads) and a response
// pipe (parent writes, child reads). Spec §4.9's lifecycle requires pipes
// to exist before the child is spawned, and a cleanup helper that closes
// every end if spawning fails partway through.
type PipePair struct {
	ChildReqWrite   *os.File
	ParentReqRead   *os.File
	ParentRespWrite *os.File
	ChildRespRead   *os.File
}

// NewPipePair creates both pipes. The caller passes ChildReqWrite and
// ChildRespRead to the child process (e.g. as extra files on an
// exec.Cmd), and keeps ParentReqRead/ParentRespWrite for its own
// Multiplexer registration.
func NewPipePair() (*PipePair, error) {
	reqRead, reqWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("approvalchan: create request pipe: %w", err)
	}
	respRead, respWrite, err := os.Pipe()
	if err != nil {
		_ = reqRead.Close()
		_ = reqWrite.Close()
		return nil, fmt.Errorf("approvalchan: create response pipe: %w", err)
	}
	return &PipePair{
		ChildReqWrite:   reqWrite,
		ParentReqRead:   reqRead,
		ParentRespWrite: respWrite,
		ChildRespRead:   respRead,
	}, nil
}

// CloseAll closes every end of both pipes. Safe to call after a partial
// spawn failure or during normal teardown; the parent and child sides
// typically close only their own ends, but a setup failure before fork
// means nobody else will close the child's ends.
func (p *PipePair) CloseAll() {
	_ = p.ChildReqWrite.Close()
	_ = p.ParentReqRead.Close()
	_ = p.ParentRespWrite.Close()
	_ = p.ChildRespRead.Close()
}

// CloseChildEnds closes only the ends the child process owns, once they
// have been duped into the spawned child and the parent no longer needs
// its own copy of those file descriptors.
func (p *PipePair) CloseChildEnds() {
	_ = p.ChildReqWrite.Close()
	_ = p.ChildRespRead.Close()
}
