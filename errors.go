package seqcompute

import (
	"errors"
	"fmt"

	"github.com/genoscope/seqcompute/backend"
)

// ErrDisposed is returned by every method called after Dispose.
var ErrDisposed = errors.New("seqcompute: orchestrator disposed")

// OpError is the failure value crossing the orchestrator boundary. It
// tags the wrapped cause with the operation kind and the request
// sequence number so callers can correlate it with issued work.
type OpError struct {
	Kind backend.Kind
	Seq  uint64
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("seqcompute: %s request %d: %v", e.Kind, e.Seq, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
