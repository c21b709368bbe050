package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFamily           = errors.New("unknown document family")
	ErrInvalidFamilyDefinition = errors.New("invalid document family definition")
	ErrInvalidDocumentInput    = errors.New("invalid document input")
	ErrDocumentNotFound        = errors.New("document not found")
	ErrActorRequired           = errors.New("transition actor is required")
	ErrAllocationFailed        = errors.New("sequence allocation failed")
	ErrSequenceExhausted       = errors.New("sequence exhausted for family year")
	ErrIllegalTransition       = errors.New("illegal state transition")
	ErrConcurrentModification  = errors.New("document modified concurrently")
	ErrIdempotencyKeyConflict  = errors.New("idempotency key conflict")
	// ErrIdempotencyKeyReplayed means an identical request committed under the
	// same key first; the stored response is the result.
	ErrIdempotencyKeyReplayed = errors.New("idempotency key already completed")
	ErrSequenceIDCollision    = errors.New("sequence id already issued")
)

// AllocationError reports that no sequence number could be issued. The document
// was not created and the whole create call may be retried.
type AllocationError struct {
	Family string
	Year   int
	Err    error
}

func (e *AllocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("allocate sequence for %s/%d", e.Family, e.Year)
	}
	return fmt.Sprintf("allocate sequence for %s/%d: %v", e.Family, e.Year, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

func (e *AllocationError) Is(target error) bool {
	return target == ErrAllocationFailed
}

// IllegalTransitionError reports a target state outside the family graph.
type IllegalTransitionError struct {
	Family string
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %q -> %q", e.Family, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// ConcurrentModificationError reports that the document no longer matches the
// status and version the caller read. The caller must re-read before retrying.
type ConcurrentModificationError struct {
	DocumentID      string
	ExpectedStatus  string
	ExpectedVersion int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("document %s changed since status %q version %d was read",
		e.DocumentID, e.ExpectedStatus, e.ExpectedVersion)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}
