package game

import (
	stderrors "errors"
	"fmt"

	"github.com/victornm/dramquiz/internal/errors"
)

var (
	// ErrInsufficientPool matches any *InsufficientPoolError.
	ErrInsufficientPool = stderrors.New("insufficient question pool")
	// ErrPoolFetchFailed matches any *PoolFetchError.
	ErrPoolFetchFailed = stderrors.New("question pool fetch failed")
	// ErrDuplicateSubmission is returned for every resolution of a round after the first.
	ErrDuplicateSubmission = stderrors.New("round already resolved")
	// ErrInvalidConfig is returned when a session config is rejected before any round is shown.
	ErrInvalidConfig = stderrors.New("invalid session config")
	// ErrInvalidTransition is returned for events that the current state does not accept.
	ErrInvalidTransition = stderrors.New("invalid session transition")
	// ErrHintsUnavailable is returned when hints are requested in a mode without hints.
	ErrHintsUnavailable = stderrors.New("hints are not available in this mode")
	// ErrSessionNotFound is returned for unknown or discarded sessions.
	ErrSessionNotFound = stderrors.New("session not found")
)

// InsufficientPoolError reports that fewer eligible items exist than rounds requested.
type InsufficientPoolError struct {
	Requested int
	Available int
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("insufficient question pool: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientPoolError) Is(target error) bool { return target == ErrInsufficientPool }

// PoolFetchError wraps an I/O failure of the question source.
type PoolFetchError struct {
	err error
}

func (e *PoolFetchError) Error() string { return fmt.Sprintf("question pool fetch failed: %v", e.err) }

func (e *PoolFetchError) Unwrap() error { return e.err }

func (e *PoolFetchError) Is(target error) bool { return target == ErrPoolFetchFailed }

func init() {
	errors.RegisterClassifier(func(err error) (errors.Code, bool) {
		switch {
		case stderrors.Is(err, ErrInvalidConfig):
			return errors.CodeInvalidArgument, true
		case stderrors.Is(err, ErrSessionNotFound):
			return errors.CodeNotFound, true
		case stderrors.Is(err, ErrDuplicateSubmission):
			return errors.CodeAlreadyExists, true
		case stderrors.Is(err, ErrInsufficientPool):
			return errors.CodeFailedPrecondition, true
		case stderrors.Is(err, ErrInvalidTransition), stderrors.Is(err, ErrHintsUnavailable):
			return errors.CodeAborted, true
		case stderrors.Is(err, ErrPoolFetchFailed):
			return errors.CodeUnavailable, true
		}
		return 0, false
	})
}
