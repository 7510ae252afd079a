package record

import (
	stderrors "errors"

	"github.com/victornm/dramquiz/internal/errors"
)

var (
	// ErrNotFound is returned for sessions that were never recorded.
	ErrNotFound = stderrors.New("session record not found")
	// ErrPersistenceDeferred is returned when every save attempt failed. The summary
	// is kept for a later Retry; gameplay is never affected.
	ErrPersistenceDeferred = stderrors.New("session persistence deferred")
)

func init() {
	errors.RegisterClassifier(func(err error) (errors.Code, bool) {
		switch {
		case stderrors.Is(err, ErrNotFound):
			return errors.CodeNotFound, true
		case stderrors.Is(err, ErrPersistenceDeferred):
			return errors.CodeUnavailable, true
		}
		return 0, false
	})
}
