package app

import "errors"

const (
	// CategoryPersistence marks a failed request/response channel call that
	// aborted the operation before any local mutation.
	CategoryPersistence = "persistence"
	// CategoryTransientSync marks a failure after a successful local merge
	// (broadcast or receipt persistence); local optimistic state stands.
	CategoryTransientSync = "transient_sync"
	// CategoryInconsistentEvent marks an inbound event that matched no
	// conversation; such events are logged and dropped.
	CategoryInconsistentEvent = "inconsistent_event"
	// CategoryRateLimited marks a local send rejected by the outbound
	// limiter before any I/O.
	CategoryRateLimited = "rate_limited"
)

var (
	ErrAlreadyStarted = errors.New("synchronizer already started")
	ErrNotStarted     = errors.New("synchronizer not started")
)

// CategorizedError attaches one of the failure categories to an underlying
// error so callers can branch without string matching.
type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// IsCategory reports whether err carries the given failure category.
func IsCategory(err error, category string) bool {
	var ce *CategorizedError
	return errors.As(err, &ce) && ce.Category == category
}

func categorized(category string, err error) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Category: category, Err: err}
}
