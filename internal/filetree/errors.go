package filetree

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrValidation marks rejected input; the store is unchanged.
	ErrValidation = errors.New("validation error")
	// ErrQuotaExceeded marks a file that does not fit the active quota.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNotFound marks a stale or unknown node id.
	ErrNotFound = errors.New("node not found")
	// ErrInvalidState marks a transition the node's state does not allow.
	ErrInvalidState = errors.New("invalid node state")
	// ErrBrokenPath marks a parent chain that does not reach the root.
	ErrBrokenPath = errors.New("broken path")
)

// QuotaError carries the numbers behind a quota rejection so callers can
// render an upgrade prompt.
type QuotaError struct {
	Used      int64
	Requested int64
	Limit     int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %s used + %s requested > %s limit",
		humanize.IBytes(uint64(e.Used)), humanize.IBytes(uint64(e.Requested)), humanize.IBytes(uint64(e.Limit)))
}

// Is reports ErrQuotaExceeded.
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

func notFound(id string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}

func invalidState(id, why string) error {
	return fmt.Errorf("%w: %q %s", ErrInvalidState, id, why)
}

func invalid(why string) error {
	return fmt.Errorf("%w: %s", ErrValidation, why)
}
