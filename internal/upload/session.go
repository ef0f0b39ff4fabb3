// Package upload simulates progressive transfers into a file tree. A Session
// moves Pending -> Transferring -> Committed | Cancelled and creates its node
// exactly once, when progress reaches 100.
package upload

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gopan-drive/internal/filetree"
)

// State is the lifecycle stage of a session.
type State string

const (
	StatePending      State = "pending"
	StateTransferring State = "transferring"
	StateCommitted    State = "committed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCancelled
}

var (
	// ErrCancelled is the reason recorded when a caller cancels.
	ErrCancelled = errors.New("upload cancelled")
	// ErrFinished is returned when a terminal session is advanced.
	ErrFinished = fmt.Errorf("%w: upload already finished", filetree.ErrInvalidState)
)

// Target is where a finished upload lands.
type Target interface {
	CreateFile(spec filetree.FileSpec) (filetree.Node, error)
	Capacity() filetree.Capacity
}

// Status is a point-in-time copy of a session.
type Status struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id"`
	SizeBytes int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	State     State     `json:"state"`
	Percent   int       `json:"percent"`
	Reason    string    `json:"reason,omitempty"`
	NodeID    string    `json:"node_id,omitempty"`
	StartedAt time.Time `json:"started_at"`

	// Err is the failure behind a cancelled session.
	Err error `json:"-"`
}

// Session is one file transfer.
type Session struct {
	mu      sync.Mutex
	id      string
	spec    filetree.FileSpec
	target  Target
	state   State
	percent int
	reason  error
	node    *filetree.Node
	started time.Time

	onFinish func(Status)
}

// NewSession creates a pending session. The quota is only checked when the
// transfer commits; call Precheck first to fail before any progress.
func NewSession(id string, spec filetree.FileSpec, target Target) *Session {
	return &Session{id: id, spec: spec, target: target, state: StatePending, started: time.Now()}
}

func (s *Session) ID() string { return s.id }

// Precheck rejects a pending session whose size does not fit the remaining
// quota right now. A rejected session is cancelled with a *QuotaError.
func (s *Session) Precheck() error {
	s.mu.Lock()
	if s.state != StatePending {
		s.mu.Unlock()
		return nil
	}
	c := s.target.Capacity()
	if s.spec.SizeBytes <= c.Remaining {
		s.mu.Unlock()
		return nil
	}
	err := &filetree.QuotaError{Used: c.Used, Requested: s.spec.SizeBytes, Limit: c.Limit}
	st := s.finishLocked(StateCancelled, err)
	s.mu.Unlock()

	s.notify(st)
	return err
}

// Advance adds step percent of progress. A pending session starts
// transferring on its first step. Reaching 100 commits the file; if the
// commit fails the session is cancelled, its progress rolled back to 0, and
// the commit error returned.
func (s *Session) Advance(step int) (Status, error) {
	s.mu.Lock()
	if s.state.Terminal() {
		st := s.statusLocked()
		s.mu.Unlock()
		return st, ErrFinished
	}
	if step < 0 {
		step = 0
	}
	if step > 100-s.percent {
		step = 100 - s.percent
	}
	s.state = StateTransferring
	s.percent += step
	if s.percent < 100 {
		st := s.statusLocked()
		s.mu.Unlock()
		return st, nil
	}

	s.percent = 100
	n, err := s.target.CreateFile(s.spec)
	var st Status
	if err != nil {
		s.percent = 0
		st = s.finishLocked(StateCancelled, err)
	} else {
		s.node = &n
		st = s.finishLocked(StateCommitted, nil)
	}
	s.mu.Unlock()

	s.notify(st)
	return st, err
}

// Cancel stops a pending or transferring session. Cancelling a cancelled
// session is a no-op; cancelling a committed one returns ErrFinished. The
// tree is never touched.
func (s *Session) Cancel() error {
	s.mu.Lock()
	switch s.state {
	case StateCancelled:
		s.mu.Unlock()
		return nil
	case StateCommitted:
		s.mu.Unlock()
		return ErrFinished
	}
	st := s.finishLocked(StateCancelled, ErrCancelled)
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// Status returns a copy of the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) finishLocked(state State, reason error) Status {
	s.state = state
	s.reason = reason
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := Status{
		ID:        s.id,
		Name:      s.spec.Name,
		ParentID:  s.spec.ParentID,
		SizeBytes: s.spec.SizeBytes,
		MimeType:  s.spec.MimeType,
		State:     s.state,
		Percent:   s.percent,
		StartedAt: s.started,
		Err:       s.reason,
	}
	if s.reason != nil {
		st.Reason = s.reason.Error()
	}
	if s.node != nil {
		st.NodeID = s.node.ID
	}
	return st
}

func (s *Session) notify(st Status) {
	if s.onFinish != nil {
		s.onFinish(st)
	}
}
