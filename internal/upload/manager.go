package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gopan-drive/internal/filetree"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/preview"
)

// ErrUnknownSession is returned for ids the manager does not hold.
var ErrUnknownSession = fmt.Errorf("%w: upload session", filetree.ErrNotFound)

// Options controls the transfer driver.
type Options struct {
	Tick     time.Duration // zero disables the driver; sessions advance manually
	Step     int           // percent per tick
	Precheck bool          // reject oversize uploads before any progress

	// OnFinish is called once per session when it commits or is cancelled.
	OnFinish func(Status)
}

// DefaultOptions advances every session by 10% every 100ms.
func DefaultOptions() Options {
	return Options{Tick: 100 * time.Millisecond, Step: 10}
}

// Request describes a file to upload. MimeType may be left empty; it is then
// sniffed from Sample or derived from the file extension.
type Request struct {
	Name      string
	ParentID  string
	SizeBytes int64
	MimeType  string
	Sample    []byte
}

// Manager owns the sessions of one drive.
type Manager struct {
	target Target
	owner  string
	opts   Options

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager that commits into target. owner prefixes the
// content refs it hands out.
func NewManager(target Target, owner string, opts Options) *Manager {
	if opts.Step <= 0 {
		opts.Step = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		target:   target,
		owner:    owner,
		opts:     opts,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Begin registers a session for req and, when a tick is configured, starts
// driving it. With Precheck on, an oversize request is rejected here and the
// cancelled session is still returned.
func (m *Manager) Begin(req Request) (*Session, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", filetree.ErrValidation)
	}
	if req.SizeBytes < 0 {
		return nil, fmt.Errorf("%w: file size must not be negative", filetree.ErrValidation)
	}

	id := uuid.New().String()
	spec := filetree.FileSpec{
		Name:       name,
		ParentID:   req.ParentID,
		SizeBytes:  req.SizeBytes,
		MimeType:   DetectMimeType(name, req.MimeType, req.Sample),
		ContentRef: ContentRef(m.owner, id, name),
	}
	s := NewSession(id, spec, m.target)
	s.onFinish = m.finished

	m.mu.Lock()
	m.sessions[id] = s
	m.order = append(m.order, id)
	m.mu.Unlock()

	logger.Debug("upload started",
		zap.String("upload_id", id),
		zap.String("owner", m.owner),
		zap.String("name", name),
		zap.Int64("size", req.SizeBytes))

	if m.opts.Precheck {
		if err := s.Precheck(); err != nil {
			return s, err
		}
	}
	if m.opts.Tick > 0 {
		m.wg.Add(1)
		go m.drive(s)
	}
	return s, nil
}

// drive advances s on every tick until it finishes or the manager closes.
func (m *Manager) drive(s *Session) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			_ = s.Cancel()
			return
		case <-ticker.C:
			st, err := s.Advance(m.opts.Step)
			if st.State.Terminal() || errors.Is(err, ErrFinished) {
				return
			}
		}
	}
}

func (m *Manager) finished(st Status) {
	switch st.State {
	case StateCommitted:
		logger.Info("upload committed",
			zap.String("upload_id", st.ID),
			zap.String("owner", m.owner),
			zap.String("node_id", st.NodeID),
			zap.Int64("size", st.SizeBytes))
	case StateCancelled:
		logger.Info("upload cancelled",
			zap.String("upload_id", st.ID),
			zap.String("owner", m.owner),
			zap.String("reason", st.Reason))
	}
	if m.opts.OnFinish != nil {
		m.opts.OnFinish(st)
	}
}

// Get returns a session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Advance steps a session by hand.
func (m *Manager) Advance(id string, step int) (Status, error) {
	s, err := m.Get(id)
	if err != nil {
		return Status{}, err
	}
	return s.Advance(step)
}

// Cancel cancels a session.
func (m *Manager) Cancel(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Cancel()
}

// List returns the status of every session in start order.
func (m *Manager) List() []Status {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		sessions = append(sessions, m.sessions[id])
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	return out
}

// Prune forgets finished sessions and reports how many were dropped.
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	dropped := 0
	for _, id := range m.order {
		if m.sessions[id].Status().State.Terminal() {
			delete(m.sessions, id)
			dropped++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return dropped
}

// Close cancels every running transfer and waits for the drivers to exit.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// ContentRef names the blob of an upload: <owner>/<uuid>/<filename>.
func ContentRef(owner, id, name string) string {
	return fmt.Sprintf("%s/%s/%s", owner, id, filepath.Base(name))
}

// DetectMimeType keeps a declared type, otherwise sniffs sample, otherwise
// falls back to the extension table.
func DetectMimeType(name, declared string, sample []byte) string {
	if declared != "" {
		return declared
	}
	if len(sample) > 0 {
		mt := mimetype.Detect(sample).String()
		if base, _, ok := strings.Cut(mt, ";"); ok {
			mt = base
		}
		if mt != "application/octet-stream" {
			return mt
		}
	}
	return preview.MimeFromExt(filepath.Ext(name))
}
