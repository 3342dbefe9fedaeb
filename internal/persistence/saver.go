package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/liftlog/internal/domain"
)

// Writer persists encoded document bytes. *Gateway satisfies it.
type Writer interface {
	Write(ctx context.Context, data []byte) error
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithSaverLogger overrides the saver logger.
func WithSaverLogger(logger *zap.Logger) SaverOption {
	return func(s *Saver) {
		s.logger = logger
	}
}

// WithWriteTimeout bounds a single document write.
func WithWriteTimeout(d time.Duration) SaverOption {
	return func(s *Saver) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

type saveJob struct {
	seq  uint64
	data []byte
}

// Saver writes submitted snapshots one at a time in sequence order. A
// snapshot that has not started writing when a newer one arrives is replaced
// by it, so the durable document always moves forward and never regresses to
// an older state. Each snapshot is a full copy of the state, so skipping one
// loses nothing the newer snapshot does not contain.
type Saver struct {
	writer       Writer
	logger       *zap.Logger
	writeTimeout time.Duration

	wake             chan struct{}
	shutdownComplete chan struct{}

	mu          sync.Mutex
	pending     *saveJob
	submitted   uint64
	attempted   uint64
	saved       uint64
	lastErr     error
	attemptDone chan struct{}
}

// NewSaver constructs a Saver writing through w.
func NewSaver(w Writer, opts ...SaverOption) *Saver {
	s := &Saver{
		writer:           w,
		logger:           zap.NewNop(),
		writeTimeout:     10 * time.Second,
		wake:             make(chan struct{}, 1),
		shutdownComplete: make(chan struct{}),
		attemptDone:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit queues the snapshot identified by seq. Sequence numbers must grow;
// a submission not newer than the last one is ignored.
func (s *Saver) Submit(seq uint64, data []byte) {
	s.mu.Lock()
	if seq <= s.submitted {
		s.mu.Unlock()
		return
	}
	s.submitted = seq
	if s.pending != nil {
		savesCoalesced.Inc()
	}
	s.pending = &saveJob{seq: seq, data: data}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start runs the write loop until ctx is cancelled. Snapshots queued at
// cancellation are still written before Start returns.
func (s *Saver) Start(ctx context.Context) {
	defer close(s.shutdownComplete)
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case <-s.wake:
			s.drain()
		}
	}
}

// Wait blocks until Start has returned.
func (s *Saver) Wait() {
	<-s.shutdownComplete
}

// Await blocks until the snapshot seq, or a newer one, is durable. It
// returns an error wrapping domain.ErrPersistenceFailure when the write that
// covered seq failed.
func (s *Saver) Await(ctx context.Context, seq uint64) error {
	for {
		s.mu.Lock()
		if s.saved >= seq {
			s.mu.Unlock()
			return nil
		}
		if s.attempted >= seq && s.lastErr != nil {
			err := s.lastErr
			s.mu.Unlock()
			return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
		}
		done := s.attemptDone
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}
}

// Saved returns the highest durable sequence number.
func (s *Saver) Saved() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

func (s *Saver) drain() {
	for {
		s.mu.Lock()
		job := s.pending
		s.pending = nil
		s.mu.Unlock()
		if job == nil {
			return
		}
		s.write(job)
	}
}

func (s *Saver) write(job *saveJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	err := s.writer.Write(ctx, job.data)
	cancel()

	if err != nil {
		s.logger.Error("document save failed", zap.Uint64("seq", job.seq), zap.Error(err))
	}

	s.mu.Lock()
	s.attempted = job.seq
	if err == nil {
		s.saved = job.seq
		s.lastErr = nil
	} else {
		s.lastErr = err
	}
	close(s.attemptDone)
	s.attemptDone = make(chan struct{})
	s.mu.Unlock()
}
