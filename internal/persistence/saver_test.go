package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"example.com/liftlog/internal/domain"
)

type recordingWriter struct {
	mu      sync.Mutex
	written []string
	gate    chan struct{}
	fail    map[string]error
}

func (w *recordingWriter) Write(_ context.Context, data []byte) error {
	if w.gate != nil {
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fail[string(data)]; err != nil {
		return err
	}
	w.written = append(w.written, string(data))
	return nil
}

func (w *recordingWriter) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...)
}

func runSaver(t *testing.T, s *Saver) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.Wait()
	})
}

func TestSaverWritesInSubmissionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &recordingWriter{}
	s := NewSaver(w)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	for seq := uint64(1); seq <= 20; seq++ {
		s.Submit(seq, []byte(fmt.Sprintf("doc-%02d", seq)))
	}
	require.NoError(t, s.Await(context.Background(), 20))
	cancel()
	s.Wait()

	written := w.snapshot()
	require.NotEmpty(t, written)
	require.Equal(t, "doc-20", written[len(written)-1])
	for i := 1; i < len(written); i++ {
		require.Less(t, written[i-1], written[i], "saves must never go backwards")
	}
	require.EqualValues(t, 20, s.Saved())
}

func TestSaverReplacesQueuedSnapshot(t *testing.T) {
	w := &recordingWriter{gate: make(chan struct{})}
	s := NewSaver(w)
	runSaver(t, s)

	s.Submit(1, []byte("one"))
	// Let the first write start and block inside the writer.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pending == nil
	}, time.Second, time.Millisecond)

	s.Submit(2, []byte("two"))
	s.Submit(3, []byte("three"))
	close(w.gate)

	require.NoError(t, s.Await(context.Background(), 3))
	// Await on a replaced snapshot resolves once a newer one is durable.
	require.NoError(t, s.Await(context.Background(), 2))
	require.Equal(t, []string{"one", "three"}, w.snapshot())
}

func TestSaverIgnoresStaleSubmissions(t *testing.T) {
	w := &recordingWriter{}
	s := NewSaver(w)
	s.Submit(5, []byte("five"))
	s.Submit(4, []byte("four"))

	runSaver(t, s)
	require.NoError(t, s.Await(context.Background(), 5))
	require.Equal(t, []string{"five"}, w.snapshot())
}

func TestSaverReportsFailedWrite(t *testing.T) {
	w := &recordingWriter{fail: map[string]error{"bad": errors.New("read-only filesystem")}}
	s := NewSaver(w)
	runSaver(t, s)

	s.Submit(1, []byte("bad"))
	err := s.Await(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	require.Zero(t, s.Saved())

	s.Submit(2, []byte("good"))
	require.NoError(t, s.Await(context.Background(), 2))
	require.NoError(t, s.Await(context.Background(), 1))
}

func TestSaverAwaitHonoursContext(t *testing.T) {
	s := NewSaver(&recordingWriter{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Await(ctx, 1), context.DeadlineExceeded)
}

func TestSaverFlushesOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &recordingWriter{}
	s := NewSaver(w)
	ctx, cancel := context.WithCancel(context.Background())
	s.Submit(1, []byte("final"))
	cancel()
	s.Start(ctx)
	s.Wait()
	require.Equal(t, []string{"final"}, w.snapshot())
}
