package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/gatewayfs/gatewayfs/internal/workerpool"
	gwerrors "github.com/gatewayfs/gatewayfs/pkg/errors"
)

func newTestExecutor(t *testing.T, workers int) (*Executor, *workerpool.Pool) {
	t.Helper()
	pool := workerpool.New(workers)
	pool.Start()
	t.Cleanup(pool.Stop)
	return New(pool, nil), pool
}

func TestSubmitAwaitSuccess(t *testing.T) {
	t.Parallel()

	ex, _ := newTestExecutor(t, 2)

	val, err := SubmitAwait(ex, time.Second, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("val = %d, want 42", val)
	}
}

func TestSubmitAwaitPropagatesError(t *testing.T) {
	t.Parallel()

	ex, _ := newTestExecutor(t, 2)
	wantErr := errors.New("backend failure")

	_, err := SubmitAwait(ex, time.Second, func() (int, error) {
		return 0, wantErr
	})
	if err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestSubmitAwaitNeverStarted(t *testing.T) {
	t.Parallel()

	// A single-worker pool kept busy forever means the next task never
	// gets dequeued before our short deadline.
	pool := workerpool.New(1)
	pool.Start()
	t.Cleanup(pool.Stop)
	ex := New(pool, nil)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		<-block
	})
	// Wait until the worker holds the blocker, so the priority submission
	// below cannot be dequeued ahead of it.
	<-started

	_, err := SubmitAwait(ex, 20*time.Millisecond, func() (int, error) {
		return 1, nil
	})

	var gwErr *gwerrors.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %v", err)
	}
	if gwErr.Kind != gwerrors.RequestUninitialized {
		t.Errorf("Kind = %v, want RequestUninitialized", gwErr.Kind)
	}
	if !gwErr.Retryable {
		t.Error("never-started timeout should be retryable")
	}
}

func TestSubmitAwaitStillRunning(t *testing.T) {
	t.Parallel()

	ex, _ := newTestExecutor(t, 2)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	_, err := SubmitAwait(ex, 20*time.Millisecond, func() (int, error) {
		<-release
		return 1, nil
	})

	var gwErr *gwerrors.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %v", err)
	}
	if gwErr.Kind != gwerrors.RequestWaiting {
		t.Errorf("Kind = %v, want RequestWaiting", gwErr.Kind)
	}
	if gwErr.Retryable {
		t.Error("still-running timeout should not be retryable")
	}
}

func TestSubmitDetachedRunsHandler(t *testing.T) {
	t.Parallel()

	ex, _ := newTestExecutor(t, 2)

	done := make(chan struct{})
	var gotVal int
	var gotErr error

	SubmitDetached(ex, func() (int, error) {
		return 7, nil
	}, func(v int, e error) {
		gotVal, gotErr = v, e
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}

	if gotErr != nil {
		t.Errorf("unexpected error: %v", gotErr)
	}
	if gotVal != 7 {
		t.Errorf("gotVal = %d, want 7", gotVal)
	}
}
