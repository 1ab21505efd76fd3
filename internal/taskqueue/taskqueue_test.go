package taskqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnqueueDispatchesToRegisteredHandler(t *testing.T) {
	q := New(1, 8, 0, nil)
	defer q.Close()

	var got atomic.Value
	done := make(chan struct{})
	q.Register("greet", func(ctx context.Context, payload any) error {
		got.Store(payload)
		close(done)
		return nil
	})

	if err := q.Enqueue(context.Background(), "greet", "hello"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
	if got.Load() != "hello" {
		t.Errorf("handler payload = %v, want hello", got.Load())
	}
}

func TestEnqueueUnknownTaskErrors(t *testing.T) {
	q := New(1, 8, 0, nil)
	defer q.Close()

	if err := q.Enqueue(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error enqueuing to an unregistered task")
	}
}

func TestHandlerErrorIsRetried(t *testing.T) {
	q := New(1, 8, 2, nil)
	defer q.Close()

	var attempts int32
	var wg sync.WaitGroup
	wg.Add(1)
	q.Register("flaky", func(ctx context.Context, payload any) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("transient")
		}
		wg.Done()
		return nil
	})

	if err := q.Enqueue(context.Background(), "flaky", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	doneCh := make(chan struct{})
	go func() { wg.Wait(); close(doneCh) }()
	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not eventually succeed after retries")
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
