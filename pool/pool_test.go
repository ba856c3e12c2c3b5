package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitAndWait(t *testing.T) {
	p := New(2)
	defer p.Close()

	f := Submit(p, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	got, err := f.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestWaitTimesOutWithoutStoppingTask(t *testing.T) {
	p := New(2)
	defer p.Close()

	release := make(chan struct{})
	var finished atomic.Bool
	f := Submit(p, func(ctx context.Context) (string, error) {
		<-release
		finished.Store(true)
		return "late", nil
	})

	if _, err := f.Wait(20 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait = %v, want ErrTimeout", err)
	}

	// The orphaned task is still running and can finish later.
	close(release)
	got, err := f.Wait(time.Second)
	if err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if got != "late" || !finished.Load() {
		t.Errorf("got %q finished=%v, want late/true", got, finished.Load())
	}
}

func TestWaitZeroTimeoutPolls(t *testing.T) {
	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	f := Submit(p, func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})
	if _, err := f.Wait(0); !errors.Is(err, ErrTimeout) {
		t.Errorf("Wait(0) on running task = %v, want ErrTimeout", err)
	}
	close(block)
	<-f.Done()
	if v, err := f.Wait(0); err != nil || v != 1 {
		t.Errorf("Wait(0) on done task = %d, %v", v, err)
	}
}

func TestTaskErrorPropagates(t *testing.T) {
	p := New(1)
	defer p.Close()

	boom := errors.New("boom")
	f := Submit(p, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if _, err := f.Wait(time.Second); !errors.Is(err, boom) {
		t.Errorf("Wait = %v, want boom", err)
	}
}

func TestTaskPanicRecovered(t *testing.T) {
	p := New(1)
	defer p.Close()

	f := Submit(p, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})
	if _, err := f.Wait(time.Second); err == nil {
		t.Fatal("expected error from panicking task")
	}

	// The worker survives.
	g := Submit(p, func(ctx context.Context) (int, error) { return 7, nil })
	if v, err := g.Wait(time.Second); err != nil || v != 7 {
		t.Errorf("after panic: %d, %v", v, err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(1)
	p.Close()
	p.Close() // idempotent

	f := Submit(p, func(ctx context.Context) (int, error) { return 1, nil })
	if _, err := f.Wait(time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("Wait = %v, want ErrClosed", err)
	}
}

func TestSubmitSaturated(t *testing.T) {
	p := New(1)
	block := make(chan struct{})
	defer func() {
		close(block)
		p.Close()
	}()

	blocker := func(ctx context.Context) (int, error) {
		<-block
		return 0, nil
	}

	// One running plus a full queue.
	Submit(p, blocker)
	deadline := time.Now().Add(time.Second)
	for p.Busy() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < queueFactor; i++ {
		Submit(p, blocker)
	}

	f := Submit(p, blocker)
	if _, err := f.Wait(0); !errors.Is(err, ErrSaturated) {
		t.Errorf("Wait = %v, want ErrSaturated", err)
	}
	if p.Queued() != queueFactor {
		t.Errorf("Queued = %d, want %d", p.Queued(), queueFactor)
	}
}

func TestCloseCancelsTaskContext(t *testing.T) {
	p := New(1)

	started := make(chan struct{})
	f := Submit(p, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := f.Wait(0); !errors.Is(err, context.Canceled) {
		t.Errorf("task err = %v, want context.Canceled", err)
	}
}
