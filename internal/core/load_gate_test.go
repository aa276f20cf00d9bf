package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadGate_AcquireRelease(t *testing.T) {
	gate := NewLoadGate(time.Second)

	if gate.Busy() {
		t.Fatal("new gate should be idle")
	}

	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !gate.Busy() {
		t.Error("gate should be busy after Acquire")
	}
	if st := gate.Status(); !st.Busy || st.Since.IsZero() {
		t.Errorf("Status() = %+v, want busy with start time", st)
	}

	gate.Release()

	if gate.Busy() {
		t.Error("gate should be idle after Release")
	}
	if st := gate.Status(); st.Busy {
		t.Errorf("Status() = %+v, want idle", st)
	}
}

func TestLoadGate_SecondLoadTimesOut(t *testing.T) {
	gate := NewLoadGate(100 * time.Millisecond)
	ctx := context.Background()

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	start := time.Now()
	err := gate.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrLoadInProgress) {
		t.Errorf("expected ErrLoadInProgress, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
}

func TestLoadGate_OneAtATime(t *testing.T) {
	gate := NewLoadGate(5 * time.Second)

	var wg sync.WaitGroup
	var running, maxObserved int32

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer gate.Release()

			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxObserved)
				if n <= m || atomic.CompareAndSwapInt32(&maxObserved, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	if maxObserved != 1 {
		t.Errorf("observed %d concurrent loads, want 1", maxObserved)
	}
}

func TestLoadGate_TryAcquire(t *testing.T) {
	gate := NewLoadGate(time.Second)

	if !gate.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if gate.TryAcquire() {
		t.Error("second TryAcquire should fail")
		gate.Release()
	}
	gate.Release()

	if !gate.TryAcquire() {
		t.Error("TryAcquire after Release should succeed")
	}
	gate.Release()
}

func TestLoadGate_ContextCancellation(t *testing.T) {
	gate := NewLoadGate(5 * time.Second)
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gate.Acquire(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after cancellation")
	}
}

func TestLoadGate_WaitForDrain(t *testing.T) {
	gate := NewLoadGate(time.Second)

	if err := gate.WaitForDrain(context.Background()); err != nil {
		t.Fatalf("idle gate should drain immediately: %v", err)
	}

	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		gate.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := gate.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain() = %v, want nil", err)
	}
}

func TestNewLoadGate_DefaultWait(t *testing.T) {
	gate := NewLoadGate(0)
	if gate.maxWait != DefaultLoadMaxWait {
		t.Errorf("maxWait = %v, want %v", gate.maxWait, DefaultLoadMaxWait)
	}
}
