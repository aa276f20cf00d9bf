package core

// load_gate.go keeps bulk loads from overlapping within a process.
//
// A bulk load clears the store before inserting, so a second load started
// mid-way would wipe the first one's rows. The gate is a single-slot
// semaphore: a load that cannot get the slot within maxWait fails with
// ErrLoadInProgress.
//
// WaitForDrain lets a shutting-down server wait for a running load.

import (
	"context"
	"sync"
	"time"
)

// DefaultLoadMaxWait is how long a load waits for the slot before giving up.
const DefaultLoadMaxWait = 5 * time.Second

// LoadGate serializes bulk loads.
type LoadGate struct {
	slot    chan struct{}
	maxWait time.Duration

	mu    sync.RWMutex
	since time.Time // start of the running load, zero when idle
}

// NewLoadGate creates a gate. Loads that cannot start within maxWait get
// ErrLoadInProgress.
func NewLoadGate(maxWait time.Duration) *LoadGate {
	if maxWait <= 0 {
		maxWait = DefaultLoadMaxWait
	}
	return &LoadGate{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the slot. The caller must call Release when done.
func (g *LoadGate) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.since = time.Now()
		g.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLoadInProgress
	}
}

// TryAcquire takes the slot if it is free, without waiting.
func (g *LoadGate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.since = time.Now()
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees the slot. Must be called once per successful acquire.
func (g *LoadGate) Release() {
	g.mu.Lock()
	g.since = time.Time{}
	g.mu.Unlock()

	<-g.slot
}

// Busy reports whether a load is running.
func (g *LoadGate) Busy() bool {
	return len(g.slot) > 0
}

// WaitForDrain blocks until no load is running or ctx is done.
func (g *LoadGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LoadGateStatus is a snapshot of the gate for health reporting.
type LoadGateStatus struct {
	Busy    bool      `json:"busy"`
	Since   time.Time `json:"since"`
	MaxWait string    `json:"max_wait"`
}

// Status returns the current gate state.
func (g *LoadGate) Status() LoadGateStatus {
	g.mu.RLock()
	since := g.since
	g.mu.RUnlock()

	return LoadGateStatus{
		Busy:    !since.IsZero(),
		Since:   since,
		MaxWait: g.maxWait.String(),
	}
}
