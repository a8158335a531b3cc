package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestIntervalGate_EveryPassWaitsInterval(t *testing.T) {
	gate := NewIntervalGate(20 * time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := time.Now()
		if err := gate.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 18*time.Millisecond {
			t.Errorf("pass %d took %v, want at least 20ms", i, elapsed)
		}
	}
}

func TestIntervalGate_WaitsAfterIdle(t *testing.T) {
	gate := NewIntervalGate(20 * time.Millisecond)
	ctx := context.Background()

	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	start := time.Now()
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 18*time.Millisecond {
		t.Errorf("pass after idle took %v, want at least 20ms", elapsed)
	}
}

func TestIntervalGate_SpacesConcurrentCallers(t *testing.T) {
	gate := NewIntervalGate(20 * time.Millisecond)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		passes []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Wait(ctx); err != nil {
				t.Errorf("Wait() error = %v", err)
				return
			}
			mu.Lock()
			passes = append(passes, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	first, last := passes[0], passes[0]
	for _, p := range passes {
		if p.Before(first) {
			first = p
		}
		if p.After(last) {
			last = p
		}
	}
	if spread := last.Sub(first); spread < 35*time.Millisecond {
		t.Errorf("three concurrent passes spread over %v, want at least ~40ms", spread)
	}
}

func TestIntervalGate_ZeroIntervalNeverBlocks(t *testing.T) {
	gate := NewIntervalGate(0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 100; i++ {
		if err := gate.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v on pass %d", err, i)
		}
	}
}

func TestIntervalGate_ContextEndsWait(t *testing.T) {
	gate := NewIntervalGate(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := gate.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait() returned after %v, want prompt return", elapsed)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := gate.Wait(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}
