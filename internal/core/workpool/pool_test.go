package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2, 10)
	p.Start()
	defer p.Stop()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d; want <= 2", got)
	}
	if got := p.Stats().Completed; got != 8 {
		t.Errorf("Completed = %d; want 8", got)
	}
}

func TestSubmitHonoursContext(t *testing.T) {
	p := New(1, 0)
	p.Start()
	defer p.Stop()

	block := make(chan struct{})
	defer close(block)
	if err := p.Submit(context.Background(), func() { <-block }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit() error = %v; want deadline exceeded", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p := New(1, 1)
	p.Start()
	p.Stop()
	p.Stop()

	if err := p.Submit(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() error = %v; want ErrClosed", err)
	}
}
