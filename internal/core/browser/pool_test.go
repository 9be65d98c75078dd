package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-rod/rod"
)

func fakePool(healthy *atomic.Bool) (*Pool, *atomic.Int32, *atomic.Int32) {
	var launches, cleanups atomic.Int32
	p := NewPool(Options{Headless: true})
	p.launch = func(context.Context) (*rod.Browser, func(), error) {
		launches.Add(1)
		return rod.New(), func() { cleanups.Add(1) }, nil
	}
	p.check = func(*rod.Browser) bool { return healthy.Load() }
	return p, &launches, &cleanups
}

func TestConcurrentFirstUseLaunchesOnce(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	p, launches, _ := fakePool(&healthy)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.get(context.Background()); err != nil {
				t.Errorf("get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := launches.Load(); got != 1 {
		t.Errorf("launches = %d; want 1", got)
	}
}

func TestRelaunchAfterDisconnect(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	p, launches, cleanups := fakePool(&healthy)

	first, _ := p.get(context.Background())
	healthy.Store(false)
	second, err := p.get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	healthy.Store(true)

	if first == second {
		t.Error("expected a new browser after the health check failed")
	}
	if launches.Load() != 2 || cleanups.Load() != 1 {
		t.Errorf("launches=%d cleanups=%d; want 2 and 1", launches.Load(), cleanups.Load())
	}

	if _, err := p.get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if launches.Load() != 2 {
		t.Errorf("healthy browser was relaunched")
	}
}

func TestClosedPoolRefusesAcquire(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	p, _, cleanups := fakePool(&healthy)

	if _, err := p.get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if cleanups.Load() != 1 {
		t.Errorf("cleanups = %d; want 1", cleanups.Load())
	}
	if _, err := p.Acquire(context.Background()); err == nil {
		t.Error("Acquire() on a closed pool should fail")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := &Session{}
	s.Release()
	s.Release()
}
