package ratelimit_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/threaded-comments-api/internal/ratelimit"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAllow_BurstThenBlock(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(clock.Now)

	for i := 1; i <= 3; i++ {
		if !l.Allow("1.2.3.4", 60, 3) {
			t.Fatalf("call %d should be allowed", i)
		}
		clock.Advance(time.Second)
	}
	if l.Allow("1.2.3.4", 60, 3) {
		t.Error("call past the limit should be denied")
	}
}

func TestAllow_ResetAfterSilence(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(clock.Now)

	l.Allow("a", 60, 1)
	if l.Allow("a", 60, 1) {
		t.Fatal("second call should be denied")
	}

	clock.Advance(60 * time.Second)
	if !l.Allow("a", 60, 1) {
		t.Error("key should be allowed again after the window")
	}
}

func TestAllow_SweepIsGlobal(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(clock.Now)

	l.Allow("a", 60, 1)
	clock.Advance(61 * time.Second)

	// a call from another key evicts the stale entry
	l.Allow("b", 60, 1)
	if got := l.Len(); got != 1 {
		t.Errorf("expected only b to remain, got %d entries", got)
	}
}

func TestAllow_DeniedCallDoesNotRefresh(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(clock.Now)

	l.Allow("a", 60, 1)
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		if l.Allow("a", 60, 1) {
			t.Fatalf("call at +%ds should be denied", (i+1)*10)
		}
	}

	// 60s after the only successful call
	clock.Advance(10 * time.Second)
	if !l.Allow("a", 60, 1) {
		t.Error("blocked key should age out from its last success")
	}
}

func TestAllow_SuccessesKeepEntryAlive(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewWithClock(clock.Now)

	for i := 0; i < 4; i++ {
		if !l.Allow("a", 60, 5) {
			t.Fatalf("call %d should be allowed", i+1)
		}
		clock.Advance(50 * time.Second)
	}

	// the count never reset because every success refreshed the timestamp
	if !l.Allow("a", 60, 5) {
		t.Fatal("fifth call should be allowed")
	}
	if l.Allow("a", 60, 5) {
		t.Error("sixth call should be denied even though calls were spread out")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := ratelimit.New()

	if !l.Allow("a", 60, 1) || !l.Allow("b", 60, 1) {
		t.Fatal("first call per key should be allowed")
	}
	if l.Allow("a", 60, 1) {
		t.Error("a should be limited")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := ratelimit.New()
	const workers = 50
	const max = 10

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared", 60, max) {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	if allowed != max {
		t.Errorf("expected exactly %d allowed calls, got %d", max, allowed)
	}
}

func BenchmarkAllow(b *testing.B) {
	l := ratelimit.New()
	keys := make([]string, 256)
	for i := range keys {
		keys[i] = fmt.Sprintf("10.0.0.%d", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Allow(keys[i%len(keys)], 60, 1000)
	}
}
