package worker

import (
	"context"
	"testing"
	"time"
)

// immediate reports whether a write is allowed without waiting.
func immediate(l *Limiter) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return l.Wait(ctx) == nil
}

func TestLimiter_Unlimited(t *testing.T) {
	for _, rps := range []float64{0, -1} {
		l := NewLimiter(rps, 5)
		if !l.Unlimited() {
			t.Errorf("rate %v: expected unlimited", rps)
		}
		for i := 0; i < 100; i++ {
			if !immediate(l) {
				t.Fatalf("rate %v: write %d throttled", rps, i)
			}
		}
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter throttled: %v", err)
	}
}

func TestLimiter_UnlimitedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewLimiter(0, 0).Wait(ctx); err == nil {
		t.Error("expected cancelled context error")
	}
}

func TestLimiter_Burst(t *testing.T) {
	l := NewLimiter(1, 2)
	if l.Unlimited() {
		t.Fatal("expected a throttling limiter")
	}
	if !immediate(l) || !immediate(l) {
		t.Fatal("burst of 2 not honoured")
	}
	if immediate(l) {
		t.Error("third immediate write allowed at 1 write/s")
	}
}

func TestLimiter_DefaultBurst(t *testing.T) {
	l := NewLimiter(1, 0)
	if !immediate(l) {
		t.Fatal("first write throttled")
	}
	if immediate(l) {
		t.Error("expected default burst of 1")
	}
}

func TestLimiter_Paces(t *testing.T) {
	l := NewLimiter(50, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected pacing of ~40ms, got %v", elapsed)
	}
}
