package ratelimit

import (
	"testing"
	"time"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/config"
)

func TestLimiterAllowsUpToMax(t *testing.T) {
	l := NewLimiter()
	rule := config.RateLimitRule{Window: time.Minute, Max: 4}

	for i := 0; i < 4; i++ {
		if !l.Allow("room_access", "ip:1.2.3.4", rule) {
			t.Fatalf("request %d unexpectedly rejected", i)
		}
	}
	if l.Allow("room_access", "ip:1.2.3.4", rule) {
		t.Fatal("5th request should have been rejected")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter()
	rule := config.RateLimitRule{Window: time.Minute, Max: 1}

	if !l.Allow("download", "ip:a", rule) {
		t.Fatal("first request for ip:a should be allowed")
	}
	if !l.Allow("download", "ip:b", rule) {
		t.Fatal("first request for ip:b should be allowed (independent bucket)")
	}
	if l.Allow("download", "ip:a", rule) {
		t.Fatal("second request for ip:a should be rejected")
	}
}

func TestCheckOrRejectCarriesRetryAfter(t *testing.T) {
	l := NewLimiter()
	rule := config.RateLimitRule{Window: 15 * time.Minute, Max: 1}

	if err := CheckOrReject(l, "upload", "ip:x", rule); err != nil {
		t.Fatalf("first call should pass, got %v", err)
	}
	err := CheckOrReject(l, "upload", "ip:x", rule)
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.RetryAfter != 900 {
		t.Fatalf("expected Retry-After of 900 seconds, got %v", err)
	}
}

type fakeSampler struct {
	h   Health
	err error
}

func (f fakeSampler) Sample() (Health, error) { return f.h, f.err }

func TestOverloadGuardShedsHeavyRoutesOnly(t *testing.T) {
	cfg := config.OverloadConfig{SampleInterval: time.Millisecond, MaxRSSMB: 100, MinFreeMemMB: 50, MaxLoadPerCPU: 1.0}
	guard := NewOverloadGuard(fakeSampler{h: Health{ResidentMemoryMB: 500}}, cfg)

	if err := guard.Check("upload_init"); err == nil {
		t.Fatal("expected overload error for heavy route")
	}
	if err := guard.Check("presence"); err != nil {
		t.Fatalf("light route must never be shed, got %v", err)
	}
}

func TestOverloadGuardHealthyPasses(t *testing.T) {
	cfg := config.OverloadConfig{SampleInterval: time.Millisecond, MaxRSSMB: 1000, MinFreeMemMB: 10, MaxLoadPerCPU: 10}
	guard := NewOverloadGuard(fakeSampler{h: Health{ResidentMemoryMB: 10, FreeSystemMemMB: 900, LoadPerCPU: 0.1}}, cfg)

	if err := guard.Check("upload_init"); err != nil {
		t.Fatalf("expected no shedding, got %v", err)
	}
}
