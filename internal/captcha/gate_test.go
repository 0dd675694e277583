package captcha

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeStore is an in-memory SuccessStore.
type fakeStore struct {
	verified map[string]bool
	err      error
	calls    int
}

func (s *fakeStore) Verified(_ context.Context, ip string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.verified[ip], nil
}

func testConfig() Config {
	return Config{
		Ports:       []int{6667, 6697},
		URL:         "https://example.net/verify/",
		CacheTTL:    10 * time.Minute,
		MaxAttempts: 5,
	}
}

func TestCheckConnect_UnprotectedPortSkipsEverything(t *testing.T) {
	store := &fakeStore{}
	g := NewGate(store, nil, testConfig())

	d := g.CheckConnect(context.Background(), "203.0.113.9", 9999)
	if !d.Allow {
		t.Fatal("connection on an unprotected port was denied")
	}
	if store.calls != 0 {
		t.Errorf("store consulted %d times for an unprotected port, want 0", store.calls)
	}
}

func TestCheckConnect_VerifiedAllowed(t *testing.T) {
	store := &fakeStore{verified: map[string]bool{"203.0.113.9": true}}
	g := NewGate(store, nil, testConfig())

	d := g.CheckConnect(context.Background(), "203.0.113.9", 6667)
	if !d.Allow {
		t.Fatalf("verified IP denied: %q", d.Reason)
	}
}

func TestCheckConnect_UnverifiedDeniedWithURL(t *testing.T) {
	store := &fakeStore{}
	g := NewGate(store, nil, testConfig())

	d := g.CheckConnect(context.Background(), "203.0.113.9", 6697)
	if d.Allow {
		t.Fatal("unverified IP allowed")
	}
	if !strings.Contains(d.Reason, "https://example.net/verify/") {
		t.Errorf("denial reason = %q, want it to include the CAPTCHA URL", d.Reason)
	}
}

func TestCheckConnect_DatabaseErrorFailsOpen(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	g := NewGate(store, nil, testConfig())

	d := g.CheckConnect(context.Background(), "203.0.113.9", 6667)
	if !d.Allow {
		t.Error("database outage locked out a user; the gate must fail open")
	}
}

func TestCheckConnect_ThrottleAfterMaxAttempts(t *testing.T) {
	cfg := testConfig()
	store := &fakeStore{}
	g := NewGate(store, nil, cfg)

	ip := "203.0.113.9"
	for i := 0; i < cfg.MaxAttempts; i++ {
		d := g.CheckConnect(context.Background(), ip, 6667)
		if d.Allow {
			t.Fatalf("attempt %d allowed for unverified IP", i)
		}
		if strings.Contains(d.Reason, "Too many") {
			t.Fatalf("attempt %d throttled before the burst was spent", i)
		}
	}

	d := g.CheckConnect(context.Background(), ip, 6667)
	if d.Allow || !strings.Contains(d.Reason, "Too many") {
		t.Errorf("attempt past the burst = %+v, want throttled denial", d)
	}
	if store.calls != cfg.MaxAttempts {
		t.Errorf("store consulted %d times, want %d (throttled check must not hit it)", store.calls, cfg.MaxAttempts)
	}

	// Another IP has its own bucket.
	if d := g.CheckConnect(context.Background(), "198.51.100.7", 6667); strings.Contains(d.Reason, "Too many") {
		t.Error("throttle leaked across IPs")
	}
}
