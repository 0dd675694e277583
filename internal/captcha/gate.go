package captcha

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/revrsedev/inspircd-mods-contrib/internal/metrics"
)

// verifiedPrefix is the Redis key prefix for cached verifications.
const verifiedPrefix = "captcha:verified:"

// maxTrackedIPs bounds the throttle map. When the cap is hit the map is
// reset wholesale; the cost is a burst of fresh tokens, not a correctness
// problem.
const maxTrackedIPs = 16384

// Decision is the gate's verdict for one registering connection.
type Decision struct {
	Allow  bool
	Reason string // shown to the user on denial
}

// Config holds the gate's tunables, taken from the captcha config section.
type Config struct {
	Ports       []int
	URL         string
	CacheTTL    time.Duration
	MaxAttempts int
}

// Gate checks registering connections against the CAPTCHA records.
type Gate struct {
	store SuccessStore
	rdb   *redis.Client // nil disables the verified cache
	cfg   Config
	ports map[int]bool

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewGate creates a Gate. rdb may be nil, in which case every check goes
// to the store.
func NewGate(store SuccessStore, rdb *redis.Client, cfg Config) *Gate {
	ports := make(map[int]bool, len(cfg.Ports))
	for _, p := range cfg.Ports {
		ports[p] = true
	}
	return &Gate{
		store:    store,
		rdb:      rdb,
		cfg:      cfg,
		ports:    ports,
		limiters: make(map[string]*rate.Limiter),
	}
}

// CheckConnect decides whether a connection from ip on the given local
// port may register. Ports outside the configured list are never checked.
// Database failures fail open with a log line: a CAPTCHA backend outage
// must not lock every new user out of the network.
func (g *Gate) CheckConnect(ctx context.Context, ip string, port int) Decision {
	if !g.ports[port] {
		return Decision{Allow: true}
	}

	if g.cachedVerified(ctx, ip) {
		metrics.CaptchaChecks.WithLabelValues("cached").Inc()
		return Decision{Allow: true}
	}

	if !g.limiter(ip).Allow() {
		metrics.CaptchaChecks.WithLabelValues("throttled").Inc()
		return Decision{
			Allow:  false,
			Reason: "Too many CAPTCHA verification attempts. Please wait before reconnecting.",
		}
	}

	ok, err := g.store.Verified(ctx, ip)
	if err != nil {
		log.Printf("[captcha] lookup for %s failed: %v (failing open)", ip, err)
		metrics.CaptchaChecks.WithLabelValues("db_error").Inc()
		return Decision{Allow: true}
	}

	if !ok {
		metrics.CaptchaChecks.WithLabelValues("denied").Inc()
		return Decision{
			Allow:  false,
			Reason: fmt.Sprintf("You must complete a CAPTCHA before connecting. Visit %s and reconnect.", g.cfg.URL),
		}
	}

	g.cacheVerified(ctx, ip)
	metrics.CaptchaChecks.WithLabelValues("verified").Inc()
	return Decision{Allow: true}
}

func (g *Gate) cachedVerified(ctx context.Context, ip string) bool {
	if g.rdb == nil {
		return false
	}
	err := g.rdb.Get(ctx, verifiedPrefix+ip).Err()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("[captcha] redis GET error for %s: %v (treating as miss)", ip, err)
		return false
	}
	return true
}

func (g *Gate) cacheVerified(ctx context.Context, ip string) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Set(ctx, verifiedPrefix+ip, "1", g.cfg.CacheTTL).Err(); err != nil {
		log.Printf("[captcha] redis SET error for %s: %v", ip, err)
	}
}

// limiter returns the per-IP token bucket: MaxAttempts checks per
// CacheTTL window, with the full burst available up front.
func (g *Gate) limiter(ip string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.limiters) >= maxTrackedIPs {
		g.limiters = make(map[string]*rate.Limiter)
	}

	l, ok := g.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Every(g.cfg.CacheTTL/time.Duration(g.cfg.MaxAttempts)), g.cfg.MaxAttempts)
		g.limiters[ip] = l
	}
	return l
}
