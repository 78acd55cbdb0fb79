package shopify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// REST Admin API leaky bucket: 40 requests, leaking 2 per second, per shop.
const (
	restRate  = rate.Limit(2)
	restBurst = 40

	// A full bucket refills in 20s and an open breaker half-opens after 30s,
	// so a guard idle this long carries no state worth keeping.
	guardIdleTTL = 10 * time.Minute
)

// ErrUnavailable is returned while a shop's circuit breaker is open.
var ErrUnavailable = gobreaker.ErrOpenState

// shopGuard is the per-shop rate limiter and circuit breaker.
type shopGuard struct {
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	lastUsed time.Time
}

type shopGuards struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	guards    map[string]*shopGuard
}

func newShopGuards(limit rate.Limit, burst int) *shopGuards {
	return &shopGuards{
		limit:   limit,
		burst:   burst,
		idleTTL: guardIdleTTL,
		now:     time.Now,
		guards:  make(map[string]*shopGuard),
	}
}

// get returns the shop's guard, creating it on first use. Guards idle for
// longer than idleTTL are dropped on the way.
func (g *shopGuards) get(shop string) *shopGuard {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastSweep) >= g.idleTTL {
		for k, sg := range g.guards {
			if now.Sub(sg.lastUsed) >= g.idleTTL {
				delete(g.guards, k)
			}
		}
		g.lastSweep = now
	}

	sg, ok := g.guards[shop]
	if !ok {
		sg = &shopGuard{
			limiter: rate.NewLimiter(g.limit, g.burst),
			breaker: newBreaker(shop),
		}
		g.guards[shop] = sg
	}
	sg.lastUsed = now
	return sg
}

func (g *shopGuards) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.guards)
}

// newBreaker trips after repeated transport errors or 5xx/429 answers from
// one shop. Other 4xx answers (404 on a missing asset in particular) are
// normal results.
func newBreaker(shop string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ShopifyAdminAPI:" + shop,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("shop", shop),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}
