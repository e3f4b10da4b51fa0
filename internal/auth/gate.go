package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Surfinbird-star/aas2/internal/metrics"
	"github.com/Surfinbird-star/aas2/internal/model"
)

// Reason explains why the Gate refused access.
type Reason string

// Refusal reasons.
const (
	ReasonNoSession      Reason = "no_session"
	ReasonLookupFailed   Reason = "lookup_failed"
	ReasonProfileMissing Reason = "profile_missing"
	ReasonNotAdmin       Reason = "not_admin"
)

// Decision is the result of an admin check. Reason is empty when Authorized.
type Decision struct {
	Authorized bool
	Reason     Reason
	UserID     string
}

// Allow returns an authorized decision.
func Allow(userID string) Decision {
	return Decision{Authorized: true, UserID: userID}
}

// Deny returns an unauthorized decision with a reason.
func Deny(userID string, reason Reason) Decision {
	return Decision{Reason: reason, UserID: userID}
}

// String returns "authorized" or the refusal reason.
func (d Decision) String() string {
	if d.Authorized {
		return "authorized"
	}
	return string(d.Reason)
}

// AdminLookup reads a profile's admin flag. It returns model.ErrNotFound for
// unknown profiles.
type AdminLookup func(ctx context.Context, userID string) (bool, error)

// Gate is the single administrator capability check. It never grants access
// when the lookup fails. Decisions backed by a successful lookup are cached
// for a bounded time.
type Gate struct {
	lookup AdminLookup
	cache  *expirable.LRU[string, Decision]
	log    *slog.Logger
}

// NewGate creates a Gate caching up to size decisions for ttl.
func NewGate(lookup AdminLookup, size int, ttl time.Duration, log *slog.Logger) *Gate {
	if size <= 0 {
		size = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		lookup: lookup,
		cache:  expirable.NewLRU[string, Decision](size, nil, ttl),
		log:    log,
	}
}

// Check decides whether the session belongs to an administrator.
func (g *Gate) Check(ctx context.Context, claims *Claims) Decision {
	d := g.check(ctx, claims)
	metrics.GateDecisions.WithLabelValues(d.String()).Inc()
	return d
}

func (g *Gate) check(ctx context.Context, claims *Claims) Decision {
	if claims == nil || claims.UserID == "" {
		return Deny("", ReasonNoSession)
	}
	userID := claims.UserID

	if d, ok := g.cache.Get(userID); ok {
		metrics.GateCacheHits.Inc()
		return d
	}
	metrics.GateCacheMisses.Inc()

	isAdmin, err := g.lookup(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		d := Deny(userID, ReasonProfileMissing)
		g.cache.Add(userID, d)
		return d
	case err != nil:
		g.log.Warn("admin lookup failed", "user", userID, "error", err)
		return Deny(userID, ReasonLookupFailed)
	}

	d := Deny(userID, ReasonNotAdmin)
	if isAdmin {
		d = Allow(userID)
	}
	g.cache.Add(userID, d)
	return d
}

// Invalidate drops the cached decision for a user. Call it on sign-out and
// whenever the user's admin flag changes.
func (g *Gate) Invalidate(userID string) {
	g.cache.Remove(userID)
}
