package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Surfinbird-star/aas2/internal/model"
)

type fakeFlags struct {
	admins map[string]bool
	err    error
	calls  atomic.Int32
}

func (f *fakeFlags) lookup(_ context.Context, userID string) (bool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return false, f.err
	}
	isAdmin, ok := f.admins[userID]
	if !ok {
		return false, model.ErrNotFound
	}
	return isAdmin, nil
}

func TestGateDecisions(t *testing.T) {
	flags := &fakeFlags{admins: map[string]bool{"admin": true, "user": false}}
	gate := NewGate(flags.lookup, 16, time.Minute, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		claims *Claims
		want   Decision
	}{
		{"no session", nil, Deny("", ReasonNoSession)},
		{"empty user", &Claims{}, Deny("", ReasonNoSession)},
		{"admin", &Claims{UserID: "admin"}, Allow("admin")},
		{"regular user", &Claims{UserID: "user"}, Deny("user", ReasonNotAdmin)},
		{"unknown profile", &Claims{UserID: "ghost"}, Deny("ghost", ReasonProfileMissing)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Check(ctx, tt.claims))
		})
	}
}

func TestGateFailsClosedOnLookupError(t *testing.T) {
	flags := &fakeFlags{admins: map[string]bool{"admin": true}, err: errors.New("connection refused")}
	gate := NewGate(flags.lookup, 16, time.Minute, nil)

	d := gate.Check(context.Background(), &Claims{UserID: "admin"})
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonLookupFailed, d.Reason)

	// Failures are not cached: once the store recovers the admin gets in.
	flags.err = nil
	d = gate.Check(context.Background(), &Claims{UserID: "admin"})
	assert.True(t, d.Authorized)
	assert.Equal(t, int32(2), flags.calls.Load())
}

func TestGateCachesAndInvalidates(t *testing.T) {
	flags := &fakeFlags{admins: map[string]bool{"u1": true}}
	gate := NewGate(flags.lookup, 16, time.Minute, nil)
	ctx := context.Background()
	claims := &Claims{UserID: "u1"}

	assert.True(t, gate.Check(ctx, claims).Authorized)
	assert.True(t, gate.Check(ctx, claims).Authorized)
	assert.Equal(t, int32(1), flags.calls.Load(), "second check should be cached")

	// Revocation takes effect after invalidation.
	flags.admins["u1"] = false
	assert.True(t, gate.Check(ctx, claims).Authorized)
	gate.Invalidate("u1")
	d := gate.Check(ctx, claims)
	assert.False(t, d.Authorized)
	assert.Equal(t, ReasonNotAdmin, d.Reason)
}

func TestGateCacheExpires(t *testing.T) {
	flags := &fakeFlags{admins: map[string]bool{"u1": true}}
	gate := NewGate(flags.lookup, 16, 50*time.Millisecond, nil)
	ctx := context.Background()

	assert.True(t, gate.Check(ctx, &Claims{UserID: "u1"}).Authorized)
	flags.admins["u1"] = false

	assert.Eventually(t, func() bool {
		return !gate.Check(ctx, &Claims{UserID: "u1"}).Authorized
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "authorized", Allow("x").String())
	assert.Equal(t, "not_admin", Deny("x", ReasonNotAdmin).String())
}
