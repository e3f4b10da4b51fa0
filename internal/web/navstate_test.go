package web

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Surfinbird-star/aas2/internal/auth"
)

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/orders", "/orders"},
		{"/admin/orders?status=processing", "/admin/orders?status=processing"},
		{"/login", "/"},
		{"/login?next=/orders", "/"},
		{"/logout", "/"},
		{"/logout/", "/"},
		{"//evil.example.com/path", "/"},
		{"https://evil.example.com", "/"},
		{"javascript:alert(1)", "/"},
		{`/\evil.example.com`, "/"},
		{"orders", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeNext(tt.in))
		})
	}
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", LoginURL("/"))
	assert.Equal(t, "/login", LoginURL("/logout"))
	assert.Equal(t, "/login?next=%2Forders", LoginURL("/orders"))
	assert.Equal(t, "/login?next=%2Fadmin%2Forders%3Fsort%3Dasc", LoginURL("/admin/orders?sort=asc"))
}

func TestResolveNav(t *testing.T) {
	claims := &auth.Claims{UserID: "u1"}

	tests := []struct {
		name      string
		claims    *auth.Claims
		adminOnly bool
		decision  auth.Decision
		want      Nav
	}{
		{
			name: "anonymous customer page",
			want: Nav{State: NavRedirecting, Location: "/login?next=%2Forders"},
		},
		{
			name:      "anonymous admin page",
			adminOnly: true,
			decision:  auth.Deny("", auth.ReasonNoSession),
			want:      Nav{State: NavRedirecting, Location: "/login?next=%2Forders"},
		},
		{
			name:   "signed in customer page",
			claims: claims,
			want:   Nav{State: NavAuthenticated},
		},
		{
			name:      "admin",
			claims:    claims,
			adminOnly: true,
			decision:  auth.Allow("u1"),
			want:      Nav{State: NavAuthenticated},
		},
		{
			name:      "not an admin",
			claims:    claims,
			adminOnly: true,
			decision:  auth.Deny("u1", auth.ReasonNotAdmin),
			want:      Nav{State: NavForbidden},
		},
		{
			name:      "lookup failed",
			claims:    claims,
			adminOnly: true,
			decision:  auth.Deny("u1", auth.ReasonLookupFailed),
			want:      Nav{State: NavRedirecting, Location: "/login?next=%2Forders", ClearSession: true},
		},
		{
			name:      "profile missing",
			claims:    claims,
			adminOnly: true,
			decision:  auth.Deny("u1", auth.ReasonProfileMissing),
			want:      Nav{State: NavRedirecting, Location: "/login?next=%2Forders", ClearSession: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveNav("/orders", tt.claims, tt.adminOnly, tt.decision))
		})
	}
}

func TestResolveLogin(t *testing.T) {
	assert.Equal(t, Nav{State: NavUnauthenticated}, ResolveLogin(nil, "/orders"))
	assert.Equal(t, Nav{State: NavRedirecting, Location: "/orders"},
		ResolveLogin(&auth.Claims{UserID: "u1"}, "/orders"))
	assert.Equal(t, Nav{State: NavRedirecting, Location: "/"},
		ResolveLogin(&auth.Claims{UserID: "u1"}, "https://evil.example.com"))
}

func TestNavStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", NavUnauthenticated.String())
	assert.Equal(t, "redirecting", NavRedirecting.String())
	assert.Equal(t, "authenticated", NavAuthenticated.String())
	assert.Equal(t, "forbidden", NavForbidden.String())
}
