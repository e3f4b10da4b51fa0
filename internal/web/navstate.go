package web

import (
	"net/url"
	"strings"

	"github.com/Surfinbird-star/aas2/internal/auth"
)

// NavState is where a page request ends up after the session and admin
// checks. Unauthenticated requests move through Redirecting to the login
// page and come back Authenticated.
type NavState int

const (
	NavUnauthenticated NavState = iota
	NavRedirecting
	NavAuthenticated
	NavForbidden
)

func (s NavState) String() string {
	switch s {
	case NavUnauthenticated:
		return "unauthenticated"
	case NavRedirecting:
		return "redirecting"
	case NavAuthenticated:
		return "authenticated"
	case NavForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Nav is the outcome of resolving a page request.
type Nav struct {
	State NavState
	// Location is set when State is NavRedirecting.
	Location string
	// ClearSession drops the session cookie before redirecting.
	ClearSession bool
}

// ResolveNav decides what a request for path should see. adminOnly pages
// consult the gate decision d; other pages only need a session.
func ResolveNav(path string, claims *auth.Claims, adminOnly bool, d auth.Decision) Nav {
	if claims == nil {
		return Nav{State: NavRedirecting, Location: LoginURL(path)}
	}
	if !adminOnly || d.Authorized {
		return Nav{State: NavAuthenticated}
	}
	switch d.Reason {
	case auth.ReasonNotAdmin:
		return Nav{State: NavForbidden}
	case auth.ReasonNoSession:
		return Nav{State: NavRedirecting, Location: LoginURL(path)}
	default:
		// The admin flag could not be read; the session is dropped and the
		// user signs in again.
		return Nav{State: NavRedirecting, Location: LoginURL(path), ClearSession: true}
	}
}

// ResolveLogin decides what the login page shows. Visitors without a session
// stay Unauthenticated and get the form; a signed-in user is sent on to the
// safe next target.
func ResolveLogin(claims *auth.Claims, next string) Nav {
	if claims == nil {
		return Nav{State: NavUnauthenticated}
	}
	return Nav{State: NavRedirecting, Location: SafeNext(next)}
}

// LoginURL returns the login page URL that returns to next after sign-in.
func LoginURL(next string) string {
	next = SafeNext(next)
	if next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// SafeNext returns next when it is a local path other than the login or
// logout pages, and "/" otherwise.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	switch strings.TrimSuffix(u.Path, "/") {
	case "/login", "/logout":
		return "/"
	}
	return next
}
