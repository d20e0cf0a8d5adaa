package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Store is the call surface to the remote auth service. A process normally
// holds a single client-side instance; the route guard builds a short-lived,
// request-scoped instance from incoming cookies instead.
type Store interface {
	// GetSession returns the currently persisted session without side
	// effects. A nil session with a nil error means checked-and-absent.
	GetSession(ctx context.Context) (*Session, error)
	// GetUser returns the authenticated user for the current session.
	GetUser(ctx context.Context) (*User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error)
	// SignUp registers a new account. Success does not imply an active
	// session; the service may require email confirmation first.
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) error
	SignOut(ctx context.Context) error
	// OnAuthStateChange invokes fn whenever the underlying session changes
	// for any reason, including out-of-band changes from other holders of
	// the same persisted session. Unsubscribe must be called on teardown.
	OnAuthStateChange(fn func(Event)) Subscription
}

// SignInResult carries the session and user returned by a password grant.
type SignInResult struct {
	Session *Session
	User    *User
}

type SignUpOptions struct {
	// EmailRedirectTo is the post-confirmation landing page.
	EmailRedirectTo string
}

// Subscription is a handle to an auth state change listener.
type Subscription interface {
	Unsubscribe()
}

// Navigator abstracts the host application's router. Push navigates to a
// path; Reload re-synchronizes any server-rendered data that depends on auth
// state. The default is a no-op so the Manager is usable headless.
type Navigator interface {
	Push(path string)
	Reload()
}

type noopNavigator struct{}

func (noopNavigator) Push(string) {}
func (noopNavigator) Reload()     {}

// DefaultLogger returns the logger components fall back to when no
// WithLogger option is given.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
