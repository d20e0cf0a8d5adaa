package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	auth "github.com/papajo/agile-pim"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manual clock: timers only fire through Advance, so tests
// control exactly which scheduled work runs.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) auth.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing due timers in scheduling order.
func (c *fakeClock) Advance(d time.Duration) {
	c.advanceWithoutFiring(d)
	c.fireDue()
}

// advanceWithoutFiring moves the clock but holds back due timers, modeling
// a timer goroutine that has not been scheduled yet.
func (c *fakeClock) advanceWithoutFiring(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fireDue runs every live timer whose deadline has passed.
func (c *fakeClock) fireDue() {
	c.mu.Lock()
	deadline := c.now

	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.when.After(deadline) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// detachDue marks due timers as fired and hands back their callbacks so a
// test can run them later, modeling a timer that fires after Stop already
// failed.
func (c *fakeClock) detachDue() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fns []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.when.After(c.now) {
			t.fired = true
			fns = append(fns, t.fn)
		}
	}
	return fns
}

// pendingTimers reports how many scheduled calls are still live.
func (c *fakeClock) pendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeStore is a hand-rolled auth.Store with per-call hooks and counters.
type fakeStore struct {
	mu sync.Mutex

	getSession func(ctx context.Context) (*auth.Session, error)
	getUser    func(ctx context.Context) (*auth.User, error)
	signIn     func(ctx context.Context, email, password string) (*auth.SignInResult, error)
	signUp     func(ctx context.Context, email, password string, opts auth.SignUpOptions) error
	signOut    func(ctx context.Context) error

	getSessionCalls int
	getUserCalls    int
	signOutCalls    int

	callback     func(auth.Event)
	unsubscribed bool
}

var _ auth.Store = (*fakeStore)(nil)

func (f *fakeStore) GetSession(ctx context.Context) (*auth.Session, error) {
	f.mu.Lock()
	f.getSessionCalls++
	fn := f.getSession
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (f *fakeStore) GetUser(ctx context.Context) (*auth.User, error) {
	f.mu.Lock()
	f.getUserCalls++
	fn := f.getUser
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (f *fakeStore) SignInWithPassword(ctx context.Context, email, password string) (*auth.SignInResult, error) {
	if f.signIn == nil {
		return nil, nil
	}
	return f.signIn(ctx, email, password)
}

func (f *fakeStore) SignUp(ctx context.Context, email, password string, opts auth.SignUpOptions) error {
	if f.signUp == nil {
		return nil
	}
	return f.signUp(ctx, email, password, opts)
}

func (f *fakeStore) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	fn := f.signOut
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *fakeStore) OnAuthStateChange(fn func(auth.Event)) auth.Subscription {
	f.mu.Lock()
	f.callback = fn
	f.mu.Unlock()
	return fakeSubscription{store: f}
}

// Emit pushes an out-of-band change event, as another tab would.
func (f *fakeStore) Emit(ev auth.Event) {
	f.mu.Lock()
	fn := f.callback
	f.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}

func (f *fakeStore) sessionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getSessionCalls
}

func (f *fakeStore) userCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getUserCalls
}

type fakeSubscription struct {
	store *fakeStore
}

func (s fakeSubscription) Unsubscribe() {
	s.store.mu.Lock()
	s.store.unsubscribed = true
	s.store.callback = nil
	s.store.mu.Unlock()
}

// MockNavigator implements auth.Navigator.
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Push(path string) {
	m.Called(path)
}

func (m *MockNavigator) Reload() {
	m.Called()
}

// makeSession builds a session whose access token carries the identity, the
// way the service mints them.
func makeSession(t *testing.T, email string) *auth.Session {
	t.Helper()

	id := uuid.New().String()
	now := time.Now()
	claims := &auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: email,
		Role:  "authenticated",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	return &auth.Session{
		AccessToken:  raw,
		TokenType:    "bearer",
		RefreshToken: "refresh-" + id,
		ExpiresAt:    now.Add(time.Hour).Unix(),
		User:         &auth.User{ID: id, Email: email, Role: "authenticated"},
	}
}
