package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

const (
	// DefaultDebounceWait is the quiet period applied to the public
	// RefreshSession entry point, layered on top of the coordinator's
	// cooldown.
	DefaultDebounceWait = time.Second

	// SignInPath is where anonymous users are sent.
	SignInPath = "/sign-in"
	// RedirectParam carries the path the user was denied.
	RedirectParam = "redirect"
	// AuthCallbackPath is the post-confirmation landing page appended to
	// the application origin for sign-up.
	AuthCallbackPath = "/auth/callback"
)

// DefaultProtectedPrefixes are the client-side path prefixes that require a
// resolved, present user.
var DefaultProtectedPrefixes = []string{"/projects", "/dashboard"}

// Manager owns the canonical auth state for one application tree and is its
// sole writer. All mutation flows through SignIn, SignUp, SignOut, the
// refresh cycle, or the store change subscription.
type Manager struct {
	store     Store
	logger    Logger
	nav       Navigator
	clock     Clock
	origin    string
	protected []string

	coordinator *Coordinator
	refresh     *debouncer
	sub         Subscription

	mu        sync.Mutex
	state     State
	epoch     uint64
	closed    bool
	listeners map[int]func(State)
	nextID    int

	cooldown     time.Duration
	debounceWait time.Duration
}

// ManagerOption customizes Manager construction.
type ManagerOption func(*Manager)

// WithLogger overrides the logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNavigator injects the host application's router.
func WithNavigator(nav Navigator) ManagerOption {
	return func(m *Manager) {
		if nav != nil {
			m.nav = nav
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithOrigin sets the application origin used to build the sign-up
// confirmation redirect, e.g. "https://app.example.com".
func WithOrigin(origin string) ManagerOption {
	return func(m *Manager) {
		m.origin = strings.TrimSuffix(origin, "/")
	}
}

// WithProtectedPrefixes replaces the protected path prefix set.
func WithProtectedPrefixes(prefixes ...string) ManagerOption {
	return func(m *Manager) {
		if len(prefixes) > 0 {
			m.protected = prefixes
		}
	}
}

// WithRefreshCooldown overrides the coordinator cooldown.
func WithRefreshCooldown(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.cooldown = d
		}
	}
}

// WithDebounceWait overrides the RefreshSession debounce window.
func WithDebounceWait(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.debounceWait = d
		}
	}
}

// NewManager returns a Manager bound to the given store. Call Start to run
// the initial session check and attach the change subscription, and Close
// on teardown.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		logger:       defLogger{},
		nav:          noopNavigator{},
		clock:        SystemClock(),
		protected:    DefaultProtectedPrefixes,
		listeners:    map[int]func(State){},
		cooldown:     DefaultRefreshCooldown,
		debounceWait: DefaultDebounceWait,
		state: State{
			Session: Unresolved[Session](),
			User:    Unresolved[User](),
			Loading: true,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.coordinator = NewCoordinator(m.doRefresh,
		WithCooldown(m.cooldown),
		WithCoordinatorClock(m.clock),
		WithCoordinatorLogger(m.logger),
	)
	m.refresh = newDebouncer(m.debounceWait, m.clock, func() {
		m.coordinator.Refresh(context.Background())
	})

	return m
}

// Start performs the initial session check and attaches the store change
// subscription.
func (m *Manager) Start(ctx context.Context) {
	m.sub = m.store.OnAuthStateChange(m.handleEvent)
	m.RefreshSession(ctx)
}

// Close detaches the change subscription and cancels scheduled refreshes.
// In-flight store calls are not interrupted; their results are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	m.refresh.Stop()
	m.coordinator.Stop()
}

// State returns a snapshot of the current auth state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn to be called with every committed state. Returns a
// function that removes the listener.
func (m *Manager) OnChange(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// RefreshSession requests a refresh through the debounced coordinator entry
// point. Safe to call repeatedly from any number of call sites.
func (m *Manager) RefreshSession(ctx context.Context) {
	_ = ctx
	m.refresh.Call()
}

// SignIn authenticates with the remote service. On success state is updated
// from the response without waiting for a refresh cycle. On failure the
// store's error is returned unchanged and state is untouched; use
// ErrorMessage for the user-displayable string.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	res, err := m.store.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.logger.Error("sign in failed: %v", err)
		return err
	}

	if res == nil || res.Session == nil {
		return ErrSessionMissing
	}

	user := res.User
	if user == nil {
		user = res.Session.EmbeddedUser()
	}

	m.commit(func(s *State) {
		s.Session = Present(res.Session)
		s.User = Present(user)
		s.Loading = false
	})
	m.nav.Reload()

	return nil
}

// SignUp registers a new account. State is not mutated: registration does
// not imply an active session while confirmation is pending.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	opts := SignUpOptions{EmailRedirectTo: m.origin + AuthCallbackPath}
	if err := m.store.SignUp(ctx, email, password, opts); err != nil {
		m.logger.Error("sign up failed: %v", err)
		return err
	}

	return nil
}

// SignOut clears local state and navigates to the application root. Local
// state is cleared even when the store call fails: it must not contradict
// user intent.
func (m *Manager) SignOut(ctx context.Context) {
	if err := m.store.SignOut(ctx); err != nil {
		m.logger.Error("sign out store call failed: %v", err)
	}

	m.commit(func(s *State) {
		s.Session = Absent[Session]()
		s.User = Absent[User]()
		s.Loading = false
	})

	m.nav.Reload()
	m.nav.Push("/")
}

// RedirectFor evaluates the protected-route policy for path. It returns a
// sign-in URL carrying the original path and true when the path is
// protected, the user is resolved-absent, and no check is running. It never
// fires while the user is still unresolved.
func (m *Manager) RedirectFor(path string) (string, bool) {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()

	if !m.isProtected(path) {
		return "", false
	}
	if st.Loading || !st.Anonymous() {
		return "", false
	}

	q := url.Values{}
	q.Set(RedirectParam, path)
	return SignInPath + "?" + q.Encode(), true
}

func (m *Manager) isProtected(path string) bool {
	for _, prefix := range m.protected {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// doRefresh is the coordinator's run function: one getSession, then at most
// one getUser. Its commits carry the epoch observed at the start, so a push
// event or sign in/out landing mid-refresh wins over the stale result.
func (m *Manager) doRefresh(ctx context.Context) {
	epoch := m.currentEpoch()

	m.commitRefresh(epoch, func(s *State) {
		s.Loading = true
	})
	defer m.commitRefresh(epoch, func(s *State) {
		s.Loading = false
	})

	sess, err := m.store.GetSession(ctx)
	if err != nil {
		if IsRateLimitError(err) {
			// Keep whatever we have; flickering to anonymous is worse
			// than being briefly stale.
			m.logger.Warn("session refresh rate limited, will try again later")
			return
		}
		m.logger.Error("error getting session: %v", err)
		m.commitRefresh(epoch, func(s *State) {
			s.Session = Absent[Session]()
			s.User = Absent[User]()
		})
		return
	}

	m.logger.Debug("client session check: session %s", foundOrNot(sess != nil))

	if sess == nil {
		m.commitRefresh(epoch, func(s *State) {
			s.Session = Absent[Session]()
			s.User = Absent[User]()
		})
		return
	}

	m.commitRefresh(epoch, func(s *State) {
		s.Session = Present(sess)
	})

	user, err := m.store.GetUser(ctx)
	if err != nil {
		if IsRateLimitError(err) {
			m.logger.Warn("rate limited getting user, using session user")
			m.commitRefresh(epoch, func(s *State) {
				s.User = Present(sess.EmbeddedUser())
			})
			return
		}
		m.logger.Error("error getting user: %v", err)
		m.commitRefresh(epoch, func(s *State) {
			s.User = Absent[User]()
		})
		return
	}

	m.commitRefresh(epoch, func(s *State) {
		s.User = Present(user)
	})
}

// handleEvent applies a pushed store change. It bypasses the coordinator:
// push is not poll, and its payload supersedes any refresh still in flight.
func (m *Manager) handleEvent(ev Event) {
	m.logger.Debug("auth state changed: %s, session %s", ev.Type, foundOrNot(ev.Session != nil))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.epoch++
	m.state = reduce(m.state, ev)
	st := m.state
	ls := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range ls {
		fn(st)
	}

	m.nav.Reload()
}

// commit applies an authoritative update: it bumps the epoch, so any refresh
// still resolving cannot overwrite it. No-op after Close.
func (m *Manager) commit(mutate func(*State)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.epoch++
	mutate(&m.state)
	m.state.Seq++
	st := m.state
	ls := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range ls {
		fn(st)
	}
}

// commitRefresh applies a refresh result, dropped when an authoritative
// update (push event, sign in, sign out) landed after the refresh began.
func (m *Manager) commitRefresh(epoch uint64, mutate func(*State)) {
	m.mu.Lock()
	if m.closed || m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	mutate(&m.state)
	m.state.Seq++
	st := m.state
	ls := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range ls {
		fn(st)
	}
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) snapshotListeners() []func(State) {
	ls := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		ls = append(ls, fn)
	}
	return ls
}

func validateCredentials(email, password string) error {
	payload := struct {
		Email    string
		Password string
	}{email, password}

	if verr := errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&payload,
			validation.Field(&payload.Email, validation.Required, is.Email),
			validation.Field(&payload.Password, validation.Required),
		)
	}, "Invalid credentials payload"); verr != nil {
		return verr
	}

	return nil
}

func foundOrNot(found bool) string {
	if found {
		return "found"
	}
	return "not found"
}
