// Package gotrue implements the auth.Store contract against a
// GoTrue-compatible REST API, the auth service AgilePM deploys behind
// Supabase. One client instance serves the whole client-side process; the
// route guard builds short-lived instances scoped to a request's cookies.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/kelseyhightower/envconfig"
	auth "github.com/papajo/agile-pim"
)

const (
	tokenPath  = "/auth/v1/token"
	signupPath = "/auth/v1/signup"
	userPath   = "/auth/v1/user"
	logoutPath = "/auth/v1/logout"

	grantPassword = "password"
	grantRefresh  = "refresh_token"

	// Cookie names the hosting application uses to persist the session
	// server-side.
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// Config holds the settings needed to reach the auth service. URL and Key
// come from the environment in normal operation.
type Config struct {
	// URL is the service base URL, e.g. https://xyz.supabase.co.
	URL string `envconfig:"AUTH_SERVICE_URL"`
	// Key is the public (anon) API key sent with every request.
	Key string `envconfig:"AUTH_SERVICE_KEY"`

	// HTTPClient overrides the default 10s-timeout client.
	HTTPClient *http.Client `ignored:"true"`

	// CookieHeader, when set, scopes the client to the session carried in
	// an incoming request's Cookie header. Persistence is disabled in this
	// mode; GetSession reads the forwarded cookies instead of local
	// storage.
	CookieHeader string `ignored:"true"`
}

// FromEnv loads Config from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryInternal, "failed to read auth service environment")
	}
	return cfg, nil
}

// Valid reports whether the config can produce a working client.
func (c Config) Valid() bool {
	return c.URL != "" && c.Key != ""
}

// Option customizes client construction.
type Option func(*Client)

// WithLogger overrides the logger.
func WithLogger(logger auth.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTokenStorage replaces the in-memory session storage.
func WithTokenStorage(storage TokenStorage) Option {
	return func(c *Client) {
		if storage != nil {
			c.storage = storage
		}
	}
}

// WithNowFunc injects a custom clock (useful for tests).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client talks to the auth service. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	storage    TokenStorage
	logger     auth.Logger
	now        func() time.Time

	mu      sync.Mutex
	subs    map[int]func(auth.Event)
	nextSub int
}

var _ auth.Store = (*Client)(nil)

// New returns a client for the given config.
func New(cfg Config, opts ...Option) (*Client, error) {
	if !cfg.Valid() {
		return nil, auth.ErrStoreUnavailable
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		storage:    NewMemoryStorage(),
		logger:     auth.DefaultLogger(),
		now:        time.Now,
		subs:       map[int]func(auth.Event){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// NewStoreSafe returns a working client or, when the config cannot produce
// one, the no-op store. Page rendering must not crash on a missing
// environment.
func NewStoreSafe(cfg Config, opts ...Option) auth.Store {
	client, err := New(cfg, opts...)
	if err != nil {
		defaultSafeLogger.Warn("auth service unconfigured, using no-op store")
		return auth.NewNoopStore()
	}
	return client
}

// GetSession returns the persisted session. In cookie mode it is read from
// the forwarded request cookies; otherwise from token storage. An expired
// session with a refresh token is exchanged transparently.
func (c *Client) GetSession(ctx context.Context) (*auth.Session, error) {
	sess, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	if !sess.Expired(c.now()) {
		return sess, nil
	}

	if sess.RefreshToken == "" {
		c.clearPersisted()
		return nil, nil
	}

	refreshed, err := c.refreshGrant(ctx, sess.RefreshToken)
	if err != nil {
		if auth.IsRateLimitError(err) {
			return nil, err
		}
		c.clearPersisted()
		return nil, err
	}

	c.persist(refreshed)
	c.emit(auth.Event{Type: auth.EventTokenRefreshed, Session: refreshed})

	return refreshed, nil
}

// GetUser asks the service for the user behind the current session.
func (c *Client) GetUser(ctx context.Context) (*auth.User, error) {
	sess, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.AccessToken == "" {
		return nil, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, userPath, "", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)

	var user auth.User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// SignInWithPassword performs a password grant. On success the session is
// persisted and subscribers are notified.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.SignInResult, error) {
	body := map[string]string{"email": email, "password": password}

	req, err := c.newRequest(ctx, http.MethodPost, tokenPath, "grant_type="+grantPassword, body)
	if err != nil {
		return nil, err
	}

	var sess auth.Session
	if err := c.do(req, &sess); err != nil {
		return nil, err
	}

	c.persist(&sess)
	c.emit(auth.Event{Type: auth.EventSignedIn, Session: &sess})

	return &auth.SignInResult{Session: &sess, User: sess.User}, nil
}

// SignUp registers a new account. No session is persisted: the service may
// require email confirmation, and the confirmation link lands on
// opts.EmailRedirectTo.
func (c *Client) SignUp(ctx context.Context, email, password string, opts auth.SignUpOptions) error {
	body := map[string]string{"email": email, "password": password}

	query := ""
	if opts.EmailRedirectTo != "" {
		query = "redirect_to=" + url.QueryEscape(opts.EmailRedirectTo)
	}

	req, err := c.newRequest(ctx, http.MethodPost, signupPath, query, body)
	if err != nil {
		return err
	}

	return c.do(req, nil)
}

// SignOut revokes the session server-side and always clears the local copy,
// even when the revocation call fails.
func (c *Client) SignOut(ctx context.Context) error {
	sess, _ := c.currentSession()

	defer func() {
		c.clearPersisted()
		c.emit(auth.Event{Type: auth.EventSignedOut})
	}()

	if sess == nil || sess.AccessToken == "" {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, logoutPath, "", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)

	return c.do(req, nil)
}

// OnAuthStateChange registers fn for session change events emitted by this
// client: sign in, sign out, token refresh.
func (c *Client) OnAuthStateChange(fn func(auth.Event)) auth.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return &subscription{client: c, id: id}
}

type subscription struct {
	client *Client
	id     int
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.mu.Lock()
		delete(s.client.subs, s.id)
		s.client.mu.Unlock()
	})
}

func (c *Client) emit(ev auth.Event) {
	c.mu.Lock()
	fns := make([]func(auth.Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// currentSession resolves the session for this client's mode without
// network calls.
func (c *Client) currentSession() (*auth.Session, error) {
	if c.cfg.CookieHeader != "" {
		return sessionFromCookies(c.cfg.CookieHeader), nil
	}
	return c.storage.Load()
}

func (c *Client) persist(sess *auth.Session) {
	if c.cfg.CookieHeader != "" {
		return
	}
	if err := c.storage.Save(sess); err != nil {
		c.logger.Error("failed to persist session: %v", err)
	}
}

func (c *Client) clearPersisted() {
	if c.cfg.CookieHeader != "" {
		return
	}
	if err := c.storage.Clear(); err != nil {
		c.logger.Error("failed to clear session storage: %v", err)
	}
}

func (c *Client) refreshGrant(ctx context.Context, refreshToken string) (*auth.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	req, err := c.newRequest(ctx, http.MethodPost, tokenPath, "grant_type="+grantRefresh, body)
	if err != nil {
		return nil, err
	}

	var sess auth.Session
	if err := c.do(req, &sess); err != nil {
		return nil, err
	}

	return &sess, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, query string, body any) (*http.Request, error) {
	endpoint := c.cfg.URL + path
	if query != "" {
		endpoint += "?" + query
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build auth request")
	}

	req.Header.Set("apikey", c.cfg.Key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// do executes req and decodes a 2xx JSON body into out when out is non-nil.
// Non-2xx responses become structured errors carrying the service's own
// message so it can be surfaced verbatim.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "auth service request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to read auth service response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serviceError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to decode auth service response")
	}

	return nil
}

type apiError struct {
	ErrorCode string `json:"error"`
	ErrorDesc string `json:"error_description"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

func (e apiError) text() string {
	switch {
	case e.ErrorDesc != "":
		return e.ErrorDesc
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.ErrorCode != "":
		return e.ErrorCode
	}
	return ""
}

func serviceError(status int, body []byte) error {
	var payload apiError
	_ = json.Unmarshal(body, &payload)
	msg := payload.text()

	switch {
	case status == http.StatusTooManyRequests:
		if msg == "" {
			msg = "Too Many Requests"
		}
		return errors.New(msg, errors.CategoryRateLimit).
			WithTextCode(auth.TextCodeRateLimited)
	case status == http.StatusUnauthorized || status == http.StatusBadRequest ||
		status == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "Invalid credentials"
		}
		return errors.New(msg, errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	default:
		if msg == "" {
			msg = fmt.Sprintf("auth service returned status %d", status)
		}
		return errors.New(msg, errors.CategoryInternal).
			WithCode(errors.CodeInternal)
	}
}

var defaultSafeLogger = auth.DefaultLogger()
