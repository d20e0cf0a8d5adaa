package guard

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	auth "github.com/papajo/agile-pim"
)

// Error markers placed in the sign-in redirect's error parameter. The sign-in
// page shows them verbatim.
const (
	ErrorConfig      = "Configuration error"
	ErrorAuthCheck   = "Authentication check failed"
	ErrorUnexpected  = "An unexpected error occurred during authentication"
	defaultSignIn    = auth.SignInPath
	defaultAuthAPI   = "/api/auth"
	defaultParamName = auth.RedirectParam
)

// DefaultPublicPaths are always allowed through without a session check.
var DefaultPublicPaths = []string{"/", "/sign-in", "/sign-up", "/auth/callback"}

// Paths with a file extension are static assets and skip the check.
var staticAssetRe = regexp.MustCompile(`\.[^/]+$`)

// StoreFactory builds a request-scoped session store, typically from the
// request's cookies. It runs once per guarded navigation.
type StoreFactory func(c router.Context) (auth.Store, error)

type Config struct {
	// Stores is required: it produces the store the guard asks for the
	// current session.
	Stores StoreFactory
	// PublicPaths are exact-match paths that bypass the guard. Defaults to
	// DefaultPublicPaths.
	PublicPaths []string
	// AuthAPIPrefix marks the auth callback API routes that bypass the
	// guard. Defaults to "/api/auth".
	AuthAPIPrefix string
	// SignInPath is the redirect target for denied requests. Defaults to
	// auth.SignInPath.
	SignInPath string
	// Filter skips the guard when it returns true, mirroring other
	// middleware in this module.
	Filter func(router.Context) bool
	Logger auth.Logger
}

// New returns a route guard middleware. Every path outside the public
// allow-list needs a session; when the session lookup itself breaks the
// guard fails closed and redirects to sign-in with an error marker rather
// than rendering a protected page.
func New(config ...Config) router.MiddlewareFunc {
	cfg := getDefaultConfig(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) (err error) {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			path := ctx.Path()
			if cfg.isPublic(path) {
				return ctx.Next()
			}

			defer func() {
				if r := recover(); r != nil {
					cfg.Logger.Error("unexpected guard failure: %v", r)
					err = cfg.deny(ctx, path, ErrorUnexpected)
				}
			}()

			cfg.Logger.Debug("guard processing protected route: %s", path)

			store, ferr := cfg.Stores(ctx)
			if ferr != nil || store == nil {
				cfg.Logger.Error("guard store init failed, blocking access: %v", ferr)
				return cfg.deny(ctx, path, ErrorConfig)
			}

			sess, serr := store.GetSession(ctx.Context())
			if serr != nil {
				cfg.Logger.Error("guard auth error for %s: %v", path, serr)
				return cfg.deny(ctx, path, ErrorAuthCheck)
			}

			cfg.Logger.Debug("guard auth check for %s: session %v", path, sess != nil)

			if sess == nil {
				return cfg.deny(ctx, path, "")
			}

			// Downstream handlers read identity from the request context.
			stdCtx := auth.WithSessionContext(ctx.Context(), sess)
			if user := sess.EmbeddedUser(); user != nil {
				stdCtx = auth.WithUserContext(stdCtx, user)
			}
			ctx.SetContext(stdCtx)

			return ctx.Next()
		}
	}
}

func getDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Stores == nil {
		panic("AUTH: guard middleware configuration: Stores factory is required.")
	}

	if len(cfg.PublicPaths) == 0 {
		cfg.PublicPaths = DefaultPublicPaths
	}

	if cfg.AuthAPIPrefix == "" {
		cfg.AuthAPIPrefix = defaultAuthAPI
	}

	if cfg.SignInPath == "" {
		cfg.SignInPath = defaultSignIn
	}

	if cfg.Logger == nil {
		cfg.Logger = guardLogger{}
	}

	return cfg
}

func (cfg Config) isPublic(path string) bool {
	for _, p := range cfg.PublicPaths {
		if path == p {
			return true
		}
	}

	if strings.HasPrefix(path, cfg.AuthAPIPrefix) {
		return true
	}

	return staticAssetRe.MatchString(path)
}

// deny redirects to sign-in, preserving the denied path and an optional
// error marker.
func (cfg Config) deny(ctx router.Context, path, marker string) error {
	q := url.Values{}
	q.Set(defaultParamName, path)
	if marker != "" {
		q.Set("error", marker)
	}

	target := cfg.SignInPath + "?" + q.Encode()

	cfg.Logger.Info("guard redirecting %s", print.MaybePrettyJSON(map[string]any{
		"path":   path,
		"target": target,
	}))

	statusCode := http.StatusSeeOther
	if ctx.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}

	return ctx.Redirect(target, statusCode)
}

// guardLogger is the fallback logger, prefixed so guard lines are
// distinguishable from the client-side manager's.
type guardLogger struct{}

func (guardLogger) Debug(format string, args ...any) { logf("[DBG]", format, args...) }
func (guardLogger) Info(format string, args ...any)  { logf("[INF]", format, args...) }
func (guardLogger) Warn(format string, args ...any)  { logf("[WRN]", format, args...) }
func (guardLogger) Error(format string, args ...any) { logf("[ERR]", format, args...) }

func logf(level, format string, args ...any) {
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	fmt.Printf(level+" GUARD "+format, args...)
}
