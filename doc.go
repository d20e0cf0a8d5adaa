// Package auth keeps a local view of an AgilePM user's authentication state
// synchronized with the remote auth service backing the application.
//
// State model:
//   - Manager owns the canonical {user, session, loading} tuple. Session and
//     User are tri-state values (Known[T]): unresolved until the first check
//     completes, then resolved-absent or resolved-present. Consumers must not
//     treat unresolved as anonymous; RedirectFor only fires on resolved-absent.
//   - Store change events are folded into state through a single reducer, so
//     push updates (another tab signing out, a token refresh) apply the same
//     way every time and always win over an older in-flight refresh.
//
// Refresh coordination:
//   - The remote service throttles aggressive polling ("Too Many Requests").
//     Coordinator dedupes concurrent refreshes, enforces a cooldown between
//     executions, and schedules a trailing call at the cooldown boundary
//     instead of dropping requests that arrive inside the window. Manager
//     layers a short debounce over the public RefreshSession entry point.
//   - Rate-limit failures never clear resolved state; the current session is
//     kept and the next scheduled refresh reconciles.
//
// The Store interface is the only contact surface with the remote service.
// provider/gotrue implements it against a GoTrue-compatible REST API, and
// middleware/guard evaluates the same contract per request on the server side.
package auth
