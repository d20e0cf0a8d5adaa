package gotrue

import (
	"net/http"

	auth "github.com/papajo/agile-pim"
)

// sessionFromCookies rebuilds a session from a forwarded Cookie header. The
// expiry comes from the access token claims; the signature is the service's
// concern, not ours.
func sessionFromCookies(cookieHeader string) *auth.Session {
	header := http.Header{}
	header.Set("Cookie", cookieHeader)
	req := http.Request{Header: header}

	access, err := req.Cookie(AccessTokenCookie)
	if err != nil || access.Value == "" {
		return nil
	}

	sess := &auth.Session{AccessToken: access.Value}

	if refresh, err := req.Cookie(RefreshTokenCookie); err == nil {
		sess.RefreshToken = refresh.Value
	}

	if claims, err := sess.Claims(); err == nil && claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Unix()
	}

	return sess
}

// CookieHeaderFromRequest extracts the raw Cookie header from an incoming
// request, the input for a request-scoped Config.
func CookieHeaderFromRequest(r *http.Request) string {
	return r.Header.Get("Cookie")
}
