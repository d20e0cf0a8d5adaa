package auth

import "context"

var sessionCtxKey = &contextKey{"session"}
var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithSessionContext sets the Session in the given context.
func WithSessionContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

// SessionFromContext finds the session in the context.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok && raw != nil
}

// WithUserContext sets the User in the given context.
func WithUserContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the user in the context.
func UserFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}
