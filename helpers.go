package auth

import "context"

// GetServerSession returns the session and user visible to the given store,
// swallowing failures: server-rendered pages degrade to anonymous rather
// than erroring. The user comes from the session payload, not a second
// service call.
func GetServerSession(ctx context.Context, store Store) (*Session, *User) {
	if store == nil {
		return nil, nil
	}

	sess, err := store.GetSession(ctx)
	if err != nil {
		defLogger{}.Error("error getting server session: %v", err)
		return nil, nil
	}

	if sess == nil {
		return nil, nil
	}

	return sess, sess.EmbeddedUser()
}

// IsAuthenticated reports whether the store currently holds a session.
func IsAuthenticated(ctx context.Context, store Store) bool {
	sess, _ := GetServerSession(ctx, store)
	return sess != nil
}
