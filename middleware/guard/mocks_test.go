package guard_test

import (
	"context"

	auth "github.com/papajo/agile-pim"
)

// mockStore implements auth.Store with a pluggable session lookup; the guard
// only exercises GetSession.
type mockStore struct {
	getSession func(ctx context.Context) (*auth.Session, error)
}

func (s *mockStore) GetSession(ctx context.Context) (*auth.Session, error) {
	if s.getSession == nil {
		return nil, nil
	}
	return s.getSession(ctx)
}

func (s *mockStore) GetUser(context.Context) (*auth.User, error) { return nil, nil }

func (s *mockStore) SignInWithPassword(context.Context, string, string) (*auth.SignInResult, error) {
	return nil, auth.ErrStoreUnavailable
}

func (s *mockStore) SignUp(context.Context, string, string, auth.SignUpOptions) error {
	return auth.ErrStoreUnavailable
}

func (s *mockStore) SignOut(context.Context) error { return nil }

func (s *mockStore) OnAuthStateChange(func(auth.Event)) auth.Subscription {
	return noSub{}
}

type noSub struct{}

func (noSub) Unsubscribe() {}
