package auth

import "context"

// noopStore stands in when the auth service cannot be constructed, e.g. the
// service URL or key is missing from the environment. Read paths resolve to
// anonymous and write paths fail with a displayable message, so pages render
// instead of crashing.
type noopStore struct{}

// NewNoopStore returns a Store that treats every caller as anonymous.
func NewNoopStore() Store {
	return noopStore{}
}

func (noopStore) GetSession(context.Context) (*Session, error) {
	return nil, nil
}

func (noopStore) GetUser(context.Context) (*User, error) {
	return nil, nil
}

func (noopStore) SignInWithPassword(context.Context, string, string) (*SignInResult, error) {
	return nil, ErrStoreUnavailable
}

func (noopStore) SignUp(context.Context, string, string, SignUpOptions) error {
	return ErrStoreUnavailable
}

func (noopStore) SignOut(context.Context) error {
	return nil
}

func (noopStore) OnAuthStateChange(func(Event)) Subscription {
	return noopSubscription{}
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
