package auth

// Known models a value that is unresolved until checked, then resolved as
// either absent or present. It exists to keep "we have not asked yet" and
// "we asked and there is none" distinct; conflating them is what redirects
// users to sign-in during the initial loading flash.
type Known[T any] struct {
	resolved bool
	value    *T
}

// Unresolved returns the not-yet-checked variant.
func Unresolved[T any]() Known[T] {
	return Known[T]{}
}

// Absent returns the checked-and-missing variant.
func Absent[T any]() Known[T] {
	return Known[T]{resolved: true}
}

// Present returns the checked-and-found variant. A nil value collapses to
// Absent.
func Present[T any](v *T) Known[T] {
	return Known[T]{resolved: true, value: v}
}

// Resolved reports whether the value has been checked at least once.
func (k Known[T]) Resolved() bool {
	return k.resolved
}

// Get returns the value and whether it is resolved-present.
func (k Known[T]) Get() (*T, bool) {
	return k.value, k.resolved && k.value != nil
}

// Value returns the underlying value, nil when unresolved or absent.
func (k Known[T]) Value() *T {
	return k.value
}

// State is the externally visible auth state tuple. Seq records the arrival
// order of applied updates. Pushed events and sign in/out supersede a
// refresh still resolving; among pushes, last write wins.
type State struct {
	Session Known[Session]
	User    Known[User]
	Loading bool
	Seq     uint64
}

// Authenticated reports a resolved, present user and session.
func (s State) Authenticated() bool {
	_, userOK := s.User.Get()
	_, sessOK := s.Session.Get()
	return userOK && sessOK
}

// Anonymous reports a resolved, absent user.
func (s State) Anonymous() bool {
	return s.User.Resolved() && s.User.Value() == nil
}

// reduce folds a store change event into state. Pure: the input state is
// not mutated. The event payload overwrites session and user unconditionally
// and resolves any loading phase, matching the push-wins contract.
func reduce(s State, ev Event) State {
	next := s
	next.Seq = s.Seq + 1
	next.Loading = false

	if ev.Session != nil {
		next.Session = Present(ev.Session)
		next.User = Present(ev.Session.EmbeddedUser())
		return next
	}

	next.Session = Absent[Session]()
	next.User = Absent[User]()
	return next
}
