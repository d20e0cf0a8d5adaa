package auth

// EventType mirrors the change notification vocabulary of the auth service.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is a typed auth state change notification. A nil Session means the
// store no longer holds one.
type Event struct {
	Type    EventType
	Session *Session
}
