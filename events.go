package session

// AuthEventKind enumerates the identity provider events the controller
// reacts to.
type AuthEventKind string

const (
	EventSignedIn       AuthEventKind = "SIGNED_IN"
	EventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	EventSignedOut      AuthEventKind = "SIGNED_OUT"
	EventUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is a single identity provider notification. Session may be nil,
// e.g. for SIGNED_OUT.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *SessionObject
}
