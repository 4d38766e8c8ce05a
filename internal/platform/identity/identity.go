package identity

// Identity is the authenticated principal as reported by the provider. It is
// valid only while a session exists and is never persisted by consumers.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type EventKind int

const (
	EventSignedIn EventKind = iota
	EventSignedOut
	EventUserUpdated
)

// SessionEvent is a push notification about a session change, scoped to one
// client of the provider.
type SessionEvent struct {
	Kind     EventKind
	Identity *Identity
}

// SessionManager is the collaborator surface the registration flow consumes:
// a one-shot pull of the current identity, a push subscription, and the
// password mutation. Passing it in explicitly keeps the state machine
// testable without the full provider.
type SessionManager interface {
	// CurrentIdentity returns the identity for the session this manager is
	// bound to, or nil when no session exists. An invalid or expired session
	// is reported as absence, not as an error.
	CurrentIdentity() (*Identity, error)

	// Subscribe registers a callback for session events. The returned
	// function removes the subscription; callers must invoke it on teardown.
	Subscribe(fn func(SessionEvent)) (unsubscribe func())

	// SetPassword sets a new credential for the given user.
	SetPassword(userID, password string) error
}
