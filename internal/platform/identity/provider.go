package identity

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"yam/internal/pkg/validator"
	"yam/internal/platform/models"
	"yam/internal/platform/repositories"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// event is the provider's internal notification. A non-empty clientID makes
// the event visible only to the watcher created with that id; sign-out and
// user-updated fan out to every watcher tracking the subject.
type event struct {
	kind     EventKind
	clientID string
	subject  string
	identity *Identity
}

// Provider is a local identity provider: bcrypt credentials in sqlite, HS256
// session tokens, and an in-process broadcast hub for session-change events.
// It stands in for the external provider the activation flow assumes.
type Provider struct {
	creds    *repositories.CredentialRepository
	profiles *repositories.ProfileRepository
	tokens   *TokenService

	mu     sync.Mutex
	nextID int
	subs   map[int]func(event)
}

func NewProvider(creds *repositories.CredentialRepository, profiles *repositories.ProfileRepository, tokens *TokenService) *Provider {
	return &Provider{
		creds:    creds,
		profiles: profiles,
		tokens:   tokens,
		subs:     make(map[int]func(event)),
	}
}

func (p *Provider) subscribe(fn func(event)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) publish(e event) {
	p.mu.Lock()
	fns := make([]func(event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// SignIn checks the credential and issues a session token. It does not notify
// watchers; a session only becomes visible to a flow once attached.
func (p *Provider) SignIn(email, password string) (string, *Identity, error) {
	cred, err := p.creds.GetByEmail(validator.NormalizeEmail(email))
	if err != nil {
		return "", nil, err
	}
	if cred == nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	orgID, role := "", ""
	profile, err := p.profiles.GetByID(cred.UserID)
	if err == nil && profile != nil {
		orgID = profile.OrganizationID
		role = profile.Role
	}

	token, err := p.tokens.GenerateSessionToken(cred.UserID, orgID, role, cred.Email)
	if err != nil {
		return "", nil, err
	}

	return token, &Identity{UserID: cred.UserID, Email: cred.Email}, nil
}

// SignOut destroys the session from the watchers' point of view: every flow
// tracking the subject sees a signed-out event. Token invalidation itself is
// expiry-based.
func (p *Provider) SignOut(sessionToken string) error {
	claims, err := p.tokens.ValidateToken(sessionToken)
	if err != nil {
		return err
	}

	p.publish(event{kind: EventSignedOut, subject: claims.UserID})
	return nil
}

// AttachSession binds an authenticated session to one client scope. The
// watcher created with the same clientID observes it as a sign-in.
func (p *Provider) AttachSession(clientID, sessionToken string) error {
	claims, err := p.tokens.ValidateToken(sessionToken)
	if err != nil {
		return err
	}

	p.publish(event{
		kind:     EventSignedIn,
		clientID: clientID,
		subject:  claims.UserID,
		identity: &Identity{UserID: claims.UserID, Email: claims.Email},
	})
	return nil
}

// SetPassword stores a new bcrypt hash for the user and notifies watchers
// with a user-updated event.
func (p *Provider) SetPassword(userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	email := ""
	if cred, err := p.creds.GetByUserID(userID); err == nil && cred != nil {
		email = cred.Email
	} else if profile, err := p.profiles.GetByID(userID); err == nil && profile != nil {
		email = profile.Email
	}

	if err := p.creds.Upsert(&models.Credential{
		UserID:       userID,
		Email:        email,
		PasswordHash: string(hash),
		UpdatedAt:    time.Now().Unix(),
	}); err != nil {
		return err
	}

	p.publish(event{
		kind:     EventUserUpdated,
		subject:  userID,
		identity: &Identity{UserID: userID, Email: email},
	})
	return nil
}

func (p *Provider) ValidateToken(sessionToken string) (*Claims, error) {
	return p.tokens.ValidateToken(sessionToken)
}

// Watcher returns a SessionManager bound to one client scope and its initial
// session token (which may be empty when the page loads unauthenticated).
func (p *Provider) Watcher(clientID, sessionToken string) *Watcher {
	return &Watcher{provider: p, clientID: clientID, token: sessionToken}
}

// Watcher scopes the provider's event stream down to a single client: the
// targeted sign-in for its clientID plus sign-out/user-updated events for
// whichever subject it currently tracks.
type Watcher struct {
	provider *Provider
	clientID string
	token    string

	mu      sync.Mutex
	subject string
}

func (w *Watcher) CurrentIdentity() (*Identity, error) {
	if w.token == "" {
		return nil, nil
	}

	claims, err := w.provider.tokens.ValidateToken(w.token)
	if err != nil {
		// An expired or malformed token means no session, not a failure.
		return nil, nil
	}

	w.mu.Lock()
	w.subject = claims.UserID
	w.mu.Unlock()

	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

func (w *Watcher) Subscribe(fn func(SessionEvent)) func() {
	return w.provider.subscribe(func(e event) {
		switch e.kind {
		case EventSignedIn:
			if e.clientID != w.clientID {
				return
			}
			w.mu.Lock()
			w.subject = e.subject
			w.mu.Unlock()
			fn(SessionEvent{Kind: EventSignedIn, Identity: e.identity})
		case EventSignedOut:
			w.mu.Lock()
			match := w.subject != "" && w.subject == e.subject
			if match {
				w.subject = ""
			}
			w.mu.Unlock()
			if match {
				fn(SessionEvent{Kind: EventSignedOut})
			}
		case EventUserUpdated:
			w.mu.Lock()
			match := w.subject != "" && w.subject == e.subject
			w.mu.Unlock()
			if match {
				fn(SessionEvent{Kind: EventUserUpdated, Identity: e.identity})
			}
		}
	})
}

func (w *Watcher) SetPassword(userID, password string) error {
	return w.provider.SetPassword(userID, password)
}
