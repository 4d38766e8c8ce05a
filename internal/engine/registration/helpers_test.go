package registration

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"yam/internal/platform/identity"
	"yam/internal/platform/models"
	"yam/internal/platform/repositories"
)

type testDeps struct {
	db          *sql.DB
	invitations *repositories.InvitationRepository
	orgs        *repositories.OrganizationRepository
	mailrooms   *repositories.MailroomRepository
	profiles    *repositories.ProfileRepository
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	query := `
	CREATE TABLE organizations (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE mailrooms (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE invitations (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		mailroom_id TEXT NOT NULL,
		token TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		invited_by TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE profiles (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		mailroom_id TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT,
		role TEXT NOT NULL DEFAULT 'member',
		status TEXT NOT NULL DEFAULT 'invited',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func seedDirectory(t *testing.T, db *sql.DB) {
	t.Helper()

	now := time.Now().Unix()
	orgs := repositories.NewOrganizationRepository(db)
	rooms := repositories.NewMailroomRepository(db)

	if err := orgs.Create(&models.Organization{
		ID: "org_1", Slug: "acme", Name: "Acme University", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Failed to seed organization: %v", err)
	}
	if err := rooms.Create(&models.Mailroom{
		ID: "room_1", OrganizationID: "org_1", Slug: "north-hall", Name: "North Hall", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Failed to seed mailroom: %v", err)
	}
}

func seedInvitation(t *testing.T, db *sql.DB, inv *models.Invitation) {
	t.Helper()

	now := time.Now().Unix()
	if inv.ID == "" {
		inv.ID = "inv_1"
	}
	if inv.OrganizationID == "" {
		inv.OrganizationID = "org_1"
	}
	if inv.MailroomID == "" {
		inv.MailroomID = "room_1"
	}
	if inv.Role == "" {
		inv.Role = "member"
	}
	if inv.InvitedBy == "" {
		inv.InvitedBy = "usr_admin"
	}
	if inv.CreatedAt == 0 {
		inv.CreatedAt = now
	}
	if inv.UpdatedAt == 0 {
		inv.UpdatedAt = now
	}

	if err := repositories.NewInvitationRepository(db).Create(inv); err != nil {
		t.Fatalf("Failed to seed invitation: %v", err)
	}
}

func seedProfile(t *testing.T, db *sql.DB, p *models.Profile) {
	t.Helper()

	now := time.Now().Unix()
	if p.OrganizationID == "" {
		p.OrganizationID = "org_1"
	}
	if p.MailroomID == "" {
		p.MailroomID = "room_1"
	}
	if p.Role == "" {
		p.Role = "member"
	}
	if p.Status == "" {
		p.Status = models.ProfileInvited
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	if p.UpdatedAt == 0 {
		p.UpdatedAt = now
	}

	if err := repositories.NewProfileRepository(db).Create(p); err != nil {
		t.Fatalf("Failed to seed profile: %v", err)
	}
}

// fakeSessions scripts the identity provider side of a flow.
type fakeSessions struct {
	mu             sync.Mutex
	identity       *identity.Identity
	setPasswordErr error

	subs           []func(identity.SessionEvent)
	subscribeCount int
	unsubscribed   int
	passwordsSet   []string
}

func (s *fakeSessions) CurrentIdentity() (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, nil
}

func (s *fakeSessions) Subscribe(fn func(identity.SessionEvent)) func() {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.subscribeCount++
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.unsubscribed++
		s.mu.Unlock()
	}
}

func (s *fakeSessions) SetPassword(userID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setPasswordErr != nil {
		return s.setPasswordErr
	}
	s.passwordsSet = append(s.passwordsSet, userID)
	return nil
}

func (s *fakeSessions) emit(e identity.SessionEvent) {
	s.mu.Lock()
	subs := append([]func(identity.SessionEvent){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// waitForStatus polls until the flow settles into the wanted status.
func waitForStatus(t *testing.T, f *Flow, want Status) State {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := f.State()
		if st.Status == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for status %q, last status %q", want, f.State().Status)
	return State{}
}
