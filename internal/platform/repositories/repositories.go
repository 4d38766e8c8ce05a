package repositories

import (
	"database/sql"
	"time"

	"yam/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(org *models.Organization) error {
	_, err := r.db.Exec(`
		INSERT INTO organizations (id, slug, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, org.ID, org.Slug, org.Name, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) GetByID(id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, slug, name, created_at, updated_at
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) GetBySlug(slug string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, slug, name, created_at, updated_at
		FROM organizations WHERE slug = ?
	`, slug).Scan(&org.ID, &org.Slug, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

type MailroomRepository struct {
	db *sql.DB
}

func NewMailroomRepository(db *sql.DB) *MailroomRepository {
	return &MailroomRepository{db: db}
}

func (r *MailroomRepository) Create(room *models.Mailroom) error {
	_, err := r.db.Exec(`
		INSERT INTO mailrooms (id, organization_id, slug, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, room.ID, room.OrganizationID, room.Slug, room.Name, room.CreatedAt, room.UpdatedAt)
	return err
}

func (r *MailroomRepository) GetByID(id string) (*models.Mailroom, error) {
	room := &models.Mailroom{}
	err := r.db.QueryRow(`
		SELECT id, organization_id, slug, name, created_at, updated_at
		FROM mailrooms WHERE id = ?
	`, id).Scan(&room.ID, &room.OrganizationID, &room.Slug, &room.Name, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

type InvitationRepository struct {
	db *sql.DB
}

func NewInvitationRepository(db *sql.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Create(inv *models.Invitation) error {
	_, err := r.db.Exec(`
		INSERT INTO invitations (id, organization_id, mailroom_id, token, email, role, invited_by, status, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.OrganizationID, inv.MailroomID, inv.Token, inv.Email, inv.Role, inv.InvitedBy, inv.Status, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r *InvitationRepository) GetByToken(token string) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := r.db.QueryRow(`
		SELECT id, organization_id, mailroom_id, token, email, role, invited_by, status, expires_at, created_at, updated_at
		FROM invitations WHERE token = ?
	`, token).Scan(&inv.ID, &inv.OrganizationID, &inv.MailroomID, &inv.Token, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

func (r *InvitationRepository) GetByID(id string) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := r.db.QueryRow(`
		SELECT id, organization_id, mailroom_id, token, email, role, invited_by, status, expires_at, created_at, updated_at
		FROM invitations WHERE id = ?
	`, id).Scan(&inv.ID, &inv.OrganizationID, &inv.MailroomID, &inv.Token, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

// UpdateStatus moves a pending invitation to a new status. The WHERE clause
// keeps transitions monotonic: a terminal status is never overwritten.
func (r *InvitationRepository) UpdateStatus(id, status string) error {
	_, err := r.db.Exec(`
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, time.Now().Unix(), id, models.InvitationPending)
	return err
}

func (r *InvitationRepository) ListByOrganization(orgID string, limit, offset int) ([]*models.Invitation, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, mailroom_id, token, email, role, invited_by, status, expires_at, created_at, updated_at
		FROM invitations WHERE organization_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*models.Invitation
	for rows.Next() {
		inv := &models.Invitation{}
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.MailroomID, &inv.Token, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// ExpirePending is used by the expiry worker. Returns the number of
// invitations moved to expired.
func (r *InvitationRepository) ExpirePending(now int64) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at < ?
	`, models.InvitationExpired, now, models.InvitationPending, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(p *models.Profile) error {
	_, err := r.db.Exec(`
		INSERT INTO profiles (id, organization_id, mailroom_id, email, full_name, role, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OrganizationID, p.MailroomID, p.Email, p.FullName, p.Role, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *ProfileRepository) GetByID(id string) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.QueryRow(`
		SELECT id, organization_id, mailroom_id, email, full_name, role, status, created_at, updated_at
		FROM profiles WHERE id = ?
	`, id).Scan(&p.ID, &p.OrganizationID, &p.MailroomID, &p.Email, &p.FullName, &p.Role, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *ProfileRepository) GetByEmail(email string) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.QueryRow(`
		SELECT id, organization_id, mailroom_id, email, full_name, role, status, created_at, updated_at
		FROM profiles WHERE email = ?
	`, email).Scan(&p.ID, &p.OrganizationID, &p.MailroomID, &p.Email, &p.FullName, &p.Role, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// UpdateStatus never resurrects a removed profile.
func (r *ProfileRepository) UpdateStatus(id, status string) error {
	_, err := r.db.Exec(`
		UPDATE profiles SET status = ?, updated_at = ?
		WHERE id = ? AND status != ?
	`, status, time.Now().Unix(), id, models.ProfileRemoved)
	return err
}

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) GetByEmail(email string) (*models.Credential, error) {
	c := &models.Credential{}
	err := r.db.QueryRow(`
		SELECT user_id, email, password_hash, updated_at
		FROM credentials WHERE email = ?
	`, email).Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CredentialRepository) GetByUserID(userID string) (*models.Credential, error) {
	c := &models.Credential{}
	err := r.db.QueryRow(`
		SELECT user_id, email, password_hash, updated_at
		FROM credentials WHERE user_id = ?
	`, userID).Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CredentialRepository) Upsert(cred *models.Credential) error {
	_, err := r.db.Exec(`
		INSERT INTO credentials (user_id, email, password_hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET email = excluded.email, password_hash = excluded.password_hash, updated_at = excluded.updated_at
	`, cred.UserID, cred.Email, cred.PasswordHash, cred.UpdatedAt)
	return err
}
