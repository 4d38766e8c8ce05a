package models

// Invitation statuses. Transitions are monotonic: pending is never re-entered
// once left, and exactly one terminal status is reachable per invitation.
const (
	InvitationPending   = "pending"
	InvitationResolved  = "resolved"
	InvitationFailed    = "failed"
	InvitationExpired   = "expired"
	InvitationCancelled = "cancelled"
)

// Profile statuses. "removed" is a permanent sink.
const (
	ProfileInvited = "invited"
	ProfileActive  = "active"
	ProfileRemoved = "removed"
)

type Organization struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type Mailroom struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

type Invitation struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	MailroomID     string `json:"mailroom_id"`
	Token          string `json:"token"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	InvitedBy      string `json:"invited_by"`
	Status         string `json:"status"`
	ExpiresAt      int64  `json:"expires_at"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

type Profile struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	MailroomID     string `json:"mailroom_id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Credential holds the bcrypt hash the identity provider checks on sign-in.
// The hash never leaves the identity package.
type Credential struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	UpdatedAt    int64  `json:"updated_at"`
}
