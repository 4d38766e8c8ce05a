package registration

import (
	"github.com/rs/zerolog/log"

	"yam/internal/pkg/validator"
	"yam/internal/platform/audit"
	"yam/internal/platform/identity"
	"yam/internal/platform/models"
	"yam/internal/platform/repositories"
)

// CommitResult routes the flow after submission: a redirect path on success,
// otherwise a failure code.
type CommitResult struct {
	RedirectPath string
	Failure      FailureCode
	Message      string
}

func (r CommitResult) OK() bool {
	return r.Failure == ""
}

// Committer executes the final password set and the dependent record
// mutations. Only the credential change blocks the user on failure; the
// bookkeeping mutations are best-effort.
type Committer struct {
	sessions    identity.SessionManager
	invitations *repositories.InvitationRepository
	profiles    *repositories.ProfileRepository
	audit       *audit.Logger
}

// NewCommitter wires the committer. The audit logger may be nil in tests.
func NewCommitter(sessions identity.SessionManager, invitations *repositories.InvitationRepository, profiles *repositories.ProfileRepository, auditLog *audit.Logger) *Committer {
	return &Committer{sessions: sessions, invitations: invitations, profiles: profiles, audit: auditLog}
}

func commitFailure(code FailureCode) CommitResult {
	return CommitResult{Failure: code, Message: code.Message()}
}

func (c *Committer) Commit(resolved *ResolvedInvitation, ident *identity.Identity, password string) CommitResult {
	// Preconditions are re-checked here, not assumed from earlier state: the
	// session may have changed between validation and submission.
	if resolved == nil || resolved.Invitation == nil || ident == nil {
		return commitFailure(FailureMissingSession)
	}
	inv := resolved.Invitation
	if validator.NormalizeEmail(ident.Email) != validator.NormalizeEmail(inv.Email) {
		return commitFailure(FailureEmailMismatch)
	}

	if err := c.sessions.SetPassword(ident.UserID, password); err != nil {
		log.Error().Err(err).Str("user_id", ident.UserID).Msg("password update failed")
		// Best-effort: record the failed attempt on the invitation.
		if markErr := c.invitations.UpdateStatus(inv.ID, models.InvitationFailed); markErr != nil {
			log.Warn().Err(markErr).Str("invitation_id", inv.ID).Msg("failed to mark invitation failed")
		}
		return commitFailure(FailurePasswordUpdate)
	}

	// The password is set; nothing below may abort the success path.
	if err := c.invitations.UpdateStatus(inv.ID, models.InvitationResolved); err != nil {
		log.Warn().Err(err).Str("invitation_id", inv.ID).Msg("failed to mark invitation resolved")
	}

	profile, err := c.profiles.GetByID(ident.UserID)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("user_id", ident.UserID).Msg("profile lookup failed during activation")
	case profile == nil:
		log.Warn().Str("user_id", ident.UserID).Msg("no profile found during activation")
	case profile.Status == models.ProfileRemoved:
		// A removed profile is a permanent sink; never activate it.
		log.Warn().Str("user_id", ident.UserID).Msg("skipping activation of removed profile")
	default:
		if err := c.profiles.UpdateStatus(profile.ID, models.ProfileActive); err != nil {
			log.Warn().Err(err).Str("user_id", ident.UserID).Msg("failed to mark profile active")
		}
	}

	if c.audit != nil {
		c.audit.Record(inv.OrganizationID, ident.UserID, "invitation.redeemed", "invitation", inv.ID, map[string]interface{}{
			"mailroom_id": inv.MailroomID,
			"role":        inv.Role,
		})
	}

	if resolved.OrganizationSlug == "" || resolved.MailroomSlug == "" {
		log.Error().
			Str("invitation_id", inv.ID).
			Str("organization_id", inv.OrganizationID).
			Str("mailroom_id", inv.MailroomID).
			Msg("redirect target data missing after activation")
		return commitFailure(FailureRedirectData)
	}

	return CommitResult{RedirectPath: "/" + resolved.OrganizationSlug + "/" + resolved.MailroomSlug + "/"}
}
