package registration

import (
	"time"

	"github.com/rs/zerolog/log"

	"yam/internal/pkg/validator"
	"yam/internal/platform/identity"
	"yam/internal/platform/models"
	"yam/internal/platform/repositories"
)

// Outcome is the result of one validation pass over a (token, identity) pair.
type Outcome struct {
	OK         bool
	Failure    FailureCode
	Message    string
	Invitation *ResolvedInvitation
}

func failOutcome(code FailureCode) Outcome {
	return Outcome{Failure: code, Message: code.Message()}
}

// Validator cross-checks the invitation record against the authenticated
// identity and resolves display context for the UI.
type Validator struct {
	invitations *repositories.InvitationRepository
	orgs        *repositories.OrganizationRepository
	mailrooms   *repositories.MailroomRepository
}

func NewValidator(invitations *repositories.InvitationRepository, orgs *repositories.OrganizationRepository, mailrooms *repositories.MailroomRepository) *Validator {
	return &Validator{invitations: invitations, orgs: orgs, mailrooms: mailrooms}
}

// Validate runs the ordered checks, short-circuiting at the first failure:
// lookup, stored status, derived expiry, then email match when an identity is
// present. Display-name resolution is best-effort and never blocks progress.
func (v *Validator) Validate(token string, ident *identity.Identity, now time.Time) Outcome {
	inv, err := v.invitations.GetByToken(token)
	if err != nil {
		log.Error().Err(err).Msg("invitation lookup failed")
		return failOutcome(FailureInvitationNotFound)
	}
	if inv == nil {
		return failOutcome(FailureInvitationNotFound)
	}

	if inv.Status != models.InvitationPending {
		switch inv.Status {
		case models.InvitationResolved:
			return failOutcome(FailureInvitationUsed)
		case models.InvitationExpired:
			return failOutcome(FailureInvitationExpired)
		case models.InvitationCancelled:
			return failOutcome(FailureInvitationCancelled)
		default:
			return failOutcome(FailureInvitationInvalid)
		}
	}

	// Expiry is a derived fact: a stale pending record past its deadline is
	// expired even before the sweep job catches it.
	if now.Unix() > inv.ExpiresAt {
		return failOutcome(FailureInvitationExpired)
	}

	if ident != nil {
		if validator.NormalizeEmail(ident.Email) != validator.NormalizeEmail(inv.Email) {
			return failOutcome(FailureEmailMismatch)
		}
	}

	resolved := &ResolvedInvitation{
		Invitation:       inv,
		OrganizationName: "Organization " + inv.OrganizationID,
		MailroomName:     "Mailroom " + inv.MailroomID,
	}

	if org, err := v.orgs.GetByID(inv.OrganizationID); err != nil {
		log.Warn().Err(err).Str("organization_id", inv.OrganizationID).Msg("organization lookup failed")
	} else if org != nil {
		resolved.OrganizationName = org.Name
		resolved.OrganizationSlug = org.Slug
	}

	if room, err := v.mailrooms.GetByID(inv.MailroomID); err != nil {
		log.Warn().Err(err).Str("mailroom_id", inv.MailroomID).Msg("mailroom lookup failed")
	} else if room != nil {
		resolved.MailroomName = room.Name
		resolved.MailroomSlug = room.Slug
	}

	return Outcome{OK: true, Invitation: resolved}
}
