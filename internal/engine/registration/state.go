package registration

import (
	"yam/internal/platform/identity"
	"yam/internal/platform/models"
)

// Status is the single authoritative phase of an activation flow.
type Status string

const (
	StatusCheckingSession  Status = "checking_session"
	StatusValidatingInvite Status = "validating_invite"
	StatusInvalidInvite    Status = "invalid_invite"
	StatusReadyForPassword Status = "ready_for_password"
	StatusSubmitting       Status = "submitting"
	StatusError            Status = "error"
	StatusRedirected       Status = "redirected"
)

// FailureCode classifies why a flow stopped. Validation-phase codes are
// terminal; password_update_failed is recoverable; redirect_data_missing is
// fatal but signals broken data rather than a bad invite.
type FailureCode string

const (
	FailureTokenMissing        FailureCode = "token_missing"
	FailureMissingSession      FailureCode = "missing_session"
	FailureInvitationNotFound  FailureCode = "invitation_not_found"
	FailureInvitationUsed      FailureCode = "invitation_used"
	FailureInvitationExpired   FailureCode = "invitation_expired"
	FailureInvitationCancelled FailureCode = "invitation_cancelled"
	FailureInvitationInvalid   FailureCode = "invitation_invalid"
	FailureEmailMismatch       FailureCode = "email_mismatch"
	FailureSessionEnded        FailureCode = "session_ended"
	FailurePasswordUpdate      FailureCode = "password_update_failed"
	FailureRedirectData        FailureCode = "redirect_data_missing"
)

var failureMessages = map[FailureCode]string{
	FailureTokenMissing:        "This invite link is missing its token. Open the link from your invitation email.",
	FailureMissingSession:      "We couldn't confirm your sign-in. Open the link from your invitation email and try again.",
	FailureInvitationNotFound:  "This invite could not be found. It may have been revoked.",
	FailureInvitationUsed:      "This invite has already been used.",
	FailureInvitationExpired:   "This invite has expired. Ask your administrator to send a new one.",
	FailureInvitationCancelled: "This invite was cancelled.",
	FailureInvitationInvalid:   "This invite is no longer valid.",
	FailureEmailMismatch:       "This invite was issued to a different email address. Sign out and use the invited account.",
	FailureSessionEnded:        "Your session ended. Sign in again to continue.",
	FailurePasswordUpdate:      "We couldn't set your password. Please try again.",
	FailureRedirectData:        "Your account was set up but your mailroom could not be loaded. Contact support.",
}

func (c FailureCode) Message() string {
	if msg, ok := failureMessages[c]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

// ResolvedInvitation is the validated invitation plus the display and
// redirect context the UI and the committer consume. Names fall back to
// id-based labels when the directory lookup fails; slugs do not, since a
// missing slug must block the redirect.
type ResolvedInvitation struct {
	Invitation       *models.Invitation `json:"invitation"`
	OrganizationName string             `json:"organization_name"`
	OrganizationSlug string             `json:"organization_slug"`
	MailroomName     string             `json:"mailroom_name"`
	MailroomSlug     string             `json:"mailroom_slug"`
}

// State is the transient, in-memory flow state. It is rebuilt from scratch on
// every page load and never restored from storage.
type State struct {
	Status       Status              `json:"status"`
	Invitation   *ResolvedInvitation `json:"invitation,omitempty"`
	Identity     *identity.Identity  `json:"identity,omitempty"`
	Failure      FailureCode         `json:"failure,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	RedirectPath string              `json:"redirect_path,omitempty"`
}

// Terminal reports whether the flow can no longer progress without starting
// over. The error status is terminal only when no resolved invitation exists
// to return to.
func (s State) Terminal() bool {
	switch s.Status {
	case StatusInvalidInvite, StatusRedirected:
		return true
	case StatusError:
		return s.Invitation == nil || s.Failure == FailureRedirectData
	}
	return false
}
