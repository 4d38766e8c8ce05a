package workers

import (
	"time"

	"github.com/rs/zerolog/log"

	"yam/internal/engine/registration"
	"yam/internal/platform/repositories"
)

// ExpireInvitations moves pending invitations past their deadline to expired.
// Validation treats expiry as a derived fact, so this sweep is bookkeeping
// rather than enforcement.
func ExpireInvitations(invitations *repositories.InvitationRepository) {
	n, err := invitations.ExpirePending(time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Msg("invitation expiry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("expired stale invitations")
	}
}

// CleanupFlows drops registration flows past their TTL, releasing their
// session subscriptions.
func CleanupFlows(registry *registration.Registry) {
	n := registry.Sweep(time.Now())
	if n > 0 {
		log.Info().Int("count", n).Msg("cleaned up stale registration flows")
	}
}
