package registration

import (
	"testing"
	"time"

	"yam/internal/platform/identity"
)

func newRegistryFlow(t *testing.T) *Flow {
	t.Helper()
	sessions := &fakeSessions{identity: alice}
	f := New("", "https://app.yam.io/register?token=abc", Deps{
		Sessions: sessions,
		Validator: &scriptedValidator{outcome: func(token string, ident *identity.Identity) Outcome {
			return failOutcome(FailureInvitationNotFound)
		}},
		Committer: scriptedCommitter{},
	}, Options{RequireIdentity: true})
	t.Cleanup(f.Close)
	return f
}

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry(time.Hour)
	f := newRegistryFlow(t)

	r.Add(f)
	if r.Len() != 1 {
		t.Fatalf("Expected 1 flow, got %d", r.Len())
	}
	if got := r.Get(f.ID); got != f {
		t.Fatal("Expected to get the flow back by id")
	}
	if got := r.Get("reg_missing"); got != nil {
		t.Fatal("Expected nil for an unknown id")
	}

	r.Remove(f.ID)
	if r.Len() != 0 {
		t.Fatalf("Expected empty registry after remove, got %d", r.Len())
	}
	if got := r.Get(f.ID); got != nil {
		t.Fatal("Expected nil after remove")
	}
}

func TestRegistry_SweepDropsExpiredFlows(t *testing.T) {
	r := NewRegistry(10 * time.Minute)
	f := newRegistryFlow(t)
	r.Add(f)

	if n := r.Sweep(time.Now()); n != 0 {
		t.Fatalf("Expected nothing swept inside TTL, got %d", n)
	}

	if n := r.Sweep(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("Expected 1 flow swept past TTL, got %d", n)
	}
	if r.Len() != 0 {
		t.Fatalf("Expected empty registry after sweep, got %d", r.Len())
	}
}
