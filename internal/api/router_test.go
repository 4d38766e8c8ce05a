package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"yam/internal/api/handlers"
	"yam/internal/api/middleware"
	"yam/internal/engine/registration"
	"yam/internal/platform/config"
	"yam/internal/platform/identity"
	"yam/internal/platform/models"
	"yam/internal/platform/repositories"
)

type testServer struct {
	*httptest.Server
	provider *identity.Provider
	profiles *repositories.ProfileRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	orgs := repositories.NewOrganizationRepository(db)
	mailrooms := repositories.NewMailroomRepository(db)
	invitations := repositories.NewInvitationRepository(db)
	profiles := repositories.NewProfileRepository(db)
	creds := repositories.NewCredentialRepository(db)

	now := time.Now().Unix()
	if err := orgs.Create(&models.Organization{ID: "org_1", Slug: "acme", Name: "Acme University", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Failed to seed org: %v", err)
	}
	if err := mailrooms.Create(&models.Mailroom{ID: "room_1", OrganizationID: "org_1", Slug: "north-hall", Name: "North Hall", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Failed to seed mailroom: %v", err)
	}

	tokens := identity.NewTokenService(config.JWTConfig{Secret: "test-secret", SessionTTL: time.Hour})
	provider := identity.NewProvider(creds, profiles, tokens)

	registry := registration.NewRegistry(30 * time.Minute)
	t.Cleanup(func() { registry.Sweep(time.Now().Add(time.Hour)) })

	inviteValidator := registration.NewValidator(invitations, orgs, mailrooms)
	regCfg := config.RegistrationConfig{SessionWait: 2 * time.Second, FlowTTL: 30 * time.Minute, RequireIdentity: true}

	router := NewRouter(&Dependencies{
		RegistrationHandler: handlers.NewRegistrationHandler(registry, provider, inviteValidator, invitations, profiles, nil, regCfg),
		AuthHandler:         handlers.NewAuthHandler(provider),
		InvitationHandler:   handlers.NewInvitationHandler(invitations, mailrooms, config.InvitesConfig{TTL: 7 * 24 * time.Hour}, config.DomainsConfig{AppDomain: "app.yam.io"}),
		HealthHandler:       handlers.NewHealthHandler(db),
		AuthMiddleware:      middleware.NewAuthMiddleware(provider),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, provider: provider, profiles: profiles}
}

func (s *testServer) seedUser(t *testing.T, id, email, role, status, password string) {
	t.Helper()
	now := time.Now().Unix()
	err := s.profiles.Create(&models.Profile{
		ID: id, OrganizationID: "org_1", MailroomID: "room_1",
		Email: email, Role: role, Status: status,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Failed to seed profile %s: %v", id, err)
	}
	if err := s.provider.SetPassword(id, password); err != nil {
		t.Fatalf("Failed to set password for %s: %v", id, err)
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := s.do(t, "POST", "/api/v1/auth/login", "", handlers.LoginRequest{Email: email, Password: password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Login failed with %d: %s", resp.StatusCode, body)
	}
	var login handlers.LoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	return login.SessionToken
}

func (s *testServer) pollUntil(t *testing.T, flowID, status string) handlers.RegistrationStateResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var state handlers.RegistrationStateResponse
	for time.Now().Before(deadline) {
		resp, body := s.do(t, "GET", "/api/v1/registrations/"+flowID, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Poll failed with %d: %s", resp.StatusCode, body)
		}
		if err := json.Unmarshal(body, &state); err != nil {
			t.Fatalf("Failed to decode state: %v", err)
		}
		if state.Status == status {
			return state
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s, last state %+v", status, state)
	return state
}

func TestRegistrationEndToEnd(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "usr_admin", "admin@acme.edu", "admin", models.ProfileActive, "admin-pass-123")
	s.seedUser(t, "usr_new", "newhire@acme.edu", "member", models.ProfileInvited, "temporary-pass")

	adminToken := s.login(t, "admin@acme.edu", "admin-pass-123")

	// Admin issues the invitation.
	resp, body := s.do(t, "POST", "/api/v1/invitations", adminToken, handlers.CreateInvitationRequest{
		Email:      "newhire@acme.edu",
		Role:       "member",
		MailroomID: "room_1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create invitation failed with %d: %s", resp.StatusCode, body)
	}
	var created handlers.CreateInvitationResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("Failed to decode invitation: %v", err)
	}
	if created.InviteLink != "https://app.yam.io/register?token="+created.Token {
		t.Fatalf("Unexpected invite link %q", created.InviteLink)
	}

	// The invitee opens the invite link.
	resp, body = s.do(t, "POST", "/api/v1/registrations", "", handlers.StartRegistrationRequest{
		URL: created.InviteLink,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Start registration failed with %d: %s", resp.StatusCode, body)
	}
	var started handlers.RegistrationStateResponse
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("Failed to decode start response: %v", err)
	}

	// The invitee authenticates and hands the session to the flow.
	inviteeToken := s.login(t, "newhire@acme.edu", "temporary-pass")
	resp, body = s.do(t, "POST", "/api/v1/registrations/"+started.FlowID+"/session", "",
		handlers.AttachSessionRequest{SessionToken: inviteeToken})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Attach session failed with %d: %s", resp.StatusCode, body)
	}

	ready := s.pollUntil(t, started.FlowID, "ready_for_password")
	if ready.Invitation == nil || ready.Invitation.OrganizationName != "Acme University" {
		t.Fatalf("Expected invitation context in state, got %+v", ready.Invitation)
	}

	resp, body = s.do(t, "POST", "/api/v1/registrations/"+started.FlowID+"/password", "",
		handlers.SubmitPasswordRequest{Password: "permanent-pass-9"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Submit password failed with %d: %s", resp.StatusCode, body)
	}

	done := s.pollUntil(t, started.FlowID, "redirected")
	if done.RedirectPath != "/acme/north-hall/" {
		t.Fatalf("Expected redirect to /acme/north-hall/, got %q", done.RedirectPath)
	}

	// The account is live: the new password works and the profile is active.
	s.login(t, "newhire@acme.edu", "permanent-pass-9")
	profile, err := s.profiles.GetByID("usr_new")
	if err != nil || profile == nil {
		t.Fatalf("Failed to load profile: %v", err)
	}
	if profile.Status != models.ProfileActive {
		t.Errorf("Expected active profile, got %s", profile.Status)
	}
}

func TestSubmitPasswordBeforeReadyConflicts(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "usr_new", "newhire@acme.edu", "member", models.ProfileInvited, "temporary-pass")

	resp, body := s.do(t, "POST", "/api/v1/registrations", "", handlers.StartRegistrationRequest{
		URL: "https://app.yam.io/register?token=no-such-invite",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Start registration failed with %d: %s", resp.StatusCode, body)
	}
	var started handlers.RegistrationStateResponse
	json.Unmarshal(body, &started)

	resp, _ = s.do(t, "POST", "/api/v1/registrations/"+started.FlowID+"/password", "",
		handlers.SubmitPasswordRequest{Password: "permanent-pass-9"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 before ready, got %d", resp.StatusCode)
	}
}

func TestRegistrationFlowNotFound(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, "GET", "/api/v1/registrations/reg_missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown flow, got %d", resp.StatusCode)
	}
}

func TestInvitationEndpointsRequireRole(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "usr_member", "member@acme.edu", "member", models.ProfileActive, "member-pass-1")

	token := s.login(t, "member@acme.edu", "member-pass-1")

	resp, _ := s.do(t, "POST", "/api/v1/invitations", token, handlers.CreateInvitationRequest{
		Email: "x@acme.edu", MailroomID: "room_1",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for member role, got %d", resp.StatusCode)
	}

	resp, _ = s.do(t, "POST", "/api/v1/invitations", "", handlers.CreateInvitationRequest{
		Email: "x@acme.edu", MailroomID: "room_1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without a token, got %d", resp.StatusCode)
	}
}

func TestRevokeInvitation(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "usr_admin", "admin@acme.edu", "admin", models.ProfileActive, "admin-pass-123")

	adminToken := s.login(t, "admin@acme.edu", "admin-pass-123")

	resp, body := s.do(t, "POST", "/api/v1/invitations", adminToken, handlers.CreateInvitationRequest{
		Email: "newhire@acme.edu", MailroomID: "room_1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create invitation failed with %d: %s", resp.StatusCode, body)
	}
	var created handlers.CreateInvitationResponse
	json.Unmarshal(body, &created)

	resp, _ = s.do(t, "DELETE", "/api/v1/invitations/"+created.ID, adminToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Revoke failed with %d", resp.StatusCode)
	}

	// A cancelled invitation cannot be revoked twice.
	resp, _ = s.do(t, "DELETE", "/api/v1/invitations/"+created.ID, adminToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 on second revoke, got %d", resp.StatusCode)
	}
}
