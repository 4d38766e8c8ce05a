package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	apiContext "yam/internal/api/context"
	"yam/internal/engine/registration"
	"yam/internal/pkg/errors"
	"yam/internal/pkg/validator"
	"yam/internal/platform/audit"
	"yam/internal/platform/config"
	"yam/internal/platform/identity"
	"yam/internal/platform/repositories"
)

type RegistrationHandler struct {
	registry    *registration.Registry
	provider    *identity.Provider
	validator   *registration.Validator
	invitations *repositories.InvitationRepository
	profiles    *repositories.ProfileRepository
	auditLog    *audit.Logger
	cfg         config.RegistrationConfig
}

func NewRegistrationHandler(
	registry *registration.Registry,
	provider *identity.Provider,
	inviteValidator *registration.Validator,
	invitations *repositories.InvitationRepository,
	profiles *repositories.ProfileRepository,
	auditLog *audit.Logger,
	cfg config.RegistrationConfig,
) *RegistrationHandler {
	return &RegistrationHandler{
		registry:    registry,
		provider:    provider,
		validator:   inviteValidator,
		invitations: invitations,
		profiles:    profiles,
		auditLog:    auditLog,
		cfg:         cfg,
	}
}

type StartRegistrationRequest struct {
	URL          string `json:"url"`
	SessionToken string `json:"session_token,omitempty"`
}

// invitationView strips the raw token and record internals out of the state
// the client sees.
type invitationView struct {
	Email            string `json:"email"`
	Role             string `json:"role"`
	OrganizationName string `json:"organization_name"`
	MailroomName     string `json:"mailroom_name"`
}

type RegistrationStateResponse struct {
	FlowID       string          `json:"flow_id"`
	Status       string          `json:"status"`
	Failure      string          `json:"failure,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RedirectPath string          `json:"redirect_path,omitempty"`
	Invitation   *invitationView `json:"invitation,omitempty"`
}

func stateResponse(flowID string, st registration.State) RegistrationStateResponse {
	resp := RegistrationStateResponse{
		FlowID:       flowID,
		Status:       string(st.Status),
		Failure:      string(st.Failure),
		ErrorMessage: st.ErrorMessage,
		RedirectPath: st.RedirectPath,
	}
	if st.Invitation != nil && st.Invitation.Invitation != nil {
		resp.Invitation = &invitationView{
			Email:            st.Invitation.Invitation.Email,
			Role:             st.Invitation.Invitation.Role,
			OrganizationName: st.Invitation.OrganizationName,
			MailroomName:     st.Invitation.MailroomName,
		}
	}
	return resp
}

// Start creates a flow for an invite page load. The page URL carries the
// token; an optional session token binds an already-authenticated session.
func (h *RegistrationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.URL == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "url is required", nil)
		return
	}

	flowID := "reg_" + uuid.NewString()
	watcher := h.provider.Watcher(flowID, req.SessionToken)

	flow := registration.New(flowID, req.URL, registration.Deps{
		Sessions:  watcher,
		Validator: h.validator,
		Committer: registration.NewCommitter(watcher, h.invitations, h.profiles, h.auditLog),
	}, registration.Options{
		SessionWait:     h.cfg.SessionWait,
		RequireIdentity: h.cfg.RequireIdentity,
	})
	h.registry.Add(flow)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stateResponse(flow.ID, flow.State()))
}

func (h *RegistrationHandler) flowFromParams(w http.ResponseWriter, r *http.Request) *registration.Flow {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	flow := h.registry.Get(params.ByName("flow_id"))
	if flow == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Registration flow not found", nil)
		return nil
	}
	return flow
}

// Get polls the flow state. Validation and commit run asynchronously, so the
// client keeps polling until a settled status shows up.
func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	flow := h.flowFromParams(w, r)
	if flow == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stateResponse(flow.ID, flow.State()))
}

type AttachSessionRequest struct {
	SessionToken string `json:"session_token"`
}

// AttachSession delivers the "signed-in" push notification: the client
// authenticated after the page load and hands its session to the flow.
func (h *RegistrationHandler) AttachSession(w http.ResponseWriter, r *http.Request) {
	flow := h.flowFromParams(w, r)
	if flow == nil {
		return
	}

	var req AttachSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.SessionToken == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "session_token is required", nil)
		return
	}

	if err := h.provider.AttachSession(flow.ID, req.SessionToken); err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired session", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(stateResponse(flow.ID, flow.State()))
}

type SubmitPasswordRequest struct {
	Password string `json:"password"`
}

func (h *RegistrationHandler) SubmitPassword(w http.ResponseWriter, r *http.Request) {
	flow := h.flowFromParams(w, r)
	if flow == nil {
		return
	}

	var req SubmitPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := validator.IsValidPassword(req.Password); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if flow.State().Status != registration.StatusReadyForPassword {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Flow is not ready for a password", nil)
		return
	}

	flow.SubmitPassword(req.Password)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(stateResponse(flow.ID, flow.State()))
}
