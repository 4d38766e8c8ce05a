package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	apiContext "yam/internal/api/context"
	"yam/internal/pkg/errors"
	"yam/internal/pkg/validator"
	"yam/internal/platform/config"
	"yam/internal/platform/identity"
	"yam/internal/platform/models"
	"yam/internal/platform/repositories"
)

// InvitationHandler is the issuing collaborator: it creates the pending
// records the activation flow later redeems, and can cancel them.
type InvitationHandler struct {
	invitations *repositories.InvitationRepository
	mailrooms   *repositories.MailroomRepository
	cfg         config.InvitesConfig
	domains     config.DomainsConfig
}

func NewInvitationHandler(invitations *repositories.InvitationRepository, mailrooms *repositories.MailroomRepository, cfg config.InvitesConfig, domains config.DomainsConfig) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, mailrooms: mailrooms, cfg: cfg, domains: domains}
}

type CreateInvitationRequest struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	MailroomID string `json:"mailroom_id"`
}

// CreateInvitationResponse carries the record plus the link the admin sends to
// the invitee; the link lands on the page that starts a registration flow.
type CreateInvitationResponse struct {
	*models.Invitation
	InviteLink string `json:"invite_link"`
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*identity.Claims)

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := validator.IsValidEmail(req.Email); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}

	room, err := h.mailrooms.GetByID(req.MailroomID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if room == nil || room.OrganizationID != claims.OrganizationID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Mailroom not found", nil)
		return
	}

	now := time.Now()
	inv := &models.Invitation{
		ID:             "inv_" + uuid.NewString(),
		OrganizationID: claims.OrganizationID,
		MailroomID:     req.MailroomID,
		Token:          uuid.NewString(),
		Email:          validator.NormalizeEmail(req.Email),
		Role:           req.Role,
		InvitedBy:      claims.UserID,
		Status:         models.InvitationPending,
		ExpiresAt:      now.Add(h.cfg.TTL).Unix(),
		CreatedAt:      now.Unix(),
		UpdatedAt:      now.Unix(),
	}

	if err := h.invitations.Create(inv); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create invitation", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateInvitationResponse{
		Invitation: inv,
		InviteLink: "https://" + h.domains.AppDomain + "/register?token=" + inv.Token,
	})
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*identity.Claims)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	invites, err := h.invitations.ListByOrganization(claims.OrganizationID, limit, offset)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invites)
}

func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*identity.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	inv, err := h.invitations.GetByID(params.ByName("invitation_id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if inv == nil || inv.OrganizationID != claims.OrganizationID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Invitation not found", nil)
		return
	}
	if inv.Status != models.InvitationPending {
		errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Invitation is no longer pending", nil)
		return
	}

	if err := h.invitations.UpdateStatus(inv.ID, models.InvitationCancelled); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to cancel invitation", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
