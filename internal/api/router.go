package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "yam/internal/api/context"
	"yam/internal/api/handlers"
	"yam/internal/api/middleware"
	"yam/internal/pkg/errors"
	"yam/internal/platform/identity"
)

type Dependencies struct {
	RegistrationHandler *handlers.RegistrationHandler
	AuthHandler         *handlers.AuthHandler
	InvitationHandler   *handlers.InvitationHandler
	HealthHandler       *handlers.HealthHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	// Authentication
	router.POST("/api/v1/auth/login", wrap(deps.AuthHandler.Login))
	router.POST("/api/v1/auth/logout", wrap(deps.AuthHandler.Logout))

	// Registration flow: public, driven by the invite link the client opened.
	router.POST("/api/v1/registrations", wrap(deps.RegistrationHandler.Start))
	router.GET("/api/v1/registrations/:flow_id", wrap(deps.RegistrationHandler.Get))
	router.POST("/api/v1/registrations/:flow_id/session", wrap(deps.RegistrationHandler.AttachSession))
	router.POST("/api/v1/registrations/:flow_id/password", wrap(deps.RegistrationHandler.SubmitPassword))

	authMid := deps.AuthMiddleware

	// Invitation management
	router.POST("/api/v1/invitations",
		chain(deps.InvitationHandler.Create, authMid.Handle, requireRole("admin", "owner")))
	router.GET("/api/v1/invitations",
		chain(deps.InvitationHandler.List, authMid.Handle, requireRole("admin", "owner")))
	router.DELETE("/api/v1/invitations/:invitation_id",
		chain(deps.InvitationHandler.Revoke, authMid.Handle, requireRole("admin", "owner")))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(apiContext.Claims).(*identity.Claims)

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
