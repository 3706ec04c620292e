package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/platform/httpx"
)

// Handler exposes account endpoints over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountPublic registers the unauthenticated routes.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

// MountProtected registers routes that require a verified identity.
func (h *Handler) MountProtected(r chi.Router) {
	r.Post("/admin/users", h.adminRegister)
	r.Get("/company/users", h.listCompanyUsers)
	r.Post("/users/deactivate", h.deactivate)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), input)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"message": MsgRegistered, "user": user})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Authenticate(r.Context(), input)
	if err != nil {
		h.fail(w, "authenticate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":   MsgLoggedIn,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

func (h *Handler) adminRegister(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		h.fail(w, "admin register", err)
		return
	}
	var input AdminRegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.AdminRegister(r.Context(), identity, input)
	if err != nil {
		h.fail(w, "admin register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"message": MsgAdminRegistered, "user": user})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		h.fail(w, "deactivate", err)
		return
	}
	var input DeactivateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Deactivate(r.Context(), identity, input); err != nil {
		h.fail(w, "deactivate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": MsgDeactivated})
}

func (h *Handler) listCompanyUsers(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, err := h.service.ListCompanyUsers(r.Context(), identity)
	if err != nil {
		h.fail(w, "list company users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": MsgCompanyUsersListed, "users": users})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httpx.LogError(h.logger, op, err)
	httpx.RespondError(w, err)
}
