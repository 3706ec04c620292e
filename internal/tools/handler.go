package tools

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/platform/httpx"
)

// Handler exposes tool endpoints over JSON.
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

// MountRoutes registers the tool routes; all of them require a verified identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tools/assign", h.assign)
	r.Get("/tools/available", h.listAvailable)
	r.Get("/tools/assigned", h.listAssigned)
	r.Post("/companies/tools", h.grant)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		h.fail(w, "assign tool", err)
		return
	}
	var input AssignInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.AssignToUser(r.Context(), identity, input); err != nil {
		h.fail(w, "assign tool", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": MsgAssigned})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := auth.Require(identity, auth.RoleSuperadmin); err != nil {
		h.fail(w, "grant tool", err)
		return
	}
	var input GrantInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	msg, err := h.service.GrantToCompany(r.Context(), identity, input)
	if err != nil {
		h.fail(w, "grant tool", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListAvailable(r.Context(), identity)
	if err != nil {
		h.fail(w, "list available tools", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": MsgAvailableListed, "tools": list})
}

func (h *Handler) listAssigned(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListAssigned(r.Context(), identity)
	if err != nil {
		h.fail(w, "list assigned tools", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": MsgAssignedListed, "tools": list})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httpx.LogError(h.logger, op, err)
	httpx.RespondError(w, err)
}
