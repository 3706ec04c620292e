package companies

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/platform/httpx"
)

// Handler exposes company administration over JSON.
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

// MountRoutes registers routes; callers mount it behind the bearer middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/companies", h.list)
	r.Post("/companies", h.create)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	company, err := h.service.Create(r.Context(), identity, input)
	if err != nil {
		h.fail(w, "create company", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": MsgCompanyCreated,
		"company": company,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	companies, err := h.service.List(r.Context(), identity)
	if err != nil {
		h.fail(w, "list companies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":   MsgCompanyListed,
		"companies": companies,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httpx.LogError(h.logger, op, err)
	httpx.RespondError(w, err)
}
