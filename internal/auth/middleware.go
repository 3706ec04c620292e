package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tooldesk/tooldesk/internal/platform/httpx"
	"github.com/tooldesk/tooldesk/internal/shared"
)

// Verifier decodes a bearer credential into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Middleware rejects requests without a valid bearer credential.
type Middleware struct {
	verifier Verifier
	logger   *slog.Logger
}

// NewMiddleware constructs the bearer middleware.
func NewMiddleware(verifier Verifier, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{verifier: verifier, logger: logger}
}

// Authenticate verifies the Authorization header and stores the Identity in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httpx.RespondError(w, shared.Unauthenticated("Authorization header missing."))
			return
		}
		token := bearerToken(header)
		if token == "" {
			httpx.RespondError(w, shared.Unauthenticated("Token missing from Authorization header."))
			return
		}
		identity, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Info("bearer token rejected", slog.String("path", r.URL.Path), slog.String("reason", shared.Message(err)))
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
