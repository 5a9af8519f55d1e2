package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"listcart/internal/ticket"
	dErrors "listcart/pkg/domain-errors"
	"listcart/pkg/platform/httputil"
	authmw "listcart/pkg/platform/middleware/auth"
	"listcart/pkg/requestcontext"
)

// Service defines the ticket operation the handler exposes.
type Service interface {
	IssueTicket(ctx context.Context, callerToken string) (*ticket.Ticket, error)
}

// Handler serves POST /upload-ticket.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts ticket endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/upload-ticket", h.HandleIssue)
}

// TicketResponse is the body returned for an issued ticket.
type TicketResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expires_at"`
}

// HandleIssue handles POST /upload-ticket. The bearer token is the only input.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	token, ok := authmw.BearerToken(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
		return
	}

	t, err := h.service.IssueTicket(ctx, token)
	if err != nil {
		h.logger.WarnContext(ctx, "upload ticket refused",
			"request_id", requestID,
			"error", err,
		)
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="listcart", error="invalid_token"`)
		}
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, TicketResponse{
		URL:       t.URL,
		Key:       t.Key.String(),
		ExpiresAt: t.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}
