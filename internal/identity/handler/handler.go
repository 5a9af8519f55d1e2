package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"listcart/internal/identity"
	dErrors "listcart/pkg/domain-errors"
	"listcart/pkg/platform/httputil"
	authmw "listcart/pkg/platform/middleware/auth"
	"listcart/pkg/requestcontext"
)

// Service defines the token grants the handler exposes.
type Service interface {
	Authenticate(ctx context.Context, username, password string) (*identity.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
}

// Handler serves the token and userinfo endpoints.
type Handler struct {
	service   Service
	validator authmw.TokenValidator
	logger    *slog.Logger
}

func New(service Service, validator authmw.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{service: service, validator: validator, logger: logger}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/token", h.HandleToken)
	r.With(authmw.RequireAuth(h.validator, h.logger)).Get("/auth/userinfo", h.HandleUserInfo)
}

// HandleUserInfo handles GET /auth/userinfo for a bearer access token.
func (h *Handler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, UserInfoResponse{Subject: requestcontext.SubjectID(r.Context())})
}

// HandleToken handles POST /auth/token for password and refresh_token grants.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var (
		pair *identity.TokenPair
		err  error
	)
	switch req.GrantType {
	case GrantPassword:
		pair, err = h.service.Authenticate(ctx, req.Username, req.Password)
	case GrantRefreshToken:
		pair, err = h.service.Refresh(ctx, req.RefreshToken)
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		h.logger.ErrorContext(ctx, "token grant failed",
			"grant_type", req.GrantType,
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, FromTokenPair(pair, requestcontext.Now(ctx)))
}
