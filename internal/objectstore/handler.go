package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"listcart/internal/platform/metrics"
	"listcart/pkg/domain"
	dErrors "listcart/pkg/domain-errors"
	"listcart/pkg/platform/httputil"
	"listcart/pkg/platform/sentinel"
	"listcart/pkg/requestcontext"
)

// Store is the blob storage behind signed URLs.
type Store interface {
	Put(ctx context.Context, ref domain.ObjectRef, r io.Reader) (int64, error)
	Open(ctx context.Context, ref domain.ObjectRef) (io.ReadCloser, error)
}

// Handler serves signed object uploads and downloads.
type Handler struct {
	store    Store
	signer   *Signer
	nonces   NonceLedger
	notifier Notifier
	maxBytes int64
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(store Store, signer *Signer, nonces NonceLedger, notifier Notifier, maxBytes int64, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Handler{
		store:    store,
		signer:   signer,
		nonces:   nonces,
		notifier: notifier,
		maxBytes: maxBytes,
		logger:   logger,
		metrics:  m,
	}
}

// Register mounts object endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/objects/{bucket}/*", h.HandlePut)
	r.Get("/objects/{bucket}/*", h.HandleGet)
}

func refFromRequest(r *http.Request) (domain.ObjectRef, error) {
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		return domain.ObjectRef{}, dErrors.New(dErrors.CodeBadRequest, "malformed object key")
	}
	return domain.ParseObjectRef(chi.URLParam(r, "bucket"), key)
}

// HandlePut handles PUT /objects/{bucket}/{key} with a single-use signed URL.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ref, err := refFromRequest(r)
	if err != nil {
		h.reject(ctx, w, err, "")
		return
	}
	grant, err := h.signer.Verify(http.MethodPut, ref, r.URL.Query(), requestcontext.Now(ctx))
	if err != nil {
		h.reject(ctx, w, err, ref.String())
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !acceptedContentType(ct) {
		h.reject(ctx, w, dErrors.New(dErrors.CodeBadRequest, "content type must be image/jpeg"), ref.String())
		return
	}
	if err := h.nonces.Use(ctx, grant.Nonce, grant.ExpiresAt); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			h.reject(ctx, w, dErrors.New(dErrors.CodeForbidden, "signed URL was already used"), ref.String())
			return
		}
		h.reject(ctx, w, dErrors.Wrap(err, dErrors.CodeUnavailable, "ticket ledger unavailable"), ref.String())
		return
	}

	size, err := h.store.Put(ctx, ref, http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			err = dErrors.New(dErrors.CodeTooLarge, "object exceeds "+strconv.FormatInt(h.maxBytes, 10)+" bytes")
		case errors.Is(err, sentinel.ErrConflict):
			err = dErrors.New(dErrors.CodeConflict, "object already exists")
		default:
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to store object")
		}
		h.reject(ctx, w, err, ref.String())
		return
	}
	h.metrics.IncUploadStored()

	event := ObjectCreated{
		ID:        uuid.NewString(),
		Bucket:    ref.Bucket,
		Key:       ref.Key.String(),
		Size:      size,
		CreatedAt: requestcontext.Now(ctx).UTC(),
	}
	if h.notifier != nil {
		// Stored objects are kept even when the notification fails.
		if err := h.notifier.Notify(ctx, event); err != nil {
			h.logger.ErrorContext(ctx, "failed to publish object-created event",
				"object_key", event.Key,
				"event_id", event.ID,
				"request_id", requestID,
				"error", err,
			)
		}
	}

	h.logger.InfoContext(ctx, "object stored",
		"object_key", event.Key,
		"bucket", event.Bucket,
		"size", size,
		"request_id", requestID,
	)
	w.Header().Set("ETag", strconv.Quote(event.ID))
	w.WriteHeader(http.StatusCreated)
}

// HandleGet serves an object through a signed GET URL. GET URLs may be used
// repeatedly until they expire.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := refFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.signer.Verify(http.MethodGet, ref, r.URL.Query(), requestcontext.Now(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	rc, err := h.store.Open(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "object not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open object"))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(ctx, "object download interrupted",
			"object_key", ref.Key.String(),
			"error", err,
		)
	}
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, err error, key string) {
	code := dErrors.CodeOf(err)
	h.metrics.IncUploadRejected(string(code))
	h.logger.WarnContext(ctx, "upload rejected",
		"object_key", key,
		"code", code,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func acceptedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	return ct == "image/jpeg" || ct == "application/octet-stream"
}
