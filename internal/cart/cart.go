// Package cart dispatches resolved line intents to the external
// search-and-add-to-cart collaborator. Delivery is at-least-once; every
// request carries an idempotency key so the collaborator can drop duplicates.
package cart

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"listcart/pkg/domain"
)

// HeaderIdempotencyKey names the dedup header sent with every dispatch.
const HeaderIdempotencyKey = "Idempotency-Key"

// Intent is one accepted line bound to the subject that owns the image.
type Intent struct {
	SubjectID domain.SubjectID
	ObjectKey domain.ObjectKey
	LineText  string
}

// IdempotencyKey is hex(sha256(subjectId|epochMillis|lineText)); identical
// lines from a redelivered object produce identical keys.
func (i Intent) IdempotencyKey() string {
	sum := sha256.Sum256([]byte(i.SubjectID.String() + "|" + strconv.FormatInt(i.ObjectKey.Millis, 10) + "|" + i.LineText))
	return hex.EncodeToString(sum[:])
}

// Payload is the wire body sent to the collaborator.
type Payload struct {
	SubjectID string `json:"subjectId"`
	LineText  string `json:"lineText"`
}

// Payload returns the wire body for the intent.
func (i Intent) Payload() Payload {
	return Payload{SubjectID: i.SubjectID.String(), LineText: i.LineText}
}

// StatusError reports a non-2xx collaborator response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cart dispatch: status %d: %s", e.Status, e.Body)
}

// HTTPDispatcher posts intents to the cart API.
type HTTPDispatcher struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

func NewHTTPDispatcher(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDispatcher{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/cart/items",
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Dispatch sends one intent.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, intent Intent) error {
	body, err := json.Marshal(intent.Payload())
	if err != nil {
		return fmt.Errorf("encode cart payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build cart request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, intent.IdempotencyKey())
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("cart dispatch: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	d.logger.DebugContext(ctx, "cart dispatch response",
		"subject_id", intent.SubjectID,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return nil
}
