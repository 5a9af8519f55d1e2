package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"listcart/pkg/domain"
	"listcart/pkg/platform/sentinel"
)

// maxResponseBytes bounds a recognition response.
const maxResponseBytes = 4 << 20

// Presigner produces a time-limited read URL for a stored object.
type Presigner interface {
	PresignGet(ref domain.ObjectRef, ttl time.Duration) (string, error)
}

// HTTPClient calls a recognition service synchronously with a reference to
// the stored object.
type HTTPClient struct {
	endpoint  string
	apiKey    string
	client    *http.Client
	presigner Presigner
	logger    *slog.Logger
}

// NewHTTPClient builds a client for baseURL. presigner may be nil when the
// service reads the object store directly by bucket and key.
func NewHTTPClient(baseURL, apiKey string, presigner Presigner, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint:  strings.TrimRight(baseURL, "/") + "/v1/recognize",
		apiKey:    apiKey,
		client:    &http.Client{},
		presigner: presigner,
		logger:    logger,
	}
}

type recognizeRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	URL    string `json:"url,omitempty"`
}

type recognizeResponse struct {
	Blocks []struct {
		Text       string  `json:"text"`
		BlockType  string  `json:"blockType"`
		Confidence float64 `json:"confidence"`
	} `json:"blocks"`
}

// Recognize posts the object reference and decodes the returned blocks.
// Network errors, timeouts, 429 and 5xx responses are wrapped with
// sentinel.ErrUnavailable; anything else is permanent.
func (c *HTTPClient) Recognize(ctx context.Context, ref domain.ObjectRef) (*Result, error) {
	body := recognizeRequest{Bucket: ref.Bucket, Key: ref.Key.String()}
	if c.presigner != nil {
		u, err := c.presigner.PresignGet(ref, 5*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("presign object: %w", err)
		}
		body.URL = u
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode recognize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("recognize %s: %w", ref, ctx.Err())
		}
		return nil, fmt.Errorf("recognize %s: %v: %w", ref, err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read recognize response: %v: %w", err, sentinel.ErrUnavailable)
	}

	c.logger.DebugContext(ctx, "recognition response",
		"object_key", ref.Key.String(),
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("recognize %s: status %d: %w", ref, resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode/100 != 2:
		return nil, fmt.Errorf("recognize %s: status %d: %s", ref, resp.StatusCode, truncate(raw, 200))
	}

	var decoded recognizeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode recognize response: %w", err)
	}
	result := &Result{Blocks: make([]Block, 0, len(decoded.Blocks))}
	for _, b := range decoded.Blocks {
		result.Blocks = append(result.Blocks, Block{
			Text:       b.Text,
			Kind:       ParseBlockKind(b.BlockType),
			Confidence: b.Confidence,
		})
	}
	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
