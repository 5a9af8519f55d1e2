package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"listcart/pkg/domain"
	"listcart/pkg/failure"
)

// ErrTicketExpired is returned when a ticket expired before the upload
// started.
var ErrTicketExpired = errors.New("upload ticket expired")

// Ticket is a signed, single-object upload grant.
type Ticket struct {
	URL       string
	Key       domain.ObjectKey
	ExpiresAt time.Time
}

type ticketResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expires_at"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// TicketClient requests upload tickets from the issuer.
type TicketClient struct {
	endpoint string
	client   *http.Client
}

func NewTicketClient(issuerURL string, timeout time.Duration) *TicketClient {
	return &TicketClient{
		endpoint: strings.TrimRight(issuerURL, "/") + "/upload-ticket",
		client:   &http.Client{Timeout: timeout},
	}
}

// Request asks for a ticket with the caller's access token. Every error is a
// ticket issuance failure; the next physical trigger is the retry.
func (c *TicketClient) Request(ctx context.Context, accessToken string) (*Ticket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, nil)
	if err != nil {
		return nil, failure.New(failure.KindTicketIssuance, "request ticket", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, failure.New(failure.KindTicketIssuance, "request ticket", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return nil, failure.New(failure.KindTicketIssuance, "request ticket",
			fmt.Errorf("issuer status %d: %s", resp.StatusCode, e.Error))
	}

	var body ticketResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, failure.New(failure.KindTicketIssuance, "decode ticket", err)
	}
	key, err := domain.ParseObjectKey(body.Key)
	if err != nil {
		return nil, failure.New(failure.KindTicketIssuance, "decode ticket", err)
	}
	exp, err := time.Parse(time.RFC3339, body.ExpiresAt)
	if err != nil {
		return nil, failure.New(failure.KindTicketIssuance, "decode ticket", err)
	}
	if body.URL == "" {
		return nil, failure.New(failure.KindTicketIssuance, "decode ticket", errors.New("ticket has no url"))
	}
	return &Ticket{URL: body.URL, Key: key, ExpiresAt: exp}, nil
}

// Uploader PUTs an image to a ticket URL. Uploads are not retried: a ticket
// is single-use and short-lived.
type Uploader struct {
	client *http.Client
	now    func() time.Time
}

func NewUploader(timeout time.Duration) *Uploader {
	return &Uploader{client: &http.Client{Timeout: timeout}, now: time.Now}
}

// Upload sends image to t. The request is bounded by the ticket expiry.
func (u *Uploader) Upload(ctx context.Context, t *Ticket, image []byte) error {
	if !u.now().Before(t.ExpiresAt) {
		return failure.New(failure.KindUpload, "upload", ErrTicketExpired)
	}
	ctx, cancel := context.WithDeadline(ctx, t.ExpiresAt)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.URL, bytes.NewReader(image))
	if err != nil {
		return failure.New(failure.KindUpload, "upload", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.ContentLength = int64(len(image))

	resp, err := u.client.Do(req)
	if err != nil {
		return failure.New(failure.KindUpload, "upload", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))

	if resp.StatusCode/100 != 2 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return failure.New(failure.KindUpload, "upload",
			fmt.Errorf("store status %d: %s", resp.StatusCode, e.Error))
	}
	return nil
}
