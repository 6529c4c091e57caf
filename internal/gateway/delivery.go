package gateway

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

	"content-market/pkg/logging"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request id the sidecar echoes in its logs.
const RequestIDHeader = "X-Request-ID"

// MediaRef points at a media file. CachedHandle, when set, lets the
// delivery channel reuse an earlier upload.
type MediaRef struct {
	Path         string `json:"media_path"`
	CachedHandle string `json:"cached_handle,omitempty"`
}

// SendResult is the delivery channel's answer to a timed send.
type SendResult struct {
	Success      bool                   `json:"success"`
	ErrorDetail  string                 `json:"error,omitempty"`
	CachedHandle string                 `json:"cached_handle,omitempty"`
	Meta         map[string]interface{} `json:"meta,omitempty"`
}

// DeliveryClient talks to the delivery sidecar that owns the user session
// of the sender identity.
type DeliveryClient struct {
	baseURL     string
	secret      string
	httpClient  *http.Client
	retryDelays []time.Duration
}

// NewDeliveryClient creates a client for the sidecar at baseURL. Requests
// are signed with secret when it is set.
func NewDeliveryClient(baseURL, secret string, timeout time.Duration) *DeliveryClient {
	return &DeliveryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryDelays: []time.Duration{500 * time.Millisecond, 2 * time.Second},
	}
}

type contactRequest struct {
	Recipient string `json:"recipient"`
}

type contactResponse struct {
	IsContact bool `json:"is_contact"`
}

type mediaRequest struct {
	Recipient string `json:"recipient"`
	MediaRef
	Caption             string `json:"caption,omitempty"`
	SelfDestructSeconds int    `json:"self_destruct_seconds"`
}

// IsContact reports whether recipient has added the sender identity.
// Transport failures are retried and then returned; they never read as
// "not a contact".
func (c *DeliveryClient) IsContact(ctx context.Context, recipient string) (bool, error) {
	var resp contactResponse
	err := c.withRetry(ctx, "contact check", func() error {
		return c.post(ctx, "/contacts/check", contactRequest{Recipient: recipient}, &resp)
	})
	if err != nil {
		return false, err
	}
	return resp.IsContact, nil
}

// SendPhotoWithTimer sends a self-destructing photo
func (c *DeliveryClient) SendPhotoWithTimer(ctx context.Context, recipient string, media MediaRef, caption string, seconds int) (SendResult, error) {
	return c.sendMedia(ctx, "/media/photo", recipient, media, caption, seconds)
}

// SendVideoWithTimer sends a self-destructing video
func (c *DeliveryClient) SendVideoWithTimer(ctx context.Context, recipient string, media MediaRef, caption string, seconds int) (SendResult, error) {
	return c.sendMedia(ctx, "/media/video", recipient, media, caption, seconds)
}

// sendMedia is not retried; a timeout may still have delivered the media.
func (c *DeliveryClient) sendMedia(ctx context.Context, path, recipient string, media MediaRef, caption string, seconds int) (SendResult, error) {
	req := mediaRequest{
		Recipient:           recipient,
		MediaRef:            media,
		Caption:             caption,
		SelfDestructSeconds: seconds,
	}

	var result SendResult
	if err := c.post(ctx, path, req, &result); err != nil {
		return SendResult{}, err
	}
	return result, nil
}

// withRetry retries transport failures with the configured delays
func (c *DeliveryClient) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		logging.Warnf("Delivery %s failed - attempt: %d, error: %v", op, attempt+1, err)

		if attempt == len(c.retryDelays) {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(c.retryDelays[attempt]):
		}
	}
	return fmt.Errorf("delivery %s failed after %d attempts: %w", op, len(c.retryDelays)+1, err)
}

// post sends a single signed JSON request and decodes the JSON answer
func (c *DeliveryClient) post(ctx context.Context, path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ContentMarket-Delivery/1.0")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.secret != "" {
		req.Header.Set(SignatureHeader, Sign(jsonData, c.secret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
