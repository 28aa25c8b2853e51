package channel

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

	"beacon/internal/config"
	"beacon/internal/logging"
	"beacon/internal/queue"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client handles HTTP communication with the coordination server's ingestion
// endpoints. Every call is bounded by the configured timeout.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	client  HTTPDoer
}

// NewClient constructs a coordination server client from config.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Server.BaseURL, "/"),
		token:   cfg.Server.APIToken,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewClientWithDoer constructs a client with a custom HTTP backend (used in tests).
func NewClientWithDoer(baseURL, token string, timeout time.Duration, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		client:  doer,
	}
}

// SubmitSOS delivers an emergency alert.
func (c *Client) SubmitSOS(ctx context.Context, payload queue.SOSPayload) error {
	return c.post(ctx, "/api/v1/sos", payload)
}

// SubmitCheckin delivers a routine check-in.
func (c *Client) SubmitCheckin(ctx context.Context, payload queue.CheckinPayload) error {
	return c.post(ctx, "/api/v1/checkin", payload)
}

// SubmitStatus delivers a subject status report.
func (c *Client) SubmitStatus(ctx context.Context, payload queue.StatusPayload) error {
	return c.post(ctx, "/api/v1/status", payload)
}

// SubmitMessage delivers a free-text message.
func (c *Client) SubmitMessage(ctx context.Context, payload queue.MessagePayload) error {
	return c.post(ctx, "/api/v1/message", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.baseURL == "" {
		return fmt.Errorf("no server base URL configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// NetworkAdapter dispatches queue items to the coordination server by kind.
type NetworkAdapter struct {
	client *Client
	logger *slog.Logger
}

// NewNetworkAdapter constructs the network channel adapter.
func NewNetworkAdapter(client *Client, logger *slog.Logger) *NetworkAdapter {
	return &NetworkAdapter{
		client: client,
		logger: logging.NewComponentLogger(logger, "channel-network"),
	}
}

// Name implements queue.Adapter.
func (a *NetworkAdapter) Name() queue.Channel { return queue.ChannelNetwork }

// Attempt implements queue.Adapter. Timeouts and connectivity failures yield
// false; they never propagate.
func (a *NetworkAdapter) Attempt(ctx context.Context, item *queue.Item) bool {
	var err error
	switch payload := item.Payload.(type) {
	case queue.SOSPayload:
		err = a.client.SubmitSOS(ctx, payload)
	case queue.CheckinPayload:
		err = a.client.SubmitCheckin(ctx, payload)
	case queue.StatusPayload:
		err = a.client.SubmitStatus(ctx, payload)
	case queue.MessagePayload:
		err = a.client.SubmitMessage(ctx, payload)
	default:
		a.logger.Error("unsupported payload type",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("kind", string(item.Kind)),
		)
		return false
	}

	if err != nil {
		a.logger.Debug("network submission failed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err),
		)
		return false
	}
	return true
}
