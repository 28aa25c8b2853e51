package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"beacon/internal/config"
)

const userAgent = "Beacon-Coord/0.1.0"

// Service is the operator notification surface used by the escalation engine.
type Service interface {
	NotifyEscalation(ctx context.Context, subjectName, escalationType, severity, description string) error
	NotifyModeChange(ctx context.Context, mode string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Coord.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Coord.NtfyTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyEscalation(ctx context.Context, subjectName, escalationType, severity, description string) error {
	subjectName = strings.TrimSpace(subjectName)
	if subjectName == "" {
		subjectName = "unknown subject"
	}
	priority := "default"
	if severity == "critical" {
		priority = "urgent"
	}
	data := payload{
		title:    fmt.Sprintf("Beacon - %s", strings.ReplaceAll(escalationType, "_", " ")),
		message:  fmt.Sprintf("%s: %s", subjectName, description),
		tags:     []string{"beacon", "escalation", severity},
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyModeChange(ctx context.Context, mode string) error {
	data := payload{
		title:   "Beacon - Operation Mode",
		message: fmt.Sprintf("Operation mode is now %s", mode),
		tags:    []string{"beacon", "mode", mode},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Beacon - Test",
		message:  "Notification system test",
		tags:     []string{"beacon", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyEscalation(context.Context, string, string, string, string) error { return nil }
func (noopService) NotifyModeChange(context.Context, string) error                         { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
