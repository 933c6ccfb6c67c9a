// Package webhook is the bridge to the external workflow-automation endpoint:
// outbound task_created notifications, status probing, request signing and the
// optional outbox worker that retries deliveries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"taskhook/models"
)

const maxResponseBytes = 1 << 20

type ClientConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Logger  *log.Logger
	// HTTPClient overrides the default client; its Timeout wins over Timeout.
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client talks to the automation endpoint. The URL can be swapped at runtime
// when configuration is reloaded.
type Client struct {
	url    atomic.Pointer[string]
	secret string
	http   *http.Client
	logger *log.Logger
	now    func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		secret: cfg.Secret,
		http:   httpClient,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	c.SetURL(cfg.URL)
	return c
}

func (c *Client) SetURL(u string) {
	c.url.Store(&u)
}

func (c *Client) URL() string {
	return *c.url.Load()
}

// Send POSTs body as JSON and returns the decoded response. Failures are
// *models.UpstreamError.
func (c *Client) Send(ctx context.Context, body []byte) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, &models.UpstreamError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		ts := strconv.FormatInt(c.now().Unix(), 10)
		req.Header.Set(TimestampHeader, ts)
		req.Header.Set(SignatureHeader, Sign(c.secret, ts, body))
	}
	return c.do(req)
}

// NotifyTaskCreated sends the task_created envelope once. The outcome is
// reported, never returned as an error, so it cannot fail task creation.
func (c *Client) NotifyTaskCreated(ctx context.Context, task models.Task) models.WebhookResult {
	body, err := json.Marshal(models.NewTaskCreatedPayload(task, c.now()))
	if err != nil {
		return models.WebhookResult{Success: false, Error: err.Error()}
	}

	c.logger.Printf("Triggering webhook for task %s", task.ID)
	data, err := c.Send(ctx, body)
	if err != nil {
		c.logger.Printf("Error triggering webhook for task %s: %v", task.ID, err)
		return models.WebhookResult{Success: false, Error: err.Error()}
	}
	c.logger.Printf("Webhook triggered successfully for task %s", task.ID)
	return models.WebhookResult{Success: true, Data: data}
}

// Status checks the endpoint with a GET.
func (c *Client) Status(ctx context.Context) models.WebhookStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return models.WebhookStatus{Success: false, Status: "inactive", Error: err.Error()}
	}
	data, err := c.do(req)
	if err != nil {
		c.logger.Printf("Error checking webhook status: %v", err)
		return models.WebhookStatus{Success: false, Status: "inactive", Error: err.Error()}
	}
	return models.WebhookStatus{Success: true, Status: "active", Data: data}
}

func (c *Client) do(req *http.Request) (any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &models.UpstreamError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.UpstreamError{Status: resp.StatusCode}
	}
	return decodeResponse(raw), nil
}

// decodeResponse keeps JSON responses structured and falls back to the raw text.
func decodeResponse(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(raw))
}
