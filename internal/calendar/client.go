// Package calendar talks to the external calendar collaborator and applies
// the workload offloading rules: overload detection, deletion proposals and
// wellness breaks.
package calendar

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranckBG1/agentic-ia-agent/internal/models"
)

// Calendar action types accepted by the collaborator endpoint.
const (
	ActionConsult = "CONSULT"
	ActionAdd     = "ADD"
	ActionDelete  = "DELETE"
)

// DefaultTimeout bounds every calendar request.
const DefaultTimeout = 10 * time.Second

// Opts holds calendar client configuration.
type Opts struct {
	// Endpoint is the collaborator base URL. An empty endpoint disables
	// the calendar integration.
	Endpoint string
	// Timeout bounds each request; defaults to DefaultTimeout.
	Timeout time.Duration
	// InsecureTLS skips certificate verification, for self-hosted endpoints
	// with self-signed certificates.
	InsecureTLS bool
}

// Option configures the calendar client.
type Option func(*Opts)

// WithEndpoint sets the collaborator base URL.
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithInsecureTLS skips TLS certificate verification.
func WithInsecureTLS(insecure bool) Option {
	return func(o *Opts) { o.InsecureTLS = insecure }
}

// Client calls the collaborator's single GET endpoint. All operations go
// through query parameters; the verb is carried by action_type.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a calendar client. A client with an empty endpoint is
// valid but reports Configured() == false.
func NewClient(opts ...Option) *Client {
	cfg := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := http.DefaultTransport
	if cfg.InsecureTLS {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

// Configured reports whether an endpoint was provided.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != ""
}

// apiEnvelope is the collaborator's response shape.
type apiEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details struct {
		Events  []models.CalendarEvent `json:"events"`
		Message string                 `json:"message"`
	} `json:"details"`
}

// Consult fetches the events of one day and their total duration.
func (c *Client) Consult(ctx context.Context, date string) ([]models.CalendarEvent, float64, error) {
	env, err := c.call(ctx, url.Values{
		"action_type": {ActionConsult},
		"date":        {date},
	})
	if err != nil {
		return nil, 0, err
	}
	var total float64
	for _, evt := range env.Details.Events {
		total += evt.DurationHours
	}
	return env.Details.Events, total, nil
}

// AddEvent creates an event on the given day.
func (c *Client) AddEvent(ctx context.Context, date, title string, durationHours float64, description string) error {
	_, err := c.call(ctx, url.Values{
		"action_type":    {ActionAdd},
		"date":           {date},
		"title":          {title},
		"duration_hours": {fmt.Sprintf("%g", durationHours)},
		"description":    {description},
	})
	return err
}

// DeleteEvent removes an event by id.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := c.call(ctx, url.Values{
		"action_type": {ActionDelete},
		"event_id":    {eventID},
	})
	return err
}

func (c *Client) call(ctx context.Context, params url.Values) (*apiEnvelope, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("calendar endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode calendar response: %w", err)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return nil, fmt.Errorf("calendar returned code %d: %s", env.Code, env.Message)
	}
	return &env, nil
}
