package nlu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotConfigured is returned when no provider configuration is present.
// The sync engine records it on the intent without attempting any I/O.
var ErrNotConfigured = errors.New("nlu provider is not configured")

// Provider is the external NLU service consumed by the sync engine and,
// for detection, by the conversation message path.
type Provider interface {
	CreateIntent(ctx context.Context, spec IntentSpec) (string, error)
	UpdateIntent(ctx context.Context, remoteID string, spec IntentSpec) error
	DeleteIntent(ctx context.Context, remoteID string) error
	Retrain(ctx context.Context) error
	DetectIntent(ctx context.Context, sessionID, text string) (*DetectResult, error)
}

// Config holds the provider connection settings. All fields except Timeout
// are required; construction fails fast on incomplete configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	ProjectID string
	Timeout   time.Duration
}

// Configured reports whether enough configuration is present to build a client.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.ProjectID != ""
}

// Validate checks that required fields are set.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: missing base url", ErrNotConfigured)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: missing api key", ErrNotConfigured)
	}
	if c.ProjectID == "" {
		return fmt.Errorf("%w: missing project id", ErrNotConfigured)
	}
	return nil
}

const detectCacheSize = 512

// Client talks to the provider's HTTP API. Detection results are cached in a
// bounded LRU keyed by utterance text, since identical utterances resolve to
// the same intent until the model is retrained.
type Client struct {
	http        *resty.Client
	projectID   string
	detectCache *lru.Cache[string, DetectResult]
}

// NewClient builds a provider client from validated configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	detectCache, err := lru.New[string, DetectResult](detectCacheSize)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        httpClient,
		projectID:   cfg.ProjectID,
		detectCache: detectCache,
	}, nil
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) fail(resp *resty.Response, op string) error {
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
		msg = e.Message
	}
	return fmt.Errorf("%s failed: %s", op, msg)
}

type createResponse struct {
	RemoteID string `json:"id"`
}

// CreateIntent registers a new intent with the provider and returns its
// remote id.
func (c *Client) CreateIntent(ctx context.Context, spec IntentSpec) (string, error) {
	var out createResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(spec).
		SetResult(&out).
		SetError(&apiError{}).
		Post(fmt.Sprintf("/v2/projects/%s/intents", c.projectID))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", c.fail(resp, "create intent")
	}
	return out.RemoteID, nil
}

// UpdateIntent replaces the remote copy of an intent.
func (c *Client) UpdateIntent(ctx context.Context, remoteID string, spec IntentSpec) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(spec).
		SetError(&apiError{}).
		Put(fmt.Sprintf("/v2/projects/%s/intents/%s", c.projectID, remoteID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return c.fail(resp, "update intent")
	}
	return nil
}

// DeleteIntent removes the remote copy of an intent.
func (c *Client) DeleteIntent(ctx context.Context, remoteID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		Delete(fmt.Sprintf("/v2/projects/%s/intents/%s", c.projectID, remoteID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return c.fail(resp, "delete intent")
	}
	return nil
}

// Retrain triggers a model rebuild and invalidates the detect cache.
func (c *Client) Retrain(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		Post(fmt.Sprintf("/v2/projects/%s/train", c.projectID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return c.fail(resp, "retrain")
	}
	c.detectCache.Purge()
	return nil
}

type detectRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// DetectIntent resolves a user utterance to an intent.
func (c *Client) DetectIntent(ctx context.Context, sessionID, text string) (*DetectResult, error) {
	if cached, ok := c.detectCache.Get(text); ok {
		return &cached, nil
	}

	var out DetectResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(detectRequest{SessionID: sessionID, Text: text}).
		SetResult(&out).
		SetError(&apiError{}).
		Post(fmt.Sprintf("/v2/projects/%s/detect", c.projectID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.fail(resp, "detect intent")
	}

	c.detectCache.Add(text, out)
	return &out, nil
}
