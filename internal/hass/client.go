// Package hass is a thin client for the Home Assistant REST API.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hactl/internal/domain"
)

// Client talks to one Home Assistant instance with a long-lived token.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
	retry   retryPolicy
	logger  *slog.Logger
}

type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// MaxRetries and BackoffBase default to 3 and 300ms.
	MaxRetries  int
	BackoffBase time.Duration
	Logger      *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	return NewClientWithHTTP(cfg, nil)
}

// NewClientWithHTTP uses the given http.Client instead of a pooled default.
func NewClientWithHTTP(cfg ClientConfig, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		client:  httpClient,
		retry:   retryPolicy{maxRetries: cfg.MaxRetries, base: cfg.BackoffBase},
		logger:  cfg.Logger,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// do sends the request and returns the body of a successful (< 400) response.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	target := c.baseURL + endpoint
	buildReq := func() (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	c.logger.Debug("request", "method", method, "url", target)
	resp, err := doWithRetry(ctx, c.client, buildReq, c.retry, c.logger)
	if err != nil {
		return nil, transportError(c.baseURL, c.timeout, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(c.baseURL, c.timeout, err)
	}
	c.logger.Debug("response", "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode >= 400 {
		return nil, statusError(resp, respBody)
	}
	return respBody, nil
}

// decode parses a JSON body, keeping attribute numbers as json.Number.
func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &APIError{
			Kind:    KindMalformed,
			Message: fmt.Sprintf("Malformed response from Home Assistant: %v", err),
			Body:    string(body),
			Err:     err,
		}
	}
	return nil
}

// isEmptyBody matches the bodies the hub sends for a missing entity.
func isEmptyBody(body []byte) bool {
	switch string(bytes.TrimSpace(body)) {
	case "", "null", "{}", "[]":
		return true
	}
	return false
}

// TestConnection checks that the API answers with a status below 400 and
// returns the hub's greeting ("API running.").
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/", nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		c.logger.Info("connected to Home Assistant", "message", payload.Message)
		return payload.Message, nil
	}
	return "OK", nil
}

// GetStates returns every entity state.
func (c *Client) GetStates(ctx context.Context) ([]domain.EntityState, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, err
	}
	var states []domain.EntityState
	if err := decode(body, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// GetState returns one entity. An empty body counts as not found even on 200.
func (c *Client) GetState(ctx context.Context, entityID string) (*domain.EntityState, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		return nil, err
	}
	if isEmptyBody(body) {
		return nil, &APIError{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: "Entity not found: " + entityID}
	}
	var state domain.EntityState
	if err := decode(body, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CallService invokes domain.service with data as the JSON body. data should
// carry entity_id for entity-scoped services; that is not checked here.
// The hub's response (usually the changed states) is returned as-is.
func (c *Client) CallService(ctx context.Context, svcDomain, service string, data map[string]any) (json.RawMessage, error) {
	if data == nil {
		data = map[string]any{}
	}
	endpoint := "/api/services/" + url.PathEscape(svcDomain) + "/" + url.PathEscape(service)
	c.logger.Info("calling service", "service", svcDomain+"."+service, "data", data)

	body, err := c.do(ctx, http.MethodPost, endpoint, data)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, &APIError{Kind: KindMalformed, Message: "Malformed response from Home Assistant", Body: string(body)}
	}
	return json.RawMessage(body), nil
}

// CallServiceForEntity calls <domain of entityID>.service with entity_id set.
func (c *Client) CallServiceForEntity(ctx context.Context, entityID, service string, data map[string]any) (json.RawMessage, error) {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["entity_id"] = entityID
	return c.CallService(ctx, domain.EntityDomain(entityID), service, payload)
}
