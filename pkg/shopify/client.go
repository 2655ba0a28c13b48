// Package shopify talks to the Shopify Storefront GraphQL API for carts.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweetdrop/storefront-api/pkg/config"
	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/logger"
)

const (
	tokenHeader     = "X-Shopify-Storefront-Access-Token"
	maxErrorBodyLen = 512
)

// Observer receives one event per GraphQL round trip.
type Observer interface {
	ObserveBackendCall(operation, outcome string, elapsed time.Duration)
}

const (
	OutcomeOK        = "ok"
	OutcomeUserError = "user_error"
	OutcomeError     = "error"
)

type Client struct {
	endpoint    string
	accessToken string
	linesFirst  int
	httpClient  *http.Client
	logg        *logger.Logger
	observer    Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoint overrides the GraphQL URL derived from the store domain.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient builds a Storefront client. It fails with UNAVAILABLE when the
// domain or token is missing.
func NewClient(cfg config.ShopifyConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if cfg.Domain() == "" || strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "shopify storefront is not configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	linesFirst := cfg.MaxLinesFetched
	if linesFirst <= 0 {
		linesFirst = 50
	}

	c := &Client{
		endpoint:    cfg.Endpoint(),
		accessToken: strings.TrimSpace(cfg.AccessToken),
		linesFirst:  linesFirst,
		httpClient:  &http.Client{Timeout: timeout},
		logg:        logg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GraphQLRequest is the POST body sent to Shopify.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLResponse is the top-level envelope returned by Shopify.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Execute runs one GraphQL document and decodes data into out. Transport,
// status and top-level GraphQL failures come back as DEPENDENCY_ERROR.
func (c *Client) Execute(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build graphql request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce backend unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read commerce backend response")
	}

	if resp.StatusCode != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("commerce backend returned status %d", resp.StatusCode)).
			WithDetails(map[string]any{"operation": operation, "status": resp.StatusCode, "body": truncate(string(body))})
	}

	var envelope GraphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode commerce backend response")
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, gqlErr := range envelope.Errors {
			messages[i] = gqlErr.Message
		}
		return pkgerrors.New(pkgerrors.CodeDependency, "commerce backend error: "+strings.Join(messages, "; ")).
			WithDetails(map[string]any{"operation": operation})
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode commerce backend data")
	}
	return nil
}

// instrument times fn and reports its outcome to the observer and the log.
func (c *Client) instrument(ctx context.Context, operation string, fn func() error) error {
	started := time.Now()
	err := fn()
	c.observe(ctx, operation, started, err)
	return err
}

func (c *Client) observe(ctx context.Context, operation string, started time.Time, err error) {
	outcome := OutcomeOK
	switch {
	case err == nil:
	case pkgerrors.CodeOf(err) == pkgerrors.CodeValidation:
		outcome = OutcomeUserError
	default:
		outcome = OutcomeError
	}
	if c.observer != nil {
		c.observer.ObserveBackendCall(operation, outcome, time.Since(started))
	}
	if err != nil && c.logg != nil && outcome == OutcomeError {
		ctx = c.logg.WithFields(ctx, map[string]any{"operation": operation, "elapsed_ms": time.Since(started).Milliseconds()})
		c.logg.Warn(ctx, "shopify storefront call failed: "+err.Error())
	}
}

func truncate(s string) string {
	if len(s) <= maxErrorBodyLen {
		return s
	}
	return s[:maxErrorBodyLen] + "..."
}
