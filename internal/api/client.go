// Package api implements the HTTP client for the Pragmatiks platform:
// resource apply and query operations, the provider build/deploy
// lifecycle, and dead letter inspection.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Mode selects whether an applied resource is stored as a draft or
// deployed immediately.
type Mode string

const (
	ModeDraft  Mode = "draft"
	ModeDeploy Mode = "deploy"
)

// DefaultTimeout bounds every remote call unless overridden.
const DefaultTimeout = 30 * time.Second

// Resource is a platform resource as sent to and returned by the API.
type Resource struct {
	Provider       string         `json:"provider"`
	Resource       string         `json:"resource"`
	Name           string         `json:"name"`
	LifecycleState string         `json:"lifecycle_state,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
	Outputs        map[string]any `json:"outputs,omitempty"`
	Dependencies   []ResourceRef  `json:"dependencies,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ID returns the provider/resource/name identity of the resource.
func (r Resource) ID() string {
	return fmt.Sprintf("%s/%s/%s", r.Provider, r.Resource, r.Name)
}

// ResourceRef names another resource.
type ResourceRef struct {
	Provider string `json:"provider"`
	Resource string `json:"resource"`
	Name     string `json:"name"`
}

// ResourceType describes a resource type a provider offers.
type ResourceType struct {
	Provider    string `json:"provider"`
	Resource    string `json:"resource"`
	Description string `json:"description,omitempty"`
}

// DeadLetterEvent is a failed provider event parked by the platform.
type DeadLetterEvent struct {
	ID           string `json:"id"`
	Provider     string `json:"provider"`
	ResourceType string `json:"resource_type"`
	ResourceName string `json:"resource_name"`
	ErrorMessage string `json:"error_message"`
	FailedAt     string `json:"failed_at"`
}

// PushResult is the acknowledgement of a provider tarball upload.
type PushResult struct {
	Provider string `json:"provider"`
	BuildID  string `json:"build_id"`
	Status   string `json:"status"`
}

// Build is the state of a provider build.
type Build struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Build status values reported by the platform.
const (
	BuildBuilding  = "building"
	BuildSucceeded = "succeeded"
	BuildFailed    = "failed"
)

// Deployment is the acknowledgement of a provider deploy request.
type Deployment struct {
	Provider string `json:"provider"`
	Version  string `json:"version"`
	Status   string `json:"status"`
}

// ListOptions filters resource listings.
type ListOptions struct {
	Provider string
	Resource string
	Tags     []string
}

// Client talks to the platform API. All methods take a context and
// are bounded by the client timeout.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token for authenticated requests.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a platform API client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyResource creates or updates a resource. In draft mode the
// platform stores the definition without deploying it.
func (c *Client) ApplyResource(ctx context.Context, res Resource, mode Mode) (*Resource, error) {
	query := url.Values{"mode": {string(mode)}}
	var out Resource
	if err := c.do(ctx, http.MethodPost, "/v1/resources/apply", query, res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListResources returns resources matching the filter options.
func (c *Client) ListResources(ctx context.Context, opts ListOptions) ([]Resource, error) {
	query := url.Values{}
	if opts.Provider != "" {
		query.Set("provider", opts.Provider)
	}
	if opts.Resource != "" {
		query.Set("resource", opts.Resource)
	}
	for _, tag := range opts.Tags {
		query.Add("tag", tag)
	}
	var out []Resource
	if err := c.do(ctx, http.MethodGet, "/v1/resources", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetResource fetches one resource by identity.
func (c *Client) GetResource(ctx context.Context, provider, resource, name string) (*Resource, error) {
	path := fmt.Sprintf("/v1/resources/%s/%s/%s",
		url.PathEscape(provider), url.PathEscape(resource), url.PathEscape(name))
	var out Resource
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteResource deletes one resource by identity.
func (c *Client) DeleteResource(ctx context.Context, provider, resource, name string) error {
	path := fmt.Sprintf("/v1/resources/%s/%s/%s",
		url.PathEscape(provider), url.PathEscape(resource), url.PathEscape(name))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ListResourceTypes returns the resource types available on the
// platform, optionally filtered by provider.
func (c *Client) ListResourceTypes(ctx context.Context, provider string) ([]ResourceType, error) {
	query := url.Values{}
	if provider != "" {
		query.Set("provider", provider)
	}
	var out []ResourceType
	if err := c.do(ctx, http.MethodGet, "/v1/resources/types", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDeadLetterEvents returns parked failed events, optionally
// filtered by provider.
func (c *Client) ListDeadLetterEvents(ctx context.Context, provider string) ([]DeadLetterEvent, error) {
	query := url.Values{}
	if provider != "" {
		query.Set("provider", provider)
	}
	var out []DeadLetterEvent
	if err := c.do(ctx, http.MethodGet, "/v1/ops/dead-letter", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDeadLetterEvent fetches one dead letter event by ID.
func (c *Client) GetDeadLetterEvent(ctx context.Context, id string) (*DeadLetterEvent, error) {
	var out DeadLetterEvent
	if err := c.do(ctx, http.MethodGet, "/v1/ops/dead-letter/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PushProvider uploads a gzipped provider source tarball and starts a
// build.
func (c *Client) PushProvider(ctx context.Context, name string, tarball io.Reader) (*PushResult, error) {
	u := c.baseURL + "/v1/providers/" + url.PathEscape(name) + "/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, tarball)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/gzip")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	var out PushResult
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBuild fetches the state of a provider build.
func (c *Client) GetBuild(ctx context.Context, provider, buildID string) (*Build, error) {
	path := "/v1/providers/" + url.PathEscape(provider) + "/builds/" + url.PathEscape(buildID)
	var out Build
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeployProvider deploys a built provider version.
func (c *Client) DeployProvider(ctx context.Context, provider, version string) (*Deployment, error) {
	path := "/v1/providers/" + url.PathEscape(provider) + "/deploy"
	body := map[string]string{"version": version}
	var out Deployment
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = KindTimeout
		}
		return &Error{Kind: kind, Message: fmt.Sprintf("%s %s: %v", req.Method, req.URL.Path, err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: fmt.Sprintf("reading response: %v", err)}
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindNetwork, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
