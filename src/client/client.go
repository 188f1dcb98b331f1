package client

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
)

// APIVersion is used for both the REST base and the gateway query.
const APIVersion = "8"

// DefaultAPIURL is the REST base used when none is configured.
const DefaultAPIURL = "https://discord.com/api/v" + APIVersion

// Client talks to the REST API. It implements gateway.Publisher.
type Client struct {
	token      string
	tokenType  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Options struct {
	// BaseURL defaults to DefaultAPIURL.
	BaseURL string
	// TokenType is prepended to the token in the Authorization header, e.g.
	// "Bot". User tokens are sent as they are.
	TokenType string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		token:      token,
		tokenType:  opts.TokenType,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     opts.Logger.With("component", "rest"),
	}
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) authorization() string {
	if c.tokenType == "" {
		return c.token
	}
	return c.tokenType + " " + c.token
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: could not marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: could not create request: %w", err)
	}
	req.Header.Set("Authorization", c.authorization())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: error making http request: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("client: could not read response body: %w", err)
	}
	c.logger.Debug("request done", "method", method, "path", path, "status", res.StatusCode)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Method: method, Path: path, Status: res.StatusCode, Body: string(resBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("client: could not unmarshal response body: %w", err)
	}
	return nil
}

type gatewayResponse struct {
	URL string `json:"url"`
}

// Gateway looks up the websocket endpoint. The result carries the query
// parameters the gateway package expects.
func (c *Client) Gateway(ctx context.Context) (string, error) {
	var res gatewayResponse
	if err := c.do(ctx, http.MethodGet, "/gateway", nil, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("client: gateway response without url")
	}
	return res.URL + "/?encoding=json&v=" + APIVersion, nil
}
