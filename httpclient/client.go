// Package httpclient is the JSON request layer shared by every API call site.
//
// A Client performs one request per call. When built with an Interceptor, the
// interceptor owns credential handling: it attaches the bearer token and
// recovers from 401 responses by coordinating a single token refresh.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	contentType     = "Content-Type"
	applicationJSON = "application/json"
	requestIDHeader = "X-Request-ID"
)

// RequestOptions describes one call.
type RequestOptions struct {
	Method  string      // Defaults to GET
	Headers http.Header // Extra headers
	Body    any         // JSON encoded when non-nil
	Params  url.Values  // Query string
}

// Request is a call in flight. Interceptors decide the credential per attempt.
type Request struct {
	Path    string
	Options RequestOptions
	Token   *oauth2.Token // Credential sent with this attempt, nil for none
	retried bool
}

// Retried reports whether this attempt is a replay after a refresh.
func (r *Request) Retried() bool {
	return r.retried
}

// replay returns a one-shot copy of r carrying accessToken.
func (r *Request) replay(accessToken string) *Request {
	next := *r
	next.Token = bearer(accessToken)
	next.retried = true
	return &next
}

// SendFunc performs a single attempt of req.
type SendFunc func(ctx context.Context, req *Request) (json.RawMessage, error)

// Interceptor wraps every request issued by a Client.
type Interceptor interface {
	Intercept(ctx context.Context, req *Request, next SendFunc) (json.RawMessage, error)
}

// Client issues JSON requests against a base URL.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	interceptor Interceptor
	logger      zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying client (cookie jar, timeout, transport).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithInterceptor installs an interceptor around every request.
func WithInterceptor(i Interceptor) ClientOption {
	return func(c *Client) {
		c.interceptor = i
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for baseURL (scheme and host, no trailing slash needed).
func New(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// BaseURL returns the origin requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs a call and returns the raw JSON response body.
func (c *Client) Request(ctx context.Context, path string, options RequestOptions) (json.RawMessage, error) {
	if options.Method == "" {
		options.Method = http.MethodGet
	}
	req := &Request{Path: path, Options: options}
	if c.interceptor != nil {
		return c.interceptor.Intercept(ctx, req, c.send)
	}
	return c.send(ctx, req)
}

func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodGet, Params: params})
}

func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPost, Body: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPut, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPatch, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodDelete})
}

// Decode unmarshals a response into T. It passes err through untouched so it
// can wrap a Client call directly: Decode[[]Post](c.Get(ctx, path, nil)).
func Decode[T any](data json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &RequestError{Message: fmt.Sprintf("decode response: %v", err), Data: data, Err: err}
	}
	return out, nil
}

func (c *Client) resolve(path string, params url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL + path
	}
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}
	return target
}

// send performs exactly one HTTP attempt.
func (c *Client) send(ctx context.Context, req *Request) (json.RawMessage, error) {
	var body io.Reader
	if req.Options.Body != nil {
		data, err := json.Marshal(req.Options.Body)
		if err != nil {
			return nil, &RequestError{Message: fmt.Sprintf("encode request: %v", err), Err: err}
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Options.Method, c.resolve(req.Path, req.Options.Params), body)
	if err != nil {
		return nil, &RequestError{Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Accept", applicationJSON)
	httpReq.Header.Set(contentType, applicationJSON)
	for k, values := range req.Options.Headers {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get(requestIDHeader) == "" {
		httpReq.Header.Set(requestIDHeader, uuid.NewString())
	}
	if req.Token != nil {
		req.Token.SetAuthHeader(httpReq)
	}

	logger := c.logger.With().
		Str("method", req.Options.Method).
		Str("path", req.Path).
		Str("request_id", httpReq.Header.Get(requestIDHeader)).
		Bool("retry", req.retried).
		Logger()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Debug().Err(err).Msg("request failed without response")
		return nil, &RequestError{Message: err.Error(), NetworkError: true, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Message: err.Error(), Status: resp.StatusCode, NetworkError: true, Err: err}
	}
	logger.Debug().Int("status", resp.StatusCode).Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Message: responseMessage(resp.StatusCode, data),
			Status:  resp.StatusCode,
			Data:    validJSON(data),
		}
	}
	return validJSON(data), nil
}

// validJSON returns data unless it is empty or not JSON.
func validJSON(data []byte) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		return nil
	}
	return data
}

func bearer(accessToken string) *oauth2.Token {
	if accessToken == "" {
		return nil
	}
	return &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
}
