package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

// RequestIDHeader carries a per-call correlation id to the backend.
const RequestIDHeader = "X-Request-ID"

// Doer is the minimal interface needed from an HTTP client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives timing for every completed round trip.
type Observer interface {
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Encoder renders a query string. url.Values and ordered parameter lists both satisfy it.
type Encoder interface {
	Encode() string
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient Doer
	Observer   Observer
	Logger     *zap.Logger
}

// Client performs JSON requests against the EcoTrack API.
type Client struct {
	baseURL  string
	doer     Doer
	observer Observer
	logger   *zap.Logger
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	// Route is the metrics label; defaults to Path.
	Route  string
	Query  Encoder
	Body   interface{}
	Header http.Header
}

// Response is a fully read API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		doer:     doer,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL resolves path and query against the base URL.
func (c *Client) URL(path string, query Encoder) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := c.baseURL + path
	if query != nil {
		if encoded := query.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}
	return target
}

// Do executes the request. A non-nil error means the call never produced an
// HTTP response; status handling is left to the caller.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeInternal, appErrors.ErrInternal.Status, "failed to encode request body")
		}
		body = bytes.NewReader(payload)
	}

	target := c.URL(r.Path, r.Query)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeInternal, appErrors.ErrInternal.Status, "failed to create request")
	}

	for key, values := range r.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	route := r.Route
	if route == "" {
		route = r.Path
	}

	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		c.logger.Warn("api request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.CodeTransport, appErrors.ErrTransport.Status, appErrors.ErrTransport.Message)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveHTTPRequest(method, route, resp.StatusCode, duration)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeTransport, appErrors.ErrTransport.Status, "failed to read response")
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", duration),
		zap.String("request_id", reqID),
	)

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into dest. An empty body leaves dest untouched.
func (r *Response) Decode(dest interface{}) error {
	if r == nil || dest == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Detail extracts the server's error explanation. Only a plain string detail
// counts; structured validation details are ignored.
func (r *Response) Detail() string {
	if r == nil || len(r.Body) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(r.Body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
