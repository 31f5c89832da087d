// Package buyerclient resolves buyer profiles from the user service over HTTP,
// optionally through a Redis cache.
package buyerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/juliakaiko/orderservice/internal/domain/buyer"
	"github.com/juliakaiko/orderservice/internal/domain/failure"
	"github.com/juliakaiko/orderservice/pkg/httpmiddleware"
)

// HeaderInternalCall marks requests made by another service rather than an
// end user.
const HeaderInternalCall = "X-Internal-Call"

// Options configures a Client.
type Options struct {
	// BaseURL of the user service, e.g. http://user-service:8080.
	BaseURL string
	// Timeout bounds a single lookup. Zero means 5s.
	Timeout        time.Duration
	TracerProvider trace.TracerProvider
	// Transport overrides the underlying round tripper. Used by tests.
	Transport http.RoundTripper
}

var _ buyer.Directory = (*Client)(nil)

// Client is a buyer.Directory backed by the user service REST API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse user service url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("user service url %q must be absolute", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(rt, otelOpts...),
		},
	}, nil
}

// ByID fetches GET /api/users/{id}.
func (c *Client) ByID(ctx context.Context, id int64) (*buyer.Profile, error) {
	return c.get(ctx, "/api/users/"+strconv.FormatInt(id, 10), nil, fmt.Sprintf("id %d", id))
}

// ByEmail fetches GET /api/users/find-by-email?email=.
func (c *Client) ByEmail(ctx context.Context, email string) (*buyer.Profile, error) {
	q := url.Values{"email": []string{email}}
	return c.get(ctx, "/api/users/find-by-email", q, fmt.Sprintf("email %q", email))
}

func (c *Client) get(ctx context.Context, path string, query url.Values, what string) (*buyer.Profile, error) {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderInternalCall, "true")
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(httpmiddleware.RequestIDHeader, id)
	}
	if auth := httpmiddleware.AuthorizationFromContext(ctx); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.Upstream, err, "user service")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrap(buyer.ErrNotFound, what)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		zctx.From(ctx).Warn("User service error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, failure.Newf(failure.Upstream, "user service: status %d", resp.StatusCode)
	}

	var p buyer.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, failure.Wrap(failure.Upstream, err, "decode user profile")
	}
	return &p, nil
}
