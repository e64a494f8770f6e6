// Package usgs fetches the USGS earthquake event feed.
package usgs

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/go-resty/resty/v2"
)

// DefaultFeedURL lists the ten most recent magnitude 6+ events.
const DefaultFeedURL = "https://earthquake.usgs.gov/fdsnws/event/1/query?format=geojson&orderby=time&minmag=6&limit=10"

const queryEndpoint = "https://earthquake.usgs.gov/fdsnws/event/1/query"

// Query holds the USGS query parameters the app uses.
type Query struct {
	MinMagnitude float64
	Limit        int
}

// QueryURL builds a GeoJSON query URL ordered by time, newest first.
func QueryURL(q Query) string {
	params := url.Values{
		"format":  {"geojson"},
		"orderby": {"time"},
	}
	if q.MinMagnitude > 0 {
		params.Set("minmag", strconv.FormatFloat(q.MinMagnitude, 'f', -1, 64))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return queryEndpoint + "?" + params.Encode()
}

// Client issues single GET requests for feed documents. It never retries.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a feed client. connectTimeout bounds dialing; readTimeout
// bounds each wait for data, both for the response headers and between body
// reads. A body that keeps streaming is never cut off; the caller's context
// is the only overall bound.
func NewClient(connectTimeout, readTimeout time.Duration, logger *slog.Logger) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &idleTimeoutConn{Conn: conn, timeout: readTimeout}, nil
		},
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
	}

	client := resty.New().
		SetTransport(transport).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{http: client, logger: logger}
}

// idleTimeoutConn fails a Read that waits longer than timeout for data.
type idleTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleTimeoutConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

// Get fetches the document at feedURL and returns its body as text.
// An empty feedURL returns "" and no error. Every failure wraps domain.ErrNetwork.
func (c *Client) Get(ctx context.Context, feedURL string) (string, error) {
	if feedURL == "" {
		return "", nil
	}
	if _, err := url.ParseRequestURI(feedURL); err != nil {
		return "", fmt.Errorf("%w: invalid url: %w", domain.ErrNetwork, err)
	}

	c.logger.Debug("fetching feed", "url", feedURL)

	resp, err := c.http.R().
		SetContext(ctx).
		Get(feedURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrNetwork, resp.StatusCode())
	}

	return string(resp.Body()), nil
}

// Fetch is Get with failures logged and collapsed to "".
func (c *Client) Fetch(ctx context.Context, feedURL string) string {
	body, err := c.Get(ctx, feedURL)
	if err != nil {
		c.logger.Error("feed fetch failed", "url", feedURL, "error", err)
		return ""
	}
	return body
}
