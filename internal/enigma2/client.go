package enigma2

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/snapetech/e2catalog/internal/httpclient"
	"github.com/snapetech/e2catalog/internal/metrics"
)

const (
	DefaultLineupTimeout = 5 * time.Second
	DefaultPiconTimeout  = 3 * time.Second

	maxLineupBytes = 16 << 20
	maxPiconBytes  = 4 << 20
)

// StatusError is returned when the receiver answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP error! Status: %d", e.URL, e.StatusCode)
}

// Client builds receiver URLs and performs the lineup and picon requests.
// All requests carry their own deadline (LineupTimeout / PiconTimeout).
type Client struct {
	ControlURL string // http://host:port (OpenWebif)
	PiconURL   string // http://host (serves /picon/*.png)
	StreamURL  string // http://host:streamport

	LineupTimeout time.Duration
	PiconTimeout  time.Duration

	HTTP    *http.Client
	limiter *rate.Limiter
}

// NewClient returns a Client with default timeouts. rps > 0 caps the request
// rate to the receiver across lineup and picon calls.
func NewClient(controlURL, piconURL, streamURL string, rps float64) *Client {
	c := &Client{
		ControlURL:    strings.TrimRight(controlURL, "/"),
		PiconURL:      strings.TrimRight(piconURL, "/"),
		StreamURL:     strings.TrimRight(streamURL, "/"),
		LineupTimeout: DefaultLineupTimeout,
		PiconTimeout:  DefaultPiconTimeout,
		HTTP:          httpclient.Default(),
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
	}
	return c
}

// LineupURL is the getservices URL; an empty bouquetRef lists the bouquets.
func (c *Client) LineupURL(bouquetRef string) string {
	u := c.ControlURL + "/web/getservices"
	if bouquetRef != "" {
		u += "?sRef=" + url.QueryEscape(bouquetRef)
	}
	return u
}

// PiconURLFor is the picon image URL for a service reference.
func (c *Client) PiconURLFor(serviceRef string) string {
	return c.PiconURL + "/picon/" + PiconFilename(serviceRef) + ".png"
}

// StreamURLFor is the playable stream URL for a service reference.
func (c *Client) StreamURLFor(serviceRef string) string {
	return c.StreamURL + "/" + serviceRef
}

// FetchBouquets fetches and parses the bouquet list.
func (c *Client) FetchBouquets(ctx context.Context) ([]Bouquet, error) {
	body, err := c.fetchLineup(ctx, "")
	if err != nil {
		return nil, err
	}
	return ParseBouquets(body), nil
}

// FetchChannels fetches and parses the services of one bouquet.
func (c *Client) FetchChannels(ctx context.Context, bouquetRef string) ([]Channel, error) {
	body, err := c.fetchLineup(ctx, bouquetRef)
	if err != nil {
		return nil, err
	}
	return ParseChannels(body), nil
}

func (c *Client) fetchLineup(ctx context.Context, bouquetRef string) (string, error) {
	endpoint := "bouquets"
	if bouquetRef != "" {
		endpoint = "channels"
	}
	ctx, cancel := context.WithTimeout(ctx, orDefault(c.LineupTimeout, DefaultLineupTimeout))
	defer cancel()

	u := c.LineupURL(bouquetRef)
	resp, err := c.do(ctx, u, httpclient.LineupRetryPolicy)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return "", fmt.Errorf("getservices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "status").Inc()
		return "", &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	r, err := charset.NewReader(io.LimitReader(resp.Body, maxLineupBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return "", fmt.Errorf("getservices: charset: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return "", fmt.Errorf("getservices: read body: %w", err)
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return string(b), nil
}

// FetchPicon downloads the raw picon image. Any failure, including a
// timeout, is returned as an error; callers treat all of them the same.
func (c *Client) FetchPicon(ctx context.Context, serviceRef string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, orDefault(c.PiconTimeout, DefaultPiconTimeout))
	defer cancel()

	u := c.PiconURLFor(serviceRef)
	resp, err := c.do(ctx, u, httpclient.NoRetry)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("picon", "error").Inc()
		return nil, fmt.Errorf("picon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues("picon", "status").Inc()
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPiconBytes))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("picon", "error").Inc()
		return nil, fmt.Errorf("picon: read body: %w", err)
	}
	metrics.UpstreamRequests.WithLabelValues("picon", "ok").Inc()
	return b, nil
}

func (c *Client) do(ctx context.Context, u string, policy httpclient.RetryPolicy) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	return httpclient.DoWithRetry(ctx, c.HTTP, req, policy)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
