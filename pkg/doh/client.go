// Package doh provides a client for DNS-over-HTTPS JSON resolvers
// (dns.google, cloudflare-dns.com).
package doh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/contact-mx/internal/resilience"
)

// DefaultBaseURL is the Google public resolver JSON endpoint.
const DefaultBaseURL = "https://dns.google/resolve"

// TypeMX is the DNS record type number for MX.
const TypeMX = 15

// Client resolves DNS records over HTTPS.
type Client interface {
	// LookupMX returns the lowercased exchange hostnames for domain, without
	// preference or trailing dot. A response without answers yields an empty
	// slice and no error.
	LookupMX(ctx context.Context, domain string) ([]string, error)
}

// Response is the resolver JSON body.
type Response struct {
	Status int      `json:"Status"`
	Answer []Answer `json:"Answer,omitempty"`
}

// Answer is one resource record in a Response.
type Answer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

// StatusError is returned for non-2xx resolver responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("doh: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets the resolver endpoint (for testing or alternate resolvers).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second across all callers. Values <= 0
// leave the client unlimited.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a DNS-over-HTTPS client. Per-request deadlines come from
// the caller's context.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) LookupMX(ctx context.Context, domain string) ([]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "doh: rate limiter wait")
		}
	}

	params := url.Values{}
	params.Set("name", domain)
	params.Set("type", "MX")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "doh: create request"))
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "doh: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, resilience.NewPermanentError(statusErr)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "doh: decode response"))
	}

	records := make([]string, 0, len(out.Answer))
	for _, a := range out.Answer {
		host := Host(strings.ToLower(a.Data))
		if host == "" {
			continue
		}
		records = append(records, host)
	}
	return records, nil
}

// Host extracts the exchange hostname from an MX data string such as
// "10 aspmx.l.google.com.", dropping the preference and trailing dot.
func Host(data string) string {
	fields := strings.Fields(data)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[len(fields)-1], ".")
}
