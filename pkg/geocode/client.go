// Package geocode resolves postal codes to WGS84 coordinates through a
// Google-compatible geocoding API, with a shared rate limiter, a bounded
// batch runner and an optional SQLite result cache.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Google Geocoding API JSON endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrMissingCredential is returned by NewClient when no API key is supplied.
var ErrMissingCredential = eris.New("geocode: api key is required")

// Status values recorded on a Result in addition to the API's own statuses
// (OK, ZERO_RESULTS, OVER_QUERY_LIMIT, REQUEST_DENIED, ...).
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusHTTPError      = "HTTP_ERROR"
	StatusTransportError = "TRANSPORT_ERROR"
	StatusDecodeError    = "DECODE_ERROR"
)

// Client geocodes postal codes.
type Client interface {
	// Geocode resolves one code. A code the service cannot resolve yields a
	// Result with Matched=false, not an error; errors mean the run must stop
	// (context cancelled).
	Geocode(ctx context.Context, code string) (*Result, error)
}

// Result holds the geocoding output for a postal code.
type Result struct {
	PostalCode string
	Latitude   float64
	Longitude  float64
	Matched    bool
	Status     string
	Cached     bool
}

// Definitive reports whether r is worth remembering: a match, or a clean
// answer that the code does not exist. Transport and quota failures are not.
func (r Result) Definitive() bool {
	return r.Matched || r.Status == StatusZeroResults
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL points the client at another endpoint with the same contract.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithRateLimit sets the aggregate request ceiling shared by every call made
// through the client.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *geocoder) {
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLimiter shares an existing limiter, e.g. between several clients.
func WithLimiter(l *rate.Limiter) Option {
	return func(g *geocoder) {
		g.limiter = l
	}
}

// WithRegion biases results towards a ccTLD region ("ca").
func WithRegion(region string) Option {
	return func(g *geocoder) {
		g.region = region
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	region     string
	limiter    *rate.Limiter
}

// NewClient creates a Google geocoding Client. The key is only ever sent
// as a request parameter; it is never logged or returned in errors.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(40, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}
