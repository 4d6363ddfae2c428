package geocode

import (
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewClient_RequiresKey(t *testing.T) {
	c, err := NewClient("")
	assert.Nil(t, c)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingCredential))
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("key")
	require.NoError(t, err)

	g := c.(*geocoder)
	assert.Equal(t, DefaultBaseURL, g.baseURL)
	assert.Equal(t, "key", g.apiKey)
	assert.Equal(t, rate.Limit(40), g.limiter.Limit())
	assert.Equal(t, 1, g.limiter.Burst())
	assert.Equal(t, 30*time.Second, g.httpClient.Timeout)
	assert.Empty(t, g.region)
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c, err := NewClient("key",
		WithHTTPClient(hc),
		WithBaseURL("http://localhost/geocode"),
		WithRateLimit(10, 0),
		WithRegion("ca"),
	)
	require.NoError(t, err)

	g := c.(*geocoder)
	assert.Same(t, hc, g.httpClient)
	assert.Equal(t, "http://localhost/geocode", g.baseURL)
	assert.Equal(t, rate.Limit(10), g.limiter.Limit())
	assert.Equal(t, 1, g.limiter.Burst())
	assert.Equal(t, "ca", g.region)
}

func TestWithLimiter_Shared(t *testing.T) {
	l := rate.NewLimiter(5, 1)
	a, err := NewClient("key", WithLimiter(l))
	require.NoError(t, err)
	b, err := NewClient("key", WithLimiter(l))
	require.NoError(t, err)

	assert.Same(t, a.(*geocoder).limiter, b.(*geocoder).limiter)
}

func TestResult_Definitive(t *testing.T) {
	assert.True(t, Result{Matched: true, Status: StatusOK}.Definitive())
	assert.True(t, Result{Status: StatusZeroResults}.Definitive())
	assert.False(t, Result{Status: StatusTransportError}.Definitive())
	assert.False(t, Result{Status: "OVER_QUERY_LIMIT"}.Definitive())
	assert.False(t, Result{Status: "HTTP_ERROR_500"}.Definitive())
}
