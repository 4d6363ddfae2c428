package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/onsdata/crosswalk-cli/internal/spatial"
	"github.com/onsdata/crosswalk-cli/pkg/geocode"
)

// stubGeocoder answers from a map; unknown codes are zero results.
type stubGeocoder struct {
	mu      sync.Mutex
	coords  map[string][2]float64 // code → lat, lng
	calls   []string
	failErr error
}

func (s *stubGeocoder) Geocode(_ context.Context, code string) (*geocode.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, code)
	if s.failErr != nil {
		return nil, s.failErr
	}
	c, ok := s.coords[code]
	if !ok {
		return &geocode.Result{PostalCode: code, Status: geocode.StatusZeroResults}, nil
	}
	return &geocode.Result{PostalCode: code, Latitude: c[0], Longitude: c[1], Matched: true, Status: geocode.StatusOK}, nil
}

func box(t *testing.T, id string, minLon, minLat, maxLon, maxLat float64) spatial.Feature {
	t.Helper()
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		minLon, minLat, minLon, maxLat, maxLon, maxLat, maxLon, minLat, minLon, minLat,
	}, []int{10})
	require.NoError(t, mp.Push(poly))
	return spatial.Feature{ID: id, Geom: mp, Area: mp.Area()}
}

// ottawaLayer has neighbourhood 7 around Alta Vista and 3 downtown.
func ottawaLayer(t *testing.T) *spatial.Layer {
	t.Helper()
	return spatial.NewLayer(spatial.WGS84, []spatial.Feature{
		box(t, "7", -75.70, 45.37, -75.66, 45.40),
		box(t, "3", -75.72, 45.41, -75.68, 45.43),
	})
}
