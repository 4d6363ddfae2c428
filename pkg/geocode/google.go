package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 1 << 20

// Geocode waits for the limiter, then issues one request. There are no
// retries; a failed request is reported as an unmatched Result.
func (g *geocoder) Geocode(ctx context.Context, code string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"address": {code},
		"key":     {g.apiKey},
	}
	if g.region != "" {
		params.Set("region", g.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(redact(err), "geocode: build request")
	}

	log := zap.L().With(zap.String("postal_code", code))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: request")
		}
		log.Warn("geocode: request failed", zap.Error(redact(err)))
		return unmatched(code, StatusTransportError), nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		log.Warn("geocode: unexpected http status", zap.Int("status", resp.StatusCode))
		return unmatched(code, StatusHTTPError+"_"+strconv.Itoa(resp.StatusCode)), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: read body")
		}
		log.Warn("geocode: read body failed", zap.Error(redact(err)))
		return unmatched(code, StatusTransportError), nil
	}

	var gr googleGeocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		log.Warn("geocode: parse response failed", zap.Error(err))
		return unmatched(code, StatusDecodeError), nil
	}

	if gr.Status != StatusOK || len(gr.Results) == 0 {
		status := gr.Status
		if status == StatusOK {
			status = StatusZeroResults
		}
		if status != StatusZeroResults {
			log.Warn("geocode: service returned non-OK status", zap.String("status", status))
		}
		return unmatched(code, status), nil
	}

	loc := gr.Results[0].Geometry.Location
	return &Result{
		PostalCode: code,
		Latitude:   loc.Lat,
		Longitude:  loc.Lng,
		Matched:    true,
		Status:     StatusOK,
	}, nil
}

func unmatched(code, status string) *Result {
	return &Result{PostalCode: code, Status: status}
}

// redact strips the request URL, which carries the API key, from transport
// errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
