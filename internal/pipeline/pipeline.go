// Package pipeline runs a reconcile: find candidate postal codes missing from
// the crosswalks, geocode them, place them in neighbourhoods and merge the
// matches back.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/onsdata/crosswalk-cli/internal/crosswalk"
	"github.com/onsdata/crosswalk-cli/internal/spatial"
	"github.com/onsdata/crosswalk-cli/pkg/geocode"
)

// Inputs are the loaded datasets for one run.
type Inputs struct {
	Candidates     []string
	SLI            []crosswalk.Row
	Weighted       []crosswalk.WeightedRow
	Neighbourhoods *spatial.Layer
	// Reference is the optional LDU layer used for the points audit.
	Reference *spatial.Layer
}

// Options tune a run.
type Options struct {
	Concurrency int
	Policy      crosswalk.ConflictPolicy
	Validator   *crosswalk.Validator
	Progress    bool
	// Checkpoint, if set, receives the geocode results before the spatial
	// step so they survive a later failure.
	Checkpoint func([]geocode.Result) error
}

// PointRecord is one geocoded code with everything the join learned about it.
type PointRecord struct {
	PostalCode string  `csv:"postal_code"`
	Latitude   float64 `csv:"lat"`
	Longitude  float64 `csv:"lng"`
	ONSID      string  `csv:"ONS_ID"`
	LDUCode    string  `csv:"ldu_code"`
}

// Result is everything a run produced.
type Result struct {
	RunID       string
	Missing     []string
	Geocoded    []geocode.Result
	Resolutions []crosswalk.Resolution
	Points      []PointRecord
	Ledger      []crosswalk.LedgerRow
	Merge       *crosswalk.MergeResult
	Summary     Summary
}

// Pipeline wires the geocoder to the reconcile steps.
type Pipeline struct {
	geocoder geocode.Client
	opts     Options
}

// New creates a Pipeline.
func New(gc geocode.Client, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Policy == "" {
		opts.Policy = crosswalk.PolicyAppend
	}
	return &Pipeline{geocoder: gc, opts: opts}
}

// Run executes the reconcile. It fails on cancellation, a checkpoint write
// failure or a merge conflict under the fail policy; per-code misses are
// never errors.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Result, error) {
	if in.Neighbourhoods == nil {
		return nil, eris.New("pipeline: no neighbourhood layer")
	}

	res := &Result{RunID: uuid.New().String()}
	res.Summary.RunID = res.RunID
	res.Summary.StartedAt = time.Now().UTC()
	res.Summary.NeighbourhoodCRS = in.Neighbourhoods.CRS().String()

	log := zap.L().With(zap.String("run_id", res.RunID))
	log.Info("pipeline: starting reconcile",
		zap.Int("candidates", len(in.Candidates)),
		zap.Int("sli_rows", len(in.SLI)),
		zap.Int("weighted_rows", len(in.Weighted)),
	)

	track := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		phase := PhaseSummary{Name: name, DurationMS: time.Since(start).Milliseconds(), Status: "complete"}
		if err != nil {
			phase.Status = "failed"
			log.Error("pipeline: step failed", zap.String("step", name), zap.Int64("duration_ms", phase.DurationMS), zap.Error(err))
		} else {
			log.Info("pipeline: step complete", zap.String("step", name), zap.Int64("duration_ms", phase.DurationMS))
		}
		res.Summary.Phases = append(res.Summary.Phases, phase)
		return err
	}

	// ===== Missing codes =====
	_ = track("missing", func() error {
		res.Missing = crosswalk.Missing(in.Candidates, crosswalk.Codes(in.SLI))
		res.Summary.Candidates = len(in.Candidates)
		res.Summary.DuplicateCandidates = crosswalk.CountDuplicates(in.Candidates)
		res.Summary.Missing = len(res.Missing)
		return nil
	})

	// ===== Validity =====
	var toGeocode []string
	resolutions := make(map[string]*crosswalk.Resolution, len(res.Missing))
	res.Resolutions = make([]crosswalk.Resolution, len(res.Missing))
	for i, code := range res.Missing {
		res.Resolutions[i].PostalCode = code
		resolutions[code] = &res.Resolutions[i]
		if !p.opts.Validator.Valid(code) {
			res.Resolutions[i].Invalid = true
			res.Summary.Invalid++
			log.Warn("pipeline: postal code fails validity check, not geocoding", zap.String("postal_code", code))
			continue
		}
		toGeocode = append(toGeocode, code)
	}

	// ===== Geocode =====
	if err := track("geocode", func() error {
		results, err := p.geocode(ctx, toGeocode)
		if err != nil {
			return err
		}
		res.Geocoded = results
		for _, r := range results {
			if r.Cached {
				res.Summary.CacheHits++
			}
			if !r.Matched {
				continue
			}
			res.Summary.Geocoded++
			rr := resolutions[r.PostalCode]
			rr.Geocoded = true
			rr.Latitude = r.Latitude
			rr.Longitude = r.Longitude
		}
		if p.opts.Checkpoint != nil {
			return eris.Wrap(p.opts.Checkpoint(results), "pipeline: checkpoint geocode results")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// ===== Spatial join =====
	_ = track("spatial", func() error {
		res.Points = assign(in.Neighbourhoods, in.Reference, res.Resolutions)
		return nil
	})

	// ===== Merge =====
	if err := track("merge", func() error {
		matched, ledger := crosswalk.Partition(res.Resolutions)
		res.Ledger = ledger
		merged, err := crosswalk.Merge(in.SLI, in.Weighted, matched, p.opts.Policy)
		if err != nil {
			return err
		}
		res.Merge = merged
		return nil
	}); err != nil {
		return nil, err
	}

	res.Summary.tally(res)
	log.Info("pipeline: reconcile complete",
		zap.Int("missing", res.Summary.Missing),
		zap.Int("matched", res.Summary.Matched),
		zap.Int("outside", res.Summary.Outside),
		zap.Int("not_geocoded", res.Summary.NotGeocoded),
		zap.Int("conflicts", res.Summary.Conflicts),
	)
	return res, nil
}

// assign places geocoded resolutions in the neighbourhood layer, updating
// them in place, and returns the audit records. Codes without coordinates
// never reach the join.
func assign(neighbourhoods, reference *spatial.Layer, resolutions []crosswalk.Resolution) []PointRecord {
	var idx []int
	var points []spatial.Point
	for i, r := range resolutions {
		if !r.Geocoded {
			continue
		}
		idx = append(idx, i)
		points = append(points, spatial.Point{Key: r.PostalCode, Lon: r.Longitude, Lat: r.Latitude})
	}
	if len(points) == 0 {
		return nil
	}

	hoods := neighbourhoods.Assign(points)
	var ldus []spatial.Assignment
	if reference != nil {
		ldus = reference.Assign(points)
	}

	records := make([]PointRecord, len(points))
	for j, i := range idx {
		r := &resolutions[i]
		r.ONSID = hoods[j].ID
		records[j] = PointRecord{
			PostalCode: r.PostalCode,
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			ONSID:      hoods[j].ID,
		}
		if ldus != nil {
			records[j].LDUCode = ldus[j].ID
		}
		if !hoods[j].Found {
			zap.L().Warn("pipeline: geocoded point outside every neighbourhood",
				zap.String("postal_code", r.PostalCode),
				zap.Float64("lat", r.Latitude),
				zap.Float64("lng", r.Longitude),
			)
		}
	}
	return records
}
