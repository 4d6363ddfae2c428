package spatial

import (
	"math"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ErrInvalidGeometry is returned when a polygon layer cannot be used for the
// join. It is a usage error: the input file must be fixed.
var ErrInvalidGeometry = eris.New("spatial: invalid polygon layer")

// LoadShapefile reads the polygons of a shapefile into a Layer keyed by the
// idField attribute. Attribute names match case-insensitively. Polygon,
// PolygonZ and PolygonM records are accepted; only their XY rings are kept,
// in the file's own coordinates, described by crs.
func LoadShapefile(path, idField string, crs CRS) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "spatial: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idIdx, ok := fieldIdx[strings.ToLower(idField)]
	if !ok {
		return nil, eris.Wrapf(ErrInvalidGeometry, "%s has no %q attribute", path, idField)
	}
	idType := fields[idIdx].Fieldtype

	var features []Feature
	for reader.Next() {
		n, shape := reader.Shape()

		id := attributeString(reader.Attribute(idIdx), idType)
		if id == "" {
			return nil, eris.Wrapf(ErrInvalidGeometry, "%s record %d: empty %s", path, n, idField)
		}

		poly, ok := planarPolygon(shape)
		if !ok {
			return nil, eris.Wrapf(ErrInvalidGeometry, "%s record %d (%s): expected polygon, got %T", path, n, id, shape)
		}

		mp, err := polygonToMultiPolygon(poly)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidGeometry, "%s record %d (%s): %v", path, n, id, err)
		}

		features = append(features, Feature{ID: id, Geom: mp, Area: mp.Area()})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "spatial: read shapefile %s", path)
	}

	zap.L().Debug("spatial: loaded polygon layer",
		zap.String("path", path),
		zap.String("crs", crs.String()),
		zap.Int("features", len(features)),
	)

	return NewLayer(crs, features), nil
}

// planarPolygon returns the XY rings of a Polygon, PolygonZ or PolygonM
// shape. Z and measure values are dropped.
func planarPolygon(shape shp.Shape) (*shp.Polygon, bool) {
	switch p := shape.(type) {
	case *shp.Polygon:
		return p, p != nil
	case *shp.PolygonZ:
		if p == nil {
			return nil, false
		}
		return &shp.Polygon{Box: p.Box, NumParts: p.NumParts, NumPoints: p.NumPoints, Parts: p.Parts, Points: p.Points}, true
	case *shp.PolygonM:
		if p == nil {
			return nil, false
		}
		return &shp.Polygon{Box: p.Box, NumParts: p.NumParts, NumPoints: p.NumPoints, Parts: p.Parts, Points: p.Points}, true
	default:
		return nil, false
	}
}

// attributeString normalizes a dBase value. Numeric identifiers holding an
// integral value are formatted in decimal without a fraction.
func attributeString(raw string, fieldType byte) string {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return ""
	}
	if fieldType != 'N' && fieldType != 'F' {
		return val
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1e15 {
		return val
	}
	return strconv.FormatInt(int64(f), 10)
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Rings wound like the first ring start a new polygon; rings wound the other
// way are holes of the polygon before them.
func polygonToMultiPolygon(p *shp.Polygon) (*geom.MultiPolygon, error) {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil, eris.New("no rings")
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	var outerCCW bool

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}
		if start < 0 || end > int32(len(p.Points)) || start > end {
			return nil, eris.Errorf("ring %d: bad part offsets", i)
		}

		flat, err := ringCoords(p.Points[start:end])
		if err != nil {
			return nil, eris.Wrapf(err, "ring %d", i)
		}

		ccw := xy.IsRingCounterClockwise(geom.XY, flat)
		if i == 0 {
			outerCCW = ccw
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current == nil || ccw == outerCCW {
			if current != nil {
				if err := mp.Push(current); err != nil {
					return nil, eris.Wrapf(err, "ring %d", i)
				}
			}
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			return nil, eris.Wrapf(err, "ring %d", i)
		}
	}
	if err := mp.Push(current); err != nil {
		return nil, eris.Wrap(err, "last polygon")
	}
	return mp, nil
}

// ringCoords validates a ring and flattens it for go-geom.
func ringCoords(points []shp.Point) ([]float64, error) {
	if len(points) < 4 {
		return nil, eris.Errorf("%d vertices, need at least 4", len(points))
	}
	flat := make([]float64, 0, len(points)*2)
	for _, pt := range points {
		if !finite(pt.X) || !finite(pt.Y) {
			return nil, eris.Errorf("non-finite coordinate (%v, %v)", pt.X, pt.Y)
		}
		flat = append(flat, pt.X, pt.Y)
	}
	first, last := points[0], points[len(points)-1]
	if first.X != last.X || first.Y != last.Y {
		return nil, eris.New("ring is not closed")
	}
	return flat, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
