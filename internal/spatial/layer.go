// Package spatial assigns points to the polygons of a layer: shapefile
// loading, coordinate reference systems, and an R-tree backed
// point-in-polygon join.
package spatial

import (
	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"
)

const (
	// searchTolerance pads point queries and degenerate feature bounds.
	searchTolerance = 1e-9
	treeMinChildren = 25
	treeMaxChildren = 50
)

// Feature is one polygon of a layer. Area is in squared layer units and is
// only used to rank overlapping polygons.
type Feature struct {
	ID   string
	Geom *geom.MultiPolygon
	Area float64
}

// Point is a WGS84 location to be assigned. Key identifies it in logs.
type Point struct {
	Key string
	Lon float64
	Lat float64
}

// Assignment is the result of joining one Point. ID is empty when no polygon
// contains the point.
type Assignment struct {
	Key   string
	ID    string
	Found bool
}

// Layer is an indexed polygon set in a single CRS.
type Layer struct {
	crs      CRS
	features []Feature
	tree     *rtreego.Rtree
}

type indexed struct {
	idx  int
	rect rtreego.Rect
}

func (i *indexed) Bounds() rtreego.Rect { return i.rect }

// NewLayer indexes features, whose coordinates are in crs.
func NewLayer(crs CRS, features []Feature) *Layer {
	objs := make([]rtreego.Spatial, 0, len(features))
	for i, f := range features {
		if f.Geom == nil || f.Geom.Empty() {
			continue
		}
		b := f.Geom.Bounds()
		objs = append(objs, &indexed{idx: i, rect: boundsRect(b)})
	}
	return &Layer{
		crs:      crs,
		features: features,
		tree:     rtreego.NewTree(2, treeMinChildren, treeMaxChildren, objs...),
	}
}

func boundsRect(b *geom.Bounds) rtreego.Rect {
	minX, minY := b.Min(0), b.Min(1)
	maxX, maxY := b.Max(0), b.Max(1)
	if maxX-minX < searchTolerance {
		minX -= searchTolerance
		maxX += searchTolerance
	}
	if maxY-minY < searchTolerance {
		minY -= searchTolerance
		maxY += searchTolerance
	}
	r, _ := rtreego.NewRectFromPoints(rtreego.Point{minX, minY}, rtreego.Point{maxX, maxY})
	return r
}

// CRS returns the layer's reference system.
func (l *Layer) CRS() CRS { return l.crs }

// Len returns the number of features.
func (l *Layer) Len() int { return len(l.features) }

// Locate returns the id of the polygon containing the WGS84 point, if any.
// Points on a boundary are contained. When several polygons contain the
// point the smallest wins, then the lexicographically smallest id.
func (l *Layer) Locate(lon, lat float64) (string, bool) {
	f, _ := l.locate(Point{Lon: lon, Lat: lat})
	if f == nil {
		return "", false
	}
	return f.ID, true
}

// Assign locates every point. The result is parallel to points.
func (l *Layer) Assign(points []Point) []Assignment {
	out := make([]Assignment, len(points))
	ties := 0
	for i, p := range points {
		out[i].Key = p.Key
		f, tied := l.locate(p)
		if tied {
			ties++
		}
		if f != nil {
			out[i].ID = f.ID
			out[i].Found = true
		}
	}
	if ties > 0 {
		zap.L().Warn("spatial: points fell in overlapping polygons", zap.Int("points", ties))
	}
	return out
}

func (l *Layer) locate(p Point) (*Feature, bool) {
	x, y := l.crs.Project(p.Lon, p.Lat)
	c := geom.Coord{x, y}

	var best *Feature
	hits := 0
	for _, s := range l.tree.SearchIntersect(rtreego.Point{x, y}.ToRect(searchTolerance)) {
		f := &l.features[s.(*indexed).idx]
		if !contains(f.Geom, c) {
			continue
		}
		hits++
		if best == nil || f.Area < best.Area || (f.Area == best.Area && f.ID < best.ID) {
			best = f
		}
	}

	if hits > 1 {
		zap.L().Warn("spatial: point contained by several polygons",
			zap.String("key", p.Key),
			zap.Int("polygons", hits),
			zap.String("chosen", best.ID),
		)
	}
	return best, hits > 1
}

// contains reports whether c lies inside or on the boundary of mp. A point
// strictly inside a hole is outside.
func contains(mp *geom.MultiPolygon, c geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		switch xy.LocatePointInRing(geom.XY, c, poly.LinearRing(0).FlatCoords()) {
		case location.Exterior:
			continue
		case location.Boundary:
			return true
		}

		inHole := false
		for j := 1; j < poly.NumLinearRings(); j++ {
			if xy.LocatePointInRing(geom.XY, c, poly.LinearRing(j).FlatCoords()) == location.Interior {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
