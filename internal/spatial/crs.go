package spatial

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnsupportedCRS is returned for reference systems the projector cannot
// reproduce.
var ErrUnsupportedCRS = eris.New("spatial: unsupported coordinate reference system")

type projKind int

const (
	kindGeographic projKind = iota
	kindWebMercator
	kindTransverseMercator
)

type ellipsoid struct {
	a, f float64
}

var (
	wgs84 = ellipsoid{a: 6378137, f: 1 / 298.257223563}
	grs80 = ellipsoid{a: 6378137, f: 1 / 298.257222101}
)

// WGS84 is the reference system geocoded points are expressed in.
var WGS84 = CRS{EPSG: 4326, Name: "WGS 84"}

// CRS is a coordinate reference system that WGS84 lon/lat points can be
// projected into. NAD83 and its CSRS realization are treated as coincident
// with WGS84; only the ellipsoid differs.
type CRS struct {
	EPSG int
	Name string

	kind     projKind
	ell      ellipsoid
	lon0     float64 // central meridian, degrees
	k0       float64
	falseE   float64
	mercator float64 // sphere radius for web mercator
}

// Geographic reports whether c uses lon/lat degrees as coordinates.
func (c CRS) Geographic() bool { return c.kind == kindGeographic }

func (c CRS) String() string {
	if c.EPSG == 0 {
		return c.Name
	}
	return "EPSG:" + strconv.Itoa(c.EPSG) + " (" + c.Name + ")"
}

// Project converts a WGS84 lon/lat pair into c's coordinates. Projection
// only ever runs in this direction; layer geometry is never transformed.
func (c CRS) Project(lon, lat float64) (x, y float64) {
	switch c.kind {
	case kindWebMercator:
		return webMercator(c.mercator, lon, lat)
	case kindTransverseMercator:
		return transverseMercator(c.ell, c.lon0, c.k0, c.falseE, lon, lat)
	default:
		return lon, lat
	}
}

func geographic(epsg int, name string) CRS {
	return CRS{EPSG: epsg, Name: name, kind: kindGeographic}
}

func utm(epsg, zone int, ell ellipsoid, name string) CRS {
	return CRS{
		EPSG:   epsg,
		Name:   name,
		kind:   kindTransverseMercator,
		ell:    ell,
		lon0:   float64(-183 + 6*zone),
		k0:     0.9996,
		falseE: 500000,
	}
}

func mtm(epsg, zone int, name string) CRS {
	var lon0 float64
	switch zone {
	case 1:
		lon0 = -53
	case 2:
		lon0 = -56
	default:
		lon0 = -58.5 - 3*float64(zone-3)
	}
	return CRS{
		EPSG:   epsg,
		Name:   name,
		kind:   kindTransverseMercator,
		ell:    grs80,
		lon0:   lon0,
		k0:     0.9999,
		falseE: 304800,
	}
}

// LookupEPSG returns the CRS for a supported EPSG code.
func LookupEPSG(code int) (CRS, error) {
	switch {
	case code == 4326:
		return WGS84, nil
	case code == 4269:
		return geographic(code, "NAD83"), nil
	case code == 4617:
		return geographic(code, "NAD83(CSRS)"), nil
	case code == 3857 || code == 900913:
		return CRS{EPSG: code, Name: "WGS 84 / Pseudo-Mercator", kind: kindWebMercator, mercator: 6378137}, nil
	case code >= 32601 && code <= 32660:
		zone := code - 32600
		return utm(code, zone, wgs84, "WGS 84 / UTM zone "+strconv.Itoa(zone)+"N"), nil
	case code >= 26901 && code <= 26923:
		zone := code - 26900
		return utm(code, zone, grs80, "NAD83 / UTM zone "+strconv.Itoa(zone)+"N"), nil
	case code == 2958 || code == 2959:
		zone := 17 + code - 2958
		return utm(code, zone, grs80, "NAD83(CSRS) / UTM zone "+strconv.Itoa(zone)+"N"), nil
	case code >= 32181 && code <= 32190:
		zone := code - 32180
		return mtm(code, zone, "NAD83 / MTM zone "+strconv.Itoa(zone)), nil
	case code >= 2945 && code <= 2952:
		zone := code - 2942
		return mtm(code, zone, "NAD83(CSRS) / MTM zone "+strconv.Itoa(zone)), nil
	}
	return CRS{}, eris.Wrapf(ErrUnsupportedCRS, "EPSG:%d", code)
}

var (
	utmZoneRe = regexp.MustCompile(`(?i)UTM[_ ]zone[_ ](\d{1,2})([NS])`)
	mtmZoneRe = regexp.MustCompile(`(?i)MTM[_ ](?:zone[_ ])?(\d{1,2})\b`)
)

// ParsePRJ identifies the CRS described by the WKT of a .prj file.
func ParsePRJ(wkt string) (CRS, error) {
	upper := strings.ToUpper(wkt)
	nad83 := strings.Contains(upper, "NAD83") || strings.Contains(upper, "NAD_1983") ||
		strings.Contains(upper, "NORTH_AMERICAN_1983")
	csrs := strings.Contains(upper, "CSRS")

	if !strings.Contains(upper, "PROJCS") {
		if !strings.Contains(upper, "GEOGCS") {
			return CRS{}, eris.Wrap(ErrUnsupportedCRS, "prj has neither PROJCS nor GEOGCS")
		}
		switch {
		case csrs:
			return LookupEPSG(4617)
		case nad83:
			return LookupEPSG(4269)
		default:
			return WGS84, nil
		}
	}

	if strings.Contains(upper, "MERCATOR_AUXILIARY_SPHERE") || strings.Contains(upper, "PSEUDO-MERCATOR") ||
		strings.Contains(upper, "WEB_MERCATOR") {
		return LookupEPSG(3857)
	}

	if m := utmZoneRe.FindStringSubmatch(wkt); m != nil {
		zone, _ := strconv.Atoi(m[1])
		if strings.EqualFold(m[2], "S") {
			return CRS{}, eris.Wrapf(ErrUnsupportedCRS, "southern UTM zone %dS", zone)
		}
		switch {
		case csrs && (zone == 17 || zone == 18):
			return LookupEPSG(2958 + zone - 17)
		case nad83 || csrs:
			return LookupEPSG(26900 + zone)
		default:
			return LookupEPSG(32600 + zone)
		}
	}

	if m := mtmZoneRe.FindStringSubmatch(wkt); m != nil {
		zone, _ := strconv.Atoi(m[1])
		if csrs && zone >= 3 && zone <= 10 {
			return LookupEPSG(2942 + zone)
		}
		return LookupEPSG(32180 + zone)
	}

	return CRS{}, eris.Wrap(ErrUnsupportedCRS, "unrecognized PROJCS")
}

// ResolveCRS picks the CRS of a shapefile: the configured EPSG code when
// non-zero, otherwise the sibling .prj file. A shapefile with neither is
// assumed to be WGS84.
func ResolveCRS(shpPath string, epsg int) (CRS, error) {
	if epsg != 0 {
		return LookupEPSG(epsg)
	}

	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("spatial: no .prj next to shapefile, assuming WGS84", zap.String("path", shpPath))
		return WGS84, nil
	}
	if err != nil {
		return CRS{}, eris.Wrapf(err, "spatial: read %s", prjPath)
	}

	crs, err := ParsePRJ(string(data))
	if err != nil {
		return CRS{}, eris.Wrapf(err, "spatial: %s", prjPath)
	}
	return crs, nil
}

// webMercator projects onto a sphere of radius r. Latitudes are clamped to
// the usual +/-85.0511 limit.
func webMercator(r, lon, lat float64) (float64, float64) {
	const maxLat = 85.0511287798066
	lat = math.Max(-maxLat, math.Min(maxLat, lat))
	x := r * lon * math.Pi / 180
	y := r * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// transverseMercator is the ellipsoidal forward projection (Snyder, USGS PP
// 1395, eq. 8-9 to 8-10) with latitude of origin 0 and false northing 0.
func transverseMercator(ell ellipsoid, lon0, k0, falseE, lon, lat float64) (float64, float64) {
	e2 := ell.f * (2 - ell.f)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	lam := (lon - lon0) * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := ell.a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := lam * cosPhi

	m := ell.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x := k0 * n * (a + (1-t+c)*a3/6 + (5-18*t+t*t+72*c-58*ep2)*a5/120)
	y := k0 * (m + n*tanPhi*(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*ep2)*a6/720))

	return falseE + x, y
}
