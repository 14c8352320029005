// Package geo resolves geographic points to their enclosing ZIP polygon.
package geo

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/bluele/gcache"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/i292847/bike-trip-aggregation/internal/zips"
)

// Feature properties probed, in order, for the zip code of a zone.
var zipPropertyKeys = []string{"postalCode", "ZIPCODE", "zipcode", "zip", "ZCTA5CE10"}

const cacheSize = 4096

// zone is one ZIP polygon indexed in the R-tree by its bounding box.
type zone struct {
	zip    string
	geom   orb.Geometry
	bounds rtreego.Rect
}

func (z *zone) Bounds() rtreego.Rect {
	return z.bounds
}

// Resolver answers point-in-polygon queries against a fixed set of ZIP zones.
// The R-tree narrows candidates by bounding box; the exact containment test is
// a planar ray cast over the candidate geometry. Results are cached because
// trips cluster heavily on a small set of station coordinates.
type Resolver struct {
	tree  *rtreego.Rtree
	cache gcache.Cache
	zones int
}

// LoadGeoJSON builds a Resolver from a GeoJSON FeatureCollection where each
// feature carries a zip code property and a Polygon or MultiPolygon geometry.
func LoadGeoJSON(data []byte) (*Resolver, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing zone GeoJSON: %w", err)
	}
	return NewResolver(fc)
}

// NewResolver indexes the features of fc. Features without a zip property or
// with a non-areal geometry are rejected so a bad reference file fails loudly
// at startup instead of silently dropping trips later.
func NewResolver(fc *geojson.FeatureCollection) (*Resolver, error) {
	tree := rtreego.NewTree(2, 25, 50)
	count := 0

	for i, f := range fc.Features {
		zip := zipProperty(f)
		if zip == "" {
			return nil, fmt.Errorf("zone feature %d has no zip code property", i)
		}

		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("zone %s has unsupported geometry %T", zip, f.Geometry)
		}

		rect, err := boundRect(f.Geometry.Bound())
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", zip, err)
		}

		tree.Insert(&zone{zip: zip, geom: f.Geometry, bounds: rect})
		count++
	}

	if count == 0 {
		return nil, fmt.Errorf("zone GeoJSON contained no features")
	}

	return &Resolver{
		tree:  tree,
		cache: gcache.New(cacheSize).LRU().Build(),
		zones: count,
	}, nil
}

// Resolve returns the zip code of the polygon containing the point, if any.
// It never errors; misses exclude the caller's record. When polygons touch at
// a shared boundary the lexicographically smallest matching zip wins, which
// keeps repeated calls for the same point consistent.
func (r *Resolver) Resolve(lon, lat float64) (string, bool) {
	key := fmt.Sprintf("%.6f:%.6f", lon, lat)
	if v, err := r.cache.Get(key); err == nil {
		zip := v.(string)
		return zip, zip != ""
	}

	pt := orb.Point{lon, lat}
	probe := rtreego.Point{lon, lat}
	candidates := r.tree.SearchIntersect(probe.ToRect(1e-9))

	var matches []string
	for _, c := range candidates {
		z := c.(*zone)
		if containsPoint(z.geom, pt) {
			matches = append(matches, z.zip)
		}
	}

	zip := ""
	if len(matches) > 0 {
		sort.Strings(matches)
		zip = matches[0]
	}

	// Misses are cached too; unmatched stations repeat just as often.
	_ = r.cache.Set(key, zip)
	return zip, zip != ""
}

// Zones returns the number of indexed ZIP polygons.
func (r *Resolver) Zones() int {
	return r.zones
}

func containsPoint(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	}
	return false
}

func zipProperty(f *geojson.Feature) string {
	for _, key := range zipPropertyKeys {
		v, ok := f.Properties[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			return zips.Normalize(val)
		case float64:
			return zips.Normalize(strconv.Itoa(int(val)))
		}
	}
	return ""
}

// boundRect converts an orb bound into an R-tree rectangle. Degenerate extents
// are widened by a tiny epsilon since rtreego requires positive side lengths.
func boundRect(b orb.Bound) (rtreego.Rect, error) {
	const eps = 1e-9

	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	if dx <= 0 {
		dx = eps
	}
	if dy <= 0 {
		dy = eps
	}

	return rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{dx, dy})
}
