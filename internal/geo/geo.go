// Package geo provides the distance and segment-inference primitives used
// to deduplicate reports and bind them to the transit network. All
// functions are pure.
package geo

import (
	"math"
	"sort"

	"github.com/transitwatch/verifier/internal/types"
)

const earthRadiusM = 6371000.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance returns the great-circle distance between two points in meters,
// via the Haversine formula.
func Distance(a, b types.Location) float64 {
	latA := toRadians(a.Latitude)
	latB := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// Stop is one transit stop from the network seed data.
type Stop struct {
	ID       string
	Name     string
	Location types.Location
	LineIDs  []string
}

// StopDistance pairs a candidate stop with its distance from a query point.
type StopDistance struct {
	Stop     Stop
	DistanceM float64
}

// NearestStops returns the candidates within maxDistance meters of point,
// sorted ascending by distance.
func NearestStops(point types.Location, candidates []Stop, maxDistanceM float64) []StopDistance {
	out := make([]StopDistance, 0, len(candidates))
	for _, s := range candidates {
		d := Distance(point, s.Location)
		if d <= maxDistanceM {
			out = append(out, StopDistance{Stop: s, DistanceM: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceM < out[j].DistanceM
	})
	return out
}

// perpendicularDistance approximates the distance from point to segment
// a-b in meters using an equirectangular projection around the segment.
// Accurate enough at the sub-kilometer scales segment inference works at.
func perpendicularDistance(point, a, b types.Location) float64 {
	refLat := toRadians((a.Latitude + b.Latitude) / 2)

	// project onto a local flat plane, meters
	px := toRadians(point.Longitude-a.Longitude) * math.Cos(refLat) * earthRadiusM
	py := toRadians(point.Latitude-a.Latitude) * earthRadiusM
	bx := toRadians(b.Longitude-a.Longitude) * math.Cos(refLat) * earthRadiusM
	by := toRadians(b.Latitude-a.Latitude) * earthRadiusM

	segLenSq := bx*bx + by*by
	if segLenSq == 0 {
		return math.Hypot(px, py)
	}

	t := (px*bx + py*by) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-t*bx, py-t*by)
}

// IsBetween reports whether the perpendicular distance from point to the
// segment a-b is within toleranceM meters.
func IsBetween(point, a, b types.Location, toleranceM float64) bool {
	return perpendicularDistance(point, a, b) <= toleranceM
}

// BoundingBox is a latitude/longitude rectangle for spatial matching.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoxAround converts a radius in kilometers around center to a bounding
// box, correcting longitude span for compression at higher latitudes.
func BoxAround(center types.Location, radiusKm float64) BoundingBox {
	latDelta := radiusKm / 111.0

	cosLat := math.Cos(toRadians(center.Latitude))
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDelta := radiusKm / (111.0 * cosLat)

	return BoundingBox{
		MinLat: center.Latitude - latDelta,
		MaxLat: center.Latitude + latDelta,
		MinLng: center.Longitude - lngDelta,
		MaxLng: center.Longitude + lngDelta,
	}
}

func (b BoundingBox) Contains(p types.Location) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}
