package geo

import (
	"math"

	"github.com/voltroute/planner/core/model"
)

// EarthRadiusM is the WGS84 semi-major axis in meters.
const EarthRadiusM = 6378137.0

func degToRad(d float64) float64 { return d * math.Pi / 180.0 }

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(a, b model.LatLng) float64 {
	lat1 := degToRad(a.Lat)
	lon1 := degToRad(a.Lng)
	lat2 := degToRad(b.Lat)
	lon2 := degToRad(b.Lng)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// XY is a point in a local planar projection, in meters.
type XY struct {
	X float64
	Y float64
}

// Projection maps coordinates to a local equirectangular plane centered on
// an origin. Accurate enough for the corridor radii the planner works with.
type Projection struct {
	origin model.LatLng
	cosLat float64
}

// NewProjection builds a projection centered on origin.
func NewProjection(origin model.LatLng) Projection {
	return Projection{origin: origin, cosLat: math.Cos(degToRad(origin.Lat))}
}

// ToXY projects a coordinate to the local plane.
func (p Projection) ToXY(pt model.LatLng) XY {
	return XY{
		X: degToRad(pt.Lng-p.origin.Lng) * EarthRadiusM * p.cosLat,
		Y: degToRad(pt.Lat-p.origin.Lat) * EarthRadiusM,
	}
}

// PointToPolylineM returns the minimum distance in meters from pt to the
// polyline given by points, using a local projection centered on pt.
func PointToPolylineM(pt model.LatLng, points []model.LatLng) float64 {
	if len(points) == 0 {
		return math.Inf(1)
	}
	proj := NewProjection(pt)
	p := proj.ToXY(pt)
	min := math.Inf(1)
	prev := proj.ToXY(points[0])
	if d := dist(p, prev); d < min {
		min = d
	}
	for _, next := range points[1:] {
		n := proj.ToXY(next)
		if d := pointToSegment(p, prev, n); d < min {
			min = d
		}
		prev = n
	}
	return min
}

func dist(a, b XY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func pointToSegment(p, a, b XY) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return dist(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return dist(p, XY{X: a.X + t*dx, Y: a.Y + t*dy})
}
