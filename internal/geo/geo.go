// Package geo provides great-circle distance helpers over WGS-84 coordinates.
//
// All functions are total over valid numeric inputs: they never fail and
// perform no I/O.
package geo

import (
	"math"

	"github.com/ukydev/moto-navigator/internal/models"
)

// EarthRadiusM is the mean radius of Earth in meters.
const EarthRadiusM = 6_371_000.0

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(a, b models.Location) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(a, b models.Location) float64 {
	return HaversineM(a, b) / 1000.0
}

// PathLengthM returns the total length of an ordered polyline in meters.
func PathLengthM(points []models.Location) float64 {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		total += HaversineM(points[i], points[i+1])
	}
	return total
}

// DeviationFromPathM returns the minimum distance in meters from p to the
// polyline, measured against each segment (perpendicular where the projection
// falls inside the segment, endpoint distance otherwise). An empty path yields
// +Inf so callers comparing against a threshold never trigger on it.
func DeviationFromPathM(p models.Location, path []models.Location) float64 {
	if len(path) == 0 {
		return math.Inf(1)
	}
	if len(path) == 1 {
		return HaversineM(p, path[0])
	}
	min := math.Inf(1)
	for i := 0; i < len(path)-1; i++ {
		if d := pointToSegmentM(p, path[i], path[i+1]); d < min {
			min = d
		}
	}
	return min
}

// pointToSegmentM projects onto a local planar approximation around p, which
// is accurate for the sub-kilometer distances off-route detection cares about.
func pointToSegmentM(p, a, b models.Location) float64 {
	cosLat := math.Cos(degToRad(p.Lat))
	ax := (a.Lng - p.Lng) * cosLat
	ay := a.Lat - p.Lat
	bx := (b.Lng - p.Lng) * cosLat
	by := b.Lat - p.Lat

	dx := bx - ax
	dy := by - ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return HaversineM(p, a)
	}

	// t is the projection of p (origin) onto segment a->b, clamped to [0,1].
	t := -(ax*dx + ay*dy) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	nearest := models.Location{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
	return HaversineM(p, nearest)
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
