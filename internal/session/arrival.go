package session

import (
	"time"

	"github.com/ukydev/moto-navigator/internal/geo"
	"github.com/ukydev/moto-navigator/internal/models"
)

// ArrivalRadiusM is the maximum distance to the destination considered
// "arrived".
const ArrivalRadiusM = 50.0

// ArrivalGraceDelay allows a final location fix between the first in-range
// sample and session completion.
const ArrivalGraceDelay = 3 * time.Second

// ArrivalDetector is edge-triggered: Check reports true only on the first
// sample inside the arrival radius and stays latched while the rider remains
// in range, so completion is scheduled exactly once per approach.
type ArrivalDetector struct {
	radiusM   float64
	triggered bool
}

// NewArrivalDetector constructs a detector; a non-positive radius falls back
// to ArrivalRadiusM.
func NewArrivalDetector(radiusM float64) *ArrivalDetector {
	if radiusM <= 0 {
		radiusM = ArrivalRadiusM
	}
	return &ArrivalDetector{radiusM: radiusM}
}

// Check evaluates one sample against the destination.
func (d *ArrivalDetector) Check(sample models.LocationSample, destination models.Location) bool {
	dist := geo.HaversineM(sample.Location, destination)
	if dist > d.radiusM {
		d.triggered = false
		return false
	}
	if d.triggered {
		return false
	}
	d.triggered = true
	return true
}

// Reset re-arms the detector for a new session.
func (d *ArrivalDetector) Reset() { d.triggered = false }
