package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ukydev/moto-navigator/internal/models"
)

func TestArrivalDetectorEdgeTriggered(t *testing.T) {
	dest := models.Location{Lat: 51.5000, Lng: -0.1000}
	d := NewArrivalDetector(50)

	inRange := sampleAt(51.5001, -0.1000)  // ~11m away
	outRange := sampleAt(51.5100, -0.1000) // ~1.1km away

	assert.False(t, d.Check(outRange, dest))

	// fires once on entering the radius
	assert.True(t, d.Check(inRange, dest))

	// stays latched for every further in-range sample
	for i := 0; i < 10; i++ {
		assert.False(t, d.Check(inRange, dest))
	}
}

func TestArrivalDetectorRearmsOnExit(t *testing.T) {
	dest := models.Location{Lat: 51.5000, Lng: -0.1000}
	d := NewArrivalDetector(50)

	inRange := sampleAt(51.5001, -0.1000)
	outRange := sampleAt(51.5100, -0.1000)

	assert.True(t, d.Check(inRange, dest))
	assert.False(t, d.Check(outRange, dest))

	// riding back in fires again
	assert.True(t, d.Check(inRange, dest))
}

func TestArrivalDetectorReset(t *testing.T) {
	dest := models.Location{Lat: 51.5000, Lng: -0.1000}
	d := NewArrivalDetector(50)
	inRange := sampleAt(51.5001, -0.1000)

	assert.True(t, d.Check(inRange, dest))
	d.Reset()
	assert.True(t, d.Check(inRange, dest))
}

func TestArrivalDetectorDefaultRadius(t *testing.T) {
	d := NewArrivalDetector(0)
	assert.Equal(t, ArrivalRadiusM, d.radiusM)
}
