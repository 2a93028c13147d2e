// Package fuel holds the pure numeric fuel model: consumption ranges, tank
// level arithmetic, and level validation. No I/O, no state.
package fuel

import (
	"math"

	"github.com/ukydev/moto-navigator/internal/models"
)

const (
	// rangeSpread widens the average consumption estimate into min/max bounds.
	rangeSpread = 0.1

	minLevelPercent = 0.0
	maxLevelPercent = 100.0
)

// Range estimates fuel consumption for a distance given the motor's
// efficiency. Min and max bracket the average by ±10%. A non-positive
// efficiency yields a zero estimate.
func Range(distanceKm, efficiencyKmPerLiter float64) models.FuelRange {
	if efficiencyKmPerLiter <= 0 || distanceKm < 0 {
		return models.FuelRange{}
	}
	avg := distanceKm / efficiencyKmPerLiter
	return models.FuelRange{
		MinLiters: avg * (1 - rangeSpread),
		AvgLiters: avg,
		MaxLiters: avg * (1 + rangeSpread),
	}
}

// LevelAfterTravel returns the tank level percentage after riding the given
// incremental distance, clamped to [0,100].
func LevelAfterTravel(profile models.MotorProfile, incrementalDistanceKm float64) float64 {
	if profile.FuelEfficiencyKmPerLiter <= 0 || profile.FuelTankLiters <= 0 || incrementalDistanceKm <= 0 {
		return ClampLevel(profile.CurrentFuelLevelPercent)
	}
	usedLiters := incrementalDistanceKm / profile.FuelEfficiencyKmPerLiter
	drop := usedLiters / profile.FuelTankLiters * 100.0
	return ClampLevel(profile.CurrentFuelLevelPercent - drop)
}

// LevelAfterRefuel returns the tank level percentage after adding fuel,
// clamped to [0,100].
func LevelAfterRefuel(profile models.MotorProfile, litersAdded float64) float64 {
	if profile.FuelTankLiters <= 0 || litersAdded <= 0 {
		return ClampLevel(profile.CurrentFuelLevelPercent)
	}
	gain := litersAdded / profile.FuelTankLiters * 100.0
	return ClampLevel(profile.CurrentFuelLevelPercent + gain)
}

// ValidateLevel reports whether a fuel level is a finite percentage within
// [0,100]. Writes failing this check must be rejected before they reach the
// network boundary.
func ValidateLevel(value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return value >= minLevelPercent && value <= maxLevelPercent
}

// ClampLevel snaps a level into the valid [0,100] range.
func ClampLevel(value float64) float64 {
	if math.IsNaN(value) {
		return minLevelPercent
	}
	if value < minLevelPercent {
		return minLevelPercent
	}
	if value > maxLevelPercent {
		return maxLevelPercent
	}
	return value
}
