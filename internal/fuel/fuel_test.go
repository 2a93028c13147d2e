package fuel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ukydev/moto-navigator/internal/models"
)

func TestRange(t *testing.T) {
	// 1.1 km at 40 km/L burns 0.0275 L on average
	r := Range(1.1, 40)
	assert.InDelta(t, 0.0275, r.AvgLiters, 1e-9)
	assert.InDelta(t, 0.0275*0.9, r.MinLiters, 1e-9)
	assert.InDelta(t, 0.0275*1.1, r.MaxLiters, 1e-9)

	// ordering always holds
	r = Range(123.4, 31.7)
	assert.LessOrEqual(t, r.MinLiters, r.AvgLiters)
	assert.LessOrEqual(t, r.AvgLiters, r.MaxLiters)

	// degenerate inputs yield a zero estimate
	assert.Equal(t, models.FuelRange{}, Range(10, 0))
	assert.Equal(t, models.FuelRange{}, Range(10, -5))
	assert.Equal(t, models.FuelRange{}, Range(-1, 40))

	// zero distance burns nothing
	r = Range(0, 40)
	assert.Zero(t, r.AvgLiters)
}

func TestLevelAfterTravel(t *testing.T) {
	profile := models.MotorProfile{
		FuelEfficiencyKmPerLiter: 40,
		FuelTankLiters:           10,
		CurrentFuelLevelPercent:  50,
	}

	// 40 km burns 1 L = 10% of a 10 L tank
	assert.InDelta(t, 40.0, LevelAfterTravel(profile, 40), 1e-9)

	// level never drops below zero
	assert.Equal(t, 0.0, LevelAfterTravel(profile, 10_000))

	// non-positive distances leave the level unchanged
	assert.Equal(t, 50.0, LevelAfterTravel(profile, 0))
	assert.Equal(t, 50.0, LevelAfterTravel(profile, -3))

	// broken profile leaves the level unchanged
	profile.FuelEfficiencyKmPerLiter = 0
	assert.Equal(t, 50.0, LevelAfterTravel(profile, 40))
}

func TestLevelAfterRefuel(t *testing.T) {
	profile := models.MotorProfile{
		FuelTankLiters:          10,
		CurrentFuelLevelPercent: 50,
	}

	assert.InDelta(t, 80.0, LevelAfterRefuel(profile, 3), 1e-9)

	// level never exceeds a full tank
	assert.Equal(t, 100.0, LevelAfterRefuel(profile, 100))

	assert.Equal(t, 50.0, LevelAfterRefuel(profile, 0))
}

func TestValidateLevel(t *testing.T) {
	assert.True(t, ValidateLevel(0))
	assert.True(t, ValidateLevel(42))
	assert.True(t, ValidateLevel(100))

	assert.False(t, ValidateLevel(150))
	assert.False(t, ValidateLevel(-5))
	assert.False(t, ValidateLevel(math.NaN()))
	assert.False(t, ValidateLevel(math.Inf(1)))
}

func TestClampLevel(t *testing.T) {
	assert.Equal(t, 0.0, ClampLevel(-1))
	assert.Equal(t, 100.0, ClampLevel(101))
	assert.Equal(t, 55.5, ClampLevel(55.5))
	assert.Equal(t, 0.0, ClampLevel(math.NaN()))
}
