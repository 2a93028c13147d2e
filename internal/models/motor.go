package models

// MotorProfile describes a rider's motorcycle. The authoritative copy lives
// in the profile service; the engine holds a cached copy and reconciles it
// optimistically.
type MotorProfile struct {
	MotorID                  string  `bson:"motor_id" json:"motor_id"`
	FuelEfficiencyKmPerLiter float64 `bson:"fuel_efficiency_km_per_liter" json:"fuel_efficiency_km_per_liter"`
	FuelTankLiters           float64 `bson:"fuel_tank_liters" json:"fuel_tank_liters"`
	CurrentFuelLevelPercent  float64 `bson:"current_fuel_level_percent" json:"current_fuel_level_percent"` // always within [0,100]
}
