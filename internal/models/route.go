package models

// RouteCandidate is one proposed path between origin and destination.
// Candidates are immutable once constructed; the first candidate returned by
// the planner is the primary one, the rest are alternatives in source order.
type RouteCandidate struct {
	ID                 string     `bson:"id" json:"id"`
	DistanceMeters     float64    `bson:"distance_meters" json:"distance_meters"`
	DurationSeconds    float64    `bson:"duration_seconds" json:"duration_seconds"`
	FuelEstimateLiters float64    `bson:"fuel_estimate_liters" json:"fuel_estimate_liters"`
	TrafficRating      int        `bson:"traffic_rating" json:"traffic_rating"` // 1 (free flow) .. 5 (severe)
	PathPoints         []Location `bson:"path_points" json:"path_points"`
	TurnInstructions   []string   `bson:"turn_instructions" json:"turn_instructions"`
}

// FinalPoint returns the last point of the route geometry.
func (r RouteCandidate) FinalPoint() (Location, bool) {
	if len(r.PathPoints) == 0 {
		return Location{}, false
	}
	return r.PathPoints[len(r.PathPoints)-1], true
}

// FuelRange bounds a fuel consumption estimate.
type FuelRange struct {
	MinLiters float64 `bson:"min_liters" json:"min_liters"`
	AvgLiters float64 `bson:"avg_liters" json:"avg_liters"`
	MaxLiters float64 `bson:"max_liters" json:"max_liters"`
}
