package models

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// LocationSample is a single position fix delivered by the rider's device.
// SpeedMps is optional; consumers fall back to a derived speed when absent.
type LocationSample struct {
	Location    `bson:",inline"`
	TimestampMs int64    `bson:"timestamp_ms" json:"timestamp_ms"`
	SpeedMps    *float64 `bson:"speed_mps,omitempty" json:"speed_mps,omitempty"`
}

// SameCoordinates reports whether two samples share the exact coordinate pair.
func (s LocationSample) SameCoordinates(other LocationSample) bool {
	return s.Lat == other.Lat && s.Lng == other.Lng
}
