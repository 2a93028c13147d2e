package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trip status values recorded at finalization.
const (
	TripStatusCompleted = "completed"
	TripStatusCancelled = "cancelled"
)

// TripRecord is the durable summary of a finished navigation session.
// TripID carries the session UUID and doubles as the persistence dedupe key,
// so a retried insert after a timeout cannot duplicate the record.
type TripRecord struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TripID          string             `bson:"trip_id" json:"trip_id"`
	UserID          string             `bson:"user_id" json:"user_id"`
	MotorID         string             `bson:"motor_id" json:"motor_id"`
	StartLocation   Location           `bson:"start_location" json:"start_location"`
	EndLocation     Location           `bson:"end_location" json:"end_location"`
	StartedAt       time.Time          `bson:"started_at" json:"started_at"`
	EndedAt         time.Time          `bson:"ended_at" json:"ended_at"`
	DistanceMeters  float64            `bson:"distance_meters" json:"distance_meters"`
	DurationSeconds float64            `bson:"duration_seconds" json:"duration_seconds"`
	PlannedFuel     FuelRange          `bson:"planned_fuel" json:"planned_fuel"`
	ActualFuelUsedL float64            `bson:"actual_fuel_used_liters" json:"actual_fuel_used_liters"`
	RerouteCount    int                `bson:"reroute_count" json:"reroute_count"`
	WasRerouted     bool               `bson:"was_rerouted" json:"was_rerouted"`
	Arrived         bool               `bson:"arrived" json:"arrived"`
	Status          string             `bson:"status" json:"status"` // "completed" or "cancelled"
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}
