package session

import (
	"time"

	"github.com/ukydev/moto-navigator/internal/models"
)

// Session status values while the session is live.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// TripSession aggregates the runtime state of one destination-to-completion
// navigation attempt. It is created when navigation starts, mutated only by
// the Controller, and handed to trip persistence on completion or
// cancellation.
type TripSession struct {
	SessionID    string                  `json:"session_id"`
	UserID       string                  `json:"user_id"`
	MotorID      string                  `json:"motor_id"`
	ActiveRoute  *models.RouteCandidate  `json:"active_route,omitempty"`
	PathHistory  []models.LocationSample `json:"path_history,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	StartedAtMs  int64                   `json:"started_at_ms"`
	RerouteCount int                     `json:"reroute_count"`
	WasRerouted  bool                    `json:"was_rerouted"`
	Status       string                  `json:"status"`
}
