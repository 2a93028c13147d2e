// Package background hands live-tracking responsibility to an external
// background-tracking collaborator while the host application is suspended,
// and reconciles the accumulated path on resume.
package background

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/models"
)

// Snapshot carries the trip figures handed over on suspension.
type Snapshot struct {
	DistanceMeters   float64 `json:"distance_meters"`
	SampleCount      int     `json:"sample_count"`
	FuelLevelPercent float64 `json:"fuel_level_percent"`
}

// Tracker is the external background-tracking collaborator.
type Tracker interface {
	// Start begins background tracking; false means the collaborator
	// refused (e.g. missing permissions).
	Start(sessionID string, profile models.MotorProfile, snapshot Snapshot) bool
	// Stop ends background tracking.
	Stop()
	// Resume returns the samples accumulated while backgrounded.
	Resume() []models.LocationSample
}

// Handoff makes the suspend/resume protocol symmetric and idempotent:
// duplicate Suspend, Resume, or Stop calls are safe no-ops.
type Handoff struct {
	mu      sync.Mutex
	tracker Tracker
	active  bool
}

// NewHandoff wraps the collaborator.
func NewHandoff(tracker Tracker) *Handoff {
	return &Handoff{tracker: tracker}
}

// Suspend hands the session to the background tracker. Returns whether
// background tracking is active afterwards.
func (h *Handoff) Suspend(sessionID string, profile models.MotorProfile, snapshot Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active {
		return true
	}
	if h.tracker == nil {
		return false
	}
	if !h.tracker.Start(sessionID, profile, snapshot) {
		log.WithField("session_id", sessionID).Warn("Background tracker refused handoff")
		return false
	}
	h.active = true
	return true
}

// Resume stops background tracking and returns the accumulated samples.
// Returns nil when not suspended.
func (h *Handoff) Resume() []models.LocationSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active || h.tracker == nil {
		return nil
	}
	h.active = false
	samples := h.tracker.Resume()
	h.tracker.Stop()
	return samples
}

// Stop tears background tracking down without reconciling, e.g. when the
// session ends while suspended.
func (h *Handoff) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active || h.tracker == nil {
		return
	}
	h.active = false
	h.tracker.Stop()
}

// Active reports whether the background collaborator currently owns
// tracking.
func (h *Handoff) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}
