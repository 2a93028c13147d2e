package background

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/models"
	"github.com/ukydev/moto-navigator/internal/tracking"
)

// Recorder is an in-process background collaborator: while the handoff is
// active it keeps draining the position source and buffers the samples for
// reconciliation on resume.
type Recorder struct {
	source tracking.Source

	mu      sync.Mutex
	sub     tracking.Subscription
	samples []models.LocationSample
}

// NewRecorder builds a recorder over the same position source the foreground
// tracker uses.
func NewRecorder(source tracking.Source) *Recorder {
	return &Recorder{source: source}
}

// Start begins buffering samples. Returns false when the source subscription
// cannot be established.
func (r *Recorder) Start(sessionID string, profile models.MotorProfile, snapshot Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return true
	}

	sub, err := r.source.Subscribe(r.record)
	if err != nil {
		log.WithError(err).WithField("session_id", sessionID).Error("Background recorder subscription failed")
		return false
	}
	r.sub = sub
	r.samples = nil
	log.WithFields(log.Fields{
		"session_id":      sessionID,
		"motor_id":        profile.MotorID,
		"distance_meters": snapshot.DistanceMeters,
	}).Info("Background recording started")
	return true
}

func (r *Recorder) record(sample models.LocationSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return
	}
	r.samples = append(r.samples, sample)
}

// Resume returns the buffered samples in arrival order.
func (r *Recorder) Resume() []models.LocationSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	samples := r.samples
	r.samples = nil
	return samples
}

// Stop releases the subscription and drops anything still buffered.
func (r *Recorder) Stop() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.samples = nil
	r.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
