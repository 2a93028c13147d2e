package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/moto-navigator/internal/models"
)

type stubTracker struct {
	started int
	stopped int
	refuse  bool
	samples []models.LocationSample
}

func (s *stubTracker) Start(sessionID string, profile models.MotorProfile, snapshot Snapshot) bool {
	if s.refuse {
		return false
	}
	s.started++
	return true
}

func (s *stubTracker) Stop() { s.stopped++ }

func (s *stubTracker) Resume() []models.LocationSample { return s.samples }

func TestHandoffSuspendResume(t *testing.T) {
	tracked := []models.LocationSample{
		{Location: models.Location{Lat: 51.5, Lng: -0.1}, TimestampMs: 1000},
	}
	stub := &stubTracker{samples: tracked}
	h := NewHandoff(stub)

	assert.False(t, h.Active())
	require.True(t, h.Suspend("sess-1", models.MotorProfile{}, Snapshot{DistanceMeters: 100}))
	assert.True(t, h.Active())

	got := h.Resume()
	assert.Equal(t, tracked, got)
	assert.False(t, h.Active())
	assert.Equal(t, 1, stub.stopped)
}

func TestHandoffSuspendIdempotent(t *testing.T) {
	stub := &stubTracker{}
	h := NewHandoff(stub)

	require.True(t, h.Suspend("sess-1", models.MotorProfile{}, Snapshot{}))
	require.True(t, h.Suspend("sess-1", models.MotorProfile{}, Snapshot{}))
	assert.Equal(t, 1, stub.started)
}

func TestHandoffResumeWithoutSuspend(t *testing.T) {
	stub := &stubTracker{samples: []models.LocationSample{{TimestampMs: 1}}}
	h := NewHandoff(stub)

	assert.Nil(t, h.Resume())
	assert.Zero(t, stub.stopped)
}

func TestHandoffStopWithoutReconcile(t *testing.T) {
	stub := &stubTracker{}
	h := NewHandoff(stub)

	require.True(t, h.Suspend("sess-1", models.MotorProfile{}, Snapshot{}))
	h.Stop()
	assert.False(t, h.Active())
	assert.Equal(t, 1, stub.stopped)

	// duplicate stop is a no-op
	h.Stop()
	assert.Equal(t, 1, stub.stopped)
}

func TestHandoffRefusedByCollaborator(t *testing.T) {
	stub := &stubTracker{refuse: true}
	h := NewHandoff(stub)

	assert.False(t, h.Suspend("sess-1", models.MotorProfile{}, Snapshot{}))
	assert.False(t, h.Active())
}

func TestHandoffNilCollaborator(t *testing.T) {
	h := NewHandoff(nil)
	assert.False(t, h.Suspend("sess-1", models.MotorProfile{}, Snapshot{}))
	assert.Nil(t, h.Resume())
	h.Stop()
}
