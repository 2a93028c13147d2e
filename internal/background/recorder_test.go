package background

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/moto-navigator/internal/models"
	"github.com/ukydev/moto-navigator/internal/tracking"
)

type recorderSource struct {
	handler func(models.LocationSample)
	err     error
}

type recorderSub struct{ source *recorderSource }

func (s *recorderSub) Unsubscribe() { s.source.handler = nil }

func (s *recorderSource) Subscribe(handler func(models.LocationSample)) (tracking.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.handler = handler
	return &recorderSub{source: s}, nil
}

func (s *recorderSource) Push(sample models.LocationSample) {
	if s.handler != nil {
		s.handler(sample)
	}
}

func TestRecorderBuffersSamples(t *testing.T) {
	src := &recorderSource{}
	r := NewRecorder(src)

	require.True(t, r.Start("sess-1", models.MotorProfile{MotorID: "motor-1"}, Snapshot{}))

	a := models.LocationSample{Location: models.Location{Lat: 51.5, Lng: -0.1}, TimestampMs: 1000}
	b := models.LocationSample{Location: models.Location{Lat: 51.6, Lng: -0.1}, TimestampMs: 2000}
	src.Push(a)
	src.Push(b)

	got := r.Resume()
	assert.Equal(t, []models.LocationSample{a, b}, got)

	// resume drains the buffer
	assert.Empty(t, r.Resume())
}

func TestRecorderStartIdempotent(t *testing.T) {
	src := &recorderSource{}
	r := NewRecorder(src)
	require.True(t, r.Start("sess-1", models.MotorProfile{}, Snapshot{}))
	require.True(t, r.Start("sess-1", models.MotorProfile{}, Snapshot{}))
}

func TestRecorderStartFailure(t *testing.T) {
	src := &recorderSource{err: errors.New("broker down")}
	r := NewRecorder(src)
	assert.False(t, r.Start("sess-1", models.MotorProfile{}, Snapshot{}))
}

func TestRecorderStopDropsBuffer(t *testing.T) {
	src := &recorderSource{}
	r := NewRecorder(src)
	require.True(t, r.Start("sess-1", models.MotorProfile{}, Snapshot{}))

	src.Push(models.LocationSample{TimestampMs: 1000})
	r.Stop()

	assert.Nil(t, src.handler)
	assert.Empty(t, r.Resume())

	// samples after stop are ignored even if the handler were still wired
	r.record(models.LocationSample{TimestampMs: 2000})
	assert.Empty(t, r.Resume())
}
