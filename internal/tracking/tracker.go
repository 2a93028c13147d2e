// Package tracking turns a push-based stream of location samples into the
// live trip figures the session controller consumes: traveled path,
// cumulative distance, speed, remaining distance, and ETA.
package tracking

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/geo"
	"github.com/ukydev/moto-navigator/internal/models"
)

// Position source contract: high accuracy, a sample at least every
// MaxIntervalSeconds or every MinMovementMeters of movement, whichever first.
const (
	MinMovementMeters  = 10
	MaxIntervalSeconds = 5
)

const (
	overSpeedLimitKmh = 80.0
	// overSpeedWarnGapMs throttles the over-limit warning, measured against
	// sample timestamps so replayed streams behave deterministically.
	overSpeedWarnGapMs = 10_000
	// minEtaSpeedKmh floors the speed used for ETA so a stopped rider does
	// not produce a divide-by-near-zero estimate.
	minEtaSpeedKmh = 30.0
)

// ErrAlreadyStarted is returned by Start when the tracker is running.
var ErrAlreadyStarted = errors.New("tracker already started")

// Subscription is a cancellable position subscription.
type Subscription interface {
	Unsubscribe()
}

// Source delivers location samples to a handler until unsubscribed.
type Source interface {
	Subscribe(handler func(models.LocationSample)) (Subscription, error)
}

// Update is the derived view of a single accepted sample. It is a plain
// value: downstream evaluators receive it as an explicit event, not a
// closure over tracker state.
type Update struct {
	Sample            models.LocationSample
	IncrementalMeters float64
	DistanceMeters    float64
	SpeedKmh          float64
	RemainingMeters   float64
	EtaMinutes        float64
}

// Tracker subscribes to a position source and accumulates the traveled path.
// Start and Stop are idempotent; Stop releases the subscription so no stale
// callback can fire afterwards.
type Tracker struct {
	source Source

	mu         sync.Mutex
	sub        Subscription
	active     bool
	path       []models.LocationSample
	distanceM  float64
	route      []models.Location
	lastWarnMs int64
	onUpdate   func(Update)
	onFuelBurn func(incrementalKm float64)
}

// NewTracker constructs a Tracker over the given source.
func NewTracker(source Source) *Tracker {
	return &Tracker{source: source}
}

// OnFuelBurn registers the callback receiving each incremental traveled
// distance in kilometers.
func (t *Tracker) OnFuelBurn(fn func(incrementalKm float64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFuelBurn = fn
}

// SetRoute sets the active route geometry used for remaining-distance and
// ETA computation.
func (t *Tracker) SetRoute(points []models.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = points
}

// ClearRoute drops the active route.
func (t *Tracker) ClearRoute() {
	t.SetRoute(nil)
}

// Seed records the starting location before live samples arrive, so the path
// begins at the navigation start point.
func (t *Tracker) Seed(sample models.LocationSample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.path) == 0 {
		t.path = append(t.path, sample)
	}
}

// Start subscribes to the position source. Calling Start on a running
// tracker is a safe no-op returning ErrAlreadyStarted.
func (t *Tracker) Start(onUpdate func(Update)) error {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.onUpdate = onUpdate
	t.active = true
	t.mu.Unlock()

	sub, err := t.source.Subscribe(t.handle)
	if err != nil {
		t.mu.Lock()
		t.active = false
		t.onUpdate = nil
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()
	return nil
}

// Stop releases the position subscription. Safe to call repeatedly.
func (t *Tracker) Stop() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.active = false
	t.onUpdate = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Reset clears all accumulated trip data in addition to stopping.
func (t *Tracker) Reset() {
	t.Stop()
	t.mu.Lock()
	t.path = nil
	t.distanceM = 0
	t.route = nil
	t.lastWarnMs = 0
	t.mu.Unlock()
}

// Path returns a copy of the accumulated path history.
func (t *Tracker) Path() []models.LocationSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.LocationSample, len(t.path))
	copy(out, t.path)
	return out
}

// DistanceMeters returns the cumulative traveled distance.
func (t *Tracker) DistanceMeters() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.distanceM
}

// Restore appends samples accumulated elsewhere (the background tracker)
// and folds their distance into the running total.
func (t *Tracker) Restore(samples []models.LocationSample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range samples {
		if n := len(t.path); n > 0 {
			last := t.path[n-1]
			if s.SameCoordinates(last) {
				continue
			}
			t.distanceM += geo.HaversineM(last.Location, s.Location)
		}
		t.path = append(t.path, s)
	}
}

func (t *Tracker) handle(sample models.LocationSample) {
	t.mu.Lock()
	if !t.active {
		// Stale callback after Stop; must not touch discarded state.
		t.mu.Unlock()
		return
	}

	var incrementalM float64
	if n := len(t.path); n > 0 {
		last := t.path[n-1]
		if sample.SameCoordinates(last) {
			t.mu.Unlock()
			return
		}
		incrementalM = geo.HaversineM(last.Location, sample.Location)
		if sample.SpeedMps == nil {
			if dtMs := sample.TimestampMs - last.TimestampMs; dtMs > 0 {
				mps := incrementalM / (float64(dtMs) / 1000.0)
				sample.SpeedMps = &mps
			}
		}
	}
	t.path = append(t.path, sample)
	t.distanceM += incrementalM

	speedKmh := 0.0
	if sample.SpeedMps != nil {
		speedKmh = *sample.SpeedMps * 3.6
	}
	if speedKmh > overSpeedLimitKmh && sample.TimestampMs-t.lastWarnMs >= overSpeedWarnGapMs {
		t.lastWarnMs = sample.TimestampMs
		log.WithFields(log.Fields{
			"speed_kmh": speedKmh,
			"limit_kmh": overSpeedLimitKmh,
		}).Warn("Speed over limit")
	}

	var remainingM, etaMinutes float64
	if len(t.route) > 0 {
		final := t.route[len(t.route)-1]
		remainingM = geo.HaversineM(sample.Location, final)
		etaSpeed := speedKmh
		if etaSpeed < minEtaSpeedKmh {
			etaSpeed = minEtaSpeedKmh
		}
		etaMinutes = remainingM / 1000.0 / etaSpeed * 60.0
	}

	update := Update{
		Sample:            sample,
		IncrementalMeters: incrementalM,
		DistanceMeters:    t.distanceM,
		SpeedKmh:          speedKmh,
		RemainingMeters:   remainingM,
		EtaMinutes:        etaMinutes,
	}
	onFuelBurn := t.onFuelBurn
	onUpdate := t.onUpdate
	t.mu.Unlock()

	if onFuelBurn != nil && incrementalM > 0 {
		onFuelBurn(incrementalM / 1000.0)
	}
	if onUpdate != nil {
		onUpdate(update)
	}
}
