package session

import (
	"math"
	"time"

	"github.com/ukydev/moto-navigator/internal/geo"
	"github.com/ukydev/moto-navigator/internal/models"
)

// Off-route deviation thresholds in meters.
const (
	StrictOffRouteThresholdM   = 50.0
	TolerantOffRouteThresholdM = 100.0
)

// OffRouteMinActive suppresses off-route triggers during GPS settling right
// after navigation start.
const OffRouteMinActive = 30 * time.Second

// OffRouteConfig parameterizes deviation detection.
type OffRouteConfig struct {
	ThresholdM float64
	MinActive  time.Duration
}

// DefaultOffRouteConfig uses the tolerant threshold.
func DefaultOffRouteConfig() OffRouteConfig {
	return OffRouteConfig{ThresholdM: TolerantOffRouteThresholdM, MinActive: OffRouteMinActive}
}

// OffRouteDeviation is the pure evaluation: the distance from the sample to
// the route path, or NaN when no route is set.
func OffRouteDeviation(sample models.LocationSample, route []models.Location) float64 {
	if len(route) == 0 {
		return math.NaN()
	}
	return geo.DeviationFromPathM(sample.Location, route)
}

// OffRouteMonitor decides when a reroute is warranted. It allows a single
// in-flight reroute at a time; callers mark the window with Begin and close
// it with Resolve once a new candidate set arrived (or failed).
type OffRouteMonitor struct {
	cfg      OffRouteConfig
	inFlight bool
}

// NewOffRouteMonitor constructs a monitor.
func NewOffRouteMonitor(cfg OffRouteConfig) *OffRouteMonitor {
	if cfg.ThresholdM <= 0 {
		cfg.ThresholdM = TolerantOffRouteThresholdM
	}
	if cfg.MinActive <= 0 {
		cfg.MinActive = OffRouteMinActive
	}
	return &OffRouteMonitor{cfg: cfg}
}

// ShouldReroute reports whether the sample warrants a reroute. Both guards
// must hold: navigation active for at least MinActive, and deviation over
// the threshold. Suppressed while a reroute is in flight.
func (m *OffRouteMonitor) ShouldReroute(sample models.LocationSample, route []models.Location, activeFor time.Duration) bool {
	if m.inFlight {
		return false
	}
	if activeFor < m.cfg.MinActive {
		return false
	}
	d := OffRouteDeviation(sample, route)
	if math.IsNaN(d) {
		return false
	}
	return d > m.cfg.ThresholdM
}

// Begin marks a reroute as in flight, suppressing further triggers.
func (m *OffRouteMonitor) Begin() { m.inFlight = true }

// Resolve clears the in-flight mark once the reroute attempt finished.
func (m *OffRouteMonitor) Resolve() { m.inFlight = false }

// Reset returns the monitor to its initial state.
func (m *OffRouteMonitor) Reset() { m.inFlight = false }
