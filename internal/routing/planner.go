// Package routing plans candidate routes through the external directions
// service: throttled, cancellable requests enriched with fuel estimates and
// a 1-5 traffic rating.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ukydev/moto-navigator/internal/fuel"
	"github.com/ukydev/moto-navigator/internal/models"
)

// PlanInterval is the minimum spacing between directions calls. Requests
// arriving sooner are dropped, not queued: plan requests are discrete events
// (user action or reroute trigger), so a rate limiter is the right admission
// control, not a debouncer.
const PlanInterval = 2000 * time.Millisecond

// ErrThrottled indicates a plan request was dropped by the rate limiter.
var ErrThrottled = errors.New("route planning throttled")

// Planner issues throttled, cancellable plan requests. Issuing a new request
// cancels any in-flight one; the cancelled request's late response is
// discarded by its caller via the context error.
type Planner struct {
	client  DirectionsClient
	limiter *rate.Limiter

	mu       sync.Mutex
	inFlight *planCall
}

// planCall identifies one Plan invocation so its cleanup can tell whether
// the in-flight slot still belongs to it or to a request that replaced it.
type planCall struct {
	cancel context.CancelFunc
}

// Option configures a Planner.
type Option func(*Planner)

// WithInterval overrides the throttle interval, mainly for tests.
func WithInterval(d time.Duration) Option {
	return func(p *Planner) {
		p.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewPlanner constructs a Planner over the given directions client.
func NewPlanner(client DirectionsClient, opts ...Option) *Planner {
	p := &Planner{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(PlanInterval), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan fetches ranked route candidates from origin to destination. The first
// candidate is the primary; ordering is preserved from the service response.
// Returns ErrThrottled when called within the throttle window, ErrNoRoute
// when the service finds no path, and context.Canceled when superseded by a
// newer request.
func (p *Planner) Plan(ctx context.Context, origin, destination models.Location, profile models.MotorProfile) ([]models.RouteCandidate, error) {
	if !p.limiter.Allow() {
		return nil, ErrThrottled
	}

	ctx, cancel := context.WithCancel(ctx)
	call := &planCall{cancel: cancel}
	p.mu.Lock()
	if p.inFlight != nil {
		p.inFlight.cancel()
	}
	p.inFlight = call
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		// Only release the slot if it is still ours; a superseded call
		// must not cancel the request that replaced it.
		if p.inFlight == call {
			p.inFlight = nil
		}
		p.mu.Unlock()
		cancel()
	}()

	routes, err := p.client.Directions(ctx, origin, destination)
	if err != nil {
		if ctx.Err() != nil {
			// Superseded or torn down; the late result must not surface.
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("plan routes: %w", err)
	}

	candidates := make([]models.RouteCandidate, 0, len(routes))
	for _, r := range routes {
		distanceKm := r.DistanceMeters / 1000.0
		candidates = append(candidates, models.RouteCandidate{
			ID:                 uuid.NewString(),
			DistanceMeters:     r.DistanceMeters,
			DurationSeconds:    r.DurationSeconds,
			FuelEstimateLiters: fuel.Range(distanceKm, profile.FuelEfficiencyKmPerLiter).AvgLiters,
			TrafficRating:      TrafficRating(r.DurationInTrafficSeconds, r.DurationSeconds),
			PathPoints:         r.Points,
			TurnInstructions:   r.Instructions,
		})
	}
	return candidates, nil
}

// Cancel aborts any in-flight plan request.
func (p *Planner) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight != nil {
		p.inFlight.cancel()
		p.inFlight = nil
	}
}

// TrafficRating classifies congestion severity from the ratio of
// traffic-affected duration to free-flow duration. The breakpoints
// (1.2/1.5/2.0/2.5) are a compatibility constant; do not reorder.
func TrafficRating(durationWithTraffic, durationFreeFlow float64) int {
	if durationFreeFlow <= 0 {
		return 1
	}
	ratio := durationWithTraffic / durationFreeFlow
	switch {
	case ratio <= 1.2:
		return 1
	case ratio <= 1.5:
		return 2
	case ratio <= 2.0:
		return 3
	case ratio <= 2.5:
		return 4
	default:
		return 5
	}
}
