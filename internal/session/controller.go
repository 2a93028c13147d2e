// Package session owns the navigation session lifecycle: a finite-state
// controller coordinating route planning, live tracking, off-route
// detection, fuel accounting, arrival detection, and trip persistence.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/background"
	"github.com/ukydev/moto-navigator/internal/fuel"
	"github.com/ukydev/moto-navigator/internal/models"
	"github.com/ukydev/moto-navigator/internal/routing"
	"github.com/ukydev/moto-navigator/internal/tracking"
)

// ErrInvalidTransition is returned for a lifecycle request that is not legal
// in the current state. The session state is left untouched.
var ErrInvalidTransition = errors.New("invalid session state transition")

// ErrNoActiveSession is returned by operations that require a live session.
var ErrNoActiveSession = errors.New("no active session")

const (
	rerouteTimeout  = 30 * time.Second
	finalizeTimeout = 30 * time.Second
	// fuelSyncStepPercent batches optimistic fuel writes: the profile store
	// is only updated once the level dropped this much since the last sync.
	fuelSyncStepPercent = 1.0
)

// RoutePlanner is the planning dependency, satisfied by *routing.Planner.
type RoutePlanner interface {
	Plan(ctx context.Context, origin, destination models.Location, profile models.MotorProfile) ([]models.RouteCandidate, error)
}

// TripFinalizer persists a finished session, satisfied by *trips.Finalizer.
type TripFinalizer interface {
	Finalize(ctx context.Context, record models.TripRecord) error
}

// FuelLevelSyncer pushes optimistic fuel-level updates to the profile store
// in the background.
type FuelLevelSyncer interface {
	UpdateFuelLevelAsync(motorID string, percent float64)
}

// Config parameterizes the controller.
type Config struct {
	OffRoute       OffRouteConfig
	ArrivalRadiusM float64
	GraceDelay     time.Duration
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		OffRoute:       DefaultOffRouteConfig(),
		ArrivalRadiusM: ArrivalRadiusM,
		GraceDelay:     ArrivalGraceDelay,
	}
}

// Deps bundles the controller's collaborators. Planner, Tracker, and
// Finalizer are required; the rest are optional.
type Deps struct {
	Planner   RoutePlanner
	Tracker   *tracking.Tracker
	Finalizer TripFinalizer
	FuelSync  FuelLevelSyncer
	Handoff   *background.Handoff
	UserID    string
	Profile   models.MotorProfile
}

// Controller is the top-level orchestrator. All session state lives behind
// one mutex so observers never see a half-updated session, and every
// asynchronous completion re-checks the session epoch before mutating.
type Controller struct {
	cfg       Config
	planner   RoutePlanner
	tracker   *tracking.Tracker
	finalizer TripFinalizer
	fuelSync  FuelLevelSyncer
	handoff   *background.Handoff
	userID    string

	// OnModalsClose, when set, is invoked atomically with a state write that
	// carries the close-modals directive.
	OnModalsClose func()
	// OnStateChange observes committed transitions.
	OnStateChange func(from, to State)
	// OnTripFinalized observes the persistence outcome of a finished trip.
	OnTripFinalized func(record models.TripRecord, err error)

	mu            sync.Mutex
	state         State
	profile       models.MotorProfile
	destination   *models.Location
	candidates    []models.RouteCandidate
	session       *TripSession
	offRoute      *OffRouteMonitor
	arrival       *ArrivalDetector
	graceTimer    *time.Timer
	epoch         uint64
	fuelUsedL     float64
	lastSyncedPct float64
	suspended     bool
	lastError     string
}

// NewController wires the orchestrator. The tracker's fuel-burn callback is
// claimed by the controller.
func NewController(cfg Config, deps Deps) *Controller {
	c := &Controller{
		cfg:           cfg,
		planner:       deps.Planner,
		tracker:       deps.Tracker,
		finalizer:     deps.Finalizer,
		fuelSync:      deps.FuelSync,
		handoff:       deps.Handoff,
		userID:        deps.UserID,
		state:         StateSearching,
		profile:       deps.Profile,
		offRoute:      NewOffRouteMonitor(cfg.OffRoute),
		arrival:       NewArrivalDetector(cfg.ArrivalRadiusM),
		lastSyncedPct: deps.Profile.CurrentFuelLevelPercent,
	}
	c.profile.CurrentFuelLevelPercent = fuel.ClampLevel(c.profile.CurrentFuelLevelPercent)
	if deps.Tracker != nil {
		deps.Tracker.OnFuelBurn(c.handleFuelBurn)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Profile returns the cached motor profile.
func (c *Controller) Profile() models.MotorProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Status is a consistent snapshot for the read API.
type Status struct {
	State            State                   `json:"state"`
	Destination      *models.Location        `json:"destination,omitempty"`
	Candidates       []models.RouteCandidate `json:"candidates,omitempty"`
	Session          *TripSession            `json:"session,omitempty"`
	DistanceMeters   float64                 `json:"distance_meters"`
	FuelLevelPercent float64                 `json:"fuel_level_percent"`
	FuelUsedLiters   float64                 `json:"fuel_used_liters"`
	LastError        string                  `json:"last_error,omitempty"`
}

// Status returns an atomic snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:            c.state,
		Destination:      c.destination,
		Candidates:       c.candidates,
		FuelLevelPercent: c.profile.CurrentFuelLevelPercent,
		FuelUsedLiters:   c.fuelUsedL,
		LastError:        c.lastError,
	}
	if c.session != nil {
		copy := *c.session
		st.Session = &copy
	}
	if c.tracker != nil {
		st.DistanceMeters = c.tracker.DistanceMeters()
	}
	return st
}

// applyLocked commits a transition with its directives as one atomic write.
// Re-entering the current state is a no-op; illegal transitions return
// ErrInvalidTransition without touching anything.
func (c *Controller) applyLocked(to State, closeModals bool) error {
	from := c.state
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	c.state = to
	if closeModals && c.OnModalsClose != nil {
		c.OnModalsClose()
	}
	if c.OnStateChange != nil {
		c.OnStateChange(from, to)
	}
	return nil
}

// revertLocked rolls the state machine back after a side effect of a
// transition failed. Rollbacks bypass the transition table: the forward edge
// was already validated, and the table has no reverse edges for error paths.
func (c *Controller) revertLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	if c.OnStateChange != nil {
		c.OnStateChange(from, to)
	}
}

// ChooseDestination stores the destination and moves to
// destination_selected.
func (c *Controller) ChooseDestination(dest models.Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDestinationSelected && c.destination != nil && *c.destination == dest {
		return nil
	}
	if err := c.applyLocked(StateDestinationSelected, false); err != nil {
		return err
	}
	c.destination = &dest
	c.candidates = nil
	c.lastError = ""
	return nil
}

// PlanRoutes fetches route candidates for the chosen destination and moves
// to routes_found. A throttled request is dropped without state change; any
// other failure clears stale candidates rather than silently keeping them.
func (c *Controller) PlanRoutes(ctx context.Context) ([]models.RouteCandidate, error) {
	c.mu.Lock()
	if c.state != StateDestinationSelected && c.state != StateRoutesFound {
		c.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if c.destination == nil {
		c.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	origin := c.currentOriginLocked()
	dest := *c.destination
	profile := c.profile
	epoch := c.epoch
	c.mu.Unlock()

	candidates, err := c.planner.Plan(ctx, origin, dest, profile)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		// Session was reset while the request was in flight.
		return nil, context.Canceled
	}
	switch {
	case err == nil:
	case errors.Is(err, routing.ErrThrottled):
		return nil, err
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		c.lastError = err.Error()
		c.candidates = nil
		if c.state == StateRoutesFound {
			// No stale candidate set may survive a failed refresh.
			_ = c.applyLocked(StateDestinationSelected, false)
		}
		return nil, err
	}

	c.candidates = candidates
	c.lastError = ""
	if err := c.applyLocked(StateRoutesFound, false); err != nil {
		return nil, err
	}
	return candidates, nil
}

// currentOriginLocked prefers the last tracked position over the stored
// destination-selection origin.
func (c *Controller) currentOriginLocked() models.Location {
	if c.tracker != nil {
		if path := c.tracker.Path(); len(path) > 0 {
			return path[len(path)-1].Location
		}
	}
	if c.destination != nil && len(c.candidates) > 0 && len(c.candidates[0].PathPoints) > 0 {
		return c.candidates[0].PathPoints[0]
	}
	return models.Location{}
}

// SelectRoute promotes one of the fetched candidates to primary.
func (c *Controller) SelectRoute(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRoutesFound {
		return ErrInvalidTransition
	}
	for i, cand := range c.candidates {
		if cand.ID == id {
			c.candidates[0], c.candidates[i] = c.candidates[i], c.candidates[0]
			return nil
		}
	}
	return errors.New("unknown route candidate")
}

// StartNavigation creates the trip session, seeds the path with the current
// location, and activates live tracking.
func (c *Controller) StartNavigation(start models.LocationSample) error {
	c.mu.Lock()
	if c.state == StateNavigating {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateRoutesFound || len(c.candidates) == 0 {
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	primary := c.candidates[0]
	now := time.Now()
	c.session = &TripSession{
		SessionID:   uuid.NewString(),
		UserID:      c.userID,
		MotorID:     c.profile.MotorID,
		ActiveRoute: &primary,
		StartedAt:   now,
		StartedAtMs: start.TimestampMs,
		Status:      SessionActive,
	}
	c.fuelUsedL = 0
	c.offRoute.Reset()
	c.arrival.Reset()
	if err := c.applyLocked(StateNavigating, false); err != nil {
		c.session = nil
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.tracker.Seed(start)
	c.tracker.SetRoute(primary.PathPoints)
	if err := c.tracker.Start(c.handleUpdate); err != nil && !errors.Is(err, tracking.ErrAlreadyStarted) {
		c.tracker.ClearRoute()
		c.mu.Lock()
		c.revertLocked(StateRoutesFound)
		c.session = nil
		c.mu.Unlock()
		return err
	}

	log.WithFields(log.Fields{
		"session_id": c.sessionID(),
		"route_id":   primary.ID,
	}).Info("Navigation started")
	return nil
}

func (c *Controller) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.SessionID
}

// handleUpdate runs synchronously inside the position callback so off-route
// and arrival evaluation observe every sample in order.
func (c *Controller) handleUpdate(u tracking.Update) {
	c.mu.Lock()
	if c.state != StateNavigating || c.session == nil {
		c.mu.Unlock()
		return
	}
	sess := c.session

	var routePoints []models.Location
	if sess.ActiveRoute != nil {
		routePoints = sess.ActiveRoute.PathPoints
	}
	activeFor := time.Duration(u.Sample.TimestampMs-sess.StartedAtMs) * time.Millisecond
	if c.offRoute.ShouldReroute(u.Sample, routePoints, activeFor) {
		c.offRoute.Begin()
		sess.WasRerouted = true
		sess.RerouteCount++
		origin := u.Sample.Location
		dest := *c.destination
		profile := c.profile
		epoch := c.epoch
		log.WithFields(log.Fields{
			"session_id":    sess.SessionID,
			"reroute_count": sess.RerouteCount,
		}).Info("Off route, requesting reroute")
		go c.reroute(origin, dest, profile, epoch)
	}

	if c.destination != nil && c.arrival.Check(u.Sample, *c.destination) {
		epoch := c.epoch
		c.stopGraceTimerLocked()
		c.graceTimer = time.AfterFunc(c.cfg.GraceDelay, func() {
			c.completeAfterGrace(epoch)
		})
		log.WithField("session_id", sess.SessionID).Info("Arrival detected, grace delay started")
	}
	c.mu.Unlock()
}

// handleFuelBurn applies incremental consumption to the cached profile and
// schedules a background profile-store write once enough fuel was used. The
// optimistic local value is never rolled back on a failed write.
func (c *Controller) handleFuelBurn(incrementalKm float64) {
	c.mu.Lock()
	if c.state != StateNavigating {
		c.mu.Unlock()
		return
	}
	if c.profile.FuelEfficiencyKmPerLiter > 0 {
		c.fuelUsedL += incrementalKm / c.profile.FuelEfficiencyKmPerLiter
	}
	c.profile.CurrentFuelLevelPercent = fuel.LevelAfterTravel(c.profile, incrementalKm)
	pct := c.profile.CurrentFuelLevelPercent
	motorID := c.profile.MotorID
	sync := c.fuelSync != nil && c.lastSyncedPct-pct >= fuelSyncStepPercent
	if sync {
		c.lastSyncedPct = pct
	}
	fuelSync := c.fuelSync
	c.mu.Unlock()

	if sync {
		fuelSync.UpdateFuelLevelAsync(motorID, pct)
	}
}

// reroute plans from the deviation point. A stale epoch means the session
// was reset or completed while the request was in flight; the result is
// observably discarded.
func (c *Controller) reroute(origin, dest models.Location, profile models.MotorProfile, epoch uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), rerouteTimeout)
	defer cancel()

	candidates, err := c.planner.Plan(ctx, origin, dest, profile)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.state != StateNavigating || c.session == nil {
		return
	}
	c.offRoute.Resolve()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		return
	default:
		c.lastError = err.Error()
		log.WithError(err).WithField("session_id", c.session.SessionID).Error("Reroute failed, keeping current route")
		return
	}

	c.candidates = candidates
	primary := candidates[0]
	c.session.ActiveRoute = &primary
	c.lastError = ""
	c.tracker.SetRoute(primary.PathPoints)
	log.WithFields(log.Fields{
		"session_id": c.session.SessionID,
		"route_id":   primary.ID,
	}).Info("Reroute applied")
}

func (c *Controller) completeAfterGrace(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != StateNavigating {
		c.mu.Unlock()
		return
	}
	c.completeLocked(true, SessionCompleted)
}

// StopNavigation finishes the session on manual stop.
func (c *Controller) StopNavigation() error {
	c.mu.Lock()
	if c.state != StateNavigating {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.completeLocked(false, SessionCompleted)
	return nil
}

// completeLocked transitions to completed exactly once, stops tracking, and
// hands the session to trip persistence. It unlocks c.mu.
func (c *Controller) completeLocked(arrived bool, status string) {
	sess := c.session
	c.session = nil
	c.epoch++
	c.stopGraceTimerLocked()
	c.offRoute.Reset()
	c.arrival.Reset()
	_ = c.applyLocked(StateCompleted, false)
	record := c.buildRecordLocked(sess, arrived, status)
	c.mu.Unlock()

	c.tracker.Stop()
	c.cancelPlanner()
	if c.handoff != nil {
		c.handoff.Stop()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()
		err := c.finalizer.Finalize(ctx, record)
		if err != nil {
			log.WithError(err).WithField("trip_id", record.TripID).Error("Trip may not be saved")
		} else {
			log.WithField("trip_id", record.TripID).Info("Trip persisted")
		}
		if c.OnTripFinalized != nil {
			c.OnTripFinalized(record, err)
		}
	}()
}

// buildRecordLocked derives the durable trip summary from the live session.
func (c *Controller) buildRecordLocked(sess *TripSession, arrived bool, status string) models.TripRecord {
	now := time.Now()
	record := models.TripRecord{
		TripID:          uuid.NewString(),
		UserID:          c.userID,
		MotorID:         c.profile.MotorID,
		EndedAt:         now,
		ActualFuelUsedL: c.fuelUsedL,
		Arrived:         arrived,
		Status:          status,
		CreatedAt:       now,
	}
	if sess != nil {
		sess.Status = status
		sess.PathHistory = c.tracker.Path()
		record.TripID = sess.SessionID
		record.StartedAt = sess.StartedAt
		record.DurationSeconds = now.Sub(sess.StartedAt).Seconds()
		record.RerouteCount = sess.RerouteCount
		record.WasRerouted = sess.WasRerouted
		if n := len(sess.PathHistory); n > 0 {
			record.StartLocation = sess.PathHistory[0].Location
			record.EndLocation = sess.PathHistory[n-1].Location
		}
		if sess.ActiveRoute != nil {
			record.PlannedFuel = fuel.Range(sess.ActiveRoute.DistanceMeters/1000.0, c.profile.FuelEfficiencyKmPerLiter)
		}
	}
	record.DistanceMeters = c.tracker.DistanceMeters()
	return record
}

// StartNew clears a completed session and returns to searching.
func (c *Controller) StartNew() error {
	c.mu.Lock()
	if c.state != StateCompleted {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.resetLocked(false)
	return nil
}

// Reset aborts whatever is in progress and returns to searching, releasing
// the tracker subscription, in-flight cancellation tokens, and pending
// timers. An active session is finalized as cancelled first.
func (c *Controller) Reset(closeModals bool) {
	c.mu.Lock()
	if c.state == StateNavigating && c.session != nil {
		c.completeLocked(false, SessionCancelled)
		c.mu.Lock()
	}
	c.resetLocked(closeModals)
}

// resetLocked clears all session data atomically with the state write. It
// unlocks c.mu.
func (c *Controller) resetLocked(closeModals bool) {
	c.epoch++
	c.session = nil
	c.destination = nil
	c.candidates = nil
	c.fuelUsedL = 0
	c.lastError = ""
	c.suspended = false
	c.stopGraceTimerLocked()
	c.offRoute.Reset()
	c.arrival.Reset()
	_ = c.applyLocked(StateSearching, closeModals)
	c.mu.Unlock()

	c.tracker.Reset()
	c.cancelPlanner()
	if c.handoff != nil {
		c.handoff.Stop()
	}
}

func (c *Controller) stopGraceTimerLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

func (c *Controller) cancelPlanner() {
	if p, ok := c.planner.(interface{ Cancel() }); ok {
		p.Cancel()
	}
}

// Suspend hands tracking to the background collaborator when the host
// application loses foreground execution. Safe no-op outside navigation and
// on duplicate calls.
func (c *Controller) Suspend() {
	c.mu.Lock()
	if c.state != StateNavigating || c.session == nil || c.suspended {
		c.mu.Unlock()
		return
	}
	c.suspended = true
	sessID := c.session.SessionID
	profile := c.profile
	snap := background.Snapshot{
		DistanceMeters:   c.tracker.DistanceMeters(),
		SampleCount:      len(c.tracker.Path()),
		FuelLevelPercent: profile.CurrentFuelLevelPercent,
	}
	c.mu.Unlock()

	accepted := c.handoff != nil && c.handoff.Suspend(sessID, profile, snap)
	if !accepted {
		// Refused handoff means nobody else is recording; keep the
		// foreground tracker running rather than go dark.
		c.mu.Lock()
		c.suspended = false
		c.mu.Unlock()
		log.WithField("session_id", sessID).Warn("Background handoff refused, keeping foreground tracking")
		return
	}
	c.tracker.Stop()
	log.WithField("session_id", sessID).Info("Tracking handed to background")
}

// Resume reclaims tracking from the background collaborator and reconciles
// the path it accumulated. Safe no-op when not suspended.
func (c *Controller) Resume() {
	c.mu.Lock()
	if !c.suspended {
		c.mu.Unlock()
		return
	}
	c.suspended = false
	navigating := c.state == StateNavigating
	c.mu.Unlock()

	if c.handoff != nil {
		if samples := c.handoff.Resume(); len(samples) > 0 {
			c.tracker.Restore(samples)
		}
	}
	if navigating {
		if err := c.tracker.Start(c.handleUpdate); err != nil && !errors.Is(err, tracking.ErrAlreadyStarted) {
			log.WithError(err).Error("Failed to resume foreground tracking")
		}
	}
}
