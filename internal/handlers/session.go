package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/cache"
	"github.com/ukydev/moto-navigator/internal/db"
	"github.com/ukydev/moto-navigator/internal/middleware"
	"github.com/ukydev/moto-navigator/internal/models"
	"github.com/ukydev/moto-navigator/internal/routing"
	"github.com/ukydev/moto-navigator/internal/session"
)

const tripListLimit = 50

// SessionHandler exposes the navigation lifecycle over HTTP
type SessionHandler struct {
	controller *session.Controller
	trips      db.TripCollection
	snapshots  *cache.Store
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(controller *session.Controller, trips db.TripCollection, snapshots *cache.Store) *SessionHandler {
	return &SessionHandler{
		controller: controller,
		trips:      trips,
		snapshots:  snapshots,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// ChooseDestination handles destination selection
func (h *SessionHandler) ChooseDestination(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var dest models.Location
	if err := json.Unmarshal(body, &dest); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.controller.ChooseDestination(dest); err != nil {
		h.writeControllerError(w, err)
		return
	}

	h.writeStatus(w, r.Context())
}

// PlanRoutes handles route planning for the chosen destination
func (h *SessionHandler) PlanRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	candidates, err := h.controller.PlanRoutes(r.Context())
	if err != nil {
		h.writeControllerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": candidates,
	})
}

// SelectRoute handles picking one of the planned candidates
func (h *SessionHandler) SelectRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RouteID string `json:"route_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.RouteID == "" {
		http.Error(w, "route_id is required", http.StatusBadRequest)
		return
	}

	if err := h.controller.SelectRoute(req.RouteID); err != nil {
		h.writeControllerError(w, err)
		return
	}

	h.writeStatus(w, r.Context())
}

// StartNavigation handles the transition into active navigation
func (h *SessionHandler) StartNavigation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var start models.LocationSample
	if err := json.NewDecoder(r.Body).Decode(&start); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.controller.StartNavigation(start); err != nil {
		h.writeControllerError(w, err)
		return
	}

	h.writeStatus(w, r.Context())
}

// StopNavigation ends the active trip without arrival
func (h *SessionHandler) StopNavigation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.controller.StopNavigation(); err != nil {
		h.writeControllerError(w, err)
		return
	}

	h.dropSnapshot(r.Context())
	h.writeStatus(w, r.Context())
}

// StartNew discards post-trip state and begins a fresh search
func (h *SessionHandler) StartNew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.controller.StartNew(); err != nil {
		h.writeControllerError(w, err)
		return
	}

	h.dropSnapshot(r.Context())
	h.writeStatus(w, r.Context())
}

// Reset force-returns the engine to the searching state
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.controller.Reset(true)
	h.dropSnapshot(r.Context())
	h.writeStatus(w, r.Context())
}

// Suspend hands tracking to the background collaborator
func (h *SessionHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.controller.Suspend()
	h.writeStatus(w, r.Context())
}

// Resume reclaims tracking from the background collaborator
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.controller.Resume()
	h.writeStatus(w, r.Context())
}

// statusResponse pairs the live controller view with the last cached
// snapshot, so a fresh client can render something before the first update.
type statusResponse struct {
	session.Status
	LastKnown *cache.SessionSnapshot `json:"last_known,omitempty"`
}

// Status returns the current session snapshot
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := h.controller.Status()
	resp := statusResponse{Status: st}
	if st.Session == nil {
		resp.LastKnown = h.lastKnown(r.Context())
	} else {
		h.cacheSnapshot(r.Context(), st)
	}
	writeJSON(w, http.StatusOK, resp)
}

// lastKnown reads the cached snapshot for the authenticated rider. A miss or
// cache error just means no warm data.
func (h *SessionHandler) lastKnown(ctx context.Context) *cache.SessionSnapshot {
	if h.snapshots == nil {
		return nil
	}
	claims, ok := middleware.GetUserFromContext(ctx)
	if !ok {
		return nil
	}
	snap, err := h.snapshots.Get(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.WithError(err).Warn("Snapshot cache read failed")
		}
		return nil
	}
	return &snap
}

// ListTrips returns the rider's persisted trip history
func (h *SessionHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
			userID = claims.UserID
		}
	}
	if userID == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}

	trips, err := h.trips.FindTripsByUser(r.Context(), userID, tripListLimit)
	if err != nil {
		log.WithError(err).Error("Failed to load trips")
		http.Error(w, "Failed to load trips", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trips": trips,
		"count": len(trips),
	})
}

// Health is a liveness probe
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeStatus emits the controller snapshot and refreshes the cached copy.
func (h *SessionHandler) writeStatus(w http.ResponseWriter, ctx context.Context) {
	st := h.controller.Status()
	h.cacheSnapshot(ctx, st)
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) cacheSnapshot(ctx context.Context, st session.Status) {
	if h.snapshots == nil || st.Session == nil {
		return
	}
	h.snapshots.Put(ctx, st.Session.UserID, cache.SessionSnapshot{
		SessionID:        st.Session.SessionID,
		State:            string(st.State),
		DistanceMeters:   st.DistanceMeters,
		RerouteCount:     st.Session.RerouteCount,
		FuelLevelPercent: st.FuelLevelPercent,
	})
}

func (h *SessionHandler) dropSnapshot(ctx context.Context) {
	if h.snapshots == nil {
		return
	}
	if claims, ok := middleware.GetUserFromContext(ctx); ok {
		h.snapshots.Drop(ctx, claims.UserID)
	}
}

// writeControllerError maps lifecycle and planner errors onto HTTP statuses.
// Throttled planning is retryable; everything else needs a different call.
func (h *SessionHandler) writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routing.ErrThrottled):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error(), Retryable: true})
	case errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "superseded by a newer request", Retryable: true})
	case errors.Is(err, routing.ErrNoRoute):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrNoActiveSession):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.WithError(err).Error("Session operation failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Retryable: true})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
