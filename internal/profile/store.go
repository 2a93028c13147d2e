// Package profile talks to the external motor profile service. The engine's
// copy of a profile is a cache; this store reconciles it optimistically.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/fuel"
	"github.com/ukydev/moto-navigator/internal/models"
)

const requestTimeout = 10 * time.Second

// ValidationError rejects a write before it reaches the network boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "profile update rejected: " + e.Reason
}

// Store is an HTTP client for the motor profile endpoint.
type Store struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

// NewStore constructs a profile store client.
func NewStore(httpClient *http.Client, baseURL, authToken string) *Store {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Store{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), authToken: authToken}
}

// Get fetches the motor profile by id. The returned fuel level is clamped
// defensively, the server copy stays authoritative.
func (s *Store) Get(ctx context.Context, motorID string) (models.MotorProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/motors/"+motorID, nil)
	if err != nil {
		return models.MotorProfile{}, fmt.Errorf("profile get: build request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.MotorProfile{}, fmt.Errorf("profile get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return models.MotorProfile{}, fmt.Errorf("profile get: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var p models.MotorProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return models.MotorProfile{}, fmt.Errorf("profile get: decode: %w", err)
	}
	p.CurrentFuelLevelPercent = fuel.ClampLevel(p.CurrentFuelLevelPercent)
	return p, nil
}

// UpdateFuelLevel PUTs a partial profile update. An out-of-range level is
// rejected here, before any request is built.
func (s *Store) UpdateFuelLevel(ctx context.Context, motorID string, percent float64) error {
	if !fuel.ValidateLevel(percent) {
		return &ValidationError{Reason: fmt.Sprintf("fuel level %v out of range", percent)}
	}

	body, err := json.Marshal(map[string]float64{"current_fuel_level_percent": percent})
	if err != nil {
		return fmt.Errorf("profile update: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/motors/"+motorID, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("profile update: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile update: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("profile update: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// UpdateFuelLevelAsync writes the level in the background. Failure is logged
// but never rolls back the caller's optimistic value; the level is re-synced
// on the next profile fetch.
func (s *Store) UpdateFuelLevelAsync(motorID string, percent float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := s.UpdateFuelLevel(ctx, motorID, percent); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"motor_id": motorID,
				"percent":  percent,
			}).Warn("Background fuel-level sync failed")
		}
	}()
}

func (s *Store) authorize(req *http.Request) {
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}
}
