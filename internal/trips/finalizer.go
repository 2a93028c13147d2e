// Package trips finalizes completed or cancelled navigation sessions into
// durable trip records.
package trips

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/models"
)

// ErrTransient marks a persistence failure worth retrying (network or
// timeout class). Store implementations wrap such failures with it.
var ErrTransient = errors.New("transient persistence failure")

// ValidationError is a terminal persistence failure: the record was rejected
// and retrying cannot help.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "trip record rejected: " + e.Reason
}

// IsTransient classifies an error as retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Store persists finalized trip records.
type Store interface {
	InsertTrip(ctx context.Context, record models.TripRecord) error
}

const (
	maxAttempts    = 3
	initialBackoff = 1 * time.Second
)

// Finalizer writes trip records with retry for transient failures: up to 3
// attempts with 1s/2s/4s backoff. Validation failures are terminal and
// surfaced immediately.
type Finalizer struct {
	store Store
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFinalizer constructs a Finalizer over the store.
func NewFinalizer(store Store) *Finalizer {
	return &Finalizer{store: store, sleep: sleepCtx}
}

// Finalize persists the record. The record's TripID is the dedupe key; the
// store treats a duplicate insert as success, making retries after a timeout
// idempotent.
func (f *Finalizer) Finalize(ctx context.Context, record models.TripRecord) error {
	if record.TripID == "" {
		return &ValidationError{Reason: "missing trip id"}
	}
	if record.UserID == "" {
		return &ValidationError{Reason: "missing user id"}
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := f.store.InsertTrip(ctx, record)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		log.WithError(err).WithFields(log.Fields{
			"trip_id": record.TripID,
			"attempt": attempt,
		}).Warn("Trip insert failed, retrying")
		if err := f.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("finalize trip %s after %d attempts: %w", record.TripID, maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
