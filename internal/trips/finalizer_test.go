package trips

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/moto-navigator/internal/models"
)

type mockStore struct {
	calls int
	errs  []error // consumed in order; nil entries mean success
}

func (m *mockStore) InsertTrip(ctx context.Context, record models.TripRecord) error {
	m.calls++
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

// testFinalizer swaps the real backoff sleep for a recording one.
func testFinalizer(store Store) (*Finalizer, *[]time.Duration) {
	f := NewFinalizer(store)
	var slept []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func record() models.TripRecord {
	return models.TripRecord{TripID: "trip-1", UserID: "rider-1"}
}

func TestFinalizeSucceedsFirstAttempt(t *testing.T) {
	store := &mockStore{}
	f, slept := testFinalizer(store)

	require.NoError(t, f.Finalize(context.Background(), record()))
	assert.Equal(t, 1, store.calls)
	assert.Empty(t, *slept)
}

func TestFinalizeRetriesTransientFailures(t *testing.T) {
	store := &mockStore{errs: []error{
		fmt.Errorf("insert: %w", ErrTransient),
		fmt.Errorf("insert: %w", ErrTransient),
		nil,
	}}
	f, slept := testFinalizer(store)

	require.NoError(t, f.Finalize(context.Background(), record()))
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestFinalizeGivesUpAfterThreeAttempts(t *testing.T) {
	transient := fmt.Errorf("insert: %w", ErrTransient)
	store := &mockStore{errs: []error{transient, transient, transient}}
	f, slept := testFinalizer(store)

	err := f.Finalize(context.Background(), record())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestFinalizeDoesNotRetryValidationFailures(t *testing.T) {
	store := &mockStore{errs: []error{&ValidationError{Reason: "bad shape"}}}
	f, _ := testFinalizer(store)

	err := f.Finalize(context.Background(), record())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, store.calls)
}

func TestFinalizeRejectsIncompleteRecords(t *testing.T) {
	store := &mockStore{}
	f, _ := testFinalizer(store)

	var ve *ValidationError
	err := f.Finalize(context.Background(), models.TripRecord{UserID: "rider-1"})
	require.ErrorAs(t, err, &ve)

	err = f.Finalize(context.Background(), models.TripRecord{TripID: "trip-1"})
	require.ErrorAs(t, err, &ve)

	assert.Zero(t, store.calls)
}

func TestFinalizeStopsOnCancelledContext(t *testing.T) {
	transient := fmt.Errorf("insert: %w", ErrTransient)
	store := &mockStore{errs: []error{transient, transient, transient}}
	f := NewFinalizer(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.Finalize(ctx, record())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrTransient))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", ErrTransient)))
	assert.True(t, IsTransient(context.DeadlineExceeded))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("schema mismatch")))
	assert.False(t, IsTransient(&ValidationError{Reason: "nope"}))
}
