package db

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/moto-navigator/internal/models"
)

// TripCollection defines the interface for trip record operations.
type TripCollection interface {
	InsertTrip(ctx context.Context, record models.TripRecord) error
	FindTrips(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (TripCursor, error)
	FindTripByID(ctx context.Context, tripID string) (*models.TripRecord, error)
	FindTripsByUser(ctx context.Context, userID string, limit int64) ([]models.TripRecord, error)
}

// TripCursor defines the interface for trip cursor operations.
type TripCursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}
