package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ukydev/moto-navigator/internal/models"
)

func testCollection(t *testing.T) *MongoTripCollection {
	t.Helper()
	client, err := ConnectMongo()
	if err != nil {
		t.Skipf("failed to create client: %v, skipping integration test", err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	collection := client.Database("test_navigator").Collection("trips")
	collection.Drop(context.Background())

	tc := &MongoTripCollection{Collection: collection}
	require.NoError(t, tc.EnsureIndexes(context.Background()))
	return tc
}

func testRecord(tripID, userID string) models.TripRecord {
	return models.TripRecord{
		TripID:          tripID,
		UserID:          userID,
		MotorID:         "motor-1",
		StartLocation:   models.Location{Lat: 51.5000, Lng: -0.1000},
		EndLocation:     models.Location{Lat: 51.5100, Lng: -0.1000},
		StartedAt:       time.Now().Add(-10 * time.Minute),
		EndedAt:         time.Now(),
		DistanceMeters:  1113,
		DurationSeconds: 600,
		ActualFuelUsedL: 0.028,
		Arrived:         true,
		Status:          models.TripStatusCompleted,
	}
}

func TestMongoTripCollection_InsertTrip(t *testing.T) {
	tc := testCollection(t)

	err := tc.InsertTrip(context.Background(), testRecord("trip-1", "rider-1"))
	assert.NoError(t, err)

	var found models.TripRecord
	err = tc.Collection.FindOne(context.Background(), bson.M{"trip_id": "trip-1"}).Decode(&found)
	assert.NoError(t, err)
	assert.Equal(t, "rider-1", found.UserID)
	assert.True(t, found.Arrived)
	assert.NotZero(t, found.CreatedAt)
}

func TestMongoTripCollection_InsertTripIdempotent(t *testing.T) {
	tc := testCollection(t)

	record := testRecord("trip-dup", "rider-1")
	require.NoError(t, tc.InsertTrip(context.Background(), record))

	// a retry after a lost acknowledgement must not fail or duplicate
	assert.NoError(t, tc.InsertTrip(context.Background(), record))

	count, err := tc.Collection.CountDocuments(context.Background(), bson.M{"trip_id": "trip-dup"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMongoTripCollection_FindTripByID(t *testing.T) {
	tc := testCollection(t)

	require.NoError(t, tc.InsertTrip(context.Background(), testRecord("trip-2", "rider-1")))

	found, err := tc.FindTripByID(context.Background(), "trip-2")
	require.NoError(t, err)
	assert.Equal(t, "trip-2", found.TripID)

	_, err = tc.FindTripByID(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMongoTripCollection_FindTripsByUser(t *testing.T) {
	tc := testCollection(t)
	ctx := context.Background()

	require.NoError(t, tc.InsertTrip(ctx, testRecord("trip-a", "rider-1")))
	require.NoError(t, tc.InsertTrip(ctx, testRecord("trip-b", "rider-1")))
	require.NoError(t, tc.InsertTrip(ctx, testRecord("trip-c", "rider-2")))

	records, err := tc.FindTripsByUser(ctx, "rider-1", 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "rider-1", r.UserID)
	}

	limited, err := tc.FindTripsByUser(ctx, "rider-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMongoTripCollection_NilCollection(t *testing.T) {
	tc := &MongoTripCollection{}
	assert.Error(t, tc.InsertTrip(context.Background(), models.TripRecord{TripID: "x"}))
	_, err := tc.FindTripByID(context.Background(), "x")
	assert.Error(t, err)
}
