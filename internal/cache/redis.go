// Package cache keeps a short-lived session snapshot in Redis so status
// reads do not touch the live controller on every poll.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	snapshotKeyPrefix = "navigator:snapshot:"
	snapshotTTL       = 5 * time.Minute
)

// ErrMiss is returned when no snapshot is cached for the user.
var ErrMiss = errors.New("cache: snapshot miss")

// SessionSnapshot is the cached view of a navigation session.
type SessionSnapshot struct {
	SessionID        string  `json:"session_id"`
	State            string  `json:"state"`
	DistanceMeters   float64 `json:"distance_meters"`
	RerouteCount     int     `json:"reroute_count"`
	FuelLevelPercent float64 `json:"fuel_level_percent"`
	UpdatedAtMs      int64   `json:"updated_at_ms"`
}

// Store wraps the Redis client used for snapshot reads and writes.
type Store struct {
	client *redis.Client
}

// NewStore connects to Redis and verifies the connection with a ping.
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return &Store{client: client}, nil
}

// NewStoreFromClient wraps an existing client, used by tests.
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Put writes the snapshot for a user. Best effort, a failed write is logged
// and the caller carries on.
func (s *Store) Put(ctx context.Context, userID string, snap SessionSnapshot) {
	snap.UpdatedAtMs = time.Now().UnixMilli()
	payload, err := json.Marshal(snap)
	if err != nil {
		log.WithError(err).Warn("Snapshot marshal failed")
		return
	}
	if err := s.client.Set(ctx, snapshotKeyPrefix+userID, payload, snapshotTTL).Err(); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Snapshot cache write failed")
	}
}

// Get reads the cached snapshot for a user.
func (s *Store) Get(ctx context.Context, userID string) (SessionSnapshot, error) {
	raw, err := s.client.Get(ctx, snapshotKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionSnapshot{}, ErrMiss
	}
	if err != nil {
		return SessionSnapshot{}, fmt.Errorf("cache: get: %w", err)
	}

	var snap SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return SessionSnapshot{}, fmt.Errorf("cache: decode: %w", err)
	}
	return snap, nil
}

// Drop removes the cached snapshot, called when the session ends.
func (s *Store) Drop(ctx context.Context, userID string) {
	if err := s.client.Del(ctx, snapshotKeyPrefix+userID).Err(); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Snapshot cache delete failed")
	}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
