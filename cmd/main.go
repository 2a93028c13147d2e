package main

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/moto-navigator/internal/auth"
	"github.com/ukydev/moto-navigator/internal/background"
	"github.com/ukydev/moto-navigator/internal/cache"
	"github.com/ukydev/moto-navigator/internal/config"
	"github.com/ukydev/moto-navigator/internal/db"
	"github.com/ukydev/moto-navigator/internal/handlers"
	"github.com/ukydev/moto-navigator/internal/middleware"
	"github.com/ukydev/moto-navigator/internal/models"
	"github.com/ukydev/moto-navigator/internal/profile"
	"github.com/ukydev/moto-navigator/internal/routing"
	"github.com/ukydev/moto-navigator/internal/session"
	"github.com/ukydev/moto-navigator/internal/tracking"
	"github.com/ukydev/moto-navigator/internal/trips"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	cfg := config.Load()

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	tripCollection := &db.MongoTripCollection{
		Collection: client.Database("navigator").Collection("trips"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := tripCollection.EnsureIndexes(ctx); err != nil {
		cancel()
		log.WithError(err).Fatal("Failed to create trip indexes")
	}
	cancel()
	log.Info("Connected to MongoDB")

	snapshots, err := cache.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Warn("Snapshot cache unavailable, continuing without it")
		snapshots = nil
	}

	source, err := tracking.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MQTT broker")
	}
	defer source.Close()

	profileStore := profile.NewStore(nil, cfg.ProfileURL, cfg.ProfileToken)
	motorProfile, err := loadProfile(profileStore, cfg.MotorID)
	if err != nil {
		log.WithError(err).Fatal("Failed to load motor profile")
	}

	directions := routing.NewClient(nil, cfg.DirectionsURL, cfg.DirectionsKey, cfg.RouteAvoid)
	planner := routing.NewPlanner(directions)
	tracker := tracking.NewTracker(source)
	finalizer := trips.NewFinalizer(tripCollection)
	handoff := background.NewHandoff(background.NewRecorder(source))

	sessCfg := session.DefaultConfig()
	if cfg.StrictOffRoute {
		sessCfg.OffRoute.ThresholdM = session.StrictOffRouteThresholdM
	}
	controller := session.NewController(sessCfg, session.Deps{
		Planner:   planner,
		Tracker:   tracker,
		Finalizer: finalizer,
		FuelSync:  profileStore,
		Handoff:   handoff,
		UserID:    cfg.UserID,
		Profile:   motorProfile,
	})

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize auth service")
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()

	sessionHandler := handlers.NewSessionHandler(controller, tripCollection, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", sessionHandler.Health)
	mux.HandleFunc("/api/session/destination", sessionHandler.ChooseDestination)
	mux.HandleFunc("/api/session/plan", sessionHandler.PlanRoutes)
	mux.HandleFunc("/api/session/select", sessionHandler.SelectRoute)
	mux.HandleFunc("/api/session/start", sessionHandler.StartNavigation)
	mux.HandleFunc("/api/session/stop", sessionHandler.StopNavigation)
	mux.HandleFunc("/api/session/new", sessionHandler.StartNew)
	mux.HandleFunc("/api/session/reset", sessionHandler.Reset)
	mux.HandleFunc("/api/session/suspend", sessionHandler.Suspend)
	mux.HandleFunc("/api/session/resume", sessionHandler.Resume)
	mux.HandleFunc("/api/session/status", sessionHandler.Status)
	mux.HandleFunc("/api/trips", sessionHandler.ListTrips)

	handler := authMiddleware.Authenticate(rateLimiter.RateLimit(120, 60)(mux))

	log.WithField("port", cfg.Port).Info("Navigator listening")
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.WithError(err).Fatal("HTTP server stopped")
	}
}

// loadProfile fetches the motor profile, falling back to a conservative
// default when the profile service is unreachable at boot.
func loadProfile(store *profile.Store, motorID string) (models.MotorProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := store.Get(ctx, motorID)
	if err == nil {
		return p, nil
	}
	log.WithError(err).Warn("Profile service unavailable, using defaults")
	return models.MotorProfile{
		MotorID:                  motorID,
		FuelEfficiencyKmPerLiter: 40,
		FuelTankLiters:           12,
		CurrentFuelLevelPercent:  100,
	}, nil
}
