package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Location mirrors the navigator's coordinate payload.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Sample is the position message the navigator consumes over MQTT.
type Sample struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	TimestampMs int64    `json:"timestamp_ms"`
	SpeedMps    *float64 `json:"speed_mps,omitempty"`
}

type candidate struct {
	ID         string     `json:"id"`
	PathPoints []Location `json:"path_points"`
}

// Cities for realistic rides
var cities = []Location{
	{Lat: 51.5074, Lng: -0.1278}, // London
	{Lat: 48.8566, Lng: 2.3522},  // Paris
	{Lat: 52.5200, Lng: 13.4050}, // Berlin
	{Lat: 40.4168, Lng: -3.7038}, // Madrid
	{Lat: 41.0082, Lng: 28.9784}, // Istanbul
	{Lat: 51.4816, Lng: -3.1791}, // Cardiff
}

func jitterLocation(base Location, meters float64) Location {
	latMetersPerDeg := 111320.0
	lngMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLng := (rand.Float64()*2 - 1) * (meters / lngMetersPerDeg)
	return Location{Lat: base.Lat + dLat, Lng: base.Lng + dLng}
}

func haversineKm(a, b Location) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

func lerp(a, b Location, t float64) Location {
	return Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lng: a.Lng + (b.Lng-a.Lng)*t}
}

var authToken string

func authorizedRequest(method, url string, body *bytes.Buffer) (*http.Response, error) {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

// startTrip walks the navigator through its lifecycle and returns the route
// geometry the ride should follow.
func startTrip(apiURL string, start, dest Location) ([]Location, error) {
	destData, _ := json.Marshal(dest)
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/api/session/destination", bytes.NewBuffer(destData))
	if err != nil {
		return nil, fmt.Errorf("choose destination: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("choose destination: status %d", resp.StatusCode)
	}

	resp, err = authorizedRequest(http.MethodPost, apiURL+"/api/session/plan", nil)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plan: status %d", resp.StatusCode)
	}

	var planResp struct {
		Candidates []candidate `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&planResp); err != nil {
		return nil, fmt.Errorf("plan: decode: %w", err)
	}
	if len(planResp.Candidates) == 0 {
		return nil, fmt.Errorf("plan: no candidates")
	}
	primary := planResp.Candidates[0]

	selectData, _ := json.Marshal(map[string]string{"route_id": primary.ID})
	resp, err = authorizedRequest(http.MethodPost, apiURL+"/api/session/select", bytes.NewBuffer(selectData))
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("select: status %d", resp.StatusCode)
	}

	startSample := Sample{Lat: start.Lat, Lng: start.Lng, TimestampMs: time.Now().UnixMilli()}
	startData, _ := json.Marshal(startSample)
	resp, err = authorizedRequest(http.MethodPost, apiURL+"/api/session/start", bytes.NewBuffer(startData))
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("start: status %d", resp.StatusCode)
	}

	return primary.PathPoints, nil
}

type rideState struct {
	Position  Location
	SpeedKmh  float64
	Points    []Location
	SegIndex  int
	SegOffset float64 // km along current segment
}

func stepAlongRoute(s *rideState, tickSec float64) bool {
	remKm := s.SpeedKmh * (tickSec / 3600.0)
	for remKm > 0 && s.SegIndex < len(s.Points)-1 {
		a := s.Points[s.SegIndex]
		b := s.Points[s.SegIndex+1]
		segLen := haversineKm(a, b)
		leftOnSeg := segLen - s.SegOffset
		if remKm >= leftOnSeg {
			s.Position = b
			s.SegIndex++
			s.SegOffset = 0
			remKm -= leftOnSeg
			continue
		}
		t := (s.SegOffset + remKm) / segLen
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		s.Position = lerp(a, b, t)
		s.SegOffset += remKm
		remKm = 0
	}
	return s.SegIndex >= len(s.Points)-1
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	rand.Seed(time.Now().UnixNano())

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = "tcp://localhost:1883"
	}
	topic := os.Getenv("MQTT_TOPIC")
	if topic == "" {
		topic = "navigator/position"
	}
	authToken = os.Getenv("API_TOKEN")

	// Veer this many meters off the route mid-ride to provoke a reroute.
	deviationM := envFloat("DEVIATION_METERS", 0)
	speedKmh := envFloat("SPEED_KMH", 45)
	tickSec := envFloat("TICK_SECONDS", 2)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("navigator-simulator").
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).Fatal("Failed to connect to MQTT broker")
	}
	defer client.Disconnect(250)

	city := cities[rand.Intn(len(cities))]
	start := jitterLocation(city, 500)
	dest := jitterLocation(city, 8000)

	points, err := startTrip(apiURL, start, dest)
	if err != nil {
		log.WithError(err).Fatal("Failed to start trip")
	}
	if len(points) < 2 {
		points = []Location{start, dest}
	}
	log.WithFields(log.Fields{
		"points":    len(points),
		"speed_kmh": speedKmh,
	}).Info("Ride started")

	state := &rideState{Position: start, SpeedKmh: speedKmh, Points: points}
	deviated := false
	ticker := time.NewTicker(time.Duration(tickSec * float64(time.Second)))
	defer ticker.Stop()

	for range ticker.C {
		arrived := stepAlongRoute(state, tickSec)

		pos := jitterLocation(state.Position, 3)
		if deviationM > 0 && !deviated && state.SegIndex > len(state.Points)/2 {
			pos = jitterLocation(state.Position, deviationM)
			deviated = true
			log.WithField("deviation_m", deviationM).Info("Veering off route")
		}

		speedMps := state.SpeedKmh / 3.6 * (0.9 + 0.2*rand.Float64())
		sample := Sample{
			Lat:         pos.Lat,
			Lng:         pos.Lng,
			TimestampMs: time.Now().UnixMilli(),
			SpeedMps:    &speedMps,
		}
		data, err := json.Marshal(sample)
		if err != nil {
			log.WithError(err).Error("Failed to marshal sample")
			continue
		}
		if token := client.Publish(topic, 0, false, data); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Error("Failed to publish sample")
		}

		if arrived {
			log.Info("Reached destination, letting arrival grace elapse")
			time.Sleep(10 * time.Second)
			return
		}
	}
}
