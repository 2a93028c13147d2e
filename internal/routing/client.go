package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/ukydev/moto-navigator/internal/models"
)

// ErrNoRoute indicates the directions service found no path between the
// requested points. Terminal for that planning attempt.
var ErrNoRoute = errors.New("no route found")

// ErrMalformedResponse indicates the directions payload could not be parsed
// into typed candidates. The parse boundary fails closed: nothing partial is
// returned.
var ErrMalformedResponse = errors.New("malformed directions response")

// Route is one decoded leg of a directions response before fuel and traffic
// enrichment.
type Route struct {
	DistanceMeters           float64
	DurationSeconds          float64
	DurationInTrafficSeconds float64
	Points                   []models.Location
	Instructions             []string
}

// DirectionsClient fetches candidate routes from the external directions
// service.
type DirectionsClient interface {
	Directions(ctx context.Context, origin, destination models.Location) ([]Route, error)
}

// Client talks to the directions HTTP API. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	avoid      []string
}

// NewClient constructs a directions client. A nil httpClient gets a sane
// default with a request timeout.
func NewClient(httpClient *http.Client, baseURL, apiKey string, avoid []string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, avoid: avoid}
}

type directionsRequest struct {
	Origin       models.Location `json:"origin"`
	Destination  models.Location `json:"destination"`
	Alternatives bool            `json:"alternatives"`
	Avoid        []string        `json:"avoid,omitempty"`
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
			DurationInTraffic struct {
				Value float64 `json:"value"`
			} `json:"duration_in_traffic"`
			Steps []struct {
				HTMLInstructions string `json:"html_instructions"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Directions requests routes between two points, always asking for
// alternatives. The raw payload is converted into typed Routes at this
// boundary; undecodable shapes surface as ErrMalformedResponse.
func (c *Client) Directions(ctx context.Context, origin, destination models.Location) ([]Route, error) {
	body, err := json.Marshal(directionsRequest{
		Origin:       origin,
		Destination:  destination,
		Alternatives: true,
		Avoid:        c.avoid,
	})
	if err != nil {
		return nil, fmt.Errorf("directions: marshal request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/directions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", c.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}

	switch strings.ToUpper(payload.Status) {
	case "OK", "":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, ErrNoRoute
	default:
		return nil, fmt.Errorf("%w: status=%s", ErrMalformedResponse, payload.Status)
	}
	if len(payload.Routes) == 0 {
		return nil, ErrNoRoute
	}

	routes := make([]Route, 0, len(payload.Routes))
	for _, raw := range payload.Routes {
		if len(raw.Legs) == 0 {
			return nil, fmt.Errorf("%w: route without legs", ErrMalformedResponse)
		}
		points, err := decodeGeometry(raw.OverviewPolyline.Points)
		if err != nil {
			return nil, fmt.Errorf("%w: geometry: %v", ErrMalformedResponse, err)
		}

		route := Route{Points: points}
		for _, leg := range raw.Legs {
			route.DistanceMeters += leg.Distance.Value
			route.DurationSeconds += leg.Duration.Value
			if leg.DurationInTraffic.Value > 0 {
				route.DurationInTrafficSeconds += leg.DurationInTraffic.Value
			} else {
				route.DurationInTrafficSeconds += leg.Duration.Value
			}
			for _, step := range leg.Steps {
				if text := stripHTML(step.HTMLInstructions); text != "" {
					route.Instructions = append(route.Instructions, text)
				}
			}
		}
		if route.DistanceMeters <= 0 || len(route.Points) < 2 {
			return nil, fmt.Errorf("%w: empty route geometry", ErrMalformedResponse)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func decodeGeometry(encoded string) ([]models.Location, error) {
	if encoded == "" {
		return nil, errors.New("empty polyline")
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	points := make([]models.Location, 0, len(coords))
	for _, c := range coords {
		points = append(points, models.Location{Lat: c[0], Lng: c[1]})
	}
	return points, nil
}

// stripHTML drops tags from step instructions and collapses the remaining
// whitespace, e.g. "Turn <b>left</b>" -> "Turn left".
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("directions: http %d: %s", e.Code, e.Body)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429, 5xx) with
// exponential backoff while respecting context cancellation.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("directions: build request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case http.StatusTooManyRequests,
				http.StatusInternalServerError,
				http.StatusBadGateway,
				http.StatusServiceUnavailable,
				http.StatusGatewayTimeout:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}
