// Command simulator drives the vehicles of in-progress trips along their
// routes and publishes their positions over MQTT.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/booking"
	"github.com/ukydev/fleet-manager/internal/models"
	"github.com/ukydev/fleet-manager/internal/telemetry"
)

const defaultOSRM = "https://router.project-osrm.org"

// positionSink receives simulated positions.
type positionSink interface {
	PublishPosition(pos models.VehiclePosition) error
}

// Route is a polyline the vehicle follows.
type Route struct {
	Points    []models.Location
	SegIndex  int
	SegOffset float64 // km along current segment
}

// Done reports whether the vehicle reached the last point.
func (r *Route) Done() bool {
	return r.SegIndex >= len(r.Points)-1
}

// TripState is one simulated vehicle.
type TripState struct {
	BookingID string
	Plate     string
	Position  models.Location
	SpeedKmh  float64
	Route     *Route
}

type simulator struct {
	apiURL   string
	token    string
	osrmURL  string
	detourKm float64
	client   *http.Client
	sink     positionSink
}

func lerp(a, b models.Location, t float64) models.Location {
	return models.Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lon: a.Lon + (b.Lon-a.Lon)*t}
}

// offset moves loc km kilometres due north.
func offset(loc models.Location, km float64) models.Location {
	return models.Location{Lat: loc.Lat + km/111.32, Lon: loc.Lon}
}

func (s *simulator) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+path, nil)
	if err != nil {
		return err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// inProgressTrips asks the API for the trips to simulate.
func (s *simulator) inProgressTrips(ctx context.Context) ([]models.BookingRequest, error) {
	var trips []models.BookingRequest
	if err := s.get(ctx, "/bookings?status="+string(models.BookingInProgress), &trips); err != nil {
		return nil, fmt.Errorf("failed to list in-progress trips: %w", err)
	}
	return trips, nil
}

func (s *simulator) fetchOSRMRoute(ctx context.Context, start, end models.Location) ([]models.Location, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		s.osrmURL, start.Lon, start.Lat, end.Lon, end.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var obj struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if len(obj.Routes) == 0 || len(obj.Routes[0].Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("no route")
	}
	coords := obj.Routes[0].Geometry.Coordinates
	pts := make([]models.Location, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, models.Location{Lat: c[1], Lon: c[0]})
	}
	return pts, nil
}

// planRoute follows the road route between pickup and dropoff, or a
// straight line when no router answers. With detourKm set the route swings
// that far away from the corridor halfway through.
func (s *simulator) planRoute(ctx context.Context, trip models.BookingRequest) *Route {
	start, end := trip.Pickup.Location, trip.Dropoff.Location
	pts, err := s.fetchOSRMRoute(ctx, start, end)
	if err != nil {
		log.WithError(err).WithField("booking_id", trip.ID).Debug("Routing failed, driving straight")
		pts = []models.Location{start, end}
	}
	if s.detourKm > 0 {
		mid := booking.Midpoint(start, end)
		pts = []models.Location{start, offset(mid, s.detourKm), end}
	}
	return &Route{Points: pts}
}

func stepAlongRoute(st *TripState, tickSec float64) {
	r := st.Route
	remKm := st.SpeedKmh * (tickSec / 3600.0)
	for remKm > 0 && !r.Done() {
		a := r.Points[r.SegIndex]
		b := r.Points[r.SegIndex+1]
		segLen := booking.HaversineKm(a, b)
		leftOnSeg := segLen - r.SegOffset
		if remKm >= leftOnSeg {
			st.Position = b
			r.SegIndex++
			r.SegOffset = 0
			remKm -= leftOnSeg
			continue
		}
		t := (r.SegOffset + remKm) / segLen
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		st.Position = lerp(a, b, t)
		r.SegOffset += remKm
		remKm = 0
	}
}

// simulateTrip publishes a position every interval until the dropoff is
// reached or ctx is done.
func (s *simulator) simulateTrip(ctx context.Context, st *TripState, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	entry := log.WithFields(log.Fields{"booking_id": st.BookingID, "plate": st.Plate})

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		st.SpeedKmh += (rand.Float64()*2 - 1) * 1.5
		if st.SpeedKmh < 15 {
			st.SpeedKmh = 15
		}
		if st.SpeedKmh > 90 {
			st.SpeedKmh = 90
		}
		stepAlongRoute(st, interval.Seconds())

		pos := models.VehiclePosition{Plate: st.Plate, Location: st.Position, Timestamp: time.Now().UTC()}
		if err := s.sink.PublishPosition(pos); err != nil {
			entry.WithError(err).Error("Failed to publish position")
		} else {
			entry.WithFields(log.Fields{"lat": pos.Location.Lat, "lon": pos.Location.Lon}).Debug("Published position")
		}

		if st.Route.Done() {
			entry.Info("Vehicle reached dropoff")
			return
		}
	}
}

// run simulates every in-progress trip once and waits for them to finish.
func (s *simulator) run(ctx context.Context, interval time.Duration) error {
	trips, err := s.inProgressTrips(ctx)
	if err != nil {
		return err
	}
	log.WithField("trips", len(trips)).Info("Simulating in-progress trips")

	var wg sync.WaitGroup
	for _, trip := range trips {
		st := &TripState{
			BookingID: trip.ID,
			Plate:     trip.VehiclePlate,
			Position:  trip.Pickup.Location,
			SpeedKmh:  30 + rand.Float64()*30,
			Route:     s.planRoute(ctx, trip),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.simulateTrip(ctx, st, interval)
		}()
	}
	wg.Wait()
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	broker := getenv("MQTT_BROKER", "tcp://localhost:1883")
	apiURL := getenv("API_BASE_URL", "http://localhost:8080/api")

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}
	var detour float64
	if v := os.Getenv("SIM_DETOUR_KM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			detour = f
		}
	}

	mqttClient, err := telemetry.Connect(broker, getenv("MQTT_CLIENT_ID", "fleet-simulator"), nil)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MQTT broker")
	}
	defer mqttClient.Disconnect(250)

	sim := &simulator{
		apiURL:   apiURL,
		token:    os.Getenv("SIM_AUTH_TOKEN"),
		osrmURL:  getenv("OSRM_URL", defaultOSRM),
		detourKm: detour,
		client:   &http.Client{Timeout: 10 * time.Second},
		sink:     &telemetry.Publisher{Client: mqttClient},
	}

	log.WithFields(log.Fields{
		"api_url":   apiURL,
		"broker":    broker,
		"interval":  interval,
		"detour_km": detour,
	}).Info("Starting trip simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := sim.run(ctx, interval); err != nil {
		log.WithError(err).Fatal("Simulation failed")
	}
}
