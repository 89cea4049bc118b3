package booking

import (
	"context"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/metrics"
	"github.com/ukydev/fleet-manager/internal/models"
)

// OffRouteRadiusKm is the allowed distance between a vehicle and the
// midpoint of its pickup-dropoff corridor.
const OffRouteRadiusKm = 2.0

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two points.
func HaversineKm(a, b models.Location) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLon := degreesToRadians(b.Lon - a.Lon)
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Midpoint returns the straight-line midpoint of a and b.
func Midpoint(a, b models.Location) models.Location {
	return models.Location{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}

// CheckOffRoute returns an alert when b is in progress and pos lies more
// than OffRouteRadiusKm from the corridor midpoint.
func CheckOffRoute(b *models.BookingRequest, pos models.Location, at time.Time) (*models.OffRouteAlert, bool) {
	if b.Status != models.BookingInProgress {
		return nil, false
	}
	d := HaversineKm(pos, Midpoint(b.Pickup.Location, b.Dropoff.Location))
	if d <= OffRouteRadiusKm {
		return nil, false
	}
	return &models.OffRouteAlert{
		BookingID:    b.ID,
		DriverID:     b.DriverID,
		VehiclePlate: b.VehiclePlate,
		Position:     pos,
		DistanceKm:   d,
		DetectedAt:   at,
	}, true
}

// AlertPublisher receives off-route alerts.
type AlertPublisher interface {
	PublishAlert(alert models.OffRouteAlert)
}

// OffRouteMonitor matches live vehicle positions against in-progress
// bookings. An alert is published when a vehicle leaves its corridor and
// again only after it has been seen back inside.
type OffRouteMonitor struct {
	lifecycle *Lifecycle
	publisher AlertPublisher

	mu      sync.Mutex
	byPlate map[string]models.BookingRequest
	flagged map[string]bool
}

// NewOffRouteMonitor creates a monitor publishing to publisher.
func NewOffRouteMonitor(lifecycle *Lifecycle, publisher AlertPublisher) *OffRouteMonitor {
	return &OffRouteMonitor{
		lifecycle: lifecycle,
		publisher: publisher,
		byPlate:   make(map[string]models.BookingRequest),
		flagged:   make(map[string]bool),
	}
}

// Reload replaces the in-progress booking index. On failure the previous
// index is kept.
func (m *OffRouteMonitor) Reload(ctx context.Context) error {
	bookings, err := m.lifecycle.ListByStatus(ctx, models.BookingInProgress)
	if err != nil {
		return err
	}
	index := make(map[string]models.BookingRequest, len(bookings))
	for _, b := range bookings {
		index[b.VehiclePlate] = b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPlate = index
	for id := range m.flagged {
		if !containsBooking(index, id) {
			delete(m.flagged, id)
		}
	}
	return nil
}

// Run reloads the index every interval until ctx is done.
func (m *OffRouteMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.Reload(ctx); err != nil {
			log.WithError(err).Warn("Failed to reload in-progress bookings")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HandlePosition checks one position report. It returns the alert while the
// vehicle is off route and reports true only when the alert was published.
func (m *OffRouteMonitor) HandlePosition(pos models.VehiclePosition) (*models.OffRouteAlert, bool) {
	m.mu.Lock()
	b, ok := m.byPlate[pos.Plate]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	at := pos.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	alert, off := CheckOffRoute(&b, pos.Location, at)
	if !off {
		delete(m.flagged, b.ID)
		m.mu.Unlock()
		return nil, false
	}
	if m.flagged[b.ID] {
		m.mu.Unlock()
		return alert, false
	}
	m.flagged[b.ID] = true
	m.mu.Unlock()

	metrics.OffRouteAlerts.Inc()
	log.WithFields(log.Fields{
		"booking_id":    alert.BookingID,
		"vehicle_plate": alert.VehiclePlate,
		"distance_km":   alert.DistanceKm,
	}).Warn("Vehicle off route")
	if m.publisher != nil {
		m.publisher.PublishAlert(*alert)
	}
	return alert, true
}

func containsBooking(index map[string]models.BookingRequest, id string) bool {
	for _, b := range index {
		if b.ID == id {
			return true
		}
	}
	return false
}
