package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/fleet"
	"github.com/ukydev/fleet-manager/internal/metrics"
	"github.com/ukydev/fleet-manager/internal/models"
)

// edges lists the legal status transitions. rejected and completed are terminal.
var edges = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:    {models.BookingAccepted, models.BookingRejected},
	models.BookingAccepted:   {models.BookingInProgress},
	models.BookingInProgress: {models.BookingCompleted},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.BookingStatus) bool {
	return s == models.BookingRejected || s == models.BookingCompleted
}

// Lifecycle reads booking requests and applies status transitions.
// It is the only writer of a booking's status field.
type Lifecycle struct {
	store db.DocumentStore
	log   *log.Entry
	now   func() time.Time
}

// NewLifecycle creates a Lifecycle on store.
func NewLifecycle(store db.DocumentStore) *Lifecycle {
	return &Lifecycle{
		store: store,
		log:   log.WithField("component", "booking"),
		now:   time.Now,
	}
}

// Get reads and parses one booking request.
func (l *Lifecycle) Get(ctx context.Context, id string) (*models.BookingRequest, error) {
	doc, err := l.store.Get(ctx, models.CollectionBookingRequests, id)
	if err != nil {
		return nil, err
	}
	return Parse(*doc)
}

// ListByStatus returns the parsed booking requests with status. Listing
// in-progress trips includes those stored as off route. Malformed records
// are logged and skipped.
func (l *Lifecycle) ListByStatus(ctx context.Context, status models.BookingStatus) ([]models.BookingRequest, error) {
	docs, err := l.store.Query(ctx, models.CollectionBookingRequests, db.Eq(FieldStatus, string(status)))
	if err != nil {
		return nil, err
	}
	if status == models.BookingInProgress {
		offRoute, err := l.store.Query(ctx, models.CollectionBookingRequests, db.Eq(FieldStatus, string(models.BookingOffRoute)))
		if err != nil {
			return nil, err
		}
		docs = append(docs, offRoute...)
	}
	out := make([]models.BookingRequest, 0, len(docs))
	for _, doc := range docs {
		b, err := Parse(doc)
		if err != nil {
			metrics.MalformedRecords.WithLabelValues(models.CollectionBookingRequests).Inc()
			l.log.WithError(err).WithField("booking_id", doc.ID).Warn("Skipping malformed booking request")
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

// Transition moves booking id to status to. Re-applying the current status
// writes nothing, so a retried call is safe. Completing a trip credits the
// driver's and the vehicle's running totals exactly once.
func (l *Lifecycle) Transition(ctx context.Context, id string, to models.BookingStatus) (*models.BookingRequest, error) {
	b, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if b.Status == to {
		if to == models.BookingCompleted && !b.StatsApplied {
			if err := l.applyCompletion(ctx, b); err != nil {
				return b, err
			}
		}
		return b, nil
	}
	if !CanTransition(b.Status, to) {
		return nil, fmt.Errorf("booking %s: %s -> %s: %w", id, b.Status, to, errs.ErrIllegalTransition)
	}

	now := l.now()
	fields := map[string]interface{}{FieldStatus: string(to)}
	switch to {
	case models.BookingAccepted:
		fields[FieldAcceptedAt] = now
	case models.BookingRejected:
		fields[FieldRejectedAt] = now
	case models.BookingInProgress:
		fields[FieldStartedAt] = now
		b.StartedAt = &now
	case models.BookingCompleted:
		fields[FieldCompletedAt] = now
		b.CompletedAt = &now
	}
	if err := l.store.Update(ctx, models.CollectionBookingRequests, id, fields); err != nil {
		return nil, err
	}
	b.Status = to
	metrics.BookingTransitions.WithLabelValues(string(to)).Inc()
	l.log.WithFields(log.Fields{"booking_id": id, "status": to}).Info("Booking status changed")

	if to == models.BookingCompleted {
		if err := l.applyCompletion(ctx, b); err != nil {
			return b, err
		}
	}
	return b, nil
}

// applyCompletion adds the trip to the driver's and vehicle's totals and
// marks the booking once both are done. Each credit records the booking id
// on its target in the same write, so a retry after a partial failure
// skips the targets already credited.
func (l *Lifecycle) applyCompletion(ctx context.Context, b *models.BookingRequest) error {
	entry := l.log.WithFields(log.Fields{"booking_id": b.ID, "driver_id": b.DriverID, "vehicle_plate": b.VehiclePlate})

	if err := l.creditDriver(ctx, b); err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("credit driver: %w", err)
		}
		entry.Warn("Driver of completed trip not found, totals not credited")
	}
	if err := l.creditVehicle(ctx, b); err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("credit vehicle: %w", err)
		}
		entry.Warn("Vehicle of completed trip not found, distance not credited")
	}

	if err := l.store.Update(ctx, models.CollectionBookingRequests, b.ID, map[string]interface{}{FieldStatsApplied: true}); err != nil {
		return err
	}
	b.StatsApplied = true
	return nil
}

// creditedList returns the bookings already credited to a target and
// whether bookingID is among them.
func creditedList(f db.Fields, bookingID string) ([]interface{}, bool) {
	list, _ := f.Slice(FieldCreditedBookings)
	for _, v := range list {
		if id, ok := v.(string); ok && id == bookingID {
			return list, true
		}
	}
	return list, false
}

func (l *Lifecycle) creditDriver(ctx context.Context, b *models.BookingRequest) error {
	doc, err := l.store.Get(ctx, models.CollectionDrivers, b.DriverID)
	if err != nil {
		return err
	}
	credited, done := creditedList(doc.Fields, b.ID)
	if done {
		return nil
	}
	trips, _ := doc.Fields.Int(fleet.FieldTotalTrips)
	hours, _ := doc.Fields.Float(fleet.FieldTotalTripHours)
	km, _ := doc.Fields.Float(fleet.FieldTotalDistanceKm)

	if b.StartedAt != nil && b.CompletedAt != nil && b.CompletedAt.After(*b.StartedAt) {
		hours += b.CompletedAt.Sub(*b.StartedAt).Hours()
	}
	return l.store.Update(ctx, models.CollectionDrivers, b.DriverID, map[string]interface{}{
		fleet.FieldTotalTrips:      trips + 1,
		fleet.FieldTotalTripHours:  hours,
		fleet.FieldTotalDistanceKm: km + b.DistanceKm,
		FieldCreditedBookings:      append(credited, b.ID),
	})
}

func (l *Lifecycle) creditVehicle(ctx context.Context, b *models.BookingRequest) error {
	docs, err := l.store.Query(ctx, models.CollectionVehicles, db.Eq(fleet.FieldPlateNumber, b.VehiclePlate))
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("vehicle %s: %w", b.VehiclePlate, errs.ErrNotFound)
	}
	v := docs[0]
	credited, done := creditedList(v.Fields, b.ID)
	if done {
		return nil
	}
	km, _ := v.Fields.Float(fleet.FieldDistanceKm)
	return l.store.Update(ctx, models.CollectionVehicles, v.ID, map[string]interface{}{
		fleet.FieldDistanceKm: km + b.DistanceKm,
		FieldCreditedBookings: append(credited, b.ID),
	})
}
