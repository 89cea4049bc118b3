// Package booking parses booking requests and drives their status lifecycle.
package booking

import (
	"time"

	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

// Document field names of a booking request.
const (
	FieldDriverID     = "driverId"
	FieldDriverName   = "driverName"
	FieldDriverImage  = "driverImage"
	FieldVehiclePlate = "vehiclePlate"
	FieldStatus       = "status"
	FieldDistanceKm   = "distanceKm"
	FieldCreatedAt    = "createdAt"
	FieldAcceptedAt   = "acceptedAt"
	FieldRejectedAt   = "rejectedAt"
	FieldStartedAt    = "startedAt"
	FieldCompletedAt  = "completedAt"
	FieldStatsApplied = "statsApplied"

	// FieldCreditedBookings lists, on a driver or vehicle document, the
	// completed bookings already added to its totals.
	FieldCreditedBookings = "creditedBookings"

	FieldPickupName  = "pickupName"
	FieldDropoffName = "dropoffName"
)

// Parse converts a raw bookingRequests document into a BookingRequest.
// It fails with a MalformedRecordError when a required field is absent or
// mistyped. A missing status is read as pending.
func Parse(doc db.Document) (*models.BookingRequest, error) {
	p := parser{doc: doc}

	b := &models.BookingRequest{
		ID:           doc.ID,
		DriverID:     p.requiredString(FieldDriverID),
		VehiclePlate: p.requiredString(FieldVehiclePlate),
		Pickup:       p.place("pickup"),
		Dropoff:      p.place("dropoff"),
		DistanceKm:   p.distance(),
		CreatedAt:    p.createdAt(),
	}
	b.Status, b.OffRoute = p.status()
	if p.err != nil {
		return nil, p.err
	}

	b.DriverName, _ = doc.Fields.String(FieldDriverName)
	b.DriverImage, _ = doc.Fields.String(FieldDriverImage)
	if t, ok := doc.Fields.Time(FieldStartedAt); ok {
		b.StartedAt = &t
	}
	if t, ok := doc.Fields.Time(FieldCompletedAt); ok {
		b.CompletedAt = &t
	}
	b.StatsApplied, _ = doc.Fields.Bool(FieldStatsApplied)
	return b, nil
}

// parser keeps the first failure so Parse reads straight through.
type parser struct {
	doc db.Document
	err error
}

func (p *parser) fail(field, reason string) {
	if p.err == nil {
		p.err = errs.Malformed(models.CollectionBookingRequests, p.doc.ID, field, reason)
	}
}

func (p *parser) requiredString(field string) string {
	v, present := p.doc.Fields[field]
	if !present || v == nil {
		p.fail(field, "is missing")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		p.fail(field, "is not a string")
		return ""
	}
	if s == "" {
		p.fail(field, "is empty")
	}
	return s
}

func (p *parser) place(prefix string) models.Place {
	name := p.requiredString(prefix + "Name")
	address := p.requiredString(prefix + "Address")
	loc, ok := p.doc.Fields.Location(prefix + "Coordinates")
	if !ok {
		p.fail(prefix+"Coordinates", "is missing or not a coordinate pair")
	}
	return models.Place{Name: name, Address: address, Location: loc}
}

func (p *parser) distance() float64 {
	d, ok := p.doc.Fields.Float(FieldDistanceKm)
	if !ok {
		p.fail(FieldDistanceKm, "is missing or not a number")
		return 0
	}
	if d < 0 {
		p.fail(FieldDistanceKm, "is negative")
	}
	return d
}

func (p *parser) createdAt() time.Time {
	ts, ok := p.doc.Fields.Time(FieldCreatedAt)
	if !ok {
		p.fail(FieldCreatedAt, "is missing or not a timestamp")
	}
	return ts
}

func (p *parser) status() (models.BookingStatus, bool) {
	v, present := p.doc.Fields[FieldStatus]
	if !present || v == nil {
		return models.BookingPending, false
	}
	s, ok := v.(string)
	if !ok {
		p.fail(FieldStatus, "is not a string")
		return "", false
	}
	status := models.BookingStatus(s)
	if status == models.BookingOffRoute {
		return models.BookingInProgress, true
	}
	if !models.IsValidBookingStatus(status) {
		p.fail(FieldStatus, "is not a known booking status")
		return "", false
	}
	return status, false
}
