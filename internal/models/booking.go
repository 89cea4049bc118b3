package models

import "time"

// BookingStatus is the persisted status of a booking request.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingAccepted   BookingStatus = "accepted"
	BookingRejected   BookingStatus = "rejected"
	BookingInProgress BookingStatus = "inProgress"
	BookingCompleted  BookingStatus = "completed"

	// BookingOffRoute may be stored on an in-progress trip whose vehicle
	// left its corridor. It is read back as BookingInProgress with
	// BookingRequest.OffRoute set and is never a transition target.
	BookingOffRoute BookingStatus = "offRoute"
)

// IsValidBookingStatus checks if s is one of the persisted booking statuses.
func IsValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingPending, BookingAccepted, BookingRejected, BookingInProgress, BookingCompleted:
		return true
	default:
		return false
	}
}

// BookingRequest is a trip assignment linking a driver, a vehicle and a route.
type BookingRequest struct {
	ID           string        `json:"id"`
	DriverID     string        `json:"driverId"`
	DriverName   string        `json:"driverName,omitempty"`
	DriverImage  string        `json:"driverImage,omitempty"`
	VehiclePlate string        `json:"vehiclePlate"`
	Pickup       Place         `json:"pickup"`
	Dropoff      Place         `json:"dropoff"`
	Status       BookingStatus `json:"status"`
	DistanceKm   float64       `json:"distanceKm"`
	CreatedAt    time.Time     `json:"createdAt"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	OffRoute     bool          `json:"offRoute,omitempty"`
	StatsApplied bool          `json:"-"` // driver/vehicle totals already credited
}

// OngoingTrip is the dashboard projection of an accepted booking.
type OngoingTrip struct {
	BookingID    string `json:"bookingId"`
	DriverName   string `json:"driverName"`
	VehiclePlate string `json:"vehiclePlate"`
	Route        string `json:"route"`
	DriverImage  string `json:"driverImage,omitempty"`
}

// VehiclePosition is a live position report of a vehicle.
type VehiclePosition struct {
	Plate     string    `json:"plate"`
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// OffRouteAlert is raised when an in-progress trip's vehicle leaves its corridor.
// It is derived from live positions and never persisted.
type OffRouteAlert struct {
	BookingID    string    `json:"bookingId"`
	DriverID     string    `json:"driverId"`
	VehiclePlate string    `json:"vehiclePlate"`
	Position     Location  `json:"position"`
	DistanceKm   float64   `json:"distanceKm"`
	DetectedAt   time.Time `json:"detectedAt"`
}
