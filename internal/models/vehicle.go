package models

import "time"

// Collection names used by the fleet core.
const (
	CollectionVehicles          = "vehicles"
	CollectionDrivers           = "fleetDrivers"
	CollectionBookingRequests   = "bookingRequests"
	CollectionPendingBills      = "pendingBills"
	CollectionEmergencyRequests = "emergencyRequests"
	CollectionUsers             = "users"
)

// InspectionsCollection returns the nested inspections collection of a vehicle.
func InspectionsCollection(vehicleID string) string {
	return CollectionVehicles + "/" + vehicleID + "/inspections"
}

// VehicleCategory is the HMV/LMV class of a vehicle or driving license.
type VehicleCategory string

const (
	CategoryHMV VehicleCategory = "HMV"
	CategoryLMV VehicleCategory = "LMV"
)

// IsValidCategory checks if a category is HMV or LMV.
func IsValidCategory(c VehicleCategory) bool {
	return c == CategoryHMV || c == CategoryLMV
}

// VehicleType is the body type of a vehicle.
type VehicleType string

const (
	TypeCar   VehicleType = "car"
	TypeTruck VehicleType = "truck"
	TypeBus   VehicleType = "bus"
)

// IsValidVehicleType checks if t is car, truck or bus.
func IsValidVehicleType(t VehicleType) bool {
	switch t {
	case TypeCar, TypeTruck, TypeBus:
		return true
	default:
		return false
	}
}

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID             string          `json:"id"`
	PlateNumber    string          `json:"plateNumber"`
	Category       VehicleCategory `json:"category"`
	Type           VehicleType     `json:"type"`
	Model          string          `json:"model"`
	EngineNumber   string          `json:"engineNumber"`
	ChassisNumber  string          `json:"chassisNumber"`
	LicenseRenewal time.Time       `json:"licenseRenewal"`
	DistanceKm     float64         `json:"distanceKm"` // cumulative
	Mileage        float64         `json:"mileage"`    // km per litre
	InMaintenance  bool            `json:"inMaintenance"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Driver represents a fleet driver and the running totals of the trips they completed.
type Driver struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Age             int             `json:"age"`
	LicenseNumber   string          `json:"licenseNumber"`
	LicenseType     VehicleCategory `json:"licenseType"`
	ContactNumber   string          `json:"contactNumber"`
	ExperienceYears int             `json:"experienceYears"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	TotalTrips      int64           `json:"totalTrips"`
	TotalTripHours  float64         `json:"totalTripHours"`
	TotalDistanceKm float64         `json:"totalDistanceKm"`
	CreatedAt       time.Time       `json:"createdAt"`
}
