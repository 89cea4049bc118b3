package models

import "time"

// Inspection is an immutable pre-trip checklist submitted by a driver.
type Inspection struct {
	ID            string          `json:"id"`
	DriverID      string          `json:"driverId"`
	VehicleID     string          `json:"vehicleId"`
	Timestamp     time.Time       `json:"timestamp"`
	Checklist     map[string]bool `json:"checklist"`
	Notes         string          `json:"notes,omitempty"`
	FlaggedIssues []string        `json:"flaggedIssues,omitempty"`
}

// EmergencyRequest is an immutable emergency raised by a driver, optionally
// linked to the inspection that surfaced it.
type EmergencyRequest struct {
	ID            string          `json:"id"`
	DriverID      string          `json:"driverId"`
	VehicleID     string          `json:"vehicleId"`
	Timestamp     time.Time       `json:"timestamp"`
	Issue         string          `json:"issue"`
	Checklist     map[string]bool `json:"checklist,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	FlaggedIssues []string        `json:"flaggedIssues,omitempty"`
	InspectionID  string          `json:"inspectionId,omitempty"`
}
