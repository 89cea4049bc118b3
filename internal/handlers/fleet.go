package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-manager/internal/fleet"
)

// FleetHandler manages vehicles and drivers.
type FleetHandler struct {
	fleet *fleet.Service
}

// NewFleetHandler creates a fleet handler.
func NewFleetHandler(svc *fleet.Service) *FleetHandler {
	return &FleetHandler{fleet: svc}
}

func (h *FleetHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.fleet.ListVehicles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// CreateVehicle validates and stores a new vehicle. Every invalid field is
// reported at once.
func (h *FleetHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var form fleet.VehicleForm
	if err := readJSON(r, &form); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	v, err := h.fleet.CreateVehicle(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// SetMaintenance applies {"inMaintenance": bool} to a vehicle.
func (h *FleetHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InMaintenance *bool `json:"inMaintenance"`
	}
	if err := readJSON(r, &req); err != nil || req.InMaintenance == nil {
		writeMessage(w, http.StatusBadRequest, "inMaintenance is required")
		return
	}
	id := r.PathValue("id")
	if err := h.fleet.SetMaintenance(r.Context(), id, *req.InMaintenance); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "inMaintenance": *req.InMaintenance})
}

func (h *FleetHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.fleet.ListDrivers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

func (h *FleetHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var form fleet.DriverForm
	if err := readJSON(r, &form); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	d, err := h.fleet.CreateDriver(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}
