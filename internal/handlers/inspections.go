package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-manager/internal/inspection"
)

// InspectionHandler takes driver checklists and emergency reports.
type InspectionHandler struct {
	inspections *inspection.Service
}

// NewInspectionHandler creates an inspection handler.
func NewInspectionHandler(svc *inspection.Service) *InspectionHandler {
	return &InspectionHandler{inspections: svc}
}

// Submit records a checklist for the vehicle in the body.
func (h *InspectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form inspection.InspectionForm
	if err := readJSON(r, &form); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rec, err := h.inspections.Submit(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *InspectionHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	list, err := h.inspections.ListInspections(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RaiseEmergency records an emergency request.
func (h *InspectionHandler) RaiseEmergency(w http.ResponseWriter, r *http.Request) {
	var form inspection.EmergencyForm
	if err := readJSON(r, &form); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rec, err := h.inspections.RaiseEmergency(r.Context(), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *InspectionHandler) ListEmergencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.inspections.ListEmergencies(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
