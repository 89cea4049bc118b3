package handlers

import (
	"fmt"
	"net/http"

	"github.com/ukydev/fleet-manager/internal/auth"
	"github.com/ukydev/fleet-manager/internal/booking"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

// BookingHandler exposes booking requests and their status changes.
type BookingHandler struct {
	bookings *booking.Lifecycle
}

// NewBookingHandler creates a booking handler.
func NewBookingHandler(bookings *booking.Lifecycle) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// List returns bookings with ?status=, pending by default. Drivers only see
// their own.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.BookingStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.BookingPending
	}
	if !models.IsValidBookingStatus(status) {
		writeMessage(w, http.StatusBadRequest, "invalid status")
		return
	}

	list, err := h.bookings.ListByStatus(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Role == models.RoleDriver {
		own := list[:0]
		for _, b := range list {
			if b.DriverID == claims.DriverID {
				own = append(own, b)
			}
		}
		list = own
	}
	writeJSON(w, http.StatusOK, list)
}

// Get returns one booking.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !mayAccess(r, b) {
		writeMessage(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Transition applies {"status": ...}. Managers accept and reject; a driver
// may only start and complete a booking assigned to them.
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.BookingStatus `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !models.IsValidBookingStatus(req.Status) || req.Status == models.BookingPending {
		writeError(w, r, fmt.Errorf("status %q: %w", req.Status, errs.ErrIllegalTransition))
		return
	}

	id := r.PathValue("id")
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Role == models.RoleDriver {
		if req.Status != models.BookingInProgress && req.Status != models.BookingCompleted {
			writeMessage(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		current, err := h.bookings.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !mayAccess(r, current) {
			writeMessage(w, http.StatusForbidden, "insufficient permissions")
			return
		}
	}

	b, err := h.bookings.Transition(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// mayAccess reports whether the caller can see b. Only drivers are limited.
func mayAccess(r *http.Request, b *models.BookingRequest) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.Role != models.RoleDriver {
		return true
	}
	return claims.DriverID != "" && claims.DriverID == b.DriverID
}
