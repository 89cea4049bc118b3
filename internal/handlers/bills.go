package handlers

import (
	"fmt"
	"net/http"

	"github.com/ukydev/fleet-manager/internal/billing"
	"github.com/ukydev/fleet-manager/internal/models"
)

// BillHandler exposes maintenance bill review.
type BillHandler struct {
	bills *billing.Lifecycle
}

// NewBillHandler creates a bill handler.
func NewBillHandler(bills *billing.Lifecycle) *BillHandler {
	return &BillHandler{bills: bills}
}

// List returns bills with ?status=, pending by default.
func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.BillStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.BillPending
	}
	if status != models.BillPending && !models.IsDecision(status) {
		writeMessage(w, http.StatusBadRequest, "invalid status")
		return
	}

	bills, err := h.bills.List(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

// Get returns one bill with its recomputed totals.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	bill, err := h.bills.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// Decide applies {"outcome": "approved"|"rejected"|"need review"}.
func (h *BillHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome models.BillStatus `json:"outcome"`
	}
	if err := readJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id := r.PathValue("id")
	if err := h.bills.Decide(r.Context(), id, req.Outcome); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Outcome)})
}

// PDF renders the bill as an A4 document.
func (h *BillHandler) PDF(w http.ResponseWriter, r *http.Request) {
	bill, err := h.bills.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := billing.RenderPDF(bill)
	if err != nil {
		writeError(w, r, fmt.Errorf("render bill %s: %w", bill.ID, err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "bill-"+bill.ID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
