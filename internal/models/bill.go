package models

import "time"

// BillStatus is the approval status of a maintenance bill.
type BillStatus string

const (
	BillPending    BillStatus = "pending"
	BillApproved   BillStatus = "approved"
	BillRejected   BillStatus = "rejected"
	BillNeedReview BillStatus = "need review"
)

// IsDecision checks if s is an outcome a manager may apply.
func IsDecision(s BillStatus) bool {
	return s == BillApproved || s == BillRejected || s == BillNeedReview
}

// BillItem is one line of a maintenance bill. Amounts are whole currency units.
type BillItem struct {
	Seq       int    `json:"seq"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// Amount returns quantity times unit price.
func (i BillItem) Amount() int64 {
	return i.Quantity * i.UnitPrice
}

// BillRequest is a maintenance cost estimate awaiting manager approval.
// Subtotal, GST and Total are always recomputed from Items and ServiceCharge.
type BillRequest struct {
	ID            string     `json:"id"`
	VehiclePlate  string     `json:"vehiclePlate"`
	TaskName      string     `json:"taskName"`
	Description   string     `json:"description,omitempty"`
	Items         []BillItem `json:"items"`
	DroppedItems  int        `json:"droppedItems,omitempty"`
	ServiceCharge int64      `json:"serviceCharge"`
	Subtotal      int64      `json:"subtotal"`
	GST           int64      `json:"gst"`
	Total         int64      `json:"total"`
	Status        BillStatus `json:"status"`
	CreatedAt     time.Time  `json:"createdAt,omitempty"`
}
