// Package billing parses maintenance bills, recomputes their totals and
// applies manager decisions.
package billing

import (
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
)

// Document field names of a bill request.
const (
	FieldVehiclePlate  = "vehiclePlate"
	FieldTaskName      = "taskName"
	FieldDescription   = "description"
	FieldItems         = "items"
	FieldServiceCharge = "serviceCharge"
	FieldStatus        = "status"
	FieldCreatedAt     = "createdAt"

	itemSeq      = "seq"
	itemName     = "name"
	itemQuantity = "quantity"
	itemPrice    = "price"
)

// GSTPercent is the tax rate applied to subtotal plus service charge.
const GSTPercent = 18

// Parse converts a raw pendingBills document into a BillRequest with
// recomputed totals. Vehicle plate, task name and the items array are
// required. A line item with a non-positive or fractional quantity, or a
// negative or fractional price, is dropped and counted in DroppedItems.
func Parse(doc db.Document) (*models.BillRequest, error) {
	malformed := func(field, reason string) error {
		return errs.Malformed(models.CollectionPendingBills, doc.ID, field, reason)
	}

	plate, ok := doc.Fields.String(FieldVehiclePlate)
	if !ok || plate == "" {
		return nil, malformed(FieldVehiclePlate, "is missing")
	}
	task, ok := doc.Fields.String(FieldTaskName)
	if !ok || task == "" {
		return nil, malformed(FieldTaskName, "is missing")
	}
	rawItems, ok := doc.Fields.Slice(FieldItems)
	if !ok {
		return nil, malformed(FieldItems, "is missing or not a list")
	}

	var service int64
	if _, present := doc.Fields[FieldServiceCharge]; present {
		service, ok = doc.Fields.Int(FieldServiceCharge)
		if !ok || service < 0 {
			return nil, malformed(FieldServiceCharge, "is not a non-negative whole amount")
		}
	}

	bill := &models.BillRequest{
		ID:            doc.ID,
		VehiclePlate:  plate,
		TaskName:      task,
		ServiceCharge: service,
		Status:        models.BillPending,
	}
	bill.Description, _ = doc.Fields.String(FieldDescription)
	bill.CreatedAt, _ = doc.Fields.Time(FieldCreatedAt)
	if s, ok := doc.Fields.String(FieldStatus); ok && s != "" {
		bill.Status = models.BillStatus(s)
	}

	for i, raw := range rawItems {
		item, ok := parseItem(raw, i)
		if !ok {
			bill.DroppedItems++
			continue
		}
		bill.Items = append(bill.Items, item)
	}
	ComputeTotals(bill)
	return bill, nil
}

func parseItem(raw interface{}, index int) (models.BillItem, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return models.BillItem{}, false
	}
	f := db.Fields(m)

	qty, ok := f.Int(itemQuantity)
	if !ok || qty < 1 {
		return models.BillItem{}, false
	}
	price, ok := f.Int(itemPrice)
	if !ok || price < 0 {
		return models.BillItem{}, false
	}
	item := models.BillItem{Seq: index + 1, Quantity: qty, UnitPrice: price}
	if seq, ok := f.Int(itemSeq); ok {
		item.Seq = int(seq)
	}
	item.Name, _ = f.String(itemName)
	return item, true
}

// ComputeTotals sets Subtotal, GST and Total from the items and service charge.
func ComputeTotals(b *models.BillRequest) {
	var subtotal int64
	for _, item := range b.Items {
		subtotal += item.Amount()
	}
	b.Subtotal = subtotal
	b.GST = GST(subtotal + b.ServiceCharge)
	b.Total = subtotal + b.ServiceCharge + b.GST
}

// GST returns GSTPercent of base rounded half-up to a whole unit.
func GST(base int64) int64 {
	if base <= 0 {
		return 0
	}
	return (base*GSTPercent + 50) / 100
}
