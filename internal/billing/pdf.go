package billing

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/phpdave11/gofpdf"
	"github.com/ukydev/fleet-manager/internal/models"
)

// RenderPDF lays out bill as a one-page A4 document for managers to file.
func RenderPDF(b *models.BillRequest) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Maintenance bill "+b.ID, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "MAINTENANCE BILL")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Bill       : "+b.ID)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Vehicle    : "+b.VehiclePlate)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Task       : "+b.TaskName)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Status     : "+string(b.Status))
	pdf.Ln(7)
	if !b.CreatedAt.IsZero() {
		pdf.Cell(0, 7, "Raised     : "+b.CreatedAt.Format("2006-01-02 15:04"))
		pdf.Ln(7)
	}
	if b.Description != "" {
		pdf.MultiCell(0, 6, b.Description, "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(15, 8, "#", "1", 0, "C", false, 0, "")
	pdf.CellFormat(85, 8, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range b.Items {
		pdf.CellFormat(15, 7, strconv.Itoa(item.Seq), "1", 0, "C", false, 0, "")
		pdf.CellFormat(85, 7, item.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, strconv.FormatInt(item.Quantity, 10), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, formatAmount(item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, formatAmount(item.Amount()), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	summary := []struct {
		label  string
		amount int64
	}{
		{"Subtotal", b.Subtotal},
		{"Service charge", b.ServiceCharge},
		{fmt.Sprintf("GST (%d%%)", GSTPercent), b.GST},
	}
	for _, row := range summary {
		pdf.CellFormat(150, 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, formatAmount(row.amount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(150, 8, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, formatAmount(b.Total), "", 1, "R", false, 0, "")

	if b.DroppedItems > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, fmt.Sprintf("%d invalid line item(s) excluded from totals", b.DroppedItems))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render bill %s: %w", b.ID, err)
	}
	return buf.Bytes(), nil
}

// formatAmount renders whole rupees with thousands separators, e.g. "Rs. 13,100".
func formatAmount(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return "Rs. " + sign + string(out)
}
