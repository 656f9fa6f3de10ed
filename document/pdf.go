// Package document generates course certificates and order invoices as PDF.
package document

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	platform = "RaiseUP Professional Training Platform"
	website  = "www.raiseup.com"
)

type CertificateData struct {
	Number         string
	StudentName    string
	CourseTitle    string
	DurationHours  int
	CompletedAt    time.Time
	InstructorName string
}

type InvoiceItem struct {
	Description string
	Quantity    int
	UnitCents   int64
}

func (it InvoiceItem) TotalCents() int64 { return it.UnitCents * int64(it.Quantity) }

type InvoiceData struct {
	Number        string
	IssuedAt      time.Time
	CustomerName  string
	CustomerEmail string
	Items         []InvoiceItem
	TaxCents      int64
	PaymentMethod string
	TransactionID string
}

func (d InvoiceData) SubtotalCents() int64 {
	var sum int64
	for _, it := range d.Items {
		sum += it.TotalCents()
	}
	return sum
}

func (d InvoiceData) TotalCents() int64 { return d.SubtotalCents() + d.TaxCents }

// InvoiceNumber derives the invoice number from an order id.
func InvoiceNumber(orderID string) string {
	n := orderID
	if len(n) > 8 {
		n = n[:8]
	}
	return "INV-" + strings.ToUpper(n)
}

// Money formats cents as dollars with two decimals.
func Money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func render(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Certificate lays out a landscape A4 certificate of completion.
func Certificate(d CertificateData) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate "+d.Number, true)
	pdf.SetCreator(platform, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	w, h := pdf.GetPageSize()

	pdf.SetFillColor(248, 250, 252)
	pdf.Rect(0, 0, w, h, "F")
	pdf.SetDrawColor(59, 130, 246)
	pdf.SetLineWidth(2)
	pdf.Rect(10, 10, w-20, h-20, "D")
	pdf.SetDrawColor(147, 197, 253)
	pdf.SetLineWidth(1)
	pdf.Rect(15, 15, w-30, h-30, "D")

	centered := func(y float64, size float64, style string, r, g, b int, text string) {
		pdf.SetFont("Helvetica", style, size)
		pdf.SetTextColor(r, g, b)
		pdf.SetXY(0, y)
		pdf.CellFormat(w, size/2, tr(text), "", 0, "C", false, 0, "")
	}

	centered(32, 32, "B", 30, 41, 59, "CERTIFICATE OF COMPLETION")
	centered(50, 16, "", 71, 85, 105, "This is to certify that")
	centered(66, 28, "B", 37, 99, 235, d.StudentName)
	centered(85, 16, "", 71, 85, 105, "has successfully completed the course")
	centered(101, 24, "B", 30, 41, 59, d.CourseTitle)
	centered(120, 14, "", 71, 85, 105, "Duration: "+strconv.Itoa(d.DurationHours)+" hours")
	centered(130, 14, "", 71, 85, 105, "Completion Date: "+d.CompletedAt.Format("January 2, 2006"))

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(50, 160, "Instructor:")
	pdf.Text(50, 170, tr(d.InstructorName))
	pdf.Text(w-100, 160, "Certificate ID:")
	pdf.Text(w-100, 170, d.Number)

	centered(h-24, 10, "", 148, 163, 184, platform)
	centered(h-19, 10, "", 148, 163, 184, website)

	return render(pdf)
}

// Invoice lays out a portrait A4 invoice.
func Invoice(d InvoiceData) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+d.Number, true)
	pdf.SetCreator(platform, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	w, _ := pdf.GetPageSize()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(37, 99, 235)
	pdf.Text(20, 30, "RaiseUP")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(71, 85, 105)
	pdf.Text(20, 40, "Professional Training Platform")
	pdf.Text(20, 50, "info@raiseup.com")

	right := func(y float64, text string) {
		pdf.SetXY(w-120, y-5)
		pdf.CellFormat(100, 6, text, "", 0, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetTextColor(30, 41, 59)
	right(30, "INVOICE")
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(71, 85, 105)
	right(45, "Invoice #: "+d.Number)
	right(55, "Date: "+d.IssuedAt.Format("2006-01-02"))

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(30, 41, 59)
	pdf.Text(20, 80, "Bill To:")
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(71, 85, 105)
	pdf.Text(20, 90, tr(d.CustomerName))
	pdf.Text(20, 100, d.CustomerEmail)

	cols := []float64{w - 40 - 90, 20, 35, 35}
	pdf.SetXY(20, 115)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(37, 99, 235)
	pdf.SetTextColor(255, 255, 255)
	for i, head := range []string{"Description", "Qty", "Unit Price", "Total"} {
		align := "C"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(cols[i], 10, head, "", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(71, 85, 105)
	pdf.SetFillColor(248, 250, 252)
	for i, it := range d.Items {
		fill := i%2 == 0
		pdf.SetX(20)
		pdf.CellFormat(cols[0], 10, tr(it.Description), "", 0, "L", fill, 0, "")
		pdf.CellFormat(cols[1], 10, strconv.Itoa(it.Quantity), "", 0, "C", fill, 0, "")
		pdf.CellFormat(cols[2], 10, Money(it.UnitCents), "", 0, "C", fill, 0, "")
		pdf.CellFormat(cols[3], 10, Money(it.TotalCents()), "", 1, "R", fill, 0, "")
	}

	pdf.Ln(10)
	total := func(label, value string) {
		pdf.SetX(w - 100)
		pdf.CellFormat(40, 8, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, value, "", 1, "R", false, 0, "")
	}
	total("Subtotal:", Money(d.SubtotalCents()))
	total("Tax:", Money(d.TaxCents))
	pdf.SetFont("Helvetica", "B", 14)
	total("Total:", Money(d.TotalCents()))

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetX(20)
	pdf.CellFormat(0, 8, "Payment Method: "+d.PaymentMethod, "", 1, "L", false, 0, "")
	pdf.SetX(20)
	pdf.CellFormat(0, 8, "Transaction ID: "+d.TransactionID, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(148, 163, 184)
	pdf.SetXY(0, 275)
	pdf.CellFormat(w, 6, "Thank you for your business!", "", 0, "C", false, 0, "")

	return render(pdf)
}
