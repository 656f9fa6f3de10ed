package document

import (
	"bytes"
	"testing"
	"time"
)

func strp(s string) *string { return &s }

func TestCertificate(t *testing.T) {
	pdf, err := Certificate(CertificateData{
		Number:         "RU-7K2QH8M3XA",
		StudentName:    "Jeanne Étienne",
		CourseTitle:    "Go for backend developers",
		DurationHours:  12,
		CompletedAt:    time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC),
		InstructorName: "Jane Smith",
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", pdf[:16])
	}
}

func TestInvoice(t *testing.T) {
	d := InvoiceData{
		Number:        InvoiceNumber("3f2a9c1e-8d4b-4e2a-9f1c-0a1b2c3d4e5f"),
		IssuedAt:      time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC),
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		Items: []InvoiceItem{
			{Description: "Go basics", Quantity: 1, UnitCents: 9999},
			{Description: "SQL in depth", Quantity: 2, UnitCents: 4950},
		},
		PaymentMethod: "stripe",
		TransactionID: "cs_test_123",
	}

	if d.Number != "INV-3F2A9C1E" {
		t.Fatalf("unexpected invoice number %q", d.Number)
	}
	if got := d.TotalCents(); got != 19899 {
		t.Fatalf("expected a total of 19899 cents, got %d", got)
	}

	pdf, err := Invoice(d)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", pdf[:16])
	}
}

func TestMoney(t *testing.T) {
	tests := map[int64]string{
		0:     "$0.00",
		5:     "$0.05",
		9999:  "$99.99",
		12000: "$120.00",
		-250:  "-$2.50",
	}
	for cents, want := range tests {
		if got := Money(cents); got != want {
			t.Errorf("Money(%d): expected %s, got %s", cents, want, got)
		}
	}
}

func TestInvoiceNumberShortID(t *testing.T) {
	if got := InvoiceNumber("abc"); got != "INV-ABC" {
		t.Fatalf("unexpected invoice number %q", got)
	}
}

func TestCompletionData(t *testing.T) {
	now := time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC)
	done := now.Add(-time.Hour)

	c := completion{
		StudentEmail:     "ada@example.com",
		StudentFirstName: strp("Ada"),
		CourseTitle:      "Go basics",
		CompletedAt:      &done,
	}

	d := c.data("RU-1", now)
	if d.StudentName != "Ada" {
		t.Fatalf("unexpected student name %q", d.StudentName)
	}
	if d.InstructorName != "RaiseUP Instructor" {
		t.Fatalf("unexpected instructor %q", d.InstructorName)
	}
	if !d.CompletedAt.Equal(done) {
		t.Fatalf("expected the last lesson completion date, got %s", d.CompletedAt)
	}
	if d.DurationHours != 0 {
		t.Fatalf("expected no duration, got %d", d.DurationHours)
	}
}
