package ingestion

import (
	"strings"
	"testing"

	"github.com/mlevkov/tickethub/internal/domain"
)

const validRecord = `{
	"name": "Gate A",
	"coordinates": {"x": 5, "y": 3.5},
	"price": 120.0,
	"type": "VIP",
	"number": 2
}`

func TestParseBareArray(t *testing.T) {
	parser := NewParser()

	records, err := parser.Parse("batch.json", []byte("["+validRecord+"]"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.Name != "Gate A" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Coordinates.X != 5 || got.Coordinates.Y != 3.5 {
		t.Errorf("coordinates = %+v", got.Coordinates)
	}
	if got.Type != domain.TicketTypeVIP {
		t.Errorf("type = %q", got.Type)
	}
}

func TestParseEnvelopes(t *testing.T) {
	parser := NewParser()

	cases := []struct {
		name    string
		payload string
	}{
		{"ticketList", `{"ticketList": [` + validRecord + `]}`},
		{"tickets", `{"tickets": [` + validRecord + `]}`},
		{"data", `{"data": [` + validRecord + `]}`},
		{"nested data.tickets", `{"data": {"tickets": [` + validRecord + `]}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := parser.Parse("batch.json", []byte(tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("expected 1 record, got %d", len(records))
			}
		})
	}
}

func TestParseEnvelopeKeyOrder(t *testing.T) {
	parser := NewParser()

	// ticketList wins over tickets when both are present.
	payload := `{"tickets": [], "ticketList": [` + validRecord + `]}`
	records, err := parser.Parse("batch.json", []byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	parser := NewParser()

	cases := []struct {
		name    string
		payload string
	}{
		{"empty file", ""},
		{"whitespace only", "   \n"},
		{"invalid json", "{not json"},
		{"empty array", "[]"},
		{"empty envelope", `{"tickets": []}`},
		{"no array anywhere", `{"other": [` + validRecord + `]}`},
		{"scalar envelope value", `{"tickets": 5}`},
		{"too deep", `{"data": {"data": {"tickets": [` + validRecord + `]}}}`},
		{"missing coordinates", `[{"name": "x", "price": 1, "type": "VIP", "number": 1}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.Parse("batch.json", []byte(tc.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if !domain.IsInvalidData(err) {
				t.Fatalf("expected InvalidDataError, got %v", err)
			}
		})
	}
}

func TestParseRecordPositionInError(t *testing.T) {
	parser := NewParser()

	payload := `[` + validRecord + `, {"name": "no coords", "price": 1, "type": "VIP", "number": 1}]`
	_, err := parser.Parse("batch.json", []byte(payload))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "record #2") {
		t.Fatalf("error should name the failing record, got %q", err)
	}
}

func TestParseUnknownExtensionTreatedAsJSON(t *testing.T) {
	parser := NewParser()

	records, err := parser.Parse("upload.bin", []byte("["+validRecord+"]"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}
