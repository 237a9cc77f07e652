package ingestion

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/mlevkov/tickethub/internal/domain"
)

// envelopeKeys are the wrapper keys tried, in order, when a JSON upload is
// an object instead of a bare array. Unwrapping recurses at most one level,
// so {"data":{"tickets":[...]}} parses the same as a bare array.
var envelopeKeys = []string{"ticketList", "tickets", "data"}

const maxEnvelopeDepth = 2

// Parser decodes uploaded batch files into ticket records. It fails closed:
// anything that does not yield at least one record is an InvalidDataError.
type Parser struct{}

// NewParser creates a batch parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse routes by file extension. Files without a recognized extension are
// treated as JSON, which matches how clients upload raw request bodies.
func (p *Parser) Parse(filename string, payload []byte) ([]domain.Ticket, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, domain.InvalidDataf("file is empty")
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return p.parseExcel(payload)
	default:
		return p.parseJSON(payload)
	}
}

// ticketPayload is the wire shape of one import record. Coordinates is a
// pointer so a missing object can be told apart from (0, 0).
type ticketPayload struct {
	Name        string              `json:"name"`
	Coordinates *domain.Coordinates `json:"coordinates"`
	Person      *domain.Person      `json:"person"`
	Event       *domain.Event       `json:"event"`
	Venue       *domain.Venue       `json:"venue"`
	Price       float64             `json:"price"`
	Type        string              `json:"type"`
	Discount    *float64            `json:"discount"`
	Number      int                 `json:"number"`
	Comment     string              `json:"comment"`
}

func (p *Parser) parseJSON(payload []byte) ([]domain.Ticket, error) {
	items, err := unwrapArray(payload, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.InvalidDataf("file contains no ticket records")
	}

	records := make([]domain.Ticket, 0, len(items))
	for i, item := range items {
		var wire ticketPayload
		if err := json.Unmarshal(item, &wire); err != nil {
			return nil, domain.InvalidDataf("record #%d: malformed ticket object: %v", i+1, err)
		}
		if wire.Coordinates == nil {
			return nil, domain.InvalidDataf("record #%d: ticket.coordinates is required", i+1)
		}

		records = append(records, domain.Ticket{
			Name:        wire.Name,
			Coordinates: *wire.Coordinates,
			Person:      wire.Person,
			Event:       wire.Event,
			Venue:       wire.Venue,
			Price:       wire.Price,
			Type:        domain.TicketType(wire.Type),
			Discount:    wire.Discount,
			Number:      wire.Number,
			Comment:     wire.Comment,
		})
	}
	return records, nil
}

// unwrapArray returns the ticket array inside the payload: either the
// payload itself, or the value of the first matching envelope key.
func unwrapArray(payload []byte, depth int) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, domain.InvalidDataf("file contains no ticket records")
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, domain.InvalidDataf("invalid JSON: %v", err)
		}
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, domain.InvalidDataf("invalid JSON: %v", err)
	}

	if depth >= maxEnvelopeDepth {
		return nil, domain.InvalidDataf("no ticket array found in upload")
	}
	for _, key := range envelopeKeys {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		return unwrapArray(inner, depth+1)
	}
	return nil, domain.InvalidDataf("no ticket array found in upload")
}

// excelColumns maps header labels to ticket fields. Person, event and venue
// appear as id references only; spreadsheets cannot embed nested entities.
var excelColumns = map[string]struct{}{
	"name":      {},
	"coord_x":   {},
	"coord_y":   {},
	"price":     {},
	"type":      {},
	"discount":  {},
	"number":    {},
	"comment":   {},
	"person_id": {},
	"event_id":  {},
	"venue_id":  {},
}

func (p *Parser) parseExcel(payload []byte) ([]domain.Ticket, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, domain.InvalidDataf("failed to open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.InvalidDataf("xlsx file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.InvalidDataf("failed to read rows from xlsx: %v", err)
	}
	if len(rows) < 2 {
		return nil, domain.InvalidDataf("file contains no ticket records")
	}

	columns := make(map[int]string, len(rows[0]))
	for idx, label := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(label))
		if _, known := excelColumns[name]; !known {
			return nil, domain.InvalidDataf("unknown column %q in header row", label)
		}
		columns[idx] = name
	}

	var records []domain.Ticket
	for rowIdx, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		position := len(records) + 1

		var (
			ticket   domain.Ticket
			hasCoord bool
		)
		for colIdx, cell := range row {
			name, ok := columns[colIdx]
			if !ok {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}

			switch name {
			case "name":
				ticket.Name = cell
			case "coord_x":
				x, err := strconv.Atoi(cell)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "coord_x", err)
				}
				ticket.Coordinates.X = x
				hasCoord = true
			case "coord_y":
				y, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "coord_y", err)
				}
				ticket.Coordinates.Y = y
				hasCoord = true
			case "price":
				price, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "price", err)
				}
				ticket.Price = price
			case "type":
				ticket.Type = domain.TicketType(strings.ToUpper(cell))
			case "discount":
				discount, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "discount", err)
				}
				ticket.Discount = &discount
			case "number":
				number, err := strconv.Atoi(cell)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "number", err)
				}
				ticket.Number = number
			case "comment":
				ticket.Comment = cell
			case "person_id":
				id, err := uuid.Parse(cell)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "person_id", err)
				}
				ticket.Person = &domain.Person{ID: id}
			case "event_id":
				id, err := uuid.Parse(cell)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "event_id", err)
				}
				ticket.Event = &domain.Event{ID: id}
			case "venue_id":
				id, err := uuid.Parse(cell)
				if err != nil {
					return nil, cellError(position, rowIdx+2, "venue_id", err)
				}
				ticket.Venue = &domain.Venue{ID: id}
			}
		}

		if !hasCoord {
			return nil, domain.InvalidDataf("record #%d (row %d): ticket.coordinates is required", position, rowIdx+2)
		}
		records = append(records, ticket)
	}

	if len(records) == 0 {
		return nil, domain.InvalidDataf("file contains no ticket records")
	}
	return records, nil
}

func cellError(position, rowNumber int, column string, err error) error {
	return domain.InvalidDataf("record #%d (row %d): column %s: %v", position, rowNumber, column, err)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
