// Package export renders the current ticket inventory as downloadable
// spreadsheet files.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mlevkov/tickethub/internal/domain"
	"github.com/mlevkov/tickethub/internal/repository"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var columns = []string{
	"id", "name", "coord_x", "coord_y", "created_at",
	"price", "type", "discount", "number", "comment",
	"person_id", "event", "venue",
}

// Service renders ticket exports.
type Service struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// NewService wires an export service.
func NewService(tickets repository.TicketRepository) *Service {
	return &Service{tickets: tickets, now: time.Now}
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render exports every ticket in the requested format.
func (s *Service) Render(ctx context.Context, format Format) (File, error) {
	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return File{}, fmt.Errorf("failed to load tickets for export: %w", err)
	}

	stamp := s.now().Format("2006-01-02")
	switch format {
	case FormatCSV:
		data, err := renderCSV(tickets)
		if err != nil {
			return File{}, err
		}
		return File{
			Name:        fmt.Sprintf("tickets-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case FormatXLSX:
		data, err := renderXLSX(tickets)
		if err != nil {
			return File{}, err
		}
		return File{
			Name:        fmt.Sprintf("tickets-%s.xlsx", stamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		return File{}, fmt.Errorf("unsupported export format %q", format)
	}
}

func renderCSV(tickets []domain.Ticket) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, ticket := range tickets {
		if err := writer.Write(ticketRow(ticket)); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(tickets []domain.Ticket) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for col, label := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, label); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for rowIdx, ticket := range tickets {
		for colIdx, value := range ticketRow(ticket) {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func ticketRow(ticket domain.Ticket) []string {
	discount := ""
	if ticket.Discount != nil {
		discount = strconv.FormatFloat(*ticket.Discount, 'f', -1, 64)
	}
	personID := ""
	if ticket.Person != nil {
		personID = ticket.Person.ID.String()
	}
	eventName := ""
	if ticket.Event != nil {
		eventName = ticket.Event.Name
	}
	venueName := ""
	if ticket.Venue != nil {
		venueName = ticket.Venue.Name
	}

	return []string{
		ticket.ID.String(),
		ticket.Name,
		strconv.Itoa(ticket.Coordinates.X),
		strconv.FormatFloat(ticket.Coordinates.Y, 'f', -1, 64),
		ticket.CreationDate.Format(time.RFC3339),
		strconv.FormatFloat(ticket.Price, 'f', -1, 64),
		string(ticket.Type),
		discount,
		strconv.Itoa(ticket.Number),
		ticket.Comment,
		personID,
		eventName,
		venueName,
	}
}
