package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the lifecycle state of a file import.
type ImportStatus string

const (
	ImportStatusPending ImportStatus = "PENDING"
	ImportStatusSuccess ImportStatus = "SUCCESS"
	ImportStatusFailed  ImportStatus = "FAILED"
)

// ImportFileLog is the durable audit record of one bulk import. It is created
// as PENDING before any record persistence starts and moved to SUCCESS or
// FAILED exactly once, when the outcome of the import transaction is known.
type ImportFileLog struct {
	ID               uuid.UUID    `json:"id"`
	OriginalFilename string       `json:"originalFilename"`
	StorageKey       string       `json:"storageKey"`
	ContentType      string       `json:"contentType"`
	Size             int64        `json:"size"`
	Status           ImportStatus `json:"status"`
	Requested        int          `json:"requested"`
	Imported         int          `json:"imported"`
	ErrorMessage     string       `json:"errorMessage,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
	TicketIDs        []uuid.UUID  `json:"ticketIds,omitempty"`
}

// ImportResult is returned to the caller of a successful bulk import.
type ImportResult struct {
	Requested  int         `json:"requested"`
	Imported   int         `json:"imported"`
	TicketIDs  []uuid.UUID `json:"ticketIds"`
	LogID      uuid.UUID   `json:"logId"`
	StorageKey string      `json:"storageKey"`
	Filename   string      `json:"filename"`
}
