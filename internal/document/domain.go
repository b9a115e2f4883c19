package document

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates sales document lifecycle values.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Document is the engine's view of a sales document. The surrounding
// application owns the full record; the engine only needs the identity,
// the settlement date and the stocked lines.
type Document struct {
	ID         uuid.UUID
	BusinessID int64
	Number     string
	Status     Status
	IssuedAt   time.Time
	SettledAt  *time.Time
	Lines      []Line
}

// Line is one document line item.
type Line struct {
	ProductID int64
	Quantity  int64
	UnitPrice int64
	// Stocked marks lines that move physical inventory. Service-type lines
	// never reserve or consume stock.
	Stocked bool
}
