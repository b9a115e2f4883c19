package stock

import (
	"errors"
	"time"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementKindReceive represents goods entering stock.
	MovementKindReceive MovementKind = "RECEIVE"
	// MovementKindIssue represents goods leaving stock.
	MovementKindIssue MovementKind = "ISSUE"
	// MovementKindAdjust represents a manual correction in either direction.
	MovementKindAdjust MovementKind = "ADJUST"
)

// MovementSource identifies what produced a movement.
type MovementSource string

const (
	// SourceManual marks movements entered by hand.
	SourceManual MovementSource = "MANUAL"
	// SourceSale marks movements emitted by reservation consumption.
	SourceSale MovementSource = "SALE"
)

// Movement is one append-only row of the movement log. Rows are never
// updated or deleted; corrections are recorded as new ADJUST movements.
type Movement struct {
	ID         int64
	BusinessID int64
	ProductID  int64
	Kind       MovementKind
	Source     MovementSource
	// Quantity is always stored positive for RECEIVE/ISSUE; the kind
	// carries the direction. ADJUST quantity may be negative.
	Quantity   int64
	UnitCost   *int64
	OccurredAt time.Time
	CreatedBy  int64
	CreatedAt  time.Time
}

// MovementInput describes a movement to record.
type MovementInput struct {
	BusinessID int64
	ProductID  int64
	Kind       MovementKind
	Source     MovementSource
	Quantity   int64
	UnitCost   *int64
	OccurredAt time.Time
	ActorID    int64
}

// CardEntry is one line of the stock card report for a product.
type CardEntry struct {
	MovementID int64
	Kind       MovementKind
	Source     MovementSource
	OccurredAt time.Time
	QtyIn      int64
	QtyOut     int64
	BalanceQty int64
	UnitCost   *int64
}

// CardFilter narrows stock card queries.
type CardFilter struct {
	BusinessID int64
	ProductID  int64
	From       time.Time
	To         time.Time
	Limit      int
}

// ErrInvalidQuantity indicates a zero quantity or a sign not allowed for the kind.
var ErrInvalidQuantity = errors.New("stock: quantity invalid for movement kind")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("stock: unit cost must be >= 0")

// ErrInvalidKind indicates an unknown movement kind.
var ErrInvalidKind = errors.New("stock: unknown movement kind")

// Validate checks the kind/quantity-sign constraints before any write.
func (in MovementInput) Validate() error {
	if in.BusinessID == 0 || in.ProductID == 0 {
		return errors.New("stock: business and product required")
	}
	switch in.Kind {
	case MovementKindReceive, MovementKindIssue:
		if in.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	case MovementKindAdjust:
		if in.Quantity == 0 {
			return ErrInvalidQuantity
		}
	default:
		return ErrInvalidKind
	}
	if in.UnitCost != nil && *in.UnitCost < 0 {
		return ErrInvalidUnitCost
	}
	return nil
}
