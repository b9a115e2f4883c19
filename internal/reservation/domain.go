package reservation

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/document"
)

// Status enumerates reservation states. CONSUMED and RELEASED are terminal.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusConsumed Status = "CONSUMED"
	StatusReleased Status = "RELEASED"
)

// Reservation is the per-document claim on stock. At most one reservation
// exists per document; it answers "has this document's stock impact already
// been applied?" and makes a retried mark-as-paid operation safe.
type Reservation struct {
	ID         int64
	BusinessID int64
	DocumentID uuid.UUID
	Status     Status
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item is one aggregated product claim inside a reservation.
type Item struct {
	ProductID int64
	Quantity  int64
	UnitPrice int64
}

// ErrReservationNotFound indicates a missing reservation row.
var ErrReservationNotFound = errors.New("reservation: not found")

// AggregateLines folds a document's stocked lines into reservation items:
// quantities sum per product and the most recently seen unit price wins.
// Product order follows first appearance in the document.
func AggregateLines(doc document.Document) []Item {
	index := make(map[int64]int)
	items := make([]Item, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		if !line.Stocked || line.ProductID == 0 || line.Quantity <= 0 {
			continue
		}
		if pos, ok := index[line.ProductID]; ok {
			items[pos].Quantity += line.Quantity
			items[pos].UnitPrice = line.UnitPrice
			continue
		}
		index[line.ProductID] = len(items)
		items = append(items, Item{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	return items
}

// ItemsEqual reports whether two item sets match exactly, order included.
func ItemsEqual(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
