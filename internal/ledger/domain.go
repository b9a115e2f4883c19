package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceKind tags the event family a ledger entry originates from.
type SourceKind string

const (
	// SourceKindMovement keys entries produced by direct stock movements.
	SourceKindMovement SourceKind = "MOVEMENT"
	// SourceKindDocumentConsumption keys the COGS entry of a sales document.
	SourceKindDocumentConsumption SourceKind = "DOCUMENT_CONSUMPTION"
)

// SourceRef is the tagged identity of the originating business event. The
// (kind, id) pair is unique across the ledger: one entry per event.
type SourceRef struct {
	Kind SourceKind
	ID   string
}

// MovementRef builds the source key for a stock movement.
func MovementRef(movementID int64) SourceRef {
	return SourceRef{Kind: SourceKindMovement, ID: fmt.Sprintf("%d", movementID)}
}

// DocumentConsumptionRef builds the source key for a document's stock consumption.
func DocumentConsumptionRef(documentID uuid.UUID) SourceRef {
	return SourceRef{Kind: SourceKindDocumentConsumption, ID: documentID.String()}
}

// Line is one debit or credit leg of an entry. Amounts are minor units.
type Line struct {
	AccountCode string
	Debit       int64
	Credit      int64
	Metadata    map[string]any
}

// Entry is one balanced double-entry record.
type Entry struct {
	ID         int64
	BusinessID int64
	OccurredAt time.Time
	Memo       string
	Source     SourceRef
	Lines      []Line
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ChartOfAccounts holds the three account codes the engine posts against.
type ChartOfAccounts struct {
	BusinessID    int64
	InventoryCode string
	CashCode      string
	COGSCode      string
}

// Default account codes assigned when a business is first read.
const (
	DefaultInventoryCode = "1400"
	DefaultCashCode      = "1000"
	DefaultCOGSCode      = "5000"
)

// ErrUnbalancedEntry signals a debit/credit mismatch. This is a defect in
// the caller, not bad user input: it aborts the enclosing transaction and
// must never be silently corrected.
var ErrUnbalancedEntry = errors.New("ledger: entry debits do not equal credits")

// ErrEntryNotFound indicates no entry exists for a source key.
var ErrEntryNotFound = errors.New("ledger: entry not found")

// EnsureBalanced asserts money conservation over a line set before any
// entry is persisted.
func EnsureBalanced(lines []Line) error {
	var debit, credit int64
	for _, line := range lines {
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: negative amount on account %s", ErrUnbalancedEntry, line.AccountCode)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return fmt.Errorf("%w: debit %d credit %d", ErrUnbalancedEntry, debit, credit)
	}
	return nil
}
