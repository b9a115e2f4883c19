package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/billing/schedule"
	"github.com/meridian-erp/meridian/internal/document"
	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/reservation"
)

// ReservationPort is the slice of the reservation manager the lifecycle
// service drives.
type ReservationPort interface {
	UpsertFromDocument(ctx context.Context, doc document.Document) (*reservation.Reservation, error)
	Release(ctx context.Context, documentID uuid.UUID) error
	Consume(ctx context.Context, doc document.Document, actorID int64) (*reservation.Reservation, error)
}

// LedgerPort posts the consumption entry after a successful consume.
type LedgerPort interface {
	PostForDocumentConsumption(ctx context.Context, businessID int64, documentID uuid.UUID, items []ledger.ConsumedItem) (*ledger.Entry, error)
}

// Service glues document lifecycle transitions to the engine. The
// surrounding application calls it when a document is saved, cancelled or
// paid; every step below is individually idempotent, so the caller may
// retry the whole transition.
type Service struct {
	reservations ReservationPort
	ledger       LedgerPort
}

// NewService builds Service.
func NewService(reservations ReservationPort, ledgerPort LedgerPort) *Service {
	return &Service{reservations: reservations, ledger: ledgerPort}
}

// HandleSaved refreshes the document's reservation after create or update.
func (s *Service) HandleSaved(ctx context.Context, doc document.Document) (*reservation.Reservation, error) {
	if doc.Status == document.StatusCancelled {
		return nil, s.reservations.Release(ctx, doc.ID)
	}
	return s.reservations.UpsertFromDocument(ctx, doc)
}

// HandleCancelled releases the reservation when a document is cancelled or
// deleted.
func (s *Service) HandleCancelled(ctx context.Context, documentID uuid.UUID) error {
	return s.reservations.Release(ctx, documentID)
}

// HandlePaid consumes the reservation and posts the COGS entry. Both legs
// tolerate repeats: consume returns the CONSUMED reservation unchanged and
// the poster returns the existing entry.
func (s *Service) HandlePaid(ctx context.Context, doc document.Document, actorID int64) (*reservation.Reservation, *ledger.Entry, error) {
	res, err := s.reservations.Consume(ctx, doc, actorID)
	if err != nil {
		return nil, nil, err
	}
	if res == nil || len(res.Items) == 0 {
		return res, nil, nil
	}
	items := make([]ledger.ConsumedItem, 0, len(res.Items))
	for _, item := range res.Items {
		items = append(items, ledger.ConsumedItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	entry, err := s.ledger.PostForDocumentConsumption(ctx, doc.BusinessID, doc.ID, items)
	if err != nil {
		return nil, nil, err
	}
	return res, entry, nil
}

// PreviewRecurring enumerates upcoming billing dates for a monthly
// recurring document.
func (s *Service) PreviewRecurring(ctx context.Context, start time.Time, end *time.Time, dayOfMonth int, from, to time.Time) ([]time.Time, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return nil, errors.New("lifecycle: day of month out of range")
	}
	return schedule.EnumerateMonthlyDates(start, end, dayOfMonth, from, to), nil
}
