package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/document"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByDocument(ctx context.Context, documentID uuid.UUID) (Reservation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the reservation state machine.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service. Audit is optional.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetByDocument returns the reservation for a document, if any.
func (s *Service) GetByDocument(ctx context.Context, documentID uuid.UUID) (Reservation, error) {
	return s.repo.GetByDocument(ctx, documentID)
}

// UpsertFromDocument builds or refreshes the reservation from the
// document's current stocked lines. An empty aggregation releases any
// existing reservation and returns nil. The item set is always replaced as
// a unit, never patched.
func (s *Service) UpsertFromDocument(ctx context.Context, doc document.Document) (*Reservation, error) {
	if doc.ID == uuid.Nil || doc.BusinessID == 0 {
		return nil, errors.New("reservation: document identity required")
	}
	agg := AggregateLines(doc)
	var out *Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := refresh(ctx, tx, doc, agg)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release unconditionally moves the reservation to RELEASED. Missing
// reservations and repeated calls are no-ops.
func (s *Service) Release(ctx context.Context, documentID uuid.UUID) error {
	if documentID == uuid.Nil {
		return errors.New("reservation: document id required")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetByDocumentForUpdate(ctx, documentID)
		if err != nil {
			if errors.Is(err, ErrReservationNotFound) {
				return nil
			}
			return err
		}
		if res.Status == StatusReleased {
			return nil
		}
		return tx.SetStatus(ctx, res.ID, StatusReleased)
	})
}

// Consume converts the reservation into ISSUE movements exactly once.
// A stale or missing reservation is recomputed from the document first; an
// already CONSUMED reservation is returned unchanged with no new
// movements. Movement creation and the status flip share one transaction,
// so a crash in between cannot leave the reservation re-consumable.
func (s *Service) Consume(ctx context.Context, doc document.Document, actorID int64) (*Reservation, error) {
	if doc.ID == uuid.Nil || doc.BusinessID == 0 {
		return nil, errors.New("reservation: document identity required")
	}
	agg := AggregateLines(doc)
	var out *Reservation
	var issued int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetByDocumentForUpdate(ctx, doc.ID)
		found := true
		if err != nil {
			if !errors.Is(err, ErrReservationNotFound) {
				return err
			}
			found = false
		}
		if found && res.Status == StatusConsumed {
			out = &res
			return nil
		}
		if !found || res.Status != StatusActive || !ItemsEqual(res.Items, agg) {
			refreshed, err := refresh(ctx, tx, doc, agg)
			if err != nil {
				return err
			}
			if refreshed == nil {
				return nil
			}
			res = *refreshed
		}
		occurredAt := s.now().UTC()
		if doc.SettledAt != nil {
			occurredAt = *doc.SettledAt
		}
		for _, item := range res.Items {
			price := item.UnitPrice
			input := stock.MovementInput{
				BusinessID: res.BusinessID,
				ProductID:  item.ProductID,
				Kind:       stock.MovementKindIssue,
				Source:     stock.SourceSale,
				Quantity:   item.Quantity,
				UnitCost:   &price,
				ActorID:    actorID,
			}
			if err := input.Validate(); err != nil {
				return err
			}
			if _, err := tx.InsertIssueMovement(ctx, input, occurredAt); err != nil {
				return err
			}
			issued++
		}
		if err := tx.SetStatus(ctx, res.ID, StatusConsumed); err != nil {
			return err
		}
		res.Status = StatusConsumed
		out = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.audit != nil && issued > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "reservation.consume",
			Entity:   "stock_reservation",
			EntityID: doc.ID.String(),
			Meta: map[string]any{
				"business_id": doc.BusinessID,
				"movements":   issued,
			},
			At: s.now(),
		})
	}
	return out, nil
}

// refresh applies the upsert semantics inside an open transaction.
func refresh(ctx context.Context, tx TxRepository, doc document.Document, agg []Item) (*Reservation, error) {
	res, err := tx.GetByDocumentForUpdate(ctx, doc.ID)
	if err != nil {
		if !errors.Is(err, ErrReservationNotFound) {
			return nil, err
		}
		if len(agg) == 0 {
			return nil, nil
		}
		created, err := tx.Insert(ctx, doc.BusinessID, doc.ID, StatusActive)
		if err != nil {
			return nil, fmt.Errorf("reservation: create: %w", err)
		}
		res = created
	} else if len(agg) == 0 {
		if res.Status != StatusReleased {
			if err := tx.SetStatus(ctx, res.ID, StatusReleased); err != nil {
				return nil, err
			}
		}
		return nil, nil
	} else if res.Status != StatusActive {
		if err := tx.SetStatus(ctx, res.ID, StatusActive); err != nil {
			return nil, err
		}
		res.Status = StatusActive
	}
	if err := tx.ReplaceItems(ctx, res.ID, agg); err != nil {
		return nil, err
	}
	res.Items = agg
	return &res, nil
}
