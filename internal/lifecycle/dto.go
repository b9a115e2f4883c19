package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/document"
)

// DocumentRequest carries the document state supplied by the surrounding
// application at a lifecycle transition.
type DocumentRequest struct {
	BusinessID int64                 `json:"business_id" validate:"required,gt=0"`
	Number     string                `json:"number" validate:"omitempty,max=50"`
	Status     string                `json:"status" validate:"omitempty,oneof=DRAFT PAID CANCELLED"`
	IssuedAt   time.Time             `json:"issued_at,omitempty"`
	SettledAt  *time.Time            `json:"settled_at,omitempty"`
	Lines      []DocumentLineRequest `json:"lines" validate:"dive"`
}

// DocumentLineRequest is one document line.
type DocumentLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice int64 `json:"unit_price" validate:"gte=0"`
	Stocked   bool  `json:"stocked"`
}

// PayRequest carries the acting user for a payment transition.
type PayRequest struct {
	Document DocumentRequest `json:"document" validate:"required"`
	ActorID  int64           `json:"actor_id" validate:"required,gt=0"`
}

func (req DocumentRequest) toDomain(id uuid.UUID) document.Document {
	doc := document.Document{
		ID:         id,
		BusinessID: req.BusinessID,
		Number:     req.Number,
		Status:     document.Status(req.Status),
		IssuedAt:   req.IssuedAt,
		SettledAt:  req.SettledAt,
	}
	if doc.Status == "" {
		doc.Status = document.StatusDraft
	}
	for _, line := range req.Lines {
		doc.Lines = append(doc.Lines, document.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Stocked:   line.Stocked,
		})
	}
	return doc
}
