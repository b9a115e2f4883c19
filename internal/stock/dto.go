package stock

import "time"

// RecordMovementRequest is the JSON payload for manual movement entry.
type RecordMovementRequest struct {
	BusinessID int64     `json:"business_id" validate:"required,gt=0"`
	ProductID  int64     `json:"product_id" validate:"required,gt=0"`
	Kind       string    `json:"kind" validate:"required,oneof=RECEIVE ISSUE ADJUST"`
	Quantity   int64     `json:"quantity" validate:"required"`
	UnitCost   *int64    `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
	ActorID    int64     `json:"actor_id" validate:"required,gt=0"`
}

// MovementResponse mirrors a persisted movement.
type MovementResponse struct {
	ID         int64     `json:"id"`
	BusinessID int64     `json:"business_id"`
	ProductID  int64     `json:"product_id"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source"`
	Quantity   int64     `json:"quantity"`
	UnitCost   *int64    `json:"unit_cost,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ValuationResponse reports the weighted-average cost of a product.
type ValuationResponse struct {
	BusinessID int64 `json:"business_id"`
	ProductID  int64 `json:"product_id"`
	UnitCost   int64 `json:"unit_cost"`
}

// CardEntryResponse is one stock card row.
type CardEntryResponse struct {
	MovementID int64     `json:"movement_id"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
	QtyIn      int64     `json:"qty_in"`
	QtyOut     int64     `json:"qty_out"`
	BalanceQty int64     `json:"balance_qty"`
	UnitCost   *int64    `json:"unit_cost,omitempty"`
}

func toMovementResponse(m Movement) MovementResponse {
	return MovementResponse{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		ProductID:  m.ProductID,
		Kind:       string(m.Kind),
		Source:     string(m.Source),
		Quantity:   m.Quantity,
		UnitCost:   m.UnitCost,
		OccurredAt: m.OccurredAt,
	}
}

func toCardResponse(entries []CardEntry) []CardEntryResponse {
	out := make([]CardEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, CardEntryResponse{
			MovementID: e.MovementID,
			Kind:       string(e.Kind),
			Source:     string(e.Source),
			OccurredAt: e.OccurredAt,
			QtyIn:      e.QtyIn,
			QtyOut:     e.QtyOut,
			BalanceQty: e.BalanceQty,
			UnitCost:   e.UnitCost,
		})
	}
	return out
}
