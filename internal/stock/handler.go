package stock

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
	"github.com/meridian-erp/meridian/internal/shared"
)

// Handler wires HTTP endpoints for the movement log.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler constructs the stock handler. The idempotency store is
// optional; when present, a client-supplied Idempotency-Key header guards
// against double-submitted manual entries.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleRecordMovement)
	r.Get("/card", h.handleStockCard)
	r.Get("/card/export", h.handleStockCardExport)
	r.Get("/valuation", h.handleValuation)
}

func (h *Handler) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req RecordMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "stock"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "movement already recorded for this key")
				return
			}
			httpx.RespondError(w, err)
			return
		}
	}
	movement, err := h.service.RecordMovement(r.Context(), MovementInput{
		BusinessID: req.BusinessID,
		ProductID:  req.ProductID,
		Kind:       MovementKind(req.Kind),
		Source:     SourceManual,
		Quantity:   req.Quantity,
		UnitCost:   req.UnitCost,
		OccurredAt: req.OccurredAt,
		ActorID:    req.ActorID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidQuantity) || errors.Is(err, ErrInvalidUnitCost) || errors.Is(err, ErrInvalidKind) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("record movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	filter, err := cardFilterFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.logger.Error("stock card", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCardResponse(entries))
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	businessID := queryInt(r, "business_id")
	productID := queryInt(r, "product_id")
	if businessID <= 0 || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "business_id and product_id required")
		return
	}
	cost, err := h.service.AverageCost(r.Context(), businessID, productID)
	if err != nil {
		h.logger.Error("valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ValuationResponse{BusinessID: businessID, ProductID: productID, UnitCost: cost})
}

func cardFilterFromQuery(r *http.Request) (CardFilter, error) {
	filter := CardFilter{
		BusinessID: queryInt(r, "business_id"),
		ProductID:  queryInt(r, "product_id"),
	}
	if filter.BusinessID <= 0 || filter.ProductID <= 0 {
		return CardFilter{}, fmt.Errorf("business_id and product_id required")
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return CardFilter{}, fmt.Errorf("invalid from date: %w", err)
		}
		filter.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return CardFilter{}, fmt.Errorf("invalid to date: %w", err)
		}
		filter.To = t
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	return filter, nil
}

func queryInt(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return v
}
