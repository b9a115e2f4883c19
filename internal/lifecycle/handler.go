package lifecycle

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
	"github.com/meridian-erp/meridian/internal/reservation"
)

// Handler exposes the lifecycle transition endpoints consumed by the
// surrounding application.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the lifecycle handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers lifecycle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Put("/{documentID}/reservation", h.handleSaved)
	r.Post("/{documentID}/cancel", h.handleCancelled)
	r.Post("/{documentID}/pay", h.handlePaid)
	r.Get("/schedule/preview", h.handleSchedulePreview)
}

type reservationResponse struct {
	ID         int64                     `json:"id"`
	BusinessID int64                     `json:"business_id"`
	DocumentID uuid.UUID                 `json:"document_id"`
	Status     string                    `json:"status"`
	Items      []reservationItemResponse `json:"items"`
}

type reservationItemResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

func toReservationResponse(res *reservation.Reservation) *reservationResponse {
	if res == nil {
		return nil
	}
	items := make([]reservationItemResponse, 0, len(res.Items))
	for _, item := range res.Items {
		items = append(items, reservationItemResponse{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return &reservationResponse{
		ID:         res.ID,
		BusinessID: res.BusinessID,
		DocumentID: res.DocumentID,
		Status:     string(res.Status),
		Items:      items,
	}
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}
	var req DocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.HandleSaved(r.Context(), req.toDomain(id))
	if err != nil {
		h.logger.Error("refresh reservation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reservation": toReservationResponse(res)})
}

func (h *Handler) handleCancelled(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}
	if err := h.service.HandleCancelled(r.Context(), id); err != nil {
		h.logger.Error("cancel document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (h *Handler) handlePaid(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}
	var req PayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, entry, err := h.service.HandlePaid(r.Context(), req.Document.toDomain(id), req.ActorID)
	if err != nil {
		h.logger.Error("pay document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := map[string]any{"reservation": toReservationResponse(res)}
	if entry != nil {
		out["ledger_entry_id"] = entry.ID
		out["cogs"] = totalDebit(entry)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid start date")
		return
	}
	var end *time.Time
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid end date")
			return
		}
		end = &t
	}
	day, _ := strconv.Atoi(q.Get("day"))
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
		return
	}
	dates, err := h.service.PreviewRecurring(r.Context(), start, end, day, from, to)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dates": dates})
}

func totalDebit(entry *ledger.Entry) int64 {
	var total int64
	for _, line := range entry.Lines {
		total += line.Debit
	}
	return total
}
