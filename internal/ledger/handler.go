package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler exposes read-only ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.handleList)
	r.Get("/entries/by-source", h.handleGetBySource)
}

type lineResponse struct {
	AccountCode string         `json:"account_code"`
	Debit       int64          `json:"debit"`
	Credit      int64          `json:"credit"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type entryResponse struct {
	ID         int64          `json:"id"`
	BusinessID int64          `json:"business_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Memo       string         `json:"memo"`
	SourceKind string         `json:"source_kind"`
	SourceID   string         `json:"source_id"`
	Lines      []lineResponse `json:"lines"`
}

func toEntryResponse(entry Entry) entryResponse {
	lines := make([]lineResponse, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		lines = append(lines, lineResponse{
			AccountCode: line.AccountCode,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Metadata:    line.Metadata,
		})
	}
	return entryResponse{
		ID:         entry.ID,
		BusinessID: entry.BusinessID,
		OccurredAt: entry.OccurredAt,
		Memo:       entry.Memo,
		SourceKind: string(entry.Source.Kind),
		SourceID:   entry.Source.ID,
		Lines:      lines,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	businessID, _ := strconv.ParseInt(r.URL.Query().Get("business_id"), 10, 64)
	if businessID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "business_id required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListByBusiness(r.Context(), businessID, limit)
	if err != nil {
		h.logger.Error("list ledger entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetBySource(w http.ResponseWriter, r *http.Request) {
	kind := SourceKind(r.URL.Query().Get("kind"))
	id := r.URL.Query().Get("id")
	if (kind != SourceKindMovement && kind != SourceKindDocumentConsumption) || id == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "kind and id required")
		return
	}
	entry, err := h.service.GetBySource(r.Context(), SourceRef{Kind: kind, ID: id})
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no entry for source")
			return
		}
		h.logger.Error("get ledger entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}
