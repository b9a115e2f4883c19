package stock

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// handleStockCardExport streams the stock card as CSV. Costs are stored in
// minor units; the export renders them as major-unit decimals with
// localized digit grouping.
func (h *Handler) handleStockCardExport(w http.ResponseWriter, r *http.Request) {
	filter, err := cardFilterFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.logger.Error("stock card export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="stock-card-%d-%d.csv"`, filter.BusinessID, filter.ProductID))

	printer := message.NewPrinter(language.English)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"movement_id", "date", "kind", "source", "qty_in", "qty_out", "balance_qty", "unit_cost"})
	for _, entry := range entries {
		cost := ""
		if entry.UnitCost != nil {
			major := decimal.New(*entry.UnitCost, -2)
			cost = printer.Sprintf("%.2f", major.InexactFloat64())
		}
		_ = writer.Write([]string{
			fmt.Sprintf("%d", entry.MovementID),
			entry.OccurredAt.Format(time.RFC3339),
			string(entry.Kind),
			string(entry.Source),
			fmt.Sprintf("%d", entry.QtyIn),
			fmt.Sprintf("%d", entry.QtyOut),
			fmt.Sprintf("%d", entry.BalanceQty),
			cost,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.Warn("flush stock card csv", slog.Any("error", err))
	}
}
