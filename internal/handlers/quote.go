package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/shopkitapp/shopkit/internal/pricing"
	"github.com/shopkitapp/shopkit/internal/services"
)

// Quote prices one product variant. The variant order number comes from the
// path; customer group, currency, and tax region come from query parameters
// and fall back to the shop defaults when absent.
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	number := strings.TrimSpace(mux.Vars(r)["number"])
	if number == "" {
		writeError(w, http.StatusBadRequest, "product number is required", logger)
		return
	}

	query := r.URL.Query()
	input := services.QuoteInput{
		Number: number,
		Context: services.ContextInput{
			CustomerGroupKey: strings.TrimSpace(query.Get("group")),
			CurrencyCode:     strings.TrimSpace(query.Get("currency")),
			CountryISO:       strings.TrimSpace(query.Get("country")),
			StateCode:        strings.TrimSpace(query.Get("state")),
		},
	}

	quote, err := h.quoteService.GetQuote(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found", logger)
		case errors.Is(err, services.ErrNoPrices):
			writeError(w, http.StatusNotFound, "product has no prices", logger)
		default:
			logger.Error("failed to build quote", "product", number, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error", logger)
		}
		return
	}

	writeJSON(w, http.StatusOK, quote, logger)
}
