package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopkitapp/shopkit/internal/config"
	"github.com/shopkitapp/shopkit/internal/logging"
	"github.com/shopkitapp/shopkit/internal/services"
)

// Pinger reports whether the backing store is reachable. The fixture store
// has nothing to ping; a nil Pinger skips the check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Quoter prices one product variant for a shopper.
type Quoter interface {
	GetQuote(ctx context.Context, input services.QuoteInput) (*services.Quote, error)
}

// Handlers provides the HTTP handlers of the pricing API.
type Handlers struct {
	config       *config.Config
	store        Pinger
	quoteService Quoter
	logger       *slog.Logger
}

type Dependencies struct {
	Config       *config.Config
	Store        Pinger
	QuoteService Quoter
	Logger       *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.QuoteService == nil {
		return nil, fmt.Errorf("handlers dependencies: quoteService is required")
	}

	return &Handlers{
		config:       deps.Config,
		store:        deps.Store,
		quoteService: deps.QuoteService,
		logger:       logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			logger.Error("store health check failed", "error", err)
			http.Error(w, "Store unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"}, logger)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	writeJSON(w, status, map[string]string{"error": message}, logger)
}
