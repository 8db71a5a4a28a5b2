package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packledger/packledger/internal/invoice"
	"github.com/packledger/packledger/internal/observability"
	"github.com/packledger/packledger/internal/outstanding"
	"github.com/packledger/packledger/internal/party"
	"github.com/packledger/packledger/internal/settlement"
	"github.com/packledger/packledger/internal/stock"
	"github.com/packledger/packledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	PartyHandler       *party.Handler
	InvoiceHandler     *invoice.Handler
	SettlementHandler  *settlement.Handler
	OutstandingHandler *outstanding.Handler
	StockHandler       *stock.Handler
	JobHandler         *jobs.Handler
	Pool               *pgxpool.Pool
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with packledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("healthz db ping", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/parties", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			params.PartyHandler.MountRoutes(r, party.KindCustomer)
		})
		r.Route("/suppliers", func(r chi.Router) {
			params.PartyHandler.MountRoutes(r, party.KindSupplier)
		})
	})

	r.Route("/invoices", func(r chi.Router) {
		params.InvoiceHandler.MountRoutes(r)
	})

	r.Route("/settlements", func(r chi.Router) {
		params.SettlementHandler.MountRoutes(r)
	})

	r.Route("/outstanding", func(r chi.Router) {
		params.OutstandingHandler.MountRoutes(r)
	})

	r.Route("/stock", func(r chi.Router) {
		params.StockHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	return r
}
