package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/feedgen"
	"github.com/spendlens/spendlens-go/internal/infra/observability"
	"github.com/spendlens/spendlens-go/internal/ingest"
	"github.com/spendlens/spendlens-go/internal/port"
	"github.com/spendlens/spendlens-go/internal/service"
)

var tracer = otel.Tracer("handler")

// uploadLimit caps how much CSV a single upload may carry.
const uploadLimit = 16 << 20

// Deps bundles everything the router serves. Feed and Sink are nil when
// the service runs without a live feed database.
type Deps struct {
	Analysis *service.Analysis
	Advisor  *service.Advisor
	Feed     port.TransactionSource
	Sink     port.TransactionSink
	HomeCity string
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Feed))
	r.Get("/readyz", readyzHandler(d.Analysis))
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ledger/upload", uploadLedgerHandler(d.Analysis, d.Logger))
		r.Post("/ledger/refresh", refreshLedgerHandler(d.Analysis, d.Feed, d.Logger))

		r.Get("/analysis", analysisHandler(d.Analysis, d.Logger))
		r.Get("/anomalies/duplicates", anomalyHandler("duplicates", d.Analysis.Duplicates, d.Logger))
		r.Get("/anomalies/spikes", anomalyHandler("spikes", d.Analysis.Spikes, d.Logger))
		r.Get("/anomalies/out-of-city", anomalyHandler("out_of_city", d.Analysis.OutOfCity, d.Logger))
		r.Get("/recharges/active", activeRechargesHandler(d.Analysis, d.Logger))
		r.Get("/insights", insightsHandler(d.Analysis, d.Logger))

		r.Post("/advisor", advisorHandler(d.Advisor, d.Logger))
		r.Get("/metrics/advisor", advisorMetricsHandler(d.Metrics))

		r.Post("/dev/generate-transactions", devGenerateHandler(d.Sink, d.HomeCity, d.Logger))
	})

	return r
}

// ============================================================
// Ledger lifecycle
// ============================================================

func uploadLedgerHandler(svc *service.Analysis, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledger/upload")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, uploadLimit)
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
			return
		}
		defer file.Close()

		txns, err := ingest.ReadCSV(file)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		snapshotID := svc.SetLedger(ctx, txns, "upload")
		span.SetAttributes(
			attribute.String("snapshot.id", snapshotID),
			attribute.Int("snapshot.transactions", len(txns)),
		)

		writeJSON(w, http.StatusCreated, map[string]any{
			"snapshot_id":       snapshotID,
			"transaction_count": len(txns),
		})
	}
}

func refreshLedgerHandler(svc *service.Analysis, feed port.TransactionSource, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ledger/refresh")
		defer span.End()

		if feed == nil {
			writeError(w, http.StatusServiceUnavailable, "live feed not configured")
			return
		}

		txns, err := feed.Snapshot(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		snapshotID := svc.SetLedger(ctx, txns, "feed")
		span.SetAttributes(attribute.String("snapshot.id", snapshotID))

		writeJSON(w, http.StatusOK, map[string]any{
			"snapshot_id":       snapshotID,
			"transaction_count": len(txns),
		})
	}
}

// ============================================================
// Analysis & anomalies
// ============================================================

func analysisHandler(svc *service.Analysis, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analysis")
		defer span.End()

		report, err := svc.Analyze(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// anomalyHandler serves one detector's slice. All three anomaly routes
// share this shape, only the fetch differs.
func anomalyHandler(kind string, fetch func(ctx context.Context) ([]domain.Transaction, error), logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/anomalies/"+kind)
		defer span.End()

		txns, err := fetch(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if txns == nil {
			txns = []domain.Transaction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"kind":         kind,
			"count":        len(txns),
			"transactions": txns,
		})
	}
}

func activeRechargesHandler(svc *service.Analysis, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recharges/active")
		defer span.End()

		recharges, err := svc.ActiveRecharges(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if recharges == nil {
			recharges = []domain.ActiveRecharge{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":     len(recharges),
			"recharges": recharges,
		})
	}
}

func insightsHandler(svc *service.Analysis, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/insights")
		defer span.End()

		insights, err := svc.Insights(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, insights)
	}
}

// ============================================================
// Advisor
// ============================================================

func advisorHandler(svc *service.Advisor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/advisor")
		defer span.End()

		var req domain.AdvisorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Ask(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func advisorMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAdvisorSnapshot())
	}
}

// ============================================================
// Dev tools
// ============================================================

func devGenerateHandler(sink port.TransactionSink, homeCity string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/generate-transactions")
		defer span.End()

		if sink == nil {
			writeError(w, http.StatusServiceUnavailable, "live feed not configured")
			return
		}

		count := queryInt(r, "count", 50)
		if count > 10000 {
			writeError(w, http.StatusBadRequest, "count must be at most 10000")
			return
		}
		span.SetAttributes(attribute.Int("generate.count", count))

		gen := feedgen.New(time.Now().UnixNano(), homeCity)
		now := time.Now().UTC()
		inserted := 0
		for i := 0; i < count; i++ {
			// Spread the batch over the past 60 days.
			at := now.Add(-time.Duration(i) * (60 * 24 * time.Hour / time.Duration(count+1)))
			if err := sink.Insert(ctx, gen.Next(at)); err != nil {
				logger.Warn("generated insert failed", zap.Error(err))
				continue
			}
			inserted++
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"requested": count,
			"inserted":  inserted,
		})
	}
}

// ============================================================
// Health
// ============================================================

func healthzHandler(feed port.TransactionSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "spendlens-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if feed != nil {
			start := time.Now()
			_, err := feed.Snapshot(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "feed-db", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(svc *service.Analysis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ready":             true,
			"transaction_count": svc.TransactionCount(),
		})
	}
}
