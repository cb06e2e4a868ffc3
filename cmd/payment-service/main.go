package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"

	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/idempotency"
	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/metrics"
)

type cfg struct {
	Port        string `envconfig:"PORT" default:"8091"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// Payments whose id starts with this prefix are refused, for failure drills.
	FailPrefix string `envconfig:"FAIL_PAYMENT_PREFIX"`
}

const schema = `CREATE TABLE IF NOT EXISTS payment_reversals (
	idempotency_key TEXT PRIMARY KEY,
	reversal_id     TEXT NOT NULL,
	payment_id      TEXT NOT NULL,
	reason          TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// ledger records reversals; the first reversal for a key wins.
type ledger interface {
	Reverse(ctx context.Context, key, paymentID, reason string) (string, error)
}

type pgLedger struct {
	pool *pgxpool.Pool
}

func (l pgLedger) Reverse(ctx context.Context, key, paymentID, reason string) (string, error) {
	_, err := l.pool.Exec(ctx, `INSERT INTO payment_reversals(idempotency_key, reversal_id, payment_id, reason)
		VALUES ($1, $2, $3, $4) ON CONFLICT (idempotency_key) DO NOTHING`, key, uuid.NewString(), paymentID, reason)
	if err != nil {
		return "", err
	}
	var id string
	err = l.pool.QueryRow(ctx, `SELECT reversal_id FROM payment_reversals WHERE idempotency_key=$1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errors.New("reversal not recorded")
	}
	return id, err
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		logging.Error(logging.Fields{Service: "payment-service", Message: "config error"}, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Error(logging.Fields{Service: "payment-service", Message: "db connect error"}, err)
		os.Exit(1)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema); err != nil {
		logging.Error(logging.Fields{Service: "payment-service", Message: "schema error"}, err)
		os.Exit(1)
	}

	srvMetrics := metrics.NewServerMetrics("payment_service")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			srvMetrics.Observe("health", "503", start)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		srvMetrics.Observe("health", "200", start)
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/payments/reverse", reverseHandler(pgLedger{pool: pool}, srvMetrics, cfg.FailPrefix))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logging.Log(logging.Fields{Service: "payment-service", Status: "listening", Message: "payment-service listening on :" + cfg.Port})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(logging.Fields{Service: "payment-service", Message: "http server error"}, err)
		os.Exit(1)
	}
}

func readCfg() (cfg, error) {
	var c cfg
	if err := envconfig.Process("", &c); err != nil {
		return cfg{}, err
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	return c, nil
}

func reverseHandler(l ledger, m *metrics.ServerMetrics, failPrefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			m.Observe("reverse", "405", start)
			return
		}
		var req contracts.ReversalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.PaymentID) == "" {
			writeJSON(w, http.StatusBadRequest, contracts.ReversalResponse{Success: false, Message: "paymentId is required"})
			m.Observe("reverse", "400", start)
			return
		}
		if failPrefix != "" && strings.HasPrefix(req.PaymentID, failPrefix) {
			writeJSON(w, http.StatusUnprocessableEntity, contracts.ReversalResponse{Success: false, Message: "payment cannot be reversed"})
			m.Observe("reverse", "422", start)
			logging.Log(logging.Fields{Service: "payment-service", EventID: req.PaymentID, Step: "reverse", Status: "refused"})
			return
		}

		key := idempotency.KeyOr(r, req.PaymentID)
		id, err := l.Reverse(r.Context(), key, req.PaymentID, req.Reason)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, contracts.ReversalResponse{Success: false, Message: err.Error()})
			m.Observe("reverse", "500", start)
			return
		}
		logging.Log(logging.Fields{Service: "payment-service", EventID: req.PaymentID, Step: "reverse", Status: "reversed", DurationMS: time.Since(start).Milliseconds()})
		writeJSON(w, http.StatusOK, contracts.ReversalResponse{Success: true, ReversalID: id})
		m.Observe("reverse", "200", start)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
