package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/idempotency"
	"github.com/nazeru/order-console-go/pkg/kafka"
	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/metrics"
)

type cfg struct {
	Port         string `envconfig:"PORT" default:"8092"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	Topic        string `envconfig:"KAFKA_TOPIC" default:"orderdesk.events"`
	GroupID      string `envconfig:"KAFKA_GROUP_ID" default:"notification-service"`
}

const schema = `
CREATE TABLE IF NOT EXISTS sms_messages (
	idempotency_key TEXT PRIMARY KEY,
	recipient       TEXT NOT NULL,
	body            TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS inbox (
	event_id    TEXT PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
	event_id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	type     TEXT NOT NULL,
	payload  JSONB NOT NULL
)`

type notifier interface {
	SaveSMS(ctx context.Context, key string, req contracts.SMSRequest) (bool, error)
}

type pgNotifier struct {
	pool *pgxpool.Pool
}

// SaveSMS reports whether the message was new for its key.
func (n pgNotifier) SaveSMS(ctx context.Context, key string, req contracts.SMSRequest) (bool, error) {
	tag, err := n.pool.Exec(ctx, `INSERT INTO sms_messages(idempotency_key, recipient, body)
		VALUES ($1, $2, $3) ON CONFLICT (idempotency_key) DO NOTHING`, key, req.To, req.Message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		logging.Error(logging.Fields{Service: "notification-service", Message: "config error"}, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err != nil {
		logging.Error(logging.Fields{Service: "notification-service", Message: "db connect error"}, err)
		os.Exit(1)
	}
	defer pool.Close()
	if _, err := pool.Exec(connectCtx, schema); err != nil {
		logging.Error(logging.Fields{Service: "notification-service", Message: "schema error"}, err)
		os.Exit(1)
	}

	srvMetrics := metrics.NewServerMetrics("notification_service")

	var emitted *kafkago.Writer
	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		emitted = kafkaClient.NewWriter(cfg.Topic)
		defer emitted.Close()
		go consumeEvents(ctx, pool, kafkaClient, cfg)
	}

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
	mux.HandleFunc("/sms", smsHandler(pgNotifier{pool: pool}, emitted, srvMetrics))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logging.Log(logging.Fields{Service: "notification-service", Status: "listening", Message: "notification-service listening on :" + cfg.Port})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(logging.Fields{Service: "notification-service", Message: "http server error"}, err)
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

// smsHandler accepts {to, message}. Without an Idempotency-Key every request
// is a distinct message.
func smsHandler(n notifier, emitted *kafkago.Writer, m *metrics.ServerMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			m.Observe("sms", "405", start)
			return
		}
		var req contracts.SMSRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			m.Observe("sms", "400", start)
			return
		}
		if !validRecipient(req.To) || strings.TrimSpace(req.Message) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "to must be digits and message must be set"})
			m.Observe("sms", "400", start)
			return
		}

		key := idempotency.KeyOr(r, uuid.NewString())
		created, err := n.SaveSMS(r.Context(), key, req)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			m.Observe("sms", "500", start)
			return
		}
		if created && emitted != nil {
			evt := contracts.Event{
				EventID:   uuid.NewString(),
				CreatedAt: time.Now().UTC(),
				Type:      contracts.EventNotificationEmitted,
				Payload:   map[string]any{"to": req.To, "idempotency_key": key},
			}
			if err := kafka.PublishJSON(r.Context(), emitted, evt.EventID, evt); err != nil {
				logging.Warn(logging.Fields{Service: "notification-service", EventID: evt.EventID, Step: "publish", Status: "failed"}, err)
			}
		}
		logging.Log(logging.Fields{Service: "notification-service", EventID: key, Step: "sms", Status: "accepted", DurationMS: time.Since(start).Milliseconds()})
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "duplicate": !created})
		m.Observe("sms", "200", start)
	}
}

func validRecipient(to string) bool {
	if to == "" {
		return false
	}
	for _, r := range to {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func consumeEvents(ctx context.Context, pool *pgxpool.Pool, client *kafka.Client, cfg cfg) {
	reader := client.NewReader(cfg.Topic, cfg.GroupID)
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn(logging.Fields{Service: "notification-service", Step: "consume", Status: "read_error"}, err)
			time.Sleep(2 * time.Second)
			continue
		}
		var evt contracts.Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logging.Warn(logging.Fields{Service: "notification-service", Step: "consume", Status: "decode_error"}, err)
			continue
		}
		if !lifecycleEvent(evt) {
			continue
		}
		if err := saveNotification(ctx, pool, evt); err != nil {
			logging.Error(logging.Fields{Service: "notification-service", OrderID: evt.OrderID, EventID: evt.EventID, Step: evt.Type, Message: "notification save error"}, err)
			continue
		}
		logging.Log(logging.Fields{Service: "notification-service", OrderID: evt.OrderID, EventID: evt.EventID, Step: evt.Type, Status: "recorded"})
	}
}

// lifecycleEvent filters out our own notification.emitted events, which share the topic.
func lifecycleEvent(evt contracts.Event) bool {
	if evt.EventID == "" {
		return false
	}
	switch evt.Type {
	case contracts.EventOrderConfirmed, contracts.EventOrderCancelled, contracts.EventOrderCompleted:
		return true
	default:
		return false
	}
}

func saveNotification(ctx context.Context, pool *pgxpool.Pool, evt contracts.Event) error {
	_, err := pool.Exec(ctx, `INSERT INTO inbox(event_id, received_at)
		VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`, evt.EventID)
	if err != nil {
		return err
	}

	data, _ := json.Marshal(evt.Payload)
	_, err = pool.Exec(ctx, `INSERT INTO notifications(event_id, order_id, type, payload)
		VALUES ($1, $2, $3, $4) ON CONFLICT (event_id) DO NOTHING`, evt.EventID, evt.OrderID, evt.Type, string(data))
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
