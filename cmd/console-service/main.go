package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nazeru/order-console-go/internal/order/console"
	"github.com/nazeru/order-console-go/internal/order/feed"
	"github.com/nazeru/order-console-go/internal/order/lifecycle"
	"github.com/nazeru/order-console-go/internal/order/sideeffect"
	"github.com/nazeru/order-console-go/internal/order/store"
	"github.com/nazeru/order-console-go/internal/order/transport"
	"github.com/nazeru/order-console-go/pkg/kafka"
	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/metrics"
	"github.com/nazeru/order-console-go/pkg/outbox"
	"github.com/nazeru/order-console-go/pkg/tx/pipeline"
)

type cfg struct {
	Port             string        `envconfig:"PORT" default:"8080"`
	DatabaseURL      string        `envconfig:"DATABASE_URL" required:"true"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	WindowSize       int           `envconfig:"FEED_WINDOW_SIZE" default:"50"`
	PollInterval     time.Duration `envconfig:"FEED_POLL_INTERVAL" default:"2s"`
	AutoPrint        bool          `envconfig:"AUTO_PRINT" default:"true"`
	HandledCapacity  int           `envconfig:"HANDLED_CAPACITY" default:"1000"`
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	SessionID        string        `envconfig:"SESSION_ID" default:"default"`
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	PrintURL         string        `envconfig:"PRINT_URL" default:"http://localhost:8090/print"`
	SMSURL           string        `envconfig:"SMS_URL" default:"http://localhost:8092/sms"`
	PaymentURL       string        `envconfig:"PAYMENT_URL" default:"http://localhost:8091/payments/reverse"`
	RequestTimeoutMS int           `envconfig:"REQUEST_TIMEOUT_MS" default:"5000"`
	PromoStoreID     string        `envconfig:"PROMO_STORE_ID"`
	PromoFooter      string        `envconfig:"PROMO_FOOTER"`
	Timezone         string        `envconfig:"TIMEZONE" default:"Asia/Seoul"`
	FallbackCmd      string        `envconfig:"FALLBACK_PRINT_CMD"`
	FallbackSpoolDir string        `envconfig:"FALLBACK_SPOOL_DIR" default:"./spool"`
	KafkaBrokers     string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopic       string        `envconfig:"KAFKA_TOPIC" default:"orderdesk.events"`
	OutboxInterval   time.Duration `envconfig:"OUTBOX_INTERVAL" default:"1s"`
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

func main() {
	cfg, err := readCfg()
	if err != nil {
		logging.Error(logging.Fields{Service: "console", Message: "config error"}, err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error(logging.Fields{Service: "console", Message: "console stopped"}, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cfg) error {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := store.NewPostgres(pool, cfg.KafkaTopic)
	if err := db.Ping(connectCtx); err != nil {
		return err
	}
	if err := db.EnsureSchema(connectCtx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	consoleMetrics := metrics.NewConsoleMetrics(reg)
	srvMetrics := metrics.NewServerMetricsWith(reg, "console")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.Local
	}
	client := &http.Client{Timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond}
	dispatcher := sideeffect.NewDispatcher(sideeffect.Deps{
		Addresses: db,
		Printer:   &sideeffect.NetworkPrinter{URL: cfg.PrintURL, Client: client},
		Fallback:  sideeffect.NewSpoolRenderer(cfg.FallbackSpoolDir, strings.Fields(cfg.FallbackCmd)),
		Messenger: &sideeffect.HTTPMessenger{URL: cfg.SMSURL, Client: client},
		Reverser:  &sideeffect.HTTPReverser{URL: cfg.PaymentURL, Client: client},
		Metrics:   consoleMetrics,
	}, sideeffect.Config{PromoStoreID: cfg.PromoStoreID, PromoFooter: cfg.PromoFooter, Location: loc})

	ops := lifecycle.New(db, dispatcher,
		lifecycle.WithMetrics(consoleMetrics),
		lifecycle.WithTxLog(pipeline.LogStore{Service: "console"}),
	)

	handled, closeHandled := handledSet(cfg)
	defer closeHandled()
	loop := console.New(feed.NewWindow(cfg.WindowSize), handled, dispatcher, ops, consoleMetrics, cfg.AutoPrint)

	poller := &store.Poller{Source: db, Limit: cfg.WindowSize, Interval: cfg.PollInterval}
	snapshots, err := poller.Subscribe(ctx)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	transport.NewHandler(loop, srvMetrics, db.Ping).Routes(mux)
	mux.Handle("GET /metrics", metrics.HandlerFor(reg))
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx, snapshots) })
	g.Go(func() error {
		logging.Log(logging.Fields{Service: "console", Status: "listening", Message: "console listening on :" + cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		writer := kafkaClient.NewWriter(cfg.KafkaTopic)
		defer writer.Close()
		relay := &outbox.Relay{Store: db.Outbox(), Publisher: &kafka.Publisher{Writer: writer}, Interval: cfg.OutboxInterval}
		g.Go(func() error { return relay.Run(ctx) })
	}

	return g.Wait()
}

func handledSet(cfg cfg) (feed.HandledSet, func()) {
	if cfg.RedisAddr == "" {
		return feed.NewMemoryHandledSet(cfg.HandledCapacity), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return feed.NewRedisHandledSet(rdb, cfg.SessionID, cfg.SessionTTL), func() { _ = rdb.Close() }
}
