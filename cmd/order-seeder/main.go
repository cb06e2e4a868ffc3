package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/internal/order/store"
	"github.com/nazeru/order-console-go/pkg/logging"
)

type env struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

type seedResult struct {
	Timestamp       string  `json:"timestamp"`
	Total           int     `json:"total"`
	Concurrency     int     `json:"concurrency"`
	Inserted        int     `json:"inserted"`
	Paid            int     `json:"paid"`
	Errors          int     `json:"errors"`
	FirstError      string  `json:"first_error"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type options struct {
	storeID   string
	storeName string
	paidRatio float64
}

var menu = []domain.OrderItem{
	{Name: "Bibimbap", UnitPrice: 9000},
	{Name: "Kimchi jjigae", UnitPrice: 8500},
	{Name: "Bulgogi", UnitPrice: 12000},
	{Name: "Tteokbokki", UnitPrice: 5000},
	{Name: "Japchae", UnitPrice: 7000},
	{Name: "Iced americano", UnitPrice: 3000},
}

var requests = []string{"", "", "No cilantro", "Extra spicy", "Leave at the door"}

// buildOrder returns a synthetic order. Paid orders carry a payment id so a
// cancel exercises the reversal path.
func buildOrder(r *rand.Rand, seq int, now time.Time, opts options) domain.Order {
	n := 1 + r.Intn(3)
	items := make([]domain.OrderItem, 0, n)
	var amount int64
	for i := 0; i < n; i++ {
		it := menu[r.Intn(len(menu))]
		it.Quantity = int32(1 + r.Intn(3))
		amount += int64(it.Quantity) * it.UnitPrice
		items = append(items, it)
	}

	o := domain.Order{
		ID:              domain.OrderID(uuid.NewString()),
		Status:          domain.OrderStatusPending,
		Phone:           fmt.Sprintf("010-%04d-%04d", r.Intn(10000), r.Intn(10000)),
		StoreID:         opts.storeID,
		StoreName:       opts.storeName,
		Amount:          amount,
		Items:           items,
		SpecialRequests: requests[r.Intn(len(requests))],
		CreatedAt:       now.Add(time.Duration(seq) * time.Millisecond),
	}
	if r.Intn(2) == 0 {
		o.TableNumber = fmt.Sprintf("%d", 1+r.Intn(20))
	}
	if r.Float64() < opts.paidRatio {
		o.Status = domain.OrderStatusPaid
		o.PaymentID = "pm_" + uuid.NewString()[:12]
	}
	if seq%3 == 0 {
		o.OrderNumber = fmt.Sprintf("A-%03d", seq%1000)
	}
	return o
}

func main() {
	total := flag.Int("total", 20, "number of orders to insert")
	concurrency := flag.Int("concurrency", 2, "number of concurrent writers")
	interval := flag.Duration("interval", 0, "delay between inserts per writer, to drip orders into the feed")
	paidRatio := flag.Float64("paid-ratio", 0.7, "share of orders inserted as paid")
	storeID := flag.String("store-id", "store-1", "store id for all orders")
	storeName := flag.String("store-name", "Main Street Kitchen", "store display name")
	storeAddress := flag.String("store-address", "12 Main Street", "store address printed on receipts")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *total <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "total and concurrency must be > 0")
		os.Exit(1)
	}

	var e env
	if err := envconfig.Process("", &e); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, e.DatabaseURL)
	if err != nil {
		logging.Error(logging.Fields{Service: "order-seeder", Message: "db connect error"}, err)
		os.Exit(1)
	}
	defer pool.Close()

	db := store.NewPostgres(pool, "")
	if err := db.EnsureSchema(ctx); err != nil {
		logging.Error(logging.Fields{Service: "order-seeder", Message: "schema error"}, err)
		os.Exit(1)
	}
	if err := db.UpsertStore(ctx, *storeID, *storeName, *storeAddress); err != nil {
		logging.Error(logging.Fields{Service: "order-seeder", Message: "store upsert error"}, err)
		os.Exit(1)
	}

	opts := options{storeID: *storeID, storeName: *storeName, paidRatio: *paidRatio}
	started := time.Now()
	res := insertOrders(ctx, db, *total, *concurrency, *interval, *seed, opts)
	res.Timestamp = started.UTC().Format(time.RFC3339)
	res.DurationSeconds = time.Since(started).Seconds()

	data, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(data))
	if *output != "" {
		if err := os.WriteFile(*output, data, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}
}

type orderWriter interface {
	InsertOrder(ctx context.Context, o domain.Order) error
}

// insertOrders fans sequence numbers out to writers; each writer owns its
// own rand source.
func insertOrders(ctx context.Context, w orderWriter, total, concurrency int, interval time.Duration, seed int64, opts options) seedResult {
	res := seedResult{Total: total, Concurrency: concurrency}
	var mu sync.Mutex
	jobs := make(chan int)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(worker)))
			for seq := range jobs {
				o := buildOrder(r, seq, now, opts)
				err := w.InsertOrder(ctx, o)

				mu.Lock()
				if err != nil {
					res.Errors++
					if res.FirstError == "" {
						res.FirstError = err.Error()
					}
				} else {
					res.Inserted++
					if o.Status == domain.OrderStatusPaid {
						res.Paid++
					}
				}
				mu.Unlock()

				if err == nil {
					logging.Log(logging.Fields{Service: "order-seeder", OrderID: string(o.ID), Step: "insert", Status: string(o.Status)})
				}
				if interval > 0 {
					time.Sleep(interval)
				}
			}
		}(i)
	}

	for seq := 1; seq <= total; seq++ {
		jobs <- seq
	}
	close(jobs)
	wg.Wait()
	return res
}
