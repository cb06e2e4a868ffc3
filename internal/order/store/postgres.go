package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/outbox"
)

//go:embed schema.sql
var schema string

const orderColumns = `id, order_number, status, phone, store_id, store_name, amount, items,
	table_number, special_requests, payment_id, created_at, delivery_time, confirmed_at,
	estimated_delivery_time, cancel_reason, cancelled_at, completed_at`

type Postgres struct {
	pool  *pgxpool.Pool
	topic string
}

func NewPostgres(pool *pgxpool.Pool, topic string) *Postgres {
	return &Postgres{pool: pool, topic: topic}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return errors.Wrap(err, "apply schema")
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Snapshot returns the limit most recent orders, newest first.
func (p *Postgres) Snapshot(ctx context.Context, limit int) ([]domain.Order, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query snapshot")
	}
	defer rows.Close()

	out := make([]domain.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "iterate snapshot")
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o            domain.Order
		id, status   string
		items        []byte
		deliveryTime *int32
	)
	err := row.Scan(&id, &o.OrderNumber, &status, &o.Phone, &o.StoreID, &o.StoreName, &o.Amount, &items,
		&o.TableNumber, &o.SpecialRequests, &o.PaymentID, &o.CreatedAt, &deliveryTime, &o.ConfirmedAt,
		&o.EstimatedDeliveryTime, &o.CancelReason, &o.CancelledAt, &o.CompletedAt)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "scan order")
	}
	o.ID = domain.OrderID(id)
	o.Status = domain.OrderStatus(status)
	if deliveryTime != nil {
		o.DeliveryTime = int(*deliveryTime)
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return domain.Order{}, errors.Wrapf(err, "decode items of %s", o.ID)
		}
	}
	return o, nil
}

// ApplyUpdate writes the update and its lifecycle event in one transaction.
// A status change only applies to rows still in a valid source status.
func (p *Postgres) ApplyUpdate(ctx context.Context, id domain.OrderID, u domain.OrderUpdate) error {
	sql, args, ok := updateStatement(id, u)
	if !ok {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrapf(err, "update order %s", id)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, string(id)).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return errors.Wrapf(err, "read status of %s", id)
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, u.Status)
	}

	if evt, ok := lifecycleEvent(id, u); ok {
		if err := outbox.Insert(ctx, tx, evt.EventID, p.topic, string(id), evt); err != nil {
			return errors.Wrap(err, "insert outbox")
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func updateStatement(id domain.OrderID, u domain.OrderUpdate) (string, []any, bool) {
	set, args := updateColumns(u)
	if len(set) == 0 {
		return "", nil, false
	}
	args = append(args, string(id))
	where := fmt.Sprintf("id=$%d", len(args))
	if u.Status != "" {
		var from []string
		for _, s := range domain.SourcesOf(u.Status) {
			from = append(from, string(s))
		}
		args = append(args, from)
		where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	return fmt.Sprintf(`UPDATE orders SET %s, updated_at=now() WHERE %s`, strings.Join(set, ", "), where), args, true
}

func updateColumns(u domain.OrderUpdate) ([]string, []any) {
	var (
		set  []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if u.Status != "" {
		add("status", string(u.Status))
	}
	if u.DeliveryTime != nil {
		add("delivery_time", *u.DeliveryTime)
	}
	if u.ConfirmedAt != nil {
		add("confirmed_at", *u.ConfirmedAt)
	}
	if u.EstimatedDeliveryTime != nil {
		add("estimated_delivery_time", *u.EstimatedDeliveryTime)
	}
	if u.CancelReason != "" {
		add("cancel_reason", u.CancelReason)
	}
	if u.CancelledAt != nil {
		add("cancelled_at", *u.CancelledAt)
	}
	if u.CompletedAt != nil {
		add("completed_at", *u.CompletedAt)
	}
	return set, args
}

func lifecycleEvent(id domain.OrderID, u domain.OrderUpdate) (contracts.Event, bool) {
	var typ string
	payload := map[string]any{"status": string(u.Status)}
	switch u.Status {
	case domain.OrderStatusConfirmed:
		typ = contracts.EventOrderConfirmed
		if u.DeliveryTime != nil {
			payload["delivery_time"] = *u.DeliveryTime
		}
	case domain.OrderStatusCancelled:
		typ = contracts.EventOrderCancelled
		payload["cancel_reason"] = u.CancelReason
	case domain.OrderStatusCompleted:
		typ = contracts.EventOrderCompleted
	default:
		return contracts.Event{}, false
	}
	return contracts.Event{
		EventID:   uuid.NewString(),
		OrderID:   string(id),
		CreatedAt: time.Now().UTC(),
		Type:      typ,
		Payload:   payload,
	}, true
}

func (p *Postgres) StoreAddress(ctx context.Context, storeID string) (string, error) {
	var addr string
	err := p.pool.QueryRow(ctx, `SELECT address FROM stores WHERE id=$1`, storeID).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrStoreNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "lookup store %s", storeID)
	}
	return addr, nil
}

func (p *Postgres) Outbox() outbox.Store {
	return outbox.PgStore{DB: p.pool}
}

// InsertOrder is used by the seeder and tests against a live database.
func (p *Postgres) InsertOrder(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO orders(id, order_number, status, phone, store_id, store_name, amount, items,
		table_number, special_requests, payment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(o.ID), o.OrderNumber, string(o.Status), o.Phone, o.StoreID, o.StoreName, o.Amount, items,
		o.TableNumber, o.SpecialRequests, o.PaymentID, o.CreatedAt)
	return errors.Wrapf(err, "insert order %s", o.ID)
}

func (p *Postgres) UpsertStore(ctx context.Context, id, name, address string) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO stores(id, name, address) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, address=EXCLUDED.address`, id, name, address)
	return errors.Wrapf(err, "upsert store %s", id)
}
