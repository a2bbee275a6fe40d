package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabdesk/fabdesk/internal/platform/db"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Repository persists orders and their numbering counters in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, business, order_number, order_date, client_id, design_type, materials, labour_cost, total_value,
	advance_received, balance_amount, payments, delivery_date, status, client_snapshot, created_by, created_at, updated_at`

// WithTx executes fn inside the request transaction, opening one when needed.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

// Insert stores a new order. A taken order number yields ErrDuplicateOrderNumber.
func (r *Repository) Insert(ctx context.Context, o Order) error {
	materials, payments, snapshot, err := encodeDocuments(o)
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO orders (id, business, order_number, order_date, client_id, design_type, materials, labour_cost, total_value,
			advance_received, balance_amount, payments, delivery_date, status, client_snapshot, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)`,
		o.ID, string(o.Business), o.OrderNumber, o.Date, o.ClientID, o.DesignType, materials, o.LabourCost, o.TotalValue,
		o.AdvanceReceived, o.BalanceAmount, payments, o.DeliveryDate, string(o.Status), snapshot, o.CreatedBy, o.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.OrderNumber)
	}
	return err
}

func (r *Repository) Get(ctx context.Context, business shared.Business, id uuid.UUID) (Order, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE business = $1 AND id = $2`, string(business), id)
	return scanOrder(row)
}

// GetForUpdate reads the order and locks its row until the transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, business shared.Business, id uuid.UUID) (Order, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE business = $1 AND id = $2 FOR UPDATE`, string(business), id)
	return scanOrder(row)
}

// Update overwrites the mutable fields of an order. Materials, number,
// client and snapshots are fixed at creation.
func (r *Repository) Update(ctx context.Context, o Order) error {
	payments, err := json.Marshal(nonNilPayments(o.Payments))
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE orders SET order_date = $3, design_type = $4, labour_cost = $5, total_value = $6, advance_received = $7,
			balance_amount = $8, payments = $9, delivery_date = $10, status = $11, updated_at = $12
		WHERE business = $1 AND id = $2`,
		string(o.Business), o.ID, o.Date, o.DesignType, o.LabourCost, o.TotalValue, o.AdvanceReceived,
		o.BalanceAmount, payments, o.DeliveryDate, string(o.Status), o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, business shared.Business, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM orders WHERE business = $1 AND id = $2`, string(business), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, business shared.Business, filter ListFilter) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE business = $1`
	args := []any{string(business)}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ClientID != uuid.Nil {
		args = append(args, filter.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND order_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND order_date <= $%d", len(args))
	}
	query += " ORDER BY order_date DESC, order_number DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		return scanOrder(row)
	})
}

// LastOrderNumber returns the highest well-formed order number with prefix,
// or "". Longer numbers sort after shorter ones so sequences past 999 stay
// ordered.
func (r *Repository) LastOrderNumber(ctx context.Context, business shared.Business, prefix string) (string, error) {
	var last string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT order_number FROM orders
		WHERE business = $1 AND order_number LIKE $2 AND order_number ~ $3
		ORDER BY length(order_number) DESC, order_number DESC
		LIMIT 1`, string(business), prefix+"-%", OrderNumberPattern).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return last, err
}

// NextCounter advances the (business, period) counter and returns the new
// value. A missing row starts at seed; an existing one never drops below it.
func (r *Repository) NextCounter(ctx context.Context, business shared.Business, period string, seed int) (int, error) {
	var value int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO order_counters (business, period, value) VALUES ($1, $2, $3)
		ON CONFLICT (business, period) DO UPDATE SET value = GREATEST(order_counters.value + 1, EXCLUDED.value)
		RETURNING value`, string(business), period, seed).Scan(&value)
	return value, err
}

// CurrentCounter returns the last issued value for the period, or 0.
func (r *Repository) CurrentCounter(ctx context.Context, business shared.Business, period string) (int, error) {
	var value int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT value FROM order_counters WHERE business = $1 AND period = $2`,
		string(business), period).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return value, err
}

func encodeDocuments(o Order) (materials, payments, snapshot []byte, err error) {
	lines := o.Materials
	if lines == nil {
		lines = []Line{}
	}
	if materials, err = json.Marshal(lines); err != nil {
		return nil, nil, nil, fmt.Errorf("orders: encode materials: %w", err)
	}
	if payments, err = json.Marshal(nonNilPayments(o.Payments)); err != nil {
		return nil, nil, nil, fmt.Errorf("orders: encode payments: %w", err)
	}
	if snapshot, err = json.Marshal(o.Client); err != nil {
		return nil, nil, nil, fmt.Errorf("orders: encode client snapshot: %w", err)
	}
	return materials, payments, snapshot, nil
}

func nonNilPayments(p []Payment) []Payment {
	if p == nil {
		return []Payment{}
	}
	return p
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                             Order
		biz, status                   string
		materials, payments, snapshot []byte
		delivery                      *time.Time
	)
	err := row.Scan(&o.ID, &biz, &o.OrderNumber, &o.Date, &o.ClientID, &o.DesignType, &materials, &o.LabourCost, &o.TotalValue,
		&o.AdvanceReceived, &o.BalanceAmount, &payments, &delivery, &status, &snapshot, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.Business = shared.Business(biz)
	o.Status = Status(status)
	o.DeliveryDate = delivery
	if err := json.Unmarshal(materials, &o.Materials); err != nil {
		return Order{}, fmt.Errorf("orders: decode materials: %w", err)
	}
	if err := json.Unmarshal(payments, &o.Payments); err != nil {
		return Order{}, fmt.Errorf("orders: decode payments: %w", err)
	}
	if err := json.Unmarshal(snapshot, &o.Client); err != nil {
		return Order{}, fmt.Errorf("orders: decode client snapshot: %w", err)
	}
	return o, nil
}
