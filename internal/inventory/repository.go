package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/platform/db"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const materialColumns = `id, business, material_type, size, thickness, opening_stock, current_stock, low_stock_alert, rate, created_at, updated_at`

// WithTx executes fn inside the request transaction, opening one when needed.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *Repository) CreateMaterial(ctx context.Context, m Material) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO materials (id, business, material_type, size, thickness, opening_stock, current_stock, low_stock_alert, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		m.ID, string(m.Business), m.Type, m.Size, m.Thickness, m.OpeningStock, m.CurrentStock, m.LowStockAlert, m.Rate, m.CreatedAt)
	return err
}

func (r *Repository) GetMaterial(ctx context.Context, business shared.Business, id uuid.UUID) (Material, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE business = $1 AND id = $2`, string(business), id)
	return scanMaterial(row)
}

// GetMaterialForUpdate reads the material and locks its row until the
// surrounding transaction ends.
func (r *Repository) GetMaterialForUpdate(ctx context.Context, business shared.Business, id uuid.UUID) (Material, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE business = $1 AND id = $2 FOR UPDATE`, string(business), id)
	return scanMaterial(row)
}

func (r *Repository) ListMaterials(ctx context.Context, business shared.Business, filter MaterialFilter) ([]Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE business = $1`
	args := []any{string(business)}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND material_type = $%d", len(args))
	}
	query += " ORDER BY material_type, size, thickness"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return r.queryMaterials(ctx, query, args...)
}

// ListAlerts returns materials that are negative or at/under their threshold.
func (r *Repository) ListAlerts(ctx context.Context, business shared.Business) ([]Material, error) {
	return r.queryMaterials(ctx, `
		SELECT `+materialColumns+` FROM materials
		WHERE business = $1 AND (current_stock < 0 OR (low_stock_alert > 0 AND current_stock <= low_stock_alert))
		ORDER BY current_stock ASC`, string(business))
}

func (r *Repository) UpdateMaterial(ctx context.Context, m Material) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE materials SET material_type = $3, size = $4, thickness = $5, low_stock_alert = $6, rate = $7, updated_at = NOW()
		WHERE business = $1 AND id = $2`,
		string(m.Business), m.ID, m.Type, m.Size, m.Thickness, m.LowStockAlert, m.Rate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (r *Repository) DeleteMaterial(ctx context.Context, business shared.Business, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM materials WHERE business = $1 AND id = $2`, string(business), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

// IncrementStock atomically adds delta to current_stock and returns the
// updated row. Concurrent callers never lose each other's updates.
func (r *Repository) IncrementStock(ctx context.Context, business shared.Business, id uuid.UUID, delta decimal.Decimal) (Material, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE materials SET current_stock = current_stock + $3, updated_at = NOW()
		WHERE business = $1 AND id = $2
		RETURNING `+materialColumns, string(business), id, delta)
	return scanMaterial(row)
}

// SetStock overwrites current_stock. Only reconciliation uses it.
func (r *Repository) SetStock(ctx context.Context, business shared.Business, id uuid.UUID, value decimal.Decimal) (Material, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE materials SET current_stock = $3, updated_at = NOW()
		WHERE business = $1 AND id = $2
		RETURNING `+materialColumns, string(business), id, value)
	return scanMaterial(row)
}

func (r *Repository) InsertPurchase(ctx context.Context, p Purchase) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO purchases (id, business, material_id, entry_date, supplier, quantity, rate, total, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, string(p.Business), p.MaterialID, p.Date, p.Supplier, p.Quantity, p.Rate, p.Total, p.CreatedBy, p.CreatedAt)
	return err
}

func (r *Repository) InsertWastage(ctx context.Context, w Wastage) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO wastages (id, business, material_id, entry_date, quantity, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, string(w.Business), w.MaterialID, w.Date, w.Quantity, w.Reason, w.CreatedBy, w.CreatedAt)
	return err
}

func (r *Repository) InsertAdjustment(ctx context.Context, a StockAdjustment) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stock_adjustments (id, business, material_id, entry_date, previous_stock, new_stock, adjustment, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, string(a.Business), a.MaterialID, a.Date, a.PreviousStock, a.NewStock, a.Adjustment, a.Reason, a.CreatedBy, a.CreatedAt)
	return err
}

func (r *Repository) History(ctx context.Context, business shared.Business, materialID uuid.UUID) (History, error) {
	conn := db.Conn(ctx, r.pool)
	var h History

	rows, err := conn.Query(ctx, `
		SELECT id, business, material_id, entry_date, supplier, quantity, rate, total, created_by, created_at
		FROM purchases WHERE business = $1 AND material_id = $2 ORDER BY entry_date DESC, created_at DESC`, string(business), materialID)
	if err != nil {
		return History{}, err
	}
	h.Purchases, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Purchase, error) {
		var p Purchase
		var biz string
		err := row.Scan(&p.ID, &biz, &p.MaterialID, &p.Date, &p.Supplier, &p.Quantity, &p.Rate, &p.Total, &p.CreatedBy, &p.CreatedAt)
		p.Business = shared.Business(biz)
		return p, err
	})
	if err != nil {
		return History{}, fmt.Errorf("inventory: purchases: %w", err)
	}

	rows, err = conn.Query(ctx, `
		SELECT id, business, material_id, entry_date, quantity, reason, created_by, created_at
		FROM wastages WHERE business = $1 AND material_id = $2 ORDER BY entry_date DESC, created_at DESC`, string(business), materialID)
	if err != nil {
		return History{}, err
	}
	h.Wastages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Wastage, error) {
		var w Wastage
		var biz string
		err := row.Scan(&w.ID, &biz, &w.MaterialID, &w.Date, &w.Quantity, &w.Reason, &w.CreatedBy, &w.CreatedAt)
		w.Business = shared.Business(biz)
		return w, err
	})
	if err != nil {
		return History{}, fmt.Errorf("inventory: wastages: %w", err)
	}

	rows, err = conn.Query(ctx, `
		SELECT id, business, material_id, entry_date, previous_stock, new_stock, adjustment, reason, created_by, created_at
		FROM stock_adjustments WHERE business = $1 AND material_id = $2 ORDER BY entry_date DESC, created_at DESC`, string(business), materialID)
	if err != nil {
		return History{}, err
	}
	h.Adjustments, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockAdjustment, error) {
		var a StockAdjustment
		var biz string
		err := row.Scan(&a.ID, &biz, &a.MaterialID, &a.Date, &a.PreviousStock, &a.NewStock, &a.Adjustment, &a.Reason, &a.CreatedBy, &a.CreatedAt)
		a.Business = shared.Business(biz)
		return a, err
	})
	if err != nil {
		return History{}, fmt.Errorf("inventory: adjustments: %w", err)
	}
	return h, nil
}

func (r *Repository) queryMaterials(ctx context.Context, query string, args ...any) ([]Material, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Material, error) {
		return scanMaterial(row)
	})
}

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	var biz string
	var createdAt, updatedAt time.Time
	err := row.Scan(&m.ID, &biz, &m.Type, &m.Size, &m.Thickness, &m.OpeningStock, &m.CurrentStock, &m.LowStockAlert, &m.Rate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, ErrMaterialNotFound
		}
		return Material{}, err
	}
	m.Business = shared.Business(biz)
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	return m, nil
}
