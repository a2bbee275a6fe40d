package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabdesk/fabdesk/internal/platform/db"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Repository persists clients in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, business, name, mobile, address, gst, client_type, outstanding_balance, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, c Client) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO clients (id, business, name, mobile, address, gst, client_type, outstanding_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		c.ID, string(c.Business), c.Name, c.Mobile, c.Address, c.GST, c.Type, c.OutstandingBalance, c.CreatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, business shared.Business, id uuid.UUID) (Client, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE business = $1 AND id = $2`, string(business), id)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) List(ctx context.Context, business shared.Business, filter ListFilter) ([]Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE business = $1`
	args := []any{string(business)}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR mobile ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Client, error) {
		return scanClient(row)
	})
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	var biz string
	err := row.Scan(&c.ID, &biz, &c.Name, &c.Mobile, &c.Address, &c.GST, &c.Type, &c.OutstandingBalance, &c.CreatedAt, &c.UpdatedAt)
	c.Business = shared.Business(biz)
	return c, err
}
