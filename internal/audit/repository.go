package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Window returns at most limit rows after offset, newest first.
func (r *Repository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := buildWhere(f)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, occurred_at, actor_id, action, entity, entity_id, meta
FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	return r.query(ctx, query, args...)
}

// All returns up to limit rows matching f, newest first.
func (r *Repository) All(ctx context.Context, f TimelineFilters, limit int) ([]TimelineRow, error) {
	where, args := buildWhere(f)
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, occurred_at, actor_id, action, entity, entity_id, meta
FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d`, where, len(args))
	return r.query(ctx, query, args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			out  TimelineRow
			meta []byte
		)
		if err := row.Scan(&out.ID, &out.At, &out.Actor, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &out.Meta); err != nil {
				return TimelineRow{}, fmt.Errorf("audit: decode meta of %d: %w", out.ID, err)
			}
		}
		return out, nil
	})
}

func buildWhere(f TimelineFilters) (string, []any) {
	clauses := []string{"business = $1"}
	args := []any{string(f.Business)}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		// To is a calendar day; include all of it.
		add("occurred_at < $%d", f.To.Add(24*time.Hour))
	}
	if f.Actor != "" {
		add("actor_id = $%d", f.Actor)
	}
	if f.Entity != "" {
		add("entity = $%d", f.Entity)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	return strings.Join(clauses, " AND "), args
}
