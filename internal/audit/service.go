package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// MaxExportRows caps a single export.
	MaxExportRows = 5000
)

// ErrBusinessRequired rejects unscoped timeline reads.
var ErrBusinessRequired = errors.New("audit: business required")

// RepositoryPort reads audit rows.
type RepositoryPort interface {
	Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, f TimelineFilters, limit int) ([]TimelineRow, error)
}

// Service serves the audit timeline.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit rows.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	filters, err := normalise(filters)
	if err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row up to MaxExportRows.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	filters, err := normalise(filters)
	if err != nil {
		return nil, err
	}
	return s.repo.All(ctx, filters, MaxExportRows)
}

func normalise(f TimelineFilters) (TimelineFilters, error) {
	if !f.Business.Valid() {
		return f, ErrBusinessRequired
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, httpx.Invalidf("from must not be after to")
	}
	f.Actor = strings.TrimSpace(f.Actor)
	f.Entity = strings.TrimSpace(f.Entity)
	f.EntityID = strings.TrimSpace(f.EntityID)
	f.Action = strings.TrimSpace(f.Action)
	return f, nil
}
