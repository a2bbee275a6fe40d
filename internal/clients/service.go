package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, c Client) error
	Get(ctx context.Context, business shared.Business, id uuid.UUID) (Client, error)
	List(ctx context.Context, business shared.Business, filter ListFilter) ([]Client, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages clients.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create stores a new client with a zero outstanding balance.
func (s *Service) Create(ctx context.Context, business shared.Business, input CreateInput) (Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Client{}, httpx.NewValidationError("clients: name required")
	}
	now := time.Now().UTC()
	c := Client{
		ID:                 uuid.New(),
		Business:           business,
		Name:               name,
		Mobile:             strings.TrimSpace(input.Mobile),
		Address:            strings.TrimSpace(input.Address),
		GST:                strings.ToUpper(strings.TrimSpace(input.GST)),
		Type:               strings.TrimSpace(input.Type),
		OutstandingBalance: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Client{}, fmt.Errorf("clients: create: %w", err)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Business: business,
			ActorID:  input.ActorID,
			Action:   "client.create",
			Entity:   "client",
			EntityID: c.ID.String(),
			At:       now,
		}); err != nil {
			return Client{}, err
		}
	}
	return c, nil
}

// Get loads a client.
func (s *Service) Get(ctx context.Context, business shared.Business, id uuid.UUID) (Client, error) {
	return s.repo.Get(ctx, business, id)
}

// List lists clients of a business.
func (s *Service) List(ctx context.Context, business shared.Business, filter ListFilter) ([]Client, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, business, filter)
}
