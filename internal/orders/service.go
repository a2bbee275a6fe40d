package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabdesk/fabdesk/internal/clients"
	"github.com/fabdesk/fabdesk/internal/inventory"
	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// RepositoryPort abstracts order persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
	Insert(ctx context.Context, o Order) error
	Get(ctx context.Context, business shared.Business, id uuid.UUID) (Order, error)
	GetForUpdate(ctx context.Context, business shared.Business, id uuid.UUID) (Order, error)
	Update(ctx context.Context, o Order) error
	Delete(ctx context.Context, business shared.Business, id uuid.UUID) error
	List(ctx context.Context, business shared.Business, filter ListFilter) ([]Order, error)
	LastOrderNumber(ctx context.Context, business shared.Business, prefix string) (string, error)
	NextCounter(ctx context.Context, business shared.Business, period string, seed int) (int, error)
	CurrentCounter(ctx context.Context, business shared.Business, period string) (int, error)
}

// ClientPort loads the client an order is placed for.
type ClientPort interface {
	Get(ctx context.Context, business shared.Business, id uuid.UUID) (clients.Client, error)
}

// StockPort is the stock accounting surface orders consume.
type StockPort interface {
	GetMaterial(ctx context.Context, business shared.Business, id uuid.UUID) (inventory.Material, error)
	ApplyOrderConsumption(ctx context.Context, business shared.Business, lines []inventory.Line) error
	RestoreFromOrder(ctx context.Context, business shared.Business, lines []inventory.Line) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort records client supplied request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates the order lifecycle: numbering, pricing, stock
// consumption and the payment ledger.
type Service struct {
	repo        RepositoryPort
	clients     ClientPort
	stock       StockPort
	audit       AuditPort
	idempotency IdempotencyPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. audit and idempotency are optional.
func NewService(repo RepositoryPort, clients ClientPort, stock StockPort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		clients:     clients,
		stock:       stock,
		audit:       audit,
		idempotency: idem,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create numbers, prices and stores a new order and deducts its materials
// from stock, all in one transaction.
func (s *Service) Create(ctx context.Context, business shared.Business, input CreateInput) (Order, error) {
	if err := validateCreate(&input); err != nil {
		return Order{}, err
	}
	release, err := s.claim(ctx, business, input.IdempotencyKey)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	var order Order
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		client, err := s.clients.Get(ctx, business, input.ClientID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				return ErrClientNotFound
			}
			return fmt.Errorf("orders: load client: %w", err)
		}
		lines, err := s.priceLines(ctx, business, input.Lines)
		if err != nil {
			return err
		}

		order = Order{
			ID:              uuid.New(),
			Business:        business,
			Date:            dayOf(input.Date, now),
			ClientID:        client.ID,
			DesignType:      strings.TrimSpace(input.DesignType),
			Materials:       lines,
			LabourCost:      shared.RoundMoney(input.LabourCost),
			AdvanceReceived: shared.RoundMoney(input.AdvanceReceived),
			Payments:        []Payment{},
			DeliveryDate:    input.DeliveryDate,
			Status:          input.Status,
			Client:          ClientSnapshot{Name: client.Name, Mobile: client.Mobile, Type: client.Type, Address: client.Address},
			CreatedBy:       input.ActorID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		order.Recalculate()
		if err := ValidateAdvance(order.AdvanceReceived, order.TotalValue); err != nil {
			return err
		}
		if order.AdvanceReceived.IsPositive() {
			order.Payments = append(order.Payments, Payment{Amount: order.AdvanceReceived, Date: now, Method: input.AdvanceMethod})
		}

		number, err := s.nextNumber(ctx, business, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := s.repo.Insert(ctx, order); err != nil {
			return fmt.Errorf("orders: insert: %w", err)
		}
		if err := s.stock.ApplyOrderConsumption(ctx, business, stockLines(lines)); err != nil {
			return err
		}
		return s.record(ctx, order, input.ActorID, "order.create", map[string]any{
			"order_number": order.OrderNumber,
			"total_value":  order.TotalValue.String(),
		})
	})
	if err != nil {
		release()
		s.logFailure("create order", err, slog.String("client_id", input.ClientID.String()))
		return Order{}, err
	}
	return order, nil
}

// Update applies a partial update. Balance is always recomputed and the
// advance bound is checked whenever labour, advance or payments change.
func (s *Service) Update(ctx context.Context, business shared.Business, id uuid.UUID, input UpdateInput) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, business, id)
		if err != nil {
			return err
		}
		financial := false
		if input.DesignType != nil {
			o.DesignType = strings.TrimSpace(*input.DesignType)
		}
		if input.Date != nil {
			o.Date = dayOf(*input.Date, o.Date)
		}
		if input.DeliveryDate != nil {
			o.DeliveryDate = input.DeliveryDate
		}
		if input.Status != nil {
			if !input.Status.Valid() {
				return ErrInvalidStatus
			}
			o.Status = *input.Status
		}
		if input.LabourCost != nil {
			if input.LabourCost.IsNegative() {
				return ErrInvalidAmount
			}
			o.LabourCost = shared.RoundMoney(*input.LabourCost)
			financial = true
		}
		if input.Payments != nil {
			payments := make([]Payment, 0, len(*input.Payments))
			for _, p := range *input.Payments {
				p.Amount = shared.RoundMoney(p.Amount)
				if !p.Amount.IsPositive() {
					return ErrInvalidPaymentAmount
				}
				if !p.Method.Valid() {
					return ErrInvalidMethod
				}
				payments = append(payments, p)
			}
			o.Payments = payments
			if input.AdvanceReceived == nil {
				o.AdvanceReceived = SumPayments(payments)
			}
			financial = true
		}
		if input.AdvanceReceived != nil {
			if input.AdvanceReceived.IsNegative() {
				return ErrInvalidAmount
			}
			o.AdvanceReceived = shared.RoundMoney(*input.AdvanceReceived)
			financial = true
		}
		o.Recalculate()
		if financial {
			if err := ValidateAdvance(o.AdvanceReceived, o.TotalValue); err != nil {
				return err
			}
		}
		if sum := SumPayments(o.Payments); !sum.Equal(o.AdvanceReceived) {
			s.logger.Warn("payment ledger drift",
				slog.String("order_number", o.OrderNumber),
				slog.String("advance_received", o.AdvanceReceived.String()),
				slog.String("payments_total", sum.String()))
		}
		o.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("orders: update: %w", err)
		}
		order = o
		return s.record(ctx, o, input.ActorID, "order.update", map[string]any{
			"total_value":      o.TotalValue.String(),
			"advance_received": o.AdvanceReceived.String(),
			"status":           string(o.Status),
		})
	})
	if err != nil {
		s.logFailure("update order", err, slog.String("order_id", id.String()))
		return Order{}, err
	}
	return order, nil
}

// Delete restores the order's materials to stock and removes the order.
func (s *Service) Delete(ctx context.Context, business shared.Business, id uuid.UUID, actorID string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, business, id)
		if err != nil {
			return err
		}
		if err := s.restoreStock(ctx, business, o); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, business, id); err != nil {
			return err
		}
		return s.record(ctx, o, actorID, "order.delete", map[string]any{"order_number": o.OrderNumber})
	})
	if err != nil {
		s.logFailure("delete order", err, slog.String("order_id", id.String()))
	}
	return err
}

// restoreStock returns each line to stock. Lines whose material has since
// been deleted are skipped so the order can still be removed.
func (s *Service) restoreStock(ctx context.Context, business shared.Business, o Order) error {
	for _, line := range stockLines(o.Materials) {
		err := s.stock.RestoreFromOrder(ctx, business, []inventory.Line{line})
		if errors.Is(err, inventory.ErrMaterialNotFound) {
			s.logger.Warn("restore skipped for deleted material",
				slog.String("order_id", o.ID.String()),
				slog.String("order_number", o.OrderNumber),
				slog.String("material_id", line.MaterialID.String()),
				slog.String("quantity", line.Quantity.String()))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RecordPayment appends a payment to the ledger, raises the advance and
// recomputes the balance. Rejected payments leave the order unchanged.
func (s *Service) RecordPayment(ctx context.Context, business shared.Business, id uuid.UUID, input PaymentInput) (Order, error) {
	input.Amount = shared.RoundMoney(input.Amount)
	if !input.Amount.IsPositive() {
		return Order{}, ErrInvalidPaymentAmount
	}
	if !input.Method.Valid() {
		return Order{}, ErrInvalidMethod
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, business, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := o.AddPayment(Payment{Amount: input.Amount, Date: now, Method: input.Method, Account: strings.TrimSpace(input.Account)}); err != nil {
			return err
		}
		o.UpdatedAt = now
		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("orders: update: %w", err)
		}
		order = o
		return s.record(ctx, o, input.ActorID, "order.payment", map[string]any{
			"amount": input.Amount.String(),
			"method": string(input.Method),
		})
	})
	if err != nil {
		s.logFailure("record payment", err, slog.String("order_id", id.String()))
		return Order{}, err
	}
	return order, nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, business shared.Business, id uuid.UUID) (Order, error) {
	return s.repo.Get(ctx, business, id)
}

// List lists orders of a business.
func (s *Service) List(ctx context.Context, business shared.Business, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, business, filter)
}

// PeekNumber previews the next order number without reserving it.
func (s *Service) PeekNumber(ctx context.Context, business shared.Business) (string, error) {
	now := s.now()
	last, err := s.repo.LastOrderNumber(ctx, business, OrderNumberPrefix(now))
	if err != nil {
		return "", fmt.Errorf("orders: last number: %w", err)
	}
	current, err := s.repo.CurrentCounter(ctx, business, Period(now))
	if err != nil {
		return "", fmt.Errorf("orders: counter: %w", err)
	}
	return FormatOrderNumber(now, max(NextSequence(last), current+1)), nil
}

func (s *Service) nextNumber(ctx context.Context, business shared.Business, now time.Time) (string, error) {
	last, err := s.repo.LastOrderNumber(ctx, business, OrderNumberPrefix(now))
	if err != nil {
		return "", fmt.Errorf("orders: last number: %w", err)
	}
	seq, err := s.repo.NextCounter(ctx, business, Period(now), NextSequence(last))
	if err != nil {
		return "", fmt.Errorf("orders: advance counter: %w", err)
	}
	return FormatOrderNumber(now, seq), nil
}

func (s *Service) priceLines(ctx context.Context, business shared.Business, inputs []LineInput) ([]Line, error) {
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		m, err := s.stock.GetMaterial(ctx, business, in.MaterialID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				return nil, materialNotFound(i+1, in.MaterialID)
			}
			return nil, fmt.Errorf("orders: load material: %w", err)
		}
		qty := ComputeLineQuantity(in.Quantity, in.Width, in.Height, m.Size)
		lines = append(lines, Line{
			MaterialID:   m.ID,
			BaseQuantity: in.Quantity,
			Quantity:     qty,
			Width:        in.Width,
			Height:       in.Height,
			Rate:         m.Rate,
			Cost:         LineCost(qty, m.Rate),
			Material:     MaterialSnapshot{Type: m.Type, Size: m.Size, Thickness: m.Thickness},
		})
	}
	return lines, nil
}

func (s *Service) claim(ctx context.Context, business shared.Business, key string) (func(), error) {
	if s.idempotency == nil || key == "" {
		return func() {}, nil
	}
	scoped := shared.IdempotencyKey(business, "order", key)
	if err := s.idempotency.CheckAndInsert(ctx, scoped, "order"); err != nil {
		return nil, err
	}
	return func() {
		if err := s.idempotency.Delete(context.WithoutCancel(ctx), scoped); err != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", err), slog.String("key", scoped))
		}
	}, nil
}

func (s *Service) record(ctx context.Context, o Order, actorID, action string, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		Business: o.Business,
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: o.ID.String(),
		Meta:     meta,
		At:       s.now(),
	})
}

// logFailure logs errors that surface as 500. The transaction has already
// been rolled back.
func (s *Service) logFailure(op string, err error, attrs ...any) {
	if httpx.StatusFor(err) != http.StatusInternalServerError {
		return
	}
	s.logger.Error("orders "+op+" rolled back", append(attrs, slog.Any("error", err))...)
}

func validateCreate(input *CreateInput) error {
	var details []string
	if input.ClientID == uuid.Nil {
		details = append(details, "clientId is required")
	}
	if input.LabourCost.IsNegative() {
		details = append(details, "labourCost must be >= 0")
	}
	if input.AdvanceReceived.IsNegative() {
		details = append(details, "advanceReceived must be >= 0")
	}
	for i, l := range input.Lines {
		if l.MaterialID == uuid.Nil {
			details = append(details, fmt.Sprintf("materials[%d].materialId is required", i))
		}
		if !l.Quantity.IsPositive() {
			details = append(details, fmt.Sprintf("materials[%d].quantity must be gt 0", i))
		}
	}
	if input.Status == "" {
		input.Status = StatusPending
	} else if !input.Status.Valid() {
		details = append(details, "status must be one of [Pending, In Progress, Completed, Billed]")
	}
	if input.AdvanceMethod == "" {
		input.AdvanceMethod = MethodCash
	} else if !input.AdvanceMethod.Valid() {
		details = append(details, "advanceMethod must be one of [cash upi bank cheque card]")
	}
	if len(details) > 0 {
		return httpx.NewValidationError("invalid request", details...)
	}
	return nil
}

func stockLines(lines []Line) []inventory.Line {
	out := make([]inventory.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, inventory.Line{MaterialID: l.MaterialID, Quantity: l.Quantity})
	}
	return out
}

func dayOf(t, fallback time.Time) time.Time {
	if t.IsZero() {
		t = fallback
	}
	return shared.NewDate(t).Time
}
