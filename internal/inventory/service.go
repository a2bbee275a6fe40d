package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/fabdesk/fabdesk/internal/platform/db"
	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Store abstracts persistence for the service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context) error) error
	CreateMaterial(ctx context.Context, m Material) error
	GetMaterial(ctx context.Context, business shared.Business, id uuid.UUID) (Material, error)
	GetMaterialForUpdate(ctx context.Context, business shared.Business, id uuid.UUID) (Material, error)
	ListMaterials(ctx context.Context, business shared.Business, filter MaterialFilter) ([]Material, error)
	ListAlerts(ctx context.Context, business shared.Business) ([]Material, error)
	UpdateMaterial(ctx context.Context, m Material) error
	DeleteMaterial(ctx context.Context, business shared.Business, id uuid.UUID) error
	IncrementStock(ctx context.Context, business shared.Business, id uuid.UUID, delta decimal.Decimal) (Material, error)
	SetStock(ctx context.Context, business shared.Business, id uuid.UUID, value decimal.Decimal) (Material, error)
	InsertPurchase(ctx context.Context, p Purchase) error
	InsertWastage(ctx context.Context, w Wastage) error
	InsertAdjustment(ctx context.Context, a StockAdjustment) error
	History(ctx context.Context, business shared.Business, materialID uuid.UUID) (History, error)
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

// LockPort hands out exclusive locks.
type LockPort interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// AnomalyReporter forwards committed stock anomalies to background processing.
type AnomalyReporter interface {
	ReportStockAnomaly(ctx context.Context, a Anomaly) error
}

// AnomalyCounter counts anomalies locally when no reporter is wired.
type AnomalyCounter interface {
	AddAnomalies(kind, business string, count int)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	ReconcileLockTTL time.Duration
	Counter          AnomalyCounter
}

// Service coordinates stock accounting. It is the only writer of
// Material.CurrentStock besides manual material edits.
type Service struct {
	store       Store
	audit       AuditPort
	idempotency IdempotencyPort
	locker      LockPort
	reporter    AnomalyReporter
	counter     AnomalyCounter
	logger      *slog.Logger
	lockTTL     time.Duration
	alerts      singleflight.Group
	now         func() time.Time
}

// NewService builds Service. audit, idempotency, locker and reporter are optional.
func NewService(store Store, audit AuditPort, idem IdempotencyPort, locker LockPort, reporter AnomalyReporter, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.ReconcileLockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		store:       store,
		audit:       audit,
		idempotency: idem,
		locker:      locker,
		reporter:    reporter,
		counter:     cfg.Counter,
		logger:      logger,
		lockTTL:     ttl,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateMaterial records a stock intake. CurrentStock starts at OpeningStock.
func (s *Service) CreateMaterial(ctx context.Context, business shared.Business, input MaterialInput) (Material, error) {
	input.OpeningStock = shared.RoundQuantity(input.OpeningStock)
	input.LowStockAlert = shared.RoundQuantity(input.LowStockAlert)
	input.Rate = shared.RoundMoney(input.Rate)
	if strings.TrimSpace(input.Type) == "" {
		return Material{}, httpx.NewValidationError("inventory: material type required")
	}
	if input.OpeningStock.IsNegative() || input.LowStockAlert.IsNegative() {
		return Material{}, httpx.NewValidationError("inventory: opening stock and low stock alert must be >= 0")
	}
	if input.Rate.IsNegative() {
		return Material{}, ErrInvalidRate
	}
	now := s.now()
	m := Material{
		ID:            uuid.New(),
		Business:      business,
		Type:          strings.TrimSpace(input.Type),
		Size:          strings.TrimSpace(input.Size),
		Thickness:     strings.TrimSpace(input.Thickness),
		OpeningStock:  input.OpeningStock,
		CurrentStock:  input.OpeningStock,
		LowStockAlert: input.LowStockAlert,
		Rate:          input.Rate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateMaterial(ctx, m); err != nil {
			return fmt.Errorf("inventory: create material: %w", err)
		}
		return s.record(ctx, business, input.ActorID, "material.create", m.ID, map[string]any{
			"type":          m.Type,
			"opening_stock": m.OpeningStock.String(),
		})
	})
	if err != nil {
		return Material{}, err
	}
	return m, nil
}

// GetMaterial loads one material.
func (s *Service) GetMaterial(ctx context.Context, business shared.Business, id uuid.UUID) (Material, error) {
	return s.store.GetMaterial(ctx, business, id)
}

// ListMaterials lists materials of a business.
func (s *Service) ListMaterials(ctx context.Context, business shared.Business, filter MaterialFilter) ([]Material, error) {
	return s.store.ListMaterials(ctx, business, filter)
}

// UpdateMaterial applies a manual edit. Stock quantities are not editable here.
func (s *Service) UpdateMaterial(ctx context.Context, business shared.Business, id uuid.UUID, patch MaterialPatch) (Material, error) {
	var out Material
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.store.GetMaterialForUpdate(ctx, business, id)
		if err != nil {
			return err
		}
		before := m
		if patch.Type != nil {
			if strings.TrimSpace(*patch.Type) == "" {
				return httpx.NewValidationError("inventory: material type required")
			}
			m.Type = strings.TrimSpace(*patch.Type)
		}
		if patch.Size != nil {
			m.Size = strings.TrimSpace(*patch.Size)
		}
		if patch.Thickness != nil {
			m.Thickness = strings.TrimSpace(*patch.Thickness)
		}
		if patch.LowStockAlert != nil {
			if patch.LowStockAlert.IsNegative() {
				return httpx.NewValidationError("inventory: low stock alert must be >= 0")
			}
			m.LowStockAlert = shared.RoundQuantity(*patch.LowStockAlert)
		}
		if patch.Rate != nil {
			if patch.Rate.IsNegative() {
				return ErrInvalidRate
			}
			m.Rate = shared.RoundMoney(*patch.Rate)
		}
		if err := s.store.UpdateMaterial(ctx, m); err != nil {
			return fmt.Errorf("inventory: update material: %w", err)
		}
		m.UpdatedAt = s.now()
		s.flag(ctx, DetectAnomalies(before, m, "edit", m.UpdatedAt))
		out = m
		return s.record(ctx, business, patch.ActorID, "material.update", m.ID, nil)
	})
	if err != nil {
		return Material{}, err
	}
	return out, nil
}

// DeleteMaterial removes a material. Its history rows stay behind.
func (s *Service) DeleteMaterial(ctx context.Context, business shared.Business, id uuid.UUID, actorID string) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.DeleteMaterial(ctx, business, id); err != nil {
			return err
		}
		return s.record(ctx, business, actorID, "material.delete", id, nil)
	})
}

// ApplyPurchase adds qty to the material's stock. Empty ids and zero
// quantities are a no-op.
func (s *Service) ApplyPurchase(ctx context.Context, business shared.Business, materialID uuid.UUID, qty decimal.Decimal) (Material, error) {
	if materialID == uuid.Nil || qty.IsZero() {
		return Material{}, nil
	}
	return s.applyDelta(ctx, business, materialID, qty, "purchase")
}

// ApplyWastage subtracts qty from the material's stock. The result may go
// negative; that state is reported, not rejected.
func (s *Service) ApplyWastage(ctx context.Context, business shared.Business, materialID uuid.UUID, qty decimal.Decimal) (Material, error) {
	if materialID == uuid.Nil || qty.IsZero() {
		return Material{}, nil
	}
	return s.applyDelta(ctx, business, materialID, qty.Neg(), "wastage")
}

// ApplyOrderConsumption deducts every line from stock in order. A missing
// material aborts the surrounding transaction.
func (s *Service) ApplyOrderConsumption(ctx context.Context, business shared.Business, lines []Line) error {
	return s.applyLines(ctx, business, lines, true, "order")
}

// RestoreFromOrder adds every line back to stock.
func (s *Service) RestoreFromOrder(ctx context.Context, business shared.Business, lines []Line) error {
	return s.applyLines(ctx, business, lines, false, "order_delete")
}

func (s *Service) applyLines(ctx context.Context, business shared.Business, lines []Line, deduct bool, source string) error {
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		for i, line := range lines {
			if line.Quantity.IsZero() {
				continue
			}
			delta := line.Quantity
			if deduct {
				delta = delta.Neg()
			}
			if _, err := s.applyDelta(ctx, business, line.MaterialID, delta, source); err != nil {
				return fmt.Errorf("inventory: %s line %d (%s): %w", source, i+1, line.MaterialID, err)
			}
		}
		return nil
	})
}

func (s *Service) applyDelta(ctx context.Context, business shared.Business, id uuid.UUID, delta decimal.Decimal, source string) (Material, error) {
	after, err := s.store.IncrementStock(ctx, business, id, delta)
	if err != nil {
		return Material{}, err
	}
	before := after
	before.CurrentStock = after.CurrentStock.Sub(delta)
	s.flag(ctx, DetectAnomalies(before, after, source, s.now()))
	return after, nil
}

// RecordPurchase stores a purchase and raises stock in one transaction.
func (s *Service) RecordPurchase(ctx context.Context, business shared.Business, input PurchaseInput) (Purchase, error) {
	if input.MaterialID == uuid.Nil {
		return Purchase{}, httpx.NewValidationError("inventory: material id required")
	}
	input.Quantity = shared.RoundQuantity(input.Quantity)
	input.Rate = shared.RoundMoney(input.Rate)
	if !input.Quantity.IsPositive() {
		return Purchase{}, ErrInvalidQuantity
	}
	if input.Rate.IsNegative() {
		return Purchase{}, ErrInvalidRate
	}
	release, err := s.claim(ctx, business, "purchase", input.IdempotencyKey)
	if err != nil {
		return Purchase{}, err
	}
	now := s.now()
	p := Purchase{
		ID:         uuid.New(),
		Business:   business,
		MaterialID: input.MaterialID,
		Date:       dateOr(input.Date, now),
		Supplier:   strings.TrimSpace(input.Supplier),
		Quantity:   input.Quantity,
		Rate:       input.Rate,
		Total:      shared.RoundMoney(input.Quantity.Mul(input.Rate)),
		CreatedBy:  input.ActorID,
		CreatedAt:  now,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertPurchase(ctx, p); err != nil {
			return fmt.Errorf("inventory: insert purchase: %w", err)
		}
		if _, err := s.ApplyPurchase(ctx, business, p.MaterialID, p.Quantity); err != nil {
			return err
		}
		return s.record(ctx, business, input.ActorID, "stock.purchase", p.MaterialID, map[string]any{
			"purchase_id": p.ID.String(),
			"quantity":    p.Quantity.String(),
		})
	})
	if err != nil {
		release()
		return Purchase{}, err
	}
	return p, nil
}

// RecordWastage stores a wastage entry and lowers stock in one transaction.
func (s *Service) RecordWastage(ctx context.Context, business shared.Business, input WastageInput) (Wastage, error) {
	if input.MaterialID == uuid.Nil {
		return Wastage{}, httpx.NewValidationError("inventory: material id required")
	}
	input.Quantity = shared.RoundQuantity(input.Quantity)
	if !input.Quantity.IsPositive() {
		return Wastage{}, ErrInvalidQuantity
	}
	release, err := s.claim(ctx, business, "wastage", input.IdempotencyKey)
	if err != nil {
		return Wastage{}, err
	}
	now := s.now()
	w := Wastage{
		ID:         uuid.New(),
		Business:   business,
		MaterialID: input.MaterialID,
		Date:       dateOr(input.Date, now),
		Quantity:   input.Quantity,
		Reason:     strings.TrimSpace(input.Reason),
		CreatedBy:  input.ActorID,
		CreatedAt:  now,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertWastage(ctx, w); err != nil {
			return fmt.Errorf("inventory: insert wastage: %w", err)
		}
		if _, err := s.ApplyWastage(ctx, business, w.MaterialID, w.Quantity); err != nil {
			return err
		}
		return s.record(ctx, business, input.ActorID, "stock.wastage", w.MaterialID, map[string]any{
			"wastage_id": w.ID.String(),
			"quantity":   w.Quantity.String(),
		})
	})
	if err != nil {
		release()
		return Wastage{}, err
	}
	return w, nil
}

// Reconcile overwrites a material's stock with a physical count and keeps
// an immutable adjustment record of the difference.
func (s *Service) Reconcile(ctx context.Context, business shared.Business, input ReconcileInput) (StockAdjustment, error) {
	if input.MaterialID == uuid.Nil {
		return StockAdjustment{}, httpx.NewValidationError("inventory: material id required")
	}
	input.NewStock = shared.RoundQuantity(input.NewStock)
	if s.locker != nil {
		unlock, err := s.locker.Obtain(ctx, shared.MaterialReconcileLockKey(business, input.MaterialID.String()), s.lockTTL)
		if err != nil {
			return StockAdjustment{}, err
		}
		defer unlock()
	}
	var adj StockAdjustment
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.store.GetMaterialForUpdate(ctx, business, input.MaterialID)
		if err != nil {
			return err
		}
		now := s.now()
		adj = StockAdjustment{
			ID:            uuid.New(),
			Business:      business,
			MaterialID:    m.ID,
			Date:          dateOr(input.Date, now),
			PreviousStock: m.CurrentStock,
			NewStock:      input.NewStock,
			Adjustment:    input.NewStock.Sub(m.CurrentStock),
			Reason:        strings.TrimSpace(input.Reason),
			CreatedBy:     input.ActorID,
			CreatedAt:     now,
		}
		if err := s.store.InsertAdjustment(ctx, adj); err != nil {
			return fmt.Errorf("inventory: insert adjustment: %w", err)
		}
		after, err := s.store.SetStock(ctx, business, m.ID, input.NewStock)
		if err != nil {
			return fmt.Errorf("inventory: set stock: %w", err)
		}
		s.flag(ctx, DetectAnomalies(m, after, "reconcile", now))
		return s.record(ctx, business, input.ActorID, "stock.reconcile", m.ID, map[string]any{
			"previous_stock": adj.PreviousStock.String(),
			"new_stock":      adj.NewStock.String(),
			"adjustment":     adj.Adjustment.String(),
			"reason":         adj.Reason,
		})
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	return adj, nil
}

// History lists stock movements of an existing material.
func (s *Service) History(ctx context.Context, business shared.Business, id uuid.UUID) (History, error) {
	if _, err := s.store.GetMaterial(ctx, business, id); err != nil {
		return History{}, err
	}
	return s.store.History(ctx, business, id)
}

// StockAlerts lists negative and low stock materials. Concurrent callers for
// the same business share one query.
func (s *Service) StockAlerts(ctx context.Context, business shared.Business) ([]Material, error) {
	v, err, _ := s.alerts.Do(string(business), func() (any, error) {
		return s.store.ListAlerts(ctx, business)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Material), nil
}

// ScanAnomalies reports every material currently negative or low. The worker
// runs it on a schedule.
func (s *Service) ScanAnomalies(ctx context.Context, business shared.Business) (int, error) {
	materials, err := s.store.ListAlerts(ctx, business)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var count int
	for _, m := range materials {
		// zero "before" so threshold crossings are always reported.
		for _, a := range DetectAnomalies(Material{}, m, "scan", now) {
			s.report(ctx, a)
			count++
		}
	}
	return count, nil
}

// flag logs anomalies now and reports them once the transaction commits.
func (s *Service) flag(ctx context.Context, anomalies []Anomaly) {
	for _, a := range anomalies {
		s.logger.Warn("stock anomaly",
			slog.String("kind", string(a.Kind)),
			slog.String("business", string(a.Business)),
			slog.String("material_id", a.MaterialID.String()),
			slog.String("current_stock", a.CurrentStock.String()),
			slog.String("source", a.Source))
		a := a
		db.AfterCommit(ctx, func(ctx context.Context) {
			s.report(ctx, a)
		})
	}
}

// report hands a to the reporter. Without one the anomaly is only counted;
// the reporter's consumer counts it otherwise.
func (s *Service) report(ctx context.Context, a Anomaly) {
	if s.reporter == nil {
		if s.counter != nil {
			s.counter.AddAnomalies(string(a.Kind), string(a.Business), 1)
		}
		return
	}
	if err := s.reporter.ReportStockAnomaly(ctx, a); err != nil {
		s.logger.Error("report stock anomaly", slog.Any("error", err), slog.String("material_id", a.MaterialID.String()))
	}
}

func (s *Service) claim(ctx context.Context, business shared.Business, module, key string) (func(), error) {
	if s.idempotency == nil || key == "" {
		return func() {}, nil
	}
	scoped := shared.IdempotencyKey(business, module, key)
	if err := s.idempotency.CheckAndInsert(ctx, scoped, module); err != nil {
		return nil, err
	}
	return func() {
		if err := s.idempotency.Delete(context.WithoutCancel(ctx), scoped); err != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", err), slog.String("key", scoped))
		}
	}, nil
}

func (s *Service) record(ctx context.Context, business shared.Business, actorID, action string, id uuid.UUID, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		Business: business,
		ActorID:  actorID,
		Action:   action,
		Entity:   "material",
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now(),
	})
}

func dateOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		t = fallback
	}
	return shared.NewDate(t).Time
}
