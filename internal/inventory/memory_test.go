package inventory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/shared"
)

type memoryStore struct {
	mu          sync.Mutex
	materials   map[uuid.UUID]Material
	purchases   []Purchase
	wastages    []Wastage
	adjustments []StockAdjustment
}

type memoryTxKey struct{}

func newMemoryStore() *memoryStore {
	return &memoryStore{materials: make(map[uuid.UUID]Material)}
}

// WithTx snapshots state and restores it when fn fails. Nested calls join
// the outer snapshot.
func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	materials := make(map[uuid.UUID]Material, len(s.materials))
	for k, v := range s.materials {
		materials[k] = v
	}
	purchases := append([]Purchase(nil), s.purchases...)
	wastages := append([]Wastage(nil), s.wastages...)
	adjustments := append([]StockAdjustment(nil), s.adjustments...)
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.materials = materials
		s.purchases = purchases
		s.wastages = wastages
		s.adjustments = adjustments
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memoryStore) seed(m Material) Material {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Business == "" {
		m.Business = shared.BusinessCNC
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[m.ID] = m
	return m
}

func (s *memoryStore) stock(id uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materials[id].CurrentStock
}

func (s *memoryStore) CreateMaterial(_ context.Context, m Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[m.ID] = m
	return nil
}

func (s *memoryStore) GetMaterial(_ context.Context, business shared.Business, id uuid.UUID) (Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.Business != business {
		return Material{}, ErrMaterialNotFound
	}
	return m, nil
}

func (s *memoryStore) GetMaterialForUpdate(ctx context.Context, business shared.Business, id uuid.UUID) (Material, error) {
	return s.GetMaterial(ctx, business, id)
}

func (s *memoryStore) ListMaterials(_ context.Context, business shared.Business, filter MaterialFilter) ([]Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Material
	for _, m := range s.materials {
		if m.Business != business {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *memoryStore) ListAlerts(_ context.Context, business shared.Business) ([]Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Material
	for _, m := range s.materials {
		if m.Business == business && (m.IsNegative() || m.IsLow()) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentStock.LessThan(out[j].CurrentStock) })
	return out, nil
}

func (s *memoryStore) UpdateMaterial(_ context.Context, m Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.materials[m.ID]
	if !ok || existing.Business != m.Business {
		return ErrMaterialNotFound
	}
	m.CurrentStock = existing.CurrentStock
	m.OpeningStock = existing.OpeningStock
	s.materials[m.ID] = m
	return nil
}

func (s *memoryStore) DeleteMaterial(_ context.Context, business shared.Business, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.Business != business {
		return ErrMaterialNotFound
	}
	delete(s.materials, id)
	return nil
}

func (s *memoryStore) IncrementStock(_ context.Context, business shared.Business, id uuid.UUID, delta decimal.Decimal) (Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.Business != business {
		return Material{}, ErrMaterialNotFound
	}
	m.CurrentStock = m.CurrentStock.Add(delta)
	s.materials[id] = m
	return m, nil
}

func (s *memoryStore) SetStock(_ context.Context, business shared.Business, id uuid.UUID, value decimal.Decimal) (Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.Business != business {
		return Material{}, ErrMaterialNotFound
	}
	m.CurrentStock = value
	s.materials[id] = m
	return m, nil
}

func (s *memoryStore) InsertPurchase(_ context.Context, p Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = append(s.purchases, p)
	return nil
}

func (s *memoryStore) InsertWastage(_ context.Context, w Wastage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wastages = append(s.wastages, w)
	return nil
}

func (s *memoryStore) InsertAdjustment(_ context.Context, a StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustments = append(s.adjustments, a)
	return nil
}

func (s *memoryStore) History(_ context.Context, business shared.Business, id uuid.UUID) (History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var h History
	for _, p := range s.purchases {
		if p.Business == business && p.MaterialID == id {
			h.Purchases = append(h.Purchases, p)
		}
	}
	for _, w := range s.wastages {
		if w.Business == business && w.MaterialID == id {
			h.Wastages = append(h.Wastages, w)
		}
	}
	for _, a := range s.adjustments {
		if a.Business == business && a.MaterialID == id {
			h.Adjustments = append(h.Adjustments, a)
		}
	}
	return h, nil
}

type recordingReporter struct {
	mu        sync.Mutex
	anomalies []Anomaly
}

func (r *recordingReporter) ReportStockAnomaly(_ context.Context, a Anomaly) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies = append(r.anomalies, a)
	return nil
}

func (r *recordingReporter) kinds() []AnomalyKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AnomalyKind, 0, len(r.anomalies))
	for _, a := range r.anomalies {
		out = append(out, a.Kind)
	}
	return out
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]string)
	}
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *recordingCounter) AddAnomalies(kind, business string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[kind+"/"+business] += count
}

func (c *recordingCounter) get(kind AnomalyKind, business shared.Business) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[string(kind)+"/"+string(business)]
}
