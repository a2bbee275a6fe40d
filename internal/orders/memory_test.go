package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/clients"
	"github.com/fabdesk/fabdesk/internal/inventory"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// world is an in-memory ledger holding orders, counters, clients and stock.
// WithTx snapshots orders, counters and stock and restores them on error.
type world struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]Order
	counters  map[string]int
	materials map[uuid.UUID]inventory.Material
	clients   map[uuid.UUID]clients.Client
	failOn    map[uuid.UUID]error
}

type worldTxKey struct{}

func newWorld() *world {
	return &world{
		orders:    make(map[uuid.UUID]Order),
		counters:  make(map[string]int),
		materials: make(map[uuid.UUID]inventory.Material),
		clients:   make(map[uuid.UUID]clients.Client),
		failOn:    make(map[uuid.UUID]error),
	}
}

func (w *world) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(worldTxKey{}) != nil {
		return fn(ctx)
	}
	w.mu.Lock()
	orders := make(map[uuid.UUID]Order, len(w.orders))
	for k, v := range w.orders {
		orders[k] = cloneOrder(v)
	}
	counters := make(map[string]int, len(w.counters))
	for k, v := range w.counters {
		counters[k] = v
	}
	materials := make(map[uuid.UUID]inventory.Material, len(w.materials))
	for k, v := range w.materials {
		materials[k] = v
	}
	w.mu.Unlock()

	if err := fn(context.WithValue(ctx, worldTxKey{}, true)); err != nil {
		w.mu.Lock()
		w.orders = orders
		w.counters = counters
		w.materials = materials
		w.mu.Unlock()
		return err
	}
	return nil
}

func (w *world) addClient(name string) clients.Client {
	c := clients.Client{ID: uuid.New(), Business: shared.BusinessCNC, Name: name, Mobile: "9820000000", Type: "Retail", Address: "Pune"}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[c.ID] = c
	return c
}

func (w *world) addMaterial(stock, rate string) inventory.Material {
	m := inventory.Material{
		ID:           uuid.New(),
		Business:     shared.BusinessCNC,
		Type:         "MDF",
		Size:         "8x4",
		Thickness:    "18mm",
		CurrentStock: decimal.RequireFromString(stock),
		Rate:         decimal.RequireFromString(rate),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.materials[m.ID] = m
	return m
}

func (w *world) removeMaterial(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.materials, id)
}

func (w *world) stock(id uuid.UUID) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.materials[id].CurrentStock
}

func (w *world) order(id uuid.UUID) Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneOrder(w.orders[id])
}

func (w *world) orderCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.orders)
}

// ClientPort.
func (w *world) Get(_ context.Context, business shared.Business, id uuid.UUID) (clients.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.clients[id]
	if !ok || c.Business != business {
		return clients.Client{}, clients.ErrNotFound
	}
	return c, nil
}

// StockPort.
func (w *world) GetMaterial(_ context.Context, business shared.Business, id uuid.UUID) (inventory.Material, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.materials[id]
	if !ok || m.Business != business {
		return inventory.Material{}, inventory.ErrMaterialNotFound
	}
	return m, nil
}

func (w *world) ApplyOrderConsumption(ctx context.Context, business shared.Business, lines []inventory.Line) error {
	return w.applyLines(ctx, business, lines, -1)
}

func (w *world) RestoreFromOrder(ctx context.Context, business shared.Business, lines []inventory.Line) error {
	return w.applyLines(ctx, business, lines, 1)
}

func (w *world) applyLines(ctx context.Context, business shared.Business, lines []inventory.Line, sign int64) error {
	return w.WithTx(ctx, func(context.Context) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, l := range lines {
			if err := w.failOn[l.MaterialID]; err != nil {
				return err
			}
			m, ok := w.materials[l.MaterialID]
			if !ok || m.Business != business {
				return fmt.Errorf("inventory: line %d: %w", i+1, inventory.ErrMaterialNotFound)
			}
			m.CurrentStock = m.CurrentStock.Add(l.Quantity.Mul(decimal.NewFromInt(sign)))
			w.materials[l.MaterialID] = m
		}
		return nil
	})
}

// RepositoryPort. The client lookup above shares the Get name, so orders
// are reached through ordersRepo.
type ordersRepo struct{ *world }

func (r ordersRepo) Insert(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.Business == o.Business && existing.OrderNumber == o.OrderNumber {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.OrderNumber)
		}
	}
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r ordersRepo) Get(_ context.Context, business shared.Business, id uuid.UUID) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Business != business {
		return Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r ordersRepo) GetForUpdate(ctx context.Context, business shared.Business, id uuid.UUID) (Order, error) {
	return r.Get(ctx, business, id)
}

func (r ordersRepo) Update(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.orders[o.ID]
	if !ok || existing.Business != o.Business {
		return ErrNotFound
	}
	existing.Date = o.Date
	existing.DesignType = o.DesignType
	existing.LabourCost = o.LabourCost
	existing.TotalValue = o.TotalValue
	existing.AdvanceReceived = o.AdvanceReceived
	existing.BalanceAmount = o.BalanceAmount
	existing.Payments = append([]Payment(nil), o.Payments...)
	existing.DeliveryDate = o.DeliveryDate
	existing.Status = o.Status
	existing.UpdatedAt = o.UpdatedAt
	r.orders[o.ID] = existing
	return nil
}

func (r ordersRepo) Delete(_ context.Context, business shared.Business, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Business != business {
		return ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r ordersRepo) List(_ context.Context, business shared.Business, filter ListFilter) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.Business != business {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.ClientID != uuid.Nil && o.ClientID != filter.ClientID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	return out, nil
}

func (r ordersRepo) LastOrderNumber(_ context.Context, business shared.Business, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last string
	for _, o := range r.orders {
		if o.Business != business || !strings.HasPrefix(o.OrderNumber, prefix+"-") || !WellFormed(o.OrderNumber) {
			continue
		}
		if len(o.OrderNumber) > len(last) || (len(o.OrderNumber) == len(last) && o.OrderNumber > last) {
			last = o.OrderNumber
		}
	}
	return last, nil
}

func (r ordersRepo) NextCounter(_ context.Context, business shared.Business, period string, seed int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(business) + ":" + period
	current, ok := r.counters[key]
	next := seed
	if ok {
		next = max(current+1, seed)
	}
	r.counters[key] = next
	return next, nil
}

func (r ordersRepo) CurrentCounter(_ context.Context, business shared.Business, period string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[string(business)+":"+period], nil
}

func cloneOrder(o Order) Order {
	o.Materials = append([]Line(nil), o.Materials...)
	o.Payments = append([]Payment(nil), o.Payments...)
	return o
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (w *world) addClientFor(business shared.Business) clients.Client {
	c := w.addClient("Tenant client")
	c.Business = business
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[c.ID] = c
	return c
}
