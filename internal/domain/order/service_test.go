package order

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliakaiko/orderservice/internal/domain/buyer"
	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/failure"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	mu         sync.Mutex
	nextID     int64
	nextItemID int64
	byID       map[int64]*Order
	// locked is set while an Update callback runs under the row lock.
	locked atomic.Bool
}

func newOrderRepo(orders ...Order) *mockOrderRepo {
	m := &mockOrderRepo{byID: make(map[int64]*Order)}
	for i := range orders {
		o := cloneOrder(&orders[i])
		m.byID[o.ID] = o
		if o.ID > m.nextID {
			m.nextID = o.ID
		}
		for _, li := range o.LineItems {
			if li.ID > m.nextItemID {
				m.nextItemID = li.ID
			}
		}
	}
	return m
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.LineItems = append([]LineItem(nil), o.LineItems...)
	c.itemsChanged = false
	return &c
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	for i := range o.LineItems {
		m.nextItemID++
		o.LineItems[i].ID = m.nextItemID
		o.LineItems[i].OrderID = o.ID
	}
	m.byID[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockOrderRepo) Update(_ context.Context, id int64, fn func(*Order) error) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	o := cloneOrder(stored)
	m.locked.Store(true)
	err := fn(o)
	m.locked.Store(false)
	if err != nil {
		return nil, err
	}
	if o.LineItemsChanged() {
		for i := range o.LineItems {
			if o.LineItems[i].ID == 0 {
				m.nextItemID++
				o.LineItems[i].ID = m.nextItemID
			}
		}
	}
	m.byID[id] = cloneOrder(o)
	return o, nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.byID, id)
	return o, nil
}

func (m *mockOrderRepo) List(_ context.Context, f Filter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if f.BuyerID != nil && o.BuyerID != *f.BuyerID {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockOrderRepo) ListPage(_ context.Context, req page.Request) (*page.Page[Order], error) {
	return &page.Page[Order]{Page: req.Page, Size: req.Size}, nil
}

func (m *mockOrderRepo) GetLineItem(_ context.Context, id int64) (*LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		for _, li := range o.LineItems {
			if li.ID == id {
				return &li, nil
			}
		}
	}
	return nil, ErrLineItemNotFound
}

func (m *mockOrderRepo) ListLineItems(_ context.Context, ids []int64) ([]LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []LineItem
	for _, o := range m.byID {
		for _, li := range o.LineItems {
			if len(ids) == 0 || want[li.ID] {
				out = append(out, li)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockOrderRepo) ListLineItemsPage(_ context.Context, req page.Request) (*page.Page[LineItem], error) {
	return &page.Page[LineItem]{Page: req.Page, Size: req.Size}, nil
}

func (m *mockOrderRepo) get(t *testing.T, id int64) *Order {
	t.Helper()
	o, err := m.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

type mockCatalog struct {
	byID map[int64]catalog.Item
}

func newCatalog(items ...catalog.Item) *mockCatalog {
	m := &mockCatalog{byID: make(map[int64]catalog.Item, len(items))}
	for _, it := range items {
		m.byID[it.ID] = it
	}
	return m
}

func (m *mockCatalog) Create(context.Context, *catalog.Item) error { return nil }

func (m *mockCatalog) GetByID(_ context.Context, id int64) (*catalog.Item, error) {
	it, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &it, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []int64) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := m.byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockCatalog) Update(context.Context, *catalog.Item) error           { return nil }
func (m *mockCatalog) Delete(context.Context, int64) (*catalog.Item, error) { return nil, nil }
func (m *mockCatalog) List(context.Context) ([]catalog.Item, error)         { return nil, nil }

func (m *mockCatalog) ListPage(context.Context, page.Request) (*page.Page[catalog.Item], error) {
	return nil, nil
}

type mockDirectory struct {
	orders      *mockOrderRepo
	calls       int
	callsLocked int
}

func (m *mockDirectory) ByID(_ context.Context, id int64) (*buyer.Profile, error) {
	m.calls++
	if m.orders != nil && m.orders.locked.Load() {
		m.callsLocked++
	}
	if id >= 100 {
		return nil, buyer.ErrNotFound
	}
	return &buyer.Profile{ID: id, Name: "Julia", Email: "julia@example.com"}, nil
}

func (m *mockDirectory) ByEmail(_ context.Context, email string) (*buyer.Profile, error) {
	m.calls++
	if email != "julia@example.com" {
		return nil, buyer.ErrNotFound
	}
	return &buyer.Profile{ID: 1, Name: "Julia", Email: email}, nil
}

// mockPublisher records publications. Confirmations are held until the test
// releases them, mimicking the asynchronous broker acknowledgement.
type mockPublisher struct {
	published []Order
	confirms  []func()
}

func (m *mockPublisher) Publish(_ context.Context, o *Order, onConfirmed func()) {
	m.published = append(m.published, *cloneOrder(o))
	m.confirms = append(m.confirms, onConfirmed)
}

func (m *mockPublisher) confirmAll() {
	for _, fn := range m.confirms {
		fn()
	}
}

// --- Helpers ---

type fixture struct {
	orders    *mockOrderRepo
	buyers    *mockDirectory
	publisher *mockPublisher
	svc       *Service
	lineItems *LineItemService
}

func newFixture(orders ...Order) *fixture {
	repo := newOrderRepo(orders...)
	f := &fixture{
		orders:    repo,
		buyers:    &mockDirectory{orders: repo},
		publisher: &mockPublisher{},
	}
	items := newCatalog(
		catalog.Item{ID: 2, Name: "Keyboard", UnitPrice: decimal.RequireFromString("100.00")},
		catalog.Item{ID: 3, Name: "Cable", UnitPrice: decimal.RequireFromString("4.99")},
	)
	f.svc = NewService(f.orders, items, f.buyers, f.publisher)
	f.lineItems = NewLineItemService(f.orders, f.orders, items)
	return f
}

func paidOrder() Order {
	return Order{
		ID:      1,
		BuyerID: 1,
		Status:  StatusPaid,
		LineItems: []LineItem{
			{ID: 1, OrderID: 1, CatalogItemID: 2, Quantity: 5, UnitPrice: decimal.RequireFromString("100.00")},
		},
	}
}

// --- Tests ---

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateRequest{
		BuyerID: 1,
		Items:   []ItemRequest{{CatalogItemID: 2, Quantity: 5}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, v.Order.Status)
	assert.Equal(t, int64(1), v.Buyer.ID)
	assert.False(t, v.Order.CreationDate.IsZero())
	assert.True(t, decimal.RequireFromString("500.00").Equal(v.Order.PaymentAmount()))

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, v.Order.ID, f.publisher.published[0].ID)
	assert.Equal(t, StatusCreated, f.orders.get(t, v.Order.ID).Status)

	f.publisher.confirmAll()
	assert.Equal(t, StatusProcessing, f.orders.get(t, v.Order.ID).Status)

	// A duplicated confirmation leaves the order where it is.
	f.publisher.confirmAll()
	assert.Equal(t, StatusProcessing, f.orders.get(t, v.Order.ID).Status)
}

func TestCreate_PublishNotConfirmed(t *testing.T) {
	f := newFixture()

	v, err := f.svc.Create(context.Background(), CreateRequest{
		BuyerID: 1,
		Items:   []ItemRequest{{CatalogItemID: 3, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, f.publisher.published, 1)

	assert.Equal(t, StatusCreated, f.orders.get(t, v.Order.ID).Status)
}

func TestCreate_ConfirmAfterCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateRequest{
		BuyerID: 1,
		Items:   []ItemRequest{{CatalogItemID: 3, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, v.Order.ID)
	require.NoError(t, err)

	f.publisher.confirmAll()
	assert.Equal(t, StatusCancelled, f.orders.get(t, v.Order.ID).Status)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
		err  error
		kind failure.Kind
	}{
		{name: "no buyer", req: CreateRequest{Items: []ItemRequest{{CatalogItemID: 2, Quantity: 1}}}, err: ErrInvalidBuyer, kind: failure.Invalid},
		{name: "no items", req: CreateRequest{BuyerID: 1}, err: ErrEmptyItems, kind: failure.Invalid},
		{name: "zero quantity", req: CreateRequest{BuyerID: 1, Items: []ItemRequest{{CatalogItemID: 2}}}, err: ErrInvalidQuantity, kind: failure.Invalid},
		{name: "unknown item", req: CreateRequest{BuyerID: 1, Items: []ItemRequest{{CatalogItemID: 42, Quantity: 1}}}, err: catalog.ErrNotFound, kind: failure.NotFound},
		{name: "unknown buyer", req: CreateRequest{BuyerID: 100, Items: []ItemRequest{{CatalogItemID: 2, Quantity: 1}}}, err: buyer.ErrNotFound, kind: failure.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			_, err := f.svc.Create(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.kind, failure.KindOf(err))
			assert.Empty(t, f.orders.byID)
			assert.Empty(t, f.publisher.published)
		})
	}
}

func TestUpdate_PaidOrderIsFinal(t *testing.T) {
	f := newFixture(paidOrder())

	_, err := f.svc.Update(context.Background(), 1, UpdateRequest{
		BuyerID: 2,
		Items:   []ItemRequest{{CatalogItemID: 3, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrFinalState)
	assert.Equal(t, failure.Conflict, failure.KindOf(err))

	stored := f.orders.get(t, 1)
	assert.Equal(t, int64(1), stored.BuyerID)
	assert.Equal(t, StatusPaid, stored.Status)
	require.Len(t, stored.LineItems, 1)
	assert.Equal(t, int64(2), stored.LineItems[0].CatalogItemID)
	assert.Empty(t, f.publisher.published)
	assert.Zero(t, f.buyers.callsLocked)
}

func TestUpdate_ReplacesItemsAndResubmits(t *testing.T) {
	f := newFixture(Order{
		ID:        7,
		BuyerID:   1,
		Status:    StatusProcessing,
		LineItems: []LineItem{{ID: 1, OrderID: 7, CatalogItemID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")}},
	})

	v, err := f.svc.Update(context.Background(), 7, UpdateRequest{
		BuyerID: 2,
		Items:   []ItemRequest{{CatalogItemID: 3, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Order.BuyerID)
	assert.Equal(t, int64(2), v.Buyer.ID)
	assert.True(t, v.Order.LineItemsChanged())
	assert.True(t, decimal.RequireFromString("9.98").Equal(v.Order.PaymentAmount()))

	require.Len(t, f.publisher.published, 1)
	assert.True(t, decimal.RequireFromString("9.98").Equal(f.publisher.published[0].PaymentAmount()))

	// The user service is not called while the order row is locked.
	assert.Equal(t, 1, f.buyers.calls)
	assert.Zero(t, f.buyers.callsLocked)
}

func TestUpdate_UnknownBuyerLeavesOrderUntouched(t *testing.T) {
	f := newFixture(Order{
		ID:        3,
		BuyerID:   1,
		Status:    StatusCreated,
		LineItems: []LineItem{{ID: 1, OrderID: 3, CatalogItemID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")}},
	})

	_, err := f.svc.Update(context.Background(), 3, UpdateRequest{BuyerID: 100})
	require.ErrorIs(t, err, buyer.ErrNotFound)
	assert.Equal(t, int64(1), f.orders.get(t, 3).BuyerID)
	assert.Empty(t, f.publisher.published)
}

func TestUpdate_KeepsItemsWhenOmitted(t *testing.T) {
	f := newFixture(Order{
		ID:        4,
		BuyerID:   1,
		Status:    StatusFailed,
		LineItems: []LineItem{{ID: 1, OrderID: 4, CatalogItemID: 2, Quantity: 3, UnitPrice: decimal.RequireFromString("100.00")}},
	})

	v, err := f.svc.Update(context.Background(), 4, UpdateRequest{BuyerID: 1})
	require.NoError(t, err)
	assert.False(t, v.Order.LineItemsChanged())
	assert.Len(t, v.Order.LineItems, 1)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Update(context.Background(), 5, UpdateRequest{BuyerID: 1})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, failure.NotFound, failure.KindOf(err))
}

func TestUpdateStatus_Idempotent(t *testing.T) {
	f := newFixture(Order{ID: 1, BuyerID: 1, Status: StatusProcessing})
	ctx := context.Background()

	for range 2 {
		o, err := f.svc.UpdateStatus(ctx, 1, StatusPaid)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, o.Status)
	}
	assert.Equal(t, StatusPaid, f.orders.get(t, 1).Status)
}

func TestCancel_PaidOrder(t *testing.T) {
	f := newFixture(paidOrder())

	_, err := f.svc.Cancel(context.Background(), 1)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPaid, f.orders.get(t, 1).Status)
}

func TestGetAndDelete(t *testing.T) {
	f := newFixture(paidOrder())
	ctx := context.Background()

	v, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Buyer.ID)

	deleted, err := f.svc.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted.ID)

	_, err = f.svc.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_DecoratesOncePerBuyer(t *testing.T) {
	f := newFixture(
		Order{ID: 1, BuyerID: 1, Status: StatusCreated},
		Order{ID: 2, BuyerID: 1, Status: StatusPaid},
		Order{ID: 3, BuyerID: 2, Status: StatusFailed},
	)

	views, err := f.svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, 2, f.buyers.calls)
	assert.Equal(t, int64(2), views[2].Buyer.ID)
}

func TestListByBuyerEmail(t *testing.T) {
	f := newFixture(
		Order{ID: 1, BuyerID: 1, Status: StatusCreated},
		Order{ID: 2, BuyerID: 2, Status: StatusCreated},
	)
	ctx := context.Background()

	views, err := f.svc.ListByBuyerEmail(ctx, "julia@example.com")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(1), views[0].Order.ID)

	_, err = f.svc.ListByBuyerEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, buyer.ErrNotFound)
}

func TestListPage_Invalid(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ListPage(context.Background(), page.Request{Page: 0, Size: 0})
	require.ErrorIs(t, err, page.ErrInvalid)
}
