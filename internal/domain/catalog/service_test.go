package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// --- Mock implementations ---

type mockRepo struct {
	nextID int64
	byID   map[int64]Item
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: make(map[int64]Item)}
}

func (m *mockRepo) Create(_ context.Context, item *Item) error {
	for _, it := range m.byID {
		if it.Name == item.Name {
			return ErrDuplicateName
		}
	}
	m.nextID++
	item.ID = m.nextID
	m.byID[item.ID] = *item
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Item, error) {
	it, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []int64) ([]Item, error) {
	var out []Item
	for _, id := range ids {
		if it, ok := m.byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, item *Item) error {
	if _, ok := m.byID[item.ID]; !ok {
		return ErrNotFound
	}
	m.byID[item.ID] = *item
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) (*Item, error) {
	it, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.byID, id)
	return &it, nil
}

func (m *mockRepo) List(_ context.Context) ([]Item, error) {
	out := make([]Item, 0, len(m.byID))
	for id := int64(1); id <= m.nextID; id++ {
		if it, ok := m.byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPage(_ context.Context, req page.Request) (*page.Page[Item], error) {
	return &page.Page[Item]{Page: req.Page, Size: req.Size, Total: int64(len(m.byID))}, nil
}

// --- Tests ---

func TestServiceCRUD(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, Item{Name: "  Mouse ", UnitPrice: decimal.RequireFromString("25.50")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Mouse", created.Name)

	_, err = svc.Create(ctx, Item{Name: "Mouse", UnitPrice: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrDuplicateName)

	updated, err := svc.Update(ctx, 1, Item{Name: "Wireless Mouse", UnitPrice: decimal.RequireFromString("30.00")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.ID)

	got, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Wireless Mouse", got.Name)

	_, err = svc.Update(ctx, 5, Item{Name: "Ghost", UnitPrice: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrNotFound)

	deleted, err := svc.Delete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Wireless Mouse", deleted.Name)

	_, err = svc.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceValidation(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Create(context.Background(), Item{Name: "Cable", UnitPrice: decimal.RequireFromString("1.999")})
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.ListPage(context.Background(), page.Request{Size: page.MaxSize + 1})
	require.ErrorIs(t, err, page.ErrInvalid)
}

func TestServiceList(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Create(ctx, Item{Name: name, UnitPrice: decimal.NewFromInt(1)})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := svc.List(ctx, []int64{3, 1, 42})
	require.NoError(t, err)
	assert.Len(t, some, 2)
}
