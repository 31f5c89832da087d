package catalog

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// Service validates catalog edits before they reach the repository.
type Service struct {
	items Repository
}

// NewService creates a catalog Service.
func NewService(items Repository) *Service {
	return &Service{items: items}
}

// Create validates and stores a new item.
func (s *Service) Create(ctx context.Context, item Item) (*Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, &item); err != nil {
		return nil, errors.Wrap(err, "create item")
	}
	zctx.From(ctx).Info("Item created", zap.Int64("item_id", item.ID), zap.String("name", item.Name))
	return &item, nil
}

// Get returns an item by id.
func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get item %d", id)
	}
	return item, nil
}

// Update replaces the name and price of an existing item.
func (s *Service) Update(ctx context.Context, id int64, item Item) (*Item, error) {
	item.ID = id
	item.Name = strings.TrimSpace(item.Name)
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.items.Update(ctx, &item); err != nil {
		return nil, errors.Wrapf(err, "update item %d", id)
	}
	return &item, nil
}

// Delete removes an item that no order references.
func (s *Service) Delete(ctx context.Context, id int64) (*Item, error) {
	item, err := s.items.Delete(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "delete item %d", id)
	}
	zctx.From(ctx).Info("Item deleted", zap.Int64("item_id", id))
	return item, nil
}

// List returns the items with the given ids, or every item when ids is
// empty.
func (s *Service) List(ctx context.Context, ids []int64) ([]Item, error) {
	var (
		items []Item
		err   error
	)
	if len(ids) == 0 {
		items, err = s.items.List(ctx)
	} else {
		items, err = s.items.GetByIDs(ctx, ids)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	return items, nil
}

// ListPage returns one page of items ordered by id.
func (s *Service) ListPage(ctx context.Context, req page.Request) (*page.Page[Item], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.items.ListPage(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "list items page")
	}
	return p, nil
}
