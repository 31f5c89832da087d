package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// LineItemRequest is the input for creating or editing a single line item.
type LineItemRequest struct {
	OrderID       int64
	CatalogItemID int64
	Quantity      int64
}

func (r LineItemRequest) validate() error {
	if r.OrderID <= 0 {
		return ErrInvalidOrderID
	}
	if r.Quantity <= 0 {
		return errors.Wrapf(ErrInvalidQuantity, "item %d", r.CatalogItemID)
	}
	return nil
}

// LineItemService edits line items one at a time. Every edit runs in the
// owning order's unit of work and is rejected once the order is PAID.
type LineItemService struct {
	orders  Repository
	items   LineItemRepository
	catalog catalog.Repository
}

// NewLineItemService creates a LineItemService.
func NewLineItemService(orders Repository, items LineItemRepository, c catalog.Repository) *LineItemService {
	return &LineItemService{orders: orders, items: items, catalog: c}
}

// Create attaches a new line item to req.OrderID.
func (s *LineItemService) Create(ctx context.Context, req LineItemRequest) (*LineItem, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var idx int
	o, err := s.orders.Update(ctx, req.OrderID, func(o *Order) error {
		if err := o.EnsureMutable(); err != nil {
			return err
		}
		it, err := s.catalog.GetByID(ctx, req.CatalogItemID)
		if err != nil {
			return errors.Wrapf(err, "item %d", req.CatalogItemID)
		}
		idx = o.AddLineItem(LineItem{
			CatalogItemID: it.ID,
			Quantity:      req.Quantity,
			UnitPrice:     it.UnitPrice,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "add item to order %d", req.OrderID)
	}

	li := o.LineItems[idx]
	zctx.From(ctx).Info("Order item created",
		zap.Int64("order_id", li.OrderID),
		zap.Int64("order_item_id", li.ID),
	)
	return &li, nil
}

// Get returns a line item by id.
func (s *LineItemService) Get(ctx context.Context, id int64) (*LineItem, error) {
	li, err := s.items.GetLineItem(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order item %d", id)
	}
	return li, nil
}

// Update changes the catalog item and quantity of a line item. Moving a
// line item to a different order is rejected.
func (s *LineItemService) Update(ctx context.Context, id int64, req LineItemRequest) (*LineItem, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.OrderID != current.OrderID {
		return nil, errors.Wrapf(ErrLineItemMove, "order item %d belongs to order %d", id, current.OrderID)
	}

	var updated LineItem
	_, err = s.orders.Update(ctx, current.OrderID, func(o *Order) error {
		if err := o.EnsureMutable(); err != nil {
			return err
		}
		li, err := o.EditLineItem(id)
		if err != nil {
			return err
		}
		it, err := s.catalog.GetByID(ctx, req.CatalogItemID)
		if err != nil {
			return errors.Wrapf(err, "item %d", req.CatalogItemID)
		}
		li.CatalogItemID = it.ID
		li.Quantity = req.Quantity
		li.UnitPrice = it.UnitPrice
		updated = *li
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update order item %d", id)
	}
	return &updated, nil
}

// Delete removes a line item. The last line item of an order cannot be
// removed; delete the order instead.
func (s *LineItemService) Delete(ctx context.Context, id int64) (*LineItem, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	_, err = s.orders.Update(ctx, current.OrderID, func(o *Order) error {
		if err := o.EnsureMutable(); err != nil {
			return err
		}
		if err := o.RemoveLineItem(id); err != nil {
			return err
		}
		if len(o.LineItems) == 0 {
			return errors.Wrapf(ErrEmptyItems, "order %d", o.ID)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "delete order item %d", id)
	}
	zctx.From(ctx).Info("Order item deleted", zap.Int64("order_item_id", id))
	return current, nil
}

// List returns the line items with the given ids, or all of them.
func (s *LineItemService) List(ctx context.Context, ids []int64) ([]LineItem, error) {
	items, err := s.items.ListLineItems(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	return items, nil
}

// ListPage returns one page of line items ordered by id.
func (s *LineItemService) ListPage(ctx context.Context, req page.Request) (*page.Page[LineItem], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.items.ListLineItemsPage(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "list order items page")
	}
	return p, nil
}
