package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/juliakaiko/orderservice/internal/domain/buyer"
	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// SettlementPublisher sends a payment request for an order without blocking
// the caller. onConfirmed runs once the broker has acknowledged the request
// and never runs when publishing fails.
type SettlementPublisher interface {
	Publish(ctx context.Context, o *Order, onConfirmed func())
}

// ItemRequest asks for Quantity units of a catalog item.
type ItemRequest struct {
	CatalogItemID int64
	Quantity      int64
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	BuyerID int64
	Items   []ItemRequest
}

// UpdateRequest holds the input for updating an order. An empty Items keeps
// the current line items. Status is not updatable.
type UpdateRequest struct {
	BuyerID int64
	Items   []ItemRequest
}

// View is an order decorated with its buyer's profile.
type View struct {
	Order *Order
	Buyer *buyer.Profile
}

// Service encapsulates the order lifecycle.
type Service struct {
	orders    Repository
	catalog   catalog.Repository
	buyers    buyer.Directory
	publisher SettlementPublisher
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	orders Repository,
	items catalog.Repository,
	buyers buyer.Directory,
	publisher SettlementPublisher,
) *Service {
	return &Service{
		orders:    orders,
		catalog:   items,
		buyers:    buyers,
		publisher: publisher,
		now:       time.Now,
	}
}

// Create validates the request, persists the order in CREATED and submits it
// for settlement. The returned order is still CREATED: the move to
// PROCESSING happens after the broker confirms the request.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*View, error) {
	if req.BuyerID <= 0 {
		return nil, ErrInvalidBuyer
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	profile, err := s.buyers.ByID(ctx, req.BuyerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get buyer %d", req.BuyerID)
	}

	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		BuyerID:      req.BuyerID,
		Status:       StatusCreated,
		CreationDate: s.now().UTC(),
		LineItems:    items,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	zctx.From(ctx).Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.Int64("buyer_id", o.BuyerID),
		zap.Stringer("amount", o.PaymentAmount()),
	)

	s.submit(ctx, o)
	return &View{Order: o, Buyer: profile}, nil
}

// Update applies req to the order and resubmits it for settlement. A PAID
// order is rejected with ErrFinalState before anything is changed.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*View, error) {
	if req.BuyerID <= 0 {
		return nil, ErrInvalidBuyer
	}
	if len(req.Items) > 0 {
		if err := validateItems(req.Items); err != nil {
			return nil, err
		}
	}

	// Remote and catalog lookups run before the row lock is taken; the PAID
	// guard is evaluated again inside the unit of work.
	profile, err := s.buyers.ByID(ctx, req.BuyerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get buyer %d", req.BuyerID)
	}
	var items []LineItem
	if len(req.Items) > 0 {
		if items, err = s.resolveItems(ctx, req.Items); err != nil {
			return nil, err
		}
	}

	updated, err := s.orders.Update(ctx, id, func(o *Order) error {
		if err := o.EnsureMutable(); err != nil {
			return err
		}
		o.BuyerID = req.BuyerID
		if items != nil {
			o.ReplaceLineItems(items)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update order %d", id)
	}
	zctx.From(ctx).Info("Order updated",
		zap.Int64("order_id", updated.ID),
		zap.Stringer("status", updated.Status),
	)

	s.submit(ctx, updated)
	return &View{Order: updated, Buyer: profile}, nil
}

// UpdateStatus moves the order to status. Repeating the current status is a
// no-op that still succeeds.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	o, err := s.orders.Update(ctx, id, func(o *Order) error {
		_, err := o.Transition(status)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "set order %d status %s", id, status)
	}
	return o, nil
}

// Cancel moves a CREATED or PROCESSING order to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled)
}

// Get returns the order with its buyer's profile.
func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	profile, err := s.buyers.ByID(ctx, o.BuyerID)
	if err != nil {
		return nil, errors.Wrapf(err, "get buyer %d", o.BuyerID)
	}
	return &View{Order: o, Buyer: profile}, nil
}

// Delete removes the order and its line items and returns what was removed.
func (s *Service) Delete(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.Delete(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "delete order %d", id)
	}
	zctx.From(ctx).Info("Order deleted", zap.Int64("order_id", id))
	return o, nil
}

// List returns the orders matching f, each with its buyer's profile.
func (s *Service) List(ctx context.Context, f Filter) ([]View, error) {
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return s.decorate(ctx, orders)
}

// ListByBuyerEmail resolves the buyer by email and returns their orders.
func (s *Service) ListByBuyerEmail(ctx context.Context, email string) ([]View, error) {
	profile, err := s.buyers.ByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "get buyer by email")
	}
	orders, err := s.orders.List(ctx, Filter{BuyerID: &profile.ID})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	views := make([]View, len(orders))
	for i := range orders {
		views[i] = View{Order: &orders[i], Buyer: profile}
	}
	return views, nil
}

// ListPage returns one page of orders ordered by id.
func (s *Service) ListPage(ctx context.Context, req page.Request) (*page.Page[Order], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.orders.ListPage(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "list orders page")
	}
	return p, nil
}

// submit publishes o and advances it to PROCESSING once the broker confirms.
// The confirmation outlives the request, so it runs on a detached context.
func (s *Service) submit(ctx context.Context, o *Order) {
	detached := context.WithoutCancel(ctx)
	id := o.ID
	s.publisher.Publish(ctx, o, func() {
		s.markProcessing(detached, id)
	})
}

func (s *Service) markProcessing(ctx context.Context, id int64) {
	lg := zctx.From(ctx).With(zap.Int64("order_id", id))
	_, err := s.UpdateStatus(ctx, id, StatusProcessing)
	switch {
	case err == nil:
		lg.Info("Order is processing")
	case errors.Is(err, ErrInvalidTransition):
		// Settlement already finished or the order was cancelled.
		lg.Info("Skipping processing status", zap.Error(err))
	default:
		lg.Error("Set processing status", zap.Error(err))
	}
}

func (s *Service) decorate(ctx context.Context, orders []Order) ([]View, error) {
	profiles := make(map[int64]*buyer.Profile)
	views := make([]View, len(orders))
	for i := range orders {
		id := orders[i].BuyerID
		p, ok := profiles[id]
		if !ok {
			var err error
			if p, err = s.buyers.ByID(ctx, id); err != nil {
				return nil, errors.Wrapf(err, "get buyer %d", id)
			}
			profiles[id] = p
		}
		views[i] = View{Order: &orders[i], Buyer: p}
	}
	return views, nil
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return errors.Wrapf(ErrInvalidQuantity, "item %d", item.CatalogItemID)
		}
	}
	return nil
}

// resolveItems fetches the referenced catalog items in one batch and builds
// line items priced at the current unit price.
func (s *Service) resolveItems(ctx context.Context, reqs []ItemRequest) ([]LineItem, error) {
	ids := make([]int64, 0, len(reqs))
	seen := make(map[int64]struct{}, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.CatalogItemID]; ok {
			continue
		}
		seen[r.CatalogItemID] = struct{}{}
		ids = append(ids, r.CatalogItemID)
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get catalog items")
	}
	byID := make(map[int64]catalog.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	items := make([]LineItem, len(reqs))
	for i, r := range reqs {
		it, ok := byID[r.CatalogItemID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrNotFound, "item %d", r.CatalogItemID)
		}
		items[i] = LineItem{
			CatalogItemID: r.CatalogItemID,
			Quantity:      r.Quantity,
			UnitPrice:     it.UnitPrice,
		}
	}
	return items, nil
}
