package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/juliakaiko/orderservice/internal/domain/failure"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

var (
	ErrNotFound          = failure.New(failure.NotFound, "order not found")
	ErrLineItemNotFound  = failure.New(failure.NotFound, "order item not found")
	ErrLineItemMove      = failure.New(failure.Invalid, "order item cannot be moved to another order")
	ErrFinalState        = failure.New(failure.Conflict, "order is already paid and cannot be modified")
	ErrInvalidTransition = failure.New(failure.Conflict, "invalid status transition")
	ErrInvalidStatus     = failure.New(failure.Invalid, "unknown order status")
	ErrEmptyItems        = failure.New(failure.Invalid, "items required")
	ErrInvalidQuantity   = failure.New(failure.Invalid, "quantity must be greater than 0")
	ErrInvalidBuyer      = failure.New(failure.Invalid, "buyer id required")
	ErrInvalidOrderID    = failure.New(failure.Invalid, "order id required")
)

// Status is the settlement state of an order.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusProcessing Status = "PROCESSING"
	StatusPaid       Status = "PAID"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusCreated, StatusProcessing, StatusPaid, StatusFailed, StatusCancelled}

// ParseStatus converts a status name into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusPaid, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is set by settlement or cancellation rather
// than by the publish confirmation.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether an order in status from may move to status to.
//
// Repeating the current status is always allowed so that redelivered
// outcomes and confirmations are idempotent. A settlement outcome may arrive
// before the publish confirmation, so PAID and FAILED are reachable from
// CREATED as well as PROCESSING. Nothing leaves PAID or CANCELLED.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	switch from {
	case StatusCreated:
		return to == StatusProcessing || to == StatusPaid || to == StatusFailed || to == StatusCancelled
	case StatusProcessing:
		return to == StatusPaid || to == StatusFailed || to == StatusCancelled
	case StatusFailed:
		return to == StatusPaid
	default:
		return false
	}
}

// LineItem is a quantity of one catalog item attached to an order.
// UnitPrice is the catalog item's current price, resolved on read.
type LineItem struct {
	ID            int64
	OrderID       int64
	CatalogItemID int64
	Quantity      int64
	UnitPrice     decimal.Decimal
}

// Order is the aggregate root for a buyer's purchase.
type Order struct {
	ID           int64
	BuyerID      int64
	Status       Status
	CreationDate time.Time
	LineItems    []LineItem

	itemsChanged bool
}

// Transition moves the order to status to. It reports whether the status
// actually changed.
func (o *Order) Transition(to Status) (bool, error) {
	if !to.Valid() {
		return false, errors.Wrapf(ErrInvalidStatus, "%q", to)
	}
	if !CanTransition(o.Status, to) {
		return false, errors.Wrapf(ErrInvalidTransition, "order %d: %s -> %s", o.ID, o.Status, to)
	}
	if o.Status == to {
		return false, nil
	}
	o.Status = to
	return true, nil
}

// EnsureMutable fails with ErrFinalState when the order is PAID.
func (o *Order) EnsureMutable() error {
	if o.Status == StatusPaid {
		return errors.Wrapf(ErrFinalState, "order %d", o.ID)
	}
	return nil
}

// ReplaceLineItems swaps the order's line items for items.
func (o *Order) ReplaceLineItems(items []LineItem) {
	for i := range items {
		items[i].OrderID = o.ID
	}
	o.LineItems = items
	o.itemsChanged = true
}

// AddLineItem appends item and returns its index in LineItems.
func (o *Order) AddLineItem(item LineItem) int {
	item.ID = 0
	item.OrderID = o.ID
	o.LineItems = append(o.LineItems, item)
	o.itemsChanged = true
	return len(o.LineItems) - 1
}

// EditLineItem returns the line item with the given id for modification in
// place.
func (o *Order) EditLineItem(id int64) (*LineItem, error) {
	for i := range o.LineItems {
		if o.LineItems[i].ID == id {
			o.itemsChanged = true
			return &o.LineItems[i], nil
		}
	}
	return nil, errors.Wrapf(ErrLineItemNotFound, "order %d item %d", o.ID, id)
}

// RemoveLineItem drops the line item with the given id.
func (o *Order) RemoveLineItem(id int64) error {
	for i := range o.LineItems {
		if o.LineItems[i].ID == id {
			o.LineItems = append(o.LineItems[:i], o.LineItems[i+1:]...)
			o.itemsChanged = true
			return nil
		}
	}
	return errors.Wrapf(ErrLineItemNotFound, "order %d item %d", o.ID, id)
}

// LineItemsChanged reports whether line items were added, edited, removed or
// replaced since the order was loaded. Repositories persist line items only
// when it is set: items with a zero ID are inserted, known IDs are updated and
// missing ones are deleted.
func (o *Order) LineItemsChanged() bool {
	return o.itemsChanged
}

// PaymentAmount is the amount the buyer is charged for the order.
func (o *Order) PaymentAmount() decimal.Decimal {
	return PaymentAmount(o.LineItems)
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	IDs      []int64
	Statuses []Status
	BuyerID  *int64
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts o and its line items, assigning their identifiers.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	// Update loads the order under a row lock, applies fn and persists the
	// result in one transaction. Nothing is written when fn fails.
	Update(ctx context.Context, id int64, fn func(o *Order) error) (*Order, error)
	Delete(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	ListPage(ctx context.Context, req page.Request) (*page.Page[Order], error)
}

// LineItemRepository reads line items independently of their orders.
// Mutations go through Repository.Update on the owning order.
type LineItemRepository interface {
	GetLineItem(ctx context.Context, id int64) (*LineItem, error)
	// ListLineItems returns the line items with the given ids, or all of them
	// when ids is empty.
	ListLineItems(ctx context.Context, ids []int64) ([]LineItem, error)
	ListLineItemsPage(ctx context.Context, req page.Request) (*page.Page[LineItem], error)
}
