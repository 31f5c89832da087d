package catalog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/juliakaiko/orderservice/internal/domain/failure"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// MaxNameLength bounds Item.Name in characters.
const MaxNameLength = 100

var (
	// ErrNotFound is returned when a requested catalog item does not exist.
	ErrNotFound = failure.New(failure.NotFound, "item not found")
	// ErrInUse is returned when deleting an item still referenced by line items.
	ErrInUse = failure.New(failure.Invalid, "item is referenced by orders")
	// ErrDuplicateName is returned when another item already has the same name.
	ErrDuplicateName = failure.New(failure.Invalid, "item name already exists")
	// ErrInvalidItem is returned when an item fails validation.
	ErrInvalidItem = failure.New(failure.Invalid, "invalid item")
)

// Item is a purchasable catalog entry. Orders reference it by ID and read
// its current UnitPrice when computing the settlement amount.
type Item struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
}

// Validate checks the name and that the price is non-negative with at most
// two fractional digits.
func (i Item) Validate() error {
	name := strings.TrimSpace(i.Name)
	switch {
	case name == "":
		return failure.Wrap(failure.Invalid, ErrInvalidItem, "name must not be blank")
	case utf8.RuneCountInString(name) > MaxNameLength:
		return failure.Wrap(failure.Invalid, ErrInvalidItem, "name is too long")
	case i.UnitPrice.IsNegative():
		return failure.Wrap(failure.Invalid, ErrInvalidItem, "price must not be negative")
	case !i.UnitPrice.Equal(i.UnitPrice.Round(2)):
		return failure.Wrap(failure.Invalid, ErrInvalidItem, "price must have at most 2 fractional digits")
	}
	return nil
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id int64) (*Item, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id int64) (*Item, error)
	List(ctx context.Context) ([]Item, error)
	ListPage(ctx context.Context, req page.Request) (*page.Page[Item], error)
}
