// Package handler exposes orders, catalog items and line items over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/order"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

// OrderService is the subset of *order.Service used by the handlers.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.View, error)
	Update(ctx context.Context, id int64, req order.UpdateRequest) (*order.View, error)
	Cancel(ctx context.Context, id int64) (*order.Order, error)
	Get(ctx context.Context, id int64) (*order.View, error)
	Delete(ctx context.Context, id int64) (*order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.View, error)
	ListByBuyerEmail(ctx context.Context, email string) ([]order.View, error)
	ListPage(ctx context.Context, req page.Request) (*page.Page[order.Order], error)
}

// CatalogService is the subset of *catalog.Service used by the handlers.
type CatalogService interface {
	Create(ctx context.Context, item catalog.Item) (*catalog.Item, error)
	Get(ctx context.Context, id int64) (*catalog.Item, error)
	Update(ctx context.Context, id int64, item catalog.Item) (*catalog.Item, error)
	Delete(ctx context.Context, id int64) (*catalog.Item, error)
	List(ctx context.Context, ids []int64) ([]catalog.Item, error)
	ListPage(ctx context.Context, req page.Request) (*page.Page[catalog.Item], error)
}

// LineItemService is the subset of *order.LineItemService used by the
// handlers.
type LineItemService interface {
	Create(ctx context.Context, req order.LineItemRequest) (*order.LineItem, error)
	Get(ctx context.Context, id int64) (*order.LineItem, error)
	Update(ctx context.Context, id int64, req order.LineItemRequest) (*order.LineItem, error)
	Delete(ctx context.Context, id int64) (*order.LineItem, error)
	List(ctx context.Context, ids []int64) ([]order.LineItem, error)
	ListPage(ctx context.Context, req page.Request) (*page.Page[order.LineItem], error)
}

var (
	_ OrderService    = (*order.Service)(nil)
	_ LineItemService = (*order.LineItemService)(nil)
	_ CatalogService  = (*catalog.Service)(nil)
)

// Handler serves the REST API.
type Handler struct {
	orders    OrderService
	lineItems LineItemService
	catalog   CatalogService
}

// New returns a Handler over the given services.
func New(orders OrderService, lineItems LineItemService, c CatalogService) *Handler {
	return &Handler{orders: orders, lineItems: lineItems, catalog: c}
}

// Routes mounts the API under /api on a new chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/all", h.listOrders)
		r.Get("/by-email", h.listOrdersByEmail)
		r.Get("/find-by-ids", h.listOrdersByIDs)
		r.Get("/find-by-statuses", h.listOrdersByStatuses)
		r.Get("/paginated", h.pageOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
	})
	r.Route("/api/items", func(r chi.Router) {
		r.Post("/", h.createItem)
		r.Get("/all", h.listItems)
		r.Get("/find-by-ids", h.listItemsByIDs)
		r.Get("/paginated", h.pageItems)
		r.Get("/{id}", h.getItem)
		r.Put("/{id}", h.updateItem)
		r.Delete("/{id}", h.deleteItem)
	})
	r.Route("/api/order-items", func(r chi.Router) {
		r.Post("/", h.createLineItem)
		r.Get("/all", h.listLineItems)
		r.Get("/find-by-ids", h.listLineItemsByIDs)
		r.Get("/paginated", h.pageLineItems)
		r.Get("/{id}", h.getLineItem)
		r.Put("/{id}", h.updateLineItem)
		r.Delete("/{id}", h.deleteLineItem)
	})
	return r
}
