package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/order"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

const (
	orderColumns = `id, user_id, status, creation_date`

	insertOrderSQL = `INSERT INTO orders (user_id, status, creation_date) VALUES ($1, $2, $3) RETURNING id`
	getOrderSQL    = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderSQL   = getOrderSQL + ` FOR UPDATE`
	updateOrderSQL = `UPDATE orders SET user_id = $2, status = $3 WHERE id = $1`
	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
	listOrdersSQL  = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::bigint[] IS NULL OR id = ANY($1))
		  AND ($2::text[] IS NULL OR status = ANY($2))
		  AND ($3::bigint IS NULL OR user_id = $3)
		ORDER BY id`
	pageOrdersSQL  = `SELECT ` + orderColumns + ` FROM orders ORDER BY id LIMIT $1 OFFSET $2`
	countOrdersSQL = `SELECT count(*) FROM orders`

	lineItemSelect = `SELECT oi.id, oi.order_id, oi.item_id, oi.quantity, i.price
		FROM order_items oi JOIN items i ON i.id = oi.item_id`

	lineItemsByOrdersSQL = lineItemSelect + ` WHERE oi.order_id = ANY($1) ORDER BY oi.id`
	lineItemByIDSQL      = lineItemSelect + ` WHERE oi.id = $1`
	lineItemsByIDsSQL    = lineItemSelect + ` WHERE ($1::bigint[] IS NULL OR oi.id = ANY($1)) ORDER BY oi.id`
	pageLineItemsSQL     = lineItemSelect + ` ORDER BY oi.id LIMIT $1 OFFSET $2`
	countLineItemsSQL    = `SELECT count(*) FROM order_items`

	insertLineItemSQL = `INSERT INTO order_items (order_id, item_id, quantity) VALUES ($1, $2, $3) RETURNING id`
	updateLineItemSQL = `UPDATE order_items SET item_id = $3, quantity = $4 WHERE id = $1 AND order_id = $2`
	pruneLineItemsSQL = `DELETE FROM order_items WHERE order_id = $1 AND NOT (id = ANY($2))`
)

var (
	_ order.Repository         = (*OrderRepository)(nil)
	_ order.LineItemRepository = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.LineItemRepository.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts o with its line items in a single transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if o.CreationDate.IsZero() {
			o.CreationDate = time.Now().UTC()
		}
		err := tx.QueryRow(ctx, insertOrderSQL, o.BuyerID, string(o.Status), o.CreationDate).Scan(&o.ID)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}
		for i := range o.LineItems {
			o.LineItems[i].ID = 0
			o.LineItems[i].OrderID = o.ID
		}
		return syncLineItems(ctx, tx, o)
	})
}

// GetByID returns the order with its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderSQL, id)
}

// Update locks the order row, applies fn and writes the result back. Line
// items are rewritten only when fn changed them.
func (r *OrderRepository) Update(ctx context.Context, id int64, fn func(o *order.Order) error) (*order.Order, error) {
	var updated *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := getOrder(ctx, tx, lockOrderSQL, id)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateOrderSQL, o.ID, o.BuyerID, string(o.Status)); err != nil {
			return errors.Wrapf(err, "update order %d", id)
		}
		if o.LineItemsChanged() {
			if err := syncLineItems(ctx, tx, o); err != nil {
				return err
			}
			// Refresh prices of edited items.
			items, err := loadLineItems(ctx, tx, []int64{o.ID})
			if err != nil {
				return err
			}
			o.LineItems = items[o.ID]
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the order; its line items cascade.
func (r *OrderRepository) Delete(ctx context.Context, id int64) (*order.Order, error) {
	var deleted *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := getOrder(ctx, tx, lockOrderSQL, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteOrderSQL, id); err != nil {
			return errors.Wrapf(err, "delete order %d", id)
		}
		deleted = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// List returns orders matching f, ordered by id.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var statuses []string
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, nullable(f.IDs), nullable(statuses), f.BuyerID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if err := attachLineItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListPage returns one page of orders ordered by id.
func (r *OrderRepository) ListPage(ctx context.Context, req page.Request) (*page.Page[order.Order], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count orders")
	}
	rows, err := r.pool.Query(ctx, pageOrdersSQL, req.Size, req.Offset())
	if err != nil {
		return nil, errors.Wrap(err, "list orders page")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if err := attachLineItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return &page.Page[order.Order]{Items: orders, Page: req.Page, Size: req.Size, Total: total}, nil
}

// GetLineItem returns a single line item.
func (r *OrderRepository) GetLineItem(ctx context.Context, id int64) (*order.LineItem, error) {
	rows, err := r.pool.Query(ctx, lineItemByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get line item %d", id)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(order.ErrLineItemNotFound, "line item %d", id)
		}
		return nil, errors.Wrapf(err, "get line item %d", id)
	}
	return &item, nil
}

// ListLineItems returns line items by id, or all of them when ids is empty.
func (r *OrderRepository) ListLineItems(ctx context.Context, ids []int64) ([]order.LineItem, error) {
	rows, err := r.pool.Query(ctx, lineItemsByIDsSQL, nullable(ids))
	if err != nil {
		return nil, errors.Wrap(err, "list line items")
	}
	return pgx.CollectRows(rows, scanLineItem)
}

// ListLineItemsPage returns one page of line items ordered by id.
func (r *OrderRepository) ListLineItemsPage(ctx context.Context, req page.Request) (*page.Page[order.LineItem], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, countLineItemsSQL).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count line items")
	}
	rows, err := r.pool.Query(ctx, pageLineItemsSQL, req.Size, req.Offset())
	if err != nil {
		return nil, errors.Wrap(err, "list line items page")
	}
	items, err := pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan line items")
	}
	return &page.Page[order.LineItem]{Items: items, Page: req.Page, Size: req.Size, Total: total}, nil
}

func getOrder(ctx context.Context, q querier, sql string, id int64) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(order.ErrNotFound, "order %d", id)
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	items, err := loadLineItems(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	o.LineItems = items[id]
	return &o, nil
}

func attachLineItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := loadLineItems(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].LineItems = items[orders[i].ID]
	}
	return nil
}

// loadLineItems returns line items grouped by order id.
func loadLineItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]order.LineItem, error) {
	rows, err := q.Query(ctx, lineItemsByOrdersSQL, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "load line items")
	}
	items, err := pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan line items")
	}
	byOrder := make(map[int64][]order.LineItem, len(orderIDs))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}

// syncLineItems makes the stored line items of o match o.LineItems.
func syncLineItems(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	keep := make([]int64, 0, len(o.LineItems))
	for _, it := range o.LineItems {
		if it.ID != 0 {
			keep = append(keep, it.ID)
		}
	}
	if _, err := tx.Exec(ctx, pruneLineItemsSQL, o.ID, keep); err != nil {
		return errors.Wrapf(err, "prune line items of order %d", o.ID)
	}

	batch := &pgx.Batch{}
	for _, it := range o.LineItems {
		if it.ID == 0 {
			batch.Queue(insertLineItemSQL, o.ID, it.CatalogItemID, it.Quantity)
		} else {
			batch.Queue(updateLineItemSQL, it.ID, o.ID, it.CatalogItemID, it.Quantity)
		}
	}
	br := tx.SendBatch(ctx, batch)
	for i := range o.LineItems {
		it := &o.LineItems[i]
		var err error
		if it.ID == 0 {
			err = br.QueryRow().Scan(&it.ID)
		} else {
			_, err = br.Exec()
		}
		if err != nil {
			_ = br.Close()
			if pgCode(err) == codeForeignKeyViolation {
				return errors.Wrapf(catalog.ErrNotFound, "item %d", it.CatalogItemID)
			}
			return errors.Wrapf(err, "write line items of order %d", o.ID)
		}
	}
	return br.Close()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.BuyerID, &status, &o.CreationDate); err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	o.CreationDate = o.CreationDate.UTC()
	return o, nil
}

func scanLineItem(row pgx.CollectableRow) (order.LineItem, error) {
	var it order.LineItem
	err := row.Scan(&it.ID, &it.OrderID, &it.CatalogItemID, &it.Quantity, &it.UnitPrice)
	return it, err
}
