package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/domain/page"
)

const (
	itemColumns = `id, name, price`

	listItemsSQL     = `SELECT ` + itemColumns + ` FROM items ORDER BY id`
	getItemByIDSQL   = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	getItemsByIDsSQL = `SELECT ` + itemColumns + ` FROM items WHERE id = ANY($1) ORDER BY id`
	pageItemsSQL     = `SELECT ` + itemColumns + ` FROM items ORDER BY id LIMIT $1 OFFSET $2`
	countItemsSQL    = `SELECT count(*) FROM items`

	insertItemSQL = `INSERT INTO items (name, price) VALUES ($1, $2) RETURNING id`
	updateItemSQL = `UPDATE items SET name = $2, price = $3 WHERE id = $1 RETURNING id`
	deleteItemSQL = `DELETE FROM items WHERE id = $1 RETURNING ` + itemColumns
	upsertItemSQL = `INSERT INTO items (name, price) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET price = EXCLUDED.price
		RETURNING id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Create inserts item and sets its ID.
func (r *CatalogRepository) Create(ctx context.Context, item *catalog.Item) error {
	err := r.pool.QueryRow(ctx, insertItemSQL, item.Name, item.UnitPrice).Scan(&item.ID)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return errors.Wrapf(catalog.ErrDuplicateName, "%q", item.Name)
		}
		return errors.Wrap(err, "insert item")
	}
	return nil
}

// GetByID returns a single item.
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getItemByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get item %d", id)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(catalog.ErrNotFound, "item %d", id)
		}
		return nil, errors.Wrapf(err, "get item %d", id)
	}
	return &item, nil
}

// GetByIDs returns the items matching ids. Missing ids are skipped.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getItemsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get items by ids")
	}
	return pgx.CollectRows(rows, scanItem)
}

// Update overwrites name and price.
func (r *CatalogRepository) Update(ctx context.Context, item *catalog.Item) error {
	var id int64
	err := r.pool.QueryRow(ctx, updateItemSQL, item.ID, item.Name, item.UnitPrice).Scan(&id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return errors.Wrapf(catalog.ErrNotFound, "item %d", item.ID)
	case pgCode(err) == codeUniqueViolation:
		return errors.Wrapf(catalog.ErrDuplicateName, "%q", item.Name)
	default:
		return errors.Wrapf(err, "update item %d", item.ID)
	}
}

// Delete removes an item and returns it.
func (r *CatalogRepository) Delete(ctx context.Context, id int64) (*catalog.Item, error) {
	rows, err := r.pool.Query(ctx, deleteItemSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "delete item %d", id)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	switch {
	case err == nil:
		return &item, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errors.Wrapf(catalog.ErrNotFound, "item %d", id)
	case pgCode(err) == codeForeignKeyViolation:
		return nil, errors.Wrapf(catalog.ErrInUse, "item %d", id)
	default:
		return nil, errors.Wrapf(err, "delete item %d", id)
	}
}

// List returns every item ordered by id.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	return pgx.CollectRows(rows, scanItem)
}

// ListPage returns one page of items ordered by id.
func (r *CatalogRepository) ListPage(ctx context.Context, req page.Request) (*page.Page[catalog.Item], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, countItemsSQL).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count items")
	}
	rows, err := r.pool.Query(ctx, pageItemsSQL, req.Size, req.Offset())
	if err != nil {
		return nil, errors.Wrap(err, "list items page")
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan items")
	}
	return &page.Page[catalog.Item]{Items: items, Page: req.Page, Size: req.Size, Total: total}, nil
}

// Upsert inserts items or updates the price of existing ones matched by
// name, in a single transaction. It sets the ID of every item.
func (r *CatalogRepository) Upsert(ctx context.Context, items []catalog.Item) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(upsertItemSQL, it.Name, it.UnitPrice)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range items {
			if err := br.QueryRow().Scan(&items[i].ID); err != nil {
				_ = br.Close()
				return errors.Wrapf(err, "upsert item %q", items[i].Name)
			}
		}
		return br.Close()
	})
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(&it.ID, &it.Name, &it.UnitPrice)
	return it, err
}
