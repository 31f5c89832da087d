package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/juliakaiko/orderservice/internal/domain/catalog"
	"github.com/juliakaiko/orderservice/internal/storage/postgres"
)

type itemJSON struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func main() {
	var (
		databaseURL string
		itemsFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&itemsFile, "items-file", "db/seed/items.json", "path to catalog items JSON file, optionally .gz")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, itemsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, itemsFile string) error {
	items, err := readItemsFile(itemsFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("upserting items", slog.Int("count", len(items)))

	if err := postgres.NewCatalogRepository(pool).Upsert(ctx, items); err != nil {
		return errors.Wrap(err, "upsert items")
	}
	for _, it := range items {
		slog.Info("upserted item", slog.Int64("id", it.ID), slog.String("name", it.Name))
	}

	return nil
}

// readItemsFile reads path, decompressing it when it ends in .gz.
func readItemsFile(path string) ([]catalog.Item, error) {
	slog.Info("reading items file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open items file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return decodeItems(r)
}

// decodeItems parses and validates a JSON array of items. Duplicate names
// are rejected since the upsert keys on name.
func decodeItems(r io.Reader) ([]catalog.Item, error) {
	var raw []itemJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parse items JSON")
	}

	items := make([]catalog.Item, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, it := range raw {
		item := catalog.Item{Name: strings.TrimSpace(it.Name), UnitPrice: it.Price}
		if err := item.Validate(); err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		if _, ok := seen[item.Name]; ok {
			return nil, errors.Errorf("item %d: duplicate name %q", i, item.Name)
		}
		seen[item.Name] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}
