package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/storefront-payments/internal/domain/models"
)

// CatalogStorage отдаёт текущие цены товаров по их идентификаторам.
// Отсутствующие и неактивные товары просто не попадают в результат.
type CatalogStorage interface {
	Resolve(ctx context.Context, ids []string) (map[string]models.CatalogItem, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт репозиторий каталога.
func NewProductRepository(db *sql.DB) CatalogStorage {
	return &productRepository{db: db}
}

func (r *productRepository) Resolve(ctx context.Context, ids []string) (map[string]models.CatalogItem, error) {
	result := make(map[string]models.CatalogItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := "SELECT id, name, price, slug FROM products WHERE active AND id = ANY($1)"
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CatalogItem
		if err := rows.Scan(&item.ID, &item.Name, &item.PriceMinor, &item.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
