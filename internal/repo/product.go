package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/marketplace/internal/models"
)

// ListProducts returns one page of all products, newest first, and the total count.
func (r *GormRepo) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	var total int64
	if err := r.db(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("count products: %w", err)
	}

	items := make([]models.Product, 0, limit)
	if err := r.db(ctx).Order("id DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, fmt.Errorf("list products: %w", err)
	}
	return total, items, nil
}

func (r *GormRepo) ListProductsByOwner(ctx context.Context, userID uint) ([]models.Product, error) {
	var items []models.Product
	if err := r.db(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list products by owner: %w", err)
	}
	return items, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db(ctx).First(&product, id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	if err := r.db(ctx).Create(prod).Error; err != nil {
		return fmt.Errorf("create product: %w", translate(err))
	}
	return nil
}

func (r *GormRepo) UpdateProduct(ctx context.Context, id uint, f models.ProductFields) (*models.Product, error) {
	prod, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	prod.Apply(f)
	if err := r.db(ctx).Save(prod).Error; err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return prod, nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uint) error {
	res := r.db(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchProducts is the database fallback for product search when no search
// index is configured.
func (r *GormRepo) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	where := "LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?"

	var total int64
	if err := r.db(ctx).Model(&models.Product{}).Where(where, pattern, pattern, pattern).Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("count search results: %w", err)
	}

	items := make([]models.Product, 0, limit)
	if err := r.db(ctx).Where(where, pattern, pattern, pattern).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, fmt.Errorf("search products: %w", err)
	}
	return total, items, nil
}

// FindProductsByIDs loads products in the order of ids, skipping ids that no
// longer exist.
func (r *GormRepo) FindProductsByIDs(ctx context.Context, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	var found []models.Product
	if err := r.db(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}

	byID := make(map[uint]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	items := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			items = append(items, p)
		}
	}
	return items, nil
}
