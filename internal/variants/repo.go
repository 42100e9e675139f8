package variants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

// Repository persists variant options and combinations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	MarkHasVariants(ctx context.Context, productID uuid.UUID) error
	ListOptions(ctx context.Context, productID uuid.UUID) ([]models.VariantOption, error)
	CreateOption(ctx context.Context, option *models.VariantOption) (bool, error)
	ListCombinationKeys(ctx context.Context, productID uuid.UUID) (map[string]struct{}, error)
	CreateCombination(ctx context.Context, combo *models.VariantCombination) (bool, error)
	ListCombinations(ctx context.Context, productID uuid.UUID) ([]models.VariantCombination, error)
	FindCombination(ctx context.Context, productID, combinationID uuid.UUID) (*models.VariantCombination, error)
	UpdateCombinationFields(ctx context.Context, combinationID uuid.UUID, fields map[string]any) error
	ListStock(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID]models.StockItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a variants repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", productID).Take(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) MarkHasVariants(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("has_variants", true).Error
}

func (r *repository) ListOptions(ctx context.Context, productID uuid.UUID) ([]models.VariantOption, error) {
	var options []models.VariantOption
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("type ASC, sort_order ASC").
		Find(&options).Error
	return options, err
}

// CreateOption inserts an option unless (product, type, value) already exists.
func (r *repository) CreateOption(ctx context.Context, option *models.VariantOption) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "type"}, {Name: "value"}},
			DoNothing: true,
		}).
		Create(option)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListCombinationKeys(ctx context.Context, productID uuid.UUID) (map[string]struct{}, error) {
	var keys []string
	if err := r.db.WithContext(ctx).
		Model(&models.VariantCombination{}).
		Where("product_id = ?", productID).
		Pluck("combination_key", &keys).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out, nil
}

// CreateCombination reports false when the (product, key) pair already
// exists, including when a concurrent writer inserted it first.
func (r *repository) CreateCombination(ctx context.Context, combo *models.VariantCombination) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "combination_key"}},
			DoNothing: true,
		}).
		Create(combo)
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error, "ux_variant_combinations_product_key") {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListCombinations(ctx context.Context, productID uuid.UUID) ([]models.VariantCombination, error) {
	var combos []models.VariantCombination
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sort_order ASC, combination_key ASC").
		Find(&combos).Error
	return combos, err
}

func (r *repository) FindCombination(ctx context.Context, productID, combinationID uuid.UUID) (*models.VariantCombination, error) {
	var combo models.VariantCombination
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", combinationID, productID).
		Take(&combo).Error
	if err != nil {
		return nil, err
	}
	return &combo, nil
}

// UpdateCombinationFields touches only the listed columns.
func (r *repository) UpdateCombinationFields(ctx context.Context, combinationID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.VariantCombination{}).
		Where("id = ?", combinationID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListStock(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID]models.StockItem, error) {
	out := make(map[uuid.UUID]models.StockItem, len(entityIDs))
	if len(entityIDs) == 0 {
		return out, nil
	}
	var items []models.StockItem
	if err := r.db.WithContext(ctx).Where("entity_id IN ?", entityIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.EntityID] = item
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
