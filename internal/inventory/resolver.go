package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

// StockableRef names something that carries stock: a simple product or one
// variant combination.
type StockableRef struct {
	Kind enums.StockEntityKind `json:"kind" validate:"required,oneof=product variant_combination"`
	ID   uuid.UUID             `json:"id" validate:"required"`
}

// Stockable is a resolved ref with the owning product and seller.
// Purchasable is false when the seller switched a combination off.
type Stockable struct {
	EntityID    uuid.UUID
	Kind        enums.StockEntityKind
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	Purchasable bool
}

// Resolver turns refs into ledger entity IDs.
type Resolver interface {
	Resolve(ctx context.Context, ref StockableRef) (*Stockable, error)
}

type resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) Resolver {
	return &resolver{db: db}
}

func (r *resolver) Resolve(ctx context.Context, ref StockableRef) (*Stockable, error) {
	if ref.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stockable id is required")
	}
	switch ref.Kind {
	case enums.StockEntityProduct:
		product, err := r.product(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if product.HasVariants {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product has variants; reference a variant combination")
		}
		return &Stockable{EntityID: product.ID, Kind: ref.Kind, ProductID: product.ID, StoreID: product.StoreID, Purchasable: true}, nil

	case enums.StockEntityVariantCombination:
		var combo models.VariantCombination
		err := r.db.WithContext(ctx).Select("id", "product_id", "is_available").Where("id = ?", ref.ID).Take(&combo).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant combination not found")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant combination")
		}
		product, err := r.product(ctx, combo.ProductID)
		if err != nil {
			return nil, err
		}
		return &Stockable{
			EntityID:    combo.ID,
			Kind:        ref.Kind,
			ProductID:   product.ID,
			StoreID:     product.StoreID,
			Purchasable: combo.IsAvailable,
		}, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown stockable kind")
	}
}

func (r *resolver) product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Select("id", "store_id", "has_variants").Where("id = ?", id).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
