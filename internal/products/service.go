package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockEngine interface {
	SetTracking(ctx context.Context, entityID uuid.UUID, tracked bool) (inventory.Level, error)
	Level(ctx context.Context, entityID uuid.UUID) (inventory.Level, error)
}

// Service manages product listings and their product-level stock settings.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	SetInventoryTracking(ctx context.Context, id uuid.UUID, tracked bool) (*TrackingResult, error)
}

type service struct {
	repo   Repository
	ledger inventory.Ledger
	stock  stockEngine
	tx     txRunner
	logg   *logger.Logger
}

// NewService builds a product service backed by the provided stack.
func NewService(repo Repository, ledger inventory.Ledger, stock stockEngine, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock engine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, ledger: ledger, stock: stock, tx: tx, logg: logg}, nil
}

// CreateProduct stores the listing and its stock row in one transaction.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Title = strings.TrimSpace(input.Title)
	switch {
	case input.StoreID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	case input.SKU == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	case input.Title == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case input.PriceCents < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	case input.Quantity < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be zero or greater")
	}
	tracked := input.Tracked == nil || *input.Tracked

	product := &models.Product{
		StoreID:    input.StoreID,
		SKU:        input.SKU,
		Title:      input.Title,
		PriceCents: input.PriceCents,
	}
	stock := &models.StockItem{
		EntityKind:       enums.StockEntityProduct,
		Quantity:         input.Quantity,
		AvailableQty:     input.Quantity,
		InventoryTracked: tracked,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists for this store").
					WithDetails(map[string]any{"sku": input.SKU})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		stock.EntityID = product.ID
		if err := s.ledger.WithTx(tx).Create(ctx, stock); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product stock")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": product.ID.String(),
		"store_id":   product.StoreID.String(),
	}), "product created")

	level := inventory.Level{
		EntityID:   stock.EntityID,
		EntityKind: stock.EntityKind,
		Quantity:   stock.Quantity,
		Available:  stock.AvailableQty,
		Tracked:    stock.InventoryTracked,
	}
	return toDTO(product, &level), nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.HasVariants {
		return toDTO(product, nil), nil
	}
	level, err := s.stock.Level(ctx, id)
	if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return toDTO(product, nil), nil
	}
	if err != nil {
		return nil, err
	}
	return toDTO(product, &level), nil
}

// SetInventoryTracking toggles tracking on the product's own row, or on
// every combination when the product has variants.
func (s *service) SetInventoryTracking(ctx context.Context, id uuid.UUID, tracked bool) (*TrackingResult, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	entityIDs := []uuid.UUID{product.ID}
	if product.HasVariants {
		entityIDs, err = s.repo.ListCombinationIDs(ctx, product.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list combinations")
		}
	}

	result := &TrackingResult{ProductID: product.ID, Tracked: tracked, Levels: make([]inventory.Level, 0, len(entityIDs))}
	for _, entityID := range entityIDs {
		level, err := s.stock.SetTracking(ctx, entityID, tracked)
		if err != nil {
			return nil, err
		}
		result.Levels = append(result.Levels, level)
	}
	return result, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
