package variants

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdjuster interface {
	AdjustTotal(ctx context.Context, entityID uuid.UUID, quantity int) (inventory.AdjustResult, error)
}

// ConfigureInput defines a product's variant dimensions. New combinations
// start with InitialQuantity units, tracked unless Tracked is false.
type ConfigureInput struct {
	Groups          []OptionGroup `json:"groups" validate:"required,min=1,dive"`
	InitialQuantity int           `json:"initial_quantity" validate:"gte=0"`
	Tracked         *bool         `json:"tracked,omitempty"`
}

// ConfigureResult counts what a configure call wrote. Re-running with the
// same groups creates nothing and skips every combination.
type ConfigureResult struct {
	OptionsCreated      int `json:"options_created"`
	CombinationsCreated int `json:"combinations_created"`
	CombinationsSkipped int `json:"combinations_skipped"`
	CombinationsTotal   int `json:"combinations_total"`
}

// CombinationUpdate edits one combination. Nil fields are left alone.
type CombinationUpdate struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	SKU         *string   `json:"sku,omitempty" validate:"omitempty,max=64"`
	PriceCents  *int      `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	IsAvailable *bool     `json:"is_available,omitempty"`
	Quantity    *int      `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

// CombinationDTO is a combination joined with its stock counters.
type CombinationDTO struct {
	ID               uuid.UUID            `json:"id"`
	ProductID        uuid.UUID            `json:"product_id"`
	CombinationKey   string               `json:"combination_key"`
	OptionValues     []models.OptionValue `json:"option_values"`
	SKU              *string              `json:"sku,omitempty"`
	PriceCents       *int                 `json:"price_cents,omitempty"`
	IsAvailable      bool                 `json:"is_available"`
	SortOrder        int                  `json:"sort_order"`
	Quantity         int                  `json:"quantity"`
	Available        int                  `json:"available"`
	OnHold           int                  `json:"on_hold"`
	Committed        int                  `json:"committed"`
	InventoryTracked bool                 `json:"inventory_tracked"`
}

// Service persists generated combinations and edits them.
type Service interface {
	ConfigureVariants(ctx context.Context, productID uuid.UUID, input ConfigureInput) (*ConfigureResult, error)
	ListCombinations(ctx context.Context, productID uuid.UUID) ([]CombinationDTO, error)
	UpdateCombinations(ctx context.Context, productID uuid.UUID, updates []CombinationUpdate) ([]CombinationDTO, error)
	UpdateCombination(ctx context.Context, productID uuid.UUID, update CombinationUpdate) (*CombinationDTO, error)
}

type service struct {
	repo            Repository
	ledger          inventory.Ledger
	stock           stockAdjuster
	tx              txRunner
	logg            *logger.Logger
	maxCombinations int
}

// NewService builds the variants service.
func NewService(repo Repository, ledger inventory.Ledger, stock stockAdjuster, tx txRunner, logg *logger.Logger, maxCombinations int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("variants repository required")
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
	return &service{
		repo:            repo,
		ledger:          ledger,
		stock:           stock,
		tx:              tx,
		logg:            logg,
		maxCombinations: maxCombinations,
	}, nil
}

func (s *service) ConfigureVariants(ctx context.Context, productID uuid.UUID, input ConfigureInput) (*ConfigureResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.InitialQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial quantity must be zero or greater")
	}
	groups := NormalizeGroups(input.Groups)
	if err := ValidateGroups(groups, s.maxCombinations); err != nil {
		return nil, err
	}
	tracked := input.Tracked == nil || *input.Tracked

	ctx = s.logg.WithFields(ctx, map[string]any{"product_id": productID.String(), "op": "configure_variants"})
	result := &ConfigureResult{}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		product, err := repo.FindProduct(ctx, productID)
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if err := s.checkDimensions(ctx, repo, product, groups); err != nil {
			return err
		}
		if err := s.checkProductStockReleased(ctx, ledger, product); err != nil {
			return err
		}

		for _, g := range groups {
			for i, value := range g.Values {
				created, err := repo.CreateOption(ctx, &models.VariantOption{
					ProductID:   productID,
					Type:        g.Type,
					Value:       value,
					DisplayName: value,
					SortOrder:   i,
				})
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant option")
				}
				if created {
					result.OptionsCreated++
				}
			}
		}

		existing, err := repo.ListCombinationKeys(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list combination keys")
		}
		sortBase := len(existing)

		for _, combo := range Generate(groups) {
			key := CombinationKey(combo)
			if _, ok := existing[key]; ok {
				result.CombinationsSkipped++
				continue
			}
			row := &models.VariantCombination{
				ProductID:      productID,
				CombinationKey: key,
				OptionValues:   combo,
				IsAvailable:    true,
				SortOrder:      sortBase + result.CombinationsCreated,
			}
			created, err := repo.CreateCombination(ctx, row)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant combination")
			}
			if !created {
				result.CombinationsSkipped++
				continue
			}
			if err := ledger.Create(ctx, &models.StockItem{
				EntityID:         row.ID,
				EntityKind:       enums.StockEntityVariantCombination,
				Quantity:         input.InitialQuantity,
				AvailableQty:     input.InitialQuantity,
				InventoryTracked: tracked,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create combination stock")
			}
			existing[key] = struct{}{}
			result.CombinationsCreated++
		}
		result.CombinationsTotal = len(existing)

		if !product.HasVariants {
			if err := repo.MarkHasVariants(ctx, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark product variants")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"created": result.CombinationsCreated,
		"skipped": result.CombinationsSkipped,
	}), "variant combinations configured")
	return result, nil
}

// checkDimensions keeps keys comparable: once configured, a product can gain
// values but not change its set of dimensions.
func (s *service) checkDimensions(ctx context.Context, repo Repository, product *models.Product, groups []OptionGroup) error {
	if !product.HasVariants {
		return nil
	}
	options, err := repo.ListOptions(ctx, product.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variant options")
	}
	current := map[string]struct{}{}
	for _, o := range options {
		current[o.Type] = struct{}{}
	}
	requested := make([]string, 0, len(groups))
	for _, g := range groups {
		requested = append(requested, g.Type)
	}
	same := len(current) == len(groups)
	for _, t := range requested {
		if _, ok := current[t]; !ok {
			same = false
		}
	}
	if same {
		return nil
	}
	existing := make([]string, 0, len(current))
	for t := range current {
		existing = append(existing, t)
	}
	sort.Strings(existing)
	return pkgerrors.New(pkgerrors.CodeStateConflict, "variant dimensions cannot change once configured").
		WithDetails(map[string]any{"current": existing, "requested": requested})
}

// checkProductStockReleased refuses to convert a simple product whose own
// stock still has held or committed units.
func (s *service) checkProductStockReleased(ctx context.Context, ledger inventory.Ledger, product *models.Product) error {
	if product.HasVariants {
		return nil
	}
	item, err := ledger.Get(ctx, product.ID)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil
	}
	if err != nil && item == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	if item.InventoryTracked && item.OnHoldQty+item.CommittedQty > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product has reserved stock; release it before adding variants").
			WithDetails(map[string]any{"on_hold": item.OnHoldQty, "committed": item.CommittedQty})
	}
	return nil
}

func (s *service) ListCombinations(ctx context.Context, productID uuid.UUID) ([]CombinationDTO, error) {
	if _, err := s.repo.FindProduct(ctx, productID); err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	combos, err := s.repo.ListCombinations(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list combinations")
	}
	return s.withStock(ctx, combos)
}

func (s *service) UpdateCombination(ctx context.Context, productID uuid.UUID, update CombinationUpdate) (*CombinationDTO, error) {
	out, err := s.UpdateCombinations(ctx, productID, []CombinationUpdate{update})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// UpdateCombinations applies column edits in one transaction, then routes
// quantity edits through the reservation engine so counters keep their
// atomic update discipline.
func (s *service) UpdateCombinations(ctx context.Context, productID uuid.UUID, updates []CombinationUpdate) ([]CombinationDTO, error) {
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one update is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(updates))
	for _, u := range updates {
		if u.ID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "combination id is required")
		}
		if _, dup := seen[u.ID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "combination listed twice").
				WithDetails(map[string]any{"id": u.ID.String()})
		}
		seen[u.ID] = struct{}{}
		if u.PriceCents != nil && *u.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
		}
		if u.Quantity != nil && *u.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be zero or greater")
		}
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"product_id": productID.String(), "op": "update_combinations"})

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, u := range updates {
			if _, err := repo.FindCombination(ctx, productID, u.ID); err != nil {
				if isNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "variant combination not found").
						WithDetails(map[string]any{"id": u.ID.String()})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combination")
			}
			if err := repo.UpdateCombinationFields(ctx, u.ID, columnUpdates(u)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update combination")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, u := range updates {
		if u.Quantity == nil {
			continue
		}
		if _, err := s.stock.AdjustTotal(ctx, u.ID, *u.Quantity); err != nil {
			return nil, err
		}
	}

	combos := make([]models.VariantCombination, 0, len(updates))
	for _, u := range updates {
		combo, err := s.repo.FindCombination(ctx, productID, u.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload combination")
		}
		combos = append(combos, *combo)
	}
	return s.withStock(ctx, combos)
}

func columnUpdates(u CombinationUpdate) map[string]any {
	fields := map[string]any{}
	if u.SKU != nil {
		fields["sku"] = *u.SKU
	}
	if u.PriceCents != nil {
		fields["price_cents"] = *u.PriceCents
	}
	if u.IsAvailable != nil {
		fields["is_available"] = *u.IsAvailable
	}
	return fields
}

func (s *service) withStock(ctx context.Context, combos []models.VariantCombination) ([]CombinationDTO, error) {
	ids := make([]uuid.UUID, len(combos))
	for i, c := range combos {
		ids[i] = c.ID
	}
	stock, err := s.repo.ListStock(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load combination stock")
	}

	out := make([]CombinationDTO, 0, len(combos))
	for _, c := range combos {
		dto := CombinationDTO{
			ID:             c.ID,
			ProductID:      c.ProductID,
			CombinationKey: c.CombinationKey,
			OptionValues:   c.OptionValues,
			SKU:            c.SKU,
			PriceCents:     c.PriceCents,
			IsAvailable:    c.IsAvailable,
			SortOrder:      c.SortOrder,
		}
		if item, ok := stock[c.ID]; ok {
			dto.Quantity = item.Quantity
			dto.Available = item.AvailableQty
			dto.OnHold = item.OnHoldQty
			dto.Committed = item.CommittedQty
			dto.InventoryTracked = item.InventoryTracked
		}
		out = append(out, dto)
	}
	return out, nil
}
