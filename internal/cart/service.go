package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
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

type stockEngine interface {
	CheckAvailability(ctx context.Context, entityID uuid.UUID, qty int) (inventory.Availability, error)
	Reserve(ctx context.Context, entityID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, entityID uuid.UUID, qty int) error
}

// Service exposes the cart flows that sit in front of the reservation engine.
type Service interface {
	CreateCart(ctx context.Context, buyerStoreID uuid.UUID) (*CartDTO, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*AddItemResult, error)
	StartNewCart(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*AddItemResult, error)
	ReserveCart(ctx context.Context, cartID uuid.UUID) (*ReserveResult, error)
	ReleaseCart(ctx context.Context, cartID uuid.UUID) (*CartDTO, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	resolver inventory.Resolver
	stock    stockEngine
	guard    *Guard
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, resolver inventory.Resolver, stock stockEngine, guard *Guard, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("stockable resolver required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock engine required")
	}
	if guard == nil {
		return nil, fmt.Errorf("cart guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, resolver: resolver, stock: stock, guard: guard, logg: logg}, nil
}

func (s *service) CreateCart(ctx context.Context, buyerStoreID uuid.UUID) (*CartDTO, error) {
	if buyerStoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer store id is required")
	}
	cart := &models.Cart{BuyerStoreID: buyerStoreID, Status: enums.CartStatusActive}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return toCartDTO(cart), nil
}

func (s *service) GetCart(ctx context.Context, cartID uuid.UUID) (*CartDTO, error) {
	cart, err := s.load(ctx, s.repo, cartID)
	if err != nil {
		return nil, err
	}
	return toCartDTO(cart), nil
}

// AddItem runs the guard, then the per-line cap, then the stock check, and
// only then persists the line. The guard runs again inside the write
// transaction against the stored cart, and the seller is claimed with a
// compare-and-set so concurrent adds cannot mix sellers.
func (s *service) AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*AddItemResult, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	cart, err := s.load(ctx, s.repo, cartID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(cart); err != nil {
		return nil, err
	}
	stockable, err := s.resolve(ctx, input.Ref)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"cart_id": cartID.String(), "entity_id": stockable.EntityID.String()})
	candidate := Candidate{EntityID: stockable.EntityID, StoreID: stockable.StoreID, Qty: input.Qty}

	lineQty, err := s.guard.Check(cart, candidate)
	if err != nil {
		return nil, s.guardError(ctx, err)
	}

	availability, err := s.stock.CheckAvailability(ctx, stockable.EntityID, lineQty)
	if err != nil {
		return nil, err
	}
	if !availability.Available {
		return &AddItemResult{Added: false, Available: availability.Quantity, Cart: toCartDTO(cart)}, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.claimSeller(ctx, repo, cartID, candidate); err != nil {
			return err
		}
		added, err := repo.IncrementItem(ctx, newItem(cartID, stockable, input.Qty), s.guard.MaxLineQty())
		if err != nil {
			return err
		}
		if !added {
			// The line grew past the cap after the guard ran.
			current, err := s.load(ctx, repo, cartID)
			if err != nil {
				return err
			}
			if err := s.guard.CheckLineQty(input.Qty + lineQuantity(current, stockable.EntityID)); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "cart line changed while adding the item; retry")
		}
		return nil
	})
	if err != nil {
		var conflict *SellerConflictError
		if errors.As(err, &conflict) || pkgerrors.As(err) != nil {
			return nil, s.guardError(ctx, err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return s.addedResult(ctx, cartID, availability.Quantity)
}

// claimSeller re-reads the cart inside tx, re-runs the seller rule on it and
// stores the seller only if nobody changed it in between.
func (s *service) claimSeller(ctx context.Context, repo Repository, cartID uuid.UUID, candidate Candidate) error {
	const attempts = 2
	for i := 0; i < attempts; i++ {
		current, err := s.load(ctx, repo, cartID)
		if err != nil {
			return err
		}
		if err := requireEditable(current); err != nil {
			return err
		}
		if _, err := s.guard.Check(current, candidate); err != nil {
			return err
		}
		claimed, err := repo.ClaimSeller(ctx, cartID, current.SellerStoreID, candidate.StoreID)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "cart changed while adding the item; retry")
}

// StartNewCart empties the cart and adds the candidate line, the buyer's
// answer to a seller conflict.
func (s *service) StartNewCart(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*AddItemResult, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if err := s.guard.CheckLineQty(input.Qty); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, s.repo, cartID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(cart); err != nil {
		return nil, err
	}
	stockable, err := s.resolve(ctx, input.Ref)
	if err != nil {
		return nil, err
	}

	availability, err := s.stock.CheckAvailability(ctx, stockable.EntityID, input.Qty)
	if err != nil {
		return nil, err
	}
	if !availability.Available {
		return &AddItemResult{Added: false, Available: availability.Quantity, Cart: toCartDTO(cart)}, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// Resetting the seller first takes the cart row before the lines change.
		reset, err := repo.ResetSeller(ctx, cartID, stockable.StoreID)
		if err != nil {
			return err
		}
		if !reset {
			return errCartNotEditable()
		}
		if err := repo.ClearItems(ctx, cartID); err != nil {
			return err
		}
		_, err = repo.IncrementItem(ctx, newItem(cartID, stockable, input.Qty), s.guard.MaxLineQty())
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start new cart")
	}
	s.logg.Info(s.logg.WithField(ctx, "cart_id", cartID.String()), "cart restarted for new seller")
	return s.addedResult(ctx, cartID, availability.Quantity)
}

// ReserveCart holds stock for every line or for none. The cart is claimed
// first by moving it to reserving, so overlapping calls cannot hold the same
// lines twice. Lines reserved before a refusal are released again.
func (s *service) ReserveCart(ctx context.Context, cartID uuid.UUID) (*ReserveResult, error) {
	cart, err := s.load(ctx, s.repo, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already reserved")
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	ctx = s.logg.WithField(ctx, "cart_id", cartID.String())

	claimed, err := s.repo.TransitionStatus(ctx, cartID, enums.CartStatusActive, enums.CartStatusReserving)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim cart")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already reserved")
	}

	// Lines added before the claim committed are only visible from here on.
	cart, err = s.load(ctx, s.repo, cartID)
	if err != nil {
		return nil, s.abortReserve(ctx, cartID, nil, err)
	}
	if len(cart.Items) == 0 {
		return nil, s.abortReserve(ctx, cartID, nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
	}

	result := &ReserveResult{CartID: cart.ID, Lines: make([]LineResult, 0, len(cart.Items))}
	var held []models.CartItem
	failed := false

	for _, item := range cart.Items {
		line := LineResult{EntityID: item.EntityID, EntityKind: item.EntityKind, Qty: item.Qty}
		if failed {
			result.Lines = append(result.Lines, line)
			continue
		}
		ok, err := s.stock.Reserve(ctx, item.EntityID, item.Qty)
		if err != nil {
			return nil, s.abortReserve(ctx, cartID, held, err)
		}
		if !ok {
			failed = true
			availability, err := s.stock.CheckAvailability(ctx, item.EntityID, item.Qty)
			if err == nil {
				line.Available = &availability.Quantity
			}
			result.Lines = append(result.Lines, line)
			continue
		}
		line.Reserved = true
		held = append(held, item)
		result.Lines = append(result.Lines, line)
	}

	if failed {
		if err := s.abortReserve(ctx, cartID, held, nil); err != nil {
			return nil, err
		}
		for i := range result.Lines {
			result.Lines[i].Reserved = false
		}
		return result, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkItemsReserved(ctx, cartID, itemIDs(held), true); err != nil {
			return err
		}
		done, err := repo.TransitionStatus(ctx, cartID, enums.CartStatusReserving, enums.CartStatusReserved)
		if err != nil {
			return err
		}
		if !done {
			return fmt.Errorf("cart %s left the reserving state", cartID)
		}
		return nil
	})
	if err != nil {
		return nil, s.abortReserve(ctx, cartID, held, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart reserved"))
	}
	result.Reserved = true
	return result, nil
}

// abortReserve returns held units and reopens the cart. cause is nil for a
// clean refusal; any release or reopen failure is returned alongside it.
func (s *service) abortReserve(ctx context.Context, cartID uuid.UUID, held []models.CartItem, cause error) error {
	var errs error
	for _, item := range held {
		if err := s.stock.Release(ctx, item.EntityID, item.Qty); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", item.EntityID, err))
		}
	}
	if _, err := s.repo.TransitionStatus(ctx, cartID, enums.CartStatusReserving, enums.CartStatusActive); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reopen cart: %w", err))
	}
	if errs == nil {
		return cause
	}
	s.logg.Error(ctx, "undo of failed cart reservation incomplete", errs)
	wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "undo cart reservation")
	if cause == nil {
		return wrapped
	}
	return multierr.Append(cause, wrapped)
}

// ReleaseCart returns the held units of a reserved cart and reopens it. A
// line whose release fails stays marked reserved and the cart stays
// reserved, so a retry only touches what is still held.
func (s *service) ReleaseCart(ctx context.Context, cartID uuid.UUID) (*CartDTO, error) {
	if _, err := s.load(ctx, s.repo, cartID); err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "cart_id", cartID.String())

	claimed, err := s.repo.TransitionStatus(ctx, cartID, enums.CartStatusReserved, enums.CartStatusReleasing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim cart")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not reserved")
	}
	cart, err := s.load(ctx, s.repo, cartID)
	if err != nil {
		return nil, s.abortRelease(ctx, cartID, err)
	}

	var errs error
	for _, item := range cart.Items {
		if !item.Reserved {
			continue
		}
		if err := s.stock.Release(ctx, item.EntityID, item.Qty); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", item.EntityID, err))
			continue
		}
		if err := s.repo.MarkItemsReserved(ctx, cartID, []uuid.UUID{item.ID}, false); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unmark %s: %w", item.EntityID, err))
		}
	}
	if errs != nil {
		return nil, s.abortRelease(ctx, cartID, errs)
	}

	reopened, err := s.repo.TransitionStatus(ctx, cartID, enums.CartStatusReleasing, enums.CartStatusActive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen cart")
	}
	if !reopened {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart left the releasing state")
	}
	return s.GetCart(ctx, cartID)
}

// abortRelease puts a partially released cart back to reserved.
func (s *service) abortRelease(ctx context.Context, cartID uuid.UUID, cause error) error {
	if _, err := s.repo.TransitionStatus(ctx, cartID, enums.CartStatusReleasing, enums.CartStatusReserved); err != nil {
		cause = multierr.Append(cause, fmt.Errorf("restore reserved status: %w", err))
	}
	s.logg.Error(ctx, "cart release incomplete", cause)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "release cart stock")
}

func errCartNotEditable() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is reserved; release it before editing")
}

func requireEditable(cart *models.Cart) error {
	if cart.Status != enums.CartStatusActive {
		return errCartNotEditable()
	}
	return nil
}

// guardError logs and maps a guard refusal; other errors pass through.
func (s *service) guardError(ctx context.Context, err error) error {
	var conflict *SellerConflictError
	if errors.As(err, &conflict) {
		s.logg.Info(ctx, "cart seller conflict")
		return conflict.AppError()
	}
	return err
}

func itemIDs(items []models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (s *service) resolve(ctx context.Context, ref inventory.StockableRef) (*inventory.Stockable, error) {
	stockable, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !stockable.Purchasable {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "variant combination is not available for sale")
	}
	return stockable, nil
}

func (s *service) addedResult(ctx context.Context, cartID uuid.UUID, available int) (*AddItemResult, error) {
	dto, err := s.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return &AddItemResult{Added: true, Available: available, Cart: dto}, nil
}

func (s *service) load(ctx context.Context, repo Repository, cartID uuid.UUID) (*models.Cart, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	cart, err := repo.FindByID(ctx, cartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func newItem(cartID uuid.UUID, stockable *inventory.Stockable, qty int) *models.CartItem {
	return &models.CartItem{
		CartID:     cartID,
		EntityID:   stockable.EntityID,
		EntityKind: stockable.Kind,
		ProductID:  stockable.ProductID,
		StoreID:    stockable.StoreID,
		Qty:        qty,
	}
}
