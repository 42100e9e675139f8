package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:products_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&models.Product{}, &models.VariantOption{}, &models.VariantCombination{}, &models.StockItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.FromGorm(conn)
	ledger := inventory.NewLedger(conn)
	engine, err := inventory.NewService(inventory.ServiceParams{Ledger: ledger, Tx: client, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	svc, err := NewService(NewRepository(conn), ledger, engine, client, logger.Nop())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, conn
}

func TestCreateProductCreatesStockRow(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateProduct(ctx, CreateProductInput{StoreID: uuid.New(), SKU: " PF-1 ", Title: "Hoodie", PriceCents: 4500, Quantity: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.SKU != "PF-1" || dto.Stock == nil || dto.Stock.Available != 7 || !dto.Stock.Tracked {
		t.Fatalf("unexpected dto: %+v stock=%+v", dto, dto.Stock)
	}

	var item models.StockItem
	if err := conn.First(&item, "entity_id = ?", dto.ID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if item.Quantity != 7 || item.AvailableQty != 7 || item.EntityKind != enums.StockEntityProduct {
		t.Fatalf("unexpected stock row: %+v", item)
	}

	got, err := svc.GetProduct(ctx, dto.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stock == nil || got.Stock.Quantity != 7 {
		t.Fatalf("expected stock on read, got %+v", got.Stock)
	}
}

func TestCreateProductUntracked(t *testing.T) {
	svc, conn := newTestService(t)
	off := false

	dto, err := svc.CreateProduct(context.Background(), CreateProductInput{StoreID: uuid.New(), SKU: "PF-2", Title: "Cap", Quantity: 3, Tracked: &off})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var item models.StockItem
	if err := conn.First(&item, "entity_id = ?", dto.ID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if item.InventoryTracked {
		t.Fatal("expected untracked stock row")
	}
}

func TestCreateProductDuplicateSKUConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	store := uuid.New()

	if _, err := svc.CreateProduct(ctx, CreateProductInput{StoreID: store, SKU: "PF-3", Title: "A"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.CreateProduct(ctx, CreateProductInput{StoreID: store, SKU: "PF-3", Title: "B"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.CreateProduct(ctx, CreateProductInput{StoreID: uuid.New(), SKU: "PF-3", Title: "C"}); err != nil {
		t.Fatalf("same sku in another store should be allowed: %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []CreateProductInput{
		{SKU: "x", Title: "x"},
		{StoreID: uuid.New(), Title: "x"},
		{StoreID: uuid.New(), SKU: "x", Title: "  "},
		{StoreID: uuid.New(), SKU: "x", Title: "x", PriceCents: -1},
		{StoreID: uuid.New(), SKU: "x", Title: "x", Quantity: -1},
	}
	for i, input := range cases {
		if _, err := svc.CreateProduct(context.Background(), input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestSetInventoryTrackingOnVariantProductTouchesCombinations(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateProduct(ctx, CreateProductInput{StoreID: uuid.New(), SKU: "PF-4", Title: "Tee"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := conn.Model(&models.Product{}).Where("id = ?", dto.ID).Update("has_variants", true).Error; err != nil {
		t.Fatalf("mark variants: %v", err)
	}
	ledger := inventory.NewLedger(conn)
	for i := 0; i < 2; i++ {
		combo := &models.VariantCombination{ProductID: dto.ID, CombinationKey: "SIZE:" + uuid.NewString(), SortOrder: i}
		if err := conn.Create(combo).Error; err != nil {
			t.Fatalf("combo: %v", err)
		}
		if err := ledger.Create(ctx, &models.StockItem{EntityID: combo.ID, EntityKind: enums.StockEntityVariantCombination, Quantity: 2, AvailableQty: 2, InventoryTracked: true}); err != nil {
			t.Fatalf("combo stock: %v", err)
		}
	}

	res, err := svc.SetInventoryTracking(ctx, dto.ID, false)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(res.Levels) != 2 {
		t.Fatalf("expected 2 combinations toggled, got %d", len(res.Levels))
	}
	for _, level := range res.Levels {
		if level.Tracked || level.EntityKind != enums.StockEntityVariantCombination {
			t.Fatalf("unexpected level %+v", level)
		}
	}

	got, err := svc.GetProduct(ctx, dto.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stock != nil {
		t.Fatal("variant products report stock per combination")
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GetProduct(context.Background(), uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.SetInventoryTracking(context.Background(), uuid.New(), true); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
