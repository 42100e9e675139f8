package inventory

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection serializes writers the way row locks do on Postgres.
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(
		&models.Product{},
		&models.VariantOption{},
		&models.VariantCombination{},
		&models.StockItem{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Ledger:      NewLedger(conn),
		Tx:          db.FromGorm(conn),
		Emitter:     outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Logger:      logger.Nop(),
		ServiceName: "inventory-test",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedStock(t *testing.T, conn *gorm.DB, quantity, available, onHold, committed int, tracked bool) uuid.UUID {
	t.Helper()
	item := &models.StockItem{
		EntityID:         uuid.New(),
		EntityKind:       enums.StockEntityProduct,
		Quantity:         quantity,
		AvailableQty:     available,
		OnHoldQty:        onHold,
		CommittedQty:     committed,
		InventoryTracked: tracked,
	}
	if err := NewLedger(conn).Create(t.Context(), item); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return item.EntityID
}

func mustLoad(t *testing.T, conn *gorm.DB, id uuid.UUID) models.StockItem {
	t.Helper()
	var item models.StockItem
	if err := conn.Where("entity_id = ?", id).Take(&item).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return item
}

func assertCounters(t *testing.T, item models.StockItem, quantity, available, onHold, committed int) {
	t.Helper()
	if item.Quantity != quantity || item.AvailableQty != available || item.OnHoldQty != onHold || item.CommittedQty != committed {
		t.Fatalf("expected {%d,%d,%d,%d}, got {%d,%d,%d,%d}",
			quantity, available, onHold, committed,
			item.Quantity, item.AvailableQty, item.OnHoldQty, item.CommittedQty)
	}
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}
