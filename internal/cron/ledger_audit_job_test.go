package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

type recordingGauge struct {
	values []int
}

func (g *recordingGauge) SetInconsistent(n int) { g.values = append(g.values, n) }

type failingLister struct{}

func (failingLister) ListInconsistent(context.Context, int) ([]models.StockItem, error) {
	return nil, errors.New("db down")
}

func auditDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:audit_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.StockItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := conn.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestLedgerAuditJobReportsDrift(t *testing.T) {
	conn := auditDB(t)
	rows := []models.StockItem{
		{EntityID: uuid.New(), EntityKind: enums.StockEntityProduct, Quantity: 10, AvailableQty: 7, OnHoldQty: 3, InventoryTracked: true},
		{EntityID: uuid.New(), EntityKind: enums.StockEntityProduct, Quantity: 10, AvailableQty: 9, OnHoldQty: 3, InventoryTracked: true},
		{EntityID: uuid.New(), EntityKind: enums.StockEntityProduct, Quantity: 1, AvailableQty: 5, InventoryTracked: false},
	}
	for i := range rows {
		if err := conn.Select("*").Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	gauge := &recordingGauge{}
	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger:  logger.Nop(),
		Ledger:  inventory.NewLedger(conn),
		Metrics: gauge,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(gauge.values) != 1 || gauge.values[0] != 1 {
		t.Fatalf("expected gauge set to 1, got %v", gauge.values)
	}
}

func TestLedgerAuditJobPropagatesError(t *testing.T) {
	job, err := NewLedgerAuditJob(LedgerAuditJobParams{Logger: logger.Nop(), Ledger: failingLister{}})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
