package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob %q: %v", pattern, err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one migration matching %q, got %d", pattern, len(matches))
	}
	b, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	return string(b)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestStockItemsMigrationEnforcesNonNegativeCounters(t *testing.T) {
	sql := readMigration(t, "*_create_stock_items.sql")
	for _, want := range []string{
		"CHECK (quantity >= 0)",
		"CHECK (available_qty >= 0)",
		"CHECK (on_hold_qty >= 0)",
		"CHECK (committed_qty >= 0)",
		"inventory_tracked boolean NOT NULL DEFAULT true",
		"DROP TABLE IF EXISTS stock_items",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("stock_items migration missing %q", want)
		}
	}
}

func TestVariantMigrationHasUniqueCombinationKey(t *testing.T) {
	sql := readMigration(t, "*_create_products_and_variants.sql")
	for _, want := range []string{
		"ux_variant_combinations_product_key",
		"ON variant_combinations (product_id, combination_key)",
		"ux_variant_options_product_type_value",
		"REFERENCES products(id) ON DELETE CASCADE",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("variants migration missing %q", want)
		}
	}
}

func TestCartMigrationRejectsNonPositiveQty(t *testing.T) {
	sql := readMigration(t, "*_create_carts.sql")
	if !strings.Contains(sql, "CHECK (qty > 0)") {
		t.Fatal("cart_items migration missing qty check")
	}
	if !strings.Contains(sql, "ux_cart_items_cart_entity") {
		t.Fatal("cart_items migration missing per-entity unique index")
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_x.sql"), []byte("-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing down error")
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"20260101000000_a.sql": "-- +goose Up\n-- +goose Down\n",
		"20260101000000_b.sql": "-- +goose Up\n",
		"notes.txt":            "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	err := ValidateDir(dir)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "20260101000000_b.sql: missing") || !strings.Contains(msg, "version 20260101000000 used by") {
		t.Fatalf("expected both problems reported, got %q", msg)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Stock Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_stock_index.sql") {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestAutoMigrateModelsEnforcesStockChecks(t *testing.T) {
	dsn := fmt.Sprintf("file:migrate_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrateModels(conn); err != nil {
		t.Fatalf("AutoMigrateModels: %v", err)
	}

	item := models.StockItem{EntityID: uuid.New(), EntityKind: "product", Quantity: 1, AvailableQty: -1, OnHoldQty: 2, InventoryTracked: true}
	if err := conn.Create(&item).Error; err == nil {
		t.Fatal("expected negative available_qty to be rejected")
	}
}
