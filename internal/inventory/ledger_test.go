package inventory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

var stockColumns = []string{
	"entity_id", "entity_kind", "quantity", "available_qty",
	"on_hold_qty", "committed_qty", "inventory_tracked", "updated_at",
}

func newMockLedger(t *testing.T) (Ledger, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewLedger(gormDB), mock, mockDB
}

func TestApplyDeltaIssuesSingleConditionalUpdate(t *testing.T) {
	ledger, mock, mockDB := newMockLedger(t)
	defer mockDB.Close()
	id := uuid.New()

	mock.ExpectExec(`(?s)UPDATE stock_items\s+SET available_qty = available_qty \+ \$1,\s+on_hold_qty = on_hold_qty \+ \$2,\s+committed_qty = committed_qty \+ \$3,.*WHERE entity_id = \$4\s+AND inventory_tracked = \$5\s+AND available_qty \+ \$6 >= 0\s+AND on_hold_qty \+ \$7 >= 0\s+AND committed_qty \+ \$8 >= 0`).
		WithArgs(-3, 3, 0, id, true, -3, 3, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "stock_items" WHERE entity_id = \$1`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows(stockColumns).AddRow(id, "product", 10, 7, 3, 0, true, time.Now()))

	item, err := ledger.ApplyDelta(context.Background(), id, Delta{Available: -3, OnHold: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, item.AvailableQty)
	assert.Equal(t, 3, item.OnHoldQty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeltaClassifiesZeroRows(t *testing.T) {
	cases := []struct {
		name    string
		tracked bool
		want    error
	}{
		{name: "insufficient", tracked: true, want: ErrInsufficientStock},
		{name: "untracked", tracked: false, want: ErrUntracked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger, mock, mockDB := newMockLedger(t)
			defer mockDB.Close()
			id := uuid.New()

			mock.ExpectExec(`UPDATE stock_items`).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT \* FROM "stock_items"`).
				WithArgs(id, 1).
				WillReturnRows(sqlmock.NewRows(stockColumns).AddRow(id, "product", 5, 2, 3, 0, tc.tracked, time.Now()))

			_, err := ledger.ApplyDelta(context.Background(), id, Delta{Available: -3, OnHold: 3})
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("missing", func(t *testing.T) {
		ledger, mock, mockDB := newMockLedger(t)
		defer mockDB.Close()
		id := uuid.New()

		mock.ExpectExec(`UPDATE stock_items`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "stock_items"`).
			WithArgs(id, 1).
			WillReturnRows(sqlmock.NewRows(stockColumns))

		_, err := ledger.ApplyDelta(context.Background(), id, Delta{Available: -1, OnHold: 1})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApplyDeltaRejectsUnbalancedDeltaWithoutQuerying(t *testing.T) {
	ledger, mock, mockDB := newMockLedger(t)
	defer mockDB.Close()

	_, err := ledger.ApplyDelta(context.Background(), uuid.New(), Delta{Available: -2, OnHold: 1})
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeltaSurfacesStoreErrors(t *testing.T) {
	ledger, mock, mockDB := newMockLedger(t)
	defer mockDB.Close()
	boom := errors.New("connection reset")

	mock.ExpectExec(`UPDATE stock_items`).WillReturnError(boom)

	_, err := ledger.ApplyDelta(context.Background(), uuid.New(), Delta{Available: 1, OnHold: -1})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTotalMissingRow(t *testing.T) {
	ledger, mock, mockDB := newMockLedger(t)
	defer mockDB.Close()
	id := uuid.New()

	mock.ExpectExec(`(?s)UPDATE stock_items\s+SET quantity = CASE WHEN \$1 >= on_hold_qty \+ committed_qty.*WHERE entity_id = \$5\s+AND inventory_tracked = \$6`).
		WithArgs(4, 4, 4, 4, id, true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "stock_items" WHERE entity_id = \$1`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows(stockColumns))

	_, err := ledger.SetTotal(context.Background(), id, 4)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTotalLeavesUntrackedRow(t *testing.T) {
	ledger, mock, mockDB := newMockLedger(t)
	defer mockDB.Close()
	id := uuid.New()

	mock.ExpectExec(`UPDATE stock_items`).
		WithArgs(0, 0, 0, 0, id, true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "stock_items"`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows(stockColumns).AddRow(id, "product", 4, 1, 2, 1, false, time.Now()))

	item, err := ledger.SetTotal(context.Background(), id, 0)
	assert.ErrorIs(t, err, ErrUntracked)
	require.NotNil(t, item)
	assert.Equal(t, 4, item.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerGetDetectsBrokenInvariant(t *testing.T) {
	conn := newTestDB(t)
	id := uuid.New()
	broken := models.StockItem{EntityID: id, EntityKind: "product", Quantity: 9, AvailableQty: 2, OnHoldQty: 1, InventoryTracked: false}
	require.NoError(t, NewLedger(conn).Create(context.Background(), &broken))
	require.NoError(t, conn.Model(&models.StockItem{}).Where("entity_id = ?", id).Update("inventory_tracked", true).Error)

	item, err := NewLedger(conn).Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	require.NotNil(t, item)
	assert.Equal(t, 9, item.Quantity)

	found, err := NewLedger(conn).ListInconsistent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].EntityID)
}

func TestLedgerCreateRejectsInconsistentTrackedRow(t *testing.T) {
	conn := newTestDB(t)
	err := NewLedger(conn).Create(context.Background(), &models.StockItem{
		EntityID: uuid.New(), EntityKind: "product", Quantity: 3, AvailableQty: 1, InventoryTracked: true,
	})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestLedgerCreatePersistsUntrackedFlag(t *testing.T) {
	conn := newTestDB(t)
	id := seedStock(t, conn, 2, 2, 0, 0, false)
	assert.False(t, mustLoad(t, conn, id).InventoryTracked)
}

func TestLedgerWithTxRollsBack(t *testing.T) {
	conn := newTestDB(t)
	id := seedStock(t, conn, 5, 5, 0, 0, true)
	rollback := errors.New("rollback")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := NewLedger(conn).WithTx(tx).ApplyDelta(context.Background(), id, Delta{Available: -5, OnHold: 5}); err != nil {
			return err
		}
		return rollback
	})
	assert.ErrorIs(t, err, rollback)
	assertCounters(t, mustLoad(t, conn, id), 5, 5, 0, 0)
}
