package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

const defaultAuditBatch = 200

type inconsistentLister interface {
	ListInconsistent(ctx context.Context, limit int) ([]models.StockItem, error)
}

type auditGauge interface {
	SetInconsistent(n int)
}

type LedgerAuditJobParams struct {
	Logger    *logger.Logger
	Ledger    inconsistentLister
	Metrics   auditGauge
	BatchSize int
}

// NewLedgerAuditJob reports tracked stock rows whose counters no longer add
// up. It never repairs them; a human decides which counter is wrong.
func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAuditBatch
	}
	return &ledgerAuditJob{logg: params.Logger, ledger: params.Ledger, metrics: params.Metrics, batch: batch}, nil
}

type ledgerAuditJob struct {
	logg    *logger.Logger
	ledger  inconsistentLister
	metrics auditGauge
	batch   int
}

func (j *ledgerAuditJob) Name() string { return "ledger-audit" }

func (j *ledgerAuditJob) Run(ctx context.Context) error {
	items, err := j.ledger.ListInconsistent(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list inconsistent stock: %w", err)
	}
	if j.metrics != nil {
		j.metrics.SetInconsistent(len(items))
	}
	for _, item := range items {
		itemCtx := j.logg.WithFields(ctx, map[string]any{
			"entity_id":     item.EntityID.String(),
			"entity_kind":   string(item.EntityKind),
			"quantity":      item.Quantity,
			"available_qty": item.AvailableQty,
			"on_hold_qty":   item.OnHoldQty,
			"committed_qty": item.CommittedQty,
		})
		j.logg.Error(itemCtx, "stock counters out of balance", errInconsistent)
	}
	if len(items) > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "count", len(items)), "ledger audit found inconsistent rows")
	}
	return nil
}

var errInconsistent = errors.New("quantity does not equal available + on_hold + committed")
