package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/metrics"
)

const defaultReconcileBatch = 500

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Scanned  int
	Repaired int
}

// Reconciler rewrites customer mirror rows that diverge from the global
// order. The global copy is authoritative.
type Reconciler struct {
	repo      Repository
	tx        txRunner
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	batchSize int
}

func NewReconciler(repo Repository, tx txRunner, m *metrics.OrderMetrics, logg *logger.Logger, batchSize int) (*Reconciler, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if batchSize <= 0 {
		batchSize = defaultReconcileBatch
	}
	return &Reconciler{repo: repo, tx: tx, metrics: m, logg: logg, batchSize: batchSize}, nil
}

// Reconcile checks every order updated at or after since, one batch at a
// time. Repair failures for individual orders are collected and returned
// together.
func (r *Reconciler) Reconcile(ctx context.Context, since time.Time) (ReconcileResult, error) {
	var (
		result  ReconcileResult
		errs    error
		cursor  = since
		afterID uuid.UUID
	)
	for {
		if err := ctx.Err(); err != nil {
			return result, multierr.Append(errs, err)
		}
		globals, err := r.repo.ListUpdatedSince(ctx, cursor, afterID, r.batchSize)
		if err != nil {
			return result, multierr.Append(errs, fmt.Errorf("list recent orders: %w", err))
		}
		result.Scanned += len(globals)
		if len(globals) == 0 {
			break
		}
		mirrors, err := r.loadMirrors(ctx, globals)
		if err != nil {
			return result, multierr.Append(errs, fmt.Errorf("load mirrors: %w", err))
		}
		repaired, pageErr := r.reconcilePage(ctx, globals, mirrors)
		result.Repaired += repaired
		errs = multierr.Append(errs, pageErr)
		if len(globals) < r.batchSize {
			break
		}
		last := globals[len(globals)-1]
		cursor, afterID = last.UpdatedAt, last.ID
	}
	r.metrics.AddMirrorRepairs(result.Repaired)
	return result, errs
}

func (r *Reconciler) loadMirrors(ctx context.Context, globals []models.Order) (map[uuid.UUID]models.OrderDocument, error) {
	ids := make([]uuid.UUID, 0, len(globals))
	for _, order := range globals {
		ids = append(ids, order.ID)
	}
	mirrors, err := r.repo.FindCustomerOrdersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.OrderDocument, len(mirrors))
	for _, m := range mirrors {
		byID[m.ID] = m.OrderDocument
	}
	return byID, nil
}

func (r *Reconciler) reconcilePage(ctx context.Context, globals []models.Order, byID map[uuid.UUID]models.OrderDocument) (int, error) {
	var (
		repaired int
		errs     error
	)
	for _, order := range globals {
		mirror, ok := byID[order.ID]
		if ok && DocumentsEqual(order.OrderDocument, mirror) {
			continue
		}
		if err := r.repair(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		repaired++
		logCtx := r.logg.WithFields(r.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"mirror_missing": !ok,
		})
		r.logg.Warn(logCtx, "order mirror repaired")
	}
	return repaired, errs
}

func (r *Reconciler) repair(ctx context.Context, orderID uuid.UUID) error {
	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return repo.SaveMirror(ctx, order.OrderDocument)
	})
}

// DocumentsEqual compares two order documents field for field.
func DocumentsEqual(a, b models.OrderDocument) bool {
	a.CreatedAt, b.CreatedAt = a.CreatedAt.UTC(), b.CreatedAt.UTC()
	a.UpdatedAt, b.UpdatedAt = a.UpdatedAt.UTC(), b.UpdatedAt.UTC()
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(left, right)
}
