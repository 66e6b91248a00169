package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tastebud-backend/internal/orders"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

const defaultReconcileLookback = 2 * time.Hour

type mirrorReconciler interface {
	Reconcile(ctx context.Context, since time.Time) (orders.ReconcileResult, error)
}

type MirrorReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler mirrorReconciler
	// Lookback bounds how far back updated orders are compared. It should
	// exceed the cron interval so consecutive cycles overlap.
	Lookback time.Duration
}

// NewMirrorReconcileJob repairs customer mirror rows that drifted from their
// global order.
func NewMirrorReconcileJob(params MirrorReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	return &mirrorReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		lookback:   lookback,
		now:        time.Now,
	}, nil
}

type mirrorReconcileJob struct {
	logg       *logger.Logger
	reconciler mirrorReconciler
	lookback   time.Duration
	now        func() time.Time
}

func (j *mirrorReconcileJob) Name() string { return "order-mirror-reconcile" }

func (j *mirrorReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	result, err := j.reconciler.Reconcile(ctx, since)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":    since,
		"scanned":  result.Scanned,
		"repaired": result.Repaired,
	})
	if err != nil {
		return fmt.Errorf("mirror reconcile: %w", err)
	}
	if result.Repaired > 0 {
		j.logg.Warn(logCtx, "order mirrors repaired")
		return nil
	}
	j.logg.Info(logCtx, "order mirrors in sync")
	return nil
}
