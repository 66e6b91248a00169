package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

func TestReconcileRepairsDivergentAndMissingMirrors(t *testing.T) {
	stack := newTestStack(t, false)
	since := time.Now().Add(-time.Hour)

	inSync := sampleDocument(time.Now())
	divergent := sampleDocument(time.Now())
	missing := sampleDocument(time.Now())
	stack.seed(t, inSync)
	stack.seed(t, divergent)
	stack.seed(t, missing)

	require.NoError(t, stack.conn.Exec("UPDATE customer_orders SET status = ? WHERE id = ?", enums.OrderStatusCancelled, divergent.ID).Error)
	require.NoError(t, stack.conn.Exec("DELETE FROM customer_orders WHERE id = ?", missing.ID).Error)

	reconciler, err := NewReconciler(stack.repo, db.NewFromConn(stack.conn), nil, logger.New(logger.Options{ServiceName: "orders-test"}), 0)
	require.NoError(t, err)

	result, err := reconciler.Reconcile(context.Background(), since)
	require.NoError(t, err)
	require.Equal(t, 3, result.Scanned)
	require.Equal(t, 2, result.Repaired)

	require.Equal(t, enums.OrderStatusPending, stack.requireInSync(t, divergent.CustomerID, divergent.ID).Status)
	stack.requireInSync(t, missing.CustomerID, missing.ID)

	again, err := reconciler.Reconcile(context.Background(), since)
	require.NoError(t, err)
	require.Zero(t, again.Repaired)
}

func TestReconcilePagesThroughWholeWindow(t *testing.T) {
	stack := newTestStack(t, false)
	base := time.Now().Add(-10 * time.Minute)

	var docs []models.OrderDocument
	for i := 0; i < 5; i++ {
		doc := sampleDocument(base.Add(time.Duration(i/2) * time.Minute))
		stack.seed(t, doc)
		docs = append(docs, doc)
	}
	require.NoError(t, stack.conn.Exec("DELETE FROM customer_orders").Error)

	reconciler, err := NewReconciler(stack.repo, db.NewFromConn(stack.conn), nil, logger.New(logger.Options{ServiceName: "orders-test"}), 2)
	require.NoError(t, err)

	result, err := reconciler.Reconcile(context.Background(), base.Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, 5, result.Scanned)
	require.Equal(t, 5, result.Repaired)
	for _, doc := range docs {
		stack.requireInSync(t, doc.CustomerID, doc.ID)
	}
}

func TestReconcileIgnoresOlderOrders(t *testing.T) {
	stack := newTestStack(t, false)
	old := sampleDocument(time.Now().Add(-48 * time.Hour))
	stack.seed(t, old)
	require.NoError(t, stack.conn.Exec("DELETE FROM customer_orders WHERE id = ?", old.ID).Error)

	reconciler, err := NewReconciler(stack.repo, db.NewFromConn(stack.conn), nil, logger.New(logger.Options{ServiceName: "orders-test"}), 10)
	require.NoError(t, err)

	result, err := reconciler.Reconcile(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, result.Scanned)
}

func TestDocumentsEqualNormalizesZones(t *testing.T) {
	doc := sampleDocument(time.Now())
	other := doc
	other.CreatedAt = doc.CreatedAt.In(time.FixedZone("IST", 5*3600+1800))
	require.True(t, DocumentsEqual(doc, other))

	other.TotalCents++
	require.False(t, DocumentsEqual(doc, other))
}
