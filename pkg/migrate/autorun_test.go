package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/config"
	"github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	client := db.NewFromConn(conn)

	cfg := &config.Config{}
	cfg.App.Env = config.AppEnvDev
	cfg.FeatureFlags.AutoMigrate = true
	cfg.DB.Driver = config.DBDriverSQLite

	logg := logger.New(logger.Options{ServiceName: "migrate-test"})
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, client))

	for _, table := range []string{"orders", "customer_orders", "loyalty_ledger_events", "menu_items", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = config.AppEnvProd
	cfg.FeatureFlags.AutoMigrate = true
	require.NoError(t, MaybeRunDev(context.Background(), cfg, nil, nil))
}
