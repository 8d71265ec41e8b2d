package migration

import (
	"context"

	"github.com/smallbiznis/rentbook/internal/config"
	invoicerepo "github.com/smallbiznis/rentbook/internal/invoice/repository"
	readingdomain "github.com/smallbiznis/rentbook/internal/reading/domain"
	readingrepo "github.com/smallbiznis/rentbook/internal/reading/repository"
	"github.com/smallbiznis/rentbook/internal/seed"
	"github.com/smallbiznis/rentbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type params struct {
	fx.In

	DB       *gorm.DB
	Config   config.Config
	Log      *zap.Logger
	Readings readingdomain.Store
	Invoices *invoicerepo.Store
}

// Module prepares the local schema and, when SEED_DEMO is set, fills empty
// tables with a demo month.
var Module = fx.Module("migrations",
	fx.Invoke(func(p params) error {
		log := p.Log.Named("migration")
		dialect := db.Kind(p.Config.DBType)
		if err := Apply(p.DB, dialect); err != nil {
			return err
		}
		log.Info("schema ready", zap.String("dialect", dialect))

		if !p.Config.SeedDemo {
			return nil
		}
		return seed.EnsureDemoData(context.Background(), p.Readings, p.Invoices, log)
	}),
)

// Apply runs the embedded SQL on postgres and AutoMigrate elsewhere.
func Apply(conn *gorm.DB, dialect string) error {
	if db.Kind(dialect) == db.KindPostgres {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn, Models()...)
}

// Models lists every row model owned by the local stores.
func Models() []any {
	return append(readingrepo.Models(), invoicerepo.Models()...)
}
