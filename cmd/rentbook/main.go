package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/backend"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/invoice"
	"github.com/smallbiznis/rentbook/internal/lock"
	"github.com/smallbiznis/rentbook/internal/migration"
	"github.com/smallbiznis/rentbook/internal/observability"
	"github.com/smallbiznis/rentbook/internal/reading"
	"github.com/smallbiznis/rentbook/internal/server"
	"github.com/smallbiznis/rentbook/pkg/db"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()

	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		clock.Module,
		lock.Module,

		// Record stores
		storeModule(cfg),

		// HTTP API and the services behind it
		server.Module,
	)
	app.Run()
}

// storeModule picks where readings and invoices live: the local database or
// the backend API.
func storeModule(cfg config.Config) fx.Option {
	if cfg.IsRemote() {
		return backend.Module
	}
	return fx.Options(
		fx.Provide(RegisterSnowflake),
		db.Module,
		reading.LocalStoreModule,
		invoice.LocalStoreModule,
		migration.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
