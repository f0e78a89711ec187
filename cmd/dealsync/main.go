package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"dealsync/pkg/config"
	"dealsync/pkg/db"
	"dealsync/pkg/logger"
	"dealsync/services/deal"
	"dealsync/services/license"
	"dealsync/services/matching"
	"dealsync/services/reconcile"
	"dealsync/services/timeline"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(
			provideSnowflakeNode,
		),
		license.Module,
		matching.Module,
		timeline.Module,
		deal.Module,
		reconcile.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
