package reconcile

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"dealsync/pkg/config"
)

var Module = fx.Module("reconcile.module",
	fx.Provide(
		provideSource,
		NewService,
	),
	fx.Invoke(runOnStart),
)

func provideSource(cfg *config.Config) Source {
	return &FileSource{Path: cfg.Reconcile.SourcePath}
}

type runParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Service    *Service
}

func runOnStart(p runParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Service.Migrate(); err != nil {
				return err
			}

			go func() {
				if _, err := p.Service.Run(context.Background()); err != nil {
					zap.L().Error("reconcile run failed", zap.Error(err))
				}

				if err := p.Shutdowner.Shutdown(); err != nil {
					zap.L().Error("failed to shutdown", zap.Error(err))
				}
			}()

			return nil
		},
	})
}
