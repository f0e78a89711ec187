package timeline

import (
	"go.uber.org/fx"

	"dealsync/pkg/config"
	"dealsync/services/license"
)

var Module = fx.Module("timeline.module",
	fx.Provide(provideGenerator),
)

type generatorParams struct {
	fx.In
	Catalog *license.Catalog
	Config  *config.Config
}

func provideGenerator(p generatorParams) *Generator {
	return NewGenerator(p.Catalog, p.Config.PartnerDomains(), p.Config.MassProviderDomains())
}
