package deal

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"dealsync/pkg/config"
	"dealsync/services/license"
)

var Module = fx.Module("deal.module",
	fx.Provide(
		provideGenerator,
		provideStore,
	),
)

type generatorParams struct {
	fx.In
	Node    *snowflake.Node
	Catalog *license.Catalog
	Config  *config.Config
}

func provideGenerator(p generatorParams) *Generator {
	return NewGenerator(p.Node, p.Catalog, p.Config.Deal.NameTemplate)
}

func provideStore(db *gorm.DB) *Store {
	return NewStore(db)
}
