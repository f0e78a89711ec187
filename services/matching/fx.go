package matching

import (
	"go.uber.org/fx"

	"dealsync/pkg/config"
)

var Module = fx.Module("matching.module",
	fx.Provide(
		NewScorer,
		provideMatcher,
		provideGrouper,
	),
)

type matcherParams struct {
	fx.In
	Scorer *Scorer
	Config *config.Config
}

func provideMatcher(p matcherParams) *Matcher {
	return NewMatcher(p.Scorer, p.Config.MatchingThreshold(), p.Config.MatchingDateWindow())
}

type grouperParams struct {
	fx.In
	Matcher *Matcher
	Config  *config.Config
}

func provideGrouper(p grouperParams) *Grouper {
	return NewGrouper(p.Matcher, p.Config.MassProviderDomains())
}
