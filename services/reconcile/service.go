package reconcile

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"dealsync/pkg/config"
	"dealsync/pkg/db/option"
	"dealsync/pkg/errutil"
	"dealsync/pkg/repository"
	"dealsync/services/deal"
	"dealsync/services/license"
	"dealsync/services/matching"
	"dealsync/services/timeline"
)

// Service is the deal-generation run loop: group licenses, interpret each
// group as events, generate actions against existing CRM state and apply
// them through the deal store.
type Service struct {
	cfg       *config.Config
	node      *snowflake.Node
	source    Source
	grouper   *matching.Grouper
	events    *timeline.Generator
	generator *deal.Generator
	store     *deal.Store
	reports   repository.Repository[RunReport]
	db        *gorm.DB
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Config    *config.Config
	Source    Source
	Grouper   *matching.Grouper
	Events    *timeline.Generator
	Generator *deal.Generator
	Store     *deal.Store
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:       p.Config,
		node:      p.Node,
		source:    p.Source,
		grouper:   p.Grouper,
		events:    p.Events,
		generator: p.Generator,
		store:     p.Store,
		reports:   repository.ProvideStore[RunReport](p.DB),
		db:        p.DB,
	}
}

// Migrate creates the report schema alongside the deal schema.
func (s *Service) Migrate() error {
	if err := s.store.Migrate(); err != nil {
		return err
	}
	return s.db.AutoMigrate(&RunReport{})
}

// Run executes one reconcile sweep. Groups are processed independently: an
// internal-consistency or configuration fault halts its group and is counted,
// the remaining groups still complete.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	report := &RunReport{ID: s.node.Generate(), StartedAt: time.Now()}
	ignored := make(map[timeline.IgnoreTag]float64)

	licenses, err := s.source.Licenses(ctx)
	if err != nil {
		zapLog.Error("failed to load licenses", zap.Error(err))
		return nil, err
	}
	report.Licenses = len(licenses)

	idx, err := license.NewIndex(licenses)
	if err != nil {
		zapLog.Error("license snapshot failed alias verification", zap.Error(err))
		return nil, err
	}

	groups := s.grouper.Group(licenses, idx)
	report.Groups = len(groups)

	dealIdx, err := s.store.BuildIndex(ctx)
	if err != nil {
		zapLog.Error("failed to index existing deals", zap.Error(err))
		return nil, err
	}

	var pending []deal.Action
	var duplicates []*deal.Deal

	for _, group := range groups {
		events := s.events.Events(group)

		result, err := s.generator.Generate(group, events, dealIdx)
		if err != nil {
			// Broken invariant or missing configuration: skip the group but
			// never continue as if it succeeded.
			report.Faults++
			zapLog.Error("group generation halted",
				zap.Error(err),
				zap.String("status", string(errutil.StatusOf(err))),
				zap.Int("licenses", len(group.Licenses)),
			)
			continue
		}

		for tag, amount := range result.Ignored {
			ignored[tag] += amount
		}
		pending = append(pending, result.Actions...)
		duplicates = append(duplicates, result.Duplicates...)
	}

	for _, action := range pending {
		switch action.(type) {
		case deal.Create:
			report.Created++
		case deal.Update:
			report.Updated++
		case deal.Noop:
			report.Noops++
		}
	}
	report.Duplicates = len(duplicates)

	if err := s.apply(ctx, pending); err != nil {
		zapLog.Error("failed to apply actions", zap.Error(err))
		return nil, err
	}
	if err := s.store.SaveDuplicates(ctx, duplicates); err != nil {
		zapLog.Error("failed to record duplicate deals", zap.Error(err))
		return nil, err
	}

	report.FinishedAt = time.Now()
	report.setIgnored(ignored)
	if err := s.reports.Create(ctx, report); err != nil {
		zapLog.Error("failed to persist run report", zap.Error(err))
		return nil, err
	}

	zapLog.Info("reconcile run finished",
		zap.Int("licenses", report.Licenses),
		zap.Int("groups", report.Groups),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("noops", report.Noops),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("faults", report.Faults),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, nil
}

// LatestReport returns the most recent run's summary, or nil when no run has
// completed yet.
func (s *Service) LatestReport(ctx context.Context) (*RunReport, error) {
	return s.reports.FindOne(ctx, &RunReport{}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "started_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"started_at": true},
	}))
}

// apply pushes actions through the store with bounded concurrency. Several
// actions can target the same deal when its alias set spans groups, so
// actions are queued per deal and each queue runs on one goroutine; only
// ordering across different deals may interleave.
func (s *Service) apply(ctx context.Context, actions []deal.Action) error {
	queues := make(map[*deal.Deal][]deal.Action)
	order := make([]*deal.Deal, 0, len(actions))
	for _, action := range actions {
		target := actionDeal(action)
		if target == nil {
			continue
		}
		if _, ok := queues[target]; !ok {
			order = append(order, target)
		}
		queues[target] = append(queues[target], action)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ApplyConcurrency())

	for _, target := range order {
		queue := queues[target]
		g.Go(func() error {
			for _, action := range queue {
				if err := s.store.Apply(ctx, action); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// actionDeal returns the deal an action writes to, or nil for actions that
// write nothing.
func actionDeal(action deal.Action) *deal.Deal {
	switch a := action.(type) {
	case deal.Create:
		return a.Deal
	case deal.Update:
		return a.Deal
	default:
		return nil
	}
}
