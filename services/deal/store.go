package deal

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dealsync/pkg/db/option"
	"dealsync/pkg/repository"
)

// Store is the gorm-backed stand-in for the CRM entity-sync collaborator:
// it owns the existing-deal snapshot, persists applied actions, snapshots
// last-synced state, and records duplicate relationships.
type Store struct {
	db    *gorm.DB
	deals repository.Repository[Deal]
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		deals: repository.ProvideStore[Deal](db),
	}
}

// Migrate creates the deal schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Deal{})
}

// All loads the CRM-side deal snapshot for a run, oldest first so index
// encounter order is stable across runs.
func (s *Store) All(ctx context.Context) ([]*Deal, error) {
	return s.deals.Find(ctx, &Deal{}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "asc",
		Allow:   map[string]bool{"created_at": true},
	}))
}

// BuildIndex loads all deals and indexes them by alias identifier.
func (s *Store) BuildIndex(ctx context.Context) (*Index, error) {
	deals, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return NewIndex(deals), nil
}

// Apply persists one action. Create and Update snapshot the live properties
// as last-synced once the write succeeds; noops write nothing.
func (s *Store) Apply(ctx context.Context, action Action) error {
	switch a := action.(type) {
	case Create:
		a.Deal.MarkSynced()
		a.Deal.CreatedAt = time.Now()
		a.Deal.UpdatedAt = a.Deal.CreatedAt
		return s.deals.Create(ctx, a.Deal)
	case Update:
		a.Deal.MarkSynced()
		a.Deal.UpdatedAt = time.Now()
		return s.db.WithContext(ctx).Save(a.Deal).Error
	default:
		return nil
	}
}

// SaveDuplicates persists duplicate-of markings. Duplicates are tracked,
// never deleted; whether they are cleaned up is an upload-time decision.
func (s *Store) SaveDuplicates(ctx context.Context, duplicates []*Deal) error {
	for _, d := range duplicates {
		if err := s.db.WithContext(ctx).Model(&Deal{}).
			Where("id = ?", d.ID).
			Update("duplicate_of", d.DuplicateOf).Error; err != nil {
			return err
		}
	}
	return nil
}
