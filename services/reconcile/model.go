package reconcile

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	"dealsync/services/timeline"
)

// RunReport summarizes one reconcile sweep for later inspection.
type RunReport struct {
	ID         snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false"`
	StartedAt  time.Time    `gorm:"column:started_at"`
	FinishedAt time.Time    `gorm:"column:finished_at"`

	Licenses int `gorm:"column:licenses"`
	Groups   int `gorm:"column:groups"`

	Created    int `gorm:"column:created"`
	Updated    int `gorm:"column:updated"`
	Noops      int `gorm:"column:noops"`
	Duplicates int `gorm:"column:duplicates"`
	Faults     int `gorm:"column:faults"`

	IgnoredAmounts datatypes.JSON `gorm:"column:ignored_amounts"`
}

func (r *RunReport) setIgnored(ignored map[timeline.IgnoreTag]float64) {
	if len(ignored) == 0 {
		return
	}
	raw, _ := json.Marshal(ignored)
	r.IgnoredAmounts = datatypes.JSON(raw)
}

// Ignored returns the ignored-amount ledger keyed by reason.
func (r *RunReport) Ignored() map[timeline.IgnoreTag]float64 {
	ignored := make(map[timeline.IgnoreTag]float64)
	if len(r.IgnoredAmounts) > 0 {
		_ = json.Unmarshal(r.IgnoredAmounts, &ignored)
	}
	return ignored
}
