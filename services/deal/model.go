package deal

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Stage is the CRM pipeline state of a deal.
type Stage string

var (
	StageEval       Stage = "EVAL"
	StageClosedWon  Stage = "CLOSED_WON"
	StageClosedLost Stage = "CLOSED_LOST"
)

// Properties is the full property bag pushed to the CRM for one deal.
// CloseDate and MaintenanceEnd use the marketplace's day granularity.
type Properties struct {
	Name           string   `json:"name,omitempty"`
	Stage          Stage    `json:"stage,omitempty"`
	Amount         float64  `json:"amount"`
	CloseDate      string   `json:"close_date,omitempty"`
	Deployment     string   `json:"deployment,omitempty"`
	SaleType       string   `json:"sale_type,omitempty"`
	ProductKey     string   `json:"product_key,omitempty"`
	Tier           int      `json:"tier,omitempty"`
	Country        string   `json:"country,omitempty"`
	PartnerDomain  string   `json:"partner_domain,omitempty"`
	MaintenanceEnd string   `json:"maintenance_end,omitempty"`
	AliasIDs       []string `json:"alias_ids,omitempty"`
}

// Deal is the CRM-side entity as this engine sees it. Properties is the live
// state, LastSynced the immutable snapshot of what the CRM last confirmed;
// the changed-field diff between them drives update-vs-noop decisions.
type Deal struct {
	ID        snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false"`
	CreatedAt time.Time    `gorm:"column:created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at"`

	Stage  Stage   `gorm:"column:stage"`
	Amount float64 `gorm:"column:amount"`

	Properties datatypes.JSON `gorm:"column:properties"`
	LastSynced datatypes.JSON `gorm:"column:last_synced"`
	AliasIDs   datatypes.JSON `gorm:"column:alias_ids"`

	// DuplicateOf points at the canonical deal when this one was resolved
	// as a duplicate. Duplicates are tracked, never deleted here.
	DuplicateOf snowflake.ID `gorm:"column:duplicate_of"`

	// LastEngagement is the CRM activity signal. Any non-blank value makes
	// the deal "important" during duplicate resolution.
	LastEngagement string `gorm:"column:last_engagement"`
}

func (d *Deal) Current() Properties {
	var p Properties
	if len(d.Properties) > 0 {
		_ = json.Unmarshal(d.Properties, &p)
	}
	return p
}

func (d *Deal) Synced() Properties {
	var p Properties
	if len(d.LastSynced) > 0 {
		_ = json.Unmarshal(d.LastSynced, &p)
	}
	return p
}

// SetProperties replaces the live property bag and mirrors the queryable
// columns.
func (d *Deal) SetProperties(p Properties) {
	raw, _ := json.Marshal(p)
	d.Properties = datatypes.JSON(raw)
	d.Stage = p.Stage
	d.Amount = p.Amount

	aliases, _ := json.Marshal(p.AliasIDs)
	d.AliasIDs = datatypes.JSON(aliases)
}

// MarkSynced snapshots the live properties as the last CRM-confirmed state.
func (d *Deal) MarkSynced() {
	d.LastSynced = append(datatypes.JSON(nil), d.Properties...)
}

func (d *Deal) Aliases() []string {
	var ids []string
	if len(d.AliasIDs) > 0 {
		_ = json.Unmarshal(d.AliasIDs, &ids)
	}
	return ids
}

func (d *Deal) HasActivity() bool {
	return d.LastEngagement != ""
}

func (d *Deal) IsDuplicate() bool {
	return d.DuplicateOf != 0
}

// Change records one property transition in a before/after diff.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff computes the changed-field map between two property bags. This is the
// explicit snapshot-and-diff replacement for write-interception style dirty
// tracking: plain comparison over the JSON field set.
func Diff(before, after Properties) map[string]Change {
	b := fieldMap(before)
	a := fieldMap(after)

	changed := make(map[string]Change)
	for key, beforeVal := range b {
		afterVal, ok := a[key]
		if !ok {
			changed[key] = Change{Before: beforeVal, After: nil}
			continue
		}
		if !reflect.DeepEqual(beforeVal, afterVal) {
			changed[key] = Change{Before: beforeVal, After: afterVal}
		}
	}
	for key, afterVal := range a {
		if _, ok := b[key]; !ok {
			changed[key] = Change{Before: nil, After: afterVal}
		}
	}
	return changed
}

func fieldMap(p Properties) map[string]any {
	raw, _ := json.Marshal(p)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}
