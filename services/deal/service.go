package deal

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"dealsync/pkg/errutil"
	"dealsync/services/license"
	"dealsync/services/matching"
	"dealsync/services/timeline"
)

// DefaultNameTemplate builds the CRM deal name when none is configured.
const DefaultNameTemplate = "{company} - {product} ({platform})"

// Generator turns one customer timeline's events into CRM actions against a
// snapshot of existing deals. It is deterministic and side-effect-free given
// identical (group, index) input.
type Generator struct {
	node         *snowflake.Node
	catalog      *license.Catalog
	nameTemplate string
}

func NewGenerator(node *snowflake.Node, catalog *license.Catalog, nameTemplate string) *Generator {
	if nameTemplate == "" {
		nameTemplate = DefaultNameTemplate
	}
	return &Generator{node: node, catalog: catalog, nameTemplate: nameTemplate}
}

// Result is everything one group's generation produced: the ordered actions,
// the ignored-amount ledger keyed by reason, and deals newly marked as
// duplicates (to be persisted by the caller).
type Result struct {
	Actions    []Action
	Ignored    map[timeline.IgnoreTag]float64
	Duplicates []*Deal
}

// Generate walks the event list in order and decides, per event, whether to
// create a deal, update an existing one, or do nothing.
func (g *Generator) Generate(set *matching.RelatedLicenseSet, events []*timeline.Event, idx *Index) (*Result, error) {
	result := &Result{Ignored: make(map[timeline.IgnoreTag]float64)}

	for _, e := range events {
		// The ignore short-circuit covers every event kind, refunds
		// included: a tagged group never takes a property action, even
		// against a deal created before its domain was configured ignorable.
		if e.Tag.Ignorable() {
			canonical, err := g.resolveCanonical(idx.Lookup(lookupAliases(e)), result)
			if err != nil {
				return nil, err
			}
			if canonical == nil {
				result.Ignored[e.Tag] += e.Amount()
				result.Actions = append(result.Actions, Noop{Reason: ignoreReason(e.Tag)})
			} else {
				// Record the event against the deal so it is not
				// reprocessed, but take no property action.
				result.Actions = append(result.Actions, Noop{Deal: canonical, Reason: ReasonEventRecorded})
			}
			continue
		}

		if e.Kind == timeline.KindRefund {
			if err := g.generateRefund(e, idx, result); err != nil {
				return nil, err
			}
			continue
		}

		canonical, err := g.resolveCanonical(idx.Lookup(resolutionAliases(e)), result)
		if err != nil {
			return nil, err
		}

		props, err := g.properties(e, set)
		if err != nil {
			return nil, err
		}

		if canonical == nil {
			d := &Deal{ID: g.node.Generate()}
			d.SetProperties(props)
			result.Actions = append(result.Actions, Create{Deal: d})
			continue
		}

		merged := mergeProperties(canonical.Current(), props)
		changed := Diff(canonical.Synced(), merged)
		if len(changed) == 0 {
			result.Actions = append(result.Actions, Noop{Deal: canonical, Reason: ReasonUpToDate})
			continue
		}
		canonical.SetProperties(merged)
		result.Actions = append(result.Actions, Update{Deal: canonical, Changed: changed})
	}

	return result, nil
}

// generateRefund closes, with amount forced to zero, every deal owning any
// alias of the transactions the refund resolved.
func (g *Generator) generateRefund(e *timeline.Event, idx *Index, result *Result) error {
	matched := idx.Lookup(lookupAliases(e))
	if len(matched) == 0 {
		result.Actions = append(result.Actions, Noop{Reason: ReasonNoMatchingDeal})
		return nil
	}

	for _, d := range matched {
		merged := d.Current()
		merged.Stage = StageClosedLost
		merged.Amount = 0

		changed := Diff(d.Synced(), merged)
		if len(changed) == 0 {
			result.Actions = append(result.Actions, Noop{Deal: d, Reason: ReasonUpToDate})
			continue
		}
		d.SetProperties(merged)
		result.Actions = append(result.Actions, Update{Deal: d, Changed: changed})
	}
	return nil
}

// resolveCanonical reduces a candidate set to one canonical deal, marking
// every other candidate as its duplicate. Candidates showing CRM activity
// are "important"; an important deal always wins over unimportant ones.
// Ties between important deals fall back to encounter order, which is only
// as stable as the input order (a genuine ambiguity, so it is logged).
func (g *Generator) resolveCanonical(candidates []*Deal, result *Result) (*Deal, error) {
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}

	var important []*Deal
	for _, d := range candidates {
		if d.HasActivity() {
			important = append(important, d)
		}
	}

	var canonical *Deal
	switch {
	case len(important) == 0:
		for _, d := range candidates {
			if !d.IsDuplicate() {
				canonical = d
				break
			}
		}
	case len(important) == 1:
		canonical = important[0]
	default:
		canonical = important[0]
		zap.L().Warn("multiple deals with activity match the same identifiers, keeping the first",
			zap.Int64("canonical_id", int64(canonical.ID)),
			zap.Int("important", len(important)),
			zap.Int("candidates", len(candidates)),
		)
	}

	if canonical == nil || canonical.IsDuplicate() {
		// A deal already recorded as someone's duplicate must never become
		// canonical again; this indicates a broken invariant, not bad input.
		return nil, errutil.Internal(fmt.Sprintf(
			"duplicate resolution selected an already-duplicate deal as canonical among %d candidates",
			len(candidates)))
	}

	for _, d := range candidates {
		if d == canonical || d.DuplicateOf == canonical.ID {
			continue
		}
		d.DuplicateOf = canonical.ID
		result.Duplicates = append(result.Duplicates, d)
	}

	return canonical, nil
}

// properties computes the full property bag for a non-refund event.
func (g *Generator) properties(e *timeline.Event, set *matching.RelatedLicenseSet) (Properties, error) {
	lead := e.Licenses[len(e.Licenses)-1]

	platform, err := g.catalog.Platform(lead.ProductKey)
	if err != nil {
		return Properties{}, err
	}

	props := Properties{
		Stage:         g.stage(e),
		Amount:        e.Amount(),
		Deployment:    lead.Hosting.String(),
		ProductKey:    lead.ProductKey,
		Country:       lead.Country,
		PartnerDomain: latestPartnerDomain(set),
		AliasIDs:      resolutionAliases(e),
		Name:          g.dealName(lead, platform),
	}

	if e.Transaction != nil {
		props.CloseDate = formatDate(e.Transaction.SaleDate)
		props.SaleType = string(e.Transaction.SaleType)
	} else {
		props.CloseDate = formatDate(lead.MaintenanceStart)
	}

	var end time.Time
	for _, l := range e.Licenses {
		if tier := l.Tier(); tier > props.Tier {
			props.Tier = tier
		}
		if l.MaintenanceEnd.After(end) {
			end = l.MaintenanceEnd
		}
	}
	if e.Transaction != nil {
		if tier := e.Transaction.Tier(); tier > props.Tier {
			props.Tier = tier
		}
	}
	if !end.IsZero() {
		props.MaintenanceEnd = formatDate(end)
	}

	return props, nil
}

func (g *Generator) stage(e *timeline.Event) Stage {
	switch e.Kind {
	case timeline.KindEval:
		for _, l := range e.Licenses {
			if l.Active() {
				return StageEval
			}
		}
		return StageClosedLost
	case timeline.KindPurchase:
		if e.Transaction != nil && e.Transaction.Refunded {
			return StageClosedLost
		}
		return StageClosedWon
	default:
		return StageClosedWon
	}
}

func (g *Generator) dealName(lead *license.License, platform string) string {
	r := strings.NewReplacer(
		"{company}", lead.CompanyName,
		"{product}", lead.ProductKey,
		"{platform}", platform,
		"{hosting}", lead.Hosting.String(),
	)
	return strings.TrimSpace(r.Replace(g.nameTemplate))
}

// mergeProperties lays next over current. The tier only ever grows: an
// existing deal's higher seat tier survives a smaller new record.
func mergeProperties(current, next Properties) Properties {
	merged := next
	if current.Tier > merged.Tier {
		merged.Tier = current.Tier
	}
	if merged.Country == "" {
		merged.Country = current.Country
	}
	if merged.Name == "" {
		merged.Name = current.Name
	}
	return merged
}

// lookupAliases picks the identifiers that locate a candidate deal for any
// event kind: refund events resolve by the sales they negated, everything
// else by resolutionAliases.
func lookupAliases(e *timeline.Event) []string {
	if e.Kind == timeline.KindRefund {
		var aliases []string
		for _, tx := range e.Refunded {
			aliases = append(aliases, tx.IDs.All()...)
		}
		return aliases
	}
	return resolutionAliases(e)
}

// resolutionAliases picks the identifiers an event resolves deals by: the
// backing transaction's when there is one (sale identifiers are the most
// specific), otherwise the union of the event's license identifiers.
func resolutionAliases(e *timeline.Event) []string {
	if e.Transaction != nil && e.Kind != timeline.KindRefund {
		return e.Transaction.IDs.All()
	}

	seen := make(map[string]bool)
	var ids []string
	for _, l := range e.Licenses {
		for _, id := range l.IDs.All() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func ignoreReason(tag timeline.IgnoreTag) NoopReason {
	switch tag {
	case timeline.TagArchivedApp:
		return ReasonIgnoredArchived
	case timeline.TagMassProviderOnly:
		return ReasonIgnoredMassProvider
	default:
		return ReasonIgnoredPartner
	}
}

// latestPartnerDomain is the most recent record's partner-contact domain
// among all records in the group, or "".
func latestPartnerDomain(set *matching.RelatedLicenseSet) string {
	for i := len(set.Licenses) - 1; i >= 0; i-- {
		if d := set.Licenses[i].PartnerDomain; d != "" {
			return strings.ToLower(d)
		}
	}
	return ""
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
