package timeline

import (
	"time"

	"dealsync/services/license"
)

type Kind string

var (
	KindEval     Kind = "eval"
	KindPurchase Kind = "purchase"
	KindRenewal  Kind = "renewal"
	KindUpgrade  Kind = "upgrade"
	KindRefund   Kind = "refund"
)

// IgnoreTag classifies events the deal pipeline should not act on. The empty
// tag means the event is actionable.
type IgnoreTag string

var (
	TagNone                   IgnoreTag = ""
	TagPartnerOnly            IgnoreTag = "partner-only"
	TagMassProviderOnly       IgnoreTag = "mass-provider-only"
	TagPartnerAndMassProvider IgnoreTag = "partner-and-mass-provider"
	TagArchivedApp            IgnoreTag = "archived-app"
)

// Ignorable reports whether the tag short-circuits deal generation: the
// event is tallied on the ignored-amount ledger instead of producing a deal.
func (t IgnoreTag) Ignorable() bool {
	return t != TagNone
}

// Event is one deal-relevant step in a customer timeline.
type Event struct {
	Kind     Kind
	Licenses []*license.License

	// Transaction backs purchase/renewal/upgrade events born from a sale,
	// and carries the refund sale for refund events. Nil for license-only
	// purchases and evals.
	Transaction *license.Transaction

	// Refunded lists the sales a refund event fully negated.
	Refunded []*license.Transaction

	Tag IgnoreTag
}

// Date is the close-relevant instant: the sale date for transaction-backed
// events, otherwise the first license's maintenance start.
func (e *Event) Date() time.Time {
	if e.Transaction != nil {
		return e.Transaction.SaleDate
	}
	if len(e.Licenses) > 0 {
		return e.Licenses[0].MaintenanceStart
	}
	return time.Time{}
}

// Amount is the vendor revenue the event represents.
func (e *Event) Amount() float64 {
	if e.Transaction == nil {
		return 0
	}
	return e.Transaction.VendorAmount
}

// AliasIDs is the union of every alias identifier referenced by the event's
// licenses and backing transaction, deduplicated, in encounter order.
func (e *Event) AliasIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(aliases license.AliasIDs) {
		for _, id := range aliases.All() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	for _, l := range e.Licenses {
		add(l.IDs)
	}
	if e.Transaction != nil {
		add(e.Transaction.IDs)
	}
	for _, tx := range e.Refunded {
		add(tx.IDs)
	}
	return ids
}

// Record is one dated row of a flattened customer timeline: either a license
// itself or one of its transactions.
type Record struct {
	Date        time.Time
	License     *license.License
	Transaction *license.Transaction

	// Resolved holds the sales a refund transaction exactly negated. Only
	// set on refund records produced by reconciliation.
	Resolved []*license.Transaction
}

// evaluation reports whether the record is an evaluation-type license record.
// Evaluation records win same-date ordering ties.
func (r Record) evaluation() bool {
	return r.Transaction == nil && r.License.Type.Evaluation()
}
