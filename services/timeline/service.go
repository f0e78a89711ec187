package timeline

import (
	"sort"

	"go.uber.org/zap"

	"dealsync/services/license"
	"dealsync/services/matching"
)

// Generator turns one RelatedLicenseSet into its chronologically ordered,
// refund-reconciled list of deal-relevant events.
type Generator struct {
	catalog        *license.Catalog
	partnerDomains map[string]bool
	massProviders  map[string]bool
}

func NewGenerator(catalog *license.Catalog, partnerDomains, massProviders map[string]bool) *Generator {
	return &Generator{
		catalog:        catalog,
		partnerDomains: partnerDomains,
		massProviders:  massProviders,
	}
}

// Events produces the ordered event list for one customer timeline.
func (g *Generator) Events(set *matching.RelatedLicenseSet) []*Event {
	records := g.SortedRecords(set)
	events := interpretAsEvents(records)
	events = normalize(events)

	tag := g.groupTag(set)
	for _, e := range events {
		e.Tag = tag
	}

	return events
}

// SortedRecords flattens each license plus its reconciled transactions into
// one dated list. A license whose transactions include a New sale is omitted:
// the transaction supersedes the license record. Ties on date order
// evaluation records first, whichever side of the comparison they are on.
func (g *Generator) SortedRecords(set *matching.RelatedLicenseSet) []Record {
	var records []Record
	for _, l := range set.Licenses {
		remaining, refunds := reconcileRefunds(l)

		if !l.HasNewSale() {
			records = append(records, Record{Date: l.MaintenanceStart, License: l})
		}
		for _, tx := range remaining {
			if tx.SaleType == license.SaleRefund {
				// Unresolved refund: stays in the transaction list but
				// produces no event. Matching on a near date instead of the
				// exact day is an open product question.
				continue
			}
			records = append(records, Record{Date: tx.SaleDate, License: l, Transaction: tx})
		}
		records = append(records, refunds...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		if records[i].evaluation() != records[j].evaluation() {
			return records[i].evaluation()
		}
		return false
	})

	return records
}

// reconcileRefunds resolves each refund transaction against same-day sales,
// in encounter order. An exact negation removes both and yields a refund
// record; a larger same-day sale absorbs the refund as a partial (netted in
// place, no event); anything else leaves the refund unresolved.
func reconcileRefunds(l *license.License) ([]*license.Transaction, []Record) {
	txns := append([]*license.Transaction(nil), l.Transactions...)

	byDate := append([]*license.Transaction(nil), txns...)
	sort.SliceStable(byDate, func(i, j int) bool {
		return byDate[i].SaleDate.Before(byDate[j].SaleDate)
	})

	removed := make(map[*license.Transaction]bool)
	var refunds []Record

	for _, refund := range txns {
		if refund.SaleType != license.SaleRefund || removed[refund] {
			continue
		}
		refundAbs := -refund.VendorAmount

		var exact *license.Transaction
		for _, cand := range byDate {
			if removed[cand] || cand.SaleType == license.SaleRefund {
				continue
			}
			if license.SameDay(cand.SaleDate, refund.SaleDate) && cand.VendorAmount == refundAbs {
				exact = cand
				break
			}
		}
		if exact != nil {
			removed[refund] = true
			removed[exact] = true
			exact.Refunded = true
			refunds = append(refunds, Record{
				Date:        refund.SaleDate,
				License:     l,
				Transaction: refund,
				Resolved:    []*license.Transaction{exact},
			})
			continue
		}

		var partial *license.Transaction
		for _, cand := range byDate {
			if removed[cand] || cand.SaleType == license.SaleRefund {
				continue
			}
			if license.SameDay(cand.SaleDate, refund.SaleDate) && cand.VendorAmount > refundAbs {
				partial = cand
				break
			}
		}
		if partial != nil {
			partial.VendorAmount -= refundAbs
			removed[refund] = true
			zap.L().Debug("partial refund netted into sale",
				zap.String("license", l.IDs.Primary()),
				zap.Float64("refund", refundAbs),
				zap.Float64("sale_remaining", partial.VendorAmount),
			)
		}
		// Neither: leave the refund unresolved and un-emitted.
	}

	remaining := make([]*license.Transaction, 0, len(txns))
	for _, tx := range txns {
		if !removed[tx] {
			remaining = append(remaining, tx)
		}
	}
	return remaining, refunds
}

func interpretAsEvents(records []Record) []*Event {
	events := make([]*Event, 0, len(records))
	for _, r := range records {
		switch {
		case r.Resolved != nil:
			events = append(events, &Event{
				Kind:        KindRefund,
				Licenses:    []*license.License{r.License},
				Transaction: r.Transaction,
				Refunded:    r.Resolved,
			})
		case r.Transaction == nil:
			kind := KindPurchase
			if r.License.Type.Evaluation() {
				kind = KindEval
			}
			events = append(events, &Event{
				Kind:     kind,
				Licenses: []*license.License{r.License},
			})
		case r.Transaction.SaleType == license.SaleNew:
			events = append(events, &Event{
				Kind:        KindPurchase,
				Licenses:    []*license.License{r.License},
				Transaction: r.Transaction,
			})
		case r.Transaction.SaleType == license.SaleRenewal:
			events = append(events, &Event{
				Kind:        KindRenewal,
				Licenses:    []*license.License{r.License},
				Transaction: r.Transaction,
			})
		case r.Transaction.SaleType == license.SaleUpgrade:
			events = append(events, &Event{
				Kind:        KindUpgrade,
				Licenses:    []*license.License{r.License},
				Transaction: r.Transaction,
			})
		}
	}
	return events
}

// normalize merges every eval event into the next purchase event in the list,
// concatenating license lists. A trailing run of evals with no purchase after
// it collapses into a single eval at the position of the first.
func normalize(events []*Event) []*Event {
	lastPurchase := -1
	for i, e := range events {
		if e.Kind == KindPurchase {
			lastPurchase = i
		}
	}

	out := make([]*Event, 0, len(events))
	var carried []*license.License
	var collapsed *Event

	for i, e := range events {
		switch {
		case e.Kind == KindEval && i < lastPurchase:
			carried = append(carried, e.Licenses...)
		case e.Kind == KindEval:
			if collapsed == nil {
				collapsed = e
				out = append(out, e)
			} else {
				collapsed.Licenses = append(collapsed.Licenses, e.Licenses...)
			}
		case e.Kind == KindPurchase:
			if len(carried) > 0 {
				e.Licenses = append(append([]*license.License(nil), carried...), e.Licenses...)
				carried = nil
			}
			out = append(out, e)
		default:
			out = append(out, e)
		}
	}

	return out
}

// groupTag computes the event-level ignore classification, once per group,
// from the set of distinct technical-contact domains involved.
func (g *Generator) groupTag(set *matching.RelatedLicenseSet) IgnoreTag {
	if len(set.Licenses) > 0 && g.catalog.Archived(set.Licenses[0].ProductKey) {
		return TagArchivedApp
	}

	domains := make(map[string]bool)
	for _, l := range set.Licenses {
		if d := l.TechContact.Domain(); d != "" {
			domains[d] = true
		}
	}
	if len(domains) == 0 {
		return TagNone
	}

	hasPartner, hasMass := false, false
	for d := range domains {
		switch {
		case g.partnerDomains[d]:
			hasPartner = true
		case g.massProviders[d]:
			hasMass = true
		default:
			return TagNone
		}
	}

	switch {
	case hasPartner && hasMass:
		return TagPartnerAndMassProvider
	case hasPartner:
		return TagPartnerOnly
	default:
		return TagMassProviderOnly
	}
}
