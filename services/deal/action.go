package deal

// Action is what the engine decided to do about one timeline event. The
// orchestrator applies actions through the deal store; the engine itself
// never writes.
type Action interface {
	isAction()
}

// Create adds a new deal with a fully populated property bag.
type Create struct {
	Deal *Deal
}

// Update carries the target deal with its live properties already merged,
// plus the field-level diff against the last-synced state.
type Update struct {
	Deal    *Deal
	Changed map[string]Change
}

// Noop records that an event was considered and deliberately left alone.
type Noop struct {
	Deal   *Deal // nil when no deal was involved
	Reason NoopReason
}

func (Create) isAction() {}
func (Update) isAction() {}
func (Noop) isAction()   {}

type NoopReason string

var (
	// ReasonUpToDate: merged properties equal the last-synced state, so a
	// repeated run has nothing to push.
	ReasonUpToDate NoopReason = "properties-up-to-date"

	// ReasonIgnored* route ignorable business conditions to the
	// ignored-amount ledger instead of creating deals.
	ReasonIgnoredArchived     NoopReason = "ignored-archived-app"
	ReasonIgnoredMassProvider NoopReason = "ignored-mass-provider"
	ReasonIgnoredPartner      NoopReason = "ignored-partner"

	// ReasonEventRecorded: an ignorable event matched an existing deal; the
	// match is recorded so the event is not reprocessed, but no property
	// changes.
	ReasonEventRecorded NoopReason = "event-recorded"

	// ReasonNoMatchingDeal: a refund resolved transactions no deal owns.
	ReasonNoMatchingDeal NoopReason = "no-matching-deal"
)
