package license

import (
	"strings"
	"time"
)

// HostingType is the deployment model a license was sold for. Licenses are
// only ever grouped within one (product, hosting) combination.
type HostingType string

var (
	Cloud      HostingType = "cloud"
	Server     HostingType = "server"
	DataCenter HostingType = "datacenter"
)

func (t HostingType) String() string {
	switch t {
	case Cloud, Server, DataCenter:
		return string(t)
	default:
		return ""
	}
}

type Status string

var (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCancelled Status = "cancelled"
)

type Type string

var (
	TypeEvaluation    Type = "evaluation"
	TypeCommercial    Type = "commercial"
	TypeCommunity     Type = "community"
	TypeAcademic      Type = "academic"
	TypeOpenSource    Type = "open_source"
	TypeDemonstration Type = "demonstration"
	TypeInternal      Type = "internal"
)

// Evaluation reports whether the license type represents a trial-style grant
// rather than a sold license. Open-source grants are treated like evaluations
// for deal purposes: they carry no revenue.
func (t Type) Evaluation() bool {
	return t == TypeEvaluation || t == TypeOpenSource
}

type SaleType string

var (
	SaleNew     SaleType = "New"
	SaleRenewal SaleType = "Renewal"
	SaleUpgrade SaleType = "Upgrade"
	SaleRefund  SaleType = "Refund"
)

// AliasIDs carries the up-to-three historically introduced identifier schemes
// for one marketplace record. Upstream validation guarantees every non-blank
// alias resolves to the same record wherever it appears, so any one of them
// can stand for the record.
type AliasIDs struct {
	EntitlementID   string `json:"entitlement_id"`
	HostLicenseID   string `json:"host_license_id"`
	LegacyLicenseID string `json:"legacy_license_id"`
}

// All returns the non-blank identifiers, oldest scheme last.
func (a AliasIDs) All() []string {
	ids := make([]string, 0, 3)
	for _, id := range []string{a.EntitlementID, a.HostLicenseID, a.LegacyLicenseID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a AliasIDs) Empty() bool {
	return a.EntitlementID == "" && a.HostLicenseID == "" && a.LegacyLicenseID == ""
}

// Primary returns the newest non-blank identifier.
func (a AliasIDs) Primary() string {
	all := a.All()
	if len(all) == 0 {
		return ""
	}
	return all[0]
}

// Overlaps reports whether any identifier is shared with other.
func (a AliasIDs) Overlaps(other AliasIDs) bool {
	mine := a.All()
	theirs := other.All()
	for _, id := range mine {
		for _, o := range theirs {
			if id == o {
				return true
			}
		}
	}
	return false
}

// Contact is a CRM-resolved person reference. ID is the resolved contact
// entity identifier; identity comparisons go through ID, never email text.
type Contact struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Domain returns the lowercased email domain, or "" when the email is blank
// or malformed.
func (c *Contact) Domain() string {
	if c == nil {
		return ""
	}
	at := strings.LastIndex(c.Email, "@")
	if at < 0 || at == len(c.Email)-1 {
		return ""
	}
	return strings.ToLower(c.Email[at+1:])
}

// LocalPart returns the lowercased part before the @, or "".
func (c *Contact) LocalPart() string {
	if c == nil {
		return ""
	}
	at := strings.LastIndex(c.Email, "@")
	if at <= 0 {
		return ""
	}
	return strings.ToLower(c.Email[:at])
}

// License is one marketplace license record with contacts already resolved.
// EvaluatedFromID / EvaluatedToID are alias identifiers of chain neighbours;
// the Index resolves them to records.
type License struct {
	IDs              AliasIDs    `json:"ids"`
	ProductKey       string      `json:"product_key"`
	Hosting          HostingType `json:"hosting"`
	Status           Status      `json:"status"`
	Type             Type        `json:"type"`
	MaintenanceStart time.Time   `json:"maintenance_start"`
	MaintenanceEnd   time.Time   `json:"maintenance_end"`
	TierRaw          string      `json:"tier_raw"`
	CompanyName      string      `json:"company_name"`
	Country          string      `json:"country"`
	TechContact      *Contact    `json:"tech_contact"`
	BillingContact   *Contact    `json:"billing_contact"`
	PartnerDomain    string      `json:"partner_domain"`
	EvaluatedFromID  string      `json:"evaluated_from_id"`
	EvaluatedToID    string      `json:"evaluated_to_id"`

	Transactions []*Transaction `json:"transactions"`
}

// Tier returns the parsed numeric seat tier.
func (l *License) Tier() int {
	return ParseTier(l.TierRaw)
}

func (l *License) Active() bool {
	return l.Status == StatusActive
}

// HasNewSale reports whether any transaction on this license is a New sale,
// in which case the transaction supersedes the license record itself.
func (l *License) HasNewSale() bool {
	for _, tx := range l.Transactions {
		if tx.SaleType == SaleNew {
			return true
		}
	}
	return false
}

// Transaction is one marketplace sale event tied to a license.
type Transaction struct {
	IDs          AliasIDs  `json:"ids"`
	SaleType     SaleType  `json:"sale_type"`
	SaleDate     time.Time `json:"sale_date"`
	VendorAmount float64   `json:"vendor_amount"`
	TierRaw      string    `json:"tier_raw"`

	// Refunded is set when refund reconciliation fully negates this sale.
	Refunded bool `json:"refunded,omitempty"`
}

func (t *Transaction) Tier() int {
	return ParseTier(t.TierRaw)
}

// SameDay reports whether two instants fall on the same UTC calendar day.
// Marketplace dates are day-granular; refund matching works at day level.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
