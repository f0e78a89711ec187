package matching

import (
	"strings"
	"time"

	"dealsync/services/license"
)

// Projection is the normalized view of a license the matcher scores against.
// All text is lowercased and trimmed; the company domain is blanked when it
// belongs to a mass-mail provider since it then carries no company identity.
type Projection struct {
	License *license.License

	Start time.Time
	End   time.Time

	TechContactID    string
	BillingContactID string

	Address        string
	CompanyName    string
	CompanyDomain  string
	EmailLocalPart string
	ContactName    string
	Phone          string
}

func Project(l *license.License, massProviders map[string]bool) *Projection {
	p := &Projection{
		License:     l,
		Start:       l.MaintenanceStart,
		End:         l.MaintenanceEnd,
		CompanyName: normalize(l.CompanyName),
	}

	if tech := l.TechContact; tech != nil {
		p.TechContactID = tech.ID
		p.EmailLocalPart = tech.LocalPart()
		p.ContactName = normalize(tech.Name)
		p.Address = normalize(tech.Address)
		p.Phone = normalize(tech.Phone)

		if domain := tech.Domain(); !massProviders[domain] {
			p.CompanyDomain = domain
		}
	}
	if billing := l.BillingContact; billing != nil {
		p.BillingContactID = billing.ID
	}

	return p
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
