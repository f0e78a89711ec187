package deal

// Index answers "which existing deals own any of these alias identifiers".
// It is built once per run from the CRM-side deal snapshot and is read-only
// during generation.
type Index struct {
	byAlias map[string][]*Deal
}

func NewIndex(deals []*Deal) *Index {
	byAlias := make(map[string][]*Deal)
	for _, d := range deals {
		for _, id := range d.Aliases() {
			byAlias[id] = append(byAlias[id], d)
		}
	}
	return &Index{byAlias: byAlias}
}

// Lookup returns every deal owning any of the identifiers, deduplicated, in
// encounter order. Encounter order is what duplicate resolution falls back
// to, so it is preserved deliberately.
func (i *Index) Lookup(aliases []string) []*Deal {
	seen := make(map[*Deal]bool)
	var deals []*Deal
	for _, id := range aliases {
		for _, d := range i.byAlias[id] {
			if !seen[d] {
				seen[d] = true
				deals = append(deals, d)
			}
		}
	}
	return deals
}
