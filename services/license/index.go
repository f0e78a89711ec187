package license

import (
	"fmt"

	"dealsync/pkg/errutil"
)

// Index resolves alias identifiers to license records. Chained references
// (evaluated-from / evaluated-to) are stored as identifiers on the records
// and looked up here, so records never hold direct cyclic links.
type Index struct {
	byAlias map[string]*License
}

// NewIndex builds the alias lookup for one run's licenses. Two different
// records claiming the same alias identifier means upstream verification was
// violated; that is rejected here rather than producing silent mismatches.
func NewIndex(licenses []*License) (*Index, error) {
	byAlias := make(map[string]*License)
	for _, l := range licenses {
		for _, id := range l.IDs.All() {
			if existing, ok := byAlias[id]; ok && existing != l {
				return nil, errutil.ValidationFailed(
					fmt.Sprintf("alias identifier %q claimed by two different licenses", id))
			}
			byAlias[id] = l
		}
	}
	return &Index{byAlias: byAlias}, nil
}

// ByAlias returns the license owning the identifier, or nil.
func (i *Index) ByAlias(id string) *License {
	if id == "" {
		return nil
	}
	return i.byAlias[id]
}

// EvaluatedFrom resolves the license l was evaluated from, or nil.
func (i *Index) EvaluatedFrom(l *License) *License {
	return i.ByAlias(l.EvaluatedFromID)
}
