// Package extract turns free-text clinical notes into structured clinical
// entities. The built-in extractor is pure regex and always succeeds;
// callers may layer a richer external extractor on top and merge the two
// outputs.
package extract

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/gyeh/dermbill/internal/model"
)

// ErrExtractionUnavailable is returned by external extractors that cannot
// reach their backend. The regex extractor never returns it.
var ErrExtractionUnavailable = errors.New("entity extraction unavailable")

// Extractor produces clinical entities from raw note text.
type Extractor interface {
	Extract(ctx context.Context, note string) ([]model.ClinicalEntity, error)
}

// Merge combines a primary and a secondary entity sequence, dropping
// secondary entities that duplicate a primary one. Two entities are
// duplicates when their kind and lowercased attributes match exactly.
// Measurements are never deduplicated; repeated observations are real.
func Merge(primary, secondary []model.ClinicalEntity) []model.ClinicalEntity {
	out := make([]model.ClinicalEntity, 0, len(primary)+len(secondary))
	seen := map[string]bool{}
	for _, e := range primary {
		if e.Kind != model.EntityMeasurement {
			seen[fingerprint(e)] = true
		}
		out = append(out, e)
	}
	for _, e := range secondary {
		if e.Kind != model.EntityMeasurement {
			fp := fingerprint(e)
			if seen[fp] {
				continue
			}
			seen[fp] = true
		}
		out = append(out, e)
	}
	return out
}

func fingerprint(e model.ClinicalEntity) string {
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(string(e.Kind))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ToLower(e.Attributes[k]))
	}
	return b.String()
}
