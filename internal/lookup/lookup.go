// Package lookup answers name queries against a frozen index snapshot:
// exact matches first, then fuzzy candidates ranked by Jaro-Winkler
// similarity, for the `symdex lookup` command.
package lookup

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/symdex/symdex/internal/index"
	"github.com/symdex/symdex/internal/types"
)

// Match is one lookup result.
type Match struct {
	Kind          types.SymbolKind
	QualifiedName string
	Location      types.SourceLocation
	Doc           string
	Score         float64
	Exact         bool
}

// Matcher queries one snapshot.
type Matcher struct {
	entries   []candidate
	threshold float64
	limit     int
}

type candidate struct {
	kind      types.SymbolKind
	core      *types.SymbolEntry
	lowerName string
}

// NewMatcher indexes the snapshot's entries for querying. threshold is the
// minimum fuzzy similarity (0..1) a non-exact match needs; limit caps the
// result count.
func NewMatcher(s *index.Snapshot, threshold float64, limit int) *Matcher {
	m := &Matcher{threshold: threshold, limit: limit}
	for _, e := range s.Records {
		m.add(types.KindRecord, &e.SymbolEntry)
	}
	for _, e := range s.Functions {
		m.add(types.KindFunction, &e.SymbolEntry)
	}
	for _, e := range s.Enums {
		m.add(types.KindEnum, &e.SymbolEntry)
	}
	for _, e := range s.Namespaces {
		m.add(types.KindNamespace, &e.SymbolEntry)
	}
	return m
}

func (m *Matcher) add(kind types.SymbolKind, core *types.SymbolEntry) {
	m.entries = append(m.entries, candidate{
		kind:      kind,
		core:      core,
		lowerName: strings.ToLower(core.Name),
	})
}

// Find returns matches for query, best first. An entry matches exactly when
// the query equals its name or qualified name (case-insensitive); otherwise
// its score is the Jaro-Winkler similarity of the query to its name.
func (m *Matcher) Find(query string) []Match {
	lowerQuery := strings.ToLower(query)

	var out []Match
	for _, c := range m.entries {
		match := Match{
			Kind:          c.kind,
			QualifiedName: c.core.QualifiedName,
			Location:      c.core.Location,
			Doc:           c.core.Doc,
		}
		if lowerQuery == c.lowerName || lowerQuery == strings.ToLower(c.core.QualifiedName) {
			match.Exact = true
			match.Score = 1.0
			out = append(out, match)
			continue
		}
		match.Score = similarity(lowerQuery, c.lowerName)
		if match.Score >= m.threshold {
			out = append(out, match)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Exact != out[j].Exact {
			return out[i].Exact
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].QualifiedName < out[j].QualifiedName
	})
	if m.limit > 0 && len(out) > m.limit {
		out = out[:m.limit]
	}
	return out
}

// similarity is the Jaro-Winkler similarity in 0..1; identical strings score
// 1, errors score 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}
	return float64(score)
}
