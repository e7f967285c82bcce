package index

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/symdex/symdex/internal/types"
)

// Snapshot is the frozen, deterministically ordered view of an index that
// the rendering layer consumes. Every slice is sorted by qualified name
// (identity key as tie-break), so repeated runs over unchanged input
// serialize byte-identically.
type Snapshot struct {
	ProjectName    string                  `json:"project_name,omitempty"`
	ProjectVersion string                  `json:"project_version,omitempty"`
	Records        []*types.RecordEntry    `json:"records"`
	Functions      []*types.FunctionEntry  `json:"functions"`
	Enums          []*types.EnumEntry      `json:"enums"`
	Namespaces     []*types.NamespaceEntry `json:"namespaces"`
}

// Snapshot produces the ordered view. The index must be frozen first; the
// returned slices alias the table entries and must be treated as read-only.
func (idx *Index) Snapshot(projectName, projectVersion string) (*Snapshot, error) {
	if !idx.frozen.Load() {
		return nil, fmt.Errorf("snapshot requested before index was frozen")
	}
	return &Snapshot{
		ProjectName:    projectName,
		ProjectVersion: projectVersion,
		Records:        sortedEntries(idx.Records, func(e *types.RecordEntry) *types.SymbolEntry { return &e.SymbolEntry }),
		Functions:      sortedEntries(idx.Functions, func(e *types.FunctionEntry) *types.SymbolEntry { return &e.SymbolEntry }),
		Enums:          sortedEntries(idx.Enums, func(e *types.EnumEntry) *types.SymbolEntry { return &e.SymbolEntry }),
		Namespaces:     sortedEntries(idx.Namespaces, func(e *types.NamespaceEntry) *types.SymbolEntry { return &e.SymbolEntry }),
	}, nil
}

// WriteJSON serializes the snapshot with stable formatting.
func (s *Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode index snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot previously written with WriteJSON.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode index snapshot: %w", err)
	}
	return &s, nil
}

func sortedEntries[E any](t *Table[E], core func(*E) *types.SymbolEntry) []*E {
	out := make([]*E, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := core(out[i]), core(out[j])
		if a.QualifiedName != b.QualifiedName {
			return a.QualifiedName < b.QualifiedName
		}
		return a.Key < b.Key
	})
	return out
}
