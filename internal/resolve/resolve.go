// Package resolve implements the single-threaded finalize pass that runs
// once all translation units have been merged: it attaches parent/child
// back-links, base/derived links and override edges, orders every key list
// deterministically, and freezes the index.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/symdex/symdex/internal/index"
	"github.com/symdex/symdex/internal/types"
)

// Resolver owns the index tables for the duration of the finalize pass.
// No concurrent writers may exist while Run executes.
type Resolver struct {
	idx *index.Index

	// qualified name per key, across all four tables, for sorting
	names map[types.IdentityKey]string
}

// New creates a resolver for idx
func New(idx *index.Index) *Resolver {
	return &Resolver{idx: idx, names: make(map[types.IdentityKey]string)}
}

// Run resolves all cross-entity relationships and freezes the index.
func (r *Resolver) Run() error {
	if r.idx.Frozen() {
		return fmt.Errorf("resolve pass on already-frozen index")
	}

	r.collectNames()
	r.attachNamespaceChildren()
	r.attachRecordMembers()
	r.attachDerived()
	r.attachOverrides()
	r.sortKeyLists()

	r.idx.Freeze()
	return nil
}

func (r *Resolver) collectNames() {
	for k, e := range r.idx.Records.Entries() {
		r.names[k] = e.QualifiedName
	}
	for k, e := range r.idx.Functions.Entries() {
		r.names[k] = e.QualifiedName
	}
	for k, e := range r.idx.Enums.Entries() {
		r.names[k] = e.QualifiedName
	}
	for k, e := range r.idx.Namespaces.Entries() {
		r.names[k] = e.QualifiedName
	}
}

// attachNamespaceChildren builds each namespace's child lists from the
// ParentKey every entry carries.
func (r *Resolver) attachNamespaceChildren() {
	namespaces := r.idx.Namespaces.Entries()

	for k, e := range r.idx.Records.Entries() {
		if ns, ok := namespaces[e.ParentKey]; ok {
			ns.RecordKeys = append(ns.RecordKeys, k)
		}
	}
	for k, e := range r.idx.Functions.Entries() {
		if ns, ok := namespaces[e.ParentKey]; ok {
			ns.FunctionKeys = append(ns.FunctionKeys, k)
		}
	}
	for k, e := range r.idx.Enums.Entries() {
		if ns, ok := namespaces[e.ParentKey]; ok {
			ns.EnumKeys = append(ns.EnumKeys, k)
		}
	}
	for k, e := range r.idx.Namespaces.Entries() {
		if ns, ok := namespaces[e.ParentKey]; ok {
			ns.NamespaceKeys = append(ns.NamespaceKeys, k)
		}
	}
}

// attachRecordMembers attaches member functions to their enclosing record.
// The record's observed MemberKeys may be incomplete when only declarations
// were seen, so the function-side ParentKey is authoritative.
func (r *Resolver) attachRecordMembers() {
	records := r.idx.Records.Entries()
	seen := make(map[types.IdentityKey]map[types.IdentityKey]struct{})

	for _, rec := range records {
		set := make(map[types.IdentityKey]struct{}, len(rec.MemberKeys))
		for _, k := range rec.MemberKeys {
			set[k] = struct{}{}
		}
		seen[rec.Key] = set
	}

	for k, fn := range r.idx.Functions.Entries() {
		rec, ok := records[fn.ParentKey]
		if !ok {
			continue
		}
		if _, dup := seen[rec.Key][k]; !dup {
			rec.MemberKeys = append(rec.MemberKeys, k)
			seen[rec.Key][k] = struct{}{}
		}
		rec.MethodKeys = append(rec.MethodKeys, k)
	}
}

// attachDerived appends each record to the derived list of every base in its
// unioned base-key set.
func (r *Resolver) attachDerived() {
	records := r.idx.Records.Entries()
	for k, rec := range records {
		for _, baseKey := range rec.BaseKeys {
			if base, ok := records[baseKey]; ok {
				base.DerivedKeys = append(base.DerivedKeys, k)
			}
		}
	}
}

// attachOverrides links each member function to the virtual base-class
// members it overrides, walking the transitive base chain.
func (r *Resolver) attachOverrides() {
	records := r.idx.Records.Entries()
	functions := r.idx.Functions.Entries()

	// Method match keys per record, computed once.
	methodsByRecord := make(map[types.IdentityKey]map[string]types.IdentityKey, len(records))
	for k, rec := range records {
		methods := make(map[string]types.IdentityKey)
		for _, mk := range rec.MethodKeys {
			if fn, ok := functions[mk]; ok {
				methods[methodMatchKey(fn)] = mk
			}
		}
		methodsByRecord[k] = methods
	}

	for recKey, rec := range records {
		for _, mk := range rec.MethodKeys {
			fn, ok := functions[mk]
			if !ok {
				continue
			}
			match := methodMatchKey(fn)
			visited := map[types.IdentityKey]struct{}{recKey: {}}
			r.findOverridden(fn, match, rec.BaseKeys, visited)
		}
	}
}

// findOverridden walks the base chain looking for virtual methods with the
// same match key. visited guards against inheritance cycles from malformed
// observations.
func (r *Resolver) findOverridden(fn *types.FunctionEntry, match string, bases []types.IdentityKey, visited map[types.IdentityKey]struct{}) {
	records := r.idx.Records.Entries()
	functions := r.idx.Functions.Entries()

	for _, baseKey := range bases {
		if _, ok := visited[baseKey]; ok {
			continue
		}
		visited[baseKey] = struct{}{}

		base, ok := records[baseKey]
		if !ok {
			continue
		}
		for _, bmk := range base.MethodKeys {
			bm, ok := functions[bmk]
			if !ok || !bm.IsVirtual {
				continue
			}
			if methodMatchKey(bm) == match {
				fn.OverrideKeys = append(fn.OverrideKeys, bmk)
				bm.OverriddenByKeys = append(bm.OverriddenByKeys, fn.Key)
			}
		}
		r.findOverridden(fn, match, base.BaseKeys, visited)
	}
}

// methodMatchKey builds the comparison key for override matching: name,
// parameter type list, constness and ref-qualification. Return type is
// excluded (covariant returns still override).
func methodMatchKey(fn *types.FunctionEntry) string {
	var b strings.Builder
	b.WriteString(fn.Name)
	b.WriteByte('(')
	for i, p := range fn.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strings.Join(strings.Fields(p.Type), " "))
	}
	b.WriteByte(')')
	if fn.IsConst {
		b.WriteString(" const")
	}
	b.WriteString(fn.RefQualifier)
	return b.String()
}

// sortKeyLists orders every resolved key list by the qualified name of the
// target entry (key value as tie-break) so iteration is deterministic.
func (r *Resolver) sortKeyLists() {
	for _, e := range r.idx.Records.Entries() {
		r.sortKeys(e.BaseKeys)
		r.sortKeys(e.MemberKeys)
		r.sortKeys(e.MethodKeys)
		r.sortKeys(e.DerivedKeys)
	}
	for _, e := range r.idx.Functions.Entries() {
		r.sortKeys(e.OverrideKeys)
		r.sortKeys(e.OverriddenByKeys)
	}
	for _, e := range r.idx.Namespaces.Entries() {
		r.sortKeys(e.RecordKeys)
		r.sortKeys(e.FunctionKeys)
		r.sortKeys(e.EnumKeys)
		r.sortKeys(e.NamespaceKeys)
	}
}

func (r *Resolver) sortKeys(keys []types.IdentityKey) {
	sort.Slice(keys, func(i, j int) bool {
		ni, nj := r.names[keys[i]], r.names[keys[j]]
		if ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
}
