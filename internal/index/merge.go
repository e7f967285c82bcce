package index

import (
	"fmt"
	"sort"

	sderr "github.com/symdex/symdex/internal/errors"
	"github.com/symdex/symdex/internal/types"
)

// mergeFuncs dispatches a merge on the observation kind. A closed dispatch
// table instead of polymorphic visitors keeps the set of mergeable kinds
// explicit.
var mergeFuncs = map[types.SymbolKind]func(*Index, *types.Observation) error{
	types.KindFunction:  mergeFunction,
	types.KindRecord:    mergeRecord,
	types.KindEnum:      mergeEnum,
	types.KindNamespace: mergeNamespace,
}

// Merge folds one observation into the index. Inserting a fresh entry and
// updating an existing one go through the same field-by-field policy, so
// merging is idempotent and commutative: any arrival order of the same
// observations produces the same final entries. Safe for concurrent use.
func (idx *Index) Merge(obs *types.Observation) error {
	if idx.frozen.Load() {
		return fmt.Errorf("merge of %q into frozen index", obs.QualifiedName)
	}
	if obs.Key.IsZero() {
		return fmt.Errorf("observation of %q has no identity key", obs.QualifiedName)
	}
	fn, ok := mergeFuncs[obs.Kind]
	if !ok {
		return fmt.Errorf("observation of %q has unknown kind %d", obs.QualifiedName, int(obs.Kind))
	}
	return fn(idx, obs)
}

// mergeCore applies the kind-independent policy to the shared entry core.
// It returns true when the observation became the entry's canonical
// location, which tells the caller to adopt the observation's scalar
// payload fields as well.
//
// Policy, per field and never replacing a better value with a worse one:
//   - location: a definition beats any declaration; among equal definitional
//     status the smaller (file, line, column) wins. Ordering by content
//     rather than by arrival keeps the merge commutative under parallelism.
//   - doc comment: non-empty beats empty; definition-attached beats
//     declaration-attached; then the longer comment, then the
//     lexicographically smaller one.
func mergeCore(e *types.SymbolEntry, obs *types.Observation) (locWon bool, err error) {
	if e.Signature != obs.Signature {
		return false, &sderr.CollisionError{
			Key:               obs.Key,
			ExistingSignature: e.Signature,
			NewSignature:      obs.Signature,
		}
	}

	locWon = betterLocation(e, obs)
	if locWon {
		e.Location = obs.Location
		e.HasDefinition = e.HasDefinition || obs.IsDefinition
	}

	if betterDoc(e, obs) {
		e.Doc = obs.Doc
		e.DocFromDef = obs.IsDefinition
	}

	if e.Access == types.AccessNone {
		e.Access = obs.Access
	}
	if e.ParentKey.IsZero() {
		e.ParentKey = obs.ParentKey
	}
	return locWon, nil
}

func betterLocation(e *types.SymbolEntry, obs *types.Observation) bool {
	if !obs.Location.IsValid() {
		return false
	}
	if !e.Location.IsValid() {
		return true
	}
	if obs.IsDefinition != e.HasDefinition {
		return obs.IsDefinition
	}
	return obs.Location.Less(e.Location)
}

func betterDoc(e *types.SymbolEntry, obs *types.Observation) bool {
	if obs.Doc == "" {
		return false
	}
	if e.Doc == "" {
		return true
	}
	if obs.IsDefinition != e.DocFromDef {
		return obs.IsDefinition
	}
	if len(obs.Doc) != len(e.Doc) {
		return len(obs.Doc) > len(e.Doc)
	}
	return obs.Doc < e.Doc
}

// newCore builds a zero-valued entry core for a first observation; the
// shared policy in mergeCore then fills it exactly as it would an existing
// entry, so first-insert and update take the same code path.
func newCore(obs *types.Observation) types.SymbolEntry {
	return types.SymbolEntry{
		Key:           obs.Key,
		Signature:     obs.Signature,
		Name:          obs.Name,
		QualifiedName: obs.QualifiedName,
	}
}

func mergeFunction(idx *Index, obs *types.Observation) error {
	p := obs.Function
	if p == nil {
		return fmt.Errorf("function observation of %q has no payload", obs.QualifiedName)
	}
	return idx.Functions.upsert(obs.Key,
		func() *types.FunctionEntry {
			return &types.FunctionEntry{SymbolEntry: newCore(obs)}
		},
		func(e *types.FunctionEntry) error {
			_, err := mergeCore(&e.SymbolEntry, obs)
			if err != nil {
				return err
			}
			// Translation units may spell the same return type differently
			// (typedef vs underlying); the content tie-break keeps the merge
			// commutative.
			e.ReturnType = betterSpelling(e.ReturnType, p.ReturnType)
			e.Params = mergeParams(e.Params, p.Params)
			// The virtual/static keywords only appear on the in-class
			// declaration, so they union across observations.
			e.IsVirtual = e.IsVirtual || p.IsVirtual
			e.IsStatic = e.IsStatic || p.IsStatic
			e.IsRecordMember = e.IsRecordMember || p.IsRecordMember
			e.IsConst = p.IsConst
			e.RefQualifier = p.RefQualifier
			if len(p.TemplateParams) > 0 {
				e.TemplateParams = p.TemplateParams
			}
			return nil
		})
}

// mergeParams combines two parameter lists for the same function identity.
// The type lists are equal by construction (parameter types are part of the
// identity key), but names, default values and per-parameter docs may be
// present in one translation unit and absent in another, so each field
// merges symmetrically: non-empty beats empty, then longer, then
// lexicographically smaller. Symmetric per-field rules keep the merge
// commutative and idempotent.
func mergeParams(a, b []types.Param) []types.Param {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	if len(a) != len(b) {
		// A front-end defect; keep the longer list deterministically.
		if len(b) > len(a) {
			return b
		}
		return a
	}
	merged := make([]types.Param, len(a))
	copy(merged, a)
	for i := range merged {
		merged[i].Name = betterSpelling(merged[i].Name, b[i].Name)
		merged[i].DefaultValue = betterSpelling(merged[i].DefaultValue, b[i].DefaultValue)
		merged[i].Doc = betterSpelling(merged[i].Doc, b[i].Doc)
	}
	return merged
}

// betterSpelling picks one of two written spellings of the same fact in an
// order-independent way: non-empty beats empty, then the longer, then the
// lexicographically smaller. Used for every free-text scalar the identity key
// does not pin down (parameter names, return types, enum underlying types).
func betterSpelling(cur, candidate string) string {
	if candidate == "" {
		return cur
	}
	if cur == "" {
		return candidate
	}
	if len(candidate) != len(cur) {
		if len(candidate) > len(cur) {
			return candidate
		}
		return cur
	}
	if candidate < cur {
		return candidate
	}
	return cur
}

func mergeRecord(idx *Index, obs *types.Observation) error {
	p := obs.Record
	if p == nil {
		return fmt.Errorf("record observation of %q has no payload", obs.QualifiedName)
	}
	return idx.Records.upsert(obs.Key,
		func() *types.RecordEntry {
			return &types.RecordEntry{SymbolEntry: newCore(obs), RecordKind: p.RecordKind}
		},
		func(e *types.RecordEntry) error {
			locWon, err := mergeCore(&e.SymbolEntry, obs)
			if err != nil {
				return err
			}
			if locWon {
				e.RecordKind = p.RecordKind
			}
			// Base and member lists are only visible at the definition,
			// which not every translation unit includes: union them.
			e.BaseKeys = unionKeys(e.BaseKeys, p.BaseKeys)
			e.MemberKeys = unionKeys(e.MemberKeys, p.MemberKeys)
			if len(p.TemplateParams) > 0 {
				e.TemplateParams = p.TemplateParams
			}
			return nil
		})
}

func mergeEnum(idx *Index, obs *types.Observation) error {
	p := obs.Enum
	if p == nil {
		return fmt.Errorf("enum observation of %q has no payload", obs.QualifiedName)
	}
	return idx.Enums.upsert(obs.Key,
		func() *types.EnumEntry {
			return &types.EnumEntry{SymbolEntry: newCore(obs)}
		},
		func(e *types.EnumEntry) error {
			_, err := mergeCore(&e.SymbolEntry, obs)
			if err != nil {
				return err
			}
			e.IsScoped = e.IsScoped || p.IsScoped
			e.UnderlyingType = betterSpelling(e.UnderlyingType, p.UnderlyingType)
			e.Enumerators = unionEnumerators(e.Enumerators, p.Enumerators)
			return nil
		})
}

func mergeNamespace(idx *Index, obs *types.Observation) error {
	if obs.Namespace == nil {
		return fmt.Errorf("namespace observation of %q has no payload", obs.QualifiedName)
	}
	return idx.Namespaces.upsert(obs.Key,
		func() *types.NamespaceEntry {
			return &types.NamespaceEntry{SymbolEntry: newCore(obs)}
		},
		func(e *types.NamespaceEntry) error {
			_, err := mergeCore(&e.SymbolEntry, obs)
			return err
		})
}

// unionKeys merges two key sets into one sorted, deduplicated slice. Sorting
// by key value makes the union independent of arrival order; the finalizer
// re-orders key lists by qualified name for presentation.
func unionKeys(existing, incoming []types.IdentityKey) []types.IdentityKey {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[types.IdentityKey]struct{}, len(existing)+len(incoming))
	merged := make([]types.IdentityKey, 0, len(existing)+len(incoming))
	for _, set := range [2][]types.IdentityKey{existing, incoming} {
		for _, k := range set {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, k)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	return merged
}

// unionEnumerators merges enumerator lists keyed by enumerator name,
// preferring the richer of two observations of the same enumerator and
// ordering the result by source position so declaration order survives.
func unionEnumerators(existing, incoming []types.Enumerator) []types.Enumerator {
	if len(incoming) == 0 {
		return existing
	}
	byName := make(map[string]types.Enumerator, len(existing)+len(incoming))
	for _, m := range existing {
		byName[m.Name] = m
	}
	for _, m := range incoming {
		cur, ok := byName[m.Name]
		if !ok {
			byName[m.Name] = m
			continue
		}
		if cur.Value == "" {
			cur.Value = m.Value
		}
		if betterEnumeratorDoc(cur.Doc, m.Doc) {
			cur.Doc = m.Doc
		}
		if !cur.Location.IsValid() || m.Location.Less(cur.Location) {
			cur.Location = m.Location
		}
		byName[m.Name] = cur
	}
	merged := make([]types.Enumerator, 0, len(byName))
	for _, m := range byName {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Location != merged[j].Location {
			return merged[i].Location.Less(merged[j].Location)
		}
		return merged[i].Name < merged[j].Name
	})
	return merged
}

func betterEnumeratorDoc(cur, candidate string) bool {
	if candidate == "" {
		return false
	}
	if cur == "" {
		return true
	}
	if len(candidate) != len(cur) {
		return len(candidate) > len(cur)
	}
	return candidate < cur
}
