// Package index owns the four identity-keyed entity tables and the merge
// policy that reconciles per-translation-unit observations into one
// canonical entry per entity.
package index

import (
	"sync"
	"sync/atomic"

	"github.com/symdex/symdex/internal/types"
)

// Table is one identity-keyed entity table. Merges lock the table for the
// duration of a single read-modify-write, which is the atomicity the merge
// policy requires; reads during the merge phase take the same lock.
type Table[E any] struct {
	mu      sync.Mutex
	entries map[types.IdentityKey]*E
}

// NewTable creates an empty table
func NewTable[E any]() *Table[E] {
	return &Table[E]{entries: make(map[types.IdentityKey]*E)}
}

// Get returns the entry for key, if present.
func (t *Table[E]) Get(key types.IdentityKey) (*E, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e, ok
}

// Len returns the number of entries in the table.
func (t *Table[E]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// upsert atomically looks up key, creating the entry with create if absent,
// then applies update to it under the table lock.
func (t *Table[E]) upsert(key types.IdentityKey, create func() *E, update func(*E) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		e = create()
		t.entries[key] = e
	}
	return update(e)
}

// Entries exposes the underlying map for the single-threaded finalize phase,
// which has exclusive ownership of the tables once all merging is done. It
// must not be called while workers are still merging.
func (t *Table[E]) Entries() map[types.IdentityKey]*E {
	return t.entries
}

// Index is the single shared mutable resource of an indexing run: four
// identity-keyed tables, created empty at run start and frozen once
// finalization completes.
type Index struct {
	Records    *Table[types.RecordEntry]
	Functions  *Table[types.FunctionEntry]
	Enums      *Table[types.EnumEntry]
	Namespaces *Table[types.NamespaceEntry]

	frozen atomic.Bool
}

// New creates an empty index
func New() *Index {
	return &Index{
		Records:    NewTable[types.RecordEntry](),
		Functions:  NewTable[types.FunctionEntry](),
		Enums:      NewTable[types.EnumEntry](),
		Namespaces: NewTable[types.NamespaceEntry](),
	}
}

// Freeze marks the index read-only. Subsequent merges fail.
func (idx *Index) Freeze() {
	idx.frozen.Store(true)
}

// Frozen reports whether finalization has completed.
func (idx *Index) Frozen() bool {
	return idx.frozen.Load()
}
