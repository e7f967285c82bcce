package index

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sderr "github.com/symdex/symdex/internal/errors"
	"github.com/symdex/symdex/internal/identity"
	"github.com/symdex/symdex/internal/types"
)

// fnObs builds a function observation the way the front end would.
func fnObs(qualified string, def bool, loc types.SourceLocation, doc string) *types.Observation {
	payload := &types.FunctionPayload{ReturnType: "void"}
	sig := identity.FunctionSignature(qualified, payload)
	return &types.Observation{
		Kind:          types.KindFunction,
		Key:           identity.Hash(sig),
		Signature:     sig,
		Name:          qualified,
		QualifiedName: qualified,
		IsDefinition:  def,
		Location:      loc,
		Doc:           doc,
		Function:      payload,
	}
}

func enumObs(qualified string, def bool, loc types.SourceLocation, enumerators ...types.Enumerator) *types.Observation {
	sig := identity.EnumSignature(qualified)
	return &types.Observation{
		Kind:          types.KindEnum,
		Key:           identity.Hash(sig),
		Signature:     sig,
		Name:          qualified,
		QualifiedName: qualified,
		IsDefinition:  def,
		Location:      loc,
		Enum:          &types.EnumPayload{Enumerators: enumerators},
	}
}

func recObs(qualified string, def bool, loc types.SourceLocation, bases ...types.IdentityKey) *types.Observation {
	payload := &types.RecordPayload{RecordKind: types.RecordClass, BaseKeys: bases}
	sig := identity.RecordSignature(qualified, payload)
	return &types.Observation{
		Kind:          types.KindRecord,
		Key:           identity.Hash(sig),
		Signature:     sig,
		Name:          qualified,
		QualifiedName: qualified,
		IsDefinition:  def,
		Location:      loc,
		Record:        payload,
	}
}

func loc(file string, line int) types.SourceLocation {
	return types.SourceLocation{File: file, Line: line, Column: 1}
}

func TestMergeCreatesOneEntryPerIdentity(t *testing.T) {
	idx := New()

	// A declaration from one translation unit and a documented definition
	// from another collapse into exactly one entry.
	require.NoError(t, idx.Merge(fnObs("foo", false, loc("a.h", 3), "")))
	require.NoError(t, idx.Merge(fnObs("foo", true, loc("a.h", 10), "doc")))

	assert.Equal(t, 1, idx.Functions.Len())
	entry, ok := idx.Functions.Get(identity.Hash(identity.FunctionSignature("foo", &types.FunctionPayload{ReturnType: "void"})))
	require.True(t, ok)
	assert.True(t, entry.HasDefinition)
	assert.Equal(t, loc("a.h", 10), entry.Location)
	assert.Equal(t, "doc", entry.Doc)
}

func TestMergeIdempotent(t *testing.T) {
	obs := fnObs("ns::f", true, loc("f.cpp", 5), "does f")

	once := New()
	require.NoError(t, once.Merge(obs))

	twice := New()
	require.NoError(t, twice.Merge(obs))
	require.NoError(t, twice.Merge(obs))

	a, _ := once.Functions.Get(obs.Key)
	b, _ := twice.Functions.Get(obs.Key)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, twice.Functions.Len())
}

func TestMergeCommutative(t *testing.T) {
	observations := []*types.Observation{
		fnObs("g", false, loc("g.h", 2), "brief"),
		fnObs("g", true, loc("g.cpp", 20), ""),
		fnObs("g", false, loc("other.h", 2), "a much longer comment about g"),
	}

	forward := New()
	for _, o := range observations {
		require.NoError(t, forward.Merge(o))
	}
	backward := New()
	for i := len(observations) - 1; i >= 0; i-- {
		require.NoError(t, backward.Merge(observations[i]))
	}

	a, _ := forward.Functions.Get(observations[0].Key)
	b, _ := backward.Functions.Get(observations[0].Key)
	assert.Equal(t, a, b)
}

func TestMergeCommutativeUnderShuffling(t *testing.T) {
	observations := []*types.Observation{
		fnObs("h", false, loc("h.h", 1), ""),
		fnObs("h", false, loc("a.h", 9), "short"),
		fnObs("h", true, loc("h.cpp", 30), "definition doc"),
		fnObs("h", true, loc("h.cpp", 30), "definition doc"),
	}

	reference := New()
	for _, o := range observations {
		require.NoError(t, reference.Merge(o))
	}
	want, _ := reference.Functions.Get(observations[0].Key)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]*types.Observation{}, observations...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		idx := New()
		for _, o := range shuffled {
			require.NoError(t, idx.Merge(o))
		}
		got, _ := idx.Functions.Get(observations[0].Key)
		assert.Equal(t, want, got, "trial %d diverged", trial)
	}
}

func TestDefinitionLocationPrecedence(t *testing.T) {
	decl := fnObs("p", false, loc("p.h", 1), "")
	def := fnObs("p", true, loc("p.cpp", 40), "")

	for name, order := range map[string][]*types.Observation{
		"decl then def": {decl, def},
		"def then decl": {def, decl},
	} {
		t.Run(name, func(t *testing.T) {
			idx := New()
			for _, o := range order {
				require.NoError(t, idx.Merge(o))
			}
			entry, _ := idx.Functions.Get(decl.Key)
			assert.Equal(t, def.Location, entry.Location)
			assert.True(t, entry.HasDefinition)
		})
	}
}

func TestCommentPrecedence(t *testing.T) {
	empty := fnObs("q", true, loc("q.cpp", 8), "")
	documented := fnObs("q", false, loc("q.h", 2), "the docs")

	for name, order := range map[string][]*types.Observation{
		"empty first":      {empty, documented},
		"documented first": {documented, empty},
	} {
		t.Run(name, func(t *testing.T) {
			idx := New()
			for _, o := range order {
				require.NoError(t, idx.Merge(o))
			}
			entry, _ := idx.Functions.Get(empty.Key)
			assert.Equal(t, "the docs", entry.Doc)
		})
	}
}

func TestDefinitionCommentBeatsDeclarationComment(t *testing.T) {
	declDoc := fnObs("r", false, loc("r.h", 2), "header doc")
	defDoc := fnObs("r", true, loc("r.cpp", 9), "impl doc")

	idx := New()
	require.NoError(t, idx.Merge(declDoc))
	require.NoError(t, idx.Merge(defDoc))

	entry, _ := idx.Functions.Get(declDoc.Key)
	assert.Equal(t, "impl doc", entry.Doc)
}

func TestUnderlyingTypeSpellingCommutative(t *testing.T) {
	// Two translation units legally spell the same underlying type
	// differently through a typedef; arrival order must not decide which
	// spelling the entry keeps.
	typedefed := enumObs("Flags", true, loc("flags.h", 3))
	typedefed.Enum.UnderlyingType = "std::uint8_t"
	raw := enumObs("Flags", true, loc("flags.h", 3))
	raw.Enum.UnderlyingType = "uint8_t"

	forward := New()
	require.NoError(t, forward.Merge(typedefed))
	require.NoError(t, forward.Merge(raw))

	backward := New()
	require.NoError(t, backward.Merge(raw))
	require.NoError(t, backward.Merge(typedefed))

	a, _ := forward.Enums.Get(typedefed.Key)
	b, _ := backward.Enums.Get(typedefed.Key)
	assert.Equal(t, a, b)
	assert.Equal(t, "std::uint8_t", a.UnderlyingType)
}

func TestReturnTypeSpellingCommutative(t *testing.T) {
	// The definition carries no return type spelling (think a macro-hidden
	// one); two declarations disagree on it. Every order must converge.
	def := fnObs("widen", true, loc("w.cpp", 12), "")
	def.Function.ReturnType = ""
	short := fnObs("widen", false, loc("a.h", 2), "")
	short.Function.ReturnType = "int32_t"
	long := fnObs("widen", false, loc("b.h", 2), "")
	long.Function.ReturnType = "std::int32_t"

	observations := []*types.Observation{def, short, long}
	reference := New()
	for _, o := range observations {
		require.NoError(t, reference.Merge(o))
	}
	want, _ := reference.Functions.Get(def.Key)
	assert.Equal(t, "std::int32_t", want.ReturnType)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		shuffled := append([]*types.Observation{}, observations...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		idx := New()
		for _, o := range shuffled {
			require.NoError(t, idx.Merge(o))
		}
		got, _ := idx.Functions.Get(def.Key)
		assert.Equal(t, want, got, "trial %d diverged", trial)
	}
}

func TestEnumMergeCommutativeUnderShuffling(t *testing.T) {
	fwd := enumObs("Level", false, loc("fwd.h", 1))
	fwd.Enum.UnderlyingType = "uint8_t"
	def := enumObs("Level", true, loc("level.h", 4),
		types.Enumerator{Name: "Low", Location: loc("level.h", 5)},
		types.Enumerator{Name: "High", Value: "9", Location: loc("level.h", 6)},
	)
	def.Enum.IsScoped = true
	def.Enum.UnderlyingType = "std::uint8_t"
	partial := enumObs("Level", true, loc("level.h", 4),
		types.Enumerator{Name: "High", Doc: "the loud one", Location: loc("level.h", 6)},
	)

	observations := []*types.Observation{fwd, def, partial}
	reference := New()
	for _, o := range observations {
		require.NoError(t, reference.Merge(o))
	}
	want, _ := reference.Enums.Get(fwd.Key)

	rng := rand.New(rand.NewSource(13))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]*types.Observation{}, observations...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		idx := New()
		for _, o := range shuffled {
			require.NoError(t, idx.Merge(o))
		}
		got, _ := idx.Enums.Get(fwd.Key)
		assert.Equal(t, want, got, "trial %d diverged", trial)
	}
}

func TestEnumeratorUnion(t *testing.T) {
	// One TU sees the forward declaration only; another sees the full
	// definition. A third re-observes the definition with docs.
	idx := New()
	require.NoError(t, idx.Merge(enumObs("Color", false, loc("fwd.h", 1))))
	require.NoError(t, idx.Merge(enumObs("Color", true, loc("color.h", 4),
		types.Enumerator{Name: "Red", Location: loc("color.h", 5)},
		types.Enumerator{Name: "Green", Location: loc("color.h", 6)},
	)))
	require.NoError(t, idx.Merge(enumObs("Color", true, loc("color.h", 4),
		types.Enumerator{Name: "Green", Doc: "the green one", Location: loc("color.h", 6)},
	)))

	entry, ok := idx.Enums.Get(identity.Hash(identity.EnumSignature("Color")))
	require.True(t, ok)
	require.Len(t, entry.Enumerators, 2)
	assert.Equal(t, "Red", entry.Enumerators[0].Name)
	assert.Equal(t, "Green", entry.Enumerators[1].Name)
	assert.Equal(t, "the green one", entry.Enumerators[1].Doc)
}

func TestBaseKeyUnion(t *testing.T) {
	baseA := identity.Hash(identity.RecordSignature("A", &types.RecordPayload{}))
	baseB := identity.Hash(identity.RecordSignature("B", &types.RecordPayload{}))

	idx := New()
	require.NoError(t, idx.Merge(recObs("D", false, loc("d.h", 1))))
	require.NoError(t, idx.Merge(recObs("D", true, loc("d.h", 3), baseA)))
	require.NoError(t, idx.Merge(recObs("D", true, loc("d.h", 3), baseA, baseB)))

	entry, _ := idx.Records.Get(recObs("D", false, loc("d.h", 1)).Key)
	assert.ElementsMatch(t, []types.IdentityKey{baseA, baseB}, entry.BaseKeys)
}

func TestIdentityCollisionIsFatal(t *testing.T) {
	a := fnObs("collide", true, loc("a.cpp", 1), "")
	b := fnObs("other", true, loc("b.cpp", 1), "")
	b.Key = a.Key // two structurally different entities, one key

	idx := New()
	require.NoError(t, idx.Merge(a))

	err := idx.Merge(b)
	require.Error(t, err)
	var collision *sderr.CollisionError
	assert.ErrorAs(t, err, &collision)
}

func TestMergeIntoFrozenIndexFails(t *testing.T) {
	idx := New()
	idx.Freeze()
	assert.Error(t, idx.Merge(fnObs("late", true, loc("z.cpp", 1), "")))
}

func TestMergeRejectsMalformedObservations(t *testing.T) {
	idx := New()

	missingKey := fnObs("x", true, loc("x.cpp", 1), "")
	missingKey.Key = 0
	assert.Error(t, idx.Merge(missingKey))

	missingPayload := fnObs("y", true, loc("y.cpp", 1), "")
	missingPayload.Function = nil
	assert.Error(t, idx.Merge(missingPayload))

	unknownKind := fnObs("z", true, loc("z.cpp", 1), "")
	unknownKind.Kind = types.KindUnknown
	assert.Error(t, idx.Merge(unknownKind))
}

func TestSnapshotRequiresFrozenIndex(t *testing.T) {
	idx := New()
	_, err := idx.Snapshot("proj", "1.0")
	assert.Error(t, err)

	idx.Freeze()
	s, err := idx.Snapshot("proj", "1.0")
	require.NoError(t, err)
	assert.NotNil(t, s)
}
