package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symdex/symdex/internal/index"
	"github.com/symdex/symdex/internal/types"
)

func testSnapshot() *index.Snapshot {
	entry := func(name, qualified string) types.SymbolEntry {
		return types.SymbolEntry{
			Name:          name,
			QualifiedName: qualified,
			Location:      types.SourceLocation{File: "lib.h", Line: 1, Column: 1},
		}
	}
	return &index.Snapshot{
		Records: []*types.RecordEntry{
			{SymbolEntry: entry("HttpServer", "net::HttpServer")},
			{SymbolEntry: entry("HttpsServer", "net::HttpsServer")},
		},
		Functions: []*types.FunctionEntry{
			{SymbolEntry: entry("serve", "net::HttpServer::serve")},
			{SymbolEntry: entry("parse", "json::parse")},
		},
		Enums: []*types.EnumEntry{
			{SymbolEntry: entry("Status", "net::Status")},
		},
		Namespaces: []*types.NamespaceEntry{
			{SymbolEntry: entry("net", "net")},
		},
	}
}

func TestExactMatchByName(t *testing.T) {
	m := NewMatcher(testSnapshot(), 0.9, 10)

	matches := m.Find("HttpServer")
	require.NotEmpty(t, matches)
	assert.True(t, matches[0].Exact)
	assert.Equal(t, "net::HttpServer", matches[0].QualifiedName)
	assert.Equal(t, 1.0, matches[0].Score)
}

func TestExactMatchByQualifiedName(t *testing.T) {
	m := NewMatcher(testSnapshot(), 0.9, 10)

	matches := m.Find("json::parse")
	require.NotEmpty(t, matches)
	assert.True(t, matches[0].Exact)
	assert.Equal(t, types.KindFunction, matches[0].Kind)
}

func TestExactMatchIsCaseInsensitive(t *testing.T) {
	m := NewMatcher(testSnapshot(), 0.9, 10)

	matches := m.Find("httpserver")
	require.NotEmpty(t, matches)
	assert.True(t, matches[0].Exact)
	assert.Equal(t, "net::HttpServer", matches[0].QualifiedName)
}

func TestFuzzyMatchOnMisspelling(t *testing.T) {
	m := NewMatcher(testSnapshot(), 0.82, 10)

	matches := m.Find("HtpServer")
	require.NotEmpty(t, matches, "a one-character typo should still match")
	assert.False(t, matches[0].Exact)
	assert.Equal(t, "net::HttpServer", matches[0].QualifiedName)
	assert.Greater(t, matches[0].Score, 0.82)
}

func TestExactBeatsFuzzy(t *testing.T) {
	// "HttpServer" is exact for one entry and a close fuzzy match for
	// "HttpsServer"; the exact hit must rank first.
	m := NewMatcher(testSnapshot(), 0.5, 10)

	matches := m.Find("HttpServer")
	require.GreaterOrEqual(t, len(matches), 2)
	assert.True(t, matches[0].Exact)
	assert.Equal(t, "net::HttpServer", matches[0].QualifiedName)
	assert.False(t, matches[1].Exact)
}

func TestThresholdFiltersWeakMatches(t *testing.T) {
	m := NewMatcher(testSnapshot(), 0.99, 10)
	assert.Empty(t, m.Find("zzzzz"))
}

func TestLimitCapsResults(t *testing.T) {
	m := NewMatcher(testSnapshot(), 0.0, 2)
	matches := m.Find("server")
	assert.LessOrEqual(t, len(matches), 2)
}

func TestNoMatches(t *testing.T) {
	m := NewMatcher(&index.Snapshot{}, 0.82, 10)
	assert.Empty(t, m.Find("anything"))
}
