// Package identity computes stable, translation-unit-independent identity
// keys for symbol observations. Two observations of the same real-world
// entity must hash to the same key no matter which translation unit produced
// them; distinct entities (including overloads and same-named entities in
// different scopes) must not.
package identity

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/symdex/symdex/internal/types"
)

// Hash maps a canonical signature string to an IdentityKey. xxhash gives a
// well-distributed 64-bit value cheap enough to run once per observation.
func Hash(signature string) types.IdentityKey {
	return types.IdentityKey(xxhash.Sum64String(signature))
}

// FunctionSignature builds the canonical signature string for a function
// observation: qualified name, parameter type list, cv/ref qualification of
// the implicit object parameter, and template parameter list. Parameter
// names and default values never participate; they vary freely between
// declarations of the same function.
func FunctionSignature(qualifiedName string, p *types.FunctionPayload) string {
	var b strings.Builder
	b.WriteString("f:")
	b.WriteString(qualifiedName)
	if len(p.TemplateParams) > 0 {
		b.WriteByte('<')
		b.WriteString(strings.Join(p.TemplateParams, ","))
		b.WriteByte('>')
	}
	b.WriteByte('(')
	for i, param := range p.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(normalizeType(param.Type))
	}
	b.WriteByte(')')
	if p.IsConst {
		b.WriteString(" const")
	}
	if p.RefQualifier != "" {
		b.WriteString(p.RefQualifier)
	}
	return b.String()
}

// RecordSignature builds the canonical signature string for a record.
func RecordSignature(qualifiedName string, p *types.RecordPayload) string {
	sig := "r:" + qualifiedName
	if len(p.TemplateParams) > 0 {
		sig += "<" + strings.Join(p.TemplateParams, ",") + ">"
	}
	return sig
}

// EnumSignature builds the canonical signature string for an enum.
func EnumSignature(qualifiedName string) string {
	return "e:" + qualifiedName
}

// NamespaceSignature builds the canonical signature string for a namespace.
func NamespaceSignature(qualifiedName string) string {
	return "n:" + qualifiedName
}

// AnonymousSignature keys an unnamed entity (anonymous namespace, unnamed
// enum) off its enclosing scope plus source location. Such entities have no
// name that is stable across translation units, so they deliberately never
// merge across units.
func AnonymousSignature(kind types.SymbolKind, enclosingScope string, loc types.SourceLocation) string {
	return fmt.Sprintf("anon-%s:%s@%s", kind, enclosingScope, loc)
}

// Key computes the identity key for an observation whose Signature field is
// already populated, verifying the signature is non-empty first.
func Key(obs *types.Observation) (types.IdentityKey, error) {
	if obs.Signature == "" {
		return 0, fmt.Errorf("observation of %q has no canonical signature", obs.QualifiedName)
	}
	return Hash(obs.Signature), nil
}

// normalizeType canonicalizes the spelling of a parameter type so that
// whitespace and redundant qualifier placement differences between
// translation units do not split overload identities.
func normalizeType(t string) string {
	fields := strings.Fields(t)
	joined := strings.Join(fields, " ")
	// "const T" and "T const" spell the same type. Trailing const after a
	// pointer/reference declarator binds differently, so leave those alone.
	if rest, ok := strings.CutSuffix(joined, " const"); ok && !strings.ContainsAny(rest, "*&") {
		joined = "const " + rest
	}
	joined = strings.ReplaceAll(joined, " *", "*")
	joined = strings.ReplaceAll(joined, " &", "&")
	return joined
}
