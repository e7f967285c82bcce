// Package frontend implements a syntactic C++ observation source on top of
// tree-sitter. It parses one translation unit's main file and emits one
// SymbolObservation per interesting declaration (function, record, enum,
// namespace). It performs no preprocessing and no semantic type resolution;
// qualified names come from lexical nesting and from the written qualifier
// on out-of-line definitions.
package frontend

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"github.com/symdex/symdex/internal/identity"
	"github.com/symdex/symdex/internal/plan"
	"github.com/symdex/symdex/internal/types"
)

// Options configures the observation source.
type Options struct {
	// IgnorePrivateMembers drops observations for private class members.
	IgnorePrivateMembers bool
}

// Source is a concurrency-safe ObservationSource: each Observe call builds
// its own parser and extractor state, so distinct files can be processed in
// parallel.
type Source struct {
	opts Options
}

// NewSource creates a tree-sitter C++ observation source.
func NewSource(opts Options) *Source {
	return &Source{opts: opts}
}

// Observe parses one work item's main file and extracts its observations.
// The compiler argument list travels with the work item for front ends that
// preprocess; this syntactic front end does not consume it.
func (s *Source) Observe(ctx context.Context, item plan.WorkItem) ([]*types.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(item.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation unit: %w", err)
	}
	return s.ObserveSource(item.File, content)
}

// ObserveSource extracts observations from in-memory source text.
func (s *Source) ObserveSource(file string, content []byte) ([]*types.Observation, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	_ = parser.SetLanguage(sitter.NewLanguage(tree_sitter_cpp.Language()))

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", file)
	}
	defer tree.Close()

	ext := &extractor{
		file:          file,
		content:       content,
		ignorePrivate: s.opts.IgnorePrivateMembers,
		knownRecords:  make(map[string]recordInfo),
		knownSpaces:   make(map[string]types.IdentityKey),
	}
	ext.walkChildren(tree.RootNode(), scope{})
	return ext.observations, nil
}

// recordInfo remembers a record seen earlier in this translation unit so
// that out-of-line definitions and base-class clauses can resolve against
// it.
type recordInfo struct {
	key       types.IdentityKey
	signature string
}

// scope is the lexical context a node is extracted in.
type scope struct {
	qualified string            // enclosing qualified name, "" at file scope
	parentKey types.IdentityKey // key of the enclosing namespace/record entry
	inRecord  bool
	access    types.Access // current member access inside a record body
	template  []string     // template parameters from a wrapping template_declaration
}

func (sc scope) qualify(name string) string {
	if sc.qualified == "" {
		return name
	}
	return sc.qualified + "::" + name
}

type extractor struct {
	file          string
	content       []byte
	ignorePrivate bool
	observations  []*types.Observation
	knownRecords  map[string]recordInfo
	knownSpaces   map[string]types.IdentityKey
}

func (ex *extractor) emit(obs *types.Observation) {
	ex.observations = append(ex.observations, obs)
}

// walkChildren dispatches every child of node on its kind. Unknown kinds
// recurse so declarations survive inside linkage specs, preprocessor
// conditionals and similar wrappers.
func (ex *extractor) walkChildren(node *sitter.Node, sc scope) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "namespace_definition":
			ex.extractNamespace(child, sc)
		case "template_declaration":
			ex.extractTemplate(child, sc)
		case "class_specifier", "struct_specifier", "union_specifier":
			ex.extractRecord(child, sc)
		case "enum_specifier":
			ex.extractEnum(child, sc)
		case "function_definition":
			ex.extractFunction(child, sc, true)
		case "declaration", "field_declaration":
			if decl := findFunctionDeclarator(child); decl != nil {
				ex.extractFunction(child, sc, false)
			} else {
				// Bare record/enum declarations live inside a declaration
				// node ("class Foo;").
				ex.walkChildren(child, sc)
			}
		case "linkage_specification", "declaration_list",
			"preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
			ex.walkChildren(child, sc)
		}
	}
}

// extractTemplate unwraps a template_declaration, passing its parameter
// names down to the templated entity.
func (ex *extractor) extractTemplate(node *sitter.Node, sc scope) {
	params := templateParamNames(node.ChildByFieldName("parameters"), ex.content)
	inner := sc
	inner.template = params

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "class_specifier", "struct_specifier", "union_specifier":
			ex.extractRecord(child, inner)
		case "function_definition":
			ex.extractFunction(child, inner, true)
		case "declaration", "field_declaration":
			if findFunctionDeclarator(child) != nil {
				ex.extractFunction(child, inner, false)
			} else {
				ex.walkChildren(child, inner)
			}
		}
	}
}

func (ex *extractor) extractNamespace(node *sitter.Node, sc scope) {
	loc := nodeLocation(node, ex.file)
	nameNode := node.ChildByFieldName("name")

	var qualified, name, signature string
	if nameNode == nil {
		// Anonymous namespaces have no name that is stable across
		// translation units; key them per location so they never merge.
		name = "(anonymous namespace)"
		qualified = sc.qualify(name)
		signature = identity.AnonymousSignature(types.KindNamespace, sc.qualified, loc)
	} else {
		// A nested_namespace_specifier ("namespace a::b::c") qualifies in
		// one step.
		name = nodeText(nameNode, ex.content)
		qualified = sc.qualify(name)
		signature = identity.NamespaceSignature(qualified)
	}
	key := identity.Hash(signature)
	ex.knownSpaces[qualified] = key

	ex.emit(&types.Observation{
		Kind:          types.KindNamespace,
		Key:           key,
		Signature:     signature,
		Name:          name,
		QualifiedName: qualified,
		IsDefinition:  true,
		Location:      loc,
		Doc:           ex.docComment(node),
		ParentKey:     sc.parentKey,
		Namespace:     &types.NamespacePayload{},
	})

	if body := node.ChildByFieldName("body"); body != nil {
		ex.walkChildren(body, scope{qualified: qualified, parentKey: key})
	}
}

func (ex *extractor) extractRecord(node *sitter.Node, sc scope) {
	if ex.ignorePrivate && sc.inRecord && sc.access == types.AccessPrivate {
		return
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return // anonymous structs inside typedefs are not indexed
	}
	body := node.ChildByFieldName("body")

	name := nodeText(nameNode, ex.content)
	qualified := sc.qualify(name)
	loc := nodeLocation(node, ex.file)

	payload := &types.RecordPayload{
		RecordKind:     recordKindOf(node.Kind()),
		TemplateParams: sc.template,
	}
	signature := identity.RecordSignature(qualified, payload)
	key := identity.Hash(signature)
	ex.knownRecords[qualified] = recordInfo{key: key, signature: signature}

	if body != nil {
		payload.BaseKeys = ex.extractBases(node, sc)
	}

	obs := &types.Observation{
		Kind:          types.KindRecord,
		Key:           key,
		Signature:     signature,
		Name:          name,
		QualifiedName: qualified,
		IsDefinition:  body != nil,
		Location:      loc,
		Doc:           ex.docComment(node),
		Access:        sc.access,
		ParentKey:     sc.parentKey,
		Record:        payload,
	}

	if body != nil {
		inner := scope{
			qualified: qualified,
			parentKey: key,
			inRecord:  true,
			access:    defaultAccess(payload.RecordKind),
		}
		payload.MemberKeys = ex.walkRecordBody(body, inner)
	}
	ex.emit(obs)
}

// walkRecordBody walks a field_declaration_list tracking the current access
// specifier and returns the identity keys of the member entities observed.
func (ex *extractor) walkRecordBody(body *sitter.Node, sc scope) []types.IdentityKey {
	var members []types.IdentityKey
	before := len(ex.observations)

	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "access_specifier":
			sc.access = accessOf(nodeText(child, ex.content))
		case "function_definition":
			ex.extractFunction(child, sc, true)
		case "field_declaration", "declaration":
			if findFunctionDeclarator(child) != nil {
				ex.extractFunction(child, sc, false)
			} else {
				ex.walkChildren(child, sc)
			}
		case "class_specifier", "struct_specifier", "union_specifier":
			ex.extractRecord(child, sc)
		case "enum_specifier":
			ex.extractEnum(child, sc)
		case "template_declaration":
			ex.extractTemplate(child, sc)
		}
	}

	for _, obs := range ex.observations[before:] {
		if obs.ParentKey == sc.parentKey {
			members = append(members, obs.Key)
		}
	}
	return members
}

func (ex *extractor) extractEnum(node *sitter.Node, sc scope) {
	if ex.ignorePrivate && sc.inRecord && sc.access == types.AccessPrivate {
		return
	}
	loc := nodeLocation(node, ex.file)
	nameNode := node.ChildByFieldName("name")
	body := node.ChildByFieldName("body")
	if nameNode == nil && body == nil {
		return
	}

	var name, qualified, signature string
	if nameNode == nil {
		name = "(unnamed enum)"
		qualified = sc.qualify(name)
		signature = identity.AnonymousSignature(types.KindEnum, sc.qualified, loc)
	} else {
		name = nodeText(nameNode, ex.content)
		qualified = sc.qualify(name)
		signature = identity.EnumSignature(qualified)
	}

	payload := &types.EnumPayload{
		IsScoped: hasChildOfKind(node, "class") || hasChildOfKind(node, "struct"),
	}
	if baseNode := node.ChildByFieldName("base"); baseNode != nil {
		payload.UnderlyingType = nodeText(baseNode, ex.content)
	}
	if body != nil {
		payload.Enumerators = ex.extractEnumerators(body)
	}

	ex.emit(&types.Observation{
		Kind:          types.KindEnum,
		Key:           identity.Hash(signature),
		Signature:     signature,
		Name:          name,
		QualifiedName: qualified,
		IsDefinition:  body != nil,
		Location:      loc,
		Doc:           ex.docComment(node),
		Access:        sc.access,
		ParentKey:     sc.parentKey,
		Enum:          payload,
	})
}

func (ex *extractor) extractEnumerators(body *sitter.Node) []types.Enumerator {
	var out []types.Enumerator
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil || child.Kind() != "enumerator" {
			continue
		}
		m := types.Enumerator{
			Name:     nodeText(child.ChildByFieldName("name"), ex.content),
			Location: nodeLocation(child, ex.file),
			Doc:      ex.docComment(child),
		}
		if valueNode := child.ChildByFieldName("value"); valueNode != nil {
			m.Value = nodeText(valueNode, ex.content)
		}
		out = append(out, m)
	}
	return out
}

func (ex *extractor) extractFunction(node *sitter.Node, sc scope, isDefinition bool) {
	declarator := findFunctionDeclarator(node)
	if declarator == nil {
		return
	}
	nameNode := declarator.ChildByFieldName("declarator")
	if nameNode == nil {
		return
	}

	written := nodeText(nameNode, ex.content)
	name := written
	if idx := strings.LastIndex(written, "::"); idx >= 0 {
		name = written[idx+2:]
	}
	qualified := sc.qualify(written)

	parentKey := sc.parentKey
	isMember := sc.inRecord
	access := sc.access
	if !sc.inRecord && strings.Contains(written, "::") {
		// Out-of-line definition: resolve the written qualifier against
		// records and namespaces already seen in this translation unit.
		parentName := qualified[:strings.LastIndex(qualified, "::")]
		if rec, ok := ex.knownRecords[parentName]; ok {
			parentKey = rec.key
			isMember = true
		} else if nsKey, ok := ex.knownSpaces[parentName]; ok {
			parentKey = nsKey
		} else {
			// Unseen qualifier; a method definition is the common case.
			parentKey = identity.Hash(identity.RecordSignature(parentName, &types.RecordPayload{}))
			isMember = true
		}
	}

	if ex.ignorePrivate && access == types.AccessPrivate {
		return
	}

	payload := &types.FunctionPayload{
		ReturnType:     ex.returnType(node, declarator),
		Params:         ex.extractParams(declarator.ChildByFieldName("parameters")),
		IsVirtual:      hasSpecifier(node, ex.content, "virtual"),
		IsStatic:       hasSpecifier(node, ex.content, "static"),
		IsConst:        declaratorHasQualifier(declarator, ex.content, "const"),
		RefQualifier:   refQualifierOf(declarator, ex.content),
		TemplateParams: sc.template,
		IsRecordMember: isMember,
	}

	signature := identity.FunctionSignature(qualified, payload)
	ex.emit(&types.Observation{
		Kind:          types.KindFunction,
		Key:           identity.Hash(signature),
		Signature:     signature,
		Name:          name,
		QualifiedName: qualified,
		IsDefinition:  isDefinition,
		Location:      nodeLocation(node, ex.file),
		Doc:           ex.docComment(node),
		Access:        access,
		ParentKey:     parentKey,
		Function:      payload,
	})
}

// extractBases resolves the base_class_clause of a record definition into
// identity keys, qualifying unresolved names against the enclosing scope.
func (ex *extractor) extractBases(node *sitter.Node, sc scope) []types.IdentityKey {
	clause := findChildOfKind(node, "base_class_clause")
	if clause == nil {
		return nil
	}
	var keys []types.IdentityKey
	for i := uint(0); i < clause.ChildCount(); i++ {
		child := clause.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "type_identifier", "qualified_identifier", "template_type":
			baseName := nodeText(child, ex.content)
			keys = append(keys, ex.resolveRecordKey(baseName, sc))
		}
	}
	return keys
}

// resolveRecordKey finds the key for a type name written in source, trying
// each enclosing scope from innermost outward, then the name as written.
func (ex *extractor) resolveRecordKey(name string, sc scope) types.IdentityKey {
	for prefix := sc.qualified; prefix != ""; {
		candidate := prefix + "::" + name
		if rec, ok := ex.knownRecords[candidate]; ok {
			return rec.key
		}
		if idx := strings.LastIndex(prefix, "::"); idx >= 0 {
			prefix = prefix[:idx]
		} else {
			prefix = ""
		}
	}
	if rec, ok := ex.knownRecords[name]; ok {
		return rec.key
	}
	return identity.Hash(identity.RecordSignature(name, &types.RecordPayload{}))
}
