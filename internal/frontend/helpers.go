package frontend

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/symdex/symdex/internal/types"
)

// nodeText extracts the source text covered by a node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > uint(len(content)) || end > uint(len(content)) || start > end {
		return ""
	}
	return string(content[start:end])
}

// nodeLocation converts a node's start position to a 1-indexed location.
func nodeLocation(node *sitter.Node, file string) types.SourceLocation {
	if node == nil {
		return types.SourceLocation{}
	}
	pos := node.StartPosition()
	return types.SourceLocation{
		File:   file,
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column) + 1,
	}
}

// findChildOfKind finds the first direct child of the given kind.
func findChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func hasChildOfKind(node *sitter.Node, kind string) bool {
	return findChildOfKind(node, kind) != nil
}

// findFunctionDeclarator unwraps a declaration's declarator chain down to a
// function_declarator, if any. Pointer and reference wrappers around the
// declarator ("int* f()") are stepped through; init_declarators are
// variables and stop the search.
func findFunctionDeclarator(node *sitter.Node) *sitter.Node {
	decl := node.ChildByFieldName("declarator")
	for decl != nil {
		switch decl.Kind() {
		case "function_declarator":
			return decl
		case "pointer_declarator", "reference_declarator":
			decl = decl.ChildByFieldName("declarator")
		default:
			return nil
		}
	}
	return nil
}

func recordKindOf(nodeKind string) types.RecordKind {
	switch nodeKind {
	case "struct_specifier":
		return types.RecordStruct
	case "union_specifier":
		return types.RecordUnion
	default:
		return types.RecordClass
	}
}

// defaultAccess is the member access a record body starts with.
func defaultAccess(rk types.RecordKind) types.Access {
	if rk == types.RecordClass {
		return types.AccessPrivate
	}
	return types.AccessPublic
}

func accessOf(text string) types.Access {
	switch strings.TrimSuffix(strings.TrimSpace(text), ":") {
	case "public":
		return types.AccessPublic
	case "protected":
		return types.AccessProtected
	case "private":
		return types.AccessPrivate
	default:
		return types.AccessNone
	}
}

// templateParamNames pulls the parameter names out of a
// template_parameter_list ("template <typename T, int N>" yields T, N).
func templateParamNames(params *sitter.Node, content []byte) []string {
	if params == nil {
		return nil
	}
	var names []string
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "type_parameter_declaration", "template_template_parameter_declaration":
			if id := findChildOfKind(child, "type_identifier"); id != nil {
				names = append(names, nodeText(id, content))
			}
		case "parameter_declaration", "optional_parameter_declaration":
			if d := child.ChildByFieldName("declarator"); d != nil {
				names = append(names, nodeText(d, content))
			}
		}
	}
	return names
}

// hasSpecifier reports whether a declaration carries the given leading
// keyword ("virtual", "static"). The grammar exposes these under more than
// one node kind across versions, so matching the leaf text is the robust
// check.
func hasSpecifier(node *sitter.Node, content []byte, keyword string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if int(child.EndByte()-child.StartByte()) == len(keyword) &&
			nodeText(child, content) == keyword {
			return true
		}
	}
	return false
}

// declaratorHasQualifier reports whether a function_declarator carries the
// given trailing cv qualifier.
func declaratorHasQualifier(declarator *sitter.Node, content []byte, qualifier string) bool {
	for i := uint(0); i < declarator.ChildCount(); i++ {
		child := declarator.Child(i)
		if child != nil && child.Kind() == "type_qualifier" && nodeText(child, content) == qualifier {
			return true
		}
	}
	return false
}

// refQualifierOf returns the "&" or "&&" qualifier on the implicit object
// parameter, if present.
func refQualifierOf(declarator *sitter.Node, content []byte) string {
	if rq := findChildOfKind(declarator, "ref_qualifier"); rq != nil {
		return nodeText(rq, content)
	}
	return ""
}

// returnType spells the declared return type, including pointer/reference
// declarator wrappers between the declaration and its function_declarator.
func (ex *extractor) returnType(node, fnDeclarator *sitter.Node) string {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return "" // constructors and destructors have none
	}
	text := nodeText(typeNode, ex.content)

	decl := node.ChildByFieldName("declarator")
	for decl != nil && decl != fnDeclarator {
		switch decl.Kind() {
		case "pointer_declarator":
			text += "*"
		case "reference_declarator":
			text += refMark(decl, ex.content)
		}
		decl = decl.ChildByFieldName("declarator")
	}
	return text
}

func refMark(decl *sitter.Node, content []byte) string {
	for i := uint(0); i < decl.ChildCount(); i++ {
		child := decl.Child(i)
		if child == nil {
			continue
		}
		if t := nodeText(child, content); t == "&" || t == "&&" {
			return t
		}
	}
	return "&"
}

// extractParams converts a parameter_list into the observation's parameter
// slice: written type (qualifiers and declarator shape included), name, and
// default value when present.
func (ex *extractor) extractParams(list *sitter.Node) []types.Param {
	if list == nil {
		return nil
	}
	var params []types.Param
	for i := uint(0); i < list.ChildCount(); i++ {
		child := list.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "parameter_declaration", "optional_parameter_declaration":
			params = append(params, ex.extractParam(child))
		case "variadic_parameter_declaration":
			params = append(params, types.Param{Type: "..."})
		}
	}
	return params
}

func (ex *extractor) extractParam(node *sitter.Node) types.Param {
	var p types.Param

	var typeParts []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == "type_qualifier" {
			typeParts = append(typeParts, nodeText(child, ex.content))
		}
	}
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		typeParts = append(typeParts, nodeText(typeNode, ex.content))
	}
	typeText := strings.Join(typeParts, " ")

	// Declarator shape contributes pointer/reference markers and the name.
	decl := node.ChildByFieldName("declarator")
	for decl != nil {
		switch decl.Kind() {
		case "pointer_declarator", "abstract_pointer_declarator":
			typeText += "*"
			decl = decl.ChildByFieldName("declarator")
		case "reference_declarator", "abstract_reference_declarator":
			typeText += refMark(decl, ex.content)
			decl = decl.ChildByFieldName("declarator")
		case "identifier":
			p.Name = nodeText(decl, ex.content)
			decl = nil
		default:
			decl = nil
		}
	}

	p.Type = typeText
	if valueNode := node.ChildByFieldName("default_value"); valueNode != nil {
		p.DefaultValue = nodeText(valueNode, ex.content)
	}
	return p
}
