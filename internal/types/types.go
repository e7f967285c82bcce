package types

import "fmt"

// SymbolKind identifies which of the four entity tables an observation
// belongs to.
type SymbolKind int

const (
	KindUnknown SymbolKind = iota
	KindFunction
	KindRecord
	KindEnum
	KindNamespace
)

// symbolKindStrings provides O(1) lookup for symbol kind names
var symbolKindStrings = map[SymbolKind]string{
	KindFunction:  "function",
	KindRecord:    "record",
	KindEnum:      "enum",
	KindNamespace: "namespace",
}

// String returns a string representation of the symbol kind
func (k SymbolKind) String() string {
	if name, ok := symbolKindStrings[k]; ok {
		return name
	}
	return "unknown"
}

// RecordKind distinguishes the record flavors C++ allows.
type RecordKind int

const (
	RecordClass RecordKind = iota
	RecordStruct
	RecordUnion
)

// String returns a string representation of the record kind
func (rk RecordKind) String() string {
	switch rk {
	case RecordClass:
		return "class"
	case RecordStruct:
		return "struct"
	case RecordUnion:
		return "union"
	default:
		return "unknown"
	}
}

// Access is a member access specifier.
type Access int

const (
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

// String returns a string representation of the access specifier
func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return "none"
	}
}

// SourceLocation is a (file, line, column) position. Line and column are
// 1-indexed; a zero value means the location is unknown.
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// IsValid reports whether the location points at real source.
func (l SourceLocation) IsValid() bool {
	return l.File != "" && l.Line > 0
}

// Less imposes a total order on locations: by file, then line, then column.
// The merge engine uses this order to break ties between observations of
// equal definitional status, which keeps merging commutative regardless of
// the order translation units finish in.
func (l SourceLocation) Less(other SourceLocation) bool {
	if l.File != other.File {
		return l.File < other.File
	}
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Column < other.Column
}

// String returns the location in file:line:col form
func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IdentityKey is the stable, translation-unit-independent handle for one
// logical entity. Two observations denote the same entity exactly when
// their keys are equal. The zero key means "no key" (e.g. no parent scope).
type IdentityKey uint64

// IsZero reports whether the key is unset.
func (k IdentityKey) IsZero() bool { return k == 0 }

// String returns the key as fixed-width hex for stable debug output
func (k IdentityKey) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

// Param is one function parameter as written in the signature.
type Param struct {
	Name         string `json:"name,omitempty"`
	Type         string `json:"type"`
	DefaultValue string `json:"default_value,omitempty"`
	Doc          string `json:"doc,omitempty"`
}

// Enumerator is one named constant inside an enum.
type Enumerator struct {
	Name     string         `json:"name"`
	Value    string         `json:"value,omitempty"`
	Doc      string         `json:"doc,omitempty"`
	Location SourceLocation `json:"location"`
}

// FunctionPayload carries the function-specific fields of an observation.
type FunctionPayload struct {
	ReturnType     string
	Params         []Param
	IsVirtual      bool
	IsConst        bool
	IsStatic       bool
	RefQualifier   string // "", "&" or "&&" on the implicit object parameter
	TemplateParams []string
	IsRecordMember bool
}

// RecordPayload carries the record-specific fields of an observation.
// BaseKeys may be incomplete on declaration-only observations; the merge
// engine unions it across translation units.
type RecordPayload struct {
	RecordKind     RecordKind
	BaseKeys       []IdentityKey
	MemberKeys     []IdentityKey
	TemplateParams []string
}

// EnumPayload carries the enum-specific fields of an observation.
type EnumPayload struct {
	IsScoped       bool
	UnderlyingType string
	Enumerators    []Enumerator
}

// NamespacePayload carries the namespace-specific fields of an observation.
type NamespacePayload struct {
	ChildKeys []IdentityKey
}

// Observation is one extracted fact about a symbol from one translation
// unit. The same real entity yields one observation per TU that sees its
// declaration, with varying completeness. Observations are immutable once
// produced.
type Observation struct {
	Kind          SymbolKind
	Key           IdentityKey
	Signature     string // canonical signature string the key was hashed from
	Name          string
	QualifiedName string
	IsDefinition  bool
	Location      SourceLocation
	Doc           string
	Access        Access
	ParentKey     IdentityKey

	// Exactly one of these is non-nil, matching Kind.
	Function  *FunctionPayload
	Record    *RecordPayload
	Enum      *EnumPayload
	Namespace *NamespacePayload
}
