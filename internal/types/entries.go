package types

// SymbolEntry is the shared core of every canonical entry. One exists per
// distinct IdentityKey within its kind's table; it is created on first
// observation and mutated in place by later observations, never deleted
// during a run.
type SymbolEntry struct {
	Key           IdentityKey    `json:"key"`
	Signature     string         `json:"signature"`
	Name          string         `json:"name"`
	QualifiedName string         `json:"qualified_name"`
	HasDefinition bool           `json:"has_definition"`
	Location      SourceLocation `json:"location"`
	Doc           string         `json:"doc,omitempty"`
	DocFromDef    bool           `json:"-"` // whether Doc came from a definition observation
	Access        Access         `json:"-"`
	ParentKey     IdentityKey    `json:"parent_key,omitempty"`
}

// FunctionEntry is the merged record for one function or method overload.
type FunctionEntry struct {
	SymbolEntry
	ReturnType     string   `json:"return_type,omitempty"`
	Params         []Param  `json:"params,omitempty"`
	IsVirtual      bool     `json:"is_virtual,omitempty"`
	IsConst        bool     `json:"is_const,omitempty"`
	IsStatic       bool     `json:"is_static,omitempty"`
	RefQualifier   string   `json:"ref_qualifier,omitempty"`
	TemplateParams []string `json:"template_params,omitempty"`
	IsRecordMember bool     `json:"is_record_member,omitempty"`

	// Populated by the reference resolver.
	OverrideKeys     []IdentityKey `json:"override_keys,omitempty"`      // base methods this one overrides
	OverriddenByKeys []IdentityKey `json:"overridden_by_keys,omitempty"` // derived methods overriding this one
}

// RecordEntry is the merged record for one class/struct/union.
type RecordEntry struct {
	SymbolEntry
	RecordKind     RecordKind    `json:"record_kind"`
	TemplateParams []string      `json:"template_params,omitempty"`
	BaseKeys       []IdentityKey `json:"base_keys,omitempty"`
	MemberKeys     []IdentityKey `json:"member_keys,omitempty"`

	// Populated by the reference resolver.
	DerivedKeys []IdentityKey `json:"derived_keys,omitempty"`
	MethodKeys  []IdentityKey `json:"method_keys,omitempty"`
}

// EnumEntry is the merged record for one enum.
type EnumEntry struct {
	SymbolEntry
	IsScoped       bool         `json:"is_scoped,omitempty"`
	UnderlyingType string       `json:"underlying_type,omitempty"`
	Enumerators    []Enumerator `json:"enumerators,omitempty"`
}

// NamespaceEntry is the merged record for one namespace.
type NamespaceEntry struct {
	SymbolEntry
	// Populated by the reference resolver from every entry's ParentKey.
	RecordKeys    []IdentityKey `json:"record_keys,omitempty"`
	FunctionKeys  []IdentityKey `json:"function_keys,omitempty"`
	EnumKeys      []IdentityKey `json:"enum_keys,omitempty"`
	NamespaceKeys []IdentityKey `json:"namespace_keys,omitempty"`
}
