package ast

import "sync/atomic"

// nextNodeID is the dispenser for globally-unique node identifiers. IDs are
// assigned in parse order, which is deterministic because the driver parses
// sources in sorted name order.
var nextNodeID int64

// NewNodeID returns a fresh globally-unique node identifier.
func NewNodeID() int64 {
	return atomic.AddInt64(&nextNodeID, 1)
}

// Node is the interface implemented by every AST node. The node kinds the
// compilation core dispatches on are deliberately few; everything else is
// traversed generically.
type Node interface {
	// ID returns the stable, globally-unique numeric identifier of the node.
	ID() int64

	// Location returns the source range the node was parsed from.
	Location() SourceLocation
}

// Declaration is a Node that introduces a name into some scope.
type Declaration interface {
	Node

	// Name returns the declared name.
	Name() string

	// Type returns the type of the declared entity, or nil if it has not been
	// resolved yet.
	Type() Type
}

// NodeBase carries the identifier and source range shared by all nodes. It is
// embedded in every concrete node type.
type NodeBase struct {
	id  int64
	loc SourceLocation
}

// NewNodeBase creates node bookkeeping for the given source range, assigning a
// fresh node identifier.
func NewNodeBase(loc SourceLocation) NodeBase {
	return NodeBase{id: NewNodeID(), loc: loc}
}

// ID returns the stable, globally-unique numeric identifier of the node.
func (n *NodeBase) ID() int64 { return n.id }

// Location returns the source range the node was parsed from.
func (n *NodeBase) Location() SourceLocation { return n.loc }

// SourceUnit is the root node of a parsed source: an ordered sequence of
// top-level nodes (imports, pragmas and contract definitions).
type SourceUnit struct {
	NodeBase

	// Nodes holds the top-level nodes in source order.
	Nodes []Node
}

// ImportDirective references another source unit by name.
type ImportDirective struct {
	NodeBase

	// Identifier is the name of the imported source unit.
	Identifier string
}

// PragmaDirective carries a tool name and a version-constraint expression,
// e.g. `pragma solidity ^0.4.0;`.
type PragmaDirective struct {
	NodeBase

	// Tool is the pragma target, e.g. "solidity".
	Tool string

	// Constraint is the raw version-constraint text following the tool name.
	Constraint string
}

// Visibility describes who may call a function.
type Visibility int

const (
	// VisibilityPublic functions are part of the contract interface and may
	// also be called internally.
	VisibilityPublic Visibility = iota
	// VisibilityInternal functions may only be called from the contract itself
	// or contracts deriving from it.
	VisibilityInternal
	// VisibilityExternal functions are part of the contract interface but may
	// not be called internally by name.
	VisibilityExternal
	// VisibilityPrivate functions are not visible in derived contracts.
	VisibilityPrivate
)

// String returns the source-level keyword for the visibility.
func (v Visibility) String() string {
	switch v {
	case VisibilityInternal:
		return "internal"
	case VisibilityExternal:
		return "external"
	case VisibilityPrivate:
		return "private"
	default:
		return "public"
	}
}

// InheritanceSpecifier names a base contract in a contract's inheritance list.
type InheritanceSpecifier struct {
	NodeBase

	// BaseName references the base contract by name.
	BaseName *Identifier
}

// ContractDefinition declares a contract: a named collection of state
// variables, functions and modifiers with an optional inheritance list.
type ContractDefinition struct {
	NodeBase

	// ContractName is the declared contract name.
	ContractName string

	// BaseContracts holds the inheritance specifiers in declaration order.
	BaseContracts []*InheritanceSpecifier

	// Members holds the contract members in declaration order.
	Members []Node

	// DocString is the raw `///` documentation attached to the definition.
	DocString string

	// LinearizedBases is the C3-linearized inheritance chain, starting with
	// the contract itself. Populated during name and type resolution.
	LinearizedBases []*ContractDefinition

	// UserDocumentation and DevDocumentation hold the NatSpec strings computed
	// by the interface handler after type checking.
	UserDocumentation string
	DevDocumentation  string

	typ Type
}

// Name returns the declared contract name.
func (c *ContractDefinition) Name() string { return c.ContractName }

// Type returns the contract's type, or nil before resolution.
func (c *ContractDefinition) Type() Type { return c.typ }

// SetType records the contract's resolved type.
func (c *ContractDefinition) SetType(t Type) { c.typ = t }

// StateVariables returns the state variable declarations of this contract
// only, in declaration order. Inherited variables are not included.
func (c *ContractDefinition) StateVariables() []*VariableDeclaration {
	var vars []*VariableDeclaration
	for _, member := range c.Members {
		if v, ok := member.(*VariableDeclaration); ok {
			vars = append(vars, v)
		}
	}
	return vars
}

// DefinedFunctions returns the function definitions of this contract only, in
// declaration order.
func (c *ContractDefinition) DefinedFunctions() []*FunctionDefinition {
	var fns []*FunctionDefinition
	for _, member := range c.Members {
		if f, ok := member.(*FunctionDefinition); ok {
			fns = append(fns, f)
		}
	}
	return fns
}

// Modifiers returns the modifier definitions of this contract only, in
// declaration order.
func (c *ContractDefinition) Modifiers() []*ModifierDefinition {
	var mods []*ModifierDefinition
	for _, member := range c.Members {
		if m, ok := member.(*ModifierDefinition); ok {
			mods = append(mods, m)
		}
	}
	return mods
}

// Constructor returns the constructor definition (the function named after
// the contract), or nil if there is none.
func (c *ContractDefinition) Constructor() *FunctionDefinition {
	for _, fn := range c.DefinedFunctions() {
		if fn.FunctionName == c.ContractName {
			return fn
		}
	}
	return nil
}

// AllFunctions returns the functions visible on the contract across its
// linearized inheritance chain, most derived first. Overridden functions are
// filtered out by signature. Requires LinearizedBases to be populated; before
// linearization only the contract's own functions are returned.
func (c *ContractDefinition) AllFunctions() []*FunctionDefinition {
	chain := c.LinearizedBases
	if len(chain) == 0 {
		chain = []*ContractDefinition{c}
	}
	seen := make(map[string]bool)
	var fns []*FunctionDefinition
	for _, contract := range chain {
		for _, fn := range contract.DefinedFunctions() {
			if fn.IsConstructor() {
				continue
			}
			sig := fn.Signature()
			if seen[sig] {
				continue
			}
			seen[sig] = true
			fns = append(fns, fn)
		}
	}
	return fns
}

// InterfaceFunctions returns the externally callable functions of the
// contract (public and external), across the linearized inheritance chain.
func (c *ContractDefinition) InterfaceFunctions() []*FunctionDefinition {
	var fns []*FunctionDefinition
	for _, fn := range c.AllFunctions() {
		if fn.Visibility == VisibilityPublic || fn.Visibility == VisibilityExternal {
			fns = append(fns, fn)
		}
	}
	return fns
}

// IsFullyImplemented returns a boolean indicating whether every function
// visible on the contract has a body. Contracts that are not fully implemented
// are abstract and produce no bytecode.
func (c *ContractDefinition) IsFullyImplemented() bool {
	for _, fn := range c.AllFunctions() {
		if fn.Body == nil {
			return false
		}
	}
	return true
}

// FunctionDefinition declares a function or a constructor (a function named
// after its contract).
type FunctionDefinition struct {
	NodeBase

	// FunctionName is the declared function name.
	FunctionName string

	// Parameters and ReturnParameters describe the function signature.
	Parameters       *ParameterList
	ReturnParameters *ParameterList

	// Visibility controls who may call the function.
	Visibility Visibility

	// Constant marks the function as non-mutating.
	Constant bool

	// Modifiers holds the modifier invocations applied to the function.
	Modifiers []*ModifierInvocation

	// Body is the function body, or nil for an unimplemented declaration.
	Body *Block

	// DocString is the raw `///` documentation attached to the definition.
	DocString string

	// Scope is the contract the function was declared in. Populated during
	// declaration registration.
	Scope *ContractDefinition

	typ Type
}

// Name returns the declared function name.
func (f *FunctionDefinition) Name() string { return f.FunctionName }

// Type returns the function's type, or nil before resolution.
func (f *FunctionDefinition) Type() Type { return f.typ }

// SetType records the function's resolved type.
func (f *FunctionDefinition) SetType(t Type) { f.typ = t }

// IsConstructor returns a boolean indicating whether the function is the
// constructor of its declaring contract.
func (f *FunctionDefinition) IsConstructor() bool {
	return f.Scope != nil && f.FunctionName == f.Scope.ContractName
}

// Signature returns the canonical external signature of the function, e.g.
// "transfer(address,uint256)". Parameter types must be resolved first.
func (f *FunctionDefinition) Signature() string {
	sig := f.FunctionName + "("
	for i, param := range f.Parameters.Parameters {
		if i > 0 {
			sig += ","
		}
		if param.Type() != nil {
			sig += param.Type().String()
		} else if param.TypeName != nil {
			sig += param.TypeName.Name
		}
	}
	return sig + ")"
}

// ParameterList holds an ordered list of parameter declarations.
type ParameterList struct {
	NodeBase

	// Parameters holds the declarations in source order.
	Parameters []*VariableDeclaration
}

// VariableMutability distinguishes ordinary, constant and immutable
// variables.
type VariableMutability int

const (
	// MutabilityMutable variables live in storage (state variables) or on the
	// stack/memory (locals).
	MutabilityMutable VariableMutability = iota
	// MutabilityConstant variables are compile-time constants.
	MutabilityConstant
	// MutabilityImmutable variables are assigned once during construction and
	// stored in code rather than storage.
	MutabilityImmutable
)

// VariableDeclaration declares a state variable, a local variable or a
// function parameter.
type VariableDeclaration struct {
	NodeBase

	// VariableName is the declared name. Parameters may be anonymous.
	VariableName string

	// TypeName is the syntactic type annotation.
	TypeName *TypeName

	// Mutability distinguishes mutable, constant and immutable variables.
	Mutability VariableMutability

	// Value is the optional initializer expression.
	Value Expression

	// Scope is the contract the variable was declared in when it is a state
	// variable; nil for locals and parameters.
	Scope *ContractDefinition

	// stateVariable is set during declaration registration for variables
	// declared directly in a contract body.
	stateVariable bool

	typ Type
}

// Name returns the declared variable name.
func (v *VariableDeclaration) Name() string { return v.VariableName }

// Type returns the variable's resolved type, or nil before resolution.
func (v *VariableDeclaration) Type() Type { return v.typ }

// SetType records the variable's resolved type.
func (v *VariableDeclaration) SetType(t Type) { v.typ = t }

// SetStateVariable marks the declaration as a contract state variable.
func (v *VariableDeclaration) SetStateVariable() { v.stateVariable = true }

// IsStateVariable returns a boolean indicating whether the declaration is a
// contract state variable.
func (v *VariableDeclaration) IsStateVariable() bool { return v.stateVariable }

// IsImmutable returns a boolean indicating whether the variable is declared
// immutable.
func (v *VariableDeclaration) IsImmutable() bool { return v.Mutability == MutabilityImmutable }

// ModifierDefinition declares a function modifier. The body contains a
// placeholder statement marking where the modified function body is inlined.
type ModifierDefinition struct {
	NodeBase

	// ModifierName is the declared modifier name.
	ModifierName string

	// Parameters describes the modifier's parameters.
	Parameters *ParameterList

	// Body is the modifier body.
	Body *Block

	// DocString is the raw `///` documentation attached to the definition.
	DocString string

	typ Type
}

// Name returns the declared modifier name.
func (m *ModifierDefinition) Name() string { return m.ModifierName }

// Type returns the modifier's resolved type, or nil before resolution.
func (m *ModifierDefinition) Type() Type { return m.typ }

// SetType records the modifier's resolved type.
func (m *ModifierDefinition) SetType(t Type) { m.typ = t }

// ModifierInvocation applies a modifier (or calls a base constructor) on a
// function definition.
type ModifierInvocation struct {
	NodeBase

	// ModifierName references the modifier by name.
	ModifierName *Identifier

	// Arguments holds the invocation arguments, if any.
	Arguments []Expression
}

// TypeName is a syntactic type annotation: either an elementary type keyword,
// a user-defined (contract) name, or a function type.
type TypeName struct {
	NodeBase

	// Name is the annotation text for elementary and user-defined types.
	Name string

	// Elementary indicates the annotation used a built-in type keyword.
	Elementary bool

	// FunctionTypeParameters and FunctionTypeReturns are set when the
	// annotation is a function type, e.g. `function (uint256) returns (bool)`.
	FunctionTypeParameters *ParameterList
	FunctionTypeReturns    *ParameterList

	// Declaration is the user-defined type's declaration, resolved during
	// name resolution.
	Declaration Declaration

	// ResolvedType is the semantic type the annotation denotes, populated
	// during name and type resolution.
	ResolvedType Type
}

// IsFunctionType returns a boolean indicating whether the annotation denotes
// a function type.
func (t *TypeName) IsFunctionType() bool { return t.FunctionTypeParameters != nil }

// MagicVariableDeclaration is a compiler-generated declaration for built-in
// globals such as `msg`, `this` and `super`. It has no source location.
type MagicVariableDeclaration struct {
	NodeBase

	// MagicName is the built-in name.
	MagicName string

	typ Type
}

// NewMagicVariableDeclaration creates a built-in declaration with the given
// name and type.
func NewMagicVariableDeclaration(name string, typ Type) *MagicVariableDeclaration {
	return &MagicVariableDeclaration{NodeBase: NewNodeBase(SourceLocation{}), MagicName: name, typ: typ}
}

// Name returns the built-in name.
func (m *MagicVariableDeclaration) Name() string { return m.MagicName }

// Type returns the built-in's type.
func (m *MagicVariableDeclaration) Type() Type { return m.typ }
