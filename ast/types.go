package ast

import (
	"fmt"
	"strings"
)

// Type is the semantic type of an expression or declaration. The subset keeps
// the type lattice small: sized integers, address, bool, fixed-size byte
// arrays, contracts, functions, modifiers, magic globals and untyped number
// literals.
type Type interface {
	// String returns the canonical type name as it appears in signatures,
	// e.g. "uint256".
	String() string

	// StorageBytes returns the number of bytes a value of the type occupies
	// within a storage slot. Types that cannot be stored return 0.
	StorageBytes() int

	// Equal reports whether two types are identical.
	Equal(Type) bool

	// IsImplicitlyConvertibleTo reports whether a value of the type may be
	// used where the other type is expected without an explicit conversion.
	IsImplicitlyConvertibleTo(Type) bool
}

// IntegerType is a sized signed or unsigned integer.
type IntegerType struct {
	// Bits is the width, a multiple of 8 between 8 and 256.
	Bits int

	// Signed distinguishes int from uint.
	Signed bool
}

// UInt256 is the default arithmetic type of the language.
var UInt256 = &IntegerType{Bits: 256}

func (t *IntegerType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}

func (t *IntegerType) StorageBytes() int { return t.Bits / 8 }

func (t *IntegerType) Equal(other Type) bool {
	o, ok := other.(*IntegerType)
	return ok && o.Bits == t.Bits && o.Signed == t.Signed
}

func (t *IntegerType) IsImplicitlyConvertibleTo(other Type) bool {
	if t.Equal(other) {
		return true
	}
	// Widening conversions keep the sign; unsigned also widens into larger
	// signed types.
	if o, ok := other.(*IntegerType); ok {
		if o.Bits < t.Bits {
			return false
		}
		if t.Signed == o.Signed {
			return true
		}
		return !t.Signed && o.Signed && o.Bits > t.Bits
	}
	return false
}

// AddressType is the 160-bit account address type.
type AddressType struct{}

func (t *AddressType) String() string    { return "address" }
func (t *AddressType) StorageBytes() int { return 20 }
func (t *AddressType) Equal(other Type) bool {
	_, ok := other.(*AddressType)
	return ok
}
func (t *AddressType) IsImplicitlyConvertibleTo(other Type) bool { return t.Equal(other) }

// BoolType is the boolean type.
type BoolType struct{}

func (t *BoolType) String() string    { return "bool" }
func (t *BoolType) StorageBytes() int { return 1 }
func (t *BoolType) Equal(other Type) bool {
	_, ok := other.(*BoolType)
	return ok
}
func (t *BoolType) IsImplicitlyConvertibleTo(other Type) bool { return t.Equal(other) }

// FixedBytesType is a byte array of fixed width, bytes1 through bytes32.
type FixedBytesType struct {
	// Bytes is the width between 1 and 32.
	Bytes int
}

func (t *FixedBytesType) String() string    { return fmt.Sprintf("bytes%d", t.Bytes) }
func (t *FixedBytesType) StorageBytes() int { return t.Bytes }
func (t *FixedBytesType) Equal(other Type) bool {
	o, ok := other.(*FixedBytesType)
	return ok && o.Bytes == t.Bytes
}
func (t *FixedBytesType) IsImplicitlyConvertibleTo(other Type) bool {
	if t.Equal(other) {
		return true
	}
	o, ok := other.(*FixedBytesType)
	return ok && o.Bytes >= t.Bytes
}

// StringType is a string literal's type; storable only as fixed bytes after
// conversion.
type StringType struct{}

func (t *StringType) String() string    { return "string" }
func (t *StringType) StorageBytes() int { return 32 }
func (t *StringType) Equal(other Type) bool {
	_, ok := other.(*StringType)
	return ok
}
func (t *StringType) IsImplicitlyConvertibleTo(other Type) bool {
	if t.Equal(other) {
		return true
	}
	// String literals coerce to fixed byte arrays that can hold them; length
	// is checked at the literal site.
	_, ok := other.(*FixedBytesType)
	return ok
}

// RationalNumberType is the type of an untyped number literal. It converts to
// any integer, address or fixed-bytes type wide enough for the value; the
// bounds check happens at the literal site during type checking.
type RationalNumberType struct{}

func (t *RationalNumberType) String() string    { return "rational_const" }
func (t *RationalNumberType) StorageBytes() int { return 0 }
func (t *RationalNumberType) Equal(other Type) bool {
	_, ok := other.(*RationalNumberType)
	return ok
}
func (t *RationalNumberType) IsImplicitlyConvertibleTo(other Type) bool {
	switch other.(type) {
	case *IntegerType, *AddressType, *FixedBytesType, *RationalNumberType:
		return true
	}
	return false
}

// ContractType is the type of a contract instance.
type ContractType struct {
	// Contract is the contract definition the type refers to.
	Contract *ContractDefinition

	// Super marks the synthetic type of `super`, which looks members up
	// starting past the current contract in the linearization.
	Super bool
}

func (t *ContractType) String() string {
	if t.Super {
		return "super " + t.Contract.ContractName
	}
	return t.Contract.ContractName
}
func (t *ContractType) StorageBytes() int { return 20 }
func (t *ContractType) Equal(other Type) bool {
	o, ok := other.(*ContractType)
	return ok && o.Contract == t.Contract && o.Super == t.Super
}
func (t *ContractType) IsImplicitlyConvertibleTo(other Type) bool {
	if t.Equal(other) {
		return true
	}
	// A contract converts to any base contract in its inheritance chain.
	if o, ok := other.(*ContractType); ok && !o.Super {
		for _, base := range t.Contract.LinearizedBases {
			if base == o.Contract {
				return true
			}
		}
	}
	// Contracts are address-sized references.
	_, isAddress := other.(*AddressType)
	return isAddress
}

// FunctionLocation distinguishes how a function value is invoked.
type FunctionLocation int

const (
	// LocationInternal functions are reached by jump within the same code.
	LocationInternal FunctionLocation = iota
	// LocationExternal functions are reached by message call.
	LocationExternal
	// LocationCreation functions deploy a new contract.
	LocationCreation
)

// FunctionType describes a callable: its parameter and return types, how it
// is invoked and whether it mutates state.
type FunctionType struct {
	ParameterTypes []Type
	ReturnTypes    []Type
	Location       FunctionLocation
	Constant       bool

	// Declaration is the function definition a bound function value refers
	// to, or nil for unbound function-typed variables.
	Declaration *FunctionDefinition
}

// NewFunctionTypeFromDefinition derives the function type of a definition.
// Parameter types must already be resolved on the declarations.
func NewFunctionTypeFromDefinition(fn *FunctionDefinition) *FunctionType {
	t := &FunctionType{Constant: fn.Constant, Declaration: fn}
	if fn.Visibility == VisibilityExternal {
		t.Location = LocationExternal
	}
	for _, p := range fn.Parameters.Parameters {
		t.ParameterTypes = append(t.ParameterTypes, p.Type())
	}
	if fn.ReturnParameters != nil {
		for _, p := range fn.ReturnParameters.Parameters {
			t.ReturnTypes = append(t.ReturnTypes, p.Type())
		}
	}
	return t
}

func (t *FunctionType) String() string {
	var params, returns []string
	for _, p := range t.ParameterTypes {
		params = append(params, p.String())
	}
	for _, r := range t.ReturnTypes {
		returns = append(returns, r.String())
	}
	s := "function (" + strings.Join(params, ",") + ")"
	if len(returns) > 0 {
		s += " returns (" + strings.Join(returns, ",") + ")"
	}
	return s
}

func (t *FunctionType) StorageBytes() int { return 32 }

func (t *FunctionType) Equal(other Type) bool {
	o, ok := other.(*FunctionType)
	if !ok || len(o.ParameterTypes) != len(t.ParameterTypes) || len(o.ReturnTypes) != len(t.ReturnTypes) {
		return false
	}
	if o.Location != t.Location {
		return false
	}
	for i, p := range t.ParameterTypes {
		if !p.Equal(o.ParameterTypes[i]) {
			return false
		}
	}
	for i, r := range t.ReturnTypes {
		if !r.Equal(o.ReturnTypes[i]) {
			return false
		}
	}
	return true
}

func (t *FunctionType) IsImplicitlyConvertibleTo(other Type) bool {
	// A bound function converts to an unbound function type with the same
	// shape; the declaration is dropped.
	o, ok := other.(*FunctionType)
	if !ok {
		return false
	}
	stripped := *t
	stripped.Declaration = nil
	strippedOther := *o
	strippedOther.Declaration = nil
	return stripped.Equal(&strippedOther)
}

// HasEqualArgumentTypes reports whether two function types take identical
// parameter lists, the override-compatibility test.
func (t *FunctionType) HasEqualArgumentTypes(other *FunctionType) bool {
	if len(t.ParameterTypes) != len(other.ParameterTypes) {
		return false
	}
	for i, p := range t.ParameterTypes {
		if !p.Equal(other.ParameterTypes[i]) {
			return false
		}
	}
	return true
}

// ModifierType is the type of a function modifier.
type ModifierType struct {
	ParameterTypes []Type
}

func (t *ModifierType) String() string    { return "modifier" }
func (t *ModifierType) StorageBytes() int { return 0 }
func (t *ModifierType) Equal(other Type) bool {
	o, ok := other.(*ModifierType)
	if !ok || len(o.ParameterTypes) != len(t.ParameterTypes) {
		return false
	}
	for i, p := range t.ParameterTypes {
		if !p.Equal(o.ParameterTypes[i]) {
			return false
		}
	}
	return true
}
func (t *ModifierType) IsImplicitlyConvertibleTo(Type) bool { return false }

// MagicType is the type of the built-in globals `msg`, `tx` and `block`.
// Member lookup happens by name.
type MagicType struct {
	// Kind is the global's name.
	Kind string

	// Members maps member names to their types.
	Members map[string]Type
}

func (t *MagicType) String() string    { return t.Kind }
func (t *MagicType) StorageBytes() int { return 0 }
func (t *MagicType) Equal(other Type) bool {
	o, ok := other.(*MagicType)
	return ok && o.Kind == t.Kind
}
func (t *MagicType) IsImplicitlyConvertibleTo(Type) bool { return false }

// VoidType is the type of expressions that produce no value, e.g. calls to
// functions without return parameters.
type VoidType struct{}

func (t *VoidType) String() string                      { return "void" }
func (t *VoidType) StorageBytes() int                   { return 0 }
func (t *VoidType) Equal(other Type) bool               { _, ok := other.(*VoidType); return ok }
func (t *VoidType) IsImplicitlyConvertibleTo(Type) bool { return false }

// ElementaryTypeByName returns the built-in type named by an elementary type
// keyword, or nil if the keyword is unknown.
func ElementaryTypeByName(name string) Type {
	switch name {
	case "address":
		return &AddressType{}
	case "bool":
		return &BoolType{}
	case "string":
		return &StringType{}
	case "uint", "int":
		return &IntegerType{Bits: 256, Signed: name == "int"}
	case "byte":
		return &FixedBytesType{Bytes: 1}
	}
	if strings.HasPrefix(name, "uint") || strings.HasPrefix(name, "int") {
		signed := strings.HasPrefix(name, "int")
		digits := strings.TrimPrefix(strings.TrimPrefix(name, "uint"), "int")
		bits := 0
		for _, c := range digits {
			if c < '0' || c > '9' {
				return nil
			}
			bits = bits*10 + int(c-'0')
		}
		if bits%8 == 0 && bits >= 8 && bits <= 256 {
			return &IntegerType{Bits: bits, Signed: signed}
		}
		return nil
	}
	if strings.HasPrefix(name, "bytes") {
		digits := strings.TrimPrefix(name, "bytes")
		n := 0
		for _, c := range digits {
			if c < '0' || c > '9' {
				return nil
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 32 {
			return &FixedBytesType{Bytes: n}
		}
	}
	return nil
}
