package ast

import "github.com/shopspring/decimal"

// Expression is implemented by every expression node. Expressions carry the
// semantic type assigned during type checking and, where applicable, the
// declaration a name binds to.
type Expression interface {
	Node

	// ExpressionType returns the semantic type assigned during type checking,
	// or nil before checking.
	ExpressionType() Type

	// SetExpressionType records the checked type of the expression.
	SetExpressionType(Type)
}

// ExpressionBase carries the checked type shared by all expressions.
type ExpressionBase struct {
	NodeBase

	typ Type
}

// ExpressionType returns the checked type of the expression, or nil.
func (e *ExpressionBase) ExpressionType() Type { return e.typ }

// SetExpressionType records the checked type of the expression.
func (e *ExpressionBase) SetExpressionType(t Type) { e.typ = t }

// Assignment is a binary `lhs = rhs` expression. Compound assignments carry
// the arithmetic operator alongside.
type Assignment struct {
	ExpressionBase

	LeftHandSide  Expression
	Operator      string
	RightHandSide Expression
}

// BinaryOperation applies an infix operator to two operands.
type BinaryOperation struct {
	ExpressionBase

	LeftExpression  Expression
	Operator        string
	RightExpression Expression

	// CommonType is the type both operands are converted to before the
	// operation. Populated during type checking.
	CommonType Type
}

// UnaryOperation applies a prefix operator to a single operand.
type UnaryOperation struct {
	ExpressionBase

	Operator      string
	SubExpression Expression
}

// FunctionCallKind distinguishes the three syntactic uses of call syntax.
type FunctionCallKind int

const (
	// CallFunction is an ordinary function call.
	CallFunction FunctionCallKind = iota
	// CallTypeConversion is an explicit conversion, e.g. `address(x)`.
	CallTypeConversion
	// CallStructConstructor is reserved; the subset has no structs yet.
	CallStructConstructor
)

// FunctionCall applies call syntax to an expression: a function call, an
// explicit type conversion, or a contract creation when the callee is a
// NewExpression.
type FunctionCall struct {
	ExpressionBase

	Expression Expression
	Arguments  []Expression

	// Kind is determined during type checking.
	Kind FunctionCallKind
}

// NewExpression is the `new ContractName` callee of a creation call.
type NewExpression struct {
	ExpressionBase

	// ContractName references the created contract.
	ContractName *Identifier
}

// MemberAccess selects a member of an expression, e.g. `msg.sender` or
// `reg.register`.
type MemberAccess struct {
	ExpressionBase

	Expression Expression
	MemberName string

	// Declaration is the declaration the member resolves to when the base is
	// a contract; nil for magic members. Populated during type checking.
	Declaration Declaration
}

// IndexAccess subscripts an expression, e.g. `balances[addr]`.
type IndexAccess struct {
	ExpressionBase

	BaseExpression  Expression
	IndexExpression Expression
}

// Identifier is a plain name reference.
type Identifier struct {
	ExpressionBase

	// NameValue is the referenced name.
	NameValue string

	// Declaration is the declaration the name binds to. Populated during name
	// resolution.
	Declaration Declaration
}

// Name returns the referenced name.
func (i *Identifier) Name() string { return i.NameValue }

// ElementaryTypeNameExpression is an elementary type keyword used as an
// expression, i.e. the callee of an explicit conversion such as `address(x)`.
type ElementaryTypeNameExpression struct {
	ExpressionBase

	TypeName string
}

// LiteralKind enumerates the literal token kinds.
type LiteralKind int

const (
	// LiteralNumber covers decimal and hexadecimal number literals.
	LiteralNumber LiteralKind = iota
	// LiteralString covers quoted string literals.
	LiteralString
	// LiteralBool covers `true` and `false`.
	LiteralBool
)

// Literal is a number, string or boolean literal. Number values are kept as
// exact decimals until the type checker binds them to a sized type.
type Literal struct {
	ExpressionBase

	Kind LiteralKind

	// Text is the literal token exactly as written.
	Text string

	// Value is the exact numeric value for number literals.
	Value decimal.Decimal

	// BoolValue is the value for boolean literals.
	BoolValue bool
}
