package ast

// Statement is implemented by every statement node.
type Statement interface {
	Node
	statementNode()
}

// Block is a brace-delimited sequence of statements.
type Block struct {
	NodeBase

	// Statements holds the block's statements in source order.
	Statements []Statement
}

func (*Block) statementNode() {}

// IfStatement is a conditional with an optional else branch.
type IfStatement struct {
	NodeBase

	Condition Expression
	TrueBody  Statement
	FalseBody Statement
}

func (*IfStatement) statementNode() {}

// WhileStatement is a pre-checked loop.
type WhileStatement struct {
	NodeBase

	Condition Expression
	Body      Statement
}

func (*WhileStatement) statementNode() {}

// ReturnStatement returns zero or more values from the enclosing function.
type ReturnStatement struct {
	NodeBase

	// Expression is the returned value, or nil for a bare return.
	Expression Expression

	// FunctionReturnParameters references the return parameter list of the
	// enclosing function. Populated during name resolution.
	FunctionReturnParameters *ParameterList
}

func (*ReturnStatement) statementNode() {}

// ExpressionStatement evaluates an expression for its side effects.
type ExpressionStatement struct {
	NodeBase

	Expression Expression
}

func (*ExpressionStatement) statementNode() {}

// PlaceholderStatement is the `_` inside a modifier body, marking where the
// modified function body is inlined.
type PlaceholderStatement struct {
	NodeBase
}

func (*PlaceholderStatement) statementNode() {}

// VariableDeclarationStatement declares a local variable with an optional
// initializer.
type VariableDeclarationStatement struct {
	NodeBase

	Declaration *VariableDeclaration
}

func (*VariableDeclarationStatement) statementNode() {}

// InlineAssemblyStatement is a raw `assembly { ... }` block. The body is kept
// as unparsed text; seeing one disables assembly-level rewrites downstream.
type InlineAssemblyStatement struct {
	NodeBase

	// Body is the raw assembly text between the braces.
	Body string
}

func (*InlineAssemblyStatement) statementNode() {}
