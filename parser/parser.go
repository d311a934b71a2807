// Package parser produces an abstract syntax tree from a scanner. It is a
// hand-written recursive-descent parser for the contract-language subset:
// imports, pragmas, contracts with inheritance, state variables, functions,
// modifiers, and the statement and expression forms the code generator
// lowers. Parse failures are reported as structured parser errors carrying
// the offending source location.
package parser

import (
	"fmt"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/scanner"
	"github.com/ethforge/solstack/solerr"
)

// Parser consumes tokens from a scanner and builds AST nodes.
type Parser struct {
	scanner *scanner.Scanner
	err     error

	// lastEnd is the end offset of the most recently consumed token, used to
	// close node source ranges.
	lastEnd int
}

// New creates a parser. A parser instance is single-use.
func New() *Parser {
	return &Parser{}
}

// Parse consumes the scanner's token stream and returns the source unit AST,
// or a parser error describing the first failure.
func (p *Parser) Parse(s *scanner.Scanner) (*ast.SourceUnit, error) {
	p.scanner = s
	p.err = nil

	start := s.Current().Start
	var nodes []ast.Node
	for p.err == nil && s.Current().Type != scanner.TokenEOF {
		switch {
		case p.isKeyword("import"):
			nodes = append(nodes, p.parseImportDirective())
		case p.isKeyword("pragma"):
			nodes = append(nodes, p.parsePragmaDirective())
		case p.isKeyword("contract"):
			nodes = append(nodes, p.parseContractDefinition())
		default:
			p.fail(fmt.Sprintf("expected import, pragma or contract definition, got '%s'", s.Current().Literal))
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	unit := &ast.SourceUnit{NodeBase: p.nodeBase(start), Nodes: nodes}
	return unit, nil
}

// location builds a source location from a byte range.
func (p *Parser) location(start, end int) ast.SourceLocation {
	return ast.SourceLocation{Start: start, End: end, SourceName: p.scanner.SourceName()}
}

// nodeBase builds node bookkeeping spanning from start to the end of the most
// recently consumed token.
func (p *Parser) nodeBase(start int) ast.NodeBase {
	return ast.NewNodeBase(p.location(start, p.lastEnd))
}

func (p *Parser) fail(msg string) {
	if p.err == nil {
		tok := p.scanner.Current()
		p.err = solerr.NewParserError(msg, p.location(tok.Start, tok.End))
	}
}

func (p *Parser) isKeyword(word string) bool {
	tok := p.scanner.Current()
	return tok.Type == scanner.TokenKeyword && tok.Literal == word
}

func (p *Parser) isPunctuator(lit string) bool {
	tok := p.scanner.Current()
	return tok.Type == scanner.TokenPunctuator && tok.Literal == lit
}

// advance consumes the current token unconditionally.
func (p *Parser) advance() scanner.Token {
	tok := p.scanner.Current()
	p.lastEnd = tok.End
	p.scanner.Next()
	return tok
}

// expectKeyword consumes the given keyword or records a parse error.
func (p *Parser) expectKeyword(word string) {
	if !p.isKeyword(word) {
		p.fail(fmt.Sprintf("expected '%s', got '%s'", word, p.scanner.Current().Literal))
		return
	}
	p.advance()
}

// expectPunctuator consumes the given punctuator or records a parse error.
func (p *Parser) expectPunctuator(lit string) {
	if !p.isPunctuator(lit) {
		p.fail(fmt.Sprintf("expected '%s', got '%s'", lit, p.scanner.Current().Literal))
		return
	}
	p.advance()
}

// expectIdentifier consumes and returns an identifier token's text.
func (p *Parser) expectIdentifier() string {
	tok := p.scanner.Current()
	if tok.Type != scanner.TokenIdentifier {
		p.fail(fmt.Sprintf("expected identifier, got '%s'", tok.Literal))
		return ""
	}
	p.advance()
	return tok.Literal
}

// parseImportDirective parses `import "name";`.
func (p *Parser) parseImportDirective() *ast.ImportDirective {
	start := p.scanner.Current().Start
	p.expectKeyword("import")
	tok := p.scanner.Current()
	if tok.Type != scanner.TokenString {
		p.fail("expected string literal after import")
		return &ast.ImportDirective{NodeBase: p.nodeBase(start)}
	}
	p.advance()
	p.expectPunctuator(";")
	return &ast.ImportDirective{NodeBase: p.nodeBase(start), Identifier: tok.Literal}
}

// parsePragmaDirective parses `pragma <tool> <constraint>;`. The constraint
// is kept for the driver to check as its token texts joined without
// whitespace.
func (p *Parser) parsePragmaDirective() *ast.PragmaDirective {
	start := p.scanner.Current().Start
	p.expectKeyword("pragma")
	tool := p.expectIdentifier()
	constraint := ""
	for p.err == nil && !p.isPunctuator(";") && p.scanner.Current().Type != scanner.TokenEOF {
		constraint += p.advance().Literal
	}
	p.expectPunctuator(";")
	return &ast.PragmaDirective{NodeBase: p.nodeBase(start), Tool: tool, Constraint: constraint}
}

// parseContractDefinition parses a contract with its inheritance list and
// members.
func (p *Parser) parseContractDefinition() *ast.ContractDefinition {
	start := p.scanner.Current().Start
	doc := p.scanner.CurrentCommentLiteral()
	p.expectKeyword("contract")
	name := p.expectIdentifier()

	contract := &ast.ContractDefinition{ContractName: name, DocString: doc}

	if p.isKeyword("is") {
		p.advance()
		for p.err == nil {
			baseStart := p.scanner.Current().Start
			baseName := p.expectIdentifier()
			base := &ast.Identifier{ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(baseStart)}, NameValue: baseName}
			contract.BaseContracts = append(contract.BaseContracts, &ast.InheritanceSpecifier{
				NodeBase: p.nodeBase(baseStart),
				BaseName: base,
			})
			if !p.isPunctuator(",") {
				break
			}
			p.advance()
		}
	}

	p.expectPunctuator("{")
	for p.err == nil && !p.isPunctuator("}") && p.scanner.Current().Type != scanner.TokenEOF {
		switch {
		case p.isKeyword("function") && p.scanner.Peek().Literal != "(":
			// `function (` introduces a function-typed state variable rather
			// than a function definition.
			contract.Members = append(contract.Members, p.parseFunctionDefinition())
		case p.isKeyword("modifier"):
			contract.Members = append(contract.Members, p.parseModifierDefinition())
		default:
			contract.Members = append(contract.Members, p.parseStateVariableDeclaration())
		}
	}
	p.expectPunctuator("}")
	contract.NodeBase = p.nodeBase(start)
	return contract
}

// parseFunctionDefinition parses a function header, its specifier list
// (visibility, constant, modifier invocations) and its body or terminating
// semicolon.
func (p *Parser) parseFunctionDefinition() *ast.FunctionDefinition {
	start := p.scanner.Current().Start
	doc := p.scanner.CurrentCommentLiteral()
	p.expectKeyword("function")
	name := p.expectIdentifier()

	fn := &ast.FunctionDefinition{FunctionName: name, DocString: doc, Visibility: ast.VisibilityPublic}
	fn.Parameters = p.parseParameterList(true)

	// Specifiers may appear in any order between the parameter list and the
	// body: visibility keywords, `constant`, `returns (...)` and modifier
	// invocations.
specifiers:
	for p.err == nil {
		switch {
		case p.isKeyword("constant"):
			p.advance()
			fn.Constant = true
		case p.isKeyword("public"):
			p.advance()
			fn.Visibility = ast.VisibilityPublic
		case p.isKeyword("private"):
			p.advance()
			fn.Visibility = ast.VisibilityPrivate
		case p.isKeyword("internal"):
			p.advance()
			fn.Visibility = ast.VisibilityInternal
		case p.isKeyword("external"):
			p.advance()
			fn.Visibility = ast.VisibilityExternal
		case p.isKeyword("returns"):
			p.advance()
			fn.ReturnParameters = p.parseParameterList(true)
		case p.scanner.Current().Type == scanner.TokenIdentifier:
			fn.Modifiers = append(fn.Modifiers, p.parseModifierInvocation())
		default:
			break specifiers
		}
	}
	if fn.ReturnParameters == nil {
		fn.ReturnParameters = &ast.ParameterList{NodeBase: ast.NewNodeBase(p.location(p.lastEnd, p.lastEnd))}
	}

	if p.isPunctuator(";") {
		p.advance()
	} else {
		fn.Body = p.parseBlock()
	}
	fn.NodeBase = p.nodeBase(start)
	return fn
}

// parseModifierInvocation parses `name` or `name(args)` in a function
// specifier list.
func (p *Parser) parseModifierInvocation() *ast.ModifierInvocation {
	start := p.scanner.Current().Start
	name := p.expectIdentifier()
	inv := &ast.ModifierInvocation{
		ModifierName: &ast.Identifier{ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)}, NameValue: name},
	}
	if p.isPunctuator("(") {
		p.advance()
		for p.err == nil && !p.isPunctuator(")") {
			inv.Arguments = append(inv.Arguments, p.parseExpression())
			if !p.isPunctuator(",") {
				break
			}
			p.advance()
		}
		p.expectPunctuator(")")
	}
	inv.NodeBase = p.nodeBase(start)
	return inv
}

// parseModifierDefinition parses `modifier name(params)? { ... }`.
func (p *Parser) parseModifierDefinition() *ast.ModifierDefinition {
	start := p.scanner.Current().Start
	doc := p.scanner.CurrentCommentLiteral()
	p.expectKeyword("modifier")
	name := p.expectIdentifier()
	mod := &ast.ModifierDefinition{ModifierName: name, DocString: doc}
	if p.isPunctuator("(") {
		mod.Parameters = p.parseParameterList(true)
	} else {
		mod.Parameters = &ast.ParameterList{NodeBase: ast.NewNodeBase(p.location(p.lastEnd, p.lastEnd))}
	}
	mod.Body = p.parseBlock()
	mod.NodeBase = p.nodeBase(start)
	return mod
}

// parseParameterList parses `(type name?, ...)`. Names are optional when
// allowAnonymous is set (return parameter lists frequently omit them).
func (p *Parser) parseParameterList(allowAnonymous bool) *ast.ParameterList {
	start := p.scanner.Current().Start
	p.expectPunctuator("(")
	list := &ast.ParameterList{}
	for p.err == nil && !p.isPunctuator(")") {
		declStart := p.scanner.Current().Start
		typeName := p.parseTypeName()
		paramName := ""
		if p.scanner.Current().Type == scanner.TokenIdentifier {
			paramName = p.advance().Literal
		} else if !allowAnonymous {
			p.fail("expected parameter name")
		}
		list.Parameters = append(list.Parameters, &ast.VariableDeclaration{
			NodeBase:     p.nodeBase(declStart),
			VariableName: paramName,
			TypeName:     typeName,
		})
		if !p.isPunctuator(",") {
			break
		}
		p.advance()
	}
	p.expectPunctuator(")")
	list.NodeBase = p.nodeBase(start)
	return list
}

// parseTypeName parses an elementary type keyword, a user-defined type name
// or a function type.
func (p *Parser) parseTypeName() *ast.TypeName {
	start := p.scanner.Current().Start
	tok := p.scanner.Current()

	if p.isKeyword("function") {
		return p.parseFunctionTypeName()
	}
	if tok.Type == scanner.TokenIdentifier {
		p.advance()
		if ast.ElementaryTypeByName(tok.Literal) != nil {
			return &ast.TypeName{NodeBase: p.nodeBase(start), Name: tok.Literal, Elementary: true}
		}
		return &ast.TypeName{NodeBase: p.nodeBase(start), Name: tok.Literal}
	}
	p.fail(fmt.Sprintf("expected type name, got '%s'", tok.Literal))
	return &ast.TypeName{NodeBase: p.nodeBase(start)}
}

// parseFunctionTypeName parses `function (types) [internal|external]
// [returns (types)]`.
func (p *Parser) parseFunctionTypeName() *ast.TypeName {
	start := p.scanner.Current().Start
	p.expectKeyword("function")
	params := p.parseParameterList(true)
	if p.isKeyword("internal") || p.isKeyword("external") {
		p.advance()
	}
	var returns *ast.ParameterList
	if p.isKeyword("returns") {
		p.advance()
		returns = p.parseParameterList(true)
	} else {
		returns = &ast.ParameterList{NodeBase: ast.NewNodeBase(p.location(p.lastEnd, p.lastEnd))}
	}
	return &ast.TypeName{
		NodeBase:               p.nodeBase(start),
		Name:                   "function",
		FunctionTypeParameters: params,
		FunctionTypeReturns:    returns,
	}
}

// parseStateVariableDeclaration parses `type [specifiers] name [= value];`
// inside a contract body.
func (p *Parser) parseStateVariableDeclaration() *ast.VariableDeclaration {
	start := p.scanner.Current().Start
	typeName := p.parseTypeName()
	decl := &ast.VariableDeclaration{TypeName: typeName}
variableSpecifiers:
	for p.err == nil {
		switch {
		case p.isKeyword("constant"):
			p.advance()
			decl.Mutability = ast.MutabilityConstant
		case p.isKeyword("immutable"):
			p.advance()
			decl.Mutability = ast.MutabilityImmutable
		case p.isKeyword("public"), p.isKeyword("private"), p.isKeyword("internal"):
			p.advance()
		default:
			break variableSpecifiers
		}
	}
	decl.VariableName = p.expectIdentifier()
	if p.isPunctuator("=") {
		p.advance()
		decl.Value = p.parseExpression()
	}
	p.expectPunctuator(";")
	decl.NodeBase = p.nodeBase(start)
	return decl
}

// parseBlock parses `{ statement* }`.
func (p *Parser) parseBlock() *ast.Block {
	start := p.scanner.Current().Start
	p.expectPunctuator("{")
	block := &ast.Block{}
	for p.err == nil && !p.isPunctuator("}") && p.scanner.Current().Type != scanner.TokenEOF {
		block.Statements = append(block.Statements, p.parseStatement())
	}
	p.expectPunctuator("}")
	block.NodeBase = p.nodeBase(start)
	return block
}

// parseStatement parses a single statement.
func (p *Parser) parseStatement() ast.Statement {
	start := p.scanner.Current().Start
	switch {
	case p.isPunctuator("{"):
		return p.parseBlock()

	case p.isKeyword("if"):
		p.advance()
		p.expectPunctuator("(")
		condition := p.parseExpression()
		p.expectPunctuator(")")
		trueBody := p.parseStatement()
		stmt := &ast.IfStatement{Condition: condition, TrueBody: trueBody}
		if p.isKeyword("else") {
			p.advance()
			stmt.FalseBody = p.parseStatement()
		}
		stmt.NodeBase = p.nodeBase(start)
		return stmt

	case p.isKeyword("while"):
		p.advance()
		p.expectPunctuator("(")
		condition := p.parseExpression()
		p.expectPunctuator(")")
		body := p.parseStatement()
		return &ast.WhileStatement{NodeBase: p.nodeBase(start), Condition: condition, Body: body}

	case p.isKeyword("return"):
		p.advance()
		stmt := &ast.ReturnStatement{}
		if !p.isPunctuator(";") {
			stmt.Expression = p.parseExpression()
		}
		p.expectPunctuator(";")
		stmt.NodeBase = p.nodeBase(start)
		return stmt

	case p.isKeyword("assembly"):
		p.advance()
		return p.parseInlineAssembly(start)

	case p.scanner.Current().Type == scanner.TokenIdentifier && p.scanner.Current().Literal == "_":
		// Modifier body placeholder. The trailing semicolon is optional in
		// the historical grammar.
		p.advance()
		if p.isPunctuator(";") {
			p.advance()
		}
		return &ast.PlaceholderStatement{NodeBase: p.nodeBase(start)}

	case p.startsVariableDeclaration():
		return p.parseVariableDeclarationStatement()

	default:
		expr := p.parseExpression()
		p.expectPunctuator(";")
		return &ast.ExpressionStatement{NodeBase: p.nodeBase(start), Expression: expr}
	}
}

// startsVariableDeclaration decides whether the current position begins a
// local variable declaration: `var`, a function type, an elementary type
// keyword, or a user-defined type name directly followed by an identifier.
func (p *Parser) startsVariableDeclaration() bool {
	if p.isKeyword("var") || p.isKeyword("function") {
		return true
	}
	tok := p.scanner.Current()
	if tok.Type != scanner.TokenIdentifier {
		return false
	}
	if ast.ElementaryTypeByName(tok.Literal) != nil {
		// An elementary keyword followed by `(` is a type conversion, not a
		// declaration.
		return p.scanner.Peek().Literal != "("
	}
	return p.scanner.Peek().Type == scanner.TokenIdentifier
}

// parseVariableDeclarationStatement parses `type name [= value];` or
// `var name = value;`.
func (p *Parser) parseVariableDeclarationStatement() ast.Statement {
	start := p.scanner.Current().Start
	var typeName *ast.TypeName
	if p.isKeyword("var") {
		p.advance()
	} else {
		typeName = p.parseTypeName()
	}
	decl := &ast.VariableDeclaration{TypeName: typeName}
	decl.VariableName = p.expectIdentifier()
	if p.isPunctuator("=") {
		p.advance()
		decl.Value = p.parseExpression()
	}
	p.expectPunctuator(";")
	decl.NodeBase = p.nodeBase(start)
	return &ast.VariableDeclarationStatement{NodeBase: p.nodeBase(start), Declaration: decl}
}

// parseInlineAssembly captures the raw text of an `assembly { ... }` block
// without interpreting it.
func (p *Parser) parseInlineAssembly(start int) ast.Statement {
	p.expectPunctuator("{")
	depth := 1
	var body string
	for p.err == nil && depth > 0 && p.scanner.Current().Type != scanner.TokenEOF {
		tok := p.scanner.Current()
		if tok.Type == scanner.TokenPunctuator && tok.Literal == "{" {
			depth++
		}
		if tok.Type == scanner.TokenPunctuator && tok.Literal == "}" {
			depth--
			if depth == 0 {
				break
			}
		}
		if body != "" {
			body += " "
		}
		body += tok.Literal
		p.advance()
	}
	p.expectPunctuator("}")
	return &ast.InlineAssemblyStatement{NodeBase: p.nodeBase(start), Body: body}
}
