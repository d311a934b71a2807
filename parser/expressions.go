package parser

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/scanner"
	"github.com/shopspring/decimal"
)

// binaryPrecedence orders the infix operators; higher binds tighter.
var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, ">": 4, "<=": 4, ">=": 4,
	"|": 5,
	"^": 6,
	"&": 7,
	"+": 8, "-": 8,
	"*": 9, "/": 9, "%": 9,
	"**": 10,
}

// assignmentOperators are right-associative and parsed below every binary
// operator.
var assignmentOperators = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true,
}

// parseExpression parses a full expression including assignments.
func (p *Parser) parseExpression() ast.Expression {
	start := p.scanner.Current().Start
	lhs := p.parseBinaryExpression(1)
	tok := p.scanner.Current()
	if tok.Type == scanner.TokenPunctuator && assignmentOperators[tok.Literal] {
		p.advance()
		rhs := p.parseExpression()
		return &ast.Assignment{
			ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			LeftHandSide:   lhs,
			Operator:       tok.Literal,
			RightHandSide:  rhs,
		}
	}
	return lhs
}

// parseBinaryExpression is a precedence climber over binaryPrecedence.
func (p *Parser) parseBinaryExpression(minPrecedence int) ast.Expression {
	start := p.scanner.Current().Start
	lhs := p.parseUnaryExpression()
	for p.err == nil {
		tok := p.scanner.Current()
		precedence, ok := binaryPrecedence[tok.Literal]
		if tok.Type != scanner.TokenPunctuator || !ok || precedence < minPrecedence {
			break
		}
		p.advance()
		rhs := p.parseBinaryExpression(precedence + 1)
		lhs = &ast.BinaryOperation{
			ExpressionBase:  ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			LeftExpression:  lhs,
			Operator:        tok.Literal,
			RightExpression: rhs,
		}
	}
	return lhs
}

// parseUnaryExpression parses prefix operators.
func (p *Parser) parseUnaryExpression() ast.Expression {
	start := p.scanner.Current().Start
	tok := p.scanner.Current()
	if tok.Type == scanner.TokenPunctuator && (tok.Literal == "!" || tok.Literal == "-" || tok.Literal == "~") {
		p.advance()
		sub := p.parseUnaryExpression()
		return &ast.UnaryOperation{
			ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			Operator:       tok.Literal,
			SubExpression:  sub,
		}
	}
	return p.parsePostfixExpression()
}

// parsePostfixExpression parses a primary expression followed by any number
// of call, member-access and index-access suffixes.
func (p *Parser) parsePostfixExpression() ast.Expression {
	start := p.scanner.Current().Start
	expr := p.parsePrimaryExpression()
	for p.err == nil {
		switch {
		case p.isPunctuator("("):
			p.advance()
			call := &ast.FunctionCall{Expression: expr}
			for p.err == nil && !p.isPunctuator(")") {
				call.Arguments = append(call.Arguments, p.parseExpression())
				if !p.isPunctuator(",") {
					break
				}
				p.advance()
			}
			p.expectPunctuator(")")
			call.ExpressionBase = ast.ExpressionBase{NodeBase: p.nodeBase(start)}
			expr = call

		case p.isPunctuator("."):
			p.advance()
			member := p.expectIdentifier()
			expr = &ast.MemberAccess{
				ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
				Expression:     expr,
				MemberName:     member,
			}

		case p.isPunctuator("["):
			p.advance()
			index := p.parseExpression()
			p.expectPunctuator("]")
			expr = &ast.IndexAccess{
				ExpressionBase:  ast.ExpressionBase{NodeBase: p.nodeBase(start)},
				BaseExpression:  expr,
				IndexExpression: index,
			}

		default:
			return expr
		}
	}
	return expr
}

// parsePrimaryExpression parses literals, identifiers, parenthesized
// expressions, `new Contract` and elementary type conversions.
func (p *Parser) parsePrimaryExpression() ast.Expression {
	start := p.scanner.Current().Start
	tok := p.scanner.Current()

	switch {
	case tok.Type == scanner.TokenNumber:
		p.advance()
		value, err := parseNumberLiteral(tok.Literal)
		if err != nil {
			p.fail(fmt.Sprintf("invalid number literal '%s'", tok.Literal))
		}
		return &ast.Literal{
			ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			Kind:           ast.LiteralNumber,
			Text:           tok.Literal,
			Value:          value,
		}

	case tok.Type == scanner.TokenString:
		p.advance()
		return &ast.Literal{
			ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			Kind:           ast.LiteralString,
			Text:           tok.Literal,
		}

	case p.isKeyword("true") || p.isKeyword("false"):
		p.advance()
		return &ast.Literal{
			ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			Kind:           ast.LiteralBool,
			Text:           tok.Literal,
			BoolValue:      tok.Literal == "true",
		}

	case p.isKeyword("new"):
		p.advance()
		nameStart := p.scanner.Current().Start
		name := p.expectIdentifier()
		return &ast.NewExpression{
			ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			ContractName: &ast.Identifier{
				ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(nameStart)},
				NameValue:      name,
			},
		}

	case p.isPunctuator("("):
		p.advance()
		expr := p.parseExpression()
		p.expectPunctuator(")")
		return expr

	case tok.Type == scanner.TokenIdentifier:
		p.advance()
		if ast.ElementaryTypeByName(tok.Literal) != nil {
			return &ast.ElementaryTypeNameExpression{
				ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
				TypeName:       tok.Literal,
			}
		}
		return &ast.Identifier{
			ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)},
			NameValue:      tok.Literal,
		}

	default:
		p.fail(fmt.Sprintf("expected expression, got '%s'", tok.Literal))
		return &ast.Identifier{ExpressionBase: ast.ExpressionBase{NodeBase: p.nodeBase(start)}}
	}
}

// parseNumberLiteral converts a decimal or 0x-prefixed hexadecimal literal
// into an exact decimal value.
func parseNumberLiteral(text string) (decimal.Decimal, error) {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		value, ok := new(big.Int).SetString(text[2:], 16)
		if !ok {
			return decimal.Zero, fmt.Errorf("malformed hexadecimal literal")
		}
		return decimal.NewFromBigInt(value, 0), nil
	}
	return decimal.NewFromString(text)
}
