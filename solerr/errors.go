// Package solerr defines the structured error taxonomy shared by the
// scanner, parser, resolver and compilation driver. Every error carries a
// human-readable message and, when one is known, the source location that
// triggered it.
package solerr

import (
	"fmt"

	"github.com/ethforge/solstack/ast"
)

// Kind partitions compiler errors into the categories surfaced to users.
type Kind int

const (
	// KindParserError covers malformed tokens and missing import targets.
	KindParserError Kind = iota
	// KindDeclarationError covers name clashes and unresolvable references.
	KindDeclarationError
	// KindTypeError covers type-requirement violations.
	KindTypeError
	// KindCompilerError covers driver misuse: querying before parse,
	// requesting unknown contracts or sources.
	KindCompilerError
	// KindInternalCompilerError covers invariant violations inside the
	// compiler itself.
	KindInternalCompilerError
)

// String returns the user-facing name of the error kind.
func (k Kind) String() string {
	switch k {
	case KindParserError:
		return "ParserError"
	case KindDeclarationError:
		return "DeclarationError"
	case KindTypeError:
		return "TypeError"
	case KindInternalCompilerError:
		return "InternalCompilerError"
	default:
		return "CompilerError"
	}
}

// Error is the structured compiler error. It satisfies the error interface
// and can be matched by kind with errors.As.
type Error struct {
	// Kind is the error category.
	Kind Kind

	// Message is the human-readable description.
	Message string

	// Location is the source range that triggered the error; may be empty
	// for errors without a position (e.g. driver misuse).
	Location ast.SourceLocation
}

// Error returns the formatted message, including the location when present.
func (e *Error) Error() string {
	if e.Location.IsEmpty() {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Location)
}

// NewParserError creates a parser error at the given location.
func NewParserError(msg string, loc ast.SourceLocation) *Error {
	return &Error{Kind: KindParserError, Message: msg, Location: loc}
}

// NewDeclarationError creates a declaration error at the given location.
func NewDeclarationError(msg string, loc ast.SourceLocation) *Error {
	return &Error{Kind: KindDeclarationError, Message: msg, Location: loc}
}

// NewTypeError creates a type error at the given location.
func NewTypeError(msg string, loc ast.SourceLocation) *Error {
	return &Error{Kind: KindTypeError, Message: msg, Location: loc}
}

// NewCompilerError creates a driver-misuse error.
func NewCompilerError(msg string) *Error {
	return &Error{Kind: KindCompilerError, Message: msg}
}

// NewInternalCompilerError creates an invariant-violation error. These
// indicate bugs in the compiler rather than in user code.
func NewInternalCompilerError(format string, args ...any) *Error {
	return &Error{Kind: KindInternalCompilerError, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a compiler error of the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}
