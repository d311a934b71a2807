package ast

import "fmt"

// SourceLocation describes a half-open byte range [Start, End) within a named
// source unit. It is attached to every AST node and carried by structured
// compiler errors so that positions can later be translated to line/column
// pairs by the owning scanner.
type SourceLocation struct {
	// Start is the byte offset of the first character covered by the location.
	Start int

	// End is the byte offset one past the last character covered.
	End int

	// SourceName is the name of the source unit the offsets refer to.
	SourceName string
}

// IsEmpty returns a boolean indicating whether the location carries no range
// information at all.
func (l SourceLocation) IsEmpty() bool {
	return l.Start == 0 && l.End == 0 && l.SourceName == ""
}

// String returns a compact human-readable rendering of the location.
func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d-%d", l.SourceName, l.Start, l.End)
}
