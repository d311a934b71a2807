package codegen

import (
	"fmt"

	"github.com/ethforge/solstack/ast"
	"golang.org/x/exp/slices"
)

// Arity is the (input count, output count) pair characterizing a function
// signature at the IR level. It keys the internal dispatch map.
type Arity struct {
	Inputs  int
	Outputs int
}

// ArityFromFunctionType derives the arity of a function type.
func ArityFromFunctionType(t *ast.FunctionType) Arity {
	return Arity{Inputs: len(t.ParameterTypes), Outputs: len(t.ReturnTypes)}
}

// String renders the arity for use in generated function names.
func (a Arity) String() string {
	return fmt.Sprintf("in%d_out%d", a.Inputs, a.Outputs)
}

// functionLess orders function definitions by ascending ID with nil sorting
// before everything. The nil handling exists because dispatch sets are keyed
// on possibly-absent default targets; the tie-break is preserved exactly to
// keep emission order, and therefore bytecode, stable.
func functionLess(a, b *ast.FunctionDefinition) bool {
	if a != nil && b != nil {
		return a.ID() < b.ID()
	}
	return a == nil && b != nil
}

// FunctionSet is a set of function definitions ordered by ascending function
// ID, nil first. Insertion is idempotent.
type FunctionSet struct {
	functions []*ast.FunctionDefinition
}

// Insert adds a function to the set, keeping order. Re-inserting an existing
// member is a no-op.
func (s *FunctionSet) Insert(fn *ast.FunctionDefinition) {
	index, found := slices.BinarySearchFunc(s.functions, fn, func(a, b *ast.FunctionDefinition) int {
		if a == b {
			return 0
		}
		if functionLess(a, b) {
			return -1
		}
		if functionLess(b, a) {
			return 1
		}
		return 0
	})
	if found {
		return
	}
	s.functions = slices.Insert(s.functions, index, fn)
}

// Empty returns a boolean indicating whether the set holds no functions.
func (s *FunctionSet) Empty() bool {
	return len(s.functions) == 0
}

// Len returns the number of members.
func (s *FunctionSet) Len() int {
	return len(s.functions)
}

// PopFront removes and returns the smallest member. The set must not be
// empty.
func (s *FunctionSet) PopFront() *ast.FunctionDefinition {
	fn := s.functions[0]
	s.functions = s.functions[1:]
	return fn
}

// Members returns the members in order.
func (s *FunctionSet) Members() []*ast.FunctionDefinition {
	return s.functions
}

// InternalDispatchMap maps an arity to the ordered set of functions callable
// through an internal function pointer of that shape. A key with an empty
// set is meaningful: it records that a call-through-pointer site of that
// arity exists even when no candidate was ever assigned.
type InternalDispatchMap map[Arity]*FunctionSet

// SortedArities returns the map's keys in deterministic order.
func (m InternalDispatchMap) SortedArities() []Arity {
	arities := make([]Arity, 0, len(m))
	for arity := range m {
		arities = append(arities, arity)
	}
	slices.SortFunc(arities, func(a, b Arity) int {
		if a.Inputs != b.Inputs {
			return a.Inputs - b.Inputs
		}
		return a.Outputs - b.Outputs
	})
	return arities
}
