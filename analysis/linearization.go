package analysis

import (
	"fmt"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/solerr"
)

// linearizeInheritance computes the C3 linearization of a contract's
// inheritance graph: the contract itself first, followed by its bases from
// most to least derived. Bases must already be linearized, which holds
// because contracts are processed in topological source order and a base is
// always declared before (or imported by) its user.
func linearizeInheritance(contract *ast.ContractDefinition, bases []*ast.ContractDefinition) ([]*ast.ContractDefinition, error) {
	// Merge input: the linearizations of the direct bases, reversed so that
	// the most derived base wins, plus the direct base list itself.
	var toMerge [][]*ast.ContractDefinition
	for i := len(bases) - 1; i >= 0; i-- {
		base := bases[i]
		chain := base.LinearizedBases
		if len(chain) == 0 {
			chain = []*ast.ContractDefinition{base}
		}
		toMerge = append(toMerge, append([]*ast.ContractDefinition{}, chain...))
	}
	if len(bases) > 0 {
		direct := make([]*ast.ContractDefinition, len(bases))
		for i, base := range bases {
			direct[len(bases)-1-i] = base
		}
		toMerge = append(toMerge, direct)
	}

	result := []*ast.ContractDefinition{contract}
	for len(toMerge) > 0 {
		next := pickCandidate(toMerge)
		if next == nil {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("linearization of inheritance graph impossible for contract %s", contract.Name()),
				contract.Location())
		}
		result = append(result, next)
		// Remove the chosen contract from every list and drop empty lists.
		var remaining [][]*ast.ContractDefinition
		for _, list := range toMerge {
			var filtered []*ast.ContractDefinition
			for _, c := range list {
				if c != next {
					filtered = append(filtered, c)
				}
			}
			if len(filtered) > 0 {
				remaining = append(remaining, filtered)
			}
		}
		toMerge = remaining
	}
	return result, nil
}

// pickCandidate returns the first list head that appears in no other list's
// tail, or nil if the merge is stuck.
func pickCandidate(lists [][]*ast.ContractDefinition) *ast.ContractDefinition {
	for _, list := range lists {
		head := list[0]
		inTail := false
		for _, other := range lists {
			for _, c := range other[1:] {
				if c == head {
					inTail = true
					break
				}
			}
			if inTail {
				break
			}
		}
		if !inTail {
			return head
		}
	}
	return nil
}
