// Package analysis implements the semantic passes that run between parsing
// and code generation: declaration registration, name and type resolution,
// and type-requirement checking. The passes operate on contracts in
// topological source order and share a global context holding the built-in
// declarations and the contract currently being analyzed.
package analysis

import "github.com/ethforge/solstack/ast"

// GlobalContext owns the built-in declarations (magic globals and free
// functions) and a movable "current contract" frame. The synthetic `this` and
// `super` declarations are bound to the current contract and swapped into the
// global scope as resolution moves from contract to contract.
type GlobalContext struct {
	magicVariables  []*ast.MagicVariableDeclaration
	currentContract *ast.ContractDefinition

	// thisPointers and superPointers cache the synthetic declarations per
	// contract so that repeated activation of the same contract hands out
	// identical declaration pointers.
	thisPointers  map[*ast.ContractDefinition]*ast.MagicVariableDeclaration
	superPointers map[*ast.ContractDefinition]*ast.MagicVariableDeclaration
}

// NewGlobalContext creates a context populated with the built-in
// declarations of the language.
func NewGlobalContext() *GlobalContext {
	g := &GlobalContext{
		thisPointers:  make(map[*ast.ContractDefinition]*ast.MagicVariableDeclaration),
		superPointers: make(map[*ast.ContractDefinition]*ast.MagicVariableDeclaration),
	}
	g.magicVariables = []*ast.MagicVariableDeclaration{
		ast.NewMagicVariableDeclaration("msg", &ast.MagicType{Kind: "msg", Members: map[string]ast.Type{
			"sender": &ast.AddressType{},
			"value":  ast.UInt256,
			"data":   &ast.StringType{},
		}}),
		ast.NewMagicVariableDeclaration("tx", &ast.MagicType{Kind: "tx", Members: map[string]ast.Type{
			"origin":   &ast.AddressType{},
			"gasprice": ast.UInt256,
		}}),
		ast.NewMagicVariableDeclaration("block", &ast.MagicType{Kind: "block", Members: map[string]ast.Type{
			"coinbase":  &ast.AddressType{},
			"timestamp": ast.UInt256,
			"number":    ast.UInt256,
		}}),
		ast.NewMagicVariableDeclaration("suicide", &ast.FunctionType{
			ParameterTypes: []ast.Type{&ast.AddressType{}},
		}),
		ast.NewMagicVariableDeclaration("sha3", &ast.FunctionType{
			ParameterTypes: []ast.Type{&ast.FixedBytesType{Bytes: 32}},
			ReturnTypes:    []ast.Type{&ast.FixedBytesType{Bytes: 32}},
			Constant:       true,
		}),
	}
	return g
}

// Declarations returns the built-in declarations to seed the global scope
// with.
func (g *GlobalContext) Declarations() []ast.Declaration {
	decls := make([]ast.Declaration, 0, len(g.magicVariables))
	for _, m := range g.magicVariables {
		decls = append(decls, m)
	}
	return decls
}

// SetCurrentContract moves the current-contract frame. Exactly one contract
// is active while its members are being resolved.
func (g *GlobalContext) SetCurrentContract(contract *ast.ContractDefinition) {
	g.currentContract = contract
}

// CurrentContract returns the active contract frame, or nil.
func (g *GlobalContext) CurrentContract() *ast.ContractDefinition {
	return g.currentContract
}

// CurrentThis returns the synthetic `this` declaration bound to the current
// contract.
func (g *GlobalContext) CurrentThis() *ast.MagicVariableDeclaration {
	if d, ok := g.thisPointers[g.currentContract]; ok {
		return d
	}
	d := ast.NewMagicVariableDeclaration("this", &ast.ContractType{Contract: g.currentContract})
	g.thisPointers[g.currentContract] = d
	return d
}

// CurrentSuper returns the synthetic `super` declaration bound to the
// current contract.
func (g *GlobalContext) CurrentSuper() *ast.MagicVariableDeclaration {
	if d, ok := g.superPointers[g.currentContract]; ok {
		return d
	}
	d := ast.NewMagicVariableDeclaration("super", &ast.ContractType{Contract: g.currentContract, Super: true})
	g.superPointers[g.currentContract] = d
	return d
}

// Reset clears the frame and the built-in declarations, detaching any cached
// synthetic declarations.
func (g *GlobalContext) Reset() {
	g.currentContract = nil
	g.magicVariables = nil
	g.thisPointers = make(map[*ast.ContractDefinition]*ast.MagicVariableDeclaration)
	g.superPointers = make(map[*ast.ContractDefinition]*ast.MagicVariableDeclaration)
}
