package analysis

import "github.com/ethforge/solstack/ast"

// DeclarationContainer is a single scope of the declaration table: a mapping
// from names to declarations with a link to the enclosing scope. Functions
// may overload one another within a scope; any other same-name pairing is a
// conflict.
type DeclarationContainer struct {
	enclosing    *DeclarationContainer
	declarations map[string][]ast.Declaration
}

// NewDeclarationContainer creates a scope nested in the given enclosing
// scope; pass nil for the outermost (global) scope.
func NewDeclarationContainer(enclosing *DeclarationContainer) *DeclarationContainer {
	return &DeclarationContainer{
		enclosing:    enclosing,
		declarations: make(map[string][]ast.Declaration),
	}
}

// RegisterDeclaration adds a declaration under the given name (the
// declaration's own name when empty). When update is set, any previous
// declarations under the name are replaced, which is how the synthetic
// `this`/`super` pointers move between contracts. Returns false on a name
// conflict.
func (c *DeclarationContainer) RegisterDeclaration(decl ast.Declaration, name string, update bool) bool {
	if name == "" {
		name = decl.Name()
	}
	if name == "" {
		return true
	}
	if update {
		c.declarations[name] = []ast.Declaration{decl}
		return true
	}
	existing := c.declarations[name]
	if len(existing) > 0 {
		// Overloading is permitted only among functions.
		_, newIsFunction := decl.(*ast.FunctionDefinition)
		_, oldIsFunction := existing[0].(*ast.FunctionDefinition)
		if !newIsFunction || !oldIsFunction {
			return false
		}
	}
	for _, d := range existing {
		if d == decl {
			return true
		}
	}
	c.declarations[name] = append(existing, decl)
	return true
}

// ResolveName returns the declarations registered under the given name. When
// recursive is set, enclosing scopes are searched after a miss.
func (c *DeclarationContainer) ResolveName(name string, recursive bool) []ast.Declaration {
	if decls, ok := c.declarations[name]; ok {
		return decls
	}
	if recursive && c.enclosing != nil {
		return c.enclosing.ResolveName(name, true)
	}
	return nil
}

// Declarations returns the scope's own name table.
func (c *DeclarationContainer) Declarations() map[string][]ast.Declaration {
	return c.declarations
}
