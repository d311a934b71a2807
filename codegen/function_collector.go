package codegen

import "github.com/ethforge/solstack/evmasm"

// collectedFunction is one reusable routine: its entry tag and the item
// fragment that implements it, beginning with the entry tag's definition.
type collectedFunction struct {
	entry evmasm.AssemblyItem
	items []evmasm.AssemblyItem
}

// FunctionCollector gathers the reusable routines produced during lowering,
// deduplicated by generated name. Routines are emitted in first-request
// order, which keeps emission deterministic regardless of how often a
// routine is requested. The collector is shared between the generation
// context and every helper generator derived from it.
type FunctionCollector struct {
	functions map[string]*collectedFunction
	order     []string
}

// NewFunctionCollector creates an empty collector.
func NewFunctionCollector() *FunctionCollector {
	return &FunctionCollector{functions: make(map[string]*collectedFunction)}
}

// CreateFunction returns the entry tag of the named routine, invoking the
// creator to build it on first request. The creator receives the entry tag
// so the fragment can define it; subsequent requests for the same name
// reuse the existing routine without calling the creator.
//
// The routine is registered before the creator runs so that recursive
// requests for the same name terminate.
func (c *FunctionCollector) CreateFunction(name string, newTag func() evmasm.AssemblyItem, creator func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem) evmasm.AssemblyItem {
	if existing, ok := c.functions[name]; ok {
		return existing.entry
	}
	fn := &collectedFunction{entry: newTag()}
	c.functions[name] = fn
	c.order = append(c.order, name)
	fn.items = creator(fn.entry)
	return fn.entry
}

// Contains returns a boolean indicating whether a routine of the given name
// has been requested.
func (c *FunctionCollector) Contains(name string) bool {
	_, ok := c.functions[name]
	return ok
}

// EntryTag returns the entry tag of the named routine. The second return
// value indicates whether the routine exists.
func (c *FunctionCollector) EntryTag(name string) (evmasm.AssemblyItem, bool) {
	fn, ok := c.functions[name]
	if !ok {
		return evmasm.AssemblyItem{}, false
	}
	return fn.entry, true
}

// Emit returns the concatenated item fragments of every collected routine in
// first-request order.
func (c *FunctionCollector) Emit() []evmasm.AssemblyItem {
	var items []evmasm.AssemblyItem
	for _, name := range c.order {
		items = append(items, c.functions[name].items...)
	}
	return items
}
