package evmasm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ItemType distinguishes the kinds of entries in an assembly stream.
type ItemType int

const (
	// UndefinedItem is the zero value, returned for lookups that fail.
	UndefinedItem ItemType = iota
	// Operation is a plain instruction.
	Operation
	// Push is an instruction pushing a constant value.
	Push
	// PushTag pushes the code offset a tag resolves to.
	PushTag
	// Tag marks a jump destination; its data is the tag identifier.
	Tag
	// PushData pushes the code offset of the auxiliary data segment.
	PushData
	// PushDataSize pushes the size of the auxiliary data segment.
	PushDataSize
	// PushProgramSize pushes the total size of the assembled code segment.
	PushProgramSize
	// PushLibraryAddress pushes a 20-byte placeholder recorded as a link
	// reference to be resolved by the linker.
	PushLibraryAddress
)

// AssemblyItem is a single entry of an assembly stream: an instruction, a
// push of a constant, a tag definition or one of the deferred-value pushes
// resolved at assembly time.
type AssemblyItem struct {
	// Type is the item kind.
	Type ItemType

	// Instruction is set for Operation items.
	Instruction Instruction

	// data carries the push constant for Push items and the tag identifier
	// for Tag and PushTag items.
	data *uint256.Int

	// LibraryName is the symbolic library name for PushLibraryAddress items.
	LibraryName string
}

// NewOperation creates a plain instruction item.
func NewOperation(instruction Instruction) AssemblyItem {
	return AssemblyItem{Type: Operation, Instruction: instruction}
}

// NewPush creates an item pushing the given constant.
func NewPush(value *uint256.Int) AssemblyItem {
	return AssemblyItem{Type: Push, data: value.Clone()}
}

// NewPushUint creates an item pushing a small constant.
func NewPushUint(value uint64) AssemblyItem {
	return AssemblyItem{Type: Push, data: uint256.NewInt(value)}
}

// Data returns the item's constant: the pushed value for Push items and the
// tag identifier for Tag and PushTag items.
func (item AssemblyItem) Data() *uint256.Int {
	if item.data == nil {
		return uint256.NewInt(0)
	}
	return item.data
}

// TagID returns the tag identifier for Tag and PushTag items.
func (item AssemblyItem) TagID() uint64 {
	return item.Data().Uint64()
}

// PushedBytes returns the minimal number of immediate bytes required to push
// the item's data, at least one.
func (item AssemblyItem) PushedBytes() int {
	n := (item.Data().BitLen() + 7) / 8
	if n == 0 {
		n = 1
	}
	return n
}

// String renders the item for assembly listings.
func (item AssemblyItem) String() string {
	switch item.Type {
	case Operation:
		return item.Instruction.Name()
	case Push:
		return fmt.Sprintf("PUSH 0x%s", item.Data().Hex()[2:])
	case PushTag:
		return fmt.Sprintf("PUSH [tag%d]", item.TagID())
	case Tag:
		return fmt.Sprintf("tag%d:", item.TagID())
	case PushData:
		return "PUSH [$]"
	case PushDataSize:
		return "PUSH #[$]"
	case PushProgramSize:
		return "PUSHSIZE"
	case PushLibraryAddress:
		return fmt.Sprintf("PUSHLIB \"%s\"", item.LibraryName)
	default:
		return "UNDEFINED"
	}
}
