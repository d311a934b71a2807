package evmasm

import (
	"fmt"
	"strings"

	"github.com/ethforge/solstack/solerr"
	"github.com/holiman/uint256"
)

// Assembly is an append-only stream of assembly items plus an optional
// auxiliary data segment placed after the code. It assembles into a
// LinkerObject deterministically.
type Assembly struct {
	items []AssemblyItem

	// nextTagID dispenses tag identifiers, starting at 1 so that tag 0 can
	// never collide with the zero value of AssemblyItem.
	nextTagID uint64

	// data is the auxiliary data segment appended after the code, typically
	// the runtime or sub-object bytecode embedded in a creation object.
	data []byte

	// dataLinkReferences are link references within the data segment,
	// relative to the segment start.
	dataLinkReferences map[int]string
}

// NewAssembly creates an empty assembly stream.
func NewAssembly() *Assembly {
	return &Assembly{nextTagID: 0, dataLinkReferences: make(map[int]string)}
}

// NewTag reserves a fresh tag and returns its definition item. The returned
// item is appended where the tag's jump destination should live; PushTagFor
// references it.
func (a *Assembly) NewTag() AssemblyItem {
	a.nextTagID++
	return AssemblyItem{Type: Tag, data: uint256.NewInt(a.nextTagID)}
}

// PushTagFor returns an item pushing the code offset of the given tag.
func PushTagFor(tag AssemblyItem) AssemblyItem {
	return AssemblyItem{Type: PushTag, data: tag.Data().Clone()}
}

// Append adds an item to the stream.
func (a *Assembly) Append(item AssemblyItem) {
	a.items = append(a.items, item)
}

// AppendOperation adds a plain instruction.
func (a *Assembly) AppendOperation(instruction Instruction) {
	a.Append(NewOperation(instruction))
}

// AppendPush adds a push of the given constant.
func (a *Assembly) AppendPush(value *uint256.Int) {
	a.Append(NewPush(value))
}

// AppendPushUint adds a push of a small constant.
func (a *Assembly) AppendPushUint(value uint64) {
	a.Append(NewPushUint(value))
}

// AppendLibraryAddress adds a push of a 20-byte placeholder recorded as a
// link reference under the given symbolic name.
func (a *Assembly) AppendLibraryAddress(name string) {
	a.Append(AssemblyItem{Type: PushLibraryAddress, LibraryName: name})
}

// AppendItems adds a sequence of items to the stream.
func (a *Assembly) AppendItems(items []AssemblyItem) {
	a.items = append(a.items, items...)
}

// AppendData appends a blob to the auxiliary data segment together with its
// link references (relative to the blob start) and returns the blob's offset
// within the segment. The segment itself is addressed via PushData items.
func (a *Assembly) AppendData(data []byte, linkReferences map[int]string) int {
	offset := len(a.data)
	a.data = append(a.data, data...)
	for refOffset, name := range linkReferences {
		a.dataLinkReferences[offset+refOffset] = name
	}
	return offset
}

// Items returns the item stream.
func (a *Assembly) Items() []AssemblyItem {
	return a.items
}

// itemSize returns the assembled byte size of an item. Deferred-value pushes
// use a fixed two-byte immediate so that sizes are known before offsets are.
func itemSize(item AssemblyItem) int {
	switch item.Type {
	case Operation:
		return 1
	case Push:
		return 1 + item.PushedBytes()
	case PushTag, PushData, PushDataSize, PushProgramSize:
		return 3
	case Tag:
		return 1
	case PushLibraryAddress:
		return 21
	default:
		return 0
	}
}

// Assemble resolves tags and deferred values and produces the linkable
// bytecode object. Assembling the same stream twice yields byte-identical
// results.
func (a *Assembly) Assemble() (LinkerObject, error) {
	// First pass: lay out item offsets and record tag positions.
	tagPositions := make(map[uint64]int)
	codeSize := 0
	for _, item := range a.items {
		if item.Type == Tag {
			if _, exists := tagPositions[item.TagID()]; exists {
				return LinkerObject{}, solerr.NewInternalCompilerError("duplicate definition of tag %d", item.TagID())
			}
			tagPositions[item.TagID()] = codeSize
		}
		codeSize += itemSize(item)
	}
	dataOffset := codeSize

	// Second pass: emit bytes.
	object := LinkerObject{LinkReferences: make(map[int]string)}
	bytecode := make([]byte, 0, codeSize+len(a.data))
	appendPush2 := func(value int) {
		bytecode = append(bytecode, byte(PUSH2), byte(value>>8), byte(value))
	}
	for _, item := range a.items {
		switch item.Type {
		case Operation:
			bytecode = append(bytecode, byte(item.Instruction))
		case Push:
			n := item.PushedBytes()
			bytecode = append(bytecode, byte(PushInstruction(n)))
			value := item.Data().Bytes32()
			bytecode = append(bytecode, value[32-n:]...)
		case PushTag:
			position, defined := tagPositions[item.TagID()]
			if !defined {
				return LinkerObject{}, solerr.NewInternalCompilerError("push of undefined tag %d", item.TagID())
			}
			appendPush2(position)
		case Tag:
			bytecode = append(bytecode, byte(JUMPDEST))
		case PushData:
			appendPush2(dataOffset)
		case PushDataSize:
			appendPush2(len(a.data))
		case PushProgramSize:
			appendPush2(codeSize + len(a.data))
		case PushLibraryAddress:
			bytecode = append(bytecode, byte(PUSH20))
			object.LinkReferences[len(bytecode)] = item.LibraryName
			bytecode = append(bytecode, make([]byte, 20)...)
		default:
			return LinkerObject{}, solerr.NewInternalCompilerError("cannot assemble item of type %d", item.Type)
		}
	}

	// Append the data segment, shifting its link references into place.
	bytecode = append(bytecode, a.data...)
	for offset, name := range a.dataLinkReferences {
		object.LinkReferences[dataOffset+offset] = name
	}
	object.Bytecode = bytecode
	return object, nil
}

// String renders the item stream as an assembly listing.
func (a *Assembly) String() string {
	var b strings.Builder
	for _, item := range a.items {
		if item.Type == Tag {
			fmt.Fprintf(&b, "%s\n", item)
		} else {
			fmt.Fprintf(&b, "  %s\n", item)
		}
	}
	if len(a.data) > 0 {
		fmt.Fprintf(&b, ".data (%d bytes)\n", len(a.data))
	}
	return b.String()
}
