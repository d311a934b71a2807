package evmasm

import (
	"encoding/hex"

	"github.com/crytic/medusa-geth/common"
)

// LinkerObject is a byte sequence plus a list of unresolved link references:
// symbolic placeholders for library addresses, keyed by the byte offset of
// the 20-byte hole they occupy. An object is sealed, and therefore safe to
// hash, once its link-reference list is empty.
type LinkerObject struct {
	// Bytecode is the (possibly unlinked) byte sequence.
	Bytecode []byte

	// LinkReferences maps byte offsets to the symbolic library names whose
	// addresses belong there.
	LinkReferences map[int]string
}

// IsEmpty returns a boolean indicating whether the object holds no bytecode
// at all.
func (o *LinkerObject) IsEmpty() bool {
	return len(o.Bytecode) == 0
}

// Sealed returns a boolean indicating whether every link reference has been
// resolved. Only sealed objects have a defined content hash.
func (o *LinkerObject) Sealed() bool {
	return len(o.LinkReferences) == 0
}

// Link fills the placeholder holes whose library names appear in the given
// address map. References to unknown libraries are left in place.
func (o *LinkerObject) Link(libraryAddresses map[string]common.Address) {
	for offset, name := range o.LinkReferences {
		address, known := libraryAddresses[name]
		if !known {
			continue
		}
		copy(o.Bytecode[offset:offset+20], address.Bytes())
		delete(o.LinkReferences, offset)
	}
}

// Hex returns the bytecode as a hex string without a 0x prefix.
func (o *LinkerObject) Hex() string {
	return hex.EncodeToString(o.Bytecode)
}
