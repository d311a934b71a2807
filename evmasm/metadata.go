package evmasm

import (
	"bytes"

	"github.com/fxamacker/cbor"
)

// metadataHashPrefix is the CBOR framing that introduces the metadata hash
// trailer appended to runtime bytecode: a one-entry map whose "bzzr0" key
// holds a 32-byte hash.
var metadataHashPrefix = []byte{0xa1, 0x65, 'b', 'z', 'z', 'r', '0', 0x58, 0x20}

// AppendMetadataTrailer appends a CBOR-encoded metadata hash to the given
// bytecode and returns the result. The trailer marks the code with the given
// hash without affecting execution, since it sits past every reachable
// instruction.
func AppendMetadataTrailer(bytecode []byte, metadataHash []byte) []byte {
	trailer, err := cbor.Marshal(map[string][]byte{"bzzr0": metadataHash}, cbor.EncOptions{})
	if err != nil {
		// A one-entry map of fixed shape cannot fail to encode.
		panic(err)
	}
	return append(append([]byte{}, bytecode...), trailer...)
}

// ExtractMetadataHash locates the CBOR metadata trailer within bytecode and
// returns the embedded 32-byte hash, or nil if no trailer is present.
func ExtractMetadataHash(bytecode []byte) []byte {
	offset := bytes.LastIndex(bytecode, metadataHashPrefix)
	if offset == -1 {
		return nil
	}
	var metadata map[string][]byte
	if err := cbor.Unmarshal(bytecode[offset:], &metadata); err != nil {
		return nil
	}
	return metadata["bzzr0"]
}

// StripMetadataTrailer returns the bytecode with any metadata trailer
// removed. Bytecode without a trailer is returned unchanged.
func StripMetadataTrailer(bytecode []byte) []byte {
	offset := bytes.LastIndex(bytecode, metadataHashPrefix)
	if offset == -1 {
		return bytecode
	}
	return bytecode[:offset]
}
