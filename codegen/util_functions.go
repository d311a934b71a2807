package codegen

import (
	"github.com/ethforge/solstack/evmasm"
)

// UtilFunctions generates the reusable low-level routines shared by lowered
// code: revert and panic stubs and memory allocation. Instances are cheap
// views over the owning context's collector, so requesting the same routine
// through different instances (or through ABIFunctions) yields one copy.
type UtilFunctions struct {
	ctx *IRGenerationContext
}

// PanicFunction returns the entry tag of the routine that aborts execution
// on an invariant violation, e.g. a dispatch call with no matching target.
func (u UtilFunctions) PanicFunction() evmasm.AssemblyItem {
	return u.ctx.CreateFunction("panic_error", func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem {
		return []evmasm.AssemblyItem{
			entry,
			evmasm.NewOperation(evmasm.INVALID),
		}
	})
}

// RevertFunction returns the entry tag of the routine that reverts with no
// return data, storing the given reason first when revert strings are in
// debug mode. In debug mode each distinct reason yields its own routine;
// otherwise every reason shares one routine.
func (u UtilFunctions) RevertFunction(reason string) evmasm.AssemblyItem {
	name := "revert_error"
	if u.ctx.RevertStringsMode() == RevertStringsDebug && reason != "" {
		name = "revert_error_" + sanitizeName(reason)
	}
	return u.ctx.CreateFunction(name, func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem {
		items := []evmasm.AssemblyItem{entry}
		items = append(items, u.ctx.RevertReasonIfDebug(reason)...)
		items = append(items,
			evmasm.NewPushUint(0),
			evmasm.NewPushUint(0),
			evmasm.NewOperation(evmasm.REVERT),
		)
		return items
	})
}

// AllocateMemoryFunction returns the entry tag of the bump allocator
// routine. Stack in: [return address, size]; stack out: [pointer].
func (u UtilFunctions) AllocateMemoryFunction() evmasm.AssemblyItem {
	return u.ctx.CreateFunction("allocate_memory", func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem {
		return []evmasm.AssemblyItem{
			entry,
			// pointer = mload(0x40); mstore(0x40, pointer + size)
			evmasm.NewPushUint(64),
			evmasm.NewOperation(evmasm.MLOAD),  // [ret, size, ptr]
			evmasm.NewOperation(evmasm.DUP1),   // [ret, size, ptr, ptr]
			evmasm.NewOperation(evmasm.SWAP2),  // [ret, ptr, ptr, size]
			evmasm.NewOperation(evmasm.ADD),    // [ret, ptr, ptr+size]
			evmasm.NewPushUint(64),
			evmasm.NewOperation(evmasm.MSTORE), // [ret, ptr]
			evmasm.NewOperation(evmasm.SWAP1),
			evmasm.NewOperation(evmasm.JUMP),
		}
	})
}

// ABIFunctions generates the calldata encoding and decoding helpers used by
// the external dispatcher. It shares the collector with UtilFunctions so the
// helpers are emitted once per contract.
type ABIFunctions struct {
	ctx *IRGenerationContext
}

// DecodeWordFunction returns the entry tag of the routine loading one
// 32-byte word from calldata. Stack in: [return address, calldata offset];
// stack out: [word].
func (a ABIFunctions) DecodeWordFunction() evmasm.AssemblyItem {
	return a.ctx.CreateFunction("abi_decode_word", func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem {
		return []evmasm.AssemblyItem{
			entry,
			evmasm.NewOperation(evmasm.CALLDATALOAD), // [ret, word]
			evmasm.NewOperation(evmasm.SWAP1),
			evmasm.NewOperation(evmasm.JUMP),
		}
	})
}

// EncodeWordFunction returns the entry tag of the routine storing one
// 32-byte return word at the start of scratch memory. Stack in:
// [return address, value]; stack out: [].
func (a ABIFunctions) EncodeWordFunction() evmasm.AssemblyItem {
	return a.ctx.CreateFunction("abi_encode_word", func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem {
		return []evmasm.AssemblyItem{
			entry,
			evmasm.NewPushUint(0),
			evmasm.NewOperation(evmasm.MSTORE), // [ret]
			evmasm.NewOperation(evmasm.JUMP),
		}
	})
}

// sanitizeName turns an arbitrary reason string into a name fragment.
func sanitizeName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s) && i < 32; i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
