// Package snapshot implements the Snapshot Encoder/Decoder (spec §4.3): it
// freezes a VM's settled module-initialization graph (internal/vm.
// SnapshotInfo) into a single relocatable byte image, and can later parse
// that image back into an inspectable region map without re-running any
// script. Grounded on the teacher's lang/compiler assembler/disassembler
// pairing (asm.go/Dasm in lang/compiler/asm.go) for the general shape of
// "one package owns both directions of a binary format," generalized to
// this package's fixed-header-plus-region-table layout since nenuphar's
// own bytecode has no snapshot concept to begin with. The logical-address
// and allocation-header bit layouts are not reinvented here: both come
// straight from lang/types, the package that already owns the wire model
// shared across the compiler/VM pipeline.
package snapshot

import (
	"fmt"

	"github.com/mna/microvium/lang/types"
)

// bytecodeVersion is the single version this encoder ever produces; Decode
// rejects anything else (spec §4.3 "bytecodeVersion mismatch").
const bytecodeVersion uint8 = 1

// requiredEngineVersion is the minimum host engine version a snapshot
// declares it needs. This package has exactly one engine version to offer,
// so Encode always writes it and Decode always requires it.
const requiredEngineVersion uint16 = 1

// requiredFeatureFlags is a bitmask of optional bytecode features a
// snapshot depends on. None are defined yet; Encode always writes 0 and
// Decode rejects any bit it doesn't recognize (spec §4.3
// "requiredFeatureFlags mismatch").
const requiredFeatureFlags uint32 = 0

// headerSize is the fixed byte length of the header: 14 scalar bytes
// (version, headerSize, bytecodeSize, expectedCRC, requiredEngineVersion,
// requiredFeatureFlags, globalVariableCount) followed by 7 region
// descriptors of 4 bytes each (offset, size).
const headerSize = 14 + numRegions*4

// region indices, in the order their descriptors appear in the header.
const (
	regionInitialData = iota
	regionInitialHeap
	regionGCRoots
	regionImportTable
	regionExportTable
	regionShortCallTable
	regionStringTable
	numRegions
)

var regionNames = [numRegions]string{
	regionInitialData:    "initialData",
	regionInitialHeap:    "initialHeap",
	regionGCRoots:        "gcRoots",
	regionImportTable:    "importTable",
	regionExportTable:    "exportTable",
	regionShortCallTable: "shortCallTable",
	regionStringTable:    "stringTable",
}

// The GC heap region holds Object/Array/Closure allocations, addressed via
// types.SectionGCHeap. The string table lives in bytecode-resident ROM,
// addressed via types.SectionPgmP, past the well-known prefix
// types.EncodeWellKnown reserves there. Declared globals and exports are
// stored by value in their own regions, never referenced through
// types.SectionDataP -- nothing in this image points *at* a global, so
// that section tag has no user here (spec §4.3: globals are a flat array
// of logical addresses, not an address space of their own).

// allocNumber extends lang/types.AllocationKind with a heap-boxed IEEE-754
// float, for a Number value that falls outside both the inline-integer
// fast path (types.EncodeInlineInt's signed 14-bit range) and the
// well-known NaN/-0 singletons. lang/types only names the five allocation
// shapes the compiler ever materializes directly (object/array/string/
// function/closure); a boxed number is purely a VM/snapshot runtime
// concern, so its tag is assigned locally rather than widening that
// shared enum for a case the compiler itself never produces.
const allocNumber types.AllocationKind = 5

// maxLogicalOffset bounds the 14-bit offset payload of a logical address
// (types.EncodeLogicalAddress panics above it); the graph walker checks
// against it before an index could ever grow that large.
const maxLogicalOffset = 0x3FFF

// romReservedOffsets is how many PGM_P offsets types.EncodeWellKnown
// reserves (one per WellKnown* constant); string table indices are
// shifted past this prefix so a string address never collides with a
// well-known one.
const romReservedOffsets = int(types.WellKnownNegZero) + 1

func allocKindName(k types.AllocationKind) string {
	if k == allocNumber {
		return "number"
	}
	return k.String()
}

// InvalidBytecode is returned by Decode when data fails a structural or
// integrity check (spec §4.3 "Decoding... rejects a corrupted image with a
// typed error rather than misinterpreting it").
type InvalidBytecode struct {
	Reason string
}

func (e *InvalidBytecode) Error() string { return fmt.Sprintf("invalid bytecode: %s", e.Reason) }

func invalidf(format string, args ...any) error {
	return &InvalidBytecode{Reason: fmt.Sprintf(format, args...)}
}
