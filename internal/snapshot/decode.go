package snapshot

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/mna/microvium/lang/types"
)

// Region describes one decoded region's extent and byte size, surfaced for
// inspection tooling (spec §4.3 "Decoding... produces a region map a tool
// can print").
type Region struct {
	Name   string
	Offset int
	Size   int
}

// Allocation is one decoded GC-heap entry, pretty-printable without
// re-running the script that produced it.
type Allocation struct {
	Index int
	Kind  string
	Text  string
}

// Mapping is Decode's result: the header fields, the region table, and the
// fully-walked set of heap allocations and interned strings.
type Mapping struct {
	BytecodeVersion       uint8
	RequiredEngineVersion uint16
	GlobalVariableCount   int

	Regions     [numRegions]Region
	Allocations []Allocation
	Strings     []string
	Globals     []uint16 // logical address per declared global, in order
	Exports     map[uint16]uint16
}

// String renders a region-by-region summary: header fields, each region's
// offset/size, and a dump of every global and export starting from its
// logical address (spec §4.3 decoding step 4, "pretty-print the
// region stack").
func (m *Mapping) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bytecodeVersion=%d requiredEngineVersion=%d globals=%d\n",
		m.BytecodeVersion, m.RequiredEngineVersion, m.GlobalVariableCount)
	for _, r := range m.Regions {
		fmt.Fprintf(&sb, "region %-14s offset=%-6d size=%d\n", r.Name, r.Offset, r.Size)
	}

	seen := bitset.New(uint(len(m.Allocations)))
	for i, addr := range m.Globals {
		fmt.Fprintf(&sb, "global[%d]: %s\n", i, m.describe(addr, seen))
	}
	for id, addr := range m.Exports {
		fmt.Fprintf(&sb, "export[%d]: %s\n", id, m.describe(addr, seen))
	}
	return sb.String()
}

// describe renders the value at addr. An allocation's pre-decoded text is
// printed the first time its index is reached and replaced by
// "(already printed)" afterwards (seen records the indexes printed so far);
// it does not recurse into the allocation's payload.
func (m *Mapping) describe(addr uint16, seen *bitset.BitSet) string {
	section, offset := types.DecodeLogicalAddress(addr)
	switch section {
	case types.SectionInt:
		if types.IsWellKnownAddress(addr) {
			return wellKnownName(offset)
		}
		return fmt.Sprintf("%d", types.DecodeInlineInt(offset))
	case types.SectionPgmP:
		if types.IsWellKnownAddress(addr) {
			return wellKnownName(offset)
		}
		idx := int(offset) - romReservedOffsets
		if idx >= 0 && idx < len(m.Strings) {
			return fmt.Sprintf("%q", m.Strings[idx])
		}
		return "<invalid string ref>"
	case types.SectionGCHeap:
		idx := int(offset)
		if idx < 0 || idx >= len(m.Allocations) {
			return "<invalid allocation ref>"
		}
		if seen.Test(uint(idx)) {
			return fmt.Sprintf("#%d (already printed)", idx)
		}
		seen.Set(uint(idx))
		return fmt.Sprintf("#%d %s", idx, m.Allocations[idx].Text)
	default:
		return "<invalid address>"
	}
}

func wellKnownName(offset uint16) string {
	switch offset {
	case types.WellKnownUndefined:
		return "undefined"
	case types.WellKnownNull:
		return "null"
	case types.WellKnownTrue:
		return "true"
	case types.WellKnownFalse:
		return "false"
	case types.WellKnownNaN:
		return "NaN"
	case types.WellKnownNegZero:
		return "-0"
	default:
		return "<invalid well-known>"
	}
}

// Decode parses data into a Mapping, validating the header's structural
// invariants and the CRC before trusting any region content (spec §4.3
// decoding steps 1-3: "check size/header/CRC, partition into regions,
// reconstruct the allocation table").
func Decode(data []byte) (*Mapping, error) {
	if len(data) < headerSize {
		return nil, invalidf("image is %d bytes, smaller than the %d-byte header", len(data), headerSize)
	}

	declaredHeaderSize := int(data[1])
	if declaredHeaderSize != headerSize {
		return nil, invalidf("header size %d does not match this decoder's %d", declaredHeaderSize, headerSize)
	}

	bytecodeSize := int(binary.LittleEndian.Uint16(data[2:4]))
	if bytecodeSize != len(data) {
		return nil, invalidf("bytecodeSize field says %d bytes, image is %d", bytecodeSize, len(data))
	}

	expectedCRC := binary.LittleEndian.Uint16(data[4:6])
	actualCRC := crc16CCITT(data[6:])
	if actualCRC != expectedCRC {
		return nil, invalidf("CRC mismatch: header says %#04x, computed %#04x", expectedCRC, actualCRC)
	}

	version := data[0]
	if version != bytecodeVersion {
		return nil, invalidf("bytecodeVersion %d unsupported, this decoder only accepts %d", version, bytecodeVersion)
	}

	engineVersion := binary.LittleEndian.Uint16(data[6:8])
	if engineVersion != requiredEngineVersion {
		return nil, invalidf("requiredEngineVersion %d unsupported, this decoder only offers %d", engineVersion, requiredEngineVersion)
	}

	featureFlags := binary.LittleEndian.Uint32(data[8:12])
	if featureFlags&^requiredFeatureFlags != 0 {
		return nil, invalidf("requiredFeatureFlags %#x includes unsupported bits", featureFlags)
	}

	globalCount := int(binary.LittleEndian.Uint16(data[12:14]))

	var regions [numRegions]Region
	for i := 0; i < numRegions; i++ {
		descOff := 14 + i*4
		off := int(binary.LittleEndian.Uint16(data[descOff : descOff+2]))
		size := int(binary.LittleEndian.Uint16(data[descOff+2 : descOff+4]))
		if off < headerSize || off+size > len(data) {
			return nil, invalidf("region %s extent [%d,%d) is out of bounds", regionNames[i], off, off+size)
		}
		regions[i] = Region{Name: regionNames[i], Offset: off, Size: size}
	}

	m := &Mapping{
		BytecodeVersion:       version,
		RequiredEngineVersion: engineVersion,
		GlobalVariableCount:   globalCount,
		Regions:               regions,
	}

	m.Strings = decodeStringTable(regionBytes(data, regions[regionStringTable]))
	m.Allocations = decodeHeap(regionBytes(data, regions[regionInitialHeap]), m.Strings)
	m.Globals = decodeU16Slice(regionBytes(data, regions[regionInitialData]))
	m.Exports = decodeExportTable(regionBytes(data, regions[regionExportTable]))

	return m, nil
}

func regionBytes(data []byte, r Region) []byte {
	return data[r.Offset : r.Offset+r.Size]
}

func decodeU16Slice(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return out
}

func decodeExportTable(b []byte) map[uint16]uint16 {
	out := make(map[uint16]uint16, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		id := binary.LittleEndian.Uint16(b[i : i+2])
		addr := binary.LittleEndian.Uint16(b[i+2 : i+4])
		out[id] = addr
	}
	return out
}

func decodeStringTable(b []byte) []string {
	var out []string
	for i := 0; i+2 <= len(b); {
		n := int(binary.LittleEndian.Uint16(b[i : i+2]))
		i += 2
		if i+n > len(b) {
			break
		}
		out = append(out, string(b[i:i+n]))
		i += n
		if n%2 != 0 {
			i++
		}
	}
	return out
}

func decodeHeap(b []byte, strs []string) []Allocation {
	var out []Allocation
	i := 0
	for i+2 <= len(b) {
		header := binary.LittleEndian.Uint16(b[i : i+2])
		i += 2
		h := types.DecodeHeader(header)
		idx := len(out)

		switch h.TypeCode {
		case types.AllocObject:
			if i+2 > len(b) {
				return out
			}
			propCount := int(binary.LittleEndian.Uint16(b[i : i+2]))
			i += 2
			var parts []string
			for p := 0; p < propCount && i+4 <= len(b); p++ {
				keyAddr := binary.LittleEndian.Uint16(b[i : i+2])
				valAddr := binary.LittleEndian.Uint16(b[i+2 : i+4])
				i += 4
				parts = append(parts, fmt.Sprintf("%s=@%#04x", addrLabel(keyAddr, strs), valAddr))
			}
			out = append(out, Allocation{Index: idx, Kind: allocKindName(h.TypeCode), Text: "{" + strings.Join(parts, ", ") + "}"})

		case types.AllocArray:
			if i+2 > len(b) {
				return out
			}
			n := int(binary.LittleEndian.Uint16(b[i : i+2]))
			i += 2
			var parts []string
			for e := 0; e < n && i+2 <= len(b); e++ {
				addr := binary.LittleEndian.Uint16(b[i : i+2])
				i += 2
				parts = append(parts, fmt.Sprintf("@%#04x", addr))
			}
			out = append(out, Allocation{Index: idx, Kind: allocKindName(h.TypeCode), Text: "[" + strings.Join(parts, ", ") + "]"})

		case types.AllocClosure:
			if i+4 > len(b) {
				return out
			}
			fnID := binary.LittleEndian.Uint16(b[i : i+2])
			n := int(binary.LittleEndian.Uint16(b[i+2 : i+4]))
			i += 4
			var parts []string
			for c := 0; c < n && i+2 <= len(b); c++ {
				addr := binary.LittleEndian.Uint16(b[i : i+2])
				i += 2
				parts = append(parts, fmt.Sprintf("@%#04x", addr))
			}
			out = append(out, Allocation{Index: idx, Kind: allocKindName(h.TypeCode),
				Text: fmt.Sprintf("function#%d captured=[%s]", fnID, strings.Join(parts, ", "))})

		case allocNumber:
			if i+8 > len(b) {
				return out
			}
			bits := binary.LittleEndian.Uint64(b[i : i+8])
			i += 8
			out = append(out, Allocation{Index: idx, Kind: allocKindName(allocNumber), Text: fmt.Sprintf("%v", math.Float64frombits(bits))})

		default:
			return out
		}
	}
	return out
}

func addrLabel(addr uint16, strs []string) string {
	section, offset := types.DecodeLogicalAddress(addr)
	if section == types.SectionPgmP && !types.IsWellKnownAddress(addr) {
		idx := int(offset) - romReservedOffsets
		if idx >= 0 && idx < len(strs) {
			return strs[idx]
		}
	}
	return fmt.Sprintf("@%#04x", addr)
}
