package snapshot

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/mna/microvium/internal/il"
	"github.com/mna/microvium/internal/vm"
	"github.com/mna/microvium/lang/types"
	"github.com/sirupsen/logrus"
)

// Encode freezes info's settled module graph into a relocatable byte image
// (spec §4.3 "Given the VM's live graph, produce bytes"). log may be nil,
// in which case a new logger at warn level is used; Encode emits one
// debug-level line with the counts of globals, exports, allocations and
// strings, grounded on the teacher's convention of threading a *logrus.Logger
// through anything that does multi-step, potentially-slow work.
func Encode(info *vm.SnapshotInfo, log *logrus.Logger) ([]byte, error) {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}

	g := newGraph()

	// Step 1: assign every declared global an address, queuing its value
	// for the graph walk (spec §4.3 encoding step 1, "walk globals and GC
	// roots").
	globalNames := info.Unit.ModuleVariables
	globalAddrs := make([]uint16, len(globalNames))
	for i, name := range globalNames {
		v := info.Globals[name]
		addr, err := g.addrFor(v)
		if err != nil {
			return nil, err
		}
		globalAddrs[i] = addr
	}

	// Step 2: same for every export, in exportID order so the image is
	// deterministic across runs of the same program.
	exportIDs := make([]float64, 0, len(info.Exports))
	for id := range info.Exports {
		exportIDs = append(exportIDs, id)
	}
	sort.Float64s(exportIDs)
	exportAddrs := make([]uint16, len(exportIDs))
	for i, id := range exportIDs {
		addr, err := g.addrFor(info.Exports[id])
		if err != nil {
			return nil, err
		}
		exportAddrs[i] = addr
	}

	// Step 3: drain the BFS queue, discovering every allocation and
	// interned string transitively reachable from a global or an export.
	allocs, err := g.drain()
	if err != nil {
		return nil, err
	}
	log.Debugf("snapshot: %d globals, %d exports, %d allocations, %d strings",
		len(globalNames), len(exportIDs), len(allocs), len(g.strs))

	// Step 4: serialize each region to its own byte buffer.
	initialData := encodeU16Slice(globalAddrs)
	gcRoots := encodeU16Slice(exportAddrs)
	initialHeap, err := encodeHeap(allocs, g)
	if err != nil {
		return nil, err
	}
	exportTable := encodeExportTable(exportIDs, exportAddrs)
	importTable, err := encodeImportTable(info.Unit.ModuleImports, globalNames, g)
	if err != nil {
		return nil, err
	}
	stringTable := encodeStringTable(g.strs)
	shortCallTable := []byte{} // no host short-call optimization implemented

	regions := [numRegions][]byte{
		regionInitialData:    initialData,
		regionInitialHeap:    initialHeap,
		regionGCRoots:        gcRoots,
		regionImportTable:    importTable,
		regionExportTable:    exportTable,
		regionShortCallTable: shortCallTable,
		regionStringTable:    stringTable,
	}

	// Step 5: assemble the header, laying out each region back-to-back
	// after it, then back-patch bytecodeSize and the CRC once the whole
	// image is known.
	buf := make([]byte, headerSize)
	buf[0] = bytecodeVersion
	buf[1] = headerSize
	binary.LittleEndian.PutUint16(buf[6:8], requiredEngineVersion)
	binary.LittleEndian.PutUint32(buf[8:12], requiredFeatureFlags)
	binary.LittleEndian.PutUint16(buf[12:14], uint16(len(globalNames)))

	offset := headerSize
	for i, r := range regions {
		descOff := 14 + i*4
		binary.LittleEndian.PutUint16(buf[descOff:descOff+2], uint16(offset))
		binary.LittleEndian.PutUint16(buf[descOff+2:descOff+4], uint16(len(r)))
		buf = append(buf, r...)
		offset += len(r)
	}

	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(buf)))
	crc := crc16CCITT(buf[6:])
	binary.LittleEndian.PutUint16(buf[4:6], crc)

	return buf, nil
}

func encodeU16Slice(vals []uint16) []byte {
	buf := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], v)
	}
	return buf
}

func encodeHeap(allocs []vm.Value, g *graph) ([]byte, error) {
	var buf []byte
	for _, v := range allocs {
		switch t := v.(type) {
		case *vm.Object:
			var props [][2]uint16
			var iterErr error
			t.Iterate(func(key string, pv vm.Value) bool {
				keyAddr, err := g.romAddr(key)
				if err != nil {
					iterErr = err
					return false
				}
				valAddr, err := g.addrFor(pv)
				if err != nil {
					iterErr = err
					return false
				}
				props = append(props, [2]uint16{keyAddr, valAddr})
				return true
			})
			if iterErr != nil {
				return nil, iterErr
			}
			buf = append(buf, u16bytes(types.Header{TypeCode: types.AllocObject, Size: uint16(2 + 4*len(props))}.Encode())...)
			buf = append(buf, u16bytes(uint16(len(props)))...)
			for _, p := range props {
				buf = append(buf, u16bytes(p[0])...)
				buf = append(buf, u16bytes(p[1])...)
			}

		case *vm.Array:
			n := t.Len()
			buf = append(buf, u16bytes(types.Header{TypeCode: types.AllocArray, Size: uint16(2 + 2*n)}.Encode())...)
			buf = append(buf, u16bytes(uint16(n))...)
			for i := 0; i < n; i++ {
				addr, err := g.addrFor(t.Get(i))
				if err != nil {
					return nil, err
				}
				buf = append(buf, u16bytes(addr)...)
			}

		case *vm.Closure:
			n := t.CapturedLen()
			buf = append(buf, u16bytes(types.Header{TypeCode: types.AllocClosure, Size: uint16(4 + 2*n)}.Encode())...)
			buf = append(buf, u16bytes(uint16(t.FunctionID))...)
			buf = append(buf, u16bytes(uint16(n))...)
			for i := 0; i < n; i++ {
				addr, err := g.addrFor(t.CapturedValue(i))
				if err != nil {
					return nil, err
				}
				buf = append(buf, u16bytes(addr)...)
			}

		case vm.Number:
			buf = append(buf, u16bytes(types.Header{TypeCode: allocNumber, Size: 8}.Encode())...)
			bits := make([]byte, 8)
			binary.LittleEndian.PutUint64(bits, math.Float64bits(float64(t)))
			buf = append(buf, bits...)

		default:
			return nil, invalidf("unsupported allocation type %T", v)
		}
	}
	return buf, nil
}

func encodeExportTable(ids []float64, addrs []uint16) []byte {
	buf := make([]byte, 0, len(ids)*4)
	for i, id := range ids {
		buf = append(buf, u16bytes(uint16(int64(id)))...)
		buf = append(buf, u16bytes(addrs[i])...)
	}
	return buf
}

func encodeImportTable(imports []il.ModuleImport, globalNames []string, g *graph) ([]byte, error) {
	nameIndex := make(map[string]int, len(globalNames))
	for i, n := range globalNames {
		nameIndex[n] = i
	}
	var buf []byte
	for _, imp := range imports {
		specAddr, err := g.romAddr(imp.Specifier)
		if err != nil {
			return nil, err
		}
		globalIdx := uint16(0xFFFF)
		if i, ok := nameIndex[imp.NamespaceGlobal]; ok {
			globalIdx = uint16(i)
		}
		buf = append(buf, u16bytes(specAddr)...)
		buf = append(buf, u16bytes(globalIdx)...)
	}
	return buf, nil
}

func encodeStringTable(strs []string) []byte {
	var buf []byte
	for _, s := range strs {
		lenBuf := u16bytes(uint16(len(s)))
		buf = append(buf, lenBuf...)
		buf = append(buf, []byte(s)...)
		if len(s)%2 != 0 {
			buf = append(buf, 0)
		}
	}
	return buf
}

func u16bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}
