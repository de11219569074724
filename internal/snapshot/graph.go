package snapshot

import (
	"fmt"
	"math"

	"github.com/mna/microvium/internal/vm"
	"github.com/mna/microvium/lang/types"
)

// graph walks a VM's live value graph once, assigning every heap
// allocation a dense index (keyed by identity, via allocIndex) and
// interning every string it encounters. A cyclic object graph (an object
// referencing itself, directly or through an array) terminates because a
// value already present in allocIndex is never re-queued.
type graph struct {
	allocIndex map[vm.Value]int
	allocs     []vm.Value // allocIndex order

	strIndex map[string]int
	strs     []string // strIndex order

	queue []vm.Value
}

func newGraph() *graph {
	return &graph{
		allocIndex: make(map[vm.Value]int),
		strIndex:   make(map[string]int),
	}
}

// addrFor returns the logical address for v, registering it (and
// transitively queuing its children for walk) the first time it is seen.
// Integers within types.EncodeInlineInt's signed 14-bit range and the
// well-known singletons (spec §3: undefined, null, the two booleans, NaN,
// -0) never touch the heap; strings are interned into the ROM string
// table; everything else is a GC-heap allocation.
func (g *graph) addrFor(v vm.Value) (uint16, error) {
	switch t := v.(type) {
	case nil:
		return types.EncodeWellKnown(types.WellKnownUndefined), nil
	case vm.Undefined:
		return types.EncodeWellKnown(types.WellKnownUndefined), nil
	case vm.Null:
		return types.EncodeWellKnown(types.WellKnownNull), nil
	case vm.Bool:
		if t {
			return types.EncodeWellKnown(types.WellKnownTrue), nil
		}
		return types.EncodeWellKnown(types.WellKnownFalse), nil
	case vm.Number:
		return g.addrForNumber(float64(t))
	case vm.String:
		return g.romAddr(string(t))
	case *vm.Object, *vm.Array, *vm.Closure:
		return g.addrAlloc(v)
	default:
		return 0, fmt.Errorf("snapshot: value of type %T cannot be captured in a snapshot", v)
	}
}

func (g *graph) addrForNumber(n float64) (uint16, error) {
	switch {
	case math.IsNaN(n):
		return types.EncodeWellKnown(types.WellKnownNaN), nil
	case n == 0 && math.Signbit(n):
		return types.EncodeWellKnown(types.WellKnownNegZero), nil
	case n == math.Trunc(n) && n >= types.MinInlineInt && n <= types.MaxInlineInt:
		return types.EncodeInlineInt(int32(n)), nil
	default:
		return g.addrAlloc(vm.Number(n))
	}
}

// romAddr interns s and returns its logical address in PGM_P space,
// shifted past the well-known prefix types.EncodeWellKnown reserves there
// (offset 0 in the string table lands just after WellKnownNegZero, never
// colliding with a well-known address).
func (g *graph) romAddr(s string) (uint16, error) {
	idx := g.internString(s) + romReservedOffsets
	if idx > maxLogicalOffset {
		return 0, fmt.Errorf("snapshot: too many interned strings for a 14-bit ROM address (%d)", idx)
	}
	return types.EncodeLogicalAddress(types.SectionPgmP, uint16(idx)), nil
}

func (g *graph) internString(s string) int {
	if i, ok := g.strIndex[s]; ok {
		return i
	}
	i := len(g.strs)
	g.strIndex[s] = i
	g.strs = append(g.strs, s)
	return i
}

func (g *graph) addrAlloc(v vm.Value) (uint16, error) {
	idx, ok := g.allocIndex[v]
	if !ok {
		idx = len(g.allocs)
		g.allocIndex[v] = idx
		g.allocs = append(g.allocs, v)
		g.queue = append(g.queue, v)
	}
	if idx > maxLogicalOffset {
		return 0, fmt.Errorf("snapshot: too many allocations for a 14-bit heap address (%d)", idx)
	}
	return types.EncodeLogicalAddress(types.SectionGCHeap, uint16(idx)), nil
}

// drain walks every allocation discovered so far (and any newly discovered
// while walking) until the queue is empty, returning the finished
// allocation list in index order.
func (g *graph) drain() ([]vm.Value, error) {
	for len(g.queue) > 0 {
		v := g.queue[0]
		g.queue = g.queue[1:]
		if err := g.visitChildren(v); err != nil {
			return nil, err
		}
	}
	return g.allocs, nil
}

func (g *graph) visitChildren(v vm.Value) error {
	switch t := v.(type) {
	case *vm.Object:
		var err error
		t.Iterate(func(key string, pv vm.Value) bool {
			g.internString(key)
			if _, aerr := g.addrFor(pv); aerr != nil {
				err = aerr
				return false
			}
			return true
		})
		return err
	case *vm.Array:
		for i := 0; i < t.Len(); i++ {
			if _, err := g.addrFor(t.Get(i)); err != nil {
				return err
			}
		}
		return nil
	case *vm.Closure:
		for i := 0; i < t.CapturedLen(); i++ {
			if _, err := g.addrFor(t.CapturedValue(i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
