package vm

// GarbageCollect runs a non-incremental mark-sweep over every value this VM
// has allocated, rooted at the globals table, the export table, and any
// still-live call-stack frames (spec §6 "vm.garbageCollect()"; spec §1
// explicitly places the host VM's GC internals out of scope beyond this
// entry point, so this stays a straightforward stop-the-world pass rather
// than the embedded device's incremental collector).
//
// It returns the number of allocations reclaimed, for test/diagnostic use;
// Go's own GC still owns the actual memory, so "reclaimed" here means
// "dropped from vm.allocations and therefore no longer reachable via
// CreateSnapshotInfo or any future opcode" rather than a freed heap byte.
func (vm *VM) GarbageCollect(th *Thread) int {
	marked := make(map[Value]bool, len(vm.allocations))

	vm.globals.Iter(func(_ string, v Value) bool {
		mark(v, marked)
		return false
	})
	for _, v := range vm.exports {
		mark(v, marked)
	}
	if th != nil {
		for _, fr := range th.callStack {
			if fr == nil {
				continue
			}
			markFrame(fr, marked)
		}
	}

	live := vm.allocations[:0]
	reclaimed := 0
	for _, v := range vm.allocations {
		if marked[v] {
			live = append(live, v)
		} else {
			reclaimed++
		}
	}
	vm.allocations = live
	return reclaimed
}

func markFrame(fr *Frame, marked map[Value]bool) {
	for _, v := range fr.args {
		mark(v, marked)
	}
	for _, v := range fr.locals {
		mark(v, marked)
	}
	for _, v := range fr.stack {
		mark(v, marked)
	}
	for _, c := range fr.scopeVec {
		if c != nil {
			mark(c.v, marked)
		}
	}
}

func mark(v Value, marked map[Value]bool) {
	if v == nil || marked[v] {
		return
	}
	switch t := v.(type) {
	case *Object:
		marked[v] = true
		t.props.Iter(func(_ string, pv Value) bool {
			mark(pv, marked)
			return false
		})
	case *Array:
		marked[v] = true
		for _, e := range t.elems {
			mark(e, marked)
		}
	case *Closure:
		marked[v] = true
		for _, c := range t.Captured {
			if c != nil {
				mark(c.v, marked)
			}
		}
	default:
		// Undefined/Null/Bool/Number/String/HostFunction are either value
		// types with no further references or host-owned, never tracked.
	}
}
