package scope

// assignSlots runs pass 2 (spec §4.1) over the completed scope tree built
// by pass 1, assigning every Binding exactly one Slot and building every
// Scope's initialization Prologue. Module scope is treated exactly like a
// FunctionScope for local/closure slot purposes (spec §6's host VM runs a
// module's `#entry` the same way it runs any function), except exported
// bindings and bindings captured by a nested function are always forced
// to a GlobalSlot — they must stay resolvable
// by name for resolveExport/importHostFunction after #entry returns and
// the entry frame would otherwise be discarded — and imported bindings
// always get a ModuleImportExportSlot pointing at their source module's
// namespace object.
func assignSlots(mod *Scope) {
	namer := newNamer()
	namespaces := make(map[string]string)

	for _, b := range mod.ImportDeclarations {
		b.Slot = ModuleImportExportSlot{
			NamespaceSlot: GlobalSlot{Name: namer.moduleNamespaceName(namespaces, b.ImportSpecifier)},
			PropertyName:  b.ImportedName,
		}
	}

	assignFunctionLike(mod, namer)
}

// frame tracks the running local/closure slot counters for one function
// (or module) body, shared by every nested BlockScope within it.
type frame struct {
	locals   int
	closures int
}

func (fr *frame) nextLocal() int {
	i := fr.locals
	fr.locals++
	return i
}

func (fr *frame) nextClosure() int {
	i := fr.closures
	fr.closures++
	return i
}

// assignOrdinary applies the pass-2 accessor rule shared by this/params/
// hoisted vars/lexical declarations: a binding captured by a nested
// function always gets a ClosureSlot (so it outlives its originating
// frame); an uncaptured parameter or `this` that is never reassigned gets
// an ArgumentSlot; everything else gets a LocalSlot.
func assignOrdinary(b *Binding, fr *frame, argIndex int, isArgument bool) {
	switch {
	case b.Slot != nil:
		// already assigned (e.g. exported/imported override)
	case b.IsAccessedByNestedFunction:
		b.Slot = ClosureSlot{Index: fr.nextClosure()}
	case isArgument && !b.IsWrittenTo:
		b.Slot = ArgumentSlot{ArgIndex: argIndex}
	default:
		b.Slot = LocalSlot{Index: fr.nextLocal()}
	}
}

// assignFunctionLike assigns slots for one Module or Function scope (this,
// parameters, hoisted var/function-declaration bindings and its own
// let/const bindings), builds its Prologue, then recurses into every
// nested block and nested function.
func assignFunctionLike(s *Scope, namer *namer) {
	fr := &frame{}

	if s.ThisBinding != nil {
		assignOrdinary(s.ThisBinding, fr, 0, true)
	}
	for i, p := range s.ParameterBindings {
		assignOrdinary(p, fr, i+1, true)
	}

	hoisted := append(append([]*Binding(nil), s.VarDeclarations...), s.LexicalDeclarations...)
	for _, b := range hoisted {
		// Module-level bindings that escape #entry — exported, or merely
		// captured by some closure that outlives #entry's own frame — need a
		// name-addressable home rather than a slot in a frame that is about
		// to be discarded (spec §4.1 pass 2).
		if s.Kind == ModuleScope && (b.IsExported || b.IsAccessedByNestedFunction) {
			b.Slot = GlobalSlot{Name: namer.allocate(b.Name)}
			continue
		}
		assignOrdinary(b, fr, 0, false)
	}

	buildPrologue(s, fr)
	assignNestedBlocks(s, fr, namer)

	s.LocalSlots = fr.locals
	if fr.closures > 0 {
		s.ClosureSlots = fr.closures
		s.FunctionIsClosure = true
		s.Prologue = append([]PrologueOp{{Kind: OpScopePush, SlotCount: fr.closures}}, s.Prologue...)
	}
}

// assignNestedBlocks walks every child Scope of s: BlockScope children
// share fr (same function's slot space); FunctionScope children start a
// fresh frame of their own via assignFunctionLike.
func assignNestedBlocks(s *Scope, fr *frame, namer *namer) {
	for _, child := range s.Children {
		switch child.Kind {
		case FunctionScope:
			assignFunctionLike(child, namer)
		case BlockScope:
			for _, b := range child.LexicalDeclarations {
				assignOrdinary(b, fr, 0, false)
			}
			buildPrologue(child, fr)
			assignNestedBlocks(child, fr, namer)
		}
	}
}

// buildPrologue records, in the order spec's Open Question (ii) settles on
// (function declarations before var defaults), which pseudo-ops this
// scope's entry needs. It is a declarative manifest for internal/il to
// consult when lowering each block, not a literal execution-order list:
// let/const inits still run at their textual statement site (TDZ), not at
// block entry.
func buildPrologue(s *Scope, fr *frame) {
	if s.ThisBinding != nil {
		s.Prologue = append(s.Prologue, PrologueOp{Kind: OpInitThis, Binding: s.ThisBinding})
	}
	for _, p := range s.ParameterBindings {
		s.Prologue = append(s.Prologue, PrologueOp{Kind: OpInitParameter, Binding: p})
	}
	for _, b := range s.NestedFunctionDeclarations {
		s.Prologue = append(s.Prologue, PrologueOp{Kind: OpInitFunctionDeclaration, Binding: b})
	}
	for _, b := range s.OwnVarDeclarations {
		s.Prologue = append(s.Prologue, PrologueOp{Kind: OpInitVarDeclaration, Binding: b})
	}
	for _, b := range s.LexicalDeclarations {
		s.Prologue = append(s.Prologue, PrologueOp{Kind: OpInitLexicalDeclaration, Binding: b})
	}
}
