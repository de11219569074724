package scope

import "fmt"

// namer disambiguates GlobalSlot names across a whole compile unit. Spec
// §3 puts every GlobalSlot in one flat namespace, so two bindings with the
// same source name (a module-level `x` and some other module's own `x`,
// or a disambiguation collision against a synthesized namespace-object
// name) cannot share a slot name. Grounded on the teacher's
// lang/resolver/naming.go letter-suffix scheme for block names, generalized
// from positional letters to a collision counter since global names need
// to stay recognizable for disassembly rather than merely unique.
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	return &namer{used: make(map[string]bool)}
}

// allocate returns a name starting from hint, unique against every name
// this namer has already handed out.
func (n *namer) allocate(hint string) string {
	if !n.used[hint] {
		n.used[hint] = true
		return hint
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s$%d", hint, i)
		if !n.used[candidate] {
			n.used[candidate] = true
			return candidate
		}
	}
}

// moduleNamespaceName returns the disambiguated global name under which an
// imported module's export namespace object is held, one per distinct
// import specifier.
func (n *namer) moduleNamespaceName(namespaces map[string]string, specifier string) string {
	if name, ok := namespaces[specifier]; ok {
		return name
	}
	name := n.allocate("$module:" + specifier)
	namespaces[specifier] = name
	return name
}
