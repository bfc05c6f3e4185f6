package layerdoc

// Guard suppresses reentrant calls: while a named section runs, further
// attempts to enter the same section on the same guard are skipped.
type Guard struct {
	held map[string]struct{}
}

// Do runs fn unless name is already held and reports whether fn ran. The
// section is released even when fn panics.
func (g *Guard) Do(name string, fn func()) bool {
	if g.Held(name) {
		return false
	}
	if g.held == nil {
		g.held = map[string]struct{}{}
	}
	g.held[name] = struct{}{}
	defer delete(g.held, name)
	fn()
	return true
}

// Held reports whether name is currently running.
func (g *Guard) Held(name string) bool {
	_, ok := g.held[name]
	return ok
}
