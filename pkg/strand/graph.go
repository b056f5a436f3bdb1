package strand

// setDependencies tears down the cell's current dependency edges and
// installs newDeps in their place: the cell removes itself from each old
// dependency's dependent set, adopts newDeps as its dependency list, then
// adds itself to each new dependency's dependent set. A rebind always
// runs this before swapping in the new binding.
//
// Two cell locks are never held at once, so no cross-cell lock ordering
// is needed; edge symmetry is briefly violated during the window between
// teardown and setup, which the graph tolerates.
func (c *Cell[T]) setDependencies(newDeps []Handle) {
	c.mu.Lock()
	old := c.deps
	if len(newDeps) == 0 {
		c.deps = nil
	} else {
		c.deps = make([]Handle, len(newDeps))
		copy(c.deps, newDeps)
	}
	installed := c.deps
	c.mu.Unlock()

	for _, d := range old {
		d.removeDependent(c.id)
	}
	for _, d := range installed {
		d.addDependent(c)
	}
}

// addDependent registers dep as a back-reference for dirty propagation.
// Deduplicates by identity token so a dependent appears at most once, no
// matter how many aliased handles name it.
// Implements the Handle interface.
func (c *Cell[T]) addDependent(dep Handle) {
	if dep == nil {
		return
	}
	id := dep.ID()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.dependents {
		if existing.ID() == id {
			return
		}
	}
	c.dependents = append(c.dependents, dep)
}

// removeDependent drops the back-reference with the given identity token.
// Comparison is by token only: payload types need not support equality
// and multiple handles may alias one cell.
// Implements the Handle interface.
func (c *Cell[T]) removeDependent(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.dependents {
		if existing.ID() == id {
			// Swap-remove; dependent order carries no meaning.
			last := len(c.dependents) - 1
			c.dependents[i] = c.dependents[last]
			c.dependents[last] = nil
			c.dependents = c.dependents[:last]
			return
		}
	}
}
