// Package cascade computes and applies the transitive set of path changes
// triggered by one rename, and the delete cascade for removed notes.
package cascade

// RenamePair is one old-path to new-path entry.
type RenamePair struct {
	Old string
	New string
}

// RenameMap is an ordered old-path to new-path mapping scoped to one
// cascade. Keys are pairwise distinct; entries are drained in insertion
// order as the executor applies them.
type RenameMap struct {
	order  []string
	to     map[string]string
	values map[string]string // new path -> old path that claimed it
}

// NewRenameMap returns an empty map.
func NewRenameMap() *RenameMap {
	return &RenameMap{
		to:     make(map[string]string),
		values: make(map[string]string),
	}
}

// Add records old -> new. Re-adding an existing key updates its destination
// in place without disturbing the order.
func (m *RenameMap) Add(old, new string) {
	if prev, ok := m.to[old]; ok {
		delete(m.values, prev)
		m.to[old] = new
		m.values[new] = old
		return
	}
	m.order = append(m.order, old)
	m.to[old] = new
	m.values[new] = old
}

// Lookup returns the destination recorded for old.
func (m *RenameMap) Lookup(old string) (string, bool) {
	n, ok := m.to[old]
	return n, ok
}

// Claimed reports whether some entry already names p as its destination.
func (m *RenameMap) Claimed(p string) bool {
	_, ok := m.values[p]
	return ok
}

// Len returns the number of pending entries.
func (m *RenameMap) Len() int { return len(m.order) }

// First returns the oldest pending entry.
func (m *RenameMap) First() (RenamePair, bool) {
	if len(m.order) == 0 {
		return RenamePair{}, false
	}
	old := m.order[0]
	return RenamePair{Old: old, New: m.to[old]}, true
}

// Pairs returns the pending entries in insertion order.
func (m *RenameMap) Pairs() []RenamePair {
	out := make([]RenamePair, 0, len(m.order))
	for _, old := range m.order {
		out = append(out, RenamePair{Old: old, New: m.to[old]})
	}
	return out
}

// Remove drops the entry for old once it has been fully applied.
func (m *RenameMap) Remove(old string) {
	n, ok := m.to[old]
	if !ok {
		return
	}
	delete(m.to, old)
	delete(m.values, n)
	for i, o := range m.order {
		if o == old {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Final resolves a path through the map transitively: a path that is itself
// a key resolves to where its destination ultimately lands. Paths outside
// the map resolve to themselves. A step budget guards against cycles, which
// the builder never produces.
func (m *RenameMap) Final(path string) string {
	cur := path
	for i := 0; i <= len(m.to); i++ {
		next, ok := m.to[cur]
		if !ok || next == cur {
			return cur
		}
		cur = next
	}
	return cur
}
