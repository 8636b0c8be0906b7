package cascade

import "sync"

// Context is the scoped state of one outstanding cascade. It is the critical
// section the concurrency model requires: while a cascade is in progress,
// rename notifications caused by the cascade's own physical moves are folded
// into the existing map (or recognized as already applied) instead of
// starting a nested cascade.
type Context struct {
	mu      sync.Mutex
	m       *RenameMap
	active  bool
	applied map[string]string // self-issued moves already performed
}

// NewContext returns an idle cascade context.
func NewContext() *Context {
	return &Context{
		m:       NewRenameMap(),
		applied: make(map[string]string),
	}
}

// Begin marks a cascade in progress. It returns false when one already is,
// in which case the caller must merge into the existing map rather than
// build a new one.
func (c *Context) Begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return false
	}
	c.active = true
	return true
}

// End discards the cascade state.
func (c *Context) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.m = NewRenameMap()
	c.applied = make(map[string]string)
}

// Active reports whether a cascade is in progress.
func (c *Context) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Map returns the cascade's rename map.
func (c *Context) Map() *RenameMap { return c.m }

// MarkApplied records a physical move the executor just performed, so the
// host notification it triggers can be recognized as self-issued.
func (c *Context) MarkApplied(old, new string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied[old] = new
}

// SelfIssued reports whether a rename notification corresponds to a move
// this cascade performed, or is pending in its map.
func (c *Context) SelfIssued(old, new string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.applied[old]; ok && n == new {
		return true
	}
	if n, ok := c.m.Lookup(old); ok && n == new {
		return true
	}
	return false
}

// Merge folds an externally observed rename into the active map. Self-issued
// notifications are dropped.
func (c *Context) Merge(old, new string) {
	if c.SelfIssued(old, new) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m.Add(old, new)
}
