package core

// Registry owns the canonical state of every live connection. It is not
// safe for concurrent use; the relay actor is its only caller.
type Registry struct {
	open map[string]*Conn
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{open: make(map[string]*Conn)}
}

// Admit registers a connection and marks it open. Admission always
// succeeds; authorization, if any, happened at the transport edge.
func (r *Registry) Admit(c *Conn) {
	c.setState(StateOpen)
	r.open[c.ID] = c
}

// Retire marks a connection closed and forgets it. Retiring an unknown or
// already-retired identifier is a no-op: transports can report close events
// out of order or twice. Returns the connection if it was still open.
func (r *Registry) Retire(id string) *Conn {
	c, ok := r.open[id]
	if !ok {
		return nil
	}
	c.setState(StateClosed)
	delete(r.open, id)
	return c
}

// IsOpen reports whether the identifier names a live connection. Closed
// and unknown identifiers both report false.
func (r *Registry) IsOpen(id string) bool {
	_, ok := r.open[id]
	return ok
}

// Get returns the live connection for id, or nil.
func (r *Registry) Get(id string) *Conn {
	return r.open[id]
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.open)
}
