package saki

// Handler serves one command key. args[0] is the key itself.
type Handler interface {
	Handle(m *Manager, args []string)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(m *Manager, args []string)

func (f HandlerFunc) Handle(m *Manager, args []string) { f(m, args) }

type entry struct {
	key string
	h   Handler
}

// Registry maps command keys to handlers. Keys are unique and compared
// exactly; registering a key again replaces its handler.
type Registry struct {
	entries []entry
	def     Handler
}

// Register adds h under key, replacing any handler already there.
func (r *Registry) Register(key string, h Handler) {
	for i := range r.entries {
		if r.entries[i].key == key {
			r.entries[i].h = h
			return
		}
	}
	r.entries = append(r.entries, entry{key: key, h: h})
}

// RegisterDefault sets the handler used when no key matches. nil clears it.
func (r *Registry) RegisterDefault(h Handler) { r.def = h }

// Lookup returns the handler for key, falling back to the default.
func (r *Registry) Lookup(key string) (Handler, bool) {
	for _, e := range r.entries {
		if e.key == key {
			return e.h, true
		}
	}
	if r.def != nil {
		return r.def, true
	}
	return nil, false
}

// Len returns the number of keyed entries.
func (r *Registry) Len() int { return len(r.entries) }

// Keys lists registered keys in registration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.key
	}
	return out
}
