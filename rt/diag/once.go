// Package diag holds process-wide diagnostic state shared by the engine
// packages. The host may instantiate the procedural many times in one
// process, so nothing here may reference per-instance data.
package diag

import "sync"

// Once remembers which messages have already been reported.
// It stores message text only.
type Once struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// Messages is the de-dup cache used for "report once" diagnostics.
var Messages = &Once{}

// First records msg and reports whether this is its first sighting. Later
// calls with the same message return false until Reset.
func (o *Once) First(msg string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = make(map[string]struct{})
	}
	if _, ok := o.seen[msg]; ok {
		return false
	}
	o.seen[msg] = struct{}{}
	return true
}

// Reset forgets every message. Calling it repeatedly is harmless.
func (o *Once) Reset() {
	o.mu.Lock()
	o.seen = nil
	o.mu.Unlock()
}

// Len returns the number of distinct messages recorded.
func (o *Once) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.seen)
}
