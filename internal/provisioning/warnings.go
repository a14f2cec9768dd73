package provisioning

import (
	"fmt"
	"sync"
)

// Warnings collects non-fatal problems encountered during an operation so
// they can be summarized after the run instead of scrolling away.
type Warnings struct {
	mu    sync.Mutex
	items []string
}

// Addf records a warning.
func (w *Warnings) Addf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, fmt.Sprintf(format, args...))
}

// List returns the recorded warnings in order.
func (w *Warnings) List() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.items...)
}

// Empty reports whether no warnings were recorded.
func (w *Warnings) Empty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items) == 0
}
