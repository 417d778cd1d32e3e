package errors

import (
	"sort"
	"sync"
)

// Collector accumulates non-fatal errors raised during a run.
// It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []*KBIError
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records err. Plain errors are wrapped as internal errors; nil is ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	ke, ok := As(err)
	if !ok {
		ke = Wrap(ErrCodeInternal, err)
	}
	c.mu.Lock()
	c.items = append(c.items, ke)
	c.mu.Unlock()
}

// AddAll records every error in errs.
func (c *Collector) AddAll(errs []*KBIError) {
	for _, e := range errs {
		if e != nil {
			c.Add(e)
		}
	}
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Count returns the number of recorded errors with the given code.
func (c *Collector) Count(code string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.items {
		if e.Code == code {
			n++
		}
	}
	return n
}

// Items returns the recorded errors ordered by file, line, then code.
// Errors without a file sort first, in the order they were added.
func (c *Collector) Items() []*KBIError {
	c.mu.Lock()
	out := make([]*KBIError, len(c.items))
	copy(out, c.items)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Code < b.Code
	})
	return out
}

// HasSeverity reports whether any recorded error has severity s.
func (c *Collector) HasSeverity(s Severity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.items {
		if e.Severity == s {
			return true
		}
	}
	return false
}
