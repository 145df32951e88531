// Package envpath holds the environment that deploy steps hand to their
// child processes. Mutations stay local to an Environ; the parent process
// environment is only read once, at construction.
package envpath

import (
	"os"
	"strings"
)

// Environ is an ordered KEY=VALUE environment. The zero value is empty.
type Environ struct {
	vars []string
}

// FromOS snapshots the current process environment.
func FromOS() *Environ {
	return New(os.Environ())
}

// New builds an Environ from KEY=VALUE pairs. Later duplicates win, matching
// how exec resolves repeated keys.
func New(pairs []string) *Environ {
	e := &Environ{}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		e.Set(k, v)
	}
	return e
}

// Lookup returns the value of name and whether it is set.
func (e *Environ) Lookup(name string) (string, bool) {
	if i := e.index(name); i >= 0 {
		_, v, _ := strings.Cut(e.vars[i], "=")
		return v, true
	}
	return "", false
}

// Get returns the value of name, or "" when unset.
func (e *Environ) Get(name string) string {
	v, _ := e.Lookup(name)
	return v
}

// Set assigns name, keeping its original position when already present.
func (e *Environ) Set(name, value string) {
	kv := name + "=" + value
	if i := e.index(name); i >= 0 {
		e.vars[i] = kv
		return
	}
	e.vars = append(e.vars, kv)
}

// Append extends a search-path variable with segment using the platform
// list separator and returns the new value. An unset or empty variable
// becomes exactly segment. Existing entries are never deduplicated, so
// appending the same segment twice lists it twice.
func (e *Environ) Append(name, segment string) string {
	cur := e.Get(name)
	next := segment
	if cur != "" {
		next = cur + string(os.PathListSeparator) + segment
	}
	e.Set(name, next)
	return next
}

// Slice returns a copy suitable for exec.Cmd.Env.
func (e *Environ) Slice() []string {
	out := make([]string, len(e.vars))
	copy(out, e.vars)
	return out
}

func (e *Environ) index(name string) int {
	prefix := name + "="
	for i, kv := range e.vars {
		if strings.HasPrefix(kv, prefix) {
			return i
		}
	}
	return -1
}
