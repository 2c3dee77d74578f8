// Package scratch is a small typed key/value store owned by one agent. Tools
// use it to share state across invocations. Every key is declared with
// NewKey by the package which owns it, next to a comment describing what it
// holds.
package scratch

import "sync"

// Key identifies a value of type T.
type Key[T any] struct {
	name string
}

// NewKey declares a key. Names must be unique per store.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name of the key.
func (k Key[T]) Name() string { return k.name }

// Data is the store itself. The zero value is ready to use.
type Data struct {
	mu     sync.RWMutex
	values map[string]any
}

// Get the value for k. The boolean is false if nothing has been set.
func Get[T any](d *Data, k Key[T]) (T, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[k.name]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Set the value for k.
func Set[T any](d *Data, k Key[T], v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.values == nil {
		d.values = make(map[string]any)
	}
	d.values[k.name] = v
}

// Delete the value for k.
func Delete[T any](d *Data, k Key[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.values, k.name)
}

// Keys returns the names of all keys currently holding a value.
func (d *Data) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ret := make([]string, 0, len(d.values))
	for k := range d.values {
		ret = append(ret, k)
	}
	return ret
}
