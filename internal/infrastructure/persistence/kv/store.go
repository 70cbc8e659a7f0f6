// Package kv provides the persistent key-value store abstraction.
//
// This is the only layer that touches underlying storage. Implementations
// never surface errors: a storage fault (quota, disabled storage, lost
// connection) degrades to a null/false result so callers can treat absence
// and failure uniformly.
package kv

import "encoding/json"

// Store is the contract every storage backend implements.
type Store interface {
	// Get returns the stored value and whether it was present.
	Get(key string) (string, bool)
	// Set persists a value and reports success.
	Set(key, value string) bool
	// Remove deletes a key and reports whether the operation succeeded.
	Remove(key string) bool
	// Keys returns all stored keys beginning with prefix.
	Keys(prefix string) []string
}

// GetJSON loads and unmarshals a stored JSON value. Corrupt payloads are
// treated as absence and the offending key is cleared to self-heal.
func GetJSON[T any](s Store, key string) (T, bool) {
	var out T
	raw, ok := s.Get(key)
	if !ok || raw == "" {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.Remove(key)
		var zero T
		return zero, false
	}
	return out, true
}

// SetJSON marshals and persists a JSON value, reporting success.
func SetJSON[T any](s Store, key string, value T) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return s.Set(key, string(raw))
}

// Namespaced wraps a Store so all keys share a common prefix. Visitor
// profiles each get their own namespace on the shared backend.
type Namespaced struct {
	base   Store
	prefix string
}

// Namespace returns a view of base scoped under prefix.
func Namespace(base Store, prefix string) *Namespaced {
	return &Namespaced{base: base, prefix: prefix + ":"}
}

func (n *Namespaced) Get(key string) (string, bool) { return n.base.Get(n.prefix + key) }
func (n *Namespaced) Set(key, value string) bool    { return n.base.Set(n.prefix+key, value) }
func (n *Namespaced) Remove(key string) bool        { return n.base.Remove(n.prefix + key) }

// Keys returns namespaced keys with the prefix stripped.
func (n *Namespaced) Keys(prefix string) []string {
	raw := n.base.Keys(n.prefix + prefix)
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		out = append(out, k[len(n.prefix):])
	}
	return out
}
