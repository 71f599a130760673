// Package dsa provides small data structures shared by the CLI.
// Uses go-radix for a compressed prefix tree.
package dsa

import (
	"github.com/armon/go-radix"
)

// Trie wraps go-radix for typed prefix lookups.
//
// Time Complexity: O(k) per lookup where k is key length.
type Trie[V any] struct {
	tree *radix.Tree
}

// NewTrie creates a new empty radix tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{
		tree: radix.New(),
	}
}

// Insert adds or replaces a key.
func (t *Trie[V]) Insert(key string, value V) {
	t.tree.Insert(key, value)
}

// Get looks up an exact key.
func (t *Trie[V]) Get(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	v, ok := val.(V)
	return v, ok
}

// Complete returns every key starting with prefix in lexical order.
// Time Complexity: O(k + m) where m is the number of matches.
func (t *Trie[V]) Complete(prefix string) []string {
	var keys []string
	t.tree.WalkPrefix(prefix, func(k string, _ interface{}) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

