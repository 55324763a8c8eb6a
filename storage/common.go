// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"bytes"
	"context"

	"github.com/zeebo/errs"
)

// Delimiter separates nested paths in keys
const Delimiter = '/'

var (
	// ErrKeyNotFound is returned when the key is not found in the store
	ErrKeyNotFound = errs.Class("key not found")
	// ErrEmptyKey is returned when an empty key is used for an operation
	ErrEmptyKey = errs.Class("empty key restricted")
)

// Key is the type for the keys in a `Store`
type Key []byte

// Value is the type for the values in a `Store`
type Value []byte

// Keys is the type for a slice of keys in a `Store`
type Keys []Key

// ListItem is a key with the value stored at it
type ListItem struct {
	Key   Key
	Value Value
}

// Items keeps a sortable list of items
type Items []ListItem

// Store describes a key-addressed document store backed by a remote blob
// service. Every call is a single round-trip to the backend. Put overwrites
// the whole value with no merge and the last writer wins at key granularity:
// there is no compare-and-swap, so of two concurrent read-modify-write
// sequences against the same key the earlier write is silently lost. There is
// no cross-key atomicity either; a crash between calls leaves the document set
// partially updated but every document individually valid.
type Store interface {
	// Get gets the value stored at key, ErrKeyNotFound when absent
	Get(ctx context.Context, key Key) (Value, error)
	// Put stores value at key, overwriting any previous value
	Put(ctx context.Context, key Key, value Value) error
	// Delete removes the value stored at key, ErrKeyNotFound when absent
	Delete(ctx context.Context, key Key) error
	// Exists reports whether a value is stored at key
	Exists(ctx context.Context, key Key) (bool, error)
	// List returns all keys beginning with prefix, in lexicographic order
	List(ctx context.Context, prefix Key) (Keys, error)
	// Close closes the store
	Close() error
}

// IsZero returns true if the key struct is it's zero value
func (key Key) IsZero() bool { return len(key) == 0 }

// String implements the Stringer interface
func (key Key) String() string { return string(key) }

// Less returns whether key is smaller than b
func (key Key) Less(b Key) bool { return bytes.Compare(key, b) < 0 }

// Equal returns whether key and b are equal
func (key Key) Equal(b Key) bool { return bytes.Equal(key, b) }

// HasPrefix returns whether key starts with prefix
func (key Key) HasPrefix(prefix Key) bool { return bytes.HasPrefix(key, prefix) }

// IsZero returns true if the value struct is it's zero value
func (value Value) IsZero() bool { return len(value) == 0 }

// Strings converts the keys to a slice of strings
func (keys Keys) Strings() []string {
	strs := make([]string, len(keys))
	for i, key := range keys {
		strs[i] = string(key)
	}
	return strs
}

// Len implements sort.Interface
func (items Items) Len() int { return len(items) }

// Less implements sort.Interface
func (items Items) Less(i, k int) bool { return items[i].Key.Less(items[k].Key) }

// Swap implements sort.Interface
func (items Items) Swap(i, k int) { items[i], items[k] = items[k], items[i] }
