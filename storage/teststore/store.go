// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package teststore

import (
	"context"
	"sort"

	"storj.io/paddock/storage"
)

// Client implements an in-memory document store
type Client struct {
	Items     storage.Items
	CallCount struct {
		Get    int
		Put    int
		Delete int
		Exists int
		List   int
		Close  int
	}
}

// New creates a new in-memory document store
func New() *Client { return &Client{} }

var _ storage.Store = (*Client)(nil)

// indexOf finds index of key or where it could be inserted
func (store *Client) indexOf(key storage.Key) (int, bool) {
	i := sort.Search(len(store.Items), func(k int) bool {
		return !store.Items[k].Key.Less(key)
	})

	if i >= len(store.Items) {
		return i, false
	}
	return i, store.Items[i].Key.Equal(key)
}

// Get gets the value stored at key
func (store *Client) Get(ctx context.Context, key storage.Key) (storage.Value, error) {
	store.CallCount.Get++
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}

	keyIndex, found := store.indexOf(key)
	if !found {
		return nil, storage.ErrKeyNotFound.New("%q", key)
	}

	return storage.CloneValue(store.Items[keyIndex].Value), nil
}

// Put stores value at key
func (store *Client) Put(ctx context.Context, key storage.Key, value storage.Value) error {
	store.CallCount.Put++
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	keyIndex, found := store.indexOf(key)
	if found {
		kv := &store.Items[keyIndex]
		kv.Value = storage.CloneValue(value)
		return nil
	}

	store.Items = append(store.Items, storage.ListItem{})
	copy(store.Items[keyIndex+1:], store.Items[keyIndex:])
	store.Items[keyIndex] = storage.ListItem{
		Key:   storage.CloneKey(key),
		Value: storage.CloneValue(value),
	}

	return nil
}

// Delete removes the value stored at key
func (store *Client) Delete(ctx context.Context, key storage.Key) error {
	store.CallCount.Delete++
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	keyIndex, found := store.indexOf(key)
	if !found {
		return storage.ErrKeyNotFound.New("%q", key)
	}

	copy(store.Items[keyIndex:], store.Items[keyIndex+1:])
	store.Items = store.Items[:len(store.Items)-1]
	return nil
}

// Exists reports whether a value is stored at key
func (store *Client) Exists(ctx context.Context, key storage.Key) (bool, error) {
	store.CallCount.Exists++
	if key.IsZero() {
		return false, storage.ErrEmptyKey.New("")
	}

	_, found := store.indexOf(key)
	return found, nil
}

// List returns all keys starting with prefix, in lexicographic order
func (store *Client) List(ctx context.Context, prefix storage.Key) (storage.Keys, error) {
	store.CallCount.List++

	first, _ := store.indexOf(prefix)
	var keys storage.Keys
	for i := first; i < len(store.Items); i++ {
		if !store.Items[i].Key.HasPrefix(prefix) {
			break
		}
		keys = append(keys, storage.CloneKey(store.Items[i].Key))
	}
	return keys, nil
}

// Close closes the store
func (store *Client) Close() error {
	store.CallCount.Close++
	return nil
}
