// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storelogger

import (
	"context"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/storage"
)

var mon = monkit.Package()

var id int64

// Logger implements a zap.Logger for storage.Store
type Logger struct {
	log   *zap.Logger
	store storage.Store
}

var _ storage.Store = (*Logger)(nil)

// New creates a new Logger with log and store
func New(log *zap.Logger, store storage.Store) *Logger {
	loggerid := atomic.AddInt64(&id, 1)
	name := strconv.Itoa(int(loggerid))
	return &Logger{log.Named(name), store}
}

// Get gets a value from the store
func (store *Logger) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("Get", zap.ByteString("key", key))
	return store.store.Get(ctx, key)
}

// Put adds a value to the store
func (store *Logger) Put(ctx context.Context, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("Put", zap.ByteString("key", key), zap.Int("value length", len(value)), zap.Binary("truncated value", truncate(value)))
	return store.store.Put(ctx, key, value)
}

// Delete deletes key and the value
func (store *Logger) Delete(ctx context.Context, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("Delete", zap.ByteString("key", key))
	return store.store.Delete(ctx, key)
}

// Exists reports whether a value is stored at key
func (store *Logger) Exists(ctx context.Context, key storage.Key) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("Exists", zap.ByteString("key", key))
	return store.store.Exists(ctx, key)
}

// List lists all keys starting with prefix
func (store *Logger) List(ctx context.Context, prefix storage.Key) (_ storage.Keys, err error) {
	defer mon.Task()(&ctx)(&err)
	keys, err := store.store.List(ctx, prefix)
	store.log.Debug("List", zap.ByteString("prefix", prefix), zap.Strings("keys", keys.Strings()))
	return keys, err
}

// Close closes the store
func (store *Logger) Close() error {
	store.log.Debug("Close")
	return store.store.Close()
}

func truncate(v storage.Value) (t []byte) {
	if len(v)-1 < 10 {
		t = []byte(v)
	} else {
		t = v[:10]
	}
	return t
}
