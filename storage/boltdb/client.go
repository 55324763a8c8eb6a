// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package boltdb

import (
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/storage"
)

var mon = monkit.Package()

// Error is the default boltdb errs class
var Error = errs.Class("boltdb error")

var defaultTimeout = 1 * time.Second

// fileMode sets permissions so owner can read and write
const fileMode = 0600

// Client is the entrypoint into a bolt data store
type Client struct {
	db     *bolt.DB
	Path   string
	Bucket []byte
}

var _ storage.Store = (*Client)(nil)

// New instantiates a new bolt data store given the file path and bucket name
func New(path, bucket string) (*Client, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, Error.Wrap(err)
	}

	return &Client{
		db:     db,
		Path:   path,
		Bucket: []byte(bucket),
	}, nil
}

func (client *Client) update(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

func (client *Client) view(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

// Get gets the value stored at key
func (client *Client) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}

	var value storage.Value
	err = client.view(func(bucket *bolt.Bucket) error {
		data := bucket.Get([]byte(key))
		if len(data) == 0 {
			return storage.ErrKeyNotFound.New("%q", key)
		}
		value = storage.CloneValue(storage.Value(data))
		return nil
	})
	return value, err
}

// Put stores value at key, overwriting any previous value
func (client *Client) Put(ctx context.Context, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	return client.update(func(bucket *bolt.Bucket) error {
		return bucket.Put([]byte(key), []byte(value))
	})
}

// Delete removes the value stored at key
func (client *Client) Delete(ctx context.Context, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	return client.update(func(bucket *bolt.Bucket) error {
		if bucket.Get([]byte(key)) == nil {
			return storage.ErrKeyNotFound.New("%q", key)
		}
		return bucket.Delete([]byte(key))
	})
}

// Exists reports whether a value is stored at key
func (client *Client) Exists(ctx context.Context, key storage.Key) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return false, storage.ErrEmptyKey.New("")
	}

	exists := false
	err = client.view(func(bucket *bolt.Bucket) error {
		exists = bucket.Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}

// List returns all keys starting with prefix, in lexicographic order
func (client *Client) List(ctx context.Context, prefix storage.Key) (_ storage.Keys, err error) {
	defer mon.Task()(&ctx)(&err)

	var keys storage.Keys
	err = client.view(func(bucket *bolt.Bucket) error {
		cursor := bucket.Cursor()
		for key, _ := cursor.Seek([]byte(prefix)); key != nil; key, _ = cursor.Next() {
			if !storage.Key(key).HasPrefix(prefix) {
				break
			}
			keys = append(keys, storage.CloneKey(storage.Key(key)))
		}
		return nil
	})
	return keys, err
}

// Close closes a bolt data store
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}
