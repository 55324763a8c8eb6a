// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package redis

import (
	"context"
	"sort"

	"github.com/go-redis/redis"
	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/storage"
)

var mon = monkit.Package()

// Error is the default redis errs class
var Error = errs.Class("redis error")

// Client is the entrypoint into Redis
type Client struct {
	db *redis.Client
}

var _ storage.Store = (*Client)(nil)

// NewClient returns a configured Client instance, verifying a successful connection to redis
func NewClient(address, password string, db int) (*Client, error) {
	client := &Client{
		db: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}

	if err := client.db.Ping().Err(); err != nil {
		return nil, Error.New("ping failed: %v", err)
	}

	return client, nil
}

// NewClientFrom returns a configured Client instance from a redis address, verifying a successful connection to redis
func NewClientFrom(address string) (*Client, error) {
	opts, err := redis.ParseURL(address)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	client := &Client{db: redis.NewClient(opts)}

	if err := client.db.Ping().Err(); err != nil {
		return nil, Error.New("ping failed: %v", err)
	}

	return client, nil
}

// Get gets the value stored at key
func (client *Client) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}

	value, err := client.db.Get(key.String()).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrKeyNotFound.New("%q", key)
	}
	if err != nil {
		return nil, Error.New("get error: %v", err)
	}
	return value, nil
}

// Put stores value at key, overwriting any previous value
func (client *Client) Put(ctx context.Context, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	err = client.db.Set(key.String(), []byte(value), 0).Err()
	if err != nil {
		return Error.New("put error: %v", err)
	}
	return nil
}

// Delete removes the value stored at key
func (client *Client) Delete(ctx context.Context, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	deleted, err := client.db.Del(key.String()).Result()
	if err != nil {
		return Error.New("delete error: %v", err)
	}
	if deleted == 0 {
		return storage.ErrKeyNotFound.New("%q", key)
	}
	return nil
}

// Exists reports whether a value is stored at key
func (client *Client) Exists(ctx context.Context, key storage.Key) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return false, storage.ErrEmptyKey.New("")
	}

	count, err := client.db.Exists(key.String()).Result()
	if err != nil {
		return false, Error.New("exists error: %v", err)
	}
	return count > 0, nil
}

// List returns all keys starting with prefix, in lexicographic order
func (client *Client) List(ctx context.Context, prefix storage.Key) (_ storage.Keys, err error) {
	defer mon.Task()(&ctx)(&err)

	// SCAN returns matches in no particular order
	match := string(escapeMatch([]byte(prefix))) + "*"
	it := client.db.Scan(0, match, 0).Iterator()

	var keys storage.Keys
	for it.Next() {
		keys = append(keys, storage.Key(it.Val()))
	}
	if err := it.Err(); err != nil {
		return nil, Error.New("list error: %v", err)
	}

	sort.Slice(keys, func(i, k int) bool { return keys[i].Less(keys[k]) })
	return keys, nil
}

// Close closes a redis client
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}
