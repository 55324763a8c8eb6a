// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package objstore

import (
	"bytes"
	"context"
	"io/ioutil"

	minio "github.com/minio/minio-go"
	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/storage"
)

var mon = monkit.Package()

// Error is the default objstore errs class
var Error = errs.Class("objstore error")

// noSuchKey is the error code object services return for absent objects
const noSuchKey = "NoSuchKey"

// Client implements storage.Store against an S3 compatible object service
type Client struct {
	api    *minio.Client
	Bucket string
}

var _ storage.Store = (*Client)(nil)

// New instantiates a client for the object service at endpoint, creating the
// bucket when it does not exist yet
func New(endpoint, accessKey, secretKey, bucket string, secure bool) (*Client, error) {
	api, err := minio.New(endpoint, accessKey, secretKey, secure)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	exists, err := api.BucketExists(bucket)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !exists {
		if err := api.MakeBucket(bucket, ""); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	return &Client{api: api, Bucket: bucket}, nil
}

// Get gets the value stored at key
func (client *Client) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}

	object, err := client.api.GetObject(client.Bucket, key.String(), minio.GetObjectOptions{})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = object.Close() }()

	// the object handle is lazy, errors surface on read
	data, err := ioutil.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return nil, storage.ErrKeyNotFound.New("%q", key)
		}
		return nil, Error.Wrap(err)
	}
	return data, nil
}

// Put stores value at key, overwriting any previous value
func (client *Client) Put(ctx context.Context, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	_, err = client.api.PutObject(client.Bucket, key.String(),
		bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{})
	return Error.Wrap(err)
}

// Delete removes the value stored at key
func (client *Client) Delete(ctx context.Context, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	// removing an absent object succeeds, so probe first
	_, err = client.api.StatObject(client.Bucket, key.String(), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return storage.ErrKeyNotFound.New("%q", key)
		}
		return Error.Wrap(err)
	}

	return Error.Wrap(client.api.RemoveObject(client.Bucket, key.String()))
}

// Exists reports whether a value is stored at key
func (client *Client) Exists(ctx context.Context, key storage.Key) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return false, storage.ErrEmptyKey.New("")
	}

	_, err = client.api.StatObject(client.Bucket, key.String(), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return false, nil
		}
		return false, Error.Wrap(err)
	}
	return true, nil
}

// List returns all keys starting with prefix, in lexicographic order
func (client *Client) List(ctx context.Context, prefix storage.Key) (_ storage.Keys, err error) {
	defer mon.Task()(&ctx)(&err)

	doneCh := make(chan struct{})
	defer close(doneCh)

	var keys storage.Keys
	for object := range client.api.ListObjects(client.Bucket, prefix.String(), true, doneCh) {
		if object.Err != nil {
			return nil, Error.Wrap(object.Err)
		}
		keys = append(keys, storage.Key(object.Key))
	}
	return keys, nil
}

// Close closes the client
func (client *Client) Close() error { return nil }
