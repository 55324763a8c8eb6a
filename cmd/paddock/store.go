// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"storj.io/paddock/storage"
	"storj.io/paddock/storage/boltdb"
	"storj.io/paddock/storage/objstore"
	"storj.io/paddock/storage/redis"
	"storj.io/paddock/storage/storelogger"
	"storj.io/paddock/storage/teststore"
)

// openStore builds the configured document store backend, wrapped with debug
// logging
func openStore(log *zap.Logger) (storage.Store, error) {
	var store storage.Store
	var err error

	switch backend := viper.GetString("store.backend"); backend {
	case "bolt":
		path := viper.GetString("store.bolt.path")
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
		store, err = boltdb.New(path, "documents")
	case "redis":
		store, err = redis.NewClient(
			viper.GetString("store.redis.address"),
			viper.GetString("store.redis.password"),
			viper.GetInt("store.redis.db"))
	case "s3":
		store, err = objstore.New(
			viper.GetString("store.s3.endpoint"),
			viper.GetString("store.s3.access-key"),
			viper.GetString("store.s3.secret-key"),
			viper.GetString("store.s3.bucket"),
			viper.GetBool("store.s3.use-ssl"))
	case "memory":
		store = teststore.New()
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	return storelogger.New(log.Named("store"), store), nil
}
