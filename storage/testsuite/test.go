// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"context"
	"testing"

	"storj.io/paddock/storage"
)

// RunTests runs common storage.Store tests
func RunTests(t *testing.T, store storage.Store) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, store) })
	t.Run("Exists", func(t *testing.T) { testExists(t, store) })
	t.Run("List", func(t *testing.T) { testList(t, store) })
	t.Run("Constraints", func(t *testing.T) { testConstraints(t, store) })
}

func testCRUD(t *testing.T, store storage.Store) {
	ctx := context.Background()

	items := storage.Items{
		newItem("farms/a/metadata.json", `{"id":"a"}`),
		newItem("farms/b/metadata.json", `{"id":"b"}`),
		newItem("farms/c/metadata.json", `{"id":"c"}`),
	}
	defer cleanupItems(store, items)

	for _, item := range items {
		if err := store.Put(ctx, item.Key, item.Value); err != nil {
			t.Fatalf("failed to put %q: %v", item.Key, err)
		}
	}

	for _, item := range items {
		value, err := store.Get(ctx, item.Key)
		if err != nil {
			t.Fatalf("failed to get %q: %v", item.Key, err)
		}
		checkValue(t, value, item.Value)
	}

	for _, item := range items {
		if err := store.Delete(ctx, item.Key); err != nil {
			t.Fatalf("failed to delete %q: %v", item.Key, err)
		}
	}

	for _, item := range items {
		_, err := store.Get(ctx, item.Key)
		if !storage.ErrKeyNotFound.Has(err) {
			t.Fatalf("got %q after delete: %v", item.Key, err)
		}
	}
}

func testOverwrite(t *testing.T, store storage.Store) {
	ctx := context.Background()

	item := newItem("farms/a/blocks.json", `{"features":[]}`)
	defer cleanupItems(store, storage.Items{item})

	if err := store.Put(ctx, item.Key, item.Value); err != nil {
		t.Fatal(err)
	}

	// whole-value overwrite, the last writer wins
	updated := storage.Value(`{"features":[{"id":"b1"}]}`)
	if err := store.Put(ctx, item.Key, updated); err != nil {
		t.Fatal(err)
	}

	value, err := store.Get(ctx, item.Key)
	if err != nil {
		t.Fatal(err)
	}
	checkValue(t, value, updated)
}

func testExists(t *testing.T, store storage.Store) {
	ctx := context.Background()

	item := newItem("farms/a/datasets/d1/metadata.json", `{"id":"d1"}`)
	defer cleanupItems(store, storage.Items{item})

	exists, err := store.Exists(ctx, item.Key)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("exists before put")
	}

	if err := store.Put(ctx, item.Key, item.Value); err != nil {
		t.Fatal(err)
	}

	exists, err = store.Exists(ctx, item.Key)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("missing after put")
	}

	if err := store.Delete(ctx, item.Key); err != nil {
		t.Fatal(err)
	}

	exists, err = store.Exists(ctx, item.Key)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("exists after delete")
	}
}

func testList(t *testing.T, store storage.Store) {
	ctx := context.Background()

	items := storage.Items{
		newItem("farms/a/blocks.json", "b"),
		newItem("farms/a/datasets/d1/metadata.json", "d1"),
		newItem("farms/a/datasets/d1/raw.csv", "raw"),
		newItem("farms/a/datasets/d2/metadata.json", "d2"),
		newItem("farms/a/metadata.json", "a"),
		newItem("farms/b/metadata.json", "b"),
	}
	defer cleanupItems(store, items)

	for _, item := range items {
		if err := store.Put(ctx, item.Key, item.Value); err != nil {
			t.Fatalf("failed to put %q: %v", item.Key, err)
		}
	}

	keys, err := store.List(ctx, storage.Key("farms/a/"))
	if err != nil {
		t.Fatal(err)
	}
	testKeysSorted(t, keys)
	checkKeys(t, keys, []string{
		"farms/a/blocks.json",
		"farms/a/datasets/d1/metadata.json",
		"farms/a/datasets/d1/raw.csv",
		"farms/a/datasets/d2/metadata.json",
		"farms/a/metadata.json",
	})

	keys, err = store.List(ctx, storage.Key("farms/a/datasets/"))
	if err != nil {
		t.Fatal(err)
	}
	checkKeys(t, keys, []string{
		"farms/a/datasets/d1/metadata.json",
		"farms/a/datasets/d1/raw.csv",
		"farms/a/datasets/d2/metadata.json",
	})

	keys, err = store.List(ctx, storage.Key("farms/missing/"))
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("listed absent prefix: %v", keys)
	}
}

func testConstraints(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("Put Empty", func(t *testing.T) {
		var key storage.Key
		err := store.Put(ctx, key, storage.Value("xyz"))
		if err == nil {
			t.Fatal("putting empty key should fail")
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := store.Get(ctx, storage.Key("missing"))
		if !storage.ErrKeyNotFound.Has(err) {
			t.Fatalf("getting missing key should fail with ErrKeyNotFound: %v", err)
		}
	})

	t.Run("Delete Missing", func(t *testing.T) {
		err := store.Delete(ctx, storage.Key("missing"))
		if !storage.ErrKeyNotFound.Has(err) {
			t.Fatalf("deleting missing key should fail with ErrKeyNotFound: %v", err)
		}
	})
}
