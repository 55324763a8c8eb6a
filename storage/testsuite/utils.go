// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"storj.io/paddock/storage"
)

func newItem(key, value string) storage.ListItem {
	return storage.ListItem{
		Key:   storage.Key(key),
		Value: storage.Value(value),
	}
}

func cleanupItems(store storage.Store, items storage.Items) {
	ctx := context.Background()
	for _, item := range items {
		_ = store.Delete(ctx, item.Key)
	}
}

func testKeysSorted(t *testing.T, keys storage.Keys) {
	t.Helper()
	if len(keys) == 0 {
		return
	}

	a := keys[0]
	for _, b := range keys[1:] {
		if b.Less(a) {
			t.Fatalf("unsorted order: %v", keys)
		}
		a = b
	}
}

func checkKeys(t *testing.T, got storage.Keys, exp []string) {
	t.Helper()
	gotStrings := make([]string, 0, len(got))
	for _, key := range got {
		gotStrings = append(gotStrings, string(key))
	}
	if diff := cmp.Diff(exp, gotStrings); diff != "" {
		t.Fatalf("keys mismatch: (-want +got)\n%s", diff)
	}
}

func checkValue(t *testing.T, got, exp storage.Value) {
	t.Helper()
	if !bytes.Equal(got, exp) {
		t.Fatalf("invalid value, got %q exp %q", got, exp)
	}
}
