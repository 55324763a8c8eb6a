// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package revisions_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storj.io/paddock/internal/testcontext"
	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/revisions"
	"storj.io/paddock/storage"
	"storj.io/paddock/storage/teststore"
)

func snapshot(t *testing.T, name string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(map[string]string{"name": name})
	require.NoError(t, err)
	return data
}

func TestAppendAndList(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	log := revisions.ForBlock(store, "f1", "b1")

	list, err := log.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, name := range []string{"first", "second", "third"} {
		err := log.Append(ctx, revisions.Revision{
			EntityID:      "b1",
			FarmID:        "f1",
			UpdatedBy:     "u1",
			UpdatedByName: "Grower",
			Snapshot:      snapshot(t, name),
		})
		require.NoError(t, err)
	}

	list, err = log.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// newest first
	assert.JSONEq(t, `{"name":"third"}`, string(list[0].Snapshot))
	assert.JSONEq(t, `{"name":"first"}`, string(list[2].Snapshot))

	for _, revision := range list {
		assert.NotEmpty(t, revision.ID)
		assert.False(t, revision.CreatedAt.IsZero())
		assert.Equal(t, "b1", revision.EntityID)
		assert.Equal(t, "u1", revision.UpdatedBy)
	}
	assert.True(t, !list[0].CreatedAt.Before(list[2].CreatedAt))
}

func TestCapEviction(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	log := revisions.NewLog(store, storage.Key("farms/f1/blocks/b1/revisions.json"), 3)

	for i := 0; i < 5; i++ {
		err := log.Append(ctx, revisions.Revision{
			EntityID: "b1",
			Snapshot: snapshot(t, fmt.Sprintf("rev-%d", i)),
		})
		require.NoError(t, err)
	}

	list, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// the oldest entries were evicted
	assert.JSONEq(t, `{"name":"rev-4"}`, string(list[0].Snapshot))
	assert.JSONEq(t, `{"name":"rev-3"}`, string(list[1].Snapshot))
	assert.JSONEq(t, `{"name":"rev-2"}`, string(list[2].Snapshot))
}

func TestCaps(t *testing.T) {
	assert.Equal(t, 100, revisions.BlockCap)
	assert.Equal(t, 50, revisions.DatasetCap)
}

func TestGet(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	log := revisions.ForDataset(store, "f1", "d1")

	require.NoError(t, log.Append(ctx, revisions.Revision{EntityID: "d1", Snapshot: snapshot(t, "one")}))

	list, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	revision, err := log.Get(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, revision.ID)

	_, err = log.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errs2.ErrNotFound.Has(err))
}

func TestDelete(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	log := revisions.ForBlock(store, "f1", "b1")

	// deleting an absent log is fine
	require.NoError(t, log.Delete(ctx))

	require.NoError(t, log.Append(ctx, revisions.Revision{EntityID: "b1", Snapshot: snapshot(t, "one")}))
	require.NoError(t, log.Delete(ctx))

	list, err := log.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
