// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package farms_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storj.io/paddock/internal/testcontext"
	"storj.io/paddock/pkg/access"
	"storj.io/paddock/pkg/auth"
	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/farms"
	"storj.io/paddock/pkg/paths"
	"storj.io/paddock/storage"
	"storj.io/paddock/storage/teststore"
)

var (
	owner    = auth.Principal{ID: "owner", Email: "owner@example.com", Name: "Owner"}
	editor   = auth.Principal{ID: "editor", Email: "editor@example.com"}
	stranger = auth.Principal{ID: "stranger", Email: "stranger@example.com"}
)

func newService() (*farms.Service, *teststore.Client) {
	store := teststore.New()
	return farms.NewService(zap.NewNop(), store), store
}

func as(ctx context.Context, principal auth.Principal) context.Context {
	return auth.WithPrincipal(ctx, principal)
}

func TestCreate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newService()

	t.Run("requires principal", func(t *testing.T) {
		_, err := service.Create(ctx, farms.Info{Name: "North"})
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})

	t.Run("requires name", func(t *testing.T) {
		_, err := service.Create(as(ctx, owner), farms.Info{Name: "   "})
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})

	t.Run("creates", func(t *testing.T) {
		farm, err := service.Create(as(ctx, owner), farms.Info{Name: "North", Location: "Hawkes Bay"})
		require.NoError(t, err)
		assert.NotEmpty(t, farm.ID)
		assert.Equal(t, "North", farm.Name)
		assert.Equal(t, "Hawkes Bay", farm.Location)
		assert.Equal(t, owner.ID, farm.Owner)
		assert.False(t, farm.CreatedAt.IsZero())
		assert.Equal(t, farm.CreatedAt, farm.UpdatedAt)

		got, err := service.Get(as(ctx, owner), farm.ID)
		require.NoError(t, err)
		assert.Equal(t, farm.ID, got.ID)
	})
}

func TestGet(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newService()
	farm, err := service.Create(as(ctx, owner), farms.Info{Name: "North"})
	require.NoError(t, err)

	t.Run("missing farm", func(t *testing.T) {
		_, err := service.Get(as(ctx, owner), "missing")
		require.Error(t, err)
		assert.True(t, errs2.ErrNotFound.Has(err))
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		_, err := service.Get(as(ctx, stranger), farm.ID)
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})
}

func TestList(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newService()

	mine, err := service.Create(as(ctx, owner), farms.Info{Name: "Mine"})
	require.NoError(t, err)
	_, err = service.Create(as(ctx, stranger), farms.Info{Name: "Theirs"})
	require.NoError(t, err)

	shared, err := service.Create(as(ctx, stranger), farms.Info{Name: "Shared"})
	require.NoError(t, err)
	require.NoError(t, service.AddCollaborator(as(ctx, stranger), shared.ID, owner.ID, access.RoleViewer))

	listed, err := service.List(as(ctx, owner))
	require.NoError(t, err)
	require.Len(t, listed, 2)

	ids := []string{listed[0].ID, listed[1].ID}
	assert.Contains(t, ids, mine.ID)
	assert.Contains(t, ids, shared.ID)
}

func TestUpdate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newService()
	farm, err := service.Create(as(ctx, owner), farms.Info{Name: "North"})
	require.NoError(t, err)
	require.NoError(t, service.AddCollaborator(as(ctx, owner), farm.ID, editor.ID, access.RoleEditor))

	updated, err := service.Update(as(ctx, editor), farm.ID, farms.Info{Name: "North Ridge", Location: "Gisborne"})
	require.NoError(t, err)
	assert.Equal(t, farm.ID, updated.ID)
	assert.Equal(t, owner.ID, updated.Owner)
	assert.Equal(t, "North Ridge", updated.Name)
	assert.Equal(t, "Gisborne", updated.Location)
	assert.True(t, updated.UpdatedAt.After(farm.UpdatedAt) || updated.UpdatedAt.Equal(farm.UpdatedAt))

	t.Run("viewer is forbidden", func(t *testing.T) {
		require.NoError(t, service.AddCollaborator(as(ctx, owner), farm.ID, stranger.ID, access.RoleViewer))
		_, err := service.Update(as(ctx, stranger), farm.ID, farms.Info{Name: "Nope"})
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})
}

func TestDelete(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, store := newService()
	farm, err := service.Create(as(ctx, owner), farms.Info{Name: "North"})
	require.NoError(t, err)

	// nested documents are swept together with the farm
	require.NoError(t, store.Put(ctx, paths.Blocks(farm.ID), storage.Value(`{"type":"FeatureCollection","features":[]}`)))
	require.NoError(t, store.Put(ctx, paths.Dataset(farm.ID, "d1"), storage.Value(`{"id":"d1"}`)))
	require.NoError(t, store.Put(ctx, paths.DatasetRaw(farm.ID, "d1", "csv"), storage.Value("a,b")))

	t.Run("editor is forbidden", func(t *testing.T) {
		require.NoError(t, service.AddCollaborator(as(ctx, owner), farm.ID, editor.ID, access.RoleEditor))
		err := service.Delete(as(ctx, editor), farm.ID)
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})

	require.NoError(t, service.Delete(as(ctx, owner), farm.ID))

	keys, err := store.List(ctx, paths.FarmPrefix(farm.ID))
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = service.Get(as(ctx, owner), farm.ID)
	assert.True(t, errs2.ErrNotFound.Has(err))
}

func TestCollaborators(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, store := newService()
	farm, err := service.Create(as(ctx, owner), farms.Info{Name: "North"})
	require.NoError(t, err)

	require.NoError(t, service.AddCollaborator(as(ctx, owner), farm.ID, editor.ID, access.RoleEditor))

	t.Run("non administrator cannot manage", func(t *testing.T) {
		err := service.AddCollaborator(as(ctx, editor), farm.ID, stranger.ID, access.RoleViewer)
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})

	t.Run("unknown role", func(t *testing.T) {
		err := service.AddCollaborator(as(ctx, owner), farm.ID, stranger.ID, access.Role("boss"))
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})

	t.Run("add replaces existing entry", func(t *testing.T) {
		require.NoError(t, service.AddCollaborator(as(ctx, owner), farm.ID, editor.ID, access.RoleAdministrator))
		got, err := service.Get(as(ctx, owner), farm.ID)
		require.NoError(t, err)
		require.Len(t, got.Collaborators, 1)
		assert.Equal(t, access.RoleAdministrator, got.Collaborators[0].Role)
	})

	t.Run("remove covers legacy shapes", func(t *testing.T) {
		// simulate an old document carrying the same user in every representation
		got, err := service.Get(as(ctx, owner), farm.ID)
		require.NoError(t, err)
		got.Members = append(got.Members, editor.ID)
		got.Permissions = map[string]access.Role{editor.ID: access.RoleEditor}
		data, err := json.Marshal(got)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, paths.Farm(farm.ID), data))

		require.NoError(t, service.RemoveCollaborator(as(ctx, owner), farm.ID, editor.ID))

		_, err = service.Get(as(ctx, editor), farm.ID)
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})

	t.Run("remove missing collaborator", func(t *testing.T) {
		err := service.RemoveCollaborator(as(ctx, owner), farm.ID, "nobody")
		require.Error(t, err)
		assert.True(t, errs2.ErrNotFound.Has(err))
	})

	t.Run("set permission grants through the legacy map", func(t *testing.T) {
		require.NoError(t, service.SetPermission(as(ctx, owner), farm.ID, stranger.ID, access.RoleEditor))

		_, err := service.Update(as(ctx, stranger), farm.ID, farms.Info{Name: "Renamed"})
		require.NoError(t, err)
	})
}

func TestRefreshRollup(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, store := newService()
	farm, err := service.Create(as(ctx, owner), farms.Info{Name: "North"})
	require.NoError(t, err)

	// one block with a stored area, one whose area must come from geometry
	ring := orb.Ring{{175.0, -39.0}, {175.001, -39.0}, {175.001, -39.001}, {175.0, -39.001}, {175.0, -39.0}}
	polygon := orb.Polygon{ring}

	withArea := geojson.NewFeature(polygon)
	withArea.Properties["id"] = "b1"
	withArea.Properties["area"] = 1000.0

	withoutArea := geojson.NewFeature(polygon)
	withoutArea.Properties["id"] = "b2"

	collection := geojson.NewFeatureCollection()
	collection.Append(withArea)
	collection.Append(withoutArea)
	data, err := json.Marshal(collection)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, paths.Blocks(farm.ID), data))

	require.NoError(t, store.Put(ctx, paths.Dataset(farm.ID, "d1"), storage.Value(`{"id":"d1"}`)))
	require.NoError(t, store.Put(ctx, paths.Dataset(farm.ID, "d2"), storage.Value(`{"id":"d2"}`)))
	require.NoError(t, store.Put(ctx, paths.DatasetRaw(farm.ID, "d1", "csv"), storage.Value("a,b")))

	require.NoError(t, service.RefreshRollup(ctx, farm.ID))

	got, err := service.Get(as(ctx, owner), farm.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BlockCount)
	assert.Equal(t, 2, got.DatasetCount)
	assert.InDelta(t, 1000.0+geo.Area(polygon), got.TotalArea, 0.1)
}

func TestRefreshRollupEmptyFarm(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newService()
	farm, err := service.Create(as(ctx, owner), farms.Info{Name: "North"})
	require.NoError(t, err)

	require.NoError(t, service.RefreshRollup(ctx, farm.ID))

	got, err := service.Get(as(ctx, owner), farm.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BlockCount)
	assert.Zero(t, got.DatasetCount)
	assert.Zero(t, got.TotalArea)
}
