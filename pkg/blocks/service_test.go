// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package blocks_test

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storj.io/paddock/internal/testcontext"
	"storj.io/paddock/pkg/access"
	"storj.io/paddock/pkg/auth"
	"storj.io/paddock/pkg/blocks"
	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/farms"
	"storj.io/paddock/pkg/paths"
	"storj.io/paddock/pkg/revisions"
	"storj.io/paddock/storage/teststore"
)

var (
	owner    = auth.Principal{ID: "owner", Email: "owner@example.com", Name: "Owner"}
	viewer   = auth.Principal{ID: "viewer", Email: "viewer@example.com"}
	stranger = auth.Principal{ID: "stranger", Email: "stranger@example.com"}
)

// squareAt returns a closed square polygon with its lower-left corner at
// (lon, lat), roughly side x side degrees
func squareAt(lon, lat, side float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat}, {lon + side, lat}, {lon + side, lat + side}, {lon, lat + side}, {lon, lat},
	}}
}

type fixture struct {
	farms  *farms.Service
	blocks *blocks.Service
	store  *teststore.Client
	farm   *farms.Farm
}

func newFixture(t *testing.T, ctx context.Context) *fixture {
	store := teststore.New()
	farmService := farms.NewService(zap.NewNop(), store)
	blockService := blocks.NewService(zap.NewNop(), store, farmService)

	farm, err := farmService.Create(as(ctx, owner), farms.Info{Name: "North"})
	require.NoError(t, err)
	require.NoError(t, farmService.AddCollaborator(as(ctx, owner), farm.ID, viewer.ID, access.RoleViewer))

	return &fixture{farms: farmService, blocks: blockService, store: store, farm: farm}
}

func as(ctx context.Context, principal auth.Principal) context.Context {
	return auth.WithPrincipal(ctx, principal)
}

func TestCreate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	fx := newFixture(t, ctx)
	geometry := squareAt(175.0, -39.0, 0.0003)

	t.Run("requires name", func(t *testing.T) {
		_, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{Geometry: geometry})
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})

	t.Run("requires geometry", func(t *testing.T) {
		_, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{Name: "B1"})
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})

	t.Run("rejects point geometry", func(t *testing.T) {
		_, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{
			Name: "B1", Geometry: orb.Point{175, -39},
		})
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})

	t.Run("viewer is forbidden", func(t *testing.T) {
		_, err := fx.blocks.Create(as(ctx, viewer), fx.farm.ID, blocks.Info{Name: "B1", Geometry: geometry})
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})

	t.Run("creates with derived area", func(t *testing.T) {
		block, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{
			Name:     "B1",
			Variety:  "Braeburn",
			Geometry: geometry,
			Custom:   map[string]interface{}{"soil": "clay"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, block.ID)
		assert.Equal(t, fx.farm.ID, block.FarmID)
		assert.Equal(t, owner.ID, block.UpdatedBy)
		assert.InDelta(t, geo.Area(geometry), block.Area, 1e-6)

		got, err := fx.blocks.Get(as(ctx, viewer), fx.farm.ID, block.ID)
		require.NoError(t, err)
		assert.Equal(t, "B1", got.Name)
		assert.Equal(t, "clay", got.Custom["soil"])
		assert.Equal(t, geometry.GeoJSONType(), got.Geometry.GeoJSONType())
	})

	t.Run("refreshes farm rollup", func(t *testing.T) {
		farm, err := fx.farms.Get(as(ctx, owner), fx.farm.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, farm.BlockCount)
		assert.InDelta(t, geo.Area(geometry), farm.TotalArea, 1e-6)
	})
}

func TestUpdate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	fx := newFixture(t, ctx)
	geometry := squareAt(175.0, -39.0, 0.0003)
	block, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{Name: "B1", Geometry: geometry})
	require.NoError(t, err)

	t.Run("missing block", func(t *testing.T) {
		name := "B2"
		_, err := fx.blocks.Update(as(ctx, owner), fx.farm.ID, "missing", blocks.Patch{Name: &name})
		require.Error(t, err)
		assert.True(t, errs2.ErrNotFound.Has(err))
	})

	t.Run("snapshots before applying", func(t *testing.T) {
		name := "B1 renamed"
		updated, err := fx.blocks.Update(as(ctx, owner), fx.farm.ID, block.ID, blocks.Patch{
			Name: &name, Message: "rename",
		})
		require.NoError(t, err)
		assert.Equal(t, "B1 renamed", updated.Name)
		assert.Equal(t, block.ID, updated.ID)

		list, err := fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "rename", list[0].Message)

		// newest entry holds the pre-update state
		snapshot := string(list[0].Snapshot)
		assert.Contains(t, snapshot, `"name":"B1"`)
	})

	t.Run("identity fields are protected", func(t *testing.T) {
		updated, err := fx.blocks.Update(as(ctx, owner), fx.farm.ID, block.ID, blocks.Patch{
			Custom: map[string]interface{}{"id": "forged", "farmId": "forged", "note": "ok"},
		})
		require.NoError(t, err)
		assert.Equal(t, block.ID, updated.ID)
		assert.Equal(t, fx.farm.ID, updated.FarmID)
		assert.Equal(t, "ok", updated.Custom["note"])
		assert.NotContains(t, updated.Custom, "id")
	})

	t.Run("geometry change re-derives area", func(t *testing.T) {
		bigger := squareAt(175.0, -39.0, 0.0006)
		updated, err := fx.blocks.Update(as(ctx, owner), fx.farm.ID, block.ID, blocks.Patch{Geometry: bigger})
		require.NoError(t, err)
		assert.InDelta(t, geo.Area(bigger), updated.Area, 1e-6)

		farm, err := fx.farms.Get(as(ctx, owner), fx.farm.ID)
		require.NoError(t, err)
		assert.InDelta(t, geo.Area(bigger), farm.TotalArea, 1e-6)
	})

	t.Run("viewer is forbidden", func(t *testing.T) {
		name := "nope"
		_, err := fx.blocks.Update(as(ctx, viewer), fx.farm.ID, block.ID, blocks.Patch{Name: &name})
		require.Error(t, err)
		assert.True(t, errs2.ErrForbidden.Has(err))
	})
}

func TestRevisionCap(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	fx := newFixture(t, ctx)
	block, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{
		Name: "B1", Geometry: squareAt(175.0, -39.0, 0.0003),
	})
	require.NoError(t, err)

	for i := 0; i < revisions.BlockCap+10; i++ {
		name := "B1"
		_, err := fx.blocks.Update(as(ctx, owner), fx.farm.ID, block.ID, blocks.Patch{Name: &name})
		require.NoError(t, err)
	}

	list, err := fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
	require.NoError(t, err)
	assert.Len(t, list, revisions.BlockCap)

	// newest first: every entry is younger than or as old as its successor
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i-1].CreatedAt.Before(list[i].CreatedAt))
	}
}

func TestRevert(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	fx := newFixture(t, ctx)
	geometry := squareAt(175.0, -39.0, 0.0003)
	block, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{Name: "Original", Geometry: geometry})
	require.NoError(t, err)

	list, err := fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
	require.NoError(t, err)
	require.Len(t, list, 0)

	name := "Renamed"
	_, err = fx.blocks.Update(as(ctx, owner), fx.farm.ID, block.ID, blocks.Patch{Name: &name})
	require.NoError(t, err)

	list, err = fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	t.Run("missing revision", func(t *testing.T) {
		_, err := fx.blocks.Revert(as(ctx, owner), fx.farm.ID, block.ID, "missing")
		require.Error(t, err)
		assert.True(t, errs2.ErrNotFound.Has(err))
	})

	t.Run("restores and logs itself", func(t *testing.T) {
		restored, err := fx.blocks.Revert(as(ctx, owner), fx.farm.ID, block.ID, list[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Original", restored.Name)
		assert.Equal(t, block.ID, restored.ID)
		assert.Equal(t, "Reverted to "+list[0].ID, restored.RevisionMessage)
		assert.InDelta(t, geo.Area(geometry), restored.Area, 1e-6)

		after, err := fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
		require.NoError(t, err)
		require.Len(t, after, 2)
		// the newest entry holds the pre-revert state
		assert.Contains(t, string(after[0].Snapshot), `"name":"Renamed"`)
	})
}

func TestDelete(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	fx := newFixture(t, ctx)
	geometry := squareAt(175.0, -39.0, 0.0003)
	block, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{Name: "B1", Geometry: geometry})
	require.NoError(t, err)

	keep, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{Name: "B2", Geometry: geometry})
	require.NoError(t, err)

	name := "B1 renamed"
	_, err = fx.blocks.Update(as(ctx, owner), fx.farm.ID, block.ID, blocks.Patch{Name: &name})
	require.NoError(t, err)

	t.Run("missing block", func(t *testing.T) {
		err := fx.blocks.Delete(as(ctx, owner), fx.farm.ID, "missing")
		require.Error(t, err)
		assert.True(t, errs2.ErrNotFound.Has(err))
	})

	t.Run("deletes block and revisions", func(t *testing.T) {
		require.NoError(t, fx.blocks.Delete(as(ctx, owner), fx.farm.ID, block.ID))

		_, err := fx.blocks.Get(as(ctx, owner), fx.farm.ID, block.ID)
		assert.True(t, errs2.ErrNotFound.Has(err))

		exists, err := fx.store.Exists(ctx, paths.BlockRevisions(fx.farm.ID, block.ID))
		require.NoError(t, err)
		assert.False(t, exists)

		remaining, err := fx.blocks.List(as(ctx, owner), fx.farm.ID)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, keep.ID, remaining[0].ID)
	})

	t.Run("rollup follows", func(t *testing.T) {
		farm, err := fx.farms.Get(as(ctx, owner), fx.farm.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, farm.BlockCount)
		assert.InDelta(t, geo.Area(geometry), farm.TotalArea, 1e-6)
	})
}

func TestScenarioRenameRevert(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	fx := newFixture(t, ctx)

	// a small square at 39 degrees south, about 1000 square meters
	geometry := squareAt(175.0, -39.0, 0.00032)
	block, err := fx.blocks.Create(as(ctx, owner), fx.farm.ID, blocks.Info{Name: "B1", Geometry: geometry})
	require.NoError(t, err)
	assert.InDelta(t, 1000, block.Area, 150)

	list, err := fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
	require.NoError(t, err)
	require.Len(t, list, 0)

	name := "B1 v2"
	_, err = fx.blocks.Update(as(ctx, owner), fx.farm.ID, block.ID, blocks.Patch{Name: &name})
	require.NoError(t, err)

	list, err = fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, string(list[0].Snapshot), `"name":"B1"`)

	restored, err := fx.blocks.Revert(as(ctx, owner), fx.farm.ID, block.ID, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "B1", restored.Name)

	list, err = fx.blocks.Revisions(as(ctx, owner), fx.farm.ID, block.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
