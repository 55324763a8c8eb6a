// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package blocks manages the field blocks of a farm. All blocks of one farm
// live in a single stored feature-collection document; every mutation is a
// read-modify-write of that document followed by a rollup refresh on the farm.
package blocks

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/skyrings/skyring-common/tools/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/pkg/auth"
	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/farms"
	"storj.io/paddock/pkg/paths"
	"storj.io/paddock/pkg/revisions"
	"storj.io/paddock/storage"
)

var mon = monkit.Package()

// Error is the default blocks errs class
var Error = errs.Class("blocks error")

// Service handles block operations
type Service struct {
	log   *zap.Logger
	store storage.Store
	farms *farms.Service
}

// NewService creates a block service over store, authorizing and refreshing
// rollups through the farm service
func NewService(log *zap.Logger, store storage.Store, farms *farms.Service) *Service {
	return &Service{log: log, store: store, farms: farms}
}

// Create validates info, stores the block as a new feature in the farm's
// block document and refreshes the farm rollup
func (s *Service) Create(ctx context.Context, farmID string, info Info) (_ *Block, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, _, err := s.authorizeWrite(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("block name is required"))
	}
	if err := validGeometry(info.Geometry); err != nil {
		return nil, err
	}

	id, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	now := time.Now().UTC()
	block := &Block{
		ID:            id.String(),
		FarmID:        farmID,
		Name:          strings.TrimSpace(info.Name),
		Variety:       info.Variety,
		PlantingYear:  info.PlantingYear,
		RowSpacing:    info.RowSpacing,
		TreeSpacing:   info.TreeSpacing,
		Area:          geo.Area(info.Geometry),
		Custom:        info.Custom,
		Geometry:      info.Geometry,
		UpdatedBy:     principal.ID,
		UpdatedByName: principal.DisplayName(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	collection, err := s.collection(ctx, farmID)
	if err != nil {
		return nil, err
	}
	feature, err := block.feature()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	collection.Append(feature)

	if err := s.putCollection(ctx, farmID, collection); err != nil {
		return nil, err
	}
	s.refreshRollup(ctx, farmID)
	return block, nil
}

// Get returns the block with blockID
func (s *Service) Get(ctx context.Context, farmID, blockID string) (_ *Block, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}

	collection, err := s.collection(ctx, farmID)
	if err != nil {
		return nil, err
	}
	_, feature := findFeature(collection, blockID)
	if feature == nil {
		return nil, Error.Wrap(errs2.ErrNotFound.New("block %q", blockID))
	}

	block, err := fromFeature(feature)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return block, nil
}

// List returns every block of the farm in stored order
func (s *Service) List(ctx context.Context, farmID string) (_ []Block, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}

	collection, err := s.collection(ctx, farmID)
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(collection.Features))
	for _, feature := range collection.Features {
		block, err := fromFeature(feature)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		blocks = append(blocks, *block)
	}
	return blocks, nil
}

// Update snapshots the current state into the revision log, merges patch over
// the block and persists the result. ID and FarmID stay as stored regardless
// of the patch content, Area is re-derived when the geometry changes.
func (s *Service) Update(ctx context.Context, farmID, blockID string, patch Patch) (_ *Block, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, _, err := s.authorizeWrite(ctx, farmID)
	if err != nil {
		return nil, err
	}

	collection, err := s.collection(ctx, farmID)
	if err != nil {
		return nil, err
	}
	index, feature := findFeature(collection, blockID)
	if feature == nil {
		return nil, Error.Wrap(errs2.ErrNotFound.New("block %q", blockID))
	}
	block, err := fromFeature(feature)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("block name is required"))
	}
	if patch.Geometry != nil {
		if err := validGeometry(patch.Geometry); err != nil {
			return nil, err
		}
	}

	s.snapshot(ctx, block, principal, patch.Message)

	if patch.Name != nil {
		block.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Variety != nil {
		block.Variety = *patch.Variety
	}
	if patch.PlantingYear != nil {
		block.PlantingYear = *patch.PlantingYear
	}
	if patch.RowSpacing != nil {
		block.RowSpacing = *patch.RowSpacing
	}
	if patch.TreeSpacing != nil {
		block.TreeSpacing = *patch.TreeSpacing
	}
	if patch.Geometry != nil {
		block.Geometry = patch.Geometry
		block.Area = geo.Area(patch.Geometry)
	}
	if len(patch.Custom) > 0 {
		if block.Custom == nil {
			block.Custom = map[string]interface{}{}
		}
		for key, value := range patch.Custom {
			if reservedKeys[key] {
				continue
			}
			if value == nil {
				delete(block.Custom, key)
				continue
			}
			block.Custom[key] = value
		}
	}

	block.ID = blockID
	block.FarmID = farmID
	block.RevisionMessage = patch.Message
	block.UpdatedBy = principal.ID
	block.UpdatedByName = principal.DisplayName()
	block.UpdatedAt = time.Now().UTC()

	updated, err := block.feature()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	collection.Features[index] = updated

	if err := s.putCollection(ctx, farmID, collection); err != nil {
		return nil, err
	}
	s.refreshRollup(ctx, farmID)
	return block, nil
}

// Revert restores the block's mutable fields from the revision with
// revisionID. The state right before the revert is snapshotted first, so the
// revert itself can be reverted.
func (s *Service) Revert(ctx context.Context, farmID, blockID, revisionID string) (_ *Block, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, _, err := s.authorizeWrite(ctx, farmID)
	if err != nil {
		return nil, err
	}

	log := revisions.ForBlock(s.store, farmID, blockID)
	target, err := log.Get(ctx, revisionID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	collection, err := s.collection(ctx, farmID)
	if err != nil {
		return nil, err
	}
	index, feature := findFeature(collection, blockID)
	if feature == nil {
		return nil, Error.Wrap(errs2.ErrNotFound.New("block %q", blockID))
	}
	current, err := fromFeature(feature)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	s.snapshot(ctx, current, principal, "Reverted to "+revisionID)

	restoredFeature, err := geojson.UnmarshalFeature(target.Snapshot)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	restored, err := fromFeature(restoredFeature)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	restored.ID = blockID
	restored.FarmID = farmID
	restored.CreatedAt = current.CreatedAt
	if restored.Geometry != nil {
		restored.Area = geo.Area(restored.Geometry)
	} else {
		restored.Geometry = current.Geometry
		restored.Area = current.Area
	}
	restored.RevisionMessage = "Reverted to " + revisionID
	restored.UpdatedBy = principal.ID
	restored.UpdatedByName = principal.DisplayName()
	restored.UpdatedAt = time.Now().UTC()

	updated, err := restored.feature()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	collection.Features[index] = updated

	if err := s.putCollection(ctx, farmID, collection); err != nil {
		return nil, err
	}
	s.refreshRollup(ctx, farmID)
	return restored, nil
}

// Delete filters the block out of the farm's block document and drops its
// revision log
func (s *Service) Delete(ctx context.Context, farmID, blockID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, _, err := s.authorizeWrite(ctx, farmID); err != nil {
		return err
	}

	collection, err := s.collection(ctx, farmID)
	if err != nil {
		return err
	}
	index, feature := findFeature(collection, blockID)
	if feature == nil {
		return Error.Wrap(errs2.ErrNotFound.New("block %q", blockID))
	}
	collection.Features = append(collection.Features[:index], collection.Features[index+1:]...)

	if err := s.putCollection(ctx, farmID, collection); err != nil {
		return err
	}

	if err := revisions.ForBlock(s.store, farmID, blockID).Delete(ctx); err != nil {
		s.log.Error("failed to delete block revisions",
			zap.String("farmID", farmID), zap.String("blockID", blockID), zap.Error(err))
	}

	s.refreshRollup(ctx, farmID)
	return nil
}

// Revisions lists the block's kept revisions, newest first
func (s *Service) Revisions(ctx context.Context, farmID, blockID string) (_ []revisions.Revision, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}
	list, err := revisions.ForBlock(s.store, farmID, blockID).List(ctx)
	return list, Error.Wrap(err)
}

// snapshot appends the block's current state to its revision log. History is
// best effort, failures are logged and the mutation continues.
func (s *Service) snapshot(ctx context.Context, block *Block, principal auth.Principal, message string) {
	feature, err := block.feature()
	if err == nil {
		var data []byte
		data, err = feature.MarshalJSON()
		if err == nil {
			err = revisions.ForBlock(s.store, block.FarmID, block.ID).Append(ctx, revisions.Revision{
				EntityID:      block.ID,
				FarmID:        block.FarmID,
				Message:       message,
				UpdatedBy:     principal.ID,
				UpdatedByName: principal.DisplayName(),
				Snapshot:      data,
			})
		}
	}
	if err != nil {
		s.log.Error("failed to append block revision",
			zap.String("farmID", block.FarmID), zap.String("blockID", block.ID), zap.Error(err))
	}
}

// refreshRollup recomputes the farm counters. Rollups are self-healing, a
// failure here leaves them stale until the next mutation, never fails the
// mutation itself.
func (s *Service) refreshRollup(ctx context.Context, farmID string) {
	if err := s.farms.RefreshRollup(ctx, farmID); err != nil {
		s.log.Error("failed to refresh farm rollup",
			zap.String("farmID", farmID), zap.Error(err))
	}
}

func (s *Service) authorizeRead(ctx context.Context, farmID string) error {
	_, resolved, err := s.farms.Authorize(ctx, farmID)
	if err != nil {
		return Error.Wrap(err)
	}
	if !resolved.Read {
		return Error.Wrap(errs2.ErrForbidden.New("no access to farm %q", farmID))
	}
	return nil
}

func (s *Service) authorizeWrite(ctx context.Context, farmID string) (auth.Principal, *farms.Farm, error) {
	principal, err := auth.FromContext(ctx)
	if err != nil {
		return auth.Principal{}, nil, Error.Wrap(err)
	}
	farm, resolved, err := s.farms.Authorize(ctx, farmID)
	if err != nil {
		return auth.Principal{}, nil, Error.Wrap(err)
	}
	if !resolved.Write {
		return auth.Principal{}, nil, Error.Wrap(errs2.ErrForbidden.New("no write access to farm %q", farmID))
	}
	return principal, farm, nil
}

// collection reads the farm's block document, absent means empty
func (s *Service) collection(ctx context.Context, farmID string) (*geojson.FeatureCollection, error) {
	data, err := s.store.Get(ctx, paths.Blocks(farmID))
	if storage.ErrKeyNotFound.Has(err) {
		return geojson.NewFeatureCollection(), nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return collection, nil
}

func (s *Service) putCollection(ctx context.Context, farmID string, collection *geojson.FeatureCollection) error {
	data, err := json.Marshal(collection)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(s.store.Put(ctx, paths.Blocks(farmID), data))
}

func findFeature(collection *geojson.FeatureCollection, blockID string) (int, *geojson.Feature) {
	for i, feature := range collection.Features {
		if id, ok := feature.ID.(string); ok && id == blockID {
			return i, feature
		}
		if id, ok := feature.Properties["id"].(string); ok && id == blockID {
			return i, feature
		}
	}
	return -1, nil
}

func validGeometry(geometry orb.Geometry) error {
	switch geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return nil
	case nil:
		return Error.Wrap(errs2.ErrValidation.New("block geometry is required"))
	default:
		return Error.Wrap(errs2.ErrValidation.New("block geometry must be a polygon or multipolygon, got %q", geometry.GeoJSONType()))
	}
}
