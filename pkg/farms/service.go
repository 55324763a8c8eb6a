// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package farms manages farm documents: create/update/delete, collaborator
// administration and the derived rollups recomputed after entity mutations.
package farms

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/skyrings/skyring-common/tools/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/pkg/access"
	"storj.io/paddock/pkg/auth"
	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/paths"
	"storj.io/paddock/storage"
)

var mon = monkit.Package()

// Error is the default farms errs class
var Error = errs.Class("farms error")

// Service handles farm operations
type Service struct {
	log   *zap.Logger
	store storage.Store
}

// NewService creates a farm service over store
func NewService(log *zap.Logger, store storage.Store) *Service {
	return &Service{log: log, store: store}
}

// Create creates a farm owned by the calling principal
func (s *Service) Create(ctx context.Context, info Info) (_ *Farm, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, err := auth.FromContext(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("farm name is required"))
	}

	id, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	now := time.Now().UTC()
	farm := &Farm{
		ID:        id.String(),
		Name:      strings.TrimSpace(info.Name),
		Location:  strings.TrimSpace(info.Location),
		Owner:     principal.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.put(ctx, farm); err != nil {
		return nil, err
	}
	return farm, nil
}

// Get returns the farm when the calling principal can read it
func (s *Service) Get(ctx context.Context, farmID string) (_ *Farm, err error) {
	defer mon.Task()(&ctx)(&err)

	farm, resolved, err := s.Authorize(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if !resolved.Read {
		return nil, Error.Wrap(errs2.ErrForbidden.New("no access to farm %q", farmID))
	}
	return farm, nil
}

// List returns every farm the calling principal can read. It reads each farm
// document, which is fine at the scale this layer operates on.
func (s *Service) List(ctx context.Context) (_ []Farm, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, err := auth.FromContext(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	keys, err := s.store.List(ctx, storage.Key(paths.FarmsPrefix))
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var farms []Farm
	for _, key := range keys {
		if !paths.IsFarmMetadata(key) {
			continue
		}

		data, err := s.store.Get(ctx, key)
		if storage.ErrKeyNotFound.Has(err) {
			continue
		}
		if err != nil {
			return nil, Error.Wrap(err)
		}

		var farm Farm
		if err := json.Unmarshal(data, &farm); err != nil {
			s.log.Error("skipping unreadable farm document",
				zap.ByteString("key", key), zap.Error(err))
			continue
		}

		if access.Resolve(farm.Grants(), principal.ID).Read {
			farms = append(farms, farm)
		}
	}
	return farms, nil
}

// Update changes the caller supplied farm fields, identity fields stay as
// they are
func (s *Service) Update(ctx context.Context, farmID string, info Info) (_ *Farm, err error) {
	defer mon.Task()(&ctx)(&err)

	farm, resolved, err := s.Authorize(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if !resolved.Write {
		return nil, Error.Wrap(errs2.ErrForbidden.New("no write access to farm %q", farmID))
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("farm name is required"))
	}

	farm.Name = strings.TrimSpace(info.Name)
	farm.Location = strings.TrimSpace(info.Location)
	farm.UpdatedAt = time.Now().UTC()

	if err := s.put(ctx, farm); err != nil {
		return nil, err
	}
	return farm, nil
}

// Delete removes the farm and every document stored under its prefix
func (s *Service) Delete(ctx context.Context, farmID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := s.authorizeAdmin(ctx, farmID); err != nil {
		return err
	}

	keys, err := s.store.List(ctx, paths.FarmPrefix(farmID))
	if err != nil {
		return Error.Wrap(err)
	}
	for _, key := range keys {
		err := s.store.Delete(ctx, key)
		if err != nil && !storage.ErrKeyNotFound.Has(err) {
			return Error.Wrap(err)
		}
	}
	return nil
}

// AddCollaborator grants role to userID on the farm, replacing any previous
// collaborator entry for the same user
func (s *Service) AddCollaborator(ctx context.Context, farmID, userID string, role access.Role) (err error) {
	defer mon.Task()(&ctx)(&err)

	farm, err := s.authorizeAdmin(ctx, farmID)
	if err != nil {
		return err
	}
	if userID == "" {
		return Error.Wrap(errs2.ErrValidation.New("user id is required"))
	}
	if !role.Valid() {
		return Error.Wrap(errs2.ErrValidation.New("unknown role %q", role))
	}

	replaced := false
	for i := range farm.Collaborators {
		if farm.Collaborators[i].UserID == userID {
			farm.Collaborators[i].Role = role
			replaced = true
		}
	}
	if !replaced {
		farm.Collaborators = append(farm.Collaborators, access.Collaborator{UserID: userID, Role: role})
	}
	farm.UpdatedAt = time.Now().UTC()

	return s.put(ctx, farm)
}

// RemoveCollaborator revokes userID from every permission representation of
// the farm. Revocation has to cover the legacy shapes too, otherwise the
// member list would keep granting read access.
func (s *Service) RemoveCollaborator(ctx context.Context, farmID, userID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	farm, err := s.authorizeAdmin(ctx, farmID)
	if err != nil {
		return err
	}
	if userID == farm.Owner {
		return Error.Wrap(errs2.ErrValidation.New("cannot remove the farm owner"))
	}

	removed := false

	collaborators := farm.Collaborators[:0]
	for _, collaborator := range farm.Collaborators {
		if collaborator.UserID == userID {
			removed = true
			continue
		}
		collaborators = append(collaborators, collaborator)
	}
	farm.Collaborators = collaborators

	members := farm.Members[:0]
	for _, member := range farm.Members {
		if member == userID {
			removed = true
			continue
		}
		members = append(members, member)
	}
	farm.Members = members

	if _, ok := farm.Permissions[userID]; ok {
		delete(farm.Permissions, userID)
		removed = true
	}

	if !removed {
		return Error.Wrap(errs2.ErrNotFound.New("collaborator %q", userID))
	}
	farm.UpdatedAt = time.Now().UTC()

	return s.put(ctx, farm)
}

// SetPermission writes an entry into the legacy permission map. Existing
// documents still carry the map, so it stays writable.
func (s *Service) SetPermission(ctx context.Context, farmID, userID string, role access.Role) (err error) {
	defer mon.Task()(&ctx)(&err)

	farm, err := s.authorizeAdmin(ctx, farmID)
	if err != nil {
		return err
	}
	if userID == "" {
		return Error.Wrap(errs2.ErrValidation.New("user id is required"))
	}
	if !role.Valid() {
		return Error.Wrap(errs2.ErrValidation.New("unknown role %q", role))
	}

	if farm.Permissions == nil {
		farm.Permissions = map[string]access.Role{}
	}
	farm.Permissions[userID] = role
	farm.UpdatedAt = time.Now().UTC()

	return s.put(ctx, farm)
}

// RefreshRollup recomputes the farm's derived counters from the live
// collections and persists them. The recompute is not transactional with the
// entity write that triggered it: a crash in between leaves the rollup stale
// until the next successful mutation. Callers run it after mutations and only
// log failures.
func (s *Service) RefreshRollup(ctx context.Context, farmID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	farm, err := s.get(ctx, farmID)
	if err != nil {
		return err
	}

	blockCount := 0
	totalArea := 0.0
	data, err := s.store.Get(ctx, paths.Blocks(farmID))
	switch {
	case err == nil:
		collection, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return Error.Wrap(err)
		}
		blockCount = len(collection.Features)
		for _, feature := range collection.Features {
			area, ok := feature.Properties["area"].(float64)
			if (!ok || area == 0) && feature.Geometry != nil {
				area = geo.Area(feature.Geometry)
			}
			totalArea += area
		}
	case storage.ErrKeyNotFound.Has(err):
	default:
		return Error.Wrap(err)
	}

	datasetCount := 0
	keys, err := s.store.List(ctx, paths.DatasetsPrefix(farmID))
	if err != nil {
		return Error.Wrap(err)
	}
	for _, key := range keys {
		if paths.IsDatasetMetadata(key) {
			datasetCount++
		}
	}

	farm.BlockCount = blockCount
	farm.DatasetCount = datasetCount
	farm.TotalArea = totalArea

	return s.put(ctx, farm)
}

// Authorize reads the farm and resolves what the calling principal may do on
// it. Entity repositories authorize through this before touching farm scoped
// documents.
func (s *Service) Authorize(ctx context.Context, farmID string) (_ *Farm, _ access.Access, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, err := auth.FromContext(ctx)
	if err != nil {
		return nil, access.Access{}, Error.Wrap(err)
	}
	farm, err := s.get(ctx, farmID)
	if err != nil {
		return nil, access.Access{}, err
	}
	return farm, access.Resolve(farm.Grants(), principal.ID), nil
}

// authorizeAdmin requires the calling principal to be the owner or an
// administrator of the farm
func (s *Service) authorizeAdmin(ctx context.Context, farmID string) (*Farm, error) {
	principal, err := auth.FromContext(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	farm, err := s.get(ctx, farmID)
	if err != nil {
		return nil, err
	}

	role, ok := access.EffectiveRole(farm.Grants(), principal.ID)
	if !ok || role != access.RoleAdministrator {
		return nil, Error.Wrap(errs2.ErrForbidden.New("administrator access required for farm %q", farmID))
	}
	return farm, nil
}

func (s *Service) get(ctx context.Context, farmID string) (*Farm, error) {
	data, err := s.store.Get(ctx, paths.Farm(farmID))
	if storage.ErrKeyNotFound.Has(err) {
		return nil, Error.Wrap(errs2.ErrNotFound.New("farm %q", farmID))
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var farm Farm
	if err := json.Unmarshal(data, &farm); err != nil {
		return nil, Error.Wrap(err)
	}
	return &farm, nil
}

func (s *Service) put(ctx context.Context, farm *Farm) error {
	data, err := json.Marshal(farm)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(s.store.Put(ctx, paths.Farm(farm.ID), data))
}
