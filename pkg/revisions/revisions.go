// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package revisions manages per-entity revision history. Every log is one
// stored JSON document holding the newest-first list of snapshots, capped per
// entity type, oldest entries dropped on overflow.
//
// History is best effort: callers must log a failed Append and continue with
// their primary mutation, never abort it.
package revisions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skyrings/skyring-common/tools/uuid"
	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/paths"
	"storj.io/paddock/storage"
)

var mon = monkit.Package()

// Error is the default revisions errs class
var Error = errs.Class("revisions error")

const (
	// BlockCap is how many revisions a block keeps
	BlockCap = 100
	// DatasetCap is how many revisions a dataset keeps
	DatasetCap = 50
)

// Revision is one history entry of an entity
type Revision struct {
	ID            string          `json:"id"`
	EntityID      string          `json:"entityId"`
	FarmID        string          `json:"farmId"`
	Message       string          `json:"message,omitempty"`
	UpdatedBy     string          `json:"updatedBy"`
	UpdatedByName string          `json:"updatedByName,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Snapshot      json.RawMessage `json:"snapshot"`
}

// Log manages the capped revision document of a single entity
type Log struct {
	store storage.Store
	key   storage.Key
	limit int
}

// NewLog creates a revision log over the document at key keeping limit entries
func NewLog(store storage.Store, key storage.Key, limit int) *Log {
	return &Log{store: store, key: key, limit: limit}
}

// ForBlock returns the revision log of a block
func ForBlock(store storage.Store, farmID, blockID string) *Log {
	return NewLog(store, paths.BlockRevisions(farmID, blockID), BlockCap)
}

// ForDataset returns the revision log of a dataset
func ForDataset(store storage.Store, farmID, datasetID string) *Log {
	return NewLog(store, paths.DatasetRevisions(farmID, datasetID), DatasetCap)
}

// Append assigns a fresh id and timestamp to revision, prepends it to the
// stored log and truncates the log to its cap
func (log *Log) Append(ctx context.Context, revision Revision) (err error) {
	defer mon.Task()(&ctx)(&err)

	current, err := log.List(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.New()
	if err != nil {
		return Error.Wrap(err)
	}
	revision.ID = id.String()
	revision.CreatedAt = time.Now().UTC()

	updated := make([]Revision, 0, len(current)+1)
	updated = append(updated, revision)
	updated = append(updated, current...)
	if len(updated) > log.limit {
		updated = updated[:log.limit]
	}

	data, err := json.Marshal(updated)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(log.store.Put(ctx, log.key, data))
}

// List returns all kept revisions, newest first. A log that was never
// written to is empty, not an error.
func (log *Log) List(ctx context.Context) (_ []Revision, err error) {
	defer mon.Task()(&ctx)(&err)

	data, err := log.store.Get(ctx, log.key)
	if storage.ErrKeyNotFound.Has(err) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var revisions []Revision
	if err := json.Unmarshal(data, &revisions); err != nil {
		return nil, Error.Wrap(err)
	}
	return revisions, nil
}

// Get returns the kept revision with id
func (log *Log) Get(ctx context.Context, id string) (_ *Revision, err error) {
	defer mon.Task()(&ctx)(&err)

	revisions, err := log.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range revisions {
		if revisions[i].ID == id {
			return &revisions[i], nil
		}
	}
	return nil, Error.Wrap(errs2.ErrNotFound.New("revision %q", id))
}

// Delete removes the whole revision document, absence is not an error
func (log *Log) Delete(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	err = log.store.Delete(ctx, log.key)
	if storage.ErrKeyNotFound.Has(err) {
		return nil
	}
	return Error.Wrap(err)
}
