// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package datasets manages uploaded datasets: metadata documents, the raw and
// processed payloads next to them, folders and revision history. Uploads run
// through the ingest pipeline synchronously; a parse failure marks the
// dataset failed instead of aborting it.
package datasets

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/skyrings/skyring-common/tools/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/pkg/auth"
	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/farms"
	"storj.io/paddock/pkg/ingest"
	"storj.io/paddock/pkg/notify"
	"storj.io/paddock/pkg/paths"
	"storj.io/paddock/pkg/revisions"
	"storj.io/paddock/storage"
)

var mon = monkit.Package()

// Error is the default datasets errs class
var Error = errs.Class("datasets error")

// Config holds dataset service parameters
type Config struct {
	// MaxUploadSize bounds accepted raw payloads in bytes
	MaxUploadSize int64
	// BaseURL prefixes the dataset links put into notifications
	BaseURL string
}

// DefaultMaxUploadSize bounds uploads when no limit is configured
const DefaultMaxUploadSize = 100 << 20

// Service handles dataset operations
type Service struct {
	log      *zap.Logger
	store    storage.Store
	farms    *farms.Service
	notifier notify.Notifier
	config   Config
}

// NewService creates a dataset service over store, authorizing and refreshing
// rollups through the farm service
func NewService(log *zap.Logger, store storage.Store, farms *farms.Service, notifier notify.Notifier, config Config) *Service {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Service{log: log, store: store, farms: farms, notifier: notifier, config: config}
}

// Create validates info and stores a new dataset in uploading state
func (s *Service) Create(ctx context.Context, farmID string, info Info) (_ *Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, _, err := s.authorizeWrite(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("dataset name is required"))
	}
	if strings.TrimSpace(info.Type) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("dataset type is required"))
	}

	id, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	folderID := info.FolderID
	if folderID == "" {
		folderID = RootFolder
	}

	now := time.Now().UTC()
	dataset := &Dataset{
		ID:             id.String(),
		FarmID:         farmID,
		Name:           strings.TrimSpace(info.Name),
		Type:           strings.TrimSpace(info.Type),
		Status:         StatusUploading,
		UploadedBy:     principal.ID,
		UploadedByName: principal.DisplayName(),
		CollectorID:    info.CollectorID,
		FolderID:       folderID,
		ColumnMapping:  info.ColumnMapping,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.put(ctx, dataset); err != nil {
		return nil, err
	}
	s.refreshRollup(ctx, farmID)
	return dataset, nil
}

// Get returns the dataset with datasetID
func (s *Service) Get(ctx context.Context, farmID, datasetID string) (_ *Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}
	return s.get(ctx, farmID, datasetID)
}

// List returns every dataset of the farm, newest first
func (s *Service) List(ctx context.Context, farmID string) (_ []Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}

	keys, err := s.store.List(ctx, paths.DatasetsPrefix(farmID))
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var datasets []Dataset
	for _, key := range keys {
		if !paths.IsDatasetMetadata(key) {
			continue
		}
		data, err := s.store.Get(ctx, key)
		if storage.ErrKeyNotFound.Has(err) {
			continue
		}
		if err != nil {
			return nil, Error.Wrap(err)
		}
		var dataset Dataset
		if err := json.Unmarshal(data, &dataset); err != nil {
			s.log.Error("skipping unreadable dataset document",
				zap.ByteString("key", key), zap.Error(err))
			continue
		}
		datasets = append(datasets, dataset)
	}

	sort.Slice(datasets, func(i, k int) bool {
		return datasets[i].CreatedAt.After(datasets[k].CreatedAt)
	})
	return datasets, nil
}

// Upload stores the raw payload and runs it through the ingest pipeline.
// Parse failures do not fail the upload, the dataset is kept in failed state
// with the error message stored on it. Re-uploading over a completed dataset
// starts a new attempt and notifies the farm members that the processed data
// they may have used is stale.
func (s *Service) Upload(ctx context.Context, farmID, datasetID, filename string, payload []byte) (_ *Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, farm, err := s.authorizeWrite(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > s.config.MaxUploadSize {
		return nil, Error.Wrap(errs2.ErrValidation.New(
			"upload of %d bytes exceeds the limit of %d bytes", len(payload), s.config.MaxUploadSize))
	}
	if len(payload) == 0 {
		return nil, Error.Wrap(errs2.ErrValidation.New("upload is empty"))
	}

	dataset, err := s.get(ctx, farmID, datasetID)
	if err != nil {
		return nil, err
	}

	invalidated := dataset.Status == StatusCompleted

	rawKey := paths.DatasetRaw(farmID, datasetID, filepath.Ext(filename))
	if err := s.store.Put(ctx, rawKey, payload); err != nil {
		return nil, Error.Wrap(err)
	}

	dataset.Status = StatusProcessing
	dataset.RawKey = rawKey.String()
	dataset.ErrorMessage = ""
	dataset.UploadedBy = principal.ID
	dataset.UploadedByName = principal.DisplayName()
	dataset.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, dataset); err != nil {
		return nil, err
	}

	dataset, err = s.process(ctx, dataset, filename, payload)
	if err != nil {
		return nil, err
	}

	if invalidated {
		s.notifyInvalidated(ctx, farm, dataset, principal)
	}
	s.refreshRollup(ctx, farmID)
	return dataset, nil
}

// process runs the detected parser and settles the dataset into completed or
// failed state
func (s *Service) process(ctx context.Context, dataset *Dataset, filename string, payload []byte) (*Dataset, error) {
	format := ingest.Detect(payload, filename)

	if format == ingest.FormatTIFF {
		return s.processRaster(ctx, dataset, payload)
	}

	result, err := ingest.Normalize(ctx, payload, format, s.hints(dataset))
	if err != nil {
		if errs2.ErrValidation.Has(err) {
			return s.fail(ctx, dataset, err)
		}
		return nil, Error.Wrap(err)
	}

	processed, err := json.Marshal(result.Collection)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	processedKey := paths.DatasetProcessed(dataset.FarmID, dataset.ID)
	if err := s.store.Put(ctx, processedKey, processed); err != nil {
		return nil, Error.Wrap(err)
	}

	dataset.Status = StatusCompleted
	dataset.ProcessedKey = processedKey.String()
	dataset.RecordCount = result.RecordCount
	dataset.Bounds = result.Bounds
	dataset.Fields = result.Fields
	dataset.ErrorMessage = ""
	dataset.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, dataset); err != nil {
		return nil, err
	}
	return dataset, nil
}

// processRaster transcodes the raster and completes the dataset with a raster
// pointer, skipping normalization
func (s *Service) processRaster(ctx context.Context, dataset *Dataset, payload []byte) (*Dataset, error) {
	transcoded, err := ingest.TranscodeRaster(payload)
	if err != nil {
		if errs2.ErrValidation.Has(err) {
			return s.fail(ctx, dataset, err)
		}
		return nil, Error.Wrap(err)
	}

	rasterKey := paths.DatasetRaster(dataset.FarmID, dataset.ID)
	if err := s.store.Put(ctx, rasterKey, transcoded); err != nil {
		return nil, Error.Wrap(err)
	}

	dataset.Status = StatusCompleted
	dataset.ProcessedKey = rasterKey.String()
	dataset.RecordCount = 0
	dataset.Bounds = [4]float64{}
	dataset.Fields = nil
	dataset.ErrorMessage = ""
	dataset.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, dataset); err != nil {
		return nil, err
	}
	return dataset, nil
}

// fail settles the attempt as failed, keeping the dataset and the stored raw
// payload for a later retry
func (s *Service) fail(ctx context.Context, dataset *Dataset, cause error) (*Dataset, error) {
	dataset.Status = StatusFailed
	dataset.ErrorMessage = cause.Error()
	dataset.UpdatedAt = time.Now().UTC()
	if err := s.put(ctx, dataset); err != nil {
		return nil, err
	}
	return dataset, nil
}

// Update snapshots the current metadata into the revision log and merges
// patch over it. Identity fields and the processing status are protected.
func (s *Service) Update(ctx context.Context, farmID, datasetID string, patch Patch) (_ *Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, _, err := s.authorizeWrite(ctx, farmID)
	if err != nil {
		return nil, err
	}

	dataset, err := s.get(ctx, farmID, datasetID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("dataset name is required"))
	}

	s.snapshot(ctx, dataset, principal, patch.Message)

	if patch.Name != nil {
		dataset.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.FolderID != nil {
		folderID := *patch.FolderID
		if folderID == "" {
			folderID = RootFolder
		}
		dataset.FolderID = folderID
	}
	if patch.CollectorID != nil {
		dataset.CollectorID = *patch.CollectorID
	}
	if patch.ColumnMapping != nil {
		dataset.ColumnMapping = patch.ColumnMapping
	}

	dataset.ID = datasetID
	dataset.FarmID = farmID
	dataset.RevisionMessage = patch.Message
	dataset.UpdatedAt = time.Now().UTC()

	if err := s.put(ctx, dataset); err != nil {
		return nil, err
	}
	s.refreshRollup(ctx, farmID)
	return dataset, nil
}

// Revert restores the dataset's mutable metadata from the revision with
// revisionID, snapshotting the current state first
func (s *Service) Revert(ctx context.Context, farmID, datasetID, revisionID string) (_ *Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	principal, _, err := s.authorizeWrite(ctx, farmID)
	if err != nil {
		return nil, err
	}

	log := revisions.ForDataset(s.store, farmID, datasetID)
	target, err := log.Get(ctx, revisionID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	dataset, err := s.get(ctx, farmID, datasetID)
	if err != nil {
		return nil, err
	}

	s.snapshot(ctx, dataset, principal, "Reverted to "+revisionID)

	var restored Dataset
	if err := json.Unmarshal(target.Snapshot, &restored); err != nil {
		return nil, Error.Wrap(err)
	}

	// only descriptive metadata comes back, the upload pointers and status
	// keep tracking what is actually stored
	dataset.Name = restored.Name
	dataset.Type = restored.Type
	dataset.FolderID = restored.FolderID
	dataset.CollectorID = restored.CollectorID
	dataset.ColumnMapping = restored.ColumnMapping
	if dataset.FolderID == "" {
		dataset.FolderID = RootFolder
	}

	dataset.RevisionMessage = "Reverted to " + revisionID
	dataset.UpdatedAt = time.Now().UTC()

	if err := s.put(ctx, dataset); err != nil {
		return nil, err
	}
	s.refreshRollup(ctx, farmID)
	return dataset, nil
}

// Delete removes every document stored under the dataset's prefix: metadata,
// revisions, raw and processed payloads
func (s *Service) Delete(ctx context.Context, farmID, datasetID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, _, err := s.authorizeWrite(ctx, farmID); err != nil {
		return err
	}

	exists, err := s.store.Exists(ctx, paths.Dataset(farmID, datasetID))
	if err != nil {
		return Error.Wrap(err)
	}
	if !exists {
		return Error.Wrap(errs2.ErrNotFound.New("dataset %q", datasetID))
	}

	keys, err := s.store.List(ctx, paths.DatasetPrefix(farmID, datasetID))
	if err != nil {
		return Error.Wrap(err)
	}

	var group errgroup.Group
	for _, key := range keys {
		key := key
		group.Go(func() error {
			err := s.store.Delete(ctx, key)
			if storage.ErrKeyNotFound.Has(err) {
				return nil
			}
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return Error.Wrap(err)
	}

	s.refreshRollup(ctx, farmID)
	return nil
}

// Revisions lists the dataset's kept revisions, newest first
func (s *Service) Revisions(ctx context.Context, farmID, datasetID string) (_ []revisions.Revision, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}
	list, err := revisions.ForDataset(s.store, farmID, datasetID).List(ctx)
	return list, Error.Wrap(err)
}

// Statistics summarizes a numeric field of the dataset's processed collection
func (s *Service) Statistics(ctx context.Context, farmID, datasetID, field string) (_ ingest.Stats, err error) {
	defer mon.Task()(&ctx)(&err)

	collection, err := s.processedCollection(ctx, farmID, datasetID)
	if err != nil {
		return ingest.Stats{}, err
	}
	return ingest.FieldStatistics(collection, field)
}

// Breaks returns the classification cut points of a numeric field of the
// dataset's processed collection
func (s *Service) Breaks(ctx context.Context, farmID, datasetID, field string, classes int) (_ []float64, err error) {
	defer mon.Task()(&ctx)(&err)

	collection, err := s.processedCollection(ctx, farmID, datasetID)
	if err != nil {
		return nil, err
	}
	return ingest.ClassificationBreaks(collection, field, classes)
}

func (s *Service) processedCollection(ctx context.Context, farmID, datasetID string) (*geojson.FeatureCollection, error) {
	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}

	dataset, err := s.get(ctx, farmID, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.Status != StatusCompleted || dataset.ProcessedKey == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("dataset %q has no processed data", datasetID))
	}
	if dataset.ProcessedKey != paths.DatasetProcessed(farmID, datasetID).String() {
		return nil, Error.Wrap(errs2.ErrValidation.New("dataset %q is a raster", datasetID))
	}

	data, err := s.store.Get(ctx, storage.Key(dataset.ProcessedKey))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return collection, nil
}

// hints builds ingest hints from the dataset's column mapping
func (s *Service) hints(dataset *Dataset) ingest.Hints {
	hints := ingest.Hints{
		LatitudeColumn:  dataset.ColumnMapping["latitude"],
		LongitudeColumn: dataset.ColumnMapping["longitude"],
	}
	if zone := dataset.ColumnMapping["utmZone"]; zone != "" {
		if parsed, err := strconv.Atoi(zone); err == nil {
			hints.UTMZone = parsed
		}
	}
	if dataset.ColumnMapping["utmHemisphere"] == "north" {
		hints.UTMNorthern = true
	}
	return hints
}

// notifyInvalidated tells the farm members, except the actor, that new raw
// data replaced a processed dataset. Fire and forget, a failure is logged and
// never reaches the caller.
func (s *Service) notifyInvalidated(ctx context.Context, farm *farms.Farm, dataset *Dataset, actor auth.Principal) {
	recipients := make([]string, 0, len(farm.Collaborators)+1)
	if farm.Owner != actor.ID {
		recipients = append(recipients, farm.Owner)
	}
	for _, collaborator := range farm.Collaborators {
		if collaborator.UserID != actor.ID {
			recipients = append(recipients, collaborator.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	err := s.notifier.Notify(ctx, recipients,
		"New data was uploaded to dataset "+dataset.Name+", previously processed results are out of date.",
		s.config.BaseURL+"/farms/"+farm.ID+"/datasets/"+dataset.ID,
		map[string]string{
			"farmId":    farm.ID,
			"datasetId": dataset.ID,
			"actor":     actor.ID,
		})
	if err != nil {
		s.log.Error("failed to send invalidation notification",
			zap.String("farmID", farm.ID), zap.String("datasetID", dataset.ID), zap.Error(err))
	}
}

// snapshot appends the dataset's current state to its revision log. History
// is best effort, failures are logged and the mutation continues.
func (s *Service) snapshot(ctx context.Context, dataset *Dataset, principal auth.Principal, message string) {
	data, err := json.Marshal(dataset)
	if err == nil {
		err = revisions.ForDataset(s.store, dataset.FarmID, dataset.ID).Append(ctx, revisions.Revision{
			EntityID:      dataset.ID,
			FarmID:        dataset.FarmID,
			Message:       message,
			UpdatedBy:     principal.ID,
			UpdatedByName: principal.DisplayName(),
			Snapshot:      data,
		})
	}
	if err != nil {
		s.log.Error("failed to append dataset revision",
			zap.String("farmID", dataset.FarmID), zap.String("datasetID", dataset.ID), zap.Error(err))
	}
}

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

func (s *Service) get(ctx context.Context, farmID, datasetID string) (*Dataset, error) {
	data, err := s.store.Get(ctx, paths.Dataset(farmID, datasetID))
	if storage.ErrKeyNotFound.Has(err) {
		return nil, Error.Wrap(errs2.ErrNotFound.New("dataset %q", datasetID))
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, Error.Wrap(err)
	}
	return &dataset, nil
}

func (s *Service) put(ctx context.Context, dataset *Dataset) error {
	data, err := json.Marshal(dataset)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(s.store.Put(ctx, paths.Dataset(dataset.FarmID, dataset.ID), data))
}
