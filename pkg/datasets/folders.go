// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package datasets

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/skyrings/skyring-common/tools/uuid"

	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/paths"
	"storj.io/paddock/storage"
)

// CreateFolder adds a folder to the farm's folder document
func (s *Service) CreateFolder(ctx context.Context, farmID, name string) (_ *Folder, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, _, err := s.authorizeWrite(ctx, farmID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("folder name is required"))
	}

	id, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	folders, err := s.folders(ctx, farmID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	folder := Folder{
		ID:        id.String(),
		FarmID:    farmID,
		Name:      strings.TrimSpace(name),
		ParentID:  RootFolder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	folders = append(folders, folder)

	if err := s.putFolders(ctx, farmID, folders); err != nil {
		return nil, err
	}
	return &folder, nil
}

// ListFolders returns every folder of the farm in stored order
func (s *Service) ListFolders(ctx context.Context, farmID string) (_ []Folder, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := s.authorizeRead(ctx, farmID); err != nil {
		return nil, err
	}
	return s.folders(ctx, farmID)
}

// RenameFolder changes the folder's name
func (s *Service) RenameFolder(ctx context.Context, farmID, folderID, name string) (_ *Folder, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, _, err := s.authorizeWrite(ctx, farmID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, Error.Wrap(errs2.ErrValidation.New("folder name is required"))
	}

	folders, err := s.folders(ctx, farmID)
	if err != nil {
		return nil, err
	}

	for i := range folders {
		if folders[i].ID != folderID {
			continue
		}
		folders[i].Name = strings.TrimSpace(name)
		folders[i].UpdatedAt = time.Now().UTC()
		if err := s.putFolders(ctx, farmID, folders); err != nil {
			return nil, err
		}
		return &folders[i], nil
	}
	return nil, Error.Wrap(errs2.ErrNotFound.New("folder %q", folderID))
}

// DeleteFolder removes the folder; datasets grouped under it fall back to the
// root sentinel
func (s *Service) DeleteFolder(ctx context.Context, farmID, folderID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, _, err := s.authorizeWrite(ctx, farmID); err != nil {
		return err
	}

	folders, err := s.folders(ctx, farmID)
	if err != nil {
		return err
	}

	remaining := folders[:0]
	found := false
	for _, folder := range folders {
		if folder.ID == folderID {
			found = true
			continue
		}
		remaining = append(remaining, folder)
	}
	if !found {
		return Error.Wrap(errs2.ErrNotFound.New("folder %q", folderID))
	}

	if err := s.putFolders(ctx, farmID, remaining); err != nil {
		return err
	}

	datasets, err := s.List(ctx, farmID)
	if err != nil {
		return err
	}
	for i := range datasets {
		if datasets[i].FolderID != folderID {
			continue
		}
		datasets[i].FolderID = RootFolder
		datasets[i].UpdatedAt = time.Now().UTC()
		if err := s.put(ctx, &datasets[i]); err != nil {
			return err
		}
	}
	return nil
}

// MoveToFolder regroups the dataset under folderID, empty moves it back to
// root. The target folder must exist.
func (s *Service) MoveToFolder(ctx context.Context, farmID, datasetID, folderID string) (_ *Dataset, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, _, err := s.authorizeWrite(ctx, farmID); err != nil {
		return nil, err
	}
	if folderID == "" {
		folderID = RootFolder
	}
	if folderID != RootFolder {
		folders, err := s.folders(ctx, farmID)
		if err != nil {
			return nil, err
		}
		known := false
		for _, folder := range folders {
			if folder.ID == folderID {
				known = true
				break
			}
		}
		if !known {
			return nil, Error.Wrap(errs2.ErrNotFound.New("folder %q", folderID))
		}
	}

	return s.Update(ctx, farmID, datasetID, Patch{FolderID: &folderID, Message: "Moved to folder"})
}

// folders reads the farm's folder document, absent means none
func (s *Service) folders(ctx context.Context, farmID string) ([]Folder, error) {
	data, err := s.store.Get(ctx, paths.DatasetFolders(farmID))
	if storage.ErrKeyNotFound.Has(err) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var folders []Folder
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, Error.Wrap(err)
	}
	return folders, nil
}

func (s *Service) putFolders(ctx context.Context, farmID string, folders []Folder) error {
	data, err := json.Marshal(folders)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(s.store.Put(ctx, paths.DatasetFolders(farmID), data))
}
