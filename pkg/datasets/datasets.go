// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package datasets

import (
	"time"
)

// Status tracks one upload attempt of a dataset
type Status string

// dataset statuses; Failed ends an attempt, a later upload starts a new one
const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// RootFolder is the sentinel folder id of datasets outside any folder
const RootFolder = "root"

// Dataset is the stored dataset metadata document. ID and FarmID never change
// after creation, Status completed implies a processed payload exists at
// ProcessedKey.
type Dataset struct {
	ID     string `json:"id"`
	FarmID string `json:"farmId"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status Status `json:"status"`

	UploadedBy     string `json:"uploadedBy,omitempty"`
	UploadedByName string `json:"uploadedByName,omitempty"`
	CollectorID    string `json:"collectorId,omitempty"`
	FolderID       string `json:"folderId"`

	RecordCount   int               `json:"recordCount,omitempty"`
	Bounds        [4]float64        `json:"bounds"`
	Fields        []string          `json:"fields,omitempty"`
	ColumnMapping map[string]string `json:"columnMapping,omitempty"`

	RawKey       string `json:"rawKey,omitempty"`
	ProcessedKey string `json:"processedKey,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	RevisionMessage string `json:"revisionMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Info holds the caller supplied fields for creating a dataset
type Info struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	FolderID      string            `json:"folderId"`
	CollectorID   string            `json:"collectorId"`
	ColumnMapping map[string]string `json:"columnMapping"`
}

// Patch holds a partial dataset update, nil fields stay unchanged
type Patch struct {
	Name          *string
	FolderID      *string
	CollectorID   *string
	ColumnMapping map[string]string
	Message       string
}

// Folder is a flat grouping tag for datasets, all folders of a farm live in
// one stored document. ParentID is always the root sentinel, nesting is not
// supported.
type Folder struct {
	ID        string    `json:"id"`
	FarmID    string    `json:"farmId"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
