// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package paths builds the persisted key layout:
//
//	farms/{farmId}/metadata.json
//	farms/{farmId}/blocks.json
//	farms/{farmId}/blocks/{blockId}/revisions.json
//	farms/{farmId}/datasets/{datasetId}/metadata.json
//	farms/{farmId}/datasets/{datasetId}/revisions.json
//	farms/{farmId}/datasets/{datasetId}/raw.{ext}
//	farms/{farmId}/datasets/{datasetId}/processed.geojson
//	farms/{farmId}/datasets/{datasetId}/processed.jpg
//	farms/{farmId}/dataset-folders.json
package paths

import (
	"strings"

	"storj.io/paddock/storage"
)

// FarmsPrefix is the prefix under which every farm lives
const FarmsPrefix = "farms/"

// Farm returns the key of the farm metadata document
func Farm(farmID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/metadata.json")
}

// FarmPrefix returns the prefix holding every document of the farm
func FarmPrefix(farmID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/")
}

// Blocks returns the key of the farm's block feature-collection document
func Blocks(farmID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/blocks.json")
}

// BlockRevisions returns the key of a block's revision log
func BlockRevisions(farmID, blockID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/blocks/" + blockID + "/revisions.json")
}

// DatasetsPrefix returns the prefix holding every dataset of the farm
func DatasetsPrefix(farmID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/datasets/")
}

// DatasetPrefix returns the prefix holding every document of the dataset
func DatasetPrefix(farmID, datasetID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/datasets/" + datasetID + "/")
}

// Dataset returns the key of the dataset metadata document
func Dataset(farmID, datasetID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/datasets/" + datasetID + "/metadata.json")
}

// DatasetRevisions returns the key of a dataset's revision log
func DatasetRevisions(farmID, datasetID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/datasets/" + datasetID + "/revisions.json")
}

// DatasetRaw returns the key of the dataset's uploaded payload
func DatasetRaw(farmID, datasetID, ext string) storage.Key {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "bin"
	}
	return storage.Key(FarmsPrefix + farmID + "/datasets/" + datasetID + "/raw." + ext)
}

// DatasetProcessed returns the key of the canonical processed payload
func DatasetProcessed(farmID, datasetID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/datasets/" + datasetID + "/processed.geojson")
}

// DatasetRaster returns the key of the transcoded raster payload
func DatasetRaster(farmID, datasetID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/datasets/" + datasetID + "/processed.jpg")
}

// DatasetFolders returns the key of the farm's dataset folder document
func DatasetFolders(farmID string) storage.Key {
	return storage.Key(FarmsPrefix + farmID + "/dataset-folders.json")
}

// IsDatasetMetadata reports whether key points at a dataset metadata document
func IsDatasetMetadata(key storage.Key) bool {
	return strings.HasSuffix(key.String(), "/metadata.json")
}

// IsFarmMetadata reports whether key points at a farm metadata document,
// rather than at a nested dataset metadata document
func IsFarmMetadata(key storage.Key) bool {
	parts := strings.Split(key.String(), string(storage.Delimiter))
	return len(parts) == 3 && parts[0] == "farms" && parts[2] == "metadata.json"
}
