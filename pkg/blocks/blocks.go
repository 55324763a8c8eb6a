// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package blocks

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Block is one field block of a farm. Blocks are stored as features inside
// the farm's single feature-collection document, the struct fields live in
// the feature properties next to any custom fields. ID and FarmID never
// change after creation, Area is re-derived whenever the geometry changes.
type Block struct {
	ID              string    `json:"id"`
	FarmID          string    `json:"farmId"`
	Name            string    `json:"name"`
	Variety         string    `json:"variety,omitempty"`
	PlantingYear    int       `json:"plantingYear,omitempty"`
	RowSpacing      float64   `json:"rowSpacing,omitempty"`
	TreeSpacing     float64   `json:"treeSpacing,omitempty"`
	Area            float64   `json:"area"`
	UpdatedBy       string    `json:"updatedBy,omitempty"`
	UpdatedByName   string    `json:"updatedByName,omitempty"`
	RevisionMessage string    `json:"revisionMessage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Custom   map[string]interface{} `json:"-"`
	Geometry orb.Geometry           `json:"-"`
}

// Info holds the caller supplied fields for creating a block
type Info struct {
	Name         string
	Variety      string
	PlantingYear int
	RowSpacing   float64
	TreeSpacing  float64
	Custom       map[string]interface{}
	Geometry     orb.Geometry
}

// Patch holds a partial block update, nil fields stay unchanged. Custom
// entries are merged key-wise over the existing custom fields.
type Patch struct {
	Name         *string
	Variety      *string
	PlantingYear *int
	RowSpacing   *float64
	TreeSpacing  *float64
	Custom       map[string]interface{}
	Geometry     orb.Geometry
	Message      string
}

// reservedKeys are the feature property names owned by the Block struct,
// custom fields may not shadow them
var reservedKeys = map[string]bool{
	"id": true, "farmId": true, "name": true,
	"variety": true, "plantingYear": true, "rowSpacing": true, "treeSpacing": true,
	"area": true, "updatedBy": true, "updatedByName": true, "revisionMessage": true,
	"createdAt": true, "updatedAt": true,
}

// feature converts the block into its stored feature representation
func (block *Block) feature() (*geojson.Feature, error) {
	data, err := json.Marshal(block)
	if err != nil {
		return nil, err
	}

	properties := geojson.Properties{}
	if err := json.Unmarshal(data, &properties); err != nil {
		return nil, err
	}
	for key, value := range block.Custom {
		if !reservedKeys[key] {
			properties[key] = value
		}
	}

	feature := geojson.NewFeature(block.Geometry)
	feature.ID = block.ID
	feature.Properties = properties
	return feature, nil
}

// fromFeature converts a stored feature back into a block
func fromFeature(feature *geojson.Feature) (*Block, error) {
	data, err := json.Marshal(feature.Properties)
	if err != nil {
		return nil, err
	}

	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, err
	}

	custom := map[string]interface{}{}
	for key, value := range feature.Properties {
		if !reservedKeys[key] {
			custom[key] = value
		}
	}
	if len(custom) > 0 {
		block.Custom = custom
	}

	block.Geometry = feature.Geometry
	return &block, nil
}
