// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"storj.io/paddock/pkg/errs2"
)

// parseGeoJSON accepts a feature collection or a lone feature, which gets
// wrapped into a one-element collection. Bare geometry documents and unknown
// type tags are rejected.
func parseGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var typed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("invalid geojson: %v", err))
	}

	switch typed.Type {
	case "FeatureCollection":
		collection, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, Error.Wrap(errs2.ErrValidation.New("invalid feature collection: %v", err))
		}
		return collection, nil
	case "Feature":
		feature, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, Error.Wrap(errs2.ErrValidation.New("invalid feature: %v", err))
		}
		collection := geojson.NewFeatureCollection()
		collection.Append(feature)
		return collection, nil
	case "":
		return nil, Error.Wrap(errs2.ErrValidation.New("geojson type tag is missing"))
	default:
		return nil, Error.Wrap(errs2.ErrValidation.New("unsupported geojson type %q", typed.Type))
	}
}
