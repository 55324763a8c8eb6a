// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package ingest detects the format of uploaded geospatial files and
// normalizes them into one canonical feature-collection shape. Each supported
// format has its own parser returning the same result type; rasters are
// transcoded instead of normalized.
package ingest

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"storj.io/paddock/pkg/errs2"
)

var mon = monkit.Package()

// Error is the default ingest errs class
var Error = errs.Class("ingest error")

// Format tags a detected upload format
type Format string

// known upload formats
const (
	FormatCSV       Format = "csv"
	FormatGeoJSON   Format = "geojson"
	FormatKML       Format = "kml"
	FormatKMZ       Format = "kmz"
	FormatShapefile Format = "shapefile"
	FormatTIFF      Format = "tiff"
	FormatUnknown   Format = "unknown"
)

// Result is the canonical shape every parser produces
type Result struct {
	Collection  *geojson.FeatureCollection
	RecordCount int
	// Bounds is the coordinate-wise min/max over all geometries:
	// [minLon, minLat, maxLon, maxLat]
	Bounds [4]float64
	Fields []string
}

// Hints carries optional caller knowledge about the upload, typically taken
// from the dataset's column mapping
type Hints struct {
	// LatitudeColumn and LongitudeColumn override the CSV header heuristics
	LatitudeColumn  string
	LongitudeColumn string
	// UTMZone reprojects a projected easting/northing pair, zone 60 southern
	// hemisphere when unset
	UTMZone     int
	UTMNorthern bool
}

// DefaultUTMZone is assumed for projected CSV pairs when no hint is given
const DefaultUTMZone = 60

var (
	tiffLittleEndian = []byte("II*\x00")
	tiffBigEndian    = []byte("MM\x00*")
	zipMagic         = []byte("PK\x03\x04")
)

// Detect returns the format of data, deciding by file extension first and
// falling back to content sniffing when the extension is absent or unknown
func Detect(data []byte, filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".geojson", ".json":
		return FormatGeoJSON
	case ".kml":
		return FormatKML
	case ".kmz":
		return FormatKMZ
	case ".zip", ".shp":
		return FormatShapefile
	case ".tif", ".tiff":
		return FormatTIFF
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return FormatGeoJSON
	case bytes.HasPrefix(data, zipMagic):
		if hasZipMember(data, ".kml") {
			return FormatKMZ
		}
		return FormatShapefile
	case bytes.HasPrefix(data, tiffLittleEndian), bytes.HasPrefix(data, tiffBigEndian):
		return FormatTIFF
	}
	return FormatUnknown
}

// Normalize parses data as format into the canonical result. Rasters are
// never normalized, route them through TranscodeRaster instead.
func Normalize(ctx context.Context, data []byte, format Format, hints Hints) (_ *Result, err error) {
	defer mon.Task()(&ctx)(&err)

	var collection *geojson.FeatureCollection
	var fields []string

	switch format {
	case FormatCSV:
		collection, fields, err = parseCSV(data, hints)
	case FormatGeoJSON:
		collection, err = parseGeoJSON(data)
	case FormatKML:
		collection, err = parseKML(data)
	case FormatKMZ:
		collection, err = parseKMZ(data)
	case FormatShapefile:
		collection, err = parseShapefile(data)
	case FormatTIFF:
		return nil, Error.Wrap(errs2.ErrValidation.New("rasters are transcoded, not normalized"))
	default:
		return nil, Error.Wrap(errs2.ErrValidation.New("unsupported format %q", format))
	}
	if err != nil {
		return nil, err
	}

	if fields == nil {
		fields = firstFeatureFields(collection)
	}
	return &Result{
		Collection:  collection,
		RecordCount: len(collection.Features),
		Bounds:      bounds(collection),
		Fields:      fields,
	}, nil
}

// bounds returns the coordinate-wise min/max over all feature geometries
func bounds(collection *geojson.FeatureCollection) [4]float64 {
	result := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	found := false
	for _, feature := range collection.Features {
		if feature.Geometry == nil {
			continue
		}
		bound := feature.Geometry.Bound()
		result[0] = math.Min(result[0], bound.Min[0])
		result[1] = math.Min(result[1], bound.Min[1])
		result[2] = math.Max(result[2], bound.Max[0])
		result[3] = math.Max(result[3], bound.Max[1])
		found = true
	}
	if !found {
		return [4]float64{}
	}
	return result
}

// firstFeatureFields returns the sorted property keys of the first feature
func firstFeatureFields(collection *geojson.FeatureCollection) []string {
	if len(collection.Features) == 0 {
		return nil
	}
	fields := make([]string, 0, len(collection.Features[0].Properties))
	for key := range collection.Features[0].Properties {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return fields
}
