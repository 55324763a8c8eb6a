// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/im7mortal/UTM"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"storj.io/paddock/pkg/errs2"
)

// header names recognized as coordinate columns, lowercase
var (
	latitudeNames  = []string{"lat", "latitude", "y"}
	longitudeNames = []string{"lon", "lng", "long", "longitude", "x"}
	eastingNames   = []string{"easting", "east"}
	northingNames  = []string{"northing", "north"}
)

// parseCSV builds point features from rows with valid coordinates. The
// coordinate pair is either geographic, found by header heuristics, or a
// projected easting/northing pair reprojected from the hinted UTM zone.
// Returns the non-coordinate headers in file order as fields.
func parseCSV(data []byte, hints Hints) (*geojson.FeatureCollection, []string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, Error.Wrap(errs2.ErrValidation.New("unreadable csv header: %v", err))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	latIndex, lonIndex, projected, err := coordinateColumns(header, hints)
	if err != nil {
		return nil, nil, err
	}

	fields := make([]string, 0, len(header))
	for i, name := range header {
		if i == latIndex || i == lonIndex {
			continue
		}
		fields = append(fields, name)
	}

	collection := geojson.NewFeatureCollection()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, Error.Wrap(errs2.ErrValidation.New("unreadable csv row: %v", err))
		}
		if latIndex >= len(record) || lonIndex >= len(record) {
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[latIndex]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(record[lonIndex]), 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		if projected {
			zone := hints.UTMZone
			northern := hints.UTMNorthern
			if zone == 0 {
				zone = DefaultUTMZone
				northern = false
			}
			// for a projected pair latIndex holds the northing, lonIndex the easting
			latitude, longitude, err := UTM.ToLatLon(lon, lat, zone, "", northern)
			if err != nil {
				continue
			}
			lat, lon = latitude, longitude
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}

		feature := geojson.NewFeature(orb.Point{lon, lat})
		for i, name := range header {
			if i == latIndex || i == lonIndex || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			if number, err := strconv.ParseFloat(value, 64); err == nil {
				feature.Properties[name] = number
			} else {
				feature.Properties[name] = value
			}
		}
		collection.Append(feature)
	}

	if len(collection.Features) == 0 {
		return nil, nil, Error.Wrap(errs2.ErrValidation.New("no rows with valid coordinates"))
	}
	return collection, fields, nil
}

// coordinateColumns locates the coordinate pair in header. Hints win over the
// heuristics, a geographic pair wins over a projected one.
func coordinateColumns(header []string, hints Hints) (latIndex, lonIndex int, projected bool, err error) {
	if hints.LatitudeColumn != "" && hints.LongitudeColumn != "" {
		latIndex = indexOf(header, hints.LatitudeColumn)
		lonIndex = indexOf(header, hints.LongitudeColumn)
		if latIndex >= 0 && lonIndex >= 0 {
			return latIndex, lonIndex, false, nil
		}
	}

	latIndex = indexOfAny(header, latitudeNames)
	lonIndex = indexOfAny(header, longitudeNames)
	if latIndex >= 0 && lonIndex >= 0 {
		return latIndex, lonIndex, false, nil
	}

	northingIndex := indexOfAny(header, northingNames)
	eastingIndex := indexOfAny(header, eastingNames)
	if northingIndex >= 0 && eastingIndex >= 0 {
		return northingIndex, eastingIndex, true, nil
	}

	return 0, 0, false, Error.Wrap(errs2.ErrValidation.New("no coordinate columns found in csv header"))
}

func indexOf(header []string, name string) int {
	for i, candidate := range header {
		if strings.EqualFold(candidate, name) {
			return i
		}
	}
	return -1
}

func indexOfAny(header []string, names []string) int {
	for i, candidate := range header {
		lowered := strings.ToLower(candidate)
		for _, name := range names {
			if lowered == name {
				return i
			}
		}
	}
	return -1
}
