// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"storj.io/paddock/pkg/errs2"
)

// kmlContainer models the recursive Document/Folder nesting of a KML file
type kmlContainer struct {
	Documents  []kmlContainer `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name         string          `xml:"name"`
	Description  string          `xml:"description"`
	ExtendedData kmlExtendedData `xml:"ExtendedData"`
	Point        *kmlGeometry    `xml:"Point"`
	LineString   *kmlGeometry    `xml:"LineString"`
	Polygon      *kmlPolygon     `xml:"Polygon"`
}

type kmlGeometry struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlGeometry   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlGeometry `xml:"innerBoundaryIs>LinearRing"`
}

type kmlExtendedData struct {
	Data []kmlData `xml:"Data"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// parseKML converts every placemark carrying a geometry into a feature
func parseKML(data []byte) (*geojson.FeatureCollection, error) {
	var root kmlContainer
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("invalid kml: %v", err))
	}

	collection := geojson.NewFeatureCollection()
	collectPlacemarks(root, collection)

	if len(collection.Features) == 0 {
		return nil, Error.Wrap(errs2.ErrValidation.New("kml contains no placemarks with geometry"))
	}
	return collection, nil
}

// parseKMZ extracts the first .kml member of the archive and parses it
func parseKMZ(data []byte) (*geojson.FeatureCollection, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("invalid kmz archive: %v", err))
	}

	for _, member := range archive.File {
		if !strings.HasSuffix(strings.ToLower(member.Name), ".kml") {
			continue
		}
		reader, err := member.Open()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		contents, err := ioutil.ReadAll(reader)
		_ = reader.Close()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return parseKML(contents)
	}
	return nil, Error.Wrap(errs2.ErrValidation.New("kmz archive contains no kml file"))
}

// hasZipMember reports whether data is a zip archive with a member of the
// given extension
func hasZipMember(data []byte, ext string) bool {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, member := range archive.File {
		if strings.HasSuffix(strings.ToLower(member.Name), ext) {
			return true
		}
	}
	return false
}

func collectPlacemarks(container kmlContainer, collection *geojson.FeatureCollection) {
	for _, nested := range container.Documents {
		collectPlacemarks(nested, collection)
	}
	for _, nested := range container.Folders {
		collectPlacemarks(nested, collection)
	}
	for _, placemark := range container.Placemarks {
		geometry := placemark.geometry()
		if geometry == nil {
			continue
		}

		feature := geojson.NewFeature(geometry)
		if placemark.Name != "" {
			feature.Properties["name"] = placemark.Name
		}
		if placemark.Description != "" {
			feature.Properties["description"] = placemark.Description
		}
		for _, data := range placemark.ExtendedData.Data {
			if data.Name == "" {
				continue
			}
			if number, err := strconv.ParseFloat(strings.TrimSpace(data.Value), 64); err == nil {
				feature.Properties[data.Name] = number
			} else {
				feature.Properties[data.Name] = data.Value
			}
		}
		collection.Append(feature)
	}
}

func (placemark kmlPlacemark) geometry() orb.Geometry {
	switch {
	case placemark.Point != nil:
		points := parseKMLCoordinates(placemark.Point.Coordinates)
		if len(points) == 0 {
			return nil
		}
		return points[0]
	case placemark.LineString != nil:
		points := parseKMLCoordinates(placemark.LineString.Coordinates)
		if len(points) < 2 {
			return nil
		}
		return orb.LineString(points)
	case placemark.Polygon != nil:
		outer := parseKMLCoordinates(placemark.Polygon.Outer.Coordinates)
		if len(outer) < 4 {
			return nil
		}
		polygon := orb.Polygon{orb.Ring(outer)}
		for _, inner := range placemark.Polygon.Inner {
			ring := parseKMLCoordinates(inner.Coordinates)
			if len(ring) >= 4 {
				polygon = append(polygon, orb.Ring(ring))
			}
		}
		return polygon
	}
	return nil
}

// parseKMLCoordinates parses the whitespace separated lon,lat[,alt] tuples of
// a coordinates element
func parseKMLCoordinates(raw string) []orb.Point {
	var points []orb.Point
	for _, tuple := range strings.Fields(raw) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lon, lonErr := strconv.ParseFloat(parts[0], 64)
		lat, latErr := strconv.ParseFloat(parts[1], 64)
		if lonErr != nil || latErr != nil {
			continue
		}
		points = append(points, orb.Point{lon, lat})
	}
	return points
}
