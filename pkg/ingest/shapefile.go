// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest

import (
	"archive/zip"
	"bytes"
	"path"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"storj.io/paddock/pkg/errs2"
)

// parseShapefile reads a zipped shapefile bundle. Attributes come from the
// bundled dbf, numeric field types are parsed into float64 properties. Shapes
// with Z or M measures are collapsed to 2D.
func parseShapefile(data []byte) (*geojson.FeatureCollection, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("invalid shapefile archive: %v", err))
	}

	var shpMember, dbfMember *zip.File
	for _, member := range archive.File {
		switch strings.ToLower(path.Ext(member.Name)) {
		case ".shp":
			if shpMember == nil {
				shpMember = member
			}
		case ".dbf":
			if dbfMember == nil {
				dbfMember = member
			}
		}
	}
	if shpMember == nil || dbfMember == nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("shapefile archive is missing its .shp or .dbf member"))
	}

	shapes, err := shpMember.Open()
	if err != nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("invalid shapefile archive: %v", err))
	}
	attributes, err := dbfMember.Open()
	if err != nil {
		_ = shapes.Close()
		return nil, Error.Wrap(errs2.ErrValidation.New("invalid shapefile archive: %v", err))
	}

	reader := shp.SequentialReaderFromExt(shapes, attributes)
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	collection := geojson.NewFeatureCollection()

	for reader.Next() {
		_, shape := reader.Shape()
		geometry := shapeGeometry(shape)
		if geometry == nil {
			continue
		}

		feature := geojson.NewFeature(geometry)
		for i, field := range fields {
			name := field.String()
			// dbf values come back NUL padded
			value := strings.Trim(reader.Attribute(i), "\x00 ")
			switch field.Fieldtype {
			case 'N', 'F':
				if number, err := strconv.ParseFloat(value, 64); err == nil {
					feature.Properties[name] = number
				}
			default:
				feature.Properties[name] = value
			}
		}
		collection.Append(feature)
	}
	if err := reader.Err(); err != nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("unreadable shapefile: %v", err))
	}

	if len(collection.Features) == 0 {
		return nil, Error.Wrap(errs2.ErrValidation.New("shapefile archive contains no usable features"))
	}
	return collection, nil
}

// shapeGeometry converts a shapefile shape into its orb geometry, nil when
// the shape type has no counterpart
func shapeGeometry(shape shp.Shape) orb.Geometry {
	switch shape := shape.(type) {
	case *shp.Point:
		return orb.Point{shape.X, shape.Y}
	case *shp.PointZ:
		return orb.Point{shape.X, shape.Y}
	case *shp.PointM:
		return orb.Point{shape.X, shape.Y}
	case *shp.MultiPoint:
		points := make(orb.MultiPoint, 0, len(shape.Points))
		for _, point := range shape.Points {
			points = append(points, orb.Point{point.X, point.Y})
		}
		return points
	case *shp.PolyLine:
		return polylineGeometry(shape.Parts, shape.Points)
	case *shp.PolyLineZ:
		return polylineGeometry(shape.Parts, shape.Points)
	case *shp.PolyLineM:
		return polylineGeometry(shape.Parts, shape.Points)
	case *shp.Polygon:
		return polygonGeometry(shape.Parts, shape.Points)
	case *shp.PolygonZ:
		return polygonGeometry(shape.Parts, shape.Points)
	case *shp.PolygonM:
		return polygonGeometry(shape.Parts, shape.Points)
	}
	return nil
}

func polylineGeometry(parts []int32, points []shp.Point) orb.Geometry {
	lines := make(orb.MultiLineString, 0, len(parts))
	for _, ring := range splitParts(parts, points) {
		if len(ring) >= 2 {
			lines = append(lines, orb.LineString(ring))
		}
	}
	switch len(lines) {
	case 0:
		return nil
	case 1:
		return lines[0]
	}
	return lines
}

// polygonGeometry treats every part as one ring of a single polygon, the
// first part being the outer boundary
func polygonGeometry(parts []int32, points []shp.Point) orb.Geometry {
	polygon := orb.Polygon{}
	for _, ring := range splitParts(parts, points) {
		if len(ring) >= 4 {
			polygon = append(polygon, orb.Ring(ring))
		}
	}
	if len(polygon) == 0 {
		return nil
	}
	return polygon
}

func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	if len(parts) == 0 {
		parts = []int32{0}
	}
	result := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if int(start) > end || int(start) < 0 || end > len(points) {
			continue
		}
		ring := make([]orb.Point, 0, end-int(start))
		for _, point := range points[start:end] {
			ring = append(ring, orb.Point{point.X, point.Y})
		}
		result = append(result, ring)
	}
	return result
}
