// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storj.io/paddock/pkg/ingest"
)

func zipWith(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, contents := range members {
		member, err := writer.Create(name)
		require.NoError(t, err)
		_, err = member.Write(contents)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	kmzData := zipWith(t, map[string][]byte{"doc.kml": []byte("<kml/>")})
	shpData := zipWith(t, map[string][]byte{"fields.shp": nil, "fields.dbf": nil})

	tests := []struct {
		name     string
		data     []byte
		filename string
		expect   ingest.Format
	}{
		{"csv extension", []byte("a,b\n1,2\n"), "points.csv", ingest.FormatCSV},
		{"geojson extension", []byte(`{}`), "fields.geojson", ingest.FormatGeoJSON},
		{"json extension", []byte(`{}`), "fields.json", ingest.FormatGeoJSON},
		{"kml extension", []byte("<kml/>"), "doc.kml", ingest.FormatKML},
		{"kmz extension", kmzData, "doc.kmz", ingest.FormatKMZ},
		{"zip extension", shpData, "fields.zip", ingest.FormatShapefile},
		{"tif extension", []byte("II*\x00"), "ortho.tif", ingest.FormatTIFF},
		{"uppercase extension", []byte("a,b\n"), "POINTS.CSV", ingest.FormatCSV},
		{"sniffed json object", []byte("  {\"type\":\"Feature\"}"), "upload", ingest.FormatGeoJSON},
		{"sniffed json array", []byte("[1,2]"), "upload", ingest.FormatGeoJSON},
		{"sniffed kmz", kmzData, "upload", ingest.FormatKMZ},
		{"sniffed shapefile", shpData, "upload", ingest.FormatShapefile},
		{"sniffed tiff little endian", []byte("II*\x00rest"), "upload", ingest.FormatTIFF},
		{"sniffed tiff big endian", []byte("MM\x00*rest"), "upload", ingest.FormatTIFF},
		{"unknown", []byte("plain text"), "notes.txt", ingest.FormatUnknown},
		{"empty", nil, "", ingest.FormatUnknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expect, ingest.Detect(test.data, test.filename))
		})
	}
}
