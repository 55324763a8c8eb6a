// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storj.io/paddock/pkg/errs2"
	"storj.io/paddock/pkg/ingest"
)

func TestNormalizeCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("ten valid rows, two invalid", func(t *testing.T) {
		var rows strings.Builder
		rows.WriteString("lat,lon,value\n")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&rows, "%f,%f,%d\n", -39.0-float64(i)*0.01, 175.0+float64(i)*0.01, i)
		}
		rows.WriteString(",175.2,98\n")
		rows.WriteString("-39.2,,99\n")

		result, err := ingest.Normalize(ctx, []byte(rows.String()), ingest.FormatCSV, ingest.Hints{})
		require.NoError(t, err)
		assert.Equal(t, 10, result.RecordCount)
		assert.Equal(t, []string{"value"}, result.Fields)

		// bounds tightly enclose the ten valid points
		assert.InDelta(t, 175.0, result.Bounds[0], 1e-9)
		assert.InDelta(t, -39.09, result.Bounds[1], 1e-9)
		assert.InDelta(t, 175.09, result.Bounds[2], 1e-9)
		assert.InDelta(t, -39.0, result.Bounds[3], 1e-9)

		point, ok := result.Collection.Features[0].Geometry.(orb.Point)
		require.True(t, ok)
		assert.InDelta(t, 175.0, point[0], 1e-9)
		assert.InDelta(t, -39.0, point[1], 1e-9)
		assert.Equal(t, float64(0), result.Collection.Features[0].Properties["value"])
	})

	t.Run("alternate header names", func(t *testing.T) {
		data := []byte("Y,X,note\n-39.0,175.0,hi\n")
		result, err := ingest.Normalize(ctx, data, ingest.FormatCSV, ingest.Hints{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.RecordCount)
		assert.Equal(t, []string{"note"}, result.Fields)
		assert.Equal(t, "hi", result.Collection.Features[0].Properties["note"])
	})

	t.Run("hinted columns", func(t *testing.T) {
		data := []byte("row,breadth,length\n1,-39.0,175.0\n")
		result, err := ingest.Normalize(ctx, data, ingest.FormatCSV, ingest.Hints{
			LatitudeColumn:  "breadth",
			LongitudeColumn: "length",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.RecordCount)
		assert.Equal(t, []string{"row"}, result.Fields)
	})

	t.Run("projected pair reprojects into geographic range", func(t *testing.T) {
		// easting/northing around the middle of UTM zone 60 south
		var rows strings.Builder
		rows.WriteString("easting,northing,yield\n")
		for i := 0; i < 5; i++ {
			fmt.Fprintf(&rows, "%f,%f,%d\n", 400000.0+float64(i)*100, 5650000.0+float64(i)*100, i)
		}

		result, err := ingest.Normalize(ctx, []byte(rows.String()), ingest.FormatCSV, ingest.Hints{})
		require.NoError(t, err)
		assert.Equal(t, 5, result.RecordCount)
		assert.Equal(t, []string{"yield"}, result.Fields)

		for _, feature := range result.Collection.Features {
			point, ok := feature.Geometry.(orb.Point)
			require.True(t, ok)
			assert.True(t, point[0] >= -180 && point[0] <= 180, "longitude %f out of range", point[0])
			assert.True(t, point[1] >= -90 && point[1] <= 90, "latitude %f out of range", point[1])
			// zone 60 south sits east of 174 and below the equator
			assert.True(t, point[0] > 174, "longitude %f not in zone 60", point[0])
			assert.True(t, point[1] < 0, "latitude %f not southern", point[1])
		}
	})

	t.Run("no coordinate columns", func(t *testing.T) {
		_, err := ingest.Normalize(ctx, []byte("a,b\n1,2\n"), ingest.FormatCSV, ingest.Hints{})
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})

	t.Run("no valid rows", func(t *testing.T) {
		_, err := ingest.Normalize(ctx, []byte("lat,lon\nnope,nada\n"), ingest.FormatCSV, ingest.Hints{})
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ingest.Normalize(ctx, nil, ingest.FormatCSV, ingest.Hints{})
		require.Error(t, err)
		assert.True(t, errs2.ErrValidation.Has(err))
	})
}
