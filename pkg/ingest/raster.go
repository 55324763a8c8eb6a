// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest

import (
	"bytes"

	"github.com/disintegration/imaging"

	"storj.io/paddock/pkg/errs2"
)

// MaxRasterEdge bounds the longest edge of a transcoded raster
const MaxRasterEdge = 2048

const jpegQuality = 80

// TranscodeRaster decodes an uploaded raster, bounds it to MaxRasterEdge and
// re-encodes it as a displayable jpeg. Rasters skip normalization entirely,
// the dataset gets a raster pointer instead of a feature collection.
func TranscodeRaster(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Error.Wrap(errs2.ErrValidation.New("unreadable raster: %v", err))
	}

	size := img.Bounds().Size()
	if size.X > MaxRasterEdge || size.Y > MaxRasterEdge {
		img = imaging.Fit(img, MaxRasterEdge, MaxRasterEdge, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, Error.Wrap(err)
	}
	return out.Bytes(), nil
}
