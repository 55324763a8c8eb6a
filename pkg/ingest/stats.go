// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package ingest

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb/geojson"

	"storj.io/paddock/pkg/errs2"
)

// ErrNoData means a field has no numeric values to analyze
var ErrNoData = errs2.ErrValidation.New("no data")

// Stats summarizes the numeric values of one feature property
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
}

// FieldStatistics summarizes field over the collection. Only numeric non-NaN
// values count, ErrNoData when none qualify.
func FieldStatistics(collection *geojson.FeatureCollection, field string) (Stats, error) {
	values := numericValues(collection, field)
	if len(values) == 0 {
		return Stats{}, Error.Wrap(ErrNoData)
	}

	min, err := stats.Min(values)
	if err != nil {
		return Stats{}, Error.Wrap(err)
	}
	max, err := stats.Max(values)
	if err != nil {
		return Stats{}, Error.Wrap(err)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return Stats{}, Error.Wrap(err)
	}
	median, err := stats.Median(values)
	if err != nil {
		return Stats{}, Error.Wrap(err)
	}
	stddev, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return Stats{}, Error.Wrap(err)
	}

	return Stats{
		Count:  len(values),
		Min:    min,
		Max:    max,
		Mean:   mean,
		Median: median,
		StdDev: stddev,
	}, nil
}

// ClassificationBreaks returns classes-1 cut points partitioning the sorted
// values of field into quantiles. This approximates Jenks natural breaks by
// equal-count classes rather than variance minimization, a deliberate
// simplification that behaves well enough for map styling.
func ClassificationBreaks(collection *geojson.FeatureCollection, field string, classes int) ([]float64, error) {
	if classes < 2 {
		return nil, Error.Wrap(errs2.ErrValidation.New("need at least 2 classes, got %d", classes))
	}

	values := numericValues(collection, field)
	if len(values) == 0 {
		return nil, Error.Wrap(ErrNoData)
	}
	sort.Float64s(values)

	breaks := make([]float64, 0, classes-1)
	for i := 1; i < classes; i++ {
		percent := float64(i) / float64(classes) * 100
		cut, err := stats.Percentile(values, percent)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		breaks = append(breaks, cut)
	}
	return breaks, nil
}

// numericValues collects the numeric non-NaN values of field across the
// collection
func numericValues(collection *geojson.FeatureCollection, field string) []float64 {
	var values []float64
	for _, feature := range collection.Features {
		value, ok := feature.Properties[field]
		if !ok {
			continue
		}
		var number float64
		switch value := value.(type) {
		case float64:
			number = value
		case float32:
			number = float64(value)
		case int:
			number = float64(value)
		case int64:
			number = float64(value)
		default:
			continue
		}
		if math.IsNaN(number) {
			continue
		}
		values = append(values, number)
	}
	return values
}
