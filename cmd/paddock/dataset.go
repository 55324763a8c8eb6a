// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb"
	"github.com/spf13/cobra"

	"storj.io/paddock/pkg/datasets"
)

var importType string

func init() {
	importCmd.Flags().StringVar(&importType, "type", "upload", "dataset type tag")
}

var importCmd = &cobra.Command{
	Use:   "import <farm-id> <file>...",
	Short: "Create datasets from files and run them through the ingest pipeline",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := cmdContext()
		if err != nil {
			return err
		}
		services, err := openServices()
		if err != nil {
			return err
		}
		defer services.close()

		farmID := args[0]
		files := args[1:]

		bar := pb.New(len(files))
		bar.Start()
		defer bar.Finish()

		failures := 0
		for _, file := range files {
			payload, err := ioutil.ReadFile(file)
			if err != nil {
				return err
			}

			name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			dataset, err := services.datasets.Create(ctx, farmID, datasets.Info{
				Name: name,
				Type: importType,
			})
			if err != nil {
				return err
			}

			dataset, err = services.datasets.Upload(ctx, farmID, dataset.ID, filepath.Base(file), payload)
			if err != nil {
				return err
			}
			bar.Increment()

			if dataset.Status == datasets.StatusFailed {
				failures++
				fmt.Printf("%s\t%s\tfailed: %s\n", dataset.ID, name, dataset.ErrorMessage)
				continue
			}
			fmt.Printf("%s\t%s\t%d records\n", dataset.ID, name, dataset.RecordCount)
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d files failed to process", failures, len(files))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <farm-id> <dataset-id> <field>",
	Short: "Summarize a numeric field of a processed dataset",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := cmdContext()
		if err != nil {
			return err
		}
		services, err := openServices()
		if err != nil {
			return err
		}
		defer services.close()

		stats, err := services.datasets.Statistics(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("count\t%d\n", stats.Count)
		fmt.Printf("min\t%g\n", stats.Min)
		fmt.Printf("max\t%g\n", stats.Max)
		fmt.Printf("mean\t%g\n", stats.Mean)
		fmt.Printf("median\t%g\n", stats.Median)
		fmt.Printf("stddev\t%g\n", stats.StdDev)
		return nil
	},
}

var breaksCmd = &cobra.Command{
	Use:   "breaks <farm-id> <dataset-id> <field> <classes>",
	Short: "Print classification cut points for a numeric field",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		classes, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("classes must be a number: %v", err)
		}

		ctx, err := cmdContext()
		if err != nil {
			return err
		}
		services, err := openServices()
		if err != nil {
			return err
		}
		defer services.close()

		breaks, err := services.datasets.Breaks(ctx, args[0], args[1], args[2], classes)
		if err != nil {
			return err
		}
		for _, cut := range breaks {
			fmt.Printf("%g\n", cut)
		}
		return nil
	},
}
