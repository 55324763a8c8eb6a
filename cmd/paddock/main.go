// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// paddock is the operational CLI for the farm document store: it manages
// farms and blocks, imports datasets through the ingest pipeline and queries
// field analytics.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"storj.io/paddock/pkg/auth"
	"storj.io/paddock/pkg/blocks"
	"storj.io/paddock/pkg/datasets"
	"storj.io/paddock/pkg/farms"
	"storj.io/paddock/pkg/notify"
	"storj.io/paddock/pkg/process"
	"storj.io/paddock/storage"
)

var rootCmd = &cobra.Command{
	Use:   "paddock",
	Short: "Farm document store operations",
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("store.backend", "bolt", "document store backend: bolt, redis, s3 or memory")
	flags.String("store.bolt.path", filepath.Join(process.DefaultConfigDir(), "paddock.db"), "bolt database file")
	flags.String("store.redis.address", "127.0.0.1:6379", "redis address")
	flags.String("store.redis.password", "", "redis password")
	flags.Int("store.redis.db", 0, "redis database index")
	flags.String("store.s3.endpoint", "", "s3 endpoint")
	flags.String("store.s3.bucket", "paddock", "s3 bucket")
	flags.String("store.s3.access-key", "", "s3 access key")
	flags.String("store.s3.secret-key", "", "s3 secret key")
	flags.Bool("store.s3.use-ssl", true, "use ssl when talking to s3")
	flags.Int64("ingest.max-upload-size", datasets.DefaultMaxUploadSize, "upload size ceiling in bytes")
	flags.String("user.id", "", "principal id performing the operations")
	flags.String("user.email", "", "principal email")
	flags.Bool("log.development", false, "verbose development logging")

	rootCmd.AddCommand(setupCmd, farmCmd, blockCmd, datasetCmd)
	farmCmd.AddCommand(farmCreateCmd, farmListCmd)
	blockCmd.AddCommand(blockListCmd, blockRevertCmd)
	datasetCmd.AddCommand(importCmd, statsCmd, breaksCmd)
}

func main() {
	process.Execute(rootCmd)
}

// services bundles everything a command needs, plus the store to close when
// done
type services struct {
	log      *zap.Logger
	store    storage.Store
	farms    *farms.Service
	blocks   *blocks.Service
	datasets *datasets.Service
}

func openServices() (*services, error) {
	log, err := process.NewLogger(viper.GetBool("log.development"))
	if err != nil {
		return nil, err
	}

	store, err := openStore(log)
	if err != nil {
		return nil, err
	}

	farmService := farms.NewService(log.Named("farms"), store)
	return &services{
		log:    log,
		store:  store,
		farms:  farmService,
		blocks: blocks.NewService(log.Named("blocks"), store, farmService),
		datasets: datasets.NewService(log.Named("datasets"), store, farmService,
			notify.NewLogNotifier(log.Named("notify")),
			datasets.Config{MaxUploadSize: viper.GetInt64("ingest.max-upload-size")}),
	}, nil
}

func (s *services) close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("failed to close store", zap.Error(err))
	}
}

// cmdContext builds the context carrying the configured principal
func cmdContext() (context.Context, error) {
	id := viper.GetString("user.id")
	if id == "" {
		return nil, fmt.Errorf("user.id is required, set the flag or PADDOCK_USER_ID")
	}
	return auth.WithPrincipal(context.Background(), auth.Principal{
		ID:    id,
		Email: viper.GetString("user.email"),
	}), nil
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := process.DefaultConfigDir()
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		path := process.DefaultConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
		if err := viper.WriteConfigAs(path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var farmCmd = &cobra.Command{
	Use:   "farm",
	Short: "Manage farms",
}

var farmCreateCmd = &cobra.Command{
	Use:   "create <name> [location]",
	Short: "Create a farm owned by the configured user",
	Args:  cobra.RangeArgs(1, 2),
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

		info := farms.Info{Name: args[0]}
		if len(args) > 1 {
			info.Location = args[1]
		}
		farm, err := services.farms.Create(ctx, info)
		if err != nil {
			return err
		}
		fmt.Println(farm.ID)
		return nil
	},
}

var farmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List farms readable by the configured user",
	Args:  cobra.NoArgs,
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

		listed, err := services.farms.List(ctx)
		if err != nil {
			return err
		}
		for _, farm := range listed {
			fmt.Printf("%s\t%s\tblocks=%d datasets=%d area=%.0fm2\n",
				farm.ID, farm.Name, farm.BlockCount, farm.DatasetCount, farm.TotalArea)
		}
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage field blocks",
}

var blockListCmd = &cobra.Command{
	Use:   "list <farm-id>",
	Short: "List the blocks of a farm",
	Args:  cobra.ExactArgs(1),
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

		listed, err := services.blocks.List(ctx, args[0])
		if err != nil {
			return err
		}
		for _, block := range listed {
			fmt.Printf("%s\t%s\t%.0fm2\n", block.ID, block.Name, block.Area)
		}
		return nil
	},
}

var blockRevertCmd = &cobra.Command{
	Use:   "revert <farm-id> <block-id> [revision-id]",
	Short: "Revert a block, without a revision id its history is printed",
	Args:  cobra.RangeArgs(2, 3),
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

		if len(args) == 2 {
			history, err := services.blocks.Revisions(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			for _, revision := range history {
				fmt.Printf("%s\t%s\t%s\t%s\n",
					revision.ID, revision.CreatedAt.Format("2006-01-02 15:04:05"),
					revision.UpdatedByName, revision.Message)
			}
			return nil
		}

		block, err := services.blocks.Revert(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Println("reverted", block.ID, "to", args[2])
		return nil
	},
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage datasets",
}
