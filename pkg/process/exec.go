// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package process wires flags, environment and the config file into cobra
// commands and builds the process logger.
package process

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
)

// Error is the default process errs class
var Error = errs.Class("process error")

// DefaultConfigDir returns the directory holding the config file, ~/.paddock
// unless the home directory cannot be resolved
func DefaultConfigDir() string {
	home, err := homedir.Dir()
	if err != nil {
		log.Println(err)
		return ".paddock"
	}
	return filepath.Join(home, ".paddock")
}

// DefaultConfigPath returns the default config file path
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Execute binds the command tree's flags to viper and runs it. Values resolve
// flag first, then PADDOCK_* environment, then the config file.
func Execute(cmd *cobra.Command) {
	cobra.OnInitialize(func() {
		cmd.Flags().VisitAll(func(flag *pflag.Flag) {
			if err := viper.BindPFlag(flag.Name, flag); err != nil {
				log.Println(err)
			}
		})
		viper.SetEnvPrefix("paddock")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()

		configPath := DefaultConfigPath()
		if override := os.Getenv("PADDOCK_CONFIG"); override != "" {
			configPath = override
		}
		viper.SetConfigFile(configPath)
		// a missing config file is fine, flags and env still apply
		_ = viper.ReadInConfig()
	})

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
