// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg defines the blockfsd binary's configuration surface,
// following the teacher's cfg package: a plain struct with yaml and
// mapstructure tags and a BindFlags function that registers each field as
// a pflag and binds it through viper, so the same value can come from a
// flag or a YAML config file. Environment variables are not read.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable of the blockfsd daemon.
type Config struct {
	DiskImage   string `yaml:"disk-image" mapstructure:"disk-image"`
	MetricsAddr string `yaml:"metrics-addr" mapstructure:"metrics-addr"`
	LogFormat   string `yaml:"log-format" mapstructure:"log-format"`
	LogLevel    string `yaml:"log-level" mapstructure:"log-level"`
}

// BindFlags registers every Config field on flagSet and binds it into
// viper under the same name, so cmd.initConfig's viper.Unmarshal picks
// up flag and config-file values uniformly.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String("disk-image", "blockfs.img", "Path to the backing disk image file.")
	if err := viper.BindPFlag("disk-image", flagSet.Lookup("disk-image")); err != nil {
		return err
	}

	flagSet.String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables).")
	if err := viper.BindPFlag("metrics-addr", flagSet.Lookup("metrics-addr")); err != nil {
		return err
	}

	flagSet.String("log-format", "text", "Log output format: text or json.")
	if err := viper.BindPFlag("log-format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.String("log-level", "info", "Minimum log severity: trace, debug, info, warning, error.")
	if err := viper.BindPFlag("log-level", flagSet.Lookup("log-level")); err != nil {
		return err
	}

	return nil
}
