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

// Package main is blockfsd, a small daemon that opens a disk image
// through the blockfs filesystem core and serves a Prometheus metrics
// endpoint, playing the role the teacher's gcsfuse binary plays for
// mounting a GCS bucket. Grounded on cmd/root.go: a cobra root command
// with persistent flags bound through cfg.BindFlags and unmarshalled by
// viper in cobra.OnInitialize.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kernellab/blockfs/internal/cfg"
	"github.com/kernellab/blockfs/internal/filesys"
	"github.com/kernellab/blockfs/internal/freemap"
	"github.com/kernellab/blockfs/internal/logger"
	"github.com/kernellab/blockfs/internal/sectorcache"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	config        cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "blockfsd --disk-image=PATH",
	Short: "Serve a blockfs disk image and its metrics endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		return run(&config)
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(formatCmd)
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&config)
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&config)
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cfg.Config) error {
	logger.Init(c.LogFormat, c.LogLevel)

	if c.DiskImage == "" {
		return fmt.Errorf("--disk-image is required")
	}

	device, err := openExistingDevice(c.DiskImage)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.DiskImage, err)
	}

	fs, err := filesys.Open(device)
	if err != nil {
		return fmt.Errorf("attaching filesystem: %w", err)
	}
	logger.Infof("attached %s", c.DiskImage)

	if c.MetricsAddr != "" {
		if err := registerMetrics(); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		go serveMetrics(c.MetricsAddr)
	}

	waitForShutdownSignal()

	logger.Infof("shutting down, flushing sector cache")
	return fs.Shutdown()
}

func registerMetrics() error {
	if err := sectorcache.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	return freemap.RegisterMetrics(prometheus.DefaultRegisterer)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics server stopped: %v", err)
	}
}

func waitForShutdownSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
