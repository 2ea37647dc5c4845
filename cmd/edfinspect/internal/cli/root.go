// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package cli implements the edfinspect command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	edf "github.com/OpenPSG/edfengine"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "edfinspect",
	Short: "Inspect EDF, EDF+ and BDF/BDF+ recordings",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML engine configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(headerCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(annotationsCmd)
}

// Execute runs the edfinspect command tree.
func Execute() error {
	return rootCmd.Execute()
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads --config if set, falling back to edf.DefaultConfig.
func loadConfig() (edf.Config, error) {
	cfg := edf.DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openReader opens path and runs SetupCache, returning a ready-to-use
// Reader and its Study summary. The caller must call reader.Release().
func openReader(path string) (*edf.Reader, *edf.Study, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	r := edf.NewReader()
	if _, err := r.OpenFile(path); err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	study, err := r.SetupCache(cfg, nil)
	if err != nil {
		_ = r.Release()
		return nil, nil, fmt.Errorf("setup cache: %w", err)
	}
	return r, study, nil
}
