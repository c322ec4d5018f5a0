// Copyright 2025 PeerNest AI Service Project
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

// Package main provides the PeerNest categorization service: an HTTP API
// and a small CLI around the AI struggle categorization pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JoelMun99/peernest-ai-service/internal/cache"
	"github.com/JoelMun99/peernest-ai-service/internal/categorize"
	"github.com/JoelMun99/peernest-ai-service/internal/config"
	"github.com/JoelMun99/peernest-ai-service/internal/taxonomy"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "categorizer",
		Short:        "PeerNest AI struggle categorization service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the categorization HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}

	categorizeCmd := &cobra.Command{
		Use:   "categorize [text]",
		Short: "Categorize a single struggle text and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategorize(cmd, configPath, args[0])
		},
	}

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "Print the struggle category taxonomy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, taxonomy.Hierarchy())
		},
	}

	var invalidatePattern string
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}
	cacheInvalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Remove cached categorization results matching a pattern",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheInvalidate(cmd, configPath, invalidatePattern)
		},
	}
	cacheInvalidateCmd.Flags().StringVar(&invalidatePattern, "pattern", "*", "key pattern to invalidate")
	cacheCmd.AddCommand(cacheInvalidateCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the service version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("categorizer %s\n", Version)
		},
	}

	rootCmd.AddCommand(serveCmd, categorizeCmd, categoriesCmd, cacheCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded",
		zap.String("service", "categorizer"),
		zap.String("version", Version),
		zap.String("model", masked.LLM.Model),
		zap.String("groq_api_key", masked.LLM.APIKey),
		zap.Bool("cache_enabled", masked.Cache.Enabled),
		zap.Bool("fallback_enabled", masked.Fallback.Enabled),
		zap.Bool("audit_enabled", masked.Audit.Enabled),
	)

	srv, err := newServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	err = config.WatchConfig(configPath, logger, func(updated *config.Config) {
		logger.Info("Configuration reloaded, applying tunables")
		srv.applyConfig(updated)
	})
	if err != nil {
		logger.Warn("Configuration hot reload unavailable", zap.Error(err))
	}

	return srv.run()
}

func runCategorize(cmd *cobra.Command, configPath, text string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zap.NewNop()
	deps, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.service.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+10*time.Second)
	defer cancel()

	result, err := deps.service.Categorize(ctx, categorize.Request{StruggleText: text})
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

// runCacheInvalidate talks to the shared cache backend directly, so it only
// affects a running server when Redis is configured. With the in-memory
// backend it operates on this process's own (empty) cache.
func runCacheInvalidate(cmd *cobra.Command, configPath, pattern string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store := cache.NewStore(cache.Config{
		RedisURL:   cfg.Cache.RedisURL,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}, zap.NewNop())
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := store.Invalidate(ctx, pattern)
	if err != nil {
		return err
	}
	cmd.Printf("removed %d cached results (pattern %q)\n", removed, pattern)
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{"categorizer.log"}
		zapConfig.ErrorOutputPaths = []string{"categorizer.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}
