// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/storacha/ucanstream/lib/clock"
	"github.com/storacha/ucanstream/lib/config"
	"github.com/storacha/ucanstream/lib/pipeline"
	"github.com/storacha/ucanstream/lib/service"
	"github.com/storacha/ucanstream/lib/sqlitepool"
	"github.com/storacha/ucanstream/lib/store"
	"github.com/storacha/ucanstream/lib/stream"
	"github.com/storacha/ucanstream/lib/ucan"
	"github.com/storacha/ucanstream/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		configPath  string
		generateKey bool
	)
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "path to ucanstream.yaml (overrides UCANSTREAM_CONFIG)")
	flag.BoolVar(&generateKey, "generate-key", false, "generate a signing key, print it with its DID, and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("ucanstream-service %s\n", version.Info())
		return nil
	}

	if generateKey {
		signer, key, err := generateSigningKey()
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", key)
		fmt.Fprintf(os.Stderr, "did: %s\n", signer.DID())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := service.NewLogger()

	authToken, err := cfg.LoadAuthToken()
	if err != nil {
		return err
	}
	keyHex, err := cfg.LoadSigningKey()
	if err != nil {
		return err
	}
	self, err := ucan.ParseSignerKey(keyHex)
	if err != nil {
		return fmt.Errorf("parsing signing key: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	// Storage: archive blobs on the filesystem, links and task
	// results in SQLite, all behind the bounded retry layer.
	blobs, err := store.NewFSBlobStore(filepath.Join(cfg.DataDir, "blobs"))
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}
	pool, err := store.OpenPool(sqlitepool.Config{
		Path:     filepath.Join(cfg.DataDir, "stores.db"),
		PoolSize: cfg.Pool.Size,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("opening store database: %w", err)
	}
	defer pool.Close()

	policy := store.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay.Std(),
		MaxDelay:    cfg.Retry.MaxDelay.Std(),
	}

	log, err := stream.OpenLog(stream.LogConfig{
		Path:       filepath.Join(cfg.DataDir, "stream.db"),
		Partitions: cfg.Stream.Partitions,
		PoolSize:   cfg.Pool.Size,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("opening stream log: %w", err)
	}
	defer log.Close()

	processor, err := pipeline.New(pipeline.Config{
		Self:      self,
		AuthToken: authToken,
		Blobs:     store.NewRetryingBlobStore(blobs, policy, clk),
		Links:     store.NewRetryingLinkStore(store.NewSQLLinkStore(pool), policy, clk),
		Tasks:     store.NewRetryingTaskStore(store.NewSQLTaskStore(pool), policy, clk),
		Publisher: log,
		Clock:     clk,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.ListenAddress,
		Handler: service.NewHandler(service.HandlerConfig{
			Processor: processor,
			Logger:    logger,
		}),
		Logger: logger,
	})

	logger.Info("ucanstream service starting",
		"did", self.DID(),
		"address", cfg.ListenAddress,
		"data_dir", cfg.DataDir,
		"partitions", cfg.Stream.Partitions,
	)

	return server.Serve(ctx)
}

// generateSigningKey creates a fresh service identity and returns its
// hex encoding for the signing key file.
func generateSigningKey() (ucan.Signer, string, error) {
	signer, err := ucan.Generate()
	if err != nil {
		return ucan.Signer{}, "", err
	}
	return signer, hex.EncodeToString(signer.PrivateKeyBytes()), nil
}
