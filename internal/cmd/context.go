package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quotedeck/logocache/internal/blob"
	"github.com/quotedeck/logocache/internal/config"
	"github.com/quotedeck/logocache/internal/kv"
	"github.com/quotedeck/logocache/internal/logger"
	"github.com/quotedeck/logocache/internal/refresh"
	"github.com/quotedeck/logocache/internal/resolver"
	"github.com/quotedeck/logocache/internal/state"
	"github.com/quotedeck/logocache/internal/upstream"
)

// cmdContext carries the loaded configuration and a context with the
// command's logger attached. Every subcommand starts from one.
type cmdContext struct {
	ctx context.Context
	cfg *config.Config
}

func newCmdContext(cmd *cobra.Command) (*cmdContext, error) {
	configFile, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	quiet, _ := cmd.Flags().GetBool("quiet")

	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var logOpts []logger.Option
	logOpts = append(logOpts, logger.WithFormat(cfg.LogFormat))
	if cfg.Debug || debug {
		logOpts = append(logOpts, logger.WithDebug())
	}
	if cfg.Quiet || quiet {
		logOpts = append(logOpts, logger.WithQuiet())
	}

	ctx := logger.WithLogger(cmd.Context(), logger.NewLogger(logOpts...))
	return &cmdContext{ctx: ctx, cfg: cfg}, nil
}

// services bundles the wired storage and refresh components.
type services struct {
	st     *state.Store
	blobs  blob.Store
	runner *refresh.Runner
	close  func()
}

func (c *cmdContext) openServices() (*services, error) {
	store, err := kv.NewRedis(c.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to open redis store: %w", err)
	}

	blobs, err := blob.NewMinio(c.cfg.S3)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	st := state.New(store)
	res := resolver.New(upstream.NewClient(c.cfg.Upstream))
	runner := refresh.NewRunner(c.cfg, st, blobs, res)

	return &services{
		st:     st,
		blobs:  blobs,
		runner: runner,
		close: func() {
			if err := store.Close(); err != nil {
				logger.Error(c.ctx, "Failed to close store", "err", err)
			}
		},
	}, nil
}
