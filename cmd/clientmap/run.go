package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/clientmap/internal/boundary"
	"github.com/nao1215/clientmap/internal/browser"
	"github.com/nao1215/clientmap/internal/client"
	"github.com/nao1215/clientmap/internal/config"
	"github.com/nao1215/clientmap/internal/crawler"
	"github.com/nao1215/clientmap/internal/database"
	"github.com/nao1215/clientmap/internal/eventbus"
	"github.com/nao1215/clientmap/internal/lifecycle"
	"github.com/nao1215/clientmap/internal/reconcile"
	"github.com/nao1215/clientmap/internal/server"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the telemetry API and record client-side navigation",
		Long: `Run prepares the browser profile, opens the history database and serves
the telemetry API until interrupted.

Observations posted by the browser extension build the site tree of the
current session. When a spider scan stops, the page it started from is
snapshotted and every URL found there is added to the tree.

Examples:
  # Start with the defaults (127.0.0.1:8089, HTTP snapshots)
  clientmap run

  # Render snapshots in a headless browser behind a SOCKS5 proxy
  clientmap run --snapshot-mode browser --proxy 127.0.0.1:9050

  # Keep nothing on disk
  clientmap run --no-history --skip-profile-sync`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().StringP("listen", "l", "", "Telemetry API address (default "+config.DefaultListenAddress+")")
	cmd.Flags().StringP("snapshot-mode", "s", "", "Snapshot mode: http or browser")
	cmd.Flags().StringP("proxy", "x", "", "SOCKS5 proxy for snapshot requests (host:port)")
	cmd.Flags().String("spawn", "", "Reconciliation spawn policy: go or pool")
	cmd.Flags().Bool("no-history", false, "Do not archive sessions in the history database")
	cmd.Flags().Bool("skip-profile-sync", false, "Do not prepare the browser profile at startup")

	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSession(ctx, cfg, logger)
}

// applyRunFlags overrides cfg with the flags that were set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"listen":        &cfg.ListenAddress,
		"snapshot-mode": &cfg.SnapshotMode,
		"proxy":         &cfg.ProxyAddress,
		"spawn":         &cfg.SpawnPolicy,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.SaveToDB = !noHistory
	}
	if flags.Changed("skip-profile-sync") {
		skip, err := flags.GetBool("skip-profile-sync")
		if err != nil {
			return err
		}
		cfg.SkipProfileSync = skip
	}
	return nil
}

// runSession wires the integration and serves the telemetry API until ctx
// is cancelled. The current tree is archived on the way out.
func runSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.SkipProfileSync {
		res := newSynchronizer(cfg, logger).Sync()
		if !res.OK() {
			logger.Warn("browser profile is not fully prepared", "profile", res.ProfileName, "problems", len(res.Errors))
		}
	}

	provider, closeProvider, err := newSnapshotProvider(cfg, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	worker := reconcile.NewWorker(provider,
		reconcile.WithTimeout(cfg.SnapshotTimeout),
		reconcile.WithLogger(logger),
		reconcile.OnDone(func(res reconcile.Result) {
			if res.Err != nil {
				return
			}
			logger.Info("scan reconciled",
				"target", res.Scan.Target,
				"snapshot", res.Snapshot,
				"added", len(res.Added),
				"skipped", res.Skipped,
			)
		}),
	)

	opts := []client.Option{
		client.WithFilter(boundary.New(cfg.ControlPrefixes...)),
		client.WithTopic(cfg.Topic),
		client.WithSpawner(newSpawner(cfg, logger)),
		client.WithWorker(worker),
		client.WithLogger(logger),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
		opts = append(opts, client.WithArchive(db))
	}

	integration := client.New(opts...)
	defer integration.Unload()

	bus := eventbus.New(eventbus.WithLogger(logger))
	integration.Hook(bus)

	srv := server.New(integration, bus,
		server.WithTopic(cfg.Topic),
		server.WithLogger(logger),
	)
	return srv.ListenAndServe(ctx, cfg.ListenAddress)
}

// newSnapshotProvider returns the provider for cfg.SnapshotMode and the
// function that releases it.
func newSnapshotProvider(cfg *config.Config, logger *slog.Logger) (reconcile.SnapshotProvider, func(), error) {
	switch cfg.SnapshotMode {
	case config.SnapshotModeBrowser:
		opts := []browser.Option{
			browser.WithNavigationTimeout(cfg.SnapshotTimeout),
			browser.WithLogger(logger),
		}
		if cfg.ProxyAddress != "" {
			opts = append(opts, browser.WithProxy("socks5://"+cfg.ProxyAddress))
		}
		p := browser.NewProvider(opts...)
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warn("failed to close browser", "error", err)
			}
		}, nil

	case config.SnapshotModeHTTP, "":
		httpClient, err := crawler.NewHTTPClient(
			crawler.WithProxy(cfg.ProxyAddress),
			crawler.WithTimeout(cfg.SnapshotTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		opts := []crawler.SnapshotOption{
			crawler.WithUserAgent(cfg.UserAgent),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
			crawler.WithSameSiteOnly(cfg.SameSiteOnly),
			crawler.WithLogger(logger),
		}
		if cfg.Sites != nil {
			opts = append(opts, crawler.WithSites(siteLookup(cfg.Sites)))
		}
		return crawler.NewDOMSnapshot(httpClient, opts...), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidSnapshotMode, cfg.SnapshotMode)
	}
}

// siteLookup adapts the per-host configuration to the crawler.
func siteLookup(file *config.File) func(host string) crawler.Site {
	return func(host string) crawler.Site {
		sc := file.GetSiteConfig(host)
		return crawler.Site{
			Cookie:         sc.Cookie,
			Headers:        sc.Headers,
			IgnorePatterns: sc.IgnorePatterns,
			FollowPatterns: sc.FollowPatterns,
		}
	}
}

// newSpawner returns the spawn policy for finished scans.
func newSpawner(cfg *config.Config, logger *slog.Logger) lifecycle.Spawner {
	if cfg.SpawnPolicy == config.SpawnPolicyPool {
		return lifecycle.NewPoolSpawner(
			lifecycle.WithWorkers(cfg.Workers),
			lifecycle.WithQueueSize(cfg.QueueSize),
			lifecycle.WithPoolLogger(logger),
		)
	}
	return lifecycle.GoSpawner{}
}
