// Package cmd provides the CLI commands for contentdex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/contentdex/contentdex/internal/config"
	"github.com/contentdex/contentdex/internal/engine"
	"github.com/contentdex/contentdex/internal/index"
	"github.com/contentdex/contentdex/internal/logging"
	"github.com/contentdex/contentdex/internal/store"
	"github.com/contentdex/contentdex/pkg/version"
)

var (
	cfgFile  string
	repoPath string
	logLevel string
	jsonLogs bool
)

// NewRootCmd creates the root command for the contentdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contentdex",
		Short: "Asynchronous full-text index for content repositories",
		Long: `contentdex maintains a searchable index over a content repository.

Metadata is indexed synchronously; file contents are converted to plain
text and indexed in the background. Repositories can be versioned, in
which case every write of a uid starts a new version in its chain.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("contentdex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: contentdex.yaml in the repo)")
	cmd.PersistentFlags().StringVar(&repoPath, "repo", "", "Repository root (overrides config)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Force JSON log output")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newFieldsCmd())
	cmd.AddCommand(newTermsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// app bundles the open repository handles a command works with.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	lock     *store.RepoLock
	registry *store.SQLiteStore
	mgr      *index.Manager
}

// openApp loads config, acquires the repository lock and brings up the
// engine, the content registry and the index manager.
func openApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if repoPath != "" {
		cfg.Repo.Path = repoPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if jsonLogs {
		cfg.Logging.JSON = true
	}

	log := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Output:    os.Stderr,
		ForceJSON: cfg.Logging.JSON,
	})

	if err := os.MkdirAll(cfg.Repo.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create repository dir: %w", err)
	}

	lock := store.NewRepoLock(cfg.Repo.Path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock repository: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("repository %s is locked by another process", cfg.Repo.Path)
	}

	eng, err := engine.Open(cfg.IndexPath(), cfg.Index.Language)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	mgr, err := index.New(eng, index.Options{
		ChunkSize:       cfg.Index.ChunkSize,
		DequeueInterval: cfg.Index.DequeueInterval,
		QueryCacheSize:  cfg.Index.QueryCacheSize,
		Logger:          log,
	})
	if err != nil {
		_ = eng.Close()
		_ = lock.Unlock()
		return nil, err
	}

	registry, err := store.OpenSQLite(cfg.RegistryPath(), cfg.Capabilities())
	if err != nil {
		_ = mgr.Close(true)
		_ = lock.Unlock()
		return nil, err
	}
	mgr.Connect(registry)

	return &app{cfg: cfg, log: log, lock: lock, registry: registry, mgr: mgr}, nil
}

// close shuts everything down. force abandons queued conversion work.
func (a *app) close(force bool) {
	if err := a.mgr.Close(force); err != nil {
		a.log.Warn("closing index manager failed", "error", err)
	}
	if err := a.registry.Close(); err != nil {
		a.log.Warn("closing registry failed", "error", err)
	}
	if err := a.lock.Unlock(); err != nil {
		a.log.Warn("releasing repository lock failed", "error", err)
	}
}
