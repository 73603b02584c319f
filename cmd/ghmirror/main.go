// Command ghmirror mirrors GitHub repositories into a local SQLite cache and
// serves the cached data over a local REST API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/spf13/cobra"

	githubadapter "github.com/ericfisherdev/ghmirror/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/ghmirror/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/ghmirror/internal/adapter/driving/http"
	"github.com/ericfisherdev/ghmirror/internal/application"
	"github.com/ericfisherdev/ghmirror/internal/config"
	"github.com/ericfisherdev/ghmirror/internal/domain/port/driven"
)

var rootCmd = &cobra.Command{
	Use:          "ghmirror",
	Short:        "Local GitHub sync and cache engine",
	Long:         "ghmirror mirrors repositories, issues, pull requests, CI results, reviews, and releases\ninto a durable local cache and derives notifications from state transitions between syncs.",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync loop and the local REST API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSync(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// wiring is the assembled application: store, sync service, and loop.
type wiring struct {
	cfg     *config.Config
	store   *sqliteadapter.Store
	service *application.SyncService
	loop    *application.SyncLoop
}

func (w *wiring) close() {
	if err := w.store.Close(); err != nil {
		slog.Error("error closing cache", "error", err)
	}
}

func buildWiring(ctx context.Context) (*wiring, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"accounts", len(cfg.Accounts),
		"repos", len(cfg.Repos),
		"searches", len(cfg.Searches),
	)

	store, err := sqliteadapter.Create(ctx, cfg.DBPath, cfg.RebuildCache)
	if err != nil {
		return nil, err
	}
	slog.Info("cache opened", "path", cfg.DBPath)

	accounts := make([]driven.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts = append(accounts, driven.Account{
			Login:  a.Login,
			Client: githubadapter.NewClient(a.Token, a.Login),
		})
	}
	if len(accounts) == 0 {
		slog.Warn("no accounts configured, only public repositories are reachable")
	}

	var public driven.GitHubClient
	if cfg.PublicFallback {
		public = githubadapter.NewClient("", "")
	}

	service := application.NewSyncService(store, application.NewAccountProvider(accounts), public)

	repos := make([]application.RepoRef, 0, len(cfg.Repos))
	for _, r := range cfg.Repos {
		repos = append(repos, application.RepoRef{Owner: r.Owner, Name: r.Name})
	}
	searches := make([]application.SearchRef, 0, len(cfg.Searches))
	for _, s := range cfg.Searches {
		searches = append(searches, application.SearchRef{Owner: s.Owner, Name: s.Name, Query: s.Query})
	}

	loop := application.NewSyncLoop(service, repos, searches, cfg.SyncInterval)

	return &wiring{cfg: cfg, store: store, service: service, loop: loop}, nil
}

func runServe(ctx context.Context) error {
	w, err := buildWiring(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	go w.loop.Start(ctx)

	handler := httphandler.NewHandler(w.store, w.loop, slog.Default())
	srv := &http.Server{
		Addr:              w.cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", w.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func runSync(ctx context.Context) error {
	w, err := buildWiring(ctx)
	if err != nil {
		return err
	}
	defer w.close()

	return w.loop.RunOnce(ctx)
}
