package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cdens/WxServer/internal/api"
	"github.com/cdens/WxServer/internal/config"
	"github.com/cdens/WxServer/internal/domain"
	"github.com/cdens/WxServer/internal/ingest"
	"github.com/cdens/WxServer/internal/observability"
	"github.com/cdens/WxServer/internal/query"
	"github.com/cdens/WxServer/internal/resolver"
	"github.com/cdens/WxServer/internal/scheduler"
	"github.com/cdens/WxServer/internal/store"
)

var (
	listenAddr    string
	storageDriver string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wxserverd daemon (default command)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&storageDriver, "storage-driver", "", "storage driver (overrides config)")
	rootCmd.AddCommand(serveCmd)

	// Make serve the default command.
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Apply flag overrides.
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if storageDriver != "" {
		cfg.Storage.Driver = storageDriver
	}

	slog.Info("starting wxserverd",
		"listen_addr", cfg.ListenAddr,
		"storage_driver", cfg.Storage.Driver,
		"timezone", cfg.Station.Timezone,
	)

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	slog.Info("database ready", "driver", cfg.Storage.Driver)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Location and lightning state live in memory only; a restart returns
	// them to these defaults.
	location := domain.NewLocationState(domain.Location{
		Latitude:  cfg.Station.Latitude,
		Longitude: cfg.Station.Longitude,
		PlaceName: cfg.Station.PlaceName,
		Timezone:  cfg.Station.Timezone,
	})
	lightning := domain.NewLightningState()
	scenes := domain.NewSceneKeeper()
	metrics := observability.NewMetrics()

	res := resolver.NewClient(
		cfg.Resolver.GeocodeURL,
		cfg.Resolver.TimezoneURL,
		cfg.Resolver.AstronomyURL,
		cfg.Resolver.Timeout,
		slog.Default(),
	)

	ing := ingest.NewService(ingest.Deps{
		Store:            s,
		Resolver:         res,
		Location:         location,
		Lightning:        lightning,
		Scenes:           scenes,
		Metrics:          metrics,
		Clock:            clockwork.NewRealClock(),
		Logger:           slog.Default(),
		CredentialDigest: cfg.CredentialDigest,
		ResolverTimeout:  cfg.Resolver.Timeout,
	})

	qry := query.NewService(s, location, metrics, clockwork.NewRealClock(), slog.Default(),
		time.Duration(cfg.Display.CurrentWindowHours)*time.Hour, cfg.Display.HistoryDays)

	// Seed sun times at startup so scene classification works before the
	// first position update. Best effort; defaults stand on failure.
	if err := ing.RefreshSunTimes(ctx); err != nil {
		slog.Warn("initial sun times lookup failed", "error", err)
	}

	sched := scheduler.New(ing, slog.Default())
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := api.NewServer(ing, qry, scenes, location, s, slog.Default())
	srv.SetVersion(Version)
	srv.SetStorageInfo(cfg.Storage.Driver, storagePathForDisplay(cfg))

	slog.Info("wxserverd ready", "addr", cfg.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.ListenAddr) })

	waitErr := g.Wait()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		slog.Error("wxserverd exited with error", "error", waitErr)
	}

	// Always run graceful cleanup, even on error.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = s.Close()

	slog.Info("wxserverd shutdown complete")
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return store.NewPostgresStore(cfg.DSN())
	default:
		return store.NewSQLiteStore(cfg.DSN())
	}
}

// storagePathForDisplay hides postgres credentials from the health endpoint.
func storagePathForDisplay(cfg *config.Config) string {
	if cfg.Storage.Driver == "postgres" {
		return ""
	}
	return cfg.DSN()
}

func setupLogging() {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if logFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
