package cmd

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/internal/banner"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/cache"
	"github.com/tgdrive/clouddrive/internal/chizap"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/internal/middleware"
	"github.com/tgdrive/clouddrive/internal/version"
	"github.com/tgdrive/clouddrive/pkg/controller"
	"github.com/tgdrive/clouddrive/pkg/cron"
	"github.com/tgdrive/clouddrive/pkg/services"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
)

func NewRun() *cobra.Command {
	var cfg config.ServerCmdConfig
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the clouddrive server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd.Context(), &cfg)
		},
	}
	loadConfig(cmd, loader, &cfg)
	return cmd
}

func runApplication(ctx context.Context, conf *config.ServerCmdConfig) error {
	ctx, lg := setupLogger(ctx, &conf.Log)
	defer lg.Sync()

	var st store.Store
	if conf.DB.DataSource == "" {
		lg.Warn("no database configured, metadata is kept in memory")
		st = store.NewMemory()
	} else {
		db, err := openDatabase(ctx, &conf.DB, lg, conf.DB.Migrate)
		if err != nil {
			return err
		}
		defer db.Close()
		st = store.NewPostgres(db)
	}

	cacher, err := cache.NewCache(ctx, &conf.Cache)
	if err != nil {
		return errors.Wrap(err, "create cache")
	}

	blobs, err := blob.Open(ctx, &conf.Storage, lg)
	if err != nil {
		return errors.Wrap(err, "open blob storage")
	}
	defer blobs.Close()

	svc := services.New(services.Options{
		Store:  st,
		Blob:   blobs,
		Cache:  cacher,
		Config: conf,
		Logger: lg,
	})

	if conf.CronJobs.Enable {
		cron.StartCronJobs(ctx, svc, &conf.CronJobs)
	}

	srv := setupServer(conf, svc, lg)

	banner.PrintBanner(banner.StartupInfo{
		Version:  version.Version,
		Addr:     srv.Addr,
		Backend:  conf.Storage.Backend,
		LogLevel: conf.Log.Level,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	lg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown failed", zap.Error(err))
		return err
	}
	lg.Info("server stopped")
	return nil
}

func setupServer(cfg *config.ServerCmdConfig, svc *services.Service, lg *zap.Logger) *http.Server {
	mux := chi.NewRouter()

	mux.Use(chimiddleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CorsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH", "HEAD"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         86400,
	}))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.InjectLogger(lg))
	mux.Use(chizap.ChizapWithConfig(lg, &chizap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPathRegexps: []*regexp.Regexp{
			regexp.MustCompile(`^/api/version$`),
		},
	}))
	mux.Mount("/api", controller.New(svc, cfg).Routes(auth.NewJWTVerifier(&cfg.Auth)))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
