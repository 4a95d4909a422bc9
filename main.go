// server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ViniZap4/lumi-notes/auth"
	"github.com/ViniZap4/lumi-notes/autosave"
	"github.com/ViniZap4/lumi-notes/config"
	httphandlers "github.com/ViniZap4/lumi-notes/http"
	"github.com/ViniZap4/lumi-notes/logging"
	"github.com/ViniZap4/lumi-notes/metrics"
	"github.com/ViniZap4/lumi-notes/store"
	"github.com/ViniZap4/lumi-notes/store/memory"
	"github.com/ViniZap4/lumi-notes/store/postgres"
	"github.com/ViniZap4/lumi-notes/workspace"
	"github.com/ViniZap4/lumi-notes/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer closeStore()

	hub := ws.NewHub(logging.Component(log, "hub"))
	go hub.Run(ctx)

	space := workspace.New(st, logging.Component(log, "workspace"), hub)
	if err := space.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("load workspace")
	}

	server := httphandlers.NewServer(httphandlers.Deps{
		Store:     st,
		Workspace: space,
		Hub:       hub,
		Auth:      auth.NewChecker(cfg.Password, cfg.PasswordHash),
		Metrics:   metrics.NewCollector("lumi"),
		Log:       logging.Component(log, "http"),
		ExportDir: cfg.ExportDir,
		Engine: []autosave.Option{
			autosave.WithDelays(cfg.TitleDelay, cfg.ContentDelay, cfg.SummaryDelay),
			autosave.WithWriteTimeout(cfg.WriteTimeout),
		},
	})
	app := server.App()

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdown); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", cfg.Addr()).Bool("database", cfg.UsesDatabase()).Msg("server starting")
	if err := app.Listen(cfg.Addr()); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	log.Info().Msg("server stopped")
}

// openStore connects to Postgres when a database URL is configured and
// otherwise keeps everything in memory.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, func(), error) {
	if !cfg.UsesDatabase() {
		log.Warn().Msg("LUMI_DATABASE_URL not set, notes are kept in memory")
		return memory.New(), func() {}, nil
	}

	if err := postgres.Migrate(cfg.DatabaseURL, logging.Component(log, "migrate")); err != nil {
		return nil, nil, err
	}
	pg, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
