// Command peachjam ingests, indexes and searches legal documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/laws-africa/peachjam/internal/adapters/driven/config/file"
	"github.com/laws-africa/peachjam/internal/adapters/driving/cli"
	"github.com/laws-africa/peachjam/internal/app"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/core/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetSettingsLoader(loadSettings)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func loadSettings(opts cli.Options) (driving.SettingsService, error) {
	store, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	return services.NewSettingsService(store), nil
}

func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func() error, error) {
	store, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settings, err := services.LoadSettings(store)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid settings in %s: %w", store.Path(), err)
	}

	a, err := app.New(ctx, settings, app.Options{DataDir: opts.DataDir})
	if err != nil {
		return nil, nil, err
	}

	svc := &cli.Services{
		Search:      a.Search,
		Traces:      a.Traces,
		Related:     a.Related,
		Documents:   a.Documents,
		Ingestion:   a.Ingestion,
		Index:       a.Indexer,
		Embeddings:  a.Embeddings,
		Citations:   a.Citations,
		Ranking:     a.Ranking,
		Tasks:       a.Tasks,
		Scheduler:   a.Scheduler,
		Settings:    services.NewSettingsService(store),
		AppSettings: settings,
		Metrics:     a.Metrics.Handler(),
	}
	if a.Database != nil {
		svc.Migrator = a.Database
	}
	return svc, a.Close, nil
}
