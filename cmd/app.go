package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/metrics"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/search"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/storage"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

// application holds the dependencies shared by serve and the maintenance
// commands.
type application struct {
	cfg       *config.Config
	db        *sql.DB
	blobs     storage.BlobStore
	index     *search.Index
	registry  *prometheus.Registry
	collector *metrics.Collector

	accounts  *service.AccountService
	profiles  *service.ProfileService
	directory *service.DirectoryService
	internal  *service.InternalAuthService

	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.ConfigureLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{cfg: cfg, registry: prometheus.NewRegistry()}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	if app.blobs, err = storage.New(ctx, cfg.Storage); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to configure storage: %w", err)
	}
	if closer, ok := app.blobs.(io.Closer); ok {
		app.closers = append(app.closers, closer.Close)
	}

	mail, closeMail, err := mailer.New(cfg.Mail)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to configure mail transport: %w", err)
	}
	app.closers = append(app.closers, closeMail)

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.collector = metrics.NewCollector(app.registry)

	opts := []service.Option{service.WithEventRecorder(app.collector)}
	index, err := search.New(cfg.Search)
	switch {
	case errors.Is(err, search.ErrNotConfigured):
		logrus.Info("Elasticsearch not configured, directory search uses SQL")
	case err != nil:
		app.Close()
		return nil, fmt.Errorf("failed to configure elasticsearch: %w", err)
	default:
		app.index = index
		opts = append(opts, service.WithDirectoryIndex(index))
	}

	repos := repository.NewSQLManager(db)
	issuer := token.NewIssuer(cfg.Tokens.LinkSecret, cfg.App.BaseURL, cfg.Tokens.SessionTTL, cfg.Tokens.ResetTTL)
	app.accounts = service.NewAccountService(repos, issuer, mail, app.blobs, cfg, opts...)
	app.profiles = service.NewProfileService(repos, app.blobs, opts...)
	app.directory = service.NewDirectoryService(repos, opts...)
	app.internal = service.NewInternalAuthService(repos.InternalAPIKeys(), cfg.App.Name)

	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logrus.WithError(err).Warn("Failed to release resource")
		}
	}
	a.closers = nil
}
