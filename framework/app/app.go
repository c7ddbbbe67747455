// Package app bootstraps a Builder with configuration, logging, the module
// loader and the framework providers.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/km-arc/go-builder/framework/builder"
	"github.com/km-arc/go-builder/framework/config"
	"github.com/km-arc/go-builder/framework/loader"
	"github.com/km-arc/go-builder/framework/logging"
	"github.com/km-arc/go-builder/framework/providers"
	"github.com/km-arc/go-builder/framework/routing"
)

// Application embeds the Builder and its ProviderRegistry so user code can
// call app.Merge(), app.Get(), app.Register() directly.
//
//	application, err := app.New()
//	if err != nil { ... }
//	if err := application.Boot(ctx); err != nil { ... }
//	router, err := application.Router(ctx)
type Application struct {
	*builder.Builder
	Providers *builder.ProviderRegistry

	config *config.Config
	log    *zap.Logger
}

// New loads configuration from envFiles (default ".env"), builds the logger
// and a Builder with the yaegi module loader, and registers the framework
// providers. Manifests are merged by Boot.
func New(envFiles ...string) (*Application, error) {
	cfg := config.Load(envFiles...)
	return NewWithConfig(cfg)
}

// NewWithConfig is New with an already loaded configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	b := builder.New(
		builder.WithConfig(builder.Config{New: cfg.Builder.New, Clone: cfg.Builder.Clone}),
		builder.WithLogger(log.Named("builder")),
		builder.WithLoader(loader.New(loader.WithLogger(log.Named("loader")))),
	)
	a := &Application{
		Builder:   b,
		Providers: builder.NewProviderRegistry(b),
		config:    cfg,
		log:       log,
	}

	// Framework core providers, in dependency order.
	for _, p := range []builder.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: log},
		&providers.RoutingServiceProvider{},
	} {
		if err := a.Providers.Register(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(ctx context.Context, provider builder.ServiceProvider) error {
	return a.Providers.Register(ctx, provider)
}

// LoadManifests merges YAML manifests in order; later files win.
func (a *Application) LoadManifests(paths ...string) error {
	for _, path := range paths {
		ins, err := builder.LoadFile(path)
		if err != nil {
			return err
		}
		a.Merge(ins)
		a.log.Debug("manifest merged", zap.String("path", path), zap.Int("aliases", len(ins)))
	}
	return nil
}

// Boot merges the manifests named by BUILDER_MANIFESTS and runs the Boot
// phase on all providers. Calling it again is a no-op.
func (a *Application) Boot(ctx context.Context) error {
	if a.Providers.Booted() {
		return nil
	}
	if err := a.LoadManifests(a.config.Builder.Manifests...); err != nil {
		return err
	}
	if err := a.Providers.Boot(ctx); err != nil {
		return fmt.Errorf("app: boot: %w", err)
	}
	a.log.Info("application booted", zap.Int("aliases", len(a.Aliases())))
	return nil
}

// Config returns the loaded configuration.
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.log }

// Router resolves the shared "router".
func (a *Application) Router(ctx context.Context) (*routing.Router, error) {
	return builder.Resolve[*routing.Router](ctx, a.Builder, "router")
}

// Close flushes the logger. Sync errors on terminals are expected and dropped.
func (a *Application) Close() {
	_ = a.log.Sync()
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.config.App.Debug }
func (a *Application) Version() string     { return Version }

// Version is the framework version reported by the CLI.
const Version = "0.1.0"
