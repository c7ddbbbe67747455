// Package providers holds the service providers every Application registers.
package providers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/km-arc/go-builder/framework/builder"
	"github.com/km-arc/go-builder/framework/config"
	"github.com/km-arc/go-builder/framework/logging"
	"github.com/km-arc/go-builder/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the application configuration and applies the
// builder lifecycle defaults from it.
//
// Aliases:
//   - "config"    → *config.Config
//   - "app.name"  → string
//   - "app.env"   → string
//   - "app.debug" → bool
type ConfigServiceProvider struct {
	builder.BaseProvider

	// Config is used as is when set; otherwise it is loaded from EnvFiles.
	Config   *config.Config
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(b *builder.Builder) error {
	cfg := p.Config
	if cfg == nil {
		cfg = config.Load(p.EnvFiles...)
	}
	if _, err := b.MergeConfig(cfg.Builder.Options()); err != nil {
		return err
	}
	b.Set("config", cfg)
	b.Merge(builder.Instructions{
		"app.name":  builder.String{Value: cfg.App.Name},
		"app.env":   builder.String{Value: cfg.App.Env},
		"app.debug": builder.Bool{Value: cfg.App.Debug},
	})
	return nil
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider registers the logging types and exposes the
// application logger.
//
// Types: Logger, FileLogger (see logging.Types).
//
// Aliases:
//   - "log"    → *zap.Logger
//   - "logger" → alias of "log"; manifests commonly rebind it
type LoggingServiceProvider struct {
	builder.BaseProvider
	Logger *zap.Logger
}

func (p *LoggingServiceProvider) Register(b *builder.Builder) error {
	for name, t := range logging.Types() {
		b.RegisterType(name, t)
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b.Set("log", log)
	b.Merge(builder.Instructions{"logger": builder.Alias{Name: "log"}})
	return nil
}

func (p *LoggingServiceProvider) Boot(ctx context.Context, b *builder.Builder) error {
	log, err := builder.Resolve[*zap.Logger](ctx, b, "log")
	if err != nil {
		return err
	}
	log.Debug("builder booted", zap.Int("aliases", len(b.Aliases())))
	return nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the Router type and the handler functions,
// plus a shared default router.
//
// Aliases:
//   - "router" → *routing.Router logging through "log"
type RoutingServiceProvider struct {
	builder.BaseProvider
}

func (p *RoutingServiceProvider) Register(b *builder.Builder) error {
	for name, t := range routing.Types() {
		b.RegisterType(name, t)
	}
	for name, fn := range routing.Functions() {
		b.RegisterFunc(name, fn)
	}
	b.Merge(builder.Instructions{
		"router": builder.Class{
			Name:      "Router",
			Construct: []builder.Instruction{builder.Alias{Name: "log"}},
			Clone:     builder.Ptr(false),
		},
	})
	return nil
}

// Boot fails early when a manifest rebound "router" to something that is not
// a Router.
func (p *RoutingServiceProvider) Boot(ctx context.Context, b *builder.Builder) error {
	v, err := b.Get(ctx, "router")
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	if _, ok := v.(*routing.Router); !ok {
		return fmt.Errorf("router: resolved to %T, want *routing.Router", v)
	}
	return nil
}
