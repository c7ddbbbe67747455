package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the types, functions and instructions one part of
// an application contributes to a Builder.
//
// Register is called when the provider is added (or, for deferred providers,
// when one of its aliases is first resolved). Boot is called after all
// eager providers have been registered, so it may resolve aliases.
//
//	type MailProvider struct{ builder.BaseProvider }
//
//	func (p *MailProvider) Register(b *builder.Builder) error {
//	    b.RegisterType("SMTP", builder.TypeOf(mail.NewSMTP))
//	    b.Merge(builder.Instructions{"mailer": builder.Class{Name: "SMTP"}})
//	    return nil
//	}
type ServiceProvider interface {
	Register(b *Builder) error

	Boot(ctx context.Context, b *Builder) error

	// Provides lists the aliases a deferred provider registers.
	Provides() []string

	// IsDeferred delays Register until one of Provides() is resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op implementation of Boot, Provides and
// IsDeferred.
type BaseProvider struct{}

func (p *BaseProvider) Boot(context.Context, *Builder) error { return nil }
func (p *BaseProvider) Provides() []string                   { return nil }
func (p *BaseProvider) IsDeferred() bool                     { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders against one Builder.
type ProviderRegistry struct {
	b *Builder

	mu         sync.Mutex
	loadMu     sync.Mutex
	eager      []ServiceProvider
	registered map[ServiceProvider]bool
	loaded     map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to b.
func NewProviderRegistry(b *Builder) *ProviderRegistry {
	return &ProviderRegistry{
		b:          b,
		registered: make(map[ServiceProvider]bool),
		loaded:     make(map[ServiceProvider]bool),
	}
}

// Register adds a provider. Eager providers are registered immediately and,
// when the registry has already booted, booted immediately too.
func (r *ProviderRegistry) Register(ctx context.Context, provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true
	booted := r.booted
	r.mu.Unlock()

	if provider.IsDeferred() {
		r.interceptDeferred(provider)
		return nil
	}

	if err := provider.Register(r.b); err != nil {
		return fmt.Errorf("register provider %T: %w", provider, err)
	}
	r.mu.Lock()
	r.eager = append(r.eager, provider)
	r.loaded[provider] = true
	r.mu.Unlock()

	if booted {
		if err := provider.Boot(ctx, r.b); err != nil {
			return fmt.Errorf("boot provider %T: %w", provider, err)
		}
	}
	return nil
}

// interceptDeferred binds each provided alias to a stub callback that
// registers the provider for real and then resolves the alias again.
func (r *ProviderRegistry) interceptDeferred(provider ServiceProvider) {
	stubs := make(Instructions, len(provider.Provides()))
	for _, alias := range provider.Provides() {
		name := deferredPrefix + alias
		r.b.RegisterFunc(name, func(ctx context.Context) (any, error) {
			if err := r.load(ctx, provider); err != nil {
				return nil, err
			}
			if r.isStub(alias) {
				return nil, fmt.Errorf("deferred provider %T did not register %q", provider, alias)
			}
			return r.b.Get(reenter(ctx, alias), alias)
		})
		stubs[alias] = Callback{Name: name}
	}
	r.b.Merge(stubs)
}

const deferredPrefix = "deferred:"

func (r *ProviderRegistry) isStub(alias string) bool {
	cb, ok := r.b.Instructions()[alias].(Callback)
	return ok && cb.Name == deferredPrefix+alias
}

func (r *ProviderRegistry) load(ctx context.Context, provider ServiceProvider) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.mu.Lock()
	if r.loaded[provider] {
		r.mu.Unlock()
		return nil
	}
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(r.b); err != nil {
		return fmt.Errorf("register deferred provider %T: %w", provider, err)
	}
	r.mu.Lock()
	r.loaded[provider] = true
	r.mu.Unlock()

	if booted {
		if err := provider.Boot(ctx, r.b); err != nil {
			return fmt.Errorf("boot deferred provider %T: %w", provider, err)
		}
	}
	return nil
}

// Boot calls Boot on every eager provider. Errors from all providers are
// joined. Later calls are no-ops.
func (r *ProviderRegistry) Boot(ctx context.Context) error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	var errs []error
	for _, p := range providers {
		if err := p.Boot(ctx, r.b); err != nil {
			errs = append(errs, fmt.Errorf("boot provider %T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns the eager providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}
