// Package registry resolves configured media-server names into live,
// reachable client handles.
package registry

import (
	"context"
	"log/slog"

	"github.com/hbollon/go-edlib"
	"github.com/vmunix/arrfresh/internal/config"
	"github.com/vmunix/arrfresh/internal/mediaserver"
)

// ServiceInfo is a resolved handle to one configured media-server target.
// Instances are produced per resolution and not cached across calls.
type ServiceInfo struct {
	Name       string
	Client     mediaserver.Client
	Capability mediaserver.Capability
}

// Provider yields configured services matching a set of name filters.
//
//go:generate mockgen -source=registry.go -destination=mocks/mock_provider.go -package=mocks Provider
type Provider interface {
	// Services returns configured services whose names match the filters.
	// Matching is case- and accent-insensitive.
	Services(nameFilters []string) map[string]ServiceInfo

	// Names returns all configured service names.
	Names() []string
}

// ConfigProvider builds service handles from the static server configuration.
type ConfigProvider struct {
	services map[string]ServiceInfo // keyed by normalized name
	names    []string               // original configured names
}

// NewConfigProvider constructs clients for every configured server.
func NewConfigProvider(servers map[string]config.MediaServer, logger *slog.Logger) *ConfigProvider {
	p := &ConfigProvider{services: make(map[string]ServiceInfo, len(servers))}
	for name, srv := range servers {
		var client mediaserver.Client
		switch srv.Type {
		case "plex":
			client = mediaserver.NewPlexClient(srv.URL, srv.Token, logger)
		case "emby":
			client = mediaserver.NewEmbyClient(srv.URL, srv.Token, logger)
		case "jellyfin":
			client = mediaserver.NewJellyfinClient(srv.URL, srv.Token, logger)
		default:
			// Validated at config load; skip rather than panic if reached.
			continue
		}
		p.services[normalizeName(name)] = ServiceInfo{
			Name:       name,
			Client:     client,
			Capability: mediaserver.DetectCapability(client),
		}
		p.names = append(p.names, name)
	}
	return p
}

// Services implements Provider.
func (p *ConfigProvider) Services(nameFilters []string) map[string]ServiceInfo {
	matched := make(map[string]ServiceInfo)
	for _, filter := range nameFilters {
		if svc, ok := p.services[normalizeName(filter)]; ok {
			matched[svc.Name] = svc
		}
	}
	return matched
}

// Names implements Provider.
func (p *ConfigProvider) Names() []string {
	return p.names
}

// Resolver filters configured services down to the active, ready-to-use
// set. Resolution is performed per call with no caching; liveness is
// probed every time.
type Resolver struct {
	provider Provider
	logger   *slog.Logger
}

// NewResolver creates a resolver over the given provider.
func NewResolver(provider Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider: provider,
		logger:   logger.With("component", "registry"),
	}
}

// Resolve returns the active services among the named ones. A nil or
// empty result means "no targets available"; that condition is logged,
// never returned as an error.
func (r *Resolver) Resolve(ctx context.Context, names []string) map[string]ServiceInfo {
	if len(names) == 0 {
		r.logger.Warn("no media servers configured")
		return nil
	}

	services := r.provider.Services(names)
	matched := make(map[string]bool, len(services))
	for name := range services {
		matched[normalizeName(name)] = true
	}
	for _, name := range names {
		if matched[normalizeName(name)] {
			continue
		}
		if suggestion := r.suggest(name); suggestion != "" {
			r.logger.Warn("unknown media server", "name", name, "did_you_mean", suggestion)
		} else {
			r.logger.Warn("unknown media server", "name", name)
		}
	}
	if len(services) == 0 {
		r.logger.Warn("no media server instances resolved, check configuration")
		return nil
	}

	active := make(map[string]ServiceInfo, len(services))
	for name, svc := range services {
		if err := svc.Client.Ping(ctx); err != nil {
			r.logger.Warn("media server not connected", "name", name, "error", err)
			continue
		}
		active[name] = svc
	}

	if len(active) == 0 {
		r.logger.Warn("no connected media servers")
		return nil
	}

	return active
}

// suggest returns the closest configured name, if any is close enough.
func (r *Resolver) suggest(name string) string {
	const threshold = 0.8

	best := ""
	bestScore := float32(0)
	for _, candidate := range r.provider.Names() {
		score := edlib.JaroWinklerSimilarity(normalizeName(name), normalizeName(candidate))
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore >= threshold {
		return best
	}
	return ""
}
