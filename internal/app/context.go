// Package app builds the startup context that wires every plugkit component
// together and runs the discovery and plugin lifecycle.
package app

import (
	"context"
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/plugkit/internal/channel"
	"github.com/dshills/plugkit/internal/codeload"
	"github.com/dshills/plugkit/internal/codeload/lua"
	"github.com/dshills/plugkit/internal/config"
	"github.com/dshills/plugkit/internal/discovery"
	"github.com/dshills/plugkit/internal/enablement"
	"github.com/dshills/plugkit/internal/lifecycle"
	"github.com/dshills/plugkit/internal/locator"
	"github.com/dshills/plugkit/internal/logging"
	"github.com/dshills/plugkit/internal/metrics"
	"github.com/dshills/plugkit/internal/resolve"
	"github.com/dshills/plugkit/internal/scan"
)

// Options supplies the parts of the context that are not configuration.
type Options struct {
	// Native holds compiled-in plugin bindings. Nil means none.
	Native *codeload.Native

	// Modules are extra locator modules, enumerated after the built-in
	// plugin-directory and search-path modules.
	Modules []locator.Module

	// Registries receive every plugin that finishes init, after the bus.
	Registries []lifecycle.Registry

	// LogOutput receives log lines. Nil means stderr.
	LogOutput io.Writer

	// Registerer receives the metrics collectors. Nil means a fresh
	// registry, available as Context.Registry.
	Registerer prometheus.Registerer
}

// Context is the single object built at startup and handed to every
// component that needs shared state.
type Context struct {
	Config   config.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Policy   *enablement.List
	Native   *codeload.Native
	Lua      *lua.Facility
	Bus      *channel.Endpoint
	Overlays *lifecycle.Overlays

	facility   codeload.Chain
	modules    []locator.Module
	registries []lifecycle.Registry

	discovery *discovery.Finalized
	plugins   *lifecycle.Manager
	started   bool
}

// New builds a context from cfg. Nothing is discovered until Startup.
func New(cfg config.Config, opts Options) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	logger := logging.New(logCfg)

	c := &Context{
		Config:   cfg,
		Logger:   logger,
		Native:   opts.Native,
		Overlays: &lifecycle.Overlays{},
	}

	reg := opts.Registerer
	if reg == nil {
		c.Registry = prometheus.NewRegistry()
		reg = c.Registry
	}
	c.Metrics = metrics.New(reg)

	policy, err := enablement.Load(cfg.EnabledList)
	if err != nil {
		return nil, &OperationError{Op: "load enablement list", Target: cfg.EnabledList, Err: err}
	}
	policy.ApplyFilter(cfg.Filter)
	c.Policy = policy

	if c.Native == nil {
		c.Native = codeload.NewNative()
	}
	luaFacility, err := lua.New(lua.WithLogger(logger))
	if err != nil {
		return nil, &OperationError{Op: "start lua", Err: errors.Join(ErrInitialization, err)}
	}
	c.Lua = luaFacility
	c.facility = codeload.Chain{c.Native, c.Lua}

	c.Bus = channel.NewEndpoint(channel.WithLogger(logger), channel.WithMetrics(c.Metrics))

	c.modules = append(c.modules,
		locator.NewDirectory(locator.WithPaths(cfg.PluginDirs...), locator.WithLogger(logger.WithComponent("locator"))),
		locator.NewSearchPath(cfg.SearchPaths, logger.WithComponent("locator")),
	)
	c.modules = append(c.modules, opts.Modules...)
	c.registries = append([]lifecycle.Registry{c.Bus}, opts.Registries...)
	return c, nil
}

// Startup runs discovery and then loads and initializes the plugins found.
// It runs once.
func (c *Context) Startup(ctx context.Context) error {
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	resolver := resolve.New(c.Policy,
		resolve.WithProfile(c.Config.Profile),
		resolve.WithFramework(c.Config.FrameworkVersion),
		resolve.WithCapabilities(c.Config.Capabilities...),
		resolve.WithLogger(c.Logger),
	)

	e := discovery.New(
		discovery.WithLogger(c.Logger.WithComponent("discovery")),
		discovery.WithMetrics(c.Metrics),
		discovery.WithResolver(resolver),
		discovery.WithFacility(c.facility,
			scan.WithPrefixes(c.Config.ScanPrefixes...),
			scan.WithMaxDepth(c.Config.ScanDepth),
		),
	)
	for _, m := range c.modules {
		e.AddModule(m)
	}
	c.discovery = e.PreInit(ctx).Init(ctx)

	revisions, err := lifecycle.LoadRevisions(c.Config.Revisions)
	if err != nil {
		return &OperationError{Op: "load revisions", Target: c.Config.Revisions, Err: err}
	}

	c.plugins = lifecycle.NewManager(c.discovery,
		lifecycle.WithLogger(c.Logger),
		lifecycle.WithMetrics(c.Metrics),
		lifecycle.WithRevision(c.Config.FrameworkRevision),
		lifecycle.WithRevisionStore(revisions),
		lifecycle.WithConfigStore(lifecycle.NewConfigStore(c.Config.ConfigRoot, c.Config.FrameworkRevision)),
		lifecycle.WithOverlays(c.Overlays),
		lifecycle.WithRegistries(c.registries...),
	)
	if err := c.plugins.Load(ctx); err != nil {
		return &OperationError{Op: "load", Err: err}
	}
	if err := c.plugins.Init(ctx); err != nil {
		return &OperationError{Op: "init", Err: err}
	}
	return nil
}

// Discovery returns the finalized discovery state, or nil before Startup.
func (c *Context) Discovery() *discovery.Finalized {
	return c.discovery
}

// Snapshot returns the diagnostic snapshot of the discovery state.
func (c *Context) Snapshot() (discovery.Snapshot, error) {
	if c.discovery == nil {
		return discovery.Snapshot{}, ErrNotStarted
	}
	return c.discovery.Snapshot(), nil
}

// Plugins returns the lifecycle manager, or nil before Startup.
func (c *Context) Plugins() *lifecycle.Manager {
	return c.plugins
}

// Shutdown saves plugin settings and releases the Lua state.
func (c *Context) Shutdown() error {
	var errs []error
	if c.plugins != nil {
		if err := c.plugins.SaveConfigs(); err != nil {
			errs = append(errs, &OperationError{Op: "save configs", Target: c.Config.ConfigRoot, Err: err})
		}
	}
	if c.Lua != nil {
		c.Lua.Close()
	}
	return errors.Join(errs...)
}
