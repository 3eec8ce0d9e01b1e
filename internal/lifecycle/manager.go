// Package lifecycle instantiates and initializes discovered plugins.
package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/discovery"
	"github.com/dshills/plugkit/internal/logging"
	"github.com/dshills/plugkit/internal/metrics"
	"github.com/dshills/plugkit/internal/plugin"
)

// Source is the finalized discovery state the manager reads.
type Source interface {
	Records() []discovery.PluginRecord
	Container(id container.ID) *container.Container
	IsEnabled(identity string) bool
}

// Manager runs the two-phase plugin lifecycle.
type Manager struct {
	mu sync.RWMutex

	source    Source
	revisions *RevisionStore
	configs   *ConfigStore
	overlays  OverlayRegistry
	revision  int
	logger    *logging.Logger
	metrics   *metrics.Metrics

	registries []Registry

	loaded   []*Host
	active   []*Host
	failures []*Failure
	disabled []string

	overlaid map[container.ID]bool

	loadRan bool
	initRan bool

	eventHandlers []EventHandler
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithRevision sets the current framework revision.
func WithRevision(revision int) Option {
	return func(m *Manager) {
		m.revision = revision
	}
}

// WithRevisionStore sets the revision marker store.
func WithRevisionStore(s *RevisionStore) Option {
	return func(m *Manager) {
		m.revisions = s
	}
}

// WithConfigStore sets the plugin configuration store.
func WithConfigStore(s *ConfigStore) Option {
	return func(m *Manager) {
		m.configs = s
	}
}

// WithOverlays sets the resource-overlay registry.
func WithOverlays(o OverlayRegistry) Option {
	return func(m *Manager) {
		m.overlays = o
	}
}

// WithRegistries adds listener registries that active plugins are
// published to.
func WithRegistries(regs ...Registry) Option {
	return func(m *Manager) {
		m.registries = append(m.registries, regs...)
	}
}

// NewManager creates a lifecycle manager over a finalized discovery pass.
// Without stores, revision markers and settings are kept in memory only.
func NewManager(source Source, opts ...Option) *Manager {
	m := &Manager{
		source:   source,
		logger:   logging.NewNull(),
		overlays: &Overlays{},
		overlaid: make(map[container.ID]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewNop()
	}
	if m.revisions == nil {
		m.revisions = &RevisionStore{values: make(map[string]int)}
	}
	if m.configs == nil {
		m.configs = NewConfigStore("", m.revision)
	}
	m.logger = m.logger.WithComponent("lifecycle")
	return m
}

// Load instantiates every discovered plugin. Failures isolate the plugin
// they happened in.
func (m *Manager) Load(ctx context.Context) error {
	if m.loadRan {
		return fmt.Errorf("load: %w", ErrAlreadyRan)
	}
	m.loadRan = true

	for _, rec := range m.source.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.loadRecord(rec)
	}
	m.logger.Info("loaded %d plugins", len(m.loaded))
	return nil
}

func (m *Manager) loadRecord(rec discovery.PluginRecord) {
	name := rec.Type.Name()
	c := m.source.Container(rec.Container)
	if c == nil {
		m.recordFailure(name, PhaseLoad, ErrUnknownContainer)
		return
	}
	if err := m.recheck(c); err != nil {
		m.logger.Warn("skipping %s from %s: %v", name, c, err)
		if !slices.Contains(m.disabled, c.Identity()) {
			m.disabled = append(m.disabled, c.Identity())
		}
		return
	}

	var p plugin.Plugin
	err := safely(func() error {
		var err error
		p, err = rec.Type.New()
		if err == nil && p == nil {
			err = plugin.ErrNilPlugin
		}
		return err
	})
	if err != nil {
		m.recordFailure(name, PhaseLoad, err)
		return
	}

	h := &Host{typeName: name, instance: p, container: c, state: plugin.StateLoaded}
	m.loaded = append(m.loaded, h)

	if !m.overlaid[c.ID()] {
		m.overlaid[c.ID()] = true
		m.overlays.AddOverlay(c)
	}
	m.emitEvent(Event{Type: EventLoaded, Plugin: name})
}

// recheck repeats the policy and dependency checks against the finalized
// enabled set.
func (m *Manager) recheck(c *container.Container) error {
	if !m.source.IsEnabled(c.Identity()) {
		return fmt.Errorf("%w: %s is not enabled", ErrRecheckFailed, c.Identity())
	}
	for _, dep := range c.Dependencies() {
		if !m.source.IsEnabled(dep) {
			return fmt.Errorf("%w: dependency %s is not enabled", ErrRecheckFailed, dep)
		}
	}
	return nil
}

// Init initializes every loaded plugin in load order. A plugin becomes
// visible to queries only after its init succeeds.
func (m *Manager) Init(ctx context.Context) error {
	if m.initRan {
		return fmt.Errorf("init: %w", ErrAlreadyRan)
	}
	m.initRan = true

	env := plugin.Env{ConfigDir: m.configs.CurrentDir(), Revision: m.revision}
	for _, h := range m.loaded {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.initHost(ctx, h, env)
	}

	if m.revisions.path != "" {
		if err := m.revisions.Save(); err != nil {
			m.logger.Error("saving revision markers: %v", err)
		}
	}
	m.metrics.PluginsActive.Set(float64(len(m.active)))
	m.logger.Info("%d plugins active, %d failed", len(m.active), len(m.failures))
	return nil
}

func (m *Manager) initHost(ctx context.Context, h *Host, env plugin.Env) {
	key := Sanitize(h.Name())
	m.configs.Register(key, h.instance)

	if err := m.migrate(ctx, h, key); err != nil {
		m.drop(h, key, PhaseMigrate, err)
		return
	}
	if err := m.configs.Load(key); err != nil {
		m.drop(h, key, PhaseConfig, err)
		return
	}
	if err := h.initPlugin(ctx, env); err != nil {
		m.drop(h, key, PhaseInit, err)
		return
	}

	for _, reg := range m.registries {
		if err := safely(func() error {
			reg.Offer(h.instance)
			return nil
		}); err != nil {
			m.logger.Error("publishing %s: %v", h.Name(), err)
		}
	}

	m.mu.Lock()
	h.state = plugin.StateActive
	m.active = append(m.active, h)
	m.mu.Unlock()
	m.emitEvent(Event{Type: EventActivated, Plugin: h.Name()})
}

// migrate runs the plugin's settings upgrade if its recorded revision is
// older than the current one, then records the current revision.
func (m *Manager) migrate(ctx context.Context, h *Host, key string) error {
	last, ok := m.revisions.Get(key)
	if ok && last < m.revision {
		if u, isUpgrader := h.instance.(plugin.Upgrader); isUpgrader {
			mig := plugin.Migration{
				FromRevision: last,
				ToRevision:   m.revision,
				ConfigDir:    m.configs.CurrentDir(),
				OldConfigDir: m.configs.Dir(last),
			}
			m.logger.Info("migrating %s settings from r%d to r%d", h.Name(), last, m.revision)
			if err := safely(func() error { return u.UpgradeSettings(ctx, mig) }); err != nil {
				return err
			}
		}
	}
	m.revisions.Set(key, m.revision)
	return nil
}

func (m *Manager) drop(h *Host, key string, phase Phase, err error) {
	m.configs.Forget(key)
	h.fail(err)
	m.recordFailure(h.Name(), phase, err)
}

func (m *Manager) recordFailure(name string, phase Phase, err error) {
	f := &Failure{Plugin: name, Phase: phase, Err: err}
	m.mu.Lock()
	m.failures = append(m.failures, f)
	m.mu.Unlock()
	m.logger.Error("%v", f)
	m.metrics.PluginFailures.WithLabelValues(phase.String()).Inc()
	m.emitEvent(Event{Type: EventFailed, Plugin: name, Error: f})
}

// SaveConfigs writes the settings of every active plugin.
func (m *Manager) SaveConfigs() error {
	return m.configs.SaveAll()
}

// Active returns the plugins that completed init, in init order.
func (m *Manager) Active() []*Host {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Host, len(m.active))
	copy(out, m.active)
	return out
}

// Lookup returns the active plugin with the given display name.
func (m *Manager) Lookup(name string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.active {
		if h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

// ContainerOf returns the container an active plugin came from.
func (m *Manager) ContainerOf(p plugin.Plugin) (*container.Container, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.active {
		if h.instance == p {
			return h.container, true
		}
	}
	return nil, false
}

// Failures returns the plugins dropped during load or init.
func (m *Manager) Failures() []*Failure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Failure, len(m.failures))
	copy(out, m.failures)
	return out
}

// Disabled returns the identities skipped by the load-time re-check.
func (m *Manager) Disabled() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.disabled))
	copy(out, m.disabled)
	return out
}
