package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/dshills/plugkit/internal/codeload"
	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/inject"
	"github.com/dshills/plugkit/internal/locator"
	"github.com/dshills/plugkit/internal/logging"
	"github.com/dshills/plugkit/internal/metrics"
	"github.com/dshills/plugkit/internal/resolve"
	"github.com/dshills/plugkit/internal/scan"
)

// registry is the state shared by the phase handles.
type registry struct {
	phase   Phase
	session uuid.UUID
	logger  *logging.Logger
	metrics *metrics.Metrics

	modules  []locator.Module
	facility codeload.Facility
	scanOpts []scan.Option
	resolver *resolve.Resolver
	injector *inject.Injector
	scanner  *scan.Scanner

	// arena owns every container; ID n lives at arena[n-1].
	arena      []*container.Container
	offered    map[string]container.ID
	candidates []container.ID

	enabled      map[string]container.ID
	enabledOrder []container.ID
	disabled     map[string]Disabled
	disableOrder []string
	extensions   []container.ID
	records      []PluginRecord
	scanned      map[string]bool
}

// Option configures an Enumerator.
type Option func(*registry)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *registry) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *registry) {
		r.metrics = m
	}
}

// WithResolver sets the enablement and dependency resolver.
func WithResolver(res *resolve.Resolver) Option {
	return func(r *registry) {
		r.resolver = res
	}
}

// WithFacility sets the code-loading facility used for injection and
// scanning.
func WithFacility(f codeload.Facility, scanOpts ...scan.Option) Option {
	return func(r *registry) {
		r.facility = f
		r.scanOpts = scanOpts
	}
}

// Enumerator is the INIT-phase handle.
type Enumerator struct {
	r    *registry
	used bool
}

// New creates an Enumerator. Without WithFacility an empty native facility
// is used; without WithResolver every container is enabled by policy.
func New(opts ...Option) *Enumerator {
	r := &registry{
		phase:    PhaseInit,
		session:  uuid.New(),
		logger:   logging.NewNull(),
		offered:  make(map[string]container.ID),
		enabled:  make(map[string]container.ID),
		disabled: make(map[string]Disabled),
		scanned:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewNop()
	}
	r.logger = r.logger.WithField("session", r.session.String())
	if r.resolver == nil {
		r.resolver = resolve.New(nil, resolve.WithLogger(r.logger))
	}
	if r.facility == nil {
		r.facility = codeload.NewNative()
	}
	r.injector = inject.New(r.facility, r.logger.WithComponent("inject"))
	r.scanner = scan.New(r.facility, append([]scan.Option{scan.WithLogger(r.logger.WithComponent("scan"))}, r.scanOpts...)...)
	return &Enumerator{r: r}
}

// Session returns the discovery session ID.
func (e *Enumerator) Session() uuid.UUID {
	return e.r.session
}

// AddModule registers a locator module. Modules enumerate in registration
// order.
func (e *Enumerator) AddModule(m locator.Module) {
	e.check("AddModule")
	e.r.modules = append(e.r.modules, m)
}

func (e *Enumerator) check(op string) {
	if e.used {
		panic(&PhaseError{Op: op, Want: PhaseInit, Got: e.r.phase})
	}
	e.r.require(op, PhaseInit)
}

// PreInit runs DISCOVER across every module, selects one version per
// identity, resolves enablement and dependencies, and injects containers
// that declare early extensions.
func (e *Enumerator) PreInit(ctx context.Context) *Staged {
	e.check("PreInit")
	e.used = true
	r := e.r

	r.phase = PhaseDiscover
	for _, m := range r.modules {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("discovery canceled before module %s: %v", m.Name(), err)
			break
		}
		r.runModule(ctx, m)
	}
	r.resolveCandidates()

	r.phase = PhaseInject
	r.injectExtensions()
	return &Staged{r: r}
}

// runModule enumerates one module, isolating its errors and panics.
func (r *registry) runModule(ctx context.Context, m locator.Module) {
	logger := r.logger.WithField("module", m.Name())
	defer func() {
		if p := recover(); p != nil {
			if pe, ok := p.(*PhaseError); ok {
				panic(pe)
			}
			logger.Error("module panicked during enumeration: %v", p)
		}
	}()

	logger.Debug("enumerating")
	if err := m.Enumerate(ctx, sink{r}); err != nil {
		logger.Error("enumeration failed: %v", err)
	}
}

// sink is the DISCOVER-phase locator.Sink.
type sink struct {
	r *registry
}

// Candidate implements locator.Sink.
func (s sink) Candidate(c *container.Container) {
	r := s.r
	r.require("Sink.Candidate", PhaseDiscover)

	key := filepath.Clean(c.Location())
	if _, ok := r.offered[key]; ok {
		r.logger.Debug("%s already offered", c.Location())
		return
	}

	r.arena = append(r.arena, c)
	id := container.ID(len(r.arena))
	c.AssignID(id)
	r.offered[key] = id
	r.candidates = append(r.candidates, id)
	r.metrics.ContainersDiscovered.Inc()
}

// resolveCandidates runs version selection and resolution once, after every
// module has enumerated.
func (r *registry) resolveCandidates() {
	candidates := make([]*container.Container, 0, len(r.candidates))
	for _, id := range r.candidates {
		candidates = append(candidates, r.container(id))
	}

	sel := container.Select(candidates)
	for _, c := range sel.Superseded {
		if err := c.Err(); err != nil {
			r.logger.Warn("ignoring %s: %v", c, err)
		} else {
			r.logger.Debug("%s superseded by a newer version", c)
		}
		r.metrics.ContainersSuperseded.Inc()
	}

	res := r.resolver.Resolve(sel.Winners)
	for _, c := range res.Enabled {
		r.enabled[c.Identity()] = c.ID()
		r.enabledOrder = append(r.enabledOrder, c.ID())
	}
	for _, rej := range res.Disabled {
		r.recordDisabled(rej.Container, rej.Err.Reason, rej.Err)
	}
}

// injectExtensions stages every enabled container that declares early
// extension code.
func (r *registry) injectExtensions() {
	for _, id := range r.enabledOrder {
		c := r.container(id)
		if !c.HasExtension() {
			continue
		}
		if err := r.injector.Inject(c); err != nil {
			r.logger.Error("early injection of %s failed: %v", c, err)
			continue
		}
		r.extensions = append(r.extensions, id)
	}
}

// recordDisabled adds c to the disabled set.
func (r *registry) recordDisabled(c *container.Container, reason resolve.Reason, err error) {
	id := c.Identity()
	if _, ok := r.disabled[id]; !ok {
		r.disableOrder = append(r.disableOrder, id)
	}
	r.disabled[id] = Disabled{Container: c, Reason: reason, Err: err}
	r.metrics.ContainersDisabled.WithLabelValues(reason.String()).Inc()
}

// disable moves an enabled container to the disabled set, then disables
// every enabled container whose dependency closure no longer holds.
func (r *registry) disable(c *container.Container, reason resolve.Reason, err error) {
	r.remove(c, reason, err)

	for changed := true; changed; {
		changed = false
		for _, id := range slices.Clone(r.enabledOrder) {
			dep := r.container(id)
			missing := r.unmet(dep)
			if len(missing) == 0 {
				continue
			}
			for _, m := range missing {
				dep.AddMissingDependency(m)
			}
			derr := &resolve.DisabledError{
				Identity: dep.Identity(),
				Reason:   resolve.ReasonDependency,
				Missing:  missing,
				Err:      resolve.ErrMissingDependency,
			}
			r.logger.Info("disabled %s: %v", dep, derr)
			r.remove(dep, resolve.ReasonDependency, derr)
			changed = true
		}
	}
}

// remove takes c out of the enabled set and drops its plugin records.
func (r *registry) remove(c *container.Container, reason resolve.Reason, err error) {
	delete(r.enabled, c.Identity())
	r.enabledOrder = slices.DeleteFunc(r.enabledOrder, func(id container.ID) bool {
		return id == c.ID()
	})
	r.records = slices.DeleteFunc(r.records, func(rec PluginRecord) bool {
		return rec.Container == c.ID()
	})
	c.SetEnabled(false)
	r.recordDisabled(c, reason, err)
}

// unmet walks the dependency closure of c and returns the identities that
// are neither enabled nor disabled only because of their own dependencies.
func (r *registry) unmet(c *container.Container) []string {
	var missing []string
	visited := map[string]bool{c.Identity(): true}

	var walk func(n *container.Container)
	walk = func(n *container.Container) {
		for _, dep := range n.Dependencies() {
			if visited[dep] {
				continue
			}
			visited[dep] = true

			if id, ok := r.enabled[dep]; ok {
				walk(r.container(id))
				continue
			}
			if d, ok := r.disabled[dep]; ok && d.Reason == resolve.ReasonDependency {
				walk(d.Container)
				continue
			}
			missing = append(missing, dep)
		}
	}
	walk(c)
	return missing
}

func (r *registry) container(id container.ID) *container.Container {
	if id < 1 || int(id) > len(r.arena) {
		return nil
	}
	return r.arena[id-1]
}

// Staged is the handle returned by PreInit.
type Staged struct {
	r    *registry
	used bool
}

// Init stages the remaining accepted containers, scans them for plugin
// types and finalizes the registry.
func (s *Staged) Init(ctx context.Context) *Finalized {
	if s.used {
		panic(&PhaseError{Op: "Init", Want: PhaseInject, Got: s.r.phase})
	}
	s.r.require("Init", PhaseInject)
	s.used = true
	r := s.r

	for _, id := range append([]container.ID(nil), r.enabledOrder...) {
		c := r.container(id)
		if !c.Enabled() {
			continue
		}
		if err := r.injector.Stage(c); err != nil {
			r.logger.Error("staging %s failed: %v", c, err)
			r.disable(c, resolve.ReasonIncompatible, err)
		}
	}

	r.phase = PhaseRegister
	for _, id := range append([]container.ID(nil), r.enabledOrder...) {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("scan canceled: %v", err)
			break
		}
		if c := r.container(id); c.Enabled() {
			r.scanContainer(ctx, c)
		}
	}

	for _, c := range r.arena {
		c.Freeze()
	}
	r.metrics.ContainersEnabled.Set(float64(len(r.enabledOrder)))
	r.phase = PhaseFinalized
	r.logger.Info("discovery finished: %d enabled, %d disabled, %d plugin types",
		len(r.enabledOrder), len(r.disableOrder), len(r.records))
	return &Finalized{r: r}
}

// scanContainer scans c once, isolating errors and panics.
func (r *registry) scanContainer(ctx context.Context, c *container.Container) {
	key := filepath.Clean(c.Location())
	if r.scanned[key] {
		return
	}
	r.scanned[key] = true

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("scanning %s panicked: %v", c, p)
		}
	}()

	report, err := r.scanner.Scan(ctx, c)
	if err != nil {
		if errors.Is(err, scan.ErrIncompatibleFramework) {
			r.disable(c, resolve.ReasonIncompatible, err)
			return
		}
		r.logger.Error("scanning %s failed: %v", c, fmt.Errorf("scan: %w", err))
		return
	}
	for _, typ := range report.Types {
		r.records = append(r.records, PluginRecord{Type: typ, Container: c.ID()})
		r.metrics.PluginTypes.Inc()
	}
}
