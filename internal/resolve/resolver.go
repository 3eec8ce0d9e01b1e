// Package resolve decides which version-selected containers may load, using
// user policy, the transitive dependency closure, and the available
// capability set.
package resolve

import (
	"strings"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/logging"
)

// Policy answers per-profile enablement questions.
type Policy interface {
	IsEnabled(profile, id string) bool
}

// Resolver evaluates containers against policy, dependencies and capabilities.
type Resolver struct {
	policy       Policy
	profile      string
	framework    string
	capabilities map[string]bool
	logger       *logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProfile selects the policy profile.
func WithProfile(profile string) Option {
	return func(r *Resolver) {
		r.profile = profile
	}
}

// WithFramework sets the host framework version containers must target.
// An empty version disables the check.
func WithFramework(version string) Option {
	return func(r *Resolver) {
		r.framework = version
	}
}

// WithCapabilities sets the available capability set.
func WithCapabilities(caps ...string) Option {
	return func(r *Resolver) {
		for _, c := range caps {
			r.capabilities[c] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// AllowAll is a Policy that enables everything.
type AllowAll struct{}

// IsEnabled implements Policy.
func (AllowAll) IsEnabled(string, string) bool { return true }

// New creates a resolver backed by policy. A nil policy enables everything.
func New(policy Policy, opts ...Option) *Resolver {
	if policy == nil {
		policy = AllowAll{}
	}
	r := &Resolver{
		policy:       policy,
		capabilities: make(map[string]bool),
		logger:       logging.NewNull(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("resolve")
	return r
}

// Result is the outcome of resolving a set of winners.
type Result struct {
	// Enabled holds accepted containers in input order.
	Enabled []*container.Container

	// Disabled holds rejected containers in input order, each with its
	// reason.
	Disabled []Rejection
}

// Rejection pairs a disabled container with why it was rejected.
type Rejection struct {
	Container *container.Container
	Err       *DisabledError
}

// Resolve evaluates every winner. Each container's enabled flag and missing
// lists are updated in place. Winners must hold one container per identity.
func (r *Resolver) Resolve(winners []*container.Container) Result {
	byID := make(map[string]*container.Container, len(winners))
	for _, c := range winners {
		byID[c.Identity()] = c
	}

	var res Result
	for _, c := range winners {
		if derr := r.check(c, byID); derr != nil {
			c.SetEnabled(false)
			r.logger.Info("disabled %s: %v", c, derr)
			res.Disabled = append(res.Disabled, Rejection{Container: c, Err: derr})
			continue
		}
		c.SetEnabled(true)
		res.Enabled = append(res.Enabled, c)
	}
	return res
}

// check runs the checks in order and returns the first failure.
func (r *Resolver) check(c *container.Container, byID map[string]*container.Container) *DisabledError {
	id := c.Identity()

	if err := c.Err(); err != nil {
		return &DisabledError{Identity: id, Reason: ReasonMetadata, Err: ErrMalformed}
	}
	if !r.frameworkMatches(c) {
		return &DisabledError{
			Identity: id,
			Reason:   ReasonFramework,
			Missing:  []string{c.Metadata().Framework},
			Err:      ErrFrameworkMismatch,
		}
	}
	if !r.policy.IsEnabled(r.profile, id) {
		return &DisabledError{Identity: id, Reason: ReasonPolicy, Err: ErrPolicyDisabled}
	}

	visited := map[string]bool{id: true}
	r.walk(c, c, byID, visited)
	if missing := c.MissingDependencies(); len(missing) > 0 {
		return &DisabledError{Identity: id, Reason: ReasonDependency, Missing: missing, Err: ErrMissingDependency}
	}

	if missing := r.missingCapabilities(c); len(missing) > 0 {
		for _, capability := range missing {
			c.AddMissingCapability(capability)
		}
		return &DisabledError{Identity: id, Reason: ReasonCapability, Missing: missing, Err: ErrMissingCapability}
	}
	return nil
}

// walk visits the dependency closure of node, recording every unusable
// dependency on root. A node already in visited is never entered twice, so
// cycles terminate.
func (r *Resolver) walk(root, node *container.Container, byID map[string]*container.Container, visited map[string]bool) {
	for _, dep := range node.Dependencies() {
		if visited[dep] {
			continue
		}
		visited[dep] = true

		d, ok := byID[dep]
		if !ok || !r.usable(d) {
			root.AddMissingDependency(dep)
			continue
		}
		r.walk(root, d, byID, visited)
	}
}

// usable reports whether a dependency passes every check that does not
// involve its own dependencies; those are covered by the enclosing walk.
func (r *Resolver) usable(c *container.Container) bool {
	return c.Err() == nil &&
		r.frameworkMatches(c) &&
		r.policy.IsEnabled(r.profile, c.Identity()) &&
		len(r.missingCapabilities(c)) == 0
}

func (r *Resolver) frameworkMatches(c *container.Container) bool {
	target := c.Metadata().Framework
	return r.framework == "" || target == "" || strings.EqualFold(target, r.framework)
}

func (r *Resolver) missingCapabilities(c *container.Container) []string {
	var missing []string
	for _, capability := range c.Capabilities() {
		if !r.capabilities[capability] {
			missing = append(missing, capability)
		}
	}
	return missing
}
