package channel

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/dshills/plugkit/internal/logging"
	"github.com/dshills/plugkit/internal/metrics"
	"github.com/dshills/plugkit/internal/plugin"
)

// Listener receives messages on the channels it declares. Plugins that
// implement Listener are registered when they become active.
type Listener interface {
	Channels() []string
	Receive(ctx context.Context, channel string, payload []byte) error
}

// Transport carries messages to the remote endpoint.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type entry struct {
	id       string
	name     string
	listener Listener
}

// Endpoint is one side of a bus connection.
type Endpoint struct {
	id uuid.UUID

	mu        sync.RWMutex
	byChannel map[string][]*entry
	entries   []*entry
	transport Transport

	remote cmap.ConcurrentMap[string, struct{}]
	faults cmap.ConcurrentMap[string, int]

	threshold int
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Endpoint) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Endpoint) {
		e.metrics = m
	}
}

// WithFaultThreshold sets the listener failure count that triggers a
// warning.
func WithFaultThreshold(n int) Option {
	return func(e *Endpoint) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// NewEndpoint creates an unconnected endpoint.
func NewEndpoint(opts ...Option) *Endpoint {
	e := &Endpoint{
		id:        uuid.New(),
		byChannel: make(map[string][]*entry),
		remote:    cmap.New[struct{}](),
		faults:    cmap.New[int](),
		threshold: DefaultFaultThreshold,
		logger:    logging.NewNull(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNop()
	}
	e.logger = e.logger.WithComponent("bus").WithField("endpoint", e.id.String())
	return e
}

// ID returns the endpoint's ID.
func (e *Endpoint) ID() uuid.UUID {
	return e.id
}

// Register adds a listener for every channel it declares. All channel names
// must be valid.
func (e *Endpoint) Register(name string, l Listener) error {
	if l == nil {
		return ErrNilListener
	}
	channels := l.Channels()
	for _, ch := range channels {
		if !ValidChannel(ch) {
			return fmt.Errorf("%w: %q", ErrInvalidChannel, ch)
		}
	}

	en := &entry{id: uuid.NewString(), name: name, listener: l}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, en)
	for _, ch := range channels {
		if !slices.Contains(e.byChannel[ch], en) {
			e.byChannel[ch] = append(e.byChannel[ch], en)
		}
	}
	return nil
}

// Offer registers p if it is a Listener. It satisfies the lifecycle's
// registry interface.
func (e *Endpoint) Offer(p plugin.Plugin) bool {
	l, ok := p.(Listener)
	if !ok {
		return false
	}
	if err := e.Register(p.Name(), l); err != nil {
		e.logger.Warn("not registering %s: %v", p.Name(), err)
		return false
	}
	return true
}

// Channels returns the local channels in first-registration order.
func (e *Endpoint) Channels() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []string
	seen := make(map[string]bool)
	for _, en := range e.entries {
		for _, ch := range en.listener.Channels() {
			if _, ok := e.byChannel[ch]; ok && !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	return out
}

// Connect attaches the transport and announces the local channels with one
// REGISTER message. Nothing is sent when there are no local channels.
func (e *Endpoint) Connect(ctx context.Context, t Transport) error {
	e.mu.Lock()
	e.transport = t
	e.mu.Unlock()

	channels := e.Channels()
	if len(channels) == 0 {
		return nil
	}
	msg := Message{Channel: ChannelRegister, Payload: joinChannels(channels)}
	if err := t.Send(ctx, msg); err != nil {
		return fmt.Errorf("send register: %w", err)
	}
	e.metrics.BusMessages.WithLabelValues(ChannelRegister, "out").Inc()
	e.logger.Debug("registered %d channels with remote", len(channels))
	return nil
}

// RemoteChannels returns the channels the remote side declared, sorted.
func (e *Endpoint) RemoteChannels() []string {
	names := e.remote.Keys()
	slices.Sort(names)
	return names
}

// IsRegistered reports whether the remote side declared channel.
func (e *Endpoint) IsRegistered(channel string) bool {
	return e.remote.Has(channel)
}

// Receive handles one inbound message.
func (e *Endpoint) Receive(ctx context.Context, msg Message) {
	switch {
	case msg.Channel == ChannelRegister:
		for _, ch := range splitChannels(msg.Payload) {
			if ValidChannel(ch) {
				e.remote.Set(ch, struct{}{})
			}
		}
		e.metrics.BusMessages.WithLabelValues(ChannelRegister, "in").Inc()
		return
	case msg.Channel == ChannelUnregister:
		for _, ch := range splitChannels(msg.Payload) {
			e.remote.Remove(ch)
		}
		e.metrics.BusMessages.WithLabelValues(ChannelUnregister, "in").Inc()
		return
	case !ValidChannel(msg.Channel):
		e.logger.Debug("dropping message on invalid channel %q", msg.Channel)
		return
	}

	e.mu.RLock()
	targets := slices.Clone(e.byChannel[msg.Channel])
	e.mu.RUnlock()

	label := msg.Channel
	if len(targets) == 0 {
		label = UnroutedLabel
	}
	e.metrics.BusMessages.WithLabelValues(label, "in").Inc()
	for _, en := range targets {
		if err := deliver(ctx, en, msg); err != nil {
			e.fault(en, msg.Channel, err)
		}
	}
}

// deliver calls one listener, converting a panic into an error.
func deliver(ctx context.Context, en *entry, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrListenerPanic, r, debug.Stack())
		}
	}()
	return en.listener.Receive(ctx, msg.Channel, msg.Payload)
}

// fault counts a listener failure. Reaching the threshold logs one warning
// and resets the counter.
func (e *Endpoint) fault(en *entry, channel string, err error) {
	e.metrics.ListenerFaults.WithLabelValues(channel).Inc()

	reached := false
	e.faults.Upsert(en.id, 1, func(exist bool, current, add int) int {
		n := add
		if exist {
			n = current + add
		}
		if n >= e.threshold {
			reached = true
			return 0
		}
		return n
	})
	if reached {
		lerr := &ListenerError{Listener: en.name, Channel: channel, Err: err}
		e.logger.Warn("%d consecutive failures: %v", e.threshold, lerr)
	}
}

// Faults returns the current failure count of the named listener.
func (e *Endpoint) Faults(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := 0
	for _, en := range e.entries {
		if en.name == name {
			n, _ := e.faults.Get(en.id)
			total += n
		}
	}
	return total
}

// Send delivers payload on channel according to policy. It reports whether
// the message was sent.
func (e *Endpoint) Send(ctx context.Context, channel string, payload []byte, policy Policy) (bool, error) {
	if !ValidChannel(channel) {
		if policy == IfRegisteredStrict {
			return false, fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
		}
		return false, nil
	}

	if policy != Always && !e.remote.Has(channel) {
		if policy == IfRegisteredStrict {
			return false, fmt.Errorf("%w: %s", ErrChannelNotRegistered, channel)
		}
		return false, nil
	}

	e.mu.RLock()
	t := e.transport
	e.mu.RUnlock()
	if t == nil {
		return false, ErrNotConnected
	}

	if err := t.Send(ctx, Message{Channel: channel, Payload: payload}); err != nil {
		return false, fmt.Errorf("send on %s: %w", channel, err)
	}
	e.metrics.BusMessages.WithLabelValues(channel, "out").Inc()
	return true, nil
}

// Unregister tells the remote side that channels are no longer served
// locally and removes their listeners.
func (e *Endpoint) Unregister(ctx context.Context, channels ...string) error {
	e.mu.Lock()
	for _, ch := range channels {
		delete(e.byChannel, ch)
	}
	t := e.transport
	e.mu.Unlock()

	if t == nil || len(channels) == 0 {
		return nil
	}
	if err := t.Send(ctx, Message{Channel: ChannelUnregister, Payload: joinChannels(channels)}); err != nil {
		return fmt.Errorf("send unregister: %w", err)
	}
	e.metrics.BusMessages.WithLabelValues(ChannelUnregister, "out").Inc()
	return nil
}
