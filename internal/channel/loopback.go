package channel

import "context"

// Loopback is an in-process Transport that delivers straight to a peer
// endpoint.
type Loopback struct {
	Peer *Endpoint
}

// Send implements Transport.
func (l Loopback) Send(ctx context.Context, msg Message) error {
	if l.Peer == nil {
		return ErrNotConnected
	}
	l.Peer.Receive(ctx, msg)
	return nil
}

// Pair connects two endpoints to each other and performs both handshakes.
func Pair(ctx context.Context, a, b *Endpoint) error {
	if err := a.Connect(ctx, Loopback{Peer: b}); err != nil {
		return err
	}
	return b.Connect(ctx, Loopback{Peer: a})
}
