// Package channel implements the per-channel plugin message bus.
//
// An Endpoint keeps a map from local channel to listeners, the set of
// channels the remote side declared, and a fault counter per listener. On
// Connect it sends one REGISTER control message listing every local
// channel, NUL-separated. Inbound REGISTER and UNREGISTER messages edit the
// remote set; every other inbound message is delivered to the channel's
// listeners, with failures counted and never propagated.
package channel

import (
	"strings"
	"unicode/utf8"
)

// Reserved control channels.
const (
	ChannelRegister   = "REGISTER"
	ChannelUnregister = "UNREGISTER"
)

// MaxChannelLen is the longest valid channel name, in characters.
const MaxChannelLen = 20

// DefaultFaultThreshold is the number of listener failures that triggers a
// warning and a counter reset.
const DefaultFaultThreshold = 1000

// UnroutedLabel is the metrics label for inbound messages on channels with
// no local listener. It is longer than MaxChannelLen, so it never names a
// real channel.
const UnroutedLabel = "unrouted-remote-channel"

// separator joins channel names in control payloads.
const separator = "\x00"

// Policy controls how Send treats channels the remote has not registered.
type Policy int

// Send policies.
const (
	// Always sends regardless of remote registration.
	Always Policy = iota
	// IfRegistered sends only to registered channels and returns false
	// otherwise.
	IfRegistered
	// IfRegisteredStrict is IfRegistered but returns an error instead of
	// false.
	IfRegisteredStrict
)

// String returns a string representation of the policy.
func (p Policy) String() string {
	switch p {
	case Always:
		return "always"
	case IfRegistered:
		return "if-registered"
	case IfRegisteredStrict:
		return "if-registered-strict"
	default:
		return "unknown"
	}
}

// ValidChannel reports whether name is a usable channel name.
func ValidChannel(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > MaxChannelLen {
		return false
	}
	return !isControl(name)
}

func isControl(name string) bool {
	return strings.EqualFold(name, ChannelRegister) || strings.EqualFold(name, ChannelUnregister)
}

// Message is one bus message.
type Message struct {
	Channel string
	Payload []byte
}

// joinChannels encodes a control payload.
func joinChannels(names []string) []byte {
	return []byte(strings.Join(names, separator))
}

// splitChannels decodes a control payload, dropping empty names.
func splitChannels(payload []byte) []string {
	var out []string
	for _, name := range strings.Split(string(payload), separator) {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
