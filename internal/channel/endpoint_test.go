package channel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/plugkit/internal/logging"
	"github.com/dshills/plugkit/internal/metrics"
	"github.com/dshills/plugkit/internal/plugin"
)

type recordingListener struct {
	mu       sync.Mutex
	channels []string
	got      []string
	err      error
	panics   bool
	calls    int
}

func (l *recordingListener) Channels() []string { return l.channels }

func (l *recordingListener) Receive(_ context.Context, channel string, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.panics {
		panic("listener bug")
	}
	l.got = append(l.got, channel+"="+string(payload))
	return l.err
}

type captureTransport struct {
	sent []Message
	err  error
}

func (t *captureTransport) Send(_ context.Context, msg Message) error {
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, msg)
	return nil
}

func TestValidChannel(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"c", true},
		{"chat", true},
		{strings.Repeat("x", 20), true},
		{strings.Repeat("x", 21), false},
		{"", false},
		{"REGISTER", false},
		{"register", false},
		{"UnRegister", false},
		{"ünïcödé", true},
	}
	for _, tt := range tests {
		if got := ValidChannel(tt.name); got != tt.want {
			t.Errorf("ValidChannel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandshake(t *testing.T) {
	ctx := context.Background()
	a := NewEndpoint()
	b := NewEndpoint()

	if err := a.Register("chat", &recordingListener{channels: []string{"chat", "map"}}); err != nil {
		t.Fatal(err)
	}
	if err := a.Register("radar", &recordingListener{channels: []string{"radar", "chat"}}); err != nil {
		t.Fatal(err)
	}

	if err := Pair(ctx, a, b); err != nil {
		t.Fatalf("Pair: %v", err)
	}

	if got := strings.Join(b.RemoteChannels(), ","); got != "chat,map,radar" {
		t.Errorf("b remote = %s", got)
	}
	if got := a.RemoteChannels(); len(got) != 0 {
		t.Errorf("a remote = %v, want none", got)
	}
}

func TestConnect_Payload(t *testing.T) {
	e := NewEndpoint()
	if err := e.Register("l", &recordingListener{channels: []string{"one", "two"}}); err != nil {
		t.Fatal(err)
	}

	tr := &captureTransport{}
	if err := e.Connect(context.Background(), tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(tr.sent))
	}
	msg := tr.sent[0]
	if msg.Channel != ChannelRegister || !bytes.Equal(msg.Payload, []byte("one\x00two")) {
		t.Errorf("register message = %q %q", msg.Channel, msg.Payload)
	}
}

func TestConnect_NoChannels(t *testing.T) {
	tr := &captureTransport{}
	if err := NewEndpoint().Connect(context.Background(), tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("nothing should be sent without listeners, got %v", tr.sent)
	}
}

func TestReceive_Unregister(t *testing.T) {
	e := NewEndpoint()
	ctx := context.Background()
	e.Receive(ctx, Message{Channel: ChannelRegister, Payload: []byte("a\x00b\x00c")})
	e.Receive(ctx, Message{Channel: ChannelUnregister, Payload: []byte("b")})

	if got := strings.Join(e.RemoteChannels(), ","); got != "a,c" {
		t.Errorf("remote = %s", got)
	}
}

func TestReceive_Delivers(t *testing.T) {
	e := NewEndpoint()
	first := &recordingListener{channels: []string{"chat"}}
	second := &recordingListener{channels: []string{"chat", "other"}}
	for i, l := range []*recordingListener{first, second} {
		if err := e.Register(string(rune('a'+i)), l); err != nil {
			t.Fatal(err)
		}
	}

	e.Receive(context.Background(), Message{Channel: "chat", Payload: []byte("hi")})
	e.Receive(context.Background(), Message{Channel: "other", Payload: []byte("x")})

	if strings.Join(first.got, ";") != "chat=hi" {
		t.Errorf("first got %v", first.got)
	}
	if strings.Join(second.got, ";") != "chat=hi;other=x" {
		t.Errorf("second got %v", second.got)
	}
}

func TestSend_Policies(t *testing.T) {
	ctx := context.Background()
	e := NewEndpoint()
	tr := &captureTransport{}
	if err := e.Connect(ctx, tr); err != nil {
		t.Fatal(err)
	}
	e.Receive(ctx, Message{Channel: ChannelRegister, Payload: []byte("known")})

	long := strings.Repeat("c", 21)
	tests := []struct {
		name    string
		channel string
		policy  Policy
		sent    bool
		wantErr error
	}{
		{"always unknown", "unknown", Always, true, nil},
		{"if registered known", "known", IfRegistered, true, nil},
		{"if registered unknown", "unknown", IfRegistered, false, nil},
		{"strict known", "known", IfRegisteredStrict, true, nil},
		{"strict unknown", "unknown", IfRegisteredStrict, false, ErrChannelNotRegistered},
		{"strict too long", long, IfRegisteredStrict, false, ErrInvalidChannel},
		{"silent too long", long, IfRegistered, false, nil},
		{"always too long", long, Always, false, nil},
		{"strict reserved", "Register", IfRegisteredStrict, false, ErrInvalidChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sent, err := e.Send(ctx, tt.channel, []byte("p"), tt.policy)
			if sent != tt.sent {
				t.Errorf("sent = %v, want %v", sent, tt.sent)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSend_NotConnected(t *testing.T) {
	_, err := NewEndpoint().Send(context.Background(), "chat", nil, Always)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestSend_TransportError(t *testing.T) {
	e := NewEndpoint()
	boom := errors.New("wire cut")
	if err := e.Connect(context.Background(), &captureTransport{err: boom}); err != nil {
		t.Fatal(err)
	}
	sent, err := e.Send(context.Background(), "chat", nil, Always)
	if sent || !errors.Is(err, boom) {
		t.Errorf("Send = %v, %v", sent, err)
	}
}

func TestFaultThreshold(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelWarn, Output: &logs})
	mt := metrics.NewNop()
	e := NewEndpoint(WithLogger(logger), WithMetrics(mt))

	failing := &recordingListener{channels: []string{"c"}, err: errors.New("always fails")}
	healthy := &recordingListener{channels: []string{"c"}}
	if err := e.Register("failing", failing); err != nil {
		t.Fatal(err)
	}
	if err := e.Register("healthy", healthy); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for range DefaultFaultThreshold - 1 {
		e.Receive(ctx, Message{Channel: "c"})
	}
	if n := strings.Count(logs.String(), "consecutive failures"); n != 0 {
		t.Fatalf("warned %d times before threshold", n)
	}
	if got := e.Faults("failing"); got != DefaultFaultThreshold-1 {
		t.Errorf("faults = %d", got)
	}

	e.Receive(ctx, Message{Channel: "c"})
	if n := strings.Count(logs.String(), "consecutive failures"); n != 1 {
		t.Errorf("warnings at threshold = %d, want 1", n)
	}
	if got := e.Faults("failing"); got != 0 {
		t.Errorf("counter after threshold = %d, want 0", got)
	}

	for range 5 {
		e.Receive(ctx, Message{Channel: "c"})
	}
	if failing.calls != DefaultFaultThreshold+5 || healthy.calls != DefaultFaultThreshold+5 {
		t.Errorf("delivery stopped: failing=%d healthy=%d", failing.calls, healthy.calls)
	}
	if got := e.Faults("failing"); got != 5 {
		t.Errorf("counter after resume = %d, want 5", got)
	}
	if got := testutil.ToFloat64(mt.ListenerFaults.WithLabelValues("c")); got != DefaultFaultThreshold+5 {
		t.Errorf("fault metric = %v", got)
	}
}

func TestPanickingListener(t *testing.T) {
	e := NewEndpoint(WithFaultThreshold(2))
	bad := &recordingListener{channels: []string{"c"}, panics: true}
	good := &recordingListener{channels: []string{"c"}}
	_ = e.Register("bad", bad)
	_ = e.Register("good", good)

	e.Receive(context.Background(), Message{Channel: "c", Payload: []byte("x")})

	if e.Faults("bad") != 1 {
		t.Errorf("panic should count as a fault")
	}
	if len(good.got) != 1 {
		t.Errorf("good listener should still receive")
	}
}

func TestRegister_Invalid(t *testing.T) {
	e := NewEndpoint()
	if err := e.Register("x", nil); !errors.Is(err, ErrNilListener) {
		t.Errorf("nil listener err = %v", err)
	}
	err := e.Register("x", &recordingListener{channels: []string{"ok", "REGISTER"}})
	if !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("reserved channel err = %v", err)
	}
	if len(e.Channels()) != 0 {
		t.Error("a rejected listener must not register any channel")
	}
}

type listenerPlugin struct {
	recordingListener
}

func (p *listenerPlugin) Name() string                           { return "lp" }
func (p *listenerPlugin) Version() string                        { return "1" }
func (p *listenerPlugin) Init(context.Context, plugin.Env) error { return nil }

type plainPlugin struct{}

func (plainPlugin) Name() string                           { return "plain" }
func (plainPlugin) Version() string                        { return "1" }
func (plainPlugin) Init(context.Context, plugin.Env) error { return nil }

func TestOffer(t *testing.T) {
	e := NewEndpoint()
	if !e.Offer(&listenerPlugin{recordingListener{channels: []string{"chat"}}}) {
		t.Error("listener plugin should be accepted")
	}
	if e.Offer(plainPlugin{}) {
		t.Error("plain plugin should be ignored")
	}
	if got := e.Channels(); len(got) != 1 || got[0] != "chat" {
		t.Errorf("channels = %v", got)
	}
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	a, b := NewEndpoint(), NewEndpoint()
	_ = a.Register("l", &recordingListener{channels: []string{"x", "y"}})
	if err := Pair(ctx, a, b); err != nil {
		t.Fatal(err)
	}
	if err := a.Unregister(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(b.RemoteChannels(), ","); got != "y" {
		t.Errorf("remote after unregister = %s", got)
	}
	if got := strings.Join(a.Channels(), ","); got != "y" {
		t.Errorf("local after unregister = %s", got)
	}
}

func TestReceive_UnroutedMetricLabel(t *testing.T) {
	mt := metrics.NewNop()
	e := NewEndpoint(WithMetrics(mt))
	chat := &recordingListener{channels: []string{"chat"}}
	if err := e.Register("chat", chat); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	e.Receive(ctx, Message{Channel: "chat", Payload: []byte("hi")})
	for _, ch := range []string{"nobody", "spam-1", "spam-2"} {
		e.Receive(ctx, Message{Channel: ch})
	}

	if got := testutil.ToFloat64(mt.BusMessages.WithLabelValues("chat", "in")); got != 1 {
		t.Errorf("chat messages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mt.BusMessages.WithLabelValues(UnroutedLabel, "in")); got != 3 {
		t.Errorf("unrouted messages = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(mt.BusMessages); n != 2 {
		t.Errorf("bus message series = %d, want 2", n)
	}
	if ValidChannel(UnroutedLabel) {
		t.Error("the unrouted label must not be a valid channel name")
	}
}
