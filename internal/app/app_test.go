package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/plugkit/internal/codeload"
	"github.com/dshills/plugkit/internal/config"
	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/plugin"
)

type chatPlugin struct {
	received []string
}

func (p *chatPlugin) Name() string                           { return "Chat" }
func (p *chatPlugin) Version() string                        { return "0.3" }
func (p *chatPlugin) Init(context.Context, plugin.Env) error { return nil }
func (p *chatPlugin) Channels() []string                     { return []string{"chat"} }

func (p *chatPlugin) Receive(_ context.Context, _ string, payload []byte) error {
	p.received = append(p.received, string(payload))
	return nil
}

const scoutSource = `
local Plugin = require("plugkit.plugin")
local Scout = Plugin:extend("Scout")
Scout.version = "2.0"
Scout.settings = { verbose = false }
return Scout
`

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	plugins := filepath.Join(base, "plugins")
	writeTree(t, plugins, map[string]string{
		"chat/" + container.MetadataFile:  "name = \"Chat\"\nversion = \"0.3\"\n",
		"chat/chat/PluginChat.plugin":     "",
		"scout/" + container.MetadataFile: "name = \"Scout\"\ndescription = \"Looks around\"\n",
		"scout/scout/PluginScout.lua":     scoutSource,
		"old/" + container.MetadataFile:   "name = \"Old\"\nframework = \"0.1\"\n",
		"old/old/PluginOld.plugin":        "",
	})

	cfg := config.Default()
	cfg.PluginDirs = []string{plugins}
	cfg.ConfigRoot = filepath.Join(base, "config")
	cfg.EnabledList = filepath.Join(base, "enabled.toml")
	cfg.Revisions = filepath.Join(base, "config", "revisions.toml")
	return cfg
}

func newNative(chat *chatPlugin) *codeload.Native {
	n := codeload.NewNative()
	n.MustBind(
		codeload.Binding{Name: "chat.PluginChat", Factory: func() (plugin.Plugin, error) { return chat, nil }},
		codeload.Binding{Name: "old.PluginOld", Factory: func() (plugin.Plugin, error) { return &chatPlugin{}, nil }},
	)
	return n
}

func TestStartup(t *testing.T) {
	chat := &chatPlugin{}
	var logs bytes.Buffer
	ctx, err := New(testConfig(t), Options{Native: newNative(chat), LogOutput: &logs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Shutdown() })

	if ctx.Discovery() != nil || ctx.Plugins() != nil {
		t.Fatal("nothing should be available before startup")
	}
	if _, err := ctx.Snapshot(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Snapshot before startup = %v, want ErrNotStarted", err)
	}
	if err := ctx.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	fin := ctx.Discovery()
	if !fin.IsEnabled("chat") || !fin.IsEnabled("scout") {
		t.Errorf("chat and scout should be enabled")
	}
	if fin.IsEnabled("old") {
		t.Error("old targets another framework version and should be disabled")
	}

	var names []string
	for _, h := range ctx.Plugins().Active() {
		names = append(names, h.Name())
	}
	if got := strings.Join(names, ","); got != "Chat,Scout" {
		t.Errorf("active = %q, want Chat,Scout", got)
	}
	if h, ok := ctx.Plugins().Lookup("Scout"); !ok || h.Description("") != "Looks around" {
		t.Errorf("Lookup(Scout) = %v, %v", h, ok)
	}

	snap, err := ctx.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Session != fin.Session().String() {
		t.Errorf("snapshot session = %v, want %v", snap.Session, fin.Session())
	}

	if got := strings.Join(ctx.Bus.Channels(), ","); got != "chat" {
		t.Errorf("bus channels = %q, want chat", got)
	}
	if n := testutil.ToFloat64(ctx.Metrics.PluginsActive); n != 2 {
		t.Errorf("plugins active gauge = %v, want 2", n)
	}

	if err := ctx.Startup(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Startup = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartup_Filter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Filter = []string{"scout"}

	ctx, err := New(cfg, Options{Native: newNative(&chatPlugin{}), LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Shutdown() })

	if err := ctx.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if ctx.Discovery().IsEnabled("chat") {
		t.Error("filter should disable containers it does not name")
	}
	if _, ok := ctx.Plugins().Lookup("Scout"); !ok {
		t.Error("Scout should be active")
	}
}

func TestShutdown_SavesSettings(t *testing.T) {
	cfg := testConfig(t)
	ctx, err := New(cfg, Options{LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctx.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if err := ctx.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(cfg.ConfigRoot, "*", "*.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Error("expected Scout settings to be written under the config root")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "loud"
	if _, err := New(cfg, Options{}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("New = %v, want ErrInvalidConfig", err)
	}
}

func TestOperationError(t *testing.T) {
	base := errors.New("denied")
	err := &OperationError{Op: "load revisions", Target: "/x", Err: base}
	if got := err.Error(); got != "load revisions /x: denied" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, base) {
		t.Error("OperationError should unwrap")
	}
	if got := (&OperationError{Op: "init", Err: base}).Error(); got != "init: denied" {
		t.Errorf("Error() = %q", got)
	}
}
