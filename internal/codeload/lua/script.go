package lua

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugkit/internal/plugin"
)

// scriptPlugin adapts a Lua instance table to plugin.Plugin.
type scriptPlugin struct {
	facility *Facility
	typeName string
	self     *lua.LTable

	// settings mirrors the instance's settings table for the config store.
	settings map[string]any
}

var (
	_ plugin.Plugin       = (*scriptPlugin)(nil)
	_ plugin.Configurable = (*scriptPlugin)(nil)
	_ plugin.Upgrader     = (*scriptPlugin)(nil)
)

// Name returns the class name given to extend, falling back to the simple
// type name.
func (p *scriptPlugin) Name() string {
	if s, ok := p.field("__name").(lua.LString); ok && s != "" {
		return string(s)
	}
	if i := strings.LastIndexByte(p.typeName, '.'); i >= 0 {
		return p.typeName[i+1:]
	}
	return p.typeName
}

// Version returns the class's version field.
func (p *scriptPlugin) Version() string {
	if s, ok := p.field("version").(lua.LString); ok {
		return string(s)
	}
	return ""
}

// Init pushes loaded settings into the instance and calls its init method.
func (p *scriptPlugin) Init(ctx context.Context, env plugin.Env) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.pushSettings()

	f := p.facility
	f.mu.Lock()
	envTable := f.L.NewTable()
	envTable.RawSetString("configDir", lua.LString(env.ConfigDir))
	envTable.RawSetString("revision", lua.LNumber(env.Revision))
	f.mu.Unlock()

	_, err := p.call("init", envTable)
	return err
}

// UpgradeSettings calls the instance's upgradeSettings method, if any.
func (p *scriptPlugin) UpgradeSettings(ctx context.Context, m plugin.Migration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.pushSettings()

	f := p.facility
	f.mu.Lock()
	t := f.L.NewTable()
	t.RawSetString("fromRevision", lua.LNumber(m.FromRevision))
	t.RawSetString("toRevision", lua.LNumber(m.ToRevision))
	t.RawSetString("configDir", lua.LString(m.ConfigDir))
	t.RawSetString("oldConfigDir", lua.LString(m.OldConfigDir))
	f.mu.Unlock()

	_, err := p.call("upgradeSettings", t)
	return err
}

// Settings returns a pointer to a fresh snapshot of the instance's settings
// table, or nil when the class declares no settings. Values decoded into the
// map are pushed back to Lua before init and upgradeSettings run.
func (p *scriptPlugin) Settings() any {
	tbl, ok := p.field("settings").(*lua.LTable)
	if !ok {
		return nil
	}
	p.facility.mu.Lock()
	m, _ := toGoValue(tbl, make(map[*lua.LTable]bool)).(map[string]any)
	p.facility.mu.Unlock()
	if m == nil {
		m = make(map[string]any)
	}
	p.settings = m
	return &p.settings
}

// pushSettings copies the settings map into a fresh instance-level table so
// class defaults stay untouched.
func (p *scriptPlugin) pushSettings() {
	if p.settings == nil {
		return
	}
	f := p.facility
	f.mu.Lock()
	defer f.mu.Unlock()
	p.self.RawSetString("settings", toLuaValue(f.L, p.settings))
}

// field reads a field through the instance's metatable chain.
func (p *scriptPlugin) field(name string) lua.LValue {
	f := p.facility
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return lua.LNil
	}
	return f.L.GetField(p.self, name)
}

// call invokes a method on the instance. Absent methods are a no-op.
func (p *scriptPlugin) call(method string, args ...lua.LValue) (ret lua.LValue, err error) {
	f := p.facility
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return lua.LNil, ErrClosed
	}

	fn, ok := f.L.GetField(p.self, method).(*lua.LFunction)
	if !ok {
		return lua.LNil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s:%s: %v", p.typeName, method, r)
		}
	}()

	callArgs := append([]lua.LValue{p.self}, args...)
	if err := f.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, callArgs...); err != nil {
		return lua.LNil, fmt.Errorf("%s:%s: %w", p.typeName, method, err)
	}
	ret = f.L.Get(-1)
	f.L.Pop(1)
	return ret, nil
}
