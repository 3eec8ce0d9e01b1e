package lua

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugkit/internal/plugin"
)

// baseClassSource defines the plugin base class.
const baseClassSource = `
local Plugin = { __name = "plugkit.plugin" }
Plugin.__index = Plugin

function Plugin:extend(name)
    local cls = { __name = name, super = self }
    cls.__index = cls
    return setmetatable(cls, { __index = self })
end

function Plugin:init(env)
end

return Plugin
`

func (f *Facility) loadBaseClass() (*lua.LTable, error) {
	fn, err := f.L.LoadString(baseClassSource)
	if err != nil {
		return nil, fmt.Errorf("compiling base class: %w", err)
	}
	f.L.Push(fn)
	if err := f.L.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("loading base class: %w", err)
	}
	base, ok := f.L.Get(-1).(*lua.LTable)
	f.L.Pop(1)
	if !ok {
		return nil, ErrNotAClass
	}
	return base, nil
}

// logModule builds the plugkit.log module.
func (f *Facility) logModule() *lua.LTable {
	logger := f.logger.WithComponent("lua")
	mod := f.L.NewTable()
	levels := map[string]func(string, ...any){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	}
	for name, fn := range levels {
		emit := fn
		f.L.SetField(mod, name, f.L.NewFunction(func(L *lua.LState) int {
			parts := make([]string, 0, L.GetTop())
			for i := 1; i <= L.GetTop(); i++ {
				parts = append(parts, L.ToStringMeta(L.Get(i)).String())
			}
			emit("%s", strings.Join(parts, " "))
			return 0
		}))
	}
	return mod
}

// scriptType is a resolved Lua module.
type scriptType struct {
	facility *Facility
	name     string
	class    *lua.LTable
}

func (t *scriptType) Name() string { return t.name }

func (t *scriptType) IsPlugin() bool {
	t.facility.mu.Lock()
	defer t.facility.mu.Unlock()
	return t.facility.isPluginClass(t.class)
}

// New creates an instance table whose metatable indexes the class, then
// calls the class's new method when one is defined.
func (t *scriptType) New() (plugin.Plugin, error) {
	f := t.facility
	if t.class == nil {
		return nil, fmt.Errorf("%s: %w", t.name, ErrNotAClass)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	self := f.L.NewTable()
	mt := f.L.NewTable()
	mt.RawSetString("__index", t.class)
	f.L.SetMetatable(self, mt)
	f.mu.Unlock()

	p := &scriptPlugin{facility: f, typeName: t.name, self: self}
	if _, err := p.call("new"); err != nil {
		return nil, fmt.Errorf("constructing %s: %w", t.name, err)
	}
	return p, nil
}
