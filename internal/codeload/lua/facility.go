package lua

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/plugkit/internal/codeload"
	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/logging"
)

// ScriptExt is the entry extension the facility understands.
const ScriptExt = ".lua"

// BaseClass is the module name of the plugin base class.
const BaseClass = codeload.FrameworkNamespace + "plugin"

// Facility is a codeload.Facility that loads Lua modules.
//
// gopher-lua's LState is not goroutine-safe; every access to it goes
// through mu.
type Facility struct {
	mu sync.Mutex
	L  *lua.LState

	logger *logging.Logger

	roots    []string
	staged   map[string]bool
	builtins map[string]lua.LValue
	loaded   map[string]lua.LValue
	loading  map[string]bool
	base     *lua.LTable

	closed bool
}

// Option configures a Facility.
type Option func(*Facility)

// WithLogger sets the logger exposed to scripts as plugkit.log.
func WithLogger(logger *logging.Logger) Option {
	return func(f *Facility) {
		f.logger = logger
	}
}

// WithBuiltin registers an extra framework module. The name must live in
// the plugkit. namespace.
func WithBuiltin(name string, fn lua.LGFunction) Option {
	return func(f *Facility) {
		if !codeload.IsFrameworkType(name) {
			return
		}
		f.builtins[name] = f.L.NewFunction(fn)
	}
}

// New creates a Lua facility with all standard libraries open.
func New(opts ...Option) (*Facility, error) {
	f := &Facility{
		L:        lua.NewState(),
		logger:   logging.NewNull(),
		staged:   make(map[string]bool),
		builtins: make(map[string]lua.LValue),
		loaded:   make(map[string]lua.LValue),
		loading:  make(map[string]bool),
	}

	base, err := f.loadBaseClass()
	if err != nil {
		f.L.Close()
		return nil, err
	}
	f.base = base
	f.loaded[BaseClass] = base

	for _, opt := range opts {
		opt(f)
	}
	f.loaded[codeload.FrameworkNamespace+"log"] = f.logModule()

	f.L.SetGlobal("require", f.L.NewFunction(f.require))
	return f, nil
}

// Close releases the Lua state.
func (f *Facility) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.L.Close()
	}
}

// TypeName implements codeload.Facility.
func (f *Facility) TypeName(entry string) (string, bool) {
	return codeload.TypeNameFromEntry(entry, ScriptExt)
}

// Stage implements codeload.Facility.
func (f *Facility) Stage(c *container.Container) error {
	return f.AddSearchPath(c.Location())
}

// AddSearchPath implements codeload.Facility.
func (f *Facility) AddSearchPath(location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.staged[location] {
		return nil
	}
	f.staged[location] = true
	f.roots = append(f.roots, location)
	return nil
}

// Roots returns the module roots in search order.
func (f *Facility) Roots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.roots))
	copy(out, f.roots)
	return out
}

// Resolve implements codeload.Facility.
func (f *Facility) Resolve(name string) (codeload.Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	value, err := f.requireProtected(name)
	if err != nil {
		missing, ok := missingModuleOf(err)
		switch {
		case !ok:
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		case missing.name == name:
			return nil, &codeload.MissingTypeError{Name: name}
		default:
			return nil, fmt.Errorf("resolve %s: %w", name,
				&codeload.MissingTypeError{Name: missing.name, Err: missing})
		}
	}

	cls, _ := value.(*lua.LTable)
	return &scriptType{facility: f, name: name, class: cls}, nil
}

// requireProtected runs require(name) in protected mode. Callers hold mu.
func (f *Facility) requireProtected(name string) (value lua.LValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while loading %s: %v", name, r)
		}
	}()

	err = f.L.CallByParam(lua.P{
		Fn:      f.L.NewFunction(f.require),
		NRet:    1,
		Protect: true,
	}, lua.LString(name))
	if err != nil {
		return nil, err
	}
	value = f.L.Get(-1)
	f.L.Pop(1)
	return value, nil
}

// require is the module loader installed as the global require.
func (f *Facility) require(L *lua.LState) int {
	name := L.CheckString(1)

	if v, ok := f.loaded[name]; ok {
		L.Push(v)
		return 1
	}

	if codeload.IsFrameworkType(name) {
		fn, ok := f.builtins[name]
		if !ok {
			raiseMissing(L, name, "framework module %q is not available")
			return 0
		}
		return f.run(L, name, fn.(*lua.LFunction))
	}

	if f.loading[name] {
		L.RaiseError("circular require of %q", name)
		return 0
	}

	src, origin, err := f.find(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			raiseMissing(L, name, "module %q not found")
			return 0
		}
		L.RaiseError("reading module %q: %v", name, err)
		return 0
	}

	fn, err := L.Load(bytes.NewReader(src), "@"+origin)
	if err != nil {
		L.RaiseError("compiling module %q: %v", name, err)
		return 0
	}
	return f.run(L, name, fn)
}

// run executes a module chunk and caches its result.
func (f *Facility) run(L *lua.LState, name string, fn *lua.LFunction) int {
	f.loading[name] = true
	defer delete(f.loading, name)

	L.Push(fn)
	L.Push(lua.LString(name))
	L.Call(1, 1)

	v := L.Get(-1)
	L.Pop(1)
	if v == lua.LNil {
		v = lua.LTrue
	}
	f.loaded[name] = v
	L.Push(v)
	return 1
}

// missingModule is the error value raised when require cannot find a
// module. A script that catches it with pcall swallows it; only one that
// reaches Resolve classifies the failure as a missing type.
type missingModule struct {
	name    string
	message string
}

func (m *missingModule) Error() string { return m.message }

func raiseMissing(L *lua.LState, name, format string) {
	m := &missingModule{name: name, message: fmt.Sprintf(format, name)}
	ud := L.NewUserData()
	ud.Value = m
	mt := L.NewTable()
	mt.RawSetString("__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(m.message))
		return 1
	}))
	L.SetMetatable(ud, mt)
	L.Error(ud, 1)
}

// missingModuleOf extracts the missing module carried by a failed call.
func missingModuleOf(err error) (*missingModule, bool) {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	ud, ok := apiErr.Object.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	m, ok := ud.Value.(*missingModule)
	return m, ok
}

// find locates a module's source across the roots in staging order.
func (f *Facility) find(name string) ([]byte, string, error) {
	rel := strings.ReplaceAll(name, ".", "/") + ScriptExt
	if !fs.ValidPath(rel) {
		return nil, "", fs.ErrNotExist
	}

	for _, root := range f.roots {
		var data []byte
		err := container.OpenFS(root, func(fsys fs.FS) error {
			var readErr error
			data, readErr = fs.ReadFile(fsys, rel)
			return readErr
		})
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return data, root + "/" + rel, nil
	}
	return nil, "", fs.ErrNotExist
}

// isPluginClass reports whether cls is a concrete strict subclass of the
// base class. Callers hold mu.
func (f *Facility) isPluginClass(cls *lua.LTable) bool {
	if cls == nil || cls == f.base {
		return false
	}
	if lua.LVAsBool(cls.RawGetString("abstract")) {
		return false
	}

	seen := make(map[*lua.LTable]bool)
	for cur := cls; cur != nil && !seen[cur]; {
		seen[cur] = true
		parent, ok := cur.RawGetString("super").(*lua.LTable)
		if !ok {
			return false
		}
		if parent == f.base {
			return true
		}
		cur = parent
	}
	return false
}
