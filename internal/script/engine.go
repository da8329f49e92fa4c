package script

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"fieldwatch/internal/intercept"
)

// Errors returned by the script engine.
var (
	// ErrEngineClosed indicates the engine has been closed.
	ErrEngineClosed = errors.New("script engine closed")
)

// vetoMarker tags Lua errors raised by watch.veto so they can be
// translated back into engine veto errors.
const vetoMarker = "fieldwatch.veto: "

// Engine hosts a sandboxed Lua state wired to an interception
// registry. Scripts address bound targets by name through the watch
// module.
//
// An Engine is single-threaded: Bind, DoString, DoFile, and Close must
// all be called from one goroutine.
type Engine struct {
	l       *lua.LState
	reg     *intercept.Registry
	targets map[string]any
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for script diagnostics.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates a sandboxed Lua engine backed by the given
// registry.
func NewEngine(reg *intercept.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		reg:     reg,
		targets: make(map[string]any),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})
	e.l = L

	openSafeLibraries(L)
	stripUnsafeGlobals(L)
	e.installWatchModule()

	return e
}

// openSafeLibraries opens only safe Lua standard libraries. io, os,
// debug, and package are never loaded.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// stripUnsafeGlobals removes base functions that could load arbitrary
// code into the sandbox.
func stripUnsafeGlobals(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// installWatchModule exposes the watch module to scripts.
func (e *Engine) installWatchModule() {
	mod := e.l.SetFuncs(e.l.NewTable(), map[string]lua.LGFunction{
		"after_get":  e.luaAfterGet,
		"before_set": e.luaBeforeSet,
		"after_set":  e.luaAfterSet,
		"get":        e.luaGet,
		"set":        e.luaSet,
		"veto":       e.luaVeto,
	})
	e.l.SetGlobal("watch", mod)
}

// Bind makes a target addressable from scripts under the given name.
// Rebinding a name replaces the previous target for future
// registrations; hooks already installed keep their original target.
func (e *Engine) Bind(name string, target any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if name == "" {
		return fmt.Errorf("bind: empty target name")
	}
	e.targets[name] = target
	return nil
}

// DoString executes Lua source. Execution is synchronous; hook
// registrations and accesses performed by the script take effect
// before DoString returns.
func (e *Engine) DoString(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	return e.doWithRecovery(func() error {
		return e.l.DoString(code)
	})
}

// DoFile executes a Lua file.
func (e *Engine) DoFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	return e.doWithRecovery(func() error {
		return e.l.DoFile(path)
	})
}

// doWithRecovery executes a function with panic recovery.
func (e *Engine) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state. Hooks already installed through the
// engine become inert errors if invoked afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.l.Close()
	e.closed = true
	return nil
}

// lookupTarget resolves a bound target or raises a Lua error.
func (e *Engine) lookupTarget(L *lua.LState, name string) any {
	target, ok := e.targets[name]
	if !ok {
		L.RaiseError("unknown target %q", name)
	}
	return target
}

// luaAfterGet implements watch.after_get(target, field, fn).
func (e *Engine) luaAfterGet(L *lua.LState) int {
	name := L.CheckString(1)
	field := L.CheckString(2)
	fn := L.CheckFunction(3)

	target := e.lookupTarget(L, name)
	if err := e.reg.RegisterAfterGet(target, field, e.wrapTransform(name, fn)); err != nil {
		L.RaiseError("after_get %s.%s: %s", name, field, err)
		return 0
	}
	e.log.Debug("script installed after-get hook",
		zap.String("target", name), zap.String("field", field))
	L.Push(lua.LTrue)
	return 1
}

// luaBeforeSet implements watch.before_set(target, field, fn). On a
// callable-valued field it returns nil plus a message instead of
// raising.
func (e *Engine) luaBeforeSet(L *lua.LState) int {
	name := L.CheckString(1)
	field := L.CheckString(2)
	fn := L.CheckFunction(3)

	target := e.lookupTarget(L, name)
	err := e.reg.RegisterBeforeSet(target, field, e.wrapTransform(name, fn))
	if errors.Is(err, intercept.ErrNotApplicable) {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	if err != nil {
		L.RaiseError("before_set %s.%s: %s", name, field, err)
		return 0
	}
	e.log.Debug("script installed before-set hook",
		zap.String("target", name), zap.String("field", field))
	L.Push(lua.LTrue)
	return 1
}

// luaAfterSet implements watch.after_set(target, field, fn), with the
// same sentinel contract as watch.before_set.
func (e *Engine) luaAfterSet(L *lua.LState) int {
	name := L.CheckString(1)
	field := L.CheckString(2)
	fn := L.CheckFunction(3)

	target := e.lookupTarget(L, name)
	err := e.reg.RegisterAfterSet(target, field, e.wrapObserver(name, fn))
	if errors.Is(err, intercept.ErrNotApplicable) {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	if err != nil {
		L.RaiseError("after_set %s.%s: %s", name, field, err)
		return 0
	}
	e.log.Debug("script installed after-set hook",
		zap.String("target", name), zap.String("field", field))
	L.Push(lua.LTrue)
	return 1
}

// luaGet implements watch.get(target, field).
func (e *Engine) luaGet(L *lua.LState) int {
	name := L.CheckString(1)
	field := L.CheckString(2)

	target := e.lookupTarget(L, name)
	v, err := e.reg.Get(target, field)
	if err != nil {
		L.RaiseError("get %s.%s: %s", name, field, err)
		return 0
	}
	L.Push(toLuaValue(L, v))
	return 1
}

// luaSet implements watch.set(target, field, value). Vetoes and hook
// failures surface as Lua errors.
func (e *Engine) luaSet(L *lua.LState) int {
	name := L.CheckString(1)
	field := L.CheckString(2)
	value := toGoValue(L.CheckAny(3))

	target := e.lookupTarget(L, name)
	committed, err := e.reg.Set(target, field, value)
	if err != nil {
		L.RaiseError("set %s.%s: %s", name, field, err)
		return 0
	}
	L.Push(toLuaValue(L, committed))
	return 1
}

// luaVeto implements watch.veto(reason): it raises out of the calling
// before-set hook and aborts the write.
func (e *Engine) luaVeto(L *lua.LState) int {
	reason := L.OptString(1, "write rejected")
	L.RaiseError("%s%s", vetoMarker, reason)
	return 0
}

// wrapTransform adapts a Lua function into a TransformFunc. The hook
// receives (target name, field, value) and must return the value to
// pass along the chain.
func (e *Engine) wrapTransform(name string, fn *lua.LFunction) intercept.TransformFunc {
	return func(_ any, field string, value any) (any, error) {
		if e.closed {
			return nil, ErrEngineClosed
		}
		ret, err := e.callHook(fn, name, field, value)
		if err != nil {
			return nil, translateHookError(err)
		}
		return toGoValue(ret), nil
	}
}

// wrapObserver adapts a Lua function into an ObserverFunc. Observer
// failures cannot abort an already-committed write; they are logged
// and dropped.
func (e *Engine) wrapObserver(name string, fn *lua.LFunction) intercept.ObserverFunc {
	return func(_ any, field string, value any) {
		if e.closed {
			return
		}
		if _, err := e.callHook(fn, name, field, value); err != nil {
			e.log.Warn("after-set script hook failed",
				zap.String("target", name),
				zap.String("field", field),
				zap.Error(err))
		}
	}
}

// callHook invokes a Lua hook with (name, field, value) and returns
// its single result.
func (e *Engine) callHook(fn *lua.LFunction, name, field string, value any) (lua.LValue, error) {
	L := e.l
	top := L.GetTop()
	L.Push(fn)
	L.Push(lua.LString(name))
	L.Push(lua.LString(field))
	L.Push(toLuaValue(L, value))
	if err := L.PCall(3, 1, nil); err != nil {
		L.SetTop(top)
		return lua.LNil, err
	}
	ret := L.Get(-1)
	L.SetTop(top)
	return ret, nil
}

// translateHookError converts a watch.veto Lua error into an engine
// veto; other script failures propagate as-is.
func translateHookError(err error) error {
	msg := err.Error()
	if i := strings.Index(msg, vetoMarker); i >= 0 {
		reason := msg[i+len(vetoMarker):]
		// Drop any trailing Lua traceback.
		if j := strings.IndexByte(reason, '\n'); j >= 0 {
			reason = reason[:j]
		}
		return intercept.Veto("%s", strings.TrimSpace(reason))
	}
	return err
}
