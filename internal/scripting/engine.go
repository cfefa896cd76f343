package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/heritagebuilder/heritage/internal/resource"
)

// Engine wraps a single gopher-lua VM holding optional tuning formulas.
// Every formula has a Go fallback, so a missing script or function leaves
// the simulation on its built-in rules. Single-goroutine access only.
//
// The VM is sandboxed: only base, table, string and math are opened, file
// loading is removed and math.random is unavailable so scripts cannot break
// determinism.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a sandboxed VM and loads every .lua file of scriptsDir
// in name order. A missing directory yields an engine with no overrides.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newSandbox(log)
	if err := e.loadDir(scriptsDir); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func newSandbox(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		vm.Push(vm.NewFunction(lib.fn))
		vm.Push(lua.LString(lib.name))
		vm.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "collectgarbage"} {
		vm.SetGlobal(name, lua.LNil)
	}
	if m, ok := vm.GetGlobal("math").(*lua.LTable); ok {
		m.RawSetString("random", lua.LNil)
		m.RawSetString("randomseed", lua.LNil)
	}
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log.Named("script")}
}

// LoadString runs a chunk of Lua source, typically defining formulas.
func (e *Engine) LoadString(name, src string) error {
	fn, err := e.vm.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}
	e.vm.Push(fn)
	if err := e.vm.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}
	return nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read scripts dir %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".lua" {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := e.LoadString(path, string(src)); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Close releases the VM.
func (e *Engine) Close() {
	if e != nil && e.vm != nil {
		e.vm.Close()
	}
}

// HasFunction reports whether a global Lua function is defined.
func (e *Engine) HasFunction(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// call invokes a global function with one table argument and returns its
// single numeric result. ok is false when the function is absent or fails.
func (e *Engine) call(name string, arg *lua.LTable) (float64, bool) {
	fn, isFn := e.vm.GetGlobal(name).(*lua.LFunction)
	if !isFn {
		return 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, arg); err != nil {
		e.log.Error("lua "+name+" error", zap.Error(err))
		return 0, false
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	n, isNum := ret.(lua.LNumber)
	if !isNum || math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		e.log.Error("lua "+name+" returned non-number", zap.String("type", ret.Type().String()))
		return 0, false
	}
	return float64(n), true
}

// ProducerCycleSecs lets producer_cycle_secs(ctx) scale a producer's cycle
// length. ctx carries building, base_secs, workers, min_workers and
// max_workers. Results below 0.1 s are clamped.
func (e *Engine) ProducerCycleSecs(building string, base float32, workers resource.Workers) float32 {
	t := e.vm.NewTable()
	t.RawSetString("building", lua.LString(building))
	t.RawSetString("base_secs", lua.LNumber(base))
	t.RawSetString("workers", lua.LNumber(workers.Current))
	t.RawSetString("min_workers", lua.LNumber(workers.Min))
	t.RawSetString("max_workers", lua.LNumber(workers.Max))
	v, ok := e.call("producer_cycle_secs", t)
	if !ok {
		return base
	}
	return float32(max(v, 0.1))
}

// SettlersToSpawn lets settlers_to_spawn(ctx) decide how many settlers
// arrive in one wave. ctx carries vacancies, population and base. The
// result is clamped to [0, vacancies].
func (e *Engine) SettlersToSpawn(vacancies, population, base uint32) uint32 {
	t := e.vm.NewTable()
	t.RawSetString("vacancies", lua.LNumber(vacancies))
	t.RawSetString("population", lua.LNumber(population))
	t.RawSetString("base", lua.LNumber(base))
	v, ok := e.call("settlers_to_spawn", t)
	if !ok {
		return min(base, vacancies)
	}
	// Clamp before converting: out-of-range float to uint32 is unspecified.
	v = math.Floor(math.Min(math.Max(v, 0), float64(vacancies)))
	return uint32(v)
}
