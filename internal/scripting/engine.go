// Package scripting embeds a Lua VM for server-side policy the operators want
// to tune without recompiling, starting with intent validation.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// IntentContext holds pre-packed data for intent validation.
type IntentContext struct {
	MoveX float64
	MoveZ float64
	Jump  bool
	Yaw   float64
}

// ValidateIntent calls the Lua validate_intent function. A missing function
// or script error accepts the intent; scripting tightens policy, it never
// takes the server down.
func (e *Engine) ValidateIntent(ctx IntentContext) bool {
	fn := e.vm.GetGlobal("validate_intent")
	if fn == lua.LNil {
		return true
	}

	t := e.vm.NewTable()
	t.RawSetString("move_x", lua.LNumber(ctx.MoveX))
	t.RawSetString("move_z", lua.LNumber(ctx.MoveZ))
	t.RawSetString("jump", lua.LBool(ctx.Jump))
	t.RawSetString("yaw", lua.LNumber(ctx.Yaw))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua validate_intent error", zap.Error(err))
		return true
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return result != lua.LFalse && result != lua.LNil
}
