// Package engine binds the located engine internals into an explicitly
// initialized context that holds the reflection model, the property access
// layer and the call interception pipeline.
package engine

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/call"
	"github.com/retroenv/retrohook/detour"
	"github.com/retroenv/retrohook/frame"
	"github.com/retroenv/retrohook/game"
	"github.com/retroenv/retrohook/hook"
	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/module"
	"github.com/retroenv/retrohook/monitor"
	"github.com/retroenv/retrohook/names"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
	"github.com/retroenv/retrohook/sigscan"
)

var errMissingBinding = errors.New("missing engine binding")

// Config contains the bindings to the engine that are provided from the
// outside of the core.
type Config struct {
	Game   *game.Game
	Module *module.Module
	Memory memory.Memory

	// Layout overrides the layout of the game's engine generation.
	Layout *layout.Layout

	// NewAllocator binds the engine allocator located at gmalloc.
	NewAllocator func(mem memory.Memory, gmalloc uintptr) (memory.Allocator, error)
	// Natives evaluates bytecode expressions, defaults to an empty table.
	Natives frame.Natives
	// Detourer installs the interception of the dispatch entry points. No
	// detours are installed if it is nil.
	Detourer detour.Detourer
	// Observers receive an event for every intercepted call of a hooked
	// function.
	Observers []hook.Observer
	// MonitorAddress is the TCP address a monitor serving the intercepted
	// calls to websocket clients listens on. No monitor is started if it is
	// empty.
	MonitorAddress string
}

// Context holds everything that is derived from the located engine
// internals. It is created once at startup.
type Context struct {
	logger *log.Logger

	Game      *game.Game
	Layout    *layout.Layout
	Memory    memory.Memory
	Addresses game.Addresses
	Allocator memory.Allocator

	Names    *names.Table
	Model    *reflection.Model
	Objects  *reflection.Objects
	Access   *property.Access
	Hooks    *hook.Manager
	Pipeline *hook.Pipeline

	detourer  detour.Detourer
	installed bool

	monitor  *monitor.Server
	server   *http.Server
	listener net.Listener
}

// Locate resolves every signature of the game. It aborts on the first
// signature that can not be resolved and names it in the returned error.
func Locate(s *sigscan.Scanner, g *game.Game) (game.Addresses, error) {
	addresses := make(game.Addresses)
	for _, sig := range g.Signatures() {
		address, err := game.Resolve(s, sig)
		if err != nil {
			return nil, fmt.Errorf("locating %s with signature %s: %w", sig.Target, sig.Pattern.Name, err)
		}
		addresses[sig.Target] = address
	}
	return addresses, nil
}

// New locates the engine internals described by cfg and returns the bound
// context. The dispatch entry points are detoured if a detourer is set.
func New(logger *log.Logger, cfg Config) (*Context, error) {
	if cfg.Game == nil || cfg.Module == nil || cfg.Memory == nil {
		return nil, fmt.Errorf("%w: game, module and memory are required", errMissingBinding)
	}
	if cfg.NewAllocator == nil {
		return nil, fmt.Errorf("%w: allocator", errMissingBinding)
	}

	l := cfg.Layout
	if l == nil {
		var err error
		l, err = layout.ForGeneration(cfg.Game.Generation)
		if err != nil {
			return nil, fmt.Errorf("selecting layout of %s: %w", cfg.Game.Name, err)
		}
	}

	scanner := sigscan.New(logger, cfg.Memory, cfg.Module)
	addresses, err := Locate(scanner, cfg.Game)
	if err != nil {
		return nil, err
	}

	alloc, err := cfg.NewAllocator(cfg.Memory, addresses[game.GMalloc])
	if err != nil {
		return nil, fmt.Errorf("binding allocator: %w", err)
	}

	natives := cfg.Natives
	if natives == nil {
		natives = frame.NewNativeTable()
	}

	nameTable := names.NewTable(cfg.Memory, l, addresses[game.GNames])
	model := reflection.NewModel(cfg.Memory, l, nameTable)
	access := property.New(model, alloc)
	manager := hook.NewManager(logger)

	ctx := &Context{
		logger:    logger,
		Game:      cfg.Game,
		Layout:    l,
		Memory:    cfg.Memory,
		Addresses: addresses,
		Allocator: alloc,
		Names:     nameTable,
		Model:     model,
		Objects:   reflection.NewObjects(model, addresses[game.GObjects]),
		Access:    access,
		Hooks:     manager,
		Pipeline:  hook.NewPipeline(logger, manager, access, natives),
		detourer:  cfg.Detourer,
	}

	for _, o := range cfg.Observers {
		ctx.Pipeline.AddObserver(o)
	}
	if cfg.MonitorAddress != "" {
		if err := ctx.startMonitor(cfg.MonitorAddress); err != nil {
			return nil, err
		}
	}

	if cfg.Detourer != nil {
		if err := ctx.Pipeline.Install(cfg.Detourer, addresses[game.ProcessEvent], addresses[game.CallFunction]); err != nil {
			_ = ctx.stopMonitor()
			return nil, fmt.Errorf("installing hooks: %w", err)
		}
		ctx.installed = true
	}

	logger.Info("Engine bound",
		log.String("game", cfg.Game.Name),
		log.String("layout", string(l.Generation)),
		log.Int("targets", len(addresses)))
	return ctx, nil
}

// Close removes the detours of the dispatch entry points and stops the
// monitor.
func (c *Context) Close() error {
	monitorErr := c.stopMonitor()
	if !c.installed {
		return monitorErr
	}
	c.installed = false
	return errors.Join(
		c.detourer.Remove(c.Addresses[game.ProcessEvent]),
		c.detourer.Remove(c.Addresses[game.CallFunction]),
		monitorErr,
	)
}

// MonitorAddress returns the address the monitor listens on, or an empty
// string if no monitor is running.
func (c *Context) MonitorAddress() string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// startMonitor serves the intercepted calls to websocket clients. It must
// run before the dispatch entry points are detoured.
func (c *Context) startMonitor(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening for monitor clients on %s: %w", address, err)
	}

	mon := monitor.New(c.logger)
	server := &http.Server{
		Handler:           mon,
		ReadHeaderTimeout: 5 * time.Second,
	}
	c.listener = listener
	c.monitor = mon
	c.server = server
	c.Pipeline.AddObserver(c.monitor)

	logger := c.logger
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Monitor stopped", log.Err(err))
		}
	}()

	c.logger.Info("Monitor listening", log.String("address", listener.Addr().String()))
	return nil
}

func (c *Context) stopMonitor() error {
	if c.server == nil {
		return nil
	}
	// hijacked websocket connections are not closed by the server
	err := errors.Join(c.server.Close(), c.monitor.Close())
	c.server = nil
	c.listener = nil
	return err
}

// FindObject returns the object of the class with the given path name.
func (c *Context) FindObject(className, path string) (reflection.Object, error) {
	return c.Objects.Find(className, path)
}

// FindClass returns the class with the given name.
func (c *Context) FindClass(name string) (reflection.Struct, error) {
	return c.Objects.FindClass(name)
}

// Bind returns the function of the object's class with the given name,
// bound to the object. Calls of bound functions pass through the hooks.
func (c *Context) Bind(obj reflection.Object, function string) (*call.BoundFunction, error) {
	class, err := obj.Class()
	if err != nil {
		return nil, err
	}
	fn, err := class.FindFunction(function)
	if err != nil {
		return nil, err
	}
	return call.Bind(c.Access, c.Pipeline, fn, obj), nil
}

// NewStruct allocates a zeroed instance of a struct type through the engine
// allocator.
func (c *Context) NewStruct(typ reflection.Struct) (*property.WrappedStruct, error) {
	return property.NewWrappedStruct(c.Access, typ)
}
