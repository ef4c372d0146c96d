package hook

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/call"
	"github.com/retroenv/retrohook/detour"
	"github.com/retroenv/retrohook/frame"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
)

// ErrHookCallback is returned for errors and panics raised by hook callbacks.
var ErrHookCallback = errors.New("hook callback failed")

var errNotInstalled = errors.New("dispatch entry points are not installed")

// Names of the intercepted entry points.
const (
	EntryProcessEvent = "ProcessEvent"
	EntryCallFunction = "CallFunction"
)

// ProcessEventFunc is the engine's direct dispatch of a function with a
// populated parameter struct.
type ProcessEventFunc func(obj reflection.Object, fn reflection.Function, params uintptr) error

// CallFunctionFunc is the engine's dispatch of a function called from script
// bytecode. The arguments are evaluated from the frame's cursor and the
// return value is stored at result.
type CallFunctionFunc func(obj reflection.Object, stack frame.Frame, result uintptr, fn reflection.Function) error

// Event describes an intercepted call of a hooked function.
type Event struct {
	Entry    string `json:"entry"`
	Function string `json:"function"`
	Object   string `json:"object"`
	Blocked  bool   `json:"blocked"`
	Override bool   `json:"override"`
}

// Observer receives an event for every intercepted call of a hooked function.
type Observer interface {
	Observe(event Event)
}

// Pipeline runs the hooks of intercepted calls around the native dispatch.
type Pipeline struct {
	logger  *log.Logger
	manager *Manager
	access  *property.Access
	natives frame.Natives

	processEvent ProcessEventFunc
	callFunction CallFunctionFunc
	observers    []Observer
}

// NewPipeline returns a pipeline running the hooks of manager. Arguments of
// bytecode calls are evaluated by natives.
func NewPipeline(logger *log.Logger, manager *Manager, access *property.Access, natives frame.Natives) *Pipeline {
	return &Pipeline{
		logger:  logger,
		manager: manager,
		access:  access,
		natives: natives,
		processEvent: func(reflection.Object, reflection.Function, uintptr) error {
			return errNotInstalled
		},
		callFunction: func(reflection.Object, frame.Frame, uintptr, reflection.Function) error {
			return errNotInstalled
		},
	}
}

// Install redirects both dispatch entry points to the pipeline.
func (p *Pipeline) Install(d detour.Detourer, processEvent, callFunction uintptr) error {
	pe, err := detour.Install(d, EntryProcessEvent, processEvent, ProcessEventFunc(p.ProcessEvent))
	if err != nil {
		return fmt.Errorf("detouring %s: %w", EntryProcessEvent, err)
	}
	cf, err := detour.Install(d, EntryCallFunction, callFunction, CallFunctionFunc(p.CallFunction))
	if err != nil {
		if removeErr := d.Remove(processEvent); removeErr != nil {
			p.logger.Error("Removing detour failed",
				log.String("entry", EntryProcessEvent),
				log.Err(removeErr))
		}
		return fmt.Errorf("detouring %s: %w", EntryCallFunction, err)
	}
	p.processEvent = pe
	p.callFunction = cf
	return nil
}

// AddObserver registers an observer of intercepted calls. It must be called
// before the entry points are installed.
func (p *Pipeline) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// Manager returns the hook registry.
func (p *Pipeline) Manager() *Manager {
	return p.manager
}

// invocation tracks whether the native function ran during an intercepted call.
type invocation struct {
	ran       bool
	nativeErr error
}

func (inv *invocation) run(native func() error) error {
	inv.ran = true
	inv.nativeErr = native()
	return inv.nativeErr
}

// ProcessEvent is the replacement of the direct dispatch entry point. It
// implements call.Dispatcher, calls made through bound functions are
// intercepted as well.
func (p *Pipeline) ProcessEvent(obj reflection.Object, fn reflection.Function, params uintptr) error {
	inv := &invocation{}
	native := func() error {
		return p.processEvent(obj, fn, params)
	}
	err := p.guard(func() error {
		return p.interceptProcessEvent(obj, fn, params, inv, native)
	})
	return p.conclude(EntryProcessEvent, fn, inv, err, func() error {
		return inv.run(native)
	})
}

func (p *Pipeline) interceptProcessEvent(obj reflection.Object, fn reflection.Function, params uintptr,
	inv *invocation, native func() error) error {

	list := p.manager.Resolve(EntryProcessEvent, fn, obj)
	if list == nil {
		return inv.run(native)
	}

	// hooks work on a copy, the engine keeps using the live parameters
	live := property.Wrap(p.access, fn.Struct, params)
	args, err := live.CopyParamsOnly()
	if err != nil {
		return fmt.Errorf("copying arguments: %w", err)
	}
	defer p.destroy(args)

	d, err := p.newDetails(obj, fn, args)
	if err != nil {
		return err
	}
	before, err := args.Snapshot()
	if err != nil {
		return fmt.Errorf("reading arguments: %w", err)
	}

	if err := p.runHooks(list, Pre, d); err != nil {
		return err
	}
	blocked := d.blocked

	if !blocked {
		changed, err := changed(args, before)
		if err != nil {
			return err
		}
		if changed {
			if err := live.AssignParams(args); err != nil {
				return fmt.Errorf("passing changed arguments: %w", err)
			}
		}
		if err := inv.run(native); err != nil {
			return err
		}
	}

	return p.finish(EntryProcessEvent, list, d, blocked, params)
}

// CallFunction is the replacement of the bytecode dispatch entry point.
func (p *Pipeline) CallFunction(obj reflection.Object, stack frame.Frame, result uintptr, fn reflection.Function) error {
	inv := &invocation{}
	var cursor uintptr
	native := func() error {
		return p.callFunction(obj, stack, result, fn)
	}
	err := p.guard(func() error {
		return p.interceptCallFunction(obj, stack, result, fn, inv, native, &cursor)
	})
	return p.conclude(EntryCallFunction, fn, inv, err, func() error {
		if cursor != 0 {
			if err := stack.SetCode(cursor); err != nil {
				return fmt.Errorf("restoring code: %w", err)
			}
		}
		return inv.run(native)
	})
}

func (p *Pipeline) interceptCallFunction(obj reflection.Object, stack frame.Frame, result uintptr,
	fn reflection.Function, inv *invocation, native func() error, cursor *uintptr) error {

	list := p.manager.Resolve(EntryCallFunction, fn, obj)
	if list == nil {
		return inv.run(native)
	}

	args, err := property.NewWrappedStruct(p.access, fn.Struct)
	if err != nil {
		return fmt.Errorf("allocating arguments: %w", err)
	}
	defer p.destroy(args)

	original, err := stack.ExtractCurrentArgs(args, p.natives)
	*cursor = original
	if err != nil {
		return fmt.Errorf("extracting arguments: %w", err)
	}

	d, err := p.newDetails(obj, fn, args)
	if err != nil {
		return err
	}
	before, err := args.Snapshot()
	if err != nil {
		return fmt.Errorf("reading arguments: %w", err)
	}

	if err := p.runHooks(list, Pre, d); err != nil {
		return err
	}
	blocked := d.blocked

	// the result points at the return value, not at the parameter struct
	var base uintptr
	ret := d.Ret.Property()
	if !ret.IsNil() {
		offset, err := ret.Offset()
		if err != nil {
			return err
		}
		base = result - offset
	}

	if err := p.dispatchCallFunction(obj, stack, result, fn, inv, native, args, before, original, blocked); err != nil {
		return err
	}
	return p.finish(EntryCallFunction, list, d, blocked, base)
}

// dispatchCallFunction skips or replays the bytecode call after the pre hooks
// ran. Calls with arguments changed by hooks are dispatched directly with
// the changed arguments, the bytecode is skipped.
func (p *Pipeline) dispatchCallFunction(obj reflection.Object, stack frame.Frame, result uintptr,
	fn reflection.Function, inv *invocation, native func() error,
	args *property.WrappedStruct, before []any, original uintptr, blocked bool) error {

	code, err := stack.Code()
	if err != nil {
		return err
	}

	if blocked {
		return stack.SetCode(code + 1)
	}

	changed, err := changed(args, before)
	if err != nil {
		return err
	}
	if !changed {
		if err := stack.SetCode(original); err != nil {
			return err
		}
		return inv.run(native)
	}

	if err := stack.SetCode(code + 1); err != nil {
		return err
	}
	if err := inv.run(func() error { return p.processEvent(obj, fn, args.Base) }); err != nil {
		return err
	}

	ret, err := fn.FindReturnParam()
	if errors.Is(err, reflection.ErrNoReturnParam) || result == 0 {
		return nil
	}
	if err != nil {
		return err
	}
	value, err := p.access.GetProperty(ret, 0, args.Base)
	if err != nil {
		return err
	}
	return p.access.Set(ret, result, value)
}

// guard converts panics into errors.
func (p *Pipeline) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrHookCallback, r)
		}
	}()
	return fn()
}

// conclude handles a failed interception. Errors of the native function are
// returned unchanged, any other failure is logged and the native function is
// called through fallback unless it already ran.
func (p *Pipeline) conclude(entry string, fn reflection.Function, inv *invocation, err error,
	fallback func() error) error {

	if err == nil {
		return nil
	}
	if inv.nativeErr != nil {
		return inv.nativeErr
	}

	p.logger.Error("Hook processing failed",
		log.String("entry", entry),
		log.String("function", fn.String()),
		log.Err(err))
	if inv.ran {
		return nil
	}
	return fallback()
}

// finish applies the return value override and runs the post hooks.
func (p *Pipeline) finish(entry string, list *List, d *Details, blocked bool, base uintptr) error {
	override := d.Ret.HasValue()
	if override {
		if err := d.Ret.copyTo(base); err != nil {
			return err
		}
	}
	defer p.notify(entry, d, blocked, override)

	if !list.HasPost() {
		return nil
	}

	if !d.Ret.Property().IsNil() && !override && !blocked {
		if err := d.Ret.copyFrom(base); err != nil {
			return err
		}
	}

	if !blocked {
		if err := p.runHooks(list, Post, d); err != nil {
			return err
		}
	}
	return p.runHooks(list, PostUnconditional, d)
}

func (p *Pipeline) newDetails(obj reflection.Object, fn reflection.Function, args *property.WrappedStruct) (*Details, error) {
	ret, err := fn.FindReturnParam()
	if err != nil && !errors.Is(err, reflection.ErrNoReturnParam) {
		return nil, fmt.Errorf("finding return value: %w", err)
	}
	return &Details{
		Object: obj,
		Args:   args,
		Ret:    &Return{access: p.access, prop: ret},
		Func:   call.Bind(p.access, p, fn, obj),
	}, nil
}

// runHooks runs the hooks of a phase in registration order.
func (p *Pipeline) runHooks(list *List, typ Type, d *Details) error {
	d.typ = typ
	for _, h := range list.hooks[typ] {
		if err := runHook(h, d); err != nil {
			return err
		}
	}
	return nil
}

func runHook(h entry, d *Details) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s hook %s: panic: %v", ErrHookCallback, d.typ, h.identifier, r)
		}
	}()
	if err := h.callback(d); err != nil {
		return fmt.Errorf("%w: %s hook %s: %w", ErrHookCallback, d.typ, h.identifier, err)
	}
	return nil
}

func (p *Pipeline) destroy(args *property.WrappedStruct) {
	if err := args.Destroy(); err != nil {
		p.logger.Error("Destroying hook arguments failed", log.Err(err))
	}
}

// changed returns whether the arguments differ from an earlier snapshot.
func changed(args *property.WrappedStruct, before []any) (bool, error) {
	after, err := args.Snapshot()
	if err != nil {
		return false, fmt.Errorf("reading arguments: %w", err)
	}
	return !sameValue(before, after), nil
}

// sameValue compares snapshot values. Floats are compared by their bits so
// that an unchanged NaN argument compares equal to itself.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case float32:
		y, ok := b.(float32)
		return ok && math.Float32bits(x) == math.Float32bits(y)
	case float64:
		y, ok := b.(float64)
		return ok && math.Float64bits(x) == math.Float64bits(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameValue(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func (p *Pipeline) notify(entry string, d *Details, blocked, override bool) {
	if len(p.observers) == 0 {
		return
	}
	event := Event{
		Entry:    entry,
		Function: d.Func.Func.String(),
		Object:   d.Object.String(),
		Blocked:  blocked,
		Override: override,
	}
	for _, o := range p.observers {
		o.Observe(event)
	}
}
