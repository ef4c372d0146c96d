package hook

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/call"
	"github.com/retroenv/retrohook/detour"
	"github.com/retroenv/retrohook/frame"
	"github.com/retroenv/retrohook/internal/mocks"
	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/names"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
)

const (
	processEventAddress = 0x5000
	callFunctionAddress = 0x5100
	opIntConst          = 0x1D
	opFloatConst        = 0x1E
	addPath             = "Calculator.Add"
	scalePath           = "Calculator.Scale"
)

type observed struct {
	events []Event
}

func (o *observed) Observe(event Event) {
	o.events = append(o.events, event)
}

// fixture emulates an engine with a function Add(A, B int) int whose native
// implementation sums its parameters, and a function Scale(X float) whose
// native implementation only counts its calls.
type fixture struct {
	engine   *mocks.Engine
	model    *reflection.Model
	access   *property.Access
	natives  *frame.NativeTable
	table    *detour.Table
	manager  *Manager
	pipeline *Pipeline
	observer *observed

	object reflection.Object
	add    reflection.Function
	scale  reflection.Function

	processEventCalls int
	callFunctionCalls int
	seen              [][2]int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	e := mocks.NewEngine(layout.UE3Layout())
	model := reflection.NewModel(e.Arena, e.Layout, names.NewTable(e.Arena, e.Layout, e.Names))
	class := e.NewClass("Calculator", 0)
	logger := log.NewTestLogger(t)

	f := &fixture{
		engine:   e,
		model:    model,
		access:   property.New(model, e.Arena),
		natives:  frame.NewNativeTable(),
		table:    detour.NewTable(logger),
		manager:  NewManager(logger),
		observer: &observed{},
		object:   model.Object(e.NewObject(class, "Calculator_0", 0, 0)),
		add: model.Function(e.NewFunction("Add", class,
			mocks.PropertyDef{Name: "A", Kind: "IntProperty", Flags: mocks.FlagParam},
			mocks.PropertyDef{Name: "B", Kind: "IntProperty", Flags: mocks.FlagParam},
			mocks.PropertyDef{Name: "ReturnValue", Kind: "IntProperty", Flags: mocks.FlagParam | mocks.FlagReturn},
		)),
		scale: model.Function(e.NewFunction("Scale", class,
			mocks.PropertyDef{Name: "X", Kind: "FloatProperty", Flags: mocks.FlagParam},
		)),
	}

	assert.NoError(t, f.natives.Register(opIntConst, f.intConst))
	assert.NoError(t, f.natives.Register(opFloatConst, f.floatConst))
	f.table.Register(processEventAddress, ProcessEventFunc(f.nativeProcessEvent))
	f.table.Register(callFunctionAddress, CallFunctionFunc(f.nativeCallFunction))

	// failing hooks are logged as errors, which the test logger rejects
	f.pipeline = NewPipeline(mocks.NewLogger(), f.manager, f.access, f.natives)
	f.pipeline.AddObserver(f.observer)
	assert.NoError(t, f.pipeline.Install(f.table, processEventAddress, callFunctionAddress))
	return f
}

func (f *fixture) intConst(_ reflection.Object, fr frame.Frame, result uintptr) error {
	code, err := fr.Code()
	if err != nil {
		return err
	}
	// the cursor is at the second byte of the opcode word
	v, err := memory.ReadInt32(f.engine.Arena, code+1)
	if err != nil {
		return err
	}
	if err := memory.WriteInt32(f.engine.Arena, result, v); err != nil {
		return err
	}
	return fr.SetCode(code + 5)
}

func (f *fixture) floatConst(_ reflection.Object, fr frame.Frame, result uintptr) error {
	code, err := fr.Code()
	if err != nil {
		return err
	}
	v, err := memory.ReadUint32(f.engine.Arena, code+1)
	if err != nil {
		return err
	}
	if err := memory.WriteUint32(f.engine.Arena, result, v); err != nil {
		return err
	}
	return fr.SetCode(code + 5)
}

func (f *fixture) sum(ws *property.WrappedStruct) (int32, error) {
	a, err := property.Value[int32](ws, "A")
	if err != nil {
		return 0, err
	}
	b, err := property.Value[int32](ws, "B")
	if err != nil {
		return 0, err
	}
	f.seen = append(f.seen, [2]int32{a, b})
	return a + b, nil
}

func (f *fixture) nativeProcessEvent(_ reflection.Object, fn reflection.Function, params uintptr) error {
	f.processEventCalls++
	if fn.Address != f.add.Address {
		return nil
	}
	ws := property.Wrap(f.access, fn.Struct, params)
	sum, err := f.sum(ws)
	if err != nil {
		return err
	}
	return ws.Set("ReturnValue", sum)
}

func (f *fixture) nativeCallFunction(_ reflection.Object, stack frame.Frame, result uintptr, fn reflection.Function) error {
	f.callFunctionCalls++
	params, err := property.NewWrappedStruct(f.access, fn.Struct)
	if err != nil {
		return err
	}
	defer func() { _ = params.Destroy() }()

	if _, err := stack.ExtractCurrentArgs(params, f.natives); err != nil {
		return err
	}
	code, err := stack.Code()
	if err != nil {
		return err
	}
	if err := stack.SetCode(code + 1); err != nil {
		return err
	}
	if fn.Address != f.add.Address {
		return nil
	}
	sum, err := f.sum(params)
	if err != nil {
		return err
	}
	return memory.WriteInt32(f.engine.Arena, result, sum)
}

// processEvent calls the direct dispatch entry point the way the engine does.
func (f *fixture) processEvent(t *testing.T, a, b int32) int32 {
	t.Helper()
	params, err := property.NewWrappedStruct(f.access, f.add.Struct)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, params.Destroy()) }()
	assert.NoError(t, params.Set("A", a))
	assert.NoError(t, params.Set("B", b))

	pe, err := detour.Resolve[ProcessEventFunc](f.table, processEventAddress)
	assert.NoError(t, err)
	assert.NoError(t, pe(f.object, f.add, params.Base))

	ret, err := property.Value[int32](params, "ReturnValue")
	assert.NoError(t, err)
	return ret
}

// callFunction calls the bytecode dispatch entry point the way the engine
// does and returns the result and the frame.
func (f *fixture) callFunction(t *testing.T, a, b int32) (int32, frame.Frame, uintptr) {
	t.Helper()
	var bytecode []byte
	for _, v := range []int32{a, b} {
		bytecode = append(bytecode, opIntConst, 0)
		bytecode = binary.LittleEndian.AppendUint32(bytecode, uint32(v))
	}
	bytecode = append(bytecode, frame.EndFunctionParams, 0x0B)
	code := f.engine.Bytecode(bytecode)
	stack := frame.New(f.model, f.engine.NewFrame(0, f.object.Address, code))
	result := f.engine.Alloc(4)

	cf, err := detour.Resolve[CallFunctionFunc](f.table, callFunctionAddress)
	assert.NoError(t, err)
	assert.NoError(t, cf(f.object, stack, result, f.add))

	ret, err := memory.ReadInt32(f.engine.Arena, result)
	assert.NoError(t, err)
	return ret, stack, code
}

// callScale calls Scale through the bytecode dispatch entry point.
func (f *fixture) callScale(t *testing.T, x float32) (frame.Frame, uintptr) {
	t.Helper()
	bytecode := []byte{opFloatConst, 0}
	bytecode = binary.LittleEndian.AppendUint32(bytecode, math.Float32bits(x))
	bytecode = append(bytecode, frame.EndFunctionParams, 0x0B)
	code := f.engine.Bytecode(bytecode)
	stack := frame.New(f.model, f.engine.NewFrame(0, f.object.Address, code))

	cf, err := detour.Resolve[CallFunctionFunc](f.table, callFunctionAddress)
	assert.NoError(t, err)
	assert.NoError(t, cf(f.object, stack, 0, f.scale))
	return stack, code
}

func (f *fixture) cursor(t *testing.T, stack frame.Frame) uintptr {
	t.Helper()
	code, err := stack.Code()
	assert.NoError(t, err)
	return code
}

func TestProcessEvent_NoHooks(t *testing.T) {
	f := newFixture(t)
	allocations := f.engine.Arena.Allocations()

	assert.Equal(t, int32(5), f.processEvent(t, 2, 3))
	assert.Equal(t, 1, f.processEventCalls)
	assert.Equal(t, 0, len(f.observer.events))
	assert.Equal(t, allocations, f.engine.Arena.Allocations())
}

func TestProcessEvent_Block(t *testing.T) {
	f := newFixture(t)
	var phases []Type
	record := func(d *Details) error {
		phases = append(phases, d.Type())
		return nil
	}
	f.manager.Add(addPath, Pre, "block", func(d *Details) error {
		d.Block()
		return nil
	})
	f.manager.Add(addPath, Post, "post", record)
	f.manager.Add(addPath, PostUnconditional, "always", func(d *Details) error {
		assert.True(t, d.Blocked())
		return record(d)
	})

	assert.Equal(t, int32(0), f.processEvent(t, 2, 3))
	assert.Equal(t, 0, f.processEventCalls)
	assert.Equal(t, []Type{PostUnconditional}, phases)

	assert.Equal(t, 1, len(f.observer.events))
	event := f.observer.events[0]
	assert.Equal(t, EntryProcessEvent, event.Entry)
	assert.Equal(t, addPath, event.Function)
	assert.True(t, event.Blocked)
	assert.False(t, event.Override)
}

func TestProcessEvent_PostHooks(t *testing.T) {
	f := newFixture(t)
	var phases []Type
	var observedReturn any
	f.manager.Add(addPath, Pre, "pre", func(d *Details) error {
		phases = append(phases, d.Type())
		return nil
	})
	f.manager.Add(addPath, Post, "post", func(d *Details) error {
		phases = append(phases, d.Type())
		// blocking is only possible before the call
		d.Block()
		observedReturn, _ = d.Ret.Get()
		return nil
	})
	f.manager.Add(addPath, PostUnconditional, "always", func(d *Details) error {
		phases = append(phases, d.Type())
		assert.False(t, d.Blocked())
		return nil
	})

	assert.Equal(t, int32(9), f.processEvent(t, 4, 5))
	assert.Equal(t, 1, f.processEventCalls)
	assert.Equal(t, []Type{Pre, Post, PostUnconditional}, phases)
	assert.Equal(t, int32(9), observedReturn)
}

func TestProcessEvent_Order(t *testing.T) {
	for n := range 6 {
		f := newFixture(t)
		var order []int
		for i := range n {
			assert.True(t, f.manager.Add(addPath, Pre, string(rune('a'+i)), func(*Details) error {
				order = append(order, i)
				return nil
			}))
		}

		f.processEvent(t, 1, 1)
		expected := make([]int, 0, n)
		for i := range n {
			expected = append(expected, i)
		}
		assert.Equal(t, expected, append(make([]int, 0, n), order...))
		assert.Equal(t, 1, f.processEventCalls)
	}
}

func TestProcessEvent_ArgumentOverride(t *testing.T) {
	f := newFixture(t)
	f.manager.Add(addPath, Pre, "override", func(d *Details) error {
		return d.Args.Set("B", int32(100))
	})

	assert.Equal(t, int32(101), f.processEvent(t, 1, 2))
	assert.Equal(t, [][2]int32{{1, 100}}, f.seen)
}

func TestProcessEvent_ArgumentsIsolated(t *testing.T) {
	f := newFixture(t)
	f.manager.Add(addPath, Pre, "observe", func(d *Details) error {
		assert.True(t, d.Args.Owned())
		a, err := property.Value[int32](d.Args, "A")
		assert.NoError(t, err)
		assert.Equal(t, int32(7), a)
		return nil
	})
	allocations := f.engine.Arena.Allocations()

	assert.Equal(t, int32(15), f.processEvent(t, 7, 8))
	assert.Equal(t, allocations, f.engine.Arena.Allocations())
}

func TestBoundFunction_BlockWithReturn(t *testing.T) {
	f := newFixture(t)
	f.manager.Add(addPath, Pre, "block", func(d *Details) error {
		d.Block()
		return d.Ret.Set(int32(42))
	})
	bound := call.Bind(f.access, f.pipeline, f.add, f.object)

	v, err := call.CallAs[int32](bound, call.Int(1), call.Int(2))
	assert.NoError(t, err)
	assert.Equal(t, int32(42), v)
	assert.Equal(t, 0, f.processEventCalls)
	assert.True(t, f.observer.events[0].Override)
}

func TestProcessEvent_ReturnOverride(t *testing.T) {
	f := newFixture(t)
	var postReturn any
	f.manager.Add(addPath, Pre, "override", func(d *Details) error {
		return d.Ret.Set(int32(-1))
	})
	f.manager.Add(addPath, Post, "observe", func(d *Details) error {
		postReturn, _ = d.Ret.Get()
		return nil
	})

	assert.Equal(t, int32(-1), f.processEvent(t, 3, 4))
	assert.Equal(t, 1, f.processEventCalls)
	assert.Equal(t, int32(-1), postReturn)
}

func TestProcessEvent_Failures(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		callback Callback
		calls    int
	}{
		{"pre error", Pre, func(*Details) error { return errors.New("broken") }, 1},
		{"pre panic", Pre, func(*Details) error { panic("broken") }, 1},
		{"pre panic after block", Pre, func(d *Details) error {
			d.Block()
			panic("broken")
		}, 1},
		{"post error", Post, func(*Details) error { return errors.New("broken") }, 1},
		{"bad return override", Pre, func(d *Details) error {
			d.Block()
			return d.Ret.Set("not a number")
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.manager.Add(addPath, tt.typ, "failing", tt.callback)

			assert.Equal(t, int32(3), f.processEvent(t, 1, 2))
			assert.Equal(t, tt.calls, f.processEventCalls)
		})
	}
}

func TestProcessEvent_NativeError(t *testing.T) {
	f := newFixture(t)
	pipeline := NewPipeline(log.NewTestLogger(t), f.manager, f.access, f.natives)
	f.manager.Add(addPath, Pre, "noop", func(*Details) error { return nil })

	err := pipeline.ProcessEvent(f.object, f.add, f.engine.Alloc(16))
	assert.True(t, errors.Is(err, errNotInstalled))
}

func TestRunHook_ErrHookCallback(t *testing.T) {
	d := &Details{}
	err := runHook(entry{identifier: "x", callback: func(*Details) error { return errors.New("broken") }}, d)
	assert.True(t, errors.Is(err, ErrHookCallback))
	assert.ErrorContains(t, err, "broken")

	err = runHook(entry{identifier: "x", callback: func(*Details) error { panic("boom") }}, d)
	assert.True(t, errors.Is(err, ErrHookCallback))
	assert.ErrorContains(t, err, "boom")
}

func TestCallFunction_NoHooks(t *testing.T) {
	f := newFixture(t)
	ret, stack, code := f.callFunction(t, 20, 22)
	assert.Equal(t, int32(42), ret)
	assert.Equal(t, 1, f.callFunctionCalls)
	assert.Equal(t, code+13, f.cursor(t, stack))
}

func TestCallFunction_Hooked(t *testing.T) {
	f := newFixture(t)
	var args [2]int32
	var postReturn any
	f.manager.Add(addPath, Pre, "observe", func(d *Details) error {
		a, err := property.Value[int32](d.Args, "A")
		if err != nil {
			return err
		}
		b, err := property.Value[int32](d.Args, "B")
		args = [2]int32{a, b}
		return err
	})
	f.manager.Add(addPath, Post, "result", func(d *Details) error {
		postReturn, _ = d.Ret.Get()
		return nil
	})
	allocations := f.engine.Arena.Allocations()

	ret, stack, code := f.callFunction(t, 6, 7)
	assert.Equal(t, int32(13), ret)
	assert.Equal(t, [2]int32{6, 7}, args)
	assert.Equal(t, int32(13), postReturn)
	assert.Equal(t, 1, f.callFunctionCalls)
	assert.Equal(t, 0, f.processEventCalls)
	assert.Equal(t, code+13, f.cursor(t, stack))
	// the bytecode, frame and result slot of the emulated call
	assert.Equal(t, allocations+3, f.engine.Arena.Allocations())
}

func TestCallFunction_Block(t *testing.T) {
	f := newFixture(t)
	unconditional := 0
	f.manager.Add(addPath, Pre, "block", func(d *Details) error {
		d.Block()
		return d.Ret.Set(int32(42))
	})
	f.manager.Add(addPath, PostUnconditional, "always", func(*Details) error {
		unconditional++
		return nil
	})

	ret, stack, code := f.callFunction(t, 1, 2)
	assert.Equal(t, int32(42), ret)
	assert.Equal(t, 0, f.callFunctionCalls)
	assert.Equal(t, 1, unconditional)
	// the cursor is moved past the end of parameters token
	assert.Equal(t, code+13, f.cursor(t, stack))
}

func TestCallFunction_ArgumentOverride(t *testing.T) {
	f := newFixture(t)
	f.manager.Add(addPath, Pre, "override", func(d *Details) error {
		return d.Args.Set("B", int32(100))
	})

	ret, stack, code := f.callFunction(t, 1, 2)
	assert.Equal(t, int32(101), ret)
	assert.Equal(t, [][2]int32{{1, 100}}, f.seen)
	assert.Equal(t, 0, f.callFunctionCalls)
	assert.Equal(t, 1, f.processEventCalls)
	assert.Equal(t, code+13, f.cursor(t, stack))
}

func TestCallFunction_NaNArgument(t *testing.T) {
	f := newFixture(t)
	var seen float32
	f.manager.Add(scalePath, Pre, "observe", func(d *Details) error {
		var err error
		seen, err = property.Value[float32](d.Args, "X")
		return err
	})

	nan := float32(math.NaN())
	stack, code := f.callScale(t, nan)
	assert.True(t, math.IsNaN(float64(seen)))
	// reading a NaN argument is no change, the bytecode call is replayed
	assert.Equal(t, 1, f.callFunctionCalls)
	assert.Equal(t, 0, f.processEventCalls)
	assert.Equal(t, code+7, f.cursor(t, stack))
}

func TestChanged(t *testing.T) {
	f := newFixture(t)
	args, err := property.NewWrappedStruct(f.access, f.scale.Struct)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, args.Destroy()) }()
	assert.NoError(t, args.Set("X", float32(math.NaN())))

	before, err := args.Snapshot()
	assert.NoError(t, err)
	modified, err := changed(args, before)
	assert.NoError(t, err)
	assert.False(t, modified)

	assert.NoError(t, args.Set("X", float32(1.5)))
	modified, err = changed(args, before)
	assert.NoError(t, err)
	assert.True(t, modified)

	assert.True(t, sameValue([]any{int32(1), []any{float64(math.NaN())}}, []any{int32(1), []any{float64(math.NaN())}}))
	assert.False(t, sameValue([]any{int32(1)}, []any{int32(1), int32(2)}))
	assert.False(t, sameValue(float32(1), float64(1)))
}

func TestProcessEvent_NaNArgument(t *testing.T) {
	f := newFixture(t)
	f.manager.Add(scalePath, Pre, "observe", func(d *Details) error {
		_, err := property.Value[float32](d.Args, "X")
		return err
	})

	params, err := property.NewWrappedStruct(f.access, f.scale.Struct)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, params.Destroy()) }()
	nan := math.Float32bits(float32(math.NaN())) | 1
	assert.NoError(t, memory.WriteUint32(f.engine.Arena, params.Base, nan))

	pe, err := detour.Resolve[ProcessEventFunc](f.table, processEventAddress)
	assert.NoError(t, err)
	assert.NoError(t, pe(f.object, f.scale, params.Base))
	assert.Equal(t, 1, f.processEventCalls)

	// the live parameters keep their exact bits
	v, err := memory.ReadUint32(f.engine.Arena, params.Base)
	assert.NoError(t, err)
	assert.Equal(t, nan, v)
}

// rejectingDetourer fails to install the bytecode dispatch entry point and
// to remove any detour.
type rejectingDetourer struct {
	*detour.Table
	removed []uintptr
}

func (d *rejectingDetourer) Install(name string, target uintptr, replacement any) (any, error) {
	if target == callFunctionAddress {
		return nil, errors.New("rejected")
	}
	return d.Table.Install(name, target, replacement)
}

func (d *rejectingDetourer) Remove(target uintptr) error {
	d.removed = append(d.removed, target)
	return errors.New("rejected")
}

func TestPipeline_InstallRollback(t *testing.T) {
	f := newFixture(t)
	table := detour.NewTable(log.NewTestLogger(t))
	table.Register(processEventAddress, ProcessEventFunc(f.nativeProcessEvent))
	table.Register(callFunctionAddress, CallFunctionFunc(f.nativeCallFunction))
	d := &rejectingDetourer{Table: table}

	pipeline := NewPipeline(mocks.NewLogger(), f.manager, f.access, f.natives)
	err := pipeline.Install(d, processEventAddress, callFunctionAddress)
	assert.ErrorContains(t, err, EntryCallFunction)
	assert.Equal(t, []uintptr{processEventAddress}, d.removed)

	// the pipeline keeps its uninstalled entry points
	err = pipeline.ProcessEvent(f.object, f.add, f.engine.Alloc(16))
	assert.True(t, errors.Is(err, errNotInstalled))
}

func TestCallFunction_Failures(t *testing.T) {
	f := newFixture(t)
	f.manager.Add(addPath, Pre, "failing", func(d *Details) error {
		d.Block()
		return errors.New("broken")
	})

	ret, stack, code := f.callFunction(t, 2, 2)
	assert.Equal(t, int32(4), ret)
	assert.Equal(t, 1, f.callFunctionCalls)
	assert.Equal(t, code+13, f.cursor(t, stack))

	// unknown opcodes fail the extraction, the engine evaluates the call itself
	g := newFixture(t)
	g.manager.Add(addPath, Pre, "noop", func(*Details) error { return nil })
	bytecode := g.engine.Bytecode([]byte{0x55, 0x00, frame.EndFunctionParams})
	stack = frame.New(g.model, g.engine.NewFrame(0, g.object.Address, bytecode))
	err := g.pipeline.CallFunction(g.object, stack, g.engine.Alloc(4), g.add)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrUnknownOpcode))
	assert.Equal(t, 1, g.callFunctionCalls)
}

func TestManager(t *testing.T) {
	m := NewManager(log.NewTestLogger(t))
	noop := func(*Details) error { return nil }

	assert.True(t, m.Add("Engine.Actor:Tick", Pre, "a", noop))
	assert.False(t, m.Add("engine.actor:tick", Pre, "a", noop))
	assert.True(t, m.Add("Engine.Actor:Tick", Post, "a", noop))
	assert.True(t, m.Has("ENGINE.ACTOR:TICK", Pre, "a"))
	assert.False(t, m.Has("Engine.Actor:Tick", PostUnconditional, "a"))

	assert.True(t, m.Remove("Engine.Actor:Tick", Pre, "a"))
	assert.False(t, m.Remove("Engine.Actor:Tick", Pre, "a"))
	assert.False(t, m.Has("Engine.Actor:Tick", Pre, "a"))
	assert.True(t, m.Has("Engine.Actor:Tick", Post, "a"))
	assert.True(t, m.Remove("Engine.Actor:Tick", Post, "a"))
	assert.False(t, m.hooked.Contains("tick"))

	assert.Equal(t, "post_unconditional", PostUnconditional.String())
}

func TestManager_Resolve(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.manager.Resolve(EntryProcessEvent, f.add, f.object))

	f.manager.Add("calculator.add", Pre, "a", func(*Details) error { return nil })
	list := f.manager.Resolve(EntryProcessEvent, f.add, f.object)
	assert.NotNil(t, list)
	assert.Equal(t, 1, list.Len(Pre))
	assert.False(t, list.HasPost())

	// resolved lists are snapshots
	f.manager.Add(addPath, Pre, "b", func(*Details) error { return nil })
	assert.Equal(t, 1, list.Len(Pre))
	assert.Equal(t, 2, f.manager.Resolve(EntryProcessEvent, f.add, f.object).Len(Pre))

	f.manager.LogAllCalls(true)
	assert.NotNil(t, f.manager.Resolve(EntryCallFunction, f.add, f.object))
}
