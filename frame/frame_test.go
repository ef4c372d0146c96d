package frame

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrohook/internal/mocks"
	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/names"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
)

const opIntConst = 0x1D

// intConst returns the bytecode of an integer constant expression. The
// operand follows the opcode word.
func intConst(v int32) []byte {
	b := []byte{opIntConst, 0}
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

func newNatives(t *testing.T, mem memory.Memory) *NativeTable {
	t.Helper()
	natives, _ := newRecordingNatives(t, mem)
	return natives
}

// newRecordingNatives returns natives that also record the cursor each
// native is entered with.
func newRecordingNatives(t *testing.T, mem memory.Memory) (*NativeTable, *[]uintptr) {
	t.Helper()
	var cursors []uintptr
	natives := NewNativeTable()
	assert.NoError(t, natives.Register(opIntConst, func(_ reflection.Object, f Frame, result uintptr) error {
		code, err := f.Code()
		if err != nil {
			return err
		}
		cursors = append(cursors, code)
		// skip the second byte of the opcode word
		v, err := memory.ReadInt32(mem, code+1)
		if err != nil {
			return err
		}
		if err := memory.WriteInt32(mem, result, v); err != nil {
			return err
		}
		return f.SetCode(code + 5)
	}))
	return natives, &cursors
}

type fixture struct {
	engine *mocks.Engine
	model  *reflection.Model
	access *property.Access
	object uintptr
}

func newFixture(t *testing.T, l *layout.Layout) *fixture {
	t.Helper()
	e := mocks.NewEngine(l)
	model := reflection.NewModel(e.Arena, l, names.NewTable(e.Arena, l, e.Names))
	return &fixture{
		engine: e,
		model:  model,
		access: property.New(model, e.Arena),
		object: e.NewObject(e.NewClass("Pawn", 0), "Pawn_0", 0, 0),
	}
}

func TestExtractCurrentArgs(t *testing.T) {
	for _, l := range []*layout.Layout{layout.UE3Layout(), layout.UE4Layout()} {
		f := newFixture(t, l)
		e := f.engine
		fn := e.NewFunction("Add", 0,
			mocks.PropertyDef{Name: "ReturnValue", Kind: "IntProperty", Flags: mocks.FlagParam | mocks.FlagReturn},
			mocks.PropertyDef{Name: "A", Kind: "IntProperty", Flags: mocks.FlagParam},
			mocks.PropertyDef{Name: "B", Kind: "IntProperty", Flags: mocks.FlagParam},
		)

		var bytecode []byte
		bytecode = append(bytecode, intConst(40)...)
		bytecode = append(bytecode, intConst(2)...)
		bytecode = append(bytecode, EndFunctionParams, 0x04)
		code := e.Bytecode(bytecode)
		fr := New(f.model, e.NewFrame(0, f.object, code))

		args, err := property.NewWrappedStruct(f.access, f.model.Struct(fn))
		assert.NoError(t, err)

		original, err := fr.ExtractCurrentArgs(args, newNatives(t, e.Arena))
		assert.NoError(t, err)
		assert.Equal(t, code, original)

		cursor, err := fr.Code()
		assert.NoError(t, err)
		assert.Equal(t, code+12, cursor)

		a, err := property.Value[int32](args, "A")
		assert.NoError(t, err)
		assert.Equal(t, int32(40), a)
		b, err := property.Value[int32](args, "B")
		assert.NoError(t, err)
		assert.Equal(t, int32(2), b)
		ret, err := property.Value[int32](args, "ReturnValue")
		assert.NoError(t, err)
		assert.Equal(t, int32(0), ret)
	}
}

func TestExtractCurrentArgs_NativeCursor(t *testing.T) {
	f := newFixture(t, layout.UE3Layout())
	e := f.engine
	fn := e.NewFunction("Add", 0,
		mocks.PropertyDef{Name: "A", Kind: "IntProperty", Flags: mocks.FlagParam},
		mocks.PropertyDef{Name: "B", Kind: "IntProperty", Flags: mocks.FlagParam},
	)
	var bytecode []byte
	bytecode = append(bytecode, intConst(7)...)
	bytecode = append(bytecode, intConst(9)...)
	bytecode = append(bytecode, EndFunctionParams)
	code := e.Bytecode(bytecode)
	fr := New(f.model, e.NewFrame(0, f.object, code))

	args, err := property.NewWrappedStruct(f.access, f.model.Struct(fn))
	assert.NoError(t, err)
	natives, cursors := newRecordingNatives(t, e.Arena)
	_, err = fr.ExtractCurrentArgs(args, natives)
	assert.NoError(t, err)

	// natives are entered one byte past the start of each opcode word
	assert.Equal(t, []uintptr{code + 1, code + 7}, *cursors)
}

func TestExtractCurrentArgs_NoArguments(t *testing.T) {
	f := newFixture(t, layout.UE3Layout())
	e := f.engine
	fn := e.NewFunction("Reset", 0)
	code := e.Bytecode([]byte{EndFunctionParams})
	fr := New(f.model, e.NewFrame(0, f.object, code))

	args, err := property.NewWrappedStruct(f.access, f.model.Struct(fn))
	assert.NoError(t, err)
	original, err := fr.ExtractCurrentArgs(args, NewNativeTable())
	assert.NoError(t, err)
	assert.Equal(t, code, original)
}

func TestExtractCurrentArgs_Errors(t *testing.T) {
	f := newFixture(t, layout.UE3Layout())
	e := f.engine
	fn := e.NewFunction("Damage", 0,
		mocks.PropertyDef{Name: "Amount", Kind: "IntProperty", Flags: mocks.FlagParam},
	)
	args, err := property.NewWrappedStruct(f.access, f.model.Struct(fn))
	assert.NoError(t, err)

	var bytecode []byte
	bytecode = append(bytecode, intConst(1)...)
	bytecode = append(bytecode, intConst(2)...)
	bytecode = append(bytecode, EndFunctionParams)
	code := e.Bytecode(bytecode)
	fr := New(f.model, e.NewFrame(0, f.object, code))
	original, err := fr.ExtractCurrentArgs(args, newNatives(t, e.Arena))
	assert.True(t, errors.Is(err, ErrParamsExhausted))
	assert.Equal(t, code, original)

	code = e.Bytecode([]byte{0x55, 0x00, EndFunctionParams})
	fr = New(f.model, e.NewFrame(0, f.object, code))
	_, err = fr.ExtractCurrentArgs(args, newNatives(t, e.Arena))
	assert.True(t, errors.Is(err, ErrUnknownOpcode))
}

func TestFrame_Accessors(t *testing.T) {
	for _, l := range []*layout.Layout{layout.UE3Layout(), layout.UE4Layout()} {
		f := newFixture(t, l)
		e := f.engine
		fn := e.NewFunction("Tick", 0,
			mocks.PropertyDef{Name: "Count", Kind: "IntProperty", Flags: mocks.FlagParam | mocks.FlagOut},
			mocks.PropertyDef{Name: "Total", Kind: "IntProperty", Flags: mocks.FlagParam | mocks.FlagOut},
		)
		caller := e.NewFrame(0, f.object, 0)
		address := e.NewFrame(fn, f.object, 0x1234)
		assert.NoError(t, memory.WritePointer(e.Arena, address+uintptr(l.Frame.PreviousFrame), caller))
		assert.NoError(t, memory.WritePointer(e.Arena, address+uintptr(l.Frame.Locals), 0x5678))

		count := e.Alloc(4)
		total := e.Alloc(4)
		e.AddOutParam(address, e.Property(fn, "Total"), total)
		e.AddOutParam(address, e.Property(fn, "Count"), count)

		fr := New(f.model, address)
		node, err := fr.Node()
		assert.NoError(t, err)
		assert.Equal(t, fn, node.Address)

		obj, err := fr.Object()
		assert.NoError(t, err)
		assert.Equal(t, f.object, obj.Address)

		code, err := fr.Code()
		assert.NoError(t, err)
		assert.Equal(t, uintptr(0x1234), code)

		locals, err := fr.Locals()
		assert.NoError(t, err)
		assert.Equal(t, uintptr(0x5678), locals)

		previous, err := fr.PreviousFrame()
		assert.NoError(t, err)
		assert.Equal(t, caller, previous.Address)

		var outs []uintptr
		for out, err := range fr.OutParams() {
			assert.NoError(t, err)
			outs = append(outs, out.Address)
		}
		assert.Equal(t, []uintptr{count, total}, outs)

		_, err = New(f.model, 0).Code()
		assert.True(t, errors.Is(err, reflection.ErrNilObject))
	}
}

func TestNativeTable(t *testing.T) {
	natives := NewNativeTable()
	err := natives.Register(NativeCount, nil)
	assert.True(t, errors.Is(err, ErrUnknownOpcode))

	err = natives.Exec(0xFFFF, reflection.Object{}, Frame{}, 0)
	assert.True(t, errors.Is(err, ErrUnknownOpcode))

	called := false
	assert.NoError(t, natives.Register(1, func(reflection.Object, Frame, uintptr) error {
		called = true
		return nil
	}))
	assert.NoError(t, natives.Exec(1, reflection.Object{}, Frame{}, 0))
	assert.True(t, called)
}
