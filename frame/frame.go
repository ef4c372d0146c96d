// Package frame reads the engine's script execution frames and decodes the
// arguments of the function call a frame is positioned at.
package frame

import (
	"errors"
	"fmt"
	"iter"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
)

// EndFunctionParams is the bytecode token terminating a call's argument list.
const EndFunctionParams = 0x16

var (
	// ErrUnknownOpcode is returned for opcodes without a native handler.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrParamsExhausted is returned when the bytecode contains more
	// arguments than the function has parameters.
	ErrParamsExhausted = errors.New("function parameters exhausted")
)

// Frame is a view of a script execution frame.
type Frame struct {
	model   *reflection.Model
	Address uintptr
}

// New returns a view of the frame at address.
func New(model *reflection.Model, address uintptr) Frame {
	return Frame{
		model:   model,
		Address: address,
	}
}

// IsNil returns whether the frame is a nil pointer.
func (f Frame) IsNil() bool {
	return f.Address == 0
}

func (f Frame) pointer(offset int) (uintptr, error) {
	if f.Address == 0 {
		return 0, reflection.ErrNilObject
	}
	return memory.ReadPointer(f.model.Memory, f.Address+uintptr(offset))
}

// Node returns the function the frame executes.
func (f Frame) Node() (reflection.Function, error) {
	address, err := f.pointer(f.model.Layout.Frame.Node)
	return f.model.Function(address), err
}

// Object returns the object the frame executes on.
func (f Frame) Object() (reflection.Object, error) {
	address, err := f.pointer(f.model.Layout.Frame.Object)
	return f.model.Object(address), err
}

// Code returns the bytecode cursor.
func (f Frame) Code() (uintptr, error) {
	return f.pointer(f.model.Layout.Frame.Code)
}

// SetCode moves the bytecode cursor.
func (f Frame) SetCode(code uintptr) error {
	if f.Address == 0 {
		return reflection.ErrNilObject
	}
	return memory.WritePointer(f.model.Memory, f.Address+uintptr(f.model.Layout.Frame.Code), code)
}

// Locals returns the address of the local variable block.
func (f Frame) Locals() (uintptr, error) {
	return f.pointer(f.model.Layout.Frame.Locals)
}

// PreviousFrame returns the calling frame.
func (f Frame) PreviousFrame() (Frame, error) {
	address, err := f.pointer(f.model.Layout.Frame.PreviousFrame)
	return New(f.model, address), err
}

// OutParam is an output parameter record, the property and the address its
// value has to be written back to.
type OutParam struct {
	Property reflection.Property
	Address  uintptr
}

// OutParams iterates the output parameter records of the frame.
func (f Frame) OutParams() iter.Seq2[OutParam, error] {
	return func(yield func(OutParam, error) bool) {
		l := f.model.Layout.Frame
		record, err := f.pointer(l.OutParams)
		if err != nil {
			yield(OutParam{}, err)
			return
		}
		for record != 0 {
			prop, err := memory.ReadPointer(f.model.Memory, record+uintptr(l.OutParamProperty))
			if err != nil {
				yield(OutParam{}, err)
				return
			}
			address, err := memory.ReadPointer(f.model.Memory, record+uintptr(l.OutParamAddress))
			if err != nil {
				yield(OutParam{}, err)
				return
			}
			if !yield(OutParam{Property: f.model.Property(prop), Address: address}, nil) {
				return
			}
			record, err = memory.ReadPointer(f.model.Memory, record+uintptr(l.OutParamNext))
			if err != nil {
				yield(OutParam{}, err)
				return
			}
		}
	}
}

// ExtractCurrentArgs evaluates the argument expressions of the call the
// cursor is positioned at into args, which must be a parameter struct of the
// called function. Each argument starts with a 16 bit opcode word that
// selects the native evaluating it. The cursor is advanced past the first
// byte of the word only, natives decode their operands from there. The
// cursor is left at the end of parameters token.
// The cursor position before the arguments is returned.
func (f Frame) ExtractCurrentArgs(args *property.WrappedStruct, natives Natives) (uintptr, error) {
	original, err := f.Code()
	if err != nil {
		return 0, fmt.Errorf("reading code: %w", err)
	}
	obj, err := f.Object()
	if err != nil {
		return original, fmt.Errorf("reading object: %w", err)
	}

	next, stop := iter.Pull2(args.Type.Fields())
	defer stop()

	for {
		code, err := f.Code()
		if err != nil {
			return original, err
		}
		token, err := memory.ReadUint8(f.model.Memory, code)
		if err != nil {
			return original, fmt.Errorf("reading token: %w", err)
		}
		if token == EndFunctionParams {
			return original, nil
		}

		field, err, ok := next()
		if !ok {
			return original, fmt.Errorf("%w: %s at code 0x%X", ErrParamsExhausted, args.Type, code)
		}
		if err != nil {
			return original, err
		}
		prop := f.model.Property(field.Address)
		isReturn, err := prop.HasFlags(reflection.FlagReturnParam)
		if err != nil {
			return original, err
		}
		if isReturn {
			continue
		}

		opcode, err := memory.ReadUint16(f.model.Memory, code)
		if err != nil {
			return original, fmt.Errorf("reading opcode: %w", err)
		}
		if err := f.SetCode(code + 1); err != nil {
			return original, err
		}
		offset, err := prop.Offset()
		if err != nil {
			return original, err
		}
		if err := natives.Exec(opcode, obj, f, args.Base+offset); err != nil {
			return original, fmt.Errorf("executing opcode 0x%02X: %w", opcode, err)
		}
	}
}
