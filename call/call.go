// Package call invokes reflected functions with positional arguments.
package call

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
)

var (
	// ErrTooManyArguments is returned when more arguments than parameters are passed.
	ErrTooManyArguments = errors.New("too many arguments")
	// ErrNotImplemented is returned for parameter and return shapes that are not supported.
	ErrNotImplemented = errors.New("not implemented")
)

// Dispatcher invokes a function on an object with a populated parameter frame.
type Dispatcher interface {
	ProcessEvent(obj reflection.Object, fn reflection.Function, params uintptr) error
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(obj reflection.Object, fn reflection.Function, params uintptr) error

// ProcessEvent implements Dispatcher.
func (f DispatchFunc) ProcessEvent(obj reflection.Object, fn reflection.Function, params uintptr) error {
	return f(obj, fn, params)
}

// BoundFunction is a function bound to the object it is called on.
type BoundFunction struct {
	access     *property.Access
	dispatcher Dispatcher

	Func   reflection.Function
	Object reflection.Object
}

// Bind returns the function bound to obj, calls are dispatched through
// dispatcher.
func Bind(access *property.Access, dispatcher Dispatcher, fn reflection.Function, obj reflection.Object) *BoundFunction {
	return &BoundFunction{
		access:     access,
		dispatcher: dispatcher,
		Func:       fn,
		Object:     obj,
	}
}

// Call calls the function and discards any return value.
func (b *BoundFunction) Call(args ...Arg) error {
	_, err := b.call(false, args)
	return err
}

// CallValue calls the function and returns its return value.
func (b *BoundFunction) CallValue(args ...Arg) (any, error) {
	return b.call(true, args)
}

// CallAs calls the function and returns its return value as type T.
func CallAs[T any](b *BoundFunction, args ...Arg) (T, error) {
	var zero T
	value, err := b.CallValue(args...)
	if err != nil {
		return zero, err
	}
	v, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: return value expected %T, got %T", property.ErrTypeMismatch, zero, value)
	}
	return v, nil
}

// CallWith calls the function with a prepopulated parameter struct of the
// function's type. The arguments are not validated.
func (b *BoundFunction) CallWith(params *property.WrappedStruct) error {
	_, err := b.callWith(params, false)
	return err
}

// CallWithValue calls the function with a prepopulated parameter struct and
// returns its return value.
func (b *BoundFunction) CallWithValue(params *property.WrappedStruct) (any, error) {
	return b.callWith(params, true)
}

func (b *BoundFunction) call(wantReturn bool, args []Arg) (value any, err error) {
	if wantReturn {
		if err := b.checkReturn(); err != nil {
			return nil, err
		}
	}

	params, release, err := b.allocFrame()
	if err != nil {
		return nil, err
	}
	defer release(&err)

	if err := b.bind(params, args); err != nil {
		return nil, err
	}
	return b.invoke(params, wantReturn)
}

func (b *BoundFunction) callWith(ws *property.WrappedStruct, wantReturn bool) (value any, err error) {
	if ws.Type.Address != b.Func.Address {
		return nil, fmt.Errorf("%w: parameters of %s passed to %s", property.ErrTypeMismatch, ws.Type, b.Func)
	}
	if wantReturn {
		if err := b.checkReturn(); err != nil {
			return nil, err
		}
	}

	params, release, err := b.allocFrame()
	if err != nil {
		return nil, err
	}
	defer release(&err)

	if err := ws.CopyTo(params); err != nil {
		return nil, fmt.Errorf("copying parameters: %w", err)
	}
	return b.invoke(params, wantReturn)
}

// allocFrame allocates a zeroed parameter frame. The returned release
// function frees it and reports a failure through err if no earlier error
// was set.
func (b *BoundFunction) allocFrame() (uintptr, func(err *error), error) {
	size, err := b.Func.StructSize()
	if err != nil {
		return 0, nil, fmt.Errorf("reading function size: %w", err)
	}
	alloc := b.access.Allocator()
	params, err := alloc.Malloc(size)
	if err != nil {
		return 0, nil, fmt.Errorf("allocating parameters: %w", err)
	}

	release := func(err *error) {
		freeErr := alloc.Free(params)
		if freeErr != nil && *err == nil {
			*err = fmt.Errorf("freeing parameters: %w", freeErr)
		}
	}

	if err := memory.Zero(b.access.Memory(), params, size); err != nil {
		var zeroErr error
		release(&zeroErr)
		return 0, nil, err
	}
	return params, release, nil
}

// bind stores the positional arguments in the parameter properties. Return
// values are never bound.
func (b *BoundFunction) bind(params uintptr, args []Arg) error {
	var props []reflection.Property
	for prop, err := range b.Func.Params() {
		if err != nil {
			return err
		}
		props = append(props, prop)
	}
	if len(args) > len(props) {
		return fmt.Errorf("%w: %d passed, function %s takes %d", ErrTooManyArguments, len(args), b.Func, len(props))
	}

	for i, arg := range args {
		prop := props[i]
		kind, err := prop.Kind()
		if err != nil {
			return fmt.Errorf("reading kind of parameter %d: %w", i, err)
		}
		if kind != arg.Kind {
			return fmt.Errorf("%w: parameter %d expected %s, got %s", property.ErrTypeMismatch, i, kind, arg.Kind)
		}
		dim, err := prop.ArrayDim()
		if err != nil {
			return err
		}
		if dim > 1 {
			return fmt.Errorf("%w: static array parameter %d", ErrNotImplemented, i)
		}
		if err := b.access.SetProperty(prop, 0, params, arg.Value); err != nil {
			return fmt.Errorf("setting parameter %d: %w", i, err)
		}
	}
	return nil
}

// checkReturn rejects return values that can not be read after the frame is
// released.
func (b *BoundFunction) checkReturn() error {
	ret, err := b.Func.FindReturnParam()
	if err != nil {
		return err
	}
	dim, err := ret.ArrayDim()
	if err != nil {
		return err
	}
	if dim > 1 {
		return fmt.Errorf("%w: static array return value", ErrNotImplemented)
	}
	kind, err := ret.Kind()
	if err != nil {
		return err
	}
	if kind == "StructProperty" || kind == "ArrayProperty" {
		return fmt.Errorf("%w: %s return value", ErrNotImplemented, kind)
	}
	return nil
}

func (b *BoundFunction) invoke(params uintptr, wantReturn bool) (any, error) {
	if err := b.dispatcher.ProcessEvent(b.Object, b.Func, params); err != nil {
		return nil, err
	}
	if !wantReturn {
		return nil, nil
	}

	ret, err := b.Func.FindReturnParam()
	if err != nil {
		return nil, err
	}
	return b.access.GetProperty(ret, 0, params)
}

// String returns the path of the bound function.
func (b *BoundFunction) String() string {
	return fmt.Sprintf("%s on %s", b.Func, b.Object)
}
