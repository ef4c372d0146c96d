package reflection

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/retroenv/retrohook/memory"
)

var (
	// ErrNoReturnParam is returned for functions without a return value property.
	ErrNoReturnParam = errors.New("no return parameter")
	// ErrFunctionNotFound is returned when a struct has no function of a name.
	ErrFunctionNotFound = errors.New("function not found")
)

// Function is a struct denoting a callable entry point, its property list
// doubles as parameter list.
type Function struct {
	Struct
}

// FunctionFlags returns the function flags.
func (f Function) FunctionFlags() (uint32, error) {
	if f.Address == 0 {
		return 0, ErrNilObject
	}
	return memory.ReadUint32(f.model.Memory, f.Address+uintptr(f.model.Layout.Function.FunctionFlags))
}

// FindReturnParam returns the property flagged as return value.
func (f Function) FindReturnParam() (Property, error) {
	for prop, err := range f.Properties() {
		if err != nil {
			return Property{}, err
		}
		ok, err := prop.HasFlags(FlagReturnParam)
		if err != nil {
			return Property{}, err
		}
		if ok {
			return prop, nil
		}
	}
	name, _ := f.NameString()
	return Property{}, fmt.Errorf("%w: function %s", ErrNoReturnParam, name)
}

// Params iterates the parameter properties, excluding the return value.
func (f Function) Params() iter.Seq2[Property, error] {
	return func(yield func(Property, error) bool) {
		for prop, err := range f.Properties() {
			if err != nil {
				yield(Property{}, err)
				return
			}
			flags, err := prop.Flags()
			if err != nil {
				yield(Property{}, err)
				return
			}
			if flags&FlagParam == 0 || flags&FlagReturnParam != 0 {
				continue
			}
			if !yield(prop, nil) {
				return
			}
		}
	}
}

// FindFunction returns the function with the given name declared by the
// struct or one of its super structs. Names are compared case insensitive.
func (s Struct) FindFunction(name string) (Function, error) {
	for st, err := range s.Supers() {
		if err != nil {
			return Function{}, err
		}
		for field, err := range st.Fields() {
			if err != nil {
				return Function{}, err
			}
			className, err := field.ClassName()
			if err != nil {
				return Function{}, err
			}
			if className != "Function" {
				continue
			}
			fieldName, err := field.NameString()
			if err != nil {
				return Function{}, err
			}
			if strings.EqualFold(fieldName, name) {
				return s.model.Function(field.Address), nil
			}
		}
	}
	return Function{}, fmt.Errorf("%w: %s.%s", ErrFunctionNotFound, s, name)
}
