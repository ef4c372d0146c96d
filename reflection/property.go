package reflection

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrohook/memory"
)

// Property flags.
const (
	FlagParam       = 0x80
	FlagOutParam    = 0x100
	FlagReturnParam = 0x400
)

// ErrInvalidProperty is returned for property metadata that can not describe
// a valid field.
var ErrInvalidProperty = errors.New("invalid property")

// Property describes one field of a struct.
type Property struct {
	Object
}

// ArrayDim returns the fixed array dimension, at least 1.
func (p Property) ArrayDim() (int, error) {
	v, err := p.int32(p.model.Layout.Property.ArrayDim)
	return int(v), err
}

// ElementSize returns the size of a single element.
func (p Property) ElementSize() (int, error) {
	v, err := p.int32(p.model.Layout.Property.ElementSize)
	return int(v), err
}

// Offset returns the byte offset of the property inside its owning struct.
func (p Property) Offset() (uintptr, error) {
	v, err := p.int32(p.model.Layout.Property.Offset)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrInvalidProperty, v)
	}
	return uintptr(v), nil
}

// Flags returns the property flags.
func (p Property) Flags() (uint64, error) {
	if p.Address == 0 {
		return 0, ErrNilObject
	}
	return memory.ReadUint64(p.model.Memory, p.Address+uintptr(p.model.Layout.Property.PropertyFlags))
}

// HasFlags returns whether all given flags are set.
func (p Property) HasFlags(flags uint64) (bool, error) {
	v, err := p.Flags()
	if err != nil {
		return false, err
	}
	return v&flags == flags, nil
}

// Kind returns the name of the class describing the property, which selects
// the accessor for its values.
func (p Property) Kind() (string, error) {
	return p.ClassName()
}

// Inner returns the element property of an array property.
func (p Property) Inner() (Property, error) {
	address, err := p.pointer(p.model.Layout.Property.ArrayInner)
	if err != nil {
		return Property{}, fmt.Errorf("reading inner property: %w", err)
	}
	return p.model.Property(address), nil
}

// Underlying returns the integer property an enum property is stored as.
func (p Property) Underlying() (Property, error) {
	address, err := p.pointer(p.model.Layout.Property.EnumUnderlying)
	if err != nil {
		return Property{}, fmt.Errorf("reading underlying property: %w", err)
	}
	return p.model.Property(address), nil
}

// StructType returns the type of a struct property.
func (p Property) StructType() (Struct, error) {
	address, err := p.pointer(p.model.Layout.Property.StructStruct)
	if err != nil {
		return Struct{}, fmt.Errorf("reading struct type: %w", err)
	}
	return p.model.Struct(address), nil
}

// PropertyClass returns the class referenced by an object property.
func (p Property) PropertyClass() (Struct, error) {
	address, err := p.pointer(p.model.Layout.Property.ObjectClass)
	if err != nil {
		return Struct{}, fmt.Errorf("reading property class: %w", err)
	}
	return p.model.Struct(address), nil
}

// BoolFieldMask returns the 32 bit field mask of a bool property of engine
// generations storing bools as bitfields inside 32 bit values.
func (p Property) BoolFieldMask() (uint32, error) {
	if p.Address == 0 {
		return 0, ErrNilObject
	}
	return memory.ReadUint32(p.model.Memory, p.Address+uintptr(p.model.Layout.Property.BoolFieldMask))
}

// BoolMasks describes the byte based bool encoding.
type BoolMasks struct {
	FieldSize  uint8
	ByteOffset uint8
	ByteMask   uint8
	FieldMask  uint8
}

// BoolMasks returns the byte masks of a bool property of engine generations
// storing bools as bits of a dedicated byte.
func (p Property) BoolMasks() (BoolMasks, error) {
	if p.Address == 0 {
		return BoolMasks{}, ErrNilObject
	}
	buf, err := memory.Read(p.model.Memory, p.Address+uintptr(p.model.Layout.Property.BoolFieldSize), 4)
	if err != nil {
		return BoolMasks{}, err
	}
	return BoolMasks{
		FieldSize:  buf[0],
		ByteOffset: buf[1],
		ByteMask:   buf[2],
		FieldMask:  buf[3],
	}, nil
}
