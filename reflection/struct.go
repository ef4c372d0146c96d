package reflection

import (
	"errors"
	"fmt"
	"iter"

	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/names"
)

// ErrPropertyNotFound is returned when a struct has no property of a name.
var ErrPropertyNotFound = errors.New("property not found")

// Struct describes the properties of a type. Classes, script structs and
// functions are all structs.
type Struct struct {
	Object
}

// SuperField returns the struct this struct inherits from, it is nil for
// base types.
func (s Struct) SuperField() (Struct, error) {
	address, err := s.pointer(s.model.Layout.Struct.SuperField)
	if err != nil {
		return Struct{}, fmt.Errorf("reading super field: %w", err)
	}
	return s.model.Struct(address), nil
}

// PropertySize returns the size of all properties, excluding alignment padding.
func (s Struct) PropertySize() (int, error) {
	if s.Address == 0 {
		return 0, ErrNilObject
	}
	l := s.model.Layout.Struct
	address := s.Address + uintptr(l.PropertySize)
	if l.PropertySizeWidth == 2 {
		v, err := memory.ReadUint16(s.model.Memory, address)
		return int(v), err
	}
	v, err := memory.ReadInt32(s.model.Memory, address)
	return int(v), err
}

// MinAlignment returns the declared minimum alignment of the struct. Engine
// generations without the field align to 1.
func (s Struct) MinAlignment() (int, error) {
	offset := s.model.Layout.Struct.MinAlignment
	if offset == layout.NotPresent {
		return 1, nil
	}
	v, err := s.int32(offset)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 1, nil
	}
	return int(v), nil
}

// StructSize returns the size that must be allocated for an instance, the
// property size rounded up to the minimum alignment.
func (s Struct) StructSize() (int, error) {
	size, err := s.PropertySize()
	if err != nil {
		return 0, fmt.Errorf("reading property size: %w", err)
	}
	alignment, err := s.MinAlignment()
	if err != nil {
		return 0, fmt.Errorf("reading min alignment: %w", err)
	}
	return (size + alignment - 1) / alignment * alignment, nil
}

// Properties iterates the struct's own property link list, most derived
// first. Inherited properties are reached by walking Supers explicitly.
func (s Struct) Properties() iter.Seq2[Property, error] {
	return func(yield func(Property, error) bool) {
		address, err := s.pointer(s.model.Layout.Struct.PropertyLink)
		if err != nil {
			yield(Property{}, fmt.Errorf("reading property link: %w", err))
			return
		}
		for address != 0 {
			prop := s.model.Property(address)
			if !yield(prop, nil) {
				return
			}
			address, err = prop.pointer(s.model.Layout.Property.PropertyLinkNext)
			if err != nil {
				yield(Property{}, fmt.Errorf("reading next property: %w", err))
				return
			}
		}
	}
}

// Fields iterates the struct's children list, containing properties and
// functions.
func (s Struct) Fields() iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		address, err := s.pointer(s.model.Layout.Struct.Children)
		if err != nil {
			yield(Object{}, fmt.Errorf("reading children: %w", err))
			return
		}
		for address != 0 {
			field := s.model.Object(address)
			if !yield(field, nil) {
				return
			}
			address, err = field.pointer(s.model.Layout.Field.Next)
			if err != nil {
				yield(Object{}, fmt.Errorf("reading next field: %w", err))
				return
			}
		}
	}
}

// Supers iterates the struct followed by all structs it inherits from.
func (s Struct) Supers() iter.Seq2[Struct, error] {
	return func(yield func(Struct, error) bool) {
		current := s
		for !current.IsNil() {
			if !yield(current, nil) {
				return
			}
			next, err := current.SuperField()
			if err != nil {
				yield(Struct{}, err)
				return
			}
			current = next
		}
	}
}

// Inherits returns whether the struct is base or inherits from it.
func (s Struct) Inherits(base Struct) (bool, error) {
	for st, err := range s.Supers() {
		if err != nil {
			return false, err
		}
		if st.Address == base.Address {
			return true, nil
		}
	}
	return false, nil
}

// FindProperty returns the property with the given name, searching the
// struct's own list first and then the lists of its super structs.
func (s Struct) FindProperty(name names.Name) (Property, error) {
	for st, err := range s.Supers() {
		if err != nil {
			return Property{}, err
		}
		for prop, err := range st.Properties() {
			if err != nil {
				return Property{}, err
			}
			n, err := prop.Name()
			if err != nil {
				return Property{}, err
			}
			if n == name {
				return prop, nil
			}
		}
	}
	return Property{}, fmt.Errorf("%w: index %d", ErrPropertyNotFound, name.Index)
}

// FindPropertyByName resolves name through the name table and returns the
// matching property.
func (s Struct) FindPropertyByName(name string) (Property, error) {
	n, err := s.model.Names.Find(name)
	if err != nil {
		return Property{}, fmt.Errorf("%w: %s: %w", ErrPropertyNotFound, name, err)
	}
	prop, err := s.FindProperty(n)
	if errors.Is(err, ErrPropertyNotFound) {
		return Property{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
	}
	return prop, err
}
