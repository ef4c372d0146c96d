// Package property implements typed access to reflected property values.
// Each property kind is identified by the name of its describing class and
// interprets the raw bytes at an address according to the engine's encoding
// of that kind.
package property

import (
	"errors"
	"fmt"
	"sync"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/reflection"
)

var (
	// ErrOutOfRange is returned for fixed array indices beyond the array dimension.
	ErrOutOfRange = errors.New("property index out of range")
	// ErrTypeMismatch is returned when a value does not match the property kind.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownKind is returned for properties whose class has no accessor.
	ErrUnknownKind = errors.New("unknown property kind")
)

// Kind reads and writes values of one property kind.
type Kind interface {
	// Get returns the value stored at address.
	Get(a *Access, prop reflection.Property, address uintptr) (any, error)
	// Set stores value at address.
	Set(a *Access, prop reflection.Property, address uintptr, value any) error
	// Destroy releases auxiliary allocations owned by the value at address.
	Destroy(a *Access, prop reflection.Property, address uintptr) error
}

// Access dispatches property accesses to the kind accessors. It owns no
// memory, allocations are only done through the engine allocator by kinds
// that hold auxiliary buffers.
type Access struct {
	model *reflection.Model
	alloc memory.Allocator

	mu    sync.RWMutex
	kinds map[string]Kind
	cache map[uintptr]Kind // property class address to kind
}

// New returns a property accessor with all built in kinds registered.
func New(model *reflection.Model, alloc memory.Allocator) *Access {
	a := &Access{
		model: model,
		alloc: alloc,
		kinds: make(map[string]Kind),
		cache: make(map[uintptr]Kind),
	}

	a.Register("ByteProperty", numeric[uint8]{})
	a.Register("Int8Property", numeric[int8]{})
	a.Register("Int16Property", numeric[int16]{})
	a.Register("IntProperty", numeric[int32]{})
	a.Register("Int64Property", numeric[int64]{})
	a.Register("UInt16Property", numeric[uint16]{})
	a.Register("UInt32Property", numeric[uint32]{})
	a.Register("UInt64Property", numeric[uint64]{})
	a.Register("FloatProperty", numeric[float32]{})
	a.Register("DoubleProperty", numeric[float64]{})
	a.Register("BoolProperty", boolKind{})
	a.Register("StrProperty", strKind{})
	a.Register("NameProperty", nameKind{})
	a.Register("ObjectProperty", objectKind{})
	a.Register("ClassProperty", objectKind{})
	a.Register("ArrayProperty", arrayKind{})
	a.Register("StructProperty", structKind{})
	a.Register("EnumProperty", enumKind{})
	return a
}

// Model returns the reflection model used to read property metadata.
func (a *Access) Model() *reflection.Model {
	return a.model
}

// Memory returns the engine memory.
func (a *Access) Memory() memory.Memory {
	return a.model.Memory
}

// Allocator returns the engine allocator.
func (a *Access) Allocator() memory.Allocator {
	return a.alloc
}

// Register sets the accessor for properties described by the class with the
// given name, replacing any previous accessor.
func (a *Access) Register(className string, kind Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kinds[className] = kind
	clear(a.cache)
}

// Kind returns the accessor of the property.
func (a *Access) Kind(prop reflection.Property) (Kind, error) {
	class, err := prop.Class()
	if err != nil {
		return nil, fmt.Errorf("reading property class: %w", err)
	}

	a.mu.RLock()
	kind, ok := a.cache[class.Address]
	a.mu.RUnlock()
	if ok {
		return kind, nil
	}

	name, err := class.NameString()
	if err != nil {
		return nil, fmt.Errorf("reading property class name: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	kind, ok = a.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	a.cache[class.Address] = kind
	return kind, nil
}

// Get returns the value of the property stored at address.
func (a *Access) Get(prop reflection.Property, address uintptr) (any, error) {
	kind, err := a.Kind(prop)
	if err != nil {
		return nil, err
	}
	return kind.Get(a, prop, address)
}

// Set stores the value of the property at address.
func (a *Access) Set(prop reflection.Property, address uintptr, value any) error {
	kind, err := a.Kind(prop)
	if err != nil {
		return err
	}
	return kind.Set(a, prop, address, value)
}

// Destroy releases the auxiliary allocations of the property value at address.
func (a *Access) Destroy(prop reflection.Property, address uintptr) error {
	kind, err := a.Kind(prop)
	if err != nil {
		return err
	}
	return kind.Destroy(a, prop, address)
}

// Address returns the address of the fixed array element idx of the property
// inside the struct instance at base.
func (a *Access) Address(prop reflection.Property, idx int, base uintptr) (uintptr, error) {
	dim, err := prop.ArrayDim()
	if err != nil {
		return 0, fmt.Errorf("reading array dimension: %w", err)
	}
	if idx < 0 || idx >= dim {
		return 0, fmt.Errorf("%w: index %d, array dimension %d", ErrOutOfRange, idx, dim)
	}
	offset, err := prop.Offset()
	if err != nil {
		return 0, fmt.Errorf("reading offset: %w", err)
	}
	size, err := prop.ElementSize()
	if err != nil {
		return 0, fmt.Errorf("reading element size: %w", err)
	}
	return base + offset + uintptr(idx*size), nil
}

// GetProperty returns the fixed array element idx of the property inside
// the struct instance at base.
func (a *Access) GetProperty(prop reflection.Property, idx int, base uintptr) (any, error) {
	address, err := a.Address(prop, idx, base)
	if err != nil {
		return nil, err
	}
	return a.Get(prop, address)
}

// SetProperty stores the fixed array element idx of the property inside the
// struct instance at base.
func (a *Access) SetProperty(prop reflection.Property, idx int, base uintptr, value any) error {
	address, err := a.Address(prop, idx, base)
	if err != nil {
		return err
	}
	return a.Set(prop, address, value)
}

// DestroyProperty destroys the fixed array element idx of the property
// inside the struct instance at base.
func (a *Access) DestroyProperty(prop reflection.Property, idx int, base uintptr) error {
	address, err := a.Address(prop, idx, base)
	if err != nil {
		return err
	}
	return a.Destroy(prop, address)
}

// Get returns the fixed array element idx of the property as a value of
// type T.
func Get[T any](a *Access, prop reflection.Property, idx int, base uintptr) (T, error) {
	var zero T
	value, err := a.GetProperty(prop, idx, base)
	if err != nil {
		return zero, err
	}
	v, ok := value.(T)
	if !ok {
		return zero, mismatch(zero, value)
	}
	return v, nil
}

// Set stores a value of type T as fixed array element idx of the property.
func Set[T any](a *Access, prop reflection.Property, idx int, base uintptr, value T) error {
	return a.SetProperty(prop, idx, base, value)
}

func mismatch(expected, value any) error {
	return fmt.Errorf("%w: expected %T, got %T", ErrTypeMismatch, expected, value)
}
