package property

import (
	"fmt"
	"iter"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/reflection"
)

// WrappedStruct gives typed access to the properties of a struct instance.
// Instances created by NewWrappedStruct own their memory, which is allocated
// through the engine allocator and released by Destroy.
type WrappedStruct struct {
	access *Access
	Type   reflection.Struct
	Base   uintptr
	owned  bool
}

// NewWrappedStruct allocates a zeroed instance of the given type.
func NewWrappedStruct(a *Access, typ reflection.Struct) (*WrappedStruct, error) {
	size, err := typ.StructSize()
	if err != nil {
		return nil, fmt.Errorf("reading struct size: %w", err)
	}
	base, err := a.alloc.Malloc(size)
	if err != nil {
		return nil, fmt.Errorf("allocating struct: %w", err)
	}
	if err := memory.Zero(a.Memory(), base, size); err != nil {
		_ = a.alloc.Free(base)
		return nil, err
	}
	return &WrappedStruct{
		access: a,
		Type:   typ,
		Base:   base,
		owned:  true,
	}, nil
}

// Wrap returns a view of the struct instance at base, the memory stays owned
// by the caller.
func Wrap(a *Access, typ reflection.Struct, base uintptr) *WrappedStruct {
	return &WrappedStruct{
		access: a,
		Type:   typ,
		Base:   base,
	}
}

// Access returns the property accessor of the struct.
func (ws *WrappedStruct) Access() *Access {
	return ws.access
}

// Owned returns whether the struct memory is owned by the wrapper.
func (ws *WrappedStruct) Owned() bool {
	return ws.owned
}

// Size returns the size of the struct instance.
func (ws *WrappedStruct) Size() (int, error) {
	return ws.Type.StructSize()
}

// Property returns the property with the given name, inherited properties
// included.
func (ws *WrappedStruct) Property(name string) (reflection.Property, error) {
	return ws.Type.FindPropertyByName(name)
}

// Get returns the value of the named property.
func (ws *WrappedStruct) Get(name string) (any, error) {
	return ws.GetIndex(name, 0)
}

// GetIndex returns the fixed array element idx of the named property.
func (ws *WrappedStruct) GetIndex(name string, idx int) (any, error) {
	prop, err := ws.Property(name)
	if err != nil {
		return nil, err
	}
	return ws.access.GetProperty(prop, idx, ws.Base)
}

// Set stores the value of the named property.
func (ws *WrappedStruct) Set(name string, value any) error {
	return ws.SetIndex(name, 0, value)
}

// SetIndex stores the fixed array element idx of the named property.
func (ws *WrappedStruct) SetIndex(name string, idx int, value any) error {
	prop, err := ws.Property(name)
	if err != nil {
		return err
	}
	return ws.access.SetProperty(prop, idx, ws.Base, value)
}

// Value returns the named property of the struct as a value of type T.
func Value[T any](ws *WrappedStruct, name string) (T, error) {
	var zero T
	prop, err := ws.Property(name)
	if err != nil {
		return zero, err
	}
	return Get[T](ws.access, prop, 0, ws.Base)
}

// properties iterates all properties including the inherited ones. The
// super of a function is the function it overrides, which declares the same
// parameters, so functions only use their own list.
func (ws *WrappedStruct) properties() iter.Seq2[reflection.Property, error] {
	return func(yield func(reflection.Property, error) bool) {
		className, err := ws.Type.ClassName()
		if err != nil {
			yield(reflection.Property{}, err)
			return
		}
		for st, err := range ws.Type.Supers() {
			if err != nil {
				yield(reflection.Property{}, err)
				return
			}
			for prop, err := range st.Properties() {
				if !yield(prop, err) || err != nil {
					return
				}
			}
			if className == "Function" {
				return
			}
		}
	}
}

// Assign deep copies all properties of src, which must be of the same type.
func (ws *WrappedStruct) Assign(src *WrappedStruct) error {
	return ws.assign(src, 0)
}

// AssignParams deep copies the parameter properties of src, which must be of
// the same function type.
func (ws *WrappedStruct) AssignParams(src *WrappedStruct) error {
	return ws.assign(src, reflection.FlagParam)
}

func (ws *WrappedStruct) assign(src *WrappedStruct, flags uint64) error {
	if src.Type.Address != ws.Type.Address {
		return fmt.Errorf("%w: struct %s assigned to struct %s", ErrTypeMismatch, src.Type, ws.Type)
	}
	if src.Base == ws.Base {
		return nil
	}

	for prop, err := range ws.properties() {
		if err != nil {
			return err
		}
		if flags != 0 {
			ok, err := prop.HasFlags(flags)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		if err := ws.assignProperty(src, prop); err != nil {
			name, _ := prop.NameString()
			return fmt.Errorf("copying property %s: %w", name, err)
		}
	}
	return nil
}

func (ws *WrappedStruct) assignProperty(src *WrappedStruct, prop reflection.Property) error {
	dim, err := prop.ArrayDim()
	if err != nil {
		return err
	}
	for idx := range dim {
		value, err := ws.access.GetProperty(prop, idx, src.Base)
		if err != nil {
			return err
		}
		if err := ws.access.SetProperty(prop, idx, ws.Base, value); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns an owned deep copy of the struct.
func (ws *WrappedStruct) Copy() (*WrappedStruct, error) {
	return ws.copy(0)
}

// CopyParamsOnly returns an owned copy containing only deep copies of the
// parameter properties, all other properties are zero.
func (ws *WrappedStruct) CopyParamsOnly() (*WrappedStruct, error) {
	return ws.copy(reflection.FlagParam)
}

func (ws *WrappedStruct) copy(flags uint64) (*WrappedStruct, error) {
	c, err := NewWrappedStruct(ws.access, ws.Type)
	if err != nil {
		return nil, err
	}
	if err := c.assign(ws, flags); err != nil {
		_ = c.Destroy()
		return nil, err
	}
	return c, nil
}

// Snapshot returns the values of all properties as plain values, arrays and
// nested structs are expanded recursively. Snapshots of instances holding
// equal values are deeply equal.
func (ws *WrappedStruct) Snapshot() ([]any, error) {
	var values []any
	for prop, err := range ws.properties() {
		if err != nil {
			return nil, err
		}
		dim, err := prop.ArrayDim()
		if err != nil {
			return nil, err
		}
		for idx := range dim {
			value, err := ws.access.GetProperty(prop, idx, ws.Base)
			if err != nil {
				return nil, err
			}
			value, err = snapshotValue(value)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
	}
	return values, nil
}

func snapshotValue(value any) (any, error) {
	switch v := value.(type) {
	case *WrappedStruct:
		return v.Snapshot()
	case *Array:
		n, err := v.Len()
		if err != nil {
			return nil, err
		}
		elements := make([]any, 0, n)
		for i := range n {
			element, err := v.Get(i)
			if err != nil {
				return nil, err
			}
			element, err = snapshotValue(element)
			if err != nil {
				return nil, err
			}
			elements = append(elements, element)
		}
		return elements, nil
	case reflection.Object:
		return v.Address, nil
	default:
		return value, nil
	}
}

// Bytes returns the raw bytes of the struct instance.
func (ws *WrappedStruct) Bytes() ([]byte, error) {
	size, err := ws.Size()
	if err != nil {
		return nil, err
	}
	return memory.Read(ws.access.Memory(), ws.Base, size)
}

// CopyTo copies the raw bytes of the struct to address.
func (ws *WrappedStruct) CopyTo(address uintptr) error {
	size, err := ws.Size()
	if err != nil {
		return err
	}
	return memory.Copy(ws.access.Memory(), address, ws.Base, size)
}

// CopyFrom overwrites the struct with the raw bytes at address.
func (ws *WrappedStruct) CopyFrom(address uintptr) error {
	size, err := ws.Size()
	if err != nil {
		return err
	}
	return memory.Copy(ws.access.Memory(), ws.Base, address, size)
}

// Destroy destroys all properties. Owned memory is freed and the wrapper
// must not be used afterwards.
func (ws *WrappedStruct) Destroy() error {
	if ws.Base == 0 {
		return nil
	}
	for prop, err := range ws.properties() {
		if err != nil {
			return err
		}
		dim, err := prop.ArrayDim()
		if err != nil {
			return err
		}
		for idx := range dim {
			if err := ws.access.DestroyProperty(prop, idx, ws.Base); err != nil {
				return err
			}
		}
	}

	if !ws.owned {
		return nil
	}
	if err := ws.access.alloc.Free(ws.Base); err != nil {
		return fmt.Errorf("freeing struct: %w", err)
	}
	ws.Base = 0
	return nil
}

type structKind struct{}

func (structKind) Get(a *Access, prop reflection.Property, address uintptr) (any, error) {
	typ, err := prop.StructType()
	if err != nil {
		return nil, err
	}
	return Wrap(a, typ, address), nil
}

func (structKind) Set(a *Access, prop reflection.Property, address uintptr, value any) error {
	src, ok := value.(*WrappedStruct)
	if !ok {
		return mismatch(src, value)
	}
	typ, err := prop.StructType()
	if err != nil {
		return err
	}
	return Wrap(a, typ, address).Assign(src)
}

func (structKind) Destroy(a *Access, prop reflection.Property, address uintptr) error {
	typ, err := prop.StructType()
	if err != nil {
		return err
	}
	return Wrap(a, typ, address).Destroy()
}
