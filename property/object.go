package property

import (
	"fmt"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/names"
	"github.com/retroenv/retrohook/reflection"
)

type nameKind struct{}

func (nameKind) Get(a *Access, _ reflection.Property, address uintptr) (any, error) {
	return names.Read(a.Memory(), address)
}

func (nameKind) Set(a *Access, _ reflection.Property, address uintptr, value any) error {
	n, ok := value.(names.Name)
	if !ok {
		return mismatch(n, value)
	}
	return names.Write(a.Memory(), address, n)
}

func (nameKind) Destroy(*Access, reflection.Property, uintptr) error {
	return nil
}

// objectKind accesses object references. Stored objects must be instances of
// the property class, for class properties the stored value is a class.
type objectKind struct{}

func (objectKind) Get(a *Access, _ reflection.Property, address uintptr) (any, error) {
	pointer, err := memory.ReadPointer(a.Memory(), address)
	if err != nil {
		return nil, err
	}
	return a.model.Object(pointer), nil
}

func (objectKind) Set(a *Access, prop reflection.Property, address uintptr, value any) error {
	obj, ok := value.(reflection.Object)
	if !ok {
		return mismatch(obj, value)
	}

	if !obj.IsNil() {
		class, err := prop.PropertyClass()
		if err != nil {
			return err
		}
		if !class.IsNil() {
			ok, err := obj.IsA(class)
			if err != nil {
				return fmt.Errorf("checking object class: %w", err)
			}
			if !ok {
				className, _ := class.NameString()
				return fmt.Errorf("%w: object %s is not a %s", ErrTypeMismatch, obj, className)
			}
		}
	}
	return memory.WritePointer(a.Memory(), address, obj.Address)
}

func (objectKind) Destroy(*Access, reflection.Property, uintptr) error {
	return nil
}

// enumKind delegates to the integer property the enum is stored as.
type enumKind struct{}

func (enumKind) Get(a *Access, prop reflection.Property, address uintptr) (any, error) {
	underlying, err := prop.Underlying()
	if err != nil {
		return nil, err
	}
	return a.Get(underlying, address)
}

func (enumKind) Set(a *Access, prop reflection.Property, address uintptr, value any) error {
	underlying, err := prop.Underlying()
	if err != nil {
		return err
	}
	return a.Set(underlying, address, value)
}

func (enumKind) Destroy(*Access, reflection.Property, uintptr) error {
	return nil
}
