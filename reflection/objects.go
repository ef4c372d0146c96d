package reflection

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/retroenv/retrohook/memory"
)

// ErrObjectNotFound is returned when no object matches a lookup.
var ErrObjectNotFound = errors.New("object not found")

// Objects is the engine's global object table.
type Objects struct {
	model   *Model
	address uintptr
}

// NewObjects returns a view of the object table located at address.
func NewObjects(model *Model, address uintptr) *Objects {
	return &Objects{
		model:   model,
		address: address,
	}
}

// Len returns the number of slots in the table, including empty ones.
func (t *Objects) Len() (int, error) {
	v, err := memory.ReadInt32(t.model.Memory, t.address+uintptr(t.model.Layout.Array.Count))
	return int(v), err
}

// At returns the object in the given slot, it may be nil for freed slots.
func (t *Objects) At(index int) (Object, error) {
	count, err := t.Len()
	if err != nil {
		return Object{}, err
	}
	if index < 0 || index >= count {
		return Object{}, fmt.Errorf("object index %d out of range [0, %d)", index, count)
	}

	data, err := memory.ReadPointer(t.model.Memory, t.address+uintptr(t.model.Layout.Array.Data))
	if err != nil {
		return Object{}, err
	}
	l := t.model.Layout.ObjectTable
	address, err := memory.ReadPointer(t.model.Memory, data+uintptr(index*l.Stride+l.ObjectOffset))
	if err != nil {
		return Object{}, err
	}
	return t.model.Object(address), nil
}

// All iterates all live objects of the table.
func (t *Objects) All() iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		count, err := t.Len()
		if err != nil {
			yield(Object{}, err)
			return
		}
		for i := range count {
			obj, err := t.At(i)
			if err != nil {
				yield(Object{}, err)
				return
			}
			if obj.IsNil() {
				continue
			}
			if !yield(obj, nil) {
				return
			}
		}
	}
}

// Find returns the object of the given class with the given path name. Both
// comparisons are case insensitive.
func (t *Objects) Find(className, path string) (Object, error) {
	for obj, err := range t.All() {
		if err != nil {
			return Object{}, err
		}
		name, err := obj.ClassName()
		if err != nil || !strings.EqualFold(name, className) {
			continue
		}
		objPath, err := obj.PathName()
		if err != nil {
			continue
		}
		if strings.EqualFold(objPath, path) {
			return obj, nil
		}
	}
	return Object{}, fmt.Errorf("%w: %s'%s'", ErrObjectNotFound, className, path)
}

// FindClass returns the class with the given name.
func (t *Objects) FindClass(name string) (Struct, error) {
	for obj, err := range t.All() {
		if err != nil {
			return Struct{}, err
		}
		className, err := obj.ClassName()
		if err != nil || className != "Class" {
			continue
		}
		objName, err := obj.NameString()
		if err != nil {
			continue
		}
		if strings.EqualFold(objName, name) {
			return t.model.Struct(obj.Address), nil
		}
	}
	return Struct{}, fmt.Errorf("%w: class '%s'", ErrObjectNotFound, name)
}
