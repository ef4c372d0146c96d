// Package reflection wraps the engine's reflected metadata: objects, classes,
// structs, properties and functions. Every entity is a view of engine owned
// memory that is read through the active layout, nothing is cached or owned.
package reflection

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/names"
)

// ErrNilObject is returned when a nil object is dereferenced.
var ErrNilObject = errors.New("nil object")

// Model binds the engine memory, its layout and name table.
type Model struct {
	Memory memory.Memory
	Layout *layout.Layout
	Names  *names.Table
}

// NewModel returns a new reflection model.
func NewModel(mem memory.Memory, l *layout.Layout, nameTable *names.Table) *Model {
	return &Model{
		Memory: mem,
		Layout: l,
		Names:  nameTable,
	}
}

// Object returns a view of the object at address.
func (m *Model) Object(address uintptr) Object {
	return Object{model: m, Address: address}
}

// Struct returns a view of the struct at address.
func (m *Model) Struct(address uintptr) Struct {
	return Struct{Object: m.Object(address)}
}

// Property returns a view of the property at address.
func (m *Model) Property(address uintptr) Property {
	return Property{Object: m.Object(address)}
}

// Function returns a view of the function at address.
func (m *Model) Function(address uintptr) Function {
	return Function{Struct: m.Struct(address)}
}

// Object is an engine owned object with a discoverable class.
type Object struct {
	model   *Model
	Address uintptr
}

// Model returns the model the object is read through.
func (o Object) Model() *Model {
	return o.model
}

// IsNil returns whether the object is a nil pointer.
func (o Object) IsNil() bool {
	return o.Address == 0
}

func (o Object) pointer(offset int) (uintptr, error) {
	if o.Address == 0 {
		return 0, ErrNilObject
	}
	return memory.ReadPointer(o.model.Memory, o.Address+uintptr(offset))
}

func (o Object) int32(offset int) (int32, error) {
	if o.Address == 0 {
		return 0, ErrNilObject
	}
	return memory.ReadInt32(o.model.Memory, o.Address+uintptr(offset))
}

// Class returns the class of the object.
func (o Object) Class() (Struct, error) {
	address, err := o.pointer(o.model.Layout.Object.Class)
	if err != nil {
		return Struct{}, fmt.Errorf("reading class: %w", err)
	}
	return o.model.Struct(address), nil
}

// Outer returns the object that contains this object.
func (o Object) Outer() (Object, error) {
	address, err := o.pointer(o.model.Layout.Object.Outer)
	if err != nil {
		return Object{}, fmt.Errorf("reading outer: %w", err)
	}
	return o.model.Object(address), nil
}

// Name returns the name of the object.
func (o Object) Name() (names.Name, error) {
	if o.Address == 0 {
		return names.None, ErrNilObject
	}
	return names.Read(o.model.Memory, o.Address+uintptr(o.model.Layout.Object.Name))
}

// NameString returns the resolved name of the object.
func (o Object) NameString() (string, error) {
	n, err := o.Name()
	if err != nil {
		return "", err
	}
	return o.model.Names.String(n)
}

// ClassName returns the name of the object's class.
func (o Object) ClassName() (string, error) {
	class, err := o.Class()
	if err != nil {
		return "", err
	}
	return class.NameString()
}

// PathName returns the full path of the object, the names of all outers
// joined by '.'. A ':' separates subobjects of objects directly inside a
// package.
func (o Object) PathName() (string, error) {
	name, err := o.NameString()
	if err != nil {
		return "", err
	}
	outer, err := o.Outer()
	if err != nil {
		return "", err
	}
	if outer.IsNil() {
		return name, nil
	}

	outerPath, err := outer.PathName()
	if err != nil {
		return "", err
	}

	separator := "."
	outerClass, err := outer.ClassName()
	if err != nil {
		return "", err
	}
	if outerClass != "Package" {
		outerOuter, err := outer.Outer()
		if err != nil {
			return "", err
		}
		if !outerOuter.IsNil() {
			outerOuterClass, err := outerOuter.ClassName()
			if err != nil {
				return "", err
			}
			if outerOuterClass == "Package" {
				separator = ":"
			}
		}
	}
	return outerPath + separator + name, nil
}

// IsA returns whether the object's class is or inherits from class.
func (o Object) IsA(class Struct) (bool, error) {
	own, err := o.Class()
	if err != nil {
		return false, err
	}
	return own.Inherits(class)
}

// String returns a short description for logging.
func (o Object) String() string {
	if o.Address == 0 {
		return "None"
	}
	path, err := o.PathName()
	if err != nil {
		return fmt.Sprintf("0x%X", o.Address)
	}
	return path
}
