// Package layout contains the per engine generation memory layouts of the
// reflected engine structures. All values are byte offsets relative to the
// start of the structure they describe.
package layout

import (
	"fmt"
	"strings"
)

// Generation identifies the engine generation a layout belongs to.
type Generation string

// Supported engine generations.
const (
	UE3 Generation = "ue3"
	UE4 Generation = "ue4"
)

// NotPresent marks a field that does not exist in a generation.
const NotPresent = -1

// Object describes UObject.
type Object struct {
	Outer int
	Name  int
	Class int
}

// Field describes UField.
type Field struct {
	Next int
}

// Struct describes UStruct.
type Struct struct {
	SuperField   int
	Children     int
	PropertySize int
	// PropertySizeWidth is the width in bytes of the property size field.
	PropertySizeWidth int
	// MinAlignment is NotPresent for generations without declared alignment.
	MinAlignment int
	PropertyLink int
}

// Function describes UFunction.
type Function struct {
	FunctionFlags int
}

// Property describes UProperty and the kind specific fields of its subclasses.
type Property struct {
	ArrayDim         int
	ElementSize      int
	PropertyFlags    int
	Offset           int
	PropertyLinkNext int

	BoolFieldMask  int // UE3: 32 bit mask
	BoolFieldSize  int // UE4: FieldSize, ByteOffset, ByteMask, FieldMask bytes follow
	ArrayInner     int
	StructStruct   int
	ObjectClass    int
	ClassMeta      int
	ByteEnum       int
	EnumUnderlying int
}

// Name describes FName and the entries of the name table.
type Name struct {
	Size int
	// EntryIndex holds the entry index, its lowest bit marks wide entries.
	EntryIndex int
	EntryName  int
	// MaxLength bounds name reads of corrupt entries.
	MaxLength int
}

// Frame describes FFrame and FOutParamRec.
type Frame struct {
	Node          int
	Object        int
	Code          int
	Locals        int
	PreviousFrame int
	OutParams     int

	OutParamProperty int
	OutParamAddress  int
	OutParamNext     int
}

// Array describes TArray.
type Array struct {
	Data  int
	Count int
	Max   int
	Size  int
}

// ObjectTable describes the global object table.
type ObjectTable struct {
	// Stride is the distance between two entries of the table.
	Stride int
	// ObjectOffset is the offset of the object pointer inside an entry.
	ObjectOffset int
}

// Layout contains all offsets for one engine generation.
type Layout struct {
	Generation Generation

	Object      Object
	Field       Field
	Struct      Struct
	Function    Function
	Property    Property
	Name        Name
	Frame       Frame
	Array       Array
	ObjectTable ObjectTable
}

// IsUE4 returns whether the layout uses the UE4 structure variants.
func (l *Layout) IsUE4() bool {
	return l.Generation == UE4
}

// ForGeneration returns the layout of the given generation name.
func ForGeneration(name string) (*Layout, error) {
	switch Generation(strings.ToLower(name)) {
	case UE3:
		return UE3Layout(), nil
	case UE4:
		return UE4Layout(), nil
	default:
		return nil, fmt.Errorf("unsupported engine generation '%s'. Valid options: %s, %s", name, UE3, UE4)
	}
}

var tarray = Array{
	Data:  0x00,
	Count: 0x08,
	Max:   0x0C,
	Size:  0x10,
}

// UE3Layout returns the layout of 64 bit Unreal Engine 3 builds.
func UE3Layout() *Layout {
	return &Layout{
		Generation: UE3,
		Object: Object{
			Outer: 0x40,
			Name:  0x48,
			Class: 0x50,
		},
		Field: Field{
			Next: 0x60,
		},
		Struct: Struct{
			SuperField:        0x70,
			Children:          0x78,
			PropertySize:      0x80,
			PropertySizeWidth: 2,
			MinAlignment:      NotPresent,
			PropertyLink:      0xA0,
		},
		Function: Function{
			FunctionFlags: 0xC8,
		},
		Property: Property{
			ArrayDim:         0x68,
			ElementSize:      0x6C,
			PropertyFlags:    0x70,
			Offset:           0x8C,
			PropertyLinkNext: 0x90,

			BoolFieldMask:  0xB0,
			BoolFieldSize:  NotPresent,
			ArrayInner:     0xB0,
			StructStruct:   0xB0,
			ObjectClass:    0xB0,
			ClassMeta:      0xB8,
			ByteEnum:       0xB0,
			EnumUnderlying: NotPresent,
		},
		Name: Name{
			Size:       0x08,
			EntryIndex: 0x08,
			EntryName:  0x18,
			MaxLength:  0x400,
		},
		Frame: Frame{
			Node:          0x14,
			Object:        0x1C,
			Code:          0x24,
			Locals:        0x2C,
			PreviousFrame: 0x34,
			OutParams:     0x3C,

			OutParamProperty: 0x00,
			OutParamAddress:  0x08,
			OutParamNext:     0x10,
		},
		Array: tarray,
		ObjectTable: ObjectTable{
			Stride:       0x08,
			ObjectOffset: 0x00,
		},
	}
}

// UE4Layout returns the layout of 64 bit Unreal Engine 4 builds.
func UE4Layout() *Layout {
	return &Layout{
		Generation: UE4,
		Object: Object{
			Class: 0x10,
			Name:  0x18,
			Outer: 0x20,
		},
		Field: Field{
			Next: 0x28,
		},
		Struct: Struct{
			SuperField:        0x30,
			Children:          0x38,
			PropertySize:      0x40,
			PropertySizeWidth: 4,
			MinAlignment:      0x44,
			PropertyLink:      0x58,
		},
		Function: Function{
			FunctionFlags: 0x88,
		},
		Property: Property{
			ArrayDim:         0x30,
			ElementSize:      0x34,
			PropertyFlags:    0x38,
			Offset:           0x44,
			PropertyLinkNext: 0x50,

			BoolFieldMask:  NotPresent,
			BoolFieldSize:  0x70,
			ArrayInner:     0x70,
			StructStruct:   0x70,
			ObjectClass:    0x70,
			ClassMeta:      0x78,
			ByteEnum:       0x70,
			EnumUnderlying: 0x70,
		},
		Name: Name{
			Size:       0x08,
			EntryIndex: 0x00,
			EntryName:  0x10,
			MaxLength:  0x400,
		},
		Frame: Frame{
			Node:          0x10,
			Object:        0x18,
			Code:          0x20,
			Locals:        0x28,
			PreviousFrame: 0x40,
			OutParams:     0x48,

			OutParamProperty: 0x00,
			OutParamAddress:  0x08,
			OutParamNext:     0x10,
		},
		Array: tarray,
		ObjectTable: ObjectTable{
			Stride:       0x18,
			ObjectOffset: 0x00,
		},
	}
}
