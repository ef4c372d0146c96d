package mocks

import (
	"fmt"

	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
)

// Property flags used by the generated functions.
const (
	FlagParam  = 0x80
	FlagOut    = 0x100
	FlagReturn = 0x400
)

const (
	arenaBase     = 0x10000000
	arenaSize     = 0x400000
	tableCapacity = 0x1000
	objectSize    = 0x100
)

// PropertyDef describes a property of a generated struct or function.
type PropertyDef struct {
	Name     string
	Kind     string // describing class name, for example "IntProperty"
	Size     int    // element size, defaults by kind
	ArrayDim int    // defaults to 1
	Flags    uint64

	Inner         *PropertyDef // ArrayProperty element, EnumProperty underlying
	Struct        uintptr      // StructProperty type
	PropertyClass uintptr      // ObjectProperty and ClassProperty class
}

// Engine lays out reflected engine structures inside an arena, the way a
// running engine would hold them in its heap.
type Engine struct {
	Layout *layout.Layout
	Arena  *memory.Arena

	// Names is the address of the name table array.
	Names uintptr
	// Objects is the address of the object table array.
	Objects uintptr

	names   map[string]int32
	classes map[string]uintptr
}

// NewEngine returns an emulated engine using the given layout.
func NewEngine(l *layout.Layout) *Engine {
	e := &Engine{
		Layout:  l,
		Arena:   memory.NewArena("heap", arenaBase, arenaSize),
		names:   make(map[string]int32),
		classes: make(map[string]uintptr),
	}
	e.Names = e.newArray(memory.PointerSize)
	e.Objects = e.newArray(l.ObjectTable.Stride)
	e.Name("None")
	return e
}

func (e *Engine) newArray(stride int) uintptr {
	header := e.Alloc(e.Layout.Array.Size)
	data := e.Alloc(stride * tableCapacity)
	e.mustWrite(memory.WritePointer(e.Arena, header+uintptr(e.Layout.Array.Data), data))
	e.mustWrite(memory.WriteInt32(e.Arena, header+uintptr(e.Layout.Array.Max), tableCapacity))
	return header
}

// Alloc allocates zeroed memory in the engine heap.
func (e *Engine) Alloc(size int) uintptr {
	address, err := e.Arena.Malloc(size)
	if err != nil {
		panic(err)
	}
	return address
}

func (e *Engine) mustWrite(err error) {
	if err != nil {
		panic(err)
	}
}

func (e *Engine) appendArray(array uintptr, stride int, value uintptr) int32 {
	count, err := memory.ReadInt32(e.Arena, array+uintptr(e.Layout.Array.Count))
	e.mustWrite(err)
	if count >= tableCapacity {
		panic("emulated table is full")
	}
	data, err := memory.ReadPointer(e.Arena, array+uintptr(e.Layout.Array.Data))
	e.mustWrite(err)
	e.mustWrite(memory.WritePointer(e.Arena, data+uintptr(int(count)*stride), value))
	e.mustWrite(memory.WriteInt32(e.Arena, array+uintptr(e.Layout.Array.Count), count+1))
	return count
}

// Name interns a string and returns its name table index.
func (e *Engine) Name(s string) int32 {
	return e.intern(s, false)
}

// WideName interns a string stored as a wide entry.
func (e *Engine) WideName(s string) int32 {
	return e.intern(s, true)
}

func (e *Engine) intern(s string, wide bool) int32 {
	if index, ok := e.names[s]; ok {
		return index
	}

	var data []byte
	if wide {
		for _, r := range s {
			data = append(data, byte(r), byte(r>>8))
		}
		data = append(data, 0, 0)
	} else {
		data = append([]byte(s), 0)
	}

	entry := e.Alloc(e.Layout.Name.EntryName + len(data))
	e.mustWrite(e.Arena.WriteMemory(entry+uintptr(e.Layout.Name.EntryName), data))

	count, err := memory.ReadInt32(e.Arena, e.Names+uintptr(e.Layout.Array.Count))
	e.mustWrite(err)
	flags := count << 1
	if wide {
		flags |= 1
	}
	e.mustWrite(memory.WriteInt32(e.Arena, entry+uintptr(e.Layout.Name.EntryIndex), flags))

	index := e.appendArray(e.Names, memory.PointerSize, entry)
	e.names[s] = index
	return index
}

// WriteName writes the name of s to address.
func (e *Engine) WriteName(address uintptr, s string) {
	e.mustWrite(memory.WriteInt32(e.Arena, address, e.Name(s)))
	e.mustWrite(memory.WriteInt32(e.Arena, address+4, 0))
}

// NewObject creates an object of the given class and registers it in the
// object table.
func (e *Engine) NewObject(class uintptr, name string, outer uintptr, size int) uintptr {
	obj := e.Alloc(max(size, objectSize))
	e.WriteName(obj+uintptr(e.Layout.Object.Name), name)
	e.mustWrite(memory.WritePointer(e.Arena, obj+uintptr(e.Layout.Object.Class), class))
	e.mustWrite(memory.WritePointer(e.Arena, obj+uintptr(e.Layout.Object.Outer), outer))

	entry := e.Objects
	data, err := memory.ReadPointer(e.Arena, entry+uintptr(e.Layout.Array.Data))
	e.mustWrite(err)
	count, err := memory.ReadInt32(e.Arena, entry+uintptr(e.Layout.Array.Count))
	e.mustWrite(err)
	item := data + uintptr(int(count)*e.Layout.ObjectTable.Stride) + uintptr(e.Layout.ObjectTable.ObjectOffset)
	e.mustWrite(memory.WritePointer(e.Arena, item, obj))
	e.mustWrite(memory.WriteInt32(e.Arena, entry+uintptr(e.Layout.Array.Count), count+1))
	return obj
}

// Class returns the class object with the given name, creating it on first use.
func (e *Engine) Class(name string) uintptr {
	if class, ok := e.classes[name]; ok {
		return class
	}
	meta := uintptr(0)
	if name != "Class" {
		meta = e.Class("Class")
	}
	class := e.NewObject(meta, name, 0, objectSize)
	if meta == 0 {
		// the metaclass describes itself
		e.mustWrite(memory.WritePointer(e.Arena, class+uintptr(e.Layout.Object.Class), class))
	}
	e.classes[name] = class
	return class
}

// NewClass creates a class object with the given superclass and properties.
func (e *Engine) NewClass(name string, super uintptr, props ...PropertyDef) uintptr {
	class, ok := e.classes[name]
	if !ok {
		class = e.NewObject(e.Class("Class"), name, 0, objectSize)
		e.classes[name] = class
	}
	e.fillStruct(class, super, 0, props)
	return class
}

// NewStruct creates a script struct with the given properties. A minAlignment
// of 0 leaves the alignment field untouched.
func (e *Engine) NewStruct(name string, super uintptr, minAlignment int, props ...PropertyDef) uintptr {
	st := e.NewObject(e.Class("ScriptStruct"), name, 0, objectSize)
	e.fillStruct(st, super, minAlignment, props)
	return st
}

// NewFunction creates a function owned by outer with the given parameters.
func (e *Engine) NewFunction(name string, outer uintptr, props ...PropertyDef) uintptr {
	fn := e.NewObject(e.Class("Function"), name, outer, objectSize)
	e.fillStruct(fn, 0, 0, props)
	return fn
}

// AddField appends a field, for example a function, to the children list of
// a struct.
func (e *Engine) AddField(st, field uintptr) {
	l := e.Layout
	link := st + uintptr(l.Struct.Children)
	for {
		next, err := memory.ReadPointer(e.Arena, link)
		e.mustWrite(err)
		if next == 0 {
			break
		}
		link = next + uintptr(l.Field.Next)
	}
	e.mustWrite(memory.WritePointer(e.Arena, link, field))
}

// PropertySize returns the property size of a generated struct.
func (e *Engine) PropertySize(st uintptr) int {
	l := e.Layout.Struct
	if l.PropertySizeWidth == 2 {
		v, err := memory.ReadUint16(e.Arena, st+uintptr(l.PropertySize))
		e.mustWrite(err)
		return int(v)
	}
	v, err := memory.ReadInt32(e.Arena, st+uintptr(l.PropertySize))
	e.mustWrite(err)
	return int(v)
}

// SetPropertySize overrides the property size of a generated struct.
func (e *Engine) SetPropertySize(st uintptr, size int) {
	l := e.Layout.Struct
	if l.PropertySizeWidth == 2 {
		e.mustWrite(memory.WriteUint16(e.Arena, st+uintptr(l.PropertySize), uint16(size)))
		return
	}
	e.mustWrite(memory.WriteInt32(e.Arena, st+uintptr(l.PropertySize), int32(size)))
}

func (e *Engine) fillStruct(st, super uintptr, minAlignment int, props []PropertyDef) {
	l := e.Layout
	e.mustWrite(memory.WritePointer(e.Arena, st+uintptr(l.Struct.SuperField), super))
	if minAlignment > 0 && l.Struct.MinAlignment != layout.NotPresent {
		e.mustWrite(memory.WriteInt32(e.Arena, st+uintptr(l.Struct.MinAlignment), int32(minAlignment)))
	}

	offset := 0
	if super != 0 {
		offset = e.PropertySize(super)
	}

	var first, previous uintptr
	for _, def := range props {
		prop, size := e.newProperty(st, def, offset)
		offset += size
		if previous == 0 {
			first = prop
		} else {
			e.mustWrite(memory.WritePointer(e.Arena, previous+uintptr(l.Property.PropertyLinkNext), prop))
			e.mustWrite(memory.WritePointer(e.Arena, previous+uintptr(l.Field.Next), prop))
		}
		previous = prop
	}

	e.mustWrite(memory.WritePointer(e.Arena, st+uintptr(l.Struct.PropertyLink), first))
	e.mustWrite(memory.WritePointer(e.Arena, st+uintptr(l.Struct.Children), first))
	e.SetPropertySize(st, offset)
}

// defaultSize returns the element size of the physical encoding of a kind.
func defaultSize(def PropertyDef, l *layout.Layout) int {
	switch def.Kind {
	case "ByteProperty", "Int8Property":
		return 1
	case "Int16Property", "UInt16Property":
		return 2
	case "IntProperty", "UInt32Property", "FloatProperty":
		return 4
	case "BoolProperty":
		if l.IsUE4() {
			return 1
		}
		return 4
	case "Int64Property", "UInt64Property", "DoubleProperty", "ObjectProperty", "ClassProperty", "NameProperty":
		return 8
	case "StrProperty", "ArrayProperty":
		return l.Array.Size
	case "EnumProperty":
		if def.Inner != nil {
			return defaultSize(*def.Inner, l)
		}
		return 1
	}
	return 0
}

func (e *Engine) newProperty(owner uintptr, def PropertyDef, offset int) (uintptr, int) {
	l := e.Layout
	p := l.Property

	size := def.Size
	if size == 0 {
		size = defaultSize(def, l)
	}
	if def.Kind == "StructProperty" && def.Size == 0 {
		size = e.PropertySize(def.Struct)
	}
	dim := def.ArrayDim
	if dim == 0 {
		dim = 1
	}

	prop := e.NewObject(e.Class(def.Kind), def.Name, owner, objectSize)
	e.mustWrite(memory.WriteInt32(e.Arena, prop+uintptr(p.ArrayDim), int32(dim)))
	e.mustWrite(memory.WriteInt32(e.Arena, prop+uintptr(p.ElementSize), int32(size)))
	e.mustWrite(memory.WriteUint64(e.Arena, prop+uintptr(p.PropertyFlags), def.Flags))
	e.mustWrite(memory.WriteInt32(e.Arena, prop+uintptr(p.Offset), int32(offset)))

	switch def.Kind {
	case "BoolProperty":
		if l.IsUE4() {
			// FieldSize, ByteOffset, ByteMask, FieldMask
			e.mustWrite(e.Arena.WriteMemory(prop+uintptr(p.BoolFieldSize), []byte{1, 0, 1, 1}))
		} else {
			e.mustWrite(memory.WriteUint32(e.Arena, prop+uintptr(p.BoolFieldMask), 1))
		}
	case "ArrayProperty":
		inner, _ := e.newProperty(prop, *def.Inner, 0)
		e.mustWrite(memory.WritePointer(e.Arena, prop+uintptr(p.ArrayInner), inner))
	case "EnumProperty":
		inner, _ := e.newProperty(prop, *def.Inner, 0)
		e.mustWrite(memory.WritePointer(e.Arena, prop+uintptr(p.EnumUnderlying), inner))
	case "StructProperty":
		e.mustWrite(memory.WritePointer(e.Arena, prop+uintptr(p.StructStruct), def.Struct))
	case "ObjectProperty", "ClassProperty":
		e.mustWrite(memory.WritePointer(e.Arena, prop+uintptr(p.ObjectClass), def.PropertyClass))
	}
	return prop, size * dim
}

// Property returns the address of the named property of a generated struct.
func (e *Engine) Property(st uintptr, name string) uintptr {
	index := e.Name(name)
	prop, err := memory.ReadPointer(e.Arena, st+uintptr(e.Layout.Struct.PropertyLink))
	e.mustWrite(err)
	for prop != 0 {
		n, err := memory.ReadInt32(e.Arena, prop+uintptr(e.Layout.Object.Name))
		e.mustWrite(err)
		if n == index {
			return prop
		}
		prop, err = memory.ReadPointer(e.Arena, prop+uintptr(e.Layout.Property.PropertyLinkNext))
		e.mustWrite(err)
	}
	panic(fmt.Sprintf("property %s not found", name))
}

// PropertyOffset returns the offset of the named property of a generated struct.
func (e *Engine) PropertyOffset(st uintptr, name string) uintptr {
	prop := e.Property(st, name)
	offset, err := memory.ReadInt32(e.Arena, prop+uintptr(e.Layout.Property.Offset))
	e.mustWrite(err)
	return uintptr(offset)
}

// Bytecode copies script bytecode into the engine heap.
func (e *Engine) Bytecode(code []byte) uintptr {
	address := e.Alloc(len(code))
	e.mustWrite(e.Arena.WriteMemory(address, code))
	return address
}

// NewFrame creates a script execution frame positioned at code.
func (e *Engine) NewFrame(node, object, code uintptr) uintptr {
	l := e.Layout.Frame
	frame := e.Alloc(l.OutParams + memory.PointerSize)
	e.mustWrite(memory.WritePointer(e.Arena, frame+uintptr(l.Node), node))
	e.mustWrite(memory.WritePointer(e.Arena, frame+uintptr(l.Object), object))
	e.mustWrite(memory.WritePointer(e.Arena, frame+uintptr(l.Code), code))
	return frame
}

// AddOutParam prepends an output parameter record to a frame.
func (e *Engine) AddOutParam(frame, prop, address uintptr) {
	l := e.Layout.Frame
	record := e.Alloc(l.OutParamNext + memory.PointerSize)
	head, err := memory.ReadPointer(e.Arena, frame+uintptr(l.OutParams))
	e.mustWrite(err)
	e.mustWrite(memory.WritePointer(e.Arena, record+uintptr(l.OutParamProperty), prop))
	e.mustWrite(memory.WritePointer(e.Arena, record+uintptr(l.OutParamAddress), address))
	e.mustWrite(memory.WritePointer(e.Arena, record+uintptr(l.OutParamNext), head))
	e.mustWrite(memory.WritePointer(e.Arena, frame+uintptr(l.OutParams), record))
}
