package call

import (
	"github.com/retroenv/retrohook/names"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
)

// Arg is a positional argument tagged with the property kind it binds to.
type Arg struct {
	Kind  string
	Value any
}

// Bool returns a BoolProperty argument.
func Bool(v bool) Arg { return Arg{Kind: "BoolProperty", Value: v} }

// Byte returns a ByteProperty argument.
func Byte(v uint8) Arg { return Arg{Kind: "ByteProperty", Value: v} }

// Int8 returns an Int8Property argument.
func Int8(v int8) Arg { return Arg{Kind: "Int8Property", Value: v} }

// Int16 returns an Int16Property argument.
func Int16(v int16) Arg { return Arg{Kind: "Int16Property", Value: v} }

// Int returns an IntProperty argument.
func Int(v int32) Arg { return Arg{Kind: "IntProperty", Value: v} }

// Int64 returns an Int64Property argument.
func Int64(v int64) Arg { return Arg{Kind: "Int64Property", Value: v} }

// UInt16 returns a UInt16Property argument.
func UInt16(v uint16) Arg { return Arg{Kind: "UInt16Property", Value: v} }

// UInt32 returns a UInt32Property argument.
func UInt32(v uint32) Arg { return Arg{Kind: "UInt32Property", Value: v} }

// UInt64 returns a UInt64Property argument.
func UInt64(v uint64) Arg { return Arg{Kind: "UInt64Property", Value: v} }

// Float returns a FloatProperty argument.
func Float(v float32) Arg { return Arg{Kind: "FloatProperty", Value: v} }

// Double returns a DoubleProperty argument.
func Double(v float64) Arg { return Arg{Kind: "DoubleProperty", Value: v} }

// Str returns a StrProperty argument.
func Str(v string) Arg { return Arg{Kind: "StrProperty", Value: v} }

// NameArg returns a NameProperty argument.
func NameArg(v names.Name) Arg { return Arg{Kind: "NameProperty", Value: v} }

// ObjectArg returns an ObjectProperty argument.
func ObjectArg(v reflection.Object) Arg { return Arg{Kind: "ObjectProperty", Value: v} }

// ClassArg returns a ClassProperty argument.
func ClassArg(v reflection.Object) Arg { return Arg{Kind: "ClassProperty", Value: v} }

// ArrayArg returns an ArrayProperty argument, its elements are copied into
// the parameter frame.
func ArrayArg(v *property.Array) Arg { return Arg{Kind: "ArrayProperty", Value: v} }

// StructArg returns a StructProperty argument, it is deep copied into the
// parameter frame.
func StructArg(v *property.WrappedStruct) Arg { return Arg{Kind: "StructProperty", Value: v} }

// Enum returns an EnumProperty argument holding a value of the enum's
// underlying integer type.
func Enum(v any) Arg { return Arg{Kind: "EnumProperty", Value: v} }
