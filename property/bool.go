package property

import (
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/reflection"
)

// boolKind accesses bool bitfields. UE4 stores the bit in a byte selected by
// a byte offset, older generations mask a 32 bit field directly.
type boolKind struct{}

func (boolKind) Get(a *Access, prop reflection.Property, address uintptr) (any, error) {
	if a.model.Layout.IsUE4() {
		masks, err := prop.BoolMasks()
		if err != nil {
			return nil, err
		}
		b, err := memory.ReadUint8(a.Memory(), address+uintptr(masks.ByteOffset))
		if err != nil {
			return nil, err
		}
		return b&masks.FieldMask != 0, nil
	}

	mask, err := prop.BoolFieldMask()
	if err != nil {
		return nil, err
	}
	field, err := memory.ReadUint32(a.Memory(), address)
	if err != nil {
		return nil, err
	}
	return field&mask != 0, nil
}

func (boolKind) Set(a *Access, prop reflection.Property, address uintptr, value any) error {
	v, ok := value.(bool)
	if !ok {
		return mismatch(v, value)
	}

	if a.model.Layout.IsUE4() {
		masks, err := prop.BoolMasks()
		if err != nil {
			return err
		}
		address += uintptr(masks.ByteOffset)
		b, err := memory.ReadUint8(a.Memory(), address)
		if err != nil {
			return err
		}
		b &^= masks.ByteMask
		if v {
			b |= masks.FieldMask
		}
		return memory.WriteUint8(a.Memory(), address, b)
	}

	mask, err := prop.BoolFieldMask()
	if err != nil {
		return err
	}
	field, err := memory.ReadUint32(a.Memory(), address)
	if err != nil {
		return err
	}
	field &^= mask
	if v {
		field |= mask
	}
	return memory.WriteUint32(a.Memory(), address, field)
}

func (boolKind) Destroy(*Access, reflection.Property, uintptr) error {
	return nil
}
