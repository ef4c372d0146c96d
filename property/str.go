package property

import (
	"fmt"
	"unicode/utf16"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/reflection"
)

// strKind accesses engine strings, arrays of UTF-16 characters whose count
// includes the terminating zero.
type strKind struct{}

func (strKind) Get(a *Access, _ reflection.Property, address uintptr) (any, error) {
	h, err := readHeader(a, address)
	if err != nil {
		return nil, err
	}
	if h.count <= 1 || h.data == 0 {
		return "", nil
	}

	buf, err := memory.Read(a.Memory(), h.data, (h.count-1)*2)
	if err != nil {
		return nil, fmt.Errorf("reading string data: %w", err)
	}
	chars := make([]uint16, h.count-1)
	for i := range chars {
		chars[i] = uint16(buf[i*2]) | uint16(buf[i*2+1])<<8
	}
	return string(utf16.Decode(chars)), nil
}

func (strKind) Set(a *Access, _ reflection.Property, address uintptr, value any) error {
	s, ok := value.(string)
	if !ok {
		return mismatch(s, value)
	}
	h, err := readHeader(a, address)
	if err != nil {
		return err
	}
	if s == "" {
		h.count = 0
		return h.write(a, address)
	}

	chars := utf16.Encode([]rune(s))
	needed := len(chars) + 1
	if h.max < needed {
		data, err := a.alloc.Realloc(h.data, needed*2)
		if err != nil {
			return fmt.Errorf("growing string: %w", err)
		}
		h.data = data
		h.max = needed
	}

	buf := make([]byte, needed*2)
	for i, c := range chars {
		buf[i*2] = byte(c)
		buf[i*2+1] = byte(c >> 8)
	}
	if err := a.Memory().WriteMemory(h.data, buf); err != nil {
		return fmt.Errorf("writing string data: %w", err)
	}
	h.count = needed
	return h.write(a, address)
}

func (strKind) Destroy(a *Access, _ reflection.Property, address uintptr) error {
	h, err := readHeader(a, address)
	if err != nil {
		return err
	}
	if err := a.alloc.Free(h.data); err != nil {
		return fmt.Errorf("freeing string data: %w", err)
	}
	return header{}.write(a, address)
}

// header is the data pointer, count and capacity triple of engine arrays.
type header struct {
	data  uintptr
	count int
	max   int
}

func readHeader(a *Access, address uintptr) (header, error) {
	l := a.model.Layout.Array
	data, err := memory.ReadPointer(a.Memory(), address+uintptr(l.Data))
	if err != nil {
		return header{}, fmt.Errorf("reading array data: %w", err)
	}
	count, err := memory.ReadInt32(a.Memory(), address+uintptr(l.Count))
	if err != nil {
		return header{}, fmt.Errorf("reading array count: %w", err)
	}
	maxCount, err := memory.ReadInt32(a.Memory(), address+uintptr(l.Max))
	if err != nil {
		return header{}, fmt.Errorf("reading array max: %w", err)
	}
	return header{data: data, count: int(count), max: int(maxCount)}, nil
}

func (h header) write(a *Access, address uintptr) error {
	l := a.model.Layout.Array
	if err := memory.WritePointer(a.Memory(), address+uintptr(l.Data), h.data); err != nil {
		return err
	}
	if err := memory.WriteInt32(a.Memory(), address+uintptr(l.Count), int32(h.count)); err != nil {
		return err
	}
	return memory.WriteInt32(a.Memory(), address+uintptr(l.Max), int32(h.max))
}
