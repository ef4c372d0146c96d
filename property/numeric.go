package property

import (
	"encoding/binary"
	"fmt"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/reflection"
)

type number interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// numeric accesses fixed size little endian values.
type numeric[T number] struct{}

func (numeric[T]) Get(a *Access, _ reflection.Property, address uintptr) (any, error) {
	var v T
	buf, err := memory.Read(a.Memory(), address, binary.Size(v))
	if err != nil {
		return nil, err
	}
	if _, err := binary.Decode(buf, binary.LittleEndian, &v); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}
	return v, nil
}

func (numeric[T]) Set(a *Access, _ reflection.Property, address uintptr, value any) error {
	v, ok := value.(T)
	if !ok {
		return mismatch(v, value)
	}
	buf := make([]byte, binary.Size(v))
	if _, err := binary.Encode(buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("encoding %T: %w", v, err)
	}
	return a.Memory().WriteMemory(address, buf)
}

func (numeric[T]) Destroy(*Access, reflection.Property, uintptr) error {
	return nil
}
