// Package memory provides access to the address space of the hooked engine.
// All engine structures are accessed through the Memory interface so that the
// same code can run inside the engine process or against an emulated image.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// PointerSize is the size of a pointer of the supported x64 engine builds.
const PointerSize = 8

var (
	// ErrUnmapped is returned for accesses outside of any mapped region.
	ErrUnmapped = errors.New("address not mapped")
	// ErrOutOfMemory is returned when an allocator can not satisfy a request.
	ErrOutOfMemory = errors.New("out of memory")
)

// Memory reads and writes engine memory.
type Memory interface {
	// ReadMemory fills buf with the bytes starting at address.
	ReadMemory(address uintptr, buf []byte) error
	// WriteMemory writes data starting at address.
	WriteMemory(address uintptr, data []byte) error
}

// Allocator is the engine allocator contract. Memory returned by Malloc is
// zeroed.
type Allocator interface {
	Malloc(size int) (uintptr, error)
	Realloc(address uintptr, size int) (uintptr, error)
	Free(address uintptr) error
}

// Read returns size bytes starting at address.
func Read(mem Memory, address uintptr, size int) ([]byte, error) {
	buf := make([]byte, size)
	if err := mem.ReadMemory(address, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUint8 reads a byte.
func ReadUint8(mem Memory, address uintptr) (uint8, error) {
	var buf [1]byte
	if err := mem.ReadMemory(address, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads a little endian 16 bit value.
func ReadUint16(mem Memory, address uintptr) (uint16, error) {
	var buf [2]byte
	if err := mem.ReadMemory(address, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a little endian 32 bit value.
func ReadUint32(mem Memory, address uintptr) (uint32, error) {
	var buf [4]byte
	if err := mem.ReadMemory(address, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little endian 64 bit value.
func ReadUint64(mem Memory, address uintptr) (uint64, error) {
	var buf [8]byte
	if err := mem.ReadMemory(address, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadInt32 reads a little endian signed 32 bit value.
func ReadInt32(mem Memory, address uintptr) (int32, error) {
	v, err := ReadUint32(mem, address)
	return int32(v), err
}

// ReadFloat32 reads an IEEE 754 single precision value.
func ReadFloat32(mem Memory, address uintptr) (float32, error) {
	v, err := ReadUint32(mem, address)
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE 754 double precision value.
func ReadFloat64(mem Memory, address uintptr) (float64, error) {
	v, err := ReadUint64(mem, address)
	return math.Float64frombits(v), err
}

// ReadPointer reads a pointer.
func ReadPointer(mem Memory, address uintptr) (uintptr, error) {
	v, err := ReadUint64(mem, address)
	return uintptr(v), err
}

// WriteUint8 writes a byte.
func WriteUint8(mem Memory, address uintptr, value uint8) error {
	return mem.WriteMemory(address, []byte{value})
}

// WriteUint16 writes a little endian 16 bit value.
func WriteUint16(mem Memory, address uintptr, value uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	return mem.WriteMemory(address, buf[:])
}

// WriteUint32 writes a little endian 32 bit value.
func WriteUint32(mem Memory, address uintptr, value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return mem.WriteMemory(address, buf[:])
}

// WriteUint64 writes a little endian 64 bit value.
func WriteUint64(mem Memory, address uintptr, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	return mem.WriteMemory(address, buf[:])
}

// WriteInt32 writes a little endian signed 32 bit value.
func WriteInt32(mem Memory, address uintptr, value int32) error {
	return WriteUint32(mem, address, uint32(value))
}

// WriteFloat32 writes an IEEE 754 single precision value.
func WriteFloat32(mem Memory, address uintptr, value float32) error {
	return WriteUint32(mem, address, math.Float32bits(value))
}

// WriteFloat64 writes an IEEE 754 double precision value.
func WriteFloat64(mem Memory, address uintptr, value float64) error {
	return WriteUint64(mem, address, math.Float64bits(value))
}

// WritePointer writes a pointer.
func WritePointer(mem Memory, address, value uintptr) error {
	return WriteUint64(mem, address, uint64(value))
}

// Zero clears size bytes starting at address.
func Zero(mem Memory, address uintptr, size int) error {
	if size == 0 {
		return nil
	}
	return mem.WriteMemory(address, make([]byte, size))
}

// Copy copies size bytes from src to dst.
func Copy(mem Memory, dst, src uintptr, size int) error {
	if size == 0 {
		return nil
	}
	buf, err := Read(mem, src, size)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	if err := mem.WriteMemory(dst, buf); err != nil {
		return fmt.Errorf("writing destination: %w", err)
	}
	return nil
}
