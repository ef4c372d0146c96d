package mocks

import (
	"encoding/binary"

	"github.com/retroenv/retrohook/memory"
)

// CodeBuilder assembles a code section containing signature matches.
type CodeBuilder struct {
	base uintptr
	data []byte
}

// NewCodeBuilder returns a builder for code mapped at base.
func NewCodeBuilder(base uintptr) *CodeBuilder {
	return &CodeBuilder{base: base}
}

// Emit appends code preceded by padding and returns its address.
func (b *CodeBuilder) Emit(code []byte) uintptr {
	b.data = append(b.data, 0xCC, 0xCC, 0xCC, 0xCC)
	address := b.base + uintptr(len(b.data))
	b.data = append(b.data, code...)
	return address
}

// Displace writes a 32 bit displacement operand at address that references
// target.
func (b *CodeBuilder) Displace(address, target uintptr) {
	displacement := int32(int64(target) - int64(address) - 4)
	binary.LittleEndian.PutUint32(b.data[address-b.base:], uint32(displacement))
}

// Region maps the code into a region.
func (b *CodeBuilder) Region() *memory.Region {
	region := memory.NewRegion(".text", b.base, len(b.data))
	copy(region.Data, b.data)
	return region
}

// Bytes returns the assembled code.
func (b *CodeBuilder) Bytes() []byte {
	return b.data
}
