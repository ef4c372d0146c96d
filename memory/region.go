package memory

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Region is a contiguous block of memory mapped at a base address.
type Region struct {
	Name string
	Base uintptr
	Data []byte
}

// NewRegion returns a zeroed region of the given size.
func NewRegion(name string, base uintptr, size int) *Region {
	return &Region{
		Name: name,
		Base: base,
		Data: make([]byte, size),
	}
}

// End returns the first address after the region.
func (r *Region) End() uintptr {
	return r.Base + uintptr(len(r.Data))
}

// Contains returns whether size bytes starting at address are inside the region.
func (r *Region) Contains(address uintptr, size int) bool {
	return address >= r.Base && address+uintptr(size) <= r.End() && address+uintptr(size) >= address
}

// ReadMemory implements Memory.
func (r *Region) ReadMemory(address uintptr, buf []byte) error {
	if !r.Contains(address, len(buf)) {
		return fmt.Errorf("%w: read of %d bytes at 0x%X", ErrUnmapped, len(buf), address)
	}
	offset := address - r.Base
	copy(buf, r.Data[offset:])
	return nil
}

// WriteMemory implements Memory.
func (r *Region) WriteMemory(address uintptr, data []byte) error {
	if !r.Contains(address, len(data)) {
		return fmt.Errorf("%w: write of %d bytes at 0x%X", ErrUnmapped, len(data), address)
	}
	offset := address - r.Base
	copy(r.Data[offset:], data)
	return nil
}

// Space is an address space composed of non overlapping regions.
type Space struct {
	mu      sync.RWMutex
	regions []*Region // sorted by base address
}

// NewSpace returns an address space containing the given regions.
func NewSpace(regions ...*Region) (*Space, error) {
	s := &Space{}
	for _, r := range regions {
		if err := s.Map(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Map adds a region to the address space.
func (s *Space) Map(r *Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.regions {
		if r.Base < existing.End() && existing.Base < r.End() {
			return fmt.Errorf("region %s at 0x%X overlaps region %s at 0x%X",
				r.Name, r.Base, existing.Name, existing.Base)
		}
	}
	s.regions = append(s.regions, r)
	sort.Slice(s.regions, func(i, j int) bool {
		return s.regions[i].Base < s.regions[j].Base
	})
	return nil
}

// Regions returns the mapped regions ordered by base address.
func (s *Space) Regions() []*Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Region(nil), s.regions...)
}

func (s *Space) find(address uintptr, size int) *Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].End() > address
	})
	if i < len(s.regions) && s.regions[i].Contains(address, size) {
		return s.regions[i]
	}
	return nil
}

// ReadMemory implements Memory. An access may not span multiple regions.
func (s *Space) ReadMemory(address uintptr, buf []byte) error {
	r := s.find(address, len(buf))
	if r == nil {
		return fmt.Errorf("%w: read of %d bytes at 0x%X", ErrUnmapped, len(buf), address)
	}
	return r.ReadMemory(address, buf)
}

// WriteMemory implements Memory. An access may not span multiple regions.
func (s *Space) WriteMemory(address uintptr, data []byte) error {
	r := s.find(address, len(data))
	if r == nil {
		return fmt.Errorf("%w: write of %d bytes at 0x%X", ErrUnmapped, len(data), address)
	}
	return r.WriteMemory(address, data)
}

// reader adapts a Memory range to io.ReaderAt, offsets are relative to base.
type reader struct {
	mem  Memory
	base uintptr
	size int64
}

// NewReader returns an io.ReaderAt over size bytes of mem starting at base.
func NewReader(mem Memory, base uintptr, size int64) io.ReaderAt {
	return &reader{mem: mem, base: base, size: size}
}

func (r *reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= r.size {
		return 0, io.EOF
	}
	n := len(p)
	var err error
	if remaining := r.size - off; int64(n) > remaining {
		n = int(remaining)
		err = io.EOF
	}
	if readErr := r.mem.ReadMemory(r.base+uintptr(off), p[:n]); readErr != nil {
		return 0, readErr
	}
	return n, err
}
