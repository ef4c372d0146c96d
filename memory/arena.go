package memory

import (
	"fmt"
	"sync"
)

const arenaAlignment = 16

type span struct {
	address uintptr
	size    int
}

// Arena is a region that also acts as an Allocator, handing out first fit
// blocks of its own memory. It stands in for the engine heap when the engine
// is emulated.
type Arena struct {
	*Region

	mu        sync.Mutex
	free      []span // sorted by address, coalesced
	allocated map[uintptr]int
}

// NewArena returns an arena of the given size mapped at base.
func NewArena(name string, base uintptr, size int) *Arena {
	return &Arena{
		Region:    NewRegion(name, base, size),
		free:      []span{{address: base, size: size}},
		allocated: make(map[uintptr]int),
	}
}

func alignSize(size int) int {
	if size <= 0 {
		size = 1
	}
	return (size + arenaAlignment - 1) &^ (arenaAlignment - 1)
}

// Malloc implements Allocator.
func (a *Arena) Malloc(size int) (uintptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.malloc(size)
}

func (a *Arena) malloc(size int) (uintptr, error) {
	size = alignSize(size)
	for i, s := range a.free {
		if s.size < size {
			continue
		}
		address := s.address
		if s.size == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = span{address: s.address + uintptr(size), size: s.size - size}
		}
		a.allocated[address] = size
		clear(a.Data[address-a.Base : address-a.Base+uintptr(size)])
		return address, nil
	}
	return 0, fmt.Errorf("%w: arena %s can not allocate %d bytes", ErrOutOfMemory, a.Name, size)
}

// Realloc implements Allocator.
func (a *Arena) Realloc(address uintptr, size int) (uintptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if address == 0 {
		return a.malloc(size)
	}
	oldSize, ok := a.allocated[address]
	if !ok {
		return 0, fmt.Errorf("realloc of unknown block 0x%X", address)
	}
	if alignSize(size) == oldSize {
		return address, nil
	}

	newAddress, err := a.malloc(size)
	if err != nil {
		return 0, err
	}
	n := min(oldSize, alignSize(size))
	copy(a.Data[newAddress-a.Base:], a.Data[address-a.Base:address-a.Base+uintptr(n)])
	a.release(address, oldSize)
	return newAddress, nil
}

// Free implements Allocator. Freeing a nil pointer is a no-op.
func (a *Arena) Free(address uintptr) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if address == 0 {
		return nil
	}
	size, ok := a.allocated[address]
	if !ok {
		return fmt.Errorf("free of unknown block 0x%X", address)
	}
	a.release(address, size)
	return nil
}

// Allocations returns the number of live allocations.
func (a *Arena) Allocations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocated)
}

func (a *Arena) release(address uintptr, size int) {
	delete(a.allocated, address)

	i := 0
	for i < len(a.free) && a.free[i].address < address {
		i++
	}
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = span{address: address, size: size}

	// merge with the following and preceding spans
	if i+1 < len(a.free) && a.free[i].address+uintptr(a.free[i].size) == a.free[i+1].address {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].address+uintptr(a.free[i-1].size) == a.free[i].address {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}
