package property

import (
	"fmt"

	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/reflection"
)

// Array is a view of a dynamic engine array.
type Array struct {
	access  *Access
	inner   reflection.Property
	address uintptr
}

// NewArray returns a view of the array stored at address whose elements are
// described by inner.
func NewArray(a *Access, inner reflection.Property, address uintptr) *Array {
	return &Array{
		access:  a,
		inner:   inner,
		address: address,
	}
}

// Address returns the address of the array header.
func (arr *Array) Address() uintptr {
	return arr.address
}

// Inner returns the element property.
func (arr *Array) Inner() reflection.Property {
	return arr.inner
}

// Len returns the number of elements.
func (arr *Array) Len() (int, error) {
	h, err := readHeader(arr.access, arr.address)
	return h.count, err
}

func (arr *Array) element(h header, idx int) (uintptr, error) {
	if idx < 0 || idx >= h.count {
		return 0, fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, idx, h.count)
	}
	size, err := arr.inner.ElementSize()
	if err != nil {
		return 0, fmt.Errorf("reading element size: %w", err)
	}
	return h.data + uintptr(idx*size), nil
}

// Get returns the element at idx.
func (arr *Array) Get(idx int) (any, error) {
	h, err := readHeader(arr.access, arr.address)
	if err != nil {
		return nil, err
	}
	address, err := arr.element(h, idx)
	if err != nil {
		return nil, err
	}
	return arr.access.Get(arr.inner, address)
}

// Set stores the element at idx.
func (arr *Array) Set(idx int, value any) error {
	h, err := readHeader(arr.access, arr.address)
	if err != nil {
		return err
	}
	address, err := arr.element(h, idx)
	if err != nil {
		return err
	}
	return arr.access.Set(arr.inner, address, value)
}

// Resize changes the number of elements. Added elements are zeroed, removed
// elements are destroyed.
func (arr *Array) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative array size %d", ErrOutOfRange, n)
	}
	h, err := readHeader(arr.access, arr.address)
	if err != nil {
		return err
	}
	size, err := arr.inner.ElementSize()
	if err != nil {
		return fmt.Errorf("reading element size: %w", err)
	}

	for i := n; i < h.count; i++ {
		if err := arr.access.Destroy(arr.inner, h.data+uintptr(i*size)); err != nil {
			return fmt.Errorf("destroying element %d: %w", i, err)
		}
	}

	if n > h.max {
		data, err := arr.access.alloc.Realloc(h.data, n*size)
		if err != nil {
			return fmt.Errorf("growing array: %w", err)
		}
		h.data = data
		h.max = n
	}
	if n > h.count {
		start := h.data + uintptr(h.count*size)
		if err := memory.Zero(arr.access.Memory(), start, (n-h.count)*size); err != nil {
			return err
		}
	}
	h.count = n
	return h.write(arr.access, arr.address)
}

// CopyFrom replaces the contents with a deep copy of the elements of src.
func (arr *Array) CopyFrom(src *Array) error {
	if src.inner.Address != arr.inner.Address {
		srcKind, _ := src.inner.Kind()
		dstKind, _ := arr.inner.Kind()
		if srcKind != dstKind {
			return fmt.Errorf("%w: array of %s assigned to array of %s", ErrTypeMismatch, srcKind, dstKind)
		}
	}
	if src.address == arr.address {
		return nil
	}

	n, err := src.Len()
	if err != nil {
		return err
	}
	if err := arr.Resize(n); err != nil {
		return err
	}
	for i := range n {
		v, err := src.Get(i)
		if err != nil {
			return err
		}
		if err := arr.Set(i, v); err != nil {
			return err
		}
	}
	return nil
}

// Destroy destroys all elements and frees the element buffer.
func (arr *Array) Destroy() error {
	if err := arr.Resize(0); err != nil {
		return err
	}
	h, err := readHeader(arr.access, arr.address)
	if err != nil {
		return err
	}
	if err := arr.access.alloc.Free(h.data); err != nil {
		return fmt.Errorf("freeing array data: %w", err)
	}
	return header{}.write(arr.access, arr.address)
}

type arrayKind struct{}

func (arrayKind) Get(a *Access, prop reflection.Property, address uintptr) (any, error) {
	inner, err := prop.Inner()
	if err != nil {
		return nil, err
	}
	return NewArray(a, inner, address), nil
}

func (k arrayKind) Set(a *Access, prop reflection.Property, address uintptr, value any) error {
	src, ok := value.(*Array)
	if !ok {
		return mismatch(src, value)
	}
	dst, err := k.Get(a, prop, address)
	if err != nil {
		return err
	}
	return dst.(*Array).CopyFrom(src)
}

func (k arrayKind) Destroy(a *Access, prop reflection.Property, address uintptr) error {
	arr, err := k.Get(a, prop, address)
	if err != nil {
		return err
	}
	return arr.(*Array).Destroy()
}
