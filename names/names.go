// Package names handles the engine's interned name identifiers.
package names

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
)

var (
	// ErrNameNotFound is returned when a string has no entry in the name table.
	ErrNameNotFound = errors.New("name not found")
	// ErrInvalidEntry is returned for empty or out of range name table entries.
	ErrInvalidEntry = errors.New("invalid name entry")
)

// Name identifies an interned string by its name table index. Two names are
// equal if their index and instance number match, the string content is
// never compared.
type Name struct {
	Index  int32
	Number int32
}

// None is the empty name.
var None = Name{}

// Read reads a name stored at address.
func Read(mem memory.Memory, address uintptr) (Name, error) {
	index, err := memory.ReadInt32(mem, address)
	if err != nil {
		return Name{}, err
	}
	number, err := memory.ReadInt32(mem, address+4)
	if err != nil {
		return Name{}, err
	}
	return Name{Index: index, Number: number}, nil
}

// Write stores a name at address.
func Write(mem memory.Memory, address uintptr, n Name) error {
	if err := memory.WriteInt32(mem, address, n.Index); err != nil {
		return err
	}
	return memory.WriteInt32(mem, address+4, n.Number)
}

// Table resolves names through the engine's name table, an array of pointers
// to name entries.
type Table struct {
	mem     memory.Memory
	layout  *layout.Layout
	address uintptr

	mu      sync.Mutex
	strings map[int32]string
	indices map[string]int32
}

// NewTable returns a table reading the name array located at address.
func NewTable(mem memory.Memory, l *layout.Layout, address uintptr) *Table {
	return &Table{
		mem:     mem,
		layout:  l,
		address: address,
		strings: make(map[int32]string),
		indices: make(map[string]int32),
	}
}

// Len returns the number of entries of the table.
func (t *Table) Len() (int, error) {
	count, err := memory.ReadInt32(t.mem, t.address+uintptr(t.layout.Array.Count))
	return int(count), err
}

// Entry returns the string of the entry with the given index.
func (t *Table) Entry(index int32) (string, error) {
	t.mu.Lock()
	s, ok := t.strings[index]
	t.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := t.readEntry(index)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	t.strings[index] = s
	t.indices[strings.ToLower(s)] = index
	t.mu.Unlock()
	return s, nil
}

// String returns the string representation of a name, including the
// instance number suffix.
func (t *Table) String(n Name) (string, error) {
	s, err := t.Entry(n.Index)
	if err != nil {
		return "", err
	}
	if n.Number > 0 {
		return fmt.Sprintf("%s_%d", s, n.Number-1), nil
	}
	return s, nil
}

// Find returns the name of an existing entry with the given string.
// The comparison is case insensitive like the engine's own lookup.
func (t *Table) Find(s string) (Name, error) {
	key := strings.ToLower(s)

	t.mu.Lock()
	index, ok := t.indices[key]
	t.mu.Unlock()
	if ok {
		return Name{Index: index}, nil
	}

	// entries are added by the engine at any time, rescan on a miss
	count, err := t.Len()
	if err != nil {
		return Name{}, fmt.Errorf("reading name table size: %w", err)
	}
	for i := range int32(count) {
		entry, err := t.readEntry(i)
		if errors.Is(err, ErrInvalidEntry) {
			continue
		}
		if err != nil {
			return Name{}, err
		}

		t.mu.Lock()
		t.strings[i] = entry
		t.indices[strings.ToLower(entry)] = i
		t.mu.Unlock()

		if strings.EqualFold(entry, s) {
			return Name{Index: i}, nil
		}
	}
	return Name{}, fmt.Errorf("%w: '%s'", ErrNameNotFound, s)
}

func (t *Table) readEntry(index int32) (string, error) {
	count, err := t.Len()
	if err != nil {
		return "", fmt.Errorf("reading name table size: %w", err)
	}
	if index < 0 || int(index) >= count {
		return "", fmt.Errorf("%w: index %d out of range", ErrInvalidEntry, index)
	}

	data, err := memory.ReadPointer(t.mem, t.address+uintptr(t.layout.Array.Data))
	if err != nil {
		return "", fmt.Errorf("reading name table data: %w", err)
	}
	entry, err := memory.ReadPointer(t.mem, data+uintptr(index)*memory.PointerSize)
	if err != nil {
		return "", fmt.Errorf("reading name entry %d: %w", index, err)
	}
	if entry == 0 {
		return "", fmt.Errorf("%w: index %d is empty", ErrInvalidEntry, index)
	}

	flags, err := memory.ReadInt32(t.mem, entry+uintptr(t.layout.Name.EntryIndex))
	if err != nil {
		return "", fmt.Errorf("reading name entry %d: %w", index, err)
	}
	address := entry + uintptr(t.layout.Name.EntryName)
	if flags&1 != 0 {
		return readWide(t.mem, address, t.layout.Name.MaxLength)
	}
	return readANSI(t.mem, address, t.layout.Name.MaxLength)
}

func readANSI(mem memory.Memory, address uintptr, maxLength int) (string, error) {
	var sb strings.Builder
	for i := range maxLength {
		c, err := memory.ReadUint8(mem, address+uintptr(i))
		if err != nil {
			return "", err
		}
		if c == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(c)
	}
	return "", fmt.Errorf("%w: name at 0x%X exceeds %d characters", ErrInvalidEntry, address, maxLength)
}

func readWide(mem memory.Memory, address uintptr, maxLength int) (string, error) {
	var chars []uint16
	for i := range maxLength {
		c, err := memory.ReadUint16(mem, address+uintptr(i*2))
		if err != nil {
			return "", err
		}
		if c == 0 {
			return string(utf16.Decode(chars)), nil
		}
		chars = append(chars, c)
	}
	return "", fmt.Errorf("%w: name at 0x%X exceeds %d characters", ErrInvalidEntry, address, maxLength)
}
