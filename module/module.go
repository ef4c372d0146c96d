// Package module describes executable modules loaded into the engine process
// and the code sections that signatures are scanned in.
package module

import (
	"debug/pe"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrohook/memory"
)

var errNoOptionalHeader = errors.New("image has no 64 bit optional header")

// Section is a section of a loaded module.
type Section struct {
	Name       string
	Start      uintptr
	Size       int
	Executable bool
}

// Module is a module mapped into an address space.
type Module struct {
	Name     string
	Base     uintptr
	Size     int
	Sections []Section
}

// CodeSections returns all executable sections of the module.
func (m *Module) CodeSections() []Section {
	var sections []Section
	for _, s := range m.Sections {
		if s.Executable {
			sections = append(sections, s)
		}
	}
	return sections
}

// Contains returns whether the address lies inside the module image.
func (m *Module) Contains(address uintptr) bool {
	return address >= m.Base && address < m.Base+uintptr(m.Size)
}

// FromPE maps a PE image file at its preferred image base, the way the
// loader would map it without relocations. The returned region holds the
// mapped image.
func FromPE(name string, r io.ReaderAt) (*Module, *memory.Region, error) {
	file, err := pe.NewFile(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing PE image: %w", err)
	}
	defer func() { _ = file.Close() }()

	header, ok := file.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		return nil, nil, errNoOptionalHeader
	}

	base := uintptr(header.ImageBase)
	region := memory.NewRegion(name, base, int(header.SizeOfImage))

	headers := make([]byte, header.SizeOfHeaders)
	if _, err := r.ReadAt(headers, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("reading image headers: %w", err)
	}
	copy(region.Data, headers)

	mod := newModule(name, base, int(header.SizeOfImage), file.Sections)
	for _, s := range file.Sections {
		data, err := s.Data()
		if err != nil {
			return nil, nil, fmt.Errorf("reading section %s: %w", s.Name, err)
		}
		size := min(len(data), int(s.VirtualSize))
		if s.VirtualSize == 0 {
			size = len(data)
		}
		if int(s.VirtualAddress)+size > len(region.Data) {
			return nil, nil, fmt.Errorf("section %s exceeds image size", s.Name)
		}
		copy(region.Data[s.VirtualAddress:], data[:size])
	}
	return mod, region, nil
}

// FromMemory parses the PE headers of an image that is already mapped at base.
func FromMemory(name string, mem memory.Memory, base uintptr, size int) (*Module, error) {
	file, err := pe.NewFile(memory.NewReader(mem, base, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("parsing mapped PE headers: %w", err)
	}
	defer func() { _ = file.Close() }()

	header, ok := file.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		return nil, errNoOptionalHeader
	}
	return newModule(name, base, int(header.SizeOfImage), file.Sections), nil
}

func newModule(name string, base uintptr, size int, sections []*pe.Section) *Module {
	mod := &Module{
		Name: name,
		Base: base,
		Size: size,
	}
	for _, s := range sections {
		sectionSize := int(s.VirtualSize)
		if sectionSize == 0 {
			sectionSize = int(s.Size)
		}
		mod.Sections = append(mod.Sections, Section{
			Name:       s.Name,
			Start:      base + uintptr(s.VirtualAddress),
			Size:       sectionSize,
			Executable: s.Characteristics&(pe.IMAGE_SCN_CNT_CODE|pe.IMAGE_SCN_MEM_EXECUTE) != 0,
		})
	}
	return mod
}
