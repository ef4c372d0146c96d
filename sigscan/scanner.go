package sigscan

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/module"
)

// Scanner scans the code sections of a module.
type Scanner struct {
	logger *log.Logger
	mem    memory.Memory
	mod    *module.Module

	sections [][]byte // cached section contents, indexed like code
	code     []module.Section
}

// New returns a scanner for the code sections of the given module.
func New(logger *log.Logger, mem memory.Memory, mod *module.Module) *Scanner {
	return &Scanner{
		logger: logger,
		mem:    mem,
		mod:    mod,
		code:   mod.CodeSections(),
	}
}

// Module returns the scanned module.
func (s *Scanner) Module() *module.Module {
	return s.mod
}

// Memory returns the memory the module is mapped in.
func (s *Scanner) Memory() memory.Memory {
	return s.mem
}

func (s *Scanner) load() error {
	if s.sections != nil {
		return nil
	}
	sections := make([][]byte, len(s.code))
	for i, section := range s.code {
		data, err := memory.Read(s.mem, section.Start, section.Size)
		if err != nil {
			return fmt.Errorf("reading section %s of %s: %w", section.Name, s.mod.Name, err)
		}
		sections[i] = data
	}
	s.sections = sections
	return nil
}

// Scan returns the address of the pattern's selected occurrence plus its
// offset.
func (s *Scanner) Scan(p Pattern) (uintptr, error) {
	if err := s.load(); err != nil {
		return 0, err
	}

	remaining := p.Occurrence
	for i, data := range s.sections {
		index, skipped := scan(data, p, remaining)
		if index < 0 {
			remaining -= skipped
			continue
		}

		address := s.code[i].Start + uintptr(index) + uintptr(p.Offset)
		s.logger.Debug("Signature found",
			log.String("signature", p.Name),
			log.Hex("address", address))
		return address, nil
	}

	return 0, fmt.Errorf("%w: %s (%s) in %s", ErrNotFound, p.Name, p, s.mod.Name)
}

// scan returns the index of the nth match in data, or -1 and the number of
// matches found.
func scan(data []byte, p Pattern, nth int) (int, int) {
	found := 0
	for i := 0; i+p.Len() <= len(data); i++ {
		if !p.Match(data, i) {
			continue
		}
		if found == nth {
			return i, found
		}
		found++
	}
	return -1, found
}

// ReadOffset resolves a 32 bit displacement operand located at address into
// the absolute address it references: address + 4 + displacement.
func ReadOffset(mem memory.Memory, address uintptr) (uintptr, error) {
	displacement, err := memory.ReadInt32(mem, address)
	if err != nil {
		return 0, fmt.Errorf("reading displacement at 0x%X: %w", address, err)
	}
	return uintptr(int64(address) + 4 + int64(displacement)), nil
}
