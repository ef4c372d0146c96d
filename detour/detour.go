// Package detour redirects native entry points to replacement functions
// while keeping the original function callable.
package detour

import (
	"errors"
	"fmt"
	"sync"

	"github.com/retroenv/retrogolib/log"
)

var (
	// ErrUnknownTarget is returned for addresses without a registered native.
	ErrUnknownTarget = errors.New("unknown detour target")
	// ErrAlreadyInstalled is returned when a target is redirected twice.
	ErrAlreadyInstalled = errors.New("detour already installed")
)

// Detourer redirects the native at target to replacement and returns the
// original function.
type Detourer interface {
	Install(name string, target uintptr, replacement any) (original any, err error)
	Remove(target uintptr) error
}

type entry struct {
	name        string
	original    any
	replacement any
}

// Table is a software redirect table. Natives are registered by address and
// callers resolve the currently active implementation before every call, the
// way a patched jump at the entry point would redirect them.
type Table struct {
	logger *log.Logger

	mu      sync.RWMutex
	entries map[uintptr]*entry
}

// NewTable returns an empty redirect table.
func NewTable(logger *log.Logger) *Table {
	return &Table{
		logger:  logger,
		entries: make(map[uintptr]*entry),
	}
}

// Register declares the native implementation located at target.
func (t *Table) Register(target uintptr, native any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[target] = &entry{original: native}
}

// Install implements Detourer.
func (t *Table) Install(name string, target uintptr, replacement any) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s at 0x%X", ErrUnknownTarget, name, target)
	}
	if e.replacement != nil {
		return nil, fmt.Errorf("%w: %s at 0x%X by %s", ErrAlreadyInstalled, name, target, e.name)
	}
	e.name = name
	e.replacement = replacement

	t.logger.Debug("Detour installed", log.String("name", name), log.Hex("address", target))
	return e.original, nil
}

// Remove implements Detourer.
func (t *Table) Remove(target uintptr) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[target]
	if !ok {
		return fmt.Errorf("%w: 0x%X", ErrUnknownTarget, target)
	}
	e.replacement = nil
	return nil
}

// Resolve returns the implementation a call to target currently reaches.
func (t *Table) Resolve(target uintptr) (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[target]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%X", ErrUnknownTarget, target)
	}
	if e.replacement != nil {
		return e.replacement, nil
	}
	return e.original, nil
}

// Install redirects target to replacement and returns the typed original.
func Install[F any](d Detourer, name string, target uintptr, replacement F) (F, error) {
	var zero F
	original, err := d.Install(name, target, replacement)
	if err != nil {
		return zero, err
	}
	fn, ok := original.(F)
	if !ok {
		_ = d.Remove(target)
		return zero, fmt.Errorf("detour %s: original is %T, expected %T", name, original, zero)
	}
	return fn, nil
}

// Resolve returns the typed implementation a call to target currently reaches.
func Resolve[F any](t *Table, target uintptr) (F, error) {
	var zero F
	impl, err := t.Resolve(target)
	if err != nil {
		return zero, err
	}
	fn, ok := impl.(F)
	if !ok {
		return zero, fmt.Errorf("detour target 0x%X is %T, expected %T", target, impl, zero)
	}
	return fn, nil
}
