package frame

import (
	"fmt"
	"sync"

	"github.com/retroenv/retrohook/reflection"
)

// NativeCount is the number of entries of the engine's native table.
const NativeCount = 0x1000

// Native evaluates one expression of a frame into result, advancing the
// frame's cursor past the expression.
type Native func(obj reflection.Object, f Frame, result uintptr) error

// Natives executes expressions by opcode.
type Natives interface {
	Exec(opcode uint16, obj reflection.Object, f Frame, result uintptr) error
}

// NativeTable is a table of natives indexed by opcode.
type NativeTable struct {
	mu      sync.RWMutex
	natives [NativeCount]Native
}

// NewNativeTable returns an empty native table.
func NewNativeTable() *NativeTable {
	return &NativeTable{}
}

// Register sets the native of an opcode.
func (t *NativeTable) Register(opcode uint16, native Native) error {
	if int(opcode) >= NativeCount {
		return fmt.Errorf("%w: 0x%X exceeds the native table", ErrUnknownOpcode, opcode)
	}
	t.mu.Lock()
	t.natives[opcode] = native
	t.mu.Unlock()
	return nil
}

// Exec implements Natives.
func (t *NativeTable) Exec(opcode uint16, obj reflection.Object, f Frame, result uintptr) error {
	var native Native
	if int(opcode) < NativeCount {
		t.mu.RLock()
		native = t.natives[opcode]
		t.mu.RUnlock()
	}
	if native == nil {
		return fmt.Errorf("%w: 0x%X", ErrUnknownOpcode, opcode)
	}
	return native(obj, f, result)
}
