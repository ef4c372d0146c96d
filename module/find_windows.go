//go:build windows

package module

import (
	"fmt"
	"unsafe"

	"github.com/retroenv/retrohook/memory"
	"golang.org/x/sys/windows"
)

// Find returns the module with the given name that is loaded into the current
// process. An empty name returns the main executable.
func Find(name string) (*Module, error) {
	var namePtr *uint16
	if name != "" {
		var err error
		namePtr, err = windows.UTF16PtrFromString(name)
		if err != nil {
			return nil, fmt.Errorf("converting module name: %w", err)
		}
	}

	var handle windows.Handle
	flags := uint32(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT)
	if err := windows.GetModuleHandleEx(flags, namePtr, &handle); err != nil {
		return nil, fmt.Errorf("getting handle of module '%s': %w", name, err)
	}

	var info windows.ModuleInfo
	if err := windows.GetModuleInformation(windows.CurrentProcess(), handle, &info,
		uint32(unsafe.Sizeof(info))); err != nil {
		return nil, fmt.Errorf("getting information of module '%s': %w", name, err)
	}

	return FromMemory(name, memory.Process{}, info.BaseOfDll, int(info.SizeOfImage))
}
