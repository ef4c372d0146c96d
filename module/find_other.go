//go:build !windows

package module

import (
	"errors"
	"fmt"
)

var errUnsupportedPlatform = errors.New("in process module lookup is only supported on windows")

// Find returns the module with the given name that is loaded into the current
// process.
func Find(name string) (*Module, error) {
	return nil, fmt.Errorf("finding module '%s': %w", name, errUnsupportedPlatform)
}
