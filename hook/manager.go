// Package hook intercepts the engine's function dispatch and runs
// registered callbacks before and after the native implementation.
package hook

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/retrohook/reflection"
)

// Type is the phase a hook runs in.
type Type int

// Hook phases in execution order.
const (
	// Pre hooks run before the native function and may block it.
	Pre Type = iota
	// Post hooks run after the native function unless it was blocked.
	Post
	// PostUnconditional hooks run after every call, blocked or not.
	PostUnconditional

	typeCount
)

func (t Type) String() string {
	switch t {
	case Pre:
		return "pre"
	case Post:
		return "post"
	case PostUnconditional:
		return "post_unconditional"
	default:
		return "unknown"
	}
}

// Callback is called for every intercepted call of a hooked function.
type Callback func(d *Details) error

type entry struct {
	identifier string
	callback   Callback
}

// List contains the hooks of a function by phase. Lists returned by the
// manager are immutable snapshots.
type List struct {
	hooks [typeCount][]entry
}

// Len returns the number of hooks of a phase.
func (l *List) Len(typ Type) int {
	return len(l.hooks[typ])
}

// HasPost returns whether any hook runs after the native function.
func (l *List) HasPost() bool {
	return len(l.hooks[Post]) > 0 || len(l.hooks[PostUnconditional]) > 0
}

func (l *List) empty() bool {
	for _, hooks := range l.hooks {
		if len(hooks) > 0 {
			return false
		}
	}
	return true
}

func (l *List) index(typ Type, identifier string) int {
	for i, h := range l.hooks[typ] {
		if h.identifier == identifier {
			return i
		}
	}
	return -1
}

func (l *List) clone() *List {
	c := &List{}
	for typ, hooks := range l.hooks {
		c.hooks[typ] = append([]entry(nil), hooks...)
	}
	return c
}

// Manager is the registry of hooks, keyed by function path name. The
// comparison of function names is case insensitive.
type Manager struct {
	logger *log.Logger
	logAll atomic.Bool

	mu     sync.RWMutex
	lists  map[string]*List
	hooked set.Set[string]    // short names of hooked functions
	paths  map[uintptr]string // function address to path
}

// NewManager returns an empty hook registry.
func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: logger,
		lists:  make(map[string]*List),
		hooked: set.New[string](),
		paths:  make(map[uintptr]string),
	}
}

func shortName(path string) string {
	return path[strings.LastIndexAny(path, ".:")+1:]
}

// Add registers a hook for the function with the given path name. It returns
// false if a hook with the same identifier is already registered for the
// function and phase.
func (m *Manager) Add(function string, typ Type, identifier string, callback Callback) bool {
	key := strings.ToLower(function)

	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[key]
	if !ok {
		list = &List{}
	}
	if list.index(typ, identifier) >= 0 {
		return false
	}

	// lists are copied on write, resolved snapshots are never modified
	list = list.clone()
	list.hooks[typ] = append(list.hooks[typ], entry{identifier: identifier, callback: callback})
	m.lists[key] = list
	m.hooked.Add(shortName(key))

	m.logger.Debug("Hook added",
		log.String("function", function),
		log.String("type", typ.String()),
		log.String("identifier", identifier))
	return true
}

// Remove unregisters a hook. It returns false if no such hook exists.
func (m *Manager) Remove(function string, typ Type, identifier string) bool {
	key := strings.ToLower(function)

	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[key]
	if !ok {
		return false
	}
	i := list.index(typ, identifier)
	if i < 0 {
		return false
	}

	list = list.clone()
	list.hooks[typ] = append(list.hooks[typ][:i], list.hooks[typ][i+1:]...)
	if !list.empty() {
		m.lists[key] = list
		return true
	}

	delete(m.lists, key)
	m.hooked = set.New[string]()
	for path := range m.lists {
		m.hooked.Add(shortName(path))
	}
	return true
}

// Has returns whether a hook is registered.
func (m *Manager) Has(function string, typ Type, identifier string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list, ok := m.lists[strings.ToLower(function)]
	return ok && list.index(typ, identifier) >= 0
}

// LogAllCalls enables logging of every intercepted call.
func (m *Manager) LogAllCalls(enabled bool) {
	m.logAll.Store(enabled)
}

// Resolve returns the hooks of a function called on obj through the given
// entry point, or nil if the function is not hooked.
func (m *Manager) Resolve(source string, fn reflection.Function, obj reflection.Object) *List {
	logAll := m.logAll.Load()
	if logAll {
		m.logger.Info("Call",
			log.String("source", source),
			log.String("function", fn.String()),
			log.String("object", obj.String()))
	}

	name, err := fn.NameString()
	if err != nil {
		return nil
	}

	m.mu.RLock()
	hooked := m.hooked.Contains(strings.ToLower(name))
	path, cached := m.paths[fn.Address]
	m.mu.RUnlock()
	if !hooked {
		return nil
	}

	if !cached {
		fullPath, err := fn.PathName()
		if err != nil {
			return nil
		}
		path = strings.ToLower(fullPath)
		m.mu.Lock()
		m.paths[fn.Address] = path
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lists[path]
}
