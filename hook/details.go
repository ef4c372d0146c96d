package hook

import (
	"fmt"

	"github.com/retroenv/retrohook/call"
	"github.com/retroenv/retrohook/property"
	"github.com/retroenv/retrohook/reflection"
)

// Details describes an intercepted call to the hook callbacks.
type Details struct {
	// Object is the object the function is called on.
	Object reflection.Object
	// Args is a private copy of the call's arguments. Changes made by pre
	// hooks are passed to the native function.
	Args *property.WrappedStruct
	// Ret holds the return value override.
	Ret *Return
	// Func is the called function bound to Object.
	Func *call.BoundFunction

	typ     Type
	blocked bool
}

// Type returns the phase the hook is running in.
func (d *Details) Type() Type {
	return d.typ
}

// Block prevents the native function from being called. It has no effect
// outside of pre hooks.
func (d *Details) Block() {
	if d.typ == Pre {
		d.blocked = true
	}
}

// Blocked returns whether a pre hook blocked the call.
func (d *Details) Blocked() bool {
	return d.blocked
}

// Return is the return value of an intercepted call. A value set by a pre
// hook overrides the value returned by the native function.
type Return struct {
	access *property.Access
	prop   reflection.Property
	value  any
	set    bool
}

// Property returns the return value property, it is nil for functions
// without return value.
func (r *Return) Property() reflection.Property {
	return r.prop
}

// HasValue returns whether a value is set.
func (r *Return) HasValue() bool {
	return r.set
}

// Get returns the current value.
func (r *Return) Get() (any, bool) {
	return r.value, r.set
}

// Set sets the return value.
func (r *Return) Set(value any) error {
	if r.prop.IsNil() {
		return reflection.ErrNoReturnParam
	}
	r.value = value
	r.set = true
	return nil
}

// Clear removes a set value.
func (r *Return) Clear() {
	r.value = nil
	r.set = false
}

// copyTo stores the value in the return slot of the parameter struct at base.
func (r *Return) copyTo(base uintptr) error {
	if err := r.access.SetProperty(r.prop, 0, base, r.value); err != nil {
		return fmt.Errorf("storing return value: %w", err)
	}
	return nil
}

// copyFrom loads the value from the return slot of the parameter struct at base.
func (r *Return) copyFrom(base uintptr) error {
	value, err := r.access.GetProperty(r.prop, 0, base)
	if err != nil {
		return fmt.Errorf("loading return value: %w", err)
	}
	r.value = value
	r.set = true
	return nil
}
