package closer

import "errors"

// CloseFn releases a resource.
type CloseFn func() error

// Nop is a CloseFn that does nothing.
func Nop() error { return nil }

// Stack adds the given "stacked" function to run upon close.
// It will be called before this (method-receiver) function that it is stacked on top of.
// Errors of both are joined.
func (fn *CloseFn) Stack(stacked func() error) {
	self := *fn
	if self == nil {
		self = Nop
	}
	*fn = func() error {
		return errors.Join(stacked(), self())
	}
}

// Maybe prepares a conditional close:
// it may be canceled by calling cancel, and the close call will then be a no-op.
// Constructors use this to release what they opened when a later step fails,
// and cancel once they return successfully.
func (fn CloseFn) Maybe() (cancel func(), close func() error) {
	do := true
	cancel = func() {
		do = false
	}
	close = func() error {
		if do && fn != nil {
			return fn()
		}
		return nil
	}
	return
}
