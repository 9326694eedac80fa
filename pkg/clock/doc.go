// Package clock provides a tiny time abstraction.
//
// Verification code should depend on the Clocker interface instead of calling
// time.Now directly, so tests can pin the current time step and exercise
// window boundaries deterministically.
package clock
