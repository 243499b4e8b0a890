// Package capture implements the acquisition controller that owns the
// audio input device for one answer at a time. It drives an explicit
// Idle -> Capturing -> Idle state machine and guarantees the device is
// released on every exit path.
package capture
