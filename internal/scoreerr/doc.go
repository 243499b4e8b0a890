// Package scoreerr defines the structured error taxonomy shared by the
// submission pipeline. Every user-visible failure carries a stable code,
// a human-readable message, and a recoverable flag that callers use to
// decide whether a retry makes sense.
package scoreerr
