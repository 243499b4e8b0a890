// Package ratelimit bounds how many submission requests a given identity
// may issue inside a rolling time window. State lives in an injected store
// and time comes from an injected clock, keeping the governor deterministic
// under test.
package ratelimit
