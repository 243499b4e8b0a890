// Package storage persists merged answer artifacts on disk. Each artifact
// is written as an opaque data file plus a JSON sidecar carrying its
// compression metadata, so a stored artifact can be reinflated later
// without any other state.
package storage
