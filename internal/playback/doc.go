// Package playback replays stored answer artifacts strictly in order,
// inserting a synthesized tone separator between items. Playback is
// best-effort: an item error is recorded and the sequence advances.
package playback
