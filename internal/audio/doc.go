// Package audio handles answer segments, separator synthesis, and stream
// assembly. It implements PCM silence/tone generation, WAV encoding, and
// ordered concatenation of per-question recordings into one playable
// artifact with per-segment byte offsets.
package audio
