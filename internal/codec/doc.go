// Package codec implements lossless compression of audio buffers with a
// graceful uncompressed fallback. Payloads carry enough metadata to be
// decompressed later and to persist a sidecar record alongside stored audio.
package codec
