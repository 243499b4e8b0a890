// Package server implements the HTTP API for the ScoreSpoken submission
// service. It accepts multipart answer uploads, runs them through assembly,
// compression and storage, forwards them to the scoring backend, and
// provides monitoring/management endpoints.
package server
