// Package submit implements the submission orchestrator: it packages
// recorded answers into a multipart request, sends it to the remote scoring
// endpoint with a bounded timeout, retries retryable failures with
// exponential backoff and jitter, and supports cancellable deferred
// auto-submission.
package submit
