// Package publish drives a video asset from raw file to live availability
// through a fixed sequence of steps: validate, transfer, persist, transcode,
// thumbnail, transcribe, finalize. The orchestrator owns the canonical step
// state and emits immutable snapshots to observers on every transition.
package publish
