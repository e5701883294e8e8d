// Package services holds the error taxonomy and context annotations shared by
// the publish pipeline and its external collaborators.
//
// Errors produced by pipeline steps are tagged with one of the exported
// sentinel errors so the orchestrator can decide whether a failure aborts the
// job (validation, transfer, persistence) or is absorbed as a degraded outcome
// (thumbnail, transcription). Playback resolution errors are absorbed
// per-source and only become terminal after the last source in the cascade.
package services
