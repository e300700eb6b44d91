// Package lifecycle owns the appliance's single inference engine instance:
// validating artifacts, building the engine once, and tearing it down. It is
// structured into small files by concern:
//
//   - manager.go: Manager type, constructor, step-budget policy.
//   - storage.go: Storage (fs.FS) and the OS-backed implementation.
//   - inspect.go: artifact header and tokenizer validation.
//   - load.go: Load, the one-time build of the engine handle.
//   - handle.go: Handle (the EngineHandle) and GenerationRequest.
//   - sampler.go: per-handle sampler seeded from a tick-derived source.
//   - unload.go: Unload, reverse-order teardown.
//   - errors.go: error kinds and helpers (IsArtifactNotFound, IsArtifactMalformed).
//
// A Manager hands out at most one Loaded handle at a time; a second Load
// without an Unload in between fails with ErrAlreadyLoaded.
package lifecycle
