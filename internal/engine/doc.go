// Package engine defines the contract between the orchestration layers and
// the concrete inference providers. It is structured into small files by
// concern:
//
//   - engine.go: Engine/Model/Cache interfaces, Variant names, Chunk.
//   - params.go: immutable load-time ModelParams and per-call CompletionParams.
//   - logits.go: LogitsProcessor composition, EOSBan.
//   - registry.go: explicit variant-to-engine Registry (no package globals).
//   - capacity.go: cache capacity string parsing.
//   - errors.go: error types and helpers (IsInvalidCapacity, IsUnsupported).
//
// Providers live in subpackages:
//
//   - llamaserver: managed llama-server subprocess (or external URL) speaking
//     the native HTTP API. Always compiled; the default provider.
//   - llamacpp: in-process go-llama.cpp bindings. Enabled with `-tags=llama`;
//     a no-CGO stub is compiled otherwise. CUDA builds add `-tags=cuda`.
//
// Callers should hold models through internal/llm.Handle rather than using a
// Model directly; the Handle enforces single-generation access and release
// semantics that raw Models do not.
package engine
