// Package llm owns loaded models. A Handle is the single owner of one
// engine model plus its optional completion cache: the tokenizer and the
// generator are the same object and share one lifecycle. It is structured
// into small files by concern:
//
//   - handle.go: Handle type, Load, encode/decode, release semantics.
//   - generate.go: the generation pipeline (truncation, completion loop,
//     cancellation) and the prompt budget policy.
//   - stream.go: pull-based streaming over a bounded channel.
//   - errors.go: error types and helpers (IsBusy, IsReleased, IsEncoding).
//
// Exactly one generation may run per Handle; a second caller gets a busy
// error rather than queueing. Release waits for the in-flight generation to
// finish, is idempotent, and is also armed as a finalizer so abandoned
// handles free engine memory.
package llm
