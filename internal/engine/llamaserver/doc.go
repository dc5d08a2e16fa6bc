// Package llamaserver serves models through the llama.cpp HTTP server.
//
// The engine has two modes. In spawn mode it starts one llama-server
// process per model file, picks a port from the configured range and polls
// /health until the process answers. In attach mode (Options.BaseURL set)
// it talks to a server somebody else started and never manages processes.
//
// The server's native endpoints cover the whole model contract: /tokenize
// and /detokenize for token ids, /completion for streamed generation and
// /props for the negotiated context size. An attached cache switches
// cache_prompt on, which keeps the prompt KV across calls on the server
// side.
//
// Files:
//   - llamaserver.go: Engine, Options and the prompt cache marker
//   - process.go: spawned process lifecycle (ports, readiness, stop)
//   - model.go: per-model HTTP client (tokenize, completion SSE parsing)
package llamaserver
