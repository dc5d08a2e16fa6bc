//go:build llama && cuda

package llamacpp

// CUDA reports whether the bindings were compiled against the CUDA backend.
const CUDA = true
