//go:build llama

package llamacpp

// Link directives for the in-process engine. The $ORIGIN rpath makes the
// runtime loader search next to the built Go binary for libllama.so and
// libggml*.so, and the -L path resolves libllama.so at link time when
// building with -tags llama. No environment variables are needed.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../../bin -lllama
*/
import "C"
