//go:build !llama

package llm

import "context"

// llamaBuilt is false without the 'llama' build tag; default builds stay CGO-free.
var llamaBuilt = false

type llamaRuntime struct {
	threads int
}

// NewLlamaRuntime returns a runtime that refuses to load models because this
// binary was built without go-llama.cpp.
func NewLlamaRuntime(threads int) Runtime {
	return &llamaRuntime{threads: threads}
}

func (r *llamaRuntime) Name() string { return "llama" }

func (r *llamaRuntime) Load(ctx context.Context, path string, opts LoadOptions) (Engine, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
