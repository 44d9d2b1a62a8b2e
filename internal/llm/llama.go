//go:build llama

package llm

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"companiond/internal/catalog"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// acceleratedLayers offloads every layer; llama.cpp clamps to the model depth.
const acceleratedLayers = 999

type llamaRuntime struct {
	threads int
}

// NewLlamaRuntime returns the in-process go-llama.cpp runtime.
func NewLlamaRuntime(threads int) Runtime {
	return &llamaRuntime{threads: threads}
}

func (r *llamaRuntime) Name() string { return "llama" }

func (r *llamaRuntime) Load(ctx context.Context, path string, opts LoadOptions) (Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{llama.SetContext(opts.ContextSize)}
	switch opts.Backend {
	case catalog.BackendAccelerated:
		mo = append(mo, llama.SetGPULayers(acceleratedLayers), llama.EnableF16Memory)
	case catalog.BackendDefault:
		mo = append(mo, llama.SetGPULayers(0))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = r.threads
	}
	return &llamaEngine{model: m, threads: threads, base: opts.Sampling}, nil
}

// llamaEngine owns the loaded model.
type llamaEngine struct {
	model   *llama.LLama
	threads int
	base    SamplingParams
}

func (e *llamaEngine) Tokenize(text string) ([]int32, error) {
	if e.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	_, toks, err := e.model.TokenizeString(text, llama.SetThreads(max(1, e.threads)))
	if err != nil {
		return nil, err
	}
	return toks, nil
}

func (e *llamaEngine) Generate(ctx context.Context, turns []Turn, params SamplingParams, onToken func(string) error) (FinalResult, error) {
	if e.model == nil {
		return FinalResult{}, errors.New("llama model not initialized")
	}
	var cbErr error
	completion := 0
	// Bridge token streaming to onToken and respect cancellation
	e.model.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := onToken(tok); err != nil {
			cbErr = err
			return false
		}
		completion++
		return true
	})
	defer e.model.SetTokenCallback(nil)

	text, err := e.model.Predict(FormatPrompt(turns), predictOptions(e.base, params, e.threads)...)
	if cbErr != nil {
		return FinalResult{Content: text}, cbErr
	}
	if ctx.Err() != nil {
		return FinalResult{Content: text}, ctx.Err()
	}
	if err != nil {
		return FinalResult{}, err
	}
	return FinalResult{
		Content:      text,
		Usage:        Usage{CompletionTokens: completion, TotalTokens: completion},
		FinishReason: "stop",
	}, nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions layers per-call params over the load-time defaults and then
// over go-llama.cpp's own defaults.
func predictOptions(base, params SamplingParams, threads int) []llama.PredictOption {
	temp := zf(params.Temperature, base.Temperature)
	po := []llama.PredictOption{
		llama.SetTokens(zn(params.MaxTokens, llama.DefaultOptions.Tokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(params.TopP, zf(base.TopP, llama.DefaultOptions.TopP))),
		llama.SetTopK(zn(params.TopK, zn(base.TopK, llama.DefaultOptions.TopK))),
		llama.SetTemperature(temp),
		llama.SetStopWords(stopWords...),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	return po
}
