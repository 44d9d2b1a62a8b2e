package manager

import (
	"context"
	"errors"
	"sync"

	"companiond/internal/catalog"
	"companiond/internal/llm"
	"companiond/internal/storage"
)

// Handle owns the loaded engine of exactly one descriptor. Engine calls are
// borrowed by the session; Unload waits for them before closing the engine.
type Handle struct {
	desc    catalog.Descriptor
	path    string
	runtime string
	eng     llm.Engine

	mu       sync.Mutex
	unloaded bool
	inflight sync.WaitGroup

	once     sync.Once
	closeErr error
}

// LoadHandle resolves desc through store and loads it with rt. A nil store
// only resolves descriptors with a local Path.
func LoadHandle(ctx context.Context, desc catalog.Descriptor, store storage.Store, rt llm.Runtime) (*Handle, error) {
	if rt == nil {
		return nil, &LoadError{Kind: LoadBackendInitFailed, Model: desc.Name, Err: errors.New("no runtime configured")}
	}
	if store == nil {
		store = storage.Unrooted()
	}
	if !store.Exists(desc) {
		return nil, &LoadError{Kind: LoadNotFound, Model: desc.Name}
	}
	path := store.Path(desc)
	if path == "" {
		return nil, &LoadError{Kind: LoadNotFound, Model: desc.Name}
	}
	eng, err := rt.Load(ctx, path, llm.LoadOptions{
		Backend:     desc.Backend,
		ContextSize: desc.MaxTokens,
		Sampling:    llm.SamplingFrom(desc),
	})
	if err != nil {
		return nil, &LoadError{Kind: LoadBackendInitFailed, Model: desc.Name, Err: err}
	}
	return &Handle{desc: desc, path: path, runtime: rt.Name(), eng: eng}, nil
}

// Descriptor returns the descriptor this handle was loaded for.
func (h *Handle) Descriptor() catalog.Descriptor { return h.desc }

// Path is the resolved model file.
func (h *Handle) Path() string { return h.path }

// Loaded reports whether Unload has not been called yet.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.unloaded
}

func (h *Handle) acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return ErrHandleUnloaded
	}
	h.inflight.Add(1)
	return nil
}

// Tokenize counts text with the model's tokenizer.
func (h *Handle) Tokenize(text string) ([]int32, error) {
	if err := h.acquire(); err != nil {
		return nil, err
	}
	defer h.inflight.Done()
	return h.eng.Tokenize(text)
}

// Generate streams a reply through the engine.
func (h *Handle) Generate(ctx context.Context, turns []llm.Turn, params llm.SamplingParams, onToken func(string) error) (llm.FinalResult, error) {
	if err := h.acquire(); err != nil {
		return llm.FinalResult{}, err
	}
	defer h.inflight.Done()
	return h.eng.Generate(ctx, turns, params, onToken)
}

// Unload releases the engine once. Later calls return the first result.
func (h *Handle) Unload() error {
	h.once.Do(func() {
		h.mu.Lock()
		h.unloaded = true
		h.mu.Unlock()
		h.inflight.Wait()
		h.closeErr = h.eng.Close()
	})
	return h.closeErr
}
