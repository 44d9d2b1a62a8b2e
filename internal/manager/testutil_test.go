package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"companiond/internal/catalog"
	"companiond/internal/llm"
)

// createModelFile creates an empty model file and returns its path.
func createModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("GGUF"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

// testDescriptor returns a valid descriptor backed by a real file.
func testDescriptor(t *testing.T, name string) catalog.Descriptor {
	t.Helper()
	return catalog.Descriptor{
		Name:        name,
		Path:        createModelFile(t, t.TempDir(), name+".gguf"),
		Temperature: catalog.DefaultTemperature,
		TopK:        catalog.DefaultTopK,
		TopP:        catalog.DefaultTopP,
		MaxTokens:   DefaultMaxTokens,
	}
}

// fakeRuntime records loads and closes in order and counts live engines.
type fakeRuntime struct {
	mu      sync.Mutex
	loadErr error
	tokens  []string      // reply tokens for every engine
	gate    chan struct{} // when set, each reply token waits for a receive
	genErr  error
	log     []string
	live    int
	maxLive int
	engines []*fakeEngine
}

func (r *fakeRuntime) Name() string { return "fake" }

func (r *fakeRuntime) Load(ctx context.Context, path string, opts llm.LoadOptions) (llm.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.TrimSuffix(filepath.Base(path), ".gguf")
	if r.loadErr != nil {
		r.log = append(r.log, "fail:"+name)
		return nil, r.loadErr
	}
	r.log = append(r.log, "load:"+name)
	r.live++
	if r.live > r.maxLive {
		r.maxLive = r.live
	}
	e := &fakeEngine{rt: r, name: name, opts: opts}
	r.engines = append(r.engines, e)
	return e, nil
}

func (r *fakeRuntime) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type fakeEngine struct {
	rt     *fakeRuntime
	name   string
	opts   llm.LoadOptions
	mu     sync.Mutex
	closed int
	params []llm.SamplingParams
}

// Tokenize counts whitespace separated words.
func (e *fakeEngine) Tokenize(text string) ([]int32, error) {
	words := strings.Fields(text)
	out := make([]int32, len(words))
	for i := range words {
		out[i] = int32(i + 1)
	}
	return out, nil
}

func (e *fakeEngine) Generate(ctx context.Context, turns []llm.Turn, params llm.SamplingParams, onToken func(string) error) (llm.FinalResult, error) {
	e.mu.Lock()
	e.params = append(e.params, params)
	e.mu.Unlock()
	e.rt.mu.Lock()
	toks, gate, genErr := e.rt.tokens, e.rt.gate, e.rt.genErr
	e.rt.mu.Unlock()
	var b strings.Builder
	for i := 0; toks == nil || i < len(toks); i++ {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return llm.FinalResult{Content: b.String()}, ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return llm.FinalResult{Content: b.String()}, err
		}
		tok := "w "
		if toks != nil {
			tok = toks[i]
		}
		if err := onToken(tok); err != nil {
			return llm.FinalResult{Content: b.String()}, err
		}
		b.WriteString(tok)
	}
	if genErr != nil {
		return llm.FinalResult{}, genErr
	}
	return llm.FinalResult{Content: b.String(), FinishReason: "stop"}, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	e.closed++
	e.mu.Unlock()
	e.rt.mu.Lock()
	e.rt.log = append(e.rt.log, "close:"+e.name)
	e.rt.live--
	e.rt.mu.Unlock()
	return nil
}

func (e *fakeEngine) closeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

var errBoom = errors.New("boom")

// words returns a prompt of n whitespace separated words.
func words(n int) string {
	return strings.TrimSpace(strings.Repeat("hi ", n))
}

// newTestSession loads desc through rt and opens a session on it.
func newTestSession(t *testing.T, rt *fakeRuntime, desc catalog.Descriptor) (*Session, *Handle) {
	t.Helper()
	h, err := LoadHandle(testCtx(t), desc, nil, rt)
	if err != nil {
		t.Fatalf("LoadHandle: %v", err)
	}
	t.Cleanup(func() { _ = h.Unload() })
	return NewSession(h, SessionOptions{}), h
}

// collect drains a stream until it closes or the timeout fires.
func collect(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("stream did not close; got %d events", len(out))
		}
	}
}

func tokenText(evs []StreamEvent) string {
	var b strings.Builder
	for _, e := range evs {
		if e.Kind == StreamToken {
			b.WriteString(e.Text)
		}
	}
	return b.String()
}

func last(evs []StreamEvent) StreamEvent {
	if len(evs) == 0 {
		return StreamEvent{Kind: -1}
	}
	return evs[len(evs)-1]
}

// testCtx returns a context with a generous timeout for tests.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
