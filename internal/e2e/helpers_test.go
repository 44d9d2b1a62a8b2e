package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"companiond/internal/catalog"
	"companiond/internal/httpapi"
	"companiond/internal/llm"
	"companiond/internal/manager"
	"companiond/internal/storage"
	"companiond/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with stub .gguf files.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("GGUF"), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

// newServerForDir scans modelsDir and serves the API over a real listener.
func newServerForDir(t *testing.T, modelsDir string, rt llm.Runtime) (*httptest.Server, *manager.Manager) {
	t.Helper()
	models, err := catalog.ScanDir(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	store, err := storage.NewFSStore(modelsDir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{Catalog: models, Store: store, Runtime: rt})
	srv := httptest.NewServer(httpapi.NewMux(httpapi.FromManager(mgr), httpapi.Options{}))
	t.Cleanup(func() {
		srv.Close()
		mgr.Shutdown()
	})
	return srv, mgr
}

// tickRuntime emits one token per tick. The prompt "forever" never finishes;
// any other prompt is echoed word by word.
type tickRuntime struct{ tick time.Duration }

func (tickRuntime) Name() string { return "tick" }

func (r tickRuntime) Load(ctx context.Context, path string, opts llm.LoadOptions) (llm.Engine, error) {
	return &tickEngine{tick: r.tick}, nil
}

type tickEngine struct{ tick time.Duration }

func (*tickEngine) Tokenize(text string) ([]int32, error) {
	return make([]int32, len(strings.Fields(text))), nil
}

func (e *tickEngine) Generate(ctx context.Context, turns []llm.Turn, params llm.SamplingParams, onToken func(string) error) (llm.FinalResult, error) {
	prompt := turns[len(turns)-1].Text
	words := strings.Fields(prompt)
	for i := 0; prompt == "forever" || i < len(words); i++ {
		select {
		case <-ctx.Done():
			return llm.FinalResult{}, ctx.Err()
		case <-time.After(e.tick):
		}
		tok := "tick "
		if prompt != "forever" {
			tok = words[i] + " "
		}
		if err := onToken(tok); err != nil {
			return llm.FinalResult{}, err
		}
	}
	return llm.FinalResult{FinishReason: "stop"}, nil
}

func (*tickEngine) Close() error { return nil }

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// chatStream is an open /chat response read line by line.
type chatStream struct {
	resp  *http.Response
	lines chan types.ChatChunk
}

// openChat posts prompt and returns once headers arrived.
func openChat(t *testing.T, base, prompt string) *chatStream {
	t.Helper()
	body, _ := json.Marshal(types.ChatRequest{Prompt: prompt})
	req, err := http.NewRequest(http.MethodPost, base+"/chat", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("/chat status=%d body=%s", resp.StatusCode, b)
	}
	cs := &chatStream{resp: resp, lines: make(chan types.ChatChunk, 1024)}
	go func() {
		defer close(cs.lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			var c types.ChatChunk
			if json.Unmarshal(sc.Bytes(), &c) == nil {
				cs.lines <- c
			}
		}
	}()
	t.Cleanup(func() { _ = resp.Body.Close() })
	return cs
}

// next returns the next chunk or fails after a timeout.
func (cs *chatStream) next(t *testing.T) (types.ChatChunk, bool) {
	t.Helper()
	select {
	case c, ok := <-cs.lines:
		return c, ok
	case <-time.After(5 * time.Second):
		t.Fatalf("no chat line in time")
		return types.ChatChunk{}, false
	}
}

// rest drains the stream and returns the remaining chunks.
func (cs *chatStream) rest(t *testing.T) []types.ChatChunk {
	t.Helper()
	var out []types.ChatChunk
	for {
		c, ok := cs.next(t)
		if !ok {
			return out
		}
		out = append(out, c)
	}
}
