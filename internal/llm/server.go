package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const defaultReadyTimeout = 60 * time.Second

// ServerConfig configures the llama-server runtime.
type ServerConfig struct {
	// Bin is the llama-server binary; empty means discover it.
	Bin string
	// BaseURL attaches to an already running server instead of spawning one
	// per load. The model file then has to match what that server serves.
	BaseURL string
	APIKey  string
	// Host and port range for spawned servers (default 127.0.0.1, any port).
	Host      string
	PortStart int
	PortEnd   int
	Threads   int
	ExtraArgs []string
	// ReadyTimeout bounds the wait for a spawned server to answer /health.
	ReadyTimeout time.Duration
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

type serverRuntime struct {
	cfg ServerConfig
	// Intentionally Timeout=0: every call carries a context deadline.
	http *http.Client
}

// NewServerRuntime returns a runtime backed by llama.cpp's llama-server.
func NewServerRuntime(cfg ServerConfig) Runtime {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	cli := cfg.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 0}
	}
	return &serverRuntime{cfg: cfg, http: cli}
}

func (r *serverRuntime) Name() string { return "server" }

func (r *serverRuntime) Load(ctx context.Context, path string, opts LoadOptions) (Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	var (
		base string
		proc *serverProc
		err  error
	)
	if r.cfg.BaseURL != "" {
		base = strings.TrimRight(r.cfg.BaseURL, "/")
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = checkHealth(hctx, r.http, base)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("llama-server at %s unavailable: %w", base, err)
		}
	} else {
		proc, err = r.spawn(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		base = proc.baseURL
	}
	oc := openai.DefaultConfig(r.cfg.APIKey)
	oc.BaseURL = base + "/v1"
	oc.HTTPClient = &samplingDoer{next: r.http}
	return &serverEngine{
		base:   base,
		apiKey: r.cfg.APIKey,
		http:   r.http,
		client: openai.NewClientWithConfig(oc),
		proc:   proc,
		log:    r.cfg.Logger,
	}, nil
}

type serverEngine struct {
	base   string
	apiKey string
	http   *http.Client
	client *openai.Client
	proc   *serverProc // nil when attached
	log    zerolog.Logger
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int32 `json:"tokens"`
}

// Tokenize uses llama-server's native /tokenize endpoint.
func (e *serverEngine) Tokenize(text string) ([]int32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	body, _ := json.Marshal(tokenizeRequest{Content: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+"/tokenize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("llama server tokenize error: %s: %s", resp.Status, string(b))
	}
	var out tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tokenize response: %w", err)
	}
	return out.Tokens, nil
}

func toMessages(turns []Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Text})
	}
	return msgs
}

// Generate streams a chat completion. Each streamed delta is one token for
// llama-server, which flushes per sampled token.
func (e *serverEngine) Generate(ctx context.Context, turns []Turn, params SamplingParams, onToken func(string) error) (FinalResult, error) {
	req := openai.ChatCompletionRequest{
		Model:       "local",
		Messages:    toMessages(turns),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stream:      true,
	}
	// temperature is omitempty upstream; a zero would fall back to the
	// server's default instead of greedy decoding.
	if req.Temperature <= 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	if params.Seed != 0 {
		seed := params.Seed
		req.Seed = &seed
	}
	if params.TopK > 0 {
		ctx = context.WithValue(ctx, topKKey{}, params.TopK)
	}
	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, fmt.Errorf("llama server stream: %w", err)
	}
	defer stream.Close()

	var (
		final FinalResult
		b     strings.Builder
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			e.log.Warn().Err(err).Msg("server_stream_read_error")
			return final, err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		c := chunk.Choices[0]
		if frag := c.Delta.Content; frag != "" {
			if cbErr := onToken(frag); cbErr != nil {
				return final, cbErr
			}
			b.WriteString(frag)
			final.Usage.CompletionTokens++
		}
		if c.FinishReason != "" {
			final.FinishReason = string(c.FinishReason)
		}
	}
	final.Content = b.String()
	final.Usage.TotalTokens = final.Usage.PromptTokens + final.Usage.CompletionTokens
	return final, nil
}

func (e *serverEngine) Close() error {
	if e.proc == nil {
		return nil
	}
	e.proc.stop()
	e.log.Info().Int("pid", e.proc.pid).Msg("spawn_stop")
	e.proc = nil
	return nil
}

type topKKey struct{}

// samplingDoer adds the llama.cpp top_k extension to chat completion bodies.
// go-openai has no field for it.
type samplingDoer struct {
	next *http.Client
}

func (d *samplingDoer) Do(req *http.Request) (*http.Response, error) {
	k, ok := req.Context().Value(topKKey{}).(int)
	if !ok || req.Method != http.MethodPost || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return d.next.Do(req)
	}
	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read chat request: %w", err)
	}
	body, err := withTopK(raw, k)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	req.ContentLength = int64(len(body))
	return d.next.Do(req)
}

func withTopK(raw []byte, k int) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode chat request: %w", err)
	}
	m["top_k"] = json.RawMessage(fmt.Sprintf("%d", k))
	return json.Marshal(m)
}

// checkHealth reports nil once the server answers /health with 2xx.
func checkHealth(ctx context.Context, cli *http.Client, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}
