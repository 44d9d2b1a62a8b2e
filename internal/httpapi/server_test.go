package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"companiond/internal/catalog"
	"companiond/internal/manager"
	"companiond/pkg/types"
)

type mockSession struct {
	mu        sync.Mutex
	events    []manager.StreamEvent
	submitErr error
	cancelErr error
	snap      manager.SessionSnapshot
	prompts   []string
}

func (s *mockSession) Submit(ctx context.Context, prompt string) (<-chan manager.StreamEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.prompts = append(s.prompts, prompt)
	ch := make(chan manager.StreamEvent, len(s.events))
	for _, e := range s.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (s *mockSession) Cancel() error                     { return s.cancelErr }
func (s *mockSession) Snapshot() manager.SessionSnapshot { return s.snap }

type mockService struct {
	models    types.ModelsResponse
	status    types.StatusResponse
	ready     bool
	selectErr error
	resetErr  error
	session   *mockSession
	selected  string
	bus       *manager.Broadcaster
}

func (m *mockService) Models() types.ModelsResponse { return m.models }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }
func (m *mockService) SelectByName(ctx context.Context, name string) error {
	if m.selectErr != nil {
		return m.selectErr
	}
	m.selected = name
	return nil
}
func (m *mockService) Session() (Session, error) {
	if m.session == nil {
		return nil, manager.ErrNotSelected
	}
	return m.session, nil
}
func (m *mockService) ResetCurrentSession() error {
	if m.session == nil {
		return manager.ErrNotSelected
	}
	return m.resetErr
}
func (m *mockService) Subscribe(buf int) (<-chan manager.Event, func()) {
	if m.bus == nil {
		m.bus = manager.NewBroadcaster()
	}
	return m.bus.Subscribe(buf)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeLines(t *testing.T, body []byte) []types.ChatChunk {
	t.Helper()
	var out []types.ChatChunk
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var c types.ChatChunk
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, c)
	}
	return out
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: types.ModelsResponse{Models: []types.ModelInfo{{Name: "m1", Selected: true}, {Name: "m2"}}}}
	w := doJSON(t, NewMux(svc, Options{}), http.MethodGet, "/models", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 || !body.Models[0].Selected {
		t.Fatalf("models=%+v", body.Models)
	}
}

func TestStatusAndProbes(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "loading", Runtime: "llama"}}
	h := NewMux(svc, Options{})
	w := doJSON(t, h, http.MethodGet, "/status", "")
	var st types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || st.Runtime != "llama" {
		t.Fatalf("status body=%s err=%v", w.Body.String(), err)
	}
	if w := doJSON(t, h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz=%d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("readyz=%d %q", w.Code, w.Body.String())
	}
	svc.ready = true
	if w := doJSON(t, h, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz=%d", w.Code)
	}
	if w := doJSON(t, h, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Fatalf("metrics=%d", w.Code)
	}
}

func TestSelectHandler(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc, Options{})
	if w := doJSON(t, h, http.MethodPost, "/select", `{"model":"qwen"}`); w.Code != http.StatusOK || svc.selected != "qwen" {
		t.Fatalf("select=%d selected=%q", w.Code, svc.selected)
	}
	if w := doJSON(t, h, http.MethodPost, "/select", `{"model":""}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty model=%d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/select", `{"model":`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json=%d", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(`{"model":"x"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("no content type=%d", w.Code)
	}

	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrModelNotFound("x"), http.StatusNotFound},
		{&manager.LoadError{Kind: manager.LoadNotFound, Model: "x"}, http.StatusNotFound},
		{&manager.LoadError{Kind: manager.LoadBackendInitFailed, Model: "x", Err: errors.New("oom")}, http.StatusServiceUnavailable},
		{&catalog.ConfigError{Model: "x", Field: "TopP", Reason: "must be <= 1"}, http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		svc.selectErr = c.err
		w := doJSON(t, h, http.MethodPost, "/select", `{"model":"x"}`)
		if w.Code != c.want {
			t.Fatalf("%v: status=%d want %d", c.err, w.Code, c.want)
		}
		var e types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != c.want || e.Error == "" {
			t.Fatalf("error body=%s", w.Body.String())
		}
	}
}

func TestSelectBodyLimit(t *testing.T) {
	h := NewMux(&mockService{}, Options{MaxBodyBytes: 16})
	w := doJSON(t, h, http.MethodPost, "/select", `{"model":"`+strings.Repeat("x", 64)+`"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatStreamsTokensThenDone(t *testing.T) {
	sess := &mockSession{events: []manager.StreamEvent{
		{Kind: manager.StreamToken, Text: "Hel"},
		{Kind: manager.StreamToken, Text: "lo"},
		{Kind: manager.StreamDone, Usage: manager.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}},
	}}
	h := NewMux(&mockService{session: sess}, Options{})
	w := doJSON(t, h, http.MethodPost, "/chat", `{"prompt":"hi there"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%s", ct)
	}
	lines := decodeLines(t, w.Body.Bytes())
	if len(lines) != 3 || lines[0].Token != "Hel" || lines[1].Token != "lo" {
		t.Fatalf("lines=%+v", lines)
	}
	if !lines[2].Done || lines[2].Usage == nil || lines[2].Usage.TotalTokens != 5 {
		t.Fatalf("final=%+v", lines[2])
	}
	if sess.prompts[0] != "hi there" {
		t.Fatalf("prompt=%q", sess.prompts[0])
	}
}

func TestChatTerminalLines(t *testing.T) {
	cases := []struct {
		name   string
		events []manager.StreamEvent
		check  func(types.ChatChunk) bool
	}{
		{"cancelled", []manager.StreamEvent{{Kind: manager.StreamCancelled}}, func(c types.ChatChunk) bool { return c.Cancelled }},
		{"budget", []manager.StreamEvent{{Kind: manager.StreamError, Err: manager.ErrBudgetExceeded}}, func(c types.ChatChunk) bool { return c.Code == "budget_exceeded" }},
		{"failed", []manager.StreamEvent{{Kind: manager.StreamError, Err: errors.New("decode")}}, func(c types.ChatChunk) bool {
			return c.Code == "generation_failed" && c.Error == "decode"
		}},
		{"closed", []manager.StreamEvent{{Kind: manager.StreamToken, Text: "a"}}, func(c types.ChatChunk) bool { return c.Code == "closed" }},
	}
	for _, c := range cases {
		h := NewMux(&mockService{session: &mockSession{events: c.events}}, Options{})
		w := doJSON(t, h, http.MethodPost, "/chat", `{"prompt":"x"}`)
		lines := decodeLines(t, w.Body.Bytes())
		if len(lines) == 0 || !c.check(lines[len(lines)-1]) {
			t.Fatalf("%s: lines=%+v", c.name, lines)
		}
	}
}

func TestChatErrors(t *testing.T) {
	h := NewMux(&mockService{}, Options{})
	if w := doJSON(t, h, http.MethodPost, "/chat", `{"prompt":"x"}`); w.Code != http.StatusConflict {
		t.Fatalf("not selected=%d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/chat", `{"prompt":"  "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty prompt=%d", w.Code)
	}
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrBusy, http.StatusTooManyRequests},
		{manager.ErrFailed, http.StatusConflict},
		{manager.ErrClosed, http.StatusGone},
		{manager.ErrBudgetExceeded, http.StatusRequestEntityTooLarge},
	}
	for _, c := range cases {
		h := NewMux(&mockService{session: &mockSession{submitErr: c.err}}, Options{})
		if w := doJSON(t, h, http.MethodPost, "/chat", `{"prompt":"x"}`); w.Code != c.want {
			t.Fatalf("%v: status=%d want %d", c.err, w.Code, c.want)
		}
	}
}

func TestCancelResetSession(t *testing.T) {
	sess := &mockSession{snap: manager.SessionSnapshot{ID: "s1", Model: "m", State: manager.SessionCancelled, Budget: manager.NewBudget(2048, 256)}}
	svc := &mockService{session: sess}
	h := NewMux(svc, Options{})

	w := doJSON(t, h, http.MethodPost, "/cancel", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("cancel=%d", w.Code)
	}
	sess.cancelErr = manager.ErrNotGenerating
	if w := doJSON(t, h, http.MethodPost, "/cancel", ""); w.Code != http.StatusConflict {
		t.Fatalf("cancel idle=%d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/session", "")
	var sr types.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sr); err != nil || sr.ID != "s1" || sr.State != "cancelled" || sr.Budget.Remaining != 1792 {
		t.Fatalf("session=%s err=%v", w.Body.String(), err)
	}

	if w := doJSON(t, h, http.MethodPost, "/reset", ""); w.Code != http.StatusOK {
		t.Fatalf("reset=%d", w.Code)
	}
	svc.resetErr = manager.ErrBusy
	if w := doJSON(t, h, http.MethodPost, "/reset", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("reset busy=%d", w.Code)
	}
	svc.session = nil
	if w := doJSON(t, h, http.MethodGet, "/session", ""); w.Code != http.StatusConflict {
		t.Fatalf("session unselected=%d", w.Code)
	}
}

func TestEventsStream(t *testing.T) {
	svc := &mockService{bus: manager.NewBroadcaster()}
	srv := httptest.NewServer(NewMux(svc, Options{}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	// The handler subscribes before writing headers.
	for svc.bus.Len() == 0 {
		time.Sleep(time.Millisecond)
	}
	svc.bus.Publish(manager.Event{Name: "ready", ModelID: "m", Time: time.Unix(1700000000, 0)})

	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() {
		t.Fatalf("no event line: %v", sc.Err())
	}
	var msg types.EventMessage
	if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
		t.Fatalf("json: %v", err)
	}
	if msg.Name != "ready" || msg.Model != "m" || msg.TimeUnix != 1700000000 {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestCORSOptIn(t *testing.T) {
	h := NewMux(&mockService{}, Options{CORSOrigins: []string{"http://ui.local"}})
	req := httptest.NewRequest(http.MethodOptions, "/models", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow-origin=%q", got)
	}

	h = NewMux(&mockService{}, Options{})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Origin", "http://ui.local")
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("cors must be off by default, got %q", got)
	}
}

func TestMountSwaggerNoOp(t *testing.T) {
	h := NewMux(&mockService{}, Options{})
	if w := doJSON(t, h, http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusNotFound && w.Code != http.StatusOK {
		t.Fatalf("swagger=%d", w.Code)
	}
}
