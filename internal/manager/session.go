package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"companiond/internal/catalog"
	"companiond/internal/llm"
)

// SessionState is the state of an InferenceSession.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionGenerating
	SessionCancelled
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionGenerating:
		return "generating"
	case SessionCancelled:
		return "cancelled"
	case SessionFailed:
		return "failed"
	}
	return "unknown"
}

// errStopped is returned from the token callback once the stream has been
// cancelled or closed; the engine unwinds with it.
var errStopped = errors.New("generation stopped")

// SessionOptions configures NewSession.
type SessionOptions struct {
	// Reserved is the decode offset; 0 means DefaultReservedTokens.
	Reserved  int
	Logger    zerolog.Logger
	Publisher EventPublisher
}

// Session is one conversation bound to one Handle. All methods are safe for
// concurrent use; at most one generation runs at a time.
type Session struct {
	id   string
	desc catalog.Descriptor
	log  zerolog.Logger
	pub  EventPublisher

	mu      sync.Mutex
	handle  *Handle
	state   SessionState
	failure error
	pending bool // a Submit is tokenizing outside the lock
	closed  bool
	seeded  bool // system prompt charged against the budget
	history []llm.Turn
	budget  Budget
	gen     *generation
}

// generation is the bookkeeping of one in-flight reply.
type generation struct {
	cancel   context.CancelFunc
	q        *eventQueue
	reply    int // index of the assistant turn in history, -1 until first text
	raw      int // raw tokens consumed
	filter   *llm.ThinkFilter
	started  time.Time
	promptTk int
}

// NewSession starts an idle conversation on h.
func NewSession(h *Handle, opts SessionOptions) *Session {
	if opts.Reserved <= 0 {
		opts.Reserved = DefaultReservedTokens
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	desc := h.Descriptor()
	s := &Session{
		id:     uuid.NewString(),
		desc:   desc,
		pub:    opts.Publisher,
		handle: h,
		budget: NewBudget(desc.MaxTokens, opts.Reserved),
	}
	s.log = opts.Logger.With().Str("session", s.id).Str("model", desc.Name).Logger()
	s.seedLocked()
	return s
}

func (s *Session) seedLocked() {
	s.history = s.history[:0]
	s.seeded = false
	if strings.TrimSpace(s.desc.SystemPrompt) != "" {
		s.history = append(s.history, llm.Turn{Role: llm.RoleSystem, Text: s.desc.SystemPrompt})
	}
}

// ID is the session's unique id.
func (s *Session) ID() string { return s.id }

// Descriptor returns the descriptor of the borrowed handle.
func (s *Session) Descriptor() catalog.Descriptor { return s.desc }

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure reason while in SessionFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// History returns a copy of the conversation.
func (s *Session) History() []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Budget returns a snapshot of the token budget.
func (s *Session) Budget() Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TokensRemaining estimates the room left for a reply if prompt were sent now.
func (s *Session) TokensRemaining(prompt string) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	h := s.handle
	s.mu.Unlock()
	toks, err := h.Tokenize(prompt)
	if err != nil {
		return 0, fmt.Errorf("tokenize prompt: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget.Estimate(len(toks)), nil
}

// Submit appends prompt as a user turn and starts generating the reply. The
// returned channel yields Token events followed by one terminal event and is
// closed afterwards. Callers must drain it or Close the session. Cancelling
// ctx has the same effect as Cancel.
func (s *Session) Submit(ctx context.Context, prompt string) (<-chan StreamEvent, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	case s.pending || s.gen != nil:
		s.mu.Unlock()
		return nil, ErrBusy
	case s.state == SessionFailed:
		s.mu.Unlock()
		return nil, ErrFailed
	}
	s.pending = true
	h := s.handle
	var system string
	if !s.seeded && len(s.history) > 0 && s.history[0].Role == llm.RoleSystem {
		system = s.history[0].Text
	}
	s.mu.Unlock()

	n, err := countTokens(h, system, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
	if s.closed {
		return nil, ErrClosed
	}
	if err != nil {
		if errors.Is(err, ErrHandleUnloaded) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("tokenize prompt: %w", err)
	}
	if err := s.budget.Consume(n); err != nil {
		err = fmt.Errorf("%w: prompt of %d tokens: %w", ErrBudgetExceeded, n, err)
		s.state = SessionFailed
		s.failure = err
		generationsTotal.WithLabelValues("rejected").Inc()
		s.log.Warn().Int("tokens", n).Int("remaining", s.budget.Remaining()).Msg("session_prompt_rejected")
		s.pub.Publish(Event{Name: EventSessionFailed, ModelID: s.desc.Name, Fields: map[string]any{"session": s.id, "error": err.Error()}})
		return nil, err
	}
	s.seeded = true
	s.history = append(s.history, llm.Turn{Role: llm.RoleUser, Text: prompt})
	turns := make([]llm.Turn, len(s.history))
	copy(turns, s.history)

	params := llm.SamplingFrom(s.desc)
	params.MaxTokens = s.budget.Remaining()

	genCtx, cancel := context.WithCancel(ctx)
	g := &generation{cancel: cancel, q: newEventQueue(), reply: -1, started: time.Now(), promptTk: n}
	if !s.desc.Thinking {
		g.filter = &llm.ThinkFilter{}
	}
	s.gen = g
	s.state = SessionGenerating
	s.failure = nil

	promptTokensTotal.Add(float64(n))
	budgetRemaining.Set(float64(s.budget.Remaining()))
	s.log.Info().Int("prompt_tokens", n).Int("remaining", s.budget.Remaining()).Msg("session_submit")
	s.pub.Publish(Event{Name: EventSessionSubmit, ModelID: s.desc.Name, Fields: map[string]any{"session": s.id, "prompt_tokens": n}})

	out := make(chan StreamEvent, 8)
	go g.q.pump(out)
	go s.run(genCtx, h, g, turns, params)
	return out, nil
}

func countTokens(h *Handle, system, prompt string) (int, error) {
	toks, err := h.Tokenize(prompt)
	if err != nil {
		return 0, err
	}
	n := len(toks)
	if system != "" {
		st, err := h.Tokenize(system)
		if err != nil {
			return 0, err
		}
		n += len(st)
	}
	return n, nil
}

// run drives the engine for one generation and settles the state afterwards.
func (s *Session) run(ctx context.Context, h *Handle, g *generation, turns []llm.Turn, params llm.SamplingParams) {
	defer g.q.close()
	defer g.cancel()
	stop := context.AfterFunc(ctx, func() { s.cancelGeneration(g, "context") })
	defer stop()

	res, err := h.Generate(ctx, turns, params, func(tok string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != g || s.state != SessionGenerating || ctx.Err() != nil {
			return errStopped
		}
		if err := s.budget.Consume(1); err != nil {
			return fmt.Errorf("%w: reply after %d tokens: %w", ErrBudgetExceeded, g.raw, err)
		}
		g.raw++
		text := tok
		if g.filter != nil {
			text = g.filter.Push(tok)
		}
		s.emitLocked(g, text)
		return nil
	})
	s.finish(g, res, err, ctx.Err() != nil)
}

// emitLocked appends visible text to the reply turn and queues it.
func (s *Session) emitLocked(g *generation, text string) {
	if text == "" {
		return
	}
	if g.reply < 0 {
		s.history = append(s.history, llm.Turn{Role: llm.RoleAssistant})
		g.reply = len(s.history) - 1
	}
	s.history[g.reply].Text += text
	g.q.push(StreamEvent{Kind: StreamToken, Text: text})
}

func (s *Session) finish(g *generation, res llm.FinalResult, err error, ctxDone bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dur := time.Since(g.started)
	tokensGeneratedTotal.Add(float64(g.raw))
	generationDuration.Observe(dur.Seconds())
	if s.gen != g {
		// Closed: whatever the engine produced is dropped.
		generationsTotal.WithLabelValues("closed").Inc()
		return
	}
	s.gen = nil
	budgetRemaining.Set(float64(s.budget.Remaining()))
	fields := map[string]any{"session": s.id, "tokens": g.raw, "dur_ms": dur.Milliseconds()}

	switch {
	case s.state == SessionCancelled, ctxDone && !errors.Is(err, ErrBudgetExceeded):
		s.state = SessionIdle
		g.q.push(StreamEvent{Kind: StreamCancelled})
		generationsTotal.WithLabelValues("cancelled").Inc()
		s.log.Info().Int("tokens", g.raw).Dur("dur", dur).Msg("session_cancelled")
		s.pub.Publish(Event{Name: EventSessionCancelled, ModelID: s.desc.Name, Fields: fields})
	case err == nil:
		if g.filter != nil {
			s.emitLocked(g, g.filter.Flush())
		}
		if g.reply < 0 {
			s.history = append(s.history, llm.Turn{Role: llm.RoleAssistant})
		}
		s.state = SessionIdle
		usage := Usage{PromptTokens: g.promptTk, CompletionTokens: g.raw}
		if res.Usage.CompletionTokens > usage.CompletionTokens {
			usage.CompletionTokens = res.Usage.CompletionTokens
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		g.q.push(StreamEvent{Kind: StreamDone, Usage: usage})
		generationsTotal.WithLabelValues("done").Inc()
		s.log.Info().Int("tokens", g.raw).Str("finish", res.FinishReason).Dur("dur", dur).Msg("session_done")
		s.pub.Publish(Event{Name: EventSessionDone, ModelID: s.desc.Name, Fields: fields})
	default:
		s.state = SessionFailed
		s.failure = err
		g.q.push(StreamEvent{Kind: StreamError, Err: err})
		generationsTotal.WithLabelValues("failed").Inc()
		s.log.Warn().Err(err).Int("tokens", g.raw).Msg("session_failed")
		fields["error"] = err.Error()
		s.pub.Publish(Event{Name: EventSessionFailed, ModelID: s.desc.Name, Fields: fields})
	}
}

// cancelGeneration moves g to Cancelled if it is still the running generation.
func (s *Session) cancelGeneration(g *generation, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != g || s.state != SessionGenerating {
		return false
	}
	s.state = SessionCancelled
	g.cancel()
	s.log.Debug().Str("reason", reason).Msg("session_cancel")
	return true
}

// Cancel stops the running generation. No token is emitted afterwards; the
// stream ends with a Cancelled event and the session returns to Idle.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	g := s.gen
	generating := g != nil && s.state == SessionGenerating
	s.mu.Unlock()
	if !generating || !s.cancelGeneration(g, "cancel") {
		return ErrNotGenerating
	}
	return nil
}

// Reset clears history and budget. It fails with ErrBusy during a generation.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.pending || s.gen != nil {
		return ErrBusy
	}
	s.seedLocked()
	s.budget.Reset()
	s.state = SessionIdle
	s.failure = nil
	budgetRemaining.Set(float64(s.budget.Remaining()))
	s.log.Info().Msg("session_reset")
	s.pub.Publish(Event{Name: EventSessionReset, ModelID: s.desc.Name, Fields: map[string]any{"session": s.id}})
	return nil
}

// Close releases the handle reference and ends any stream without a
// terminal event. Further operations fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	g := s.gen
	s.gen = nil
	s.handle = nil
	s.mu.Unlock()
	if g != nil {
		g.cancel()
		g.q.abandon()
	}
	s.log.Info().Msg("session_closed")
	s.pub.Publish(Event{Name: EventSessionClosed, ModelID: s.desc.Name, Fields: map[string]any{"session": s.id}})
}

// SessionSnapshot is a read-only view of a session.
type SessionSnapshot struct {
	ID      string
	Model   string
	State   SessionState
	Err     string
	History []llm.Turn
	Budget  Budget
}

// Snapshot captures state, history and budget atomically.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SessionSnapshot{
		ID:      s.id,
		Model:   s.desc.Name,
		State:   s.state,
		History: make([]llm.Turn, len(s.history)),
		Budget:  s.budget,
	}
	copy(snap.History, s.history)
	if s.failure != nil {
		snap.Err = s.failure.Error()
	}
	return snap
}
