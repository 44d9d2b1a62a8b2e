package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"companiond/internal/manager"
	"companiond/pkg/types"
)

type server struct {
	svc  Service
	opts Options
	lvl  LogLevel
	log  zerolog.Logger
}

// NewMux builds the HTTP API over svc.
func NewMux(svc Service, opts Options) http.Handler {
	opts = opts.withDefaults()
	s := &server{svc: svc, opts: opts, lvl: parseLevel(opts.LogLevel), log: opts.Logger}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; NDJSON streams are not compressed.
	r.Use(middleware.Compress(5, "application/json"))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: opts.CORSMethods,
			AllowedHeaders: opts.CORSHeaders,
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", s.handleModels)
	r.Post("/select", s.handleSelect)
	r.Post("/chat", s.handleChat)
	r.Post("/cancel", s.handleCancel)
	r.Post("/reset", s.handleReset)
	r.Get("/session", s.handleSession)
	r.Get("/events", s.handleEvents)
	r.Get("/status", s.handleStatus)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(svc.Status().State))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// decodeJSON enforces the content type and body limit, then decodes into v.
func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *server) fail(w http.ResponseWriter, l zerolog.Logger, lvl LogLevel, start time.Time, err error) {
	status := statusFor(err)
	writeJSONError(w, status, err.Error())
	logEnd(l, lvl, status, start, err)
}

// handleModels godoc
// @Summary      List catalog models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Models())
}

// handleStatus godoc
// @Summary      Manager status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// handleSelect godoc
// @Summary      Select a model
// @Description  Loads the named catalog model, replacing the current one.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.SelectRequest  true  "model name"
// @Success      200   {object}  types.StatusResponse
// @Failure      404   {object}  types.ErrorResponse
// @Failure      422   {object}  types.ErrorResponse
// @Failure      503   {object}  types.ErrorResponse
// @Router       /select [post]
func (s *server) handleSelect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lvl := requestLogLevel(r, s.lvl)
	l := requestLogger(s.log, r)
	var req types.SelectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	if err := s.svc.SelectByName(r.Context(), req.Model); err != nil {
		s.fail(w, l, lvl, start, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status())
	logEnd(l, lvl, http.StatusOK, start, nil)
}

// handleSession godoc
// @Summary      Current conversation
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.SessionResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /session [get]
func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Session()
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, manager.SessionReport(sess.Snapshot()))
}

// handleCancel godoc
// @Summary      Cancel the running reply
// @Tags         session
// @Produce      json
// @Success      202  {object}  types.SessionResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /cancel [post]
func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lvl := requestLogLevel(r, s.lvl)
	l := requestLogger(s.log, r)
	sess, err := s.svc.Session()
	if err == nil {
		err = sess.Cancel()
	}
	if err != nil {
		s.fail(w, l, lvl, start, err)
		return
	}
	writeJSON(w, http.StatusAccepted, manager.SessionReport(sess.Snapshot()))
	logEnd(l, lvl, http.StatusAccepted, start, nil)
}

// handleReset godoc
// @Summary      Clear the conversation
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.SessionResponse
// @Failure      409  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Router       /reset [post]
func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lvl := requestLogLevel(r, s.lvl)
	l := requestLogger(s.log, r)
	if err := s.svc.ResetCurrentSession(); err != nil {
		s.fail(w, l, lvl, start, err)
		return
	}
	sess, err := s.svc.Session()
	if err != nil {
		s.fail(w, l, lvl, start, err)
		return
	}
	writeJSON(w, http.StatusOK, manager.SessionReport(sess.Snapshot()))
	logEnd(l, lvl, http.StatusOK, start, nil)
}

// handleChat godoc
// @Summary      Send a prompt
// @Description  Streams the reply as NDJSON lines of types.ChatChunk.
// @Tags         session
// @Accept       json
// @Produce      application/x-ndjson
// @Param        body  body      types.ChatRequest  true  "prompt"
// @Success      200   {object}  types.ChatChunk
// @Failure      409   {object}  types.ErrorResponse
// @Failure      413   {object}  types.ErrorResponse
// @Failure      429   {object}  types.ErrorResponse
// @Router       /chat [post]
func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lvl := requestLogLevel(r, s.lvl)
	l := requestLogger(s.log, r)
	var req types.ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	sess, err := s.svc.Session()
	if err != nil {
		s.fail(w, l, lvl, start, err)
		return
	}
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(s.opts.BaseContext, r.Context())
	defer cancel()
	events, err := sess.Submit(ctx, req.Prompt)
	if err != nil {
		s.fail(w, l, lvl, start, err)
		return
	}
	if lvl >= LevelInfo {
		l.Info().Int("prompt_len", len(req.Prompt)).Msg("chat start")
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	out := io.Writer(w)
	if lvl >= LevelDebug {
		out = io.MultiWriter(w, &lineLogger{log: l})
	}
	end := streamChat(out, flusherOf(w), events)
	chatStreamsTotal.WithLabelValues(end).Inc()
	logEnd(l, lvl, http.StatusOK, start, nil)
}

// streamChat writes events as NDJSON until the channel closes and reports
// which terminal line was written. Write errors (client gone) do not stop
// the drain; the request context cancels the generation instead.
func streamChat(w io.Writer, flush func(), events <-chan manager.StreamEvent) string {
	enc := json.NewEncoder(w)
	end := "closed"
	for ev := range events {
		var chunk types.ChatChunk
		switch ev.Kind {
		case manager.StreamToken:
			chunk.Token = ev.Text
		case manager.StreamDone:
			chunk.Done = true
			chunk.Usage = &types.Usage{
				PromptTokens:     ev.Usage.PromptTokens,
				CompletionTokens: ev.Usage.CompletionTokens,
				TotalTokens:      ev.Usage.TotalTokens,
			}
			end = "done"
		case manager.StreamCancelled:
			chunk.Cancelled = true
			end = "cancelled"
		case manager.StreamError:
			chunk.Error = ev.Err.Error()
			chunk.Code = "generation_failed"
			if manager.IsBudgetExceeded(ev.Err) {
				chunk.Code = "budget_exceeded"
			}
			end = "error"
		}
		_ = enc.Encode(chunk)
		flush()
	}
	if end == "closed" {
		_ = enc.Encode(types.ChatChunk{Error: manager.ErrClosed.Error(), Code: "closed"})
		flush()
	}
	return end
}

// handleEvents godoc
// @Summary      Manager event stream
// @Description  NDJSON lines of types.EventMessage until the client disconnects.
// @Tags         status
// @Produce      application/x-ndjson
// @Success      200  {object}  types.EventMessage
// @Router       /events [get]
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := joinContexts(s.opts.BaseContext, r.Context())
	defer cancel()
	events, unsubscribe := s.svc.Subscribe(64)
	defer unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flush := flusherOf(w)
	flush()
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			msg := types.EventMessage{Name: e.Name, Model: e.ModelID, Fields: e.Fields, TimeUnix: e.Time.Unix()}
			if err := enc.Encode(msg); err != nil {
				return
			}
			flush()
		}
	}
}

func flusherOf(w http.ResponseWriter) func() {
	if f, ok := w.(http.Flusher); ok {
		return f.Flush
	}
	return func() {}
}
