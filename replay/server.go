// ABOUTME: Local agent-platform simulator serving the SSE stream and submission endpoints.
// ABOUTME: Plays scripted scenarios to each subscriber and synthesizes full task traces for submitted messages.

package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ServerConfig configures the replay server.
type ServerConfig struct {
	// Addr is the listen address for Serve.
	Addr string

	// Token, when non-empty, is required as a bearer token on both endpoints.
	Token string

	// Scenario, when non-nil, is played to every stream subscriber on connect.
	Scenario *Scenario

	// SyntheticStepDelay spaces the frames of a synthesized task trace.
	// Defaults to 200ms.
	SyntheticStepDelay time.Duration

	// Logf logs server activity. Optional.
	Logf func(format string, args ...any)
}

// frame is one outbound SSE frame.
type frame struct {
	event string
	data  string
}

// Server simulates the agent platform for offline development and tests. It
// serves GET /v1/stream as text/event-stream and POST /v1/message as the
// submission endpoint; accepted submissions trigger a synthetic trace
// broadcast to all connected stream subscribers.
type Server struct {
	cfg ServerConfig

	mu   sync.Mutex
	subs map[chan frame]struct{}
}

// NewServer creates a replay Server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.SyntheticStepDelay <= 0 {
		cfg.SyntheticStepDelay = 200 * time.Millisecond
	}
	return &Server{cfg: cfg, subs: make(map[chan frame]struct{})}
}

// Router builds the chi router with logging and panic recovery.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/v1/stream", s.handleStream)
	r.Post("/v1/message", s.handleMessage)
	return r
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.logf("[replay] listening on %s", s.cfg.Addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	writeFrame(w, fl, "connected", "replay stream live")

	ctx := r.Context()
	if s.cfg.Scenario != nil {
		go s.playScenario(ctx, ch)
	}

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			writeFrame(w, fl, "keepalive", "ping")
		case f := <-ch:
			writeFrame(w, fl, f.event, f.data)
		}
	}
}

// playScenario feeds the configured script into one subscriber's channel,
// honoring per-step delays and stopping on disconnect.
func (s *Server) playScenario(ctx context.Context, ch chan frame) {
	for _, step := range s.cfg.Scenario.Steps {
		if d := step.Delay(); d > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
		}
		data, err := step.EncodeData()
		if err != nil {
			s.logf("[replay] skipping scenario step: %v", err)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case ch <- frame{event: step.Event, data: data}:
		}
	}
}

// messageRequest mirrors the submission endpoint's wire shape.
type messageRequest struct {
	Message         string `json:"message"`
	ChannelID       string `json:"channel_id"`
	ClientRequestID string `json:"client_request_id"`
}

type messageResponse struct {
	Accepted        bool   `json:"accepted"`
	TaskID          string `json:"task_id,omitempty"`
	MessageID       string `json:"message_id,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	RejectionDetail string `json:"rejection_detail,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if req.Message == "" {
		_ = json.NewEncoder(w).Encode(messageResponse{
			Accepted:        false,
			RejectionReason: "EMPTY_MESSAGE",
			RejectionDetail: "message text is required",
		})
		return
	}

	taskID := uuid.New().String()
	messageID := uuid.New().String()
	_ = json.NewEncoder(w).Encode(messageResponse{
		Accepted:  true,
		TaskID:    taskID,
		MessageID: messageID,
	})

	s.logf("[replay] accepted message %s as task %s", messageID, taskID)
	go s.playSynthetic(taskID, req.Message)
}

// playSynthetic broadcasts a full six-stage trace for an accepted submission.
func (s *Server) playSynthetic(taskID, description string) {
	thoughtID := uuid.New().String()

	start, _ := json.Marshal(map[string]any{
		"thought_id":       thoughtID,
		"task_id":          taskID,
		"task_description": description,
	})
	s.broadcast(frame{event: "thought_start", data: string(start)})

	for _, step := range []string{"gather_context", "perform_dmas", "recursive_aspdma", "conscience_execution"} {
		time.Sleep(s.cfg.SyntheticStepDelay)
		data, _ := json.Marshal(map[string]any{
			"updated_thoughts": []any{
				map[string]any{"thought_id": thoughtID, "task_id": taskID, "current_step": step},
			},
		})
		s.broadcast(frame{event: "step_update", data: string(data)})
	}

	time.Sleep(s.cfg.SyntheticStepDelay)
	final, _ := json.Marshal(map[string]any{
		"events": []any{
			map[string]any{
				"task_id":          taskID,
				"thought_id":       thoughtID,
				"stage":            "ACTION_RESULT",
				"action_executed":  "task_complete",
				"action_rationale": "synthetic trace finished",
			},
		},
	})
	s.broadcast(frame{event: "step_update", data: string(final)})
}

func (s *Server) subscribe() chan frame {
	ch := make(chan frame, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan frame) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// broadcast fans a frame out to every subscriber, dropping for slow ones so
// one stalled connection cannot block the rest.
func (s *Server) broadcast(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.cfg.Token
}

func writeFrame(w http.ResponseWriter, fl http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	fl.Flush()
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logf != nil {
		s.cfg.Logf(format, args...)
	}
}
