// ABOUTME: SSE subscription client feeding the reconstruction store, with reconnect supervision.
// ABOUTME: Bounded exponential backoff on transport failure; client-initiated aborts never reconnect.

package stream

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/2389-research/spyglass/sse"
	"github.com/2389-research/spyglass/trace"
)

// Status is the connectivity state surfaced to consumers. Transport failures
// are reported through status transitions, never as panics or thrown errors
// out of the ingestion pipeline.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusLost         Status = "lost"
	StatusClosed       Status = "closed"
)

// Backoff controls reconnect timing: delay = min(Base * 2^(attempt-1), Cap).
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns the standard reconnect policy: 1s base, 30s cap,
// ten attempts before giving up.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Cap: 30 * time.Second, MaxAttempts: 10}
}

// Delay computes the backoff delay for a 1-indexed attempt number.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if d > float64(b.Cap) {
		d = float64(b.Cap)
	}
	return time.Duration(d)
}

// Config configures a stream Client.
type Config struct {
	// URL of the long-lived text/event-stream endpoint.
	URL string

	// Token, when non-empty, is sent as a bearer token.
	Token string

	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client

	// Backoff overrides DefaultBackoff.
	Backoff Backoff

	// OnStatus receives connectivity transitions with a human-readable
	// detail message. Optional.
	OnStatus func(status Status, detail string)

	// OnStreamError receives server-reported stream-level errors (the
	// "error" event). These do not mutate task data. Optional.
	OnStreamError func(message string)

	// OnEvent taps every normalized stage event after it is applied to the
	// store, e.g. for session capture. Optional.
	OnEvent func(ev trace.StageEvent)

	// Logf logs dropped frames and reconnect activity. Optional.
	Logf func(format string, args ...any)
}

// Client supervises one SSE subscription and de-multiplexes its frames into
// the store and the animation scheduler. The server executes many tasks and
// thoughts concurrently; the client's job is reconstruction, not execution.
type Client struct {
	cfg   Config
	store *trace.Store
	sched *trace.Scheduler
}

// NewClient creates a Client writing into store and, when sched is non-nil,
// feeding lane-reached signals to the animation scheduler.
func NewClient(cfg Config, store *trace.Store, sched *trace.Scheduler) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if (cfg.Backoff == Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	return &Client{cfg: cfg, store: store, sched: sched}
}

// Run subscribes and processes frames until ctx is cancelled or the
// reconnect budget is exhausted. Cancellation is the only clean exit: a
// server-side stream end is treated as a failure and reconnected. Returns
// nil on cancellation, ErrConnectionLost when retries are exhausted.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0

	c.status(StatusConnecting, "")
	for {
		err := c.consume(ctx, &attempt)

		if ctx.Err() != nil {
			c.status(StatusClosed, "")
			return nil
		}

		attempt++
		if c.cfg.Backoff.MaxAttempts > 0 && attempt > c.cfg.Backoff.MaxAttempts {
			c.status(StatusLost, "maximum reconnect attempts exceeded")
			return ErrConnectionLost
		}

		delay := c.cfg.Backoff.Delay(attempt)
		detail := fmt.Sprintf("attempt %d in %s", attempt, delay)
		if err != nil {
			detail = fmt.Sprintf("%s: %v", detail, err)
		}
		c.status(StatusReconnecting, detail)
		c.logf("[stream] reconnecting: %s", detail)

		select {
		case <-ctx.Done():
			c.status(StatusClosed, "")
			return nil
		case <-time.After(delay):
		}
	}
}

// consume opens the SSE connection and processes frames until the stream
// ends or fails. A successful connect resets the caller's attempt counter.
// Returns nil on clean server-side stream end (still reconnected by Run).
func (c *Client) consume(ctx context.Context, attempt *int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	*attempt = 0
	c.status(StatusConnected, "")

	parser := sse.NewParser(resp.Body)
	for {
		frame, err := parser.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		c.dispatch(frame)
	}
}

// dispatch normalizes one frame and applies its events. Failures below the
// transport level are contained here: the frame is dropped and logged, and
// ingestion continues with the next frame.
func (c *Client) dispatch(frame sse.Frame) {
	n, err := trace.NormalizeFrame(frame)
	if err != nil {
		c.logf("[stream] dropping %s frame: %v", frame.Event, err)
		return
	}

	switch n.Signal {
	case trace.SignalConnected:
		c.status(StatusConnected, frame.Data)
	case trace.SignalError:
		c.logf("[stream] server error: %s", n.ErrorMessage)
		if c.cfg.OnStreamError != nil {
			c.cfg.OnStreamError(n.ErrorMessage)
		}
	case trace.SignalKeepalive:
		// Liveness only.
	}

	for _, ev := range n.Events {
		c.store.Apply(ev)
		if c.sched != nil {
			c.sched.Collect(ev.Lane, ev.ThoughtID)
		}
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(ev)
		}
	}
}

func (c *Client) status(s Status, detail string) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(s, detail)
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.cfg.Logf != nil {
		c.cfg.Logf(format, args...)
	}
}
