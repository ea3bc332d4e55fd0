// ABOUTME: Submission API client that sends user messages and feeds the correlation index.
// ABOUTME: Accepted submissions record an explicit message_id -> task_id mapping; rejections record nothing.

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/2389-research/spyglass/trace"
	"github.com/google/uuid"
)

// SubmitterConfig configures a Submitter.
type SubmitterConfig struct {
	// URL of the message submission endpoint.
	URL string

	// Token, when non-empty, is sent as a bearer token.
	Token string

	// ChannelID identifies the conversation channel submissions belong to.
	ChannelID string

	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client

	// Logf logs submission activity. Optional.
	Logf func(format string, args ...any)
}

// Submitter sends messages to the agent platform and records correlation
// entries so the store can flag resulting tasks as locally originated.
type Submitter struct {
	cfg   SubmitterConfig
	index *trace.CorrelationIndex
}

// Ack is a successful submission acknowledgement.
type Ack struct {
	TaskID    string
	MessageID string
}

// submitRequest is the wire shape of a submission.
type submitRequest struct {
	Message         string `json:"message"`
	ChannelID       string `json:"channel_id"`
	ClientRequestID string `json:"client_request_id"`
}

// submitResponse covers both acceptance and rejection shapes.
type submitResponse struct {
	Accepted        bool   `json:"accepted"`
	TaskID          string `json:"task_id"`
	MessageID       string `json:"message_id"`
	RejectionReason string `json:"rejection_reason"`
	RejectionDetail string `json:"rejection_detail"`
}

// NewSubmitter creates a Submitter writing correlation entries into index.
func NewSubmitter(cfg SubmitterConfig, index *trace.CorrelationIndex) *Submitter {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Submitter{cfg: cfg, index: index}
}

// Send submits a message. On acceptance it records the correlation entry and
// returns the acknowledgement; on rejection it returns a RejectionError and
// records nothing, so no phantom task can appear locally originated.
func (s *Submitter) Send(ctx context.Context, text string) (Ack, error) {
	clientRequestID := uuid.New().String()

	body, err := json.Marshal(submitRequest{
		Message:         text,
		ChannelID:       s.cfg.ChannelID,
		ClientRequestID: clientRequestID,
	})
	if err != nil {
		return Ack{}, fmt.Errorf("encoding submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("creating submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("sending submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Ack{}, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	var ack submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, fmt.Errorf("decoding submission response: %w", err)
	}

	if !ack.Accepted || ack.RejectionReason != "" {
		s.logf("[submit] rejected: %s", ack.RejectionReason)
		return Ack{}, &RejectionError{Reason: ack.RejectionReason, Detail: ack.RejectionDetail}
	}

	s.record(clientRequestID, ack)
	return Ack{TaskID: ack.TaskID, MessageID: ack.MessageID}, nil
}

// record feeds the correlation index. Explicit message_id -> task_id mapping
// is preferred; an acceptance without identifiers falls back to the legacy
// pending-claim heuristic so the next unclaimed task is attributed to us.
func (s *Submitter) record(clientRequestID string, ack submitResponse) {
	switch {
	case ack.TaskID != "" && ack.MessageID != "":
		s.index.RecordSubmission(ack.MessageID, ack.TaskID)
	case ack.TaskID != "":
		// No server message id; key the mapping by our own request id.
		s.index.RecordSubmission(clientRequestID, ack.TaskID)
	default:
		s.index.RecordPending(clientRequestID)
	}
	s.logf("[submit] accepted: task=%s message=%s", ack.TaskID, ack.MessageID)
}

func (s *Submitter) logf(format string, args ...any) {
	if s.cfg.Logf != nil {
		s.cfg.Logf(format, args...)
	}
}
