package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deepfocus-ai/deepfocus/internal/router"
	"github.com/deepfocus-ai/deepfocus/internal/tools"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Message    string `json:"message"`
	ForceLocal bool   `json:"force_local"`
	SessionID  string `json:"session_id"`
}

// chatMetrics echoes the routing audit trail to the client.
type chatMetrics struct {
	Source          string          `json:"source,omitempty"`
	Confidence      float64         `json:"confidence"`
	LatencyMS       float64         `json:"latency_ms"`
	Decision        router.Decision `json:"decision"`
	LocalOutcome    string          `json:"local_outcome,omitempty"`
	LocalConfidence float64         `json:"local_confidence,omitempty"`
	LocalLatencyMS  float64         `json:"local_latency_ms,omitempty"`
}

// auditMetrics flattens a router response into the wire metrics block. It
// also serves failed requests, where only the decision and the local audit
// fields carry information.
func auditMetrics(resp *router.Response) *chatMetrics {
	return &chatMetrics{
		Source:          string(resp.Source),
		Confidence:      resp.Confidence,
		LatencyMS:       float64(resp.Latency) / float64(time.Millisecond),
		Decision:        resp.Decision,
		LocalOutcome:    string(resp.LocalOutcome),
		LocalConfidence: resp.LocalConfidence,
		LocalLatencyMS:  float64(resp.LocalLatency) / float64(time.Millisecond),
	}
}

// chatErrorBody is the error reply shape for /api/chat. Unlike the generic
// errorBody it keeps the audit trail, so a both-tiers-failed request still
// reports what the local attempt did before the cloud gave out.
type chatErrorBody struct {
	Error   string       `json:"error"`
	Metrics *chatMetrics `json:"metrics,omitempty"`
}

// chatResponse is the POST /api/chat reply. Response is a string for plain
// answers or a list of rendered tool blocks when the model called tools.
type chatResponse struct {
	Response      any          `json:"response"`
	Metrics       *chatMetrics `json:"metrics"`
	ToolCallsMade int          `json:"tool_calls_made"`
	FilesTouched  []string     `json:"files_touched"`
	SessionID     string       `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			`invalid or missing request body; send JSON: {"message": "your question", "force_local": false}`)
		return
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(w, http.StatusBadRequest,
			"message is required; send a question about your library, stock prices, or calculations")
		return
	}

	if strings.EqualFold(msg, "clear") {
		if req.SessionID != "" {
			s.sessions.Clear(req.SessionID)
		}
		writeJSON(w, http.StatusOK, chatResponse{
			Response:     "Conversation cleared!",
			FilesTouched: []string{},
			SessionID:    req.SessionID,
		})
		return
	}

	sessionID, history := s.sessions.Resolve(req.SessionID)
	history = append(history, backend.Message{Role: "user", Content: msg})

	resp, err := s.router.Chat(r.Context(), router.Request{
		Messages:   history,
		Tools:      s.offeredTools(),
		ForceLocal: req.ForceLocal,
	})
	if err != nil {
		body := chatErrorBody{Error: err.Error()}
		if resp != nil {
			body.Metrics = auditMetrics(resp)
		}
		writeJSON(w, errorStatus(err), body)
		return
	}

	metrics := auditMetrics(resp)

	if len(resp.Calls) == 0 {
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			text = "No response generated."
		}
		history = append(history, backend.Message{Role: "assistant", Content: text})
		s.sessions.Set(sessionID, history)
		writeJSON(w, http.StatusOK, chatResponse{
			Response:     text,
			Metrics:      metrics,
			FilesTouched: []string{},
			SessionID:    sessionID,
		})
		return
	}

	blocks, touched, summary := s.executeCalls(r, resp.Calls)
	history = append(history, backend.Message{Role: "assistant", Content: summary})
	s.sessions.Set(sessionID, history)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:      blocks,
		Metrics:       metrics,
		ToolCallsMade: len(resp.Calls),
		FilesTouched:  touched,
		SessionID:     sessionID,
	})
}

// offeredTools returns the tool schemas for this turn. The search_hub tool
// is withheld until a library root is configured.
func (s *Server) offeredTools() []backend.Tool {
	defs := s.registry.Definitions()
	if s.lib != nil && s.lib.Enabled() {
		return defs
	}
	filtered := defs[:0]
	for _, d := range defs {
		if d.Name != "search_hub" {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// executeCalls runs each accepted tool call and renders the response blocks.
// A failing tool becomes an error text block; the remaining calls still run.
func (s *Server) executeCalls(r *http.Request, calls []router.Call) ([]tools.Result, []string, string) {
	var (
		blocks  []tools.Result
		touched []string
		seen    = make(map[string]bool)
		summary strings.Builder
	)
	for _, call := range calls {
		start := time.Now()
		res, err := s.registry.Execute(r.Context(), call.Name, call.Arguments)
		s.metrics.ToolExecutionDuration.Record(r.Context(), time.Since(start).Seconds())
		if err != nil {
			s.metrics.RecordToolCall(r.Context(), call.Name, "error")
			blocks = append(blocks, tools.Result{
				Type: "text",
				Data: fmt.Sprintf("Error: tool %s failed: %v", call.Name, err),
			})
			continue
		}
		s.metrics.RecordToolCall(r.Context(), call.Name, "ok")
		blocks = append(blocks, res)
		for _, f := range res.FilesTouched {
			if !seen[f] {
				seen[f] = true
				touched = append(touched, f)
			}
		}
		fmt.Fprintf(&summary, "\n[Executed %s]: %s", call.Name, res.Data)
	}
	if touched == nil {
		touched = []string{}
	}
	return blocks, touched, summary.String()
}

// errorStatus maps the routing error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	var invalid *backend.InvalidRequestError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, backend.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
