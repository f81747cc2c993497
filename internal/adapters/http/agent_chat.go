package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

type agentChatRequest struct {
	Message        string `json:"message"`
	SiteID         string `json:"site_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// agentChat streams one agent run as server-sent events. Each event carries
// the serialized AgentEvent; the terminal done event closes the stream.
func (rt *Router) agentChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}

	var req agentChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if strings.TrimSpace(req.SiteID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "site_id is required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	events, err := rt.agent.Run(r.Context(), domain.AgentRequest{
		Message:        req.Message,
		User:           user,
		SiteID:         req.SiteID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	start := time.Now()
	var done domain.AgentEvent
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			slog.Error("marshal agent event", "error", err, "request_id", requestIDFromContext(r.Context()))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the orchestrator sees the context cancel.
			return
		}
		flusher.Flush()

		switch {
		case event.Type == domain.EventDone:
			done = event
		case rt.metrics != nil && event.Type == domain.EventToolResult:
			rt.metrics.RecordAgentToolCall(rt.cfg.ServiceName, event.ToolName, event.Status)
		case rt.metrics != nil && event.Type == domain.EventCitations:
			rt.metrics.RecordRAGObservation(rt.cfg.ServiceName, "/v1/agent/chat", len(event.Sources), time.Since(start))
		}
	}

	if rt.metrics != nil {
		rt.metrics.RecordAgentRun(rt.cfg.ServiceName, "/v1/agent/chat", done.Status, done.Iterations)
		if done.Usage != nil {
			rt.metrics.RecordTokenUsage(rt.cfg.ServiceName, "/v1/agent/chat", done.Model,
				done.Usage.InputTokens, done.Usage.OutputTokens)
		}
	}
}
