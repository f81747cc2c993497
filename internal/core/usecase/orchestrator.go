package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foodops/food-agent-api/internal/core/domain"
	"github.com/foodops/food-agent-api/internal/core/ports"
	"github.com/foodops/food-agent-api/internal/core/tools"
)

const (
	siteNotFoundMessage = "현장 정보를 찾을 수 없습니다."
	degradedNotice      = "\n\n처리가 복잡하여 부분 결과를 제공합니다."
	auditAction         = "ai_chat"
)

// agentDocTags selects the document-tag filter per persona. Personas without
// an entry search everything.
var agentDocTags = map[string][]string{
	domain.AgentMenu:    {"recipe", "sop"},
	domain.AgentRecipe:  {"recipe", "sop"},
	domain.AgentHaccp:   {"haccp_guide"},
	domain.AgentGeneral: {"recipe", "sop", "haccp_guide", "policy"},
}

// IntentClassifier is the orchestrator's view of the intent router.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, uc domain.UserContext) domain.IntentResult
	RewriteQuery(ctx context.Context, message, intent string, uc domain.UserContext) string
}

// ToolDispatcher executes one authorized tool call, returning a result or
// error payload.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, input map[string]any, caller domain.User, siteID string) map[string]any
}

// Orchestrator drives one agent run through routing, retrieval and the
// bounded responding loop, streaming events as it goes.
type Orchestrator struct {
	router        IntentClassifier
	retrieval     ports.RetrievalService
	model         ports.ChatModel
	dispatcher    ToolDispatcher
	conversations ports.ConversationStore
	audits        ports.AuditStore
	sites         ports.SiteStore
	modelName     string
	limits        domain.AgentLimits
}

func NewOrchestrator(
	router IntentClassifier,
	retrieval ports.RetrievalService,
	model ports.ChatModel,
	dispatcher ToolDispatcher,
	conversations ports.ConversationStore,
	audits ports.AuditStore,
	sites ports.SiteStore,
	modelName string,
	limits domain.AgentLimits,
) *Orchestrator {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 10
	}
	if limits.HistoryWindow <= 0 {
		limits.HistoryWindow = 20
	}
	if limits.MaxTokens <= 0 {
		limits.MaxTokens = 2048
	}
	if limits.Temperature <= 0 {
		limits.Temperature = 0.3
	}
	return &Orchestrator{
		router:        router,
		retrieval:     retrieval,
		model:         model,
		dispatcher:    dispatcher,
		conversations: conversations,
		audits:        audits,
		sites:         sites,
		modelName:     modelName,
		limits:        limits,
	}
}

// Run validates the request and starts the state machine. The returned
// channel is closed after the terminal done event; events are append-only
// and never retracted.
func (o *Orchestrator) Run(ctx context.Context, req domain.AgentRequest) (<-chan domain.AgentEvent, error) {
	if req.Message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent run", fmt.Errorf("empty message"))
	}
	if req.User.ID == "" || req.SiteID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent run", fmt.Errorf("missing user or site"))
	}

	events := make(chan domain.AgentEvent, 16)
	go func() {
		defer close(events)
		runCtx := ctx
		if o.limits.RequestTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, o.limits.RequestTimeout)
			defer cancel()
		}
		o.run(runCtx, req, events)
	}()
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, req domain.AgentRequest, events chan<- domain.AgentEvent) {
	// Session resolution happens before any model or retrieval call. An
	// unauthorized caller gets an apology, never a partial answer.
	site, err := o.sites.GetByID(ctx, req.SiteID)
	if err != nil {
		o.emit(ctx, events, domain.AgentEvent{Type: domain.EventTextDelta, Content: siteNotFoundMessage})
		o.emit(ctx, events, domain.AgentEvent{Type: domain.EventDone, Status: domain.RunStatusError})
		return
	}
	if !req.User.CanAccessSite(req.SiteID) {
		slog.Warn("site_access_denied", "user_id", req.User.ID, "site_id", req.SiteID)
		o.emit(ctx, events, domain.AgentEvent{Type: domain.EventTextDelta, Content: siteNotFoundMessage})
		o.emit(ctx, events, domain.AgentEvent{Type: domain.EventDone, Status: domain.RunStatusDenied})
		return
	}

	uc := domain.UserContext{
		UserRole: req.User.Role,
		SiteName: site.Name,
		SiteID:   req.SiteID,
	}

	// ROUTING. Both calls soft-fail internally; a wrong intent degrades
	// answer quality, not availability.
	intent := o.router.Classify(ctx, req.Message, uc)
	slog.Info("intent_classified",
		"intent", intent.Intent,
		"confidence", intent.Confidence,
		"agent", intent.Agent,
	)
	searchQuery := o.router.RewriteQuery(ctx, req.Message, intent.Intent, uc)

	// RETRIEVING. A failed retrieval degrades to an empty context.
	filter := domain.SearchFilter{Tags: agentDocTags[intent.Agent]}
	ragContext, err := o.retrieval.Retrieve(ctx, searchQuery, filter, 0)
	if err != nil {
		slog.Warn("retrieval_degraded", "error", err)
		ragContext = &domain.RetrievalContext{}
	}

	systemPrompt := buildSystemPrompt(intent.Agent, req.User, site, ragContext.PromptSection())

	history, err := o.loadHistory(ctx, req)
	if err != nil {
		slog.Warn("history_load_failed", "conversation_id", req.ConversationID, "error", err)
	}
	messages := append(history, domain.UserTextMessage(req.Message))

	toolDefs := tools.ForAgent(intent.Agent)
	allowed := tools.NamesForAgent(intent.Agent)

	// RESPONDING loop, hard-bounded to cap runaway tool cycling.
	var (
		fullText    string
		invocations []domain.ToolInvocation
		status      = domain.RunStatusOK
		citations   []domain.Citation
		usage       domain.TokenUsage
		iterations  int
	)

respond:
	for iteration := 0; iteration < o.limits.MaxIterations; iteration++ {
		iterations = iteration + 1
		if ctx.Err() != nil {
			status = domain.RunStatusError
			break respond
		}

		resp, err := o.model.Complete(ctx, domain.ModelRequest{
			System:      systemPrompt,
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   o.limits.MaxTokens,
			Temperature: o.limits.Temperature,
		})
		if err != nil {
			slog.Error("model_call_failed", "iteration", iteration, "error", err)
			status = domain.RunStatusError
			break respond
		}
		usage.Add(resp.Usage)

		var assistantContent []domain.ContentBlock
		for _, block := range resp.Blocks {
			switch block.Type {
			case domain.BlockText:
				fullText += block.Text
				o.emit(ctx, events, domain.AgentEvent{Type: domain.EventTextDelta, Content: block.Text})
				assistantContent = append(assistantContent, block)

			case domain.BlockToolUse:
				if _, ok := allowed[block.Name]; !ok {
					// An over-eager model response must not escalate
					// privilege. Skip, tell the stream, keep going.
					slog.Warn("tool_not_allowed", "tool", block.Name, "agent", intent.Agent)
					o.emit(ctx, events, domain.AgentEvent{
						Type:     domain.EventToolResult,
						ToolName: block.Name,
						Status:   "skipped",
					})
					continue
				}

				o.emit(ctx, events, domain.AgentEvent{
					Type:     domain.EventToolCall,
					ToolName: block.Name,
					Status:   "started",
				})
				assistantContent = append(assistantContent, block)

				result := o.dispatcher.Dispatch(ctx, block.Name, block.Input, req.User, req.SiteID)
				invocation := domain.ToolInvocation{Tool: block.Name, Input: block.Input, Result: result}
				if errMsg, ok := result["error"].(string); ok {
					invocation.Error = errMsg
				}
				invocations = append(invocations, invocation)

				o.emit(ctx, events, domain.AgentEvent{
					Type:     domain.EventToolResult,
					ToolName: block.Name,
					Data:     result,
				})

				encoded, err := json.Marshal(result)
				if err != nil {
					encoded = []byte(`{"error":"unserializable tool result"}`)
				}
				messages = append(messages,
					domain.ModelMessage{Role: "assistant", Content: assistantContent},
					domain.ModelMessage{Role: "user", Content: []domain.ContentBlock{
						domain.ToolResultBlock(block.ID, string(encoded)),
					}},
				)
				assistantContent = nil
			}
		}

		switch resp.StopReason {
		case domain.StopEndTurn:
			citations = ragContext.Citations()
			break respond
		case domain.StopToolUse:
			// Next iteration sees the appended tool results.
		default:
			slog.Warn("unexpected_stop_reason", "stop_reason", resp.StopReason)
			break respond
		}

		if iteration == o.limits.MaxIterations-1 {
			fullText += degradedNotice
			o.emit(ctx, events, domain.AgentEvent{Type: domain.EventTextDelta, Content: degradedNotice})
			status = domain.RunStatusDegraded
		}
	}

	// Persistence runs before the terminal event so a broken audit trail
	// surfaces to the caller instead of vanishing.
	persistErr := o.persist(ctx, req, intent, fullText, invocations, len(ragContext.Chunks))

	if len(citations) > 0 {
		o.emit(ctx, events, domain.AgentEvent{Type: domain.EventCitations, Sources: citations})
	}

	done := domain.AgentEvent{
		Type:       domain.EventDone,
		Status:     status,
		Model:      o.modelName,
		Iterations: iterations,
	}
	if usage.Total() > 0 {
		done.Usage = &usage
	}
	if persistErr != nil {
		slog.Error("persistence_failed", "error", persistErr)
		done.Status = domain.RunStatusError
		done.Error = persistErr.Error()
	}
	o.emit(ctx, events, done)
}

func (o *Orchestrator) loadHistory(ctx context.Context, req domain.AgentRequest) ([]domain.ModelMessage, error) {
	if req.ConversationID == "" {
		return nil, nil
	}
	turns, err := o.conversations.ListRecentTurns(ctx, req.ConversationID, o.limits.HistoryWindow)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.ModelMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, domain.ModelMessage{
			Role:    turn.Role,
			Content: []domain.ContentBlock{domain.TextBlock(turn.Content)},
		})
	}
	return messages, nil
}

// persist appends the run's two turns and writes the audit record. On
// cancellation the turns are skipped but the audit record is still written
// with whatever accumulated, since partial tool-call history is still
// safety-relevant.
func (o *Orchestrator) persist(
	ctx context.Context,
	req domain.AgentRequest,
	intent domain.IntentResult,
	assistantText string,
	invocations []domain.ToolInvocation,
	chunksUsed int,
) error {
	cancelled := ctx.Err() != nil
	persistCtx := context.WithoutCancel(ctx)
	now := time.Now().UTC()

	conversationID := req.ConversationID
	if !cancelled {
		if conversationID == "" {
			conversationID = uuid.NewString()
			conv := &domain.Conversation{
				ID:          conversationID,
				UserID:      req.User.ID,
				SiteID:      req.SiteID,
				ContextType: intent.Agent,
				Title:       truncateRunes(req.Message, 100),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := o.conversations.CreateConversation(persistCtx, conv); err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
		}
		// CreatedAt stays zero; the store assigns batch-ordered
		// timestamps so the user turn always sorts before the reply.
		turns := []domain.Turn{
			{ID: uuid.NewString(), ConversationID: conversationID, Role: "user", Content: req.Message},
			{ID: uuid.NewString(), ConversationID: conversationID, Role: "assistant", Content: assistantText},
		}
		if err := o.conversations.AppendTurns(persistCtx, conversationID, turns); err != nil {
			return fmt.Errorf("append turns: %w", err)
		}
	}

	toolNames := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		toolNames = append(toolNames, inv.Tool)
	}
	record := &domain.AuditRecord{
		ID:             uuid.NewString(),
		UserID:         req.User.ID,
		SiteID:         req.SiteID,
		Action:         auditAction,
		ConversationID: conversationID,
		Intent:         intent.Intent,
		Agent:          intent.Agent,
		Confidence:     intent.Confidence,
		ToolsCalled:    toolNames,
		RAGChunksUsed:  chunksUsed,
		Model:          o.modelName,
		CreatedAt:      now,
	}
	if err := o.audits.Create(persistCtx, record); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, events chan<- domain.AgentEvent, event domain.AgentEvent) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
