package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foodops/food-agent-api/internal/core/domain"
	"github.com/foodops/food-agent-api/internal/core/ports"
)

// IntentRouter classifies user messages and compresses them into retrieval
// queries. Both operations are advisory: any model or parse failure falls
// back to a safe default instead of propagating.
type IntentRouter struct {
	model ports.ChatModel
}

func NewIntentRouter(model ports.ChatModel) *IntentRouter {
	return &IntentRouter{model: model}
}

const intentSystemPrompt = `You are an intent classifier for a Korean food service management system.
Classify the user message into exactly one intent.

Intents:
- menu_generate: Creating or modifying meal plans (식단 생성, 식단 짜줘, 메뉴 만들어)
- menu_validate: Checking nutrition or allergens for existing plans (영양 검증, 알레르겐 확인)
- recipe_search: Finding recipes or recipe information (레시피 검색, 어떤 요리, 조리법)
- recipe_scale: Scaling recipes for different serving sizes (몇인분, 재료 환산, 스케일링)
- work_order: Generating or viewing work orders / production instructions (작업지시서, 조리 순서)
- haccp_checklist: Creating or checking HACCP checklists (점검표, 체크리스트)
- haccp_record: Recording CCP values or viewing HACCP records (온도 기록, CCP)
- haccp_incident: Reporting or managing food safety incidents (사고, 이상, 식중독)
- dashboard: Viewing operational status or summaries (현황, 대시보드, 오늘 상태)
- settings: Managing master data, policies, or system configuration (설정, 식재료 등록, 정책)
- purchase_bom: 식단 소요량 집계, BOM 산출 요청 (BOM, 소요량, 발주 수량, 식재료 필요)
- purchase_order: 발주서 생성/조회/수정/승인 요청 (발주서, 주문, 발주, 재발주, 벤더)
- purchase_risk: 단가 급등 경보, 공급 리스크, 대체품 추천 (단가, 급등, 공급 위기, 납품 지연, 대체품)
- inventory_check: 재고 현황 조회, 유통기한 조회, 부족 품목 (재고, 냉장, 유통기한, 남은 것)
- inventory_receive: 납품 검수 체크리스트, 입고 기록 (납품, 검수, 입고, 배달)
- forecast_demand: 식수 예측, 수요 예측, 급식 인원 예상 요청 (식수 예측, 내일 몇명, 수요 예측)
- record_actual: 실제 식수 입력, 잔반 기록, 배식 실적 등록 (오늘 식수, 잔반 입력, 실적 기록)
- optimize_cost: 원가 시뮬레이션, 예산 분석, 원가율 최적화, 대체 메뉴 원가 (원가, 예산, 비용)
- general: General questions, greetings, or unclear requests

Context: current_screen=%s, user_role=%s, site=%s

Return ONLY valid JSON: {"intent": "...", "confidence": 0.0-1.0, "entities": {}, "agent": "menu|recipe|haccp|general|purchase|demand"}`

const queryRewritePrompt = `You are a search query optimizer for a Korean food service knowledge base.
Given the user's conversational message and detected intent, rewrite it as an optimal search query.

Rules:
- Remove conversational fillers (그거, 좀, 해줘)
- Add implied context (site name, date range, meal type)
- Keep Korean food terminology
- Keep it concise (under 50 characters preferred)
- If the message is already a good search query, return it as-is

User message: %s
Intent: %s
Context: site=%s, role=%s

Return ONLY the rewritten search query text, nothing else.`

func (r *IntentRouter) Classify(ctx context.Context, message string, uc domain.UserContext) domain.IntentResult {
	system := fmt.Sprintf(intentSystemPrompt, uc.CurrentScreen, uc.UserRole, uc.SiteName)

	text, err := r.model.CompleteText(ctx, system, message, 200)
	if err != nil {
		slog.Warn("intent_classification_failed", "error", err)
		return domain.DefaultIntentResult()
	}

	var parsed struct {
		Intent     string         `json:"intent"`
		Confidence *float64       `json:"confidence"`
		Entities   map[string]any `json:"entities"`
		Agent      string         `json:"agent"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &parsed); err != nil {
		slog.Warn("intent_parse_failed", "error", err, "raw", text)
		return domain.DefaultIntentResult()
	}

	if parsed.Intent == "" {
		parsed.Intent = domain.IntentGeneral
	}
	if parsed.Agent == "" {
		parsed.Agent = domain.AgentForIntent(parsed.Intent)
	}
	if parsed.Entities == nil {
		parsed.Entities = map[string]any{}
	}
	// A missing confidence field defaults; a reported 0 stands as-is.
	confidence := 0.5
	if parsed.Confidence != nil {
		confidence = *parsed.Confidence
	}

	return domain.IntentResult{
		Intent:     parsed.Intent,
		Confidence: confidence,
		Entities:   parsed.Entities,
		Agent:      parsed.Agent,
	}
}

// RewriteQuery compresses a conversational message into a retrieval query.
// On any failure the original message is returned unchanged.
func (r *IntentRouter) RewriteQuery(ctx context.Context, message, intent string, uc domain.UserContext) string {
	prompt := fmt.Sprintf(queryRewritePrompt, message, intent, uc.SiteName, uc.UserRole)

	rewritten, err := r.model.CompleteText(ctx, "", prompt, 100)
	if err != nil {
		slog.Warn("query_rewrite_failed", "error", err)
		return message
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return message
	}
	return rewritten
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
