package tools

import "github.com/foodops/food-agent-api/internal/core/domain"

// The tool catalogue is the single source of truth shared by authorization
// and dispatch: the persona tables below reference tools by the same names
// the registry dispatches on.

var menuTools = []domain.ToolDefinition{
	{
		Name:        "generate_menu_plan",
		Description: "Generate weekly meal plan alternatives for a site. Returns 2+ alternatives with nutrition summary.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"site_id":      map[string]any{"type": "string", "description": "Target site ID"},
				"period_start": map[string]any{"type": "string", "format": "date", "description": "Start date (YYYY-MM-DD)"},
				"period_end":   map[string]any{"type": "string", "format": "date", "description": "End date (YYYY-MM-DD)"},
				"meal_types": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string", "enum": []string{"breakfast", "lunch", "dinner", "snack"}},
					"description": "Meal types to include",
				},
				"target_headcount": map[string]any{"type": "integer", "description": "Number of servings"},
				"budget_per_meal":  map[string]any{"type": "number", "description": "Target cost per meal in KRW"},
				"num_alternatives": map[string]any{"type": "integer", "default": 2},
			},
			"required": []string{"site_id", "period_start", "period_end", "meal_types", "target_headcount"},
		},
	},
	{
		Name:        "validate_nutrition",
		Description: "Validate a menu plan against nutrition policy. Returns pass/warning/fail per day and criteria.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"menu_plan_id": map[string]any{"type": "string"},
				"policy_id":    map[string]any{"type": "string", "description": "Optional specific policy to validate against"},
			},
			"required": []string{"menu_plan_id"},
		},
	},
	{
		Name:        "check_diversity",
		Description: "Check menu diversity: cooking method bias, ingredient repetition, category balance over the plan period.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"menu_plan_id": map[string]any{"type": "string"},
			},
			"required": []string{"menu_plan_id"},
		},
	},
}

var recipeTools = []domain.ToolDefinition{
	{
		Name:        "search_recipes",
		Description: "Search recipes using hybrid search (keyword + vector semantic). Returns ranked results with relevance scores.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":    map[string]any{"type": "string", "description": "Search query in natural language"},
				"category": map[string]any{"type": "string", "description": "Filter by category (한식, 중식, 양식, 일식)"},
				"allergen_exclude": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Allergens to exclude from results",
				},
				"max_results": map[string]any{"type": "integer", "default": 10},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "scale_recipe",
		Description: "Scale recipe ingredients from base servings to target servings. Includes seasoning adjustment guide for large batches.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"recipe_id":       map[string]any{"type": "string"},
				"target_servings": map[string]any{"type": "integer", "description": "Target number of servings"},
			},
			"required": []string{"recipe_id", "target_servings"},
		},
	},
	{
		Name:        "generate_work_order",
		Description: "레시피 기반 조리 작업지시서를 생성합니다. 조리 순서, CCP 체크포인트, 필요 식재료량을 포함합니다.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"recipe_id":        map[string]any{"type": "string", "description": "레시피 ID"},
				"planned_servings": map[string]any{"type": "integer", "description": "예정 조리 인원수"},
				"planned_date":     map[string]any{"type": "string", "format": "date", "description": "조리 예정일 (YYYY-MM-DD)"},
				"site_id":          map[string]any{"type": "string", "description": "현장 ID"},
			},
			"required": []string{"recipe_id", "planned_servings", "planned_date"},
		},
	},
}

var haccpTools = []domain.ToolDefinition{
	{
		Name:        "generate_haccp_checklist",
		Description: "Generate HACCP inspection checklist template for a site/date based on HACCP guide documents.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"site_id":        map[string]any{"type": "string"},
				"date":           map[string]any{"type": "string", "format": "date"},
				"checklist_type": map[string]any{"type": "string", "enum": []string{"daily", "weekly"}},
				"meal_type":      map[string]any{"type": "string", "description": "Optional meal type filter"},
			},
			"required": []string{"site_id", "date", "checklist_type"},
		},
	},
	{
		Name:        "check_haccp_completion",
		Description: "Check HACCP checklist completion status for a site/date. Returns missing/overdue items.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"site_id": map[string]any{"type": "string"},
				"date":    map[string]any{"type": "string", "format": "date"},
			},
			"required": []string{"site_id", "date"},
		},
	},
}

var operationsTools = []domain.ToolDefinition{
	{
		Name:        "query_dashboard",
		Description: "Get operational dashboard data: today's menu status, HACCP completion, alerts, recent activity.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"site_id": map[string]any{"type": "string"},
				"date":    map[string]any{"type": "string", "format": "date", "description": "Target date (default: today)"},
			},
			"required": []string{"site_id"},
		},
	},
	{
		Name:        "calculate_bom",
		Description: "확정된 식단의 레시피별 원재료 소요량을 집계하여 BOM을 생성합니다. 인분 스케일링과 수율을 반영합니다.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"menu_plan_id":    map[string]any{"type": "string", "description": "식단 ID (confirmed 상태여야 함)"},
				"headcount":       map[string]any{"type": "integer", "description": "예정 식수 (명)"},
				"apply_inventory": map[string]any{"type": "boolean", "description": "재고 우선 차감 반영 여부", "default": true},
			},
			"required": []string{"menu_plan_id", "headcount"},
		},
	},
	{
		Name:        "generate_purchase_order",
		Description: "BOM을 기반으로 벤더별 발주서 초안을 생성합니다. 최저가 벤더를 자동 선택하거나 지정 벤더로 생성합니다.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"bom_id": map[string]any{"type": "string", "description": "BOM ID"},
				"vendor_strategy": map[string]any{
					"type":        "string",
					"enum":        []string{"lowest_price", "preferred", "split"},
					"description": "벤더 선택 전략: 최저가/선호벤더/분할발주",
					"default":     "lowest_price",
				},
				"delivery_date": map[string]any{"type": "string", "description": "납품 희망일 (YYYY-MM-DD)"},
				"vendor_id":     map[string]any{"type": "string", "description": "지정 벤더 ID (preferred 전략 시)"},
				"site_id":       map[string]any{"type": "string", "description": "현장 ID"},
			},
			"required": []string{"bom_id", "delivery_date"},
		},
	},
	{
		Name:        "check_inventory",
		Description: "현장의 재고 현황을 조회합니다. 유통기한 임박, 부족 품목을 우선 표시합니다.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"site_id":      map[string]any{"type": "string", "description": "현장 ID"},
				"item_ids":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "특정 품목 필터 (선택)"},
				"alert_days":   map[string]any{"type": "integer", "description": "유통기한 임박 기준 (일)", "default": 7},
				"include_lots": map[string]any{"type": "boolean", "description": "로트 상세 포함 여부", "default": false},
			},
			"required": []string{"site_id"},
		},
	},
	{
		Name:        "forecast_headcount",
		Description: "과거 실적과 이벤트를 반영하여 특정 날짜·식사의 식수를 예측합니다.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"site_id":       map[string]any{"type": "string"},
				"forecast_date": map[string]any{"type": "string", "format": "date"},
				"meal_type":     map[string]any{"type": "string", "enum": []string{"breakfast", "lunch", "dinner", "snack"}},
				"model":         map[string]any{"type": "string", "enum": []string{"wma"}, "default": "wma"},
			},
			"required": []string{"site_id", "forecast_date", "meal_type"},
		},
	},
}

// agentTools maps each persona to its allowed tool subset. This is a hard
// authorization boundary: the responding loop dispatches only names listed
// here for the active persona.
var agentTools = map[string][]domain.ToolDefinition{
	domain.AgentMenu:     concat(menuTools, pick(recipeTools, "generate_work_order"), pick(operationsTools, "forecast_headcount")),
	domain.AgentRecipe:   recipeTools,
	domain.AgentHaccp:    haccpTools,
	domain.AgentPurchase: pick(operationsTools, "calculate_bom", "generate_purchase_order", "check_inventory"),
	domain.AgentDemand:   pick(operationsTools, "forecast_headcount"),
	domain.AgentGeneral:  pick(operationsTools, "query_dashboard", "forecast_headcount"),
}

// siteScopedTools take a site_id input; the registry injects the caller's
// site when omitted and verifies an explicit one against the access grant.
var siteScopedTools = map[string]struct{}{
	"generate_menu_plan":       {},
	"generate_work_order":      {},
	"generate_haccp_checklist": {},
	"check_haccp_completion":   {},
	"query_dashboard":          {},
	"generate_purchase_order":  {},
	"check_inventory":          {},
	"forecast_headcount":       {},
}

// ForAgent returns the tool definitions available to a persona. Unknown
// personas fall back to the general set.
func ForAgent(agent string) []domain.ToolDefinition {
	if defs, ok := agentTools[agent]; ok {
		return defs
	}
	return agentTools[domain.AgentGeneral]
}

// NamesForAgent returns the allowed tool-name set for a persona.
func NamesForAgent(agent string) map[string]struct{} {
	defs := ForAgent(agent)
	names := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		names[d.Name] = struct{}{}
	}
	return names
}

func IsSiteScoped(name string) bool {
	_, ok := siteScopedTools[name]
	return ok
}

func concat(lists ...[]domain.ToolDefinition) []domain.ToolDefinition {
	var out []domain.ToolDefinition
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func pick(defs []domain.ToolDefinition, names ...string) []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, 0, len(names))
	for _, name := range names {
		for _, d := range defs {
			if d.Name == name {
				out = append(out, d)
			}
		}
	}
	return out
}
