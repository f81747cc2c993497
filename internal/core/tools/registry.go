package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foodops/food-agent-api/internal/core/domain"
	"github.com/foodops/food-agent-api/internal/core/ports"
)

// Handler executes one tool call. Handlers return a serializable result the
// orchestrator passes through opaquely; they never see raw model output.
type Handler func(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error)

// Registry maps tool names to handlers. It is built once at process start
// and shares names with the persona tables in the catalogue, so
// authorization and dispatch cannot drift apart.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(
	menu ports.MenuService,
	recipe ports.RecipeService,
	haccp ports.HaccpService,
	operations ports.OperationsService,
) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}

	r.register("generate_menu_plan", func(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error) {
		return menu.GeneratePlan(ctx, caller, input)
	})
	r.register("validate_nutrition", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return menu.ValidateNutrition(ctx, input)
	})
	r.register("check_diversity", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return menu.CheckDiversity(ctx, input)
	})
	r.register("search_recipes", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return recipe.SearchRecipes(ctx, input)
	})
	r.register("scale_recipe", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return recipe.ScaleRecipe(ctx, input)
	})
	r.register("generate_work_order", func(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error) {
		return recipe.GenerateWorkOrder(ctx, caller, input)
	})
	r.register("generate_haccp_checklist", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return haccp.GenerateChecklist(ctx, input)
	})
	r.register("check_haccp_completion", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return haccp.CheckCompletion(ctx, input)
	})
	r.register("query_dashboard", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return operations.QueryDashboard(ctx, input)
	})
	r.register("calculate_bom", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return operations.CalculateBOM(ctx, input)
	})
	r.register("generate_purchase_order", func(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error) {
		return operations.GeneratePurchaseOrder(ctx, caller, input)
	})
	r.register("check_inventory", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return operations.CheckInventory(ctx, input)
	})
	r.register("forecast_headcount", func(ctx context.Context, _ domain.User, input map[string]any) (map[string]any, error) {
		return operations.ForecastHeadcount(ctx, input)
	})

	return r
}

func (r *Registry) register(name string, handler Handler) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("tools: duplicate handler registration for %q", name))
	}
	r.handlers[name] = handler
}

// Has reports whether a tool name is dispatchable.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch runs one tool call and always returns a result payload: handler
// failures come back as an error object, never as a raised error, so the
// responding loop can feed them to the model and keep going.
//
// Site scoping: for site-scoped tools a missing site_id is filled from the
// request's site; an explicit site_id the caller cannot access is rejected.
func (r *Registry) Dispatch(ctx context.Context, name string, input map[string]any, caller domain.User, siteID string) map[string]any {
	handler, ok := r.handlers[name]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("unknown tool: %s", name)}
	}

	if input == nil {
		input = map[string]any{}
	}
	if IsSiteScoped(name) {
		requested, _ := input["site_id"].(string)
		switch {
		case requested == "":
			input["site_id"] = siteID
		case !caller.CanAccessSite(requested):
			slog.Warn("tool_site_access_rejected", "tool", name, "user_id", caller.ID, "site_id", requested)
			return map[string]any{"error": "접근 권한이 없는 현장입니다.", "site_id": requested}
		}
	}

	result, err := handler(ctx, caller, input)
	if err != nil {
		slog.Warn("tool_execution_failed", "tool", name, "error", err)
		return map[string]any{"error": err.Error()}
	}
	if result == nil {
		result = map[string]any{}
	}
	return result
}
