package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// RecipeService backs the recipe tools with the recipes table. Results stay
// plain maps: the agent loop serializes them back to the model verbatim.
type RecipeService struct {
	db *sql.DB
}

func NewRecipeService(db *sql.DB) *RecipeService {
	return &RecipeService{db: db}
}

type recipeRow struct {
	ID           string
	Name         string
	Category     string
	Description  string
	BaseServings int
	CostPerServe int
	Ingredients  []ingredientLine
	Nutrition    map[string]float64
	Allergens    []string
	Instructions []string
}

type ingredientLine struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

func (s *RecipeService) SearchRecipes(ctx context.Context, input map[string]any) (map[string]any, error) {
	query := stringInput(input, "query")
	if query == "" {
		return nil, fmt.Errorf("search_recipes: query is required")
	}
	category := stringInput(input, "category")
	exclude := stringSliceInput(input, "allergen_exclude")
	limit := intInput(input, "max_results", 10)

	var excludeJSON any
	if len(exclude) > 0 {
		raw, err := json.Marshal(exclude)
		if err != nil {
			return nil, fmt.Errorf("marshal allergen filter: %w", err)
		}
		excludeJSON = string(raw)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, category, description, base_servings, cost_per_serving, allergens
FROM recipes
WHERE (name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
	AND ($2::text = '' OR category = $2)
	AND ($3::jsonb IS NULL OR NOT (allergens @> ANY (SELECT jsonb_array_elements($3::jsonb))))
ORDER BY name
LIMIT $4
`, query, category, excludeJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("search recipes: %w", err)
	}
	defer rows.Close()

	results := make([]map[string]any, 0, limit)
	for rows.Next() {
		var (
			id, name, cat, desc string
			servings, cost      int
			allergensRaw        []byte
		)
		if err := rows.Scan(&id, &name, &cat, &desc, &servings, &cost, &allergensRaw); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		var allergens []string
		if err := json.Unmarshal(allergensRaw, &allergens); err != nil {
			return nil, fmt.Errorf("unmarshal allergens: %w", err)
		}
		results = append(results, map[string]any{
			"recipe_id":        id,
			"name":             name,
			"category":         cat,
			"description":      desc,
			"base_servings":    servings,
			"cost_per_serving": cost,
			"allergens":        allergens,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}

	return map[string]any{
		"query":   query,
		"count":   len(results),
		"recipes": results,
	}, nil
}

func (s *RecipeService) ScaleRecipe(ctx context.Context, input map[string]any) (map[string]any, error) {
	recipeID := stringInput(input, "recipe_id")
	targetServings := intInput(input, "target_servings", 0)
	if recipeID == "" || targetServings <= 0 {
		return nil, fmt.Errorf("scale_recipe: recipe_id and positive target_servings are required")
	}

	recipe, err := s.loadRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	factor := float64(targetServings) / float64(recipe.BaseServings)
	scaled := scaleIngredients(recipe.Ingredients, factor)

	result := map[string]any{
		"recipe_id":       recipe.ID,
		"name":            recipe.Name,
		"base_servings":   recipe.BaseServings,
		"target_servings": targetServings,
		"scale_factor":    factor,
		"ingredients":     scaled,
	}
	// Seasonings do not scale linearly in large batches.
	if factor >= 3 {
		result["seasoning_note"] = "대량 조리 시 양념은 계산량의 80%로 시작해 맛을 보며 추가하세요."
	}
	return result, nil
}

func (s *RecipeService) GenerateWorkOrder(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error) {
	recipeID := stringInput(input, "recipe_id")
	servings := intInput(input, "planned_servings", 0)
	plannedDate := stringInput(input, "planned_date")
	siteID := stringInput(input, "site_id")
	if recipeID == "" || servings <= 0 || plannedDate == "" {
		return nil, fmt.Errorf("generate_work_order: recipe_id, planned_servings and planned_date are required")
	}

	recipe, err := s.loadRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	factor := float64(servings) / float64(recipe.BaseServings)
	tasks := make([]map[string]any, 0, len(recipe.Instructions)+1)
	for i, step := range recipe.Instructions {
		tasks = append(tasks, map[string]any{
			"order":       i + 1,
			"instruction": step,
		})
	}
	// CCP checks bracket the cooking steps on every work order.
	tasks = append(tasks, map[string]any{
		"order":       len(recipe.Instructions) + 1,
		"instruction": "중심온도 75도 이상 1분 유지 확인 후 기록 (CCP)",
		"ccp":         true,
	})

	orderID := uuid.NewString()
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("marshal work order tasks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO work_orders (id, site_id, recipe_id, planned_date, planned_servings, tasks, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, orderID, siteID, recipe.ID, plannedDate, servings, tasksJSON, caller.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert work order: %w", err)
	}

	return map[string]any{
		"work_order_id":    orderID,
		"recipe_id":        recipe.ID,
		"recipe_name":      recipe.Name,
		"planned_date":     plannedDate,
		"planned_servings": servings,
		"ingredients":      scaleIngredients(recipe.Ingredients, factor),
		"tasks":            tasks,
	}, nil
}

func (s *RecipeService) loadRecipe(ctx context.Context, id string) (*recipeRow, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, category, description, base_servings, cost_per_serving, ingredients, nutrition, allergens, instructions
FROM recipes
WHERE id = $1
`, id)

	var (
		recipe          recipeRow
		ingredientsRaw  []byte
		nutritionRaw    []byte
		allergensRaw    []byte
		instructionsRaw []byte
	)
	err := row.Scan(
		&recipe.ID, &recipe.Name, &recipe.Category, &recipe.Description,
		&recipe.BaseServings, &recipe.CostPerServe,
		&ingredientsRaw, &nutritionRaw, &allergensRaw, &instructionsRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("recipe %s not found", id)
		}
		return nil, fmt.Errorf("scan recipe: %w", err)
	}

	if err := json.Unmarshal(ingredientsRaw, &recipe.Ingredients); err != nil {
		return nil, fmt.Errorf("unmarshal ingredients: %w", err)
	}
	if err := json.Unmarshal(nutritionRaw, &recipe.Nutrition); err != nil {
		return nil, fmt.Errorf("unmarshal nutrition: %w", err)
	}
	if err := json.Unmarshal(allergensRaw, &recipe.Allergens); err != nil {
		return nil, fmt.Errorf("unmarshal allergens: %w", err)
	}
	if err := json.Unmarshal(instructionsRaw, &recipe.Instructions); err != nil {
		return nil, fmt.Errorf("unmarshal instructions: %w", err)
	}
	if recipe.BaseServings <= 0 {
		recipe.BaseServings = 1
	}
	return &recipe, nil
}

func scaleIngredients(lines []ingredientLine, factor float64) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		out = append(out, map[string]any{
			"name":     line.Name,
			"quantity": line.Quantity * factor,
			"unit":     line.Unit,
		})
	}
	return out
}
