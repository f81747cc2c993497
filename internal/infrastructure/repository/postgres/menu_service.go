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

// Nutrition policy targets per meal, aligned with institutional food-service
// guidance for adult lunches.
const (
	targetKcalPerMeal    = 900.0
	targetProteinPerMeal = 25.0
	kcalTolerance        = 0.15
)

type MenuService struct {
	db      *sql.DB
	recipes *RecipeService
}

func NewMenuService(db *sql.DB) *MenuService {
	return &MenuService{db: db, recipes: NewRecipeService(db)}
}

type menuPlanEntry struct {
	Date      string   `json:"date"`
	MealType  string   `json:"meal_type"`
	RecipeIDs []string `json:"recipe_ids"`
}

func (s *MenuService) GeneratePlan(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error) {
	siteID := stringInput(input, "site_id")
	periodStart := stringInput(input, "period_start")
	periodEnd := stringInput(input, "period_end")
	mealTypes := stringSliceInput(input, "meal_types")
	headcount := intInput(input, "target_headcount", 0)
	budget := intInput(input, "budget_per_meal", 0)
	alternatives := intInput(input, "num_alternatives", 2)
	if siteID == "" || periodStart == "" || periodEnd == "" || len(mealTypes) == 0 || headcount <= 0 {
		return nil, fmt.Errorf("generate_menu_plan: site_id, period, meal_types and target_headcount are required")
	}
	if alternatives < 2 {
		alternatives = 2
	}

	start, err := time.Parse("2006-01-02", periodStart)
	if err != nil {
		return nil, fmt.Errorf("parse period_start: %w", err)
	}
	end, err := time.Parse("2006-01-02", periodEnd)
	if err != nil {
		return nil, fmt.Errorf("parse period_end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("generate_menu_plan: period_end precedes period_start")
	}

	candidates, err := s.candidateRecipes(ctx, budget)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return map[string]any{
			"site_id":      siteID,
			"alternatives": []any{},
			"message":      "조건에 맞는 레시피가 없습니다. 예산 또는 기간을 조정해 주세요.",
		}, nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	now := time.Now().UTC()

	plans := make([]map[string]any, 0, alternatives)
	for alt := 0; alt < alternatives; alt++ {
		entries := make([]menuPlanEntry, 0, days*len(mealTypes))
		cursor := alt // offset each alternative so they differ
		var totalKcal, totalCost float64
		var mealCount int
		for day := 0; day < days; day++ {
			date := start.AddDate(0, 0, day).Format("2006-01-02")
			for _, meal := range mealTypes {
				recipe := candidates[cursor%len(candidates)]
				cursor++
				entries = append(entries, menuPlanEntry{
					Date:      date,
					MealType:  meal,
					RecipeIDs: []string{recipe.ID},
				})
				totalKcal += recipe.Nutrition["kcal"]
				totalCost += float64(recipe.CostPerServe)
				mealCount++
			}
		}

		planID := uuid.NewString()
		entriesJSON, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("marshal plan entries: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `
INSERT INTO menu_plans (id, site_id, period_start, period_end, entries, target_headcount, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,'draft',$7,$8)
`, planID, siteID, periodStart, periodEnd, entriesJSON, headcount, caller.ID, now); err != nil {
			return nil, fmt.Errorf("insert menu plan: %w", err)
		}

		plans = append(plans, map[string]any{
			"menu_plan_id":       planID,
			"entries":            entries,
			"avg_kcal_per_meal":  totalKcal / float64(mealCount),
			"avg_cost_per_meal":  totalCost / float64(mealCount),
			"target_headcount":   headcount,
			"estimated_cost_krw": totalCost * float64(headcount),
		})
	}

	return map[string]any{
		"site_id":      siteID,
		"period_start": periodStart,
		"period_end":   periodEnd,
		"alternatives": plans,
	}, nil
}

func (s *MenuService) ValidateNutrition(ctx context.Context, input map[string]any) (map[string]any, error) {
	planID := stringInput(input, "menu_plan_id")
	if planID == "" {
		return nil, fmt.Errorf("validate_nutrition: menu_plan_id is required")
	}

	entries, err := s.loadPlanEntries(ctx, planID)
	if err != nil {
		return nil, err
	}

	type dayTotal struct {
		kcal    float64
		protein float64
		meals   int
	}
	perDay := map[string]*dayTotal{}
	var dayOrder []string
	for _, entry := range entries {
		totals, ok := perDay[entry.Date]
		if !ok {
			totals = &dayTotal{}
			perDay[entry.Date] = totals
			dayOrder = append(dayOrder, entry.Date)
		}
		for _, recipeID := range entry.RecipeIDs {
			recipe, err := s.recipes.loadRecipe(ctx, recipeID)
			if err != nil {
				return nil, err
			}
			totals.kcal += recipe.Nutrition["kcal"]
			totals.protein += recipe.Nutrition["protein_g"]
		}
		totals.meals++
	}

	results := make([]map[string]any, 0, len(dayOrder))
	overall := "pass"
	for _, date := range dayOrder {
		totals := perDay[date]
		avgKcal := totals.kcal / float64(totals.meals)
		avgProtein := totals.protein / float64(totals.meals)

		status := "pass"
		var issues []string
		switch {
		case avgKcal < targetKcalPerMeal*(1-kcalTolerance):
			status = "fail"
			issues = append(issues, fmt.Sprintf("평균 열량 %.0fkcal이 기준(%.0fkcal) 대비 부족합니다.", avgKcal, targetKcalPerMeal))
		case avgKcal > targetKcalPerMeal*(1+kcalTolerance):
			status = "warning"
			issues = append(issues, fmt.Sprintf("평균 열량 %.0fkcal이 기준을 초과합니다.", avgKcal))
		}
		if avgProtein < targetProteinPerMeal {
			if status == "pass" {
				status = "warning"
			}
			issues = append(issues, fmt.Sprintf("단백질 %.1fg이 권장량(%.0fg)에 미달합니다.", avgProtein, targetProteinPerMeal))
		}
		if status == "fail" || (status == "warning" && overall == "pass") {
			overall = status
		}

		results = append(results, map[string]any{
			"date":          date,
			"status":        status,
			"avg_kcal":      avgKcal,
			"avg_protein_g": avgProtein,
			"issues":        issues,
		})
	}

	return map[string]any{
		"menu_plan_id": planID,
		"overall":      overall,
		"days":         results,
	}, nil
}

func (s *MenuService) CheckDiversity(ctx context.Context, input map[string]any) (map[string]any, error) {
	planID := stringInput(input, "menu_plan_id")
	if planID == "" {
		return nil, fmt.Errorf("check_diversity: menu_plan_id is required")
	}

	entries, err := s.loadPlanEntries(ctx, planID)
	if err != nil {
		return nil, err
	}

	categoryCount := map[string]int{}
	recipeCount := map[string]int{}
	recipeNames := map[string]string{}
	total := 0
	for _, entry := range entries {
		for _, recipeID := range entry.RecipeIDs {
			recipe, err := s.recipes.loadRecipe(ctx, recipeID)
			if err != nil {
				return nil, err
			}
			categoryCount[recipe.Category]++
			recipeCount[recipe.ID]++
			recipeNames[recipe.ID] = recipe.Name
			total++
		}
	}

	var repeated []map[string]any
	for id, count := range recipeCount {
		if count > 1 {
			repeated = append(repeated, map[string]any{
				"recipe_id": id,
				"name":      recipeNames[id],
				"count":     count,
			})
		}
	}

	status := "pass"
	var issues []string
	for category, count := range categoryCount {
		if total > 0 && float64(count)/float64(total) > 0.5 {
			status = "warning"
			issues = append(issues, fmt.Sprintf("%s 비중이 %d%%로 편중되어 있습니다.", category, count*100/total))
		}
	}
	if len(repeated) > 0 {
		status = "warning"
		issues = append(issues, fmt.Sprintf("%d개 메뉴가 기간 내 반복됩니다.", len(repeated)))
	}

	return map[string]any{
		"menu_plan_id":     planID,
		"status":           status,
		"category_counts":  categoryCount,
		"repeated_recipes": repeated,
		"issues":           issues,
	}, nil
}

func (s *MenuService) candidateRecipes(ctx context.Context, budgetPerMeal int) ([]*recipeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, category, base_servings, cost_per_serving, nutrition
FROM recipes
WHERE $1 <= 0 OR cost_per_serving <= $1
ORDER BY updated_at DESC
LIMIT 50
`, budgetPerMeal)
	if err != nil {
		return nil, fmt.Errorf("load candidate recipes: %w", err)
	}
	defer rows.Close()

	var out []*recipeRow
	for rows.Next() {
		var recipe recipeRow
		var nutritionRaw []byte
		if err := rows.Scan(&recipe.ID, &recipe.Name, &recipe.Category, &recipe.BaseServings, &recipe.CostPerServe, &nutritionRaw); err != nil {
			return nil, fmt.Errorf("scan candidate recipe: %w", err)
		}
		if err := json.Unmarshal(nutritionRaw, &recipe.Nutrition); err != nil {
			return nil, fmt.Errorf("unmarshal candidate nutrition: %w", err)
		}
		out = append(out, &recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate recipes: %w", err)
	}
	return out, nil
}

func (s *MenuService) loadPlanEntries(ctx context.Context, planID string) ([]menuPlanEntry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT entries FROM menu_plans WHERE id = $1
`, planID)

	var entriesRaw []byte
	if err := row.Scan(&entriesRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("menu plan %s not found", planID)
		}
		return nil, fmt.Errorf("scan menu plan: %w", err)
	}

	var entries []menuPlanEntry
	if err := json.Unmarshal(entriesRaw, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal plan entries: %w", err)
	}
	return entries, nil
}
