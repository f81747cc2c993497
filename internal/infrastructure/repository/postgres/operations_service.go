package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// OperationsService backs the dashboard, purchasing and demand tools.
type OperationsService struct {
	db      *sql.DB
	recipes *RecipeService
	menus   *MenuService
}

func NewOperationsService(db *sql.DB) *OperationsService {
	return &OperationsService{
		db:      db,
		recipes: NewRecipeService(db),
		menus:   NewMenuService(db),
	}
}

func (s *OperationsService) QueryDashboard(ctx context.Context, input map[string]any) (map[string]any, error) {
	siteID := stringInput(input, "site_id")
	if siteID == "" {
		return nil, fmt.Errorf("query_dashboard: site_id is required")
	}
	date := stringInput(input, "date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	var menuPlanned bool
	if err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM menu_plans
	WHERE site_id = $1 AND period_start <= $2 AND period_end >= $2
)
`, siteID, date).Scan(&menuPlanned); err != nil {
		return nil, fmt.Errorf("check planned menu: %w", err)
	}

	haccp, err := NewHaccpService(s.db).CheckCompletion(ctx, map[string]any{"site_id": siteID, "date": date})
	if err != nil {
		return nil, err
	}

	var lowStockCount int
	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM inventory_items
WHERE site_id = $1 AND quantity <= minimum_quantity
`, siteID).Scan(&lowStockCount); err != nil {
		return nil, fmt.Errorf("count low stock: %w", err)
	}

	var headcount sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `
SELECT SUM(headcount) FROM headcount_records
WHERE site_id = $1 AND record_date = $2
`, siteID, date).Scan(&headcount); err != nil {
		return nil, fmt.Errorf("sum headcount: %w", err)
	}

	var alerts []string
	if !menuPlanned {
		alerts = append(alerts, "오늘 확정된 식단이 없습니다.")
	}
	if status, _ := haccp["status"].(string); status == "critical_missing" || status == "missing" {
		alerts = append(alerts, "HACCP 필수 점검이 완료되지 않았습니다.")
	}
	if lowStockCount > 0 {
		alerts = append(alerts, fmt.Sprintf("재고 부족 품목이 %d건 있습니다.", lowStockCount))
	}

	return map[string]any{
		"site_id":          siteID,
		"date":             date,
		"menu_planned":     menuPlanned,
		"haccp":            haccp,
		"low_stock_count":  lowStockCount,
		"headcount_served": headcount.Int64,
		"alerts":           alerts,
	}, nil
}

type bomLine struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	RequiredQty  float64 `json:"required_qty"`
	InventoryQty float64 `json:"inventory_qty"`
	ShortageQty  float64 `json:"shortage_qty"`
}

func (s *OperationsService) CalculateBOM(ctx context.Context, input map[string]any) (map[string]any, error) {
	planID := stringInput(input, "menu_plan_id")
	headcount := intInput(input, "headcount", 0)
	applyInventory := boolInput(input, "apply_inventory", true)
	if planID == "" || headcount <= 0 {
		return nil, fmt.Errorf("calculate_bom: menu_plan_id and positive headcount are required")
	}

	var siteID string
	if err := s.db.QueryRowContext(ctx, `
SELECT site_id FROM menu_plans WHERE id = $1
`, planID).Scan(&siteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("menu plan %s not found", planID)
		}
		return nil, fmt.Errorf("scan menu plan site: %w", err)
	}

	entries, err := s.menus.loadPlanEntries(ctx, planID)
	if err != nil {
		return nil, err
	}

	type requirement struct {
		unit string
		qty  float64
	}
	required := map[string]*requirement{}
	for _, entry := range entries {
		for _, recipeID := range entry.RecipeIDs {
			recipe, err := s.recipes.loadRecipe(ctx, recipeID)
			if err != nil {
				return nil, err
			}
			factor := float64(headcount) / float64(recipe.BaseServings)
			for _, line := range recipe.Ingredients {
				req, ok := required[line.Name]
				if !ok {
					req = &requirement{unit: line.Unit}
					required[line.Name] = req
				}
				req.qty += line.Quantity * factor
			}
		}
	}

	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]bomLine, 0, len(names))
	for _, name := range names {
		req := required[name]
		line := bomLine{Name: name, Unit: req.unit, RequiredQty: req.qty, ShortageQty: req.qty}
		if applyInventory {
			var onHand sql.NullFloat64
			if err := s.db.QueryRowContext(ctx, `
SELECT SUM(quantity) FROM inventory_items WHERE site_id = $1 AND name = $2
`, siteID, name).Scan(&onHand); err != nil {
				return nil, fmt.Errorf("read inventory for %s: %w", name, err)
			}
			line.InventoryQty = onHand.Float64
			line.ShortageQty = math.Max(0, req.qty-onHand.Float64)
		}
		lines = append(lines, line)
	}

	bomID := uuid.NewString()
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal bom lines: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO boms (id, site_id, menu_plan_id, headcount, lines, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, bomID, siteID, planID, headcount, linesJSON, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert bom: %w", err)
	}

	return map[string]any{
		"bom_id":       bomID,
		"menu_plan_id": planID,
		"site_id":      siteID,
		"headcount":    headcount,
		"line_count":   len(lines),
		"lines":        lines,
	}, nil
}

func (s *OperationsService) GeneratePurchaseOrder(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error) {
	bomID := stringInput(input, "bom_id")
	deliveryDate := stringInput(input, "delivery_date")
	vendorID := stringInput(input, "vendor_id")
	if bomID == "" || deliveryDate == "" {
		return nil, fmt.Errorf("generate_purchase_order: bom_id and delivery_date are required")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT site_id, lines FROM boms WHERE id = $1
`, bomID)
	var (
		siteID   string
		linesRaw []byte
	)
	if err := row.Scan(&siteID, &linesRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bom %s not found", bomID)
		}
		return nil, fmt.Errorf("scan bom: %w", err)
	}

	var bomLines []bomLine
	if err := json.Unmarshal(linesRaw, &bomLines); err != nil {
		return nil, fmt.Errorf("unmarshal bom lines: %w", err)
	}

	// Only shortages get ordered; on-hand stock is consumed first.
	orderLines := make([]map[string]any, 0, len(bomLines))
	for _, line := range bomLines {
		if line.ShortageQty <= 0 {
			continue
		}
		orderLines = append(orderLines, map[string]any{
			"name":     line.Name,
			"unit":     line.Unit,
			"quantity": line.ShortageQty,
		})
	}
	if len(orderLines) == 0 {
		return map[string]any{
			"bom_id":  bomID,
			"site_id": siteID,
			"message": "부족 품목이 없어 발주서가 필요하지 않습니다.",
		}, nil
	}

	orderID := uuid.NewString()
	orderJSON, err := json.Marshal(orderLines)
	if err != nil {
		return nil, fmt.Errorf("marshal order lines: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO purchase_orders (id, site_id, bom_id, vendor_id, delivery_date, lines, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,'draft',$7,$8)
`, orderID, siteID, bomID, vendorID, deliveryDate, orderJSON, caller.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert purchase order: %w", err)
	}

	return map[string]any{
		"purchase_order_id": orderID,
		"bom_id":            bomID,
		"site_id":           siteID,
		"delivery_date":     deliveryDate,
		"vendor_id":         vendorID,
		"status":            "draft",
		"line_count":        len(orderLines),
		"lines":             orderLines,
	}, nil
}

func (s *OperationsService) CheckInventory(ctx context.Context, input map[string]any) (map[string]any, error) {
	siteID := stringInput(input, "site_id")
	if siteID == "" {
		return nil, fmt.Errorf("check_inventory: site_id is required")
	}
	alertDays := intInput(input, "alert_days", 7)
	itemIDs := stringSliceInput(input, "item_ids")

	var idFilter any
	if len(itemIDs) > 0 {
		idFilter = itemIDs
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, unit, quantity, minimum_quantity, expiry_date
FROM inventory_items
WHERE site_id = $1 AND ($2::text[] IS NULL OR id = ANY($2))
ORDER BY (quantity <= minimum_quantity) DESC, expiry_date ASC NULLS LAST, name
`, siteID, idFilter)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	expiryCutoff := time.Now().UTC().AddDate(0, 0, alertDays)
	items := make([]map[string]any, 0)
	lowStock := 0
	expiringSoon := 0
	for rows.Next() {
		var (
			id, name, unit string
			qty, minQty    float64
			expiry         sql.NullTime
		)
		if err := rows.Scan(&id, &name, &unit, &qty, &minQty, &expiry); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}

		item := map[string]any{
			"item_id":          id,
			"name":             name,
			"unit":             unit,
			"quantity":         qty,
			"minimum_quantity": minQty,
		}
		if qty <= minQty {
			item["low_stock"] = true
			lowStock++
		}
		if expiry.Valid {
			item["expiry_date"] = expiry.Time.Format("2006-01-02")
			if expiry.Time.Before(expiryCutoff) {
				item["expiring_soon"] = true
				expiringSoon++
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}

	return map[string]any{
		"site_id":       siteID,
		"item_count":    len(items),
		"low_stock":     lowStock,
		"expiring_soon": expiringSoon,
		"items":         items,
	}, nil
}

// ForecastHeadcount predicts servings with a weighted moving average over the
// last four records of the same weekday and meal.
func (s *OperationsService) ForecastHeadcount(ctx context.Context, input map[string]any) (map[string]any, error) {
	siteID := stringInput(input, "site_id")
	forecastDate := stringInput(input, "forecast_date")
	mealType := stringInput(input, "meal_type")
	if siteID == "" || forecastDate == "" || mealType == "" {
		return nil, fmt.Errorf("forecast_headcount: site_id, forecast_date and meal_type are required")
	}
	target, err := time.Parse("2006-01-02", forecastDate)
	if err != nil {
		return nil, fmt.Errorf("parse forecast_date: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT record_date, headcount
FROM headcount_records
WHERE site_id = $1 AND meal_type = $2
	AND EXTRACT(DOW FROM record_date) = $3
	AND record_date < $4
ORDER BY record_date DESC
LIMIT 4
`, siteID, mealType, int(target.Weekday()), forecastDate)
	if err != nil {
		return nil, fmt.Errorf("query headcount history: %w", err)
	}
	defer rows.Close()

	type record struct {
		date  time.Time
		count int
	}
	var history []record
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.date, &rec.count); err != nil {
			return nil, fmt.Errorf("scan headcount record: %w", err)
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate headcount history: %w", err)
	}

	if len(history) == 0 {
		return map[string]any{
			"site_id":       siteID,
			"forecast_date": forecastDate,
			"meal_type":     mealType,
			"forecast":      0,
			"confidence":    "none",
			"message":       "과거 실적이 없어 예측할 수 없습니다.",
		}, nil
	}

	// Most recent record weighs heaviest: 4, 3, 2, 1.
	var weightedSum, weightTotal float64
	samples := make([]map[string]any, 0, len(history))
	for i, rec := range history {
		weight := float64(len(history) - i)
		weightedSum += float64(rec.count) * weight
		weightTotal += weight
		samples = append(samples, map[string]any{
			"date":      rec.date.Format("2006-01-02"),
			"headcount": rec.count,
		})
	}
	forecast := int(math.Round(weightedSum / weightTotal))

	confidence := "low"
	if len(history) >= 3 {
		confidence = "medium"
	}
	if len(history) == 4 {
		confidence = "high"
	}

	return map[string]any{
		"site_id":       siteID,
		"forecast_date": forecastDate,
		"meal_type":     mealType,
		"model":         "wma",
		"forecast":      forecast,
		"confidence":    confidence,
		"samples":       samples,
	}, nil
}
