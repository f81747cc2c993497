package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type HaccpService struct {
	db *sql.DB
}

func NewHaccpService(db *sql.DB) *HaccpService {
	return &HaccpService{db: db}
}

type checklistItem struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Critical  bool   `json:"critical,omitempty"`
}

var dailyChecklistItems = []checklistItem{
	{Name: "개인위생 점검 (복장, 손세척, 건강상태)", Critical: true},
	{Name: "냉장고 온도 기록 (5도 이하)", Critical: true},
	{Name: "냉동고 온도 기록 (-18도 이하)", Critical: true},
	{Name: "검수: 입고 식재료 신선도·표시사항 확인"},
	{Name: "조리 중심온도 측정 (75도 1분 이상)", Critical: true},
	{Name: "배식 전 보존식 채취 및 보관 (-18도, 144시간)"},
	{Name: "조리기구·도마 세척 소독"},
	{Name: "잔반 및 폐기물 처리 상태 확인"},
}

var weeklyChecklistItems = []checklistItem{
	{Name: "저수조·정수필터 위생 상태 점검"},
	{Name: "방충·방서 설비 점검"},
	{Name: "창고 선입선출 및 유통기한 전수 확인", Critical: true},
	{Name: "배수로·트렌치 청소 상태 확인"},
	{Name: "소독액 농도 측정 기록 확인"},
}

func (s *HaccpService) GenerateChecklist(ctx context.Context, input map[string]any) (map[string]any, error) {
	siteID := stringInput(input, "site_id")
	date := stringInput(input, "date")
	checklistType := stringInput(input, "checklist_type")
	if siteID == "" || date == "" {
		return nil, fmt.Errorf("generate_haccp_checklist: site_id and date are required")
	}

	var items []checklistItem
	switch checklistType {
	case "weekly":
		items = weeklyChecklistItems
	default:
		checklistType = "daily"
		items = dailyChecklistItems
	}

	id := uuid.NewString()
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal checklist items: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO haccp_checklists (id, site_id, check_date, checklist_type, items, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, id, siteID, date, checklistType, itemsJSON, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert haccp checklist: %w", err)
	}

	return map[string]any{
		"checklist_id":   id,
		"site_id":        siteID,
		"date":           date,
		"checklist_type": checklistType,
		"item_count":     len(items),
		"items":          items,
	}, nil
}

func (s *HaccpService) CheckCompletion(ctx context.Context, input map[string]any) (map[string]any, error) {
	siteID := stringInput(input, "site_id")
	date := stringInput(input, "date")
	if siteID == "" || date == "" {
		return nil, fmt.Errorf("check_haccp_completion: site_id and date are required")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT id, checklist_type, items
FROM haccp_checklists
WHERE site_id = $1 AND check_date = $2
ORDER BY created_at DESC
LIMIT 1
`, siteID, date)

	var (
		id            string
		checklistType string
		itemsRaw      []byte
	)
	if err := row.Scan(&id, &checklistType, &itemsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{
				"site_id": siteID,
				"date":    date,
				"status":  "missing",
				"message": "해당 날짜의 HACCP 체크리스트가 없습니다. 먼저 생성해 주세요.",
			}, nil
		}
		return nil, fmt.Errorf("scan haccp checklist: %w", err)
	}

	var items []checklistItem
	if err := json.Unmarshal(itemsRaw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal checklist items: %w", err)
	}

	var missing []string
	var criticalMissing []string
	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
			continue
		}
		missing = append(missing, item.Name)
		if item.Critical {
			criticalMissing = append(criticalMissing, item.Name)
		}
	}

	status := "complete"
	if len(criticalMissing) > 0 {
		status = "critical_missing"
	} else if len(missing) > 0 {
		status = "incomplete"
	}

	return map[string]any{
		"checklist_id":     id,
		"site_id":          siteID,
		"date":             date,
		"checklist_type":   checklistType,
		"status":           status,
		"completed_count":  completed,
		"total_count":      len(items),
		"missing_items":    missing,
		"critical_missing": criticalMissing,
	}, nil
}
