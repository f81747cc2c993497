package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	tools := record.ToolsCalled
	if tools == nil {
		tools = []string{}
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("marshal tools called: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_logs (
	id, user_id, site_id, action, conversation_id, intent, agent, confidence, tools_called, rag_chunks_used, model, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		record.ID, record.UserID, record.SiteID, record.Action, nullableString(record.ConversationID),
		record.Intent, record.Agent, record.Confidence, toolsJSON, record.RAGChunksUsed, record.Model, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListBySite reads recent audit records for one site, newest first.
func (r *AuditRepository) ListBySite(ctx context.Context, siteID string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, site_id, action, COALESCE(conversation_id, ''), intent, agent, confidence, tools_called, rag_chunks_used, model, created_at
FROM audit_logs
WHERE site_id = $1
ORDER BY created_at DESC
LIMIT $2
`, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditRecord, 0, limit)
	for rows.Next() {
		var record domain.AuditRecord
		var toolsRaw []byte
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.SiteID, &record.Action, &record.ConversationID,
			&record.Intent, &record.Agent, &record.Confidence, &toolsRaw, &record.RAGChunksUsed,
			&record.Model, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if err := json.Unmarshal(toolsRaw, &record.ToolsCalled); err != nil {
			return nil, fmt.Errorf("unmarshal tools called: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
