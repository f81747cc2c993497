package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

func TestAuditCreateFillsIDAndMarshalsTools(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := &AuditRepository{db: db}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "user-1", "site-1", "ai_chat", nil, "menu_generate", "menu",
			0.92, []byte(`["generate_menu_plan"]`), 3, "claude-sonnet", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &domain.AuditRecord{
		UserID:        "user-1",
		SiteID:        "site-1",
		Action:        "ai_chat",
		Intent:        "menu_generate",
		Agent:         "menu",
		Confidence:    0.92,
		ToolsCalled:   []string{"generate_menu_plan"},
		RAGChunksUsed: 3,
		Model:         "claude-sonnet",
	}
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if record.ID == "" {
		t.Fatal("record ID not assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAuditCreateNilToolsBecomesEmptyArray(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := &AuditRepository{db: db}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "user-1", "site-1", "ai_chat", nil, "general", "general",
			0.3, []byte(`[]`), 0, "claude-sonnet", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Create(context.Background(), &domain.AuditRecord{
		UserID: "user-1", SiteID: "site-1", Action: "ai_chat",
		Intent: "general", Agent: "general", Confidence: 0.3, Model: "claude-sonnet",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
