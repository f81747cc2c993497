package postgres

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// pgxArgConverter lets the mock accept []string args the way the pgx stdlib
// driver does (mapping them to text[]); everything else uses the default.
type pgxArgConverter struct{}

func (pgxArgConverter) ConvertValue(v any) (driver.Value, error) {
	if _, ok := v.([]string); ok {
		return v, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newChunkRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(pgxArgConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestReplaceChunksDeletesThenInsertsInOneTx(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_chunks").
		WithArgs("recipe-7", "recipe").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("c1", "recipe-7", "recipe", "김치찌개", "recipe.pdf", 0, "재료 준비", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("c2", "recipe-7", "recipe", "김치찌개", "recipe.pdf", 1, "조리 순서", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceChunks(context.Background(), "recipe-7", "recipe", []domain.ChunkRecord{
		{ID: "c1", OwnerRef: "recipe-7", Tag: "recipe", Title: "김치찌개", SourceFile: "recipe.pdf", Index: 0, Content: "재료 준비"},
		{ID: "c2", OwnerRef: "recipe-7", Tag: "recipe", Title: "김치찌개", SourceFile: "recipe.pdf", Index: 1, Content: "조리 순서"},
	})
	if err != nil {
		t.Fatalf("ReplaceChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceChunksRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_chunks").
		WithArgs("o1", "sop").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO document_chunks").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.ReplaceChunks(context.Background(), "o1", "sop", []domain.ChunkRecord{
		{ID: "c1", OwnerRef: "o1", Tag: "sop", Index: 0, Content: "x"},
	})
	if err == nil {
		t.Fatalf("expected insert failure to propagate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchKeywordBuildsMetadataAndOrigin(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM document_chunks").
		WithArgs("위생 점검", sqlmock.AnyArg(), 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_ref", "tag", "title", "source_file", "chunk_index", "content", "rank",
		}).AddRow("c9", "doc-3", "haccp_guide", "HACCP 지침", "guide.pdf", 4, "냉장고 온도 기록", 0.61))

	results, err := repo.SearchKeyword(context.Background(), "위생 점검", domain.SearchFilter{Tags: []string{"haccp_guide"}}, 20)
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.Origin != domain.OriginKeyword || got.Score != 0.61 {
		t.Fatalf("unexpected result %+v", got)
	}
	if idx, ok := got.MetaInt("chunk_index"); !ok || idx != 4 {
		t.Fatalf("chunk_index metadata missing: %+v", got.Metadata)
	}
	if got.MetaString("tag") != "haccp_guide" || got.MetaString("owner_ref") != "doc-3" {
		t.Fatalf("metadata incomplete: %+v", got.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFetchAdjacentQueriesBothNeighbours(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT content").
		WithArgs("doc-3", "sop", 2, 4).
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("이전 단락").AddRow("다음 단락"))

	neighbours, err := repo.FetchAdjacent(context.Background(), "doc-3", "sop", 3)
	if err != nil {
		t.Fatalf("FetchAdjacent() error = %v", err)
	}
	if len(neighbours) != 2 || neighbours[0] != "이전 단락" {
		t.Fatalf("unexpected neighbours %v", neighbours)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
