package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

type fakeDocumentRepo struct {
	docs       map[string]*domain.Document
	statuses   []domain.DocumentStatus
	lastError  string
	chunkCount int
	createErr  error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[string]*domain.Document{}}
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocumentRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.statuses = append(f.statuses, status)
	f.lastError = errMessage
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
		doc.Error = errMessage
	}
	return nil
}

func (f *fakeDocumentRepo) SetChunkCount(_ context.Context, id string, count int) error {
	f.chunkCount = count
	if doc, ok := f.docs[id]; ok {
		doc.ChunkCount = count
	}
	return nil
}

type fakeStorage struct {
	saved map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: map[string][]byte{}}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *fakeStorage) Path(key string) string {
	return "/data/" + key
}

type fakeQueue struct {
	published  []string
	publishErr error
}

func (f *fakeQueue) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *fakeQueue) SubscribeDocumentUploaded(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestUploadStoresAndPublishes(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeStorage()
	queue := &fakeQueue{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "주간 식단.pdf", "application/pdf", "recipe", "recipe-7",
		strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if doc.Status != domain.StatusUploaded || doc.Tag != "recipe" || doc.OwnerRef != "recipe-7" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if len(storage.saved) != 1 {
		t.Fatalf("file not stored: %v", storage.saved)
	}
	if strings.Contains(doc.StoragePath, " ") {
		t.Fatalf("storage key not sanitized: %q", doc.StoragePath)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("upload event not published: %v", queue.published)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	uc := NewIngestDocumentUseCase(newFakeDocumentRepo(), newFakeStorage(), &fakeQueue{})

	_, err := uc.Upload(context.Background(), "malware.exe", "application/octet-stream", "recipe", "",
		strings.NewReader("MZ"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUploadRequiresTag(t *testing.T) {
	uc := NewIngestDocumentUseCase(newFakeDocumentRepo(), newFakeStorage(), &fakeQueue{})

	_, err := uc.Upload(context.Background(), "doc.txt", "text/plain", "  ", "", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUploadPublishFailurePropagates(t *testing.T) {
	uc := NewIngestDocumentUseCase(newFakeDocumentRepo(), newFakeStorage(), &fakeQueue{publishErr: errors.New("nats down")})

	if _, err := uc.Upload(context.Background(), "doc.txt", "text/plain", "sop", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected publish error to propagate")
	}
}
