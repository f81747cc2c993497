package httpadapter

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

type fakeAgent struct {
	events  []domain.AgentEvent
	err     error
	lastReq domain.AgentRequest
}

func (f *fakeAgent) Run(_ context.Context, req domain.AgentRequest) (<-chan domain.AgentEvent, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.AgentEvent, len(f.events))
	for _, event := range f.events {
		ch <- event
	}
	close(ch)
	return ch, nil
}

type fakeIngestor struct {
	doc *domain.Document
	err error
	tag string
}

func (f *fakeIngestor) Upload(_ context.Context, _, _, tag, _ string, _ io.Reader) (*domain.Document, error) {
	f.tag = tag
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type fakeDocReader struct {
	doc  *domain.Document
	docs []domain.Document
	err  error
}

func (f *fakeDocReader) GetByID(context.Context, string) (*domain.Document, error) {
	return f.doc, f.err
}

func (f *fakeDocReader) List(context.Context, int) ([]domain.Document, error) {
	return f.docs, f.err
}

type fakeConvReader struct {
	conv       *domain.Conversation
	convs      []domain.Conversation
	turns      []domain.Turn
	err        error
	listedUser string
}

func (f *fakeConvReader) GetConversation(_ context.Context, _, _ string) (*domain.Conversation, error) {
	return f.conv, f.err
}

func (f *fakeConvReader) ListConversations(_ context.Context, userID string, _ int) ([]domain.Conversation, error) {
	f.listedUser = userID
	return f.convs, f.err
}

func (f *fakeConvReader) ListRecentTurns(context.Context, string, int) ([]domain.Turn, error) {
	return f.turns, f.err
}

type fakeAuditReader struct {
	records []domain.AuditRecord
	err     error
}

func (f *fakeAuditReader) ListBySite(context.Context, string, int) ([]domain.AuditRecord, error) {
	return f.records, f.err
}

func newTestRouter(agent *fakeAgent) (*Router, *fakeIngestor, *fakeConvReader) {
	ingest := &fakeIngestor{doc: &domain.Document{ID: "d1", Status: domain.StatusUploaded}}
	convs := &fakeConvReader{}
	router := NewRouter(agent, ingest, &fakeDocReader{}, convs, &fakeAuditReader{}, nil, Config{})
	return router, ingest, convs
}

func withIdentity(req *http.Request) *http.Request {
	req.Header.Set(userIDHeader, "user-1")
	req.Header.Set(userNameHeader, "김영양")
	req.Header.Set(userRoleHeader, "NUT")
	req.Header.Set(userSitesHeader, "site-1, site-2")
	return req
}

func TestAgentChatStreamsEventsAsSSE(t *testing.T) {
	agent := &fakeAgent{events: []domain.AgentEvent{
		{Type: domain.EventTextDelta, Content: "주간 식단"},
		{Type: domain.EventDone, Status: domain.RunStatusOK},
	}}
	router, _, _ := newTestRouter(agent)

	body := strings.NewReader(`{"message":"식단 짜줘","site_id":"site-1"}`)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/v1/agent/chat", body))
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	out := res.Body.String()
	if !strings.Contains(out, `data: {"type":"text_delta"`) {
		t.Fatalf("text_delta not streamed: %q", out)
	}
	if !strings.Contains(out, `"type":"done"`) || !strings.Contains(out, `"status":"ok"`) {
		t.Fatalf("done event missing: %q", out)
	}
	if agent.lastReq.User.ID != "user-1" || agent.lastReq.User.Role != domain.RoleNutritionist {
		t.Fatalf("identity not forwarded: %+v", agent.lastReq.User)
	}
	if len(agent.lastReq.User.SiteIDs) != 2 || agent.lastReq.User.SiteIDs[1] != "site-2" {
		t.Fatalf("site allow-list not parsed: %v", agent.lastReq.User.SiteIDs)
	}
}

func TestAgentChatRequiresIdentityHeaders(t *testing.T) {
	router, _, _ := newTestRouter(&fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/v1/agent/chat",
		strings.NewReader(`{"message":"hi","site_id":"site-1"}`))
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestAgentChatValidatesBody(t *testing.T) {
	router, _, _ := newTestRouter(&fakeAgent{})

	for _, body := range []string{`{}`, `{"message":" ","site_id":"site-1"}`, `{"message":"hi"}`} {
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/v1/agent/chat", strings.NewReader(body)))
		res := httptest.NewRecorder()
		router.Handler().ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, res.Code)
		}
	}
}

func TestAgentChatMapsRunErrors(t *testing.T) {
	agent := &fakeAgent{err: domain.WrapError(domain.ErrInvalidInput, "agent run", io.ErrUnexpectedEOF)}
	router, _, _ := newTestRouter(agent)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/v1/agent/chat",
		strings.NewReader(`{"message":"hi","site_id":"site-1"}`)))
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid input, got %d", res.Code)
	}
}

func TestUploadDocumentForwardsTag(t *testing.T) {
	router, ingest, _ := newTestRouter(&fakeAgent{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "sop.txt")
	_, _ = part.Write([]byte("위생 절차"))
	_ = mw.WriteField("tag", "sop")
	_ = mw.Close()

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/v1/documents", &buf))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if ingest.tag != "sop" {
		t.Fatalf("tag not forwarded, got %q", ingest.tag)
	}
}

func TestUploadDocumentRequiresFile(t *testing.T) {
	router, _, _ := newTestRouter(&fakeAgent{})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("")))
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListConversationsScopedToCaller(t *testing.T) {
	router, _, convs := newTestRouter(&fakeAgent{})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/v1/conversations", nil))
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if convs.listedUser != "user-1" {
		t.Fatalf("listing not scoped to caller, got %q", convs.listedUser)
	}
}

func TestListAuditDeniesForeignSite(t *testing.T) {
	router, _, _ := newTestRouter(&fakeAgent{})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/v1/audit?site_id=site-9", nil))
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign site, got %d", res.Code)
	}
}

func TestListAuditAdminBypassesAllowList(t *testing.T) {
	router, _, _ := newTestRouter(&fakeAgent{})

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?site_id=site-9", nil)
	req.Header.Set(userIDHeader, "admin-1")
	req.Header.Set(userRoleHeader, "ADM")
	res := httptest.NewRecorder()
	router.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", res.Code)
	}
}
