package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// mockIngestion is a test double for driving.IngestionService.
type mockIngestion struct {
	docs     map[string]*domain.Document
	pingErr  error
	lastReg  domain.Registration
	filter   domain.DocumentFilter
	enqueued []domain.Stage
	deleted  []string
}

func newMockIngestion() *mockIngestion {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &mockIngestion{docs: map[string]*domain.Document{
		"doc-1": {
			ID: "doc-1", Bucket: "demo-bucket", Key: "demo/file.pdf", URL: "s3://demo-bucket/demo/file.pdf",
			FileType: domain.FileTypePDF, Status: domain.DocumentFailed, LastError: "extract: boom",
			CreatedAt: created, UpdatedAt: created,
		},
	}}
}

func (m *mockIngestion) Register(_ context.Context, reg domain.Registration) (*domain.Document, bool, error) {
	m.lastReg = reg
	if err := reg.Validate(); err != nil {
		return nil, false, err
	}
	for _, d := range m.docs {
		if d.Bucket == reg.Bucket && d.Key == reg.Key {
			return d, false, nil
		}
	}
	doc := &domain.Document{ID: "doc-2", Bucket: reg.Bucket, Key: reg.Key, Status: domain.DocumentRegistered}
	m.docs[doc.ID] = doc
	return doc, true, nil
}

func (m *mockIngestion) Enqueue(_ context.Context, documentID string, stage domain.Stage) (*domain.Job, error) {
	if _, ok := m.docs[documentID]; !ok {
		return nil, domain.ErrNotFound
	}
	if stage != domain.StageExtract {
		return nil, domain.ErrPriorStageIncomplete
	}
	m.enqueued = append(m.enqueued, stage)
	return &domain.Job{ID: "job-1", DocumentID: documentID, Stage: stage, Status: domain.JobPending}, nil
}

func (m *mockIngestion) Get(_ context.Context, documentID string) (*domain.Document, error) {
	if d, ok := m.docs[documentID]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngestion) Status(ctx context.Context, documentID string) (*domain.DocumentReport, error) {
	d, err := m.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentReport{
		Document: *d,
		Jobs: []domain.Job{
			{ID: "j1", Stage: domain.StageExtract, Status: domain.JobCompleted, Attempts: 1},
			{ID: "j2", Stage: domain.StageChunk, Status: domain.JobFailed, Attempts: 5, Error: "boom"},
		},
		Artifacts:  []domain.Artifact{{ID: "a1", Type: domain.ArtifactExtractedText, URL: "s3://demo-bucket/artifacts/doc-1/extracted_text.txt"}},
		ChunkCount: 0,
	}, nil
}

func (m *mockIngestion) List(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	m.filter = filter
	var out []domain.Document
	for _, d := range m.docs {
		if filter.Status == "" || d.Status == filter.Status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockIngestion) Reset(_ context.Context, documentID string) (*domain.Document, error) {
	d, ok := m.docs[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if d.Status == domain.DocumentRegistered {
		return nil, domain.ErrInvalidTransition
	}
	d.Status = domain.DocumentRegistered
	d.LastError = ""
	return d, nil
}

func (m *mockIngestion) Delete(_ context.Context, documentID string) error {
	if _, ok := m.docs[documentID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, documentID)
	m.deleted = append(m.deleted, documentID)
	return nil
}

func (m *mockIngestion) Stats(context.Context) ([]domain.JobCount, error) {
	return []domain.JobCount{{Stage: domain.StageExtract, Status: domain.JobPending, Count: 3}}, nil
}

func (m *mockIngestion) Ping(context.Context) error { return m.pingErr }

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	mock := newMockIngestion()
	mock.pingErr = errors.New("db down")
	s := New(mock, "RAG")

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true, "service": "RAG"}, decode(t, rec))
}

func TestHealthDB(t *testing.T) {
	mock := newMockIngestion()
	s := New(mock, "RAG")

	rec := do(t, s, http.MethodGet, "/health/db", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true, "db": "reachable"}, decode(t, rec))

	mock.pingErr = errors.New("database is locked")
	rec = do(t, s, http.MethodGet, "/health/db", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "unreachable", body["db"])
	assert.Equal(t, "database is locked", body["error"])
}

func TestRegister(t *testing.T) {
	mock := newMockIngestion()
	s := New(mock, "RAG")

	rec := do(t, s, http.MethodPost, "/documents",
		`{"bucket":"demo-bucket","key":"new/report.docx","file_type":"docx","checksum":"abc","tenant_id":"t1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "doc-2", decode(t, rec)["id"])
	assert.Equal(t, domain.Registration{
		TenantID: "t1", Bucket: "demo-bucket", Key: "new/report.docx", FileType: "docx", Checksum: "abc",
	}, mock.lastReg)

	rec = do(t, s, http.MethodPost, "/documents", `{"bucket":"demo-bucket","key":"demo/file.pdf"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doc-1", decode(t, rec)["id"])
}

func TestRegister_BadRequests(t *testing.T) {
	s := New(newMockIngestion(), "RAG")

	rec := do(t, s, http.MethodPost, "/documents", `{"bucket":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/documents", `{"key":"a.txt"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "bucket is required")
}

func TestList(t *testing.T) {
	mock := newMockIngestion()
	s := New(mock, "RAG")

	rec := do(t, s, http.MethodGet, "/documents?status=failed&limit=10&tenant_id=t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "FAILED", docs[0].Status)
	assert.Equal(t, "extract: boom", docs[0].LastError)
	assert.Equal(t, domain.DocumentFilter{Status: domain.DocumentFailed, TenantID: "t1", Limit: 10}, mock.filter)

	rec = do(t, s, http.MethodGet, "/documents?status=done", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/documents?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	s := New(newMockIngestion(), "RAG")

	rec := do(t, s, http.MethodGet, "/documents/doc-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "doc-1", report.Document.ID)
	assert.Equal(t, "chunk", report.CurrentStage)
	require.Len(t, report.Jobs, 2)
	assert.Equal(t, 5, report.Jobs[1].Attempts)
	assert.Nil(t, report.Jobs[0].LeaseExpiresAt)
	require.Len(t, report.Artifacts, 1)
	assert.Equal(t, "extracted_text", report.Artifacts[0].Type)

	rec = do(t, s, http.MethodGet, "/documents/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReset(t *testing.T) {
	s := New(newMockIngestion(), "RAG")

	rec := do(t, s, http.MethodPost, "/documents/doc-1/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REGISTERED", decode(t, rec)["status"])

	rec = do(t, s, http.MethodPost, "/documents/doc-1/reset", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDelete(t *testing.T) {
	mock := newMockIngestion()
	s := New(mock, "RAG")

	rec := do(t, s, http.MethodDelete, "/documents/doc-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"doc-1"}, mock.deleted)

	rec = do(t, s, http.MethodDelete, "/documents/doc-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueue(t *testing.T) {
	mock := newMockIngestion()
	s := New(mock, "RAG")

	rec := do(t, s, http.MethodPost, "/documents/doc-1/stages/extract", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pending", decode(t, rec)["status"])

	rec = do(t, s, http.MethodPost, "/documents/doc-1/stages/embed", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/documents/doc-1/stages/publish", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	s := New(newMockIngestion(), "RAG")

	rec := do(t, s, http.MethodGet, "/jobs/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var counts []jobCountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, []jobCountResponse{{Stage: "extract", Status: "pending", Count: 3}}, counts)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrUnsupportedType, http.StatusBadRequest},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := New(newMockIngestion(), "RAG")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
