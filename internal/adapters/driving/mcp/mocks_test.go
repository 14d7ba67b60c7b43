package mcp

import (
	"context"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	document *domain.Document
	created  bool
	report   *domain.DocumentReport
	docs     []domain.Document
	err      error

	lastReg    domain.Registration
	lastFilter domain.DocumentFilter
	lastID     string
}

func (m *mockIngestionService) Register(_ context.Context, reg domain.Registration) (*domain.Document, bool, error) {
	m.lastReg = reg
	return m.document, m.created, m.err
}

func (m *mockIngestionService) Enqueue(_ context.Context, id string, stage domain.Stage) (*domain.Job, error) {
	m.lastID = id
	return &domain.Job{DocumentID: id, Stage: stage}, m.err
}

func (m *mockIngestionService) Get(_ context.Context, id string) (*domain.Document, error) {
	m.lastID = id
	return m.document, m.err
}

func (m *mockIngestionService) Status(_ context.Context, id string) (*domain.DocumentReport, error) {
	m.lastID = id
	return m.report, m.err
}

func (m *mockIngestionService) List(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	m.lastFilter = filter
	return m.docs, m.err
}

func (m *mockIngestionService) Reset(_ context.Context, id string) (*domain.Document, error) {
	m.lastID = id
	return m.document, m.err
}

func (m *mockIngestionService) Delete(_ context.Context, id string) error {
	m.lastID = id
	return m.err
}

func (m *mockIngestionService) Stats(context.Context) ([]domain.JobCount, error) {
	return nil, m.err
}

func (m *mockIngestionService) Ping(context.Context) error {
	return m.err
}
