package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// RegisterInput is the input schema for the register_document tool.
type RegisterInput struct {
	Bucket   string `json:"bucket" jsonschema:"bucket holding the source object"`
	Key      string `json:"key" jsonschema:"object key inside the bucket"`
	URL      string `json:"url,omitempty" jsonschema:"full object URL (defaults to s3://bucket/key)"`
	FileType string `json:"file_type,omitempty" jsonschema:"file type such as pdf or docx (inferred from the key when empty)"`
	Checksum string `json:"checksum,omitempty" jsonschema:"content checksum; a new value reruns the pipeline, after the current run if one is in progress"`
	TenantID string `json:"tenant_id,omitempty" jsonschema:"owning tenant"`
}

// RegisterOutput is the output schema for the register_document tool.
type RegisterOutput struct {
	Document DocumentOutput `json:"document"`
	Created  bool           `json:"created"`
}

// DocumentIDInput selects one document.
type DocumentIDInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document ID"`
}

// DocumentOutput is a document summary.
type DocumentOutput struct {
	ID        string `json:"id"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	URL       string `json:"url"`
	FileType  string `json:"file_type"`
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// JobOutput is one stage job of a document.
type JobOutput struct {
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// StatusOutput is the output schema for the document_status tool.
type StatusOutput struct {
	Document     DocumentOutput `json:"document"`
	CurrentStage string         `json:"current_stage,omitempty"`
	Jobs         []JobOutput    `json:"jobs"`
	Artifacts    []string       `json:"artifacts"`
	ChunkCount   int            `json:"chunk_count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "register_document",
		Description: "Register a stored object for ingestion and start its pipeline",
	}, s.handleRegister)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Show a document's pipeline status, stage jobs, artifacts and chunk count",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reset_document",
		Description: "Reset a FAILED or INDEXED document so its pipeline runs again",
	}, s.handleReset)
}

func (s *Server) handleRegister(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RegisterInput,
) (*mcp.CallToolResult, RegisterOutput, error) {
	doc, created, err := s.ports.Ingestion.Register(ctx, domain.Registration{
		TenantID: input.TenantID,
		Bucket:   input.Bucket,
		Key:      input.Key,
		URL:      input.URL,
		FileType: input.FileType,
		Checksum: input.Checksum,
	})
	if err != nil {
		return nil, RegisterOutput{}, err
	}
	return nil, RegisterOutput{Document: toDocumentOutput(doc), Created: created}, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentIDInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	report, err := s.ports.Ingestion.Status(ctx, input.DocumentID)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, toStatusOutput(report), nil
}

func (s *Server) handleReset(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentIDInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.ports.Ingestion.Reset(ctx, input.DocumentID)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, toDocumentOutput(doc), nil
}

func toDocumentOutput(d *domain.Document) DocumentOutput {
	return DocumentOutput{
		ID:        d.ID,
		Bucket:    d.Bucket,
		Key:       d.Key,
		URL:       d.URL,
		FileType:  d.FileType.String(),
		Status:    d.Status.String(),
		LastError: d.LastError,
		UpdatedAt: d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toStatusOutput(r *domain.DocumentReport) StatusOutput {
	out := StatusOutput{
		Document:   toDocumentOutput(&r.Document),
		Jobs:       make([]JobOutput, len(r.Jobs)),
		Artifacts:  make([]string, len(r.Artifacts)),
		ChunkCount: r.ChunkCount,
	}
	for i, j := range r.Jobs {
		out.Jobs[i] = JobOutput{
			Stage:    j.Stage.String(),
			Status:   j.Status.String(),
			Attempts: j.Attempts,
			Error:    j.Error,
		}
	}
	for i, a := range r.Artifacts {
		out.Artifacts[i] = a.URL
	}
	if job, ok := r.CurrentStage(); ok {
		out.CurrentStage = job.Stage.String()
	}
	return out
}
