package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for ragd resources.
	uriScheme = "ragd://"

	// documentListLimit caps the documents resource.
	documentListLimit = 100
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "Most recently registered documents with their pipeline status",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-status",
		Description: "Pipeline status of a specific document",
		MIMEType:    "application/json",
	}, s.handleDocumentResource)
}

// handleDocumentsResource lists documents.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Ingestion.List(ctx, domain.DocumentFilter{Limit: documentListLimit})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	out := make([]DocumentOutput, len(docs))
	for i := range docs {
		out[i] = toDocumentOutput(&docs[i])
	}
	return jsonResult(req.Params.URI, out)
}

// handleDocumentResource returns one document's status report.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	report, err := s.ports.Ingestion.Status(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document status: %w", err)
	}
	return jsonResult(req.Params.URI, toStatusOutput(report))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like ragd://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	id, ok := strings.CutPrefix(uri, prefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
