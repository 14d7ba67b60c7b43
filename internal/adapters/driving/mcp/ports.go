package mcp

import (
	"github.com/custodia-labs/rag-platform/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Ingestion registers documents and reports pipeline state.
	Ingestion driving.IngestionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	return nil
}
