// Package mcp exposes the ingestion pipeline over the Model Context
// Protocol, so AI assistants can register documents and follow their
// progress.
package mcp

import "errors"

// ErrMissingIngestionService is returned when the ingestion service is not provided.
var ErrMissingIngestionService = errors.New("mcp: ingestion service is required")
