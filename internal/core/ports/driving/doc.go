// Package driving defines the interfaces the HTTP API, CLI and MCP server
// use to drive the ingestion engine: registering documents, reading their
// pipeline status and running the dispatcher.
//
// Implementations live in internal/core/services.
package driving
