// Package httpapi exposes the ingestion service over HTTP with echo:
// health probes, document registration and operator actions.
package httpapi
