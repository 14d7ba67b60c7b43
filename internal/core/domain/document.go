package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentStatus is the aggregated pipeline state of a document.
type DocumentStatus string

// Document statuses.
const (
	// DocumentRegistered is the initial state after registration.
	DocumentRegistered DocumentStatus = "REGISTERED"

	// DocumentProcessing means at least one stage job has been claimed.
	DocumentProcessing DocumentStatus = "PROCESSING"

	// DocumentIndexed means the index stage completed. Terminal.
	DocumentIndexed DocumentStatus = "INDEXED"

	// DocumentFailed means a stage exhausted its retry budget. Terminal
	// until an explicit reset.
	DocumentFailed DocumentStatus = "FAILED"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentRegistered, DocumentProcessing, DocumentIndexed, DocumentFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for INDEXED and FAILED.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentIndexed || s == DocumentFailed
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// ParseDocumentStatus parses a status name case-insensitively.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	status := DocumentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown document status %q", ErrInvalidInput, s)
	}
	return status, nil
}

// documentTransitions lists the allowed status moves. Self-transitions are
// not listed; callers treat them as no-ops.
var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentRegistered: {DocumentProcessing, DocumentFailed},
	DocumentProcessing: {DocumentIndexed, DocumentFailed},
	DocumentIndexed:    {DocumentRegistered},
	DocumentFailed:     {DocumentRegistered},
}

// CanTransition reports whether a document may move from one status to another.
// Leaving INDEXED or FAILED is only possible through a reset back to REGISTERED.
func CanTransition(from, to DocumentStatus) bool {
	for _, allowed := range documentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Document is a registered object in external storage moving through the
// ingestion pipeline.
type Document struct {
	// ID is the unique identifier.
	ID string

	// TenantID scopes ownership. Optional.
	TenantID string

	// Bucket and Key locate the source object. Unique together.
	Bucket string
	Key    string

	// URL is the full object URL, e.g. s3://bucket/key.
	URL string

	// FileType drives extractor selection.
	FileType FileType

	// Checksum is the content checksum, if known.
	Checksum string

	// PendingChecksum is set when new content was registered mid-pipeline.
	// It becomes Checksum, and the pipeline reruns, once the document is
	// INDEXED or FAILED.
	PendingChecksum string

	// Status is the aggregated pipeline state.
	Status DocumentStatus

	// LastError holds the error of the stage that failed the document.
	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location returns bucket/key.
func (d *Document) Location() string {
	return d.Bucket + "/" + d.Key
}

// ObjectURL builds the canonical object URL for a bucket and key.
func ObjectURL(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseObjectURL splits an s3://bucket/key URL.
func ParseObjectURL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: object url %q must start with s3://", ErrInvalidInput, url)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: object url %q must name a bucket and key", ErrInvalidInput, url)
	}
	return bucket, key, nil
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	// Status restricts results to one status when set.
	Status DocumentStatus

	// TenantID restricts results to one tenant when set.
	TenantID string

	// Limit caps the result count. Zero means no limit.
	Limit int
}

// Registration is the input for registering a document.
type Registration struct {
	TenantID string
	Bucket   string
	Key      string
	URL      string
	FileType string
	Checksum string
}

// Validate checks required fields.
func (r *Registration) Validate() error {
	if strings.TrimSpace(r.Bucket) == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	return nil
}
