package httpapi

import (
	"time"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// registerRequest is the body of POST /documents.
type registerRequest struct {
	TenantID string `json:"tenant_id"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	URL      string `json:"url"`
	FileType string `json:"file_type"`
	Checksum string `json:"checksum"`
}

func (r registerRequest) registration() domain.Registration {
	return domain.Registration{
		TenantID: r.TenantID,
		Bucket:   r.Bucket,
		Key:      r.Key,
		URL:      r.URL,
		FileType: r.FileType,
		Checksum: r.Checksum,
	}
}

type documentResponse struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id,omitempty"`
	Bucket          string    `json:"bucket"`
	Key             string    `json:"key"`
	URL             string    `json:"url"`
	FileType        string    `json:"file_type"`
	Checksum        string    `json:"checksum,omitempty"`
	PendingChecksum string    `json:"pending_checksum,omitempty"`
	Status          string    `json:"status"`
	LastError       string    `json:"last_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toDocument(d *domain.Document) documentResponse {
	return documentResponse{
		ID:              d.ID,
		TenantID:        d.TenantID,
		Bucket:          d.Bucket,
		Key:             d.Key,
		URL:             d.URL,
		FileType:        d.FileType.String(),
		Checksum:        d.Checksum,
		PendingChecksum: d.PendingChecksum,
		Status:          d.Status.String(),
		LastError:       d.LastError,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type jobResponse struct {
	ID             string     `json:"id"`
	Stage          string     `json:"stage"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	Error          string     `json:"error,omitempty"`
	WorkerID       string     `json:"worker_id,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	NotBefore      *time.Time `json:"not_before,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toJob(j *domain.Job) jobResponse {
	return jobResponse{
		ID:             j.ID,
		Stage:          j.Stage.String(),
		Status:         string(j.Status),
		Attempts:       j.Attempts,
		Error:          j.Error,
		WorkerID:       j.WorkerID,
		LeaseExpiresAt: optionalTime(j.LeaseExpiresAt),
		NotBefore:      optionalTime(j.NotBefore),
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

type artifactResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type reportResponse struct {
	Document     documentResponse   `json:"document"`
	CurrentStage string             `json:"current_stage,omitempty"`
	Jobs         []jobResponse      `json:"jobs"`
	Artifacts    []artifactResponse `json:"artifacts"`
	ChunkCount   int                `json:"chunk_count"`
}

func toReport(r *domain.DocumentReport) reportResponse {
	out := reportResponse{
		Document:   toDocument(&r.Document),
		Jobs:       make([]jobResponse, len(r.Jobs)),
		Artifacts:  make([]artifactResponse, len(r.Artifacts)),
		ChunkCount: r.ChunkCount,
	}
	for i := range r.Jobs {
		out.Jobs[i] = toJob(&r.Jobs[i])
	}
	for i, a := range r.Artifacts {
		out.Artifacts[i] = artifactResponse{ID: a.ID, Type: a.Type.String(), URL: a.URL, CreatedAt: a.CreatedAt}
	}
	if job, ok := r.CurrentStage(); ok {
		out.CurrentStage = job.Stage.String()
	}
	return out
}

type jobCountResponse struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
