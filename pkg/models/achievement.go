// Package models contains the shared domain types for brag.
package models

import (
	"strings"
	"time"
)

// Achievement is a single dated accomplishment record belonging to a user.
// Embedding is nil until the embedding provider has produced a vector for it.
// WorkstreamID is 0 while the achievement is unassigned.
type Achievement struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	ProjectID    string    `json:"project_id,omitempty"`
	CompanyID    string    `json:"company_id,omitempty"`
	WorkstreamID int64     `json:"workstream_id,omitempty"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasEmbedding reports whether a semantic vector has been computed.
func (a *Achievement) HasEmbedding() bool {
	return len(a.Embedding) > 0
}

// IsAssigned reports whether the achievement is linked to a workstream.
func (a *Achievement) IsAssigned() bool {
	return a.WorkstreamID != 0
}

// EmbeddingText is the text sent to the embedding provider.
func (a *Achievement) EmbeddingText() string {
	if a.Body == "" {
		return a.Title
	}
	return a.Title + "\n" + strings.TrimSpace(a.Body)
}

// Project groups achievements under a named initiative owned by a user.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CompanyID string    `json:"company_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Company is an employer a project belongs to.
type Company struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User owns achievements and a usage budget. APIToken authenticates requests.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIToken  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
