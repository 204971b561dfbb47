package models

import "time"

// Workstream is a named cluster of achievements sharing a semantic theme.
// Its centroid is not stored; clustering recomputes it from the members'
// embeddings whenever it is needed.
type Workstream struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}
