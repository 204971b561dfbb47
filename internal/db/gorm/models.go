package gorm

import (
	"database/sql"
	"time"

	pgvec "github.com/pgvector/pgvector-go"

	"github.com/lanefield/brag/pkg/models"
)

// GORM row types. Domain types live in pkg/models; the stores convert.

// UserRow holds an account and its API token.
type UserRow struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Name      string    `gorm:"type:text;not null"`
	APIToken  string    `gorm:"column:api_token;type:text;uniqueIndex:idx_users_token;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserRow) TableName() string { return "users" }

// CompanyRow is an employer owned by a user.
type CompanyRow struct {
	ID        string    `gorm:"primaryKey;type:text"`
	UserID    string    `gorm:"type:text;not null;index:idx_companies_user"`
	Name      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (CompanyRow) TableName() string { return "companies" }

// ProjectRow is a named initiative achievements can reference.
type ProjectRow struct {
	ID        string         `gorm:"primaryKey;type:text"`
	UserID    string         `gorm:"type:text;not null;index:idx_projects_user"`
	CompanyID sql.NullString `gorm:"type:text"`
	Name      string         `gorm:"type:text;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (ProjectRow) TableName() string { return "projects" }

// WorkstreamRow is a persisted workstream. No centroid column: the summary
// vector is recomputed from members at clustering time.
type WorkstreamRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"type:text;not null;index:idx_workstreams_user"`
	Name      string    `gorm:"type:text;not null"`
	Color     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (WorkstreamRow) TableName() string { return "workstreams" }

// AchievementRow is a dated accomplishment record. Embedding is null until
// the provider has produced a vector; workstream_id is null while the
// achievement is unassigned.
type AchievementRow struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	UserID       string         `gorm:"type:text;not null;index:idx_achievements_user;index:idx_achievements_user_occurred,priority:1"`
	Title        string         `gorm:"type:text;not null"`
	Body         string         `gorm:"type:text"`
	OccurredAt   time.Time      `gorm:"type:timestamptz;not null;index:idx_achievements_user_occurred,priority:2,sort:desc"`
	ProjectID    sql.NullString `gorm:"type:text;index:idx_achievements_project"`
	CompanyID    sql.NullString `gorm:"type:text"`
	WorkstreamID sql.NullInt64  `gorm:"index:idx_achievements_workstream"`
	Embedding    *pgvec.Vector  `gorm:"type:vector(1536)"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

func (AchievementRow) TableName() string { return "achievements" }

func (r *AchievementRow) toModel() *models.Achievement {
	a := &models.Achievement{
		ID:         r.ID,
		UserID:     r.UserID,
		Title:      r.Title,
		Body:       r.Body,
		OccurredAt: r.OccurredAt,
		ProjectID:  r.ProjectID.String,
		CompanyID:  r.CompanyID.String,
		CreatedAt:  r.CreatedAt,
	}
	if r.WorkstreamID.Valid {
		a.WorkstreamID = r.WorkstreamID.Int64
	}
	if r.Embedding != nil {
		a.Embedding = r.Embedding.Slice()
	}
	return a
}

// ClusteringRunRow is the per-user metadata of the last full clustering run.
type ClusteringRunRow struct {
	UserID           string                 `gorm:"primaryKey;type:text"`
	LastRunAt        time.Time              `gorm:"type:timestamptz;not null"`
	AchievementCount int64                  `gorm:"not null"`
	FilteredCount    sql.NullInt64
	FilterStart      sql.NullTime           `gorm:"type:timestamptz"`
	FilterEnd        sql.NullTime           `gorm:"type:timestamptz"`
	FilterProjectIDs models.JSONStringArray `gorm:"type:jsonb"`
	UpdatedAt        time.Time              `gorm:"autoUpdateTime"`
}

func (ClusteringRunRow) TableName() string { return "clustering_runs" }

func (r *ClusteringRunRow) toModel() *models.ClusteringRun {
	run := &models.ClusteringRun{
		UserID:           r.UserID,
		LastRunAt:        r.LastRunAt,
		AchievementCount: r.AchievementCount,
	}
	if r.FilteredCount.Valid {
		v := r.FilteredCount.Int64
		run.FilteredCount = &v
	}
	if r.FilterStart.Valid || len(r.FilterProjectIDs) > 0 {
		f := &models.Filter{ProjectIDs: []string(r.FilterProjectIDs)}
		if r.FilterStart.Valid && r.FilterEnd.Valid {
			f.TimeRange = &models.TimeRange{StartDate: r.FilterStart.Time, EndDate: r.FilterEnd.Time}
		}
		run.Filter = f
	}
	return run
}

// UserBudgetRow is a user's remaining metered allowance.
type UserBudgetRow struct {
	UserID    string    `gorm:"primaryKey;type:text"`
	Remaining int64     `gorm:"not null;default:0"`
	Unlimited bool      `gorm:"not null;default:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserBudgetRow) TableName() string { return "user_budgets" }

// UsageEntryRow is an immutable debit record.
type UsageEntryRow struct {
	ID        string    `gorm:"primaryKey;type:text"`
	UserID    string    `gorm:"type:text;not null;index:idx_usage_user"`
	Amount    int64     `gorm:"not null"`
	Reason    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UsageEntryRow) TableName() string { return "usage_entries" }
