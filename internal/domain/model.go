package domain

import "time"

// BaseModel is the common base struct for all domain models.
// The deletion marker is a plain nullable timestamp rather than gorm's soft
// delete type: visibility of deleted rows is decided by the docstore layer.
type BaseModel struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty" doc:"private"`
	Revision  uint       `gorm:"not null;default:0" json:"revision"`
}

// PopulateOption names one relation to expand and, optionally, the fields
// of the related document to load.
type PopulateOption struct {
	Path   string   `json:"path"`
	Fields []string `json:"fields,omitempty"`
}

// QueryOptions is the per-call configuration for list, read and delete
// operations. It is never persisted.
type QueryOptions struct {
	Page        int
	Limit       int
	SortBy      string
	Select      string
	Populate    []PopulateOption
	Depth       int
	WithDeleted bool
	Force       bool
}

// PageMetadata describes the window returned by a paginated query.
type PageMetadata struct {
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	TotalPages      int   `json:"total_pages"`
	TotalResults    int64 `json:"total_results"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
}

// PaginatedResult is the single output shape for every list query.
type PaginatedResult[T any] struct {
	Results  []T          `json:"results"`
	Metadata PageMetadata `json:"metadata"`
}
