package filtering

import (
	"time"

	"sieve/pkg/filter"
)

// SavedFilter is a named filter definition kept in postgres. Stream filters
// that are enabled are applied to every envelope on the input topic.
type SavedFilter struct {
	ID          string            `json:"id" db:"id"`
	Name        string            `json:"name" db:"name"`
	Description string            `json:"description" db:"description"`
	Definition  filter.Definition `json:"definition" db:"definition"`
	Strict      bool              `json:"strict" db:"strict"`
	Stream      bool              `json:"stream" db:"stream"`
	Enabled     bool              `json:"enabled" db:"enabled"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

type CreateFilterRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Definition  filter.Definition `json:"definition"`
	Strict      *bool             `json:"strict"`
	Stream      *bool             `json:"stream"`
	Enabled     *bool             `json:"enabled"`
}

type UpdateFilterRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Definition  *filter.Definition `json:"definition"`
	Strict      *bool              `json:"strict"`
	Stream      *bool              `json:"stream"`
	Enabled     *bool              `json:"enabled"`
}

// EvaluateRequest is the body of an ad-hoc evaluation. Strict and
// IgnoreMissingFields fall back to the filtering config when omitted.
type EvaluateRequest struct {
	Messages            []filter.Message  `json:"messages" binding:"required"`
	Filter              filter.Definition `json:"filter"`
	Strict              *bool             `json:"strict"`
	IgnoreMissingFields *bool             `json:"ignore_missing_fields"`
}

// ApplyRequest evaluates a saved filter. Strict defaults to the saved
// filter's own setting.
type ApplyRequest struct {
	Messages            []filter.Message `json:"messages" binding:"required"`
	Strict              *bool            `json:"strict"`
	IgnoreMissingFields *bool            `json:"ignore_missing_fields"`
}

type EvaluateResponse struct {
	Messages []filter.Message `json:"messages"`
	Matched  int              `json:"matched"`
	Total    int              `json:"total"`
}

type ListFiltersResponse struct {
	Filters []SavedFilter `json:"filters"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// Decision is the outcome of running the active stream filters over one
// envelope.
type Decision struct {
	Passed    bool
	FilterIDs []string
	// Fallback is set when a failing filter was skipped under the allow policy.
	Fallback bool
}
