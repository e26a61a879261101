package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStageVersion is assigned to stages registered without a version,
// matching the version the verifier assumes for undeclared ones.
const DefaultStageVersion = "1.0.0"

// Stage is a registry entry that jobs may reference from their sequence
// without declaring it under stages.
type Stage struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Steps       json.RawMessage `json:"steps"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// String describes a stage as name@version.
func (st *Stage) String() string {
	return fmt.Sprintf("%s@%s", st.Name, st.Version)
}

// StageFilter narrows ListStages.
type StageFilter struct {
	Name  string
	Limit int
}
