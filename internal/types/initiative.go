package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Initiative struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description     string `gorm:"column:description;type:text" json:"description"`
	IsDefault       bool   `gorm:"column:is_default;not null;default:false;index" json:"is_default"`
	CostLevel       *int   `gorm:"column:cost_level" json:"cost_level,omitempty"`
	EfficiencyLevel *int   `gorm:"column:efficiency_level" json:"efficiency_level,omitempty"`

	Evidences  datatypes.JSONSlice[string] `gorm:"column:evidences" json:"evidences,omitempty"`
	References datatypes.JSONSlice[string] `gorm:"column:references_" json:"references,omitempty"`
	CreatedBy  *uuid.UUID                  `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	Annexes    []InitiativeAnnex           `gorm:"foreignKey:InitiativeID" json:"annexes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Initiative) TableName() string { return "initiative" }

type InitiativeAnnex struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	InitiativeID uint      `gorm:"column:initiative_id;not null;index" json:"initiative_id"`
	Filename     string    `gorm:"column:filename;not null" json:"filename"`
	StorageKey   string    `gorm:"column:storage_key;uniqueIndex;not null" json:"storage_key"`
	SizeBytes    int64     `gorm:"column:size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (InitiativeAnnex) TableName() string { return "initiative_annex" }

// InitiativeCauseLink relates a custom initiative to a cause; its problems
// are resolved through cause_problem_link at query time.
type InitiativeCauseLink struct {
	InitiativeID uint      `gorm:"column:initiative_id;primaryKey" json:"initiative_id"`
	CauseID      uint      `gorm:"column:cause_id;primaryKey" json:"cause_id"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (InitiativeCauseLink) TableName() string { return "initiative_cause_link" }

// InitiativeCauseProblemLink is the pre-denormalized triple used for default
// initiatives, seeded from the reference data.
type InitiativeCauseProblemLink struct {
	InitiativeID uint      `gorm:"column:initiative_id;primaryKey" json:"initiative_id"`
	CauseID      uint      `gorm:"column:cause_id;primaryKey" json:"cause_id"`
	ProblemID    uint      `gorm:"column:problem_id;primaryKey" json:"problem_id"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (InitiativeCauseProblemLink) TableName() string { return "initiative_cause_problem_link" }

// InitiativePrioritization records which (initiative, cause, problem) triples
// are selected for the current cycle. Row presence is the flag.
type InitiativePrioritization struct {
	InitiativeID uint      `gorm:"column:initiative_id;primaryKey" json:"initiative_id"`
	CauseID      uint      `gorm:"column:cause_id;primaryKey" json:"cause_id"`
	ProblemID    uint      `gorm:"column:problem_id;primaryKey" json:"problem_id"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (InitiativePrioritization) TableName() string { return "initiative_prioritization" }

type InitiativeOutcome struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;uniqueIndex;not null" json:"name"`
}

func (InitiativeOutcome) TableName() string { return "initiative_outcome" }

type InitiativeOutcomeLink struct {
	InitiativeID uint `gorm:"column:initiative_id;primaryKey" json:"initiative_id"`
	OutcomeID    uint `gorm:"column:outcome_id;primaryKey" json:"outcome_id"`
}

func (InitiativeOutcomeLink) TableName() string { return "initiative_outcome_link" }
