package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Cause is a tagged union: Kind selects which payload columns are
// meaningful. Default causes carry a seed code; custom causes carry
// user-authored evidences, references and annexes.
type Cause struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind        string `gorm:"column:kind;not null;index" json:"kind"`
	Name        string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description"`

	// default payload
	Code *string `gorm:"column:code;uniqueIndex" json:"code,omitempty"`

	// custom payload
	Evidences  datatypes.JSONSlice[string] `gorm:"column:evidences" json:"evidences,omitempty"`
	References datatypes.JSONSlice[string] `gorm:"column:references_" json:"references,omitempty"`
	CreatedBy  *uuid.UUID                  `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	Annexes    []CauseAnnex                `gorm:"foreignKey:CauseID" json:"annexes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Cause) TableName() string { return "cause" }

func (c *Cause) IsDefault() bool { return c.Kind == CauseKindDefault }

type CauseAnnex struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CauseID    uint      `gorm:"column:cause_id;not null;index" json:"cause_id"`
	Filename   string    `gorm:"column:filename;not null" json:"filename"`
	StorageKey string    `gorm:"column:storage_key;uniqueIndex;not null" json:"storage_key"`
	SizeBytes  int64     `gorm:"column:size_bytes" json:"size_bytes"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CauseAnnex) TableName() string { return "cause_annex" }

// CauseProblemLink relates a cause to a problem. Prioritization lives on the
// pairing, not on the cause.
type CauseProblemLink struct {
	CauseID     uint      `gorm:"column:cause_id;primaryKey" json:"cause_id"`
	ProblemID   uint      `gorm:"column:problem_id;primaryKey" json:"problem_id"`
	Prioritized bool      `gorm:"column:prioritized;not null;default:false;index" json:"prioritized"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CauseProblemLink) TableName() string { return "cause_problem_link" }

type CauseIndicator struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"column:code;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CauseID   uint      `gorm:"column:cause_id;not null;index" json:"cause_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CauseIndicator) TableName() string { return "cause_indicator" }

type CauseIndicatorData struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	IndicatorCode string         `gorm:"column:indicator_code;not null;index:idx_cause_indicator_code_period,unique,priority:1" json:"indicator_code"`
	Period        int            `gorm:"column:period;not null;index:idx_cause_indicator_code_period,unique,priority:2" json:"period"`
	Value         *float64       `gorm:"column:value" json:"value,omitempty"`
	Demographics  datatypes.JSON `gorm:"column:demographics" json:"demographics,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CauseIndicatorData) TableName() string { return "cause_indicator_data" }
