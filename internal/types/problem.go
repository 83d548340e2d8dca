package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Problem struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        *string    `gorm:"column:code;uniqueIndex" json:"code,omitempty"`
	Name        string     `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	IsDefault   bool       `gorm:"column:is_default;not null;default:false" json:"is_default"`
	Prioritized bool       `gorm:"column:prioritized;not null;default:false;index" json:"prioritized"`
	Polarity    string     `gorm:"column:polarity;not null;default:'negative'" json:"polarity"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Problem) TableName() string { return "problem" }

// ProblemIndicatorData is one KPI observation for a problem code at a period
// (YYYYMMDD). Listing queries join only the last period per code.
type ProblemIndicatorData struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProblemCode       string         `gorm:"column:problem_code;not null;index:idx_problem_indicator_code_period,unique,priority:1" json:"problem_code"`
	Period            int            `gorm:"column:period;not null;index:idx_problem_indicator_code_period,unique,priority:2" json:"period"`
	Trend             *float64       `gorm:"column:trend" json:"trend,omitempty"`
	Performance       *float64       `gorm:"column:performance" json:"performance,omitempty"`
	RelativeFrequency *float64       `gorm:"column:relative_frequency" json:"relative_frequency,omitempty"`
	HarmPotential     *float64       `gorm:"column:harm_potential" json:"harm_potential,omitempty"`
	CriticalityLevel  *float64       `gorm:"column:criticality_level" json:"criticality_level,omitempty"`
	Demographics      datatypes.JSON `gorm:"column:demographics" json:"demographics,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ProblemIndicatorData) TableName() string { return "problem_indicator_data" }
