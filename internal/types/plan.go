package types

import "time"

// Plan is the strategic planning cycle. The current plan is always the row
// with the highest id; older rows are kept as history.
type Plan struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string     `gorm:"column:title;not null" json:"title"`
	StartDate *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`

	BasicInfoUpdatedAt *time.Time `gorm:"column:basic_info_updated_at" json:"basic_info_updated_at,omitempty"`
	DiagnosisUpdatedAt *time.Time `gorm:"column:diagnosis_updated_at" json:"diagnosis_updated_at,omitempty"`
	TacticalUpdatedAt  *time.Time `gorm:"column:tactical_updated_at" json:"tactical_updated_at,omitempty"`
	StrategicUpdatedAt *time.Time `gorm:"column:strategic_updated_at" json:"strategic_updated_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Plan) TableName() string { return "plan" }
