package types

import "time"

type ProblemDiagnosis struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID    uint      `gorm:"column:plan_id;not null;index:idx_problem_diag_plan_problem,unique,priority:1" json:"plan_id"`
	ProblemID uint      `gorm:"column:problem_id;not null;index:idx_problem_diag_plan_problem,unique,priority:2" json:"problem_id"`
	Content   string    `gorm:"column:content;type:text" json:"content"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ProblemDiagnosis) TableName() string { return "problem_diagnosis" }

type CauseIndicatorDiagnosis struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID           uint      `gorm:"column:plan_id;not null;index:idx_cause_diag_scope,unique,priority:1" json:"plan_id"`
	CauseID          uint      `gorm:"column:cause_id;not null;index:idx_cause_diag_scope,unique,priority:2" json:"cause_id"`
	CauseIndicatorID uint      `gorm:"column:cause_indicator_id;not null;index:idx_cause_diag_scope,unique,priority:3" json:"cause_indicator_id"`
	Content          string    `gorm:"column:content;type:text" json:"content"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CauseIndicatorDiagnosis) TableName() string { return "cause_indicator_diagnosis" }
