package types

import "time"

// MacroObjective is a taxonomy node grouping problems; Focus nodes group
// cause indicators under a macro-objective. Both are seeded reference data.
// Goals and custom indicators hang off them scoped to a plan.
type MacroObjective struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;uniqueIndex;not null" json:"name"`
}

func (MacroObjective) TableName() string { return "macro_objective" }

type MacroObjectiveProblemLink struct {
	MacroObjectiveID uint `gorm:"column:macro_objective_id;primaryKey" json:"macro_objective_id"`
	ProblemID        uint `gorm:"column:problem_id;primaryKey" json:"problem_id"`
}

func (MacroObjectiveProblemLink) TableName() string { return "macro_objective_problem_link" }

type MacroObjectiveGoal struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID        uint       `gorm:"column:plan_id;not null;index:idx_mo_goal_plan_problem,unique,priority:1" json:"plan_id"`
	ProblemID     uint       `gorm:"column:problem_id;not null;index:idx_mo_goal_plan_problem,unique,priority:2" json:"problem_id"`
	TargetValue   *float64   `gorm:"column:target_value" json:"target_value,omitempty"`
	Justification string     `gorm:"column:justification;type:text" json:"justification"`
	DueDate       *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MacroObjectiveGoal) TableName() string { return "macro_objective_goal" }

type MacroObjectiveCustomIndicator struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID           uint      `gorm:"column:plan_id;not null;index" json:"plan_id"`
	MacroObjectiveID uint      `gorm:"column:macro_objective_id;not null;index" json:"macro_objective_id"`
	Name             string    `gorm:"column:name;not null" json:"name"`
	TargetValue      *float64  `gorm:"column:target_value" json:"target_value,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MacroObjectiveCustomIndicator) TableName() string { return "macro_objective_custom_indicator" }

type Focus struct {
	ID               uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string `gorm:"column:name;not null" json:"name"`
	MacroObjectiveID uint   `gorm:"column:macro_objective_id;not null;index" json:"macro_objective_id"`
}

func (Focus) TableName() string { return "focus" }

type FocusCauseIndicatorLink struct {
	FocusID          uint `gorm:"column:focus_id;primaryKey" json:"focus_id"`
	CauseIndicatorID uint `gorm:"column:cause_indicator_id;primaryKey" json:"cause_indicator_id"`
}

func (FocusCauseIndicatorLink) TableName() string { return "focus_cause_indicator_link" }

type FocusGoal struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID           uint       `gorm:"column:plan_id;not null;index:idx_focus_goal_plan_indicator,unique,priority:1" json:"plan_id"`
	CauseIndicatorID uint       `gorm:"column:cause_indicator_id;not null;index:idx_focus_goal_plan_indicator,unique,priority:2" json:"cause_indicator_id"`
	TargetValue      *float64   `gorm:"column:target_value" json:"target_value,omitempty"`
	Justification    string     `gorm:"column:justification;type:text" json:"justification"`
	DueDate          *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (FocusGoal) TableName() string { return "focus_goal" }

type FocusCustomIndicator struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID      uint      `gorm:"column:plan_id;not null;index" json:"plan_id"`
	FocusID     uint      `gorm:"column:focus_id;not null;index" json:"focus_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	TargetValue *float64  `gorm:"column:target_value" json:"target_value,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (FocusCustomIndicator) TableName() string { return "focus_custom_indicator" }
