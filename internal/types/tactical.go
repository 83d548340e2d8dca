package types

import (
	"time"

	"gorm.io/datatypes"
)

// TacticalDimension holds execution detail for a prioritized initiative
// within a plan. Child goals and department roles are replaced wholesale on
// update.
type TacticalDimension struct {
	ID           uint `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID       uint `gorm:"column:plan_id;not null;index:idx_tactical_plan_initiative,unique,priority:1" json:"plan_id"`
	InitiativeID uint `gorm:"column:initiative_id;not null;index:idx_tactical_plan_initiative,unique,priority:2" json:"initiative_id"`

	Diagnosis       string                      `gorm:"column:diagnosis;type:text" json:"diagnosis"`
	NeighborhoodIDs datatypes.JSONSlice[uint]   `gorm:"column:neighborhood_ids" json:"neighborhood_ids,omitempty"`
	TargetGroups    datatypes.JSONSlice[string] `gorm:"column:target_groups" json:"target_groups,omitempty"`
	StartDate       *time.Time                  `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate         *time.Time                  `gorm:"column:end_date" json:"end_date,omitempty"`
	Cost            *float64                    `gorm:"column:cost" json:"cost,omitempty"`

	Goals           []TacticalGoal           `gorm:"foreignKey:TacticalDimensionID" json:"goals,omitempty"`
	DepartmentRoles []TacticalDepartmentRole `gorm:"foreignKey:TacticalDimensionID" json:"department_roles,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TacticalDimension) TableName() string { return "tactical_dimension" }

type TacticalGoal struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TacticalDimensionID uint       `gorm:"column:tactical_dimension_id;not null;index" json:"tactical_dimension_id"`
	Description         string     `gorm:"column:description;type:text;not null" json:"description"`
	TargetValue         *float64   `gorm:"column:target_value" json:"target_value,omitempty"`
	DueDate             *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
}

func (TacticalGoal) TableName() string { return "tactical_goal" }

type TacticalDepartmentRole struct {
	ID                  uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	TacticalDimensionID uint   `gorm:"column:tactical_dimension_id;not null;index" json:"tactical_dimension_id"`
	DepartmentID        uint   `gorm:"column:department_id;not null" json:"department_id"`
	Role                string `gorm:"column:role;type:text" json:"role"`
}

func (TacticalDepartmentRole) TableName() string { return "tactical_department_role" }
