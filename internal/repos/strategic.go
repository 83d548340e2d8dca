package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

// StrategicRepo covers the macro-objective/focus taxonomy and the plan-scoped
// goal and custom-indicator rows hanging off it.
type StrategicRepo interface {
	MacroObjectives(ctx context.Context, tx *gorm.DB) ([]types.MacroObjective, error)
	MacroObjectiveExists(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	ProblemLinks(ctx context.Context, tx *gorm.DB) ([]types.MacroObjectiveProblemLink, error)
	ProblemLinksByMacroObjective(ctx context.Context, tx *gorm.DB, macroObjectiveID uint) ([]types.MacroObjectiveProblemLink, error)

	Focuses(ctx context.Context, tx *gorm.DB) ([]types.Focus, error)
	FocusByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Focus, error)
	FocusIndicatorLinks(ctx context.Context, tx *gorm.DB) ([]types.FocusCauseIndicatorLink, error)
	FocusIndicatorLinksByFocus(ctx context.Context, tx *gorm.DB, focusID uint) ([]types.FocusCauseIndicatorLink, error)

	MacroObjectiveGoals(ctx context.Context, tx *gorm.DB, planID uint) ([]types.MacroObjectiveGoal, error)
	UpsertMacroObjectiveGoal(ctx context.Context, tx *gorm.DB, goal *types.MacroObjectiveGoal) error
	CountMacroObjectiveGoals(ctx context.Context, tx *gorm.DB, planID uint) (int64, error)

	FocusGoals(ctx context.Context, tx *gorm.DB, planID uint) ([]types.FocusGoal, error)
	UpsertFocusGoal(ctx context.Context, tx *gorm.DB, goal *types.FocusGoal) error
	CountFocusGoals(ctx context.Context, tx *gorm.DB, planID uint) (int64, error)

	MacroObjectiveCustomIndicators(ctx context.Context, tx *gorm.DB, planID uint) ([]types.MacroObjectiveCustomIndicator, error)
	ReplaceMacroObjectiveCustomIndicators(ctx context.Context, tx *gorm.DB, planID, macroObjectiveID uint, rows []types.MacroObjectiveCustomIndicator) error
	FocusCustomIndicators(ctx context.Context, tx *gorm.DB, planID uint) ([]types.FocusCustomIndicator, error)
	ReplaceFocusCustomIndicators(ctx context.Context, tx *gorm.DB, planID, focusID uint, rows []types.FocusCustomIndicator) error

	UpsertMacroObjectives(ctx context.Context, tx *gorm.DB, rows []types.MacroObjective) error
	UpsertFocuses(ctx context.Context, tx *gorm.DB, rows []types.Focus) error
	CreateProblemLinks(ctx context.Context, tx *gorm.DB, rows []types.MacroObjectiveProblemLink) error
	CreateFocusIndicatorLinks(ctx context.Context, tx *gorm.DB, rows []types.FocusCauseIndicatorLink) error
}

type strategicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStrategicRepo(db *gorm.DB, baseLog *logger.Logger) StrategicRepo {
	return &strategicRepo{db: db, log: baseLog.With("repo", "StrategicRepo")}
}

func (r *strategicRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *strategicRepo) MacroObjectives(ctx context.Context, tx *gorm.DB) ([]types.MacroObjective, error) {
	var rows []types.MacroObjective
	if err := r.conn(tx).WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) MacroObjectiveExists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.MacroObjective{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *strategicRepo) ProblemLinks(ctx context.Context, tx *gorm.DB) ([]types.MacroObjectiveProblemLink, error) {
	var rows []types.MacroObjectiveProblemLink
	if err := r.conn(tx).WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) ProblemLinksByMacroObjective(ctx context.Context, tx *gorm.DB, macroObjectiveID uint) ([]types.MacroObjectiveProblemLink, error) {
	var rows []types.MacroObjectiveProblemLink
	if err := r.conn(tx).WithContext(ctx).
		Where("macro_objective_id = ?", macroObjectiveID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) Focuses(ctx context.Context, tx *gorm.DB) ([]types.Focus, error) {
	var rows []types.Focus
	if err := r.conn(tx).WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) FocusByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Focus, error) {
	var row types.Focus
	if err := r.conn(tx).WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *strategicRepo) FocusIndicatorLinks(ctx context.Context, tx *gorm.DB) ([]types.FocusCauseIndicatorLink, error) {
	var rows []types.FocusCauseIndicatorLink
	if err := r.conn(tx).WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) FocusIndicatorLinksByFocus(ctx context.Context, tx *gorm.DB, focusID uint) ([]types.FocusCauseIndicatorLink, error) {
	var rows []types.FocusCauseIndicatorLink
	if err := r.conn(tx).WithContext(ctx).
		Where("focus_id = ?", focusID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) MacroObjectiveGoals(ctx context.Context, tx *gorm.DB, planID uint) ([]types.MacroObjectiveGoal, error) {
	var rows []types.MacroObjectiveGoal
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) UpsertMacroObjectiveGoal(ctx context.Context, tx *gorm.DB, goal *types.MacroObjectiveGoal) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "problem_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_value", "justification", "due_date", "updated_at"}),
		}).
		Create(goal).Error
}

func (r *strategicRepo) CountMacroObjectiveGoals(ctx context.Context, tx *gorm.DB, planID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.MacroObjectiveGoal{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}

func (r *strategicRepo) FocusGoals(ctx context.Context, tx *gorm.DB, planID uint) ([]types.FocusGoal, error) {
	var rows []types.FocusGoal
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) UpsertFocusGoal(ctx context.Context, tx *gorm.DB, goal *types.FocusGoal) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "cause_indicator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_value", "justification", "due_date", "updated_at"}),
		}).
		Create(goal).Error
}

func (r *strategicRepo) CountFocusGoals(ctx context.Context, tx *gorm.DB, planID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.FocusGoal{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}

func (r *strategicRepo) MacroObjectiveCustomIndicators(ctx context.Context, tx *gorm.DB, planID uint) ([]types.MacroObjectiveCustomIndicator, error) {
	var rows []types.MacroObjectiveCustomIndicator
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) ReplaceMacroObjectiveCustomIndicators(ctx context.Context, tx *gorm.DB, planID, macroObjectiveID uint, rows []types.MacroObjectiveCustomIndicator) error {
	conn := r.conn(tx).WithContext(ctx)
	if err := conn.
		Where("plan_id = ? AND macro_objective_id = ?", planID, macroObjectiveID).
		Delete(&types.MacroObjectiveCustomIndicator{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return conn.Create(&rows).Error
}

func (r *strategicRepo) FocusCustomIndicators(ctx context.Context, tx *gorm.DB, planID uint) ([]types.FocusCustomIndicator, error) {
	var rows []types.FocusCustomIndicator
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategicRepo) ReplaceFocusCustomIndicators(ctx context.Context, tx *gorm.DB, planID, focusID uint, rows []types.FocusCustomIndicator) error {
	conn := r.conn(tx).WithContext(ctx)
	if err := conn.
		Where("plan_id = ? AND focus_id = ?", planID, focusID).
		Delete(&types.FocusCustomIndicator{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return conn.Create(&rows).Error
}

func (r *strategicRepo) UpsertMacroObjectives(ctx context.Context, tx *gorm.DB, rows []types.MacroObjective) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *strategicRepo) UpsertFocuses(ctx context.Context, tx *gorm.DB, rows []types.Focus) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *strategicRepo) CreateProblemLinks(ctx context.Context, tx *gorm.DB, rows []types.MacroObjectiveProblemLink) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *strategicRepo) CreateFocusIndicatorLinks(ctx context.Context, tx *gorm.DB, rows []types.FocusCauseIndicatorLink) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}
