package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

type DiagnosisRepo interface {
	ProblemDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) ([]types.ProblemDiagnosis, error)
	UpsertProblemDiagnosis(ctx context.Context, tx *gorm.DB, row *types.ProblemDiagnosis) error
	CountProblemDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) (int64, error)

	CauseDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) ([]types.CauseIndicatorDiagnosis, error)
	CauseDiagnosesByCause(ctx context.Context, tx *gorm.DB, planID, causeID uint) ([]types.CauseIndicatorDiagnosis, error)
	UpsertCauseDiagnosis(ctx context.Context, tx *gorm.DB, row *types.CauseIndicatorDiagnosis) error
	CountCauseDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) (int64, error)
}

type diagnosisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiagnosisRepo(db *gorm.DB, baseLog *logger.Logger) DiagnosisRepo {
	return &diagnosisRepo{db: db, log: baseLog.With("repo", "DiagnosisRepo")}
}

func (r *diagnosisRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *diagnosisRepo) ProblemDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) ([]types.ProblemDiagnosis, error) {
	var rows []types.ProblemDiagnosis
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *diagnosisRepo) UpsertProblemDiagnosis(ctx context.Context, tx *gorm.DB, row *types.ProblemDiagnosis) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "problem_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
		}).
		Create(row).Error
}

func (r *diagnosisRepo) CountProblemDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ProblemDiagnosis{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}

func (r *diagnosisRepo) CauseDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) ([]types.CauseIndicatorDiagnosis, error) {
	var rows []types.CauseIndicatorDiagnosis
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *diagnosisRepo) CauseDiagnosesByCause(ctx context.Context, tx *gorm.DB, planID, causeID uint) ([]types.CauseIndicatorDiagnosis, error) {
	var rows []types.CauseIndicatorDiagnosis
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ? AND cause_id = ?", planID, causeID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *diagnosisRepo) UpsertCauseDiagnosis(ctx context.Context, tx *gorm.DB, row *types.CauseIndicatorDiagnosis) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "cause_id"}, {Name: "cause_indicator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
		}).
		Create(row).Error
}

func (r *diagnosisRepo) CountCauseDiagnoses(ctx context.Context, tx *gorm.DB, planID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.CauseIndicatorDiagnosis{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}
