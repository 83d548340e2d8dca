package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

type PlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, plan *types.Plan) (*types.Plan, error)
	// Current returns the plan with the highest id, or gorm.ErrRecordNotFound.
	Current(ctx context.Context, tx *gorm.DB) (*types.Plan, error)
	Update(ctx context.Context, tx *gorm.DB, plan *types.Plan) error
}

type planRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo {
	return &planRepo{db: db, log: baseLog.With("repo", "PlanRepo")}
}

func (r *planRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *planRepo) Create(ctx context.Context, tx *gorm.DB, plan *types.Plan) (*types.Plan, error) {
	if err := r.conn(tx).WithContext(ctx).Create(plan).Error; err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *planRepo) Current(ctx context.Context, tx *gorm.DB) (*types.Plan, error) {
	var plan types.Plan
	if err := r.conn(tx).WithContext(ctx).Order("id DESC").First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepo) Update(ctx context.Context, tx *gorm.DB, plan *types.Plan) error {
	return r.conn(tx).WithContext(ctx).Save(plan).Error
}
