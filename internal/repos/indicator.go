package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

type CauseIndicatorRepo interface {
	ListByCauseID(ctx context.Context, tx *gorm.DB, causeID uint) ([]types.CauseIndicator, error)
	ListByCauseIDs(ctx context.Context, tx *gorm.DB, causeIDs []uint) ([]types.CauseIndicator, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.CauseIndicator, error)
	DataSeries(ctx context.Context, tx *gorm.DB, indicatorCode string) ([]types.CauseIndicatorData, error)
	LastPeriodData(ctx context.Context, tx *gorm.DB, indicatorCode string) (*types.CauseIndicatorData, error)
}

type causeIndicatorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCauseIndicatorRepo(db *gorm.DB, baseLog *logger.Logger) CauseIndicatorRepo {
	return &causeIndicatorRepo{db: db, log: baseLog.With("repo", "CauseIndicatorRepo")}
}

func (r *causeIndicatorRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *causeIndicatorRepo) ListByCauseID(ctx context.Context, tx *gorm.DB, causeID uint) ([]types.CauseIndicator, error) {
	return r.ListByCauseIDs(ctx, tx, []uint{causeID})
}

func (r *causeIndicatorRepo) ListByCauseIDs(ctx context.Context, tx *gorm.DB, causeIDs []uint) ([]types.CauseIndicator, error) {
	var rows []types.CauseIndicator
	if len(causeIDs) == 0 {
		return rows, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("cause_id IN ?", causeIDs).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *causeIndicatorRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.CauseIndicator, error) {
	var rows []types.CauseIndicator
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *causeIndicatorRepo) DataSeries(ctx context.Context, tx *gorm.DB, indicatorCode string) ([]types.CauseIndicatorData, error) {
	var rows []types.CauseIndicatorData
	if err := r.conn(tx).WithContext(ctx).
		Where("indicator_code = ?", indicatorCode).
		Order("period ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *causeIndicatorRepo) LastPeriodData(ctx context.Context, tx *gorm.DB, indicatorCode string) (*types.CauseIndicatorData, error) {
	var row types.CauseIndicatorData
	if err := r.conn(tx).WithContext(ctx).
		Where("indicator_code = ?", indicatorCode).
		Order("period DESC").
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
