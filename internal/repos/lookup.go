package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

// LookupRepo serves the small reference tables backing form dropdowns.
type LookupRepo interface {
	Departments(ctx context.Context, tx *gorm.DB) ([]types.MunicipalDepartment, error)
	DepartmentsByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.MunicipalDepartment, error)
	Neighborhoods(ctx context.Context, tx *gorm.DB) ([]types.Neighborhood, error)
	NeighborhoodsByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.Neighborhood, error)
	Outcomes(ctx context.Context, tx *gorm.DB) ([]types.InitiativeOutcome, error)
	OutcomesByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.InitiativeOutcome, error)

	UpsertDepartments(ctx context.Context, tx *gorm.DB, names []string) error
	UpsertNeighborhoods(ctx context.Context, tx *gorm.DB, names []string) error
	UpsertOutcomes(ctx context.Context, tx *gorm.DB, names []string) error
}

type lookupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLookupRepo(db *gorm.DB, baseLog *logger.Logger) LookupRepo {
	return &lookupRepo{db: db, log: baseLog.With("repo", "LookupRepo")}
}

func (r *lookupRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *lookupRepo) Departments(ctx context.Context, tx *gorm.DB) ([]types.MunicipalDepartment, error) {
	var rows []types.MunicipalDepartment
	if err := r.conn(tx).WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lookupRepo) DepartmentsByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.MunicipalDepartment, error) {
	var rows []types.MunicipalDepartment
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lookupRepo) Neighborhoods(ctx context.Context, tx *gorm.DB) ([]types.Neighborhood, error) {
	var rows []types.Neighborhood
	if err := r.conn(tx).WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lookupRepo) NeighborhoodsByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.Neighborhood, error) {
	var rows []types.Neighborhood
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lookupRepo) Outcomes(ctx context.Context, tx *gorm.DB) ([]types.InitiativeOutcome, error) {
	var rows []types.InitiativeOutcome
	if err := r.conn(tx).WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lookupRepo) OutcomesByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]types.InitiativeOutcome, error) {
	var rows []types.InitiativeOutcome
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lookupRepo) UpsertDepartments(ctx context.Context, tx *gorm.DB, names []string) error {
	rows := make([]types.MunicipalDepartment, 0, len(names))
	for _, n := range names {
		rows = append(rows, types.MunicipalDepartment{Name: n})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *lookupRepo) UpsertNeighborhoods(ctx context.Context, tx *gorm.DB, names []string) error {
	rows := make([]types.Neighborhood, 0, len(names))
	for _, n := range names {
		rows = append(rows, types.Neighborhood{Name: n})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *lookupRepo) UpsertOutcomes(ctx context.Context, tx *gorm.DB, names []string) error {
	rows := make([]types.InitiativeOutcome, 0, len(names))
	for _, n := range names {
		rows = append(rows, types.InitiativeOutcome{Name: n})
	}
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}
