package repos

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

type ProblemRepo interface {
	Create(ctx context.Context, tx *gorm.DB, problem *types.Problem) (*types.Problem, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Problem, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Problem, error)
	ListPrioritized(ctx context.Context, tx *gorm.DB) ([]types.Problem, error)
	NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uint) (bool, error)
	Update(ctx context.Context, tx *gorm.DB, problem *types.Problem) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	SetPrioritized(ctx context.Context, tx *gorm.DB, ids []uint, prioritized bool) error
	List(ctx context.Context, tx *gorm.DB, req types.PageRequest) ([]types.ProblemListItem, int64, error)
	Summary(ctx context.Context, tx *gorm.DB) (types.Summary, error)
	LastPeriodData(ctx context.Context, tx *gorm.DB, code string) (*types.ProblemIndicatorData, error)
	DataSeries(ctx context.Context, tx *gorm.DB, code string) ([]types.ProblemIndicatorData, error)
}

type problemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProblemRepo(db *gorm.DB, baseLog *logger.Logger) ProblemRepo {
	return &problemRepo{db: db, log: baseLog.With("repo", "ProblemRepo")}
}

func (r *problemRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *problemRepo) Create(ctx context.Context, tx *gorm.DB, problem *types.Problem) (*types.Problem, error) {
	if err := r.conn(tx).WithContext(ctx).Create(problem).Error; err != nil {
		return nil, err
	}
	return problem, nil
}

func (r *problemRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Problem, error) {
	var problem types.Problem
	if err := r.conn(tx).WithContext(ctx).First(&problem, id).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

func (r *problemRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Problem, error) {
	var problems []*types.Problem
	if len(ids) == 0 {
		return problems, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

func (r *problemRepo) ListPrioritized(ctx context.Context, tx *gorm.DB) ([]types.Problem, error) {
	var problems []types.Problem
	if err := r.conn(tx).WithContext(ctx).
		Where("prioritized = ?", true).
		Order("name ASC").
		Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

func (r *problemRepo) NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.conn(tx).WithContext(ctx).Model(&types.Problem{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *problemRepo) Update(ctx context.Context, tx *gorm.DB, problem *types.Problem) error {
	return r.conn(tx).WithContext(ctx).Save(problem).Error
}

func (r *problemRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.conn(tx).WithContext(ctx).Delete(&types.Problem{}, id).Error
}

func (r *problemRepo) SetPrioritized(ctx context.Context, tx *gorm.DB, ids []uint, prioritized bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Model(&types.Problem{}).
		Where("id IN ?", ids).
		Update("prioritized", prioritized).Error
}

// problemOrderFields maps API order_field values to SQL expressions. Anything
// outside the map falls back to name.
var problemOrderFields = map[string]string{
	"name":                    "p.name",
	"trend":                   "d.trend",
	"performance":             "d.performance",
	"relative_frequency":      "d.relative_frequency",
	"harm_potential":          "d.harm_potential",
	"criticality_level":       "d.criticality_level",
	"total_cause_count":       "total_cause_count",
	"prioritized_cause_count": "prioritized_cause_count",
}

// List joins each problem with its last-period KPI row and its cause counts.
func (r *problemRepo) List(ctx context.Context, tx *gorm.DB, req types.PageRequest) ([]types.ProblemListItem, int64, error) {
	req.Normalize()
	conn := r.conn(tx).WithContext(ctx)

	where := "1=1"
	var args []interface{}
	if req.Search != "" {
		where += " AND LOWER(p.name) LIKE ?"
		args = append(args, "%"+strings.ToLower(req.Search)+"%")
	}
	if req.Prioritized != nil {
		where += " AND p.prioritized = ?"
		args = append(args, *req.Prioritized)
	}

	var total int64
	if err := conn.Raw("SELECT COUNT(*) FROM problem p WHERE "+where, args...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
SELECT
  p.id, p.code, p.name, p.is_default, p.prioritized, p.polarity,
  d.trend, d.performance, d.relative_frequency, d.harm_potential, d.criticality_level,
  (d.id IS NOT NULL) AS has_data,
  COALESCE(cc.total, 0)       AS total_cause_count,
  COALESCE(cc.prioritized, 0) AS prioritized_cause_count
FROM problem p
LEFT JOIN problem_indicator_data d
  ON d.problem_code = p.code
 AND d.period = (SELECT MAX(d2.period) FROM problem_indicator_data d2 WHERE d2.problem_code = p.code)
LEFT JOIN (
  SELECT problem_id,
         COUNT(*) AS total,
         SUM(CASE WHEN prioritized THEN 1 ELSE 0 END) AS prioritized
  FROM cause_problem_link
  GROUP BY problem_id
) cc ON cc.problem_id = p.id
WHERE %s
ORDER BY %s
LIMIT ? OFFSET ?`, where, orderClause(problemOrderFields, req, "p.id"))

	var rows []types.ProblemListItem
	queryArgs := append(append([]interface{}{}, args...), req.PageSize, req.Offset())
	if err := conn.Raw(query, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *problemRepo) Summary(ctx context.Context, tx *gorm.DB) (types.Summary, error) {
	conn := r.conn(tx).WithContext(ctx)
	var out types.Summary
	if err := conn.Model(&types.Problem{}).Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := conn.Model(&types.Problem{}).Where("prioritized = ?", true).Count(&out.TotalPrioritized).Error; err != nil {
		return out, err
	}
	// relevant = problems with at least one related cause
	if err := conn.Raw(`
SELECT COUNT(*) FROM problem p
WHERE EXISTS (SELECT 1 FROM cause_problem_link l WHERE l.problem_id = p.id)`).Scan(&out.TotalRelevant).Error; err != nil {
		return out, err
	}
	return out, nil
}

func (r *problemRepo) LastPeriodData(ctx context.Context, tx *gorm.DB, code string) (*types.ProblemIndicatorData, error) {
	var row types.ProblemIndicatorData
	err := r.conn(tx).WithContext(ctx).
		Where("problem_code = ?", code).
		Order("period DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *problemRepo) DataSeries(ctx context.Context, tx *gorm.DB, code string) ([]types.ProblemIndicatorData, error) {
	var rows []types.ProblemIndicatorData
	if err := r.conn(tx).WithContext(ctx).
		Where("problem_code = ?", code).
		Order("period ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// orderClause builds "<expr> <dir>" with an explicit null placement: nulls
// first on ascending sorts, last on descending. The IS NULL prefix keys sort
// as booleans on both Postgres and SQLite.
func orderClause(fields map[string]string, req types.PageRequest, tieBreaker string) string {
	expr, ok := fields[req.OrderField]
	if !ok {
		expr = fields["name"]
	}
	dir := "ASC"
	nullKeyDir := "DESC" // null rows first
	if req.SortType == types.SortDesc {
		dir = "DESC"
		nullKeyDir = "ASC" // null rows last
	}
	return fmt.Sprintf("(%s IS NULL) %s, %s %s, %s ASC", expr, nullKeyDir, expr, dir, tieBreaker)
}
