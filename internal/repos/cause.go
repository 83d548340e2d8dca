package repos

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

type CauseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, cause *types.Cause) (*types.Cause, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Cause, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Cause, error)
	NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uint) (bool, error)
	Update(ctx context.Context, tx *gorm.DB, cause *types.Cause) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, req types.PageRequest) ([]types.CauseListItem, int64, error)
	Summary(ctx context.Context, tx *gorm.DB) (types.Summary, error)

	GetLinks(ctx context.Context, tx *gorm.DB, causeID uint) ([]types.CauseProblemLink, error)
	GetLinksByCauseIDs(ctx context.Context, tx *gorm.DB, causeIDs []uint) ([]types.CauseProblemLink, error)
	CreateLinks(ctx context.Context, tx *gorm.DB, links []types.CauseProblemLink) error
	DeleteLinks(ctx context.Context, tx *gorm.DB, causeID uint, problemIDs []uint) error
	DeleteLinksByCause(ctx context.Context, tx *gorm.DB, causeID uint) error
	DeleteLinksByProblem(ctx context.Context, tx *gorm.DB, problemID uint) error
	SetLinkPrioritized(ctx context.Context, tx *gorm.DB, causeID uint, problemIDs []uint, prioritized bool) error
	CountPrioritizedLinks(ctx context.Context, tx *gorm.DB, causeID uint) (int64, error)
	CountPrioritizedLinksByProblem(ctx context.Context, tx *gorm.DB, problemID uint) (int64, error)
	PrioritizationRows(ctx context.Context, tx *gorm.DB, causeIDs []uint) ([]types.CausePrioritizationRow, error)

	CreateAnnexes(ctx context.Context, tx *gorm.DB, annexes []types.CauseAnnex) error
	GetAnnexes(ctx context.Context, tx *gorm.DB, causeID uint) ([]types.CauseAnnex, error)
	GetAnnexByKey(ctx context.Context, tx *gorm.DB, storageKey string) (*types.CauseAnnex, error)
	DeleteAnnexes(ctx context.Context, tx *gorm.DB, ids []uint) error
}

type causeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCauseRepo(db *gorm.DB, baseLog *logger.Logger) CauseRepo {
	return &causeRepo{db: db, log: baseLog.With("repo", "CauseRepo")}
}

func (r *causeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *causeRepo) Create(ctx context.Context, tx *gorm.DB, cause *types.Cause) (*types.Cause, error) {
	if err := r.conn(tx).WithContext(ctx).Create(cause).Error; err != nil {
		return nil, err
	}
	return cause, nil
}

func (r *causeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Cause, error) {
	var cause types.Cause
	if err := r.conn(tx).WithContext(ctx).
		Preload("Annexes").
		First(&cause, id).Error; err != nil {
		return nil, err
	}
	return &cause, nil
}

func (r *causeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*types.Cause, error) {
	var causes []*types.Cause
	if len(ids) == 0 {
		return causes, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&causes).Error; err != nil {
		return nil, err
	}
	return causes, nil
}

func (r *causeRepo) NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.conn(tx).WithContext(ctx).Model(&types.Cause{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *causeRepo) Update(ctx context.Context, tx *gorm.DB, cause *types.Cause) error {
	return r.conn(tx).WithContext(ctx).Omit("Annexes").Save(cause).Error
}

func (r *causeRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.conn(tx).WithContext(ctx).Delete(&types.Cause{}, id).Error
}

var causeOrderFields = map[string]string{
	"name":                      "c.name",
	"kind":                      "c.kind",
	"total_problem_count":       "total_problem_count",
	"prioritized_problem_count": "prioritized_problem_count",
}

func (r *causeRepo) List(ctx context.Context, tx *gorm.DB, req types.PageRequest) ([]types.CauseListItem, int64, error) {
	req.Normalize()
	conn := r.conn(tx).WithContext(ctx)

	where := "1=1"
	var args []interface{}
	if req.Search != "" {
		where += " AND LOWER(c.name) LIKE ?"
		args = append(args, "%"+strings.ToLower(req.Search)+"%")
	}
	if req.Prioritized != nil {
		if *req.Prioritized {
			where += " AND EXISTS (SELECT 1 FROM cause_problem_link l WHERE l.cause_id = c.id AND l.prioritized)"
		} else {
			where += " AND NOT EXISTS (SELECT 1 FROM cause_problem_link l WHERE l.cause_id = c.id AND l.prioritized)"
		}
	}

	var total int64
	if err := conn.Raw("SELECT COUNT(*) FROM cause c WHERE "+where, args...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
SELECT
  c.id, c.name, c.kind,
  COALESCE(pc.total, 0)       AS total_problem_count,
  COALESCE(pc.prioritized, 0) AS prioritized_problem_count
FROM cause c
LEFT JOIN (
  SELECT cause_id,
         COUNT(*) AS total,
         SUM(CASE WHEN prioritized THEN 1 ELSE 0 END) AS prioritized
  FROM cause_problem_link
  GROUP BY cause_id
) pc ON pc.cause_id = c.id
WHERE %s
ORDER BY %s
LIMIT ? OFFSET ?`, where, orderClause(causeOrderFields, req, "c.id"))

	var rows []types.CauseListItem
	queryArgs := append(append([]interface{}{}, args...), req.PageSize, req.Offset())
	if err := conn.Raw(query, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *causeRepo) Summary(ctx context.Context, tx *gorm.DB) (types.Summary, error) {
	conn := r.conn(tx).WithContext(ctx)
	var out types.Summary
	if err := conn.Model(&types.Cause{}).Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := conn.Raw(`
SELECT COUNT(*) FROM cause c
WHERE EXISTS (SELECT 1 FROM cause_problem_link l WHERE l.cause_id = c.id AND l.prioritized)`).Scan(&out.TotalPrioritized).Error; err != nil {
		return out, err
	}
	// relevant = causes linked to at least one prioritized problem
	if err := conn.Raw(`
SELECT COUNT(*) FROM cause c
WHERE EXISTS (
  SELECT 1 FROM cause_problem_link l
  JOIN problem p ON p.id = l.problem_id
  WHERE l.cause_id = c.id AND p.prioritized
)`).Scan(&out.TotalRelevant).Error; err != nil {
		return out, err
	}
	return out, nil
}

func (r *causeRepo) GetLinks(ctx context.Context, tx *gorm.DB, causeID uint) ([]types.CauseProblemLink, error) {
	return r.GetLinksByCauseIDs(ctx, tx, []uint{causeID})
}

func (r *causeRepo) GetLinksByCauseIDs(ctx context.Context, tx *gorm.DB, causeIDs []uint) ([]types.CauseProblemLink, error) {
	var links []types.CauseProblemLink
	if len(causeIDs) == 0 {
		return links, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("cause_id IN ?", causeIDs).
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *causeRepo) CreateLinks(ctx context.Context, tx *gorm.DB, links []types.CauseProblemLink) error {
	if len(links) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

func (r *causeRepo) DeleteLinks(ctx context.Context, tx *gorm.DB, causeID uint, problemIDs []uint) error {
	if len(problemIDs) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Where("cause_id = ? AND problem_id IN ?", causeID, problemIDs).
		Delete(&types.CauseProblemLink{}).Error
}

func (r *causeRepo) DeleteLinksByCause(ctx context.Context, tx *gorm.DB, causeID uint) error {
	return r.conn(tx).WithContext(ctx).
		Where("cause_id = ?", causeID).
		Delete(&types.CauseProblemLink{}).Error
}

func (r *causeRepo) DeleteLinksByProblem(ctx context.Context, tx *gorm.DB, problemID uint) error {
	return r.conn(tx).WithContext(ctx).
		Where("problem_id = ?", problemID).
		Delete(&types.CauseProblemLink{}).Error
}

// SetLinkPrioritized flips the flag on existing pairs only; callers validate
// existence first. Re-applying the same value is a no-op, which makes the
// operation idempotent.
func (r *causeRepo) SetLinkPrioritized(ctx context.Context, tx *gorm.DB, causeID uint, problemIDs []uint, prioritized bool) error {
	if len(problemIDs) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Model(&types.CauseProblemLink{}).
		Where("cause_id = ? AND problem_id IN ?", causeID, problemIDs).
		Update("prioritized", prioritized).Error
}

func (r *causeRepo) CountPrioritizedLinks(ctx context.Context, tx *gorm.DB, causeID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.CauseProblemLink{}).
		Where("cause_id = ? AND prioritized = ?", causeID, true).
		Count(&count).Error
	return count, err
}

func (r *causeRepo) CountPrioritizedLinksByProblem(ctx context.Context, tx *gorm.DB, problemID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.CauseProblemLink{}).
		Where("problem_id = ? AND prioritized = ?", problemID, true).
		Count(&count).Error
	return count, err
}

func (r *causeRepo) PrioritizationRows(ctx context.Context, tx *gorm.DB, causeIDs []uint) ([]types.CausePrioritizationRow, error) {
	conn := r.conn(tx).WithContext(ctx)
	query := `
SELECT l.cause_id, c.name AS cause_name, l.problem_id, p.name AS problem_name, l.prioritized
FROM cause_problem_link l
JOIN cause c ON c.id = l.cause_id
JOIN problem p ON p.id = l.problem_id`
	var args []interface{}
	if len(causeIDs) > 0 {
		query += " WHERE l.cause_id IN ?"
		args = append(args, causeIDs)
	}
	query += " ORDER BY c.name ASC, p.name ASC"

	var rows []types.CausePrioritizationRow
	if err := conn.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *causeRepo) CreateAnnexes(ctx context.Context, tx *gorm.DB, annexes []types.CauseAnnex) error {
	if len(annexes) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Create(&annexes).Error
}

func (r *causeRepo) GetAnnexes(ctx context.Context, tx *gorm.DB, causeID uint) ([]types.CauseAnnex, error) {
	var annexes []types.CauseAnnex
	if err := r.conn(tx).WithContext(ctx).
		Where("cause_id = ?", causeID).
		Find(&annexes).Error; err != nil {
		return nil, err
	}
	return annexes, nil
}

func (r *causeRepo) GetAnnexByKey(ctx context.Context, tx *gorm.DB, storageKey string) (*types.CauseAnnex, error) {
	var annex types.CauseAnnex
	if err := r.conn(tx).WithContext(ctx).
		Where("storage_key = ?", storageKey).
		First(&annex).Error; err != nil {
		return nil, err
	}
	return &annex, nil
}

func (r *causeRepo) DeleteAnnexes(ctx context.Context, tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Delete(&types.CauseAnnex{}, ids).Error
}
