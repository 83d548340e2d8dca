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

// relCTE normalizes the two association shapes into one
// (initiative_id, cause_id, problem_id) relation and applies the
// prioritization predicate exactly once. Default initiatives are represented
// by pre-denormalized triples, custom ones by cause links expanded through
// cause_problem_link; after the union both flow through the same rel filter,
// so the two paths cannot drift apart on what "prioritized and related"
// means.
const relCTE = `
WITH assoc AS (
  SELECT icp.initiative_id, icp.cause_id, icp.problem_id
  FROM initiative_cause_problem_link icp
  UNION
  SELECT ic.initiative_id, cpl.cause_id, cpl.problem_id
  FROM initiative_cause_link ic
  JOIN cause_problem_link cpl ON cpl.cause_id = ic.cause_id
), rel AS (
  SELECT a.initiative_id, a.cause_id, a.problem_id
  FROM assoc a
  JOIN cause_problem_link cp
    ON cp.cause_id = a.cause_id AND cp.problem_id = a.problem_id AND cp.prioritized
  JOIN problem p
    ON p.id = a.problem_id AND p.prioritized
)`

type InitiativeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, initiative *types.Initiative) (*types.Initiative, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Initiative, error)
	NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uint) (bool, error)
	Update(ctx context.Context, tx *gorm.DB, initiative *types.Initiative) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, req types.PageRequest) ([]types.InitiativeListItem, int64, error)
	Summary(ctx context.Context, tx *gorm.DB) (types.Summary, error)

	AssocTriples(ctx context.Context, tx *gorm.DB, initiativeIDs []uint) ([]types.InitiativeTriple, error)
	AssociationRows(ctx context.Context, tx *gorm.DB, initiativeIDs []uint) ([]types.InitiativeAssociationRow, error)
	GetCauseLinks(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativeCauseLink, error)
	CreateCauseLinks(ctx context.Context, tx *gorm.DB, links []types.InitiativeCauseLink) error
	DeleteCauseLinks(ctx context.Context, tx *gorm.DB, initiativeID uint, causeIDs []uint) error
	DeleteCauseLinksByCauseID(ctx context.Context, tx *gorm.DB, causeID uint) error
	CreateTripleLinks(ctx context.Context, tx *gorm.DB, links []types.InitiativeCauseProblemLink) error

	GetPrioritizations(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativePrioritization, error)
	UpsertPrioritizations(ctx context.Context, tx *gorm.DB, rows []types.InitiativePrioritization) error
	DeletePrioritizations(ctx context.Context, tx *gorm.DB, triples []types.InitiativeTriple) error
	CountPrioritizations(ctx context.Context, tx *gorm.DB, initiativeID uint) (int64, error)

	SetOutcomeLinks(ctx context.Context, tx *gorm.DB, initiativeID uint, outcomeIDs []uint) error
	GetOutcomes(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativeOutcome, error)

	CreateAnnexes(ctx context.Context, tx *gorm.DB, annexes []types.InitiativeAnnex) error
	GetAnnexes(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativeAnnex, error)
	GetAnnexByKey(ctx context.Context, tx *gorm.DB, storageKey string) (*types.InitiativeAnnex, error)
	DeleteAnnexes(ctx context.Context, tx *gorm.DB, ids []uint) error
}

type initiativeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInitiativeRepo(db *gorm.DB, baseLog *logger.Logger) InitiativeRepo {
	return &initiativeRepo{db: db, log: baseLog.With("repo", "InitiativeRepo")}
}

func (r *initiativeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *initiativeRepo) Create(ctx context.Context, tx *gorm.DB, initiative *types.Initiative) (*types.Initiative, error) {
	if err := r.conn(tx).WithContext(ctx).Create(initiative).Error; err != nil {
		return nil, err
	}
	return initiative, nil
}

func (r *initiativeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Initiative, error) {
	var initiative types.Initiative
	if err := r.conn(tx).WithContext(ctx).
		Preload("Annexes").
		First(&initiative, id).Error; err != nil {
		return nil, err
	}
	return &initiative, nil
}

func (r *initiativeRepo) NameExists(ctx context.Context, tx *gorm.DB, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.conn(tx).WithContext(ctx).Model(&types.Initiative{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *initiativeRepo) Update(ctx context.Context, tx *gorm.DB, initiative *types.Initiative) error {
	return r.conn(tx).WithContext(ctx).Omit("Annexes").Save(initiative).Error
}

func (r *initiativeRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return r.conn(tx).WithContext(ctx).Delete(&types.Initiative{}, id).Error
}

var initiativeOrderFields = map[string]string{
	"name":                "i.name",
	"cost_level":          "i.cost_level",
	"efficiency_level":    "i.efficiency_level",
	"total_cause_count":   "total_cause_count",
	"total_problem_count": "total_problem_count",
}

// List computes per-initiative aggregate counts over the consolidated rel
// relation. The inner join against rel drops initiatives whose cause and
// problem counts would both be zero, so they never reach a page.
func (r *initiativeRepo) List(ctx context.Context, tx *gorm.DB, req types.PageRequest) ([]types.InitiativeListItem, int64, error) {
	req.Normalize()
	conn := r.conn(tx).WithContext(ctx)

	where := "1=1"
	var args []interface{}
	if req.Search != "" {
		where += " AND LOWER(i.name) LIKE ?"
		args = append(args, "%"+strings.ToLower(req.Search)+"%")
	}
	having := ""
	if req.Prioritized != nil {
		if *req.Prioritized {
			having = "HAVING SUM(CASE WHEN ip.initiative_id IS NOT NULL THEN 1 ELSE 0 END) > 0"
		} else {
			having = "HAVING SUM(CASE WHEN ip.initiative_id IS NOT NULL THEN 1 ELSE 0 END) = 0"
		}
	}

	grouped := fmt.Sprintf(`
SELECT
  i.id, i.name, i.is_default, i.cost_level, i.efficiency_level,
  COUNT(DISTINCT r.cause_id)   AS total_cause_count,
  COUNT(DISTINCT r.problem_id) AS total_problem_count,
  SUM(CASE WHEN ip.initiative_id IS NOT NULL THEN 1 ELSE 0 END) AS prioritized_triple_count
FROM initiative i
JOIN rel r ON r.initiative_id = i.id
LEFT JOIN initiative_prioritization ip
  ON ip.initiative_id = r.initiative_id
 AND ip.cause_id = r.cause_id
 AND ip.problem_id = r.problem_id
WHERE %s
GROUP BY i.id, i.name, i.is_default, i.cost_level, i.efficiency_level
%s`, where, having)

	var total int64
	countQuery := relCTE + "\nSELECT COUNT(*) FROM (" + grouped + ") x"
	if err := conn.Raw(countQuery, args...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	pageQuery := fmt.Sprintf("%s\n%s\nORDER BY %s\nLIMIT ? OFFSET ?",
		relCTE, grouped, orderClause(initiativeOrderFields, req, "i.id"))
	var rows []types.InitiativeListItem
	queryArgs := append(append([]interface{}{}, args...), req.PageSize, req.Offset())
	if err := conn.Raw(pageQuery, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	for idx := range rows {
		rows[idx].Prioritized = rows[idx].PrioritizedTripleCount > 0
	}
	return rows, total, nil
}

func (r *initiativeRepo) Summary(ctx context.Context, tx *gorm.DB) (types.Summary, error) {
	conn := r.conn(tx).WithContext(ctx)
	var out types.Summary
	if err := conn.Model(&types.Initiative{}).Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := conn.Raw(`
SELECT COUNT(DISTINCT initiative_id) FROM initiative_prioritization`).Scan(&out.TotalPrioritized).Error; err != nil {
		return out, err
	}
	if err := conn.Raw(relCTE + `
SELECT COUNT(DISTINCT initiative_id) FROM rel`).Scan(&out.TotalRelevant).Error; err != nil {
		return out, err
	}
	return out, nil
}

// AssocTriples expands the associations of the given initiatives into
// triples, regardless of prioritization state. The prioritization validator
// checks requested triples against this set.
func (r *initiativeRepo) AssocTriples(ctx context.Context, tx *gorm.DB, initiativeIDs []uint) ([]types.InitiativeTriple, error) {
	var rows []types.InitiativeTriple
	if len(initiativeIDs) == 0 {
		return rows, nil
	}
	query := relCTE + `
SELECT initiative_id, cause_id, problem_id FROM assoc WHERE initiative_id IN ?`
	if err := r.conn(tx).WithContext(ctx).Raw(query, initiativeIDs).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AssociationRows lists the named triples of the given initiatives, limited
// to pairs that are currently prioritized against a prioritized problem. The
// prioritized flag on each row reflects the triple ledger.
func (r *initiativeRepo) AssociationRows(ctx context.Context, tx *gorm.DB, initiativeIDs []uint) ([]types.InitiativeAssociationRow, error) {
	var rows []types.InitiativeAssociationRow
	if len(initiativeIDs) == 0 {
		return rows, nil
	}
	query := relCTE + `
SELECT
  r.initiative_id, i.name AS initiative_name,
  r.cause_id, c.name AS cause_name,
  r.problem_id, p.name AS problem_name,
  CASE WHEN ip.initiative_id IS NOT NULL THEN 1 ELSE 0 END AS prioritized
FROM rel r
JOIN initiative i ON i.id = r.initiative_id
JOIN cause c ON c.id = r.cause_id
JOIN problem p ON p.id = r.problem_id
LEFT JOIN initiative_prioritization ip
  ON ip.initiative_id = r.initiative_id
 AND ip.cause_id = r.cause_id
 AND ip.problem_id = r.problem_id
WHERE r.initiative_id IN ?
ORDER BY r.initiative_id, r.cause_id, r.problem_id`
	if err := r.conn(tx).WithContext(ctx).Raw(query, initiativeIDs).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *initiativeRepo) GetCauseLinks(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativeCauseLink, error) {
	var links []types.InitiativeCauseLink
	if err := r.conn(tx).WithContext(ctx).
		Where("initiative_id = ?", initiativeID).
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *initiativeRepo) CreateCauseLinks(ctx context.Context, tx *gorm.DB, links []types.InitiativeCauseLink) error {
	if len(links) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

func (r *initiativeRepo) DeleteCauseLinks(ctx context.Context, tx *gorm.DB, initiativeID uint, causeIDs []uint) error {
	if len(causeIDs) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Where("initiative_id = ? AND cause_id IN ?", initiativeID, causeIDs).
		Delete(&types.InitiativeCauseLink{}).Error
}

func (r *initiativeRepo) DeleteCauseLinksByCauseID(ctx context.Context, tx *gorm.DB, causeID uint) error {
	return r.conn(tx).WithContext(ctx).
		Where("cause_id = ?", causeID).
		Delete(&types.InitiativeCauseLink{}).Error
}

func (r *initiativeRepo) CreateTripleLinks(ctx context.Context, tx *gorm.DB, links []types.InitiativeCauseProblemLink) error {
	if len(links) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

func (r *initiativeRepo) GetPrioritizations(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativePrioritization, error) {
	var rows []types.InitiativePrioritization
	if err := r.conn(tx).WithContext(ctx).
		Where("initiative_id = ?", initiativeID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertPrioritizations is an insert-or-ignore on the triple primary key, so
// re-prioritizing an already prioritized triple neither errors nor
// duplicates.
func (r *initiativeRepo) UpsertPrioritizations(ctx context.Context, tx *gorm.DB, rows []types.InitiativePrioritization) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *initiativeRepo) DeletePrioritizations(ctx context.Context, tx *gorm.DB, triples []types.InitiativeTriple) error {
	conn := r.conn(tx).WithContext(ctx)
	for _, t := range triples {
		if err := conn.
			Where("initiative_id = ? AND cause_id = ? AND problem_id = ?", t.InitiativeID, t.CauseID, t.ProblemID).
			Delete(&types.InitiativePrioritization{}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *initiativeRepo) CountPrioritizations(ctx context.Context, tx *gorm.DB, initiativeID uint) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.InitiativePrioritization{}).
		Where("initiative_id = ?", initiativeID).
		Count(&count).Error
	return count, err
}

func (r *initiativeRepo) SetOutcomeLinks(ctx context.Context, tx *gorm.DB, initiativeID uint, outcomeIDs []uint) error {
	conn := r.conn(tx).WithContext(ctx)
	if err := conn.Where("initiative_id = ?", initiativeID).Delete(&types.InitiativeOutcomeLink{}).Error; err != nil {
		return err
	}
	if len(outcomeIDs) == 0 {
		return nil
	}
	links := make([]types.InitiativeOutcomeLink, 0, len(outcomeIDs))
	for _, id := range outcomeIDs {
		links = append(links, types.InitiativeOutcomeLink{InitiativeID: initiativeID, OutcomeID: id})
	}
	return conn.Create(&links).Error
}

func (r *initiativeRepo) GetOutcomes(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativeOutcome, error) {
	var outcomes []types.InitiativeOutcome
	if err := r.conn(tx).WithContext(ctx).
		Joins("JOIN initiative_outcome_link l ON l.outcome_id = initiative_outcome.id").
		Where("l.initiative_id = ?", initiativeID).
		Find(&outcomes).Error; err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *initiativeRepo) CreateAnnexes(ctx context.Context, tx *gorm.DB, annexes []types.InitiativeAnnex) error {
	if len(annexes) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Create(&annexes).Error
}

func (r *initiativeRepo) GetAnnexes(ctx context.Context, tx *gorm.DB, initiativeID uint) ([]types.InitiativeAnnex, error) {
	var annexes []types.InitiativeAnnex
	if err := r.conn(tx).WithContext(ctx).
		Where("initiative_id = ?", initiativeID).
		Find(&annexes).Error; err != nil {
		return nil, err
	}
	return annexes, nil
}

func (r *initiativeRepo) GetAnnexByKey(ctx context.Context, tx *gorm.DB, storageKey string) (*types.InitiativeAnnex, error) {
	var annex types.InitiativeAnnex
	if err := r.conn(tx).WithContext(ctx).
		Where("storage_key = ?", storageKey).
		First(&annex).Error; err != nil {
		return nil, err
	}
	return &annex, nil
}

func (r *initiativeRepo) DeleteAnnexes(ctx context.Context, tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Delete(&types.InitiativeAnnex{}, ids).Error
}
