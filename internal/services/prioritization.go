package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/cache"
	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

const (
	SummaryCacheKeyProblems    = "summary:problems"
	SummaryCacheKeyCauses      = "summary:causes"
	SummaryCacheKeyInitiatives = "summary:initiatives"
)

// PrioritizationService is the single authority for every prioritization
// write. Each layer of the ledger funnels through here, so the
// "must be related before it can be prioritized" rule has exactly one
// implementation.
//
// Mutations check association existence only; they deliberately do not
// require the underlying problem to be flagged prioritized first. Read-side
// aggregates do filter on problem.prioritized. Both behaviors are inherited
// from the current product contract.
type PrioritizationService interface {
	SetProblemPrioritization(ctx context.Context, problemIDs []uint, prioritized bool) error
	SetCauseProblemPrioritization(ctx context.Context, items []types.CausePrioritizationItem) error
	CausePrioritizationRows(ctx context.Context, causeIDs []uint) ([]types.CausePrioritizationRow, error)
	SetInitiativePrioritization(ctx context.Context, prioritize, deprioritize []types.InitiativeTriple) error
	InitiativeAssociationTree(ctx context.Context, initiativeIDs []uint) ([]types.InitiativeAssociationNode, error)
}

type prioritizationService struct {
	db             *gorm.DB
	log            *logger.Logger
	problemRepo    repos.ProblemRepo
	causeRepo      repos.CauseRepo
	initiativeRepo repos.InitiativeRepo
	summaryCache   *cache.SummaryCache
}

func NewPrioritizationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	problemRepo repos.ProblemRepo,
	causeRepo repos.CauseRepo,
	initiativeRepo repos.InitiativeRepo,
	summaryCache *cache.SummaryCache,
) PrioritizationService {
	return &prioritizationService{
		db:             db,
		log:            baseLog.With("service", "PrioritizationService"),
		problemRepo:    problemRepo,
		causeRepo:      causeRepo,
		initiativeRepo: initiativeRepo,
		summaryCache:   summaryCache,
	}
}

func (s *prioritizationService) invalidateSummaries(ctx context.Context) {
	s.summaryCache.Invalidate(ctx, SummaryCacheKeyProblems, SummaryCacheKeyCauses, SummaryCacheKeyInitiatives)
}

func (s *prioritizationService) SetProblemPrioritization(ctx context.Context, problemIDs []uint, prioritized bool) error {
	if len(problemIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.problemRepo.GetByIDs(ctx, tx, problemIDs)
		if err != nil {
			return err
		}
		if len(found) != len(dedupe(problemIDs)) {
			return apierr.NotFound("problem_not_found", fmt.Errorf("one or more problems don't exist"))
		}
		return s.problemRepo.SetPrioritized(ctx, tx, problemIDs, prioritized)
	})
	if err != nil {
		return err
	}
	s.invalidateSummaries(ctx)
	return nil
}

// SetCauseProblemPrioritization applies every item or none. A referenced
// pair without an association row aborts the whole batch.
func (s *prioritizationService) SetCauseProblemPrioritization(ctx context.Context, items []types.CausePrioritizationItem) error {
	if len(items) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			requested := append(append([]uint{}, item.ProblemIDsToPrioritize...), item.ProblemIDsToDeprioritize...)
			if err := s.requirePairs(ctx, tx, item.CauseID, requested); err != nil {
				return err
			}
			if err := s.causeRepo.SetLinkPrioritized(ctx, tx, item.CauseID, item.ProblemIDsToPrioritize, true); err != nil {
				return err
			}
			if err := s.causeRepo.SetLinkPrioritized(ctx, tx, item.CauseID, item.ProblemIDsToDeprioritize, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateSummaries(ctx)
	return nil
}

func (s *prioritizationService) CausePrioritizationRows(ctx context.Context, causeIDs []uint) ([]types.CausePrioritizationRow, error) {
	return s.causeRepo.PrioritizationRows(ctx, nil, causeIDs)
}

// SetInitiativePrioritization upserts the prioritize triples and deletes the
// deprioritize ones. Prioritizing requires the triple to be an existing
// association whose (cause, problem) pair is currently prioritized;
// deprioritizing an absent row is a no-op.
func (s *prioritizationService) SetInitiativePrioritization(ctx context.Context, prioritize, deprioritize []types.InitiativeTriple) error {
	if len(prioritize) == 0 && len(deprioritize) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireTriples(ctx, tx, prioritize); err != nil {
			return err
		}
		rows := make([]types.InitiativePrioritization, 0, len(prioritize))
		for _, t := range prioritize {
			rows = append(rows, types.InitiativePrioritization{
				InitiativeID: t.InitiativeID,
				CauseID:      t.CauseID,
				ProblemID:    t.ProblemID,
			})
		}
		if err := s.initiativeRepo.UpsertPrioritizations(ctx, tx, rows); err != nil {
			return err
		}
		return s.initiativeRepo.DeletePrioritizations(ctx, tx, deprioritize)
	})
	if err != nil {
		return err
	}
	s.invalidateSummaries(ctx)
	return nil
}

// InitiativeAssociationTree groups the named association rows of the given
// initiatives into the nested initiative/cause/problem shape the
// prioritization screen renders. Row order from the repo keeps the grouping
// stable.
func (s *prioritizationService) InitiativeAssociationTree(ctx context.Context, initiativeIDs []uint) ([]types.InitiativeAssociationNode, error) {
	rows, err := s.initiativeRepo.AssociationRows(ctx, nil, dedupe(initiativeIDs))
	if err != nil {
		return nil, err
	}
	out := make([]types.InitiativeAssociationNode, 0)
	idx := make(map[uint]int)
	for _, row := range rows {
		i, ok := idx[row.InitiativeID]
		if !ok {
			i = len(out)
			idx[row.InitiativeID] = i
			out = append(out, types.InitiativeAssociationNode{
				InitiativeID:   row.InitiativeID,
				InitiativeName: row.InitiativeName,
				Causes:         []types.InitiativeAssociationCauseNode{},
			})
		}
		node := &out[i]
		var cause *types.InitiativeAssociationCauseNode
		for ci := range node.Causes {
			if node.Causes[ci].CauseID == row.CauseID {
				cause = &node.Causes[ci]
				break
			}
		}
		if cause == nil {
			node.Causes = append(node.Causes, types.InitiativeAssociationCauseNode{
				CauseID:   row.CauseID,
				CauseName: row.CauseName,
				Problems:  []types.InitiativeAssociationProblemNode{},
			})
			cause = &node.Causes[len(node.Causes)-1]
		}
		cause.Problems = append(cause.Problems, types.InitiativeAssociationProblemNode{
			ProblemID:   row.ProblemID,
			ProblemName: row.ProblemName,
			Prioritized: row.Prioritized,
		})
	}
	return out, nil
}

// requirePairs fails when any requested problem id has no association row
// with the cause.
func (s *prioritizationService) requirePairs(ctx context.Context, tx *gorm.DB, causeID uint, problemIDs []uint) error {
	if len(problemIDs) == 0 {
		return nil
	}
	links, err := s.causeRepo.GetLinks(ctx, tx, causeID)
	if err != nil {
		return err
	}
	related := make(map[uint]struct{}, len(links))
	for _, l := range links {
		related[l.ProblemID] = struct{}{}
	}
	for _, pid := range problemIDs {
		if _, ok := related[pid]; !ok {
			return apierr.BadRequest("not_related",
				fmt.Errorf("cause %d and problem %d aren't related so can't be prioritized", causeID, pid))
		}
	}
	return nil
}

func (s *prioritizationService) requireTriples(ctx context.Context, tx *gorm.DB, triples []types.InitiativeTriple) error {
	if len(triples) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(triples))
	causeIDs := make([]uint, 0, len(triples))
	for _, t := range triples {
		ids = append(ids, t.InitiativeID)
		causeIDs = append(causeIDs, t.CauseID)
	}
	assoc, err := s.initiativeRepo.AssocTriples(ctx, tx, dedupe(ids))
	if err != nil {
		return err
	}
	known := make(map[types.InitiativeTriple]struct{}, len(assoc))
	for _, a := range assoc {
		known[a] = struct{}{}
	}
	links, err := s.causeRepo.GetLinksByCauseIDs(ctx, tx, dedupe(causeIDs))
	if err != nil {
		return err
	}
	pairPrioritized := make(map[[2]uint]bool, len(links))
	for _, l := range links {
		pairPrioritized[[2]uint{l.CauseID, l.ProblemID}] = l.Prioritized
	}
	for _, t := range triples {
		if _, ok := known[t]; !ok {
			return apierr.BadRequest("not_related",
				fmt.Errorf("initiative %d, cause %d and problem %d aren't related so can't be prioritized",
					t.InitiativeID, t.CauseID, t.ProblemID))
		}
		if !pairPrioritized[[2]uint{t.CauseID, t.ProblemID}] {
			return apierr.BadRequest("pair_not_prioritized",
				fmt.Errorf("cause %d and problem %d must be prioritized before initiative %d can be prioritized against them",
					t.CauseID, t.ProblemID, t.InitiativeID))
		}
	}
	return nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
