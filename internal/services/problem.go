package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/cache"
	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"

	"github.com/google/uuid"
)

type CreateProblemInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Polarity    string `json:"polarity"`
}

type ProblemDetail struct {
	Problem             *types.Problem `json:"problem"`
	DataCharacteristics []DataGroup    `json:"dataCharacteristics"`
}

type ProblemService interface {
	List(ctx context.Context, req types.PageRequest) (types.PageResult[types.ProblemListItem], error)
	Get(ctx context.Context, id uint) (*ProblemDetail, error)
	Summary(ctx context.Context) (types.Summary, error)
	CreateCustom(ctx context.Context, input CreateProblemInput, userID uuid.UUID) (*types.Problem, error)
	UpdateCustom(ctx context.Context, id uint, input CreateProblemInput) (*types.Problem, error)
	DeleteCustom(ctx context.Context, id uint) error
}

type problemService struct {
	db           *gorm.DB
	log          *logger.Logger
	problemRepo  repos.ProblemRepo
	causeRepo    repos.CauseRepo
	summaryCache *cache.SummaryCache
}

func NewProblemService(
	db *gorm.DB,
	baseLog *logger.Logger,
	problemRepo repos.ProblemRepo,
	causeRepo repos.CauseRepo,
	summaryCache *cache.SummaryCache,
) ProblemService {
	return &problemService{
		db:           db,
		log:          baseLog.With("service", "ProblemService"),
		problemRepo:  problemRepo,
		causeRepo:    causeRepo,
		summaryCache: summaryCache,
	}
}

func (s *problemService) List(ctx context.Context, req types.PageRequest) (types.PageResult[types.ProblemListItem], error) {
	rows, total, err := s.problemRepo.List(ctx, nil, req)
	if err != nil {
		return types.PageResult[types.ProblemListItem]{}, err
	}
	req.Normalize()
	return types.NewPageResult(total, req.PageSize, rows), nil
}

func (s *problemService) Get(ctx context.Context, id uint) (*ProblemDetail, error) {
	problem, err := s.problemRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("problem_not_found", fmt.Errorf("problem %d doesn't exist", id))
		}
		return nil, err
	}
	detail := &ProblemDetail{Problem: problem, DataCharacteristics: []DataGroup{}}
	if problem.Code != nil {
		series, err := s.problemRepo.DataSeries(ctx, nil, *problem.Code)
		if err != nil {
			return nil, err
		}
		detail.DataCharacteristics = ProblemDataCharacteristics(series)
	}
	return detail, nil
}

func (s *problemService) Summary(ctx context.Context) (types.Summary, error) {
	var out types.Summary
	if s.summaryCache.Get(ctx, SummaryCacheKeyProblems, &out) {
		return out, nil
	}
	out, err := s.problemRepo.Summary(ctx, nil)
	if err != nil {
		return out, err
	}
	s.summaryCache.Set(ctx, SummaryCacheKeyProblems, out)
	return out, nil
}

func (s *problemService) CreateCustom(ctx context.Context, input CreateProblemInput, userID uuid.UUID) (*types.Problem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apierr.BadRequest("invalid_name", fmt.Errorf("problem name is required"))
	}
	polarity := input.Polarity
	if polarity == "" {
		polarity = types.PolarityNegative
	}
	if polarity != types.PolarityPositive && polarity != types.PolarityNegative {
		return nil, apierr.BadRequest("invalid_polarity", fmt.Errorf("polarity must be %q or %q", types.PolarityPositive, types.PolarityNegative))
	}

	var created *types.Problem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.problemRepo.NameExists(ctx, tx, name, 0)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Conflict("name_taken", fmt.Errorf("a problem named %q already exists", name))
		}
		problem := &types.Problem{
			Name:        name,
			Description: strings.TrimSpace(input.Description),
			Polarity:    polarity,
			IsDefault:   false,
			CreatedBy:   &userID,
		}
		created, err = s.problemRepo.Create(ctx, tx, problem)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.summaryCache.Invalidate(ctx, SummaryCacheKeyProblems)
	return created, nil
}

func (s *problemService) UpdateCustom(ctx context.Context, id uint, input CreateProblemInput) (*types.Problem, error) {
	var updated *types.Problem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		problem, err := s.problemRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("problem_not_found", fmt.Errorf("problem %d doesn't exist", id))
			}
			return err
		}
		if problem.IsDefault {
			return apierr.BadRequest("default_immutable", fmt.Errorf("default problems can't be edited"))
		}
		name := strings.TrimSpace(input.Name)
		if name != "" && name != problem.Name {
			exists, err := s.problemRepo.NameExists(ctx, tx, name, id)
			if err != nil {
				return err
			}
			if exists {
				return apierr.Conflict("name_taken", fmt.Errorf("a problem named %q already exists", name))
			}
			problem.Name = name
		}
		if input.Description != "" {
			problem.Description = strings.TrimSpace(input.Description)
		}
		if input.Polarity != "" {
			if input.Polarity != types.PolarityPositive && input.Polarity != types.PolarityNegative {
				return apierr.BadRequest("invalid_polarity", fmt.Errorf("polarity must be %q or %q", types.PolarityPositive, types.PolarityNegative))
			}
			problem.Polarity = input.Polarity
		}
		if err := s.problemRepo.Update(ctx, tx, problem); err != nil {
			return err
		}
		updated = problem
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCustom removes a custom problem and its cause links. Deletion is
// rejected while any link is still prioritized.
func (s *problemService) DeleteCustom(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		problem, err := s.problemRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("problem_not_found", fmt.Errorf("problem %d doesn't exist", id))
			}
			return err
		}
		if problem.IsDefault {
			return apierr.BadRequest("default_immutable", fmt.Errorf("default problems can't be deleted"))
		}
		prioritized, err := s.causeRepo.CountPrioritizedLinksByProblem(ctx, tx, id)
		if err != nil {
			return err
		}
		if prioritized > 0 {
			return apierr.BadRequest("prioritized_in_use",
				fmt.Errorf("problem %d still has prioritized cause associations", id))
		}
		if err := s.causeRepo.DeleteLinksByProblem(ctx, tx, id); err != nil {
			return err
		}
		return s.problemRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.summaryCache.Invalidate(ctx, SummaryCacheKeyProblems, SummaryCacheKeyCauses)
	return nil
}
