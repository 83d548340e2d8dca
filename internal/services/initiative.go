package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/cache"
	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/platform/storage"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

type CreateInitiativeInput struct {
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	CostLevel       string   `json:"costLevel"`
	EfficiencyLevel string   `json:"efficiencyLevel"`
	Evidences       []string `json:"evidences"`
	References      []string `json:"references"`
	CauseIDs        []uint   `json:"causeIds"`
	OutcomeIDs      []uint   `json:"outcomeIds"`
}

type UpdateInitiativeInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	CostLevel       string   `json:"costLevel"`
	EfficiencyLevel string   `json:"efficiencyLevel"`
	Evidences       []string `json:"evidences"`
	References      []string `json:"references"`
	CauseIDs        []uint   `json:"causeIds"`
	OutcomeIDs      []uint   `json:"outcomeIds"`
	RemoveAnnexIDs  []uint   `json:"removeAnnexIds"`
}

type InitiativeDetail struct {
	Initiative      *types.Initiative                `json:"initiative"`
	CostLabel       string                           `json:"costLabel"`
	EfficiencyLabel string                           `json:"efficiencyLabel"`
	Outcomes        []types.InitiativeOutcome        `json:"outcomes"`
	Triples         []types.InitiativeTriple         `json:"triples"`
	Prioritizations []types.InitiativePrioritization `json:"prioritizations"`
}

// InitiativeOptions backs the creation form: selectable levels, outcomes and
// departments.
type InitiativeOptions struct {
	CostLevels       []string                    `json:"costLevels"`
	EfficiencyLevels []string                    `json:"efficiencyLevels"`
	Outcomes         []types.InitiativeOutcome   `json:"outcomes"`
	Departments      []types.MunicipalDepartment `json:"departments"`
}

type InitiativeService interface {
	List(ctx context.Context, req types.PageRequest) (types.PageResult[types.InitiativeListItem], error)
	Get(ctx context.Context, id uint) (*InitiativeDetail, error)
	Summary(ctx context.Context) (types.Summary, error)
	Options(ctx context.Context) (*InitiativeOptions, error)
	CreateCustom(ctx context.Context, input CreateInitiativeInput, uploads []AnnexUpload, userID uuid.UUID) (*types.Initiative, error)
	UpdateCustom(ctx context.Context, id uint, input UpdateInitiativeInput, uploads []AnnexUpload) (*types.Initiative, error)
	DeleteCustom(ctx context.Context, id uint) error
	OpenAnnex(ctx context.Context, storageKey string) (*types.InitiativeAnnex, io.ReadCloser, error)
}

type initiativeService struct {
	db           *gorm.DB
	log          *logger.Logger
	initRepo     repos.InitiativeRepo
	causeRepo    repos.CauseRepo
	lookupRepo   repos.LookupRepo
	annexStore   storage.AnnexStore
	summaryCache *cache.SummaryCache
}

func NewInitiativeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	initRepo repos.InitiativeRepo,
	causeRepo repos.CauseRepo,
	lookupRepo repos.LookupRepo,
	annexStore storage.AnnexStore,
	summaryCache *cache.SummaryCache,
) InitiativeService {
	return &initiativeService{
		db:           db,
		log:          baseLog.With("service", "InitiativeService"),
		initRepo:     initRepo,
		causeRepo:    causeRepo,
		lookupRepo:   lookupRepo,
		annexStore:   annexStore,
		summaryCache: summaryCache,
	}
}

func (s *initiativeService) List(ctx context.Context, req types.PageRequest) (types.PageResult[types.InitiativeListItem], error) {
	rows, total, err := s.initRepo.List(ctx, nil, req)
	if err != nil {
		return types.PageResult[types.InitiativeListItem]{}, err
	}
	req.Normalize()
	return types.NewPageResult(total, req.PageSize, rows), nil
}

func (s *initiativeService) Get(ctx context.Context, id uint) (*InitiativeDetail, error) {
	initiative, err := s.initRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("initiative_not_found", fmt.Errorf("initiative %d doesn't exist", id))
		}
		return nil, err
	}
	outcomes, err := s.initRepo.GetOutcomes(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	triples, err := s.initRepo.AssocTriples(ctx, nil, []uint{id})
	if err != nil {
		return nil, err
	}
	prioritizations, err := s.initRepo.GetPrioritizations(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	detail := &InitiativeDetail{
		Initiative:      initiative,
		Outcomes:        outcomes,
		Triples:         triples,
		Prioritizations: prioritizations,
	}
	if initiative.CostLevel != nil {
		detail.CostLabel = types.LevelLabel(types.CostLevels, *initiative.CostLevel)
	}
	if initiative.EfficiencyLevel != nil {
		detail.EfficiencyLabel = types.LevelLabel(types.EfficiencyLevels, *initiative.EfficiencyLevel)
	}
	return detail, nil
}

func (s *initiativeService) Summary(ctx context.Context) (types.Summary, error) {
	var out types.Summary
	if s.summaryCache.Get(ctx, SummaryCacheKeyInitiatives, &out) {
		return out, nil
	}
	out, err := s.initRepo.Summary(ctx, nil)
	if err != nil {
		return out, err
	}
	s.summaryCache.Set(ctx, SummaryCacheKeyInitiatives, out)
	return out, nil
}

func (s *initiativeService) Options(ctx context.Context) (*InitiativeOptions, error) {
	outcomes, err := s.lookupRepo.Outcomes(ctx, nil)
	if err != nil {
		return nil, err
	}
	departments, err := s.lookupRepo.Departments(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &InitiativeOptions{
		CostLevels:       levelLabels(types.CostLevels),
		EfficiencyLevels: levelLabels(types.EfficiencyLevels),
		Outcomes:         outcomes,
		Departments:      departments,
	}, nil
}

func (s *initiativeService) CreateCustom(ctx context.Context, input CreateInitiativeInput, uploads []AnnexUpload, userID uuid.UUID) (*types.Initiative, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apierr.BadRequest("invalid_name", fmt.Errorf("initiative name is required"))
	}
	costLevel, err := parseLevel(types.CostLevels, input.CostLevel, "cost")
	if err != nil {
		return nil, err
	}
	efficiencyLevel, err := parseLevel(types.EfficiencyLevels, input.EfficiencyLevel, "efficiency")
	if err != nil {
		return nil, err
	}

	var created *types.Initiative
	var savedKeys []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.initRepo.NameExists(ctx, tx, name, 0)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Conflict("name_taken", fmt.Errorf("an initiative named %q already exists", name))
		}
		if err := s.requireCauses(ctx, tx, input.CauseIDs); err != nil {
			return err
		}
		if err := s.requireOutcomes(ctx, tx, input.OutcomeIDs); err != nil {
			return err
		}

		initiative := &types.Initiative{
			Name:            name,
			Description:     strings.TrimSpace(input.Description),
			IsDefault:       false,
			CostLevel:       costLevel,
			EfficiencyLevel: efficiencyLevel,
			Evidences:       datatypes.NewJSONSlice(trimAll(input.Evidences)),
			References:      datatypes.NewJSONSlice(NormalizeReferences(input.References)),
			CreatedBy:       &userID,
		}
		if created, err = s.initRepo.Create(ctx, tx, initiative); err != nil {
			return err
		}

		links := make([]types.InitiativeCauseLink, 0, len(input.CauseIDs))
		for _, cid := range dedupe(input.CauseIDs) {
			links = append(links, types.InitiativeCauseLink{InitiativeID: initiative.ID, CauseID: cid})
		}
		if err := s.initRepo.CreateCauseLinks(ctx, tx, links); err != nil {
			return err
		}
		if err := s.initRepo.SetOutcomeLinks(ctx, tx, initiative.ID, dedupe(input.OutcomeIDs)); err != nil {
			return err
		}

		annexes := make([]types.InitiativeAnnex, 0, len(uploads))
		for _, up := range uploads {
			key, err := s.annexStore.Save(up.Filename, up.Reader)
			if err != nil {
				return err
			}
			savedKeys = append(savedKeys, key)
			annexes = append(annexes, types.InitiativeAnnex{
				InitiativeID: initiative.ID,
				Filename:     up.Filename,
				StorageKey:   key,
				SizeBytes:    up.Size,
			})
		}
		return s.initRepo.CreateAnnexes(ctx, tx, annexes)
	})
	if err != nil {
		for _, key := range savedKeys {
			if delErr := s.annexStore.Delete(key); delErr != nil {
				s.log.Warn("orphaned annex cleanup failed", "key", key, "error", delErr)
			}
		}
		return nil, err
	}
	s.summaryCache.Invalidate(ctx, SummaryCacheKeyInitiatives)
	return created, nil
}

func (s *initiativeService) UpdateCustom(ctx context.Context, id uint, input UpdateInitiativeInput, uploads []AnnexUpload) (*types.Initiative, error) {
	var updated *types.Initiative
	var savedKeys []string
	var removedKeys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		initiative, err := s.initRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("initiative_not_found", fmt.Errorf("initiative %d doesn't exist", id))
			}
			return err
		}
		if initiative.IsDefault {
			return apierr.BadRequest("default_immutable", fmt.Errorf("default initiatives can't be edited"))
		}

		if name := strings.TrimSpace(input.Name); name != "" && name != initiative.Name {
			exists, err := s.initRepo.NameExists(ctx, tx, name, id)
			if err != nil {
				return err
			}
			if exists {
				return apierr.Conflict("name_taken", fmt.Errorf("an initiative named %q already exists", name))
			}
			initiative.Name = name
		}
		if input.Description != "" {
			initiative.Description = strings.TrimSpace(input.Description)
		}
		if input.CostLevel != "" {
			level, err := parseLevel(types.CostLevels, input.CostLevel, "cost")
			if err != nil {
				return err
			}
			initiative.CostLevel = level
		}
		if input.EfficiencyLevel != "" {
			level, err := parseLevel(types.EfficiencyLevels, input.EfficiencyLevel, "efficiency")
			if err != nil {
				return err
			}
			initiative.EfficiencyLevel = level
		}
		if input.Evidences != nil {
			initiative.Evidences = datatypes.NewJSONSlice(trimAll(input.Evidences))
		}
		if input.References != nil {
			initiative.References = datatypes.NewJSONSlice(NormalizeReferences(input.References))
		}

		if input.CauseIDs != nil {
			if err := s.requireCauses(ctx, tx, input.CauseIDs); err != nil {
				return err
			}
			existing, err := s.initRepo.GetCauseLinks(ctx, tx, id)
			if err != nil {
				return err
			}
			existingIDs := make([]uint, 0, len(existing))
			for _, l := range existing {
				existingIDs = append(existingIDs, l.CauseID)
			}
			toAdd, toRemove := diffIDs(existingIDs, input.CauseIDs)
			links := make([]types.InitiativeCauseLink, 0, len(toAdd))
			for _, cid := range toAdd {
				links = append(links, types.InitiativeCauseLink{InitiativeID: id, CauseID: cid})
			}
			if err := s.initRepo.CreateCauseLinks(ctx, tx, links); err != nil {
				return err
			}
			if err := s.initRepo.DeleteCauseLinks(ctx, tx, id, toRemove); err != nil {
				return err
			}
		}

		if input.OutcomeIDs != nil {
			if err := s.requireOutcomes(ctx, tx, input.OutcomeIDs); err != nil {
				return err
			}
			if err := s.initRepo.SetOutcomeLinks(ctx, tx, id, dedupe(input.OutcomeIDs)); err != nil {
				return err
			}
		}

		if len(input.RemoveAnnexIDs) > 0 {
			annexes, err := s.initRepo.GetAnnexes(ctx, tx, id)
			if err != nil {
				return err
			}
			byID := make(map[uint]types.InitiativeAnnex, len(annexes))
			for _, a := range annexes {
				byID[a.ID] = a
			}
			for _, annexID := range input.RemoveAnnexIDs {
				if a, ok := byID[annexID]; ok {
					removedKeys = append(removedKeys, a.StorageKey)
				}
			}
			if err := s.initRepo.DeleteAnnexes(ctx, tx, input.RemoveAnnexIDs); err != nil {
				return err
			}
		}

		newAnnexes := make([]types.InitiativeAnnex, 0, len(uploads))
		for _, up := range uploads {
			key, err := s.annexStore.Save(up.Filename, up.Reader)
			if err != nil {
				return err
			}
			savedKeys = append(savedKeys, key)
			newAnnexes = append(newAnnexes, types.InitiativeAnnex{
				InitiativeID: id,
				Filename:     up.Filename,
				StorageKey:   key,
				SizeBytes:    up.Size,
			})
		}
		if err := s.initRepo.CreateAnnexes(ctx, tx, newAnnexes); err != nil {
			return err
		}

		if err := s.initRepo.Update(ctx, tx, initiative); err != nil {
			return err
		}
		updated = initiative
		return nil
	})
	if err != nil {
		for _, key := range savedKeys {
			_ = s.annexStore.Delete(key)
		}
		return nil, err
	}
	for _, key := range removedKeys {
		if delErr := s.annexStore.Delete(key); delErr != nil {
			s.log.Warn("annex file delete failed", "key", key, "error", delErr)
		}
	}
	return updated, nil
}

// DeleteCustom refuses while any triple of the initiative is still
// prioritized.
func (s *initiativeService) DeleteCustom(ctx context.Context, id uint) error {
	var annexKeys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		initiative, err := s.initRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("initiative_not_found", fmt.Errorf("initiative %d doesn't exist", id))
			}
			return err
		}
		if initiative.IsDefault {
			return apierr.BadRequest("default_immutable", fmt.Errorf("default initiatives can't be deleted"))
		}
		prioritized, err := s.initRepo.CountPrioritizations(ctx, tx, id)
		if err != nil {
			return err
		}
		if prioritized > 0 {
			return apierr.BadRequest("prioritized_in_use",
				fmt.Errorf("initiative %d still has prioritized associations", id))
		}
		annexes, err := s.initRepo.GetAnnexes(ctx, tx, id)
		if err != nil {
			return err
		}
		annexIDs := make([]uint, 0, len(annexes))
		for _, a := range annexes {
			annexIDs = append(annexIDs, a.ID)
			annexKeys = append(annexKeys, a.StorageKey)
		}
		if err := s.initRepo.DeleteAnnexes(ctx, tx, annexIDs); err != nil {
			return err
		}
		existing, err := s.initRepo.GetCauseLinks(ctx, tx, id)
		if err != nil {
			return err
		}
		causeIDs := make([]uint, 0, len(existing))
		for _, l := range existing {
			causeIDs = append(causeIDs, l.CauseID)
		}
		if err := s.initRepo.DeleteCauseLinks(ctx, tx, id, causeIDs); err != nil {
			return err
		}
		if err := s.initRepo.SetOutcomeLinks(ctx, tx, id, nil); err != nil {
			return err
		}
		return s.initRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	for _, key := range annexKeys {
		if delErr := s.annexStore.Delete(key); delErr != nil {
			s.log.Warn("annex file delete failed", "key", key, "error", delErr)
		}
	}
	s.summaryCache.Invalidate(ctx, SummaryCacheKeyInitiatives)
	return nil
}

func (s *initiativeService) OpenAnnex(ctx context.Context, storageKey string) (*types.InitiativeAnnex, io.ReadCloser, error) {
	annex, err := s.initRepo.GetAnnexByKey(ctx, nil, storageKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apierr.NotFound("annex_not_found", fmt.Errorf("annex %q doesn't exist", storageKey))
		}
		return nil, nil, err
	}
	rc, err := s.annexStore.Open(annex.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return annex, rc, nil
}

func (s *initiativeService) requireCauses(ctx context.Context, tx *gorm.DB, causeIDs []uint) error {
	unique := dedupe(causeIDs)
	found, err := s.causeRepo.GetByIDs(ctx, tx, unique)
	if err != nil {
		return err
	}
	if len(found) != len(unique) {
		return apierr.BadRequest("cause_not_found", fmt.Errorf("one or more referenced causes don't exist"))
	}
	return nil
}

func (s *initiativeService) requireOutcomes(ctx context.Context, tx *gorm.DB, outcomeIDs []uint) error {
	unique := dedupe(outcomeIDs)
	found, err := s.lookupRepo.OutcomesByIDs(ctx, tx, unique)
	if err != nil {
		return err
	}
	if len(found) != len(unique) {
		return apierr.BadRequest("outcome_not_found", fmt.Errorf("one or more referenced outcomes don't exist"))
	}
	return nil
}

// parseLevel maps an exchanged label onto its stored int. Empty means unset.
func parseLevel(levels map[string]int, label, field string) (*int, error) {
	if label == "" {
		return nil, nil
	}
	if v, ok := levels[label]; ok {
		return &v, nil
	}
	return nil, apierr.BadRequest("invalid_level", fmt.Errorf("unknown %s level %q", field, label))
}

func levelLabels(levels map[string]int) []string {
	out := make([]string, len(levels))
	for label, v := range levels {
		out[v-1] = label
	}
	return out
}
