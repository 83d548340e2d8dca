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

type AnnexUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

type CreateCauseInput struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Evidences   []string `json:"evidences"`
	References  []string `json:"references"`
	ProblemIDs  []uint   `json:"problemIds"`
}

type UpdateCauseInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Evidences      []string `json:"evidences"`
	References     []string `json:"references"`
	ProblemIDs     []uint   `json:"problemIds"`
	RemoveAnnexIDs []uint   `json:"removeAnnexIds"`
}

type CauseDetail struct {
	Cause      *types.Cause           `json:"cause"`
	Problems   []*types.Problem       `json:"problems"`
	Indicators []types.CauseIndicator `json:"indicators"`
}

type CauseIndicatorSeries struct {
	Indicator           types.CauseIndicator `json:"indicator"`
	DataCharacteristics []DataGroup          `json:"dataCharacteristics"`
}

type CauseService interface {
	List(ctx context.Context, req types.PageRequest) (types.PageResult[types.CauseListItem], error)
	Get(ctx context.Context, id uint) (*CauseDetail, error)
	Summary(ctx context.Context) (types.Summary, error)
	CreateCustom(ctx context.Context, input CreateCauseInput, uploads []AnnexUpload, userID uuid.UUID) (*types.Cause, error)
	UpdateCustom(ctx context.Context, id uint, input UpdateCauseInput, uploads []AnnexUpload) (*types.Cause, error)
	DeleteCustom(ctx context.Context, id uint) error
	IndicatorSeries(ctx context.Context, causeID uint) ([]CauseIndicatorSeries, error)
	OpenAnnex(ctx context.Context, storageKey string) (*types.CauseAnnex, io.ReadCloser, error)
}

type causeService struct {
	db            *gorm.DB
	log           *logger.Logger
	causeRepo     repos.CauseRepo
	problemRepo   repos.ProblemRepo
	indicatorRepo repos.CauseIndicatorRepo
	initRepo      repos.InitiativeRepo
	annexStore    storage.AnnexStore
	summaryCache  *cache.SummaryCache
}

func NewCauseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	causeRepo repos.CauseRepo,
	problemRepo repos.ProblemRepo,
	indicatorRepo repos.CauseIndicatorRepo,
	initRepo repos.InitiativeRepo,
	annexStore storage.AnnexStore,
	summaryCache *cache.SummaryCache,
) CauseService {
	return &causeService{
		db:            db,
		log:           baseLog.With("service", "CauseService"),
		causeRepo:     causeRepo,
		problemRepo:   problemRepo,
		indicatorRepo: indicatorRepo,
		initRepo:      initRepo,
		annexStore:    annexStore,
		summaryCache:  summaryCache,
	}
}

func (s *causeService) List(ctx context.Context, req types.PageRequest) (types.PageResult[types.CauseListItem], error) {
	rows, total, err := s.causeRepo.List(ctx, nil, req)
	if err != nil {
		return types.PageResult[types.CauseListItem]{}, err
	}
	req.Normalize()
	return types.NewPageResult(total, req.PageSize, rows), nil
}

func (s *causeService) Get(ctx context.Context, id uint) (*CauseDetail, error) {
	cause, err := s.causeRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("cause_not_found", fmt.Errorf("cause %d doesn't exist", id))
		}
		return nil, err
	}
	links, err := s.causeRepo.GetLinks(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	problemIDs := make([]uint, 0, len(links))
	for _, l := range links {
		problemIDs = append(problemIDs, l.ProblemID)
	}
	problems, err := s.problemRepo.GetByIDs(ctx, nil, problemIDs)
	if err != nil {
		return nil, err
	}
	indicators, err := s.indicatorRepo.ListByCauseID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &CauseDetail{Cause: cause, Problems: problems, Indicators: indicators}, nil
}

func (s *causeService) Summary(ctx context.Context) (types.Summary, error) {
	var out types.Summary
	if s.summaryCache.Get(ctx, SummaryCacheKeyCauses, &out) {
		return out, nil
	}
	out, err := s.causeRepo.Summary(ctx, nil)
	if err != nil {
		return out, err
	}
	s.summaryCache.Set(ctx, SummaryCacheKeyCauses, out)
	return out, nil
}

// CreateCustom is one unit of work: cause row, problem links, annex files
// and their metadata rows all land together or not at all. Files already
// written are removed when the transaction rolls back.
func (s *causeService) CreateCustom(ctx context.Context, input CreateCauseInput, uploads []AnnexUpload, userID uuid.UUID) (*types.Cause, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apierr.BadRequest("invalid_name", fmt.Errorf("cause name is required"))
	}

	var created *types.Cause
	var savedKeys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.causeRepo.NameExists(ctx, tx, name, 0)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Conflict("name_taken", fmt.Errorf("a cause named %q already exists", name))
		}
		if err := s.requireProblems(ctx, tx, input.ProblemIDs); err != nil {
			return err
		}

		cause := &types.Cause{
			Kind:        types.CauseKindCustom,
			Name:        name,
			Description: strings.TrimSpace(input.Description),
			Evidences:   datatypes.NewJSONSlice(trimAll(input.Evidences)),
			References:  datatypes.NewJSONSlice(NormalizeReferences(input.References)),
			CreatedBy:   &userID,
		}
		if created, err = s.causeRepo.Create(ctx, tx, cause); err != nil {
			return err
		}

		links := make([]types.CauseProblemLink, 0, len(input.ProblemIDs))
		for _, pid := range dedupe(input.ProblemIDs) {
			links = append(links, types.CauseProblemLink{CauseID: cause.ID, ProblemID: pid})
		}
		if err := s.causeRepo.CreateLinks(ctx, tx, links); err != nil {
			return err
		}

		annexes := make([]types.CauseAnnex, 0, len(uploads))
		for _, up := range uploads {
			key, err := s.annexStore.Save(up.Filename, up.Reader)
			if err != nil {
				return err
			}
			savedKeys = append(savedKeys, key)
			annexes = append(annexes, types.CauseAnnex{
				CauseID:    cause.ID,
				Filename:   up.Filename,
				StorageKey: key,
				SizeBytes:  up.Size,
			})
		}
		return s.causeRepo.CreateAnnexes(ctx, tx, annexes)
	})
	if err != nil {
		for _, key := range savedKeys {
			if delErr := s.annexStore.Delete(key); delErr != nil {
				s.log.Warn("orphaned annex cleanup failed", "key", key, "error", delErr)
			}
		}
		return nil, err
	}
	s.summaryCache.Invalidate(ctx, SummaryCacheKeyCauses)
	return created, nil
}

// UpdateCustom reconciles problem links by set difference: only links that
// actually changed are inserted or deleted.
func (s *causeService) UpdateCustom(ctx context.Context, id uint, input UpdateCauseInput, uploads []AnnexUpload) (*types.Cause, error) {
	var updated *types.Cause
	var savedKeys []string
	var removedKeys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cause, err := s.causeRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("cause_not_found", fmt.Errorf("cause %d doesn't exist", id))
			}
			return err
		}
		if cause.IsDefault() {
			return apierr.BadRequest("default_immutable", fmt.Errorf("default causes can't be edited"))
		}

		if name := strings.TrimSpace(input.Name); name != "" && name != cause.Name {
			exists, err := s.causeRepo.NameExists(ctx, tx, name, id)
			if err != nil {
				return err
			}
			if exists {
				return apierr.Conflict("name_taken", fmt.Errorf("a cause named %q already exists", name))
			}
			cause.Name = name
		}
		if input.Description != "" {
			cause.Description = strings.TrimSpace(input.Description)
		}
		if input.Evidences != nil {
			cause.Evidences = datatypes.NewJSONSlice(trimAll(input.Evidences))
		}
		if input.References != nil {
			cause.References = datatypes.NewJSONSlice(NormalizeReferences(input.References))
		}

		if input.ProblemIDs != nil {
			if err := s.requireProblems(ctx, tx, input.ProblemIDs); err != nil {
				return err
			}
			existing, err := s.causeRepo.GetLinks(ctx, tx, id)
			if err != nil {
				return err
			}
			existingIDs := make([]uint, 0, len(existing))
			for _, l := range existing {
				existingIDs = append(existingIDs, l.ProblemID)
			}
			toAdd, toRemove := diffIDs(existingIDs, input.ProblemIDs)
			links := make([]types.CauseProblemLink, 0, len(toAdd))
			for _, pid := range toAdd {
				links = append(links, types.CauseProblemLink{CauseID: id, ProblemID: pid})
			}
			if err := s.causeRepo.CreateLinks(ctx, tx, links); err != nil {
				return err
			}
			if err := s.causeRepo.DeleteLinks(ctx, tx, id, toRemove); err != nil {
				return err
			}
		}

		if len(input.RemoveAnnexIDs) > 0 {
			annexes, err := s.causeRepo.GetAnnexes(ctx, tx, id)
			if err != nil {
				return err
			}
			byID := make(map[uint]types.CauseAnnex, len(annexes))
			for _, a := range annexes {
				byID[a.ID] = a
			}
			for _, annexID := range input.RemoveAnnexIDs {
				if a, ok := byID[annexID]; ok {
					removedKeys = append(removedKeys, a.StorageKey)
				}
			}
			if err := s.causeRepo.DeleteAnnexes(ctx, tx, input.RemoveAnnexIDs); err != nil {
				return err
			}
		}

		newAnnexes := make([]types.CauseAnnex, 0, len(uploads))
		for _, up := range uploads {
			key, err := s.annexStore.Save(up.Filename, up.Reader)
			if err != nil {
				return err
			}
			savedKeys = append(savedKeys, key)
			newAnnexes = append(newAnnexes, types.CauseAnnex{
				CauseID:    id,
				Filename:   up.Filename,
				StorageKey: key,
				SizeBytes:  up.Size,
			})
		}
		if err := s.causeRepo.CreateAnnexes(ctx, tx, newAnnexes); err != nil {
			return err
		}

		if err := s.causeRepo.Update(ctx, tx, cause); err != nil {
			return err
		}
		updated = cause
		return nil
	})
	if err != nil {
		for _, key := range savedKeys {
			_ = s.annexStore.Delete(key)
		}
		return nil, err
	}
	// stored files for removed annex rows are dropped only after commit
	for _, key := range removedKeys {
		if delErr := s.annexStore.Delete(key); delErr != nil {
			s.log.Warn("annex file delete failed", "key", key, "error", delErr)
		}
	}
	return updated, nil
}

// DeleteCustom refuses while any pairing is still prioritized; otherwise the
// links, annexes and initiative references go with the cause.
func (s *causeService) DeleteCustom(ctx context.Context, id uint) error {
	var annexKeys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cause, err := s.causeRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("cause_not_found", fmt.Errorf("cause %d doesn't exist", id))
			}
			return err
		}
		if cause.IsDefault() {
			return apierr.BadRequest("default_immutable", fmt.Errorf("default causes can't be deleted"))
		}
		prioritized, err := s.causeRepo.CountPrioritizedLinks(ctx, tx, id)
		if err != nil {
			return err
		}
		if prioritized > 0 {
			return apierr.BadRequest("prioritized_in_use",
				fmt.Errorf("cause %d still has prioritized problem associations", id))
		}
		annexes, err := s.causeRepo.GetAnnexes(ctx, tx, id)
		if err != nil {
			return err
		}
		annexIDs := make([]uint, 0, len(annexes))
		for _, a := range annexes {
			annexIDs = append(annexIDs, a.ID)
			annexKeys = append(annexKeys, a.StorageKey)
		}
		if err := s.causeRepo.DeleteAnnexes(ctx, tx, annexIDs); err != nil {
			return err
		}
		if err := s.causeRepo.DeleteLinksByCause(ctx, tx, id); err != nil {
			return err
		}
		if err := s.initRepo.DeleteCauseLinksByCauseID(ctx, tx, id); err != nil {
			return err
		}
		return s.causeRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	for _, key := range annexKeys {
		if delErr := s.annexStore.Delete(key); delErr != nil {
			s.log.Warn("annex file delete failed", "key", key, "error", delErr)
		}
	}
	s.summaryCache.Invalidate(ctx, SummaryCacheKeyCauses, SummaryCacheKeyInitiatives)
	return nil
}

func (s *causeService) IndicatorSeries(ctx context.Context, causeID uint) ([]CauseIndicatorSeries, error) {
	if _, err := s.causeRepo.GetByID(ctx, nil, causeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("cause_not_found", fmt.Errorf("cause %d doesn't exist", causeID))
		}
		return nil, err
	}
	indicators, err := s.indicatorRepo.ListByCauseID(ctx, nil, causeID)
	if err != nil {
		return nil, err
	}
	out := make([]CauseIndicatorSeries, 0, len(indicators))
	for _, ind := range indicators {
		series, err := s.indicatorRepo.DataSeries(ctx, nil, ind.Code)
		if err != nil {
			return nil, err
		}
		out = append(out, CauseIndicatorSeries{
			Indicator:           ind,
			DataCharacteristics: CauseDataCharacteristics(series),
		})
	}
	return out, nil
}

func (s *causeService) OpenAnnex(ctx context.Context, storageKey string) (*types.CauseAnnex, io.ReadCloser, error) {
	annex, err := s.causeRepo.GetAnnexByKey(ctx, nil, storageKey)
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

func (s *causeService) requireProblems(ctx context.Context, tx *gorm.DB, problemIDs []uint) error {
	unique := dedupe(problemIDs)
	found, err := s.problemRepo.GetByIDs(ctx, tx, unique)
	if err != nil {
		return err
	}
	if len(found) != len(unique) {
		return apierr.BadRequest("problem_not_found", fmt.Errorf("one or more referenced problems don't exist"))
	}
	return nil
}

// NormalizeReferences rewrites bare www. references into https URLs.
func NormalizeReferences(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if strings.HasPrefix(ref, "www.") {
			ref = "https://" + ref
		}
		out = append(out, ref)
	}
	return out
}

// diffIDs computes the two immutable set differences used to reconcile
// association rows: requested minus existing, existing minus requested.
func diffIDs(existing, requested []uint) (toAdd, toRemove []uint) {
	have := make(map[uint]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}
	want := make(map[uint]struct{}, len(requested))
	for _, id := range requested {
		want[id] = struct{}{}
	}
	for _, id := range dedupe(requested) {
		if _, ok := have[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range dedupe(existing) {
		if _, ok := want[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
