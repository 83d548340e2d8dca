package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

type PlanInput struct {
	Title     string     `json:"title" binding:"required"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

type GoalInput struct {
	TargetValue   *float64   `json:"targetValue"`
	Justification string     `json:"justification"`
	DueDate       *time.Time `json:"dueDate"`
}

type MacroObjectiveGoalInput struct {
	ProblemID uint `json:"problemId" binding:"required"`
	GoalInput
}

type FocusGoalInput struct {
	CauseIndicatorID uint `json:"causeIndicatorId" binding:"required"`
	GoalInput
}

type CustomIndicatorInput struct {
	Name        string   `json:"name" binding:"required"`
	TargetValue *float64 `json:"targetValue"`
}

type ProblemDiagnosisInput struct {
	ProblemID uint   `json:"problemId" binding:"required"`
	Content   string `json:"content"`
}

type CauseDiagnosisInput struct {
	CauseIndicatorID uint   `json:"causeIndicatorId" binding:"required"`
	Content          string `json:"content"`
}

type TacticalDimensionInput struct {
	InitiativeID    uint       `json:"initiativeId" binding:"required"`
	Diagnosis       string     `json:"diagnosis"`
	NeighborhoodIDs []uint     `json:"neighborhoodIds"`
	TargetGroups    []string   `json:"targetGroups"`
	StartDate       *time.Time `json:"startDate"`
	EndDate         *time.Time `json:"endDate"`
	Cost            *float64   `json:"cost"`

	Goals []struct {
		Description string     `json:"description" binding:"required"`
		TargetValue *float64   `json:"targetValue"`
		DueDate     *time.Time `json:"dueDate"`
	} `json:"goals"`
	DepartmentRoles []struct {
		DepartmentID uint   `json:"departmentId" binding:"required"`
		Role         string `json:"role"`
	} `json:"departmentRoles"`
}

// PlanService composes the planning cycle: the plan row itself, section
// status, the strategic goal trees, diagnosis texts and tactical dimensions.
// Every plan-scoped write requires a current plan to exist.
type PlanService interface {
	Create(ctx context.Context, input PlanInput) (*types.Plan, error)
	Current(ctx context.Context) (*types.Plan, error)
	UpdateBasicInfo(ctx context.Context, input PlanInput) (*types.Plan, error)
	Status(ctx context.Context) (*types.PlanStatus, error)

	MacroObjectives(ctx context.Context) ([]types.MacroObjectiveNode, error)
	SetMacroObjectiveGoals(ctx context.Context, macroObjectiveID uint, goals []MacroObjectiveGoalInput, customIndicators []CustomIndicatorInput) error
	SetFocusGoals(ctx context.Context, focusID uint, goals []FocusGoalInput, customIndicators []CustomIndicatorInput) error

	UpsertProblemDiagnoses(ctx context.Context, items []ProblemDiagnosisInput) error
	UpsertCauseDiagnoses(ctx context.Context, causeID uint, items []CauseDiagnosisInput) error
	Diagnosis(ctx context.Context) ([]types.DiagnosisProblemNode, error)

	SetTacticalDimension(ctx context.Context, input TacticalDimensionInput) (*types.TacticalDimension, error)
	TacticalDimension(ctx context.Context, initiativeID uint) (*types.TacticalDimension, error)
	TacticalDimensions(ctx context.Context) ([]types.TacticalDimension, error)
}

type planService struct {
	db            *gorm.DB
	log           *logger.Logger
	planRepo      repos.PlanRepo
	problemRepo   repos.ProblemRepo
	causeRepo     repos.CauseRepo
	indicatorRepo repos.CauseIndicatorRepo
	initRepo      repos.InitiativeRepo
	strategicRepo repos.StrategicRepo
	diagnosisRepo repos.DiagnosisRepo
	tacticalRepo  repos.TacticalRepo
	lookupRepo    repos.LookupRepo
}

func NewPlanService(
	db *gorm.DB,
	baseLog *logger.Logger,
	planRepo repos.PlanRepo,
	problemRepo repos.ProblemRepo,
	causeRepo repos.CauseRepo,
	indicatorRepo repos.CauseIndicatorRepo,
	initRepo repos.InitiativeRepo,
	strategicRepo repos.StrategicRepo,
	diagnosisRepo repos.DiagnosisRepo,
	tacticalRepo repos.TacticalRepo,
	lookupRepo repos.LookupRepo,
) PlanService {
	return &planService{
		db:            db,
		log:           baseLog.With("service", "PlanService"),
		planRepo:      planRepo,
		problemRepo:   problemRepo,
		causeRepo:     causeRepo,
		indicatorRepo: indicatorRepo,
		initRepo:      initRepo,
		strategicRepo: strategicRepo,
		diagnosisRepo: diagnosisRepo,
		tacticalRepo:  tacticalRepo,
		lookupRepo:    lookupRepo,
	}
}

func (s *planService) Create(ctx context.Context, input PlanInput) (*types.Plan, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apierr.BadRequest("invalid_title", fmt.Errorf("plan title is required"))
	}
	now := time.Now()
	plan := &types.Plan{
		Title:              title,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		BasicInfoUpdatedAt: &now,
	}
	return s.planRepo.Create(ctx, nil, plan)
}

func (s *planService) Current(ctx context.Context) (*types.Plan, error) {
	plan, err := s.planRepo.Current(ctx, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("plan_not_found", fmt.Errorf("no plan exists yet"))
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) UpdateBasicInfo(ctx context.Context, input PlanInput) (*types.Plan, error) {
	var updated *types.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.requirePlan(ctx, tx, "plan update")
		if err != nil {
			return err
		}
		if title := strings.TrimSpace(input.Title); title != "" {
			plan.Title = title
		}
		if input.StartDate != nil {
			plan.StartDate = input.StartDate
		}
		if input.EndDate != nil {
			plan.EndDate = input.EndDate
		}
		now := time.Now()
		plan.BasicInfoUpdatedAt = &now
		if err := s.planRepo.Update(ctx, tx, plan); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Status reports per-section completion. Each percentage is
// round(100*filled/total) with total == 0 reported as 0, clamped to [0,100];
// a goal written for a since-deprioritized entity can otherwise push filled
// past total.
func (s *planService) Status(ctx context.Context) (*types.PlanStatus, error) {
	plan, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	prioritizedProblems, err := s.problemRepo.ListPrioritized(ctx, nil)
	if err != nil {
		return nil, err
	}
	prioritizedIndicators, err := s.prioritizedIndicators(ctx)
	if err != nil {
		return nil, err
	}
	problemTotal := int64(len(prioritizedProblems))
	indicatorTotal := int64(len(prioritizedIndicators))

	basicFilled := int64(1) // title is required on create
	if plan.StartDate != nil {
		basicFilled++
	}
	if plan.EndDate != nil {
		basicFilled++
	}

	problemDiagCount, err := s.diagnosisRepo.CountProblemDiagnoses(ctx, nil, plan.ID)
	if err != nil {
		return nil, err
	}
	causeDiagCount, err := s.diagnosisRepo.CountCauseDiagnoses(ctx, nil, plan.ID)
	if err != nil {
		return nil, err
	}

	moGoalCount, err := s.strategicRepo.CountMacroObjectiveGoals(ctx, nil, plan.ID)
	if err != nil {
		return nil, err
	}
	focusGoalCount, err := s.strategicRepo.CountFocusGoals(ctx, nil, plan.ID)
	if err != nil {
		return nil, err
	}

	initiativeSummary, err := s.initRepo.Summary(ctx, nil)
	if err != nil {
		return nil, err
	}
	tacticalCount, err := s.tacticalRepo.CountByPlan(ctx, nil, plan.ID)
	if err != nil {
		return nil, err
	}

	return &types.PlanStatus{
		PlanID: plan.ID,
		Title:  plan.Title,
		BasicInfo: types.SectionProgress{
			Progress:  progressPercent(basicFilled, 3),
			UpdatedAt: plan.BasicInfoUpdatedAt,
		},
		Diagnosis: types.SectionProgress{
			Progress:  progressPercent(problemDiagCount+causeDiagCount, problemTotal+indicatorTotal),
			UpdatedAt: plan.DiagnosisUpdatedAt,
		},
		Strategic: types.SectionProgress{
			Progress:  progressPercent(moGoalCount+focusGoalCount, problemTotal+indicatorTotal),
			UpdatedAt: plan.StrategicUpdatedAt,
		},
		Tactical: types.SectionProgress{
			Progress:  progressPercent(tacticalCount, initiativeSummary.TotalPrioritized),
			UpdatedAt: plan.TacticalUpdatedAt,
		},
	}, nil
}

// MacroObjectives builds the strategic tree in three passes: the taxonomy,
// the prioritized-only children, and the current plan's goal rows stitched in
// by parent id. Taxonomy nodes with nothing prioritized under them still
// render, disabled.
func (s *planService) MacroObjectives(ctx context.Context) ([]types.MacroObjectiveNode, error) {
	plan, err := s.planRepo.Current(ctx, nil)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	objectives, err := s.strategicRepo.MacroObjectives(ctx, nil)
	if err != nil {
		return nil, err
	}
	problemLinks, err := s.strategicRepo.ProblemLinks(ctx, nil)
	if err != nil {
		return nil, err
	}
	focuses, err := s.strategicRepo.Focuses(ctx, nil)
	if err != nil {
		return nil, err
	}
	indicatorLinks, err := s.strategicRepo.FocusIndicatorLinks(ctx, nil)
	if err != nil {
		return nil, err
	}

	prioritizedProblems, err := s.problemRepo.ListPrioritized(ctx, nil)
	if err != nil {
		return nil, err
	}
	problemByID := make(map[uint]types.Problem, len(prioritizedProblems))
	for _, p := range prioritizedProblems {
		problemByID[p.ID] = p
	}
	indicatorByID, err := s.prioritizedIndicators(ctx)
	if err != nil {
		return nil, err
	}

	moGoals := map[uint]types.MacroObjectiveGoal{}
	focusGoals := map[uint]types.FocusGoal{}
	moCustom := map[uint][]types.MacroObjectiveCustomIndicator{}
	focusCustom := map[uint][]types.FocusCustomIndicator{}
	if plan != nil {
		goals, err := s.strategicRepo.MacroObjectiveGoals(ctx, nil, plan.ID)
		if err != nil {
			return nil, err
		}
		for _, g := range goals {
			moGoals[g.ProblemID] = g
		}
		fgoals, err := s.strategicRepo.FocusGoals(ctx, nil, plan.ID)
		if err != nil {
			return nil, err
		}
		for _, g := range fgoals {
			focusGoals[g.CauseIndicatorID] = g
		}
		custom, err := s.strategicRepo.MacroObjectiveCustomIndicators(ctx, nil, plan.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range custom {
			moCustom[c.MacroObjectiveID] = append(moCustom[c.MacroObjectiveID], c)
		}
		fcustom, err := s.strategicRepo.FocusCustomIndicators(ctx, nil, plan.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range fcustom {
			focusCustom[c.FocusID] = append(focusCustom[c.FocusID], c)
		}
	}

	problemsByMO := map[uint][]uint{}
	for _, l := range problemLinks {
		problemsByMO[l.MacroObjectiveID] = append(problemsByMO[l.MacroObjectiveID], l.ProblemID)
	}
	indicatorsByFocus := map[uint][]uint{}
	for _, l := range indicatorLinks {
		indicatorsByFocus[l.FocusID] = append(indicatorsByFocus[l.FocusID], l.CauseIndicatorID)
	}
	focusesByMO := map[uint][]types.Focus{}
	for _, f := range focuses {
		focusesByMO[f.MacroObjectiveID] = append(focusesByMO[f.MacroObjectiveID], f)
	}

	nodes := make([]types.MacroObjectiveNode, 0, len(objectives))
	for _, mo := range objectives {
		node := types.MacroObjectiveNode{
			ID:               mo.ID,
			Name:             mo.Name,
			Problems:         []types.MacroObjectiveGoalNode{},
			Focuses:          []types.FocusNode{},
			CustomIndicators: moCustom[mo.ID],
		}
		if node.CustomIndicators == nil {
			node.CustomIndicators = []types.MacroObjectiveCustomIndicator{}
		}
		for _, pid := range problemsByMO[mo.ID] {
			problem, ok := problemByID[pid]
			if !ok {
				continue
			}
			child := types.MacroObjectiveGoalNode{ProblemID: pid, ProblemName: problem.Name}
			if goal, ok := moGoals[pid]; ok {
				child.TargetValue = goal.TargetValue
				child.Justification = goal.Justification
				child.DueDate = goal.DueDate
				child.HasGoal = true
				node.Enabled = true
			}
			node.Problems = append(node.Problems, child)
		}
		for _, focus := range focusesByMO[mo.ID] {
			fnode := types.FocusNode{
				ID:               focus.ID,
				Name:             focus.Name,
				Indicators:       []types.FocusGoalNode{},
				CustomIndicators: focusCustom[focus.ID],
			}
			if fnode.CustomIndicators == nil {
				fnode.CustomIndicators = []types.FocusCustomIndicator{}
			}
			for _, indID := range indicatorsByFocus[focus.ID] {
				indicator, ok := indicatorByID[indID]
				if !ok {
					continue
				}
				child := types.FocusGoalNode{CauseIndicatorID: indID, IndicatorName: indicator.Name}
				if goal, ok := focusGoals[indID]; ok {
					child.TargetValue = goal.TargetValue
					child.Justification = goal.Justification
					child.DueDate = goal.DueDate
					child.HasGoal = true
					fnode.Enabled = true
					node.Enabled = true
				}
				fnode.Indicators = append(fnode.Indicators, child)
			}
			node.Focuses = append(node.Focuses, fnode)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *planService) SetMacroObjectiveGoals(ctx context.Context, macroObjectiveID uint, goals []MacroObjectiveGoalInput, customIndicators []CustomIndicatorInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.requirePlan(ctx, tx, "goal")
		if err != nil {
			return err
		}
		exists, err := s.strategicRepo.MacroObjectiveExists(ctx, tx, macroObjectiveID)
		if err != nil {
			return err
		}
		if !exists {
			return apierr.NotFound("macro_objective_not_found", fmt.Errorf("macro objective %d doesn't exist", macroObjectiveID))
		}
		links, err := s.strategicRepo.ProblemLinksByMacroObjective(ctx, tx, macroObjectiveID)
		if err != nil {
			return err
		}
		allowed := make(map[uint]struct{}, len(links))
		for _, l := range links {
			allowed[l.ProblemID] = struct{}{}
		}
		now := time.Now()
		for _, g := range goals {
			if _, ok := allowed[g.ProblemID]; !ok {
				return apierr.BadRequest("not_related",
					fmt.Errorf("problem %d doesn't belong to macro objective %d", g.ProblemID, macroObjectiveID))
			}
			row := &types.MacroObjectiveGoal{
				PlanID:        plan.ID,
				ProblemID:     g.ProblemID,
				TargetValue:   g.TargetValue,
				Justification: g.Justification,
				DueDate:       g.DueDate,
				UpdatedAt:     now,
			}
			if err := s.strategicRepo.UpsertMacroObjectiveGoal(ctx, tx, row); err != nil {
				return err
			}
		}
		if customIndicators != nil {
			rows := make([]types.MacroObjectiveCustomIndicator, 0, len(customIndicators))
			for _, c := range customIndicators {
				rows = append(rows, types.MacroObjectiveCustomIndicator{
					PlanID:           plan.ID,
					MacroObjectiveID: macroObjectiveID,
					Name:             strings.TrimSpace(c.Name),
					TargetValue:      c.TargetValue,
				})
			}
			if err := s.strategicRepo.ReplaceMacroObjectiveCustomIndicators(ctx, tx, plan.ID, macroObjectiveID, rows); err != nil {
				return err
			}
		}
		return s.stampSection(ctx, tx, plan, sectionStrategic)
	})
}

func (s *planService) SetFocusGoals(ctx context.Context, focusID uint, goals []FocusGoalInput, customIndicators []CustomIndicatorInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.requirePlan(ctx, tx, "goal")
		if err != nil {
			return err
		}
		if _, err := s.strategicRepo.FocusByID(ctx, tx, focusID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("focus_not_found", fmt.Errorf("focus %d doesn't exist", focusID))
			}
			return err
		}
		links, err := s.strategicRepo.FocusIndicatorLinksByFocus(ctx, tx, focusID)
		if err != nil {
			return err
		}
		allowed := make(map[uint]struct{}, len(links))
		for _, l := range links {
			allowed[l.CauseIndicatorID] = struct{}{}
		}
		now := time.Now()
		for _, g := range goals {
			if _, ok := allowed[g.CauseIndicatorID]; !ok {
				return apierr.BadRequest("not_related",
					fmt.Errorf("cause indicator %d doesn't belong to focus %d", g.CauseIndicatorID, focusID))
			}
			row := &types.FocusGoal{
				PlanID:           plan.ID,
				CauseIndicatorID: g.CauseIndicatorID,
				TargetValue:      g.TargetValue,
				Justification:    g.Justification,
				DueDate:          g.DueDate,
				UpdatedAt:        now,
			}
			if err := s.strategicRepo.UpsertFocusGoal(ctx, tx, row); err != nil {
				return err
			}
		}
		if customIndicators != nil {
			rows := make([]types.FocusCustomIndicator, 0, len(customIndicators))
			for _, c := range customIndicators {
				rows = append(rows, types.FocusCustomIndicator{
					PlanID:      plan.ID,
					FocusID:     focusID,
					Name:        strings.TrimSpace(c.Name),
					TargetValue: c.TargetValue,
				})
			}
			if err := s.strategicRepo.ReplaceFocusCustomIndicators(ctx, tx, plan.ID, focusID, rows); err != nil {
				return err
			}
		}
		return s.stampSection(ctx, tx, plan, sectionStrategic)
	})
}

func (s *planService) UpsertProblemDiagnoses(ctx context.Context, items []ProblemDiagnosisInput) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.requirePlan(ctx, tx, "diagnosis")
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProblemID)
		}
		found, err := s.problemRepo.GetByIDs(ctx, tx, dedupe(ids))
		if err != nil {
			return err
		}
		if len(found) != len(dedupe(ids)) {
			return apierr.NotFound("problem_not_found", fmt.Errorf("one or more problems don't exist"))
		}
		now := time.Now()
		for _, item := range items {
			row := &types.ProblemDiagnosis{
				PlanID:    plan.ID,
				ProblemID: item.ProblemID,
				Content:   item.Content,
				UpdatedAt: now,
			}
			if err := s.diagnosisRepo.UpsertProblemDiagnosis(ctx, tx, row); err != nil {
				return err
			}
		}
		return s.stampSection(ctx, tx, plan, sectionDiagnosis)
	})
}

func (s *planService) UpsertCauseDiagnoses(ctx context.Context, causeID uint, items []CauseDiagnosisInput) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.requirePlan(ctx, tx, "diagnosis")
		if err != nil {
			return err
		}
		if _, err := s.causeRepo.GetByID(ctx, tx, causeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("cause_not_found", fmt.Errorf("cause %d doesn't exist", causeID))
			}
			return err
		}
		indicators, err := s.indicatorRepo.ListByCauseID(ctx, tx, causeID)
		if err != nil {
			return err
		}
		allowed := make(map[uint]struct{}, len(indicators))
		for _, ind := range indicators {
			allowed[ind.ID] = struct{}{}
		}
		now := time.Now()
		for _, item := range items {
			if _, ok := allowed[item.CauseIndicatorID]; !ok {
				return apierr.BadRequest("not_related",
					fmt.Errorf("indicator %d doesn't belong to cause %d", item.CauseIndicatorID, causeID))
			}
			row := &types.CauseIndicatorDiagnosis{
				PlanID:           plan.ID,
				CauseID:          causeID,
				CauseIndicatorID: item.CauseIndicatorID,
				Content:          item.Content,
				UpdatedAt:        now,
			}
			if err := s.diagnosisRepo.UpsertCauseDiagnosis(ctx, tx, row); err != nil {
				return err
			}
		}
		return s.stampSection(ctx, tx, plan, sectionDiagnosis)
	})
}

// Diagnosis renders the nested diagnosis tree: prioritized problems, their
// prioritized causes, each cause's indicators and whatever texts are stored
// for the current plan.
func (s *planService) Diagnosis(ctx context.Context) ([]types.DiagnosisProblemNode, error) {
	plan, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	problems, err := s.problemRepo.ListPrioritized(ctx, nil)
	if err != nil {
		return nil, err
	}
	pairs, err := s.causeRepo.PrioritizationRows(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	problemDiags, err := s.diagnosisRepo.ProblemDiagnoses(ctx, nil, plan.ID)
	if err != nil {
		return nil, err
	}
	problemContent := make(map[uint]string, len(problemDiags))
	for _, d := range problemDiags {
		problemContent[d.ProblemID] = d.Content
	}
	causeDiags, err := s.diagnosisRepo.CauseDiagnoses(ctx, nil, plan.ID)
	if err != nil {
		return nil, err
	}
	indicatorContent := make(map[[2]uint]string, len(causeDiags))
	for _, d := range causeDiags {
		indicatorContent[[2]uint{d.CauseID, d.CauseIndicatorID}] = d.Content
	}

	// prioritized causes grouped under their problems
	causesByProblem := map[uint][]types.CausePrioritizationRow{}
	causeIDs := make([]uint, 0, len(pairs))
	for _, pair := range pairs {
		if !pair.Prioritized {
			continue
		}
		causesByProblem[pair.ProblemID] = append(causesByProblem[pair.ProblemID], pair)
		causeIDs = append(causeIDs, pair.CauseID)
	}
	indicators, err := s.indicatorRepo.ListByCauseIDs(ctx, nil, dedupe(causeIDs))
	if err != nil {
		return nil, err
	}
	indicatorsByCause := map[uint][]types.CauseIndicator{}
	for _, ind := range indicators {
		indicatorsByCause[ind.CauseID] = append(indicatorsByCause[ind.CauseID], ind)
	}

	nodes := make([]types.DiagnosisProblemNode, 0, len(problems))
	for _, problem := range problems {
		node := types.DiagnosisProblemNode{
			ProblemID:   problem.ID,
			ProblemName: problem.Name,
			Content:     problemContent[problem.ID],
			Causes:      []types.DiagnosisCauseNode{},
		}
		for _, pair := range causesByProblem[problem.ID] {
			cnode := types.DiagnosisCauseNode{
				CauseID:    pair.CauseID,
				CauseName:  pair.CauseName,
				Indicators: []types.DiagnosisIndicatorNode{},
			}
			for _, ind := range indicatorsByCause[pair.CauseID] {
				cnode.Indicators = append(cnode.Indicators, types.DiagnosisIndicatorNode{
					CauseIndicatorID: ind.ID,
					IndicatorName:    ind.Name,
					Content:          indicatorContent[[2]uint{pair.CauseID, ind.ID}],
				})
			}
			node.Causes = append(node.Causes, cnode)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// SetTacticalDimension creates or updates the (plan, initiative) row and
// replaces its children wholesale. The initiative must currently be
// prioritized.
func (s *planService) SetTacticalDimension(ctx context.Context, input TacticalDimensionInput) (*types.TacticalDimension, error) {
	var result *types.TacticalDimension
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.requirePlan(ctx, tx, "tactical dimension")
		if err != nil {
			return err
		}
		if _, err := s.initRepo.GetByID(ctx, tx, input.InitiativeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("initiative_not_found", fmt.Errorf("initiative %d doesn't exist", input.InitiativeID))
			}
			return err
		}
		prioritized, err := s.initRepo.CountPrioritizations(ctx, tx, input.InitiativeID)
		if err != nil {
			return err
		}
		if prioritized == 0 {
			return apierr.BadRequest("not_prioritized",
				fmt.Errorf("initiative %d must be prioritized before planning its execution", input.InitiativeID))
		}
		if err := s.requireNeighborhoods(ctx, tx, input.NeighborhoodIDs); err != nil {
			return err
		}
		deptIDs := make([]uint, 0, len(input.DepartmentRoles))
		for _, r := range input.DepartmentRoles {
			deptIDs = append(deptIDs, r.DepartmentID)
		}
		if err := s.requireDepartments(ctx, tx, deptIDs); err != nil {
			return err
		}

		dim, err := s.tacticalRepo.GetByPlanAndInitiative(ctx, tx, plan.ID, input.InitiativeID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			dim = &types.TacticalDimension{PlanID: plan.ID, InitiativeID: input.InitiativeID}
		}
		dim.Diagnosis = input.Diagnosis
		dim.NeighborhoodIDs = datatypes.NewJSONSlice(dedupe(input.NeighborhoodIDs))
		dim.TargetGroups = datatypes.NewJSONSlice(trimAll(input.TargetGroups))
		dim.StartDate = input.StartDate
		dim.EndDate = input.EndDate
		dim.Cost = input.Cost

		if dim.ID == 0 {
			if dim, err = s.tacticalRepo.Create(ctx, tx, dim); err != nil {
				return err
			}
		} else if err := s.tacticalRepo.Update(ctx, tx, dim); err != nil {
			return err
		}

		goals := make([]types.TacticalGoal, 0, len(input.Goals))
		for _, g := range input.Goals {
			goals = append(goals, types.TacticalGoal{
				Description: g.Description,
				TargetValue: g.TargetValue,
				DueDate:     g.DueDate,
			})
		}
		roles := make([]types.TacticalDepartmentRole, 0, len(input.DepartmentRoles))
		for _, r := range input.DepartmentRoles {
			roles = append(roles, types.TacticalDepartmentRole{
				DepartmentID: r.DepartmentID,
				Role:         r.Role,
			})
		}
		if err := s.tacticalRepo.ReplaceChildren(ctx, tx, dim.ID, goals, roles); err != nil {
			return err
		}
		dim.Goals = goals
		dim.DepartmentRoles = roles
		result = dim
		return s.stampSection(ctx, tx, plan, sectionTactical)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *planService) TacticalDimension(ctx context.Context, initiativeID uint) (*types.TacticalDimension, error) {
	plan, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	dim, err := s.tacticalRepo.GetByPlanAndInitiative(ctx, nil, plan.ID, initiativeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("tactical_dimension_not_found",
				fmt.Errorf("initiative %d has no tactical dimension in the current plan", initiativeID))
		}
		return nil, err
	}
	return dim, nil
}

func (s *planService) TacticalDimensions(ctx context.Context) ([]types.TacticalDimension, error) {
	plan, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.tacticalRepo.ListByPlan(ctx, nil, plan.ID)
}

const (
	sectionDiagnosis = "diagnosis"
	sectionStrategic = "strategic"
	sectionTactical  = "tactical"
)

// requirePlan loads the current plan, failing plan-scoped writes with the
// front office's canonical message when none exists yet.
func (s *planService) requirePlan(ctx context.Context, tx *gorm.DB, entity string) (*types.Plan, error) {
	plan, err := s.planRepo.Current(ctx, tx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.BadRequest("plan_required",
				fmt.Errorf("Before creating a %s you must create a Plan", entity))
		}
		return nil, err
	}
	return plan, nil
}

func (s *planService) stampSection(ctx context.Context, tx *gorm.DB, plan *types.Plan, section string) error {
	now := time.Now()
	switch section {
	case sectionDiagnosis:
		plan.DiagnosisUpdatedAt = &now
	case sectionStrategic:
		plan.StrategicUpdatedAt = &now
	case sectionTactical:
		plan.TacticalUpdatedAt = &now
	}
	return s.planRepo.Update(ctx, tx, plan)
}

// prioritizedIndicators returns the cause indicators whose cause has at least
// one prioritized problem pairing, keyed by indicator id.
func (s *planService) prioritizedIndicators(ctx context.Context) (map[uint]types.CauseIndicator, error) {
	pairs, err := s.causeRepo.PrioritizationRows(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	causeIDs := make([]uint, 0, len(pairs))
	for _, pair := range pairs {
		if pair.Prioritized {
			causeIDs = append(causeIDs, pair.CauseID)
		}
	}
	indicators, err := s.indicatorRepo.ListByCauseIDs(ctx, nil, dedupe(causeIDs))
	if err != nil {
		return nil, err
	}
	out := make(map[uint]types.CauseIndicator, len(indicators))
	for _, ind := range indicators {
		out[ind.ID] = ind
	}
	return out, nil
}

func (s *planService) requireNeighborhoods(ctx context.Context, tx *gorm.DB, ids []uint) error {
	unique := dedupe(ids)
	found, err := s.lookupRepo.NeighborhoodsByIDs(ctx, tx, unique)
	if err != nil {
		return err
	}
	if len(found) != len(unique) {
		return apierr.BadRequest("neighborhood_not_found", fmt.Errorf("one or more referenced neighborhoods don't exist"))
	}
	return nil
}

func (s *planService) requireDepartments(ctx context.Context, tx *gorm.DB, ids []uint) error {
	unique := dedupe(ids)
	found, err := s.lookupRepo.DepartmentsByIDs(ctx, tx, unique)
	if err != nil {
		return err
	}
	if len(found) != len(unique) {
		return apierr.BadRequest("department_not_found", fmt.Errorf("one or more referenced departments don't exist"))
	}
	return nil
}

// progressPercent is round(100*filled/total) clamped to [0,100]; an empty
// denominator reports 0.
func progressPercent(filled, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(filled) / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
