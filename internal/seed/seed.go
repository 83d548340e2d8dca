package seed

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

// Loader imports the reference dataset from headered CSV files. Every insert
// is an upsert on the natural key (code or name), so re-running the seed
// against a populated database is a no-op.
type Loader struct {
	db  *gorm.DB
	log *logger.Logger
	dir string
}

func NewLoader(db *gorm.DB, baseLog *logger.Logger, dir string) *Loader {
	return &Loader{db: db, log: baseLog.With("component", "SeedLoader"), dir: dir}
}

// Run loads in three phases: independent base entities concurrently, then
// entities that reference them, then the association rows.
func (l *Loader) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.loadLookups(gctx) })
	g.Go(func() error { return l.loadProblems(gctx) })
	g.Go(func() error { return l.loadCauses(gctx) })
	g.Go(func() error { return l.loadInitiatives(gctx) })
	g.Go(func() error { return l.loadTaxonomy(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { return l.loadCauseIndicators(gctx) })
	g.Go(func() error { return l.loadProblemData(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { return l.loadCauseIndicatorData(gctx) })
	g.Go(func() error { return l.loadLinks(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	l.log.Info("seed complete", "dir", l.dir)
	return nil
}

func (l *Loader) loadLookups(ctx context.Context) error {
	for _, set := range []struct {
		file  string
		model func(name string) interface{}
	}{
		{"departments.csv", func(n string) interface{} { return &types.MunicipalDepartment{Name: n} }},
		{"neighborhoods.csv", func(n string) interface{} { return &types.Neighborhood{Name: n} }},
		{"outcomes.csv", func(n string) interface{} { return &types.InitiativeOutcome{Name: n} }},
	} {
		rows, err := readCSV(l.dir, set.file)
		if err != nil {
			return err
		}
		for _, row := range rows {
			name := row["name"]
			if name == "" {
				continue
			}
			if err := l.upsert(ctx, set.model(name)); err != nil {
				return err
			}
		}
		l.log.Info("seeded lookup", "file", set.file, "rows", len(rows))
	}
	return nil
}

func (l *Loader) loadProblems(ctx context.Context) error {
	rows, err := readCSV(l.dir, "problems.csv")
	if err != nil {
		return err
	}
	for _, row := range rows {
		code := row["code"]
		if code == "" || row["name"] == "" {
			continue
		}
		polarity := row["polarity"]
		if polarity == "" {
			polarity = types.PolarityNegative
		}
		problem := &types.Problem{
			Code:        &code,
			Name:        row["name"],
			Description: row["description"],
			Polarity:    polarity,
			IsDefault:   true,
		}
		if err := l.upsert(ctx, problem); err != nil {
			return err
		}
	}
	l.log.Info("seeded problems", "rows", len(rows))
	return nil
}

func (l *Loader) loadProblemData(ctx context.Context) error {
	rows, err := readCSV(l.dir, "problem_indicator_data.csv")
	if err != nil {
		return err
	}
	for _, row := range rows {
		period, err := intField(row["period"])
		if err != nil {
			return fmt.Errorf("seed: problem data period: %w", err)
		}
		data := &types.ProblemIndicatorData{
			ProblemCode:       row["problem_code"],
			Period:            period,
			Trend:             floatPtr(row["trend"]),
			Performance:       floatPtr(row["performance"]),
			RelativeFrequency: floatPtr(row["relative_frequency"]),
			HarmPotential:     floatPtr(row["harm_potential"]),
			CriticalityLevel:  floatPtr(row["criticality_level"]),
		}
		if raw := row["demographics"]; raw != "" {
			data.Demographics = datatypes.JSON(raw)
		}
		if err := l.upsert(ctx, data); err != nil {
			return err
		}
	}
	l.log.Info("seeded problem indicator data", "rows", len(rows))
	return nil
}

func (l *Loader) loadCauses(ctx context.Context) error {
	rows, err := readCSV(l.dir, "causes.csv")
	if err != nil {
		return err
	}
	for _, row := range rows {
		code := row["code"]
		if code == "" || row["name"] == "" {
			continue
		}
		cause := &types.Cause{
			Kind:        types.CauseKindDefault,
			Code:        &code,
			Name:        row["name"],
			Description: row["description"],
		}
		if err := l.upsert(ctx, cause); err != nil {
			return err
		}
	}
	l.log.Info("seeded causes", "rows", len(rows))
	return nil
}

func (l *Loader) loadCauseIndicators(ctx context.Context) error {
	rows, err := readCSV(l.dir, "cause_indicators.csv")
	if err != nil {
		return err
	}
	causeIDs, err := l.causeIDsByCode(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		causeID, ok := causeIDs[row["cause_code"]]
		if !ok {
			return fmt.Errorf("seed: cause indicator %q references unknown cause %q", row["code"], row["cause_code"])
		}
		indicator := &types.CauseIndicator{
			Code:    row["code"],
			Name:    row["name"],
			CauseID: causeID,
		}
		if err := l.upsert(ctx, indicator); err != nil {
			return err
		}
	}
	l.log.Info("seeded cause indicators", "rows", len(rows))
	return nil
}

func (l *Loader) loadCauseIndicatorData(ctx context.Context) error {
	rows, err := readCSV(l.dir, "cause_indicator_data.csv")
	if err != nil {
		return err
	}
	for _, row := range rows {
		period, err := intField(row["period"])
		if err != nil {
			return fmt.Errorf("seed: cause data period: %w", err)
		}
		data := &types.CauseIndicatorData{
			IndicatorCode: row["indicator_code"],
			Period:        period,
			Value:         floatPtr(row["value"]),
		}
		if raw := row["demographics"]; raw != "" {
			data.Demographics = datatypes.JSON(raw)
		}
		if err := l.upsert(ctx, data); err != nil {
			return err
		}
	}
	l.log.Info("seeded cause indicator data", "rows", len(rows))
	return nil
}

func (l *Loader) loadInitiatives(ctx context.Context) error {
	rows, err := readCSV(l.dir, "initiatives.csv")
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row["name"] == "" {
			continue
		}
		initiative := &types.Initiative{
			Name:        row["name"],
			Description: row["description"],
			IsDefault:   true,
		}
		if level, ok := types.CostLevels[row["cost_level"]]; ok {
			initiative.CostLevel = &level
		}
		if level, ok := types.EfficiencyLevels[row["efficiency_level"]]; ok {
			initiative.EfficiencyLevel = &level
		}
		if err := l.upsert(ctx, initiative); err != nil {
			return err
		}
	}
	l.log.Info("seeded initiatives", "rows", len(rows))
	return nil
}

func (l *Loader) loadTaxonomy(ctx context.Context) error {
	moRows, err := readCSV(l.dir, "macro_objectives.csv")
	if err != nil {
		return err
	}
	for _, row := range moRows {
		if row["name"] == "" {
			continue
		}
		if err := l.upsert(ctx, &types.MacroObjective{Name: row["name"]}); err != nil {
			return err
		}
	}

	focusRows, err := readCSV(l.dir, "focuses.csv")
	if err != nil {
		return err
	}
	if len(focusRows) > 0 {
		moIDs, err := l.idsByName(ctx, "macro_objective")
		if err != nil {
			return err
		}
		for _, row := range focusRows {
			moID, ok := moIDs[row["macro_objective_name"]]
			if !ok {
				return fmt.Errorf("seed: focus %q references unknown macro objective %q", row["name"], row["macro_objective_name"])
			}
			if err := l.upsert(ctx, &types.Focus{Name: row["name"], MacroObjectiveID: moID}); err != nil {
				return err
			}
		}
	}
	l.log.Info("seeded taxonomy", "macroObjectives", len(moRows), "focuses", len(focusRows))
	return nil
}

// loadLinks resolves natural keys to ids and writes the association rows.
func (l *Loader) loadLinks(ctx context.Context) error {
	causeIDs, err := l.causeIDsByCode(ctx)
	if err != nil {
		return err
	}
	problemIDs, err := l.problemIDsByCode(ctx)
	if err != nil {
		return err
	}

	cpRows, err := readCSV(l.dir, "cause_problem_links.csv")
	if err != nil {
		return err
	}
	for _, row := range cpRows {
		causeID, okC := causeIDs[row["cause_code"]]
		problemID, okP := problemIDs[row["problem_code"]]
		if !okC || !okP {
			return fmt.Errorf("seed: cause/problem link %q -> %q unresolved", row["cause_code"], row["problem_code"])
		}
		if err := l.upsert(ctx, &types.CauseProblemLink{CauseID: causeID, ProblemID: problemID}); err != nil {
			return err
		}
	}

	initiativeIDs, err := l.idsByName(ctx, "initiative")
	if err != nil {
		return err
	}
	tripleRows, err := readCSV(l.dir, "initiative_triples.csv")
	if err != nil {
		return err
	}
	for _, row := range tripleRows {
		initiativeID, okI := initiativeIDs[row["initiative_name"]]
		causeID, okC := causeIDs[row["cause_code"]]
		problemID, okP := problemIDs[row["problem_code"]]
		if !okI || !okC || !okP {
			return fmt.Errorf("seed: initiative triple %q/%q/%q unresolved",
				row["initiative_name"], row["cause_code"], row["problem_code"])
		}
		if err := l.upsert(ctx, &types.InitiativeCauseProblemLink{
			InitiativeID: initiativeID,
			CauseID:      causeID,
			ProblemID:    problemID,
		}); err != nil {
			return err
		}
	}

	outcomeIDs, err := l.idsByName(ctx, "initiative_outcome")
	if err != nil {
		return err
	}
	outcomeRows, err := readCSV(l.dir, "initiative_outcomes.csv")
	if err != nil {
		return err
	}
	for _, row := range outcomeRows {
		initiativeID, okI := initiativeIDs[row["initiative_name"]]
		outcomeID, okO := outcomeIDs[row["outcome_name"]]
		if !okI || !okO {
			return fmt.Errorf("seed: initiative outcome %q -> %q unresolved", row["initiative_name"], row["outcome_name"])
		}
		if err := l.upsert(ctx, &types.InitiativeOutcomeLink{InitiativeID: initiativeID, OutcomeID: outcomeID}); err != nil {
			return err
		}
	}

	moIDs, err := l.idsByName(ctx, "macro_objective")
	if err != nil {
		return err
	}
	moLinkRows, err := readCSV(l.dir, "macro_objective_problems.csv")
	if err != nil {
		return err
	}
	for _, row := range moLinkRows {
		moID, okM := moIDs[row["macro_objective_name"]]
		problemID, okP := problemIDs[row["problem_code"]]
		if !okM || !okP {
			return fmt.Errorf("seed: macro objective link %q -> %q unresolved", row["macro_objective_name"], row["problem_code"])
		}
		if err := l.upsert(ctx, &types.MacroObjectiveProblemLink{MacroObjectiveID: moID, ProblemID: problemID}); err != nil {
			return err
		}
	}

	focusLinkRows, err := readCSV(l.dir, "focus_indicators.csv")
	if err != nil {
		return err
	}
	if len(focusLinkRows) > 0 {
		focusIDs, err := l.idsByName(ctx, "focus")
		if err != nil {
			return err
		}
		indicatorIDs, err := l.indicatorIDsByCode(ctx)
		if err != nil {
			return err
		}
		for _, row := range focusLinkRows {
			focusID, okF := focusIDs[row["focus_name"]]
			indicatorID, okI := indicatorIDs[row["indicator_code"]]
			if !okF || !okI {
				return fmt.Errorf("seed: focus link %q -> %q unresolved", row["focus_name"], row["indicator_code"])
			}
			if err := l.upsert(ctx, &types.FocusCauseIndicatorLink{FocusID: focusID, CauseIndicatorID: indicatorID}); err != nil {
				return err
			}
		}
	}

	l.log.Info("seeded associations",
		"causeProblemLinks", len(cpRows),
		"initiativeTriples", len(tripleRows),
		"macroObjectiveLinks", len(moLinkRows),
		"focusLinks", len(focusLinkRows))
	return nil
}

func (l *Loader) upsert(ctx context.Context, row interface{}) error {
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

func (l *Loader) causeIDsByCode(ctx context.Context) (map[string]uint, error) {
	var rows []types.Cause
	if err := l.db.WithContext(ctx).Where("code IS NOT NULL").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		if r.Code != nil {
			out[*r.Code] = r.ID
		}
	}
	return out, nil
}

func (l *Loader) problemIDsByCode(ctx context.Context) (map[string]uint, error) {
	var rows []types.Problem
	if err := l.db.WithContext(ctx).Where("code IS NOT NULL").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		if r.Code != nil {
			out[*r.Code] = r.ID
		}
	}
	return out, nil
}

func (l *Loader) indicatorIDsByCode(ctx context.Context) (map[string]uint, error) {
	var rows []types.CauseIndicator
	if err := l.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		out[r.Code] = r.ID
	}
	return out, nil
}

// idsByName works for the small tables whose natural key is the name column.
func (l *Loader) idsByName(ctx context.Context, table string) (map[string]uint, error) {
	var rows []struct {
		ID   uint
		Name string
	}
	if err := l.db.WithContext(ctx).Table(table).Select("id", "name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		out[r.Name] = r.ID
	}
	return out, nil
}
