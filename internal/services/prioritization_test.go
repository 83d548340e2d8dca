package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/apierr"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

func newPrioritizationService(t *testing.T, gdb *gorm.DB) PrioritizationService {
	t.Helper()
	log := newTestLogger(t)
	return NewPrioritizationService(
		gdb,
		log,
		repos.NewProblemRepo(gdb, log),
		repos.NewCauseRepo(gdb, log),
		repos.NewInitiativeRepo(gdb, log),
		nil,
	)
}

func wantAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %d %s, got nil", status, code)
	}
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *apierr.Error, got %T: %v", err, err)
	}
	if apiErr.Status != status || apiErr.Code != code {
		t.Fatalf("got %d %s (%v), want %d %s", apiErr.Status, apiErr.Code, apiErr.Err, status, code)
	}
}

func TestSetCauseProblemPrioritization(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPrioritizationService(t, gdb)
	ctx := context.Background()

	related := types.Problem{Name: "Street robbery"}
	unrelated := types.Problem{Name: "Vehicle theft"}
	if err := gdb.Create(&related).Error; err != nil {
		t.Fatalf("seed problem: %v", err)
	}
	if err := gdb.Create(&unrelated).Error; err != nil {
		t.Fatalf("seed problem: %v", err)
	}
	cause := types.Cause{Kind: types.CauseKindCustom, Name: "Poor street lighting"}
	if err := gdb.Create(&cause).Error; err != nil {
		t.Fatalf("seed cause: %v", err)
	}
	link := types.CauseProblemLink{CauseID: cause.ID, ProblemID: related.ID}
	if err := gdb.Create(&link).Error; err != nil {
		t.Fatalf("seed link: %v", err)
	}

	t.Run("unrelated pair rejected", func(t *testing.T) {
		err := svc.SetCauseProblemPrioritization(ctx, []types.CausePrioritizationItem{{
			CauseID:                cause.ID,
			ProblemIDsToPrioritize: []uint{unrelated.ID},
		}})
		wantAPIError(t, err, 400, "not_related")
	})

	t.Run("related pair prioritized", func(t *testing.T) {
		err := svc.SetCauseProblemPrioritization(ctx, []types.CausePrioritizationItem{{
			CauseID:                cause.ID,
			ProblemIDsToPrioritize: []uint{related.ID},
		}})
		if err != nil {
			t.Fatalf("prioritize: %v", err)
		}
		var got types.CauseProblemLink
		if err := gdb.Where("cause_id = ? AND problem_id = ?", cause.ID, related.ID).First(&got).Error; err != nil {
			t.Fatalf("reload link: %v", err)
		}
		if !got.Prioritized {
			t.Fatal("link not flagged prioritized")
		}
	})

	t.Run("re-prioritizing is idempotent", func(t *testing.T) {
		err := svc.SetCauseProblemPrioritization(ctx, []types.CausePrioritizationItem{{
			CauseID:                cause.ID,
			ProblemIDsToPrioritize: []uint{related.ID},
		}})
		if err != nil {
			t.Fatalf("second prioritize: %v", err)
		}
	})

	t.Run("batch aborts atomically", func(t *testing.T) {
		err := svc.SetCauseProblemPrioritization(ctx, []types.CausePrioritizationItem{{
			CauseID:                  cause.ID,
			ProblemIDsToDeprioritize: []uint{related.ID},
		}, {
			CauseID:                cause.ID,
			ProblemIDsToPrioritize: []uint{unrelated.ID},
		}})
		wantAPIError(t, err, 400, "not_related")

		var got types.CauseProblemLink
		if err := gdb.Where("cause_id = ? AND problem_id = ?", cause.ID, related.ID).First(&got).Error; err != nil {
			t.Fatalf("reload link: %v", err)
		}
		if !got.Prioritized {
			t.Fatal("failed batch must not apply its earlier items")
		}
	})
}

func TestSetProblemPrioritizationUnknownID(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPrioritizationService(t, gdb)
	ctx := context.Background()

	p := types.Problem{Name: "Domestic violence"}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("seed problem: %v", err)
	}

	err := svc.SetProblemPrioritization(ctx, []uint{p.ID, p.ID + 100}, true)
	wantAPIError(t, err, 404, "problem_not_found")

	var got types.Problem
	if err := gdb.First(&got, p.ID).Error; err != nil {
		t.Fatalf("reload problem: %v", err)
	}
	if got.Prioritized {
		t.Fatal("partial batch must not be applied")
	}
}

func TestSetInitiativePrioritization(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPrioritizationService(t, gdb)
	ctx := context.Background()

	problem := types.Problem{Name: "Gun violence"}
	if err := gdb.Create(&problem).Error; err != nil {
		t.Fatalf("seed problem: %v", err)
	}
	cause := types.Cause{Kind: types.CauseKindCustom, Name: "Illegal firearms circulation"}
	if err := gdb.Create(&cause).Error; err != nil {
		t.Fatalf("seed cause: %v", err)
	}
	if err := gdb.Create(&types.CauseProblemLink{CauseID: cause.ID, ProblemID: problem.ID}).Error; err != nil {
		t.Fatalf("seed link: %v", err)
	}
	initiative := types.Initiative{Name: "Firearms buy-back program"}
	if err := gdb.Create(&initiative).Error; err != nil {
		t.Fatalf("seed initiative: %v", err)
	}
	if err := gdb.Create(&types.InitiativeCauseLink{InitiativeID: initiative.ID, CauseID: cause.ID}).Error; err != nil {
		t.Fatalf("seed initiative link: %v", err)
	}

	triple := types.InitiativeTriple{InitiativeID: initiative.ID, CauseID: cause.ID, ProblemID: problem.ID}

	t.Run("requires prioritized pair", func(t *testing.T) {
		err := svc.SetInitiativePrioritization(ctx, []types.InitiativeTriple{triple}, nil)
		wantAPIError(t, err, 400, "pair_not_prioritized")
	})

	t.Run("unknown triple rejected", func(t *testing.T) {
		bogus := types.InitiativeTriple{InitiativeID: initiative.ID, CauseID: cause.ID, ProblemID: problem.ID + 50}
		err := svc.SetInitiativePrioritization(ctx, []types.InitiativeTriple{bogus}, nil)
		wantAPIError(t, err, 400, "not_related")
	})

	if err := svc.SetCauseProblemPrioritization(ctx, []types.CausePrioritizationItem{{
		CauseID:                cause.ID,
		ProblemIDsToPrioritize: []uint{problem.ID},
	}}); err != nil {
		t.Fatalf("prioritize pair: %v", err)
	}

	t.Run("prioritized pair accepts the triple", func(t *testing.T) {
		if err := svc.SetInitiativePrioritization(ctx, []types.InitiativeTriple{triple}, nil); err != nil {
			t.Fatalf("prioritize triple: %v", err)
		}
		var count int64
		if err := gdb.Model(&types.InitiativePrioritization{}).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Fatalf("got %d prioritization rows, want 1", count)
		}
	})

	t.Run("re-prioritizing is idempotent", func(t *testing.T) {
		if err := svc.SetInitiativePrioritization(ctx, []types.InitiativeTriple{triple}, nil); err != nil {
			t.Fatalf("second prioritize: %v", err)
		}
		var count int64
		if err := gdb.Model(&types.InitiativePrioritization{}).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Fatalf("got %d prioritization rows, want 1", count)
		}
	})

	t.Run("deprioritize removes the row", func(t *testing.T) {
		if err := svc.SetInitiativePrioritization(ctx, nil, []types.InitiativeTriple{triple}); err != nil {
			t.Fatalf("deprioritize: %v", err)
		}
		var count int64
		if err := gdb.Model(&types.InitiativePrioritization{}).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 0 {
			t.Fatalf("got %d prioritization rows, want 0", count)
		}
	})

	t.Run("deprioritizing an absent row is a no-op", func(t *testing.T) {
		if err := svc.SetInitiativePrioritization(ctx, nil, []types.InitiativeTriple{triple}); err != nil {
			t.Fatalf("deprioritize absent: %v", err)
		}
	})
}

func TestInitiativeAssociationTree(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPrioritizationService(t, gdb)
	ctx := context.Background()

	p1 := types.Problem{Name: "Burglary", Prioritized: true}
	p2 := types.Problem{Name: "Vandalism", Prioritized: true}
	for _, p := range []*types.Problem{&p1, &p2} {
		if err := gdb.Create(p).Error; err != nil {
			t.Fatalf("seed problem: %v", err)
		}
	}
	cause := types.Cause{Kind: types.CauseKindCustom, Name: "Abandoned buildings"}
	if err := gdb.Create(&cause).Error; err != nil {
		t.Fatalf("seed cause: %v", err)
	}
	for _, pid := range []uint{p1.ID, p2.ID} {
		if err := gdb.Create(&types.CauseProblemLink{CauseID: cause.ID, ProblemID: pid, Prioritized: true}).Error; err != nil {
			t.Fatalf("seed link: %v", err)
		}
	}
	patrols := types.Initiative{Name: "Neighborhood patrols"}
	demolition := types.Initiative{Name: "Building demolition fund", IsDefault: true}
	for _, i := range []*types.Initiative{&patrols, &demolition} {
		if err := gdb.Create(i).Error; err != nil {
			t.Fatalf("seed initiative: %v", err)
		}
	}
	if err := gdb.Create(&types.InitiativeCauseLink{InitiativeID: patrols.ID, CauseID: cause.ID}).Error; err != nil {
		t.Fatalf("seed cause link: %v", err)
	}
	if err := gdb.Create(&types.InitiativeCauseProblemLink{
		InitiativeID: demolition.ID, CauseID: cause.ID, ProblemID: p1.ID,
	}).Error; err != nil {
		t.Fatalf("seed triple link: %v", err)
	}
	if err := svc.SetInitiativePrioritization(ctx, []types.InitiativeTriple{
		{InitiativeID: patrols.ID, CauseID: cause.ID, ProblemID: p1.ID},
	}, nil); err != nil {
		t.Fatalf("prioritize triple: %v", err)
	}

	tree, err := svc.InitiativeAssociationTree(ctx, []uint{patrols.ID, demolition.ID})
	if err != nil {
		t.Fatalf("association tree: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("got %d initiatives, want 2", len(tree))
	}
	first := tree[0]
	if first.InitiativeID != patrols.ID || len(first.Causes) != 1 {
		t.Fatalf("unexpected first node: %+v", first)
	}
	if got := first.Causes[0]; got.CauseID != cause.ID || len(got.Problems) != 2 {
		t.Fatalf("cause link must expand to both prioritized pairs: %+v", got)
	}
	byProblem := map[uint]bool{}
	for _, p := range first.Causes[0].Problems {
		byProblem[p.ProblemID] = p.Prioritized
	}
	if !byProblem[p1.ID] || byProblem[p2.ID] {
		t.Fatalf("triple flags wrong: %v", byProblem)
	}
	second := tree[1]
	if second.InitiativeID != demolition.ID || len(second.Causes) != 1 || len(second.Causes[0].Problems) != 1 {
		t.Fatalf("unexpected second node: %+v", second)
	}
	if second.Causes[0].Problems[0].Prioritized {
		t.Fatal("unprioritized triple must not be flagged")
	}

	empty, err := svc.InitiativeAssociationTree(ctx, nil)
	if err != nil {
		t.Fatalf("empty request: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("got %d nodes for empty request, want 0", len(empty))
	}
}
