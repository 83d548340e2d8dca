package repos

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/types"
)

// Exercises the consolidated association relation: default initiatives enter
// through pre-denormalized triples, custom ones through cause links expanded
// via cause_problem_link, and both are filtered by the pair and problem
// prioritization flags.
func seedInitiativeGraph(t *testing.T, gdb *gorm.DB) (defInit, customInit, coldInit types.Initiative) {
	t.Helper()

	hot := types.Problem{Name: "Street robbery", Prioritized: true}
	cold := types.Problem{Name: "Vandalism"}
	for _, p := range []*types.Problem{&hot, &cold} {
		if err := gdb.Create(p).Error; err != nil {
			t.Fatalf("seed problem: %v", err)
		}
	}

	lighting := types.Cause{Kind: types.CauseKindCustom, Name: "Poor lighting"}
	truancy := types.Cause{Kind: types.CauseKindCustom, Name: "School truancy"}
	for _, c := range []*types.Cause{&lighting, &truancy} {
		if err := gdb.Create(c).Error; err != nil {
			t.Fatalf("seed cause: %v", err)
		}
	}
	links := []types.CauseProblemLink{
		{CauseID: lighting.ID, ProblemID: hot.ID, Prioritized: true},
		{CauseID: truancy.ID, ProblemID: cold.ID, Prioritized: true}, // problem not prioritized
	}
	if err := gdb.Create(&links).Error; err != nil {
		t.Fatalf("seed links: %v", err)
	}

	defInit = types.Initiative{Name: "Patrol reinforcement", IsDefault: true}
	customInit = types.Initiative{Name: "Lighting retrofit"}
	coldInit = types.Initiative{Name: "Truancy program"}
	for _, i := range []*types.Initiative{&defInit, &customInit, &coldInit} {
		if err := gdb.Create(i).Error; err != nil {
			t.Fatalf("seed initiative: %v", err)
		}
	}

	if err := gdb.Create(&types.InitiativeCauseProblemLink{
		InitiativeID: defInit.ID, CauseID: lighting.ID, ProblemID: hot.ID,
	}).Error; err != nil {
		t.Fatalf("seed triple: %v", err)
	}
	if err := gdb.Create(&types.InitiativeCauseLink{
		InitiativeID: customInit.ID, CauseID: lighting.ID,
	}).Error; err != nil {
		t.Fatalf("seed cause link: %v", err)
	}
	if err := gdb.Create(&types.InitiativeCauseProblemLink{
		InitiativeID: coldInit.ID, CauseID: truancy.ID, ProblemID: cold.ID,
	}).Error; err != nil {
		t.Fatalf("seed cold triple: %v", err)
	}
	return defInit, customInit, coldInit
}

func TestInitiativeList(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewInitiativeRepo(gdb, newTestLogger(t))
	ctx := context.Background()
	defInit, customInit, coldInit := seedInitiativeGraph(t, gdb)

	rows, total, err := repo.List(ctx, nil, types.PageRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("got total=%d rows=%d, want 2 and 2", total, len(rows))
	}
	byID := make(map[uint]types.InitiativeListItem, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	if _, ok := byID[coldInit.ID]; ok {
		t.Fatal("initiative without a prioritized association must not be listed")
	}
	for _, id := range []uint{defInit.ID, customInit.ID} {
		row, ok := byID[id]
		if !ok {
			t.Fatalf("initiative %d missing from listing", id)
		}
		if row.TotalCauseCount != 1 || row.TotalProblemCount != 1 {
			t.Fatalf("initiative %d counts = %d/%d, want 1/1", id, row.TotalCauseCount, row.TotalProblemCount)
		}
		if row.Prioritized {
			t.Fatalf("initiative %d must start deprioritized", id)
		}
	}

	t.Run("search narrows by name", func(t *testing.T) {
		rows, total, err := repo.List(ctx, nil, types.PageRequest{Search: "LIGHTING"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 1 || len(rows) != 1 || rows[0].ID != customInit.ID {
			t.Fatalf("search returned %v (total %d)", rows, total)
		}
	})
}

func TestInitiativePrioritizedFilter(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewInitiativeRepo(gdb, newTestLogger(t))
	ctx := context.Background()
	defInit, customInit, _ := seedInitiativeGraph(t, gdb)

	triples, err := repo.AssocTriples(ctx, nil, []uint{defInit.ID})
	if err != nil {
		t.Fatalf("assoc: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("got %d assoc triples, want 1", len(triples))
	}
	if err := repo.UpsertPrioritizations(ctx, nil, []types.InitiativePrioritization{{
		InitiativeID: triples[0].InitiativeID,
		CauseID:      triples[0].CauseID,
		ProblemID:    triples[0].ProblemID,
	}}); err != nil {
		t.Fatalf("prioritize: %v", err)
	}

	yes, no := true, false
	rows, total, err := repo.List(ctx, nil, types.PageRequest{Prioritized: &yes})
	if err != nil {
		t.Fatalf("list prioritized: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != defInit.ID {
		t.Fatalf("prioritized filter returned %v (total %d)", rows, total)
	}
	if !rows[0].Prioritized || rows[0].PrioritizedTripleCount != 1 {
		t.Fatalf("row flags wrong: %+v", rows[0])
	}

	rows, total, err = repo.List(ctx, nil, types.PageRequest{Prioritized: &no})
	if err != nil {
		t.Fatalf("list deprioritized: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != customInit.ID {
		t.Fatalf("deprioritized filter returned %v (total %d)", rows, total)
	}

	summary, err := repo.Summary(ctx, nil)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Total != 3 || summary.TotalPrioritized != 1 || summary.TotalRelevant != 2 {
		t.Fatalf("summary = %+v, want total 3, prioritized 1, relevant 2", summary)
	}
}

func TestAssocTriplesExpandsCauseLinks(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewInitiativeRepo(gdb, newTestLogger(t))
	ctx := context.Background()
	_, customInit, _ := seedInitiativeGraph(t, gdb)

	triples, err := repo.AssocTriples(ctx, nil, []uint{customInit.ID})
	if err != nil {
		t.Fatalf("assoc: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("got %d triples, want 1", len(triples))
	}
	if triples[0].InitiativeID != customInit.ID {
		t.Fatalf("wrong initiative in triple: %+v", triples[0])
	}
}
