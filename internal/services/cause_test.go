package services

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/storage"
	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

func TestNormalizeReferences(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"bare www gets a scheme", []string{"www.example.org/report"}, []string{"https://www.example.org/report"}},
		{"scheme kept as-is", []string{"http://example.org"}, []string{"http://example.org"}},
		{"trimmed and blanks dropped", []string{"  www.city.gov  ", "", "   "}, []string{"https://www.city.gov"}},
		{"empty input", nil, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeReferences(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("NormalizeReferences(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDiffIDs(t *testing.T) {
	cases := []struct {
		name       string
		existing   []uint
		requested  []uint
		wantAdd    []uint
		wantRemove []uint
	}{
		{"disjoint", []uint{1, 2}, []uint{3, 4}, []uint{3, 4}, []uint{1, 2}},
		{"identical", []uint{1, 2}, []uint{2, 1}, nil, nil},
		{"partial overlap", []uint{1, 2, 3}, []uint{2, 4}, []uint{4}, []uint{1, 3}},
		{"requested duplicates collapse", []uint{1}, []uint{2, 2, 2}, []uint{2}, []uint{1}},
		{"empty requested clears", []uint{5, 6}, nil, nil, []uint{5, 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			add, remove := diffIDs(tc.existing, tc.requested)
			if !reflect.DeepEqual(add, tc.wantAdd) || !reflect.DeepEqual(remove, tc.wantRemove) {
				t.Fatalf("diffIDs(%v, %v) = (%v, %v), want (%v, %v)",
					tc.existing, tc.requested, add, remove, tc.wantAdd, tc.wantRemove)
			}
		})
	}
}

func newCauseService(t *testing.T, gdb *gorm.DB) (CauseService, storage.AnnexStore, string) {
	t.Helper()
	log := newTestLogger(t)
	dir := t.TempDir()
	store, err := storage.NewAnnexStore(dir, log)
	if err != nil {
		t.Fatalf("annex store: %v", err)
	}
	svc := NewCauseService(
		gdb,
		log,
		repos.NewCauseRepo(gdb, log),
		repos.NewProblemRepo(gdb, log),
		repos.NewCauseIndicatorRepo(gdb, log),
		repos.NewInitiativeRepo(gdb, log),
		store,
		nil,
	)
	return svc, store, dir
}

func TestCauseCreateCustom(t *testing.T) {
	gdb := newTestDB(t)
	svc, _, dir := newCauseService(t, gdb)
	ctx := context.Background()
	userID := uuid.New()

	problem := types.Problem{Name: "Youth gang recruitment"}
	if err := gdb.Create(&problem).Error; err != nil {
		t.Fatalf("seed problem: %v", err)
	}

	input := CreateCauseInput{
		Name:        "School dropout rates",
		Description: "High dropout concentrations in the north zone",
		Evidences:   []string{"  2025 education census  "},
		References:  []string{"www.education.gov/census"},
		ProblemIDs:  []uint{problem.ID},
	}
	uploads := []AnnexUpload{{
		Filename: "census.pdf",
		Size:     9,
		Reader:   strings.NewReader("pdf bytes"),
	}}

	cause, err := svc.CreateCustom(ctx, input, uploads, userID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cause.Kind != types.CauseKindCustom {
		t.Fatalf("got kind %q, want %q", cause.Kind, types.CauseKindCustom)
	}
	if cause.CreatedBy == nil || *cause.CreatedBy != userID {
		t.Fatal("creator not recorded")
	}
	if got := []string(cause.References); !reflect.DeepEqual(got, []string{"https://www.education.gov/census"}) {
		t.Fatalf("references not normalized: %v", got)
	}
	if got := []string(cause.Evidences); !reflect.DeepEqual(got, []string{"2025 education census"}) {
		t.Fatalf("evidences not trimmed: %v", got)
	}

	var link types.CauseProblemLink
	if err := gdb.Where("cause_id = ? AND problem_id = ?", cause.ID, problem.ID).First(&link).Error; err != nil {
		t.Fatalf("link row missing: %v", err)
	}
	if link.Prioritized {
		t.Fatal("new association must start deprioritized")
	}

	var annex types.CauseAnnex
	if err := gdb.Where("cause_id = ?", cause.ID).First(&annex).Error; err != nil {
		t.Fatalf("annex row missing: %v", err)
	}
	if annex.Filename != "census.pdf" {
		t.Fatalf("got filename %q", annex.Filename)
	}
	raw, err := os.ReadFile(filepath.Join(dir, annex.StorageKey))
	if err != nil {
		t.Fatalf("annex file missing: %v", err)
	}
	if string(raw) != "pdf bytes" {
		t.Fatalf("annex content %q", raw)
	}

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := svc.CreateCustom(ctx, CreateCauseInput{Name: input.Name}, nil, userID)
		wantAPIError(t, err, 409, "name_taken")
	})

	t.Run("unknown problem rejected", func(t *testing.T) {
		_, err := svc.CreateCustom(ctx, CreateCauseInput{
			Name:       "Another cause",
			ProblemIDs: []uint{problem.ID + 99},
		}, nil, userID)
		wantAPIError(t, err, 400, "problem_not_found")

		var count int64
		if err := gdb.Model(&types.Cause{}).Where("name = ?", "Another cause").Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 0 {
			t.Fatal("failed create must roll back the cause row")
		}
	})
}

func TestCauseDeleteCustom(t *testing.T) {
	gdb := newTestDB(t)
	svc, _, dir := newCauseService(t, gdb)
	ctx := context.Background()

	problem := types.Problem{Name: "Home burglary"}
	if err := gdb.Create(&problem).Error; err != nil {
		t.Fatalf("seed problem: %v", err)
	}

	t.Run("default causes are immutable", func(t *testing.T) {
		code := "C-001"
		def := types.Cause{Kind: types.CauseKindDefault, Name: "Unemployment", Code: &code}
		if err := gdb.Create(&def).Error; err != nil {
			t.Fatalf("seed default cause: %v", err)
		}
		wantAPIError(t, svc.DeleteCustom(ctx, def.ID), 400, "default_immutable")
	})

	t.Run("prioritized association blocks deletion", func(t *testing.T) {
		userID := uuid.New()
		cause, err := svc.CreateCustom(ctx, CreateCauseInput{
			Name:       "Fencing networks",
			ProblemIDs: []uint{problem.ID},
		}, nil, userID)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := gdb.Model(&types.CauseProblemLink{}).
			Where("cause_id = ?", cause.ID).
			Update("prioritized", true).Error; err != nil {
			t.Fatalf("prioritize link: %v", err)
		}
		wantAPIError(t, svc.DeleteCustom(ctx, cause.ID), 400, "prioritized_in_use")
	})

	t.Run("delete removes links and annex files", func(t *testing.T) {
		userID := uuid.New()
		cause, err := svc.CreateCustom(ctx, CreateCauseInput{
			Name:       "Abandoned buildings",
			ProblemIDs: []uint{problem.ID},
		}, []AnnexUpload{{Filename: "photos.zip", Size: 5, Reader: strings.NewReader("zzzzz")}}, userID)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		var annex types.CauseAnnex
		if err := gdb.Where("cause_id = ?", cause.ID).First(&annex).Error; err != nil {
			t.Fatalf("annex row: %v", err)
		}

		if err := svc.DeleteCustom(ctx, cause.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}

		var count int64
		if err := gdb.Model(&types.CauseProblemLink{}).Where("cause_id = ?", cause.ID).Count(&count).Error; err != nil {
			t.Fatalf("count links: %v", err)
		}
		if count != 0 {
			t.Fatal("association rows survived deletion")
		}
		if _, err := os.Stat(filepath.Join(dir, annex.StorageKey)); !os.IsNotExist(err) {
			t.Fatalf("annex file survived deletion: %v", err)
		}
	})

	t.Run("unknown cause", func(t *testing.T) {
		wantAPIError(t, svc.DeleteCustom(ctx, 9999), 404, "cause_not_found")
	})
}
