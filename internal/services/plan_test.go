package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/repos"
	"github.com/citysafe/planning-backend/internal/types"
)

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		name   string
		filled int64
		total  int64
		want   int
	}{
		{"nothing to fill", 0, 0, 0},
		{"empty", 0, 5, 0},
		{"one third rounds down", 1, 3, 33},
		{"two thirds rounds up", 2, 3, 67},
		{"complete", 3, 3, 100},
		{"overfilled clamps", 5, 3, 100},
		{"half", 1, 2, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := progressPercent(tc.filled, tc.total); got != tc.want {
				t.Fatalf("progressPercent(%d, %d) = %d, want %d", tc.filled, tc.total, got, tc.want)
			}
		})
	}
}

func newPlanService(t *testing.T, gdb *gorm.DB) PlanService {
	t.Helper()
	log := newTestLogger(t)
	return NewPlanService(
		gdb,
		log,
		repos.NewPlanRepo(gdb, log),
		repos.NewProblemRepo(gdb, log),
		repos.NewCauseRepo(gdb, log),
		repos.NewCauseIndicatorRepo(gdb, log),
		repos.NewInitiativeRepo(gdb, log),
		repos.NewStrategicRepo(gdb, log),
		repos.NewDiagnosisRepo(gdb, log),
		repos.NewTacticalRepo(gdb, log),
		repos.NewLookupRepo(gdb, log),
	)
}

func TestPlanWritesRequireAPlan(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPlanService(t, gdb)
	ctx := context.Background()

	t.Run("diagnosis", func(t *testing.T) {
		err := svc.UpsertProblemDiagnoses(ctx, []ProblemDiagnosisInput{{ProblemID: 1, Content: "x"}})
		wantAPIError(t, err, 400, "plan_required")
		if !strings.Contains(err.Error(), "Before creating a diagnosis you must create a Plan") {
			t.Fatalf("unexpected message: %v", err)
		}
	})

	t.Run("tactical dimension", func(t *testing.T) {
		_, err := svc.SetTacticalDimension(ctx, TacticalDimensionInput{InitiativeID: 1})
		wantAPIError(t, err, 400, "plan_required")
		if !strings.Contains(err.Error(), "Before creating a tactical dimension you must create a Plan") {
			t.Fatalf("unexpected message: %v", err)
		}
	})

	t.Run("current plan lookup", func(t *testing.T) {
		_, err := svc.Current(ctx)
		wantAPIError(t, err, 404, "plan_not_found")
	})
}

func TestPlanBasicInfoProgress(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPlanService(t, gdb)
	ctx := context.Background()

	plan, err := svc.Create(ctx, PlanInput{Title: "  Citywide Safety Plan 2026  "})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if plan.Title != "Citywide Safety Plan 2026" {
		t.Fatalf("title not trimmed: %q", plan.Title)
	}
	if plan.BasicInfoUpdatedAt == nil {
		t.Fatal("creation must stamp the basic info section")
	}

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.BasicInfo.Progress != 33 {
		t.Fatalf("title-only progress = %d, want 33", status.BasicInfo.Progress)
	}
	if status.Diagnosis.Progress != 0 || status.Strategic.Progress != 0 || status.Tactical.Progress != 0 {
		t.Fatalf("empty sections must report 0, got %+v", status)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(3, 0, 0)
	if _, err := svc.UpdateBasicInfo(ctx, PlanInput{StartDate: &start, EndDate: &end}); err != nil {
		t.Fatalf("update basic info: %v", err)
	}

	status, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.BasicInfo.Progress != 100 {
		t.Fatalf("completed progress = %d, want 100", status.BasicInfo.Progress)
	}
	if status.Title != "Citywide Safety Plan 2026" {
		t.Fatalf("update without a title must keep it: %q", status.Title)
	}
}

func TestPlanDiagnosisProgress(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPlanService(t, gdb)
	ctx := context.Background()

	if _, err := svc.Create(ctx, PlanInput{Title: "Plan"}); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	one := types.Problem{Name: "Street robbery", Prioritized: true}
	two := types.Problem{Name: "Vandalism", Prioritized: true}
	for _, p := range []*types.Problem{&one, &two} {
		if err := gdb.Create(p).Error; err != nil {
			t.Fatalf("seed problem: %v", err)
		}
	}

	if err := svc.UpsertProblemDiagnoses(ctx, []ProblemDiagnosisInput{
		{ProblemID: one.ID, Content: "Concentrated around transit hubs after dark."},
	}); err != nil {
		t.Fatalf("upsert diagnosis: %v", err)
	}

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Diagnosis.Progress != 50 {
		t.Fatalf("diagnosis progress = %d, want 50", status.Diagnosis.Progress)
	}
	if status.Diagnosis.UpdatedAt == nil {
		t.Fatal("diagnosis write must stamp the section")
	}

	// writing again for the same problem must update, not double-count
	if err := svc.UpsertProblemDiagnoses(ctx, []ProblemDiagnosisInput{
		{ProblemID: one.ID, Content: "Revised text."},
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	status, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Diagnosis.Progress != 50 {
		t.Fatalf("upsert double-counted: progress = %d, want 50", status.Diagnosis.Progress)
	}
}
