package store

import (
	"strings"
	"testing"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
)

func TestBuildPlanInsert(t *testing.T) {
	t.Parallel()

	p := &preset.Preset{Name: "sites", TargetTable: "Sites", Operation: preset.OpInsert}
	items := []map[string]any{
		{"lat": 12.5, "label": "Dock A"},
		{"lat": 13.0},
	}
	plan, err := BuildPlan(p, items)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Statements) != 2 {
		t.Fatalf("statements = %v", plan.Statements)
	}
	if !strings.HasPrefix(plan.Statements[0], `INSERT INTO "Sites" VALUE {`) {
		t.Fatalf("statement = %q", plan.Statements[0])
	}
	// Small items still cost a full unit each.
	if plan.CapacityUnits != 2 {
		t.Fatalf("capacity = %v, want 2", plan.CapacityUnits)
	}
	if plan.PayloadBytes == 0 {
		t.Fatalf("payload bytes = 0")
	}
}

func TestBuildPlanKeyedOperations(t *testing.T) {
	t.Parallel()

	p := &preset.Preset{
		Name:        "sites",
		TargetTable: "Sites",
		Operation:   preset.OpUpdate,
		Schema: []preset.SchemaField{
			{Name: "id", Type: "string"},
			{Name: "label"},
		},
	}
	items := []map[string]any{
		{"id": "x1", "label": "Dock A"},
		{"label": "keyless"},
	}
	plan, err := BuildPlan(p, items)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	want := `UPDATE "Sites" SET "label" = "Dock A" WHERE "id" = "x1"`
	if plan.Statements[0] != want {
		t.Fatalf("statement = %q, want %q", plan.Statements[0], want)
	}
	if len(plan.Statements) != 1 || len(plan.Warnings) != 1 {
		t.Fatalf("keyless item should warn, not plan: %+v", plan)
	}
	if plan.Keys[0] != "x1" || plan.Keys[1] != "" {
		t.Fatalf("keys = %v", plan.Keys)
	}

	p.Operation = preset.OpDelete
	plan, err = BuildPlan(p, items[:1])
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Statements[0] != `DELETE FROM "Sites" WHERE "id" = "x1"` {
		t.Fatalf("statement = %q", plan.Statements[0])
	}

	p.Operation = preset.OpSelect
	plan, err = BuildPlan(p, items[:1])
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Statements[0] != `SELECT * FROM "Sites" WHERE "id" = "x1"` {
		t.Fatalf("statement = %q", plan.Statements[0])
	}
}

func TestBuildPlanTargetIndexWins(t *testing.T) {
	t.Parallel()

	p := &preset.Preset{
		Name:        "sites",
		TargetTable: "Sites",
		TargetIndex: "serial",
		Operation:   preset.OpDelete,
		Schema:      []preset.SchemaField{{Name: "id"}},
	}
	plan, err := BuildPlan(p, []map[string]any{{"serial": 7.0, "id": "x"}})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Statements[0] != `DELETE FROM "Sites" WHERE "serial" = 7` {
		t.Fatalf("statement = %q", plan.Statements[0])
	}
	if plan.Keys[0] != "7" {
		t.Fatalf("key = %q", plan.Keys[0])
	}
}

func TestBuildPlanErrors(t *testing.T) {
	t.Parallel()

	if _, err := BuildPlan(nil, nil); err == nil {
		t.Fatalf("nil preset should fail")
	}
	p := &preset.Preset{Name: "x", Operation: preset.OpInsert}
	if _, err := BuildPlan(p, nil); err == nil {
		t.Fatalf("missing table should fail")
	}
	p = &preset.Preset{Name: "x", TargetTable: "T", Operation: preset.OpUpdate}
	if _, err := BuildPlan(p, nil); err == nil {
		t.Fatalf("keyless update preset should fail")
	}
}
