package purge

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestPlanRootDeletion_Order tests that children are always deleted before
// the rows they reference.
func TestPlanRootDeletion_Order(t *testing.T) {
	plan := PlanRootDeletion(RootKeys{
		RootUUID:       "root",
		ComponentUUIDs: []string{"file", "dir"},
		AnalysisUUIDs:  []string{"a1"},
		TaskUUIDs:      []string{"t1"},
		IssueKeys:      []string{"i1"},
		WebhookUUIDs:   []string{"w1"},
	})

	expected := []Entity{
		EntityEventComponentChanges,
		EntityEvents,
		EntityCeTaskInput,
		EntityCeScannerContext,
		EntityCeTaskCharacteristics,
		EntityCeTaskMessage,
		EntityCeActivity,
		EntityCeQueue,
		EntityIssueChanges,
		EntityIssues,
		EntityFileSources,
		EntityLiveMeasures,
		EntityDuplicationsIndex,
		EntityProjectMeasures,
		EntityManualMeasures,
		EntityWebhookDeliveries,
		EntityWebhookDeliveries,
		EntityWebhooks,
		EntityAlmBindings,
		EntityProjectMappings,
		EntityProjectLinks,
		EntityProperties,
		EntityNewCodePeriods,
		EntityNewCodePeriods,
		EntityProjectBranches,
		EntitySnapshots,
		EntityComponents,
		EntityProjects,
		EntityComponents,
	}
	if got := plan.Entities(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("Expected entities %v, got %v", expected, got)
	}

	// Pairs of (child, parent) positions that must hold.
	position := func(entity Entity, column string) int {
		for i, s := range plan.Steps {
			if s.Entity == entity && s.Selector.Column == column {
				return i
			}
		}
		t.Fatalf("Step %s.%s not found", entity, column)
		return -1
	}
	orderings := []struct {
		child, parent       Entity
		childCol, parentCol string
	}{
		{EntityEventComponentChanges, EntityEvents, "event_analysis_uuid", "analysis_uuid"},
		{EntityEvents, EntitySnapshots, "analysis_uuid", "uuid"},
		{EntityIssueChanges, EntityIssues, "issue_key", "kee"},
		{EntityWebhookDeliveries, EntityWebhooks, "webhook_uuid", "uuid"},
		{EntityProjectBranches, EntityComponents, "uuid", "uuid"},
		{EntityProjectMeasures, EntitySnapshots, "analysis_uuid", "uuid"},
		{EntitySnapshots, EntityComponents, "uuid", "uuid"},
	}
	for _, o := range orderings {
		if position(o.child, o.childCol) >= position(o.parent, o.parentCol) {
			t.Errorf("Expected %s before %s", o.child, o.parent)
		}
	}

	last := plan.Steps[len(plan.Steps)-1]
	if last.Entity != EntityComponents || !reflect.DeepEqual(last.Selector.Keys, []string{"root"}) {
		t.Errorf("Expected root component to be deleted last, got %s %v", last.Entity, last.Selector.Keys)
	}

	// Descendants keep their deepest-first order.
	for _, s := range plan.Steps {
		if s.Entity == EntityComponents && len(s.Selector.Keys) == 2 {
			if !reflect.DeepEqual(s.Selector.Keys, []string{"file", "dir"}) {
				t.Errorf("Expected descendants in given order, got %v", s.Selector.Keys)
			}
		}
	}
}

// TestPlanAnalysesDeletion_Order tests the analysis deletion order.
func TestPlanAnalysesDeletion_Order(t *testing.T) {
	plan := PlanAnalysesDeletion([]string{"a1"})
	expected := []Entity{
		EntityEventComponentChanges,
		EntityEvents,
		EntityDuplicationsIndex,
		EntityProjectMeasures,
		EntitySnapshots,
	}
	if got := plan.Entities(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected entities %v, got %v", expected, got)
	}
}

// TestPlanComponentsDeletion tests that every row keyed by a deleted
// component, its analyses included, goes before the component.
func TestPlanComponentsDeletion(t *testing.T) {
	plan := PlanComponentsDeletion([]string{"m1"}, []string{"a1"})

	expected := []Entity{
		EntityEventComponentChanges,
		EntityEvents,
		EntityDuplicationsIndex,
		EntityProjectMeasures,
		EntitySnapshots,
		EntityProjectMeasures,
		EntityProperties,
		EntityManualMeasures,
		EntityLiveMeasures,
		EntityFileSources,
		EntityComponents,
	}
	if got := plan.Entities(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("Expected entities %v, got %v", expected, got)
	}

	last := plan.Steps[len(plan.Steps)-1]
	if !reflect.DeepEqual(last.Selector.Keys, []string{"m1"}) {
		t.Errorf("Expected components step keyed by m1, got %v", last.Selector.Keys)
	}
	if got := PlanComponentsDeletion([]string{"m1"}, nil); got.Steps[4].Entity != EntitySnapshots || len(got.Steps[4].Selector.Keys) != 0 {
		t.Errorf("Expected an empty snapshots step without analyses, got %+v", got.Steps[4])
	}
}

// TestPlanViewComponentsDeletion_Order tests that analyses of view
// components go before the components.
func TestPlanViewComponentsDeletion_Order(t *testing.T) {
	plan := PlanViewComponentsDeletion([]string{"sv", "pc"}, []string{"sv"}, []string{"a1"})

	expected := []Entity{
		EntityProperties,
		EntityManualMeasures,
		EntityProjectMeasures,
		EntityEventComponentChanges,
		EntityEvents,
		EntityDuplicationsIndex,
		EntityProjectMeasures,
		EntitySnapshots,
		EntityComponents,
	}
	if got := plan.Entities(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected entities %v, got %v", expected, got)
	}
}

// TestPlanDisable tests the disable plan closes issues and never touches
// historical measures.
func TestPlanDisable(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	plan := PlanDisable([]string{"f1"}, now)

	expected := []Entity{EntityIssues, EntityFileSources, EntityLiveMeasures, EntityComponents}
	if got := plan.Entities(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("Expected entities %v, got %v", expected, got)
	}

	closeStep := plan.Steps[0]
	if closeStep.Transform == nil {
		t.Fatal("Expected issue step to be an update")
	}
	wantQuery := "UPDATE issues SET status = ?, resolution = ?, issue_close_date = ?, updated_at = ? WHERE component_uuid IN (?) AND status IN (?)"
	if got := closeStep.Query(); got != wantQuery {
		t.Errorf("Expected query %q, got %q", wantQuery, got)
	}
	if got := closeStep.ExtraParams(); got != 7 {
		t.Errorf("Expected 7 extra params, got %d", got)
	}

	for _, s := range plan.Steps {
		if s.Entity == EntityProjectMeasures {
			t.Error("Expected disable plan to keep historical measures")
		}
	}
}

// TestStep_Query tests statement rendering.
func TestStep_Query(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{
			name: "delete",
			step: Step{Entity: EntityEvents, Selector: Selector{Column: "analysis_uuid"}},
			want: "DELETE FROM events WHERE analysis_uuid IN (?)",
		},
		{
			name: "delete with predicate",
			step: Step{Entity: EntityProjectMeasures, Selector: Selector{Column: "analysis_uuid", Where: "metric_uuid = ?", Args: []any{"m"}}},
			want: "DELETE FROM project_measures WHERE analysis_uuid IN (?) AND metric_uuid = ?",
		},
		{
			name: "update",
			step: Step{Entity: EntitySnapshots, Selector: Selector{Column: "uuid"}, Transform: &Transform{Set: "purge_status = 1"}},
			want: "UPDATE snapshots SET purge_status = 1 WHERE uuid IN (?)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.Query(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestPlanHistoricalDataDeletion_ExtraParams tests that scope lists count
// towards the parameter budget.
func TestPlanHistoricalDataDeletion_ExtraParams(t *testing.T) {
	plan := PlanHistoricalDataDeletion([]string{"a1"}, "root", []string{"DIRECTORY", "FILE"})
	if len(plan.Steps) != 1 {
		t.Fatalf("Expected 1 step, got %d", len(plan.Steps))
	}
	if got := plan.Steps[0].ExtraParams(); got != 4 {
		t.Errorf("Expected 4 extra params, got %d", got)
	}
	if !strings.Contains(plan.Steps[0].Query(), "delete_historical_data = 1") {
		t.Errorf("Expected query to filter flagged metrics, got %q", plan.Steps[0].Query())
	}
}

// TestPlan_Empty tests empty detection.
func TestPlan_Empty(t *testing.T) {
	if !PlanAnalysesDeletion(nil).Empty() {
		t.Error("Expected plan without keys to be empty")
	}
	if PlanAnalysesDeletion([]string{"a"}).Empty() {
		t.Error("Expected plan with keys not to be empty")
	}
}
