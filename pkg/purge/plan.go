package purge

import (
	"fmt"
	"strings"
	"time"
)

// Entity is a table the engine deletes from or updates.
type Entity string

// Entities, listed in the order a root deletion visits them.
const (
	EntityEventComponentChanges Entity = "event_component_changes"
	EntityEvents                Entity = "events"
	EntityCeTaskInput           Entity = "ce_task_input"
	EntityCeScannerContext      Entity = "ce_scanner_context"
	EntityCeTaskCharacteristics Entity = "ce_task_characteristics"
	EntityCeTaskMessage         Entity = "ce_task_message"
	EntityCeActivity            Entity = "ce_activity"
	EntityCeQueue               Entity = "ce_queue"
	EntityIssueChanges          Entity = "issue_changes"
	EntityIssues                Entity = "issues"
	EntityFileSources           Entity = "file_sources"
	EntityLiveMeasures          Entity = "live_measures"
	EntityDuplicationsIndex     Entity = "duplications_index"
	EntityProjectMeasures       Entity = "project_measures"
	EntityManualMeasures        Entity = "manual_measures"
	EntityWebhookDeliveries     Entity = "webhook_deliveries"
	EntityWebhooks              Entity = "webhooks"
	EntityAlmBindings           Entity = "project_alm_bindings"
	EntityProjectMappings       Entity = "project_mappings"
	EntityProjectLinks          Entity = "project_links"
	EntityProperties            Entity = "properties"
	EntityNewCodePeriods        Entity = "new_code_periods"
	EntityProjectBranches       Entity = "project_branches"
	EntityComponents            Entity = "components"
	EntitySnapshots             Entity = "snapshots"
	EntityProjects              Entity = "projects"
)

// Selector picks the rows of a step: Column IN Keys, optionally narrowed by
// Where, whose placeholders are bound to Args.
type Selector struct {
	Column string
	Keys   []string
	Where  string
	Args   []any
}

// Transform turns a step into an UPDATE. Set is the SET clause and its
// placeholders are bound to Args.
type Transform struct {
	Set  string
	Args []any
}

// Step is one statement shape of a plan, executed once per key chunk.
type Step struct {
	Name      string
	Entity    Entity
	Selector  Selector
	Transform *Transform
}

// Query renders the statement with a single IN placeholder for sqlx.In.
func (s Step) Query() string {
	var b strings.Builder
	if s.Transform != nil {
		fmt.Fprintf(&b, "UPDATE %s SET %s", s.Entity, s.Transform.Set)
	} else {
		fmt.Fprintf(&b, "DELETE FROM %s", s.Entity)
	}
	fmt.Fprintf(&b, " WHERE %s IN (?)", s.Selector.Column)
	if s.Selector.Where != "" {
		b.WriteString(" AND ")
		b.WriteString(s.Selector.Where)
	}
	return b.String()
}

// args returns the statement arguments around the key chunk, in
// placeholder order.
func (s Step) args(chunk []string) []any {
	var args []any
	if s.Transform != nil {
		args = append(args, s.Transform.Args...)
	}
	args = append(args, chunk)
	return append(args, s.Selector.Args...)
}

// ExtraParams counts the bound parameters besides the keys, with slice
// arguments counted element by element as sqlx.In expands them.
func (s Step) ExtraParams() int {
	n := 0
	count := func(args []any) {
		for _, a := range args {
			switch v := a.(type) {
			case []string:
				n += len(v)
			case []any:
				n += len(v)
			default:
				n++
			}
		}
	}
	if s.Transform != nil {
		count(s.Transform.Args)
	}
	count(s.Selector.Args)
	return n
}

// Plan is an ordered list of steps. Children always come before the rows
// they reference.
type Plan struct {
	Name  string
	Steps []Step
}

// Entities lists the entity of every step, in order.
func (p Plan) Entities() []Entity {
	entities := make([]Entity, len(p.Steps))
	for i, s := range p.Steps {
		entities[i] = s.Entity
	}
	return entities
}

// Empty reports whether no step has keys.
func (p Plan) Empty() bool {
	for _, s := range p.Steps {
		if len(s.Selector.Keys) > 0 {
			return false
		}
	}
	return true
}

type planBuilder struct {
	plan Plan
}

func newPlan(name string) *planBuilder {
	return &planBuilder{plan: Plan{Name: name}}
}

func (b *planBuilder) add(entity Entity, sel Selector, tr *Transform) *planBuilder {
	b.plan.Steps = append(b.plan.Steps, Step{
		Name:      fmt.Sprintf("%s (%s.%s)", b.plan.Name, entity, sel.Column),
		Entity:    entity,
		Selector:  sel,
		Transform: tr,
	})
	return b
}

func (b *planBuilder) delete(entity Entity, column string, keys []string) *planBuilder {
	return b.add(entity, Selector{Column: column, Keys: keys}, nil)
}

func (b *planBuilder) deleteWhere(entity Entity, column string, keys []string, where string, args ...any) *planBuilder {
	return b.add(entity, Selector{Column: column, Keys: keys, Where: where, Args: args}, nil)
}

func (b *planBuilder) update(entity Entity, column string, keys []string, tr Transform, where string, args ...any) *planBuilder {
	return b.add(entity, Selector{Column: column, Keys: keys, Where: where, Args: args}, &tr)
}

func (b *planBuilder) build() Plan {
	return b.plan
}

// RootKeys are the key sets a root deletion works on, resolved before the
// first statement runs.
type RootKeys struct {
	RootUUID       string
	ComponentUUIDs []string // non-root components, deepest first
	AnalysisUUIDs  []string
	TaskUUIDs      []string // CE queue and activity
	IssueKeys      []string
	WebhookUUIDs   []string
}

// PlanRootDeletion deletes a root component, its subtree and every record
// referencing them.
func PlanRootDeletion(k RootKeys) Plan {
	root := []string{k.RootUUID}
	all := append(append([]string{}, k.ComponentUUIDs...), k.RootUUID)

	return newPlan("deleteRootComponent").
		delete(EntityEventComponentChanges, "event_analysis_uuid", k.AnalysisUUIDs).
		delete(EntityEvents, "analysis_uuid", k.AnalysisUUIDs).
		delete(EntityCeTaskInput, "task_uuid", k.TaskUUIDs).
		delete(EntityCeScannerContext, "task_uuid", k.TaskUUIDs).
		delete(EntityCeTaskCharacteristics, "task_uuid", k.TaskUUIDs).
		delete(EntityCeTaskMessage, "task_uuid", k.TaskUUIDs).
		delete(EntityCeActivity, "uuid", k.TaskUUIDs).
		delete(EntityCeQueue, "uuid", k.TaskUUIDs).
		delete(EntityIssueChanges, "issue_key", k.IssueKeys).
		delete(EntityIssues, "kee", k.IssueKeys).
		delete(EntityFileSources, "project_uuid", root).
		delete(EntityLiveMeasures, "component_uuid", all).
		delete(EntityDuplicationsIndex, "analysis_uuid", k.AnalysisUUIDs).
		delete(EntityProjectMeasures, "analysis_uuid", k.AnalysisUUIDs).
		delete(EntityManualMeasures, "component_uuid", all).
		delete(EntityWebhookDeliveries, "webhook_uuid", k.WebhookUUIDs).
		delete(EntityWebhookDeliveries, "project_uuid", root).
		delete(EntityWebhooks, "uuid", k.WebhookUUIDs).
		delete(EntityAlmBindings, "project_uuid", root).
		delete(EntityProjectMappings, "project_uuid", root).
		delete(EntityProjectLinks, "project_uuid", root).
		delete(EntityProperties, "component_uuid", all).
		delete(EntityNewCodePeriods, "branch_uuid", root).
		delete(EntityNewCodePeriods, "project_uuid", root).
		delete(EntityProjectBranches, "uuid", root).
		delete(EntitySnapshots, "uuid", k.AnalysisUUIDs).
		delete(EntityComponents, "uuid", k.ComponentUUIDs).
		delete(EntityProjects, "uuid", root).
		delete(EntityComponents, "uuid", root).
		build()
}

// PlanAnalysesDeletion deletes analyses and the events, event changes,
// duplications and measures they own.
func PlanAnalysesDeletion(analysisUUIDs []string) Plan {
	return newPlan("deleteAnalyses").
		delete(EntityEventComponentChanges, "event_analysis_uuid", analysisUUIDs).
		delete(EntityEvents, "analysis_uuid", analysisUUIDs).
		delete(EntityDuplicationsIndex, "analysis_uuid", analysisUUIDs).
		delete(EntityProjectMeasures, "analysis_uuid", analysisUUIDs).
		delete(EntitySnapshots, "uuid", analysisUUIDs).
		build()
}

// PlanHistoricalDataDeletion drops, from the given analyses, the measures
// of metrics flagged for historical data deletion on the root and on its
// components of the given scopes.
func PlanHistoricalDataDeletion(analysisUUIDs []string, rootUUID string, scopes []string) Plan {
	where := `metric_uuid IN (SELECT uuid FROM metrics WHERE delete_historical_data = 1)
  AND (component_uuid = ? OR component_uuid IN (SELECT uuid FROM components WHERE root_uuid = ? AND scope IN (?)))`
	return newPlan("deleteDataOfComponentsWithoutHistoricalData").
		deleteWhere(EntityProjectMeasures, "analysis_uuid", analysisUUIDs, where, rootUUID, rootUUID, scopes).
		build()
}

// PlanAnalysesPurgeMarking drops duplication data of old analyses and marks
// them as purged.
func PlanAnalysesPurgeMarking(analysisUUIDs []string) Plan {
	return newPlan("purgeAnalyses").
		delete(EntityDuplicationsIndex, "analysis_uuid", analysisUUIDs).
		update(EntitySnapshots, "uuid", analysisUUIDs, Transform{Set: "purge_status = 1"}, "").
		build()
}

// closeIssuesStep closes the unresolved issues of the given components.
func closeIssuesStep(b *planBuilder, componentUUIDs []string, now time.Time) *planBuilder {
	tr := Transform{
		Set:  "status = ?, resolution = ?, issue_close_date = ?, updated_at = ?",
		Args: []any{IssueStatusClosed, IssueResolutionRemoved, now.UnixMilli(), now.UnixMilli()},
	}
	return b.update(EntityIssues, "component_uuid", componentUUIDs, tr, "status IN (?)", unresolvedIssueStatuses)
}

// PlanDisable soft-removes components: their open issues are closed, their
// sources and live measures deleted and the components disabled. Historical
// measures are kept.
func PlanDisable(componentUUIDs []string, now time.Time) Plan {
	b := newPlan("purgeDisabledComponents")
	closeIssuesStep(b, componentUUIDs, now)
	return b.
		delete(EntityFileSources, "file_uuid", componentUUIDs).
		delete(EntityLiveMeasures, "component_uuid", componentUUIDs).
		update(EntityComponents, "uuid", componentUUIDs, Transform{Set: "enabled = 0"}, "").
		build()
}

// PlanIssuesDeletion deletes issues and their changes.
func PlanIssuesDeletion(issueKeys []string) Plan {
	return newPlan("deleteOldClosedIssues").
		delete(EntityIssueChanges, "issue_key", issueKeys).
		delete(EntityIssues, "kee", issueKeys).
		build()
}

// PlanCeActivityDeletion deletes CE activities and their child records.
func PlanCeActivityDeletion(taskUUIDs []string) Plan {
	return newPlan("purgeCeActivities").
		delete(EntityCeTaskInput, "task_uuid", taskUUIDs).
		delete(EntityCeScannerContext, "task_uuid", taskUUIDs).
		delete(EntityCeTaskCharacteristics, "task_uuid", taskUUIDs).
		delete(EntityCeTaskMessage, "task_uuid", taskUUIDs).
		delete(EntityCeActivity, "uuid", taskUUIDs).
		build()
}

// PlanScannerContextDeletion deletes scanner context blobs.
func PlanScannerContextDeletion(taskUUIDs []string) Plan {
	return newPlan("purgeCeScannerContexts").
		delete(EntityCeScannerContext, "task_uuid", taskUUIDs).
		build()
}

// analysesOf adds the steps deleting analyses of components that are about
// to go, with the events, duplications and measures they own.
func (b *planBuilder) analysesOf(analysisUUIDs []string) *planBuilder {
	return b.
		delete(EntityEventComponentChanges, "event_analysis_uuid", analysisUUIDs).
		delete(EntityEvents, "analysis_uuid", analysisUUIDs).
		delete(EntityDuplicationsIndex, "analysis_uuid", analysisUUIDs).
		delete(EntityProjectMeasures, "analysis_uuid", analysisUUIDs).
		delete(EntitySnapshots, "uuid", analysisUUIDs)
}

// PlanComponentsDeletion deletes components together with the analyses,
// measures, properties and sources still keyed by their uuid.
func PlanComponentsDeletion(componentUUIDs, analysisUUIDs []string) Plan {
	return newPlan("deleteOldDisabledComponents").
		analysesOf(analysisUUIDs).
		delete(EntityProjectMeasures, "component_uuid", componentUUIDs).
		delete(EntityProperties, "component_uuid", componentUUIDs).
		delete(EntityManualMeasures, "component_uuid", componentUUIDs).
		delete(EntityLiveMeasures, "component_uuid", componentUUIDs).
		delete(EntityFileSources, "file_uuid", componentUUIDs).
		delete(EntityComponents, "uuid", componentUUIDs).
		build()
}

// PlanViewComponentsDeletion deletes non-root components of a view:
// properties and manual measures of subviews and modules, then historical
// measures, analyses of the components and the components themselves.
func PlanViewComponentsDeletion(componentUUIDs, subviewOrModuleUUIDs, analysisUUIDs []string) Plan {
	return newPlan("deleteNonRootComponentsInView").
		delete(EntityProperties, "component_uuid", subviewOrModuleUUIDs).
		delete(EntityManualMeasures, "component_uuid", subviewOrModuleUUIDs).
		delete(EntityProjectMeasures, "component_uuid", componentUUIDs).
		analysesOf(analysisUUIDs).
		delete(EntityComponents, "uuid", componentUUIDs).
		build()
}
