package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Evaluator answers retention questions for one Configuration. It only
// reads; deletions are planned from its answers.
type Evaluator struct {
	conf Configuration
}

// NewEvaluator creates an evaluator for conf.
func NewEvaluator(conf Configuration) *Evaluator {
	return &Evaluator{conf: conf}
}

// SelectPurgeableAnalyses returns the processed analyses of componentUUID,
// oldest first, the last one included. Analyses pinned as a new code
// baseline, by this branch or any other, are left out.
func (e *Evaluator) SelectPurgeableAnalyses(ctx context.Context, s Session, componentUUID string) ([]PurgeableAnalysis, error) {
	query := `
SELECT s.uuid AS analysis_uuid, s.created_at, s.islast,
    EXISTS (SELECT 1 FROM events e WHERE e.analysis_uuid = s.uuid) AS has_events,
    COALESCE((SELECT e.name FROM events e
              WHERE e.analysis_uuid = s.uuid AND e.category = ?
              ORDER BY e.created_at, e.uuid LIMIT 1), '') AS version
FROM snapshots s
WHERE s.component_uuid = ? AND s.status = ?
  AND NOT EXISTS (SELECT 1 FROM new_code_periods ncp
                  WHERE ncp.type = ? AND ncp.value = s.uuid)
ORDER BY s.created_at, s.uuid`

	var analyses []PurgeableAnalysis
	err := sqlx.SelectContext(ctx, s, &analyses, query,
		EventCategoryVersion, componentUUID, StatusProcessed, NewCodePeriodSpecificAnalysis)
	if err != nil {
		return nil, fmt.Errorf("select purgeable analyses of %s: %w", componentUUID, err)
	}
	return analyses, nil
}

// SelectExpiredAnalyses returns the purgeable analyses of componentUUID that
// are not last, carry no event and are strictly older than the configured age.
func (e *Evaluator) SelectExpiredAnalyses(ctx context.Context, s Session, componentUUID string) ([]string, error) {
	analyses, err := e.SelectPurgeableAnalyses(ctx, s, componentUUID)
	if err != nil {
		return nil, err
	}
	before := e.conf.MaxLiveDateOfAnalyses().UnixMilli()

	var expired []string
	for _, a := range analyses {
		if a.IsLast || a.HasEvents {
			continue
		}
		if a.CreatedAt < before {
			expired = append(expired, a.AnalysisUUID)
		}
	}
	return expired, nil
}

// SelectStaleBranches returns the branches and pull requests of projectUUID
// whose last analysis is older than the inactivity threshold. Branches
// excluded from purge and the root being purged are never returned.
func (e *Evaluator) SelectStaleBranches(ctx context.Context, s Session, projectUUID string, now time.Time) ([]string, error) {
	days := e.conf.MaxAgeOfInactiveBranchesDays
	if days == 0 {
		days = DefaultMaxAgeOfInactiveBranchesDays
	}
	before := now.AddDate(0, 0, -days).UnixMilli()

	branches, err := ProjectBranches(ctx, s, projectUUID)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, b := range branches {
		if b.Type == BranchTypeMain || b.ExcludeFromPurge || b.UUID == e.conf.RootUUID {
			continue
		}
		if b.LastAnalysisAt < before {
			stale = append(stale, b.UUID)
		}
	}
	return stale, nil
}

// CeRecords are the compute engine rows old enough to be discarded.
type CeRecords struct {
	ActivityUUIDs       []string
	ScannerContextUUIDs []string
}

// SelectOldCeRecords returns CE activities and scanner contexts strictly
// older than thresholds. When rootUUID is empty the lookup spans all
// projects, otherwise it is limited to the tasks of rootUUID.
func (e *Evaluator) SelectOldCeRecords(ctx context.Context, s Session, now time.Time, thresholds CeThresholds, rootUUID string) (CeRecords, error) {
	var records CeRecords
	var err error

	records.ActivityUUIDs, err = selectOldCeActivities(ctx, s, now.AddDate(0, 0, -thresholds.ActivityMaxAgeDays), rootUUID)
	if err != nil {
		return CeRecords{}, err
	}
	records.ScannerContextUUIDs, err = selectOldScannerContexts(ctx, s, now.AddDate(0, 0, -thresholds.ScannerContextMaxAgeDays), rootUUID)
	if err != nil {
		return CeRecords{}, err
	}
	return records, nil
}

func selectOldCeActivities(ctx context.Context, s Session, before time.Time, rootUUID string) ([]string, error) {
	query := `SELECT uuid FROM ce_activity WHERE created_at < ?`
	args := []any{before.UnixMilli()}
	if rootUUID != "" {
		query += ` AND (component_uuid = ? OR main_component_uuid = ?)`
		args = append(args, rootUUID, rootUUID)
	}
	query += ` ORDER BY uuid`

	var uuids []string
	if err := sqlx.SelectContext(ctx, s, &uuids, query, args...); err != nil {
		return nil, fmt.Errorf("select old ce activities: %w", err)
	}
	return uuids, nil
}

func selectOldScannerContexts(ctx context.Context, s Session, before time.Time, rootUUID string) ([]string, error) {
	query := `SELECT sc.task_uuid FROM ce_scanner_context sc WHERE sc.created_at < ?`
	args := []any{before.UnixMilli()}
	if rootUUID != "" {
		query += ` AND sc.task_uuid IN (SELECT a.uuid FROM ce_activity a
                                WHERE a.component_uuid = ? OR a.main_component_uuid = ?)`
		args = append(args, rootUUID, rootUUID)
	}
	query += ` ORDER BY sc.task_uuid`

	var uuids []string
	if err := sqlx.SelectContext(ctx, s, &uuids, query, args...); err != nil {
		return nil, fmt.Errorf("select old scanner contexts: %w", err)
	}
	return uuids, nil
}

// SelectAbortedAnalyses returns the unprocessed analyses of rootUUID that
// never became last.
func (e *Evaluator) SelectAbortedAnalyses(ctx context.Context, s Session, rootUUID string) ([]string, error) {
	var uuids []string
	err := sqlx.SelectContext(ctx, s, &uuids,
		`SELECT uuid FROM snapshots WHERE component_uuid = ? AND status = ? AND islast = 0 ORDER BY uuid`,
		rootUUID, StatusUnprocessed)
	if err != nil {
		return nil, fmt.Errorf("select aborted analyses of %s: %w", rootUUID, err)
	}
	return uuids, nil
}

// SelectUnpurgedAnalyses returns the non-last analyses of rootUUID not yet
// marked as purged.
func (e *Evaluator) SelectUnpurgedAnalyses(ctx context.Context, s Session, rootUUID string) ([]string, error) {
	var uuids []string
	err := sqlx.SelectContext(ctx, s, &uuids,
		`SELECT uuid FROM snapshots WHERE component_uuid = ? AND islast = 0 AND purge_status IS NULL ORDER BY uuid`,
		rootUUID)
	if err != nil {
		return nil, fmt.Errorf("select unpurged analyses of %s: %w", rootUUID, err)
	}
	return uuids, nil
}

// SelectOldClosedIssues returns the keys of issues of rootUUID closed
// before the configured age. It returns nothing when the age is unset.
func (e *Evaluator) SelectOldClosedIssues(ctx context.Context, s Session, rootUUID string) ([]string, error) {
	before, ok := e.conf.MaxLiveDateOfClosedIssues()
	if !ok {
		return nil, nil
	}
	var keys []string
	err := sqlx.SelectContext(ctx, s, &keys,
		`SELECT kee FROM issues WHERE project_uuid = ? AND status = ? AND issue_close_date < ? ORDER BY kee`,
		rootUUID, IssueStatusClosed, before.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("select old closed issues of %s: %w", rootUUID, err)
	}
	return keys, nil
}

// SelectDisabledComponentsWithData returns disabled components of rootUUID
// that still own file sources, unresolved issues or live measures.
func (e *Evaluator) SelectDisabledComponentsWithData(ctx context.Context, s Session, rootUUID string) ([]string, error) {
	query := `
SELECT c.uuid FROM components c
WHERE c.root_uuid = ? AND c.uuid <> ? AND c.enabled = 0
  AND (EXISTS (SELECT 1 FROM file_sources fs WHERE fs.file_uuid = c.uuid)
       OR EXISTS (SELECT 1 FROM issues i WHERE i.component_uuid = c.uuid AND i.status IN (?))
       OR EXISTS (SELECT 1 FROM live_measures lm WHERE lm.component_uuid = c.uuid))
ORDER BY c.uuid`

	query, args, err := sqlx.In(query, rootUUID, rootUUID, unresolvedIssueStatuses)
	if err != nil {
		return nil, err
	}

	var uuids []string
	if err := sqlx.SelectContext(ctx, s, &uuids, s.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select disabled components of %s: %w", rootUUID, err)
	}
	return uuids, nil
}

// SelectDisabledComponentsWithoutIssues returns disabled components of
// rootUUID that no issue refers to.
func (e *Evaluator) SelectDisabledComponentsWithoutIssues(ctx context.Context, s Session, rootUUID string) ([]string, error) {
	var uuids []string
	err := sqlx.SelectContext(ctx, s, &uuids, `
SELECT c.uuid FROM components c
WHERE c.root_uuid = ? AND c.uuid <> ? AND c.enabled = 0
  AND NOT EXISTS (SELECT 1 FROM issues i WHERE i.component_uuid = c.uuid)
ORDER BY c.uuid`, rootUUID, rootUUID)
	if err != nil {
		return nil, fmt.Errorf("select disabled components without issues of %s: %w", rootUUID, err)
	}
	return uuids, nil
}
