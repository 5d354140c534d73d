// Package purge implements the retention and cascading deletion engine of
// the analysis store.
//
// # Overview
//
// The engine removes historical analyses, stale branches, disabled
// components and old compute engine records, together with every record
// that refers to them. It is organised in four layers:
//
//   - Component tree: root and descendant lookups (RequireRoot, Descendants).
//   - Evaluator: which analyses, branches, issues and CE records are due.
//   - Plans: ordered lists of steps, one per table, children first.
//   - Executor: runs each step in chunks that fit the store's bound
//     parameter limit, measured by a Profiler.
//
// Plans are plain data, so the deletion order can be inspected and tested:
//
//	plan := purge.PlanRootDeletion(keys)
//	for _, step := range plan.Steps {
//	    fmt.Println(step.Entity, step.Selector.Column, len(step.Selector.Keys))
//	}
//
// # Transactions
//
// Every Engine method receives a Session, normally a *sqlx.Tx, and never
// opens, commits or rolls back a transaction. A failed call leaves the
// rollback to the caller, and every step deletes or updates by key set, so
// running the same call again converges to the same end state.
//
//	err := st.InTx(ctx, func(tx *sqlx.Tx) error {
//	    conf := purge.NewConfiguration(branchUUID, projectUUID)
//	    return engine.Purge(ctx, tx, conf, purge.NopListener{}, purge.NewProfiler(nil))
//	})
//
// The engine does no locking. Purges of the same project must not run
// concurrently.
package purge
