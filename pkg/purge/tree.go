package purge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const componentColumns = `c.uuid, c.kee, c.scope, c.enabled,
	COALESCE(c.parent_uuid, '') AS parent_uuid,
	c.root_uuid,
	COALESCE(c.main_branch_project_uuid, '') AS main_branch_project_uuid`

// SelectComponent loads one component. found is false when no row exists.
func SelectComponent(ctx context.Context, s Session, uuid string) (c Component, found bool, err error) {
	err = sqlx.GetContext(ctx, s, &c, `SELECT `+componentColumns+` FROM components c WHERE c.uuid = ?`, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return Component{}, false, nil
	}
	if err != nil {
		return Component{}, false, fmt.Errorf("select component %s: %w", uuid, err)
	}
	return c, true, nil
}

// RequireRoot loads uuid and checks it is a root: a PROJECT or VIEW
// component without parent. Anything else fails with InvalidArgumentError.
func RequireRoot(ctx context.Context, s Session, uuid string) (Component, error) {
	if uuid == "" {
		return Component{}, newInvalidArgument("root_uuid", "", "root component uuid is required")
	}
	c, found, err := SelectComponent(ctx, s, uuid)
	if err != nil {
		return Component{}, err
	}
	if !found {
		return Component{}, newInvalidArgument("root_uuid", uuid, "Couldn't find root component with uuid %s", uuid)
	}
	if !c.IsRoot() {
		return Component{}, newInvalidArgument("root_uuid", uuid,
			"no root found for uuid %s: component has scope %s", uuid, c.Scope)
	}
	return c, nil
}

// Descendants lists the non-root components of rootUUID, deepest first.
// Components attached to the root but unreachable through parent links are
// listed first, as they have no known children.
func Descendants(ctx context.Context, s Session, rootUUID string) ([]Component, error) {
	query := `
WITH RECURSIVE tree(uuid, depth) AS (
    SELECT uuid, 1 FROM components WHERE parent_uuid = ? AND root_uuid = ?
    UNION ALL
    SELECT c.uuid, t.depth + 1
    FROM components c JOIN tree t ON c.parent_uuid = t.uuid
    WHERE c.root_uuid = ?
)
SELECT ` + componentColumns + `
FROM components c LEFT JOIN tree t ON t.uuid = c.uuid
WHERE c.root_uuid = ? AND c.uuid <> ?
ORDER BY COALESCE(t.depth, 2147483647) DESC, c.uuid`

	var components []Component
	if err := sqlx.SelectContext(ctx, s, &components, query, rootUUID, rootUUID, rootUUID, rootUUID, rootUUID); err != nil {
		return nil, fmt.Errorf("select descendants of %s: %w", rootUUID, err)
	}
	return components, nil
}

// ProjectBranches lists the branches of a project, main branch included,
// with their last analysis date.
func ProjectBranches(ctx context.Context, s Session, projectUUID string) ([]Branch, error) {
	query := `
SELECT pb.uuid, pb.project_uuid, pb.kee, pb.branch_type, pb.exclude_from_purge,
    COALESCE((SELECT MAX(s.created_at) FROM snapshots s
              WHERE s.component_uuid = pb.uuid AND s.status = 'P'), pb.updated_at) AS last_analysis
FROM project_branches pb
WHERE pb.project_uuid = ?
ORDER BY pb.kee, pb.uuid`

	var branches []Branch
	if err := sqlx.SelectContext(ctx, s, &branches, query, projectUUID); err != nil {
		return nil, fmt.Errorf("select branches of %s: %w", projectUUID, err)
	}
	return branches, nil
}

func uuidsOf(components []Component) []string {
	uuids := make([]string, len(components))
	for i, c := range components {
		uuids[i] = c.UUID
	}
	return uuids
}
