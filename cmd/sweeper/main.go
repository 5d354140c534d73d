// Sweeper applies data retention rules to a code analysis database.
//
// It purges expired analyses, the history of flagged metrics, disabled
// components, old closed issues, compute engine records and stale branches,
// and deletes whole projects, branches or analyses with every dependent row.
//
// Usage:
//
//	# Purge one branch with the configured retention rules
//	sweeper purge --root 7f3c... --project 1a2b...
//
//	# Purge every branch and view
//	sweeper purge --all
//
//	# Delete a project with all its branches
//	sweeper delete project 1a2b... --yes
//
//	# List the analyses the retention rules look at
//	sweeper analyses --root 7f3c...
//
//	# Run housekeeping on a schedule with health and metrics endpoints
//	sweeper serve --config /etc/sweeper/config.yaml
//
//	# Show version information
//	sweeper version
package main

func main() {
	Execute()
}
