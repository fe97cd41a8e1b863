// Package migrations contains all database migrations for agentlint.
// Migrations use Rails-style timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/agentlint/pkg/db"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []db.Migration {
	return []db.Migration{
		Migration20250810090000CreateAudits(),
		Migration20250810090001AddAuditIndexes(),
	}
}
