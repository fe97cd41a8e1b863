package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/db"
)

// Migration20250810090001AddAuditIndexes indexes audits for the per-agent
// history queries.
func Migration20250810090001AddAuditIndexes() db.Migration {
	return db.Migration{
		Version:     20250810090001,
		Description: "Add audit history indexes",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_audits_agent_time ON audits(agent_name, audited_at DESC)",
				"CREATE INDEX IF NOT EXISTS idx_audits_audited_at ON audits(audited_at DESC)",
			}

			for _, idx := range indexes {
				if _, err := tx.Exec(idx); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			dropIndexes := []string{
				"DROP INDEX IF EXISTS idx_audits_audited_at",
				"DROP INDEX IF EXISTS idx_audits_agent_time",
			}

			for _, drop := range dropIndexes {
				if _, err := tx.Exec(drop); err != nil {
					return errors.Wrap(err, "failed to drop index")
				}
			}
			return nil
		},
	}
}
