package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/db"
)

// Migration20250810090000CreateAudits creates the audits table.
func Migration20250810090000CreateAudits() db.Migration {
	return db.Migration{
		Version:     20250810090000,
		Description: "Create audits table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS audits (
					id TEXT PRIMARY KEY,
					agent_name TEXT NOT NULL,
					audited_at DATETIME NOT NULL,
					overall_score REAL NOT NULL,
					risk_level TEXT NOT NULL,
					scores TEXT NOT NULL,
					findings TEXT NOT NULL,
					recommendations TEXT NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create audits table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS audits")
			return errors.Wrap(err, "failed to drop audits table")
		},
	}
}
