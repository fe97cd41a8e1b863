// Package history persists audit results so quality scores can be compared
// across runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/audit"
	"github.com/jingkaihe/agentlint/pkg/db"
	"github.com/jingkaihe/agentlint/pkg/db/migrations"
	"github.com/jingkaihe/agentlint/pkg/logger"
)

// ErrNoAudits is returned when an agent has no recorded audits.
var ErrNoAudits = errors.New("no audits recorded for agent")

// Store reads and writes audit results in the agentlint database.
type Store struct {
	conn *sqlx.DB
}

// Open opens the store at path, creating the database and schema as needed.
// An empty path uses db.DefaultPath.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	conn, err := db.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	runner := db.NewMigrationRunner(conn)
	if err := runner.Run(ctx, migrations.All()); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to migrate audit history schema")
	}

	logger.G(ctx).WithField("path", path).Debug("opened audit history store")
	return &Store{conn: conn}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// auditRecord is the database row for one audit result. Scores, findings and
// recommendations are stored as JSON text.
type auditRecord struct {
	ID              string    `db:"id"`
	AgentName       string    `db:"agent_name"`
	AuditedAt       time.Time `db:"audited_at"`
	OverallScore    float64   `db:"overall_score"`
	RiskLevel       string    `db:"risk_level"`
	Scores          string    `db:"scores"`
	Findings        string    `db:"findings"`
	Recommendations string    `db:"recommendations"`
}

func toRecord(result *audit.Result) (auditRecord, error) {
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return auditRecord{}, errors.Wrap(err, "failed to marshal scores")
	}
	findings, err := json.Marshal(result.Findings)
	if err != nil {
		return auditRecord{}, errors.Wrap(err, "failed to marshal findings")
	}
	recommendations, err := json.Marshal(result.Recommendations)
	if err != nil {
		return auditRecord{}, errors.Wrap(err, "failed to marshal recommendations")
	}

	return auditRecord{
		ID:              result.ID,
		AgentName:       result.AgentName,
		AuditedAt:       result.AuditedAt,
		OverallScore:    result.Overall,
		RiskLevel:       string(result.RiskLevel),
		Scores:          string(scores),
		Findings:        string(findings),
		Recommendations: string(recommendations),
	}, nil
}

func (r auditRecord) toResult() (*audit.Result, error) {
	result := &audit.Result{
		ID:        r.ID,
		AgentName: r.AgentName,
		AuditedAt: r.AuditedAt,
		Overall:   r.OverallScore,
		RiskLevel: audit.RiskLevel(r.RiskLevel),
	}

	if err := json.Unmarshal([]byte(r.Scores), &result.Scores); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal scores for audit %s", r.ID)
	}
	if err := json.Unmarshal([]byte(r.Findings), &result.Findings); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal findings for audit %s", r.ID)
	}
	if err := json.Unmarshal([]byte(r.Recommendations), &result.Recommendations); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal recommendations for audit %s", r.ID)
	}

	return result, nil
}

// Save stores an audit result. Saving the same result ID again overwrites
// the earlier row.
func (s *Store) Save(ctx context.Context, result *audit.Result) error {
	record, err := toRecord(result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audits (
			id, agent_name, audited_at, overall_score, risk_level,
			scores, findings, recommendations
		) VALUES (
			:id, :agent_name, :audited_at, :overall_score, :risk_level,
			:scores, :findings, :recommendations
		)
		ON CONFLICT(id) DO UPDATE SET
			agent_name = excluded.agent_name,
			audited_at = excluded.audited_at,
			overall_score = excluded.overall_score,
			risk_level = excluded.risk_level,
			scores = excluded.scores,
			findings = excluded.findings,
			recommendations = excluded.recommendations
	`
	if _, err := s.conn.NamedExecContext(ctx, query, record); err != nil {
		return errors.Wrapf(err, "failed to save audit for agent %s", result.AgentName)
	}

	logger.G(ctx).WithField("agent", result.AgentName).WithField("score", result.Overall).Debug("saved audit result")
	return nil
}

// ListByAgent returns an agent's audits, newest first. A non-positive limit
// returns all of them.
func (s *Store) ListByAgent(ctx context.Context, name string, limit int) ([]*audit.Result, error) {
	if limit <= 0 {
		limit = -1
	}

	var records []auditRecord
	query := "SELECT * FROM audits WHERE agent_name = ? ORDER BY audited_at DESC, id LIMIT ?"
	if err := s.conn.SelectContext(ctx, &records, query, name, limit); err != nil {
		return nil, errors.Wrapf(err, "failed to list audits for agent %s", name)
	}

	results := make([]*audit.Result, 0, len(records))
	for _, record := range records {
		result, err := record.toResult()
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Latest returns an agent's most recent audit, or ErrNoAudits.
func (s *Store) Latest(ctx context.Context, name string) (*audit.Result, error) {
	var record auditRecord
	query := "SELECT * FROM audits WHERE agent_name = ? ORDER BY audited_at DESC, id LIMIT 1"
	err := s.conn.GetContext(ctx, &record, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAudits
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load latest audit for agent %s", name)
	}
	return record.toResult()
}
