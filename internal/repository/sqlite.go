package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-alert-workflow/internal/activity"
	"github.com/mr1hm/go-alert-workflow/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// One connection keeps commits serialized and makes :memory: databases
	// behave as a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteStore{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			hazard_type TEXT NOT NULL,
			status TEXT NOT NULL,
			effective_level TEXT NOT NULL,
			is_multi INTEGER NOT NULL,
			issue_time DATETIME,
			valid_from DATETIME NOT NULL,
			valid_to DATETIME NOT NULL,
			zones TEXT NOT NULL,
			descriptions TEXT NOT NULL,
			recommendations TEXT,
			responses TEXT,
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS activity_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			timestamp DATETIME NOT NULL,
			role TEXT NOT NULL,
			alert_id TEXT,
			action TEXT NOT NULL,
			details TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
		CREATE INDEX IF NOT EXISTS idx_activity_alert_id ON activity_log(alert_id);
		CREATE INDEX IF NOT EXISTS idx_activity_timestamp ON activity_log(timestamp);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CommitAlert(ctx context.Context, alert *models.Alert, entry *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	if err := insertActivity(ctx, tx, entry); err != nil {
		return err
	}
	if err := upsertAlert(ctx, tx, alert); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) RecordActivity(ctx context.Context, entry *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	if err := insertActivity(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func insertActivity(ctx context.Context, tx *sql.Tx, entry *models.ActivityLogEntry) error {
	alertID := sql.NullString{String: entry.AlertID, Valid: entry.AlertID != ""}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log (id, timestamp, role, alert_id, action, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, string(entry.Role), alertID, string(entry.Action), entry.Details,
	)
	if err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

func upsertAlert(ctx context.Context, tx *sql.Tx, alert *models.Alert) error {
	zones, err := json.Marshal(alert.Zones)
	if err != nil {
		return fmt.Errorf("encode zones: %w", err)
	}
	descriptions, err := json.Marshal(alert.Descriptions)
	if err != nil {
		return fmt.Errorf("encode descriptions: %w", err)
	}
	recommendations, err := json.Marshal(alert.SectorRecommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	responses, err := json.Marshal(alert.SectorResponses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}

	var issueTime sql.NullTime
	if alert.IssueTime != nil {
		issueTime = sql.NullTime{Time: *alert.IssueTime, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alerts (
			id, hazard_type, status, effective_level, is_multi, issue_time,
			valid_from, valid_to, zones, descriptions, recommendations,
			responses, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			effective_level = excluded.effective_level,
			is_multi = excluded.is_multi,
			issue_time = excluded.issue_time,
			zones = excluded.zones,
			descriptions = excluded.descriptions,
			recommendations = excluded.recommendations,
			responses = excluded.responses`,
		alert.ID, string(alert.HazardType), string(alert.Status),
		string(alert.EffectiveLevel), alert.IsMulti, issueTime,
		alert.ValidFrom, alert.ValidTo, string(zones), string(descriptions),
		string(recommendations), string(responses), string(alert.CreatedBy),
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert alert %s: %w", alert.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hazard_type, status, effective_level, is_multi, issue_time,
		       valid_from, valid_to, zones, descriptions, recommendations,
		       responses, created_by, created_at
		FROM alerts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func scanAlert(rows *sql.Rows) (*models.Alert, error) {
	var (
		a               models.Alert
		hazard, status  string
		level, creator  string
		issueTime       sql.NullTime
		zones           string
		descriptions    string
		recommendations sql.NullString
		responses       sql.NullString
	)

	err := rows.Scan(&a.ID, &hazard, &status, &level, &a.IsMulti, &issueTime,
		&a.ValidFrom, &a.ValidTo, &zones, &descriptions, &recommendations,
		&responses, &creator, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	a.HazardType = models.HazardType(hazard)
	a.Status = models.AlertStatus(status)
	a.EffectiveLevel = models.Severity(level)
	a.CreatedBy = models.Role(creator)
	if issueTime.Valid {
		t := issueTime.Time
		a.IssueTime = &t
	}

	if err := json.Unmarshal([]byte(zones), &a.Zones); err != nil {
		return nil, fmt.Errorf("decode zones for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(descriptions), &a.Descriptions); err != nil {
		return nil, fmt.Errorf("decode descriptions for %s: %w", a.ID, err)
	}
	if recommendations.Valid && recommendations.String != "null" {
		if err := json.Unmarshal([]byte(recommendations.String), &a.SectorRecommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations for %s: %w", a.ID, err)
		}
	}
	if responses.Valid && responses.String != "null" {
		if err := json.Unmarshal([]byte(responses.String), &a.SectorResponses); err != nil {
			return nil, fmt.Errorf("decode responses for %s: %w", a.ID, err)
		}
	}

	return &a, nil
}

func (s *SQLiteStore) QueryActivity(ctx context.Context, f activity.Filter) (iter.Seq[models.ActivityLogEntry], error) {
	query := `
		SELECT id, timestamp, role, alert_id, action, details
		FROM activity_log WHERE 1=1`
	var args []any

	if f.AlertID != "" {
		query += " AND alert_id = ?"
		args = append(args, f.AlertID)
	}
	if f.Role != "" {
		query += " AND role = ?"
		args = append(args, string(f.Role))
	}
	if f.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *f.Since)
	}
	query += " ORDER BY timestamp, seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityLogEntry
	for rows.Next() {
		var (
			e       models.ActivityLogEntry
			role    string
			alertID sql.NullString
			action  string
			details sql.NullString
			ts      time.Time
		)
		if err := rows.Scan(&e.ID, &ts, &role, &alertID, &action, &details); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		e.Timestamp = ts
		e.Role = models.Role(role)
		e.AlertID = alertID.String
		e.Action = models.ActivityAction(action)
		e.Details = details.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return func(yield func(models.ActivityLogEntry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
