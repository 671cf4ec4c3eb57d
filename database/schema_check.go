package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

var requiredTables = []string{
	"ipos",
	"gmp_history",
	"current_gmp",
	"subscription_history",
	"current_subscription",
	"system_logs",
}

var requiredIndexes = []string{
	"idx_ipos_status",
	"idx_ipos_type",
	"idx_gmp_history_ipo_ts",
	"idx_sub_history_ipo_ts",
	"idx_system_logs_action",
}

// SchemaReport lists what a migrated database is missing
type SchemaReport struct {
	MissingTables  []string `json:"missing_tables"`
	MissingIndexes []string `json:"missing_indexes"`
}

// Valid reports whether nothing is missing
func (r SchemaReport) Valid() bool {
	return len(r.MissingTables) == 0 && len(r.MissingIndexes) == 0
}

// SchemaValidator checks a live database against the tables and indexes the
// store relies on
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator instance
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate inspects information_schema and pg_indexes
func (v *SchemaValidator) Validate(ctx context.Context) (*SchemaReport, error) {
	report := &SchemaReport{}

	for _, table := range requiredTables {
		exists, err := v.tableExists(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			report.MissingTables = append(report.MissingTables, table)
		}
	}

	indexes, err := v.getAllIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, index := range requiredIndexes {
		if !indexes[index] {
			report.MissingIndexes = append(report.MissingIndexes, index)
		}
	}

	fields := logrus.Fields{
		"missing_tables":  len(report.MissingTables),
		"missing_indexes": len(report.MissingIndexes),
	}
	if report.Valid() {
		logrus.WithFields(fields).Info("Schema validation passed successfully")
	} else {
		logrus.WithFields(fields).Warn("Schema validation found issues")
	}

	return report, nil
}

func (v *SchemaValidator) tableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := v.db.QueryRowContext(ctx, query, tableName).Scan(&exists)
	return exists, err
}

func (v *SchemaValidator) getAllIndexes(ctx context.Context) (map[string]bool, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT indexname FROM pg_indexes WHERE schemaname = 'public'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexes := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		indexes[name] = true
	}

	return indexes, rows.Err()
}
