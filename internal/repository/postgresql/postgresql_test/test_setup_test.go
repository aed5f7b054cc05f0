package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
)

// TestDatabaseSetup wraps the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL. ok is false when the variable is unset.
func NewTestDatabase(ctx context.Context) (setup *TestDatabaseSetup, ok bool, err error) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return nil, false, nil
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		return nil, true, fmt.Errorf("failed to connect to test database: %w", err)
	}

	return &TestDatabaseSetup{DB: db}, true, nil
}

// ApplySchema runs schema.sql from the repository package.
func (t *TestDatabaseSetup) ApplySchema(ctx context.Context) error {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "schema.sql")

	ddl, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := t.DB.Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// TruncateAllTables removes all rows touched by the tests.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"attendance_records",
		"attendance_stats",
		"attendance_configs",
		"calendar_days",
		"leave_requests",
		"academic_years",
		"students",
		"sections",
		"classes",
		"users",
	}

	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// InsertUser creates an active user and returns its id.
func (t *TestDatabaseSetup) InsertUser(ctx context.Context, id, schoolID, name, role string) error {
	_, err := t.DB.Exec(ctx,
		`INSERT INTO users (id, school_id, name, role) VALUES ($1, $2, $3, $4)`,
		id, schoolID, name, role,
	)
	return err
}

func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
