package mysql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/tracking"
)

func TestClassify_MapsConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "duplicate on open-entry key",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'emp-1' for key 'time_entries.uq_time_entries_one_open'"},
			want: tracking.ErrOpenEntryExists,
		},
		{
			name: "duplicate on primary key is not an open-entry conflict",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'te-1' for key 'time_entries.PRIMARY'"},
			want: nil,
		},
		{
			name: "missing parent row",
			err:  &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails"},
			want: tracking.ErrMissingReference,
		},
		{
			name: "wrapped driver error",
			err:  fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1452}),
			want: tracking.ErrMissingReference,
		},
		{
			name: "unrelated",
			err:  errors.New("connection refused"),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestDialect_Upsert(t *testing.T) {
	got := Dialect.Upsert([]string{"name", "email"})

	assert.Equal(t, "ON DUPLICATE KEY UPDATE name = VALUES(name), email = VALUES(email)", got)
}

func TestSplitStatements_EmbeddedMigrations(t *testing.T) {
	b, err := migrationsFS.ReadFile("sql/0001_init.sql")
	require.NoError(t, err)

	stmts := splitStatements(string(b))

	// employees, projects, tasks, time_entries
	require.Len(t, stmts, 4)
	for _, s := range stmts {
		assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS")
		assert.NotContains(t, s, "--")
	}
	assert.Contains(t, stmts[3], "uq_time_entries_one_open")
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("0007_add_index.sql")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = parseVersion("init.sql")
	assert.Error(t, err)
}
