package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchema(t *testing.T) {
	names, err := fs.Glob(files, "*.sql")
	require.NoError(t, err)
	require.Contains(t, names, "001_schedule.sql")

	body, err := files.ReadFile("001_schedule.sql")
	require.NoError(t, err)
	for _, name := range []string{"slots_room_no_overlap", "slots_instructor_no_overlap", "attendance_records_scope_key"} {
		assert.True(t, strings.Contains(string(body), name), name)
	}
}

func TestIsIgnorableMigrationError(t *testing.T) {
	assert.True(t, isIgnorableMigrationError(errors.Wrap(&pgconn.PgError{Code: "42P07"}, "apply")))
	assert.True(t, isIgnorableMigrationError(&pgconn.PgError{Code: "42710"}))
	assert.False(t, isIgnorableMigrationError(&pgconn.PgError{Code: "42601"}))
	assert.False(t, isIgnorableMigrationError(errors.New("boom")))
}
